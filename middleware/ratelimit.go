package middleware

import (
	"math"
	"sync"

	"golang.org/x/time/rate"
)

// LimiterPair holds both tier limiters for one client IP. The live tier
// covers requests that may hit the supplier; the cached tier is a larger
// allowance for requests that can be answered from the search cache alone.
type LimiterPair struct {
	Live   *rate.Limiter
	Cached *rate.Limiter
}

// GetLiveTokens returns the number of tokens available in the live tier
func (lp *LimiterPair) GetLiveTokens() int {
	return int(math.Floor(lp.Live.Tokens()))
}

// GetCachedTokens returns the number of tokens available in the cached tier
func (lp *LimiterPair) GetCachedTokens() int {
	return int(math.Floor(lp.Cached.Tokens()))
}

// IPRateLimiter manages two-tier rate limiting per IP
type IPRateLimiter struct {
	ips         map[string]*LimiterPair
	mu          *sync.RWMutex
	liveRate    rate.Limit
	liveBurst   int
	cachedRate  rate.Limit
	cachedBurst int
}

// GetLiveLimit returns the live tier burst limit
func (i *IPRateLimiter) GetLiveLimit() int {
	return i.liveBurst
}

// GetCachedLimit returns the cached tier burst limit
func (i *IPRateLimiter) GetCachedLimit() int {
	return i.cachedBurst
}

// NewIPRateLimiter creates a new two-tier rate limiter
func NewIPRateLimiter(liveRate rate.Limit, liveBurst int, cachedRate rate.Limit, cachedBurst int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:         make(map[string]*LimiterPair),
		mu:          &sync.RWMutex{},
		liveRate:    liveRate,
		liveBurst:   liveBurst,
		cachedRate:  cachedRate,
		cachedBurst: cachedBurst,
	}
}

func (i *IPRateLimiter) AddIP(ip string) *LimiterPair {
	i.mu.Lock()
	defer i.mu.Unlock()

	pair := &LimiterPair{
		Live:   rate.NewLimiter(i.liveRate, i.liveBurst),
		Cached: rate.NewLimiter(i.cachedRate, i.cachedBurst),
	}

	i.ips[ip] = pair

	return pair
}

func (i *IPRateLimiter) GetLimiter(ip string) *LimiterPair {
	i.mu.Lock()
	limiter, exists := i.ips[ip]

	if !exists {
		i.mu.Unlock()
		return i.AddIP(ip)
	}

	i.mu.Unlock()

	return limiter
}
