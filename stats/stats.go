package stats

import (
	"sync/atomic"
	"time"
)

// Stats holds all server statistics with atomic counters
type Stats struct {
	// Server info
	StartTime time.Time

	// Request counters
	TotalRequests   atomic.Int64
	SearchRequests  atomic.Int64
	SuggestRequests atomic.Int64
	HotelRequests   atomic.Int64
	BookingRequests atomic.Int64
	OtherRequests   atomic.Int64

	// Cache performance
	SearchCacheHits   atomic.Int64
	SearchCacheMisses atomic.Int64
	StaleCacheHits    atomic.Int64
	ContentCacheHits  atomic.Int64
	ContentResolved   atomic.Int64

	// Upstream supplier calls
	UpstreamCalls       atomic.Int64
	UpstreamRateLimited atomic.Int64
	UpstreamErrors      atomic.Int64

	// Booking outcomes
	BookingsConfirmed atomic.Int64
	BookingsFailed    atomic.Int64
	BookingsSandbox   atomic.Int64

	// Rate limiting
	RateLimitLive     atomic.Int64 // Requests served under the live tier
	RateLimitCached   atomic.Int64 // Requests served under cached-only tier
	RateLimitExceeded atomic.Int64 // Requests rejected (429)

	// Response status codes
	Status2xx atomic.Int64
	Status4xx atomic.Int64
	Status5xx atomic.Int64

	// Response time tracking (in microseconds for precision)
	totalResponseTime atomic.Int64
	responseCount     atomic.Int64
	minResponseTime   atomic.Int64
	maxResponseTime   atomic.Int64
}

// Global stats instance
var global = &Stats{
	StartTime: time.Now(),
}

func init() {
	// Initialize min to a high value
	global.minResponseTime.Store(int64(^uint64(0) >> 1)) // Max int64
}

// Get returns the global stats instance
func Get() *Stats {
	return global
}

// RecordRequest records a request to a specific endpoint
func (s *Stats) RecordRequest(endpoint string) {
	s.TotalRequests.Add(1)
	switch endpoint {
	case "/api/search":
		s.SearchRequests.Add(1)
	case "/api/suggest":
		s.SuggestRequests.Add(1)
	case "/api/hotel":
		s.HotelRequests.Add(1)
	case "/api/prebook", "/api/booking/create", "/api/booking/start", "/api/booking/status":
		s.BookingRequests.Add(1)
	default:
		s.OtherRequests.Add(1)
	}
}

// RecordSearchCacheHit records a fresh search-cache hit
func (s *Stats) RecordSearchCacheHit() {
	s.SearchCacheHits.Add(1)
}

// RecordSearchCacheMiss records a search-cache miss
func (s *Stats) RecordSearchCacheMiss() {
	s.SearchCacheMisses.Add(1)
}

// RecordStaleCacheHit records a stale cache hit (degraded fallback)
func (s *Stats) RecordStaleCacheHit() {
	s.StaleCacheHits.Add(1)
}

// RecordContentCacheHit records content served from the content cache
func (s *Stats) RecordContentCacheHit(n int) {
	s.ContentCacheHits.Add(int64(n))
}

// RecordContentResolved records content fetched from the local store
func (s *Stats) RecordContentResolved(n int) {
	s.ContentResolved.Add(int64(n))
}

// RecordUpstreamCall records one supplier API call
func (s *Stats) RecordUpstreamCall() {
	s.UpstreamCalls.Add(1)
}

// RecordUpstreamRateLimited records a 429-exhausted supplier call
func (s *Stats) RecordUpstreamRateLimited() {
	s.UpstreamRateLimited.Add(1)
}

// RecordUpstreamError records a failed supplier call
func (s *Stats) RecordUpstreamError() {
	s.UpstreamErrors.Add(1)
}

// RecordBooking records a booking outcome
func (s *Stats) RecordBooking(status string, sandbox bool) {
	if sandbox {
		s.BookingsSandbox.Add(1)
		return
	}
	switch status {
	case "ok":
		s.BookingsConfirmed.Add(1)
	case "error":
		s.BookingsFailed.Add(1)
	}
}

// RecordRateLimit records rate limit tier usage
func (s *Stats) RecordRateLimit(tier string) {
	switch tier {
	case "live":
		s.RateLimitLive.Add(1)
	case "cached":
		s.RateLimitCached.Add(1)
	case "exceeded":
		s.RateLimitExceeded.Add(1)
	}
}

// RecordStatusCode records a response status code
func (s *Stats) RecordStatusCode(code int) {
	switch {
	case code >= 200 && code < 300:
		s.Status2xx.Add(1)
	case code >= 400 && code < 500:
		s.Status4xx.Add(1)
	case code >= 500:
		s.Status5xx.Add(1)
	}
}

// RecordResponseTime records a response duration
func (s *Stats) RecordResponseTime(d time.Duration) {
	micros := d.Microseconds()
	s.totalResponseTime.Add(micros)
	s.responseCount.Add(1)

	for {
		min := s.minResponseTime.Load()
		if micros >= min || s.minResponseTime.CompareAndSwap(min, micros) {
			break
		}
	}
	for {
		max := s.maxResponseTime.Load()
		if micros <= max || s.maxResponseTime.CompareAndSwap(max, micros) {
			break
		}
	}
}

// Snapshot is a point-in-time copy of all counters for JSON responses.
type Snapshot struct {
	UptimeSeconds int64 `json:"uptime_seconds"`

	TotalRequests   int64 `json:"total_requests"`
	SearchRequests  int64 `json:"search_requests"`
	SuggestRequests int64 `json:"suggest_requests"`
	HotelRequests   int64 `json:"hotel_requests"`
	BookingRequests int64 `json:"booking_requests"`
	OtherRequests   int64 `json:"other_requests"`

	SearchCacheHits   int64   `json:"search_cache_hits"`
	SearchCacheMisses int64   `json:"search_cache_misses"`
	StaleCacheHits    int64   `json:"stale_cache_hits"`
	ContentCacheHits  int64   `json:"content_cache_hits"`
	ContentResolved   int64   `json:"content_resolved"`
	SearchHitRate     float64 `json:"search_hit_rate_percent"`

	UpstreamCalls       int64 `json:"upstream_calls"`
	UpstreamRateLimited int64 `json:"upstream_rate_limited"`
	UpstreamErrors      int64 `json:"upstream_errors"`

	BookingsConfirmed int64 `json:"bookings_confirmed"`
	BookingsFailed    int64 `json:"bookings_failed"`
	BookingsSandbox   int64 `json:"bookings_sandbox"`

	RateLimitLive     int64 `json:"rate_limit_live"`
	RateLimitCached   int64 `json:"rate_limit_cached"`
	RateLimitExceeded int64 `json:"rate_limit_exceeded"`

	Status2xx int64 `json:"status_2xx"`
	Status4xx int64 `json:"status_4xx"`
	Status5xx int64 `json:"status_5xx"`

	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	MinResponseTimeMs float64 `json:"min_response_time_ms"`
	MaxResponseTimeMs float64 `json:"max_response_time_ms"`
}

// Snapshot returns a consistent-enough copy for reporting
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		UptimeSeconds: int64(time.Since(s.StartTime).Seconds()),

		TotalRequests:   s.TotalRequests.Load(),
		SearchRequests:  s.SearchRequests.Load(),
		SuggestRequests: s.SuggestRequests.Load(),
		HotelRequests:   s.HotelRequests.Load(),
		BookingRequests: s.BookingRequests.Load(),
		OtherRequests:   s.OtherRequests.Load(),

		SearchCacheHits:   s.SearchCacheHits.Load(),
		SearchCacheMisses: s.SearchCacheMisses.Load(),
		StaleCacheHits:    s.StaleCacheHits.Load(),
		ContentCacheHits:  s.ContentCacheHits.Load(),
		ContentResolved:   s.ContentResolved.Load(),

		UpstreamCalls:       s.UpstreamCalls.Load(),
		UpstreamRateLimited: s.UpstreamRateLimited.Load(),
		UpstreamErrors:      s.UpstreamErrors.Load(),

		BookingsConfirmed: s.BookingsConfirmed.Load(),
		BookingsFailed:    s.BookingsFailed.Load(),
		BookingsSandbox:   s.BookingsSandbox.Load(),

		RateLimitLive:     s.RateLimitLive.Load(),
		RateLimitCached:   s.RateLimitCached.Load(),
		RateLimitExceeded: s.RateLimitExceeded.Load(),

		Status2xx: s.Status2xx.Load(),
		Status4xx: s.Status4xx.Load(),
		Status5xx: s.Status5xx.Load(),
	}

	if total := snap.SearchCacheHits + snap.SearchCacheMisses; total > 0 {
		snap.SearchHitRate = float64(snap.SearchCacheHits) / float64(total) * 100
	}

	if count := s.responseCount.Load(); count > 0 {
		snap.AvgResponseTimeMs = float64(s.totalResponseTime.Load()) / float64(count) / 1000
		snap.MinResponseTimeMs = float64(s.minResponseTime.Load()) / 1000
		snap.MaxResponseTimeMs = float64(s.maxResponseTime.Load()) / 1000
	}

	return snap
}
