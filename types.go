package main

type contextKey string

const (
	cacheOnlyModeKey contextKey = "cacheOnlyMode"
	rateLimitTypeKey contextKey = "rateLimitType"
)

// CachePerformance contains cache hit/miss statistics
type CachePerformance struct {
	SearchHits   int64   `json:"search_hits"`
	SearchMisses int64   `json:"search_misses"`
	StaleHits    int64   `json:"stale_hits"`
	ContentHits  int64   `json:"content_hits"`
	HitRate      float64 `json:"hit_rate_percent"`
}

// CacheInstanceInfo summarizes one cache instance for /cache
type CacheInstanceInfo struct {
	NumberOfKeys int     `json:"number_of_keys"`
	SizeInKB     int     `json:"size_kb"`
	SizeInMB     float64 `json:"size_mb"`
	FreshTTL     string  `json:"fresh_ttl"`
	StaleTTL     string  `json:"stale_ttl"`
}

// CacheDumpResponse is the response format for the /cache endpoint
type CacheDumpResponse struct {
	Search      CacheInstanceInfo `json:"search"`
	Content     CacheInstanceInfo `json:"content"`
	Performance CachePerformance  `json:"performance"`
	Keys        []string          `json:"keys,omitempty"`
}
