package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

var conf = mustLoad()

type Config struct {
	Configuration struct {
		// Public rate limiting (per IP, two tiers)
		RateLimitPerSecond        int `envconfig:"RATE_LIMIT_PER_SECOND" default:"2"`
		RateLimitBurstLimit       int `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"5"`
		CachedRateLimitPerSecond  int `envconfig:"CACHED_RATE_LIMIT_PER_SECOND" default:"10"`
		CachedRateLimitBurstLimit int `envconfig:"CACHED_RATE_LIMIT_BURST_LIMIT" default:"20"`

		// Supplier API configuration
		SupplierBaseURL    string `envconfig:"SUPPLIER_BASE_URL" default:"https://api.worldota.net/api/b2b/v3"`
		SupplierKeyID      string `envconfig:"SUPPLIER_KEY_ID" default:""`
		SupplierAPIKey     string `envconfig:"SUPPLIER_API_KEY" default:""`
		SupplierSandbox    bool   `envconfig:"SUPPLIER_SANDBOX" default:"true"`
		SupplierTimeoutSec int    `envconfig:"SUPPLIER_TIMEOUT_SECS" default:"60"`

		// Upstream admission control
		MinRequestIntervalMs int `envconfig:"MIN_REQUEST_INTERVAL_MS" default:"300"` // Minimum spacing between upstream calls
		RetryBudget          int `envconfig:"RETRY_BUDGET" default:"3"`              // Retries on 429 before giving up
		RetryBackoffBaseMs   int `envconfig:"RETRY_BACKOFF_BASE_MS" default:"3000"`  // Backoff step: 3s, 6s, 9s for a budget of 3

		// Circuit breaker
		CircuitBreakerThreshold int `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`   // Consecutive failures before circuit opens
		CircuitBreakerResetSecs int `envconfig:"CIRCUIT_BREAKER_RESET_SECS" default:"60"` // Seconds before half-open probe

		// Tiered caches (fresh serves directly, stale only as upstream fallback)
		ContentCacheFreshTTLHours int `envconfig:"CONTENT_CACHE_FRESH_TTL_HOURS" default:"24"`
		ContentCacheStaleTTLHours int `envconfig:"CONTENT_CACHE_STALE_TTL_HOURS" default:"168"`
		SearchCacheFreshTTLMins   int `envconfig:"SEARCH_CACHE_FRESH_TTL_MINS" default:"15"`
		SearchCacheStaleTTLMins   int `envconfig:"SEARCH_CACHE_STALE_TTL_MINS" default:"360"`

		// Content enrichment
		ContentBatchSize       int `envconfig:"CONTENT_BATCH_SIZE" default:"500"`     // Max HIDs per content-store query
		DefaultEnrichmentLimit int `envconfig:"DEFAULT_ENRICHMENT_LIMIT" default:"0"` // 0 = enrich everything

		// Storage paths
		CacheDBPath   string `envconfig:"CACHE_DB_PATH" default:"/data/cache.db"`
		ContentDBPath string `envconfig:"CONTENT_DB_PATH" default:"/data/content.db"`
		StatsDBPath   string `envconfig:"STATS_DB_PATH" default:"/data/stats.db"`

		// Admin access
		CacheAccessToken string `envconfig:"CACHE_ACCESS_TOKEN" default:""`
		APIKey           string `envconfig:"API_KEY" default:""`
		APIKeyRequired   bool   `envconfig:"API_KEY_REQUIRED" default:"false"`
	}

	FeatureFlags struct {
		CacheCompression bool `envconfig:"FF_CACHE_COMPRESSION" default:"true"`
		CachePersistence bool `envconfig:"FF_CACHE_PERSISTENCE" default:"true"`
	}
}

// MinRequestInterval returns the upstream pacing interval as a duration.
func (c Config) MinRequestInterval() time.Duration {
	return time.Duration(c.Configuration.MinRequestIntervalMs) * time.Millisecond
}

// ContentCacheTTLs returns (fresh, stale) for the content cache.
func (c Config) ContentCacheTTLs() (time.Duration, time.Duration) {
	return time.Duration(c.Configuration.ContentCacheFreshTTLHours) * time.Hour,
		time.Duration(c.Configuration.ContentCacheStaleTTLHours) * time.Hour
}

// SearchCacheTTLs returns (fresh, stale) for the search cache.
func (c Config) SearchCacheTTLs() (time.Duration, time.Duration) {
	return time.Duration(c.Configuration.SearchCacheFreshTTLMins) * time.Minute,
		time.Duration(c.Configuration.SearchCacheStaleTTLMins) * time.Minute
}

// load loads the configuration from the environment.
func load() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Warnf("Error loading env config: %v", err)
	}

	cfg := Config{}
	err = envconfig.Process("", &cfg)
	return cfg, err
}

func mustLoad() Config {
	c, err := load()
	if err != nil {
		log.WithError(err).Warnf("Unable to load configuration")
	}

	return c
}

func Get() Config {
	return conf
}
