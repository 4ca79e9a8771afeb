package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"hotel-api-go/cache"
	"hotel-api-go/circuitbreaker"
	"hotel-api-go/logcolors"
	"hotel-api-go/middleware"
	"hotel-api-go/services"
	"hotel-api-go/services/content"
	"hotel-api-go/services/notifier"
	"hotel-api-go/services/supplier"
	"hotel-api-go/stats"
	"hotel-api-go/throttle"
)

// Process-wide singletons, wired once at startup.
var (
	searchCache     *cache.TieredCache
	contentCache    *cache.TieredCache
	contentStore    *content.BoltStore
	supplierBreaker *circuitbreaker.CircuitBreaker
	statsStore      *stats.Store
	gw              *services.Gateway
)

const statsSaveInterval = 5 * time.Minute

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getNotifierTypeName(n notifier.Notifier) string {
	switch n.(type) {
	case *notifier.EmailNotifier:
		return "email"
	case *notifier.TelegramNotifier:
		return "telegram"
	case *notifier.NtfyNotifier:
		return "ntfy"
	default:
		return "unknown"
	}
}

func setupNotifiers() []notifier.Notifier {
	var notifiers []notifier.Notifier

	if smtpHost := os.Getenv("NOTIFIER_SMTP_HOST"); smtpHost != "" {
		emailNotifier := &notifier.EmailNotifier{
			SMTPHost:     smtpHost,
			SMTPPort:     getEnvOrDefault("NOTIFIER_SMTP_PORT", "587"),
			SMTPUsername: os.Getenv("NOTIFIER_SMTP_USERNAME"),
			SMTPPassword: os.Getenv("NOTIFIER_SMTP_PASSWORD"),
			FromEmail:    os.Getenv("NOTIFIER_FROM_EMAIL"),
			ToEmail:      os.Getenv("NOTIFIER_TO_EMAIL"),
		}
		notifiers = append(notifiers, emailNotifier)
		log.Infof("%s Email notifier enabled", logcolors.LogNotifier)
	}

	if botToken := os.Getenv("NOTIFIER_TELEGRAM_BOT_TOKEN"); botToken != "" {
		telegramNotifier := &notifier.TelegramNotifier{
			BotToken: botToken,
			ChatID:   os.Getenv("NOTIFIER_TELEGRAM_CHAT_ID"),
		}
		notifiers = append(notifiers, telegramNotifier)
		log.Infof("%s Telegram notifier enabled", logcolors.LogNotifier)
	}

	if topic := os.Getenv("NOTIFIER_NTFY_TOPIC"); topic != "" {
		ntfyNotifier := &notifier.NtfyNotifier{
			Topic:  topic,
			Server: getEnvOrDefault("NOTIFIER_NTFY_SERVER", "https://ntfy.sh"),
		}
		notifiers = append(notifiers, ntfyNotifier)
		log.Infof("%s Ntfy.sh notifier enabled", logcolors.LogNotifier)
	}

	return notifiers
}

// startAlertHandler subscribes configured notifiers to warning and critical
// gateway events (circuit open, booking failures, supplier rate limiting).
func startAlertHandler() {
	notifiers := setupNotifiers()
	if len(notifiers) == 0 {
		log.Infof("%s No notifiers configured, alerting disabled", logcolors.LogNotifier)
		log.Infof("%s To enable alerts, configure at least one notifier (Email, Telegram, or Ntfy.sh)", logcolors.LogNotifier)
		return
	}

	handler := notifier.NewAlertHandler(notifier.AlertConfig{Notifiers: notifiers})
	handler.Start()
	log.Infof("%s Alert handler started with %d notifier(s)", logcolors.LogNotifier, len(notifiers))
}

// initInfrastructure wires the caches, content store, supplier client and
// gateway. Persistence failures degrade to memory-only operation; a broken
// content store only disables enrichment.
func initInfrastructure() error {
	boltDB := openCacheDB()

	searchFresh, searchStale := conf.SearchCacheTTLs()
	contentFresh, contentStale := conf.ContentCacheTTLs()

	var err error
	searchCache, err = cache.New(cache.Options{
		Name:        "search",
		FreshTTL:    searchFresh,
		StaleTTL:    searchStale,
		DB:          boltDB,
		Compression: conf.FeatureFlags.CacheCompression,
	})
	if err != nil {
		return fmt.Errorf("search cache: %w", err)
	}

	contentCache, err = cache.New(cache.Options{
		Name:        "content",
		FreshTTL:    contentFresh,
		StaleTTL:    contentStale,
		DB:          boltDB,
		Compression: conf.FeatureFlags.CacheCompression,
	})
	if err != nil {
		return fmt.Errorf("content cache: %w", err)
	}

	contentStore, err = content.OpenBoltStore(conf.Configuration.ContentDBPath)
	if err != nil {
		// Enrichment degrades to cache-only; searches still work
		log.Warnf("%s Content store unavailable, enrichment will rely on cache: %v", logcolors.LogContent, err)
		notifier.PublishServerStartupFailed("content_store", err)
	}

	supplierThrottle := throttle.New(conf.MinRequestInterval())
	supplierBreaker = circuitbreaker.New(circuitbreaker.Config{
		Name:         "supplier",
		Threshold:    conf.Configuration.CircuitBreakerThreshold,
		ResetTimeout: time.Duration(conf.Configuration.CircuitBreakerResetSecs) * time.Second,
	})

	client := supplier.New(supplier.Config{
		BaseURL:     conf.Configuration.SupplierBaseURL,
		KeyID:       conf.Configuration.SupplierKeyID,
		APIKey:      conf.Configuration.SupplierAPIKey,
		Timeout:     time.Duration(conf.Configuration.SupplierTimeoutSec) * time.Second,
		RetryBudget: conf.Configuration.RetryBudget,
		BackoffBase: time.Duration(conf.Configuration.RetryBackoffBaseMs) * time.Millisecond,
	}, supplierThrottle, supplierBreaker)

	var store content.Store
	if contentStore != nil {
		store = contentStore
	} else {
		store = content.EmptyStore{}
	}
	resolver := content.NewResolver(store, contentCache, conf.Configuration.ContentBatchSize)

	gw = services.NewGateway(client, resolver, searchCache, conf.Configuration.DefaultEnrichmentLimit)

	initStatsStore()
	return nil
}

// initStatsStore restores counters from the previous run and starts the
// periodic save loop. A broken stats database only loses history.
func initStatsStore() {
	if !conf.FeatureFlags.CachePersistence {
		return
	}

	store, err := stats.NewStore(conf.Configuration.StatsDBPath)
	if err != nil {
		log.Warnf("%s Stats persistence unavailable: %v", logcolors.LogStats, err)
		return
	}
	if err := store.Load(); err != nil {
		log.Warnf("%s Failed to restore persisted stats: %v", logcolors.LogStats, err)
	}
	store.StartAutoSave(statsSaveInterval)
	statsStore = store
}

// openCacheDB opens the shared BoltDB handle, or nil for memory-only mode.
func openCacheDB() *bolt.DB {
	if !conf.FeatureFlags.CachePersistence {
		log.Infof("%s Cache persistence disabled, running memory-only", logcolors.LogCacheInit)
		return nil
	}

	db, err := cache.OpenDB(conf.Configuration.CacheDBPath)
	if err != nil {
		log.Warnf("%s Failed to open cache database, running memory-only: %v", logcolors.LogCacheInit, err)
		notifier.PublishServerStartupFailed("cache_db", err)
		return nil
	}
	return db
}

// limitMiddleware applies two-tier per-IP rate limiting. Requests that
// exhaust the live tier but fit the cached tier proceed in cache-only mode;
// a valid X-API-Key bypasses both tiers.
func limitMiddleware(next http.Handler, limiter *middleware.IPRateLimiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey != "" && conf.Configuration.APIKey != "" && apiKey == conf.Configuration.APIKey {
			w.Header().Set("X-RateLimit-Bypass", "true")
			ctx := context.WithValue(r.Context(), rateLimitTypeKey, "bypass")
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		limiters := limiter.GetLimiter(r.RemoteAddr)

		if limiters.Live.Allow() {
			stats.Get().RecordRateLimit("live")
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.GetLiveLimit()))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", limiters.GetLiveTokens()))
			w.Header().Set("X-RateLimit-Type", "live")
			ctx := context.WithValue(r.Context(), rateLimitTypeKey, "live")
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// Live tier exceeded, cached tier still allows cache-only serving
		if limiters.Cached.Allow() {
			stats.Get().RecordRateLimit("cached")
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.GetCachedLimit()))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", limiters.GetCachedTokens()))
			w.Header().Set("X-RateLimit-Type", "cached")
			log.Debugf("%s IP %s exceeded live tier, using cached tier", logcolors.LogRateLimit, r.RemoteAddr)
			ctx := context.WithValue(r.Context(), cacheOnlyModeKey, true)
			ctx = context.WithValue(ctx, rateLimitTypeKey, "cached")
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		stats.Get().RecordRateLimit("exceeded")
		log.Warnf("%s IP %s exceeded both rate limit tiers", logcolors.LogRateLimit, r.RemoteAddr)
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.GetCachedLimit()))
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Type", "exceeded")
		w.Header().Set("Retry-After", "1")
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
	})
}
