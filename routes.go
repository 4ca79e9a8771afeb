package main

import (
	"github.com/gorilla/mux"
)

// setupRoutes configures all HTTP routes for the API
func setupRoutes(router *mux.Router) {
	// Public API endpoints
	router.HandleFunc("/api/suggest", suggestHandler)
	router.HandleFunc("/api/search", searchHandler)
	router.HandleFunc("/api/hotel", hotelHandler)

	// Booking pipeline: prebook -> create -> start -> status
	router.HandleFunc("/api/prebook", prebookHandler)
	router.HandleFunc("/api/booking/create", bookingCreateHandler)
	router.HandleFunc("/api/booking/start", bookingStartHandler)
	router.HandleFunc("/api/booking/status", bookingStatusHandler)

	// Content dump URL for offline store loading (admin)
	router.HandleFunc("/api/dump-url", dumpURLHandler)

	// Cache management endpoints
	router.HandleFunc("/cache", getCacheDump)
	router.HandleFunc("/cache/clear", clearCache)

	// Health and stats endpoints
	router.HandleFunc("/health", getHealthStatus)
	router.HandleFunc("/stats", getStats)

	// Circuit breaker endpoints
	router.HandleFunc("/circuit-breaker", getCircuitBreakerStatus)
	router.HandleFunc("/circuit-breaker/reset", resetCircuitBreaker)

	// Test/debug endpoints
	router.HandleFunc("/test-notifications", testNotifications)

	// Help endpoint
	router.HandleFunc("/", helpHandler)
}
