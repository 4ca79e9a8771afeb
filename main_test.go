package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"hotel-api-go/cache"
	"hotel-api-go/circuitbreaker"
	"hotel-api-go/services"
	"hotel-api-go/services/content"
	"hotel-api-go/services/supplier"
	"hotel-api-go/throttle"
)

// setupTestEnvironment wires the package globals against a scripted
// supplier server and memory-only caches.
func setupTestEnvironment(t *testing.T, supplierHandler http.HandlerFunc) {
	t.Helper()

	server := httptest.NewServer(supplierHandler)
	t.Cleanup(server.Close)

	supplierBreaker = circuitbreaker.New(circuitbreaker.Config{
		Name: "test", Threshold: 5, ResetTimeout: time.Minute,
	})
	client := supplier.New(supplier.Config{
		BaseURL:     server.URL,
		KeyID:       "key",
		APIKey:      "secret",
		RetryBudget: 1,
		BackoffBase: time.Millisecond,
	}, throttle.New(time.Millisecond), supplierBreaker)

	var err error
	searchCache, err = cache.New(cache.Options{Name: "search-test", FreshTTL: time.Minute, StaleTTL: time.Hour})
	if err != nil {
		t.Fatalf("Failed to create search cache: %v", err)
	}
	contentCache, err = cache.New(cache.Options{Name: "content-test", FreshTTL: time.Minute, StaleTTL: time.Hour})
	if err != nil {
		t.Fatalf("Failed to create content cache: %v", err)
	}

	contentStore = nil
	resolver := content.NewResolver(content.EmptyStore{}, contentCache, 0)
	gw = services.NewGateway(client, resolver, searchCache, 0)

	// Health reporting checks for configured supplier credentials
	conf.Configuration.SupplierKeyID = "key"
	conf.Configuration.SupplierAPIKey = "secret"
	conf.Configuration.CacheAccessToken = ""
}

func TestParseChildren(t *testing.T) {
	tests := []struct {
		input    string
		expected []int
	}{
		{"", nil},
		{"4", []int{4}},
		{"4,7", []int{4, 7}},
		{" 4 , 7 ", []int{4, 7}},
		{"4,x,7", []int{4, 7}},
	}

	for _, tt := range tests {
		if got := parseChildren(tt.input); !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("parseChildren(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestSearchHandler_ValidatesParams(t *testing.T) {
	setupTestEnvironment(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("Supplier must not be called for invalid requests")
	})

	tests := []struct {
		name string
		url  string
	}{
		{"missing region_id", "/api/search?checkin=2025-03-01&checkout=2025-03-04"},
		{"bad region_id", "/api/search?region_id=abc&checkin=2025-03-01&checkout=2025-03-04"},
		{"missing dates", "/api/search?region_id=6289"},
		{"bad adults", "/api/search?region_id=6289&checkin=2025-03-01&checkout=2025-03-04&adults=0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			searchHandler(w, httptest.NewRequest("GET", tt.url, nil))

			if w.Code != http.StatusUnprocessableEntity {
				t.Errorf("Expected 422, got %d", w.Code)
			}
		})
	}
}

func TestSearchHandler_ServesAndCaches(t *testing.T) {
	calls := 0
	setupTestEnvironment(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"status": "ok", "data": {"total_hotels": 1, "hotels": [{"hid": 1, "id": "h1", "rates": [{"match_hash": "m-1", "room_name": "Standard"}]}]}}`))
	})

	url := "/api/search?region_id=6289&checkin=2025-03-01&checkout=2025-03-04&adults=2&currency=SAR"

	w := httptest.NewRecorder()
	searchHandler(w, httptest.NewRequest("GET", url, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Cache-Status"); got != "MISS" {
		t.Errorf("First call X-Cache-Status = %q, want MISS", got)
	}

	w = httptest.NewRecorder()
	searchHandler(w, httptest.NewRequest("GET", url, nil))
	if got := w.Header().Get("X-Cache-Status"); got != "HIT" {
		t.Errorf("Second call X-Cache-Status = %q, want HIT", got)
	}
	if calls != 1 {
		t.Errorf("Expected one supplier call, got %d", calls)
	}

	var result services.SearchResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to parse search body: %v", err)
	}
	if result.Total != 1 || result.Debug.Source != "cache" {
		t.Errorf("Unexpected cached result: %+v", result.Debug)
	}
}

func TestSearchHandler_CacheOnlyMode(t *testing.T) {
	setupTestEnvironment(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok", "data": {"total_hotels": 0, "hotels": []}}`))
	})

	url := "/api/search?region_id=6289&checkin=2025-03-01&checkout=2025-03-04&adults=2"

	// No cache yet: cache-only requests get a 429, not a supplier call
	r := httptest.NewRequest("GET", url, nil)
	r = r.WithContext(context.WithValue(r.Context(), cacheOnlyModeKey, true))
	w := httptest.NewRecorder()
	searchHandler(w, r)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429 in cache-only mode without cache, got %d", w.Code)
	}

	// Seed the cache with a live request, then cache-only succeeds
	w = httptest.NewRecorder()
	searchHandler(w, httptest.NewRequest("GET", url, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Seeding request failed: %d", w.Code)
	}

	r = httptest.NewRequest("GET", url, nil)
	r = r.WithContext(context.WithValue(r.Context(), cacheOnlyModeKey, true))
	w = httptest.NewRecorder()
	searchHandler(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("Expected cache-only hit, got %d", w.Code)
	}
	if got := w.Header().Get("X-Cache-Status"); got != "HIT" {
		t.Errorf("X-Cache-Status = %q, want HIT", got)
	}
}

func TestSearchHandler_CircuitOpenReturns503(t *testing.T) {
	setupTestEnvironment(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("Supplier must not be called with circuit open")
	})
	for i := 0; i < 5; i++ {
		supplierBreaker.RecordFailure()
	}

	w := httptest.NewRecorder()
	searchHandler(w, httptest.NewRequest("GET", "/api/search?region_id=6289&checkin=2025-03-01&checkout=2025-03-04", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 with circuit open and no cache, got %d", w.Code)
	}
}

func TestSuggestHandler_RequiresQuery(t *testing.T) {
	setupTestEnvironment(t, func(w http.ResponseWriter, r *http.Request) {})

	w := httptest.NewRecorder()
	suggestHandler(w, httptest.NewRequest("GET", "/api/suggest", nil))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for missing query, got %d", w.Code)
	}
}

func TestHotelHandler_NotFound(t *testing.T) {
	setupTestEnvironment(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok", "data": {"hotels": []}}`))
	})

	w := httptest.NewRecorder()
	hotelHandler(w, httptest.NewRequest("GET", "/api/hotel?hid=99&checkin=2025-03-01&checkout=2025-03-04", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown hotel, got %d", w.Code)
	}
}

func TestPrebookHandler_RequiresMatchHash(t *testing.T) {
	setupTestEnvironment(t, func(w http.ResponseWriter, r *http.Request) {})

	w := httptest.NewRecorder()
	prebookHandler(w, httptest.NewRequest("POST", "/api/prebook", nil))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for missing body, got %d", w.Code)
	}
}

func TestHealthStatus(t *testing.T) {
	setupTestEnvironment(t, func(w http.ResponseWriter, r *http.Request) {})

	w := httptest.NewRecorder()
	getHealthStatus(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var health map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("Failed to parse health body: %v", err)
	}
	if health["circuit_breaker"] != "CLOSED" {
		t.Errorf("Expected CLOSED breaker, got %v", health["circuit_breaker"])
	}

	// Open the circuit: status degrades
	for i := 0; i < 5; i++ {
		supplierBreaker.RecordFailure()
	}
	w = httptest.NewRecorder()
	getHealthStatus(w, httptest.NewRequest("GET", "/health", nil))
	json.Unmarshal(w.Body.Bytes(), &health)
	if health["status"] != "degraded" {
		t.Errorf("Expected degraded status with open circuit, got %v", health["status"])
	}
}

func TestGetStats_ReportsCircuitBreaker(t *testing.T) {
	setupTestEnvironment(t, func(w http.ResponseWriter, r *http.Request) {})
	conf.Configuration.CacheAccessToken = "admin-token"

	// Unauthorized without the access token
	w := httptest.NewRecorder()
	getStats(w, httptest.NewRequest("GET", "/stats", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without token, got %d", w.Code)
	}

	supplierBreaker.RecordFailure()

	r := httptest.NewRequest("GET", "/stats", nil)
	r.Header.Set("Authorization", "admin-token")
	w = httptest.NewRecorder()
	getStats(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse stats body: %v", err)
	}
	cb, ok := body["circuit_breaker"].(map[string]interface{})
	if !ok {
		t.Fatalf("Missing circuit_breaker section: %v", body)
	}
	if cb["state"] != "CLOSED" {
		t.Errorf("Expected CLOSED state, got %v", cb["state"])
	}
	if cb["failures"] != float64(1) {
		t.Errorf("Expected 1 failure, got %v", cb["failures"])
	}
}

func TestResetCircuitBreakerHandler(t *testing.T) {
	setupTestEnvironment(t, func(w http.ResponseWriter, r *http.Request) {})
	for i := 0; i < 5; i++ {
		supplierBreaker.RecordFailure()
	}

	w := httptest.NewRecorder()
	resetCircuitBreaker(w, httptest.NewRequest("POST", "/circuit-breaker/reset", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if supplierBreaker.State() != circuitbreaker.StateClosed {
		t.Errorf("Expected breaker reset to CLOSED, got %v", supplierBreaker.State())
	}
}
