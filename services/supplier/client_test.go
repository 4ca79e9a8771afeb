package supplier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"hotel-api-go/circuitbreaker"
	"hotel-api-go/throttle"
)

func newTestClient(t *testing.T, serverURL string, budget int, backoff time.Duration) (*Client, *circuitbreaker.CircuitBreaker) {
	t.Helper()
	cb := circuitbreaker.New(circuitbreaker.Config{Name: "test", Threshold: 5, ResetTimeout: time.Minute})
	th := throttle.New(time.Millisecond)
	return New(Config{
		BaseURL:     serverURL,
		KeyID:       "key",
		APIKey:      "secret",
		RetryBudget: budget,
		BackoffBase: backoff,
	}, th, cb), cb
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{BaseURL: "http://x"}, throttle.New(time.Millisecond), circuitbreaker.New(circuitbreaker.Config{}))
	if c.retryBudget != 3 {
		t.Errorf("Expected default retry budget 3, got %d", c.retryBudget)
	}
	if c.backoffBase != 3*time.Second {
		t.Errorf("Expected default backoff base 3s, got %v", c.backoffBase)
	}
}

func TestPost_Success(t *testing.T) {
	var authed atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		authed.Store(ok && user == "key" && pass == "secret")
		w.Write([]byte(`{"status": "ok", "data": {"total_hotels": 3}}`))
	}))
	defer server.Close()

	c, cb := newTestClient(t, server.URL, 3, time.Millisecond)
	env, err := c.Post(context.Background(), EndpointRegionSearch, map[string]int{"region_id": 6289})
	if err != nil {
		t.Fatalf("Post() returned error: %v", err)
	}
	if env.Status != "ok" {
		t.Errorf("Expected ok status, got %q", env.Status)
	}
	if !authed.Load() {
		t.Error("Expected HTTP basic auth credentials on the request")
	}
	if cb.Failures() != 0 {
		t.Errorf("Expected success to reset breaker failures, got %d", cb.Failures())
	}
}

func TestPost_RetriesOn429ThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"status": "ok", "data": {}}`))
	}))
	defer server.Close()

	c, cb := newTestClient(t, server.URL, 3, 5*time.Millisecond)
	start := time.Now()
	_, err := c.Post(context.Background(), EndpointRegionSearch, nil)
	if err != nil {
		t.Fatalf("Post() returned error: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("Expected 3 upstream calls, got %d", got)
	}
	// Two retries: backoffs of base and 2*base
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("Expected cumulative backoff of at least 15ms, took %v", elapsed)
	}
	if cb.Failures() != 0 {
		t.Errorf("Expected final success to reset breaker failures, got %d", cb.Failures())
	}
}

func TestPost_RetryBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c, cb := newTestClient(t, server.URL, 2, time.Millisecond)
	_, err := c.Post(context.Background(), EndpointRegionSearch, nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Expected ErrRateLimited, got %v", err)
	}
	if got := calls.Load(); got != 3 { // initial + 2 retries
		t.Errorf("Expected 3 upstream calls for budget 2, got %d", got)
	}
	if cb.Failures() != 3 {
		t.Errorf("Expected every 429 to record a breaker failure, got %d", cb.Failures())
	}
}

func TestPost_CircuitOpenShortCircuits(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	c, cb := newTestClient(t, server.URL, 3, time.Millisecond)
	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}

	_, err := c.Post(context.Background(), EndpointRegionSearch, nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("Expected no upstream call with circuit open, got %d", calls.Load())
	}
}

func TestPost_SandboxRestrictionIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Sandbox restriction arrives with an error HTTP status here
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status": "error", "error": "sandbox_restriction"}`))
	}))
	defer server.Close()

	c, cb := newTestClient(t, server.URL, 3, time.Millisecond)
	env, err := c.Post(context.Background(), EndpointBookingFinish, nil)
	if err != nil {
		t.Fatalf("Expected sandbox restriction to be a success, got error: %v", err)
	}
	if !env.SandboxRestricted() {
		t.Error("Expected SandboxRestricted() to be true")
	}
	if cb.Failures() != 0 {
		t.Errorf("Expected sandbox response to count as success, failures = %d", cb.Failures())
	}
}

func TestPost_ServerErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"status": "error", "error": "internal"}`))
	}))
	defer server.Close()

	c, cb := newTestClient(t, server.URL, 3, time.Millisecond)
	_, err := c.Post(context.Background(), EndpointRegionSearch, nil)
	if err == nil {
		t.Fatal("Expected error for HTTP 500")
	}
	if cb.Failures() != 1 {
		t.Errorf("Expected one breaker failure, got %d", cb.Failures())
	}
}

func TestPost_BackoffAbortsOnContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, 3, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Post(ctx, EndpointRegionSearch, nil)
	if err == nil {
		t.Fatal("Expected error when context expires during backoff")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Expected prompt abort on cancellation, took %v", elapsed)
	}
}

func TestSearchRegion_ParsesData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok", "data": {"total_hotels": 1, "hotels": [{"hid": 42, "id": "test_hotel", "rates": [{"match_hash": "m-1", "room_name": "Standard Room"}]}]}}`))
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, 3, time.Millisecond)
	data, err := c.SearchRegion(context.Background(), RegionSearchRequest{RegionID: 6289})
	if err != nil {
		t.Fatalf("SearchRegion() returned error: %v", err)
	}
	if data.TotalHotels != 1 || len(data.Hotels) != 1 {
		t.Fatalf("Unexpected data: %+v", data)
	}
	if data.Hotels[0].HID != 42 || data.Hotels[0].Rates[0].MatchHash != "m-1" {
		t.Errorf("Unexpected hotel: %+v", data.Hotels[0])
	}
}

func TestPrebook_Sandbox(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok", "error": "sandbox_restriction"}`))
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, 3, time.Millisecond)
	data, sandbox, err := c.Prebook(context.Background(), "m-1", "en")
	if err != nil {
		t.Fatalf("Prebook() returned error: %v", err)
	}
	if !sandbox || data != nil {
		t.Errorf("Expected sandbox prebook, got data=%v sandbox=%v", data, sandbox)
	}
}
