package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"hotel-api-go/cache"
	"hotel-api-go/circuitbreaker"
	"hotel-api-go/services/content"
	"hotel-api-go/services/supplier"
	"hotel-api-go/throttle"
)

// fakeStore serves canned content documents to the resolver.
type fakeStore struct {
	docs map[int64]json.RawMessage
	fail bool
}

func (f *fakeStore) FindByHIDs(ctx context.Context, hids []int64) (map[int64]json.RawMessage, error) {
	if f.fail {
		return nil, errors.New("store unavailable")
	}
	out := make(map[int64]json.RawMessage)
	for _, hid := range hids {
		if doc, ok := f.docs[hid]; ok {
			out[hid] = doc
		}
	}
	return out, nil
}

func hotelDoc(name string) json.RawMessage {
	doc := map[string]any{
		"name":        name,
		"address":     "1 Test St",
		"star_rating": 4,
		"images":      []string{"https://cdn.example/img/{size}/1.jpg"},
		"amenity_groups": []map[string]any{
			{"group_name": "General", "amenities": []string{"wifi"}},
		},
		"room_groups": []map[string]any{
			{
				"name":           "Standard Room",
				"images":         []string{"https://cdn.example/room/{size}/1.jpg"},
				"room_amenities": []string{"tv"},
			},
		},
	}
	data, _ := json.Marshal(doc)
	return data
}

// searchPayload builds a region-search envelope with n priced hotels.
func searchPayload(n int) []byte {
	hotels := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		hotels = append(hotels, map[string]any{
			"hid": i,
			"id":  fmt.Sprintf("hotel_%d", i),
			"rates": []map[string]any{{
				"match_hash": fmt.Sprintf("m-%d", i),
				"room_name":  "Standard Room",
				"payment_options": map[string]any{
					"payment_types": []map[string]any{{
						"show_amount":        fmt.Sprintf("%d.00", i*100),
						"show_currency_code": "SAR",
						"type":               "deposit",
						"cancellation_penalties": map[string]any{
							"free_cancellation_before": "2025-02-28T00:00:00",
						},
					}},
				},
			}},
		})
	}
	data, _ := json.Marshal(map[string]any{
		"status": "ok",
		"data":   map[string]any{"total_hotels": n, "hotels": hotels},
	})
	return data
}

type testEnv struct {
	gateway *Gateway
	breaker *circuitbreaker.CircuitBreaker
	calls   *atomic.Int32
	server  *httptest.Server
}

// newTestEnv wires a gateway against a scripted supplier and content store.
// The search cache gets a short fresh TTL so stale-window tests can wait it
// out without long sleeps.
func newTestEnv(t *testing.T, handler func(endpoint string, w http.ResponseWriter, r *http.Request), store content.Store, enrichLimit int) *testEnv {
	t.Helper()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(r.URL.Path, w, r)
	}))
	t.Cleanup(server.Close)

	cb := circuitbreaker.New(circuitbreaker.Config{Name: "test", Threshold: 5, ResetTimeout: time.Minute})
	client := supplier.New(supplier.Config{
		BaseURL:     server.URL,
		KeyID:       "key",
		APIKey:      "secret",
		RetryBudget: 1,
		BackoffBase: time.Millisecond,
	}, throttle.New(time.Millisecond), cb)

	contentCache, err := cache.New(cache.Options{Name: "content-test", FreshTTL: time.Minute, StaleTTL: time.Hour})
	if err != nil {
		t.Fatalf("Failed to create content cache: %v", err)
	}
	searchCache, err := cache.New(cache.Options{Name: "search-test", FreshTTL: 50 * time.Millisecond, StaleTTL: time.Hour})
	if err != nil {
		t.Fatalf("Failed to create search cache: %v", err)
	}

	resolver := content.NewResolver(store, contentCache, 0)
	return &testEnv{
		gateway: NewGateway(client, resolver, searchCache, enrichLimit),
		breaker: cb,
		calls:   &calls,
		server:  server,
	}
}

func TestSearchByRegion_EnrichmentAndCaching(t *testing.T) {
	store := &fakeStore{docs: map[int64]json.RawMessage{}}
	for i := int64(1); i <= 8; i++ {
		store.docs[i] = hotelDoc(fmt.Sprintf("Hotel %d", i))
	}

	env := newTestEnv(t, func(endpoint string, w http.ResponseWriter, r *http.Request) {
		if endpoint != supplier.EndpointRegionSearch {
			t.Errorf("Unexpected endpoint %s", endpoint)
		}
		w.Write(searchPayload(8))
	}, store, 5)

	params := SearchParams{Checkin: "2025-03-01", Checkout: "2025-03-04", Adults: 2, Currency: "SAR"}
	result, err := env.gateway.SearchByRegion(context.Background(), 6289, params)
	if err != nil {
		t.Fatalf("SearchByRegion() returned error: %v", err)
	}

	if result.Debug.Source != "live" {
		t.Errorf("Expected live source, got %q", result.Debug.Source)
	}
	if result.Total != 8 || len(result.Hotels) != 8 {
		t.Fatalf("Expected 8 hotels, got total=%d len=%d", result.Total, len(result.Hotels))
	}
	// Cold cache with limit 5: only the first 5 get content
	if result.Debug.EffectiveLimit != 5 {
		t.Errorf("Expected effective limit 5, got %d", result.Debug.EffectiveLimit)
	}
	if result.Debug.Enriched != 5 {
		t.Errorf("Expected 5 enriched hotels, got %d", result.Debug.Enriched)
	}
	for i, h := range result.Hotels {
		if want := i < 5; h.IsEnriched != want {
			t.Errorf("Hotel %d: IsEnriched = %v, want %v", i, h.IsEnriched, want)
		}
	}
	if result.Hotels[0].Name != "Hotel 1" || result.Hotels[0].StarRating != 4 {
		t.Errorf("Expected enriched content on first hotel, got %+v", result.Hotels[0])
	}
	if result.Hotels[0].Price != "100.00" || result.Hotels[0].Currency != "SAR" {
		t.Errorf("Unexpected lead price: %+v", result.Hotels[0])
	}
	if !result.Hotels[0].FreeCancellation {
		t.Error("Expected free cancellation flag")
	}

	// Identical search within the fresh window: no new supplier call
	before := env.calls.Load()
	cached, err := env.gateway.SearchByRegion(context.Background(), 6289, params)
	if err != nil {
		t.Fatalf("Cached SearchByRegion() returned error: %v", err)
	}
	if cached.Debug.Source != "cache" {
		t.Errorf("Expected cache source, got %q", cached.Debug.Source)
	}
	if env.calls.Load() != before {
		t.Errorf("Expected no new upstream calls, got %d extra", env.calls.Load()-before)
	}
}

func TestSearchByRegion_ConvergesAcrossCalls(t *testing.T) {
	store := &fakeStore{docs: map[int64]json.RawMessage{}}
	for i := int64(1); i <= 6; i++ {
		store.docs[i] = hotelDoc(fmt.Sprintf("Hotel %d", i))
	}

	env := newTestEnv(t, func(endpoint string, w http.ResponseWriter, r *http.Request) {
		w.Write(searchPayload(6))
	}, store, 3)

	params := SearchParams{Checkin: "2025-03-01", Checkout: "2025-03-04", Adults: 2, Currency: "SAR"}
	first, err := env.gateway.SearchByRegion(context.Background(), 6289, params)
	if err != nil {
		t.Fatalf("First search failed: %v", err)
	}
	if first.Debug.EffectiveLimit != 3 {
		t.Fatalf("Expected effective limit 3, got %d", first.Debug.EffectiveLimit)
	}

	// Wait out the fresh search TTL so the second call hits the supplier
	// again, this time with 3 hotels already content-cached
	time.Sleep(60 * time.Millisecond)
	second, err := env.gateway.SearchByRegion(context.Background(), 6289, params)
	if err != nil {
		t.Fatalf("Second search failed: %v", err)
	}
	if second.Debug.Source != "live" {
		t.Fatalf("Expected live source on second call, got %q", second.Debug.Source)
	}
	if second.Debug.CachedContent != 3 {
		t.Errorf("Expected 3 content-cached hotels, got %d", second.Debug.CachedContent)
	}
	if second.Debug.EffectiveLimit != 6 {
		t.Errorf("Expected effective limit to grow to 6, got %d", second.Debug.EffectiveLimit)
	}
}

func TestSearchByRegion_StaleFallbackWhenCircuitOpen(t *testing.T) {
	env := newTestEnv(t, func(endpoint string, w http.ResponseWriter, r *http.Request) {
		w.Write(searchPayload(2))
	}, &fakeStore{}, 0)

	params := SearchParams{Checkin: "2025-03-01", Checkout: "2025-03-04", Adults: 2, Currency: "SAR"}
	if _, err := env.gateway.SearchByRegion(context.Background(), 6289, params); err != nil {
		t.Fatalf("Seeding search failed: %v", err)
	}

	// Entry goes stale, then the circuit opens
	time.Sleep(60 * time.Millisecond)
	for i := 0; i < 5; i++ {
		env.breaker.RecordFailure()
	}

	before := env.calls.Load()
	result, err := env.gateway.SearchByRegion(context.Background(), 6289, params)
	if err != nil {
		t.Fatalf("Expected stale fallback, got error: %v", err)
	}
	if result.Debug.Source != "stale" {
		t.Errorf("Expected stale source, got %q", result.Debug.Source)
	}
	if result.Debug.StaleAgeMs <= 0 {
		t.Errorf("Expected positive stale age, got %d", result.Debug.StaleAgeMs)
	}
	if env.calls.Load() != before {
		t.Error("Expected no upstream call with circuit open")
	}
}

func TestSearchByRegion_CircuitOpenWithoutCacheFails(t *testing.T) {
	env := newTestEnv(t, func(endpoint string, w http.ResponseWriter, r *http.Request) {
		w.Write(searchPayload(1))
	}, &fakeStore{}, 0)

	for i := 0; i < 5; i++ {
		env.breaker.RecordFailure()
	}

	_, err := env.gateway.SearchByRegion(context.Background(), 6289, SearchParams{Checkin: "2025-03-01", Checkout: "2025-03-04", Adults: 2})
	if !errors.Is(err, supplier.ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
	if env.calls.Load() != 0 {
		t.Error("Expected no upstream call")
	}
}

func TestSearchByRegion_UpstreamErrorFallsBackToStale(t *testing.T) {
	var failing atomic.Bool
	env := newTestEnv(t, func(endpoint string, w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write(searchPayload(2))
	}, &fakeStore{}, 0)

	params := SearchParams{Checkin: "2025-03-01", Checkout: "2025-03-04", Adults: 2, Currency: "SAR"}
	if _, err := env.gateway.SearchByRegion(context.Background(), 6289, params); err != nil {
		t.Fatalf("Seeding search failed: %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	failing.Store(true)

	result, err := env.gateway.SearchByRegion(context.Background(), 6289, params)
	if err != nil {
		t.Fatalf("Expected stale fallback after upstream error, got: %v", err)
	}
	if result.Debug.Source != "stale" {
		t.Errorf("Expected stale source, got %q", result.Debug.Source)
	}
}

func TestGetHotelDetails_RoomMatching(t *testing.T) {
	store := &fakeStore{docs: map[int64]json.RawMessage{42: hotelDoc("Test Hotel")}}
	env := newTestEnv(t, func(endpoint string, w http.ResponseWriter, r *http.Request) {
		if endpoint != supplier.EndpointHotelPage {
			t.Errorf("Unexpected endpoint %s", endpoint)
		}
		w.Write([]byte(`{"status": "ok", "data": {"hotels": [{"hid": 42, "id": "test_hotel", "rates": [
			{"match_hash": "m-1", "room_name": "Standard Room (City View)", "payment_options": {"payment_types": [{"show_amount": "350.00", "show_currency_code": "SAR", "type": "deposit"}]}},
			{"match_hash": "m-2", "room_name": "Penthouse Suite"}
		]}]}}`))
	}, store, 0)

	detail, err := env.gateway.GetHotelDetails(context.Background(), 42, HotelDetailParams{
		Checkin: "2025-03-01", Checkout: "2025-03-04", Adults: 2, Currency: "SAR",
	})
	if err != nil {
		t.Fatalf("GetHotelDetails() returned error: %v", err)
	}

	if detail.Name != "Test Hotel" || !detail.IsEnriched {
		t.Errorf("Expected enriched detail, got %+v", detail)
	}
	if len(detail.Rates) != 2 {
		t.Fatalf("Expected 2 rates, got %d", len(detail.Rates))
	}

	// "Standard Room (City View)" prefix-matches group "Standard Room"
	matched := detail.Rates[0]
	if !matched.RoomMatched {
		t.Error("Expected first rate to match a room group")
	}
	if len(matched.Images) != 1 || matched.Images[0] != "https://cdn.example/room/x500/1.jpg" {
		t.Errorf("Expected full-size room image, got %v", matched.Images)
	}
	if matched.Amount != "350.00" || matched.Currency != "SAR" {
		t.Errorf("Unexpected rate price: %+v", matched)
	}

	// "Penthouse Suite" has no group: hotel primary image at reduced size
	fallback := detail.Rates[1]
	if fallback.RoomMatched {
		t.Error("Expected second rate to fall back")
	}
	if len(fallback.Images) != 1 || fallback.Images[0] != "https://cdn.example/img/x220/1.jpg" {
		t.Errorf("Expected reduced hotel image fallback, got %v", fallback.Images)
	}
}

func TestGetHotelDetails_NotFound(t *testing.T) {
	env := newTestEnv(t, func(endpoint string, w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok", "data": {"hotels": []}}`))
	}, &fakeStore{}, 0)

	_, err := env.gateway.GetHotelDetails(context.Background(), 99, HotelDetailParams{Checkin: "2025-03-01", Checkout: "2025-03-04", Adults: 2})
	if !errors.Is(err, ErrHotelNotFound) {
		t.Fatalf("Expected ErrHotelNotFound, got %v", err)
	}
}

func TestPrebook_MissingBookHashHaltsPipeline(t *testing.T) {
	env := newTestEnv(t, func(endpoint string, w http.ResponseWriter, r *http.Request) {
		// Rate came back but without a book_hash
		w.Write([]byte(`{"status": "ok", "data": {"hotels": [{"hid": 1, "rates": [{"match_hash": "m-1", "room_name": "Standard"}]}]}}`))
	}, &fakeStore{}, 0)

	result, err := env.gateway.Prebook(context.Background(), "m-1", "en")
	if err != nil {
		t.Fatalf("Prebook() returned error: %v", err)
	}
	if result.Success {
		t.Error("Expected structured failure for missing book_hash")
	}
	if result.Error == "" {
		t.Error("Expected failure reason")
	}
}

func TestPrebook_Success(t *testing.T) {
	env := newTestEnv(t, func(endpoint string, w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok", "data": {"hotels": [{"hid": 1, "rates": [{"match_hash": "m-1", "book_hash": "b-1", "room_name": "Standard"}]}], "changes": {"price_changed": true}}}`))
	}, &fakeStore{}, 0)

	result, err := env.gateway.Prebook(context.Background(), "m-1", "en")
	if err != nil {
		t.Fatalf("Prebook() returned error: %v", err)
	}
	if !result.Success || result.BookHash != "b-1" {
		t.Errorf("Expected successful prebook with book_hash, got %+v", result)
	}
	if !result.PriceChanged {
		t.Error("Expected price change flag to propagate")
	}
}

func TestCreateBooking_EmptyBookHashSkipsSupplier(t *testing.T) {
	env := newTestEnv(t, func(endpoint string, w http.ResponseWriter, r *http.Request) {
		t.Error("Supplier must not be called without a book_hash")
	}, &fakeStore{}, 0)

	result, err := env.gateway.CreateBooking(context.Background(), "", CreateBookingParams{PartnerOrderID: "order-1"})
	if err != nil {
		t.Fatalf("CreateBooking() returned error: %v", err)
	}
	if result.Success {
		t.Error("Expected structured failure for empty book_hash")
	}
	if env.calls.Load() != 0 {
		t.Errorf("Expected no supplier calls, got %d", env.calls.Load())
	}
}

func TestBookingPipeline_Sandbox(t *testing.T) {
	env := newTestEnv(t, func(endpoint string, w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok", "error": "sandbox_restriction"}`))
	}, &fakeStore{}, 0)

	ctx := context.Background()

	create, err := env.gateway.CreateBooking(ctx, "b-1", CreateBookingParams{PartnerOrderID: "order-1", UserIP: "1.2.3.4"})
	if err != nil || !create.Success || !create.Sandbox {
		t.Fatalf("Expected sandbox create success, got %+v, err %v", create, err)
	}

	start, err := env.gateway.StartBooking(ctx, "order-1", StartBookingParams{
		User: supplier.BookingUser{Email: "guest@example.com", Phone: "+966500000000"},
		Rooms: []supplier.BookingRoom{
			{Guests: []supplier.BookingGuest{{FirstName: "Test", LastName: "Guest"}}},
		},
	})
	if err != nil || !start.Success || !start.Sandbox {
		t.Fatalf("Expected sandbox start success, got %+v, err %v", start, err)
	}

	status, err := env.gateway.CheckBookingStatus(ctx, "order-1")
	if err != nil || !status.Success || !status.Sandbox {
		t.Fatalf("Expected sandbox status success, got %+v, err %v", status, err)
	}
	if status.Status != BookingStatusOK {
		t.Errorf("Expected simulated terminal ok, got %q", status.Status)
	}
}

func TestStartBooking_MissingOrderIDHalts(t *testing.T) {
	env := newTestEnv(t, func(endpoint string, w http.ResponseWriter, r *http.Request) {
		t.Error("Supplier must not be called without a partner_order_id")
	}, &fakeStore{}, 0)

	result, err := env.gateway.StartBooking(context.Background(), "", StartBookingParams{})
	if err != nil {
		t.Fatalf("StartBooking() returned error: %v", err)
	}
	if result.Success {
		t.Error("Expected structured failure")
	}
}

func TestCheckBookingStatus_Terminal(t *testing.T) {
	cases := []struct {
		name        string
		status      string
		wantSuccess bool
	}{
		{"confirmed", "ok", true},
		{"failed", "error", false},
		{"processing", "processing", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, func(endpoint string, w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"status": "ok", "data": {"partner_order_id": "order-1", "status": %q}}`, tc.status)
			}, &fakeStore{}, 0)

			result, err := env.gateway.CheckBookingStatus(context.Background(), "order-1")
			if err != nil {
				t.Fatalf("CheckBookingStatus() returned error: %v", err)
			}
			if result.Success != tc.wantSuccess {
				t.Errorf("Success = %v, want %v", result.Success, tc.wantSuccess)
			}
			if result.Status != tc.status {
				t.Errorf("Status = %q, want %q", result.Status, tc.status)
			}
		})
	}
}

func TestSuggest(t *testing.T) {
	env := newTestEnv(t, func(endpoint string, w http.ResponseWriter, r *http.Request) {
		if endpoint != supplier.EndpointMulticomplete {
			t.Errorf("Unexpected endpoint %s", endpoint)
		}
		w.Write([]byte(`{"status": "ok", "data": {"hotels": [{"hid": 1, "id": "h1", "name": "Hilton Riyadh", "region_id": 6289}], "regions": [{"id": 6289, "name": "Riyadh", "type": "City", "country_code": "SA"}]}}`))
	}, &fakeStore{}, 0)

	result, err := env.gateway.Suggest(context.Background(), "riyadh", "en")
	if err != nil {
		t.Fatalf("Suggest() returned error: %v", err)
	}
	if len(result.Hotels) != 1 || len(result.Regions) != 1 {
		t.Fatalf("Unexpected result: %+v", result)
	}
	if result.Regions[0].Name != "Riyadh" {
		t.Errorf("Unexpected region: %+v", result.Regions[0])
	}
}
