package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"hotel-api-go/cache"
	"hotel-api-go/logcolors"
	"hotel-api-go/services"
	"hotel-api-go/services/notifier"
	"hotel-api-go/services/supplier"
	"hotel-api-go/stats"
)

// supplierErrorStatus maps gateway errors to HTTP status codes.
func supplierErrorStatus(err error) int {
	switch {
	case errors.Is(err, supplier.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, supplier.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrHotelNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

// parseChildren parses a comma-separated list of children ages ("4,7").
func parseChildren(raw string) []int {
	if raw == "" {
		return nil
	}
	var ages []int
	for _, part := range strings.Split(raw, ",") {
		if age, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			ages = append(ages, age)
		}
	}
	return ages
}

// parseStayParams extracts the shared pricing knobs from query parameters.
func parseStayParams(r *http.Request) (checkin, checkout string, adults int, children []int, err error) {
	q := r.URL.Query()
	checkin = q.Get("checkin")
	checkout = q.Get("checkout")
	if checkin == "" || checkout == "" {
		return "", "", 0, nil, errors.New("checkin and checkout are required (YYYY-MM-DD)")
	}

	adults = 2
	if raw := q.Get("adults"); raw != "" {
		adults, err = strconv.Atoi(raw)
		if err != nil || adults < 1 {
			return "", "", 0, nil, errors.New("adults must be a positive integer")
		}
	}

	return checkin, checkout, adults, parseChildren(q.Get("children")), nil
}

func suggestHandler(w http.ResponseWriter, r *http.Request) {
	stats.Get().RecordRequest("/api/suggest")

	query := r.URL.Query().Get("q")
	if query == "" {
		Respond(w, r).Error(http.StatusUnprocessableEntity, map[string]interface{}{
			"error": "Query parameter 'q' is required",
		})
		return
	}

	result, err := gw.Suggest(r.Context(), query, r.URL.Query().Get("lang"))
	if err != nil {
		log.Errorf("%s Suggest failed: %v", logcolors.LogSuggest, err)
		Respond(w, r).Error(supplierErrorStatus(err), map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	Respond(w, r).JSON(result)
}

func searchHandler(w http.ResponseWriter, r *http.Request) {
	stats.Get().RecordRequest("/api/search")
	q := r.URL.Query()

	regionID, err := strconv.ParseInt(q.Get("region_id"), 10, 64)
	if err != nil || regionID <= 0 {
		Respond(w, r).Error(http.StatusUnprocessableEntity, map[string]interface{}{
			"error": "Query parameter 'region_id' is required and must be a positive integer",
		})
		return
	}

	checkin, checkout, adults, children, err := parseStayParams(r)
	if err != nil {
		Respond(w, r).Error(http.StatusUnprocessableEntity, map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	params := services.SearchParams{
		Checkin:   checkin,
		Checkout:  checkout,
		Adults:    adults,
		Children:  children,
		Residency: q.Get("residency"),
		Language:  q.Get("lang"),
		Currency:  q.Get("currency"),
	}
	if raw := q.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			params.EnrichmentLimit = limit
		}
	}

	// Cache-only tier: serve a fresh cached search or tell the caller to
	// slow down, never touch the supplier
	if cacheOnly, _ := r.Context().Value(cacheOnlyModeKey).(bool); cacheOnly {
		if result, ok := gw.SearchCached(regionID, params); ok {
			Respond(w, r).SetCacheStatus("HIT").SetSource(result.Debug.Source).JSON(result)
			return
		}
		stats.Get().RecordRateLimit("exceeded")
		w.Header().Set("Retry-After", "60")
		Respond(w, r).SetCacheStatus("MISS").Error(http.StatusTooManyRequests, map[string]interface{}{
			"error":   "Rate limit exceeded. This request requires cached data, but no cache is available for this search.",
			"message": "Please try again later or reduce your request rate.",
		})
		return
	}

	result, err := gw.SearchByRegion(r.Context(), regionID, params)
	if err != nil {
		log.Errorf("%s Search for region %d failed: %v", logcolors.LogSearch, regionID, err)
		Respond(w, r).Error(supplierErrorStatus(err), map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	cacheStatus := "MISS"
	switch result.Debug.Source {
	case "cache":
		cacheStatus = "HIT"
	case "stale":
		cacheStatus = "STALE"
	}
	Respond(w, r).SetCacheStatus(cacheStatus).SetSource(result.Debug.Source).JSON(result)
}

func hotelHandler(w http.ResponseWriter, r *http.Request) {
	stats.Get().RecordRequest("/api/hotel")
	q := r.URL.Query()

	hid, err := strconv.ParseInt(q.Get("hid"), 10, 64)
	if err != nil || hid <= 0 {
		Respond(w, r).Error(http.StatusUnprocessableEntity, map[string]interface{}{
			"error": "Query parameter 'hid' is required and must be a positive integer",
		})
		return
	}

	checkin, checkout, adults, children, err := parseStayParams(r)
	if err != nil {
		Respond(w, r).Error(http.StatusUnprocessableEntity, map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	detail, err := gw.GetHotelDetails(r.Context(), hid, services.HotelDetailParams{
		Checkin:   checkin,
		Checkout:  checkout,
		Adults:    adults,
		Children:  children,
		Language:  q.Get("lang"),
		Currency:  q.Get("currency"),
		MatchHash: q.Get("match_hash"),
	})
	if err != nil {
		log.Errorf("%s Hotel page for hid %d failed: %v", logcolors.LogHotel, hid, err)
		Respond(w, r).Error(supplierErrorStatus(err), map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	// Rate details are never cached, book hashes are time-sensitive
	Respond(w, r).SetSource("live").JSON(detail)
}

func prebookHandler(w http.ResponseWriter, r *http.Request) {
	stats.Get().RecordRequest("/api/prebook")

	var body struct {
		MatchHash string `json:"match_hash"`
		Language  string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.MatchHash == "" {
		Respond(w, r).Error(http.StatusUnprocessableEntity, map[string]interface{}{
			"error": "Request body must contain 'match_hash'",
		})
		return
	}

	result, err := gw.Prebook(r.Context(), body.MatchHash, body.Language)
	if err != nil {
		log.Errorf("%s Prebook failed: %v", logcolors.LogPrebook, err)
		Respond(w, r).Error(supplierErrorStatus(err), map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	Respond(w, r).JSON(result)
}

func bookingCreateHandler(w http.ResponseWriter, r *http.Request) {
	stats.Get().RecordRequest("/api/booking/create")

	var body struct {
		BookHash       string `json:"book_hash"`
		PartnerOrderID string `json:"partner_order_id"`
		UserIP         string `json:"user_ip"`
		Language       string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PartnerOrderID == "" {
		Respond(w, r).Error(http.StatusUnprocessableEntity, map[string]interface{}{
			"error": "Request body must contain 'partner_order_id'",
		})
		return
	}
	if body.UserIP == "" {
		body.UserIP = r.RemoteAddr
	}

	result, err := gw.CreateBooking(r.Context(), body.BookHash, services.CreateBookingParams{
		PartnerOrderID: body.PartnerOrderID,
		UserIP:         body.UserIP,
		Language:       body.Language,
	})
	if err != nil {
		log.Errorf("%s Booking create failed: %v", logcolors.LogBooking, err)
		Respond(w, r).Error(supplierErrorStatus(err), map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	Respond(w, r).JSON(result)
}

func bookingStartHandler(w http.ResponseWriter, r *http.Request) {
	stats.Get().RecordRequest("/api/booking/start")

	var body struct {
		PartnerOrderID string                 `json:"partner_order_id"`
		User           supplier.BookingUser   `json:"user"`
		Rooms          []supplier.BookingRoom `json:"rooms"`
		PaymentType    supplier.PaymentType   `json:"payment_type"`
		SupplierData   map[string]any         `json:"supplier_data"`
		Language       string                 `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		Respond(w, r).Error(http.StatusUnprocessableEntity, map[string]interface{}{
			"error": "Invalid request body",
		})
		return
	}

	result, err := gw.StartBooking(r.Context(), body.PartnerOrderID, services.StartBookingParams{
		User:         body.User,
		Rooms:        body.Rooms,
		PaymentType:  body.PaymentType,
		SupplierData: body.SupplierData,
		Language:     body.Language,
	})
	if err != nil {
		log.Errorf("%s Booking start failed: %v", logcolors.LogBooking, err)
		Respond(w, r).Error(supplierErrorStatus(err), map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	Respond(w, r).JSON(result)
}

func bookingStatusHandler(w http.ResponseWriter, r *http.Request) {
	stats.Get().RecordRequest("/api/booking/status")

	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		Respond(w, r).Error(http.StatusUnprocessableEntity, map[string]interface{}{
			"error": "Query parameter 'order_id' is required",
		})
		return
	}

	result, err := gw.CheckBookingStatus(r.Context(), orderID)
	if err != nil {
		log.Errorf("%s Booking status for %q failed: %v", logcolors.LogBooking, orderID, err)
		Respond(w, r).Error(supplierErrorStatus(err), map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	Respond(w, r).JSON(result)
}

func dumpURLHandler(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != conf.Configuration.CacheAccessToken {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	inventory := r.URL.Query().Get("inventory")
	if inventory == "" {
		inventory = "all"
	}

	url, err := gw.HotelDumpURL(r.Context(), inventory, r.URL.Query().Get("lang"))
	if err != nil {
		Respond(w, r).Error(supplierErrorStatus(err), map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	Respond(w, r).JSON(map[string]interface{}{
		"url":       url,
		"inventory": inventory,
	})
}

func getStats(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != conf.Configuration.CacheAccessToken {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	snapshot := stats.Get().Snapshot()

	searchKeys, searchKB := searchCache.Stats()
	contentKeys, contentKB := contentCache.Stats()
	cbState, cbFailures, cbLastFailure := supplierBreaker.Stats()

	storeCount := 0
	if contentStore != nil {
		if n, err := contentStore.Count(); err == nil {
			storeCount = n
		}
	}

	Respond(w, r).JSON(map[string]interface{}{
		"stats": snapshot,
		"cache_storage": map[string]interface{}{
			"search_keys":  searchKeys,
			"search_kb":    searchKB,
			"content_keys": contentKeys,
			"content_kb":   contentKB,
		},
		"content_store": map[string]interface{}{"hotels": storeCount},
		"circuit_breaker": map[string]interface{}{
			"state":        cbState.String(),
			"failures":     cbFailures,
			"last_failure": cbLastFailure,
		},
	})
}

func getCacheDump(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != conf.Configuration.CacheAccessToken {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	searchKeys, searchKB := searchCache.Stats()
	contentKeys, contentKB := contentCache.Stats()
	s := stats.Get()

	response := CacheDumpResponse{
		Search: CacheInstanceInfo{
			NumberOfKeys: searchKeys,
			SizeInKB:     searchKB,
			SizeInMB:     float64(searchKB) / 1024,
			FreshTTL:     searchCache.FreshTTL().String(),
			StaleTTL:     searchCache.StaleTTL().String(),
		},
		Content: CacheInstanceInfo{
			NumberOfKeys: contentKeys,
			SizeInKB:     contentKB,
			SizeInMB:     float64(contentKB) / 1024,
			FreshTTL:     contentCache.FreshTTL().String(),
			StaleTTL:     contentCache.StaleTTL().String(),
		},
		Performance: CachePerformance{
			SearchHits:   s.SearchCacheHits.Load(),
			SearchMisses: s.SearchCacheMisses.Load(),
			StaleHits:    s.StaleCacheHits.Load(),
			ContentHits:  s.ContentCacheHits.Load(),
			HitRate:      s.Snapshot().SearchHitRate,
		},
	}

	// Key listing on demand, the full dump can be large
	if r.URL.Query().Get("keys") == "true" {
		searchCache.Range(func(key string, _ cache.Entry) bool {
			response.Keys = append(response.Keys, "search:"+key)
			return true
		})
		contentCache.Range(func(key string, _ cache.Entry) bool {
			response.Keys = append(response.Keys, "content:"+key)
			return true
		})
	}

	Respond(w, r).JSON(response)
}

func clearCache(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != conf.Configuration.CacheAccessToken {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := searchCache.Clear(); err != nil {
		log.Errorf("%s Failed to clear search cache: %v", logcolors.LogCacheClear, err)
		Respond(w, r).Error(http.StatusInternalServerError, map[string]interface{}{
			"error": fmt.Sprintf("Failed to clear search cache: %v", err),
		})
		return
	}
	if err := contentCache.Clear(); err != nil {
		log.Errorf("%s Failed to clear content cache: %v", logcolors.LogCacheClear, err)
		Respond(w, r).Error(http.StatusInternalServerError, map[string]interface{}{
			"error": fmt.Sprintf("Failed to clear content cache: %v", err),
		})
		return
	}

	log.Infof("%s Search and content caches cleared", logcolors.LogCacheClear)
	notifier.PublishCacheCleared("search+content")
	Respond(w, r).JSON(map[string]interface{}{
		"message": "Caches cleared successfully",
	})
}

func getHealthStatus(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":          "ok",
		"sandbox":         conf.Configuration.SupplierSandbox,
		"circuit_breaker": supplierBreaker.State().String(),
	}

	if supplierBreaker.IsOpen() {
		health["status"] = "degraded"
		health["circuit_breaker_retry_in"] = supplierBreaker.TimeUntilRetry().String()
	}

	if conf.Configuration.SupplierKeyID == "" || conf.Configuration.SupplierAPIKey == "" {
		health["status"] = "unhealthy"
		health["error"] = "no supplier credentials configured"
	}

	Respond(w, r).JSON(health)
}

func getCircuitBreakerStatus(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != conf.Configuration.CacheAccessToken {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	Respond(w, r).JSON(map[string]interface{}{
		"state":            supplierBreaker.State().String(),
		"failures":         supplierBreaker.Failures(),
		"time_until_retry": supplierBreaker.TimeUntilRetry().String(),
		"config": map[string]interface{}{
			"threshold":  conf.Configuration.CircuitBreakerThreshold,
			"reset_secs": conf.Configuration.CircuitBreakerResetSecs,
		},
	})
}

func resetCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != conf.Configuration.CacheAccessToken {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	supplierBreaker.Reset()

	Respond(w, r).JSON(map[string]interface{}{
		"message": "Circuit breaker reset to CLOSED state",
	})
}

func testNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != conf.Configuration.CacheAccessToken {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	notifiers := setupNotifiers()
	if len(notifiers) == 0 {
		Respond(w, r).Error(http.StatusBadRequest, map[string]interface{}{
			"error": "No notifiers configured. Please configure at least one notifier in your .env file.",
			"help": map[string]string{
				"telegram": "Set NOTIFIER_TELEGRAM_BOT_TOKEN and NOTIFIER_TELEGRAM_CHAT_ID",
				"email":    "Set NOTIFIER_SMTP_HOST, NOTIFIER_SMTP_USERNAME, NOTIFIER_SMTP_PASSWORD, etc.",
				"ntfy":     "Set NOTIFIER_NTFY_TOPIC",
			},
		})
		return
	}

	subject := "Test: Hotel API Gateway Alerts"
	message := fmt.Sprintf(
		"HOTEL API GATEWAY - TEST NOTIFICATION\n\n"+
			"Status: Your notification setup is working correctly.\n\n"+
			"Circuit breaker: %s\n"+
			"Sandbox mode:    %v\n\n"+
			"You will receive similar notifications for circuit breaker\n"+
			"openings, booking failures and supplier rate limiting.",
		supplierBreaker.State(), conf.Configuration.SupplierSandbox,
	)

	results := make(map[string]interface{})
	successCount := 0
	failCount := 0
	for _, n := range notifiers {
		notifierType := getNotifierTypeName(n)
		if err := n.Send(subject, message); err != nil {
			results[notifierType] = map[string]string{"status": "failed", "error": err.Error()}
			failCount++
			log.Errorf("%s %s failed: %v", logcolors.LogNotifier, notifierType, err)
		} else {
			results[notifierType] = map[string]string{"status": "success"}
			successCount++
			log.Infof("%s %s sent successfully", logcolors.LogNotifier, notifierType)
		}
	}

	if failCount > 0 {
		w.WriteHeader(http.StatusPartialContent)
	}
	Respond(w, r).JSON(map[string]interface{}{
		"message":    "Test notifications sent",
		"total":      len(notifiers),
		"successful": successCount,
		"failed":     failCount,
		"results":    results,
	})
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"name": "hotel-api-go",
		"endpoints": map[string]string{
			"/api/suggest":        "Typeahead search. Params: q, lang",
			"/api/search":         "Priced region search. Params: region_id, checkin, checkout, adults, children, currency, residency, lang, limit",
			"/api/hotel":          "Hotel rates and content. Params: hid, checkin, checkout, adults, children, currency, match_hash, lang",
			"/api/prebook":        "POST {match_hash, language}. Exchanges a match_hash for a book_hash",
			"/api/booking/create": "POST {book_hash, partner_order_id, user_ip, language}",
			"/api/booking/start":  "POST {partner_order_id, user, rooms, payment_type, language}",
			"/api/booking/status": "Poll booking outcome. Params: order_id",
			"/health":             "Service health and circuit breaker state",
		},
	})
}
