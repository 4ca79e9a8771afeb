package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"hotel-api-go/cache"
	"hotel-api-go/logcolors"
	"hotel-api-go/services/content"
	"hotel-api-go/services/notifier"
	"hotel-api-go/services/supplier"
	"hotel-api-go/stats"
)

// ErrHotelNotFound signals an empty hotel-page response. Unlike search
// degradation this is a hard failure: there is nothing to fall back to.
var ErrHotelNotFound = errors.New("hotel not found")

// Gateway orchestrates the supplier client, the content resolver and the
// search cache into the public operations. All collaborators are injected;
// in production they are process-wide singletons wired at startup.
type Gateway struct {
	client      *supplier.Client
	resolver    *content.Resolver
	searchCache *cache.TieredCache

	defaultEnrichmentLimit int // 0 = unlimited
}

// NewGateway wires a gateway from its collaborators.
func NewGateway(client *supplier.Client, resolver *content.Resolver, searchCache *cache.TieredCache, defaultEnrichmentLimit int) *Gateway {
	return &Gateway{
		client:                 client,
		resolver:               resolver,
		searchCache:            searchCache,
		defaultEnrichmentLimit: defaultEnrichmentLimit,
	}
}

// Suggest runs the typeahead query against the supplier. Results are cheap
// and highly query-specific, so they are not cached.
func (g *Gateway) Suggest(ctx context.Context, query, language string) (*SuggestResult, error) {
	data, err := g.client.Multicomplete(ctx, query, language)
	if err != nil {
		return nil, err
	}

	log.Infof("%s %q matched %d hotels, %d regions",
		logcolors.LogSuggest, query, len(data.Hotels), len(data.Regions))
	return &SuggestResult{Hotels: data.Hotels, Regions: data.Regions}, nil
}

// SearchByRegion returns priced, content-enriched hotels for a region.
//
// Read policy: a fresh cache entry is served directly. With the circuit
// open, a stale entry is served as degraded fallback; without one the
// search fails fast. A live call that errors also degrades to stale.
func (g *Gateway) SearchByRegion(ctx context.Context, regionID int64, params SearchParams) (*SearchResult, error) {
	key := SearchCacheKey(regionID, params)

	if result, ok := g.searchFromCache(key); ok {
		stats.Get().RecordSearchCacheHit()
		log.Infof("%s Serving region %d from cache", logcolors.LogCacheSearch, regionID)
		return result, nil
	}
	stats.Get().RecordSearchCacheMiss()

	if g.client.Breaker().IsOpen() {
		if result, ok := g.searchFromStale(key); ok {
			return result, nil
		}
		return nil, fmt.Errorf("%w: no cached results for region %d", supplier.ErrUnavailable, regionID)
	}

	stats.Get().RecordUpstreamCall()
	data, err := g.client.SearchRegion(ctx, supplier.RegionSearchRequest{
		RegionID:  regionID,
		Checkin:   params.Checkin,
		Checkout:  params.Checkout,
		Residency: params.Residency,
		Language:  params.Language,
		Guests:    []supplier.GuestGroup{{Adults: params.Adults, Children: params.Children}},
		Currency:  params.Currency,
	})
	if err != nil {
		stats.Get().RecordUpstreamError()
		log.Warnf("%s Live search for region %d failed: %v", logcolors.LogSearch, regionID, err)
		if result, ok := g.searchFromStale(key); ok {
			return result, nil
		}
		return nil, err
	}

	result := g.buildSearchResult(ctx, data, params)
	g.cacheSearchResult(key, result)
	return result, nil
}

// SearchCached serves a region search from the fresh cache only, for
// callers restricted to cached responses. No supplier call is ever made.
func (g *Gateway) SearchCached(regionID int64, params SearchParams) (*SearchResult, bool) {
	result, ok := g.searchFromCache(SearchCacheKey(regionID, params))
	if ok {
		stats.Get().RecordSearchCacheHit()
	}
	return result, ok
}

// buildSearchResult converts the supplier payload into summaries and runs
// the bounded enrichment pass over them.
func (g *Gateway) buildSearchResult(ctx context.Context, data *supplier.RegionSearchData, params SearchParams) *SearchResult {
	hotels := make([]HotelSummary, 0, len(data.Hotels))
	hids := make([]int64, 0, len(data.Hotels))
	for _, h := range data.Hotels {
		hotels = append(hotels, summarize(h))
		hids = append(hids, h.HID)
	}

	limit := params.EnrichmentLimit
	if limit <= 0 {
		limit = g.defaultEnrichmentLimit
	}

	plan := PlanEnrichment(hids, g.resolver.IsCached, limit)
	resolved := g.resolver.Resolve(ctx, plan.HIDs)

	enriched := 0
	for i := range hotels {
		if i >= plan.EffectiveLimit {
			break
		}
		hc, ok := resolved[hotels[i].HID]
		if !ok {
			continue
		}
		enrichSummary(&hotels[i], hc)
		enriched++
	}
	stats.Get().RecordContentCacheHit(plan.CachedCount)
	stats.Get().RecordContentResolved(enriched)

	log.Infof("%s Enriched %d/%d hotels (%d cached, effective limit %d)",
		logcolors.LogEnrich, enriched, len(hotels), plan.CachedCount, plan.EffectiveLimit)

	return &SearchResult{
		Hotels: hotels,
		Total:  data.TotalHotels,
		Debug: SearchDebug{
			Source:         "live",
			TotalHotels:    len(hotels),
			EffectiveLimit: plan.EffectiveLimit,
			CachedContent:  plan.CachedCount,
			Enriched:       enriched,
		},
	}
}

// summarize flattens a priced supplier hotel into its cheapest-rate summary.
// The supplier returns rates price-sorted, so the first rate's first payment
// option is the lead price.
func summarize(h supplier.Hotel) HotelSummary {
	s := HotelSummary{
		HID:     h.HID,
		HotelID: h.ID,
		Name:    h.ID, // placeholder until content enrichment fills it
	}

	if len(h.Rates) == 0 {
		return s
	}
	rate := h.Rates[0]
	s.MatchHash = rate.MatchHash

	for _, pt := range rate.PaymentOptions.PaymentTypes {
		s.PaymentTypes = append(s.PaymentTypes, pt.Type)
	}
	if len(rate.PaymentOptions.PaymentTypes) > 0 {
		pt := rate.PaymentOptions.PaymentTypes[0]
		s.Price = pt.ShowAmount
		s.Currency = pt.ShowCurrencyCode
		if s.Price == "" {
			s.Price = pt.Amount
			s.Currency = pt.CurrencyCode
		}
		s.FreeCancellation = pt.CancellationPenalties.FreeCancellationBefore != ""
	}
	return s
}

// enrichSummary overlays static content onto a priced summary.
func enrichSummary(s *HotelSummary, hc content.HotelContent) {
	if hc.Name != "" {
		s.Name = hc.Name
	}
	s.Address = hc.Address
	s.StarRating = hc.StarRating
	s.Image = hc.PrimaryImage(content.ImageSizeReduced)
	s.Amenities = hc.Amenities
	s.IsEnriched = true
}

// searchFromCache decodes a fresh cached search result.
func (g *Gateway) searchFromCache(key string) (*SearchResult, bool) {
	data, ok := g.searchCache.GetFresh(key)
	if !ok {
		return nil, false
	}
	result, err := decodeSearchResult(data)
	if err != nil {
		log.Warnf("%s Corrupt cached search %q: %v", logcolors.LogCacheSearch, key, err)
		return nil, false
	}
	result.Debug.Source = "cache"
	return result, true
}

// searchFromStale decodes a stale cached search result for degraded serving.
func (g *Gateway) searchFromStale(key string) (*SearchResult, bool) {
	data, age, ok := g.searchCache.GetStale(key)
	if !ok {
		return nil, false
	}
	result, err := decodeSearchResult(data)
	if err != nil {
		return nil, false
	}

	result.Debug.Source = "stale"
	result.Debug.StaleAgeMs = age.Milliseconds()
	stats.Get().RecordStaleCacheHit()
	notifier.PublishStaleSearchServed(key, age.Milliseconds())
	log.Warnf("%s Serving stale search %q (age: %v)", logcolors.LogFallback, key, age)
	return result, true
}

func (g *Gateway) cacheSearchResult(key string, result *SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		log.Errorf("%s Failed to marshal search result: %v", logcolors.LogCacheSearch, err)
		return
	}
	if err := g.searchCache.Put(key, string(data)); err != nil {
		log.Errorf("%s Failed to cache search %q: %v", logcolors.LogCacheSearch, key, err)
	}
}

func decodeSearchResult(data string) (*SearchResult, error) {
	var result SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetHotelDetails returns the full rate list for one hotel with room-level
// content enrichment. Details are never cached: book_hash validity and live
// pricing are time-sensitive.
func (g *Gateway) GetHotelDetails(ctx context.Context, hid int64, params HotelDetailParams) (*HotelDetail, error) {
	stats.Get().RecordUpstreamCall()
	data, err := g.client.SearchHotelPage(ctx, supplier.HotelPageRequest{
		HID:       hid,
		Checkin:   params.Checkin,
		Checkout:  params.Checkout,
		Language:  params.Language,
		Guests:    []supplier.GuestGroup{{Adults: params.Adults, Children: params.Children}},
		Currency:  params.Currency,
		MatchHash: params.MatchHash,
	})
	if err != nil {
		stats.Get().RecordUpstreamError()
		return nil, err
	}
	if len(data.Hotels) == 0 {
		return nil, fmt.Errorf("%w: hid %d", ErrHotelNotFound, hid)
	}

	h := data.Hotels[0]
	detail := &HotelDetail{
		HID:     h.HID,
		HotelID: h.ID,
		Name:    h.ID,
	}

	resolved := g.resolver.Resolve(ctx, []int64{h.HID})
	hc, enriched := resolved[h.HID]
	if enriched {
		detail.Name = hc.Name
		detail.Address = hc.Address
		detail.StarRating = hc.StarRating
		detail.Images = content.ImagesAt(hc.Images, content.ImageSizeFull)
		detail.Amenities = hc.Amenities
		detail.Facilities = hc.Facilities
		detail.IsEnriched = true
	}

	detail.Rates = make([]RateDetail, 0, len(h.Rates))
	for _, rate := range h.Rates {
		rd := RateDetail{
			MatchHash: rate.MatchHash,
			BookHash:  rate.BookHash,
			RoomName:  rate.RoomName,
			Meal:      rate.Meal,
		}
		if len(rate.PaymentOptions.PaymentTypes) > 0 {
			pt := rate.PaymentOptions.PaymentTypes[0]
			rd.Amount = pt.ShowAmount
			rd.Currency = pt.ShowCurrencyCode
			if rd.Amount == "" {
				rd.Amount = pt.Amount
				rd.Currency = pt.CurrencyCode
			}
			rd.PaymentType = pt.Type
			rd.FreeCancellationBefore = pt.CancellationPenalties.FreeCancellationBefore
			rd.CancellationPolicies = pt.CancellationPenalties.Policies
			rd.Taxes = pt.TaxData.Taxes
		}
		if enriched {
			match := content.MatchRoom(rate.RoomName, hc)
			rd.Images = match.Images
			rd.Amenities = match.Amenities
			rd.RoomMatched = match.Matched
		}
		detail.Rates = append(detail.Rates, rd)
	}

	return detail, nil
}

// Prebook exchanges a match_hash for a bookable rate. A response without a
// book_hash is an expected business failure and halts the booking pipeline
// with a structured result, not an error.
func (g *Gateway) Prebook(ctx context.Context, matchHash, language string) (*BookingResult, error) {
	stats.Get().RecordUpstreamCall()
	data, sandbox, err := g.client.Prebook(ctx, matchHash, language)
	if err != nil {
		stats.Get().RecordUpstreamError()
		return nil, err
	}
	if sandbox {
		stats.Get().RecordBooking("", true)
		return &BookingResult{Success: true, Sandbox: true}, nil
	}

	if len(data.Hotels) == 0 || len(data.Hotels[0].Rates) == 0 || data.Hotels[0].Rates[0].BookHash == "" {
		log.Warnf("%s Prebook for hash %q returned no bookable rate", logcolors.LogPrebook, matchHash)
		return &BookingResult{
			Success: false,
			Error:   "no bookable rate returned, the rate may have expired",
		}, nil
	}

	rate := data.Hotels[0].Rates[0]
	log.Infof("%s Rate %q prebooked (price changed: %v)", logcolors.LogPrebook, rate.RoomName, data.Changes.PriceChanged)
	return &BookingResult{
		Success:      true,
		BookHash:     rate.BookHash,
		PriceChanged: data.Changes.PriceChanged,
	}, nil
}

// CreateBooking registers the order against a book_hash. An empty book_hash
// halts immediately without touching the supplier.
func (g *Gateway) CreateBooking(ctx context.Context, bookHash string, params CreateBookingParams) (*BookingResult, error) {
	if bookHash == "" {
		log.Warnf("%s Booking %q rejected: no book_hash (prebook first)", logcolors.LogBooking, params.PartnerOrderID)
		return &BookingResult{
			Success: false,
			Error:   "missing book_hash, prebook must succeed first",
		}, nil
	}

	stats.Get().RecordUpstreamCall()
	env, err := g.client.BookingForm(ctx, supplier.BookingFormRequest{
		PartnerOrderID: params.PartnerOrderID,
		BookHash:       bookHash,
		Language:       params.Language,
		UserIP:         params.UserIP,
	})
	if err != nil {
		stats.Get().RecordUpstreamError()
		return nil, err
	}
	if env.SandboxRestricted() {
		stats.Get().RecordBooking("", true)
		return &BookingResult{Success: true, Sandbox: true, PartnerOrderID: params.PartnerOrderID}, nil
	}
	if env.Status == "error" {
		notifier.PublishBookingFailed(params.PartnerOrderID, "create", env.Error)
		return &BookingResult{Success: false, PartnerOrderID: params.PartnerOrderID, Error: env.Error}, nil
	}

	log.Infof("%s Order %q registered", logcolors.LogBooking, params.PartnerOrderID)
	return &BookingResult{
		Success:        true,
		PartnerOrderID: params.PartnerOrderID,
		Status:         BookingStatusPending,
	}, nil
}

// StartBooking finalizes the order with guest and payment data and kicks off
// supplier-side processing. The outcome is asynchronous; poll with
// CheckBookingStatus.
func (g *Gateway) StartBooking(ctx context.Context, partnerOrderID string, params StartBookingParams) (*BookingResult, error) {
	if partnerOrderID == "" {
		return &BookingResult{
			Success: false,
			Error:   "missing partner_order_id, create the booking first",
		}, nil
	}

	stats.Get().RecordUpstreamCall()
	env, err := g.client.BookingFinish(ctx, supplier.BookingFinishRequest{
		User:         params.User,
		Partner:      supplier.BookingPartner{PartnerOrderID: partnerOrderID},
		Language:     params.Language,
		Rooms:        params.Rooms,
		PaymentType:  params.PaymentType,
		SupplierData: params.SupplierData,
	})
	if err != nil {
		stats.Get().RecordUpstreamError()
		return nil, err
	}
	if env.SandboxRestricted() {
		stats.Get().RecordBooking("", true)
		return &BookingResult{Success: true, Sandbox: true, PartnerOrderID: partnerOrderID}, nil
	}
	if env.Status == "error" {
		notifier.PublishBookingFailed(partnerOrderID, "start", env.Error)
		return &BookingResult{Success: false, PartnerOrderID: partnerOrderID, Error: env.Error}, nil
	}

	log.Infof("%s Order %q processing started", logcolors.LogBooking, partnerOrderID)
	return &BookingResult{
		Success:        true,
		PartnerOrderID: partnerOrderID,
		Status:         BookingStatusProcessing,
	}, nil
}

// CheckBookingStatus polls the order's processing state. "processing" is
// non-terminal; callers poll until "ok" or "error".
func (g *Gateway) CheckBookingStatus(ctx context.Context, partnerOrderID string) (*BookingResult, error) {
	stats.Get().RecordUpstreamCall()
	data, sandbox, err := g.client.BookingStatus(ctx, partnerOrderID)
	if err != nil {
		stats.Get().RecordUpstreamError()
		return nil, err
	}
	if sandbox {
		stats.Get().RecordBooking("", true)
		notifier.PublishBookingConfirmed(partnerOrderID, true)
		return &BookingResult{
			Success:        true,
			Sandbox:        true,
			Status:         BookingStatusOK,
			PartnerOrderID: partnerOrderID,
		}, nil
	}

	result := &BookingResult{PartnerOrderID: partnerOrderID, Status: data.Status}
	switch data.Status {
	case BookingStatusOK:
		result.Success = true
		stats.Get().RecordBooking(BookingStatusOK, false)
		notifier.PublishBookingConfirmed(partnerOrderID, false)
		log.Infof("%s Order %q confirmed", logcolors.LogBooking, partnerOrderID)
	case BookingStatusError:
		result.Error = "booking failed at supplier"
		stats.Get().RecordBooking(BookingStatusError, false)
		notifier.PublishBookingFailed(partnerOrderID, "status", result.Error)
	default:
		// processing: still in flight, poll again
		result.Success = true
	}
	return result, nil
}

// HotelDumpURL requests a static-content dump URL for offline store loading.
func (g *Gateway) HotelDumpURL(ctx context.Context, inventory, language string) (string, error) {
	return g.client.HotelDumpURL(ctx, inventory, language)
}
