package services

import (
	"fmt"
	"strings"

	"hotel-api-go/services/supplier"
)

// SearchParams are the caller-supplied knobs for a region search.
type SearchParams struct {
	Checkin         string `json:"checkin"`
	Checkout        string `json:"checkout"`
	Adults          int    `json:"adults"`
	Children        []int  `json:"children"`
	Residency       string `json:"residency"`
	Language        string `json:"language"`
	Currency        string `json:"currency"`
	EnrichmentLimit int    `json:"enrichment_limit"` // 0 = unlimited
}

// SearchCacheKey derives the fully qualified search-cache key. Every field
// that shapes pricing participates, so concurrent searches for different
// parameters never collide.
func SearchCacheKey(regionID int64, p SearchParams) string {
	children := make([]string, 0, len(p.Children))
	for _, c := range p.Children {
		children = append(children, fmt.Sprint(c))
	}
	return fmt.Sprintf("region:%d:%s:%s:a%d:c%s:%s",
		regionID, p.Checkin, p.Checkout, p.Adults, strings.Join(children, ","), p.Currency)
}

// HotelSummary is one search hit: supplier identity and price joined with
// whatever local content enrichment succeeded. Immutable once built.
type HotelSummary struct {
	HID              int64    `json:"hid"`
	HotelID          string   `json:"hotel_id"`
	Name             string   `json:"name"`
	Address          string   `json:"address,omitempty"`
	StarRating       int      `json:"star_rating,omitempty"`
	Image            string   `json:"image,omitempty"`
	Amenities        []string `json:"amenities,omitempty"`
	Price            string   `json:"price"`
	Currency         string   `json:"currency"`
	FreeCancellation bool     `json:"free_cancellation"`
	PaymentTypes     []string `json:"payment_types,omitempty"`
	MatchHash        string   `json:"match_hash,omitempty"`
	IsEnriched       bool     `json:"is_enriched"`
}

// SearchDebug carries per-call enrichment diagnostics.
type SearchDebug struct {
	Source         string `json:"source"` // live, cache or stale
	TotalHotels    int    `json:"total_hotels"`
	EffectiveLimit int    `json:"effective_limit"`
	CachedContent  int    `json:"cached_content"`
	Enriched       int    `json:"enriched"`
	StaleAgeMs     int64  `json:"stale_age_ms,omitempty"`
}

// SearchResult is the cached unit for a region search.
type SearchResult struct {
	Hotels []HotelSummary `json:"hotels"`
	Total  int            `json:"total"`
	Debug  SearchDebug    `json:"debug"`
}

// SuggestResult holds multicomplete matches.
type SuggestResult struct {
	Hotels  []supplier.SuggestHotel  `json:"hotels"`
	Regions []supplier.SuggestRegion `json:"regions"`
}

// RateDetail is one bookable rate with room-level enrichment resolved.
type RateDetail struct {
	MatchHash              string                        `json:"match_hash"`
	BookHash               string                        `json:"book_hash,omitempty"`
	RoomName               string                        `json:"room_name"`
	Meal                   string                        `json:"meal,omitempty"`
	Amount                 string                        `json:"amount"`
	Currency               string                        `json:"currency"`
	PaymentType            string                        `json:"payment_type,omitempty"`
	FreeCancellationBefore string                        `json:"free_cancellation_before,omitempty"`
	CancellationPolicies   []supplier.CancellationPolicy `json:"cancellation_policies,omitempty"`
	Taxes                  []supplier.Tax                `json:"taxes,omitempty"`
	Images                 []string                      `json:"images,omitempty"`
	Amenities              []string                      `json:"amenities,omitempty"`
	RoomMatched            bool                          `json:"room_matched"`
}

// HotelDetail is the full per-hotel record. Never cached: book_hash and
// rate validity are time-sensitive.
type HotelDetail struct {
	HID        int64        `json:"hid"`
	HotelID    string       `json:"hotel_id"`
	Name       string       `json:"name"`
	Address    string       `json:"address,omitempty"`
	StarRating int          `json:"star_rating,omitempty"`
	Images     []string     `json:"images,omitempty"`
	Amenities  []string     `json:"amenities,omitempty"`
	Facilities []string     `json:"facilities,omitempty"`
	Rates      []RateDetail `json:"rates"`
	IsEnriched bool         `json:"is_enriched"`
}

// HotelDetailParams are the pricing knobs for a hotel-page lookup.
type HotelDetailParams struct {
	Checkin   string `json:"checkin"`
	Checkout  string `json:"checkout"`
	Adults    int    `json:"adults"`
	Children  []int  `json:"children"`
	Language  string `json:"language"`
	Currency  string `json:"currency"`
	MatchHash string `json:"match_hash"`
}

// Booking flow statuses. "processing" is the only non-terminal state.
const (
	BookingStatusPending    = "pending"
	BookingStatusProcessing = "processing"
	BookingStatusOK         = "ok"
	BookingStatusError      = "error"
)

// BookingResult is the structured outcome of any booking-flow step.
// Expected failure modes (missing book_hash, supplier rejection) land here
// with Success=false rather than as errors.
type BookingResult struct {
	Success        bool   `json:"success"`
	Sandbox        bool   `json:"sandbox,omitempty"`
	Status         string `json:"status,omitempty"`
	PartnerOrderID string `json:"partner_order_id,omitempty"`
	BookHash       string `json:"book_hash,omitempty"`
	PriceChanged   bool   `json:"price_changed,omitempty"`
	Error          string `json:"error,omitempty"`
}

// CreateBookingParams registers an order against a book_hash.
type CreateBookingParams struct {
	PartnerOrderID string `json:"partner_order_id"`
	UserIP         string `json:"user_ip"`
	Language       string `json:"language"`
}

// StartBookingParams finalizes an order with guest and payment data.
type StartBookingParams struct {
	User         supplier.BookingUser   `json:"user"`
	Rooms        []supplier.BookingRoom `json:"rooms"`
	PaymentType  supplier.PaymentType   `json:"payment_type"`
	SupplierData map[string]any         `json:"supplier_data"`
	Language     string                 `json:"language"`
}
