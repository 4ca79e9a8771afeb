package supplier

import "encoding/json"

// Envelope is the supplier's standard response wrapper. The error field is
// a signal channel, not only an error channel: "sandbox_restriction" marks
// a simulated operation in sandbox credential mode and can appear in both
// success-status and error-status responses.
type Envelope struct {
	Data   json.RawMessage `json:"data"`
	Debug  json.RawMessage `json:"debug"`
	Status string          `json:"status"`
	Error  string          `json:"error"`
}

// SandboxRestricted reports whether the response carries the sandbox-mode
// marker, which callers treat as a successful simulated operation.
func (e *Envelope) SandboxRestricted() bool {
	return e.Error == "sandbox_restriction"
}

// MulticompleteRequest is the suggest query.
type MulticompleteRequest struct {
	Query    string `json:"query"`
	Language string `json:"language,omitempty"`
}

// MulticompleteData holds suggest results for hotels and regions.
type MulticompleteData struct {
	Hotels  []SuggestHotel  `json:"hotels"`
	Regions []SuggestRegion `json:"regions"`
}

type SuggestHotel struct {
	HID      int64  `json:"hid"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	RegionID int64  `json:"region_id"`
}

type SuggestRegion struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	CountryCode string `json:"country_code"`
}

// GuestGroup describes one room's occupancy.
type GuestGroup struct {
	Adults   int   `json:"adults"`
	Children []int `json:"children"`
}

// RegionSearchRequest is the priced region search.
type RegionSearchRequest struct {
	RegionID  int64        `json:"region_id"`
	Checkin   string       `json:"checkin"`
	Checkout  string       `json:"checkout"`
	Residency string       `json:"residency,omitempty"`
	Language  string       `json:"language,omitempty"`
	Guests    []GuestGroup `json:"guests"`
	Currency  string       `json:"currency,omitempty"`
}

// RegionSearchData is the priced region search payload.
type RegionSearchData struct {
	Hotels      []Hotel `json:"hotels"`
	TotalHotels int     `json:"total_hotels"`
}

// HotelPageRequest is the single-hotel rate search.
type HotelPageRequest struct {
	HID       int64        `json:"hid,omitempty"`
	ID        string       `json:"id,omitempty"`
	Checkin   string       `json:"checkin"`
	Checkout  string       `json:"checkout"`
	Language  string       `json:"language,omitempty"`
	Guests    []GuestGroup `json:"guests"`
	Currency  string       `json:"currency,omitempty"`
	MatchHash string       `json:"match_hash,omitempty"`
}

// HotelPageData is the single-hotel search payload.
type HotelPageData struct {
	Hotels []Hotel `json:"hotels"`
}

// Hotel is a priced hotel as returned by the search endpoints.
type Hotel struct {
	HID   int64  `json:"hid"`
	ID    string `json:"id"`
	Rates []Rate `json:"rates"`
}

// Rate is one priced room offer.
type Rate struct {
	MatchHash      string         `json:"match_hash"`
	BookHash       string         `json:"book_hash"`
	RoomName       string         `json:"room_name"`
	Meal           string         `json:"meal"`
	Daily          []string       `json:"daily_prices"`
	PaymentOptions PaymentOptions `json:"payment_options"`
}

type PaymentOptions struct {
	PaymentTypes []PaymentType `json:"payment_types"`
}

// PaymentType carries the price, tax breakdown and cancellation policy for
// one way of paying for a rate.
type PaymentType struct {
	Amount                string                `json:"amount"`
	ShowAmount            string                `json:"show_amount"`
	CurrencyCode          string                `json:"currency_code"`
	ShowCurrencyCode      string                `json:"show_currency_code"`
	Type                  string                `json:"type"`
	By                    string                `json:"by"`
	TaxData               TaxData               `json:"tax_data"`
	CancellationPenalties CancellationPenalties `json:"cancellation_penalties"`
}

type TaxData struct {
	Taxes []Tax `json:"taxes"`
}

type Tax struct {
	Name               string `json:"name"`
	Amount             string `json:"amount"`
	CurrencyCode       string `json:"currency_code"`
	IncludedBySupplier bool   `json:"included_by_supplier"`
}

type CancellationPenalties struct {
	Policies               []CancellationPolicy `json:"policies"`
	FreeCancellationBefore string               `json:"free_cancellation_before"`
}

type CancellationPolicy struct {
	StartAt      string `json:"start_at"`
	EndAt        string `json:"end_at"`
	AmountCharge string `json:"amount_charge"`
	AmountShow   string `json:"amount_show"`
}

// PrebookRequest turns a match_hash into a bookable rate.
type PrebookRequest struct {
	Hash     string `json:"hash"`
	Language string `json:"language,omitempty"`
}

// PrebookData carries the re-priced hotel with book_hash-bearing rates.
type PrebookData struct {
	Hotels  []Hotel `json:"hotels"`
	Changes struct {
		PriceChanged bool `json:"price_changed"`
	} `json:"changes"`
}

// BookingFormRequest registers a booking order (createBooking step).
type BookingFormRequest struct {
	PartnerOrderID string `json:"partner_order_id"`
	BookHash       string `json:"book_hash"`
	Language       string `json:"language,omitempty"`
	UserIP         string `json:"user_ip"`
}

// BookingFinishRequest starts booking processing (startBooking step).
type BookingFinishRequest struct {
	User         BookingUser    `json:"user"`
	Partner      BookingPartner `json:"partner"`
	Language     string         `json:"language,omitempty"`
	Rooms        []BookingRoom  `json:"rooms"`
	PaymentType  PaymentType    `json:"payment_type"`
	SupplierData map[string]any `json:"supplier_data,omitempty"`
}

type BookingUser struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type BookingPartner struct {
	PartnerOrderID string `json:"partner_order_id"`
}

type BookingRoom struct {
	Guests []BookingGuest `json:"guests"`
}

type BookingGuest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// BookingStatusRequest polls order processing status.
type BookingStatusRequest struct {
	PartnerOrderID string `json:"partner_order_id"`
}

// BookingStatusData is the order status payload. "processing" is the only
// non-terminal state; "ok" and "error" are terminal.
type BookingStatusData struct {
	PartnerOrderID string `json:"partner_order_id"`
	Status         string `json:"status"`
	Percent        int    `json:"percent"`
}

// DumpRequest asks the supplier to issue a content-dump download URL.
type DumpRequest struct {
	Inventory string `json:"inventory"`
	Language  string `json:"language,omitempty"`
}

// DumpData carries the issued dump URL.
type DumpData struct {
	URL string `json:"url"`
}
