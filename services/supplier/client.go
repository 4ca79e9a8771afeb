package supplier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"hotel-api-go/circuitbreaker"
	"hotel-api-go/logcolors"
	"hotel-api-go/services/notifier"
	"hotel-api-go/throttle"
)

// Supplier API endpoints, relative to the versioned base URL.
const (
	EndpointMulticomplete = "/search/multicomplete/"
	EndpointRegionSearch  = "/search/serp/region/"
	EndpointHotelPage     = "/search/hp/"
	EndpointPrebook       = "/hotel/prebook/"
	EndpointBookingForm   = "/hotel/order/booking/form/"
	EndpointBookingFinish = "/hotel/order/booking/finish/"
	EndpointBookingStatus = "/hotel/order/booking/finish/status/"
	EndpointHotelDump     = "/hotel/info/dump/"
)

const maxLoggedBody = 512 // truncate response bodies in logs

var (
	// ErrUnavailable signals that the circuit is open and no call was made.
	ErrUnavailable = errors.New("supplier temporarily unavailable (circuit open)")

	// ErrRateLimited signals that the retry budget was exhausted on 429s.
	ErrRateLimited = errors.New("supplier rate limited, retry budget exhausted")
)

// Config configures the supplier client.
type Config struct {
	BaseURL     string
	KeyID       string
	APIKey      string
	Timeout     time.Duration
	RetryBudget int           // retries on 429 (default 3)
	BackoffBase time.Duration // backoff step; delays are base, 2*base, 3*base (default 3s)
}

// Client is the resilient supplier API client. Every call passes the shared
// throttle (global pacing), then the shared circuit breaker gate, then a
// bounded retry loop for rate-limit responses. Both the throttle and the
// breaker are process-wide singletons by wiring, injected for testability.
type Client struct {
	baseURL     string
	keyID       string
	apiKey      string
	httpClient  *http.Client
	throttle    *throttle.Throttle
	breaker     *circuitbreaker.CircuitBreaker
	retryBudget int
	backoffBase time.Duration
}

// New creates a supplier client sharing the given throttle and breaker.
func New(cfg Config, th *throttle.Throttle, cb *circuitbreaker.CircuitBreaker) *Client {
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 3 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Client{
		baseURL:     cfg.BaseURL,
		keyID:       cfg.KeyID,
		apiKey:      cfg.APIKey,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		throttle:    th,
		breaker:     cb,
		retryBudget: cfg.RetryBudget,
		backoffBase: cfg.BackoffBase,
	}
}

// Breaker exposes the shared circuit breaker for health reporting.
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// Post sends one supplier call through throttle, breaker and retry policy.
// HTTP 429 responses consume the retry budget with backoff delays of
// base, 2*base, 3*base; all other failures propagate immediately.
func (c *Client) Post(ctx context.Context, endpoint string, payload interface{}) (*Envelope, error) {
	if !c.breaker.Allow() {
		log.Warnf("%s Request to %s blocked, circuit is OPEN (retry in %v)",
			logcolors.LogCircuitBreaker, endpoint, c.breaker.TimeUntilRetry())
		return nil, fmt.Errorf("%w: retry in %v", ErrUnavailable, c.breaker.TimeUntilRetry())
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request for %s: %v", endpoint, err)
	}

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			// Backoff before retry n is n * base (3s, 6s, 9s for budget 3)
			backoff := time.Duration(attempt) * c.backoffBase
			log.Warnf("%s 429 from %s, retrying in %v (attempt %d/%d)",
				logcolors.LogRetry, endpoint, backoff, attempt, c.retryBudget)
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
		}

		env, status, err := c.doOnce(ctx, endpoint, body)
		if err != nil {
			return nil, err
		}
		if status != http.StatusTooManyRequests {
			return env, nil
		}

		c.breaker.RecordFailure()
		if attempt >= c.retryBudget {
			log.Errorf("%s Retry budget (%d) exhausted for %s", logcolors.LogRetry, c.retryBudget, endpoint)
			notifier.PublishSupplierRateLimited(endpoint, c.retryBudget)
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, endpoint)
		}
	}
}

// doOnce performs a single paced HTTP call. Returns the parsed envelope and
// HTTP status; a 429 is reported via the status so the caller can retry.
func (c *Client) doOnce(ctx context.Context, endpoint string, body []byte) (*Envelope, int, error) {
	if err := c.throttle.Acquire(ctx); err != nil {
		return nil, 0, fmt.Errorf("throttle wait aborted: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.SetBasicAuth(c.keyID, c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	log.Debugf("%s POST %s", logcolors.LogSupplier, endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		log.Errorf("%s Request to %s failed: %v", logcolors.LogSupplier, endpoint, err)
		return nil, 0, fmt.Errorf("supplier request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, 0, fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, resp.StatusCode, nil
	}

	var env Envelope
	if jsonErr := json.Unmarshal(respBody, &env); jsonErr == nil && env.SandboxRestricted() {
		// Sandbox restriction is a successful simulated operation, whatever
		// the HTTP status says
		c.breaker.RecordSuccess()
		log.Infof("%s %s answered with sandbox_restriction (simulated success)", logcolors.LogSandbox, endpoint)
		return &env, resp.StatusCode, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.breaker.RecordFailure()
		log.Errorf("%s Unexpected status %d from %s: %s",
			logcolors.LogSupplier, resp.StatusCode, endpoint, truncate(respBody))
		return nil, resp.StatusCode, fmt.Errorf("supplier returned status %d for %s: %s",
			resp.StatusCode, endpoint, truncate(respBody))
	}

	if err := json.Unmarshal(respBody, &env); err != nil {
		c.breaker.RecordFailure()
		return nil, resp.StatusCode, fmt.Errorf("failed to parse response from %s: %v", endpoint, err)
	}

	c.breaker.RecordSuccess()
	return &env, resp.StatusCode, nil
}

// sleepCtx sleeps for d, aborting early if the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(body []byte) string {
	if len(body) > maxLoggedBody {
		return string(body[:maxLoggedBody]) + "..."
	}
	return string(body)
}

// =============================================================================
// TYPED ENDPOINT WRAPPERS
// =============================================================================

// Multicomplete runs the suggest query.
func (c *Client) Multicomplete(ctx context.Context, query, language string) (*MulticompleteData, error) {
	env, err := c.Post(ctx, EndpointMulticomplete, MulticompleteRequest{Query: query, Language: language})
	if err != nil {
		return nil, err
	}

	var data MulticompleteData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse multicomplete data: %v", err)
	}
	return &data, nil
}

// SearchRegion runs the priced region search.
func (c *Client) SearchRegion(ctx context.Context, req RegionSearchRequest) (*RegionSearchData, error) {
	env, err := c.Post(ctx, EndpointRegionSearch, req)
	if err != nil {
		return nil, err
	}

	var data RegionSearchData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse region search data: %v", err)
	}
	return &data, nil
}

// SearchHotelPage runs the single-hotel rate search.
func (c *Client) SearchHotelPage(ctx context.Context, req HotelPageRequest) (*HotelPageData, error) {
	env, err := c.Post(ctx, EndpointHotelPage, req)
	if err != nil {
		return nil, err
	}

	var data HotelPageData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse hotel page data: %v", err)
	}
	return &data, nil
}

// Prebook exchanges a match_hash for a book_hash-bearing rate. The sandbox
// flag reports a simulated response.
func (c *Client) Prebook(ctx context.Context, matchHash, language string) (*PrebookData, bool, error) {
	env, err := c.Post(ctx, EndpointPrebook, PrebookRequest{Hash: matchHash, Language: language})
	if err != nil {
		return nil, false, err
	}
	if env.SandboxRestricted() {
		return nil, true, nil
	}

	var data PrebookData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, false, fmt.Errorf("failed to parse prebook data: %v", err)
	}
	return &data, false, nil
}

// BookingForm registers the booking order.
func (c *Client) BookingForm(ctx context.Context, req BookingFormRequest) (*Envelope, error) {
	return c.Post(ctx, EndpointBookingForm, req)
}

// BookingFinish starts booking processing.
func (c *Client) BookingFinish(ctx context.Context, req BookingFinishRequest) (*Envelope, error) {
	return c.Post(ctx, EndpointBookingFinish, req)
}

// BookingStatus polls the order's processing state. The sandbox flag
// reports a simulated response without status data.
func (c *Client) BookingStatus(ctx context.Context, partnerOrderID string) (*BookingStatusData, bool, error) {
	env, err := c.Post(ctx, EndpointBookingStatus, BookingStatusRequest{PartnerOrderID: partnerOrderID})
	if err != nil {
		return nil, false, err
	}
	if env.SandboxRestricted() {
		return nil, true, nil
	}

	var data BookingStatusData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, false, fmt.Errorf("failed to parse booking status data: %v", err)
	}
	return &data, false, nil
}

// HotelDumpURL asks the supplier to issue a static-content dump URL.
func (c *Client) HotelDumpURL(ctx context.Context, inventory, language string) (string, error) {
	env, err := c.Post(ctx, EndpointHotelDump, DumpRequest{Inventory: inventory, Language: language})
	if err != nil {
		return "", err
	}

	var data DumpData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("failed to parse dump data: %v", err)
	}
	return data.URL, nil
}
