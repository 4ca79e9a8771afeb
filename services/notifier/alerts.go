package notifier

import (
	"fmt"
	"hotel-api-go/logcolors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// Default cooldown between alerts of the same type
	DefaultAlertCooldown = 15 * time.Minute
)

// AlertHandler handles events and sends notifications
type AlertHandler struct {
	notifiers        []Notifier
	cooldowns        map[EventType]time.Time // last alert time per event type
	cooldownDuration time.Duration
	mu               sync.RWMutex
}

// AlertConfig holds configuration for the alert handler
type AlertConfig struct {
	Notifiers        []Notifier
	CooldownDuration time.Duration
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(config AlertConfig) *AlertHandler {
	cooldown := config.CooldownDuration
	if cooldown == 0 {
		cooldown = DefaultAlertCooldown
	}

	return &AlertHandler{
		notifiers:        config.Notifiers,
		cooldowns:        make(map[EventType]time.Time),
		cooldownDuration: cooldown,
	}
}

// Start subscribes the handler to the event bus
func (h *AlertHandler) Start() {
	bus := GetEventBus()
	bus.SubscribeAll(h.handleEvent)
	log.Infof("%s Alert handler started (cooldown: %v, notifiers: %d)",
		logcolors.LogNotifier, h.cooldownDuration, len(h.notifiers))
}

// handleEvent processes incoming events
func (h *AlertHandler) handleEvent(event *Event) {
	// Info events are logged by their publishers; only alert on problems
	if event.Severity == SeverityInfo {
		return
	}

	if !h.shouldAlert(event.Type) {
		log.Debugf("%s Skipping alert for %s (cooldown active)", logcolors.LogNotifier, event.Type)
		return
	}

	subject, message := h.formatAlert(event)
	if subject == "" {
		return // Unknown event type
	}

	h.sendAlert(subject, message)
}

// shouldAlert checks if we should send an alert based on cooldown
func (h *AlertHandler) shouldAlert(eventType EventType) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	lastAlert, exists := h.cooldowns[eventType]
	if !exists || time.Since(lastAlert) >= h.cooldownDuration {
		h.cooldowns[eventType] = time.Now()
		return true
	}
	return false
}

// formatAlert formats an event into a notification message
func (h *AlertHandler) formatAlert(event *Event) (subject, message string) {
	switch event.Type {
	case EventCircuitBreakerOpen:
		name, _ := event.Data["name"].(string)
		failures, _ := event.Data["failures"].(int)
		resetTimeout, _ := event.Data["reset_timeout"].(string)
		subject = "Circuit Breaker OPEN"
		message = fmt.Sprintf(
			"The %s circuit breaker has tripped after %d consecutive failures.\n\n"+
				"Supplier calls are suspended for %s; searches fall back to stale cache.\n\n"+
				"Action: Check supplier API status and credentials.",
			name, failures, resetTimeout)

	case EventSupplierRateLimited:
		endpoint, _ := event.Data["endpoint"].(string)
		retries, _ := event.Data["retries"].(int)
		subject = "Supplier Rate Limiting"
		message = fmt.Sprintf(
			"The supplier returned 429 for %s and the retry budget (%d) is exhausted.\n\n"+
				"Action: Review request pacing or contact the supplier about quota.",
			endpoint, retries)

	case EventStaleSearchServed:
		cacheKey, _ := event.Data["cache_key"].(string)
		ageMs, _ := event.Data["age_ms"].(int64)
		subject = "Stale Search Results Served"
		message = fmt.Sprintf(
			"Search %s was answered from stale cache (age: %v) because the supplier is unavailable.",
			cacheKey, time.Duration(ageMs)*time.Millisecond)

	case EventContentStoreError:
		hids, _ := event.Data["hids"].(int)
		errMsg, _ := event.Data["error"].(string)
		subject = "Content Store Query Failed"
		message = fmt.Sprintf(
			"A batch content lookup for %d hotels failed: %s\n\n"+
				"Affected hotels are returned without enrichment.",
			hids, errMsg)

	case EventBookingFailed:
		orderID, _ := event.Data["partner_order_id"].(string)
		stage, _ := event.Data["stage"].(string)
		reason, _ := event.Data["reason"].(string)
		subject = "Booking Pipeline Halted"
		message = fmt.Sprintf(
			"Booking %s halted at stage %q.\n\nReason: %s\n\n"+
				"Action: Check the order with the supplier before retrying.",
			orderID, stage, reason)

	case EventServerStartupFailed:
		component, _ := event.Data["component"].(string)
		errMsg, _ := event.Data["error"].(string)
		subject = "Server Startup FAILED"
		message = fmt.Sprintf(
			"The server failed to start.\n\n"+
				"Component: %s\n"+
				"Error: %s\n\n"+
				"Action: Check logs and fix the issue immediately.",
			component, errMsg)
	}

	return subject, message
}

// sendAlert fans the alert out to every configured notifier
func (h *AlertHandler) sendAlert(subject, message string) {
	for _, n := range h.notifiers {
		if err := n.Send(subject, message); err != nil {
			log.Errorf("%s Failed to send alert %q: %v", logcolors.LogNotifier, subject, err)
		}
	}
}
