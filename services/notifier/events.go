package notifier

import (
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	// Critical events
	EventCircuitBreakerOpen  EventType = "circuit_breaker_open"
	EventBookingFailed       EventType = "booking_failed"
	EventServerStartupFailed EventType = "server_startup_failed"

	// Warning events
	EventSupplierRateLimited EventType = "supplier_rate_limited"
	EventStaleSearchServed   EventType = "stale_search_served"
	EventContentStoreError   EventType = "content_store_error"

	// Info events
	EventCircuitBreakerRecovered EventType = "circuit_breaker_recovered"
	EventServerStarted           EventType = "server_started"
	EventCacheCleared            EventType = "cache_cleared"
	EventBookingConfirmed        EventType = "booking_confirmed"
)

// Severity represents the severity level of an event
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Event represents a system event
type Event struct {
	Type      EventType
	Severity  Severity
	Message   string
	Data      map[string]interface{}
	Timestamp time.Time
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, severity Severity, message string) *Event {
	return &Event{
		Type:      eventType,
		Severity:  severity,
		Message:   message,
		Data:      make(map[string]interface{}),
		Timestamp: time.Now(),
	}
}

// WithData adds data to the event (chainable)
func (e *Event) WithData(key string, value interface{}) *Event {
	e.Data[key] = value
	return e
}

// EventHandler is a function that handles events
type EventHandler func(event *Event)

// EventBus manages event publishing and subscription
type EventBus struct {
	handlers    map[EventType][]EventHandler
	allHandlers []EventHandler // handlers that receive all events
	mu          sync.RWMutex
}

// Global event bus instance
var globalBus *EventBus
var busOnce sync.Once

// GetEventBus returns the global event bus instance
func GetEventBus() *EventBus {
	busOnce.Do(func() {
		globalBus = &EventBus{
			handlers:    make(map[EventType][]EventHandler),
			allHandlers: make([]EventHandler, 0),
		}
	})
	return globalBus
}

// Subscribe adds a handler for a specific event type
func (b *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll adds a handler that receives all events
func (b *EventBus) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allHandlers = append(b.allHandlers, handler)
}

// Publish sends an event to all subscribed handlers
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if handlers, ok := b.handlers[event.Type]; ok {
		for _, handler := range handlers {
			go handler(event)
		}
	}

	for _, handler := range b.allHandlers {
		go handler(event)
	}
}

// Helper functions for publishing common events

// PublishCircuitBreakerOpen publishes a circuit breaker open event
func PublishCircuitBreakerOpen(name string, failures int, resetTimeout time.Duration) {
	event := NewEvent(EventCircuitBreakerOpen, SeverityCritical,
		"Circuit breaker has opened due to consecutive supplier failures").
		WithData("name", name).
		WithData("failures", failures).
		WithData("reset_timeout", resetTimeout.String())
	GetEventBus().Publish(event)
}

// PublishCircuitBreakerRecovered publishes a circuit breaker recovery event
func PublishCircuitBreakerRecovered(name string) {
	event := NewEvent(EventCircuitBreakerRecovered, SeverityInfo,
		"Circuit breaker has recovered and is operational").
		WithData("name", name)
	GetEventBus().Publish(event)
}

// PublishSupplierRateLimited publishes when the retry budget for a call is exhausted
func PublishSupplierRateLimited(endpoint string, retries int) {
	event := NewEvent(EventSupplierRateLimited, SeverityWarning,
		"Supplier API rate limiting exhausted the retry budget").
		WithData("endpoint", endpoint).
		WithData("retries", retries)
	GetEventBus().Publish(event)
}

// PublishStaleSearchServed publishes when a search is answered from stale cache
func PublishStaleSearchServed(cacheKey string, ageMs int64) {
	event := NewEvent(EventStaleSearchServed, SeverityWarning,
		"Search served from stale cache because the supplier is unavailable").
		WithData("cache_key", cacheKey).
		WithData("age_ms", ageMs)
	GetEventBus().Publish(event)
}

// PublishContentStoreError publishes when a content-store batch query fails
func PublishContentStoreError(hids int, err error) {
	event := NewEvent(EventContentStoreError, SeverityWarning,
		"Local content store query failed, hotels degraded to unenriched").
		WithData("hids", hids).
		WithData("error", err.Error())
	GetEventBus().Publish(event)
}

// PublishBookingFailed publishes when a booking pipeline halts
func PublishBookingFailed(partnerOrderID, stage, reason string) {
	event := NewEvent(EventBookingFailed, SeverityCritical,
		"Booking pipeline halted").
		WithData("partner_order_id", partnerOrderID).
		WithData("stage", stage).
		WithData("reason", reason)
	GetEventBus().Publish(event)
}

// PublishBookingConfirmed publishes when a booking reaches a terminal ok state
func PublishBookingConfirmed(partnerOrderID string, sandbox bool) {
	event := NewEvent(EventBookingConfirmed, SeverityInfo,
		"Booking confirmed").
		WithData("partner_order_id", partnerOrderID).
		WithData("sandbox", sandbox)
	GetEventBus().Publish(event)
}

// PublishCacheCleared publishes when a cache is cleared
func PublishCacheCleared(name string) {
	event := NewEvent(EventCacheCleared, SeverityInfo,
		"Cache has been cleared").
		WithData("cache", name)
	GetEventBus().Publish(event)
}

// PublishServerStarted publishes when the server starts successfully
func PublishServerStarted(port string, sandbox bool) {
	event := NewEvent(EventServerStarted, SeverityInfo,
		"Server started successfully").
		WithData("port", port).
		WithData("sandbox", sandbox)
	GetEventBus().Publish(event)
}

// PublishServerStartupFailed publishes when the server fails to start
func PublishServerStartupFailed(component string, err error) {
	event := NewEvent(EventServerStartupFailed, SeverityCritical,
		"Server failed to start").
		WithData("component", component).
		WithData("error", err.Error())
	GetEventBus().Publish(event)
}
