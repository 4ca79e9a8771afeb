package circuitbreaker

import (
	"errors"
	"hotel-api-go/logcolors"
	"hotel-api-go/services/notifier"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed   State = iota // Normal operation, requests allowed
	StateOpen                  // Circuit tripped, requests blocked
	StateHalfOpen              // Testing if the supplier recovered
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// CircuitBreaker tracks consecutive upstream failures and suspends calls
// while the supplier is unhealthy. After ResetTimeout it lets a probe
// through in half-open state; any success fully closes the circuit.
type CircuitBreaker struct {
	name            string
	state           State
	failures        int           // consecutive failures
	threshold       int           // failures before opening
	resetTimeout    time.Duration // how long to stay open before probing
	lastFailureTime time.Time
	mu              sync.RWMutex
}

// Config holds circuit breaker configuration
type Config struct {
	Name         string        // Name for logging
	Threshold    int           // Number of consecutive failures before opening
	ResetTimeout time.Duration // How long to stay open before allowing a probe
}

// New creates a new circuit breaker
func New(cfg Config) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5 // default: 5 consecutive failures
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 60 * time.Second // default: 1 minute before probing
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}

	return &CircuitBreaker{
		name:         cfg.Name,
		state:        StateClosed,
		threshold:    cfg.Threshold,
		resetTimeout: cfg.ResetTimeout,
	}
}

// Allow checks if a request should be allowed.
// Returns true if the request can proceed, false if blocked.
// The first call after the reset timeout transitions OPEN to HALF-OPEN
// with a clean failure count, letting a probe request through.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailureTime) >= cb.resetTimeout {
			cb.state = StateHalfOpen
			cb.failures = 0
			log.Infof("%s Reset timeout passed, transitioning to HALF-OPEN", logcolors.CircuitBreakerPrefix(cb.name))
			return true
		}
		return false

	default: // CLOSED or HALF-OPEN
		return true
	}
}

// RecordSuccess records a successful request. Any success while half-open
// closes the circuit; the failure count resets to zero in every state.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.state = StateClosed
		log.Infof("%s Probe request succeeded, transitioning to CLOSED", logcolors.CircuitBreakerPrefix(cb.name))
		notifier.PublishCircuitBreakerRecovered(cb.name)
	}
	cb.failures = 0
}

// RecordFailure records a failed request. The circuit opens once the
// consecutive failure count reaches the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = time.Now()

	if cb.state != StateOpen && cb.failures >= cb.threshold {
		cb.state = StateOpen
		log.Warnf("%s Threshold reached (%d failures), transitioning to OPEN (reset timeout: %v)",
			logcolors.CircuitBreakerPrefix(cb.name), cb.failures, cb.resetTimeout)
		notifier.PublishCircuitBreakerOpen(cb.name, cb.failures, cb.resetTimeout)
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Failures returns the current consecutive failure count
func (cb *CircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// Stats returns circuit breaker statistics
func (cb *CircuitBreaker) Stats() (state State, failures int, lastFailure time.Time) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state, cb.failures, cb.lastFailureTime
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.lastFailureTime = time.Time{}
	log.Infof("%s Manually reset to CLOSED", logcolors.CircuitBreakerPrefix(cb.name))
}

// IsOpen returns true if the circuit is open and the reset timeout has not
// yet elapsed, i.e. requests would currently be blocked.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state == StateOpen && time.Since(cb.lastFailureTime) < cb.resetTimeout
}

// Threshold returns the configured failure threshold
func (cb *CircuitBreaker) Threshold() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.threshold
}

// TimeUntilRetry returns how long until the circuit will allow a probe.
// Returns 0 unless the circuit is open.
func (cb *CircuitBreaker) TimeUntilRetry() time.Duration {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if cb.state != StateOpen {
		return 0
	}
	elapsed := time.Since(cb.lastFailureTime)
	if elapsed >= cb.resetTimeout {
		return 0
	}
	return cb.resetTimeout - elapsed
}
