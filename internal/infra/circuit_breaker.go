package infra

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ── Circuit Breaker ───────────────────────────────────────────────────────────
// Guards the SMTP relay used for closing reports. While open, sends fail fast
// and the retry cron leaves the dead-letter queue alone.
//
//   closed ──(N failures)──▶ open ──(timeout)──▶ half-open ──(M successes)──▶ closed
//                              ▲                     │
//                              └─────(any failure)───┘

type CBState int

const (
	CBClosed CBState = iota
	CBOpen
	CBHalfOpen
)

func (s CBState) String() string {
	switch s {
	case CBClosed:
		return "closed"
	case CBOpen:
		return "open"
	case CBHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
}

// DefaultCBConfig returns the SMTP breaker settings.
func DefaultCBConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             "smtp",
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      60 * time.Second,
	}
}

type CircuitBreaker struct {
	mu               sync.Mutex
	name             string
	state            CBState
	failures         int
	successes        int
	openedAt         time.Time
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
	now              func() time.Time
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 60 * time.Second
	}
	return &CircuitBreaker{
		name:             cfg.Name,
		state:            CBClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		openTimeout:      cfg.OpenTimeout,
		now:              time.Now,
	}
}

// State reports the current state, moving open to half-open once the
// timeout has elapsed.
func (cb *CircuitBreaker) State() CBState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refresh()
	return cb.state
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if cb.State() == CBOpen {
		return ErrCircuitOpen
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

// must hold mu
func (cb *CircuitBreaker) refresh() {
	if cb.state == CBOpen && cb.now().Sub(cb.openedAt) >= cb.openTimeout {
		cb.transition(CBHalfOpen)
	}
}

// must hold mu
func (cb *CircuitBreaker) recordFailure() {
	switch cb.state {
	case CBClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.transition(CBOpen)
		}
	case CBHalfOpen:
		cb.transition(CBOpen)
	}
}

// must hold mu
func (cb *CircuitBreaker) recordSuccess() {
	switch cb.state {
	case CBClosed:
		cb.failures = 0
	case CBHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.transition(CBClosed)
		}
	}
}

// must hold mu
func (cb *CircuitBreaker) transition(to CBState) {
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	if to == CBOpen {
		cb.openedAt = cb.now()
	}
	log.Warn().Str("breaker", cb.name).Str("from", from.String()).Str("to", to.String()).
		Msg("circuit breaker state change")
}
