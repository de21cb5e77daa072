package racer

import (
	"sync"
	"time"
)

type breakerState int

const (
	closed breakerState = iota
	open
	halfOpen
)

const (
	failureThreshold = 5
	openDuration     = 30 * time.Second
)

// Breaker is a per-endpoint circuit breaker implementing spec.md §4.6's
// exact policy: closed -> open after >=5 consecutive failures; open
// rejects immediately for 30s; then half-open admits exactly one probe;
// success closes, failure reopens.
type Breaker struct {
	mu          sync.Mutex
	state       breakerState
	failures    int
	openedAt    time.Time
	probeInFlight bool
}

// NewBreaker constructs a Breaker in the closed state.
func NewBreaker() *Breaker { return &Breaker{} }

// Allow reports whether a call may proceed right now, transitioning
// open -> half-open once the 30s window has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case closed:
		return true
	case open:
		if time.Since(b.openedAt) < openDuration {
			return false
		}
		b.state = halfOpen
		b.probeInFlight = false
		fallthrough
	case halfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	}
	return false
}

// RecordSuccess closes the breaker and resets its failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = closed
	b.failures = 0
	b.probeInFlight = false
}

// RecordFailure increments the consecutive-failure count, opening the
// breaker once the threshold is reached (or immediately, if the failing
// call was the half-open probe).
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == halfOpen {
		b.state = open
		b.openedAt = time.Now()
		b.probeInFlight = false
		return
	}
	b.failures++
	if b.failures >= failureThreshold {
		b.state = open
		b.openedAt = time.Now()
	}
}

// State exposes the current breaker state, for diagnostics and tests.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case closed:
		return "closed"
	case open:
		return "open"
	default:
		return "half-open"
	}
}
