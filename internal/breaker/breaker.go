// Package breaker implements the circuit breaker guarding the reasoning
// capability. One instance is shared by all concurrent turns, so all state
// transitions happen under a mutex.
package breaker

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/taskpilot/pkg/models"
)

// State is the breaker state
type State int

const (
	// Closed passes calls through and counts consecutive failures
	Closed State = iota
	// Open fails fast without attempting the call
	Open
	// HalfOpen lets a single probe call through
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Config configures breaker behavior
type Config struct {
	FailureThreshold int           // consecutive failures before opening (default 5)
	Cooldown         time.Duration // open-state wait before allowing a probe (default 30s)
}

// DefaultConfig returns a breaker configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// Breaker is a three-state circuit breaker
type Breaker struct {
	mu            sync.Mutex
	config        Config
	state         State
	failures      int
	openedAt      time.Time
	probeInFlight bool

	now func() time.Time // injectable clock for tests
}

// New creates a breaker in the Closed state
func New(config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	return &Breaker{
		config: config,
		state:  Closed,
		now:    time.Now,
	}
}

// Allow reports whether a call may proceed. In the Open state it fails fast
// with a service-unavailable error until the cooldown elapses; then exactly
// one probe is let through while the breaker is HalfOpen.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			return models.ErrServiceUnavailable
		}
		b.state = HalfOpen
		b.probeInFlight = true
		log.Info().Msg("breaker half-open, allowing probe")
		return nil
	case HalfOpen:
		if b.probeInFlight {
			return models.ErrServiceUnavailable
		}
		b.probeInFlight = true
		return nil
	}
	return nil
}

// RecordSuccess resets the breaker after a successful call
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Closed {
		log.Info().Str("from", b.state.String()).Msg("breaker closed")
	}
	b.state = Closed
	b.failures = 0
	b.probeInFlight = false
}

// RecordFailure counts a failed call. In Closed it opens the breaker after
// the configured number of consecutive failures; in HalfOpen a failed probe
// reopens immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.trip()
		}
	case HalfOpen:
		b.probeInFlight = false
		b.trip()
	case Open:
		// Already open; nothing to count.
	}
}

// State returns the current breaker state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = b.now()
	b.failures = 0
	log.Warn().Dur("cooldown", b.config.Cooldown).Msg("breaker opened")
}
