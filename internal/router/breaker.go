package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	stateClosed   = "closed"
	stateOpen     = "open"
	stateHalfOpen = "half_open"
)

// BreakerSettings tunes a circuit breaker. Zero values pick the defaults.
type BreakerSettings struct {
	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold int
	// Timeout is how long the circuit stays open before one trial call is let through.
	Timeout time.Duration
}

func (s *BreakerSettings) applyDefaults() {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.Timeout <= 0 {
		s.Timeout = 60 * time.Second
	}
}

// BreakerStatus is a read-only snapshot of a breaker.
type BreakerStatus struct {
	State               string
	ConsecutiveFailures int
	LastFailureTime     time.Time
	TimeUntilRetry      time.Duration
}

// Breaker isolates one external capability. closed: calls pass and failures
// are counted; open: calls fail fast with ErrCircuitOpen until Timeout has
// elapsed; half_open: one trial call decides between closed and open again.
// All state changes run under the mutex (single writer per breaker).
type Breaker struct {
	mu       sync.Mutex
	settings BreakerSettings
	log      zerolog.Logger

	state           string
	failures        int
	lastFailureTime time.Time
}

// NewBreaker builds a closed Breaker with the given settings.
func NewBreaker(name string, settings BreakerSettings, log zerolog.Logger) *Breaker {
	settings.applyDefaults()
	return &Breaker{
		settings: settings,
		log:      log.With().Str("component", "breaker").Str("capability", name).Logger(),
		state:    stateClosed,
	}
}

// Call runs op under circuit protection. When the circuit is open and the
// timeout has not elapsed, op is never invoked and ErrCircuitOpen is
// returned immediately.
func (b *Breaker) Call(ctx context.Context, op func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := op(ctx)
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateOpen {
		return nil
	}
	elapsed := time.Since(b.lastFailureTime)
	if elapsed < b.settings.Timeout {
		return fmt.Errorf("%w: retry in %s", ErrCircuitOpen, (b.settings.Timeout - elapsed).Round(time.Second))
	}
	b.state = stateHalfOpen
	b.log.Info().Msg("circuit open -> half_open, allowing trial call")
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		if b.state != stateClosed {
			b.log.Info().Str("from", b.state).Msg("circuit closed")
		}
		b.state = stateClosed
		b.failures = 0
		return
	}
	b.failures++
	b.lastFailureTime = time.Now()
	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.log.Warn().Msg("trial call failed, circuit half_open -> open")
		return
	}
	if b.failures >= b.settings.FailureThreshold {
		b.state = stateOpen
		b.log.Warn().Int("failures", b.failures).Msg("failure threshold reached, circuit opened")
	}
}

// Status returns a snapshot without mutating breaker state.
func (b *Breaker) Status() BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := BreakerStatus{
		State:               b.state,
		ConsecutiveFailures: b.failures,
		LastFailureTime:     b.lastFailureTime,
	}
	if b.state == stateOpen {
		if remaining := b.settings.Timeout - time.Since(b.lastFailureTime); remaining > 0 {
			st.TimeUntilRetry = remaining
		}
	}
	return st
}

// Reset forces the breaker back to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.state = stateClosed
	b.failures = 0
	b.lastFailureTime = time.Time{}
	b.mu.Unlock()
	b.log.Info().Msg("circuit manually reset")
}
