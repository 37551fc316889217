// Package resilience guards calls to flaky outside services.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the position of a circuit breaker.
type State int

const (
	// Closed lets calls through.
	Closed State = iota
	// Open rejects calls until the cooldown elapses.
	Open
	// HalfOpen lets one probe through to test recovery.
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
	default:
		return "unknown"
	}
}

// ErrOpen is returned when a call is rejected because the circuit is open.
var ErrOpen = errors.New("circuit breaker is open")

// BreakerConfig controls when a breaker trips and for how long.
type BreakerConfig struct {
	// Name identifies the guarded service in logs.
	Name string
	// Threshold is the number of consecutive failures that opens the circuit.
	Threshold int
	// Window resets the failure count when failures are further apart.
	Window time.Duration
	// Cooldown is how long the circuit stays open.
	Cooldown time.Duration
}

// Breaker is a consecutive-failure circuit breaker for one service.
type Breaker struct {
	cfg BreakerConfig

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	openedAt    time.Time
	probing     bool

	now func() time.Time
}

// NewBreaker creates a closed breaker. Zero config values get defaults of
// 3 failures within 30s opening the circuit for 60s.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	if cfg.Window <= 0 {
		cfg.Window = 30 * time.Second
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Allow reports whether a call may proceed right now.
func (b *Breaker) Allow() bool {
	return b.State() != Open
}

// State returns the current state, moving Open to HalfOpen once the cooldown
// has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return HalfOpen
	}
	return b.state
}

// Do runs fn through the breaker. It returns ErrOpen without calling fn while
// the circuit is open.
func Do[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.acquire(); err != nil {
		return zero, err
	}
	v, err := fn(ctx)
	b.record(err)
	return v, err
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return ErrOpen
		}
		b.transition(HalfOpen)
		b.probing = true
		return nil
	case HalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if err == nil {
		b.failures = 0
		b.probing = false
		if b.state != Closed {
			b.transition(Closed)
		}
		return
	}

	if b.state == HalfOpen {
		b.probing = false
		b.openedAt = now
		b.transition(Open)
		return
	}

	if now.Sub(b.lastFailure) > b.cfg.Window {
		b.failures = 0
	}
	b.failures++
	b.lastFailure = now
	if b.failures >= b.cfg.Threshold {
		b.openedAt = now
		b.transition(Open)
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	zap.L().Warn("resilience: circuit state change",
		zap.String("service", b.cfg.Name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int("failures", b.failures),
	)
}
