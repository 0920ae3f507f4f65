// Package resilience wraps calls to the navigator's external dependencies:
// a breaker in front of the shared Redis cache, backoff retries for
// Postgres, and a deadline for corpus rebuilds.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a Breaker. Zero fields take defaults: 5 failures,
// 30s cooldown, 1 probe. OnStateChange runs under the breaker's lock.
type BreakerConfig struct {
	Threshold     int
	Cooldown      time.Duration
	Probes        int
	OnStateChange func(from, to State)
}

// Breaker opens after Threshold consecutive failures and rejects calls
// until Cooldown has passed, then lets Probes calls through to decide
// whether to close again. Cancellations by the caller are not failures.
type Breaker struct {
	name   string
	cfg    BreakerConfig
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	inFlight int
}

func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 1
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default().With("component", "breaker", "name", name),
	}
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do runs fn unless the breaker is open.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

// Call is Do for functions that produce a value.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := b.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		wait := b.cfg.Cooldown - b.now().Sub(b.openedAt)
		if wait > 0 {
			return fmt.Errorf("%w: %s for another %v", ErrCircuitOpen, b.name, wait.Round(time.Millisecond))
		}
		b.moveTo(StateHalfOpen)
		b.inFlight = 1
	case StateHalfOpen:
		if b.inFlight >= b.cfg.Probes {
			return fmt.Errorf("%w: %s is probing", ErrCircuitOpen, b.name)
		}
		b.inFlight++
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		if b.state == StateHalfOpen {
			b.inFlight--
		}
		return
	}
	if err == nil {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.moveTo(StateClosed)
			b.inFlight = 0
		}
		return
	}
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.cfg.Threshold {
		b.openedAt = b.now()
		b.inFlight = 0
		b.moveTo(StateOpen)
	}
}

// Reset closes the breaker and forgets past failures.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.inFlight = 0
	b.moveTo(StateClosed)
}

func (b *Breaker) moveTo(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to == StateOpen {
		b.logger.Warn("breaker opened", "failures", b.failures, "cooldown", b.cfg.Cooldown)
	} else {
		b.logger.Info("breaker state changed", "from", from, "to", to)
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}
