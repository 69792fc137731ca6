package retry

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Config holds the retry and circuit breaker settings for an Executor.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	BreakerEnabled      bool
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration
}

// DefaultConfig returns the settings used for recording uploads.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     4 * time.Second,
		Multiplier:     2.0,

		BreakerEnabled:      false,
		BreakerMinRequests:  5,
		BreakerFailureRatio: 0.6,
		BreakerOpenTimeout:  30 * time.Second,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.MaxAttempts <= 0 {
		out.MaxAttempts = def.MaxAttempts
	}
	if out.InitialBackoff < 0 {
		out.InitialBackoff = 0
	}
	if out.MaxBackoff < out.InitialBackoff {
		out.MaxBackoff = out.InitialBackoff
	}
	if out.Multiplier < 1.0 {
		out.Multiplier = def.Multiplier
	}
	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	return out
}

// Executor runs named operations with the configured retry policy and, optionally, a circuit
// breaker per operation name.
type Executor struct {
	cfg         Config
	log         zerolog.Logger
	shouldRetry func(error) bool
	onRetry     func(operation string, attempt int, err error)

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithShouldRetry replaces the Transient retry predicate.
func WithShouldRetry(fn func(error) bool) ExecutorOption {
	return func(e *Executor) {
		if fn != nil {
			e.shouldRetry = fn
		}
	}
}

// WithOnRetry registers an observer called before each retry wait.
func WithOnRetry(fn func(operation string, attempt int, err error)) ExecutorOption {
	return func(e *Executor) {
		e.onRetry = fn
	}
}

// WithLogger sets the logger used for retry and breaker events.
func WithLogger(log zerolog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.log = log
	}
}

// NewExecutor creates a new Executor.
func NewExecutor(cfg Config, opts ...ExecutorOption) *Executor {
	e := &Executor{
		cfg:         cfg.normalize(),
		log:         zerolog.Nop(),
		shouldRetry: Transient,
		breakers:    make(map[string]*gobreaker.CircuitBreaker[any]),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs fn under the executor's policy.
func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	_, err := Run(ctx, e, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Run is Execute for operations that produce a value.
func Run[T any](ctx context.Context, e *Executor, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if fn == nil {
		return zero, errors.New("retry: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}

	opts := Options{
		MaxAttempts: e.cfg.MaxAttempts,
		Backoff: Exponential{
			Initial:    e.cfg.InitialBackoff,
			Max:        e.cfg.MaxBackoff,
			Multiplier: e.cfg.Multiplier,
		},
		ShouldRetry: e.shouldRetry,
		OnRetry: func(attempt int, err error) {
			e.log.Warn().
				Err(err).
				Str("operation", op).
				Int("attempt", attempt).
				Int("max_attempts", e.cfg.MaxAttempts).
				Msg("Retrying operation")
			if e.onRetry != nil {
				e.onRetry(op, attempt, err)
			}
		},
	}

	if !e.cfg.BreakerEnabled {
		return Do(ctx, opts, fn)
	}

	breaker := e.circuitBreaker(op)
	out, err := breaker.Execute(func() (any, error) {
		return Do(ctx, opts, fn)
	})
	if err != nil {
		return zero, err
	}
	value, _ := out.(T)
	return value, nil
}

func (e *Executor) circuitBreaker(operation string) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:    operation,
		Timeout: e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= e.cfg.BreakerFailureRatio
		},
		// Permanent failures are the caller's fault, not the backend's.
		IsSuccessful: func(err error) bool {
			return err == nil || !e.shouldRetry(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			e.log.Warn().
				Str("operation", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)
	e.breakers[operation] = breaker
	return breaker
}

// IsCircuitOpen reports whether err was produced by an open or saturated breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
