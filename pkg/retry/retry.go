package retry

import (
	"context"
	"fmt"
	"time"
)

// Config controls a retry loop
type Config struct {
	// Attempts is the number of tries before reconnecting
	Attempts int `yaml:"attempts"`
	// Delay is the fixed sleep between tries
	Delay time.Duration `yaml:"delay"`
	// Retryable decides whether an error is worth another try. Nil retries every error.
	Retryable func(error) bool `yaml:"-"`
}

// DefaultConfig returns three attempts two seconds apart
func DefaultConfig() Config {
	return Config{
		Attempts: 3,
		Delay:    2 * time.Second,
	}
}

// ReconnectFunc re-acquires the remote handle the operation uses.
// It returns nil when the operation is worth one more try.
type ReconnectFunc func(ctx context.Context) error

// ExhaustedError is returned once every attempt and the reconnection failed
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do runs op up to cfg.Attempts times, sleeping cfg.Delay between tries.
// When every try failed and reconnect succeeds, op runs exactly once more.
func Do[T any](ctx context.Context, cfg Config, reconnect ReconnectFunc, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return zero, err
		}

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(cfg.Delay):
		}
	}

	if reconnect != nil {
		if err := reconnect(ctx); err == nil {
			return op(ctx)
		}
	}

	return zero, &ExhaustedError{Attempts: attempts, Err: lastErr}
}

// Run is Do for operations without a result
func Run(ctx context.Context, cfg Config, reconnect ReconnectFunc, op func(ctx context.Context) error) error {
	_, err := Do(ctx, cfg, reconnect, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
