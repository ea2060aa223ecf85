package retry

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/cuemby/googol/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func fastConfig() Config {
	return Config{Attempts: 3, Delay: time.Millisecond}
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fastConfig(), nil, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("boom")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestDoReconnectsOnceAfterExhaustion(t *testing.T) {
	calls := 0
	reconnects := 0
	v, err := Do(context.Background(), fastConfig(),
		func(ctx context.Context) error {
			reconnects++
			return nil
		},
		func(ctx context.Context) (int, error) {
			calls++
			if reconnects == 0 {
				return 0, errors.New("stale handle")
			}
			return 42, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 4, calls)
	assert.Equal(t, 1, reconnects)
}

func TestDoExhausted(t *testing.T) {
	cause := status.Error(codes.Unavailable, "connection refused")
	calls := 0
	_, err := Do(context.Background(), fastConfig(),
		func(ctx context.Context) error { return errors.New("lookup failed") },
		func(ctx context.Context) (int, error) {
			calls++
			return 0, cause
		})

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.True(t, IsConnectionRefused(err))
}

func TestDoNotRetryable(t *testing.T) {
	cfg := fastConfig()
	cfg.Retryable = IsTransient

	calls := 0
	err := Run(context.Background(), cfg, nil, func(ctx context.Context) error {
		calls++
		return status.Error(codes.InvalidArgument, "bad terms")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{Attempts: 5, Delay: time.Hour}

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, cfg, nil, func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		refused   bool
		timeout   bool
		transient bool
	}{
		{"nil", nil, false, false, false},
		{"grpc unavailable", status.Error(codes.Unavailable, "x"), true, false, true},
		{"wrapped unavailable", fmt.Errorf("failed to search: %w", status.Error(codes.Unavailable, "x")), true, false, true},
		{"sentinel", fmt.Errorf("barrel: %w", types.ErrUnavailable), true, false, true},
		{"econnrefused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true, false, true},
		{"deadline", context.DeadlineExceeded, false, true, true},
		{"grpc deadline", status.Error(codes.DeadlineExceeded, "x"), false, true, true},
		{"grpc internal", status.Error(codes.Internal, "x"), false, false, false},
		{"plain", errors.New("parse error"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.refused, IsConnectionRefused(tt.err))
			assert.Equal(t, tt.timeout, IsTimeout(tt.err))
			assert.Equal(t, tt.transient, IsTransient(tt.err))
		})
	}
}
