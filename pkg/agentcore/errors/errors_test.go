package errors_test

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	acerrors "github.com/randalmurphal/agentcore/pkg/agentcore/errors"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want acerrors.Category
	}{
		{"nil", nil, acerrors.CategoryPermanent},
		{"plain error", errors.New("boom"), acerrors.CategoryPermanent},
		{"explicit transient", acerrors.Transient(errors.New("x"), "op"), acerrors.CategoryTransient},
		{"wrapped transient", fmt.Errorf("outer: %w", acerrors.Transient(errors.New("x"), "op")), acerrors.CategoryTransient},
		{"explicit permanent", acerrors.Permanent(errors.New("x"), "op"), acerrors.CategoryPermanent},
		{"timeout", &acerrors.TimeoutError{Operation: "load", Duration: time.Second}, acerrors.CategoryTransient},
		{"context canceled", context.Canceled, acerrors.CategoryPermanent},
		{"deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), acerrors.CategoryPermanent},
		{"too many open files", &fs.PathError{Op: "open", Path: "a.yaml", Err: syscall.EMFILE}, acerrors.CategoryTransient},
		{"not exist", &fs.PathError{Op: "open", Path: "a.yaml", Err: fs.ErrNotExist}, acerrors.CategoryPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, acerrors.Categorize(tt.err))
		})
	}
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "transient", acerrors.CategoryTransient.String())
	assert.Equal(t, "permanent", acerrors.CategoryPermanent.String())
	assert.Equal(t, "unknown", acerrors.Category(42).String())
}

func TestCategorizedErrorUnwrap(t *testing.T) {
	base := errors.New("base")
	err := acerrors.Transient(base, "loading")

	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "loading")
	assert.Contains(t, err.Error(), "transient")
}

func TestRecover(t *testing.T) {
	assert.NoError(t, acerrors.Recover("tick", nil))

	err := acerrors.Recover("tick", "kaboom")
	var perr *acerrors.PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "tick", perr.Where)
	assert.Equal(t, "tick panicked: kaboom", err.Error())
}

func TestBackoff(t *testing.T) {
	cfg := acerrors.RetryConfig{
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
		BackoffFactor:  2,
	}

	assert.Equal(t, 10*time.Millisecond, cfg.Backoff(1))
	assert.Equal(t, 20*time.Millisecond, cfg.Backoff(2))
	assert.Equal(t, 40*time.Millisecond, cfg.Backoff(3))
	assert.Equal(t, 50*time.Millisecond, cfg.Backoff(4))
}

func TestWithRetryContext(t *testing.T) {
	fast := acerrors.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		BackoffFactor:  1,
	}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		result := acerrors.WithRetryContext(context.Background(), fast, func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", acerrors.Transient(errors.New("busy"), "read")
			}
			return "ok", nil
		})

		require.NoError(t, result.Err)
		assert.Equal(t, "ok", result.Value)
		assert.Equal(t, 3, result.Attempts)
	})

	t.Run("stops on permanent failure", func(t *testing.T) {
		calls := 0
		result := acerrors.WithRetryContext(context.Background(), fast, func(context.Context) (int, error) {
			calls++
			if calls == 1 {
				return 0, acerrors.Transient(errors.New("busy"), "read")
			}
			return 0, errors.New("malformed")
		})

		require.Error(t, result.Err)
		assert.Equal(t, 2, calls)
		assert.Equal(t, 2, result.Attempts)
		assert.Equal(t, acerrors.CategoryPermanent, acerrors.Categorize(result.Err))
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		var retries []int
		cfg := fast
		cfg.OnRetry = func(attempt int, _ error, _ time.Duration) {
			retries = append(retries, attempt)
		}
		result := acerrors.WithRetryContext(context.Background(), cfg, func(context.Context) (int, error) {
			return 0, acerrors.Transient(errors.New("busy"), "read")
		})

		require.Error(t, result.Err)
		assert.Equal(t, 3, result.Attempts)
		assert.Equal(t, []int{1, 2}, retries)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		result := acerrors.WithRetryContext(ctx, fast, func(context.Context) (int, error) {
			called = true
			return 1, nil
		})

		assert.False(t, called)
		assert.ErrorIs(t, result.Err, context.Canceled)
		assert.Equal(t, 0, result.Attempts)
	})

	t.Run("zero attempts runs once", func(t *testing.T) {
		calls := 0
		result := acerrors.WithRetryContext(context.Background(), acerrors.RetryConfig{}, func(context.Context) (int, error) {
			calls++
			return 7, nil
		})

		require.NoError(t, result.Err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, 7, result.Value)
	})
}
