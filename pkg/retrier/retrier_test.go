package retrier

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrier_SucceedsFirstTry(t *testing.T) {
	r := New(WithInitialInterval(time.Millisecond))
	calls := 0

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_RetriesThenSucceeds(t *testing.T) {
	r := New(WithInitialInterval(time.Millisecond), WithMaxRetries(2))
	calls := 0

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrier_ExhaustsAndReturnsLastError(t *testing.T) {
	r := New(WithInitialInterval(time.Millisecond), WithMaxRetries(1))
	calls := 0

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.Errorf("failure %d", calls)
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, err.Error(), "failure 2")
}

func TestRetrier_ContextCancellation(t *testing.T) {
	r := New(WithInitialInterval(time.Minute), WithMaxRetries(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Do(ctx, func(ctx context.Context) error {
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithData(t *testing.T) {
	r := New(WithInitialInterval(time.Millisecond), WithMaxRetries(1))
	calls := 0

	got, err := DoWithData(r, context.Background(), func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}
