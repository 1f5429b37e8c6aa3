package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallWithTimeout(t *testing.T) {
	t.Parallel()

	t.Run("returns value", func(t *testing.T) {
		t.Parallel()
		v, err := CallWithTimeout(context.Background(), time.Second, func(context.Context) (int, error) { return 7, nil })
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	})

	t.Run("returns error", func(t *testing.T) {
		t.Parallel()
		_, err := CallWithTimeout(context.Background(), time.Second, func(context.Context) (int, error) { return 0, errors.New("boom") })
		assert.EqualError(t, err, "boom")
	})

	t.Run("abandons callee that ignores ctx", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		defer close(release)

		start := time.Now()
		_, err := CallWithTimeout(context.Background(), 20*time.Millisecond, func(context.Context) (int, error) {
			<-release
			return 1, nil
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("parent cancel", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := CallWithTimeout(ctx, 0, func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
