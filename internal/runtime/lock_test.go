package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlightLock_SingleFlight(t *testing.T) {
	t.Parallel()
	l := newFlightLock()

	require.True(t, l.Acquire(context.Background(), time.Second))

	// A second acquire must block until released.
	done := make(chan bool, 1)
	go func() {
		done <- l.Acquire(context.Background(), 200*time.Millisecond)
	}()

	select {
	case ok := <-done:
		t.Fatalf("second acquire returned early with %v; want it blocked", ok)
	case <-time.After(50 * time.Millisecond):
	}

	l.Release()
	assert.True(t, <-done)
}

func TestFlightLock_AcquireTimesOut(t *testing.T) {
	t.Parallel()
	l := newFlightLock()
	require.True(t, l.Acquire(context.Background(), time.Second))

	start := time.Now()
	ok := l.Acquire(context.Background(), 50*time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestFlightLock_AcquireRespectsContextCancellation(t *testing.T) {
	t.Parallel()
	l := newFlightLock()
	require.True(t, l.Acquire(context.Background(), time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, l.Acquire(ctx, time.Second))
}

func TestFlightLock_TryAcquireNonBlocking(t *testing.T) {
	t.Parallel()
	l := newFlightLock()
	require.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())
	l.Release()
	assert.True(t, l.TryAcquire())
}

func TestFlightLock_ReleaseWithoutHolderIsNoop(t *testing.T) {
	t.Parallel()
	l := newFlightLock()
	require.True(t, l.TryAcquire())
	l.Release()
	l.Release() // already full; must not panic or deadlock
	assert.True(t, l.TryAcquire())
}
