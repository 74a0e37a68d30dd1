package cluster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_ResolvesOnce(t *testing.T) {
	f := NewFuture[int]()
	assert.False(t, f.Completed())

	assert.True(t, f.Resolve(1))
	assert.False(t, f.Resolve(2))
	assert.False(t, f.Reject(errors.New("late")))
	assert.True(t, f.Completed())

	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFuture_ConcurrentCompletion(t *testing.T) {
	f := NewFuture[int]()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.Resolve(i) {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	<-f.Done()
}

func TestFuture_WaitHonoursContext(t *testing.T) {
	f := NewFuture[string]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, f.Completed())
}

func TestFailedFuture(t *testing.T) {
	f := FailedFuture[int](ErrNoAliveNodes)
	require.True(t, f.Completed())

	_, err := f.Wait(context.Background())
	assert.ErrorIs(t, err, ErrNoAliveNodes)
}

func TestIOError(t *testing.T) {
	cause := errors.New("connection reset")
	err := newIOError("10.0.0.1:11211", cause)

	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "10.0.0.1:11211")
	assert.Same(t, err, newIOError("10.0.0.1:11211", err))
	assert.NotSame(t, err, newIOError("10.0.0.2:11211", err))
}
