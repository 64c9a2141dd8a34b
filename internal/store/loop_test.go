package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestLoop_RunsPostedWorkInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := NewLoop(4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		require.True(t, l.Post(func() {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	wg.Wait()

	require.Len(t, got, 50)
	for i, v := range got {
		require.Equal(t, i, v)
	}

	cancel()
	require.NoError(t, <-done)
	assert.False(t, l.Post(func() {}), "posting after stop is dropped")
}

func TestLoop_CallWaitsForCompletion(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := NewLoop(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	ran := false
	require.NoError(t, l.Call(ctx, func() { ran = true }))
	assert.True(t, ran)

	l.Stop()
	require.NoError(t, <-done)
	assert.ErrorIs(t, l.Call(ctx, func() {}), ErrLoopStopped)
}

func TestLoop_RunTwiceFails(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	// Wait until the first Run owns the loop.
	require.NoError(t, l.Call(ctx, func() {}))
	assert.ErrorIs(t, l.Run(ctx), ErrLoopRunning)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoop_SerializesDispatchFromManyGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := newTestStore(t)
	l := NewLoop(8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				l.Post(func() { _, _ = s.Dispatch(NewAction("inc", nil)) })
			}
		}()
	}
	wg.Wait()
	require.NoError(t, l.Call(ctx, func() {}))

	c, _ := Value[counter](s.State(), "count")
	assert.Equal(t, 200, c.N)

	cancel()
	require.NoError(t, <-done)
}

func TestImmediate_RunsInline(t *testing.T) {
	t.Parallel()
	ran := false
	require.True(t, Immediate.Post(func() { ran = true }))
	assert.True(t, ran)
}
