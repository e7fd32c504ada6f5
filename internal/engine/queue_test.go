package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/nritya/internal/skeleton"
)

func TestQueue_DropsOldest(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	q := NewQueue(e, 2)

	assert.False(t, q.Push(frameOf(0, nil)))
	assert.False(t, q.Push(frameOf(1, nil)))
	assert.True(t, q.Push(frameOf(2, nil)))
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, uint64(1), q.Dropped())

	f, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, at(1), f.Timestamp)
}

func TestQueue_Run(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	addLeftOf(t, e.NewBuilder())

	var frames atomic.Int32
	var updates atomic.Int32
	e.Events().OnFrame(func() { frames.Add(1) })
	e.Events().OnUpdate(func(skeleton.PlayerID, string) { updates.Add(1) })
	require.NoError(t, e.RecognitionStart())

	q := NewQueue(e, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()

	for i := 0; i < 3; i++ {
		q.Push(frameOf(i*33, map[skeleton.PlayerID]skeleton.Snapshot{1: skeleton.LeftHandOutPose()}))
	}

	require.Eventually(t, func() bool { return frames.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), updates.Load())

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestQueue_DiscardsWhileStopped(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	q := NewQueue(e, 4)
	q.Push(frameOf(0, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()

	require.Eventually(t, func() bool { return q.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
