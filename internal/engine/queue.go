package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/ayusman/nritya/internal/gesture"
	"github.com/ayusman/nritya/internal/skeleton"
)

// Queue serializes frames from any number of producers into a single
// consumer that feeds the engine, so at most one frame is processed at a time.
// When full, the oldest queued frame is dropped.
type Queue struct {
	engine *Engine
	size   int

	mu      sync.Mutex
	frames  []skeleton.Frame
	dropped uint64
	notify  chan struct{}
}

// NewQueue creates a queue holding at most size frames.
func NewQueue(e *Engine, size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		engine: e,
		size:   size,
		frames: make([]skeleton.Frame, 0, size),
		notify: make(chan struct{}, 1),
	}
}

// Push enqueues a frame. It reports whether an older frame was dropped to
// make room.
func (q *Queue) Push(f skeleton.Frame) bool {
	q.mu.Lock()
	dropped := false
	if len(q.frames) >= q.size {
		copy(q.frames, q.frames[1:])
		q.frames = q.frames[:len(q.frames)-1]
		q.dropped++
		dropped = true
	}
	q.frames = append(q.frames, f)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return dropped
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Dropped returns how many frames were discarded because the queue was full.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Run feeds queued frames to the engine until ctx is done. Frames that
// arrive while recognition is stopped are discarded.
func (q *Queue) Run(ctx context.Context) error {
	for {
		f, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-q.notify:
				continue
			}
		}

		if err := q.engine.ProcessFrame(f); err != nil && !errors.Is(err, gesture.ErrInvalidState) {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (q *Queue) pop() (skeleton.Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) == 0 {
		return skeleton.Frame{}, false
	}
	f := q.frames[0]
	copy(q.frames, q.frames[1:])
	q.frames[len(q.frames)-1] = skeleton.Frame{}
	q.frames = q.frames[:len(q.frames)-1]
	return f, true
}
