// Package engine runs gesture recognition over skeleton frames. It owns the
// gesture registry and one matching session per tracked player, and reports
// progress through an event dispatcher.
package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/nritya/internal/gesture"
	"github.com/ayusman/nritya/internal/skeleton"
	"github.com/ayusman/nritya/internal/version"
)

// ErrNoPlayer is returned by queries when the requested player is not tracked.
var ErrNoPlayer = errors.New("player not tracked")

// Config holds configuration options for the engine.
type Config struct {
	// Margin is the dead band in millimetres of the directional relationships.
	Margin float64

	// DropFrames is how many consecutive frames a player may be missing
	// before their session is discarded. 0 drops a player on the first
	// missed frame.
	DropFrames int

	// Clock supplies the time for frames that carry no timestamp.
	Clock func() time.Time
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Margin:     gesture.DefaultMargin,
		DropFrames: 0,
		Clock:      time.Now,
	}
}

// Engine is the gesture recognition orchestrator.
// Gestures are authored through Registry or a Builder, then RecognitionStart
// freezes them and ProcessFrame advances every player's session per frame.
type Engine struct {
	config     Config
	evaluator  gesture.Evaluator
	registry   *gesture.Registry
	dispatcher *Dispatcher

	mu       sync.RWMutex
	running  bool
	defs     []*gesture.Definition
	sessions map[skeleton.PlayerID]*playerSession
	last     skeleton.Frame
	frames   uint64

	ticking atomic.Bool
}

// playerSession adds lifecycle bookkeeping to a matching session.
type playerSession struct {
	*gesture.Session
	missed   int
	inactive bool
	lastSeen time.Time
}

// New creates an Engine with its own empty registry.
func New(config Config) (*Engine, error) {
	if config.Margin < 0 {
		return nil, fmt.Errorf("%w: negative margin %v", gesture.ErrInvalidArgument, config.Margin)
	}
	if config.DropFrames < 0 {
		return nil, fmt.Errorf("%w: negative drop frames %d", gesture.ErrInvalidArgument, config.DropFrames)
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &Engine{
		config:     config,
		evaluator:  gesture.NewEvaluator(config.Margin),
		registry:   gesture.NewRegistry(),
		dispatcher: &Dispatcher{},
		last:       skeleton.NewFrame(time.Time{}),
	}, nil
}

// Registry returns the gesture store for handle-based authoring.
func (e *Engine) Registry() *gesture.Registry {
	return e.registry
}

// NewBuilder returns a cursor-based builder over the engine's registry.
func (e *Engine) NewBuilder() *Builder {
	return NewBuilder(e.registry)
}

// Events returns the event dispatcher for subscriptions.
func (e *Engine) Events() *Dispatcher {
	return e.dispatcher
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Version returns the engine version string.
func (e *Engine) Version() string {
	return version.String()
}

// RecognitionStart freezes the registry and starts accepting frames.
func (e *Engine) RecognitionStart() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return fmt.Errorf("%w: recognition already started", gesture.ErrInvalidState)
	}
	if err := e.registry.Freeze(); err != nil {
		return err
	}

	e.defs = e.registry.Definitions()
	e.sessions = make(map[skeleton.PlayerID]*playerSession)
	e.last = skeleton.NewFrame(time.Time{})
	e.frames = 0
	e.running = true
	return nil
}

// RecognitionStop stops accepting frames, discards every player session and
// makes the registry writable again. Stopping a stopped engine is a no-op.
func (e *Engine) RecognitionStop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return nil
	}
	e.running = false
	e.sessions = nil
	e.defs = nil
	e.last = skeleton.NewFrame(time.Time{})
	e.registry.Thaw()
	return nil
}

// ClearGestures removes every gesture and reference point. It fails with
// gesture.ErrInvalidState while recognition is running.
func (e *Engine) ClearGestures() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Clear()
}

// Running reports whether recognition has been started.
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// ProcessFrame advances every player's session by one frame and then
// dispatches the resulting events. Only one frame may be processed at a
// time; a concurrent or re-entrant call fails with gesture.ErrInvalidState.
func (e *Engine) ProcessFrame(frame skeleton.Frame) error {
	if !e.ticking.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: a frame is already being processed", gesture.ErrInvalidState)
	}
	defer e.ticking.Store(false)

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return fmt.Errorf("%w: recognition not started", gesture.ErrInvalidState)
	}
	if frame.Timestamp.IsZero() {
		frame.Timestamp = e.config.Clock()
	}
	if frame.Players == nil {
		frame.Players = make(map[skeleton.PlayerID]skeleton.Snapshot)
	}
	b := e.tick(frame)
	e.mu.Unlock()

	e.dispatcher.dispatch(b)
	return nil
}

// tick updates sessions for one frame and collects its events.
// Must be called with e.mu held.
func (e *Engine) tick(frame skeleton.Frame) *batch {
	now := frame.Timestamp
	b := &batch{}
	ids := frame.PlayerIDs()

	for _, id := range ids {
		ps, ok := e.sessions[id]
		if !ok {
			ps = &playerSession{Session: gesture.NewSession(id, e.defs)}
			e.sessions[id] = ps
			b.players = append(b.players, playerEvent{id, PlayerJoined})
		} else if ps.inactive {
			ps.inactive = false
			b.players = append(b.players, playerEvent{id, PlayerReactivated})
		}
		ps.missed = 0
		ps.lastSeen = now
	}

	for _, id := range e.sessionIDs() {
		if _, present := frame.Players[id]; present {
			continue
		}
		ps := e.sessions[id]
		ps.missed++
		if ps.missed > e.config.DropFrames {
			delete(e.sessions, id)
			b.players = append(b.players, playerEvent{id, PlayerLeft})
		} else if !ps.inactive {
			ps.inactive = true
			b.players = append(b.players, playerEvent{id, PlayerInactive})
		}
	}
	b.sortPlayers()

	// Players inside the grace window only age their attempts.
	ids = e.sessionIDs()
	transitions := make([][]gesture.Transition, len(ids))
	for i, id := range ids {
		ps := e.sessions[id]
		if ps.inactive {
			transitions[i] = ps.Expire(now)
			continue
		}
		transitions[i] = ps.Advance(frame.Players[id], now, e.evaluator)
	}

	for g, def := range e.defs {
		for i, id := range ids {
			tr := transitions[i][g]
			if tr.Outcome == gesture.OutcomeNone {
				continue
			}
			ev := ProcessingEvent{Player: id, Gesture: def.Name, Outcome: tr.Outcome, Step: tr.Step, Steps: tr.Steps}
			if tr.Outcome == gesture.OutcomeCompleted {
				passed := ev
				passed.Outcome = gesture.OutcomeStepAdvanced
				b.processing = append(b.processing, passed)
				b.updates = append(b.updates, updateEvent{id, def.Name})
			}
			b.processing = append(b.processing, ev)
		}
	}

	e.last = frame
	e.frames++
	return b
}

func (e *Engine) sessionIDs() []skeleton.PlayerID {
	ids := make([]skeleton.PlayerID, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
