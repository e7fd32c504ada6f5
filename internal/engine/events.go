package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ayusman/nritya/internal/gesture"
	"github.com/ayusman/nritya/internal/skeleton"
)

// PlayerAction is a change in a player's tracking lifecycle.
type PlayerAction int

const (
	// PlayerJoined is raised the first frame a player is tracked.
	PlayerJoined PlayerAction = iota
	// PlayerLeft is raised when a player is dropped and their session discarded.
	PlayerLeft
	// PlayerInactive is raised when a player misses a frame but is kept
	// within the drop-frames grace window.
	PlayerInactive
	// PlayerReactivated is raised when an inactive player is tracked again.
	PlayerReactivated
)

func (a PlayerAction) String() string {
	switch a {
	case PlayerJoined:
		return "joined"
	case PlayerLeft:
		return "left"
	case PlayerInactive:
		return "inactive"
	case PlayerReactivated:
		return "reactivated"
	}
	return fmt.Sprintf("PlayerAction(%d)", int(a))
}

// MarshalText encodes the action by name.
func (a PlayerAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// ProcessingEvent reports progress of one player's attempt at one gesture.
type ProcessingEvent struct {
	Player  skeleton.PlayerID `json:"player"`
	Gesture string            `json:"gesture"`
	Outcome gesture.Outcome   `json:"outcome"`
	Step    int               `json:"step"`
	Steps   int               `json:"steps"`
}

// String renders the event as a diagnostics line.
func (e ProcessingEvent) String() string {
	switch e.Outcome {
	case gesture.OutcomeStepAdvanced:
		return fmt.Sprintf("Player %d Has Completed Gesture %s Step %d Of %d", e.Player, e.Gesture, e.Step, e.Steps)
	case gesture.OutcomeCompleted:
		return fmt.Sprintf("Player %d Has Completed Gesture %s", e.Player, e.Gesture)
	case gesture.OutcomeFailed:
		return fmt.Sprintf("Player %d Gesture %s Step Reset", e.Player, e.Gesture)
	case gesture.OutcomeTimedOut:
		return fmt.Sprintf("Player %d Gesture %s Reset (Timeout)", e.Player, e.Gesture)
	}
	return fmt.Sprintf("Player %d Gesture %s %s", e.Player, e.Gesture, e.Outcome)
}

// Subscriber callbacks. They run synchronously on the goroutine that
// processes the frame, after the engine has released its lock.
type (
	UpdateFunc     func(player skeleton.PlayerID, gesture string)
	ProcessingFunc func(event ProcessingEvent)
	PlayerFunc     func(player skeleton.PlayerID, action PlayerAction)
	FrameFunc      func()
)

// Dispatcher fans engine events out to subscribers. Subscriptions are
// append-only; registering the same callback twice calls it twice.
type Dispatcher struct {
	mu         sync.RWMutex
	update     []UpdateFunc
	processing []ProcessingFunc
	player     []PlayerFunc
	frame      []FrameFunc
}

// OnUpdate subscribes to gesture completions.
func (d *Dispatcher) OnUpdate(fn UpdateFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.update = append(d.update, fn)
}

// OnProcessing subscribes to attempt progress: steps passed, completions,
// failures and timeouts.
func (d *Dispatcher) OnProcessing(fn ProcessingFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.processing = append(d.processing, fn)
}

// OnPlayer subscribes to player lifecycle changes.
func (d *Dispatcher) OnPlayer(fn PlayerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.player = append(d.player, fn)
}

// OnFrame subscribes to the end of every processed frame.
func (d *Dispatcher) OnFrame(fn FrameFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frame = append(d.frame, fn)
}

type playerEvent struct {
	player skeleton.PlayerID
	action PlayerAction
}

type updateEvent struct {
	player  skeleton.PlayerID
	gesture string
}

// batch collects the events of one frame in dispatch order.
type batch struct {
	players    []playerEvent
	processing []ProcessingEvent
	updates    []updateEvent
}

func (b *batch) sortPlayers() {
	sort.SliceStable(b.players, func(i, j int) bool {
		return b.players[i].player < b.players[j].player
	})
}

// dispatch delivers a frame's events: player changes, then processing
// events, then completions, then one frame event.
func (d *Dispatcher) dispatch(b *batch) {
	d.mu.RLock()
	update := d.update
	processing := d.processing
	player := d.player
	frame := d.frame
	d.mu.RUnlock()

	for _, ev := range b.players {
		for _, fn := range player {
			fn(ev.player, ev.action)
		}
	}
	for _, ev := range b.processing {
		for _, fn := range processing {
			fn(ev)
		}
	}
	for _, ev := range b.updates {
		for _, fn := range update {
			fn(ev.player, ev.gesture)
		}
	}
	for _, fn := range frame {
		fn()
	}
}
