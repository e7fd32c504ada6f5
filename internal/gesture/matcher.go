// Package gesture provides multi-step gesture definitions and the per-player
// matching state machine that recognizes them from skeleton snapshots.
package gesture

import (
	"fmt"
	"time"

	"github.com/ayusman/nritya/internal/skeleton"
)

// State is the status of one gesture attempt.
type State int

const (
	StateIdle State = iota
	StateInProgress
	StateCompleted
	StateFailed
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is what happened to an attempt during one frame.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeStepAdvanced
	OutcomeCompleted
	OutcomeFailed
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeStepAdvanced:
		return "step_advanced"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed_out"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Transition reports the result of advancing an attempt by one frame.
type Transition struct {
	Outcome Outcome
	// Step is the 1-based step the outcome refers to: the step just passed
	// for StepAdvanced and Completed, the step being matched for Failed and
	// TimedOut.
	Step    int
	Steps   int
	Elapsed time.Duration
}

// Attempt tracks one player's progress through one gesture.
// Terminal outcomes are reported through the returned Transition; the
// attempt itself is already back to idle by then.
type Attempt struct {
	def       *Definition
	state     State
	step      int
	startedAt time.Time
	anchor    skeleton.Snapshot
}

// NewAttempt creates an idle attempt at def.
func NewAttempt(def *Definition) *Attempt {
	return &Attempt{def: def}
}

// Definition returns the gesture being matched.
func (a *Attempt) Definition() *Definition { return a.def }

// State returns StateIdle or StateInProgress.
func (a *Attempt) State() State { return a.state }

// Step returns the 0-based index of the step currently being matched.
func (a *Attempt) Step() int { return a.step }

// StartedAt returns when the first step matched, zero while idle.
func (a *Attempt) StartedAt() time.Time { return a.startedAt }

// Reset returns the attempt to idle.
func (a *Attempt) Reset() {
	a.state = StateIdle
	a.step = 0
	a.startedAt = time.Time{}
	a.anchor = nil
}

// Advance evaluates the current step against one frame.
// Within a frame failure is checked first, then success, then the timeout,
// so a frame that passes the last step completes the gesture even when the
// timeout has been reached.
func (a *Attempt) Advance(snap skeleton.Snapshot, now time.Time, e Evaluator) Transition {
	steps := len(a.def.Steps)
	if steps == 0 {
		return Transition{}
	}
	current := a.def.Steps[a.step]

	if a.state == StateIdle {
		if anyHolds(e, current.Failure, snap, nil) || !allHold(e, current.Success, snap, nil) {
			return Transition{}
		}
		a.state = StateInProgress
		a.startedAt = now
		return a.pass(snap, steps, 0)
	}

	elapsed := now.Sub(a.startedAt)

	if anyHolds(e, current.Failure, snap, a.anchor) {
		step := a.step + 1
		a.Reset()
		return Transition{Outcome: OutcomeFailed, Step: step, Steps: steps, Elapsed: elapsed}
	}

	if allHold(e, current.Success, snap, a.anchor) {
		return a.pass(snap, steps, elapsed)
	}

	return a.expire(elapsed)
}

// Expire applies only the timeout, for a frame in which the player was not
// seen.
func (a *Attempt) Expire(now time.Time) Transition {
	if a.state != StateInProgress {
		return Transition{}
	}
	return a.expire(now.Sub(a.startedAt))
}

func (a *Attempt) expire(elapsed time.Duration) Transition {
	if elapsed < a.def.Timeout {
		return Transition{}
	}
	step, steps := a.step+1, len(a.def.Steps)
	a.Reset()
	return Transition{Outcome: OutcomeTimedOut, Step: step, Steps: steps, Elapsed: elapsed}
}

func (a *Attempt) pass(snap skeleton.Snapshot, steps int, elapsed time.Duration) Transition {
	a.step++
	a.anchor = snap
	if a.step >= steps {
		a.Reset()
		return Transition{Outcome: OutcomeCompleted, Step: steps, Steps: steps, Elapsed: elapsed}
	}
	return Transition{Outcome: OutcomeStepAdvanced, Step: a.step, Steps: steps, Elapsed: elapsed}
}

// anyHolds reports whether any condition holds. Unmet or unmeasurable
// conditions count as not holding.
func anyHolds(e Evaluator, conds []Condition, snap, anchor skeleton.Snapshot) bool {
	for _, c := range conds {
		if ok, err := e.Holds(c, snap, anchor); err == nil && ok {
			return true
		}
	}
	return false
}

// allHold reports whether every condition holds. A condition that cannot be
// measured this frame is unmet.
func allHold(e Evaluator, conds []Condition, snap, anchor skeleton.Snapshot) bool {
	for _, c := range conds {
		if ok, err := e.Holds(c, snap, anchor); err != nil || !ok {
			return false
		}
	}
	return true
}

// Progress is a read-only view of an attempt.
type Progress struct {
	Gesture   string    `json:"gesture"`
	State     State     `json:"state"`
	Step      int       `json:"step"`
	Steps     int       `json:"steps"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// Session tracks one player's attempts at every registered gesture.
type Session struct {
	Player   skeleton.PlayerID
	attempts []*Attempt
}

// NewSession creates a session with one idle attempt per definition, in
// the order given.
func NewSession(player skeleton.PlayerID, defs []*Definition) *Session {
	s := &Session{
		Player:   player,
		attempts: make([]*Attempt, len(defs)),
	}
	for i, def := range defs {
		s.attempts[i] = NewAttempt(def)
	}
	return s
}

// Advance feeds one snapshot to every attempt and returns their transitions,
// aligned with the definitions the session was created with.
func (s *Session) Advance(snap skeleton.Snapshot, now time.Time, e Evaluator) []Transition {
	out := make([]Transition, len(s.attempts))
	for i, a := range s.attempts {
		out[i] = a.Advance(snap, now, e)
	}
	return out
}

// Expire times out every attempt whose timeout has been reached, aligned
// like Advance.
func (s *Session) Expire(now time.Time) []Transition {
	out := make([]Transition, len(s.attempts))
	for i, a := range s.attempts {
		out[i] = a.Expire(now)
	}
	return out
}

// Attempts returns the session's attempts.
func (s *Session) Attempts() []*Attempt {
	return s.attempts
}

// Reset returns every attempt to idle.
func (s *Session) Reset() {
	for _, a := range s.attempts {
		a.Reset()
	}
}

// Progress returns a view of every attempt.
func (s *Session) Progress() []Progress {
	out := make([]Progress, len(s.attempts))
	for i, a := range s.attempts {
		out[i] = Progress{
			Gesture:   a.def.Name,
			State:     a.state,
			Step:      a.step,
			Steps:     len(a.def.Steps),
			StartedAt: a.startedAt,
		}
	}
	return out
}
