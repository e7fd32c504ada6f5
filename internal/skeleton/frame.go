package skeleton

import (
	"sort"
	"time"
)

// PlayerID is the tracking id the sensor assigns to a detected person.
type PlayerID int

// Snapshot holds one player's joint positions for one frame.
// A joint missing from the map was not tracked in that frame.
type Snapshot map[Joint]Point3D

// Position returns the position of j and whether it was tracked.
func (s Snapshot) Position(j Joint) (Point3D, bool) {
	p, ok := s[j]
	return p, ok
}

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	c := make(Snapshot, len(s))
	for j, p := range s {
		c[j] = p
	}
	return c
}

// With returns a copy of the snapshot with j moved to p.
func (s Snapshot) With(j Joint, p Point3D) Snapshot {
	c := s.Clone()
	if c == nil {
		c = make(Snapshot, 1)
	}
	c[j] = p
	return c
}

// Without returns a copy of the snapshot with j untracked.
func (s Snapshot) Without(j Joint) Snapshot {
	c := s.Clone()
	delete(c, j)
	return c
}

// Center returns the body position of the player: the spine, falling back
// to the hip center.
func (s Snapshot) Center() (Point3D, bool) {
	if p, ok := s[Spine]; ok {
		return p, true
	}
	p, ok := s[HipCenter]
	return p, ok
}

// Frame is the output of one tracker pass: a snapshot per tracked player.
type Frame struct {
	Timestamp time.Time
	Players   map[PlayerID]Snapshot
}

// NewFrame creates an empty frame taken at ts.
func NewFrame(ts time.Time) Frame {
	return Frame{
		Timestamp: ts,
		Players:   make(map[PlayerID]Snapshot),
	}
}

// Add stores a player's snapshot and returns the frame for chaining.
func (f Frame) Add(id PlayerID, s Snapshot) Frame {
	if f.Players == nil {
		f.Players = make(map[PlayerID]Snapshot)
	}
	f.Players[id] = s
	return f
}

// PlayerIDs returns the ids of the players in the frame in ascending order.
func (f Frame) PlayerIDs() []PlayerID {
	ids := make([]PlayerID, 0, len(f.Players))
	for id := range f.Players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
