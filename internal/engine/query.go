package engine

import (
	"fmt"
	"time"

	"github.com/ayusman/nritya/internal/gesture"
	"github.com/ayusman/nritya/internal/skeleton"
)

// JointInfo is the position of one joint in the most recent frame.
type JointInfo struct {
	Player    skeleton.PlayerID `json:"player"`
	Joint     skeleton.Joint    `json:"joint"`
	Position  skeleton.Point3D  `json:"position"`
	Timestamp time.Time         `json:"timestamp"`
}

// RelationshipInfo is the current state of a relationship between two joints.
type RelationshipInfo struct {
	Player    skeleton.PlayerID    `json:"player"`
	Joint     skeleton.Joint       `json:"joint"`
	Kind      gesture.Relationship `json:"relationship"`
	Reference string               `json:"reference"`
	Holds     bool                 `json:"holds"`
	Distance  float64              `json:"distance"`
	Delta     skeleton.Point3D     `json:"delta"`
}

// PlayerInfo describes a tracked player.
type PlayerInfo struct {
	Player    skeleton.PlayerID `json:"player"`
	Center    skeleton.Point3D  `json:"center"`
	HasCenter bool              `json:"has_center"`
	Inactive  bool              `json:"inactive"`
	LastSeen  time.Time         `json:"last_seen"`
}

// PlayerStatus is a player's progress through every gesture.
type PlayerStatus struct {
	PlayerInfo
	Gestures []gesture.Progress `json:"gestures"`
}

// Status is a snapshot of the engine.
type Status struct {
	Running  bool           `json:"running"`
	Version  string         `json:"version"`
	Frames   uint64         `json:"frames"`
	Gestures []string       `json:"gestures"`
	Players  []PlayerStatus `json:"players"`
}

// JointInfo returns the position of j for the lowest-numbered player of the
// most recent frame.
func (e *Engine) JointInfo(j skeleton.Joint) (JointInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := e.last.PlayerIDs()
	if len(ids) == 0 {
		return JointInfo{}, ErrNoPlayer
	}
	return e.jointInfo(ids[0], j)
}

// PlayerJointInfo returns the position of j for player in the most recent frame.
func (e *Engine) PlayerJointInfo(player skeleton.PlayerID, j skeleton.Joint) (JointInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.jointInfo(player, j)
}

func (e *Engine) jointInfo(player skeleton.PlayerID, j skeleton.Joint) (JointInfo, error) {
	snap, ok := e.last.Players[player]
	if !ok {
		return JointInfo{}, fmt.Errorf("%w: %d", ErrNoPlayer, player)
	}
	p, ok := snap.Position(j)
	if !ok {
		return JointInfo{}, fmt.Errorf("%w: %s of player %d", gesture.ErrJointMissing, j, player)
	}
	return JointInfo{Player: player, Joint: j, Position: p, Timestamp: e.last.Timestamp}, nil
}

// RelationshipInfo evaluates kind between j and the named reference for the
// lowest-numbered player of the most recent frame. Distance has no threshold
// here, so Holds is always false for it; read Distance instead. The change
// kinds depend on gesture progress and are rejected.
func (e *Engine) RelationshipInfo(j skeleton.Joint, kind gesture.Relationship, reference string) (RelationshipInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := e.last.PlayerIDs()
	if len(ids) == 0 {
		return RelationshipInfo{}, ErrNoPlayer
	}
	return e.relationshipInfo(ids[0], j, kind, reference)
}

// PlayerRelationshipInfo is RelationshipInfo for a specific player.
func (e *Engine) PlayerRelationshipInfo(player skeleton.PlayerID, j skeleton.Joint, kind gesture.Relationship, reference string) (RelationshipInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.relationshipInfo(player, j, kind, reference)
}

func (e *Engine) relationshipInfo(player skeleton.PlayerID, j skeleton.Joint, kind gesture.Relationship, reference string) (RelationshipInfo, error) {
	if !kind.Valid() || kind.Change() {
		return RelationshipInfo{}, fmt.Errorf("%w: %s cannot be queried", gesture.ErrInvalidKind, kind)
	}
	ref, err := e.registry.Resolve(reference)
	if err != nil {
		return RelationshipInfo{}, err
	}
	snap, ok := e.last.Players[player]
	if !ok {
		return RelationshipInfo{}, fmt.Errorf("%w: %d", ErrNoPlayer, player)
	}
	a, ok := snap.Position(j)
	if !ok {
		return RelationshipInfo{}, fmt.Errorf("%w: %s of player %d", gesture.ErrJointMissing, j, player)
	}
	b, ok := ref.Resolve(snap)
	if !ok {
		return RelationshipInfo{}, fmt.Errorf("%w: %s of player %d", gesture.ErrJointMissing, ref.Name, player)
	}

	m, err := e.evaluator.Measure(kind, a, b, 0)
	if err != nil && kind != gesture.Distance {
		return RelationshipInfo{}, err
	}
	return RelationshipInfo{
		Player:    player,
		Joint:     j,
		Kind:      kind,
		Reference: ref.Name,
		Holds:     m.Holds,
		Distance:  m.Distance,
		Delta:     m.Delta,
	}, nil
}

// Players returns every player with a session, in id order.
func (e *Engine) Players() []PlayerInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := e.sessionIDs()
	out := make([]PlayerInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.playerInfo(id))
	}
	return out
}

// PlayerInfo returns information about one tracked player.
func (e *Engine) PlayerInfo(player skeleton.PlayerID) (PlayerInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.sessions[player]; !ok {
		return PlayerInfo{}, fmt.Errorf("%w: %d", ErrNoPlayer, player)
	}
	return e.playerInfo(player), nil
}

func (e *Engine) playerInfo(id skeleton.PlayerID) PlayerInfo {
	ps := e.sessions[id]
	info := PlayerInfo{
		Player:   id,
		Inactive: ps.inactive,
		LastSeen: ps.lastSeen,
	}
	if snap, ok := e.last.Players[id]; ok {
		info.Center, info.HasCenter = snap.Center()
	}
	return info
}

// Status returns a snapshot of the engine and every player's progress.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := Status{
		Running: e.running,
		Version: e.Version(),
		Frames:  e.frames,
	}

	defs := e.defs
	if !e.running {
		defs = e.registry.Definitions()
	}
	st.Gestures = make([]string, len(defs))
	for i, d := range defs {
		st.Gestures[i] = d.Name
	}

	for _, id := range e.sessionIDs() {
		st.Players = append(st.Players, PlayerStatus{
			PlayerInfo: e.playerInfo(id),
			Gestures:   e.sessions[id].Progress(),
		})
	}
	return st
}
