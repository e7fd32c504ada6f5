package gesture

import (
	"fmt"
	"strings"

	"github.com/ayusman/nritya/internal/skeleton"
)

// Relationship is the kind of geometric test a condition applies between a
// subject joint and its reference.
type Relationship int

const (
	// None is the zero value and never a valid condition kind.
	None Relationship = iota
	Above
	Below
	LeftOf
	RightOf
	InfrontOf
	Behind
	// Distance compares the Euclidean distance between subject and reference
	// with the parameter: p > 0 means at least p apart, p < 0 at most |p|.
	Distance
	// XChange, YChange and ZChange compare how far the subject moved along
	// one axis since the gesture last advanced a step.
	XChange
	YChange
	ZChange
)

var relationshipNames = [...]string{
	None:      "None",
	Above:     "Above",
	Below:     "Below",
	LeftOf:    "LeftOf",
	RightOf:   "RightOf",
	InfrontOf: "InfrontOf",
	Behind:    "Behind",
	Distance:  "Distance",
	XChange:   "XChange",
	YChange:   "YChange",
	ZChange:   "ZChange",
}

// String returns the relationship name, e.g. "LeftOf".
func (r Relationship) String() string {
	if r < 0 || int(r) >= len(relationshipNames) {
		return fmt.Sprintf("Relationship(%d)", int(r))
	}
	return relationshipNames[r]
}

// Valid reports whether r can be used in a condition.
func (r Relationship) Valid() bool {
	return r > None && int(r) < len(relationshipNames)
}

// Directional reports whether r compares a single axis of two positions.
func (r Relationship) Directional() bool {
	return r >= Above && r <= Behind
}

// Change reports whether r is measured against an anchored position.
func (r Relationship) Change() bool {
	return r == XChange || r == YChange || r == ZChange
}

// NeedsParameter reports whether r requires a non-zero parameter.
func (r Relationship) NeedsParameter() bool {
	return r == Distance || r.Change()
}

// Opposite returns the complementary directional kind, or None.
func (r Relationship) Opposite() Relationship {
	switch r {
	case Above:
		return Below
	case Below:
		return Above
	case LeftOf:
		return RightOf
	case RightOf:
		return LeftOf
	case InfrontOf:
		return Behind
	case Behind:
		return InfrontOf
	}
	return None
}

// MarshalText encodes the relationship by name.
func (r Relationship) MarshalText() ([]byte, error) {
	if r < 0 || int(r) >= len(relationshipNames) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, int(r))
	}
	return []byte(relationshipNames[r]), nil
}

// UnmarshalText decodes a relationship name.
func (r *Relationship) UnmarshalText(text []byte) error {
	parsed, ok := ParseRelationship(string(text))
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidKind, string(text))
	}
	*r = parsed
	return nil
}

// ParseRelationship resolves a relationship by name, ignoring case.
func ParseRelationship(name string) (Relationship, bool) {
	for i, n := range relationshipNames {
		if strings.EqualFold(n, name) {
			return Relationship(i), true
		}
	}
	return None, false
}

// ParseCondition resolves the subject joint and relationship names of a
// condition as they are stored or sent over the API.
func ParseCondition(joint, relationship string) (skeleton.Joint, Relationship, error) {
	j, ok := skeleton.ParseJoint(joint)
	if !ok {
		return 0, None, fmt.Errorf("%w: %q", ErrUnknownJoint, joint)
	}
	kind, ok := ParseRelationship(relationship)
	if !ok || !kind.Valid() {
		return 0, None, fmt.Errorf("%w: %q", ErrInvalidKind, relationship)
	}
	return j, kind, nil
}

// DefaultMargin is the default dead band, in millimetres, of the directional
// relationships.
const DefaultMargin = 10.0

// Measurement is the full result of evaluating a relationship.
type Measurement struct {
	Holds    bool
	Distance float64          // Euclidean distance between the two positions
	Delta    skeleton.Point3D // per-axis difference a - b
}

// Evaluator computes relationships between joint positions.
// A directional relationship holds only when the positions are separated by
// more than Margin along its axis, so borderline frames do not flicker.
type Evaluator struct {
	Margin float64
}

// NewEvaluator creates an Evaluator with the given margin in millimetres.
func NewEvaluator(margin float64) Evaluator {
	return Evaluator{Margin: margin}
}

// Evaluate reports whether kind holds for subject position a and reference
// position b. For the change kinds b is the anchored position of the subject.
func (e Evaluator) Evaluate(kind Relationship, a, b skeleton.Point3D, parameter float64) (bool, error) {
	m, err := e.Measure(kind, a, b, parameter)
	return m.Holds, err
}

// Measure evaluates kind and also returns the distance and axis deltas.
func (e Evaluator) Measure(kind Relationship, a, b skeleton.Point3D, parameter float64) (Measurement, error) {
	m := Measurement{
		Distance: skeleton.Distance(a, b),
		Delta:    a.Sub(b),
	}

	switch kind {
	case LeftOf:
		m.Holds = a.X < b.X-e.Margin
	case RightOf:
		m.Holds = a.X > b.X+e.Margin
	case Below:
		m.Holds = a.Y < b.Y-e.Margin
	case Above:
		m.Holds = a.Y > b.Y+e.Margin
	case InfrontOf:
		m.Holds = a.Z < b.Z-e.Margin
	case Behind:
		m.Holds = a.Z > b.Z+e.Margin
	case Distance:
		switch {
		case parameter > 0:
			m.Holds = m.Distance >= parameter
		case parameter < 0:
			m.Holds = m.Distance <= -parameter
		default:
			return m, fmt.Errorf("%w: %s needs a non-zero parameter", ErrInvalidKind, kind)
		}
	case XChange, YChange, ZChange:
		if parameter == 0 {
			return m, fmt.Errorf("%w: %s needs a non-zero parameter", ErrInvalidKind, kind)
		}
		moved := axis(kind, b) - axis(kind, a)
		if parameter > 0 {
			m.Holds = moved >= parameter
		} else {
			m.Holds = moved <= parameter
		}
	default:
		return m, fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}
	return m, nil
}

// Holds evaluates a condition against a player's snapshot. anchor is the
// snapshot recorded when the attempt last advanced, nil while idle.
// A joint missing from either snapshot yields ErrJointMissing or ErrNoAnchor;
// callers treat both as the condition being unmet.
func (e Evaluator) Holds(c Condition, snap, anchor skeleton.Snapshot) (bool, error) {
	a, ok := snap.Position(c.Subject)
	if !ok {
		return false, ErrJointMissing
	}

	var b skeleton.Point3D
	if c.Kind.Change() {
		if b, ok = anchor.Position(c.Subject); !ok {
			return false, ErrNoAnchor
		}
	} else if b, ok = c.Reference.Resolve(snap); !ok {
		return false, ErrJointMissing
	}

	return e.Evaluate(c.Kind, a, b, c.Parameter)
}

func axis(kind Relationship, p skeleton.Point3D) float64 {
	switch kind {
	case XChange:
		return p.X
	case YChange:
		return p.Y
	default:
		return p.Z
	}
}
