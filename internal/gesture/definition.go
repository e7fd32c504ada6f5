package gesture

import (
	"fmt"
	"time"

	"github.com/ayusman/nritya/internal/skeleton"
)

// DefaultTimeout is the time a player has to finish a gesture once its first
// step matched, unless the gesture sets its own.
const DefaultTimeout = 5000 * time.Millisecond

// Reference is the resolved second operand of a condition: either another
// joint of the same player or a named static point.
type Reference struct {
	Name   string           `json:"name"`
	Joint  skeleton.Joint   `json:"-"`
	Static bool             `json:"static,omitempty"`
	Point  skeleton.Point3D `json:"point"`
}

// JointReference returns a reference to joint j.
func JointReference(j skeleton.Joint) Reference {
	return Reference{Name: j.String(), Joint: j}
}

// StaticReference returns a reference to a fixed position.
func StaticReference(name string, p skeleton.Point3D) Reference {
	return Reference{Name: name, Static: true, Point: p}
}

// Resolve returns the position of the reference within snap.
func (r Reference) Resolve(snap skeleton.Snapshot) (skeleton.Point3D, bool) {
	if r.Static {
		return r.Point, true
	}
	return snap.Position(r.Joint)
}

// Condition is a single relationship test of a gesture step.
type Condition struct {
	Subject   skeleton.Joint `json:"joint"`
	Kind      Relationship   `json:"relationship"`
	Reference Reference      `json:"reference"`
	Parameter float64        `json:"parameter"`
}

// String renders the condition, e.g. "HandLeft LeftOf ShoulderLeft".
func (c Condition) String() string {
	if c.Kind.NeedsParameter() {
		return fmt.Sprintf("%s %s %s %g", c.Subject, c.Kind, c.Reference.Name, c.Parameter)
	}
	return fmt.Sprintf("%s %s %s", c.Subject, c.Kind, c.Reference.Name)
}

// Step is one stage of a gesture. All success conditions must hold to pass
// the step; any failure condition holding aborts the attempt.
type Step struct {
	Success []Condition `json:"success"`
	Failure []Condition `json:"failure"`
}

func (s Step) clone() Step {
	return Step{
		Success: append([]Condition(nil), s.Success...),
		Failure: append([]Condition(nil), s.Failure...),
	}
}

// Definition is a registered gesture: an ordered list of steps that must be
// matched within Timeout of the first step.
type Definition struct {
	Name    string        `json:"name"`
	Timeout time.Duration `json:"timeout"`
	Steps   []Step        `json:"steps"`
}

// Clone returns a deep copy of the definition.
func (d *Definition) Clone() *Definition {
	c := &Definition{
		Name:    d.Name,
		Timeout: d.Timeout,
		Steps:   make([]Step, len(d.Steps)),
	}
	for i, s := range d.Steps {
		c.Steps[i] = s.clone()
	}
	return c
}

// GestureHandle identifies a registered gesture by registration order.
type GestureHandle int

// StepHandle identifies one step of a registered gesture.
type StepHandle struct {
	Gesture GestureHandle
	Index   int
}
