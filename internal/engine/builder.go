package engine

import (
	"fmt"
	"time"

	"github.com/ayusman/nritya/internal/gesture"
	"github.com/ayusman/nritya/internal/skeleton"
)

// Builder authors gestures against a "current" gesture and step, so
// definitions read like a script:
//
//	b.AddGesture("Clap")
//	b.SetGestureTimeout(1500)
//	b.AddGestureStep()
//	b.AddGestureStepSuccessRelationship(skeleton.HandLeft, gesture.Distance, "HandRight", 400)
//	b.AddGestureStep()
//	b.AddGestureStepSuccessRelationship(skeleton.HandLeft, gesture.Distance, "HandRight", -100)
type Builder struct {
	registry   *gesture.Registry
	gesture    gesture.GestureHandle
	hasGesture bool
	step       gesture.StepHandle
	hasStep    bool
}

// NewBuilder creates a Builder over r.
func NewBuilder(r *gesture.Registry) *Builder {
	return &Builder{registry: r}
}

// AddGesture registers a gesture and makes it current.
func (b *Builder) AddGesture(name string) error {
	h, err := b.registry.AddGesture(name)
	if err != nil {
		return err
	}
	b.gesture, b.hasGesture = h, true
	b.hasStep = false
	return nil
}

// SelectGesture makes an already registered gesture current, with its last
// step as the current step.
func (b *Builder) SelectGesture(name string) error {
	h, ok := b.registry.Handle(name)
	if !ok {
		return fmt.Errorf("%w: unknown gesture %q", gesture.ErrInvalidArgument, name)
	}
	def, err := b.registry.Definition(h)
	if err != nil {
		return err
	}
	b.gesture, b.hasGesture = h, true
	b.hasStep = len(def.Steps) > 0
	if b.hasStep {
		b.step = gesture.StepHandle{Gesture: h, Index: len(def.Steps) - 1}
	}
	return nil
}

// SetGestureTimeout sets the timeout of the current gesture in milliseconds.
func (b *Builder) SetGestureTimeout(ms int) error {
	if err := b.needGesture(); err != nil {
		return err
	}
	return b.registry.SetTimeout(b.gesture, time.Duration(ms)*time.Millisecond)
}

// AddGestureStep appends a step to the current gesture, makes it current
// and returns its 0-based index.
func (b *Builder) AddGestureStep() (int, error) {
	if err := b.needGesture(); err != nil {
		return 0, err
	}
	s, err := b.registry.AddStep(b.gesture)
	if err != nil {
		return 0, err
	}
	b.step, b.hasStep = s, true
	return s.Index, nil
}

// SelectStep makes the step at the 0-based index of the current gesture current.
func (b *Builder) SelectStep(index int) error {
	if err := b.needGesture(); err != nil {
		return err
	}
	def, err := b.registry.Definition(b.gesture)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(def.Steps) {
		return fmt.Errorf("%w: gesture %q has no step %d", gesture.ErrInvalidArgument, def.Name, index)
	}
	b.step, b.hasStep = gesture.StepHandle{Gesture: b.gesture, Index: index}, true
	return nil
}

// AddGestureStepSuccessRelationship adds a success condition to the current
// step and returns its index.
func (b *Builder) AddGestureStepSuccessRelationship(joint skeleton.Joint, kind gesture.Relationship, reference string, parameter float64) (int, error) {
	if err := b.needStep(); err != nil {
		return 0, err
	}
	return b.registry.AddSuccessCondition(b.step, joint, kind, reference, parameter)
}

// AddGestureStepFailureRelationship adds a failure condition to the current
// step and returns its index.
func (b *Builder) AddGestureStepFailureRelationship(joint skeleton.Joint, kind gesture.Relationship, reference string, parameter float64) (int, error) {
	if err := b.needStep(); err != nil {
		return 0, err
	}
	return b.registry.AddFailureCondition(b.step, joint, kind, reference, parameter)
}

// SetGestureStepSuccessRelationship replaces a success condition of the current step.
func (b *Builder) SetGestureStepSuccessRelationship(index int, joint skeleton.Joint, kind gesture.Relationship, reference string, parameter float64) error {
	if err := b.needStep(); err != nil {
		return err
	}
	return b.registry.SetSuccessCondition(b.step, index, joint, kind, reference, parameter)
}

// SetGestureStepFailureRelationship replaces a failure condition of the current step.
func (b *Builder) SetGestureStepFailureRelationship(index int, joint skeleton.Joint, kind gesture.Relationship, reference string, parameter float64) error {
	if err := b.needStep(); err != nil {
		return err
	}
	return b.registry.SetFailureCondition(b.step, index, joint, kind, reference, parameter)
}

// AddGestureStaticReferencePoint registers a named fixed position, in
// millimetres, usable as a condition reference.
func (b *Builder) AddGestureStaticReferencePoint(name string, x, y, z float64) error {
	return b.registry.AddReferencePoint(name, skeleton.Point3D{X: x, Y: y, Z: z})
}

// Gesture returns the current gesture.
func (b *Builder) Gesture() (gesture.GestureHandle, bool) {
	return b.gesture, b.hasGesture
}

// Step returns the current step.
func (b *Builder) Step() (gesture.StepHandle, bool) {
	return b.step, b.hasStep
}

func (b *Builder) needGesture() error {
	if !b.hasGesture {
		return fmt.Errorf("%w: no gesture added", gesture.ErrInvalidState)
	}
	return nil
}

func (b *Builder) needStep() error {
	if err := b.needGesture(); err != nil {
		return err
	}
	if !b.hasStep {
		return fmt.Errorf("%w: no step added", gesture.ErrInvalidState)
	}
	return nil
}
