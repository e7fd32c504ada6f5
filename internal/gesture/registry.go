package gesture

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ayusman/nritya/internal/skeleton"
)

// Registry is the gesture definition store. It is append-only while
// gestures are authored and read-only once frozen for recognition.
// It is safe for concurrent readers with a single writer.
type Registry struct {
	mu         sync.RWMutex
	defs       []*Definition
	byName     map[string]GestureHandle
	references map[string]skeleton.Point3D
	frozen     bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:     make(map[string]GestureHandle),
		references: make(map[string]skeleton.Point3D),
	}
}

// AddGesture registers a new gesture with the default timeout and no steps.
func (r *Registry) AddGesture(name string) (GestureHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkWritable(); err != nil {
		return 0, err
	}
	if name == "" {
		return 0, fmt.Errorf("%w: empty gesture name", ErrInvalidArgument)
	}
	if _, exists := r.byName[name]; exists {
		return 0, fmt.Errorf("%w: gesture %q", ErrDuplicateName, name)
	}

	h := GestureHandle(len(r.defs))
	r.defs = append(r.defs, &Definition{Name: name, Timeout: DefaultTimeout})
	r.byName[name] = h
	return h, nil
}

// SetTimeout sets the time allowed between a gesture's first step and its
// completion.
func (r *Registry) SetTimeout(h GestureHandle, timeout time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkWritable(); err != nil {
		return err
	}
	def, err := r.gesture(h)
	if err != nil {
		return err
	}
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout %v for gesture %q", ErrInvalidArgument, timeout, def.Name)
	}
	def.Timeout = timeout
	return nil
}

// AddStep appends an empty step to the gesture.
func (r *Registry) AddStep(h GestureHandle) (StepHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkWritable(); err != nil {
		return StepHandle{}, err
	}
	def, err := r.gesture(h)
	if err != nil {
		return StepHandle{}, err
	}
	def.Steps = append(def.Steps, Step{})
	return StepHandle{Gesture: h, Index: len(def.Steps) - 1}, nil
}

// AddSuccessCondition appends a condition that must hold to pass the step
// and returns its index within the step.
func (r *Registry) AddSuccessCondition(s StepHandle, subject skeleton.Joint, kind Relationship, reference string, parameter float64) (int, error) {
	return r.addCondition(s, true, subject, kind, reference, parameter)
}

// AddFailureCondition appends a condition that aborts the attempt when it
// holds during the step and returns its index within the step.
func (r *Registry) AddFailureCondition(s StepHandle, subject skeleton.Joint, kind Relationship, reference string, parameter float64) (int, error) {
	return r.addCondition(s, false, subject, kind, reference, parameter)
}

// SetSuccessCondition replaces the success condition at index.
func (r *Registry) SetSuccessCondition(s StepHandle, index int, subject skeleton.Joint, kind Relationship, reference string, parameter float64) error {
	return r.setCondition(s, true, index, subject, kind, reference, parameter)
}

// SetFailureCondition replaces the failure condition at index.
func (r *Registry) SetFailureCondition(s StepHandle, index int, subject skeleton.Joint, kind Relationship, reference string, parameter float64) error {
	return r.setCondition(s, false, index, subject, kind, reference, parameter)
}

func (r *Registry) addCondition(s StepHandle, success bool, subject skeleton.Joint, kind Relationship, reference string, parameter float64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkWritable(); err != nil {
		return 0, err
	}
	step, err := r.step(s)
	if err != nil {
		return 0, err
	}
	c, err := r.condition(subject, kind, reference, parameter)
	if err != nil {
		return 0, err
	}

	if success {
		step.Success = append(step.Success, c)
		return len(step.Success) - 1, nil
	}
	step.Failure = append(step.Failure, c)
	return len(step.Failure) - 1, nil
}

func (r *Registry) setCondition(s StepHandle, success bool, index int, subject skeleton.Joint, kind Relationship, reference string, parameter float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkWritable(); err != nil {
		return err
	}
	step, err := r.step(s)
	if err != nil {
		return err
	}

	list := step.Failure
	if success {
		list = step.Success
	}
	if index < 0 || index >= len(list) {
		return fmt.Errorf("%w: condition %d of %d", ErrInvalidArgument, index, len(list))
	}

	c, err := r.condition(subject, kind, reference, parameter)
	if err != nil {
		return err
	}
	list[index] = c
	return nil
}

// AddReferencePoint registers a named fixed position that conditions can
// use as their reference.
func (r *Registry) AddReferencePoint(name string, p skeleton.Point3D) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkWritable(); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: empty reference name", ErrInvalidArgument)
	}
	if _, isJoint := skeleton.ParseJoint(name); isJoint {
		return fmt.Errorf("%w: %q is a joint name", ErrDuplicateName, name)
	}
	if _, exists := r.references[name]; exists {
		return fmt.Errorf("%w: reference point %q", ErrDuplicateName, name)
	}
	r.references[name] = p
	return nil
}

// ReferencePoint returns the position of a named reference point.
func (r *Registry) ReferencePoint(name string) (skeleton.Point3D, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.references[name]
	return p, ok
}

// ReferenceNames returns the names of all reference points, sorted.
func (r *Registry) ReferenceNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.references))
	for name := range r.references {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve turns a reference name into a Reference.
// Joint names take precedence over reference points.
func (r *Registry) Resolve(name string) (Reference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolve(name)
}

// Handle returns the handle of the named gesture.
func (r *Registry) Handle(name string) (GestureHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byName[name]
	return h, ok
}

// Lookup returns a copy of the named gesture.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.defs[h].Clone(), true
}

// Definition returns a copy of the gesture identified by h.
func (r *Registry) Definition(h GestureHandle) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, err := r.gesture(h)
	if err != nil {
		return nil, err
	}
	return def.Clone(), nil
}

// Definitions returns copies of all gestures in registration order.
func (r *Registry) Definitions() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]*Definition, len(r.defs))
	for i, d := range r.defs {
		defs[i] = d.Clone()
	}
	return defs
}

// Len returns the number of registered gestures.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Freeze validates the registered gestures and makes the registry read-only.
// Every gesture must have at least one step.
func (r *Registry) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("%w: registry already frozen", ErrInvalidState)
	}
	for _, def := range r.defs {
		if len(def.Steps) == 0 {
			return fmt.Errorf("%w: gesture %q has no steps", ErrInvalidArgument, def.Name)
		}
	}
	r.frozen = true
	return nil
}

// Thaw makes the registry writable again.
func (r *Registry) Thaw() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = false
}

// Clear removes every gesture and reference point so the catalog can be
// loaded again. Handles issued before Clear become invalid.
func (r *Registry) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkWritable(); err != nil {
		return err
	}
	r.defs = nil
	r.byName = make(map[string]GestureHandle)
	r.references = make(map[string]skeleton.Point3D)
	return nil
}

// Frozen reports whether the registry is read-only.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

func (r *Registry) checkWritable() error {
	if r.frozen {
		return fmt.Errorf("%w: gestures cannot change while recognition is running", ErrInvalidState)
	}
	return nil
}

func (r *Registry) gesture(h GestureHandle) (*Definition, error) {
	if h < 0 || int(h) >= len(r.defs) {
		return nil, fmt.Errorf("%w: unknown gesture handle %d", ErrInvalidArgument, int(h))
	}
	return r.defs[h], nil
}

func (r *Registry) step(s StepHandle) (*Step, error) {
	def, err := r.gesture(s.Gesture)
	if err != nil {
		return nil, err
	}
	if s.Index < 0 || s.Index >= len(def.Steps) {
		return nil, fmt.Errorf("%w: gesture %q has no step %d", ErrInvalidArgument, def.Name, s.Index)
	}
	return &def.Steps[s.Index], nil
}

func (r *Registry) resolve(name string) (Reference, error) {
	if j, ok := skeleton.ParseJoint(name); ok {
		return JointReference(j), nil
	}
	if p, ok := r.references[name]; ok {
		return StaticReference(name, p), nil
	}
	return Reference{}, fmt.Errorf("%w: %q", ErrUnknownJoint, name)
}

func (r *Registry) condition(subject skeleton.Joint, kind Relationship, reference string, parameter float64) (Condition, error) {
	if !subject.Valid() {
		return Condition{}, fmt.Errorf("%w: %s", ErrUnknownJoint, subject)
	}
	if !kind.Valid() {
		return Condition{}, fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}
	if kind.NeedsParameter() && parameter == 0 {
		return Condition{}, fmt.Errorf("%w: %s needs a non-zero parameter", ErrInvalidKind, kind)
	}

	// Change kinds measure the subject against itself; the reference is
	// informational only.
	if kind.Change() && reference == "" {
		return Condition{Subject: subject, Kind: kind, Reference: JointReference(subject), Parameter: parameter}, nil
	}

	ref, err := r.resolve(reference)
	if err != nil {
		return Condition{}, err
	}
	return Condition{Subject: subject, Kind: kind, Reference: ref, Parameter: parameter}, nil
}
