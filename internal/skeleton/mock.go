package skeleton

import (
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MockTracker is a test implementation of the Tracker interface.
// It allows tests to control the tracking results.
type MockTracker struct {
	mu     sync.Mutex
	frames []Frame
	next   int
	err    error
	closed bool
}

// NewMockTracker creates a new MockTracker instance.
func NewMockTracker() *MockTracker {
	return &MockTracker{}
}

// SetFrame sets a single frame that will be returned by every Track call.
func (m *MockTracker) SetFrame(f Frame) {
	m.SetSequence(f)
}

// SetSequence sets frames returned in order by Track. Once exhausted the
// last frame is repeated.
func (m *MockTracker) SetSequence(frames ...Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = frames
	m.next = 0
}

// SetError sets the error that will be returned by Track.
func (m *MockTracker) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Track returns the next pre-configured frame or error.
// Frames without a timestamp are stamped with the current time.
func (m *MockTracker) Track(frame *gocv.Mat) (Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return Frame{}, m.err
	}
	if len(m.frames) == 0 {
		return NewFrame(time.Now()), nil
	}

	f := m.frames[m.next]
	if m.next < len(m.frames)-1 {
		m.next++
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	return f, nil
}

// Close marks the mock as closed.
func (m *MockTracker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockTracker) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// NeutralPose returns a preset snapshot of a player standing two metres from
// the sensor with both arms hanging at their sides.
// Each hand is vertically aligned with its shoulder so no horizontal
// relationship between them holds.
func NeutralPose() Snapshot {
	return Snapshot{
		HipCenter:      {X: 0, Y: 0, Z: 2000},
		Spine:          {X: 0, Y: 100, Z: 2000},
		ShoulderCenter: {X: 0, Y: 450, Z: 2000},
		Head:           {X: 0, Y: 650, Z: 2000},

		ShoulderLeft: {X: -180, Y: 420, Z: 2000},
		ElbowLeft:    {X: -180, Y: 150, Z: 2000},
		WristLeft:    {X: -180, Y: -80, Z: 2000},
		HandLeft:     {X: -180, Y: -150, Z: 2000},

		ShoulderRight: {X: 180, Y: 420, Z: 2000},
		ElbowRight:    {X: 180, Y: 150, Z: 2000},
		WristRight:    {X: 180, Y: -80, Z: 2000},
		HandRight:     {X: 180, Y: -150, Z: 2000},

		HipLeft:   {X: -100, Y: -50, Z: 2000},
		KneeLeft:  {X: -100, Y: -500, Z: 2000},
		AnkleLeft: {X: -100, Y: -900, Z: 2000},
		FootLeft:  {X: -100, Y: -950, Z: 1950},

		HipRight:   {X: 100, Y: -50, Z: 2000},
		KneeRight:  {X: 100, Y: -500, Z: 2000},
		AnkleRight: {X: 100, Y: -900, Z: 2000},
		FootRight:  {X: 100, Y: -950, Z: 1950},
	}
}

// LeftHandRaisedPose returns a preset snapshot with the left arm raised
// straight up above the head.
func LeftHandRaisedPose() Snapshot {
	return NeutralPose().
		With(ElbowLeft, Point3D{X: -180, Y: 700, Z: 2000}).
		With(WristLeft, Point3D{X: -180, Y: 900, Z: 2000}).
		With(HandLeft, Point3D{X: -180, Y: 980, Z: 2000})
}

// LeftHandOutPose returns a preset snapshot with the left arm stretched out
// sideways at shoulder height.
func LeftHandOutPose() Snapshot {
	return NeutralPose().
		With(ElbowLeft, Point3D{X: -320, Y: 420, Z: 2000}).
		With(WristLeft, Point3D{X: -440, Y: 420, Z: 2000}).
		With(HandLeft, Point3D{X: -500, Y: 420, Z: 2000})
}

// HandsApartPose returns a preset snapshot with both hands held in front of
// the chest 800mm apart.
func HandsApartPose() Snapshot {
	return NeutralPose().
		With(HandLeft, Point3D{X: -400, Y: 300, Z: 1700}).
		With(HandRight, Point3D{X: 400, Y: 300, Z: 1700})
}

// HandsTogetherPose returns a preset snapshot with both hands held in front
// of the chest 60mm apart.
func HandsTogetherPose() Snapshot {
	return NeutralPose().
		With(HandLeft, Point3D{X: -30, Y: 300, Z: 1700}).
		With(HandRight, Point3D{X: 30, Y: 300, Z: 1700})
}
