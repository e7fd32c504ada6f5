// Package skeleton provides the skeletal tracking data model consumed by the
// gesture engine: joints, positions, per-player snapshots and frames.
package skeleton

import "fmt"

// Joint identifies one joint of the 20-joint depth-sensor skeleton.
type Joint int

// Joint indices follow the sensor SDK ordering.
const (
	HipCenter Joint = iota
	Spine
	ShoulderCenter
	Head
	ShoulderLeft
	ElbowLeft
	WristLeft
	HandLeft
	ShoulderRight
	ElbowRight
	WristRight
	HandRight
	HipLeft
	KneeLeft
	AnkleLeft
	FootLeft
	HipRight
	KneeRight
	AnkleRight
	FootRight
	NumJoints = 20
)

var jointNames = [NumJoints]string{
	"HipCenter",
	"Spine",
	"ShoulderCenter",
	"Head",
	"ShoulderLeft",
	"ElbowLeft",
	"WristLeft",
	"HandLeft",
	"ShoulderRight",
	"ElbowRight",
	"WristRight",
	"HandRight",
	"HipLeft",
	"KneeLeft",
	"AnkleLeft",
	"FootLeft",
	"HipRight",
	"KneeRight",
	"AnkleRight",
	"FootRight",
}

// Valid reports whether j is one of the known joints.
func (j Joint) Valid() bool {
	return j >= 0 && j < NumJoints
}

// String returns the joint name, e.g. "HandLeft".
func (j Joint) String() string {
	if !j.Valid() {
		return fmt.Sprintf("Joint(%d)", int(j))
	}
	return jointNames[j]
}

// MarshalText encodes the joint by name.
func (j Joint) MarshalText() ([]byte, error) {
	if !j.Valid() {
		return nil, fmt.Errorf("invalid joint %d", int(j))
	}
	return []byte(jointNames[j]), nil
}

// UnmarshalText decodes a joint name.
func (j *Joint) UnmarshalText(text []byte) error {
	parsed, ok := ParseJoint(string(text))
	if !ok {
		return fmt.Errorf("unknown joint %q", string(text))
	}
	*j = parsed
	return nil
}

// ParseJoint resolves a joint by its exact name.
func ParseJoint(name string) (Joint, bool) {
	for i, n := range jointNames {
		if n == name {
			return Joint(i), true
		}
	}
	return 0, false
}

// Joints returns every joint in index order.
func Joints() []Joint {
	joints := make([]Joint, NumJoints)
	for i := range joints {
		joints[i] = Joint(i)
	}
	return joints
}
