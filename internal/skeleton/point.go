package skeleton

import "gonum.org/v1/gonum/spatial/r3"

// Point3D is a joint position in millimetres.
// X grows to the sensor's right, Y grows upward and Z grows away from the sensor.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec returns the point as a gonum vector.
func (p Point3D) Vec() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// PointFromVec converts a gonum vector back to a Point3D.
func PointFromVec(v r3.Vec) Point3D {
	return Point3D{X: v.X, Y: v.Y, Z: v.Z}
}

// Sub returns p - q.
func (p Point3D) Sub(q Point3D) Point3D {
	return PointFromVec(r3.Sub(p.Vec(), q.Vec()))
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point3D) float64 {
	return r3.Norm(r3.Sub(a.Vec(), b.Vec()))
}

// FromMeters converts a tracker position in metres to millimetres.
func FromMeters(p Point3D) Point3D {
	return PointFromVec(r3.Scale(1000, p.Vec()))
}
