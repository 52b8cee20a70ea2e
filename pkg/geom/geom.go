// Package geom provides the 3D vector, location and transform primitives
// shared by the world map, vicinity grid and pipeline stages.
package geom

import (
	"math"

	"github.com/paulmach/orb"
)

// Vector3D is a right-handed-agnostic 3D vector used for both positions and
// directions; callers decide the interpretation from context.
type Vector3D struct {
	X, Y, Z float64
}

// Location is a position in world space. It is a type alias, identical to
// Vector3D; the separate name only makes signatures read as position vs.
// direction.
type Location = Vector3D

// Add returns v+w.
func (v Vector3D) Add(w Vector3D) Vector3D {
	return Vector3D{v.X + w.X, v.Y + w.Y, v.Z + w.Z}
}

// Sub returns v-w.
func (v Vector3D) Sub(w Vector3D) Vector3D {
	return Vector3D{v.X - w.X, v.Y - w.Y, v.Z - w.Z}
}

// Scale returns v scaled by s.
func (v Vector3D) Scale(s float64) Vector3D {
	return Vector3D{v.X * s, v.Y * s, v.Z * s}
}

// Length returns the Euclidean norm of v.
func (v Vector3D) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// LengthSquared avoids the sqrt when only comparisons are needed.
func (v Vector3D) LengthSquared() float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// Normalize returns a unit vector in the direction of v, or the zero vector
// if v is (numerically) zero-length.
func (v Vector3D) Normalize() Vector3D {
	l := v.Length()
	if l < 1e-9 {
		return Vector3D{}
	}
	return v.Scale(1 / l)
}

// Distance returns the Euclidean distance between two locations.
func Distance(a, b Location) float64 {
	return a.Sub(b).Length()
}

// DistanceSquared avoids the sqrt when only comparisons are needed.
func DistanceSquared(a, b Location) float64 {
	return a.Sub(b).LengthSquared()
}

// Dot returns the dot product of a and b.
func Dot(a, b Vector3D) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

// CrossZ returns the z component of the cross product a x b, i.e. the
// signed area term used to tell left from right in the XY plane.
func CrossZ(a, b Vector3D) float64 {
	return a.X*b.Y - a.Y*b.X
}

// Perpendicular2D returns the vector rotated +90 degrees about Z, i.e.
// (-y, x, 0). Used to offset a heading into a lane-width boundary line.
func (v Vector3D) Perpendicular2D() Vector3D {
	return Vector3D{-v.Y, v.X, 0}
}

// Rotation holds Euler angles in degrees, matching the convention of the
// simulator's own transform type.
type Rotation struct {
	Pitch, Yaw, Roll float64
}

// ForwardVector returns the unit heading vector implied by the yaw angle,
// ignoring pitch/roll (the pipeline only ever needs the planar heading).
func (r Rotation) ForwardVector() Vector3D {
	rad := r.Yaw * math.Pi / 180
	return Vector3D{X: math.Cos(rad), Y: math.Sin(rad), Z: 0}
}

// Transform is a location plus orientation.
type Transform struct {
	Location Location
	Rotation Rotation
}

// ForwardVector forwards to the embedded rotation.
func (t Transform) ForwardVector() Vector3D { return t.Rotation.ForwardVector() }

// BoundingBox is an actor's half-extent box centered on its transform.
type BoundingBox struct {
	Extent Vector3D
}

// ToRing projects a closed sequence of locations onto the XY plane as an
// orb.Ring, appending the closing point if the caller didn't already.
func ToRing(locations []Location) orb.Ring {
	ring := make(orb.Ring, 0, len(locations)+1)
	for _, l := range locations {
		ring = append(ring, orb.Point{l.X, l.Y})
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

// Lerp linearly interpolates between a and b by t in [0,1].
func Lerp(a, b Location, t float64) Location {
	return a.Add(b.Sub(a).Scale(t))
}
