package xrmath

import "math"

// Vector3 is a 3-component float vector, matching the 32-bit layout used by
// HMD runtimes.
type Vector3 struct {
	X, Y, Z float32
}

func (v Vector3) Add(o Vector3) Vector3 { return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vector3) Sub(o Vector3) Vector3 { return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vector3) Scale(s float32) Vector3 { return Vector3{v.X * s, v.Y * s, v.Z * s} }

func (v Vector3) Dot(o Vector3) float32 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vector3) Length() float32 {
	return float32(math.Sqrt(float64(v.Dot(v))))
}

// Normalized returns the unit vector, or the zero vector when the length is
// too small to divide by.
func (v Vector3) Normalized() Vector3 {
	l := v.Length()
	if l < 1e-9 {
		return Vector3{}
	}
	return v.Scale(1 / l)
}

// Quaternion is a rotation, W is the scalar part. The zero value is invalid;
// use QuaternionIdentity.
type Quaternion struct {
	X, Y, Z, W float32
}

func QuaternionIdentity() Quaternion { return Quaternion{W: 1} }

func (q Quaternion) Conjugate() Quaternion { return Quaternion{-q.X, -q.Y, -q.Z, q.W} }

// Rotate applies the rotation to v.
func (q Quaternion) Rotate(v Vector3) Vector3 {
	// v' = v + 2*cross(q.xyz, cross(q.xyz, v) + q.w*v)
	u := Vector3{q.X, q.Y, q.Z}
	c1 := cross(u, v).Add(v.Scale(q.W))
	c2 := cross(u, c1)
	return v.Add(c2.Scale(2))
}

func cross(a, b Vector3) Vector3 {
	return Vector3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

// Posef is a rigid transform: a rotation followed by a translation.
type Posef struct {
	Orientation Quaternion
	Position    Vector3
}

func PoseIdentity() Posef {
	return Posef{Orientation: QuaternionIdentity()}
}

// PoseTranslation returns an unrotated pose at p.
func PoseTranslation(p Vector3) Posef {
	return Posef{Orientation: QuaternionIdentity(), Position: p}
}

// Forward returns the -Z axis of the pose, the aim direction convention used
// by HMD runtimes.
func (p Posef) Forward() Vector3 {
	return p.Orientation.Rotate(Vector3{0, 0, -1})
}

// Extent2D is a physical size in meters.
type Extent2D struct {
	Width, Height float32
}

// View is one eye's viewpoint.
type View struct {
	Pose Posef
}
