package xrmath

// QuadHit is an intersection between a ray and the plane of a quad, in the
// quad's normalized coordinates: (0,0) is the top-left corner, (1,1) the
// bottom-right. U or V outside [0,1] means the ray crossed the plane outside
// the quad; callers apply their own margin before rejecting.
type QuadHit struct {
	U, V     float32
	Distance float32
}

// IntersectQuad casts the aim ray of pose against a quad of the given size
// centered on quadPose, facing +Z in its local frame (toward the viewer for
// the usual 0,0,-1 placement). Returns false when the ray is parallel to the
// plane or points away from it.
func IntersectQuad(aim Posef, quadPose Posef, size Extent2D) (QuadHit, bool) {
	inv := quadPose.Orientation.Conjugate()
	origin := inv.Rotate(aim.Position.Sub(quadPose.Position))
	dir := inv.Rotate(aim.Forward())

	// The threshold sits above float32 rounding noise (~1.2e-7): a direction
	// that comes out of the quaternion math as almost-parallel must not
	// produce a hit with huge U/V.
	if dir.Z > -1e-6 && dir.Z < 1e-6 {
		return QuadHit{}, false
	}
	t := -origin.Z / dir.Z
	if t < 0 {
		return QuadHit{}, false
	}
	p := origin.Add(dir.Scale(t))

	return QuadHit{
		U:        p.X/size.Width + 0.5,
		V:        0.5 - p.Y/size.Height,
		Distance: t,
	}, true
}
