package xrmath

// setEyeSeparation symmetrically displaces the two eye poses around their
// shared midpoint so that the distance between them becomes target, and
// returns the distance they had before. Both the override and the restore
// are the same displacement, which is what keeps the round trip exact: the
// midpoint and the eye axis are unchanged by the operation.
func setEyeSeparation(views []View, target float32) float32 {
	if len(views) < 2 {
		return 0
	}
	left := &views[0].Pose.Position
	right := &views[1].Pose.Position

	axis := right.Sub(*left)
	original := axis.Length()
	dir := axis.Normalized()
	if dir == (Vector3{}) {
		// Coincident eyes: no axis to displace along.
		return original
	}

	mid := left.Add(right.Sub(*left).Scale(0.5))
	half := dir.Scale(target / 2)
	*left = mid.Sub(half)
	*right = mid.Add(half)
	return original
}

// OverrideIPD forces the inter-pupillary distance of the first two views to
// target meters and returns the true original distance, which the caller must
// keep to restore the views before frame submission.
func OverrideIPD(views []View, target float32) float32 {
	return setEyeSeparation(views, target)
}

// RestoreIPD undoes OverrideIPD using the recorded true distance. Failing to
// restore before submission makes the presentation compositor reproject
// against the synthetic separation.
func RestoreIPD(views []View, original float32) {
	setEyeSeparation(views, original)
}
