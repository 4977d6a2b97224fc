package graphics

import (
	"errors"

	"vr-window-overlay/xrmath"
)

// ErrValidation is returned for malformed inbound host-call structures. The
// call is rejected whole; no partial processing happens.
var ErrValidation = errors.New("graphics: validation failure")

// StructureType tags inbound host structures, mirroring the host runtime's
// typed-struct convention.
type StructureType int

const (
	StructureTypeUnknown StructureType = iota
	StructureTypeEndFrameInfo
)

// EyeVisibility selects which eyes see a layer.
type EyeVisibility int

const (
	EyeVisibilityBoth EyeVisibility = iota
	EyeVisibilityLeft
	EyeVisibilityRight
)

// SpaceKind names a reference coordinate frame.
type SpaceKind int

const (
	// SpaceLocal is the world-anchored frame near the user's start position.
	SpaceLocal SpaceKind = iota
	// SpaceView is head-locked.
	SpaceView
)

// Space is a reference space created for a session and destroyed with it.
type Space struct {
	Kind        SpaceKind
	PoseInSpace xrmath.Posef

	destroyed bool
}

func NewReferenceSpace(kind SpaceKind, pose xrmath.Posef) *Space {
	return &Space{Kind: kind, PoseInSpace: pose}
}

func (s *Space) Destroy() { s.destroyed = true }

func (s *Space) Destroyed() bool { return s.destroyed }

// Layer is a pose-anchored quad composited alongside the main rendering.
type Layer struct {
	// BlendSourceAlpha composites the layer using its per-pixel alpha.
	BlendSourceAlpha bool
	Swapchain        Swapchain
	SubImage         Rect
	EyeVisibility    EyeVisibility
	Pose             xrmath.Posef
	Space            *Space
	Size             xrmath.Extent2D
}

// EndFrameInfo is the inbound frame-submission call. The engine appends its
// overlay layers and hands the augmented list back; it never removes or
// reorders existing entries.
type EndFrameInfo struct {
	Type        StructureType
	DisplayTime int64
	Layers      []Layer
	// ProjectionViews are the stereo eye views the host submits alongside
	// the layers; the IPD-override variant patches and restores their poses.
	ProjectionViews []xrmath.View
}

// Validate checks the structure tag.
func (i *EndFrameInfo) Validate() error {
	if i.Type != StructureTypeEndFrameInfo {
		return ErrValidation
	}
	return nil
}
