// Package input is the boundary with the host's input framework: button
// state per hand, aim poses, and the one-shot toggle that suppresses
// ordinary application input delivery while the overlay cursor owns it.
package input

import "vr-window-overlay/xrmath"

type Hand int

const (
	HandLeft Hand = iota
	HandRight
)

type Button int

const (
	// ButtonSelect is the primary click (trigger).
	ButtonSelect Button = iota
	ButtonMenu
)

// Source answers per-frame input queries. Implementations must be cheap and
// non-blocking; they are called on the presentation thread.
type Source interface {
	// ButtonDown reports the raw held state; callers derive edges.
	ButtonDown(h Hand, b Button) bool
	// AimPose is the hand's aim ray pose, false while not tracked.
	AimPose(h Hand) (xrmath.Posef, bool)
	// SetBlockInput suppresses (true) or restores (false) application
	// input delivery. Must be reasserted or cleared every frame.
	SetBlockInput(block bool)
}

// Static is a settable Source for tests and the simulator.
type Static struct {
	Buttons map[Button]bool
	Pose    xrmath.Posef
	Tracked bool
	Blocked bool
}

func NewStatic() *Static {
	return &Static{Buttons: make(map[Button]bool)}
}

func (s *Static) ButtonDown(_ Hand, b Button) bool { return s.Buttons[b] }

func (s *Static) AimPose(Hand) (xrmath.Posef, bool) { return s.Pose, s.Tracked }

func (s *Static) SetBlockInput(block bool) { s.Blocked = block }
