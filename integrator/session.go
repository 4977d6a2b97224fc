package integrator

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vr-window-overlay/capture"
	"vr-window-overlay/compositor"
	"vr-window-overlay/cursor"
	"vr-window-overlay/graphics"
	"vr-window-overlay/input"
	"vr-window-overlay/process"
	"vr-window-overlay/surface"
	"vr-window-overlay/xrmath"
)

// State is the capture lifecycle of one session.
type State int

const (
	// StateUninitialized: no live source; everything tied to a previous
	// source has been torn down.
	StateUninitialized State = iota
	// StateAcquiringSource: waiting for the helper process and its window.
	StateAcquiringSource
	// StateCapturing: a capture source exists and frames are flowing.
	StateCapturing
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAcquiringSource:
		return "acquiring-source"
	case StateCapturing:
		return "capturing"
	default:
		return "unknown"
	}
}

const cursorQuadPx = 16

// Session carries all per-session resources. Created at most once per
// session, on the first presented frame; destroyed with the session.
type Session struct {
	ID    uuid.UUID
	state State

	supervisor *process.Supervisor
	backend    capture.Backend
	surfaces   *surface.Manager
	comp       *compositor.Transparency
	ctx        *graphics.Context
	space      *graphics.Space
	pose       xrmath.Posef

	tracker    *cursor.Tracker
	cursorSurf *surface.Manager

	// Recorded true eye separation while the override is in flight.
	trueIPD    float32
	ipdPatched bool

	// Log-once latches, per cause. Reset when the cause clears.
	backendFailLogged bool
	surfaceFailLogged bool

	newBackend func(win process.Window) (capture.Backend, error)
	log        zerolog.Logger
}

// tick runs the per-frame algorithm and reports whether the overlay has
// fresh, submittable content. Every failure mode is a graceful skip; the
// overlay is simply absent for the frame.
func (s *Session) tick() bool {
	if s.state == StateUninitialized {
		s.state = StateAcquiringSource
	}

	if !s.supervisor.EnsureRunning() {
		// No process or no window yet. Resources bound to a previous
		// window are stale the moment it is gone.
		s.releaseCapture()
		s.state = StateAcquiringSource
		return false
	}
	win, _ := s.supervisor.Window()

	if s.backend == nil {
		b, err := s.newBackend(win)
		if err != nil {
			// Fatal to this capture attempt only; retried from
			// acquiring-source next frame.
			if !s.backendFailLogged {
				s.log.Warn().Err(err).Msg("capture backend construction failed")
				s.backendFailLogged = true
			}
			return false
		}
		s.backendFailLogged = false
		s.backend = b
		s.log.Info().Str("window", win.Title).Int("pid", win.PID).
			Msg("capture source acquired")
	}

	tex := s.backend.Surface()
	if tex == nil {
		// No frame delivered yet. Keep all resources for the next attempt.
		return false
	}

	if err := s.surfaces.EnsureSized(tex.Width, tex.Height); err != nil {
		if !s.surfaceFailLogged {
			s.log.Warn().Err(err).Msg("overlay surface creation failed")
			s.surfaceFailLogged = true
		}
		// Discard partial state, retry from acquiring-source.
		s.releaseCapture()
		s.state = StateAcquiringSource
		return false
	}
	s.surfaceFailLogged = false

	img, err := s.surfaces.AcquireWritable()
	if err != nil {
		return false
	}
	// Acquire and commit stay paired even when the pass fails: an
	// acquired-but-uncommitted image is a leak, and the previous contents
	// are still fine to submit.
	passErr := s.comp.Recolor(s.ctx, tex, img)
	if err := s.surfaces.Commit(); err != nil {
		return false
	}
	if passErr != nil {
		s.log.Warn().Err(passErr).Msg("transparency pass failed")
		return false
	}

	s.state = StateCapturing
	return true
}

// overlayLayer describes the composited quad for this frame.
func (s *Session) overlayLayer() graphics.Layer {
	return graphics.Layer{
		BlendSourceAlpha: true,
		Swapchain:        s.surfaces.Swapchain(),
		SubImage:         s.surfaces.SubImage(),
		EyeVisibility:    graphics.EyeVisibilityBoth,
		Pose:             s.pose,
		Space:            s.space,
		Size:             s.surfaces.PhysicalSize(),
	}
}

// cursorLayer places a small marker quad at the hit point, slightly in
// front of the overlay plane so it always wins the depth comparison.
func (s *Session) cursorLayer(st cursor.HitState) (graphics.Layer, bool) {
	if s.cursorSurf == nil {
		return graphics.Layer{}, false
	}
	if !s.cursorSurf.Sized() {
		if err := s.prepareCursorSurface(); err != nil {
			return graphics.Layer{}, false
		}
	}

	sub := s.surfaces.SubImage()
	// A 1-pixel extent has no pixel-to-quad mapping to invert.
	if sub.Width < 2 || sub.Height < 2 {
		return graphics.Layer{}, false
	}
	size := s.surfaces.PhysicalSize()
	u := float32(st.PixelX) / float32(sub.Width-1)
	v := float32(st.PixelY) / float32(sub.Height-1)
	local := xrmath.Vector3{
		X: (u - 0.5) * size.Width,
		Y: (0.5 - v) * size.Height,
		Z: 0.01,
	}
	world := s.pose.Position.Add(s.pose.Orientation.Rotate(local))

	return graphics.Layer{
		BlendSourceAlpha: true,
		Swapchain:        s.cursorSurf.Swapchain(),
		SubImage:         s.cursorSurf.SubImage(),
		EyeVisibility:    graphics.EyeVisibilityBoth,
		Pose:             xrmath.Posef{Orientation: s.pose.Orientation, Position: world},
		Space:            s.space,
		Size:             xrmath.Extent2D{Width: 0.02, Height: 0.02},
	}, true
}

// prepareCursorSurface fills the marker quad once with opaque white.
func (s *Session) prepareCursorSurface() error {
	if err := s.cursorSurf.EnsureSized(cursorQuadPx, cursorQuadPx); err != nil {
		return err
	}
	img, err := s.cursorSurf.AcquireWritable()
	if err != nil {
		return err
	}
	for i := range img.Texture.Pix {
		img.Texture.Pix[i] = 0xff
	}
	return s.cursorSurf.Commit()
}

// releaseCapture drops the capture source and the destination surface, in
// that order: the surface mirrors the source's dimensions and is meaningless
// without it.
func (s *Session) releaseCapture() {
	if s.backend != nil {
		_ = s.backend.Close()
		s.backend = nil
	}
	s.surfaces.Release()
}

// close tears the session down in dependency order: capture, surface,
// process, reference space.
func (s *Session) close() {
	s.releaseCapture()
	if s.cursorSurf != nil {
		s.cursorSurf.Release()
	}
	if win, ok := s.supervisor.Window(); ok {
		process.PostQuit(win)
	}
	s.supervisor.TerminateAndReset()
	s.space.Destroy()
	s.comp.Close()
	s.state = StateUninitialized
	s.log.Info().Msg("session destroyed")
}

// clearInputBlock releases input suppression on frames without an overlay;
// a permanently blocked application would be worse than a missing cursor.
func (s *Session) clearInputBlock(src input.Source) {
	if s.tracker != nil && src != nil {
		src.SetBlockInput(false)
	}
}
