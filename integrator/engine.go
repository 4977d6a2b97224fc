// Package integrator ties capture, compositing and surface management into
// the host's frame-submission path. One Engine serves many sessions; each
// session owns its own helper process, capture source and overlay surface.
package integrator

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vr-window-overlay/capture"
	"vr-window-overlay/compositor"
	"vr-window-overlay/config"
	"vr-window-overlay/cursor"
	"vr-window-overlay/graphics"
	"vr-window-overlay/input"
	"vr-window-overlay/process"
	"vr-window-overlay/surface"
	"vr-window-overlay/xrmath"
)

// SessionHandle identifies a host session. Opaque to the engine.
type SessionHandle uint64

// SessionStore is the host-side slot where per-session engine state lives.
// The default map store works for hosts without their own session table.
type SessionStore interface {
	Get(h SessionHandle) *Session
	Set(h SessionHandle, s *Session)
	Delete(h SessionHandle)
	All() []SessionHandle
}

type mapStore struct {
	m map[SessionHandle]*Session
}

// NewMapStore returns the default in-memory session store.
func NewMapStore() SessionStore {
	return &mapStore{m: make(map[SessionHandle]*Session)}
}

func (s *mapStore) Get(h SessionHandle) *Session { return s.m[h] }

func (s *mapStore) Set(h SessionHandle, v *Session) { s.m[h] = v }

func (s *mapStore) Delete(h SessionHandle) { delete(s.m, h) }

func (s *mapStore) All() []SessionHandle {
	hs := make([]SessionHandle, 0, len(s.m))
	for h := range s.m {
		hs = append(hs, h)
	}
	return hs
}

// BackendFactory builds a capture backend for a discovered window.
type BackendFactory func(win process.Window) (capture.Backend, error)

// Options configures an Engine. Config and Factory are required; the rest
// default to the real OS-backed implementations.
type Options struct {
	Config  *config.Config
	Factory graphics.SwapchainFactory
	// Context is the host's shared command context. The engine binds and
	// fully unbinds it within each frame. Defaults to a fresh context.
	Context *graphics.Context
	// Input feeds the interactive cursor. Required when Config.Interactive.
	Input input.Source
	Store SessionStore

	// Test seams. Zero values select the production paths.
	Finder  process.WindowFinder
	Spawn   process.Spawner
	Backend BackendFactory

	Log zerolog.Logger
}

// Engine intercepts frame submission and appends the overlay quad.
type Engine struct {
	opts Options
	kind capture.Kind

	mu    sync.Mutex
	store SessionStore

	log zerolog.Logger
}

// NewEngine validates the options and reaps stale helper processes left
// behind by a previous run.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("integrator: nil config")
	}
	if opts.Factory == nil {
		return nil, fmt.Errorf("integrator: nil swapchain factory")
	}
	if opts.Config.Interactive && opts.Input == nil {
		return nil, fmt.Errorf("integrator: interactive mode needs an input source")
	}
	kind, err := kindFromName(opts.Config.Backend)
	if err != nil {
		return nil, err
	}
	if opts.Store == nil {
		opts.Store = NewMapStore()
	}
	if opts.Context == nil {
		opts.Context = graphics.NewContext()
	}

	e := &Engine{
		opts:  opts,
		kind:  kind,
		store: opts.Store,
		log:   opts.Log,
	}
	if opts.Backend == nil {
		e.opts.Backend = func(win process.Window) (capture.Backend, error) {
			return capture.New(e.kind, win, opts.Config.CaptureFPS)
		}
	}

	// A helper left over from a crashed run would shadow the one we spawn.
	process.KillStale(filepath.Base(opts.Config.ProcessPath))

	e.log.Info().
		Str("backend", kind.String()).
		Str("process", opts.Config.ProcessPath).
		Bool("interactive", opts.Config.Interactive).
		Bool("ipd_override", opts.Config.IPDOverrideEnabled).
		Msg("overlay engine ready")
	return e, nil
}

func kindFromName(name string) (capture.Kind, error) {
	switch name {
	case config.BackendSharedSurface:
		return capture.KindSharedSurface, nil
	case config.BackendFramePool:
		return capture.KindFramePool, nil
	default:
		return 0, fmt.Errorf("integrator: unknown capture backend %q", name)
	}
}

// EndFrame is the submission interception point. The host's layers pass
// through untouched and in order; on success the overlay quad (and the
// cursor quad, in interactive mode) is appended after them. Any capture
// trouble means the overlay is simply absent this frame.
func (e *Engine) EndFrame(h SessionHandle, info graphics.EndFrameInfo) (graphics.EndFrameInfo, error) {
	if err := info.Validate(); err != nil {
		return graphics.EndFrameInfo{}, err
	}
	if e.opts.Config.Bypass {
		return info, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session(h)

	out := info
	out.Layers = make([]graphics.Layer, len(info.Layers), len(info.Layers)+2)
	copy(out.Layers, info.Layers)

	if s.tick() {
		out.Layers = append(out.Layers, s.overlayLayer())
		if s.tracker != nil {
			sub := s.surfaces.SubImage()
			st := s.tracker.Update(s.pose, s.surfaces.PhysicalSize(), sub.Width, sub.Height)
			if st.Valid {
				if l, ok := s.cursorLayer(st); ok {
					out.Layers = append(out.Layers, l)
				}
			}
		}
	} else {
		s.clearInputBlock(e.opts.Input)
	}

	if e.opts.Config.IPDOverrideEnabled && s.ipdPatched && len(out.ProjectionViews) >= 2 {
		restored := make([]xrmath.View, len(out.ProjectionViews))
		copy(restored, out.ProjectionViews)
		xrmath.RestoreIPD(restored, s.trueIPD)
		out.ProjectionViews = restored
		s.ipdPatched = false
	}

	return out, nil
}

// LocateViews applies the forced eye separation on the way to the
// application and records the true separation so EndFrame can restore it
// before the views reach the display path. Bypass disables the patch along
// with everything else: the bypassed EndFrame never restores, and a patched
// but unrestored separation would reach the presentation compositor.
func (e *Engine) LocateViews(h SessionHandle, views []xrmath.View) []xrmath.View {
	if e.opts.Config.Bypass || !e.opts.Config.IPDOverrideEnabled || len(views) < 2 {
		return views
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session(h)

	patched := make([]xrmath.View, len(views))
	copy(patched, views)
	s.trueIPD = xrmath.OverrideIPD(patched, e.opts.Config.ForcedIPDMeters)
	s.ipdPatched = true
	return patched
}

// SetPlacement repositions the overlay quad for a session.
func (e *Engine) SetPlacement(h SessionHandle, pose xrmath.Posef) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session(h).pose = pose
}

// SetRegions installs the clickable regions for interactive hit dispatch.
func (e *Engine) SetRegions(h SessionHandle, rs []cursor.Region) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session(h)
	if s.tracker != nil {
		s.tracker.SetRegions(rs)
	}
}

// Session exposes the per-session state for inspection. Read-only: an
// unknown handle reports nil rather than materializing a session.
func (e *Engine) Session(h SessionHandle) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Get(h)
}

// DestroySession tears down everything the session owns: capture source,
// overlay surface, helper process, reference space, compute resources.
func (e *Engine) DestroySession(h SessionHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.store.Get(h)
	if s == nil {
		return
	}
	s.close()
	e.store.Delete(h)
}

// Close destroys every live session.
func (e *Engine) Close() {
	e.mu.Lock()
	handles := e.store.All()
	e.mu.Unlock()
	for _, h := range handles {
		e.DestroySession(h)
	}
}

// session returns the state for a handle, creating it on first use. All
// per-session resources are allocated here exactly once.
func (e *Engine) session(h SessionHandle) *Session {
	if s := e.store.Get(h); s != nil {
		return s
	}

	cfg := e.opts.Config
	id := uuid.New()
	log := e.log.With().Str("session", id.String()).Logger()

	s := &Session{
		ID:       id,
		state:    StateUninitialized,
		ctx:      e.opts.Context,
		space:    graphics.NewReferenceSpace(graphics.SpaceLocal, xrmath.PoseIdentity()),
		pose:     xrmath.PoseTranslation(xrmath.Vector3{Z: -1}),
		surfaces: surface.NewManager(e.opts.Factory, cfg.OverlayWidthMeters, log),
		comp: compositor.NewTransparency(compositor.Constants{
			KeyColor:         cfg.KeyColor,
			OpaqueAlpha:      cfg.OpaqueAlpha,
			TransparentAlpha: cfg.TransparentAlpha,
		}),
		newBackend: e.opts.Backend,
		log:        log,
	}
	s.supervisor = process.NewSupervisor(process.Options{
		ExePath:     cfg.ProcessPath,
		WindowTitle: cfg.WindowTitle,
		Finder:      e.opts.Finder,
		Spawn:       e.opts.Spawn,
		OnExit: func() {
			s.releaseCapture()
			s.state = StateUninitialized
		},
		Log: log,
	})
	if cfg.Interactive {
		s.tracker = cursor.NewTracker(e.opts.Input, input.HandRight, cfg.CursorMarginPx)
		s.cursorSurf = surface.NewManager(e.opts.Factory, 0.02, log)
	}

	e.store.Set(h, s)
	log.Info().Msg("session created")
	return s
}
