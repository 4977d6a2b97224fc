package integrator

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"vr-window-overlay/capture"
	"vr-window-overlay/config"
	"vr-window-overlay/cursor"
	"vr-window-overlay/graphics"
	"vr-window-overlay/input"
	"vr-window-overlay/process"
	"vr-window-overlay/xrmath"
)

type fakeHandle struct {
	pid        int
	done       chan struct{}
	terminated bool
}

func newFakeHandle(pid int) *fakeHandle {
	return &fakeHandle{pid: pid, done: make(chan struct{})}
}

func (h *fakeHandle) PID() int              { return h.pid }
func (h *fakeHandle) Done() <-chan struct{} { return h.done }
func (h *fakeHandle) Terminate() {
	h.terminated = true
	h.kill()
}

func (h *fakeHandle) kill() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

type fakeSpawner struct {
	calls   int
	handles []*fakeHandle
}

func (f *fakeSpawner) spawn(string) (process.Handle, error) {
	f.calls++
	h := newFakeHandle(1000 + f.calls)
	f.handles = append(f.handles, h)
	return h, nil
}

type fakeFinder struct {
	win   process.Window
	found bool
}

func (f *fakeFinder) FindByPID(int) (process.Window, bool) {
	if !f.found {
		return process.Window{}, false
	}
	return f.win, true
}

func (f *fakeFinder) FindByTitle(string) (process.Window, bool) {
	return f.FindByPID(0)
}

type fakeBackend struct {
	tex    *graphics.Texture
	closed bool
}

func (b *fakeBackend) Surface() *graphics.Texture { return b.tex }
func (b *fakeBackend) Close() error               { b.closed = true; return nil }

func testConfig() *config.Config {
	return &config.Config{
		KeyColor:           [3]float32{1, 0, 1},
		OpaqueAlpha:        1,
		TransparentAlpha:   0,
		OverlayWidthMeters: 1,
		CursorMarginPx:     2,
		ProcessPath:        "overlay-helper.exe",
		Backend:            config.BackendFramePool,
		CaptureFPS:         60,
		ForcedIPDMeters:    0.05,
	}
}

type rig struct {
	cfg        *config.Config
	factory    *graphics.SoftwareFactory
	spawner    *fakeSpawner
	finder     *fakeFinder
	backend    *fakeBackend
	backendErr error
	builds     int
	src        *input.Static
	ctx        *graphics.Context
	logBuf     *bytes.Buffer
	engine     *Engine
	store      SessionStore
}

func newRig(t *testing.T, mutate func(*config.Config)) *rig {
	t.Helper()
	r := &rig{
		cfg:     testConfig(),
		factory: graphics.NewSoftwareFactory(),
		spawner: &fakeSpawner{},
		finder:  &fakeFinder{win: process.Window{Handle: 7, Title: "Overlay", Width: 64, Height: 32}, found: true},
		backend: &fakeBackend{},
		src:     input.NewStatic(),
		ctx:     graphics.NewContext(),
		logBuf:  &bytes.Buffer{},
		store:   NewMapStore(),
	}
	if mutate != nil {
		mutate(r.cfg)
	}

	tex, err := graphics.NewTexture(64, 32, graphics.FormatRGBA8)
	if err != nil {
		t.Fatalf("texture: %v", err)
	}
	r.backend.tex = tex

	eng, err := NewEngine(Options{
		Config:  r.cfg,
		Factory: r.factory,
		Context: r.ctx,
		Input:   r.src,
		Store:   r.store,
		Finder:  r.finder,
		Spawn:   r.spawner.spawn,
		Backend: func(process.Window) (capture.Backend, error) {
			r.builds++
			if r.backendErr != nil {
				return nil, r.backendErr
			}
			return r.backend, nil
		},
		Log: zerolog.New(r.logBuf),
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	r.engine = eng
	return r
}

func frame(layers ...graphics.Layer) graphics.EndFrameInfo {
	return graphics.EndFrameInfo{
		Type:        graphics.StructureTypeEndFrameInfo,
		DisplayTime: 12345,
		Layers:      layers,
	}
}

func TestEndFrameAppendsOverlayAfterHostLayers(t *testing.T) {
	r := newRig(t, nil)

	hostSpace := graphics.NewReferenceSpace(graphics.SpaceView, xrmath.PoseIdentity())
	host := graphics.Layer{Space: hostSpace, Size: xrmath.Extent2D{Width: 2, Height: 2}}

	out, err := r.engine.EndFrame(1, frame(host, host))
	if err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if len(out.Layers) != 3 {
		t.Fatalf("got %d layers, want 3", len(out.Layers))
	}
	for i := 0; i < 2; i++ {
		if out.Layers[i].Space != hostSpace {
			t.Errorf("host layer %d was disturbed", i)
		}
	}

	overlay := out.Layers[2]
	if !overlay.BlendSourceAlpha {
		t.Error("overlay must blend with source alpha")
	}
	if overlay.EyeVisibility != graphics.EyeVisibilityBoth {
		t.Error("overlay must be visible to both eyes")
	}
	if overlay.Pose.Position.Z != -1 {
		t.Errorf("overlay Z = %v, want -1", overlay.Pose.Position.Z)
	}
	if overlay.Size.Width != 1 || overlay.Size.Height != 0.5 {
		t.Errorf("overlay size = %+v, want 1x0.5", overlay.Size)
	}
	if overlay.SubImage.Width != 64 || overlay.SubImage.Height != 32 {
		t.Errorf("overlay sub-image = %+v, want 64x32", overlay.SubImage)
	}
	if overlay.Space == nil || overlay.Space.Kind != graphics.SpaceLocal {
		t.Error("overlay must be anchored in the local reference space")
	}

	if s := r.engine.Session(1); s.state != StateCapturing {
		t.Errorf("state = %v, want capturing", s.state)
	}
	if !r.ctx.Clean() {
		t.Error("shared command context must be fully unbound after the frame")
	}
}

func TestEndFrameRejectsWrongStructureType(t *testing.T) {
	r := newRig(t, nil)

	_, err := r.engine.EndFrame(1, graphics.EndFrameInfo{})
	if !errors.Is(err, graphics.ErrValidation) {
		t.Fatalf("err = %v, want validation failure", err)
	}
	if len(r.store.All()) != 0 {
		t.Error("rejected frame must not create a session")
	}
}

func TestBypassPassesFramesThrough(t *testing.T) {
	r := newRig(t, func(c *config.Config) { c.Bypass = true })

	in := frame(graphics.Layer{Size: xrmath.Extent2D{Width: 3}})
	out, err := r.engine.EndFrame(1, in)
	if err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if len(out.Layers) != 1 || out.Layers[0].Size.Width != 3 {
		t.Error("bypass must hand the frame back untouched")
	}
	if r.spawner.calls != 0 || len(r.store.All()) != 0 {
		t.Error("bypass must not spawn processes or create sessions")
	}
}

func TestMissingWindowSkipsGracefully(t *testing.T) {
	r := newRig(t, nil)
	r.finder.found = false

	for i := 0; i < 3; i++ {
		out, err := r.engine.EndFrame(1, frame())
		if err != nil {
			t.Fatalf("EndFrame: %v", err)
		}
		if len(out.Layers) != 0 {
			t.Fatal("no overlay without a capture window")
		}
	}
	if s := r.engine.Session(1); s.state != StateAcquiringSource {
		t.Errorf("state = %v, want acquiring-source", s.state)
	}
	if r.spawner.calls != 1 {
		t.Errorf("spawned %d times, want 1", r.spawner.calls)
	}
}

func TestNoFrameYetKeepsResourcesAndRecovers(t *testing.T) {
	r := newRig(t, nil)
	tex := r.backend.tex
	r.backend.tex = nil

	out, err := r.engine.EndFrame(1, frame())
	if err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if len(out.Layers) != 0 {
		t.Fatal("no overlay before the first captured frame")
	}
	if r.backend.closed {
		t.Fatal("a starved backend must be kept, not torn down")
	}

	r.backend.tex = tex
	out, err = r.engine.EndFrame(1, frame())
	if err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if len(out.Layers) != 1 {
		t.Fatal("overlay must appear once frames flow")
	}
	if r.builds != 1 {
		t.Errorf("backend built %d times, want 1", r.builds)
	}
}

func TestSurfaceRecreatedOnCaptureResize(t *testing.T) {
	r := newRig(t, nil)

	if _, err := r.engine.EndFrame(1, frame()); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}

	tex, err := graphics.NewTexture(100, 50, graphics.FormatRGBA8)
	if err != nil {
		t.Fatalf("texture: %v", err)
	}
	r.backend.tex = tex
	out, err := r.engine.EndFrame(1, frame())
	if err != nil {
		t.Fatalf("EndFrame: %v", err)
	}

	created := r.factory.Created()
	if len(created) != 2 {
		t.Fatalf("created %d swapchains, want 2", len(created))
	}
	if !created[0].Destroyed() {
		t.Error("outgrown swapchain must be destroyed")
	}
	if info := created[1].Info(); info.Width != 100 || info.Height != 50 {
		t.Errorf("new swapchain is %dx%d, want 100x50", info.Width, info.Height)
	}
	if got := out.Layers[0].SubImage; got.Width != 100 || got.Height != 50 {
		t.Errorf("sub-image = %+v, want 100x50", got)
	}
}

func TestAcquireAndCommitStayPaired(t *testing.T) {
	r := newRig(t, nil)

	const frames = 10
	for i := 0; i < frames; i++ {
		if _, err := r.engine.EndFrame(1, frame()); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}

	created := r.factory.Created()
	if len(created) != 1 {
		t.Fatalf("created %d swapchains, want 1", len(created))
	}
	sc := created[0]
	if sc.Acquires != frames || sc.Releases != frames || sc.Commits != frames {
		t.Errorf("acquire/release/commit = %d/%d/%d, want %d each",
			sc.Acquires, sc.Releases, sc.Commits, frames)
	}
}

func TestProcessDeathReleasesAndRespawns(t *testing.T) {
	r := newRig(t, nil)

	if _, err := r.engine.EndFrame(1, frame()); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}

	r.spawner.handles[0].kill()
	out, err := r.engine.EndFrame(1, frame())
	if err != nil {
		t.Fatalf("EndFrame: %v", err)
	}

	// Death is observed at the top of the frame: the capture source and
	// surface go first, then the helper is respawned.
	if !r.backend.closed {
		t.Error("capture backend must be closed when its window owner dies")
	}
	if !r.factory.Created()[0].Destroyed() {
		t.Error("overlay surface must be destroyed with its source")
	}
	if r.spawner.calls != 2 {
		t.Errorf("spawned %d times, want 2", r.spawner.calls)
	}

	// Window discovery and capture resume on the following frames.
	r.backend = &fakeBackend{tex: mustTexture(t, 64, 32)}
	out, err = r.engine.EndFrame(1, frame())
	if err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if len(out.Layers) != 1 {
		t.Fatal("overlay must come back after a respawn")
	}
}

func TestBackendFailureLoggedOnce(t *testing.T) {
	r := newRig(t, nil)
	r.backendErr = errors.New("access denied")

	for i := 0; i < 5; i++ {
		out, err := r.engine.EndFrame(1, frame())
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if len(out.Layers) != 0 {
			t.Fatal("no overlay while the backend cannot be built")
		}
	}
	if r.builds != 5 {
		t.Errorf("backend construction attempted %d times, want 5", r.builds)
	}
	if n := strings.Count(r.logBuf.String(), "capture backend construction failed"); n != 1 {
		t.Errorf("failure logged %d times, want 1", n)
	}
}

func TestIPDOverrideAndRestore(t *testing.T) {
	r := newRig(t, func(c *config.Config) { c.IPDOverrideEnabled = true })

	views := []xrmath.View{
		{Pose: xrmath.PoseTranslation(xrmath.Vector3{X: -0.032})},
		{Pose: xrmath.PoseTranslation(xrmath.Vector3{X: 0.032})},
	}
	patched := r.engine.LocateViews(1, views)

	if d := eyeDistance(patched); !near(d, 0.05) {
		t.Fatalf("patched separation = %v, want 0.05", d)
	}
	if d := eyeDistance(views); !near(d, 0.064) {
		t.Fatalf("caller's views were mutated, separation = %v", d)
	}

	in := frame()
	in.ProjectionViews = patched
	out, err := r.engine.EndFrame(1, in)
	if err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if d := eyeDistance(out.ProjectionViews); !near(d, 0.064) {
		t.Fatalf("submitted separation = %v, want the true 0.064", d)
	}
	if r.engine.Session(1).ipdPatched {
		t.Error("restore must clear the patched flag")
	}
}

func TestBypassDisablesIPDOverride(t *testing.T) {
	r := newRig(t, func(c *config.Config) {
		c.Bypass = true
		c.IPDOverrideEnabled = true
	})

	views := []xrmath.View{
		{Pose: xrmath.PoseTranslation(xrmath.Vector3{X: -0.032})},
		{Pose: xrmath.PoseTranslation(xrmath.Vector3{X: 0.032})},
	}
	patched := r.engine.LocateViews(1, views)
	if d := eyeDistance(patched); !near(d, 0.064) {
		t.Fatalf("bypassed LocateViews changed separation to %v", d)
	}

	// The bypassed EndFrame never restores, so nothing synthetic may be
	// in flight when it hands the frame straight back.
	in := frame()
	in.ProjectionViews = patched
	out, err := r.engine.EndFrame(1, in)
	if err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if d := eyeDistance(out.ProjectionViews); !near(d, 0.064) {
		t.Fatalf("submitted separation = %v, want the true 0.064", d)
	}
}

func TestIPDDisabledLeavesViewsAlone(t *testing.T) {
	r := newRig(t, nil)

	views := []xrmath.View{
		{Pose: xrmath.PoseTranslation(xrmath.Vector3{X: -0.032})},
		{Pose: xrmath.PoseTranslation(xrmath.Vector3{X: 0.032})},
	}
	got := r.engine.LocateViews(1, views)
	if d := eyeDistance(got); !near(d, 0.064) {
		t.Fatalf("separation = %v, want untouched 0.064", d)
	}
}

func TestInteractiveCursorLayer(t *testing.T) {
	r := newRig(t, func(c *config.Config) { c.Interactive = true })

	// Aim straight ahead from the origin; the quad sits at z=-1.
	r.src.Tracked = true
	r.src.Pose = xrmath.PoseIdentity()

	out, err := r.engine.EndFrame(1, frame())
	if err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if len(out.Layers) != 2 {
		t.Fatalf("got %d layers, want overlay plus cursor", len(out.Layers))
	}
	cur := out.Layers[1]
	if cur.Size.Width != 0.02 || cur.Size.Height != 0.02 {
		t.Errorf("cursor size = %+v, want 0.02x0.02", cur.Size)
	}
	// Pixel snapping keeps the marker within one texel of the true hit.
	if abs(cur.Pose.Position.X) > 1.0/63 || abs(cur.Pose.Position.Y) > 0.5/31 {
		t.Errorf("cursor at (%v, %v), want quad center", cur.Pose.Position.X, cur.Pose.Position.Y)
	}
	if cur.Pose.Position.Z <= -1 {
		t.Error("cursor must sit in front of the overlay plane")
	}
	if !r.src.Blocked {
		t.Error("a valid hit must suppress application input")
	}
}

func TestCursorSkippedOnDegenerateCapture(t *testing.T) {
	r := newRig(t, func(c *config.Config) { c.Interactive = true })
	r.src.Tracked = true
	r.src.Pose = xrmath.PoseIdentity()
	r.backend.tex = mustTexture(t, 1, 1)

	out, err := r.engine.EndFrame(1, frame())
	if err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	// The overlay itself is fine; only the cursor marker needs a pixel
	// grid to place itself on.
	if len(out.Layers) != 1 {
		t.Fatalf("got %d layers, want the overlay alone", len(out.Layers))
	}
}

func TestInteractiveBlockClearedOnSkip(t *testing.T) {
	r := newRig(t, func(c *config.Config) { c.Interactive = true })
	r.src.Tracked = true
	r.src.Pose = xrmath.PoseIdentity()

	if _, err := r.engine.EndFrame(1, frame()); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if !r.src.Blocked {
		t.Fatal("precondition: input blocked while hovering")
	}

	r.finder.found = false
	if _, err := r.engine.EndFrame(1, frame()); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if r.src.Blocked {
		t.Error("input must be released when the overlay disappears")
	}
}

func TestInteractiveClickDispatch(t *testing.T) {
	r := newRig(t, func(c *config.Config) { c.Interactive = true })
	r.src.Tracked = true
	r.src.Pose = xrmath.PoseIdentity()

	clicks := 0
	r.engine.SetRegions(1, []cursor.Region{{
		Rect:    graphics.Rect{X: 0, Y: 0, Width: 64, Height: 32},
		OnClick: func() { clicks++ },
	}})

	r.src.Buttons[input.ButtonSelect] = true
	for i := 0; i < 3; i++ {
		if _, err := r.engine.EndFrame(1, frame()); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	if clicks != 1 {
		t.Errorf("held button produced %d clicks, want 1", clicks)
	}

	r.src.Buttons[input.ButtonSelect] = false
	if _, err := r.engine.EndFrame(1, frame()); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	r.src.Buttons[input.ButtonSelect] = true
	if _, err := r.engine.EndFrame(1, frame()); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if clicks != 2 {
		t.Errorf("re-press produced %d clicks, want 2", clicks)
	}
}

func TestDestroySessionTearsEverythingDown(t *testing.T) {
	r := newRig(t, nil)

	if _, err := r.engine.EndFrame(1, frame()); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	s := r.engine.Session(1)

	r.engine.DestroySession(1)

	if !r.backend.closed {
		t.Error("capture backend must be closed")
	}
	if !r.factory.Created()[0].Destroyed() {
		t.Error("overlay swapchain must be destroyed")
	}
	if !r.spawner.handles[0].terminated {
		t.Error("helper process must be terminated")
	}
	if !s.space.Destroyed() {
		t.Error("reference space must be destroyed")
	}
	if len(r.store.All()) != 0 {
		t.Error("session must leave the store")
	}

	// A destroyed handle starts over from scratch.
	r.backend = &fakeBackend{tex: mustTexture(t, 64, 32)}
	r.finder.found = true
	out, err := r.engine.EndFrame(1, frame())
	if err != nil {
		t.Fatalf("EndFrame after destroy: %v", err)
	}
	if len(out.Layers) != 1 {
		t.Error("a fresh session must capture again")
	}
}

func TestSessionResourcesAllocatedOnce(t *testing.T) {
	r := newRig(t, nil)

	if r.engine.Session(1) != nil {
		t.Fatal("inspecting an unknown handle must not materialize a session")
	}

	if _, err := r.engine.EndFrame(1, frame()); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	s1 := r.engine.Session(1)
	if s1 == nil {
		t.Fatal("session missing after its first frame")
	}
	if _, err := r.engine.EndFrame(1, frame()); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if s2 := r.engine.Session(1); s1 != s2 {
		t.Error("session state must persist across frames")
	}

	if r.engine.Session(2) != nil {
		t.Error("inspection of a second handle must not create state")
	}
	if _, err := r.engine.EndFrame(2, frame()); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if other := r.engine.Session(2); other.ID == s1.ID {
		t.Error("distinct sessions need distinct IDs")
	}
}

func mustTexture(t *testing.T, w, h int) *graphics.Texture {
	t.Helper()
	tex, err := graphics.NewTexture(w, h, graphics.FormatRGBA8)
	if err != nil {
		t.Fatalf("texture: %v", err)
	}
	return tex
}

func eyeDistance(views []xrmath.View) float32 {
	return views[1].Pose.Position.Sub(views[0].Pose.Position).Length()
}

func near(a, b float32) bool { return abs(a-b) < 1e-4 }

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
