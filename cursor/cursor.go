// Package cursor hit-tests the dominant hand's aim ray against the overlay
// quad and turns button edges into clicks on interactive regions rendered
// into the overlay.
//
// Pixel convention, pinned here and in the tests: a hit exactly at the
// quad's top-left corner maps to pixel (0, 0); a hit exactly at the
// bottom-right corner maps to (width-1, height-1). Normalized quad
// coordinates scale by (extent-1), inclusive at both edges.
package cursor

import (
	"vr-window-overlay/graphics"
	"vr-window-overlay/input"
	"vr-window-overlay/xrmath"
)

// Region is a clickable rectangle in overlay pixel coordinates.
type Region struct {
	Rect    graphics.Rect
	OnClick func()
}

// HitState is the per-frame result. Never persisted across sessions;
// recomputed every frame from the controller pose.
type HitState struct {
	Valid  bool
	PixelX int
	PixelY int
	// Distance from the aim origin to the quad plane, meters.
	Distance float32
}

// Tracker owns the interactive-variant state for one session.
type Tracker struct {
	src      input.Source
	hand     input.Hand
	marginPx int
	regions  []Region

	state      HitState
	lastSelect bool
}

func NewTracker(src input.Source, hand input.Hand, marginPx int) *Tracker {
	return &Tracker{src: src, hand: hand, marginPx: marginPx}
}

// SetRegions replaces the clickable regions; callers update them whenever
// the overlay content changes.
func (t *Tracker) SetRegions(rs []Region) { t.regions = rs }

func (t *Tracker) State() HitState { return t.state }

// Update recomputes the hit state for this frame. Application input is
// suppressed only while a hit is active and explicitly released every frame
// otherwise, so a lost hit can never leave input blocked for good.
func (t *Tracker) Update(quadPose xrmath.Posef, size xrmath.Extent2D, widthPx, heightPx int) HitState {
	t.state = t.computeHit(quadPose, size, widthPx, heightPx)
	t.src.SetBlockInput(t.state.Valid)

	// Button edges, not held state: holding the trigger across frames is
	// one click.
	selDown := t.src.ButtonDown(t.hand, input.ButtonSelect)
	clicked := selDown && !t.lastSelect
	t.lastSelect = selDown

	if clicked && t.state.Valid {
		for _, r := range t.regions {
			if contains(r.Rect, t.state.PixelX, t.state.PixelY) && r.OnClick != nil {
				r.OnClick()
			}
		}
	}
	return t.state
}

func (t *Tracker) computeHit(quadPose xrmath.Posef, size xrmath.Extent2D, widthPx, heightPx int) HitState {
	if widthPx <= 0 || heightPx <= 0 {
		return HitState{}
	}
	aim, tracked := t.src.AimPose(t.hand)
	if !tracked {
		return HitState{}
	}
	hit, ok := xrmath.IntersectQuad(aim, quadPose, size)
	if !ok {
		return HitState{}
	}

	// The hit area is the quad expanded by the configured on-screen margin.
	mu := float32(t.marginPx) / float32(widthPx)
	mv := float32(t.marginPx) / float32(heightPx)
	if hit.U < -mu || hit.U > 1+mu || hit.V < -mv || hit.V > 1+mv {
		return HitState{}
	}

	return HitState{
		Valid:    true,
		PixelX:   clampScale(hit.U, widthPx),
		PixelY:   clampScale(hit.V, heightPx),
		Distance: hit.Distance,
	}
}

// clampScale maps a normalized coordinate to [0, extent-1].
func clampScale(f float32, extent int) int {
	px := int(f*float32(extent-1) + 0.5)
	if px < 0 {
		return 0
	}
	if px > extent-1 {
		return extent - 1
	}
	return px
}

func contains(r graphics.Rect, x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}
