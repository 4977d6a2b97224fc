// Package surface owns the destination swapchain of the overlay: sized on
// demand to match the captured content, cycled acquire/commit once per frame.
package surface

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"vr-window-overlay/graphics"
	"vr-window-overlay/xrmath"
)

// ErrNotSized is returned by AcquireWritable before the first EnsureSized.
var ErrNotSized = errors.New("surface: not sized yet")

// Manager keeps the overlay swapchain's dimensions equal to the most recent
// capture. Swapchain construction is expensive, so a recreate happens only on
// mismatch, never per frame; a dimension change recreates the surface rather
// than stretching in place.
type Manager struct {
	factory graphics.SwapchainFactory
	log     zerolog.Logger

	// widthMeters is the configured physical width, held constant; height
	// follows the content aspect ratio.
	widthMeters float32

	sc       graphics.Swapchain
	width    int
	height   int
	size     xrmath.Extent2D
	acquired *graphics.Image
}

func NewManager(factory graphics.SwapchainFactory, widthMeters float32, log zerolog.Logger) *Manager {
	return &Manager{
		factory:     factory,
		widthMeters: widthMeters,
		log:         log,
	}
}

// EnsureSized makes the swapchain match (w, h), recreating it only on
// mismatch. Idempotent for equal dimensions.
func (m *Manager) EnsureSized(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("surface: invalid dimensions %dx%d", w, h)
	}
	if m.sc != nil && m.width == w && m.height == h {
		return nil
	}
	if m.acquired != nil {
		return errors.New("surface: resize with an image still acquired")
	}
	if m.sc != nil {
		m.sc.Destroy()
		m.sc = nil
	}

	sc, err := m.factory.Create(graphics.SwapchainCreateInfo{
		UsageFlags:  graphics.UsageUnorderedAccess,
		Width:       w,
		Height:      h,
		Format:      m.factory.TranslateFormat(graphics.FormatRGBA8),
		ArraySize:   1,
		MipCount:    1,
		SampleCount: 1,
		FaceCount:   1,
	})
	if err != nil {
		return fmt.Errorf("surface: create swapchain: %w", err)
	}
	m.sc = sc
	m.width = w
	m.height = h

	// Hold the configured width, derive height from the new aspect ratio.
	m.size = xrmath.Extent2D{
		Width:  m.widthMeters,
		Height: m.widthMeters * (float32(h) / float32(w)),
	}
	m.log.Debug().Int("width", w).Int("height", h).Msg("overlay surface recreated")
	return nil
}

// AcquireWritable starts the per-frame cycle. Every acquire must be matched
// by exactly one Commit, even when nothing is drawn into the image.
func (m *Manager) AcquireWritable() (*graphics.Image, error) {
	if m.sc == nil {
		return nil, ErrNotSized
	}
	if m.acquired != nil {
		return nil, errors.New("surface: image already acquired")
	}
	img, err := m.sc.Acquire()
	if err != nil {
		return nil, err
	}
	m.acquired = img
	return img, nil
}

// Commit releases and submits the acquired image. With no fresh content the
// previous image contents are submitted as-is; skipping the commit would
// leak the acquired image.
func (m *Manager) Commit() error {
	if m.acquired == nil {
		return errors.New("surface: commit without acquire")
	}
	m.acquired = nil
	if err := m.sc.Release(); err != nil {
		return err
	}
	return m.sc.Commit()
}

// Swapchain exposes the current swapchain for layer submission.
func (m *Manager) Swapchain() graphics.Swapchain { return m.sc }

// SubImage is the full extent of the current surface.
func (m *Manager) SubImage() graphics.Rect {
	if m.sc == nil {
		return graphics.Rect{}
	}
	return m.sc.SubImage()
}

// PhysicalSize is the overlay's size in meters, recomputed on every resize
// to preserve the content's aspect ratio.
func (m *Manager) PhysicalSize() xrmath.Extent2D { return m.size }

// Sized reports whether a surface currently exists.
func (m *Manager) Sized() bool { return m.sc != nil }

// Release destroys the surface; used when the source window disappears and
// at session teardown.
func (m *Manager) Release() {
	if m.sc != nil {
		m.sc.Destroy()
		m.sc = nil
	}
	m.width = 0
	m.height = 0
	m.acquired = nil
}
