// Package graphics models the boundary with the host's composition
// framework: textures, the swapchain factory, the shared command context and
// the composition layer list. A software implementation backs tests and the
// simulator; a real host supplies its own SwapchainFactory.
package graphics

import "fmt"

// Format is the generic pixel format of the engine. The host translates it
// to whatever its swapchain factory natively expects.
type Format int

const (
	FormatUnknown Format = iota
	// FormatRGBA8 is 8 bits per channel, R first in memory. All captured
	// window surfaces use it.
	FormatRGBA8
)

// NativeFormat is an opaque host-side format value produced by
// SwapchainFactory.TranslateFormat.
type NativeFormat int64

func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	default:
		return "unknown"
	}
}

// BytesPerPixel returns the pixel stride, or 0 for unknown formats.
func (f Format) BytesPerPixel() int {
	if f == FormatRGBA8 {
		return 4
	}
	return 0
}

// Texture is a CPU-visible image in engine format. Pix is tightly packed,
// row-major, len = Width*Height*BytesPerPixel.
type Texture struct {
	Pix    []byte
	Width  int
	Height int
	Format Format
}

// NewTexture allocates a zeroed texture.
func NewTexture(width, height int, format Format) (*Texture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid texture dimensions %dx%d", width, height)
	}
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("unsupported texture format %v", format)
	}
	return &Texture{
		Pix:    make([]byte, width*height*bpp),
		Width:  width,
		Height: height,
		Format: format,
	}, nil
}

// PixOffset returns the byte index of the pixel at (x, y).
func (t *Texture) PixOffset(x, y int) int {
	return (y*t.Width + x) * t.Format.BytesPerPixel()
}

// Rect is a sub-image rectangle in pixels.
type Rect struct {
	X, Y          int
	Width, Height int
}
