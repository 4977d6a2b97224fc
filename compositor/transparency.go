// Package compositor copies captured pixels into the destination surface
// while keying one color to a configured transparency. The pass mirrors a
// compute kernel: one 8x8 thread group per block of the destination extent,
// bound resources cleared before returning control to the shared context.
package compositor

import (
	"fmt"
	"math"

	"vr-window-overlay/graphics"
)

// groupDim is the thread-group edge; dispatch covers the destination with
// ceiling division, so dimensions need not be multiples of it.
const groupDim = 8

// Constants are the kernel parameters, fixed at setup time like a constant
// buffer: the key color and the alpha levels for key and non-key pixels,
// all in 0..1.
type Constants struct {
	KeyColor         [3]float32
	OpaqueAlpha      float32
	TransparentAlpha float32
}

// Transparency is the compiled keying pass. Setup quantizes the constants to
// the 8-bit-per-channel format of the captured surface once; the comparison
// at run time is then bit-for-bit, no gamma correction.
type Transparency struct {
	constants   Constants
	key         [3]byte
	opaque      byte
	transparent byte
	workers     *pool
}

func NewTransparency(c Constants) *Transparency {
	return &Transparency{
		constants:   c,
		key:         [3]byte{quantize(c.KeyColor[0]), quantize(c.KeyColor[1]), quantize(c.KeyColor[2])},
		opaque:      quantize(c.OpaqueAlpha),
		transparent: quantize(c.TransparentAlpha),
		workers:     newPool(0),
	}
}

func quantize(f float32) byte {
	if f <= 0 {
		return 0
	}
	if f >= 1 {
		return 255
	}
	return byte(math.Round(float64(f) * 255))
}

// Recolor runs the keying pass from src into dst. RGB passes through
// unmodified; alpha becomes the transparent level for pixels whose RGB
// equals the key exactly, the opaque level otherwise. All four bind points
// of the shared context are cleared before returning, whatever the outcome.
func (t *Transparency) Recolor(ctx *graphics.Context, src *graphics.Texture, dst *graphics.Image) error {
	if src == nil || dst == nil || dst.Texture == nil {
		return fmt.Errorf("compositor: nil source or destination")
	}
	if src.Format != graphics.FormatRGBA8 || dst.Texture.Format != graphics.FormatRGBA8 {
		return fmt.Errorf("compositor: unsupported formats %v -> %v", src.Format, dst.Texture.Format)
	}

	ctx.BindKernel(t)
	ctx.BindResource(src)
	ctx.BindConstants(t.constants)
	ctx.BindUnordered(dst)
	defer ctx.ClearBindings()

	out := dst.Texture
	groupsX := (out.Width + groupDim - 1) / groupDim
	groupsY := (out.Height + groupDim - 1) / groupDim

	t.workers.dispatch(groupsY, func(gy int) {
		for gx := 0; gx < groupsX; gx++ {
			t.runGroup(src, out, gx, gy)
		}
	})
	return nil
}

// runGroup executes one 8x8 thread group. Reads outside the source extent
// yield zero, writes outside the destination extent are dropped, matching
// out-of-bounds texture access semantics.
func (t *Transparency) runGroup(src, dst *graphics.Texture, gx, gy int) {
	x0 := gx * groupDim
	y0 := gy * groupDim
	for y := y0; y < y0+groupDim && y < dst.Height; y++ {
		for x := x0; x < x0+groupDim && x < dst.Width; x++ {
			var r, g, b byte
			if x < src.Width && y < src.Height {
				o := src.PixOffset(x, y)
				r, g, b = src.Pix[o], src.Pix[o+1], src.Pix[o+2]
			}
			alpha := t.opaque
			if r == t.key[0] && g == t.key[1] && b == t.key[2] {
				alpha = t.transparent
			}
			o := dst.PixOffset(x, y)
			dst.Pix[o] = r
			dst.Pix[o+1] = g
			dst.Pix[o+2] = b
			dst.Pix[o+3] = alpha
		}
	}
}

// Close stops the dispatch workers.
func (t *Transparency) Close() {
	t.workers.close()
}
