package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"vr-window-overlay/graphics"
	"vr-window-overlay/process"
)

// WindowGrabber captures the screen rectangle a window occupied when it was
// discovered. The rectangle is fixed at construction; a window that moves is
// re-captured at its new position only after the backend is recreated.
type WindowGrabber struct {
	bounds image.Rectangle
}

func NewWindowGrabber(win process.Window) *WindowGrabber {
	return &WindowGrabber{
		bounds: image.Rect(win.X, win.Y, win.X+win.Width, win.Y+win.Height),
	}
}

func (g *WindowGrabber) Grab() (*graphics.Texture, error) {
	if g.bounds.Dx() <= 0 || g.bounds.Dy() <= 0 {
		return nil, fmt.Errorf("capture: window rectangle is empty")
	}
	img, err := screenshot.CaptureRect(g.bounds)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return textureFromRGBA(img), nil
}

// textureFromRGBA wraps or repacks an image.RGBA into engine format.
func textureFromRGBA(img *image.RGBA) *graphics.Texture {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	tex := &graphics.Texture{Width: w, Height: h, Format: graphics.FormatRGBA8}
	if img.Stride == w*4 {
		tex.Pix = img.Pix
		return tex
	}
	tex.Pix = make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		copy(tex.Pix[y*w*4:(y+1)*w*4], img.Pix[y*img.Stride:y*img.Stride+w*4])
	}
	return tex
}
