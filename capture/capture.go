// Package capture acquires the live surface of an external window. Two
// interchangeable backends implement the one-method contract: the
// shared-surface backend queries the OS compositor for the window's shared
// surface and reads it synchronously; the frame-pool backend samples the
// window from its own capture goroutine into a small bounded pool.
package capture

import (
	"fmt"
	"time"

	"vr-window-overlay/graphics"
	"vr-window-overlay/process"
)

// Backend hands out the current backbuffer of the captured window.
//
// Surface returns nil while no frame has ever been captured. When no new
// frame is available it returns the previous texture; consumers must treat
// that as "reuse", not as an error. The returned texture stays valid until
// the next Surface call.
type Backend interface {
	Surface() *graphics.Texture
	Close() error
}

// Kind selects the capture strategy at construction.
type Kind int

const (
	// KindSharedSurface opens the compositor's shared surface for the
	// window. Construction fails fast when the OS denies access.
	KindSharedSurface Kind = iota
	// KindFramePool runs an asynchronous capture session with a
	// double-buffered frame pool.
	KindFramePool
)

func (k Kind) String() string {
	switch k {
	case KindSharedSurface:
		return "sharedsurface"
	case KindFramePool:
		return "framepool"
	default:
		return "unknown"
	}
}

// New constructs the selected backend for a discovered window.
func New(kind Kind, win process.Window, fps int) (Backend, error) {
	switch kind {
	case KindSharedSurface:
		b, err := NewSharedSurface(win)
		if err != nil {
			return nil, err
		}
		return b, nil
	case KindFramePool:
		if fps <= 0 {
			fps = 60
		}
		return NewFramePool(NewWindowGrabber(win), time.Second/time.Duration(fps)), nil
	default:
		return nil, fmt.Errorf("capture: unknown backend kind %d", kind)
	}
}
