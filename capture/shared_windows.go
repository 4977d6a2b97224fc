//go:build windows

package capture

import (
	"fmt"
	"syscall"
	"unsafe"

	"vr-window-overlay/graphics"
	"vr-window-overlay/process"
)

var (
	user32                    = syscall.NewLazyDLL("user32.dll")
	procDwmGetDxSharedSurface = user32.NewProc("DwmGetDxSharedSurface")
)

// SharedSurface is the synchronous backend over the compositor's shared
// window surface. Construction queries DwmGetDxSharedSurface and fails fast
// when the window is not composited, the caller lacks privilege, or the API
// is unavailable; the caller falls back to "not yet capturable" and retries.
type SharedSurface struct {
	grabber *WindowGrabber
	handle  uintptr
	last    *graphics.Texture
}

func NewSharedSurface(win process.Window) (*SharedSurface, error) {
	if err := procDwmGetDxSharedSurface.Find(); err != nil {
		return nil, fmt.Errorf("capture: DwmGetDxSharedSurface unavailable: %w", err)
	}

	var (
		handle   uintptr
		luid     [2]uint32
		format   uint32
		flags    uint32
		updateID uint64
	)
	ok, _, _ := procDwmGetDxSharedSurface.Call(
		win.Handle,
		uintptr(unsafe.Pointer(&handle)),
		uintptr(unsafe.Pointer(&luid)),
		uintptr(unsafe.Pointer(&format)),
		uintptr(unsafe.Pointer(&flags)),
		uintptr(unsafe.Pointer(&updateID)),
	)
	if ok == 0 || handle == 0 {
		return nil, fmt.Errorf("capture: failed to get shared surface for window %#x", win.Handle)
	}

	return &SharedSurface{
		grabber: NewWindowGrabber(win),
		handle:  handle,
	}, nil
}

// Surface snapshots the window surface. When the read fails (window closing
// mid-capture) the previous texture is returned; the owner discovers process
// death through the supervisor.
func (s *SharedSurface) Surface() *graphics.Texture {
	tex, err := s.grabber.Grab()
	if err != nil {
		return s.last
	}
	s.last = tex
	return s.last
}

func (s *SharedSurface) Close() error {
	s.last = nil
	return nil
}
