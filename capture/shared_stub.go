//go:build !windows

package capture

import (
	"errors"

	"vr-window-overlay/process"
)

// NewSharedSurface requires the Windows compositor; elsewhere construction
// fails and callers fall back to the frame-pool backend.
func NewSharedSurface(process.Window) (Backend, error) {
	return nil, errors.New("capture: shared-surface backend requires windows")
}
