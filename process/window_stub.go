//go:build !windows

package process

type systemFinder struct{}

// NewSystemFinder returns a finder that never matches; window enumeration is
// only implemented on Windows. Non-Windows builds run the engine against
// fake finders (tests, simulator).
func NewSystemFinder() WindowFinder { return systemFinder{} }

func (systemFinder) FindByPID(int) (Window, bool) { return Window{}, false }

func (systemFinder) FindByTitle(string) (Window, bool) { return Window{}, false }

// PostQuit is Windows-only; elsewhere termination goes through
// Handle.Terminate.
func PostQuit(Window) {}

// KillStale is Windows-only.
func KillStale(string) {}
