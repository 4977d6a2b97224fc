// Package process owns the external window-owning helper: spawn, non-blocking
// liveness polling, window discovery and teardown. The supervisor never
// blocks the presentation thread; death is observed through a waiter
// goroutine's closed channel.
package process

import (
	"os"
	"os/exec"

	"github.com/rs/zerolog"
)

// Window is a discovered top-level window of the helper process.
type Window struct {
	Handle   uintptr
	PID      int
	ThreadID uint32
	Title    string
	X, Y     int
	Width    int
	Height   int
}

// WindowFinder enumerates top-level, visible, non-disabled windows.
// Enumeration order is OS-defined: with several candidate windows from one
// process, repeated calls may pick a different one. Callers needing
// determinism should match by title.
type WindowFinder interface {
	FindByPID(pid int) (Window, bool)
	FindByTitle(title string) (Window, bool)
}

// Handle is a running helper process. Done is closed when the process has
// exited, which makes liveness polling a non-blocking select.
type Handle interface {
	PID() int
	Done() <-chan struct{}
	Terminate()
}

// Spawner starts the helper executable.
type Spawner func(path string) (Handle, error)

// Options configures a Supervisor.
type Options struct {
	ExePath string
	// WindowTitle, when set, is the alternate discovery strategy.
	WindowTitle string
	Finder      WindowFinder
	Spawn       Spawner
	// OnExit releases resources that depend on the process (capture source,
	// overlay surface). Called when death is observed, before the handle is
	// cleared; those resources are invalid once the owner is gone.
	OnExit func()
	Log    zerolog.Logger
}

// Supervisor drives the helper process lifecycle from the per-frame path.
type Supervisor struct {
	opts Options

	proc       Handle
	window     Window
	haveWindow bool

	// Spawn failures are logged once per attempt streak, not every frame.
	spawnErrLogged bool
}

func NewSupervisor(opts Options) *Supervisor {
	if opts.Spawn == nil {
		opts.Spawn = spawnExec
	}
	if opts.Finder == nil {
		opts.Finder = NewSystemFinder()
	}
	return &Supervisor{opts: opts}
}

// EnsureRunning polls the process, spawns it when absent, and searches for
// its window. Returns true only when a live process with an enumerable
// top-level window exists. All failure modes are "not yet available".
func (s *Supervisor) EnsureRunning() bool {
	s.poll()

	if s.proc == nil {
		proc, err := s.opts.Spawn(s.opts.ExePath)
		if err != nil {
			if !s.spawnErrLogged {
				s.opts.Log.Warn().Err(err).Str("path", s.opts.ExePath).
					Msg("failed to start overlay process")
				s.spawnErrLogged = true
			}
			return false
		}
		s.spawnErrLogged = false
		s.proc = proc
		s.opts.Log.Info().Int("pid", proc.PID()).Str("path", s.opts.ExePath).
			Msg("overlay process started")
	}

	w, ok := s.opts.Finder.FindByPID(s.proc.PID())
	if !ok && s.opts.WindowTitle != "" {
		w, ok = s.opts.Finder.FindByTitle(s.opts.WindowTitle)
	}
	if !ok {
		s.haveWindow = false
		return false
	}
	s.window = w
	s.haveWindow = true
	return true
}

// IsAlive reports whether the helper process is running, without blocking.
func (s *Supervisor) IsAlive() bool {
	if s.proc == nil {
		return false
	}
	select {
	case <-s.proc.Done():
		return false
	default:
		return true
	}
}

// Window returns the last discovered window of the live process.
func (s *Supervisor) Window() (Window, bool) {
	if s.proc == nil || !s.haveWindow {
		return Window{}, false
	}
	return s.window, true
}

// TerminateAndReset stops the helper and releases everything tied to it.
func (s *Supervisor) TerminateAndReset() {
	if s.proc != nil {
		s.proc.Terminate()
	}
	s.reset()
}

// poll observes process death non-blockingly and tears down dependents.
func (s *Supervisor) poll() {
	if s.proc == nil {
		return
	}
	select {
	case <-s.proc.Done():
		s.opts.Log.Info().Int("pid", s.proc.PID()).Msg("overlay process exited")
		s.reset()
	default:
	}
}

// reset releases dependent resources first: they borrow validity from the
// process and must be gone before the handle is cleared.
func (s *Supervisor) reset() {
	if s.opts.OnExit != nil {
		s.opts.OnExit()
	}
	s.proc = nil
	s.haveWindow = false
	s.window = Window{}
}

// execHandle is the default Handle over os/exec.
type execHandle struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func spawnExec(path string) (Handle, error) {
	cmd := exec.Command(path)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	h := &execHandle{cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(h.done)
	}()
	return h, nil
}

func (h *execHandle) PID() int { return h.cmd.Process.Pid }

func (h *execHandle) Done() <-chan struct{} { return h.done }

func (h *execHandle) Terminate() {
	// Ask nicely first; Interrupt is unsupported on some platforms, in
	// which case the process is killed outright.
	if err := h.cmd.Process.Signal(os.Interrupt); err != nil {
		_ = h.cmd.Process.Kill()
	}
}
