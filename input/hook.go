//go:build cgo

package input

import (
	"sync"

	gohook "github.com/robotn/gohook"
	"github.com/rs/zerolog"

	"vr-window-overlay/xrmath"
)

// PoseFunc supplies the aim pose for a hand; the hook source only owns
// button state.
type PoseFunc func(h Hand) (xrmath.Posef, bool)

// HookSource feeds button state from a global mouse hook, for driving the
// overlay cursor from the desktop during development. Aim poses come from
// the supplied PoseFunc.
type HookSource struct {
	mu      sync.Mutex
	down    map[Button]bool
	pose    PoseFunc
	blocked bool
	log     zerolog.Logger
}

// NewHookSource starts the global hook goroutine. The process-wide event
// hook stays installed until the process exits.
func NewHookSource(pose PoseFunc, log zerolog.Logger) *HookSource {
	s := &HookSource{
		down: make(map[Button]bool),
		pose: pose,
		log:  log,
	}
	go s.run()
	return s
}

func (s *HookSource) run() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("input hook goroutine panicked")
		}
	}()

	evChan := gohook.Start()
	if evChan == nil {
		s.log.Error().Msg("gohook.Start returned nil channel")
		return
	}
	for ev := range evChan {
		switch ev.Kind {
		case gohook.MouseDown:
			s.setButton(mapMouseButton(ev.Button), true)
		case gohook.MouseUp:
			s.setButton(mapMouseButton(ev.Button), false)
		}
	}
}

func mapMouseButton(b uint16) Button {
	if b == 2 {
		return ButtonMenu
	}
	return ButtonSelect
}

func (s *HookSource) setButton(b Button, down bool) {
	s.mu.Lock()
	s.down[b] = down
	s.mu.Unlock()
}

func (s *HookSource) ButtonDown(_ Hand, b Button) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.down[b]
}

func (s *HookSource) AimPose(h Hand) (xrmath.Posef, bool) {
	if s.pose == nil {
		return xrmath.Posef{}, false
	}
	return s.pose(h)
}

func (s *HookSource) SetBlockInput(block bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked = block
}

// Blocked reports the current suppression state.
func (s *HookSource) Blocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocked
}
