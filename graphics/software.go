package graphics

import (
	"errors"
	"fmt"
	"sync"
)

// SoftwareFactory is a host-independent SwapchainFactory carrying out the
// full acquire/release/commit protocol on CPU textures. It backs the package
// tests and cmd/overlaysim.
type SoftwareFactory struct {
	mu      sync.Mutex
	created []*SoftwareSwapchain
}

func NewSoftwareFactory() *SoftwareFactory { return &SoftwareFactory{} }

func (f *SoftwareFactory) TranslateFormat(fm Format) NativeFormat {
	return NativeFormat(fm)
}

func (f *SoftwareFactory) Create(info SwapchainCreateInfo) (Swapchain, error) {
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("software swapchain: invalid dimensions %dx%d", info.Width, info.Height)
	}
	if NativeFormat(FormatRGBA8) != info.Format {
		return nil, fmt.Errorf("software swapchain: unsupported format %d", info.Format)
	}
	sc := &SoftwareSwapchain{info: info}
	for i := 0; i < swapchainDepth; i++ {
		tex, err := NewTexture(info.Width, info.Height, FormatRGBA8)
		if err != nil {
			return nil, err
		}
		sc.images[i] = &Image{Texture: tex, Index: i}
	}
	f.mu.Lock()
	f.created = append(f.created, sc)
	f.mu.Unlock()
	return sc, nil
}

// Created returns every swapchain this factory has produced, including
// destroyed ones. Test hook.
func (f *SoftwareFactory) Created() []*SoftwareSwapchain {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*SoftwareSwapchain, len(f.created))
	copy(out, f.created)
	return out
}

const swapchainDepth = 3

// SoftwareSwapchain rotates a fixed set of CPU images.
type SoftwareSwapchain struct {
	info SwapchainCreateInfo

	images    [swapchainDepth]*Image
	next      int
	acquired  *Image
	released  *Image
	committed *Image

	// Protocol counters, used by pairing tests.
	Acquires  int
	Releases  int
	Commits   int
	destroyed bool
}

var (
	errAlreadyAcquired = errors.New("software swapchain: image already acquired")
	errNotAcquired     = errors.New("software swapchain: no image acquired")
	errNotReleased     = errors.New("software swapchain: no released image to commit")
	errDestroyed       = errors.New("software swapchain: destroyed")
)

func (s *SoftwareSwapchain) Acquire() (*Image, error) {
	if s.destroyed {
		return nil, errDestroyed
	}
	if s.acquired != nil {
		return nil, errAlreadyAcquired
	}
	s.acquired = s.images[s.next]
	s.next = (s.next + 1) % swapchainDepth
	s.Acquires++
	return s.acquired, nil
}

func (s *SoftwareSwapchain) Release() error {
	if s.acquired == nil {
		return errNotAcquired
	}
	s.released = s.acquired
	s.acquired = nil
	s.Releases++
	return nil
}

func (s *SoftwareSwapchain) Commit() error {
	if s.released == nil {
		return errNotReleased
	}
	s.committed = s.released
	s.released = nil
	s.Commits++
	return nil
}

// Committed returns the most recently committed image, nil before the first
// commit.
func (s *SoftwareSwapchain) Committed() *Image { return s.committed }

func (s *SoftwareSwapchain) SubImage() Rect {
	return Rect{Width: s.info.Width, Height: s.info.Height}
}

func (s *SoftwareSwapchain) Info() SwapchainCreateInfo { return s.info }

func (s *SoftwareSwapchain) Destroy() { s.destroyed = true }

func (s *SoftwareSwapchain) Destroyed() bool { return s.destroyed }
