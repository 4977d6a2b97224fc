package capture

import (
	"sync"
	"time"

	"vr-window-overlay/graphics"
)

// poolDepth matches the double-buffered frame pool of the OS capture API.
const poolDepth = 2

// Grabber produces one frame of the captured window. The frame-pool backend
// calls it from its own goroutine, never from the presentation thread.
type Grabber interface {
	Grab() (*graphics.Texture, error)
}

// FramePool is the asynchronous capture backend: a capture goroutine fills a
// bounded pool, the presentation thread polls it without blocking. Pool
// starvation between presents is a steady-state condition, not an error; the
// last retrieved surface is returned again and kept alive until replaced.
type FramePool struct {
	frames chan *graphics.Texture
	last   *graphics.Texture

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewFramePool starts the capture session at the given sampling interval.
func NewFramePool(g Grabber, interval time.Duration) *FramePool {
	f := &FramePool{
		frames: make(chan *graphics.Texture, poolDepth),
		stop:   make(chan struct{}),
	}
	f.wg.Add(1)
	go f.captureLoop(g, interval)
	return f
}

func (f *FramePool) captureLoop(g Grabber, interval time.Duration) {
	defer f.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-f.stop:
			return
		case <-ticker.C:
			tex, err := g.Grab()
			if err != nil || tex == nil {
				// Window gone or obscured; the consumer keeps using the
				// previous frame and discovers death via the supervisor.
				continue
			}
			f.offer(tex)
		}
	}
}

// offer pushes a frame, dropping the oldest when the pool is full.
func (f *FramePool) offer(tex *graphics.Texture) {
	for {
		select {
		case f.frames <- tex:
			return
		default:
			select {
			case <-f.frames:
			default:
			}
		}
	}
}

// Surface performs a non-blocking try-get against the pool.
func (f *FramePool) Surface() *graphics.Texture {
	select {
	case tex := <-f.frames:
		f.last = tex
	default:
	}
	return f.last
}

func (f *FramePool) Close() error {
	select {
	case <-f.stop:
		return nil // already closed
	default:
	}
	close(f.stop)
	f.wg.Wait()
	return nil
}
