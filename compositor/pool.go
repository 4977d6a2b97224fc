package compositor

import (
	"runtime"
	"sync"
)

// pool is a fixed-size worker pool for kernel dispatch. Size defaults to
// NumCPU when size<=0.
type pool struct {
	jobs chan func()
	wg   sync.WaitGroup
}

func newPool(size int) *pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &pool{jobs: make(chan func(), size)}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				j()
			}
		}()
	}
	return p
}

// dispatch runs fn for every index in [0, n) across the workers and waits
// for completion.
func (p *pool) dispatch(n int, fn func(i int)) {
	var done sync.WaitGroup
	done.Add(n)
	for i := 0; i < n; i++ {
		i := i
		p.jobs <- func() {
			defer done.Done()
			fn(i)
		}
	}
	done.Wait()
}

// close stops the workers after draining queued work.
func (p *pool) close() {
	close(p.jobs)
	p.wg.Wait()
}
