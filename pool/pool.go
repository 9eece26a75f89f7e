/*package pool implements a fixed-size pool of worker goroutines which
processes contiguous index ranges in fork-join fashion.

The pool is created once and shared by every solver for the lifetime of the
process. Run must not be called from inside a function which is itself being
executed by the pool, and must not be called after Close.
*/
package pool

import (
	"fmt"
	"runtime"
	"sync"
)

type task struct {
	id, lo, hi int
	fn func(lo, hi int)
	out chan<- result
}

type result struct {
	id int
	panicVal interface{}
}

// Pool is a fixed set of worker goroutines.
type Pool struct {
	workers int
	tasks chan task

	wg sync.WaitGroup
	closeOnce sync.Once
}

// New starts a pool with the given number of workers. If workers is not
// positive, one worker is started per logical core.
func New(workers int) *Pool {
	if workers <= 0 { workers = runtime.NumCPU() }

	p := &Pool{ workers: workers, tasks: make(chan task, workers) }
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

// Workers returns the number of workers in the pool.
func (p *Pool) Workers() int { return p.workers }

func (p *Pool) work() {
	defer p.wg.Done()
	for t := range p.tasks {
		t.out <- t.run()
	}
}

func (t task) run() (res result) {
	res.id = t.id
	defer func() {
		if r := recover(); r != nil { res.panicVal = r }
	}()
	t.fn(t.lo, t.hi)
	return res
}

// Run splits [0, n) into at most Workers() contiguous chunks, calls fn once
// per chunk on the pool's workers, and returns once every chunk has
// completed. If fn panics on any chunk, Run panics after the join.
func (p *Pool) Run(n int, fn func(lo, hi int)) {
	if n <= 0 { return }

	chunks := p.workers
	if chunks > n { chunks = n }

	out := make(chan result, chunks)
	for id := 0; id < chunks; id++ {
		lo, hi := Chunk(n, chunks, id)
		p.tasks <- task{ id: id, lo: lo, hi: hi, fn: fn, out: out }
	}

	var panicVal interface{}
	for i := 0; i < chunks; i++ {
		res := <-out
		if res.panicVal != nil && panicVal == nil {
			panicVal = fmt.Errorf("pool: chunk %d panicked: %v", res.id, res.panicVal)
		}
	}

	if panicVal != nil { panic(panicVal) }
}

// Close stops the pool's workers and waits for them to exit. It is safe to
// call Close more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
		p.wg.Wait()
	})
}

// Chunk returns the half-open index range [lo, hi) of the id-th of chunks
// nearly equal pieces of [0, n).
func Chunk(n, chunks, id int) (lo, hi int) {
	return id * n / chunks, (id + 1) * n / chunks
}
