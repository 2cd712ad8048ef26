/*package parallel drives data-parallel accumulate/reduce loops over
reference points. Every analysis in this module shares the same shape of
computation: partition the reference points across workers, give each worker
a private buffer, feed it one reference point's neighbor set at a time, and
finally merge the private buffers into one shared result. This package
implements that shape once, parameterized by a Kernel, so analyses only
supply the arithmetic.*/
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/structlab/goboo/locality"
)

// Source yields the neighbor set of one reference point. Implementations
// must be safe for concurrent use by multiple workers. buf is scratch space
// owned by the calling worker: implementations either fill it (growing it as
// needed) and return it, or ignore it and return their own storage, which
// must then remain valid and unmodified for the rest of the run.
type Source interface {
	Neighbors(ref int, buf []locality.Neighbor) ([]locality.Neighbor, error)
}

// Kernel holds the analysis-specific arithmetic driven by an Accumulator.
// The buffer type B is typically a slice: a histogram, a per-particle array,
// or a small vector of running sums. Accumulate is called from multiple
// workers, but never concurrently with the same buffer, and must not retain
// the neighbors slice after returning. Combine and Reset are only called
// while no workers are running.
type Kernel[B any] interface {
	// NewBuffer allocates one zero-valued private buffer.
	NewBuffer() B
	// Reset returns a buffer to its zero value without reallocating.
	Reset(buf B)
	// Accumulate folds one reference point's neighbor set into buf.
	Accumulate(ref int, neighbors []locality.Neighbor, buf B) error
	// Combine merges src into dst.
	Combine(dst, src B)
}

// Accumulator owns a fixed arena of per-worker buffers and the shared
// result buffer. Buffers are created lazily the first time a worker runs
// and are reused across calls, so repeated Accumulate/Reduce cycles on one
// instance do not reallocate. An Accumulator parallelizes internally but is
// not safe for concurrent calls.
type Accumulator[B any] struct {
	workers    int
	buffers    []B
	live       []bool
	result     B
	haveResult bool
}

// NewAccumulator creates an accumulator with the given number of workers.
// workers <= 0 selects GOMAXPROCS.
func NewAccumulator[B any](workers int) *Accumulator[B] {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Accumulator[B]{
		workers: workers,
		buffers: make([]B, workers),
		live:    make([]bool, workers),
	}
}

// Workers returns the worker count.
func (a *Accumulator[B]) Workers() int { return a.workers }

// chunk returns the half-open index range assigned to worker w out of
// workers when n reference points are split into contiguous chunks whose
// sizes differ by at most one.
func chunk(n, workers, w int) (start, end int) {
	base, rem := n/workers, n%workers
	start = w*base + min(w, rem)
	end = start + base
	if w < rem {
		end++
	}
	return start, end
}

// Run accumulates reference points 0..n-1 into the per-worker buffers. src
// may be nil for kernels that do not consume neighbors. Worker buffers are
// not cleared first, so consecutive Run calls accumulate, which is how
// multi-frame averaging works; call Reset between frames to start over. If
// any kernel call returns an error the run aborts and the buffer contents
// are unspecified.
func (a *Accumulator[B]) Run(src Source, n int, k Kernel[B]) error {
	var g errgroup.Group
	for w := 0; w < a.workers; w++ {
		start, end := chunk(n, a.workers, w)
		if start == end {
			continue
		}
		if !a.live[w] {
			a.buffers[w] = k.NewBuffer()
			a.live[w] = true
		}

		w := w
		g.Go(func() error {
			buf := a.buffers[w]
			var scratch []locality.Neighbor
			for i := start; i < end; i++ {
				var neighbors []locality.Neighbor
				if src != nil {
					var err error
					neighbors, err = src.Neighbors(i, scratch)
					if err != nil {
						return err
					}
					scratch = neighbors
				}
				if err := k.Accumulate(i, neighbors, buf); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// Reduce merges every live worker buffer into the shared result buffer and
// returns it. The result is rebuilt from scratch on every call, so it
// always reflects the buffers' current contents. Callers must not read the
// returned buffer while a Run is in flight.
func (a *Accumulator[B]) Reduce(k Kernel[B]) B {
	if !a.haveResult {
		a.result = k.NewBuffer()
		a.haveResult = true
	}
	k.Reset(a.result)
	for w := range a.buffers {
		if a.live[w] {
			k.Combine(a.result, a.buffers[w])
		}
	}
	return a.result
}

// Reset zeroes all live buffers and the shared result without deallocating
// them.
func (a *Accumulator[B]) Reset(k Kernel[B]) {
	for w := range a.buffers {
		if a.live[w] {
			k.Reset(a.buffers[w])
		}
	}
	if a.haveResult {
		k.Reset(a.result)
	}
}
