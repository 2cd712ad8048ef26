package parallel

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structlab/goboo/data"
	"github.com/structlab/goboo/locality"
)

// countKernel bins neighbor distances into an integer histogram.
type countKernel struct {
	bins int
	rmax float64
}

func (k *countKernel) NewBuffer() []uint32 { return make([]uint32, k.bins) }

func (k *countKernel) Reset(buf []uint32) {
	for i := range buf {
		buf[i] = 0
	}
}

func (k *countKernel) Accumulate(
	ref int, neighbors []locality.Neighbor, buf []uint32,
) error {
	for _, n := range neighbors {
		bin := int(math.Sqrt(n.R2) / k.rmax * float64(k.bins))
		if bin >= 0 && bin < k.bins {
			buf[bin]++
		}
	}
	return nil
}

func (k *countKernel) Combine(dst, src []uint32) {
	for i := range dst {
		dst[i] += src[i]
	}
}

// sumKernel accumulates one floating-point sum per reference point chunk.
type sumKernel struct{}

func (sumKernel) NewBuffer() []float64 { return make([]float64, 1) }
func (sumKernel) Reset(buf []float64)  { buf[0] = 0 }
func (sumKernel) Combine(dst, src []float64) {
	dst[0] += src[0]
}

func (sumKernel) Accumulate(
	ref int, neighbors []locality.Neighbor, buf []float64,
) error {
	for _, n := range neighbors {
		buf[0] += math.Sqrt(n.R2)
	}
	return nil
}

func TestChunkBoundaries(t *testing.T) {
	tests := []struct{ n, workers int }{
		{10, 1}, {10, 3}, {10, 10}, {10, 16}, {0, 4}, {1, 8}, {1000, 7},
	}

	for i := range tests {
		n, workers := tests[i].n, tests[i].workers
		covered := 0
		minSize, maxSize := n+1, -1
		prevEnd := 0
		for w := 0; w < workers; w++ {
			start, end := chunk(n, workers, w)
			if start != prevEnd {
				t.Errorf("%d) Worker %d starts at %d, but the previous "+
					"chunk ended at %d.", i, w, start, prevEnd)
			}
			prevEnd = end
			size := end - start
			covered += size
			if size < minSize {
				minSize = size
			}
			if size > maxSize {
				maxSize = size
			}
		}
		if covered != n {
			t.Errorf("%d) Chunks cover %d points, expected %d.", i, covered, n)
		}
		if maxSize-minSize > 1 {
			t.Errorf("%d) Chunk sizes range from %d to %d, but may differ "+
				"by at most one.", i, minSize, maxSize)
		}
	}
}

func TestReductionInvariantToWorkerCount(t *testing.T) {
	b, points := data.RandomSystem(10, 400, 21)
	q, err := locality.NewQuery(b, points, 2)
	require.NoError(t, err)
	src := &locality.BoundQuery{
		Query: q, RefPoints: points, RMin: 0, RMax: 2, ExcludeSelf: true,
	}

	kInt := &countKernel{bins: 20, rmax: 2}
	ref := NewAccumulator[[]uint32](1)
	require.NoError(t, ref.Run(src, len(points), kInt))
	want := append([]uint32{}, ref.Reduce(kInt)...)

	total := uint32(0)
	for _, c := range want {
		total += c
	}
	require.NotZero(t, total)

	for _, workers := range []int{2, 3, 7, 16} {
		acc := NewAccumulator[[]uint32](workers)
		require.NoError(t, acc.Run(src, len(points), kInt))
		assert.Equal(t, want, acc.Reduce(kInt),
			"integer histogram changed with %d workers", workers)
	}

	kFloat := sumKernel{}
	refF := NewAccumulator[[]float64](1)
	require.NoError(t, refF.Run(src, len(points), kFloat))
	wantSum := refF.Reduce(kFloat)[0]

	for _, workers := range []int{2, 5, 13} {
		acc := NewAccumulator[[]float64](workers)
		require.NoError(t, acc.Run(src, len(points), kFloat))
		got := acc.Reduce(kFloat)[0]
		assert.InEpsilon(t, wantSum, got, 1e-12,
			"float sum changed with %d workers", workers)
	}
}

func TestRunAccumulatesAcrossCalls(t *testing.T) {
	b, points := data.RandomSystem(10, 100, 5)
	q, err := locality.NewQuery(b, points, 1.5)
	require.NoError(t, err)
	src := &locality.BoundQuery{
		Query: q, RefPoints: points, RMax: 1.5, ExcludeSelf: true,
	}

	k := &countKernel{bins: 10, rmax: 1.5}
	acc := NewAccumulator[[]uint32](4)

	require.NoError(t, acc.Run(src, len(points), k))
	once := append([]uint32{}, acc.Reduce(k)...)

	require.NoError(t, acc.Run(src, len(points), k))
	twice := acc.Reduce(k)
	for i := range once {
		assert.Equal(t, 2*once[i], twice[i], "bin %d", i)
	}

	// Reset returns the accumulator to its fresh state without touching
	// buffer identity.
	acc.Reset(k)
	require.NoError(t, acc.Run(src, len(points), k))
	assert.Equal(t, once, append([]uint32{}, acc.Reduce(k)...))
}

func TestRunAbortsOnKernelError(t *testing.T) {
	errBoom := errors.New("boom")
	k := &failingKernel{failAt: 17, err: errBoom}
	acc := NewAccumulator[[]uint32](4)

	err := acc.Run(nil, 100, k)
	assert.ErrorIs(t, err, errBoom)
}

type failingKernel struct {
	failAt int
	err    error
}

func (k *failingKernel) NewBuffer() []uint32       { return make([]uint32, 1) }
func (k *failingKernel) Reset(buf []uint32)        { buf[0] = 0 }
func (k *failingKernel) Combine(dst, src []uint32) { dst[0] += src[0] }

func (k *failingKernel) Accumulate(
	ref int, neighbors []locality.Neighbor, buf []uint32,
) error {
	if ref == k.failAt {
		return k.err
	}
	buf[0]++
	return nil
}

func TestWorkersDefault(t *testing.T) {
	acc := NewAccumulator[[]float64](0)
	assert.Greater(t, acc.Workers(), 0)

	acc8 := NewAccumulator[[]float64](8)
	assert.Equal(t, 8, acc8.Workers())
}
