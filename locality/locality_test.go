package locality

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structlab/goboo/box"
	"github.com/structlab/goboo/data"
)

type pair struct{ i, j int32 }

// brutePairs finds all (reference, neighbor) pairs within [rmin, rmax) by
// direct O(N^2) comparison.
func brutePairs(
	b *box.Box, refPoints, points [][3]float64,
	rmin, rmax float64, excludeSelf bool,
) []pair {
	var out []pair
	rmin2, rmax2 := rmin*rmin, rmax*rmax
	for i := range refPoints {
		for j := range points {
			if excludeSelf && i == j {
				continue
			}
			d := b.Wrap([3]float64{
				points[j][0] - refPoints[i][0],
				points[j][1] - refPoints[i][1],
				points[j][2] - refPoints[i][2],
			})
			r2 := d[0]*d[0] + d[1]*d[1] + d[2]*d[2]
			if r2 >= rmin2 && r2 < rmax2 {
				out = append(out, pair{int32(i), int32(j)})
			}
		}
	}
	return out
}

func sortedPairs(nl NeighborList) []pair {
	out := make([]pair, len(nl))
	for i := range nl {
		out[i] = pair{nl[i].Ref, nl[i].Point}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].i != out[b].i {
			return out[a].i < out[b].i
		}
		return out[a].j < out[b].j
	})
	return out
}

func TestQueryMatchesBruteForce(t *testing.T) {
	tests := []struct {
		l          float64
		n          int
		rmin, rmax float64
		seed       uint64
	}{
		{10, 200, 0, 1.0, 1},
		{10, 200, 0.5, 1.5, 2},
		{10, 500, 0, 2.5, 3},
		{5, 100, 0, 1.6, 4}, // exactly 3 cells per axis
		{4, 150, 0, 1.9, 5}, // forces the collapsed single-cell fallback
	}

	for i := range tests {
		b, points := data.RandomSystem(tests[i].l, tests[i].n, tests[i].seed)

		q, err := NewQuery(b, points, tests[i].rmax)
		require.NoError(t, err, "test %d", i)

		nl, err := q.QueryAll(points, tests[i].rmin, tests[i].rmax, true)
		require.NoError(t, err, "test %d", i)

		want := brutePairs(b, points, points,
			tests[i].rmin, tests[i].rmax, true)
		sort.Slice(want, func(a, b int) bool {
			if want[a].i != want[b].i {
				return want[a].i < want[b].i
			}
			return want[a].j < want[b].j
		})

		assert.Equal(t, want, sortedPairs(nl), "test %d", i)
	}
}

func TestCollapsedFallback(t *testing.T) {
	// rmax is just over a third of the box width, so every axis collapses.
	b, points := data.RandomSystem(3, 60, 11)
	q, err := NewQuery(b, points, 1.1)
	require.NoError(t, err)
	assert.True(t, q.Cells.Collapsed())
	assert.Equal(t, [3]int{1, 1, 1}, q.Cells.Shape())

	nl, err := q.QueryAll(points, 0, 1.1, true)
	require.NoError(t, err)

	want := brutePairs(b, points, points, 0, 1.1, true)
	assert.Len(t, nl, len(want))
}

func TestQueryAllOrderedByReference(t *testing.T) {
	b, points := data.RandomSystem(10, 300, 7)
	q, err := NewQuery(b, points, 1.5)
	require.NoError(t, err)

	nl, err := q.QueryAll(points, 0, 1.5, true)
	require.NoError(t, err)
	for i := 1; i < len(nl); i++ {
		if nl[i].Ref < nl[i-1].Ref {
			t.Fatalf("pair %d has reference %d after reference %d",
				i, nl[i].Ref, nl[i-1].Ref)
		}
	}

	seg := nl.Segments(len(points))
	assert.Equal(t, len(nl), seg[len(points)])
	for i := range points {
		for _, n := range nl[seg[i]:seg[i+1]] {
			assert.Equal(t, int32(i), n.Ref)
		}
	}
}

func TestQueryRejectsBadRadii(t *testing.T) {
	b, points := data.RandomSystem(10, 50, 3)
	q, err := NewQuery(b, points, 2)
	require.NoError(t, err)

	tests := []struct{ rmin, rmax float64 }{
		{0, 0}, {0, -1}, {1, 1}, {2, 1}, {-0.5, 1}, {0, 3}, // 3 > build radius
	}
	for i := range tests {
		_, err := q.QueryAll(points, tests[i].rmin, tests[i].rmax, true)
		assert.ErrorIs(t, err, box.ErrInvalidArgument,
			"test %d: rmin=%g rmax=%g", i, tests[i].rmin, tests[i].rmax)
	}

	_, err = NewCellList(b, points, 0)
	assert.ErrorIs(t, err, box.ErrInvalidArgument)
	_, err = NewCellList(b, points, -1)
	assert.ErrorIs(t, err, box.ErrInvalidArgument)
}

func TestCellAssignmentDeterministic(t *testing.T) {
	b, points := data.RandomSystem(10, 400, 9)
	c1, err := NewCellList(b, points, 1)
	require.NoError(t, err)
	c2, err := NewCellList(b, points, 1)
	require.NoError(t, err)

	require.Equal(t, c1.Shape(), c2.Shape())
	nCells := c1.Shape()[0] * c1.Shape()[1] * c1.Shape()[2]
	for cell := 0; cell < nCells; cell++ {
		assert.Equal(t, c1.PointsIn(cell), c2.PointsIn(cell))
	}
}

// TestUniformDensityNeighborCount checks the whole pipeline against the
// ideal-gas expectation: for uniformly random points the mean neighbor
// count is the density times the search volume.
func TestUniformDensityNeighborCount(t *testing.T) {
	l, n, r := 10.0, 1000, 1.0
	b, points := data.RandomSystem(l, n, 42)

	q, err := NewQuery(b, points, r)
	require.NoError(t, err)
	nl, err := q.QueryAll(points, 0, r, true)
	require.NoError(t, err)

	mean := float64(len(nl)) / float64(n)
	want := float64(n) / b.Volume() * 4 / 3 * math.Pi * r * r * r

	// Poisson statistics: the standard error of the mean is about
	// sqrt(want/n), so 5 sigma is a generous bound.
	sigma := math.Sqrt(want / float64(n))
	assert.InDelta(t, want, mean, 5*sigma)
}

func TestFromPairs(t *testing.T) {
	b, err := box.Cube(10)
	require.NoError(t, err)
	points := [][3]float64{{0, 0, 0}, {9.5, 0, 0}, {1, 1, 0}}

	nl, err := FromPairs(b, points, points,
		[]int32{0, 0, 1}, []int32{1, 2, 0}, []float64{2, 1, 1})
	require.NoError(t, err)

	// Pair 0 -> 1 crosses the boundary: the minimum image is -0.5 in x.
	assert.InDelta(t, -0.5, nl[0].Delta[0], 1e-12)
	assert.InDelta(t, 0.25, nl[0].R2, 1e-12)
	assert.Equal(t, 2.0, nl[0].Weight)
	assert.Equal(t, 1.0, nl[1].Weight)

	// Mismatched arrays and unordered references are rejected.
	_, err = FromPairs(b, points, points, []int32{0}, []int32{1, 2}, nil)
	assert.ErrorIs(t, err, box.ErrInvalidArgument)
	_, err = FromPairs(b, points, points, []int32{1, 0}, []int32{0, 1}, nil)
	assert.ErrorIs(t, err, box.ErrInvalidArgument)
}
