package locality

import (
	"fmt"

	"github.com/structlab/goboo/box"
)

// Neighbor is a single (reference point, neighbor point) pair. Delta is the
// minimum-image displacement from the reference to the neighbor and R2 its
// squared length. Weight is 1 unless the list was built with explicit
// per-bond weights.
type Neighbor struct {
	Ref, Point int32
	Delta      [3]float64
	R2         float64
	Weight     float64
}

// NeighborList is a sequence of neighbor pairs grouped by ascending
// reference index. Within one reference's group the order is unspecified
// and kernels must not rely on it.
type NeighborList []Neighbor

// Segments returns, for each of nRef reference points, the offset of its
// first pair in the list. The returned slice has length nRef+1 so that the
// pairs of reference i are list[seg[i]:seg[i+1]].
func (nl NeighborList) Segments(nRef int) []int {
	seg := make([]int, nRef+1)
	for i := range nl {
		seg[nl[i].Ref+1]++
	}
	for i := 0; i < nRef; i++ {
		seg[i+1] += seg[i]
	}
	return seg
}

// FromPairs builds a NeighborList from parallel arrays of reference and
// point indices, recomputing the minimum-image displacement for every pair.
// weights may be nil, in which case every pair gets weight 1. Pairs must be
// ordered by ascending reference index.
func FromPairs(
	b *box.Box, refPoints, points [][3]float64,
	refIdx, pointIdx []int32, weights []float64,
) (NeighborList, error) {
	if len(refIdx) != len(pointIdx) {
		return nil, fmt.Errorf("%w: %d reference indices but %d point indices",
			box.ErrInvalidArgument, len(refIdx), len(pointIdx))
	}
	if weights != nil && len(weights) != len(refIdx) {
		return nil, fmt.Errorf("%w: %d pairs but %d weights",
			box.ErrInvalidArgument, len(refIdx), len(weights))
	}

	nl := make(NeighborList, len(refIdx))
	for i := range refIdx {
		if i > 0 && refIdx[i] < refIdx[i-1] {
			return nil, fmt.Errorf("%w: pair %d breaks the ascending "+
				"reference-index ordering", box.ErrInvalidArgument, i)
		}
		r, p := refIdx[i], pointIdx[i]
		d := b.Wrap([3]float64{
			points[p][0] - refPoints[r][0],
			points[p][1] - refPoints[r][1],
			points[p][2] - refPoints[r][2],
		})
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		nl[i] = Neighbor{
			Ref: r, Point: p, Delta: d,
			R2:     d[0]*d[0] + d[1]*d[1] + d[2]*d[2],
			Weight: w,
		}
	}
	return nl, nil
}

// Query finds neighbors of reference points among a fixed point set using a
// prebuilt CellList. The zero radius bound is allowed; the upper bound may
// not exceed the radius the CellList was built with.
type Query struct {
	Box    *box.Box
	Cells  *CellList
	Points [][3]float64
}

// NewQuery builds a cell list over points and returns a query for it.
func NewQuery(b *box.Box, points [][3]float64, rmax float64) (*Query, error) {
	cells, err := NewCellList(b, points, rmax)
	if err != nil {
		return nil, err
	}
	return &Query{Box: b, Cells: cells, Points: points}, nil
}

func (q *Query) checkRadii(rmin, rmax float64) error {
	if rmax <= 0 {
		return fmt.Errorf("%w: maximum radius %g must be positive",
			box.ErrInvalidArgument, rmax)
	}
	if rmax <= rmin {
		return fmt.Errorf("%w: maximum radius %g must exceed minimum radius %g",
			box.ErrInvalidArgument, rmax, rmin)
	}
	if rmin < 0 {
		return fmt.Errorf("%w: minimum radius %g may not be negative",
			box.ErrInvalidArgument, rmin)
	}
	if rmax > q.Cells.RMax()*(1+1e-12) {
		return fmt.Errorf("%w: query radius %g exceeds the cell list "+
			"radius %g", box.ErrInvalidArgument, rmax, q.Cells.RMax())
	}
	return nil
}

// Neighbors calls fn once for every point within [rmin, rmax) of refPoint.
// ref is the reference's index, recorded in the emitted pairs; if
// excludeSelf is true the point with index ref is skipped, which is only
// meaningful when the reference points are the query's own point set.
// Iteration stops early if fn returns an error.
func (q *Query) Neighbors(
	ref int, refPoint [3]float64, rmin, rmax float64, excludeSelf bool,
	fn func(n Neighbor) error,
) error {
	if err := q.checkRadii(rmin, rmax); err != nil {
		return err
	}

	rmin2, rmax2 := rmin*rmin, rmax*rmax
	var cellBuf [27]int
	cells := q.Cells.NeighborCells(q.Cells.Index(refPoint), cellBuf[:0])

	for _, cell := range cells {
		for _, j := range q.Cells.PointsIn(cell) {
			if excludeSelf && int(j) == ref {
				continue
			}

			p := q.Points[j]
			d := q.Box.Wrap([3]float64{
				p[0] - refPoint[0], p[1] - refPoint[1], p[2] - refPoint[2],
			})
			r2 := d[0]*d[0] + d[1]*d[1] + d[2]*d[2]
			if r2 < rmin2 || r2 >= rmax2 {
				continue
			}

			err := fn(Neighbor{
				Ref: int32(ref), Point: j, Delta: d, R2: r2, Weight: 1,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// QueryAll materializes the neighbor pairs of every reference point into a
// NeighborList grouped by ascending reference index.
func (q *Query) QueryAll(
	refPoints [][3]float64, rmin, rmax float64, excludeSelf bool,
) (NeighborList, error) {
	if err := q.checkRadii(rmin, rmax); err != nil {
		return nil, err
	}

	var nl NeighborList
	for i := range refPoints {
		err := q.Neighbors(i, refPoints[i], rmin, rmax, excludeSelf,
			func(n Neighbor) error {
				nl = append(nl, n)
				return nil
			},
		)
		if err != nil {
			return nil, err
		}
	}
	return nl, nil
}
