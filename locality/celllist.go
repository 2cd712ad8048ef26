/*package locality finds neighboring particle pairs in periodic boxes. The
search is backed by a uniform cell grid sized by the query radius, so that
all pairs within the radius are found by scanning a constant number of
cells per particle.*/
package locality

import (
	"fmt"
	"log"
	"math"

	"github.com/structlab/goboo/box"
)

// CellList partitions a point set into a uniform grid of cells whose edges
// are at least as long as the query radius it was built with. All true
// neighbors of a point within that radius are then contained in the point's
// own cell and the cells adjacent to it.
//
// If the box is narrower than three cells along a periodic axis, the grid
// collapses to a single cell along that axis and neighbor enumeration
// degrades to an exhaustive scan of that axis. A CellList is immutable once
// built; rebuild it whenever the point set or the radius changes.
type CellList struct {
	b         *box.Box
	rmax      float64
	shape     [3]int
	cells     [][]int32
	nPts      int
	collapsed bool
}

// NewCellList builds a cell list for the given points with cell edges sized
// by rmax. It returns box.ErrInvalidArgument if rmax is not positive. The
// build is deterministic: the same points always produce the same cell
// assignment, and points within a cell keep their input order.
func NewCellList(b *box.Box, points [][3]float64, rmax float64) (*CellList, error) {
	if rmax <= 0 {
		return nil, fmt.Errorf("%w: query radius %g must be positive",
			box.ErrInvalidArgument, rmax)
	}

	c := &CellList{b: b, rmax: rmax, nPts: len(points)}

	// Cell counts per axis. The perpendicular width of the cell along each
	// axis bounds how many cells of edge >= rmax fit.
	widths := axisWidths(b)
	nAxes := 3
	if b.Is2D() {
		nAxes = 2
		c.shape[2] = 1
	}
	for a := 0; a < nAxes; a++ {
		n := int(math.Floor(widths[a] / rmax))
		if n < 3 {
			// Too few cells for the 3-cell neighborhood to prune anything:
			// fall back to a single cell spanning the whole axis.
			n = 1
			c.collapsed = true
		}
		c.shape[a] = n
	}
	if c.collapsed {
		log.Printf("locality: box widths %v are below 3*rmax = %g along at "+
			"least one axis; falling back to exhaustive scan there",
			widths, 3*rmax)
	}

	c.cells = make([][]int32, c.shape[0]*c.shape[1]*c.shape[2])
	for i := range points {
		cell := c.Index(points[i])
		c.cells[cell] = append(c.cells[cell], int32(i))
	}

	return c, nil
}

// axisWidths returns the perpendicular distance between opposite cell faces
// along each axis. For orthorhombic boxes these are just the edge lengths.
func axisWidths(b *box.Box) [3]float64 {
	a1 := b.Absolute([3]float64{1, 0, 0})
	a2 := b.Absolute([3]float64{0, 1, 0})
	a3 := b.Absolute([3]float64{0, 0, 1})
	v := math.Abs(a1[0] * a2[1] * a3[2]) // lattice matrix is upper triangular

	return [3]float64{
		v / vecNorm(vecCross(a2, a3)),
		v / vecNorm(vecCross(a3, a1)),
		v / vecNorm(vecCross(a1, a2)),
	}
}

// Shape returns the number of cells along each axis.
func (c *CellList) Shape() [3]int { return c.shape }

// NumPoints returns the number of points the list was built from.
func (c *CellList) NumPoints() int { return c.nPts }

// RMax returns the query radius the list was built for.
func (c *CellList) RMax() float64 { return c.rmax }

// Collapsed returns true if the grid fell back to a single cell along at
// least one periodic axis.
func (c *CellList) Collapsed() bool { return c.collapsed }

// Index returns the flat index of the cell containing p. Points outside the
// primary cell are wrapped back into it first.
func (c *CellList) Index(p [3]float64) int {
	f := c.b.Fractional(p)
	var idx [3]int
	for a := 0; a < 3; a++ {
		fa := f[a] - math.Floor(f[a])
		i := int(fa * float64(c.shape[a]))
		if i >= c.shape[a] { // fa can round up to 1.0
			i = c.shape[a] - 1
		}
		idx[a] = i
	}
	return c.flat(idx)
}

func (c *CellList) flat(idx [3]int) int {
	return (idx[2]*c.shape[1]+idx[1])*c.shape[0] + idx[0]
}

func (c *CellList) unflat(flat int) [3]int {
	x := flat % c.shape[0]
	flat /= c.shape[0]
	y := flat % c.shape[1]
	z := flat / c.shape[1]
	return [3]int{x, y, z}
}

// PointsIn returns the indices of the points stored in the given cell. The
// returned slice is owned by the CellList and must not be modified.
func (c *CellList) PointsIn(flat int) []int32 { return c.cells[flat] }

// NeighborCells appends to buf the flat indices of the given cell and every
// distinct periodic-image-adjusted adjacent cell: up to 27 cells in 3D and 9
// in 2D, fewer when an axis has fewer than three cells. buf is used to avoid
// allocation and may be nil.
func (c *CellList) NeighborCells(flat int, buf []int) []int {
	idx := c.unflat(flat)
	buf = buf[:0]

	lo, hi := [3]int{-1, -1, -1}, [3]int{1, 1, 1}
	for a := 0; a < 3; a++ {
		// Axes always have either one cell or at least three, so the
		// offsets below never alias.
		if c.shape[a] == 1 {
			lo[a], hi[a] = 0, 0
		}
	}

	for dz := lo[2]; dz <= hi[2]; dz++ {
		for dy := lo[1]; dy <= hi[1]; dy++ {
			for dx := lo[0]; dx <= hi[0]; dx++ {
				n := [3]int{
					wrapCell(idx[0]+dx, c.shape[0]),
					wrapCell(idx[1]+dy, c.shape[1]),
					wrapCell(idx[2]+dz, c.shape[2]),
				}
				buf = append(buf, c.flat(n))
			}
		}
	}

	return buf
}

func wrapCell(i, n int) int {
	if i < 0 {
		return i + n
	} else if i >= n {
		return i - n
	}
	return i
}

func vecCross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func vecNorm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}
