/*package pmft computes potential of mean force and torque histograms: the
distribution of neighbor positions and relative orientations around a
reference particle, in the reference particle's own frame. The histogram can
be accumulated over many frames and turned into a free-energy surface by the
caller (-kT log g).*/
package pmft

import (
	"fmt"
	"math"

	"github.com/structlab/goboo"
	"github.com/structlab/goboo/box"
	"github.com/structlab/goboo/locality"
	"github.com/structlab/goboo/parallel"
)

// XYT is a three-dimensional histogram over the rotated in-plane separation
// (x, y) of neighbor pairs and their relative orientation angle T. It is
// meant for 2D systems whose orientations are single angles.
//
// The angle coordinate is T = T1 - T2 with T1 = atan2(dy, dx) - refOrient
// and T2 = atan2(-dy, -dx) - orient. The two bond views are deliberately
// not symmetrized; this matches the historical definition and changing it
// changes the numbers.
type XYT struct {
	maxX, maxY, maxT float64
	nX, nY, nT       int
	dx, dy, dT       float64

	xCenters, yCenters, tCenters []float64
	xEdges, yEdges, tEdges       []float64

	acc *parallel.Accumulator[[]uint32]
	pcf []uint32
	b   *box.Box
}

// New creates an XYT histogram covering x in [-maxX, maxX), y in
// [-maxY, maxY) and T in [-maxT, maxT) with the given bin counts. It
// returns goboo.ErrInvalidArgument, without allocating any buffers, if a
// bin count is below one, an extent is not positive, or a bin would be
// wider than the extent it divides.
func New(maxX, maxY, maxT float64, nX, nY, nT int) (*XYT, error) {
	if nX < 1 || nY < 1 || nT < 1 {
		return nil, fmt.Errorf("%w: bin counts (%d, %d, %d) must be at least 1",
			goboo.ErrInvalidArgument, nX, nY, nT)
	}
	if maxX <= 0 || maxY <= 0 || maxT <= 0 {
		return nil, fmt.Errorf("%w: extents (%g, %g, %g) must be positive",
			goboo.ErrInvalidArgument, maxX, maxY, maxT)
	}

	dx := 2 * maxX / float64(nX)
	dy := 2 * maxY / float64(nY)
	dT := 2 * maxT / float64(nT)
	if dx > maxX || dy > maxY || dT > maxT {
		return nil, fmt.Errorf("%w: a single bin may not be wider than the "+
			"histogram half-extent", goboo.ErrInvalidArgument)
	}

	p := &XYT{
		maxX: maxX, maxY: maxY, maxT: maxT,
		nX: nX, nY: nY, nT: nT,
		dx: dx, dy: dy, dT: dT,
		acc: parallel.NewAccumulator[[]uint32](0),
	}
	p.xCenters = binCenters(maxX, dx, nX)
	p.yCenters = binCenters(maxY, dy, nY)
	p.tCenters = binCenters(maxT, dT, nT)
	p.xEdges = binEdges(maxX, dx, nX)
	p.yEdges = binEdges(maxY, dy, nY)
	p.tEdges = binEdges(maxT, dT, nT)
	return p, nil
}

func binCenters(max, d float64, n int) []float64 {
	centers := make([]float64, n)
	for i := range centers {
		lo, hi := float64(i)*d, float64(i+1)*d
		centers[i] = -max + (lo+hi)/2
	}
	return centers
}

// binEdges returns the n+1 bin boundaries. The final edge is pinned to max
// so the edges span [-max, max] even when n*d rounds away from 2*max.
func binEdges(max, d float64, n int) []float64 {
	edges := make([]float64, n+1)
	for i := 0; i < n; i++ {
		edges[i] = -max + float64(i)*d
	}
	edges[n] = max
	return edges
}

// BinCentersX returns the centers of the x bins.
func (p *XYT) BinCentersX() []float64 { return p.xCenters }

// BinCentersY returns the centers of the y bins.
func (p *XYT) BinCentersY() []float64 { return p.yCenters }

// BinCentersT returns the centers of the angle bins.
func (p *XYT) BinCentersT() []float64 { return p.tCenters }

// BinEdgesX returns the nX+1 boundaries of the x bins.
func (p *XYT) BinEdgesX() []float64 { return p.xEdges }

// BinEdgesY returns the nY+1 boundaries of the y bins.
func (p *XYT) BinEdgesY() []float64 { return p.yEdges }

// BinEdgesT returns the nT+1 boundaries of the angle bins.
func (p *XYT) BinEdgesT() []float64 { return p.tEdges }

// BinCounts returns the bin counts along (x, y, T).
func (p *XYT) BinCounts() (nX, nY, nT int) { return p.nX, p.nY, p.nT }

// Box returns the box used by the last Accumulate call, or nil before the
// first one.
func (p *XYT) Box() *box.Box { return p.b }

// xytKernel bins one reference point's neighbors. It holds the read-only
// inputs of one Accumulate call.
type xytKernel struct {
	p          *XYT
	refOrients []float64
	orients    []float64
}

func (k *xytKernel) NewBuffer() []uint32 {
	return make([]uint32, k.p.nX*k.p.nY*k.p.nT)
}

func (k *xytKernel) Reset(buf []uint32) {
	for i := range buf {
		buf[i] = 0
	}
}

func (k *xytKernel) Combine(dst, src []uint32) {
	for i := range dst {
		dst[i] += src[i]
	}
}

func (k *xytKernel) Accumulate(
	ref int, neighbors []locality.Neighbor, buf []uint32,
) error {
	p := k.p
	dxInv, dyInv, dTInv := 1/p.dx, 1/p.dy, 1/p.dT
	refO := k.refOrients[ref]
	cosO, sinO := math.Cos(-refO), math.Sin(-refO)

	for _, n := range neighbors {
		// Skip overlapping particles; with identical point sets this also
		// removes self pairs.
		if n.R2 < 1e-6 {
			continue
		}

		// Rotate the separation into the reference particle's frame.
		dx, dy := n.Delta[0], n.Delta[1]
		x := cosO*dx - sinO*dy + p.maxX
		y := sinO*dx + cosO*dy + p.maxY

		t1 := math.Atan2(dy, dx) - refO
		t2 := math.Atan2(-dy, -dx) - k.orients[n.Point]
		t := t1 - t2 + p.maxT

		binX := int(math.Floor(x * dxInv))
		binY := int(math.Floor(y * dyInv))
		binT := int(math.Floor(t * dTInv))
		if binX < 0 || binX >= p.nX ||
			binY < 0 || binY >= p.nY ||
			binT < 0 || binT >= p.nT {
			// Outside the observation window, not an error.
			continue
		}

		buf[(binT*p.nY+binY)*p.nX+binX]++
	}
	return nil
}

// Accumulate folds one frame into the histogram. refPoints and points may
// be the same set; self pairs are removed by the overlap cutoff. The
// orientation arrays are in-plane angles in radians aligned with their
// point arrays.
func (p *XYT) Accumulate(
	b *box.Box,
	refPoints [][3]float64, refOrients []float64,
	points [][3]float64, orients []float64,
) error {
	if err := goboo.CheckLen("reference orientations",
		len(refPoints), len(refOrients)); err != nil {
		return err
	}
	if err := goboo.CheckLen("orientations",
		len(points), len(orients)); err != nil {
		return err
	}

	rmax := math.Sqrt(p.maxX*p.maxX + p.maxY*p.maxY)
	q, err := locality.NewQuery(b, points, rmax)
	if err != nil {
		return err
	}

	p.b = b
	p.pcf = nil // cached reduction is stale
	k := &xytKernel{p: p, refOrients: refOrients, orients: orients}
	src := &locality.BoundQuery{
		Query: q, RefPoints: refPoints, RMin: 0, RMax: rmax,
	}
	return p.acc.Run(src, len(refPoints), k)
}

// Compute resets the histogram and accumulates a single frame.
func (p *XYT) Compute(
	b *box.Box,
	refPoints [][3]float64, refOrients []float64,
	points [][3]float64, orients []float64,
) error {
	p.Reset()
	return p.Accumulate(b, refPoints, refOrients, points, orients)
}

// PCF returns the histogram, reducing the per-worker buffers if needed.
// The array is laid out with T as the slowest axis: index
// (t*nY + y)*nX + x. The returned slice is owned by the XYT and is valid
// until the next Accumulate or Reset.
func (p *XYT) PCF() []uint32 {
	if p.pcf == nil {
		k := &xytKernel{p: p}
		p.pcf = p.acc.Reduce(k)
	}
	return p.pcf
}

// Reset zeroes the histogram without deallocating its buffers, keeping the
// instance ready for a fresh accumulation.
func (p *XYT) Reset() {
	k := &xytKernel{p: p}
	p.acc.Reset(k)
	p.pcf = nil
}
