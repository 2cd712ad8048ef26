/*package environment characterizes local particle environments relative to
per-particle reference frames. Orientations are unit quaternions and
environments can carry a point group symmetry, given as the set of
symmetrically equivalent orientations.*/
package environment

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"

	"github.com/structlab/goboo"
	"github.com/structlab/goboo/box"
	"github.com/structlab/goboo/locality"
	"github.com/structlab/goboo/parallel"
)

// LocalBondProjection computes, for every neighbor bond, the projection of
// the bond onto a set of reference directions defined in the bonded
// particle's own frame. The projection is maximized over the symmetrically
// equivalent orientations, so a particle's point group symmetry does not
// split otherwise identical bonds.
type LocalBondProjection struct {
	projVecs [][3]float64
	equiv    []quat.Number
	rmax     float64

	nlist  locality.NeighborList
	seg    []int
	proj   []float64
	normed []float64

	acc *parallel.Accumulator[struct{}]
}

// NewLocalBondProjection validates the reference directions and the
// equivalent orientations. An empty equiv set means no symmetry beyond the
// identity. rmax bounds the distance query used when Compute is not given
// an explicit neighbor list.
func NewLocalBondProjection(
	projVecs [][3]float64, equiv []quat.Number, rmax float64,
) (*LocalBondProjection, error) {
	if len(projVecs) == 0 {
		return nil, fmt.Errorf("%w: no projection vectors",
			goboo.ErrInvalidArgument)
	}
	for i, v := range projVecs {
		if v[0] == 0 && v[1] == 0 && v[2] == 0 {
			return nil, fmt.Errorf("%w: projection vector %d is zero",
				goboo.ErrInvalidArgument, i)
		}
	}
	if rmax <= 0 {
		return nil, fmt.Errorf("%w: query radius %g must be positive",
			goboo.ErrInvalidArgument, rmax)
	}
	if len(equiv) == 0 {
		equiv = []quat.Number{{Real: 1}}
	}

	return &LocalBondProjection{
		projVecs: projVecs,
		equiv:    equiv,
		rmax:     rmax,
		acc:      parallel.NewAccumulator[struct{}](0),
	}, nil
}

// rotateVec applies the rotation quaternion q to v.
func rotateVec(q quat.Number, v [3]float64) [3]float64 {
	p := quat.Number{Imag: v[0], Jmag: v[1], Kmag: v[2]}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return [3]float64{r.Imag, r.Jmag, r.Kmag}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// maxProjection projects localBond onto every equivalent image of projVec
// and returns the largest value.
func (p *LocalBondProjection) maxProjection(
	projVec, localBond [3]float64,
) float64 {
	maxProj := math.Inf(-1)
	for _, qe := range p.equiv {
		v := rotateVec(quat.Conj(qe), projVec)
		if proj := dot(v, localBond); proj > maxProj {
			maxProj = proj
		}
	}
	return maxProj
}

// projectionKernel writes the projections of one reference particle's
// bonds. Bond rows of distinct references never overlap, so the workers
// need no shared state.
type projectionKernel struct {
	p            *LocalBondProjection
	orientations []quat.Number
}

func (k *projectionKernel) NewBuffer() struct{}   { return struct{}{} }
func (k *projectionKernel) Reset(struct{})        {}
func (k *projectionKernel) Combine(_, _ struct{}) {}

func (k *projectionKernel) Accumulate(
	ref int, neighbors []locality.Neighbor, _ struct{},
) error {
	p := k.p
	nProj := len(p.projVecs)
	row := p.seg[ref] * nProj

	for _, n := range neighbors {
		// The frame belongs to the bonded particle, not the reference.
		q := k.orientations[n.Point]
		local := rotateVec(quat.Conj(q), n.Delta)
		bondLen := math.Sqrt(n.R2)

		for j, v := range p.projVecs {
			proj := p.maxProjection(v, local)
			p.proj[row+j] = proj
			p.normed[row+j] = proj / bondLen
		}
		row += nProj
	}
	return nil
}

// Compute evaluates the bond projections of one configuration. The
// orientations are aligned with points. If neighbors is nil, bonds are
// found by a distance query from queryPoints into points; self pairs are
// excluded only when queryPoints is the points slice itself. Otherwise
// the given bonds are used verbatim.
func (p *LocalBondProjection) Compute(
	b *box.Box,
	points [][3]float64, orientations []quat.Number,
	queryPoints [][3]float64, neighbors locality.NeighborList,
) error {
	if err := goboo.CheckLen("orientations",
		len(points), len(orientations)); err != nil {
		return err
	}

	if neighbors == nil {
		q, err := locality.NewQuery(b, points, p.rmax)
		if err != nil {
			return err
		}
		// A query point is its own neighbor only when the two sets are
		// the same slice; equal indices in distinct sets are real bonds.
		excludeSelf := len(queryPoints) == len(points) &&
			(len(points) == 0 || &queryPoints[0] == &points[0])
		neighbors, err = q.QueryAll(queryPoints, 0, p.rmax, excludeSelf)
		if err != nil {
			return err
		}
	}

	p.nlist = neighbors
	p.seg = neighbors.Segments(len(queryPoints))
	p.proj = make([]float64, len(neighbors)*len(p.projVecs))
	p.normed = make([]float64, len(neighbors)*len(p.projVecs))

	k := &projectionKernel{p: p, orientations: orientations}
	src := locality.NewListSource(neighbors, len(queryPoints))
	return p.acc.Run(src, len(queryPoints), k)
}

// Projections returns the maximal projections, one row of
// len(projVecs) values per bond, in the bond order of NeighborList.
func (p *LocalBondProjection) Projections() []float64 { return p.proj }

// NormedProjections returns the projections divided by their bond
// lengths, turning each value into the cosine of the angle between the
// bond and the reference direction for unit reference directions.
func (p *LocalBondProjection) NormedProjections() []float64 { return p.normed }

// NeighborList returns the bonds of the last Compute call, in the order
// the projection rows use.
func (p *LocalBondProjection) NeighborList() locality.NeighborList {
	return p.nlist
}

// NumProjVecs returns the number of reference directions.
func (p *LocalBondProjection) NumProjVecs() int { return len(p.projVecs) }
