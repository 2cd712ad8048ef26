/*package order computes rotationally invariant bond order parameters.
Each particle's neighbor bonds are expanded in spherical harmonics and
contracted into second-order (Ql) and third-order (Wl) invariants, the
standard diagnostics for crystalline order in particle simulations.*/
package order

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/stat"

	"github.com/structlab/goboo"
	"github.com/structlab/goboo/box"
	"github.com/structlab/goboo/locality"
	"github.com/structlab/goboo/parallel"
)

// Params configures a Steinhardt computation.
type Params struct {
	// L is the spherical harmonic degree, between 2 and 30. Degree 6 is
	// the usual choice for detecting close-packed crystals.
	L int

	// RMax and RMin bound the neighbor shell used when Compute is not
	// given an explicit neighbor list.
	RMax, RMin float64

	// Average replaces each particle's harmonics with the mean over the
	// particle and its neighbors before forming invariants, which extends
	// the order parameter's sensitivity to the second shell.
	Average bool

	// Wl selects the third-order invariant for the particle order and
	// the system norm.
	Wl bool

	// Weighted scales each bond by its neighbor list weight. It has no
	// effect on distance queries, whose weights are all one.
	Weighted bool
}

// Steinhardt computes bond order invariants for one configuration at a
// time. A single instance may be reused across configurations; each
// Compute call replaces the previous results.
type Steinhardt struct {
	p   Params
	nlm int
	w3j []float64

	n        int
	qlmi     []complex128 // n rows of 2l+1 harmonics
	qlmiAve  []complex128 // neighbor-averaged rows, when p.Average
	qlm      []complex128 // system mean of the selected rows
	ql       []float64
	wl       []float64
	particle []float64
	norm     float64

	acc *parallel.Accumulator[*harmonicBuf]
}

// NewSteinhardt validates the parameters and returns an empty Steinhardt.
func NewSteinhardt(p Params) (*Steinhardt, error) {
	if p.L < 2 || p.L > 30 {
		return nil, fmt.Errorf("%w: harmonic degree %d outside [2, 30]",
			goboo.ErrInvalidArgument, p.L)
	}
	if p.RMax <= 0 || p.RMin < 0 || p.RMin >= p.RMax {
		return nil, fmt.Errorf("%w: neighbor shell [%g, %g) is empty or "+
			"negative", goboo.ErrInvalidArgument, p.RMin, p.RMax)
	}

	s := &Steinhardt{p: p, nlm: 2*p.L + 1}
	s.acc = parallel.NewAccumulator[*harmonicBuf](0)
	if p.Wl {
		s.w3j = packW3j(p.L)
	}
	return s, nil
}

// harmonicBuf is the per-worker state of both compute passes: a running
// system sum of the rows the worker produced and scratch for ylm.
type harmonicBuf struct {
	sum     []complex128
	scratch []complex128
}

type harmonicKernel struct {
	s        *Steinhardt
	weighted bool
}

func (k *harmonicKernel) NewBuffer() *harmonicBuf {
	return &harmonicBuf{
		sum:     make([]complex128, k.s.nlm),
		scratch: make([]complex128, k.s.nlm),
	}
}

func (k *harmonicKernel) Reset(buf *harmonicBuf) {
	for i := range buf.sum {
		buf.sum[i] = 0
	}
}

func (k *harmonicKernel) Combine(dst, src *harmonicBuf) {
	cmplxs.Add(dst.sum, src.sum)
}

func (k *harmonicKernel) Accumulate(
	ref int, neighbors []locality.Neighbor, buf *harmonicBuf,
) error {
	s := k.s
	row := s.qlmi[ref*s.nlm : (ref+1)*s.nlm]

	total := 0.0
	for _, n := range neighbors {
		w := 1.0
		if k.weighted {
			w = n.Weight
		}
		theta, phi := bondAngles(n.Delta, n.R2)
		ylm(s.p.L, theta, phi, buf.scratch)
		for m, y := range buf.scratch {
			row[m] += complex(w, 0) * y
		}
		total += w
	}
	if total > 0 {
		inv := complex(1/total, 0)
		for m := range row {
			row[m] *= inv
		}
	}

	cmplxs.Add(buf.sum, row)
	return nil
}

// averageKernel blends each particle's harmonics with its neighbors'. The
// divisor counts the particle itself along with its neighbors.
type averageKernel struct {
	s *Steinhardt
}

func (k *averageKernel) NewBuffer() *harmonicBuf {
	return &harmonicBuf{sum: make([]complex128, k.s.nlm)}
}

func (k *averageKernel) Reset(buf *harmonicBuf) {
	for i := range buf.sum {
		buf.sum[i] = 0
	}
}

func (k *averageKernel) Combine(dst, src *harmonicBuf) {
	cmplxs.Add(dst.sum, src.sum)
}

func (k *averageKernel) Accumulate(
	ref int, neighbors []locality.Neighbor, buf *harmonicBuf,
) error {
	s := k.s
	row := s.qlmiAve[ref*s.nlm : (ref+1)*s.nlm]
	base := s.qlmi[ref*s.nlm : (ref+1)*s.nlm]

	copy(row, base)
	for _, n := range neighbors {
		j := int(n.Point)
		cmplxs.Add(row, s.qlmi[j*s.nlm:(j+1)*s.nlm])
	}
	inv := complex(1/float64(len(neighbors)+1), 0)
	for m := range row {
		row[m] *= inv
	}

	cmplxs.Add(buf.sum, row)
	return nil
}

// Compute evaluates the order parameters of one configuration. If
// neighbors is non-nil it supplies the bonds, grouped by ascending
// reference index over len(points) references; otherwise bonds are found
// by a distance query over [RMin, RMax) excluding self pairs.
func (s *Steinhardt) Compute(
	b *box.Box, points [][3]float64, neighbors locality.NeighborList,
) error {
	n := len(points)
	var src parallel.Source
	if neighbors != nil {
		src = locality.NewListSource(neighbors, n)
	} else {
		q, err := locality.NewQuery(b, points, s.p.RMax)
		if err != nil {
			return err
		}
		src = &locality.BoundQuery{
			Query: q, RefPoints: points,
			RMin: s.p.RMin, RMax: s.p.RMax, ExcludeSelf: true,
		}
	}

	s.n = n
	s.qlmi = make([]complex128, n*s.nlm)
	s.ql = make([]float64, n)
	s.particle = make([]float64, n)
	s.qlmiAve, s.wl = nil, nil

	k := &harmonicKernel{s: s, weighted: s.p.Weighted}
	s.acc.Reset(k)
	if err := s.acc.Run(src, n, k); err != nil {
		return err
	}
	systemSum := s.acc.Reduce(k).sum

	selected := s.qlmi
	if s.p.Average {
		s.qlmiAve = make([]complex128, n*s.nlm)
		ak := &averageKernel{s: s}
		s.acc.Reset(ak)
		if err := s.acc.Run(src, n, ak); err != nil {
			return err
		}
		systemSum = s.acc.Reduce(ak).sum
		selected = s.qlmiAve
	}

	s.qlm = make([]complex128, s.nlm)
	if n > 0 {
		for m, q := range systemSum {
			s.qlm[m] = q / complex(float64(n), 0)
		}
	}

	if s.p.Wl {
		s.wl = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		base := s.qlmi[i*s.nlm : (i+1)*s.nlm]
		row := selected[i*s.nlm : (i+1)*s.nlm]
		s.ql[i] = qlInvariant(s.p.L, base)
		if s.p.Wl {
			s.wl[i] = real(thirdOrderSum(s.p.L, s.w3j, row))
			s.particle[i] = s.wl[i]
		} else {
			s.particle[i] = qlInvariant(s.p.L, row)
		}
	}

	if s.p.Wl {
		s.norm = real(thirdOrderSum(s.p.L, s.w3j, s.qlm))
	} else {
		s.norm = qlInvariant(s.p.L, s.qlm)
	}
	return nil
}

// qlInvariant maps one row of harmonics to the rotation invariant
// sqrt(4*pi/(2l+1) * sum_m |q_m|^2).
func qlInvariant(l int, q []complex128) float64 {
	sum := 0.0
	for _, v := range q {
		a := cmplx.Abs(v)
		sum += a * a
	}
	return math.Sqrt(4 * math.Pi / float64(2*l+1) * sum)
}

// Ql returns the per-particle second-order invariant of the raw
// harmonics, regardless of the Average and Wl settings.
func (s *Steinhardt) Ql() []float64 { return s.ql }

// ParticleOrder returns the per-particle order selected by Params:
// the averaged invariant under Average and the third-order invariant
// under Wl.
func (s *Steinhardt) ParticleOrder() []float64 { return s.particle }

// Wl returns the per-particle third-order invariant, or nil unless
// Params.Wl is set.
func (s *Steinhardt) Wl() []float64 { return s.wl }

// Order returns the mean of ParticleOrder over all particles.
func (s *Steinhardt) Order() float64 {
	if s.n == 0 {
		return 0
	}
	return stat.Mean(s.particle, nil)
}

// Norm returns the invariant of the system-averaged harmonics. Unlike
// Order it detects global order: in a polycrystal the per-grain harmonics
// cancel instead of adding.
func (s *Steinhardt) Norm() float64 { return s.norm }

// NumParticles returns the particle count of the last Compute call.
func (s *Steinhardt) NumParticles() int { return s.n }

// Reset discards the results of the last Compute call.
func (s *Steinhardt) Reset() {
	s.n = 0
	s.qlmi, s.qlmiAve, s.qlm = nil, nil, nil
	s.ql, s.wl, s.particle = nil, nil, nil
	s.norm = 0
}
