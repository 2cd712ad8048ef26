/*package diffraction computes simulated diffraction patterns. Particle
positions are projected along a view axis onto a density grid whose Fourier
transform gives the scattered intensity, the same quantity a scattering
experiment on the simulated system would measure.*/
package diffraction

import (
	"fmt"
	"math"

	"github.com/viterin/vek"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/num/quat"

	"github.com/structlab/goboo"
	"github.com/structlab/goboo/box"
	"github.com/structlab/goboo/locality"
	"github.com/structlab/goboo/parallel"
)

// Pattern accumulates a diffraction image over one or more frames of a
// cubic box. The image is the zero-centered structure factor
// |F(k)|^2 / N^2 on an n by n grid of k vectors perpendicular to the view
// axis, averaged over the accumulated frames.
type Pattern struct {
	n   int
	fft *fourier.CmplxFFT
	acc *parallel.Accumulator[[]float64]

	sum    []float64 // accumulated intensity, before frame averaging
	frames int
	view   quat.Number
	boxL   float64
}

// New creates a Pattern with an n by n pixel grid.
func New(n int) (*Pattern, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: grid size %d below 2",
			goboo.ErrInvalidArgument, n)
	}
	return &Pattern{
		n:   n,
		fft: fourier.NewCmplxFFT(n),
		acc: parallel.NewAccumulator[[]float64](0),
		sum: make([]float64, n*n),
	}, nil
}

// rotateVec applies the rotation quaternion q to v.
func rotateVec(q quat.Number, v [3]float64) [3]float64 {
	p := quat.Number{Imag: v[0], Jmag: v[1], Kmag: v[2]}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return [3]float64{r.Imag, r.Jmag, r.Kmag}
}

// binKernel deposits rotated particle positions on the density grid. It
// runs without a neighbor source; each reference index is one particle.
type binKernel struct {
	d      *Pattern
	b      *box.Box
	points [][3]float64
	view   quat.Number
}

func (k *binKernel) NewBuffer() []float64 {
	return make([]float64, k.d.n*k.d.n)
}

func (k *binKernel) Reset(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
}

func (k *binKernel) Combine(dst, src []float64) {
	vek.Add_Inplace(dst, src)
}

func (k *binKernel) Accumulate(
	ref int, _ []locality.Neighbor, buf []float64,
) error {
	n := k.d.n
	p := k.b.Wrap(rotateVec(k.view, k.points[ref]))
	f := k.b.Fractional(p)

	ix := gridBin(f[0], n)
	iy := gridBin(f[1], n)
	buf[ix*n+iy]++
	return nil
}

// gridBin maps a fractional coordinate in [-0.5, 0.5) to a grid index.
func gridBin(f float64, n int) int {
	i := int(math.Floor((f + 0.5) * float64(n)))
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Compute folds one frame into the pattern. The view quaternion rotates
// the system so that the viewing direction becomes the z axis; the zero
// value is treated as the identity, looking down z. With reset set the
// accumulated frames are discarded first. The box must be cubic and
// untilted.
func (p *Pattern) Compute(
	b *box.Box, points [][3]float64, view quat.Number, reset bool,
) error {
	if b.Is2D() || b.Lx() != b.Ly() || b.Lx() != b.Lz() {
		return fmt.Errorf("%w: diffraction requires a cubic box",
			goboo.ErrInvalidArgument)
	}
	if xy, xz, yz := b.Tilts(); xy != 0 || xz != 0 || yz != 0 {
		return fmt.Errorf("%w: diffraction requires an untilted box",
			goboo.ErrInvalidArgument)
	}
	if len(points) == 0 {
		return fmt.Errorf("%w: no particles", goboo.ErrInvalidArgument)
	}
	if reset {
		p.Reset()
	}
	if view == (quat.Number{}) {
		view = quat.Number{Real: 1}
	}

	k := &binKernel{d: p, b: b, points: points, view: view}
	p.acc.Reset(k)
	if err := p.acc.Run(nil, len(points), k); err != nil {
		return err
	}
	grid := p.acc.Reduce(k)

	intensity := p.transform(grid, len(points))
	vek.Add_Inplace(p.sum, intensity)
	p.frames++
	p.view = view
	p.boxL = b.Lx()
	return nil
}

// transform turns the density grid into the zero-centered intensity
// |F|^2 / nPoints^2.
func (p *Pattern) transform(grid []float64, nPoints int) []float64 {
	n := p.n
	field := make([]complex128, n*n)
	for i, v := range grid {
		field[i] = complex(v, 0)
	}

	scratch := make([]complex128, n)
	for r := 0; r < n; r++ {
		row := field[r*n : (r+1)*n]
		copy(scratch, row)
		p.fft.Coefficients(row, scratch)
	}
	col := make([]complex128, n)
	for c := 0; c < n; c++ {
		for r := 0; r < n; r++ {
			col[r] = field[r*n+c]
		}
		p.fft.Coefficients(scratch, col)
		for r := 0; r < n; r++ {
			field[r*n+c] = scratch[r]
		}
	}

	// Shift the zero-frequency term to the grid center.
	shift := (n + 1) / 2
	norm := float64(nPoints) * float64(nPoints)
	out := make([]float64, n*n)
	for i := 0; i < n; i++ {
		si := (i + shift) % n
		for j := 0; j < n; j++ {
			sj := (j + shift) % n
			v := field[si*n+sj]
			out[i*n+j] = (real(v)*real(v) + imag(v)*imag(v)) / norm
		}
	}
	return out
}

// Diffraction returns the frame-averaged intensity image as a fresh
// slice, indexed by ix*n + iy in the axes of KValues.
func (p *Pattern) Diffraction() []float64 {
	if p.frames == 0 {
		return make([]float64, len(p.sum))
	}
	return vek.DivNumber(p.sum, float64(p.frames))
}

// KValues returns the wavenumbers of the grid axes in ascending order,
// with zero at index n/2. It is nil before the first Compute call.
func (p *Pattern) KValues() []float64 {
	if p.frames == 0 {
		return nil
	}
	k := make([]float64, p.n)
	for i := range k {
		k[i] = 2 * math.Pi * float64(i-p.n/2) / p.boxL
	}
	return k
}

// KVectors returns the 3D scattering vector of every pixel, rotated back
// into the lab frame of the last Compute call. Pixel (ix, iy) is at index
// ix*n + iy.
func (p *Pattern) KVectors() [][3]float64 {
	k := p.KValues()
	if k == nil {
		return nil
	}
	inv := quat.Conj(p.view)
	out := make([][3]float64, p.n*p.n)
	for i := range k {
		for j := range k {
			out[i*p.n+j] = rotateVec(inv, [3]float64{k[i], k[j], 0})
		}
	}
	return out
}

// GridSize returns the pixel count per axis.
func (p *Pattern) GridSize() int { return p.n }

// Frames returns the number of accumulated frames.
func (p *Pattern) Frames() int { return p.frames }

// Reset discards all accumulated frames.
func (p *Pattern) Reset() {
	for i := range p.sum {
		p.sum[i] = 0
	}
	p.frames = 0
}
