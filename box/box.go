/*package box represents periodic simulation cells, including triclinic cells,
and computes minimum-image displacement vectors inside them.*/
package box

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/structlab/goboo"
)

// ErrInvalidArgument is returned when a box is constructed with parameters
// that cannot describe a valid periodic cell. It aliases the module-wide
// sentinel so callers can match either name.
var ErrInvalidArgument = goboo.ErrInvalidArgument

// Box is a periodic simulation cell. The cell is spanned by the lattice
// vectors
//
//	a1 = (lx,     0,     0)
//	a2 = (xy*ly,  ly,    0)
//	a3 = (xz*lz,  yz*lz, lz)
//
// where xy, xz and yz are the usual triclinic tilt factors. A Box is
// immutable once constructed and is safe for concurrent reads.
type Box struct {
	lx, ly, lz float64
	xy, xz, yz float64
	is2D       bool

	// h maps fractional to absolute coordinates, hinv the reverse.
	h, hinv [3][3]float64
}

// New creates a triclinic periodic box with edge lengths lx, ly, lz and tilt
// factors xy, xz, yz. If is2D is true the box is only periodic in x and y:
// the z component of displacement vectors is never wrapped and lz is only
// used to report cell parameters. New returns ErrInvalidArgument if any edge
// length is non-positive or the resulting cell has zero volume.
func New(lx, ly, lz, xy, xz, yz float64, is2D bool) (*Box, error) {
	if lx <= 0 || ly <= 0 || lz <= 0 {
		return nil, fmt.Errorf("%w: box lengths (%g, %g, %g) must all be positive",
			ErrInvalidArgument, lx, ly, lz)
	}

	b := &Box{lx: lx, ly: ly, lz: lz, xy: xy, xz: xz, yz: yz, is2D: is2D}
	b.h = [3][3]float64{
		{lx, xy * ly, xz * lz},
		{0, ly, yz * lz},
		{0, 0, lz},
	}

	hDense := mat.NewDense(3, 3, []float64{
		b.h[0][0], b.h[0][1], b.h[0][2],
		b.h[1][0], b.h[1][1], b.h[1][2],
		b.h[2][0], b.h[2][1], b.h[2][2],
	})
	var hinv mat.Dense
	if err := hinv.Inverse(hDense); err != nil {
		return nil, fmt.Errorf("%w: box with lengths (%g, %g, %g) and tilts "+
			"(%g, %g, %g) is degenerate", ErrInvalidArgument,
			lx, ly, lz, xy, xz, yz)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			b.hinv[i][j] = hinv.At(i, j)
		}
	}

	return b, nil
}

// Cube creates an orthorhombic periodic box with equal side lengths.
func Cube(l float64) (*Box, error) {
	return New(l, l, l, 0, 0, 0, false)
}

// Square creates a two-dimensional periodic box with equal side lengths in
// x and y. The (unused) z length is set to the same value so that cell
// parameters remain non-degenerate.
func Square(l float64) (*Box, error) {
	return New(l, l, l, 0, 0, 0, true)
}

// Lx returns the box length along the first lattice vector.
func (b *Box) Lx() float64 { return b.lx }

// Ly returns the box length along the second lattice vector.
func (b *Box) Ly() float64 { return b.ly }

// Lz returns the box length along the third lattice vector.
func (b *Box) Lz() float64 { return b.lz }

// Tilts returns the triclinic tilt factors (xy, xz, yz).
func (b *Box) Tilts() (xy, xz, yz float64) { return b.xy, b.xz, b.yz }

// Is2D returns true if the box is only periodic in x and y.
func (b *Box) Is2D() bool { return b.is2D }

// Volume returns the cell volume, or the cell area for 2D boxes.
func (b *Box) Volume() float64 {
	if b.is2D {
		return b.lx * b.ly
	}
	return b.lx * b.ly * b.lz
}

// Fractional converts an absolute displacement to fractional coordinates,
// i.e. coordinates measured in units of the lattice vectors.
func (b *Box) Fractional(v [3]float64) [3]float64 {
	return [3]float64{
		b.hinv[0][0]*v[0] + b.hinv[0][1]*v[1] + b.hinv[0][2]*v[2],
		b.hinv[1][0]*v[0] + b.hinv[1][1]*v[1] + b.hinv[1][2]*v[2],
		b.hinv[2][0]*v[0] + b.hinv[2][1]*v[1] + b.hinv[2][2]*v[2],
	}
}

// Absolute converts fractional coordinates back to an absolute displacement.
func (b *Box) Absolute(f [3]float64) [3]float64 {
	return [3]float64{
		b.h[0][0]*f[0] + b.h[0][1]*f[1] + b.h[0][2]*f[2],
		b.h[1][0]*f[0] + b.h[1][1]*f[1] + b.h[1][2]*f[2],
		b.h[2][0]*f[0] + b.h[2][1]*f[1] + b.h[2][2]*f[2],
	}
}

/// Wrap maps a displacement vector to its minimum image: the periodic replica
// with the smallest magnitude. The displacement is converted to fractional
// coordinates, each component is rounded to the nearest integer and
// subtracted, and the result is converted back. For 2D boxes the z component
// is returned unchanged.
func (b *Box) Wrap(v [3]float64) [3]float64 {
	f := b.Fractional(v)
	f[0] -= math.Round(f[0])
	f[1] -= math.Round(f[1])
	if !b.is2D {
		f[2] -= math.Round(f[2])
	}

	w := b.Absolute(f)
	if b.is2D {
		w[2] = v[2]
	}
	return w
}

// MinWidth returns the smallest distance between opposite faces of the cell
// over the periodic axes. Displacements shorter than half this width always
// have a unique minimum image.
func (b *Box) MinWidth() float64 {
	// Perpendicular widths of the cell along each axis. For the tilted cell
	// the width along an axis is the cell volume divided by the area of the
	// face spanned by the other two lattice vectors.
	a1 := [3]float64{b.h[0][0], b.h[1][0], b.h[2][0]}
	a2 := [3]float64{b.h[0][1], b.h[1][1], b.h[2][1]}
	a3 := [3]float64{b.h[0][2], b.h[1][2], b.h[2][2]}
	v := b.lx * b.ly * b.lz

	wx := v / norm(cross(a2, a3))
	wy := v / norm(cross(a3, a1))
	if b.is2D {
		return math.Min(wx, wy)
	}
	wz := v / norm(cross(a1, a2))
	return math.Min(wx, math.Min(wy, wz))
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func norm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}
