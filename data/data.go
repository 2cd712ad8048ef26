/*package data generates small reference systems: ideal crystal lattices
replicated into periodic boxes and uniformly random point sets. These are
mainly intended for tests and examples, where deterministic output across
platforms matters more than the quality of the random stream.*/
package data

import (
	"github.com/structlab/goboo/box"
)

// UnitCell is a cubic crystal unit cell: an edge length and the basis
// positions in fractions of the cell edge.
type UnitCell struct {
	A     float64
	Basis [][3]float64
}

// SC returns a simple cubic unit cell with edge length a.
func SC(a float64) UnitCell {
	return UnitCell{A: a, Basis: [][3]float64{{0, 0, 0}}}
}

// BCC returns a body-centered cubic unit cell with edge length a.
func BCC(a float64) UnitCell {
	return UnitCell{A: a, Basis: [][3]float64{
		{0, 0, 0}, {0.5, 0.5, 0.5},
	}}
}

// FCC returns a face-centered cubic unit cell with edge length a.
func FCC(a float64) UnitCell {
	return UnitCell{A: a, Basis: [][3]float64{
		{0, 0, 0}, {0.5, 0.5, 0}, {0.5, 0, 0.5}, {0, 0.5, 0.5},
	}}
}

// Generate replicates the unit cell n times along each axis into a periodic
// cubic box of side n*A. If sigma is positive, each coordinate is perturbed
// by approximately Gaussian noise with that standard deviation, using the
// deterministic generator seeded by seed.
func (u UnitCell) Generate(n int, sigma float64, seed uint64) (*box.Box, [][3]float64, error) {
	b, err := box.Cube(float64(n) * u.A)
	if err != nil {
		return nil, nil, err
	}

	gen := NewRNG(seed)
	points := make([][3]float64, 0, n*n*n*len(u.Basis))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				for _, f := range u.Basis {
					p := [3]float64{
						(float64(i) + f[0]) * u.A,
						(float64(j) + f[1]) * u.A,
						(float64(k) + f[2]) * u.A,
					}
					if sigma > 0 {
						p[0] += sigma * gen.Normal()
						p[1] += sigma * gen.Normal()
						p[2] += sigma * gen.Normal()
					}
					points = append(points, p)
				}
			}
		}
	}
	return b, points, nil
}

// RandomSystem returns a cubic periodic box of side l containing n
// uniformly distributed points. The same seed always produces the same
// points.
func RandomSystem(l float64, n int, seed uint64) (*box.Box, [][3]float64) {
	b, err := box.Cube(l)
	if err != nil {
		panic("data: RandomSystem requires a positive box size: " + err.Error())
	}

	gen := NewRNG(seed)
	points := make([][3]float64, n)
	for i := range points {
		points[i] = [3]float64{
			l * gen.Uniform(), l * gen.Uniform(), l * gen.Uniform(),
		}
	}
	return b, points
}

// Normal returns an approximately standard normal variate via a 12-term
// Irwin-Hall sum. Good enough for jittering lattices in tests; do not use
// where exact tail behavior matters.
func (gen *RNG) Normal() float64 {
	sum := 0.0
	for i := 0; i < 12; i++ {
		sum += gen.Uniform()
	}
	return sum - 6
}
