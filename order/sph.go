package order

import "math"

// ylm fills out, which must have length 2l+1, with the orthonormal
// spherical harmonics Y_l^m(theta, phi) for m = -l..l, stored at index
// l + m. The Condon-Shortley phase is included, so
// Y_l^-m = (-1)^m conj(Y_l^m).
//
// The normalized associated Legendre values are built by upward recurrence
// in the degree at fixed order, which is stable for the degrees allowed
// here.
func ylm(l int, theta, phi float64, out []complex128) {
	sinT, cosT := math.Sincos(theta)

	pmm := math.Sqrt(1 / (4 * math.Pi))
	for m := 0; m <= l; m++ {
		p := pmm
		if l > m {
			p0, p1 := pmm, math.Sqrt(2*float64(m)+3)*cosT*pmm
			for ll := m + 2; ll <= l; ll++ {
				fl, fm2 := float64(ll), float64(m*m)
				a := math.Sqrt((4*fl*fl - 1) / (fl*fl - fm2))
				b := math.Sqrt(((fl-1)*(fl-1) - fm2) / (4*(fl-1)*(fl-1) - 1))
				p0, p1 = p1, a*(cosT*p1-b*p0)
			}
			p = p1
		}

		sinP, cosP := math.Sincos(float64(m) * phi)
		out[l+m] = complex(p*cosP, p*sinP)
		if m > 0 {
			if m%2 == 0 {
				out[l-m] = complex(p*cosP, -p*sinP)
			} else {
				out[l-m] = complex(-p*cosP, p*sinP)
			}
		}

		fm := float64(m + 1)
		pmm *= -math.Sqrt((2*fm+1)/(2*fm)) * sinT
	}
}

// bondAngles converts a separation vector into the polar angles used by
// ylm. The polar angle is measured from the +z axis.
func bondAngles(delta [3]float64, r2 float64) (theta, phi float64) {
	r := math.Sqrt(r2)
	cosT := delta[2] / r
	if cosT > 1 {
		cosT = 1
	} else if cosT < -1 {
		cosT = -1
	}
	return math.Acos(cosT), math.Atan2(delta[1], delta[0])
}
