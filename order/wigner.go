package order

import "math"

// Factorials up to 91!, the largest argument reachable for the allowed
// harmonic degrees.
var factorial = func() [92]float64 {
	var f [92]float64
	f[0] = 1
	for i := 1; i < len(f); i++ {
		f[i] = f[i-1] * float64(i)
	}
	return f
}()

// wigner3j evaluates the Wigner 3-j symbol (l l l; m1 m2 m3) with the
// Racah formula. Symbols with m1 + m2 + m3 != 0 vanish.
func wigner3j(l, m1, m2, m3 int) float64 {
	if m1+m2+m3 != 0 {
		return 0
	}

	delta := factorial[l] * factorial[l] * factorial[l] / factorial[3*l+1]
	pref := math.Sqrt(delta *
		factorial[l+m1] * factorial[l-m1] *
		factorial[l+m2] * factorial[l-m2] *
		factorial[l+m3] * factorial[l-m3])
	if m3%2 != 0 {
		pref = -pref
	}

	tMin := max(0, max(-m1, m2))
	tMax := min(l, min(l-m1, l+m2))
	sum := 0.0
	for t := tMin; t <= tMax; t++ {
		term := 1 / (factorial[t] * factorial[t+m1] * factorial[t-m2] *
			factorial[l-t] * factorial[l-t-m1] * factorial[l-t+m2])
		if t%2 != 0 {
			term = -term
		}
		sum += term
	}

	return pref * sum
}

// packW3j tabulates the 3-j coefficients in the (m1, m2) iteration order
// used by thirdOrderSum.
func packW3j(l int) []float64 {
	var w []float64
	for m1 := -l; m1 <= l; m1++ {
		for m2 := max(-l, -l-m1); m2 <= min(l, l-m1); m2++ {
			w = append(w, wigner3j(l, m1, m2, -m1-m2))
		}
	}
	return w
}

// thirdOrderSum contracts a set of harmonics with the tabulated 3-j
// coefficients. q is indexed by l + m. The result is real for harmonics
// of a real particle density, so only rounding noise lands in the
// imaginary part.
func thirdOrderSum(l int, w3j []float64, q []complex128) complex128 {
	var sum complex128
	i := 0
	for m1 := -l; m1 <= l; m1++ {
		for m2 := max(-l, -l-m1); m2 <= min(l, l-m1); m2++ {
			m3 := -m1 - m2
			sum += complex(w3j[i], 0) * q[l+m1] * q[l+m2] * q[l+m3]
			i++
		}
	}
	return sum
}
