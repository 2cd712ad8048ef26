package data

import (
	"math"
	"testing"
)

func TestRNGDeterministic(t *testing.T) {
	a, b := NewRNG(17), NewRNG(17)
	for i := 0; i < 1000; i++ {
		x, y := a.Uniform(), b.Uniform()
		if x != y {
			t.Fatalf("%d) Same seed produced %g and %g.", i, x, y)
		}
		if x < 0 || x >= 1 {
			t.Fatalf("%d) Uniform() = %g is outside [0, 1).", i, x)
		}
	}

	seq := make([]float64, 100)
	NewRNG(17).UniformSequence(seq)
	c := NewRNG(17)
	for i := range seq {
		if got := c.Uniform(); got != seq[i] {
			t.Fatalf("%d) UniformSequence diverges from Uniform: %g vs %g.",
				i, seq[i], got)
		}
	}
}

func TestGenerateCounts(t *testing.T) {
	tests := []struct {
		cell UnitCell
		n    int
		pts  int
	}{
		{SC(1), 3, 27},
		{BCC(2), 3, 54},
		{FCC(2), 4, 256},
	}

	for i := range tests {
		b, points, err := tests[i].cell.Generate(tests[i].n, 0, 0)
		if err != nil {
			t.Errorf("%d) Unexpected error: %s", i, err.Error())
			continue
		}
		if len(points) != tests[i].pts {
			t.Errorf("%d) Expected %d points, got %d.",
				i, tests[i].pts, len(points))
		}
		wantL := float64(tests[i].n) * tests[i].cell.A
		if b.Lx() != wantL {
			t.Errorf("%d) Expected box side %g, got %g.", i, wantL, b.Lx())
		}
	}
}

func TestFCCNearestNeighborDistance(t *testing.T) {
	cell := FCC(2)
	b, points, err := cell.Generate(3, 0, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}

	// Every fcc site has 12 nearest neighbors at a/sqrt(2).
	want := cell.A / math.Sqrt2
	count := 0
	for j := 1; j < len(points); j++ {
		d := b.Wrap([3]float64{
			points[j][0] - points[0][0],
			points[j][1] - points[0][1],
			points[j][2] - points[0][2],
		})
		r := math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
		if math.Abs(r-want) < 1e-9 {
			count++
		} else if r < want-1e-9 {
			t.Fatalf("Point %d is at distance %g < nearest-neighbor "+
				"distance %g.", j, r, want)
		}
	}
	if count != 12 {
		t.Errorf("Expected 12 nearest neighbors, got %d.", count)
	}
}

func TestRandomSystemInBox(t *testing.T) {
	l := 8.0
	_, points := RandomSystem(l, 500, 3)
	if len(points) != 500 {
		t.Fatalf("Expected 500 points, got %d.", len(points))
	}
	for i := range points {
		for dim := 0; dim < 3; dim++ {
			if points[i][dim] < 0 || points[i][dim] >= l {
				t.Fatalf("Point %d coordinate %d = %g is outside [0, %g).",
					i, dim, points[i][dim], l)
			}
		}
	}
}
