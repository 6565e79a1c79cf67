package lds

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot/plotter"
)

func TestImplementsGridXYZ(t *testing.T) {
	implements := func(plotter.GridXYZ) {}
	implements(new(Grid))
}

func TestNormalGrid(t *testing.T) {
	g, err := NormalGrid([]float64{1, -1}, Diagonal(0.25, 4), -1, 3, 40, -9, 7, 80)
	if err != nil {
		t.Fatal(err)
	}
	if c, r := g.Dims(); c != 40 || r != 80 {
		t.Fatalf("dims (%d, %d)", c, r)
	}
	if a := g.CellArea(); math.Abs(a-0.1*0.2) > 1e-15 {
		t.Fatalf("cell area %g", a)
	}
	if i := g.Integral(); math.Abs(i-1) > 1e-3 {
		t.Fatalf("integral %g", i)
	}
	// The mean lies on the grid: column 20, row 40.
	if g.X(20) != 1 || g.Y(40) != -1 {
		t.Fatalf("unexpected axes %g %g", g.X(20), g.Y(40))
	}
	peak := 1 / (2 * math.Pi * math.Sqrt(0.25*4))
	if math.Abs(g.Max()-peak) > 1e-12 || g.Z(20, 40) != g.Max() {
		t.Fatalf("max %g, expected %g", g.Max(), peak)
	}
}

func TestNormalGridErrors(t *testing.T) {
	cov := Identity(2)
	if _, err := NormalGrid([]float64{0}, cov, 0, 1, 1, 0, 1, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("1-D mean: %v", err)
	}
	if _, err := NormalGrid([]float64{0, 0}, Identity(3), 0, 1, 1, 0, 1, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("3×3 covariance: %v", err)
	}
	for _, r := range [][2]float64{{1, 1}, {1, 0}, {math.NaN(), 1}, {0, math.Inf(1)}} {
		if _, err := NormalGrid([]float64{0, 0}, cov, r[0], r[1], 10, 0, 1, 10); !errors.Is(err, ErrInvalidParameter) {
			t.Fatalf("range %v: %v", r, err)
		}
	}
	if _, err := NormalGrid([]float64{0, 0}, cov, 0, 1, 10, 0, 1, -1); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("negative steps: %v", err)
	}
	if _, err := NormalGrid([]float64{0, 0}, mat.NewDense(2, 2, []float64{1, 0.5, 0, 1}), 0, 1, 10, 0, 1, 10); err == nil {
		t.Fatal("expected an error for a non-symmetric covariance")
	}
	if _, err := NormalGrid([]float64{0, 0}, Diagonal(1, -1), 0, 1, 10, 0, 1, 10); err == nil {
		t.Fatal("expected an error for an indefinite covariance")
	}
}
