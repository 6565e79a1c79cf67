package lds

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Grid holds density values over a regular 2-D mesh. Density[i][j] is the value at
// (Xs[i], Ys[j]). The axes start at XMin and YMin and stop one step short of XMax and YMax.
//
// Grid implements the GridXYZ interface of gonum.org/v1/plot/plotter.
type Grid struct {
	XMin    float64     `yaml:"x_min"`
	XMax    float64     `yaml:"x_max"`
	YMin    float64     `yaml:"y_min"`
	YMax    float64     `yaml:"y_max"`
	Xs      []float64   `yaml:"xs,flow"`
	Ys      []float64   `yaml:"ys,flow"`
	Density [][]float64 `yaml:"density,flow"`
}

// NormalGrid evaluates the bivariate normal density N(mean, cov) on a grid of
// xsteps×ysteps points spanning [x1, x2)×[y1, y2).
func NormalGrid(mean []float64, cov mat.Matrix, x1, x2 float64, xsteps int, y1, y2 float64, ysteps int) (*Grid, error) {
	if len(mean) != 2 {
		return nil, fmt.Errorf("%w: density grid needs a 2-D mean, got %d", ErrDimensionMismatch, len(mean))
	}
	if err := checkSquare(cov, "covariance", 2); err != nil {
		return nil, err
	}
	if err := checkRange("x", x1, x2, xsteps); err != nil {
		return nil, err
	}
	if err := checkRange("y", y1, y2, ysteps); err != nil {
		return nil, err
	}
	sym, err := AsSymDense(cov, 1e-9)
	if err != nil {
		return nil, fmt.Errorf("posterior covariance: %w", err)
	}
	normal, ok := distmv.NewNormal(mean, sym, nil)
	if !ok {
		return nil, errors.New("posterior covariance is not positive definite")
	}

	g := &Grid{
		XMin: x1, XMax: x2, YMin: y1, YMax: y2,
		Xs:      axis(x1, x2, xsteps),
		Ys:      axis(y1, y2, ysteps),
		Density: make([][]float64, xsteps),
	}
	pt := make([]float64, 2)
	for i, x := range g.Xs {
		g.Density[i] = make([]float64, ysteps)
		pt[0] = x
		for j, y := range g.Ys {
			pt[1] = y
			g.Density[i][j] = normal.Prob(pt)
		}
	}
	return g, nil
}

func checkRange(name string, lo, hi float64, steps int) error {
	if steps <= 0 {
		return invalidParam(name+"steps", "must be positive, got %d", steps)
	}
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) || lo >= hi {
		return invalidParam(name+" range", "[%g, %g) is empty or not finite", lo, hi)
	}
	return nil
}

// axis returns steps points from lo with a step of (hi-lo)/steps.
func axis(lo, hi float64, steps int) []float64 {
	return floats.Span(make([]float64, steps+1), lo, hi)[:steps]
}

// Dims returns the number of columns (x) and rows (y) of the grid.
func (g *Grid) Dims() (c, r int) {
	return len(g.Xs), len(g.Ys)
}

// Z returns the density at column c and row r.
func (g *Grid) Z(c, r int) float64 {
	return g.Density[c][r]
}

// X returns the x coordinate of column c.
func (g *Grid) X(c int) float64 {
	return g.Xs[c]
}

// Y returns the y coordinate of row r.
func (g *Grid) Y(r int) float64 {
	return g.Ys[r]
}

// CellArea returns the area covered by one grid point.
func (g *Grid) CellArea() float64 {
	c, r := g.Dims()
	return (g.XMax - g.XMin) / float64(c) * (g.YMax - g.YMin) / float64(r)
}

// Integral returns the Riemann sum of the density over the grid.
func (g *Grid) Integral() float64 {
	var sum float64
	for _, row := range g.Density {
		sum += floats.Sum(row)
	}
	return sum * g.CellArea()
}

// Max returns the largest density value on the grid.
func (g *Grid) Max() float64 {
	var peak float64
	for _, row := range g.Density {
		if m := floats.Max(row); m > peak {
			peak = m
		}
	}
	return peak
}
