package lds

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Identity returns an identity matrix of the provided size.
func Identity(n int) *mat.SymDense {
	return ScaledIdentity(n, 1)
}

// ScaledIdentity returns an identity matrix time a scaling factor of the provided size.
func ScaledIdentity(n int, s float64) *mat.SymDense {
	vals := make([]float64, n*n)
	for j := 0; j < n*n; j += n + 1 {
		vals[j] = s
	}
	return mat.NewSymDense(n, vals)
}

// Diagonal returns a square matrix holding the provided values on its diagonal.
func Diagonal(vals ...float64) *mat.SymDense {
	n := len(vals)
	d := mat.NewSymDense(n, nil)
	for i, v := range vals {
		d.SetSym(i, i, v)
	}
	return d
}

// IsNil returns whether the provided matrix only has zero values
func IsNil(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if m.At(i, j) != 0 {
				return false
			}
		}
	}
	return true
}

// IsFinite returns whether every entry of the provided matrix is finite.
func IsFinite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// AsSymDense attempts return a SymDense from the provided matrix.
// Entries mirrored across the diagonal may differ by at most tol (relative to the
// largest of the two); the returned matrix holds their average.
func AsSymDense(m mat.Matrix, tol float64) (*mat.SymDense, error) {
	r, c := m.Dims()
	if r != c {
		return nil, errors.New("matrix must be square")
	}
	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < c; j++ {
			a, b := m.At(i, j), m.At(j, i)
			if diff := math.Abs(a - b); diff > tol*math.Max(1, math.Max(math.Abs(a), math.Abs(b))) {
				return nil, fmt.Errorf("matrix is not symmetric: (%d,%d)=%g (%d,%d)=%g", i, j, a, j, i, b)
			}
			sym.SetSym(i, j, (a+b)/2)
		}
	}
	return sym, nil
}

// IsSymmetric returns whether m is symmetric within tol.
func IsSymmetric(m mat.Matrix, tol float64) bool {
	_, err := AsSymDense(m, tol)
	return err == nil
}

// copyState returns deep copies of the provided state and covariance.
func copyState(x mat.Vector, P mat.Matrix) (*mat.VecDense, *mat.Dense) {
	return mat.VecDenseCopyOf(x), mat.DenseCopyOf(P)
}
