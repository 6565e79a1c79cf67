package lds

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// VanLoan computes the F and Q matrices from the provided CT system A, Γ, W and
// the sampling rate Δt.
// If the Nyquist criterion is not fulfilled, the matrices are still returned along
// with an error wrapping ErrInvalidParameter.
func VanLoan(A, Γ, W mat.Matrix, Δt float64) (*mat.Dense, *mat.SymDense, error) {
	if err := checkIsSquare(A, "A"); err != nil {
		return nil, nil, err
	}
	if err := checkMatDims(A, Γ, "A", "Γ", rows2rows); err != nil {
		return nil, nil, err
	}
	if err := checkMatDims(Γ, W, "Γ", "W", cols2rows); err != nil {
		return nil, nil, err
	}
	if err := positive("Δt", Δt); err != nil {
		return nil, nil, err
	}

	var err error
	// Check aliasing
	var eig mat.Eigen
	if ok := eig.Factorize(A, mat.EigenNone); ok {
		λmax := 0.0
		for _, λ := range eig.Values(nil) {
			if a := cmplx.Abs(λ); a > λmax {
				λmax = a
			}
		}
		if 2*λmax*Δt >= math.Pi {
			err = invalidParam("Δt", "Nyquist sampling criterion not fulfilled with Δt=%f", Δt)
		}
	}

	// Compute F and Q.
	var ΓW, ΓWΓ, Ap mat.Dense
	ΓW.Mul(Γ, W)
	ΓWΓ.Mul(&ΓW, Γ.T())
	ΓWΓ.Scale(Δt, &ΓWΓ)
	Ap.Scale(Δt, A)

	// M = [[-A, ΓWΓ'], [0, A']] * Δt
	rA, cA := A.Dims()
	M := mat.NewDense(2*rA, 2*cA, nil)
	for i := 0; i < rA; i++ {
		for j := 0; j < cA; j++ {
			M.Set(i, j, -Ap.At(i, j))
			M.Set(i+rA, j+cA, Ap.At(j, i))
			M.Set(i, j+cA, ΓWΓ.At(i, j))
		}
	}

	var expM mat.Dense
	expM.Exp(M)

	// Extract F transpose (and F^-1*Q) knowing it has the same size as A.
	F := mat.NewDense(rA, cA, nil)
	F1Q := mat.NewDense(rA, cA, nil)
	for i := 0; i < rA; i++ {
		for j := 0; j < cA; j++ {
			F1Q.Set(i, j, expM.At(i, cA+j))
			F.Set(j, i, expM.At(rA+i, cA+j))
		}
	}
	var Q mat.Dense
	Q.Mul(F, F1Q)
	QSym, serr := AsSymDense(&Q, 1e-9)
	if serr != nil {
		return nil, nil, fmt.Errorf("van loan: %w", serr)
	}
	return F, QSym, err
}
