package lds

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Innovation holds the intermediate quantities of a measurement update, restricted to
// the observed rows of that update.
type Innovation struct {
	Observed   []int         // indices of the observation entries used
	Residual   *mat.VecDense // y - Z*x
	Covariance *mat.Dense    // Z*P*Z' + R
	Gain       *mat.Dense    // P*Z'*inv(S)
}

// Predict propagates (x, P) through the transition B with process noise Q:
// x' = B*x and P' = B*P*B' + Q. The inputs are left untouched.
func Predict(x mat.Vector, P, B, Q mat.Matrix) (*mat.VecDense, *mat.Dense, error) {
	if x == nil {
		return nil, nil, fmt.Errorf("%w: x is nil", ErrDimensionMismatch)
	}
	n := x.Len()
	if err := checkSquare(P, "P", n); err != nil {
		return nil, nil, err
	}
	if err := checkSquare(B, "B", n); err != nil {
		return nil, nil, err
	}
	if err := checkSquare(Q, "Q", n); err != nil {
		return nil, nil, err
	}

	xPred := mat.NewVecDense(n, nil)
	xPred.MulVec(B, x)

	// P_{k+1}^{-}
	var PPred mat.Dense
	PPred.Product(B, P, B.T())
	PPred.Add(&PPred, Q)
	return xPred, &PPred, nil
}

// Update fuses the observation y into (x, P) through the observation matrix Z with
// observation noise R. Missing entries of y are excluded exactly: their rows of Z and
// their rows and columns of R are dropped for this call. When every entry is missing,
// copies of (x, P) are returned.
func Update(y Observation, x mat.Vector, P, Z, R mat.Matrix) (*mat.VecDense, *mat.Dense, error) {
	xNew, PNew, _, err := UpdateDetail(y, x, P, Z, R)
	return xNew, PNew, err
}

// UpdateDetail is Update which also returns the innovation of the step. The innovation
// is nil when every entry of y is missing.
func UpdateDetail(y Observation, x mat.Vector, P, Z, R mat.Matrix) (*mat.VecDense, *mat.Dense, *Innovation, error) {
	if x == nil {
		return nil, nil, nil, fmt.Errorf("%w: x is nil", ErrDimensionMismatch)
	}
	if Z == nil {
		return nil, nil, nil, fmt.Errorf("%w: Z is nil", ErrDimensionMismatch)
	}
	n := x.Len()
	m := y.Len()
	if err := checkSquare(P, "P", n); err != nil {
		return nil, nil, nil, err
	}
	if r, c := Z.Dims(); r != m || c != n {
		return nil, nil, nil, fmt.Errorf("%w: Z must be (%dx%d), got (%dx%d)", ErrDimensionMismatch, m, n, r, c)
	}
	if err := checkSquare(R, "R", m); err != nil {
		return nil, nil, nil, err
	}

	idx := y.Observed()
	if len(idx) == 0 {
		xNew, PNew := copyState(x, P)
		return xNew, PNew, nil, nil
	}

	// Keep only the observed rows.
	k := len(idx)
	Zo := mat.NewDense(k, n, nil)
	Ro := mat.NewDense(k, k, nil)
	yo := mat.NewVecDense(k, nil)
	for a, i := range idx {
		for j := 0; j < n; j++ {
			Zo.Set(a, j, Z.At(i, j))
		}
		for b, l := range idx {
			Ro.Set(a, b, R.At(i, l))
		}
		v, _ := y[i].Value()
		yo.SetVec(a, v)
	}

	// Innovation and its covariance.
	var innov mat.VecDense
	innov.MulVec(Zo, x)
	innov.SubVec(yo, &innov)

	var PZt, S mat.Dense
	PZt.Mul(P, Zo.T())
	S.Mul(Zo, &PZt)
	S.Add(&S, Ro)

	var Sinv mat.Dense
	if err := Sinv.Inverse(&S); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: could not invert `Z*P*Z' + R`: %v", ErrSingularInnovationCovariance, err)
	}
	if !IsFinite(&Sinv) {
		return nil, nil, nil, fmt.Errorf("%w: inverse of `Z*P*Z' + R` is not finite", ErrSingularInnovationCovariance)
	}

	// Kalman gain
	var K mat.Dense
	K.Mul(&PZt, &Sinv)

	xNew := mat.NewVecDense(n, nil)
	xNew.MulVec(&K, &innov)
	xNew.AddVec(x, xNew)

	// P - K*Z*P, no Joseph stabilisation.
	var KZP, PNew mat.Dense
	KZP.Product(&K, Zo, P)
	PNew.Sub(P, &KZP)

	return xNew, &PNew, &Innovation{Observed: idx, Residual: &innov, Covariance: &S, Gain: &K}, nil
}

// StateSpaceModel holds the matrices of a discrete-time linear-Gaussian system. It carries
// no state estimate: filters own their (x, P) and call the model on each tick.
type StateSpaceModel struct {
	B mat.Matrix // state transition (n×n)
	Q mat.Matrix // process noise covariance (n×n)
	Z mat.Matrix // observation matrix (m×n), nil when supplied per update
	R mat.Matrix // observation noise covariance (m×m)
}

// NewStateSpaceModel returns a model after checking that the matrices agree. Z may be nil
// for a model whose observation matrix changes on every update, see UpdateWith.
func NewStateSpaceModel(B, Q, Z, R mat.Matrix) (StateSpaceModel, error) {
	if B == nil || Q == nil || R == nil {
		return StateSpaceModel{}, fmt.Errorf("%w: B, Q and R must be specified", ErrDimensionMismatch)
	}
	if err := checkIsSquare(B, "B"); err != nil {
		return StateSpaceModel{}, err
	}
	if err := checkMatDims(B, Q, "B", "Q", rowsAndcols); err != nil {
		return StateSpaceModel{}, err
	}
	if err := checkIsSquare(R, "R"); err != nil {
		return StateSpaceModel{}, err
	}
	if Z != nil {
		if err := checkMatDims(Z, B, "Z", "B", cols2cols); err != nil {
			return StateSpaceModel{}, err
		}
		if err := checkMatDims(Z, R, "Z", "R", rows2rows); err != nil {
			return StateSpaceModel{}, err
		}
	}
	return StateSpaceModel{B: mat.DenseCopyOf(B), Q: mat.DenseCopyOf(Q), Z: denseCopyOrNil(Z), R: mat.DenseCopyOf(R)}, nil
}

// Dims returns the state size n and the observation size m.
func (m StateSpaceModel) Dims() (n, obs int) {
	n, _ = m.B.Dims()
	obs, _ = m.R.Dims()
	return n, obs
}

// Predict applies the model transition to (x, P).
func (m StateSpaceModel) Predict(x mat.Vector, P mat.Matrix) (*mat.VecDense, *mat.Dense, error) {
	return Predict(x, P, m.B, m.Q)
}

// Update applies the model observation matrix to fuse y into (x, P).
func (m StateSpaceModel) Update(y Observation, x mat.Vector, P mat.Matrix) (*mat.VecDense, *mat.Dense, *Innovation, error) {
	return UpdateDetail(y, x, P, m.Z, m.R)
}

// UpdateWith fuses y into (x, P) through the provided observation matrix Z and the model R.
func (m StateSpaceModel) UpdateWith(y Observation, x mat.Vector, P, Z mat.Matrix) (*mat.VecDense, *mat.Dense, *Innovation, error) {
	return UpdateDetail(y, x, P, Z, m.R)
}

func (m StateSpaceModel) String() string {
	z := "(time-varying)"
	if m.Z != nil {
		z = fmt.Sprintf("%v", mat.Formatted(m.Z, mat.Prefix("  ")))
	}
	return fmt.Sprintf("B=%v\nQ=%v\nZ=%s\nR=%v", mat.Formatted(m.B, mat.Prefix("  ")), mat.Formatted(m.Q, mat.Prefix("  ")), z, mat.Formatted(m.R, mat.Prefix("  ")))
}

func denseCopyOrNil(m mat.Matrix) mat.Matrix {
	if m == nil {
		return nil
	}
	return mat.DenseCopyOf(m)
}
