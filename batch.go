package lds

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// BatchRegression solves Bayesian linear regression in one shot from the accumulated
// normal equations. It yields the same posterior as LinearRegression fed with the same
// samples, and is used to cross-check it.
type BatchRegression struct {
	Λ     *mat.SymDense // α*I + β*Σ z*z'
	N     *mat.VecDense // α*m0 + β*Σ z*y
	β     float64
	count int
}

// NewBatchRegression returns an empty batch problem for the provided prior.
func NewBatchRegression(params RegressionParams) (*BatchRegression, error) {
	if params.Mean == nil {
		params.Mean = []float64{0, 0}
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	n := len(params.Mean)
	N := mat.NewVecDense(n, append([]float64(nil), params.Mean...))
	N.ScaleVec(params.PriorPrecision, N)
	return &BatchRegression{ScaledIdentity(n, params.PriorPrecision), N, params.LikelihoodPrecision, 0}, nil
}

// Add accumulates the response y observed with the row [1, predictors...].
func (b *BatchRegression) Add(predictors []float64, y float64) error {
	n := b.N.Len()
	if len(predictors) != n-1 {
		return fmt.Errorf("%w: %d predictors for %d coefficients", ErrDimensionMismatch, len(predictors), n)
	}
	z := mat.NewVecDense(n, append([]float64{1}, predictors...))
	b.Λ.SymRankOne(b.Λ, b.β, z)
	b.N.AddScaledVec(b.N, b.β*y, z)
	b.count++
	return nil
}

// Len returns the number of accumulated samples.
func (b *BatchRegression) Len() int {
	return b.count
}

// Solve returns the posterior mean and covariance, or an error if Λ is not invertible.
func (b *BatchRegression) Solve() (mean *mat.VecDense, cov *mat.Dense, err error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(b.Λ); !ok {
		return nil, nil, fmt.Errorf("%w: information matrix is not positive definite", ErrSingularInnovationCovariance)
	}
	var inv mat.SymDense
	if err = chol.InverseTo(&inv); err != nil {
		return nil, nil, err
	}
	mean = mat.NewVecDense(b.N.Len(), nil)
	mean.MulVec(&inv, b.N)
	return mean, mat.DenseCopyOf(&inv), nil
}
