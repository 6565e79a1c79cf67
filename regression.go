package lds

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"
)

// RegressionParams are the construction parameters of a LinearRegression filter.
type RegressionParams struct {
	LikelihoodPrecision float64   `yaml:"likelihood_precision_coef"` // β, reciprocal observation noise variance
	PriorPrecision      float64   `yaml:"prior_precision_coef"`      // α, reciprocal prior coefficient variance
	Mean                []float64 `yaml:"mn,flow,omitempty"`         // initial coefficients, [0, 0] when unset
}

// Validate checks the parameters. The returned error wraps ErrInvalidParameter.
func (p RegressionParams) Validate() error {
	if err := positive("likelihood_precision_coef", p.LikelihoodPrecision); err != nil {
		return err
	}
	if err := positive("prior_precision_coef", p.PriorPrecision); err != nil {
		return err
	}
	if p.Mean != nil && len(p.Mean) == 0 {
		return invalidParam("mn", "must hold at least the intercept")
	}
	for i, v := range p.Mean {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalidParam("mn", "entry %d must be finite, got %g", i, v)
		}
	}
	return nil
}

// LinearRegression is online Bayesian linear regression expressed as a Kalman filter
// with identity dynamics, no process noise, and an observation row [1, x...] supplied
// on every update.
type LinearRegression struct {
	params RegressionParams
	model  StateSpaceModel
	x0     *mat.VecDense
	P0     *mat.Dense
	x      *mat.VecDense
	P      *mat.Dense
	step   int
	pdf    *Grid
	log    *slog.Logger
}

// NewLinearRegression returns a new regression filter.
func NewLinearRegression(params RegressionParams, opts ...Option) (*LinearRegression, error) {
	if params.Mean == nil {
		params.Mean = []float64{0, 0}
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	params.Mean = append([]float64(nil), params.Mean...)
	o := newOptions(opts)

	n := len(params.Mean)
	model, err := NewStateSpaceModel(Identity(n), mat.NewSymDense(n, nil), nil, Diagonal(1/params.LikelihoodPrecision))
	if err != nil {
		return nil, err
	}
	lr := &LinearRegression{
		params: params,
		model:  model,
		x0:     mat.NewVecDense(n, append([]float64(nil), params.Mean...)),
		P0:     mat.DenseCopyOf(ScaledIdentity(n, 1/params.PriorPrecision)),
		log:    o.logger,
	}
	lr.Reset()
	return lr, nil
}

// Predict applies the identity dynamics. The mean and covariance are unchanged.
func (lr *LinearRegression) Predict() (Estimate, error) {
	x, P, err := lr.model.Predict(lr.x, lr.P)
	if err != nil {
		return Estimate{}, err
	}
	lr.x, lr.P = x, P
	return lr.Estimate(), nil
}

// Update fuses the response y observed at predictor x into the posterior of a
// two-coefficient (intercept, slope) model.
func (lr *LinearRegression) Update(x, y float64) (Estimate, error) {
	return lr.UpdateDesign([]float64{x}, SampleOf(y))
}

// UpdateDesign fuses the response y with the observation row [1, predictors...].
// The number of predictors must be one less than the number of coefficients.
// A missing y leaves the posterior unchanged.
func (lr *LinearRegression) UpdateDesign(predictors []float64, y Sample) (Estimate, error) {
	n := lr.x.Len()
	if len(predictors) != n-1 {
		return Estimate{}, fmt.Errorf("%w: %d predictors for %d coefficients", ErrDimensionMismatch, len(predictors), n)
	}
	Z := mat.NewDense(1, n, nil)
	Z.Set(0, 0, 1)
	for i, v := range predictors {
		Z.Set(0, i+1, v)
	}
	x, P, innov, err := lr.model.UpdateWith(Observation{y}, lr.x, lr.P, Z)
	if err != nil {
		lr.log.Warn("regression update failed", slog.Int("step", lr.step+1), slog.Any("err", err))
		return Estimate{}, err
	}
	lr.x, lr.P = x, P
	lr.step++
	est := lr.Estimate()
	est.innovation = innov
	return est, nil
}

// Estimate returns a snapshot of the current posterior.
func (lr *LinearRegression) Estimate() Estimate {
	return NewEstimate(lr.step, lr.x, lr.P)
}

// Mean returns a copy of the posterior coefficient mean.
func (lr *LinearRegression) Mean() []float64 {
	return mat.Col(nil, 0, lr.x)
}

// Covariance returns a copy of the posterior coefficient covariance.
func (lr *LinearRegression) Covariance() *mat.Dense {
	return mat.DenseCopyOf(lr.P)
}

// Params returns the parameters the filter was built with.
func (lr *LinearRegression) Params() RegressionParams {
	p := lr.params
	p.Mean = append([]float64(nil), p.Mean...)
	return p
}

// PDF evaluates the posterior density of a two-coefficient model on a grid of
// xsteps×ysteps points starting at (x1, y1) with steps (x2-x1)/xsteps and
// (y2-y1)/ysteps. The grid is also retained, see LastPDF.
func (lr *LinearRegression) PDF(x1, x2 float64, xsteps int, y1, y2 float64, ysteps int) (*Grid, error) {
	if n := lr.x.Len(); n != 2 {
		return nil, fmt.Errorf("%w: density grid needs 2 coefficients, model has %d", ErrDimensionMismatch, n)
	}
	g, err := NormalGrid(lr.Mean(), lr.P, x1, x2, xsteps, y1, y2, ysteps)
	if err != nil {
		return nil, err
	}
	lr.pdf = g
	return g, nil
}

// LastPDF returns the grid computed by the last successful PDF call, or nil.
func (lr *LinearRegression) LastPDF() *Grid {
	return lr.pdf
}

// Reset restores the prior.
func (lr *LinearRegression) Reset() {
	lr.x, lr.P = copyState(lr.x0, lr.P0)
	lr.step = 0
	lr.pdf = nil
}

func (lr *LinearRegression) String() string {
	return fmt.Sprintf("LinearRegression [k=%d, α=%g, β=%g]\nm=%v\nS=%v", lr.step, lr.params.PriorPrecision, lr.params.LikelihoodPrecision,
		mat.Formatted(lr.x.T(), mat.Prefix("  ")), mat.Formatted(lr.P, mat.Prefix("  ")))
}
