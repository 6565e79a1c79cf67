// Package lds implements streaming Bayesian state estimation for linear-Gaussian
// state-space models. A generic predict/update recursion is shared by two online
// filters: a 2-D constant-acceleration tracker fed with noisy positions, and an online
// Bayesian linear regression whose observation row changes on every update.
package lds

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Filter is implemented by the online filters of this package.
type Filter interface {
	Estimate() Estimate // Returns a snapshot of the current posterior
	Reset()             // Restores the initial mean and covariance
	String() string
}

// Estimate is a snapshot of a filter posterior after a tick. It never aliases the
// filter's internal state.
type Estimate struct {
	step       int
	state      *mat.VecDense
	covar      *mat.Dense
	predCovar  *mat.Dense
	innovation *Innovation
}

// NewEstimate returns an estimate holding copies of the provided mean and covariance.
func NewEstimate(step int, state mat.Vector, covar mat.Matrix) Estimate {
	x, P := copyState(state, covar)
	return Estimate{step: step, state: x, covar: P}
}

// Step returns the number of ticks processed by the filter when the estimate was taken.
func (e Estimate) Step() int {
	return e.step
}

// State returns \hat{x}_{k}^{+}.
func (e Estimate) State() *mat.VecDense {
	return e.state
}

// Covariance returns P_{k}^{+}.
func (e Estimate) Covariance() *mat.Dense {
	return e.covar
}

// PredCovariance returns P_{k}^{-}, or nil if the tick did not predict.
func (e Estimate) PredCovariance() *mat.Dense {
	return e.predCovar
}

// Innovation returns the innovation of the tick, or nil if no observation was fused.
func (e Estimate) Innovation() *Innovation {
	return e.innovation
}

// Mean returns the posterior mean as a slice.
func (e Estimate) Mean() []float64 {
	return mat.Col(nil, 0, e.state)
}

// StdDev returns the standard deviation of the i-th state component.
func (e Estimate) StdDev(i int) float64 {
	return math.Sqrt(e.covar.At(i, i))
}

// IsWithinNσ returns whether each state component lies within ±N standard deviations
// of zero. It is meant for error estimates, see Truth.Error.
func (e Estimate) IsWithinNσ(N float64) bool {
	for i := 0; i < e.state.Len(); i++ {
		nσ := N * math.Sqrt(e.covar.At(i, i))
		if e.state.AtVec(i) > nσ || e.state.AtVec(i) < -nσ {
			return false
		}
	}
	return true
}

// IsWithin2σ returns whether the estimation is within the 2σ bounds.
func (e Estimate) IsWithin2σ() bool {
	return e.IsWithinNσ(2)
}

func (e Estimate) String() string {
	state := mat.Formatted(e.state.T(), mat.Prefix("  "))
	covar := mat.Formatted(e.covar, mat.Prefix("  "))
	return fmt.Sprintf("{\nk=%d\ns=%v\nP=%v\n}", e.step, state, covar)
}

type estimateYAML struct {
	Step       int         `yaml:"step"`
	Mean       []float64   `yaml:"mean,flow"`
	Covariance [][]float64 `yaml:"covariance,flow"`
}

// MarshalYAML implements yaml.Marshaler.
func (e Estimate) MarshalYAML() (interface{}, error) {
	if e.state == nil {
		return estimateYAML{Step: e.step}, nil
	}
	r, _ := e.covar.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, e.covar)
	}
	return estimateYAML{Step: e.step, Mean: e.Mean(), Covariance: rows}, nil
}

// Option configures a filter.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used by a filter. Filters log nothing by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
