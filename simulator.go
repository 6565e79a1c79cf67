package lds

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Truth is one simulated tick: the true state and the observation taken of it.
type Truth struct {
	Step        int
	State       *mat.VecDense
	Observation Observation
}

// Error returns the estimate error (estimate - truth) along with the estimate covariance,
// so that IsWithinNσ tells whether the filter is consistent at this tick.
func (t Truth) Error(est Estimate) Estimate {
	r := est.State().Len()
	if tr := t.State.Len(); tr != r {
		panic(fmt.Errorf("ground truth state size different from estimated state size (k=%d)", t.Step))
	}
	var diff mat.VecDense
	diff.SubVec(est.State(), t.State)
	return NewEstimate(est.Step(), &diff, est.Covariance())
}

// Simulator generates ground truth and observations for the constant-acceleration model.
type Simulator struct {
	B, Z    mat.Matrix
	noise   Noise
	dropout float64
	rng     *rand.Rand
	x       *mat.VecDense
	step    int
}

// NewSimulator returns a simulator starting at the initial state of params. Each
// position sample is independently dropped (reported missing) with probability dropout.
func NewSimulator(params KinematicsParams, noise Noise, dropout float64, seed uint64) (*Simulator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(dropout) || dropout < 0 || dropout > 1 {
		return nil, invalidParam("dropout", "must be within [0, 1], got %g", dropout)
	}
	pos := func(v float64) float64 {
		if math.IsNaN(v) {
			return 0
		}
		return v
	}
	Z := mat.NewDense(2, kinematicDims, nil)
	Z.Set(0, PosX, 1)
	Z.Set(1, PosY, 1)
	return &Simulator{
		B:       KinematicTransition(1.0 / params.FPS),
		Z:       Z,
		noise:   noise,
		dropout: dropout,
		rng:     rand.New(rand.NewPCG(seed, ^seed)),
		x:       mat.NewVecDense(kinematicDims, []float64{pos(params.PosX0), params.VelX0, params.AccX0, pos(params.PosY0), params.VelY0, params.AccY0}),
	}, nil
}

// Next advances the true state by one tick and observes it.
func (s *Simulator) Next() Truth {
	x := mat.NewVecDense(kinematicDims, nil)
	x.MulVec(s.B, s.x)
	x.AddVec(x, s.noise.Process(s.step))
	s.x = x
	s.step++

	var y mat.VecDense
	y.MulVec(s.Z, x)
	y.AddVec(&y, s.noise.Measurement(s.step))
	obs := make(Observation, y.Len())
	for i := range obs {
		if s.dropout > 0 && s.rng.Float64() < s.dropout {
			obs[i] = Missing()
			continue
		}
		obs[i] = Present(y.AtVec(i))
	}
	return Truth{Step: s.step, State: mat.VecDenseCopyOf(x), Observation: obs}
}

// Run returns the next steps ticks.
func (s *Simulator) Run(steps int) []Truth {
	truths := make([]Truth, steps)
	for k := range truths {
		truths[k] = s.Next()
	}
	return truths
}
