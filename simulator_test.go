package lds

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestSimulatorNoiseless(t *testing.T) {
	params := testKinematicsParams()
	params.PosY0 = 2
	params.AccY0 = -1
	sim, err := NewSimulator(params, NewNoiseless(6, 2), 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	truths := sim.Run(20)
	if len(truths) != 20 {
		t.Fatalf("got %d ticks", len(truths))
	}
	for _, tr := range truths {
		tk := float64(tr.Step) / params.FPS
		expX, expY := tk, 2-0.5*tk*tk
		if math.Abs(tr.State.AtVec(PosX)-expX) > 1e-12 || math.Abs(tr.State.AtVec(PosY)-expY) > 1e-12 {
			t.Fatalf("k=%d: truth (%f, %f), expected (%f, %f)", tr.Step, tr.State.AtVec(PosX), tr.State.AtVec(PosY), expX, expY)
		}
		if v, ok := tr.Observation[0].Value(); !ok || v != tr.State.AtVec(PosX) {
			t.Fatalf("k=%d: observation %v does not match the truth", tr.Step, tr.Observation[0])
		}
	}
	if truths[0].Step != 1 || truths[19].Step != 20 {
		t.Fatal("steps must start at 1")
	}
}

func TestSimulatorDropout(t *testing.T) {
	params := testKinematicsParams()
	sim, err := NewSimulator(params, NewNoiseless(6, 2), 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, tr := range sim.Run(10) {
		if !tr.Observation.AllMissing() {
			t.Fatalf("k=%d: expected every sample to be dropped", tr.Step)
		}
	}

	sim, _ = NewSimulator(params, NewNoiseless(6, 2), 0.5, 3)
	missing := 0
	for _, tr := range sim.Run(1000) {
		missing += 2 - len(tr.Observation.Observed())
	}
	if missing < 800 || missing > 1200 {
		t.Fatalf("%d missing samples out of 2000", missing)
	}

	for _, d := range []float64{-0.1, 1.1, math.NaN()} {
		if _, err := NewSimulator(params, NewNoiseless(6, 2), d, 1); !errors.Is(err, ErrInvalidParameter) {
			t.Fatalf("dropout %v: %v", d, err)
		}
	}
}

func TestTruthError(t *testing.T) {
	truth := Truth{Step: 1, State: mat.NewVecDense(2, []float64{1, 1})}
	est := NewEstimate(1, mat.NewVecDense(2, []float64{4, 4}), ScaledIdentity(2, 1))
	e := truth.Error(est)
	if e.State().AtVec(0) != 3 || e.State().AtVec(1) != 3 {
		t.Fatalf("unexpected error %v", mat.Formatted(e.State().T()))
	}
	if e.IsWithin2σ() {
		t.Fatal("a 3σ error is not within 2σ")
	}
	if !e.IsWithinNσ(3) {
		t.Fatal("a 3σ error is within 3σ")
	}
	assertPanic(t, func() {
		truth.Error(NewEstimate(1, mat.NewVecDense(3, nil), Identity(3)))
	})
}

func TestSimulatedTrackIsConsistent(t *testing.T) {
	params := testKinematicsParams()
	params.SigmaA = 0.5
	noise, err := NewKinematicNoise(params, 11)
	if err != nil {
		t.Fatal(err)
	}
	sim, err := NewSimulator(params, noise, 0.1, 11)
	if err != nil {
		t.Fatal(err)
	}
	kf, err := NewKinematics(params)
	if err != nil {
		t.Fatal(err)
	}
	within := 0
	const steps = 500
	for _, tr := range sim.Run(steps) {
		est, err := kf.Step(tr.Observation[0], tr.Observation[1])
		if err != nil {
			t.Fatal(err)
		}
		if tr.Error(est).IsWithinNσ(3) {
			within++
		}
	}
	// Six components inside 3σ each: about 98% of the ticks.
	if within < steps*9/10 {
		t.Fatalf("only %d of %d ticks within 3σ", within, steps)
	}
}
