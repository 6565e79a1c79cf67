package lds

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestImplementsFilter(t *testing.T) {
	implements := func(Filter) {}
	implements(new(Kinematics))
	implements(new(LinearRegression))
}

func TestEstimate(t *testing.T) {
	x := mat.NewVecDense(2, []float64{1, -2})
	P := Diagonal(4, 9)
	est := NewEstimate(5, x, P)
	x.SetVec(0, 100)
	P.SetSym(0, 0, 100)
	if est.State().AtVec(0) != 1 || est.Covariance().At(0, 0) != 4 {
		t.Fatal("estimate aliases its inputs")
	}
	if est.Step() != 5 || est.StdDev(1) != 3 {
		t.Fatalf("unexpected estimate %s", est)
	}
	if m := est.Mean(); m[0] != 1 || m[1] != -2 {
		t.Fatalf("mean %v", m)
	}
	if est.PredCovariance() != nil || est.Innovation() != nil {
		t.Fatal("a bare estimate has no prediction nor innovation")
	}
	if !est.IsWithinNσ(1) || est.IsWithinNσ(0.5) {
		t.Fatal("IsWithinNσ is wrong")
	}
	if !strings.Contains(est.String(), "k=5") {
		t.Fatalf("unexpected string %s", est)
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	kf, err := NewKinematics(testKinematicsParams(), WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := kf.Step(Missing(), Missing()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "kinematics filter created") || !strings.Contains(out, "no position observed") {
		t.Fatalf("unexpected log output:\n%s", out)
	}

	// A nil logger keeps the default.
	if _, err := NewLinearRegression(RegressionParams{LikelihoodPrecision: 1, PriorPrecision: 1}, WithLogger(nil)); err != nil {
		t.Fatal(err)
	}
}
