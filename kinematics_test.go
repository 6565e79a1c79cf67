package lds

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testKinematicsParams() KinematicsParams {
	return KinematicsParams{
		VelX0:      1,
		SigmaA:     0.1,
		SigmaX:     0.5,
		SigmaY:     0.5,
		SqrtDiagV0: 1,
		FPS:        10,
	}
}

func TestKinematicsPurePropagation(t *testing.T) {
	kf, err := NewKinematics(testKinematicsParams())
	if err != nil {
		t.Fatal(err)
	}
	est, err := kf.Step(Missing(), Missing())
	if err != nil {
		t.Fatal(err)
	}
	if got := est.State().AtVec(PosX); got != 0.1 {
		t.Fatalf("pos_x=%v, expected exactly 0.1", got)
	}
	if got := est.State().AtVec(VelX); got != 1 {
		t.Fatalf("vel_x=%v, expected exactly 1", got)
	}
	if est.Innovation() != nil {
		t.Fatal("a fully missing step must not fuse anything")
	}
	if est.Step() != 1 {
		t.Fatalf("step=%d", est.Step())
	}
	// The posterior of a pure propagation is the prediction.
	if !mat.Equal(est.Covariance(), est.PredCovariance()) {
		t.Fatal("posterior differs from the prediction")
	}

	// NaN observations are missing too.
	est2, err := kf.Step(Present(math.NaN()), SampleOf(math.NaN()))
	if err != nil {
		t.Fatal(err)
	}
	if got := est2.State().AtVec(PosX); math.Abs(got-0.2) > 1e-15 {
		t.Fatalf("pos_x=%v, expected 0.2", got)
	}
}

func TestKinematicsPartialObservation(t *testing.T) {
	kf, err := NewKinematics(testKinematicsParams())
	require.NoError(t, err)
	est, err := kf.Step(Present(0.3), Missing())
	require.NoError(t, err)

	require.NotNil(t, est.Innovation())
	assert.Equal(t, []int{0}, est.Innovation().Observed)
	pred := est.PredCovariance()
	// The x axis shrinks, the y axis only propagates.
	assert.Less(t, est.Covariance().At(PosX, PosX), pred.At(PosX, PosX))
	assert.Equal(t, pred.At(PosY, PosY), est.Covariance().At(PosY, PosY))
	assert.Greater(t, est.State().AtVec(PosX), 0.1)
	assert.Equal(t, 0.0, est.State().AtVec(PosY))
}

func TestKinematicsTracksConstantVelocity(t *testing.T) {
	params := testKinematicsParams()
	params.VelX0 = 0
	kf, err := NewKinematics(params)
	require.NoError(t, err)

	const vx, vy = 1.0, -0.5
	dt := 1 / params.FPS
	var est Estimate
	for k := 1; k <= 300; k++ {
		tk := float64(k) * dt
		x, y := Present(2+vx*tk), Present(-1+vy*tk)
		if k%5 == 0 {
			y = Missing()
		}
		est, err = kf.Step(x, y)
		require.NoError(t, err)
	}
	tEnd := 300 * dt
	s := kf.State()
	assert.InDelta(t, 2+vx*tEnd, s.Position.X.Mean, 0.05)
	assert.InDelta(t, -1+vy*tEnd, s.Position.Y.Mean, 0.05)
	assert.InDelta(t, vx, s.Velocity.X.Mean, 0.1)
	assert.InDelta(t, vy, s.Velocity.Y.Mean, 0.1)
	assert.Equal(t, est.State().AtVec(VelX), s.Velocity.X.Mean)
	assert.Equal(t, 300, kf.Estimate().Step())
}

func TestKinematicsInitialState(t *testing.T) {
	params := testKinematicsParams()
	params.PosX0 = math.NaN()
	params.PosY0 = 4
	params.AccY0 = -9.81
	params.SqrtDiagV0 = 3
	kf, err := NewKinematics(params)
	require.NoError(t, err)
	s := kf.State()
	assert.Equal(t, 0.0, s.Position.X.Mean)
	assert.Equal(t, 4.0, s.Position.Y.Mean)
	assert.Equal(t, 1.0, s.Velocity.X.Mean)
	assert.Equal(t, -9.81, s.Acceleration.Y.Mean)
	assert.Equal(t, 9.0, s.Acceleration.X.Variance)
	assert.Equal(t, 3.0, s.Velocity.Y.StdDev())
	assert.Equal(t, 0.0, kf.Params().PosX0)
	assert.Equal(t, PiecewiseAcceleration, kf.Params().ProcessModel)
	assert.Equal(t, 100*time.Millisecond, kf.Interval())
}

func TestKinematicsInvalidParams(t *testing.T) {
	cases := map[string]func(p *KinematicsParams){
		"zero fps":          func(p *KinematicsParams) { p.FPS = 0 },
		"negative fps":      func(p *KinematicsParams) { p.FPS = -30 },
		"nan sigma_a":       func(p *KinematicsParams) { p.SigmaA = math.NaN() },
		"zero sigma_x":      func(p *KinematicsParams) { p.SigmaX = 0 },
		"inf sigma_y":       func(p *KinematicsParams) { p.SigmaY = math.Inf(1) },
		"negative v0":       func(p *KinematicsParams) { p.SqrtDiagV0 = -1 },
		"nan v0":            func(p *KinematicsParams) { p.SqrtDiagV0 = math.NaN() },
		"nan velocity":      func(p *KinematicsParams) { p.VelY0 = math.NaN() },
		"inf acceleration":  func(p *KinematicsParams) { p.AccX0 = math.Inf(-1) },
		"inf position":      func(p *KinematicsParams) { p.PosY0 = math.Inf(1) },
		"unknown noise law": func(p *KinematicsParams) { p.ProcessModel = "brownian" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := testKinematicsParams()
			mutate(&p)
			_, err := NewKinematics(p)
			assert.ErrorIs(t, err, ErrInvalidParameter)
		})
	}
	p := testKinematicsParams()
	p.SqrtDiagV0 = 0
	_, err := NewKinematics(p)
	assert.NoError(t, err, "a zero initial spread is a known initial state")
}

func TestKinematicsInvalidParamsNamesFirst(t *testing.T) {
	p := testKinematicsParams()
	p.AccY0 = math.NaN()
	p.VelY0 = math.Inf(1)
	p.AccX0 = math.NaN()
	p.PosY0 = math.Inf(-1)
	p.PosX0 = math.Inf(1)
	for i := 0; i < 20; i++ {
		err := p.Validate()
		require.ErrorIs(t, err, ErrInvalidParameter)
		assert.Contains(t, err.Error(), "vel_y0")
	}
	p.VelY0, p.AccX0, p.AccY0 = 0, 0, 0
	for i := 0; i < 20; i++ {
		err := p.Validate()
		require.ErrorIs(t, err, ErrInvalidParameter)
		assert.Contains(t, err.Error(), "pos_x0")
	}
}

func TestKinematicsForecast(t *testing.T) {
	kf, err := NewKinematics(testKinematicsParams())
	require.NoError(t, err)
	_, err = kf.Step(Present(0.12), Present(-0.05))
	require.NoError(t, err)
	before := kf.Estimate()

	fc, err := kf.Forecast(3)
	require.NoError(t, err)
	require.Len(t, fc, 3)
	for i, f := range fc {
		assert.InDelta(t, float64(i+1)*0.1, f.Timestep.Seconds(), 1e-9)
	}
	assert.Greater(t, fc[2].KinematicState.Position.X.Variance, fc[0].KinematicState.Position.X.Variance)

	after := kf.Estimate()
	assert.True(t, mat.Equal(before.State(), after.State()), "forecast modified the filter")
	assert.True(t, mat.Equal(before.Covariance(), after.Covariance()), "forecast modified the filter")

	// The first forecast is the pure propagation of the next step.
	est, err := kf.Step(Missing(), Missing())
	require.NoError(t, err)
	assert.Equal(t, est.State().AtVec(PosX), fc[0].KinematicState.Position.X.Mean)
	assert.Equal(t, est.Covariance().At(VelY, VelY), fc[0].KinematicState.Velocity.Y.Variance)

	none, err := kf.Forecast(0)
	require.NoError(t, err)
	assert.Empty(t, none)
	_, err = kf.Forecast(-1)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestKinematicsReset(t *testing.T) {
	kf, err := NewKinematics(testKinematicsParams())
	require.NoError(t, err)
	initial := kf.Estimate()
	for i := 0; i < 10; i++ {
		_, err = kf.Step(Present(float64(i)), Present(1))
		require.NoError(t, err)
	}
	kf.Reset()
	assert.True(t, mat.Equal(initial.State(), kf.Estimate().State()))
	assert.True(t, mat.Equal(initial.Covariance(), kf.Estimate().Covariance()))
	assert.Equal(t, 0, kf.Estimate().Step())
}

func TestKinematicsEstimateDoesNotAlias(t *testing.T) {
	kf, err := NewKinematics(testKinematicsParams())
	require.NoError(t, err)
	est, err := kf.Step(Present(1), Present(1))
	require.NoError(t, err)
	est.State().SetVec(PosX, 1000)
	est.Covariance().Set(0, 0, -1)
	assert.NotEqual(t, 1000.0, kf.State().Position.X.Mean)
	assert.NotEqual(t, -1.0, kf.State().Position.X.Variance)
}

func TestKinematicTransition(t *testing.T) {
	dt := 0.5
	B := KinematicTransition(dt)
	x := mat.NewVecDense(6, []float64{1, 2, 4, -1, -2, -4})
	var xn mat.VecDense
	xn.MulVec(B, x)
	exp := []float64{1 + 2*dt + 2*dt*dt, 2 + 4*dt, 4, -1 - 2*dt - 2*dt*dt, -2 - 4*dt, -4}
	for i, v := range exp {
		if math.Abs(xn.AtVec(i)-v) > 1e-12 {
			t.Fatalf("x[%d]=%f, expected %f", i, xn.AtVec(i), v)
		}
	}
	Q := PiecewiseAccelerationNoise(dt, 2)
	if Q.At(PosX, PosY) != 0 || Q.At(AccX, AccY) != 0 {
		t.Fatal("axes must be decoupled")
	}
	if Q.At(AccY, AccY) != 2 || Q.At(PosX, PosX) != 2*math.Pow(dt, 4)/4 {
		t.Fatalf("unexpected noise %v", mat.Formatted(Q))
	}
}

func TestKinematicsContinuousJerk(t *testing.T) {
	params := testKinematicsParams()
	params.ProcessModel = ContinuousJerk
	params.SigmaA = 2
	kf, err := NewKinematics(params)
	require.NoError(t, err)

	dt, q := 0.1, 2.0
	exp := [3][3]float64{
		{math.Pow(dt, 5) / 20, math.Pow(dt, 4) / 8, math.Pow(dt, 3) / 6},
		{math.Pow(dt, 4) / 8, math.Pow(dt, 3) / 3, dt * dt / 2},
		{math.Pow(dt, 3) / 6, dt * dt / 2, dt},
	}
	Q := kf.Model().Q
	for _, o := range []int{PosX, PosY} {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				assert.InDelta(t, q*exp[i][j], Q.At(o+i, o+j), 1e-9, "Q(%d,%d)", o+i, o+j)
			}
		}
	}
	assert.Equal(t, 0.0, Q.At(PosX, PosY))

	_, err = kf.Step(Present(0.1), Present(0))
	assert.NoError(t, err)
}
