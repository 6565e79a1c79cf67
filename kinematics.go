package lds

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// ProcessModel selects how the kinematic process noise covariance is built.
type ProcessModel string

const (
	// PiecewiseAcceleration is the discretised white-noise-acceleration covariance,
	// scaled by SigmaA.
	PiecewiseAcceleration ProcessModel = "piecewise"
	// ContinuousJerk discretises a continuous white-jerk model of intensity SigmaA
	// with the Van Loan method.
	ContinuousJerk ProcessModel = "continuous-jerk"
)

// Indices of the kinematic state vector.
const (
	PosX = iota
	VelX
	AccX
	PosY
	VelY
	AccY
	kinematicDims
)

// KinematicsParams are the construction parameters of a Kinematics filter.
type KinematicsParams struct {
	PosX0        float64      `yaml:"pos_x0"`
	PosY0        float64      `yaml:"pos_y0"`
	VelX0        float64      `yaml:"vel_x0"`
	VelY0        float64      `yaml:"vel_y0"`
	AccX0        float64      `yaml:"acc_x0"`
	AccY0        float64      `yaml:"acc_y0"`
	SigmaA       float64      `yaml:"sigma_a"`
	SigmaX       float64      `yaml:"sigma_x"`
	SigmaY       float64      `yaml:"sigma_y"`
	SqrtDiagV0   float64      `yaml:"sqrt_diag_v0"`
	FPS          float64      `yaml:"fps"`
	ProcessModel ProcessModel `yaml:"process_model,omitempty"`
}

// Validate checks the parameters. The returned error wraps ErrInvalidParameter.
func (p KinematicsParams) Validate() error {
	if err := positive("fps", p.FPS); err != nil {
		return err
	}
	if err := positive("sigma_a", p.SigmaA); err != nil {
		return err
	}
	if err := positive("sigma_x", p.SigmaX); err != nil {
		return err
	}
	if err := positive("sigma_y", p.SigmaY); err != nil {
		return err
	}
	if math.IsNaN(p.SqrtDiagV0) || math.IsInf(p.SqrtDiagV0, 0) || p.SqrtDiagV0 < 0 {
		return invalidParam("sqrt_diag_v0", "must be finite and non-negative, got %g", p.SqrtDiagV0)
	}
	for _, f := range []namedValue{{"vel_x0", p.VelX0}, {"vel_y0", p.VelY0}, {"acc_x0", p.AccX0}, {"acc_y0", p.AccY0}} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return invalidParam(f.name, "must be finite, got %g", f.v)
		}
	}
	// A NaN position means zero.
	for _, f := range []namedValue{{"pos_x0", p.PosX0}, {"pos_y0", p.PosY0}} {
		if math.IsInf(f.v, 0) {
			return invalidParam(f.name, "must not be infinite")
		}
	}
	switch p.ProcessModel {
	case "", PiecewiseAcceleration, ContinuousJerk:
	default:
		return invalidParam("process_model", "unknown model %q", p.ProcessModel)
	}
	return nil
}

type namedValue struct {
	name string
	v    float64
}

func positive(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return invalidParam(name, "must be finite and positive, got %g", v)
	}
	return nil
}

// Kinematics tracks a 2-D position with velocity and acceleration as two decoupled
// constant-acceleration axes, observing only the position on every tick.
// The state is ordered [pos_x, vel_x, acc_x, pos_y, vel_y, acc_y].
type Kinematics struct {
	params KinematicsParams
	model  StateSpaceModel
	dt     float64
	x0     *mat.VecDense
	P0     *mat.Dense
	x      *mat.VecDense
	P      *mat.Dense
	step   int
	log    *slog.Logger
}

// NewKinematics returns a new kinematic tracking filter. A NaN initial position is
// treated as zero.
func NewKinematics(params KinematicsParams, opts ...Option) (*Kinematics, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(params.PosX0) {
		params.PosX0 = 0
	}
	if math.IsNaN(params.PosY0) {
		params.PosY0 = 0
	}
	if params.ProcessModel == "" {
		params.ProcessModel = PiecewiseAcceleration
	}
	o := newOptions(opts)

	dt := 1.0 / params.FPS
	B := KinematicTransition(dt)
	Q, err := kinematicProcessNoise(dt, params.SigmaA, params.ProcessModel)
	if err != nil {
		return nil, err
	}
	Z := mat.NewDense(2, kinematicDims, nil)
	Z.Set(0, PosX, 1)
	Z.Set(1, PosY, 1)
	R := Diagonal(params.SigmaX*params.SigmaX, params.SigmaY*params.SigmaY)

	model, err := NewStateSpaceModel(B, Q, Z, R)
	if err != nil {
		return nil, err
	}

	x0 := mat.NewVecDense(kinematicDims, []float64{params.PosX0, params.VelX0, params.AccX0, params.PosY0, params.VelY0, params.AccY0})
	v0 := params.SqrtDiagV0 * params.SqrtDiagV0
	P0 := mat.DenseCopyOf(ScaledIdentity(kinematicDims, v0))

	k := &Kinematics{params: params, model: model, dt: dt, x0: x0, P0: P0, log: o.logger}
	k.Reset()
	k.log.Debug("kinematics filter created", slog.Float64("dt", dt), slog.String("process_model", string(params.ProcessModel)))
	return k, nil
}

// KinematicTransition returns the constant-acceleration transition for both axes.
func KinematicTransition(dt float64) *mat.Dense {
	B := mat.NewDense(kinematicDims, kinematicDims, nil)
	for _, o := range []int{PosX, PosY} {
		B.Set(o, o, 1)
		B.Set(o, o+1, dt)
		B.Set(o, o+2, 0.5*dt*dt)
		B.Set(o+1, o+1, 1)
		B.Set(o+1, o+2, dt)
		B.Set(o+2, o+2, 1)
	}
	return B
}

// PiecewiseAccelerationNoise returns the discretised white-noise-acceleration
// covariance for both axes, scaled by sigmaA.
func PiecewiseAccelerationNoise(dt, sigmaA float64) *mat.SymDense {
	block := []float64{
		math.Pow(dt, 4) / 4, math.Pow(dt, 3) / 2, dt * dt / 2,
		math.Pow(dt, 3) / 2, dt * dt, dt,
		dt * dt / 2, dt, 1,
	}
	Q := mat.NewSymDense(kinematicDims, nil)
	for _, o := range []int{PosX, PosY} {
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				Q.SetSym(o+i, o+j, sigmaA*block[i*3+j])
			}
		}
	}
	return Q
}

func kinematicProcessNoise(dt, sigmaA float64, pm ProcessModel) (*mat.SymDense, error) {
	if pm != ContinuousJerk {
		return PiecewiseAccelerationNoise(dt, sigmaA), nil
	}
	A := mat.NewDense(3, 3, []float64{0, 1, 0, 0, 0, 1, 0, 0, 0})
	Γ := mat.NewDense(3, 1, []float64{0, 0, 1})
	W := mat.NewDense(1, 1, []float64{sigmaA})
	_, Qaxis, err := VanLoan(A, Γ, W, dt)
	if err != nil {
		return nil, err
	}
	Q := mat.NewSymDense(kinematicDims, nil)
	for _, o := range []int{PosX, PosY} {
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				Q.SetSym(o+i, o+j, Qaxis.At(i, j))
			}
		}
	}
	return Q, nil
}

// Step performs one predict then one update with the position observation (x, y) and
// persists the result. A missing sample excludes that axis from the update; when both
// are missing the step is a pure prediction. On error the filter state is unchanged.
func (k *Kinematics) Step(x, y Sample) (Estimate, error) {
	xPred, PPred, err := k.model.Predict(k.x, k.P)
	if err != nil {
		return Estimate{}, err
	}
	xNew, PNew, innov, err := k.model.Update(Observation{x, y}, xPred, PPred)
	if err != nil {
		k.log.Warn("kinematics update failed", slog.Int("step", k.step+1), slog.Any("err", err))
		return Estimate{}, err
	}
	if innov == nil {
		k.log.Debug("no position observed, propagating", slog.Int("step", k.step+1))
	}
	k.x, k.P = xNew, PNew
	k.step++
	x1, P1 := copyState(xNew, PNew)
	return Estimate{step: k.step, state: x1, covar: P1, predCovar: PPred, innovation: innov}, nil
}

// Estimate returns a snapshot of the current posterior.
func (k *Kinematics) Estimate() Estimate {
	return NewEstimate(k.step, k.x, k.P)
}

// State returns the current posterior split into kinematic components.
func (k *Kinematics) State() KinematicState {
	return NewKinematicState(k.x, k.P)
}

// Forecast predicts the state steps ticks ahead without fusing observations. The filter
// is not modified.
func (k *Kinematics) Forecast(steps int) ([]ForecastResult, error) {
	if steps < 0 {
		return nil, invalidParam("steps", "must be non-negative, got %d", steps)
	}
	results := make([]ForecastResult, 0, steps)
	var x mat.Vector = k.x
	var P mat.Matrix = k.P
	for i := 1; i <= steps; i++ {
		xPred, PPred, err := k.model.Predict(x, P)
		if err != nil {
			return nil, err
		}
		results = append(results, ForecastResult{
			Timestep:       time.Duration(float64(i) * k.dt * float64(time.Second)),
			KinematicState: NewKinematicState(xPred, PPred),
		})
		x, P = xPred, PPred
	}
	return results, nil
}

// Reset restores the initial mean and covariance.
func (k *Kinematics) Reset() {
	k.x, k.P = copyState(k.x0, k.P0)
	k.step = 0
}

// Params returns the parameters the filter was built with, NaN positions replaced by zero.
func (k *Kinematics) Params() KinematicsParams {
	return k.params
}

// Model returns the state-space model of the filter.
func (k *Kinematics) Model() StateSpaceModel {
	return k.model
}

// Interval returns the sampling interval 1/fps.
func (k *Kinematics) Interval() time.Duration {
	return time.Duration(k.dt * float64(time.Second))
}

func (k *Kinematics) String() string {
	return fmt.Sprintf("Kinematics [k=%d, dt=%g]\n%s", k.step, k.dt, k.model)
}

// StateComponent is the marginal of one state entry.
type StateComponent struct {
	Mean     float64 `yaml:"mean"`
	Variance float64 `yaml:"variance"`
}

// StdDev returns the square root of the variance.
func (c StateComponent) StdDev() float64 {
	return math.Sqrt(c.Variance)
}

// KinematicComponent groups the two axes of a kinematic quantity.
type KinematicComponent struct {
	X StateComponent `yaml:"x"`
	Y StateComponent `yaml:"y"`
}

// KinematicState is a kinematic posterior split into position, velocity and acceleration.
type KinematicState struct {
	Position     KinematicComponent `yaml:"position"`
	Velocity     KinematicComponent `yaml:"velocity"`
	Acceleration KinematicComponent `yaml:"acceleration"`
}

// NewKinematicState reads the components of a 6-dimensional kinematic state.
func NewKinematicState(x mat.Vector, P mat.Matrix) KinematicState {
	c := func(i int) StateComponent {
		return StateComponent{Mean: x.AtVec(i), Variance: P.At(i, i)}
	}
	return KinematicState{
		Position:     KinematicComponent{X: c(PosX), Y: c(PosY)},
		Velocity:     KinematicComponent{X: c(VelX), Y: c(VelY)},
		Acceleration: KinematicComponent{X: c(AccX), Y: c(AccY)},
	}
}

// ForecastResult is the predicted state at Timestep after the current tick.
type ForecastResult struct {
	Timestep       time.Duration  `yaml:"timestep"`
	KinematicState KinematicState `yaml:"kinematic_state"`
}
