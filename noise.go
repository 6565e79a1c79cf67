package lds

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Noise generates the process and measurement noise of a simulated system.
type Noise interface {
	Process(k int) *mat.VecDense     // Returns the process noise w at step k
	Measurement(k int) *mat.VecDense // Returns the measurement noise v at step k
	String() string                  // Stringer interface implementation
}

// Noiseless is noiseless and implements the Noise interface.
type Noiseless struct {
	processSize, measurementSize int
}

// NewNoiseless returns zero noise of the provided sizes.
func NewNoiseless(processSize, measurementSize int) Noiseless {
	return Noiseless{processSize, measurementSize}
}

// Process returns a vector of the correct size.
func (n Noiseless) Process(k int) *mat.VecDense {
	return mat.NewVecDense(n.processSize, nil)
}

// Measurement returns a vector of the correct size.
func (n Noiseless) Measurement(k int) *mat.VecDense {
	return mat.NewVecDense(n.measurementSize, nil)
}

// String implements the Stringer interface.
func (n Noiseless) String() string {
	return fmt.Sprintf("Noiseless{%d, %d}", n.processSize, n.measurementSize)
}

// AWGN draws additive white Gaussian noise of a fixed covariance.
type AWGN struct {
	cov  *mat.SymDense
	dist *distmv.Normal
}

// NewAWGN returns a zero-mean Gaussian source of covariance cov, seeded with seed.
// The covariance must be positive definite.
func NewAWGN(cov mat.Symmetric, seed uint64) (*AWGN, error) {
	size := cov.SymmetricDim()
	c := mat.NewSymDense(size, nil)
	c.CopySym(cov)
	dist, ok := distmv.NewNormal(make([]float64, size), c, rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	if !ok {
		return nil, invalidParam("noise covariance", "must be positive definite")
	}
	return &AWGN{c, dist}, nil
}

// Sample draws one noise vector.
func (n *AWGN) Sample() *mat.VecDense {
	r := n.dist.Rand(nil)
	return mat.NewVecDense(len(r), r)
}

// Covariance returns the noise covariance.
func (n *AWGN) Covariance() mat.Symmetric {
	return n.cov
}

// String implements the Stringer interface.
func (n *AWGN) String() string {
	return fmt.Sprintf("AWGN{\nC=%v}\n", mat.Formatted(n.cov, mat.Prefix("  ")))
}

// KinematicNoise is the noise of the constant-acceleration model: a white acceleration
// of variance SigmaA per axis enters the state through Γ = [dt²/2, dt, 1], so that its
// covariance equals PiecewiseAccelerationNoise, and positions are observed with
// variances SigmaX² and SigmaY².
type KinematicNoise struct {
	Γ            *mat.Dense
	acceleration *AWGN
	measurement  *AWGN
}

// NewKinematicNoise returns the noise matching the provided filter parameters.
func NewKinematicNoise(params KinematicsParams, seed uint64) (*KinematicNoise, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	dt := 1.0 / params.FPS
	Γ := mat.NewDense(kinematicDims, 2, nil)
	for axis, o := range []int{PosX, PosY} {
		Γ.Set(o, axis, dt*dt/2)
		Γ.Set(o+1, axis, dt)
		Γ.Set(o+2, axis, 1)
	}
	acc, err := NewAWGN(ScaledIdentity(2, params.SigmaA), seed)
	if err != nil {
		return nil, err
	}
	meas, err := NewAWGN(Diagonal(params.SigmaX*params.SigmaX, params.SigmaY*params.SigmaY), seed+1)
	if err != nil {
		return nil, err
	}
	return &KinematicNoise{Γ, acc, meas}, nil
}

// Process implements the Noise interface.
func (n *KinematicNoise) Process(k int) *mat.VecDense {
	w := mat.NewVecDense(kinematicDims, nil)
	w.MulVec(n.Γ, n.acceleration.Sample())
	return w
}

// Measurement implements the Noise interface.
func (n *KinematicNoise) Measurement(k int) *mat.VecDense {
	return n.measurement.Sample()
}

// String implements the Stringer interface.
func (n *KinematicNoise) String() string {
	return fmt.Sprintf("KinematicNoise{\nacceleration=%vmeasurement=%v}", n.acceleration, n.measurement)
}
