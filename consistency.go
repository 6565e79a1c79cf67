package lds

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// NEES returns the normalized estimation error squared (x - x̂)' P⁻¹ (x - x̂).
func NEES(truth mat.Vector, est Estimate) (float64, error) {
	if err := checkMatDims(truth, est.State(), "truth", "estimate", rowsAndcols); err != nil {
		return 0, err
	}
	var e mat.VecDense
	e.SubVec(truth, est.State())
	return quadInv(&e, est.Covariance())
}

// NIS returns the normalized innovation squared v' S⁻¹ v of an update.
func NIS(innov *Innovation) (float64, error) {
	if innov == nil {
		return 0, errors.New("no innovation: every observation was missing")
	}
	return quadInv(innov.Residual, innov.Covariance)
}

func quadInv(v *mat.VecDense, C mat.Matrix) (float64, error) {
	var sol mat.VecDense
	if err := sol.SolveVec(C, v); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSingularInnovationCovariance, err)
	}
	return mat.Dot(v, &sol), nil
}

// ChiSquareBounds returns the two-sided acceptance interval of the average of runs
// independent chi-square samples with dof degrees of freedom, at significance alpha.
func ChiSquareBounds(dof, runs int, alpha float64) (lo, hi float64) {
	χ2 := distuv.ChiSquared{K: float64(dof * runs)}
	return χ2.Quantile(alpha/2) / float64(runs), χ2.Quantile(1-alpha/2) / float64(runs)
}

// MonteCarloRun stores the consistency metrics of one simulated run. NIS is NaN at
// ticks where nothing was observed.
type MonteCarloRun struct {
	NEES   []float64
	NIS    []float64
	NISDoF []int
}

// MonteCarloRuns stores MC runs.
type MonteCarloRuns struct {
	runs, steps int
	Runs        []MonteCarloRun
}

// NewMonteCarloRuns simulates runs independent tracks of steps ticks each, using the
// noise model matching params, and filters each one with its own Kinematics filter.
// Runs are spread over the available CPUs; run r is seeded with seed+2r.
func NewMonteCarloRuns(ctx context.Context, params KinematicsParams, runs, steps int, dropout float64, seed uint64) (*MonteCarloRuns, error) {
	if runs <= 0 || steps <= 0 {
		return nil, invalidParam("runs/steps", "must be positive, got %d/%d", runs, steps)
	}
	mc := &MonteCarloRuns{runs: runs, steps: steps, Runs: make([]MonteCarloRun, runs)}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for r := 0; r < runs; r++ {
		g.Go(func() error {
			run, err := monteCarloRun(ctx, params, steps, dropout, seed+uint64(r)*2)
			if err != nil {
				return fmt.Errorf("run %d: %w", r, err)
			}
			mc.Runs[r] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mc, nil
}

func monteCarloRun(ctx context.Context, params KinematicsParams, steps int, dropout float64, seed uint64) (MonteCarloRun, error) {
	run := MonteCarloRun{NEES: make([]float64, steps), NIS: make([]float64, steps), NISDoF: make([]int, steps)}
	noise, err := NewKinematicNoise(params, seed)
	if err != nil {
		return run, err
	}
	sim, err := NewSimulator(params, noise, dropout, seed)
	if err != nil {
		return run, err
	}
	kf, err := NewKinematics(params)
	if err != nil {
		return run, err
	}
	for k := 0; k < steps; k++ {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		truth := sim.Next()
		est, err := kf.Step(truth.Observation[0], truth.Observation[1])
		if err != nil {
			return run, err
		}
		if run.NEES[k], err = NEES(truth.State, est); err != nil {
			return run, err
		}
		run.NIS[k] = math.NaN()
		if innov := est.Innovation(); innov != nil {
			if run.NIS[k], err = NIS(innov); err != nil {
				return run, err
			}
			run.NISDoF[k] = len(innov.Observed)
		}
	}
	return run, nil
}

// MeanNEES returns the mean NEES across runs at the given step.
func (mc MonteCarloRuns) MeanNEES(step int) float64 {
	return stat.Mean(mc.column(func(r MonteCarloRun) float64 { return r.NEES[step] }), nil)
}

// StdDevNEES returns the standard deviation of the NEES across runs at the given step.
func (mc MonteCarloRuns) StdDevNEES(step int) float64 {
	return stat.StdDev(mc.column(func(r MonteCarloRun) float64 { return r.NEES[step] }), nil)
}

// MeanNIS returns the mean NIS across the runs which observed something at the given
// step, or NaN if none did.
func (mc MonteCarloRuns) MeanNIS(step int) float64 {
	mean, _, _ := mc.NISStats(step)
	return mean
}

// NISStats returns the mean NIS at the given step over the runs which observed
// something, the sum of their degrees of freedom and how many runs contributed.
// The mean is NaN when count is zero.
func (mc MonteCarloRuns) NISStats(step int) (mean float64, dof, count int) {
	kept := make([]float64, 0, len(mc.Runs))
	for _, r := range mc.Runs {
		if math.IsNaN(r.NIS[step]) {
			continue
		}
		kept = append(kept, r.NIS[step])
		dof += r.NISDoF[step]
	}
	if len(kept) == 0 {
		return math.NaN(), 0, 0
	}
	return stat.Mean(kept, nil), dof, len(kept)
}

// NISBounds returns the two-sided acceptance interval of MeanNIS at the given step.
// The sum of the contributing NIS values is chi-square with the summed degrees of
// freedom, so the quantiles are divided by the number of contributors. ok is false
// when no run observed anything at that step.
func (mc MonteCarloRuns) NISBounds(step int, alpha float64) (lo, hi float64, ok bool) {
	_, dof, count := mc.NISStats(step)
	if count == 0 {
		return math.NaN(), math.NaN(), false
	}
	χ2 := distuv.ChiSquared{K: float64(dof)}
	return χ2.Quantile(alpha/2) / float64(count), χ2.Quantile(1-alpha/2) / float64(count), true
}

// AverageNEES returns the mean NEES over every run and step.
func (mc MonteCarloRuns) AverageNEES() float64 {
	means := make([]float64, mc.steps)
	for k := range means {
		means[k] = mc.MeanNEES(k)
	}
	return stat.Mean(means, nil)
}

func (mc MonteCarloRuns) column(f func(MonteCarloRun) float64) []float64 {
	vals := make([]float64, len(mc.Runs))
	for r, run := range mc.Runs {
		vals[r] = f(run)
	}
	return vals
}

// AsCSV is used as a CSV serializer, one line per step with the per-run NEES followed
// by their mean and standard deviation. The first line is the header.
func (mc MonteCarloRuns) AsCSV() string {
	lines := make([]string, mc.steps+1)
	hdr := make([]string, 0, mc.runs+2)
	for r := 0; r < mc.runs; r++ {
		hdr = append(hdr, fmt.Sprintf("nees-%d", r))
	}
	lines[0] = strings.Join(append(hdr, "nees-mean", "nees-stddev", "nis-mean"), ",")
	for k := 0; k < mc.steps; k++ {
		vals := make([]string, 0, mc.runs+3)
		for _, run := range mc.Runs {
			vals = append(vals, fmt.Sprintf("%f", run.NEES[k]))
		}
		vals = append(vals, fmt.Sprintf("%f", mc.MeanNEES(k)), fmt.Sprintf("%f", mc.StdDevNEES(k)), fmt.Sprintf("%f", mc.MeanNIS(k)))
		lines[k+1] = strings.Join(vals, ",")
	}
	return strings.Join(lines, "\n") + "\n"
}
