package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gokalman/lds"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat/distuv"
)

func newConsistencyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consistency [flags]",
		Short: "Check the tracker consistency with Monte Carlo runs",
		Long: `Consistency simulates independent tracks with the configured noise, filters each
one, and compares the average NEES and NIS with their chi-square acceptance bounds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.doConsistency(cmd)
		},
	}
	cmd.Flags().IntP("runs", "r", 50, "`<runs>` number of Monte Carlo runs")
	cmd.Flags().IntP("steps", "n", 200, "`<steps>` ticks per run")
	cmd.Flags().Float64("dropout", 0, "`<p>` probability of each position sample being missing")
	cmd.Flags().Float64("alpha", 0.05, "`<alpha>` significance of the acceptance bounds")
	cmd.Flags().Uint64("seed", 1, "`<seed>` random seed")
	cmd.Flags().String("csv", "", "`<file>` write the per-run NEES as CSV")
	return cmd
}

func (a *app) doConsistency(cmd *cobra.Command) error {
	flags := cmd.Flags()
	runs, _ := flags.GetInt("runs")
	steps, _ := flags.GetInt("steps")
	dropout, _ := flags.GetFloat64("dropout")
	alpha, _ := flags.GetFloat64("alpha")
	seed, _ := flags.GetUint64("seed")
	csvName, _ := flags.GetString("csv")

	mc, err := lds.NewMonteCarloRuns(cmd.Context(), a.cfg.Kinematics, runs, steps, dropout, seed)
	if err != nil {
		return err
	}
	if csvName != "" {
		if err := os.WriteFile(csvName, []byte(mc.AsCSV()), 0o644); err != nil {
			return err
		}
	}

	neesLo, neesHi := lds.ChiSquareBounds(6, runs, alpha)
	neesOut, nisOut, nisSteps := 0, 0, 0
	var nisSum float64
	var nisDoF, nisCount int
	for k := 0; k < steps; k++ {
		if m := mc.MeanNEES(k); m < neesLo || m > neesHi {
			neesOut++
		}
		m, dof, count := mc.NISStats(k)
		if count == 0 {
			continue
		}
		nisSum += m * float64(count)
		nisDoF += dof
		nisCount += count
		nisSteps++
		if lo, hi, _ := mc.NISBounds(k, alpha); m < lo || m > hi {
			nisOut++
		}
	}
	a.log.Info("monte carlo done", slog.Int("runs", runs), slog.Int("steps", steps), slog.Float64("nees", mc.AverageNEES()))

	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.SetStyle(table.StyleLight)
	tw.SetTitle("%d runs of %d steps", runs, steps)
	tw.AppendHeader(table.Row{"METRIC", "AVERAGE", "EXPECTED", "BOUNDS", "STEPS OUTSIDE"})
	tw.AppendRow(table.Row{"NEES", f4(mc.AverageNEES()), 6, fmt.Sprintf("[%.3f, %.3f]", neesLo, neesHi), fmt.Sprintf("%d/%d", neesOut, steps)})
	if nisSteps > 0 {
		// Every observed innovation pooled: the sum is chi-square with nisDoF degrees of freedom.
		χ2 := distuv.ChiSquared{K: float64(nisDoF)}
		n := float64(nisCount)
		lo, hi := χ2.Quantile(alpha/2)/n, χ2.Quantile(1-alpha/2)/n
		tw.AppendRow(table.Row{"NIS", f4(nisSum / n), f4(float64(nisDoF) / n), fmt.Sprintf("[%.3f, %.3f]", lo, hi), fmt.Sprintf("%d/%d", nisOut, nisSteps)})
	}
	tw.Render()
	return nil
}
