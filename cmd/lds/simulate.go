package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gokalman/lds"
	"github.com/spf13/cobra"
)

func newSimulateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate [flags]",
		Short: "Simulate a noisy constant-acceleration track",
		Long: `Simulate writes a CSV stream of noisy x,y position samples, followed by the true
state, which the track command reads back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.doSimulate(cmd)
		},
	}
	cmd.Flags().StringP("output", "o", "-", "`<file>` CSV output, stdout when -")
	cmd.Flags().IntP("steps", "n", 100, "`<steps>` number of ticks")
	cmd.Flags().Float64("dropout", 0, "`<p>` probability of each position sample being missing")
	cmd.Flags().Uint64("seed", 1, "`<seed>` random seed")
	cmd.Flags().Bool("noiseless", false, "simulate without process nor measurement noise")
	return cmd
}

func (a *app) doSimulate(cmd *cobra.Command) (err error) {
	flags := cmd.Flags()
	outName, _ := flags.GetString("output")
	steps, _ := flags.GetInt("steps")
	dropout, _ := flags.GetFloat64("dropout")
	seed, _ := flags.GetUint64("seed")
	noiseless, _ := flags.GetBool("noiseless")
	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}

	var noise lds.Noise = lds.NewNoiseless(6, 2)
	if !noiseless {
		kn, err := lds.NewKinematicNoise(a.cfg.Kinematics, seed)
		if err != nil {
			return err
		}
		noise = kn
	}
	sim, err := lds.NewSimulator(a.cfg.Kinematics, noise, dropout, seed)
	if err != nil {
		return err
	}
	a.log.Info("simulating", slog.Int("steps", steps), slog.Float64("dropout", dropout), slog.String("noise", noise.String()))

	out, err := openOutput(cmd, outName)
	if err != nil {
		return err
	}
	defer closeOutput(out, &err)
	if _, err := fmt.Fprintf(out, "x,y,%s\n", strings.Join(lds.KinematicHeaders, ",")); err != nil {
		return err
	}
	for _, tr := range sim.Run(steps) {
		vals := []string{csvSample(tr.Observation[0]), csvSample(tr.Observation[1])}
		for _, v := range tr.State.RawVector().Data {
			vals = append(vals, fmt.Sprintf("%f", v))
		}
		if _, err := fmt.Fprintln(out, strings.Join(vals, ",")); err != nil {
			return err
		}
	}
	return nil
}

func csvSample(s lds.Sample) string {
	if s.IsMissing() {
		return ""
	}
	return s.String()
}
