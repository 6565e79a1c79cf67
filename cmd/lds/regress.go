package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gokalman/lds"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

type regressOutput struct {
	Posterior lds.Estimate `yaml:"posterior"`
	PDF       *lds.Grid    `yaml:"pdf,omitempty"`
}

func newRegressCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regress [flags]",
		Short: "Fit a line online from a CSV stream of x,y pairs",
		Long: `Regress reads rows of "x,y" pairs and updates the posterior of the intercept
and slope after each row. An empty or NaN response leaves the posterior unchanged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.doRegress(cmd)
		},
	}
	cmd.Flags().StringP("input", "i", "-", "`<file>` CSV input, stdin when -")
	cmd.Flags().StringP("output", "o", "-", "`<file>` output, stdout when -")
	cmd.Flags().StringP("format", "f", "table", "`<format>` one of table, yaml, csv")
	cmd.Flags().Bool("heading", false, "skip the first input row")
	cmd.Flags().Float64Slice("pdf-x", []float64{-3, 3}, "`<x1,x2>` intercept range of the density grid")
	cmd.Flags().Float64Slice("pdf-y", []float64{-3, 3}, "`<y1,y2>` slope range of the density grid")
	cmd.Flags().IntSlice("pdf-steps", []int{100, 100}, "`<xsteps,ysteps>` density grid size")
	cmd.Flags().Bool("pdf", false, "evaluate the posterior density grid after the last row")
	cmd.Flags().String("pdf-png", "", "`<file>` render the posterior density grid as a heat map")
	return cmd
}

func (a *app) doRegress(cmd *cobra.Command) (err error) {
	flags := cmd.Flags()
	inName, _ := flags.GetString("input")
	outName, _ := flags.GetString("output")
	format, _ := flags.GetString("format")
	heading, _ := flags.GetBool("heading")
	withPDF, _ := flags.GetBool("pdf")
	pngName, _ := flags.GetString("pdf-png")

	lr, err := lds.NewLinearRegression(a.cfg.Regression, lds.WithLogger(a.log))
	if err != nil {
		return err
	}
	in, err := openInput(cmd, inName)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := openOutput(cmd, outName)
	if err != nil {
		return err
	}
	defer closeOutput(out, &err)

	var exp *lds.CSVExporter
	if format == "csv" {
		hdr := []string{"intercept"}
		for i := 1; i < len(lr.Mean()); i++ {
			hdr = append(hdr, fmt.Sprintf("slope%d", i))
		}
		if exp, err = lds.NewCSVExporter(hdr, out); err != nil {
			return err
		}
	}

	err = newSampleReader(in, 2, heading).each(func(row []lds.Sample) error {
		x, ok := row[0].Value()
		if !ok {
			a.log.Warn("skipping row without predictor", slog.Int("step", lr.Estimate().Step()+1))
			return nil
		}
		est, err := lr.UpdateDesign([]float64{x}, row[1])
		if err != nil {
			return err
		}
		if exp != nil {
			return exp.Write(est)
		}
		return nil
	})
	if err != nil {
		return err
	}

	var grid *lds.Grid
	if withPDF || pngName != "" {
		if grid, err = a.regressionPDF(cmd, lr); err != nil {
			return err
		}
		if pngName != "" {
			if err := renderHeatMap(grid, pngName); err != nil {
				return err
			}
		}
	}

	switch format {
	case "csv":
		return exp.Close()
	case "yaml":
		return lds.WriteYAML(out, regressOutput{Posterior: lr.Estimate(), PDF: grid})
	case "table":
		tw := table.NewWriter()
		tw.SetOutputMirror(out)
		tw.SetStyle(table.StyleLight)
		tw.SetTitle("posterior after %d updates", lr.Estimate().Step())
		tw.AppendHeader(table.Row{"COEFFICIENT", "MEAN", "STDDEV"})
		est := lr.Estimate()
		for i, m := range est.Mean() {
			name := "intercept"
			if i > 0 {
				name = fmt.Sprintf("slope%d", i)
			}
			tw.AppendRow(table.Row{name, f4(m), f4(est.StdDev(i))})
		}
		if grid != nil {
			tw.AppendFooter(table.Row{"PDF", fmt.Sprintf("max %.4g", grid.Max()), fmt.Sprintf("mass %.4f", grid.Integral())})
		}
		tw.Render()
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func (a *app) regressionPDF(cmd *cobra.Command, lr *lds.LinearRegression) (*lds.Grid, error) {
	xr, _ := cmd.Flags().GetFloat64Slice("pdf-x")
	yr, _ := cmd.Flags().GetFloat64Slice("pdf-y")
	steps, _ := cmd.Flags().GetIntSlice("pdf-steps")
	if len(xr) != 2 || len(yr) != 2 || len(steps) != 2 {
		return nil, fmt.Errorf("pdf-x, pdf-y and pdf-steps take two values each")
	}
	g, err := lr.PDF(xr[0], xr[1], steps[0], yr[0], yr[1], steps[1])
	if err != nil {
		return nil, err
	}
	a.log.Debug("density grid evaluated", slog.Int("xsteps", steps[0]), slog.Int("ysteps", steps[1]), slog.Float64("mass", g.Integral()))
	return g, nil
}

func renderHeatMap(g *lds.Grid, name string) (err error) {
	p := plot.New()
	p.Title.Text = "Posterior density"
	p.X.Label.Text = "intercept"
	p.Y.Label.Text = "slope"
	p.Add(plotter.NewHeatMap(g, palette.Heat(16, 1)))
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer closeOutput(f, &err)
	wt, err := p.WriterTo(12*vg.Centimeter, 12*vg.Centimeter, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(f)
	return err
}
