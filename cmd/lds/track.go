package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gokalman/lds"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/spf13/cobra"
)

type trackRecord struct {
	Step        int                `yaml:"step"`
	X           lds.Sample         `yaml:"x"`
	Y           lds.Sample         `yaml:"y"`
	State       lds.KinematicState `yaml:"state"`
	Observation []int              `yaml:"observed,flow,omitempty"`
}

type trackOutput struct {
	Records  []trackRecord        `yaml:"records"`
	Forecast []lds.ForecastResult `yaml:"forecast,omitempty"`
}

func newTrackCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track [flags]",
		Short: "Track a 2-D position from a CSV stream of x,y samples",
		Long: `Track reads rows of "x,y" position samples, an empty field or NaN marking a
missing sample, and prints the filtered kinematic state after each row.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.doTrack(cmd)
		},
	}
	cmd.Flags().StringP("input", "i", "-", "`<file>` CSV input, stdin when -")
	cmd.Flags().StringP("output", "o", "-", "`<file>` output, stdout when -")
	cmd.Flags().StringP("format", "f", "csv", "`<format>` one of csv, table, yaml")
	cmd.Flags().String("style", "default", "`<style>` table style: default, bold, double, light, round")
	cmd.Flags().Bool("heading", false, "skip the first input row")
	cmd.Flags().Int("forecast", 0, "`<steps>` forecast steps after the last row")
	cmd.Flags().String("geojson", "", "`<file>` write the observations and the estimated track as GeoJSON")
	return cmd
}

func (a *app) doTrack(cmd *cobra.Command) (err error) {
	flags := cmd.Flags()
	inName, _ := flags.GetString("input")
	outName, _ := flags.GetString("output")
	format, _ := flags.GetString("format")
	style, _ := flags.GetString("style")
	heading, _ := flags.GetBool("heading")
	forecastSteps, _ := flags.GetInt("forecast")
	geoName, _ := flags.GetString("geojson")

	kf, err := lds.NewKinematics(a.cfg.Kinematics, lds.WithLogger(a.log))
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

	var sink trackSink
	switch format {
	case "csv":
		exp, err := lds.NewCSVExporter(lds.KinematicHeaders, out)
		if err != nil {
			return err
		}
		sink = &csvSink{exp}
	case "table":
		sink = newTableSink(out, style)
	case "yaml":
		sink = &yamlSink{w: out}
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	var track orb.LineString
	var observed orb.MultiPoint
	err = newSampleReader(in, 2, heading).each(func(row []lds.Sample) error {
		est, err := kf.Step(row[0], row[1])
		if err != nil {
			return err
		}
		rec := trackRecord{Step: est.Step(), X: row[0], Y: row[1], State: kf.State()}
		if innov := est.Innovation(); innov != nil {
			rec.Observation = innov.Observed
		}
		track = append(track, orb.Point{rec.State.Position.X.Mean, rec.State.Position.Y.Mean})
		if !row[0].IsMissing() && !row[1].IsMissing() {
			observed = append(observed, orb.Point{row[0].Float(), row[1].Float()})
		}
		return sink.Write(est, rec)
	})
	if err != nil {
		return err
	}
	a.log.Info("track done", slog.Int("steps", kf.Estimate().Step()))

	forecast, err := kf.Forecast(forecastSteps)
	if err != nil {
		return err
	}
	if err := sink.Close(forecast); err != nil {
		return err
	}

	if geoName != "" {
		var predicted orb.LineString
		for _, f := range forecast {
			predicted = append(predicted, orb.Point{f.KinematicState.Position.X.Mean, f.KinematicState.Position.Y.Mean})
		}
		return writeGeoJSON(geoName, track, observed, predicted)
	}
	return nil
}

func writeGeoJSON(name string, track orb.LineString, observed orb.MultiPoint, predicted orb.LineString) error {
	fc := geojson.NewFeatureCollection()
	est := geojson.NewFeature(track)
	est.Properties["name"] = "estimate"
	est.Properties["length"] = planar.Length(track)
	fc.Append(est)
	obs := geojson.NewFeature(observed)
	obs.Properties["name"] = "observations"
	fc.Append(obs)
	if len(predicted) > 0 {
		fct := geojson.NewFeature(predicted)
		fct.Properties["name"] = "forecast"
		fc.Append(fct)
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(name, b, 0o644)
}

type trackSink interface {
	Write(lds.Estimate, trackRecord) error
	Close(forecast []lds.ForecastResult) error
}

type csvSink struct {
	exp *lds.CSVExporter
}

func (s *csvSink) Write(est lds.Estimate, _ trackRecord) error {
	return s.exp.Write(est)
}

func (s *csvSink) Close(forecast []lds.ForecastResult) error {
	for _, f := range forecast {
		p := f.KinematicState.Position
		if err := s.exp.WriteRawLn(fmt.Sprintf("# forecast %s: pos_x=%f pos_y=%f", f.Timestep, p.X.Mean, p.Y.Mean)); err != nil {
			return err
		}
	}
	return s.exp.Close()
}

type tableSink struct {
	writer table.Writer
}

func newTableSink(w io.Writer, styleName string) *tableSink {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	style := table.StyleDefault
	switch styleName {
	case "bold":
		style = table.StyleBold
	case "double":
		style = table.StyleDouble
	case "light":
		style = table.StyleLight
	case "round":
		style = table.StyleRounded
	}
	tw.SetStyle(style)
	tw.AppendHeader(table.Row{"STEP", "X", "Y", "POS_X", "POS_Y", "VEL_X", "VEL_Y", "ACC_X", "ACC_Y", "σ_X", "σ_Y"})
	return &tableSink{writer: tw}
}

func (s *tableSink) Write(_ lds.Estimate, rec trackRecord) error {
	st := rec.State
	s.writer.AppendRow(table.Row{
		rec.Step, rec.X.String(), rec.Y.String(),
		f4(st.Position.X.Mean), f4(st.Position.Y.Mean),
		f4(st.Velocity.X.Mean), f4(st.Velocity.Y.Mean),
		f4(st.Acceleration.X.Mean), f4(st.Acceleration.Y.Mean),
		f4(st.Position.X.StdDev()), f4(st.Position.Y.StdDev()),
	})
	return nil
}

func (s *tableSink) Close(forecast []lds.ForecastResult) error {
	if len(forecast) > 0 {
		s.writer.AppendSeparator()
		for _, f := range forecast {
			st := f.KinematicState
			s.writer.AppendRow(table.Row{
				"+" + f.Timestep.String(), "", "",
				f4(st.Position.X.Mean), f4(st.Position.Y.Mean),
				f4(st.Velocity.X.Mean), f4(st.Velocity.Y.Mean),
				f4(st.Acceleration.X.Mean), f4(st.Acceleration.Y.Mean),
				f4(st.Position.X.StdDev()), f4(st.Position.Y.StdDev()),
			})
		}
	}
	s.writer.Render()
	return nil
}

type yamlSink struct {
	w   io.Writer
	out trackOutput
}

func (s *yamlSink) Write(_ lds.Estimate, rec trackRecord) error {
	s.out.Records = append(s.out.Records, rec)
	return nil
}

func (s *yamlSink) Close(forecast []lds.ForecastResult) error {
	s.out.Forecast = forecast
	return lds.WriteYAML(s.w, s.out)
}

func f4(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
