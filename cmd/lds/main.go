// Command lds runs the kinematic tracker and the online regression filter on CSV
// streams, and simulates tracks to check the tracker consistency.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gokalman/lds"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cobra.CheckErr(NewCmd().ExecuteContext(context.Background()))
}

// app holds what the persistent flags resolve to.
type app struct {
	cfg    lds.Config
	log    *slog.Logger
	closer io.Closer
}

func NewCmd() *cobra.Command {
	cobra.EnableCommandSorting = false
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "lds [command] [flags] [args]",
		Short:         "lds filters noisy streams with linear-Gaussian state-space models",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closer != nil {
				return a.closer.Close()
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(cmd.UsageString())
		},
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "`<file>` YAML configuration of the filters")
	rootCmd.PersistentFlags().String("log-level", "warn", "`<level>` one of debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-file", "", "`<file>` rotated log file, stderr when empty")

	rootCmd.AddCommand(
		newTrackCmd(a),
		newRegressCmd(a),
		newSimulateCmd(a),
		newConsistencyCmd(a),
		newConfigCmd(a),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	levelName, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return err
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	logFile, err := cmd.Flags().GetString("log-file")
	if err != nil {
		return err
	}
	var w io.Writer = cmd.ErrOrStderr()
	if logFile != "" {
		lj := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
			LocalTime:  true,
		}
		w, a.closer = lj, lj
	}
	a.log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))

	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	if cfgPath == "" {
		a.cfg = lds.DefaultConfig()
		return nil
	}
	f, err := os.Open(cfgPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if a.cfg, err = lds.LoadConfig(f); err != nil {
		return fmt.Errorf("%s: %w", cfgPath, err)
	}
	a.log.Debug("configuration loaded", slog.String("path", cfgPath))
	return nil
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return lds.WriteYAML(cmd.OutOrStdout(), a.cfg)
		},
	}
}

// openInput returns the named file, or stdin for "-" or an empty name.
func openInput(cmd *cobra.Command, name string) (io.ReadCloser, error) {
	if name == "" || name == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(name)
}

// nopWriteCloser keeps exporters from closing stdout.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// closeOutput closes out and reports its error through err unless err is already set.
func closeOutput(out io.Closer, err *error) {
	if cerr := out.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

// openOutput returns the named file, or stdout for "-" or an empty name.
func openOutput(cmd *cobra.Command, name string) (io.WriteCloser, error) {
	if name == "" || name == "-" {
		return nopWriteCloser{cmd.OutOrStdout()}, nil
	}
	return os.Create(name)
}
