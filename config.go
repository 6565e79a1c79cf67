package lds

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Config groups the parameters of both filters, as read from a YAML document:
//
//	kinematics:
//	  pos_x0: 0
//	  vel_x0: 1
//	  sigma_a: 0.1
//	  sigma_x: 0.5
//	  sigma_y: 0.5
//	  sqrt_diag_v0: 1
//	  fps: 10
//	regression:
//	  likelihood_precision_coef: 25
//	  prior_precision_coef: 2
//	  mn: [0, 0]
type Config struct {
	Kinematics KinematicsParams `yaml:"kinematics"`
	Regression RegressionParams `yaml:"regression"`
}

// DefaultConfig returns a configuration accepted by both filters.
func DefaultConfig() Config {
	return Config{
		Kinematics: KinematicsParams{
			SigmaA:       1,
			SigmaX:       1,
			SigmaY:       1,
			SqrtDiagV0:   1,
			FPS:          30,
			ProcessModel: PiecewiseAcceleration,
		},
		Regression: RegressionParams{
			LikelihoodPrecision: 25,
			PriorPrecision:      2,
			Mean:                []float64{0, 0},
		},
	}
}

// LoadConfig decodes a YAML configuration on top of DefaultConfig. Unknown keys are
// rejected, and both parameter sets are validated.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates both parameter sets.
func (c Config) Validate() error {
	if err := c.Kinematics.Validate(); err != nil {
		return fmt.Errorf("kinematics: %w", err)
	}
	if err := c.Regression.Validate(); err != nil {
		return fmt.Errorf("regression: %w", err)
	}
	return nil
}

// WriteYAML encodes v, typically an Estimate, a KinematicState or a Config, as a YAML
// document.
func WriteYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
