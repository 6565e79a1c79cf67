package lds

import (
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Sample is a single observed quantity which is either present with a value or missing.
// The zero value is missing.
type Sample struct {
	value float64
	ok    bool
}

// Present returns a sample holding v. A NaN v yields a missing sample.
func Present(v float64) Sample {
	if math.IsNaN(v) {
		return Sample{}
	}
	return Sample{value: v, ok: true}
}

// Missing returns a missing sample.
func Missing() Sample {
	return Sample{}
}

// SampleOf maps a NaN sentinel to a missing sample and anything else to a present one.
func SampleOf(v float64) Sample {
	return Present(v)
}

// Value returns the sample value and whether it is present.
func (s Sample) Value() (float64, bool) {
	return s.value, s.ok
}

// IsMissing returns whether no value was observed.
func (s Sample) IsMissing() bool {
	return !s.ok
}

// Float returns the value, or NaN when missing.
func (s Sample) Float() float64 {
	if !s.ok {
		return math.NaN()
	}
	return s.value
}

func (s Sample) String() string {
	if !s.ok {
		return "missing"
	}
	return strconv.FormatFloat(s.value, 'g', -1, 64)
}

// MarshalYAML implements yaml.Marshaler; a missing sample is written as null.
func (s Sample) MarshalYAML() (interface{}, error) {
	if !s.ok {
		return nil, nil
	}
	return s.value, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Sample) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" || node.Value == "" || node.Value == "~" {
		*s = Missing()
		return nil
	}
	var v float64
	if err := node.Decode(&v); err != nil {
		return fmt.Errorf("sample: %w", err)
	}
	*s = Present(v)
	return nil
}

// Observation is a vector of samples, one per observed quantity.
type Observation []Sample

// ObservationOf builds an observation from raw values, NaN denoting a missing entry.
func ObservationOf(vs ...float64) Observation {
	o := make(Observation, len(vs))
	for i, v := range vs {
		o[i] = SampleOf(v)
	}
	return o
}

// Len returns the number of observed quantities, missing ones included.
func (o Observation) Len() int {
	return len(o)
}

// Observed returns the indices of the present samples in order.
func (o Observation) Observed() []int {
	idx := make([]int, 0, len(o))
	for i, s := range o {
		if s.ok {
			idx = append(idx, i)
		}
	}
	return idx
}

// AllMissing returns whether no sample is present.
func (o Observation) AllMissing() bool {
	for _, s := range o {
		if s.ok {
			return false
		}
	}
	return true
}
