package lds

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"
)

// Exporter defines an export interface.
type Exporter interface {
	Write(Estimate) error
	Close() error
}

// CSVExporter writes one line per estimate holding, for each state component, its
// mean and the +2σ/-2σ bounds around it.
type CSVExporter struct {
	delimiter string
	w         io.Writer
}

// NewCSVExporter initializes a new CSV export and writes the header.
func NewCSVExporter(headers []string, w io.Writer) (*CSVExporter, error) {
	delimiter := ","
	hdr := make([]string, 0, len(headers)*3+1)
	hdr = append(hdr, "step")
	for _, h := range headers {
		hdr = append(hdr, h, h+"+2s", h+"-2s")
	}
	if _, err := fmt.Fprintf(w, "# Creation date (UTC): %s\n%s\n", time.Now().UTC().Format(time.RFC3339), strings.Join(hdr, delimiter)); err != nil {
		return nil, err
	}
	return &CSVExporter{delimiter, w}, nil
}

// Write writes the estimate to the CSV file.
func (e *CSVExporter) Write(est Estimate) error {
	r := est.State().Len()
	vals := make([]string, 0, r*3+1)
	vals = append(vals, fmt.Sprintf("%d", est.Step()))
	for i := 0; i < r; i++ {
		mean := est.State().AtVec(i)
		twoσ := 2 * math.Sqrt(math.Max(est.Covariance().At(i, i), 0))
		vals = append(vals, fmt.Sprintf("%f", mean), fmt.Sprintf("%f", mean+twoσ), fmt.Sprintf("%f", mean-twoσ))
	}
	_, err := io.WriteString(e.w, strings.Join(vals, e.delimiter)+"\n")
	return err
}

// WriteRawLn writes a raw line to the CSV file.
func (e *CSVExporter) WriteRawLn(s string) error {
	_, err := io.WriteString(e.w, s+"\n")
	return err
}

// Close writes the closing comment. The writer is left open, it belongs to the caller.
func (e *CSVExporter) Close() error {
	return e.WriteRawLn(fmt.Sprintf("# Closing date (UTC): %s", time.Now().UTC().Format(time.RFC3339)))
}

// KinematicHeaders are the CSV headers of the kinematic state components.
var KinematicHeaders = []string{"pos_x", "vel_x", "acc_x", "pos_y", "vel_y", "acc_y"}
