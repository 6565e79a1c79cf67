package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gokalman/lds"
)

// sampleReader reads rows of samples from a CSV stream. Empty fields and NaN denote
// missing samples, lines starting with '#' are comments.
type sampleReader struct {
	reader  *csv.Reader
	columns int
	line    int
	Heading bool
}

func newSampleReader(r io.Reader, columns int, heading bool) *sampleReader {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return &sampleReader{reader: reader, columns: columns, Heading: heading}
}

// Next returns the first columns of the next row, or io.EOF.
func (sr *sampleReader) Next() ([]lds.Sample, error) {
	if sr.Heading {
		sr.Heading = false
		if _, err := sr.reader.Read(); err != nil {
			return nil, err
		}
		sr.line++
	}
	fields, err := sr.reader.Read()
	if err != nil {
		return nil, err
	}
	sr.line++
	if len(fields) < sr.columns {
		return nil, fmt.Errorf("line %d: %d columns, expected at least %d", sr.line, len(fields), sr.columns)
	}
	row := make([]lds.Sample, sr.columns)
	for i := range row {
		field := strings.TrimSpace(fields[i])
		if field == "" {
			row[i] = lds.Missing()
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d column %d: %w", sr.line, i+1, err)
		}
		row[i] = lds.SampleOf(v)
	}
	return row, nil
}

// each calls fn on every row until the end of the stream.
func (sr *sampleReader) each(fn func([]lds.Sample) error) error {
	for {
		row, err := sr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}
