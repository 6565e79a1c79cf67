package lds

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInvalidParameter is returned when a filter is constructed with unusable parameters.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrDimensionMismatch is returned when matrix shapes disagree with the state or observation size.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrSingularInnovationCovariance is returned when Z*P*Z' + R cannot be inverted.
	ErrSingularInnovationCovariance = errors.New("singular innovation covariance")
)

// invalidParam wraps ErrInvalidParameter with the name of the offending parameter.
func invalidParam(name string, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidParameter, name, fmt.Sprintf(format, args...))
}

// DimensionAgreement defines how two matrices' dimensions should agree.
type DimensionAgreement uint8

const (
	dimErrMsg                    = "dimensions must agree: "
	rows2cols DimensionAgreement = iota + 1
	cols2rows
	cols2cols
	rows2rows
	rowsAndcols
)

// checkMatDims checks the matrix dimensions match provided a DimensionAgreement.
// The returned error wraps ErrDimensionMismatch.
func checkMatDims(m1, m2 mat.Matrix, name1, name2 string, method DimensionAgreement) error {
	r1, c1 := m1.Dims()
	r2, c2 := m2.Dims()
	switch method {
	case rows2cols:
		if r1 != c2 {
			return fmt.Errorf("%w: %s%s(%dx...) %s(...x%d)", ErrDimensionMismatch, dimErrMsg, name1, r1, name2, c2)
		}
	case cols2rows:
		if c1 != r2 {
			return fmt.Errorf("%w: %s%s(...x%d) %s(%dx...)", ErrDimensionMismatch, dimErrMsg, name1, c1, name2, r2)
		}
	case cols2cols:
		if c1 != c2 {
			return fmt.Errorf("%w: %s%s(...x%d) %s(...x%d)", ErrDimensionMismatch, dimErrMsg, name1, c1, name2, c2)
		}
	case rows2rows:
		if r1 != r2 {
			return fmt.Errorf("%w: %s%s(%dx...) %s(%dx...)", ErrDimensionMismatch, dimErrMsg, name1, r1, name2, r2)
		}
	case rowsAndcols:
		if c1 != c2 || r1 != r2 {
			return fmt.Errorf("%w: %s%s(%dx%d) %s(%dx%d)", ErrDimensionMismatch, dimErrMsg, name1, r1, c1, name2, r2, c2)
		}
	}
	return nil
}

// checkIsSquare checks that m is a square matrix of any size.
func checkIsSquare(m mat.Matrix, name string) error {
	if r, c := m.Dims(); r != c {
		return fmt.Errorf("%w: %s must be square, got (%dx%d)", ErrDimensionMismatch, name, r, c)
	}
	return nil
}

// checkSquare checks that m is an n×n matrix.
func checkSquare(m mat.Matrix, name string, n int) error {
	if m == nil {
		return fmt.Errorf("%w: %s is nil", ErrDimensionMismatch, name)
	}
	if r, c := m.Dims(); r != n || c != n {
		return fmt.Errorf("%w: %s must be (%dx%d), got (%dx%d)", ErrDimensionMismatch, name, n, n, r, c)
	}
	return nil
}
