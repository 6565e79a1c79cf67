package lds

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestIdentity(t *testing.T) {
	n := 3
	i33 := Identity(n)
	if r, c := i33.Dims(); r != n || r != c {
		t.Fatalf("i33 has dimensions (%dx%d)", r, c)
	}
	for i := 0; i < n; i++ {
		if i33.At(i, i) != 1 {
			t.Fatalf("i33(%d,%d) != 1", i, i)
		}
		for j := 0; j < n; j++ {
			if i != j && i33.At(i, j) != 0 {
				t.Fatalf("i33(%d,%d) != 0", i, j)
			}
		}
	}
}

func TestDiagonal(t *testing.T) {
	d := Diagonal(1, 2, 3)
	if !mat.Equal(d, mat.NewDense(3, 3, []float64{1, 0, 0, 0, 2, 0, 0, 0, 3})) {
		t.Fatalf("unexpected diagonal %v", mat.Formatted(d))
	}
	if !IsNil(mat.NewDense(2, 2, nil)) || IsNil(d) {
		t.Fatal("IsNil is wrong")
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite(Identity(2)) {
		t.Fatal("identity is finite")
	}
	if IsFinite(mat.NewDense(1, 2, []float64{1, math.NaN()})) {
		t.Fatal("NaN is not finite")
	}
	if IsFinite(mat.NewDense(1, 1, []float64{math.Inf(-1)})) {
		t.Fatal("-Inf is not finite")
	}
}

func TestAsSymDense(t *testing.T) {
	d := mat.NewDense(3, 3, []float64{1, 2, 3, 2, 4, 5, 3, 5, 6})
	s, err := AsSymDense(d, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(s, d) {
		t.Fatal("symmetric conversion changed values")
	}

	// Rounding noise is averaged out.
	d.Set(0, 1, 2+1e-13)
	s, err = AsSymDense(d, 1e-9)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(s.At(0, 1)-s.At(1, 0)) != 0 || math.Abs(s.At(0, 1)-2) > 1e-12 {
		t.Fatalf("unexpected average %g", s.At(0, 1))
	}

	d.Set(0, 1, 2.5)
	if _, err = AsSymDense(d, 1e-9); err == nil {
		t.Fatal("expected an error for a non-symmetric matrix")
	}
	if IsSymmetric(d, 1e-9) {
		t.Fatal("d is not symmetric")
	}
	if _, err = AsSymDense(mat.NewDense(2, 3, nil), 1); err == nil {
		t.Fatal("expected an error for a non-square matrix")
	}
}

func TestCopyState(t *testing.T) {
	x := mat.NewVecDense(2, []float64{1, 2})
	P := Identity(2)
	xc, Pc := copyState(x, P)
	xc.SetVec(0, 10)
	Pc.Set(0, 0, 10)
	if x.AtVec(0) != 1 || P.At(0, 0) != 1 {
		t.Fatal("copyState returned aliases")
	}
}

func assertPanic(t *testing.T, f func()) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("code did not panic")
		}
	}()
	f()
}
