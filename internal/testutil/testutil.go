// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertSymmetric fails the test if m is not square or differs from its
// transpose by more than tol in any element.
func AssertSymmetric(t *testing.T, m mat.Matrix, tol float64) {
	t.Helper()
	r, c := m.Dims()
	if r != c {
		t.Fatalf("matrix is %dx%d, want square", r, c)
	}
	for i := 0; i < r; i++ {
		for j := i + 1; j < c; j++ {
			if d := math.Abs(m.At(i, j) - m.At(j, i)); d > tol {
				t.Errorf("m[%d][%d]=%g, m[%d][%d]=%g differ by %g (tol %g)", i, j, m.At(i, j), j, i, m.At(j, i), d, tol)
			}
		}
	}
}

// AssertVecInDelta fails the test if got and want differ in length or in
// any element by more than tol.
func AssertVecInDelta(t *testing.T, got, want mat.Vector, tol float64) {
	t.Helper()
	if got.Len() != want.Len() {
		t.Fatalf("vector length = %d, want %d", got.Len(), want.Len())
	}
	for i := 0; i < got.Len(); i++ {
		if d := math.Abs(got.AtVec(i) - want.AtVec(i)); !(d <= tol) {
			t.Errorf("element %d = %g, want %g (±%g)", i, got.AtVec(i), want.AtVec(i), tol)
		}
	}
}

// AssertFinite fails the test if any element of m is NaN or infinite.
func AssertFinite(t *testing.T, m mat.Matrix) {
	t.Helper()
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("element (%d,%d) is %v", i, j, v)
			}
		}
	}
}
