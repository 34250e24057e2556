// Package linsolve provides a minimal complex matrix type and the
// regularized solves used by crosstalk-cancellation filter design.
package linsolve

import (
	"errors"
	"fmt"
	"math/cmplx"
)

// ErrSingular reports a system that cannot be solved at the requested
// tolerance.
var ErrSingular = errors.New("linsolve: singular matrix")

// Matrix is a dense row-major complex matrix.
type Matrix struct {
	Rows, Cols int
	Data       []complex128
}

// New returns a zeroed rows x cols matrix.
func New(rows, cols int) Matrix {
	return Matrix{Rows: rows, Cols: cols, Data: make([]complex128, rows*cols)}
}

// Identity returns the n x n identity matrix.
func Identity(n int) Matrix {
	m := New(n, n)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// At returns element (i, j).
func (m Matrix) At(i, j int) complex128 { return m.Data[i*m.Cols+j] }

// Set assigns element (i, j).
func (m Matrix) Set(i, j int, v complex128) { m.Data[i*m.Cols+j] = v }

// ConjTranspose returns the Hermitian transpose of m.
func (m Matrix) ConjTranspose() Matrix {
	out := New(m.Cols, m.Rows)
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			out.Set(j, i, cmplx.Conj(m.At(i, j)))
		}
	}
	return out
}

// Mul returns a*b.
func Mul(a, b Matrix) Matrix {
	if a.Cols != b.Rows {
		panic(fmt.Sprintf("linsolve: dimension mismatch %dx%d * %dx%d", a.Rows, a.Cols, b.Rows, b.Cols))
	}
	out := New(a.Rows, b.Cols)
	for i := 0; i < a.Rows; i++ {
		for k := 0; k < a.Cols; k++ {
			av := a.At(i, k)
			if av == 0 {
				continue
			}
			for j := 0; j < b.Cols; j++ {
				out.Data[i*out.Cols+j] += av * b.At(k, j)
			}
		}
	}
	return out
}

// AddDiagonal adds lambda to every diagonal element in place.
func (m Matrix) AddDiagonal(lambda float64) {
	n := m.Rows
	if m.Cols < n {
		n = m.Cols
	}
	for i := 0; i < n; i++ {
		m.Set(i, i, m.At(i, i)+complex(lambda, 0))
	}
}

// Solve returns X with a*X = b, using Gaussian elimination with partial
// pivoting. a must be square; b must have matching row count. Fails
// with ErrSingular when the pivot magnitude falls below tol relative to
// the largest element of a.
func Solve(a, b Matrix, tol float64) (Matrix, error) {
	if a.Rows != a.Cols {
		return Matrix{}, fmt.Errorf("linsolve: matrix not square (%dx%d)", a.Rows, a.Cols)
	}
	if b.Rows != a.Rows {
		return Matrix{}, fmt.Errorf("linsolve: rhs rows %d, want %d", b.Rows, a.Rows)
	}
	n := a.Rows

	// Work on copies; callers keep their inputs.
	work := New(n, n)
	copy(work.Data, a.Data)
	out := New(b.Rows, b.Cols)
	copy(out.Data, b.Data)

	scale := 0.0
	for _, v := range work.Data {
		if mag := cmplx.Abs(v); mag > scale {
			scale = mag
		}
	}
	if scale == 0 {
		return Matrix{}, ErrSingular
	}

	for col := 0; col < n; col++ {
		pivot := col
		pivotMag := cmplx.Abs(work.At(col, col))
		for r := col + 1; r < n; r++ {
			if mag := cmplx.Abs(work.At(r, col)); mag > pivotMag {
				pivot, pivotMag = r, mag
			}
		}
		if pivotMag < tol*scale {
			return Matrix{}, fmt.Errorf("%w: pivot %g below tolerance", ErrSingular, pivotMag)
		}
		if pivot != col {
			swapRows(work, pivot, col)
			swapRows(out, pivot, col)
		}

		inv := 1 / work.At(col, col)
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := work.At(r, col) * inv
			if factor == 0 {
				continue
			}
			for j := col; j < n; j++ {
				work.Set(r, j, work.At(r, j)-factor*work.At(col, j))
			}
			for j := 0; j < out.Cols; j++ {
				out.Set(r, j, out.At(r, j)-factor*out.At(col, j))
			}
		}
	}

	for r := 0; r < n; r++ {
		inv := 1 / work.At(r, r)
		for j := 0; j < out.Cols; j++ {
			out.Set(r, j, out.At(r, j)*inv)
		}
	}
	return out, nil
}

// RegularizedInverse returns (m + lambda*I)^-1 for a square matrix m.
func RegularizedInverse(m Matrix, lambda, tol float64) (Matrix, error) {
	work := New(m.Rows, m.Cols)
	copy(work.Data, m.Data)
	work.AddDiagonal(lambda)
	return Solve(work, Identity(m.Rows), tol)
}

func swapRows(m Matrix, a, b int) {
	ra := m.Data[a*m.Cols : (a+1)*m.Cols]
	rb := m.Data[b*m.Cols : (b+1)*m.Cols]
	for i := range ra {
		ra[i], rb[i] = rb[i], ra[i]
	}
}
