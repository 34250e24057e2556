package linsolve

import (
	"errors"
	"math/cmplx"
	"testing"
)

func TestSolveKnownSystem(t *testing.T) {
	// [2 1; 1 3] x = [5; 10] -> x = [1; 3]
	a := New(2, 2)
	a.Set(0, 0, 2)
	a.Set(0, 1, 1)
	a.Set(1, 0, 1)
	a.Set(1, 1, 3)
	b := New(2, 1)
	b.Set(0, 0, 5)
	b.Set(1, 0, 10)

	x, err := Solve(a, b, 1e-12)
	if err != nil {
		t.Fatal(err)
	}
	if cmplx.Abs(x.At(0, 0)-1) > 1e-12 || cmplx.Abs(x.At(1, 0)-3) > 1e-12 {
		t.Fatalf("x = [%v %v], want [1 3]", x.At(0, 0), x.At(1, 0))
	}
}

func TestSolveComplexSystem(t *testing.T) {
	a := New(2, 2)
	a.Set(0, 0, complex(0, 1))
	a.Set(0, 1, 1)
	a.Set(1, 0, 1)
	a.Set(1, 1, complex(0, -1))

	want := []complex128{complex(2, -1), complex(0, 3)}
	b := Mul(a, columns(want))

	x, err := Solve(a, b, 1e-12)
	if err != nil {
		t.Fatal(err)
	}
	for i, w := range want {
		if cmplx.Abs(x.At(i, 0)-w) > 1e-12 {
			t.Fatalf("x[%d] = %v, want %v", i, x.At(i, 0), w)
		}
	}
}

func TestSolveRejectsSingular(t *testing.T) {
	a := New(2, 2)
	a.Set(0, 0, 1)
	a.Set(0, 1, 2)
	a.Set(1, 0, 2)
	a.Set(1, 1, 4)

	if _, err := Solve(a, Identity(2), 1e-12); !errors.Is(err, ErrSingular) {
		t.Fatalf("err = %v, want ErrSingular", err)
	}
}

func TestRegularizedInverseRecoversSingular(t *testing.T) {
	a := New(2, 2)
	a.Set(0, 0, 1)
	a.Set(0, 1, 1)
	a.Set(1, 0, 1)
	a.Set(1, 1, 1)

	inv, err := RegularizedInverse(a, 0.5, 1e-12)
	if err != nil {
		t.Fatalf("regularized inverse failed: %v", err)
	}
	// (a + 0.5 I) * inv must be the identity.
	work := New(2, 2)
	copy(work.Data, a.Data)
	work.AddDiagonal(0.5)
	prod := Mul(work, inv)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			want := complex128(0)
			if i == j {
				want = 1
			}
			if cmplx.Abs(prod.At(i, j)-want) > 1e-12 {
				t.Fatalf("prod[%d][%d] = %v, want %v", i, j, prod.At(i, j), want)
			}
		}
	}
}

func TestConjTranspose(t *testing.T) {
	a := New(1, 2)
	a.Set(0, 0, complex(1, 2))
	a.Set(0, 1, complex(3, -4))
	h := a.ConjTranspose()
	if h.Rows != 2 || h.Cols != 1 {
		t.Fatalf("shape %dx%d, want 2x1", h.Rows, h.Cols)
	}
	if h.At(0, 0) != complex(1, -2) || h.At(1, 0) != complex(3, 4) {
		t.Fatalf("unexpected conjugates: %v %v", h.At(0, 0), h.At(1, 0))
	}
}

func columns(v []complex128) Matrix {
	m := New(len(v), 1)
	for i, x := range v {
		m.Set(i, 0, x)
	}
	return m
}
