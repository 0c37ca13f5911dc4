package harness

import (
	"fmt"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/born-ml/opcheck/internal/tensor"
)

// Tolerance bounds an elementwise comparison: values match when they are
// within Abs of each other or within Rel relative error.
type Tolerance struct {
	Abs float64
	Rel float64
}

// ToleranceFor returns a tolerance suited to the element type's precision.
func ToleranceFor[T tensor.DType]() Tolerance {
	if tensor.DataTypeOf[T]() == tensor.Float64 {
		return Tolerance{Abs: 1e-8, Rel: 1e-7}
	}
	return Tolerance{Abs: 1e-4, Rel: 1e-3}
}

// CompareBlobs checks two blobs for equal shape, equal type and elementwise
// match within tol. Returns a descriptive error on the first difference.
func CompareBlobs(a, b *tensor.Blob, tol Tolerance) error {
	if !a.Shape().Equal(b.Shape()) {
		return fmt.Errorf("shapes differ: %v vs %v", a.Shape(), b.Shape())
	}
	if a.DType() != b.DType() {
		return fmt.Errorf("dtypes differ: %s vs %s", a.DType(), b.DType())
	}
	for i := 0; i < a.NumElements(); i++ {
		va, vb := a.At(i), b.At(i)
		if !scalar.EqualWithinAbsOrRel(va, vb, tol.Abs, tol.Rel) {
			return fmt.Errorf("element %d differs: %v vs %v", i, va, vb)
		}
	}
	return nil
}

// CompareExecutors checks the given roles of two executors blob by blob.
func CompareExecutors[T tensor.DType](a, b *Executor[T], roles []Role, tol Tolerance) error {
	for _, role := range roles {
		ba, bb := a.Blobs(role), b.Blobs(role)
		if len(ba) != len(bb) {
			return fmt.Errorf("%s: %d blobs vs %d", role, len(ba), len(bb))
		}
		for i := range ba {
			if err := CompareBlobs(ba[i], bb[i], tol); err != nil {
				return fmt.Errorf("%s[%d]: %w", role, i, err)
			}
		}
	}
	return nil
}
