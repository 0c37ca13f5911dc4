package harness

import (
	"fmt"

	"gonum.org/v1/gonum/floats/scalar"
	"k8s.io/klog/v2"

	"github.com/born-ml/opcheck/internal/ops"
	"github.com/born-ml/opcheck/internal/perf"
	"github.com/born-ml/opcheck/internal/tensor"
)

// Runner drives complete executor cycles for one descriptor: construct,
// initialize, execute, and compare or time the results.
type Runner[T tensor.DType] struct {
	Desc ops.Descriptor
	Cfg  Config

	// ResetForward and ResetBackward, when set, replace the default seeded
	// fill on every executor the runner builds. Operators whose inputs are
	// not arbitrary numbers (table ids, masks) install their own fill here.
	ResetForward  func(*Executor[T])
	ResetBackward func(*Executor[T])
}

// NewRunner creates a runner with the default executor config.
func NewRunner[T tensor.DType](d ops.Descriptor) *Runner[T] {
	return &Runner[T]{Desc: d, Cfg: DefaultConfig()}
}

// dtypes builds the per-input type vector: every input carries T.
func (r *Runner[T]) dtypes() []tensor.DataType {
	n := len(r.Desc.ListArguments())
	dts := make([]tensor.DataType, n)
	for i := range dts {
		dts[i] = tensor.DataTypeOf[T]()
	}
	return dts
}

func (r *Runner[T]) build(dev tensor.Device, shapes []tensor.Shape) *Executor[T] {
	e := NewWith[T](dev, r.Cfg, shapes...)
	if r.ResetForward != nil {
		e.ResetForward = r.ResetForward
	}
	if r.ResetBackward != nil {
		e.ResetBackward = r.ResetBackward
	}
	return e
}

// RunForward builds an executor on dev, initializes the forward pass and
// runs it count times. The caller owns the returned executor.
func (r *Runner[T]) RunForward(dev tensor.Device, shapes []tensor.Shape, count int) *Executor[T] {
	e := r.build(dev, shapes)
	e.InitForward(r.Desc, r.dtypes())
	e.Forward(count)
	return e
}

// RunBidirectional runs forward count times and, when the operator has a
// backward pass, backward count times.
func (r *Runner[T]) RunBidirectional(dev tensor.Device, shapes []tensor.Shape, count int) *Executor[T] {
	e := r.build(dev, shapes)
	e.InitBackward(r.Desc, r.dtypes())
	e.Forward(count)
	if e.HasBackward() {
		e.Backward(count)
	}
	return e
}

// CompareBackends runs one bidirectional cycle on each device and checks
// every populated buffer group for elementwise agreement within tol. Both
// executors share the runner's fill seed, so they start from identical data.
func (r *Runner[T]) CompareBackends(devA, devB tensor.Device, shapes []tensor.Shape, tol Tolerance) error {
	a := r.RunBidirectional(devA, shapes, 1)
	defer a.Release()
	b := r.RunBidirectional(devB, shapes, 1)
	defer b.Release()

	roles := []Role{Output, Aux}
	if a.HasBackward() {
		roles = append(roles, InGrad)
	}
	if err := CompareExecutors(a, b, roles, tol); err != nil {
		return fmt.Errorf("%s on %s vs %s: %w", r.Desc.Name(), a.Device(), b.Device(), err)
	}
	return nil
}

// Verify checks the executor's current buffers against a previously dumped
// literal, role by role within tol. Literal groups with no blobs are skipped
// so forward-only dumps verify against forward-only runs.
func (r *Runner[T]) Verify(e *Executor[T], data [][][]float64, tol Tolerance) error {
	if len(data) != RoleCount {
		return fmt.Errorf("baseline holds %d groups, want %d", len(data), RoleCount)
	}
	for _, role := range Roles() {
		want := data[role]
		got := e.Blobs(role)
		if len(want) == 0 {
			continue
		}
		if len(want) != len(got) {
			return fmt.Errorf("%s: baseline holds %d blobs, executor %d", role, len(want), len(got))
		}
		for i, values := range want {
			b := got[i]
			if len(values) != b.NumElements() {
				return fmt.Errorf("%s[%d]: baseline holds %d elements, blob %d", role, i, len(values), b.NumElements())
			}
			for j, v := range values {
				if !scalar.EqualWithinAbsOrRel(b.At(j), v, tol.Abs, tol.Rel) {
					return fmt.Errorf("%s[%d] element %d: %v vs baseline %v", role, i, j, b.At(j), v)
				}
			}
		}
	}
	return nil
}

// TimingTest runs one bidirectional cycle of count repetitions per shape set
// and aggregates the per-category samples across the sweep. Progress and the
// final summary go to the info log.
func (r *Runner[T]) TimingTest(label string, dev tensor.Device, count int, shapeSets [][]tensor.Shape) *perf.Timing {
	agg := perf.New()
	for _, shapes := range shapeSets {
		e := r.RunBidirectional(dev, shapes, count)
		for _, category := range e.Timing().Categories() {
			s := e.Timing().Stats(category)
			agg.Record(category, s.Reps, s.Total)
		}
		klog.V(2).Infof("%s %v on %s: %d reps done", label, shapes, e.Device(), count)
		e.Release()
	}
	klog.Infof("%s on %s over %d shape sets:\n%s", label, dev, len(shapeSets), agg.Summary())
	return agg
}
