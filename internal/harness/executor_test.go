package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/opcheck/internal/ops"
	"github.com/born-ml/opcheck/internal/resource"
	"github.com/born-ml/opcheck/internal/tensor"
)

// fakeDesc is a minimal descriptor with configurable resource requests. Its
// operator doubles the single input into the single output.
type fakeDesc struct {
	fwdReqs []resource.Request
	bwdReqs []resource.Request
}

func (f *fakeDesc) Name() string            { return "Fake" }
func (f *fakeDesc) ListArguments() []string { return []string{"data"} }
func (f *fakeDesc) ListOutputs() []string   { return []string{"output"} }
func (f *fakeDesc) ListAuxStates() []string { return nil }
func (f *fakeDesc) NumVisibleOutputs() int  { return 1 }

func (f *fakeDesc) InferShape(in []tensor.Shape) (out, aux []tensor.Shape, err error) {
	return []tensor.Shape{in[0].Clone()}, nil, nil
}

func (f *fakeDesc) InferType(in []tensor.DataType) (out, aux []tensor.DataType, err error) {
	return []tensor.DataType{in[0]}, nil, nil
}

func (f *fakeDesc) ForwardResources(in []tensor.Shape) []resource.Request  { return f.fwdReqs }
func (f *fakeDesc) BackwardResources(in []tensor.Shape) []resource.Request { return f.bwdReqs }

func (f *fakeDesc) CreateOperator(ctx *ops.Context, in []tensor.Shape, dtypes []tensor.DataType) (ops.Operator, error) {
	return &fakeOp{}, nil
}

type fakeOp struct{}

func (o *fakeOp) Forward(ctx *ops.Context, inputs []*tensor.Blob, req []ops.WriteMode, outputs, aux []*tensor.Blob) {
	for i := 0; i < inputs[0].NumElements(); i++ {
		outputs[0].SetAt(i, 2*inputs[0].At(i))
	}
}

func (o *fakeOp) Backward(ctx *ops.Context, outGrad, inputs, outputs []*tensor.Blob, req []ops.WriteMode, inGrad, aux []*tensor.Blob) {
	for i := 0; i < outGrad[0].NumElements(); i++ {
		inGrad[0].SetAt(i, 2*outGrad[0].At(i))
	}
}

func f32Types(n int) []tensor.DataType {
	dts := make([]tensor.DataType, n)
	for i := range dts {
		dts[i] = tensor.Float32
	}
	return dts
}

func TestInitForwardIdempotent(t *testing.T) {
	e := New[float32](tensor.CPU, tensor.Shape{2, 3})
	e.InitForward(&fakeDesc{}, f32Types(1))

	in := e.Inputs()[0]
	out := e.Outputs()[0]

	e.InitForward(&fakeDesc{}, f32Types(1))
	e.InitForward(&fakeDesc{}, f32Types(1))

	assert.Same(t, in, e.Inputs()[0])
	assert.Same(t, out, e.Outputs()[0])
}

func TestInitBackwardRunsForwardInitFirst(t *testing.T) {
	direct := New[float32](tensor.CPU, tensor.Shape{4})
	direct.InitForward(&fakeDesc{}, f32Types(1))

	viaBackward := New[float32](tensor.CPU, tensor.Shape{4})
	viaBackward.InitBackward(&fakeDesc{}, f32Types(1))

	require.Len(t, viaBackward.Inputs(), 1)
	require.Len(t, viaBackward.Outputs(), 1)
	assert.True(t, viaBackward.Inputs()[0].Shape().Equal(direct.Inputs()[0].Shape()))
	assert.True(t, viaBackward.Outputs()[0].Shape().Equal(direct.Outputs()[0].Shape()))
}

func TestInitBackwardReportsReentry(t *testing.T) {
	e := New[float32](tensor.CPU, tensor.Shape{4})

	assert.False(t, e.InitBackward(&fakeDesc{}, f32Types(1)))
	assert.True(t, e.InitBackward(&fakeDesc{}, f32Types(1)))
	assert.True(t, e.InitBackward(&fakeDesc{}, f32Types(1)))
}

func TestOutGradShapedFromVisibleOutputsOnly(t *testing.T) {
	// Dropout declares two outputs but only one visible.
	e := New[float32](tensor.CPU, tensor.Shape{8})
	e.InitBackward(ops.NewDropout(0.5), f32Types(1))

	assert.Len(t, e.Outputs(), 2)
	assert.Len(t, e.BwdInputs(), 1)
	assert.Len(t, e.BwdOutputs(), 1)
	assert.True(t, e.BwdInputs()[0].Shape().Equal(tensor.Shape{8}))
}

func TestInGradShapedFromAllInputs(t *testing.T) {
	fc := ops.NewFullyConnected(4)
	e := New[float32](tensor.CPU, tensor.Shape{2, 3}, tensor.Shape{4, 3}, tensor.Shape{4})
	e.InitBackward(fc, f32Types(3))

	require.Len(t, e.BwdOutputs(), 3)
	assert.True(t, e.BwdOutputs()[0].Shape().Equal(tensor.Shape{2, 3}))
	assert.True(t, e.BwdOutputs()[1].Shape().Equal(tensor.Shape{4, 3}))
	assert.True(t, e.BwdOutputs()[2].Shape().Equal(tensor.Shape{4}))
}

func TestElementCountsMatchShapes(t *testing.T) {
	e := New[float32](tensor.CPU, tensor.Shape{2, 3}, tensor.Shape{4, 3}, tensor.Shape{4})
	e.InitBackward(ops.NewFullyConnected(4), f32Types(3))
	e.Forward(1)
	e.Backward(1)

	for _, role := range Roles() {
		for i, b := range e.Blobs(role) {
			assert.Equal(t, b.Shape().NumElements(), b.NumElements(), "%s[%d]", role, i)
			assert.Equal(t, b.NumElements()*b.DType().Size(), b.ByteSize(), "%s[%d]", role, i)
		}
	}
}

func TestForwardBeforeInitPanics(t *testing.T) {
	e := New[float32](tensor.CPU, tensor.Shape{4})
	assert.Panics(t, func() { e.Forward(1) })
}

func TestBackwardBeforeInitPanics(t *testing.T) {
	e := New[float32](tensor.CPU, tensor.Shape{4})
	e.InitForward(&fakeDesc{}, f32Types(1))
	assert.Panics(t, func() { e.Backward(1) })
}

func TestBackwardOnForwardOnlyOperatorPanics(t *testing.T) {
	e := New[float32](tensor.CPU, tensor.Shape{4})
	e.InitForward(ops.NewL2Norm(), f32Types(1))
	assert.False(t, e.HasBackward())
	assert.Panics(t, func() { e.Backward(1) })
}

func TestForwardCountMatchesRepeatedSingles(t *testing.T) {
	shapes := []tensor.Shape{{2, 3}, {4, 3}, {4}}

	batched := New[float32](tensor.CPU, shapes...)
	batched.InitForward(ops.NewFullyConnected(4), f32Types(3))
	batched.Forward(5)

	single := New[float32](tensor.CPU, shapes...)
	single.InitForward(ops.NewFullyConnected(4), f32Types(3))
	for i := 0; i < 5; i++ {
		single.Forward(1)
	}

	require.NoError(t, CompareExecutors(batched, single, []Role{Output}, ToleranceFor[float32]()))
	assert.Equal(t, 5, batched.Timing().Stats("Forward").Reps)
	assert.Equal(t, 1, batched.Timing().Stats("Forward").Samples)
	assert.Equal(t, 5, single.Timing().Stats("Forward").Samples)
}

func TestTimingCategoriesPerPass(t *testing.T) {
	e := New[float32](tensor.CPU, tensor.Shape{4})
	e.InitBackward(&fakeDesc{}, f32Types(1))
	e.Forward(3)
	e.Backward(2)

	assert.Equal(t, 3, e.Timing().Stats("Forward").Reps)
	assert.Equal(t, 2, e.Timing().Stats("Backward").Reps)
}

func TestUnregisteredDeviceFallsBackToHost(t *testing.T) {
	e := New[float32](tensor.Device(77), tensor.Shape{4})
	assert.Equal(t, tensor.CPU, e.Device())

	// The fallback executor is fully functional.
	e.InitForward(&fakeDesc{}, f32Types(1))
	e.Forward(1)
	assert.InDelta(t, 2*e.Inputs()[0].At(0), e.Outputs()[0].At(0), 1e-6)
}

func TestTempSpaceSharedWithinOneBindingPass(t *testing.T) {
	d := &fakeDesc{
		fwdReqs: []resource.Request{{Kind: resource.TempSpace}, {Kind: resource.TempSpace}},
		bwdReqs: []resource.Request{{Kind: resource.TempSpace}},
	}
	e := New[float32](tensor.CPU, tensor.Shape{4})
	e.InitForward(d, f32Types(1))

	res := e.Ctx().Resources
	require.Len(t, res, 2)
	assert.Same(t, res[0], res[1], "one binding pass shares one temp handle")

	e.InitBackward(d, f32Types(1))
	res = e.Ctx().Resources
	require.Len(t, res, 3)
	assert.NotSame(t, res[0], res[2], "a later binding pass gets a fresh handle")
}

func TestRandomHandlesAlwaysFresh(t *testing.T) {
	d := &fakeDesc{
		fwdReqs: []resource.Request{{Kind: resource.Random}, {Kind: resource.Random}},
	}
	e := New[float32](tensor.CPU, tensor.Shape{4})
	e.InitForward(d, f32Types(1))

	res := e.Ctx().Resources
	require.Len(t, res, 2)
	assert.NotSame(t, res[0], res[1])
}

func TestParallelRandomStreamsAllocatedOnHost(t *testing.T) {
	e := New[float32](tensor.CPU, tensor.Shape{64})
	e.InitForward(ops.NewDropout(0.5), f32Types(1))

	h := e.Ctx().Resource(resource.ParallelRandom)
	assert.GreaterOrEqual(t, h.Streams(), 1)
	assert.GreaterOrEqual(t, h.Streams(), e.Ctx().Parallel.Workers(64))
}

func TestUnsupportedResourceKindPanics(t *testing.T) {
	d := &fakeDesc{fwdReqs: []resource.Request{{Kind: resource.Kind(42)}}}
	e := New[float32](tensor.CPU, tensor.Shape{4})
	assert.PanicsWithValue(t,
		"harness: resource kind Kind(42) is not supported",
		func() { e.InitForward(d, f32Types(1)) })
}

func TestSeededFillsReproduce(t *testing.T) {
	a := New[float32](tensor.CPU, tensor.Shape{16})
	a.InitForward(&fakeDesc{}, f32Types(1))
	b := New[float32](tensor.CPU, tensor.Shape{16})
	b.InitForward(&fakeDesc{}, f32Types(1))

	require.NoError(t, CompareBlobs(a.Inputs()[0], b.Inputs()[0], Tolerance{}))
}

func TestCustomResetHook(t *testing.T) {
	e := New[float32](tensor.CPU, tensor.Shape{4})
	e.ResetForward = func(ex *Executor[float32]) {
		for _, blob := range ex.Inputs() {
			for i := 0; i < blob.NumElements(); i++ {
				blob.SetAt(i, 7)
			}
		}
	}
	e.InitForward(&fakeDesc{}, f32Types(1))
	e.Forward(1)

	assert.Equal(t, 7.0, e.Inputs()[0].At(0))
	assert.Equal(t, 14.0, e.Outputs()[0].At(0))
}

func TestMismatchedDtypeCountPanics(t *testing.T) {
	e := New[float32](tensor.CPU, tensor.Shape{4})
	assert.Panics(t, func() { e.InitForward(&fakeDesc{}, f32Types(2)) })
}
