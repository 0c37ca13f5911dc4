package ops

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/opcheck/internal/parallel"
	"github.com/born-ml/opcheck/internal/resource"
	"github.com/born-ml/opcheck/internal/tensor"
)

func hostCtx() *Context {
	return &Context{
		Device:   tensor.CPU,
		IsTrain:  true,
		Parallel: parallel.Config{Enabled: false},
	}
}

func newBlob(t *testing.T, shape tensor.Shape, values ...float64) *tensor.Blob {
	t.Helper()
	b, err := tensor.NewBlob(shape, tensor.Float32)
	require.NoError(t, err)
	for i, v := range values {
		b.SetAt(i, v)
	}
	return b
}

func TestWriteModeString(t *testing.T) {
	assert.Equal(t, "WriteTo", WriteTo.String())
	assert.Equal(t, "AddTo", AddTo.String())
	assert.Equal(t, "WriteMode(9)", WriteMode(9).String())
}

func TestFill(t *testing.T) {
	req := Fill(WriteTo, 3)
	require.Len(t, req, 3)
	for _, m := range req {
		assert.Equal(t, WriteTo, m)
	}
}

func TestContextResourceLookup(t *testing.T) {
	m := resource.NewManager(1)
	ctx := hostCtx()
	ctx.Resources = []*resource.Resource{
		m.Request(resource.Context{}, resource.Request{Kind: resource.TempSpace}),
	}

	assert.Equal(t, resource.TempSpace, ctx.Resource(resource.TempSpace).Kind())
	assert.Panics(t, func() { ctx.Resource(resource.Random) })
}

func TestHasBackwardDefaultsTrue(t *testing.T) {
	assert.True(t, HasBackward(NewFullyConnected(4)))
	assert.True(t, HasBackward(NewDropout(0.5)))
	assert.False(t, HasBackward(NewL2Norm()))
}

func TestFullyConnectedDescriptor(t *testing.T) {
	fc := NewFullyConnected(4)
	assert.Equal(t, []string{"data", "weight", "bias"}, fc.ListArguments())
	assert.Equal(t, 1, fc.NumVisibleOutputs())

	out, aux, err := fc.InferShape([]tensor.Shape{{2, 3}, {4, 3}, {4}})
	require.NoError(t, err)
	assert.Empty(t, aux)
	require.Len(t, out, 1)
	assert.True(t, out[0].Equal(tensor.Shape{2, 4}))

	_, _, err = fc.InferShape([]tensor.Shape{{2, 3}, {5, 3}, {4}})
	assert.Error(t, err)

	_, _, err = fc.InferType([]tensor.DataType{tensor.Float32, tensor.Float64, tensor.Float32})
	assert.Error(t, err)
}

func TestFullyConnectedNoBias(t *testing.T) {
	fc := &FullyConnected{NumHidden: 2, NoBias: true}
	assert.Equal(t, []string{"data", "weight"}, fc.ListArguments())

	_, _, err := fc.InferShape([]tensor.Shape{{1, 3}, {2, 3}})
	require.NoError(t, err)
}

func TestFullyConnectedForwardBackward(t *testing.T) {
	fc := NewFullyConnected(2)
	ctx := hostCtx()
	op, err := fc.CreateOperator(ctx, []tensor.Shape{{1, 2}, {2, 2}, {2}}, []tensor.DataType{tensor.Float32, tensor.Float32, tensor.Float32})
	require.NoError(t, err)

	data := newBlob(t, tensor.Shape{1, 2}, 1, 2)
	weight := newBlob(t, tensor.Shape{2, 2}, 1, 1, 2, 0)
	bias := newBlob(t, tensor.Shape{2}, 0.5, -0.5)
	out := newBlob(t, tensor.Shape{1, 2})

	op.Forward(ctx, []*tensor.Blob{data, weight, bias}, Fill(WriteTo, 1), []*tensor.Blob{out}, nil)
	assert.InDelta(t, 3.5, out.At(0), 1e-6) // 1+2+0.5
	assert.InDelta(t, 1.5, out.At(1), 1e-6) // 2-0.5

	dy := newBlob(t, tensor.Shape{1, 2}, 1, 1)
	dx := newBlob(t, tensor.Shape{1, 2})
	dw := newBlob(t, tensor.Shape{2, 2})
	db := newBlob(t, tensor.Shape{2})

	op.Backward(ctx, []*tensor.Blob{dy}, []*tensor.Blob{data, weight, bias}, []*tensor.Blob{out},
		Fill(WriteTo, 3), []*tensor.Blob{dx, dw, db}, nil)

	// dx = dy @ w = [1*1+1*2, 1*1+1*0] = [3, 1]
	assert.InDelta(t, 3, dx.At(0), 1e-6)
	assert.InDelta(t, 1, dx.At(1), 1e-6)
	// db = dy column sums
	assert.InDelta(t, 1, db.At(0), 1e-6)
	assert.InDelta(t, 1, db.At(1), 1e-6)
}

func TestActivationDescriptor(t *testing.T) {
	act := NewActivation(Sigmoid)
	assert.Equal(t, "Activation(sigmoid)", act.Name())

	out, _, err := act.InferShape([]tensor.Shape{{3, 4}})
	require.NoError(t, err)
	assert.True(t, out[0].Equal(tensor.Shape{3, 4}))
}

func TestActivationForwardBackward(t *testing.T) {
	act := NewActivation(Tanh)
	ctx := hostCtx()
	op, err := act.CreateOperator(ctx, []tensor.Shape{{3}}, []tensor.DataType{tensor.Float32})
	require.NoError(t, err)

	x := newBlob(t, tensor.Shape{3}, -1, 0, 1)
	y := newBlob(t, tensor.Shape{3})
	op.Forward(ctx, []*tensor.Blob{x}, Fill(WriteTo, 1), []*tensor.Blob{y}, nil)
	assert.InDelta(t, math.Tanh(-1), y.At(0), 1e-6)
	assert.InDelta(t, 0, y.At(1), 1e-6)

	dy := newBlob(t, tensor.Shape{3}, 1, 1, 1)
	dx := newBlob(t, tensor.Shape{3})
	op.Backward(ctx, []*tensor.Blob{dy}, []*tensor.Blob{x}, []*tensor.Blob{y}, Fill(WriteTo, 1), []*tensor.Blob{dx}, nil)
	// tanh'(0) = 1
	assert.InDelta(t, 1, dx.At(1), 1e-6)
}

func TestDropoutTrainingMasksAndScales(t *testing.T) {
	d := NewDropout(0.5)
	assert.Equal(t, 1, d.NumVisibleOutputs())
	assert.Len(t, d.ForwardResources(nil), 1)

	ctx := hostCtx()
	rnd := resource.NewManager(3).Request(resource.Context{}, resource.Request{Kind: resource.ParallelRandom})
	rnd.AllocStreams(1)
	ctx.Resources = []*resource.Resource{rnd}

	op, err := d.CreateOperator(ctx, []tensor.Shape{{64}}, []tensor.DataType{tensor.Float32})
	require.NoError(t, err)

	x := newBlob(t, tensor.Shape{64})
	for i := 0; i < 64; i++ {
		x.SetAt(i, 1)
	}
	out := newBlob(t, tensor.Shape{64})
	mask := newBlob(t, tensor.Shape{64})
	op.Forward(ctx, []*tensor.Blob{x}, Fill(WriteTo, 2), []*tensor.Blob{out, mask}, nil)

	dropped := 0
	for i := 0; i < 64; i++ {
		switch mask.At(i) {
		case 0:
			dropped++
			assert.Zero(t, out.At(i))
		case 2: // 1/(1-0.5)
			assert.InDelta(t, 2, out.At(i), 1e-6)
		default:
			t.Fatalf("mask[%d] = %v, want 0 or 2", i, mask.At(i))
		}
	}
	// With p=0.5 over 64 draws, both outcomes occur.
	assert.Greater(t, dropped, 0)
	assert.Less(t, dropped, 64)

	// Backward routes gradients through the mask.
	dy := newBlob(t, tensor.Shape{64})
	for i := 0; i < 64; i++ {
		dy.SetAt(i, 1)
	}
	dx := newBlob(t, tensor.Shape{64})
	op.Backward(ctx, []*tensor.Blob{dy}, []*tensor.Blob{x}, []*tensor.Blob{out, mask}, Fill(WriteTo, 1), []*tensor.Blob{dx}, nil)
	for i := 0; i < 64; i++ {
		assert.Equal(t, mask.At(i), dx.At(i))
	}
}

func TestDropoutInferenceIsIdentity(t *testing.T) {
	d := NewDropout(0.9)
	ctx := hostCtx()
	ctx.IsTrain = false

	op, err := d.CreateOperator(ctx, []tensor.Shape{{4}}, []tensor.DataType{tensor.Float32})
	require.NoError(t, err)

	x := newBlob(t, tensor.Shape{4}, 1, 2, 3, 4)
	out := newBlob(t, tensor.Shape{4})
	mask := newBlob(t, tensor.Shape{4})
	op.Forward(ctx, []*tensor.Blob{x}, Fill(WriteTo, 2), []*tensor.Blob{out, mask}, nil)

	for i := 0; i < 4; i++ {
		assert.Equal(t, x.At(i), out.At(i))
		assert.Equal(t, 1.0, mask.At(i))
	}
}

func TestDropoutRejectsBadProbability(t *testing.T) {
	_, err := NewDropout(1.5).CreateOperator(hostCtx(), []tensor.Shape{{4}}, []tensor.DataType{tensor.Float32})
	assert.Error(t, err)
}

func TestBatchNormDescriptor(t *testing.T) {
	bn := NewBatchNorm()
	assert.Equal(t, []string{"moving_mean", "moving_var"}, bn.ListAuxStates())
	assert.Equal(t, 1, bn.NumVisibleOutputs())

	out, aux, err := bn.InferShape([]tensor.Shape{{8, 3}, {3}, {3}})
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Len(t, aux, 2)
	assert.True(t, out[0].Equal(tensor.Shape{8, 3}))
	assert.True(t, out[1].Equal(tensor.Shape{3}))
	assert.True(t, aux[0].Equal(tensor.Shape{3}))

	_, _, err = bn.InferShape([]tensor.Shape{{8, 3}, {4}, {3}})
	assert.Error(t, err)
}

func TestEmbeddingDescriptorAndBackwardScratch(t *testing.T) {
	e := NewEmbedding(5, 2)
	out, _, err := e.InferShape([]tensor.Shape{{3}, {5, 2}})
	require.NoError(t, err)
	assert.True(t, out[0].Equal(tensor.Shape{3, 2}))

	require.Len(t, e.BackwardResources(nil), 1)
	assert.Equal(t, resource.TempSpace, e.BackwardResources(nil)[0].Kind)

	ctx := hostCtx()
	ctx.Resources = []*resource.Resource{
		resource.NewManager(1).Request(resource.Context{}, resource.Request{Kind: resource.TempSpace}),
	}
	op, err := e.CreateOperator(ctx, []tensor.Shape{{3}, {5, 2}}, []tensor.DataType{tensor.Float32, tensor.Float32})
	require.NoError(t, err)

	indices := newBlob(t, tensor.Shape{3}, 4, 4, 0)
	weight := newBlob(t, tensor.Shape{5, 2})
	dy := newBlob(t, tensor.Shape{3, 2}, 1, 2, 3, 4, 5, 6)
	dIdx := newBlob(t, tensor.Shape{3})
	dW := newBlob(t, tensor.Shape{5, 2})

	op.Backward(ctx, []*tensor.Blob{dy}, []*tensor.Blob{indices, weight}, nil,
		Fill(WriteTo, 2), []*tensor.Blob{dIdx, dW}, nil)

	// Row 4 hit twice: [1+3, 2+4]; row 0 once: [5, 6].
	assert.InDelta(t, 4, dW.At(8), 1e-6)
	assert.InDelta(t, 6, dW.At(9), 1e-6)
	assert.InDelta(t, 5, dW.At(0), 1e-6)
	assert.InDelta(t, 6, dW.At(1), 1e-6)
}

func TestL2NormForwardOnly(t *testing.T) {
	l := NewL2Norm()
	ctx := hostCtx()
	op, err := l.CreateOperator(ctx, []tensor.Shape{{2}}, []tensor.DataType{tensor.Float32})
	require.NoError(t, err)

	x := newBlob(t, tensor.Shape{2}, 3, 4)
	out := newBlob(t, tensor.Shape{1})
	op.Forward(ctx, []*tensor.Blob{x}, Fill(WriteTo, 1), []*tensor.Blob{out}, nil)
	assert.InDelta(t, 5, out.At(0), 1e-6)

	assert.Panics(t, func() {
		op.Backward(ctx, nil, nil, nil, nil, nil, nil)
	})
}
