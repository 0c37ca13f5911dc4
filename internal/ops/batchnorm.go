package ops

import (
	"fmt"

	"github.com/born-ml/opcheck/internal/backend/cpu"
	"github.com/born-ml/opcheck/internal/resource"
	"github.com/born-ml/opcheck/internal/tensor"
)

// BatchNorm describes per-channel batch normalization over [batch, channels]
// data. Saved batch statistics are hidden outputs consumed by the backward
// pass; the running statistics live in auxiliary states that persist across
// passes.
type BatchNorm struct {
	Eps      float64
	Momentum float64
}

// NewBatchNorm creates a batch normalization descriptor with the usual
// epsilon and momentum defaults.
func NewBatchNorm() *BatchNorm {
	return &BatchNorm{Eps: 1e-5, Momentum: 0.9}
}

func (bn *BatchNorm) Name() string            { return "BatchNorm" }
func (bn *BatchNorm) ListArguments() []string { return []string{"data", "gamma", "beta"} }
func (bn *BatchNorm) ListOutputs() []string   { return []string{"output", "mean", "var"} }
func (bn *BatchNorm) ListAuxStates() []string { return []string{"moving_mean", "moving_var"} }
func (bn *BatchNorm) NumVisibleOutputs() int  { return 1 }

func (bn *BatchNorm) InferShape(in []tensor.Shape) (out, aux []tensor.Shape, err error) {
	if len(in) != 3 {
		return nil, nil, fmt.Errorf("BatchNorm takes 3 inputs, got %d", len(in))
	}
	data := in[0]
	if len(data) != 2 {
		return nil, nil, fmt.Errorf("BatchNorm data must be [batch, channels], got %v", data)
	}
	channels := tensor.Shape{data[1]}
	if !in[1].Equal(channels) || !in[2].Equal(channels) {
		return nil, nil, fmt.Errorf("BatchNorm gamma and beta must be %v, got %v and %v", channels, in[1], in[2])
	}
	out = []tensor.Shape{data.Clone(), channels.Clone(), channels.Clone()}
	aux = []tensor.Shape{channels.Clone(), channels.Clone()}
	return out, aux, nil
}

func (bn *BatchNorm) InferType(in []tensor.DataType) (out, aux []tensor.DataType, err error) {
	if err := uniformType("BatchNorm", in); err != nil {
		return nil, nil, err
	}
	dt := in[0]
	return []tensor.DataType{dt, dt, dt}, []tensor.DataType{dt, dt}, nil
}

func (bn *BatchNorm) ForwardResources(in []tensor.Shape) []resource.Request  { return nil }
func (bn *BatchNorm) BackwardResources(in []tensor.Shape) []resource.Request { return nil }

func (bn *BatchNorm) CreateOperator(ctx *Context, in []tensor.Shape, dtypes []tensor.DataType) (Operator, error) {
	if dtypes[0] != tensor.Float32 && dtypes[0] != tensor.Float64 {
		return nil, fmt.Errorf("BatchNorm supports float32 and float64, got %s", dtypes[0])
	}
	if bn.Eps <= 0 {
		return nil, fmt.Errorf("BatchNorm epsilon must be positive, got %v", bn.Eps)
	}
	return &batchNormOp{eps: bn.Eps, momentum: bn.Momentum}, nil
}

type batchNormOp struct {
	eps      float64
	momentum float64
}

func (op *batchNormOp) Forward(ctx *Context, inputs []*tensor.Blob, req []WriteMode, outputs, aux []*tensor.Blob) {
	if !onHost(inputs) {
		panic("ops: BatchNorm has no device kernels")
	}
	cpu.BatchNormForward(inputs[0], inputs[1], inputs[2],
		outputs[0], outputs[1], outputs[2], aux[0], aux[1],
		op.eps, op.momentum, ctx.IsTrain, ctx.Parallel)
}

func (op *batchNormOp) Backward(ctx *Context, outGrad, inputs, outputs []*tensor.Blob, req []WriteMode, inGrad, aux []*tensor.Blob) {
	// Gradients flow only through the visible output; the saved statistics
	// come from the hidden forward outputs.
	cpu.BatchNormBackward(outGrad[0], inputs[0], inputs[1], outputs[1], outputs[2],
		inGrad[0], inGrad[1], inGrad[2], op.eps, req[0] == AddTo, ctx.Parallel)
}
