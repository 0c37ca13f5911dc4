package ops

import (
	"fmt"

	"github.com/born-ml/opcheck/internal/backend/cpu"
	"github.com/born-ml/opcheck/internal/resource"
	"github.com/born-ml/opcheck/internal/tensor"
)

// L2Norm reduces its input to a single Euclidean norm. It is forward-only:
// HasBackward reports false and Backward must never be called.
type L2Norm struct{}

// NewL2Norm creates an L2 norm descriptor.
func NewL2Norm() *L2Norm { return &L2Norm{} }

func (l *L2Norm) Name() string            { return "L2Norm" }
func (l *L2Norm) ListArguments() []string { return []string{"data"} }
func (l *L2Norm) ListOutputs() []string   { return []string{"norm"} }
func (l *L2Norm) ListAuxStates() []string { return nil }
func (l *L2Norm) NumVisibleOutputs() int  { return 1 }
func (l *L2Norm) HasBackward() bool       { return false }

func (l *L2Norm) InferShape(in []tensor.Shape) (out, aux []tensor.Shape, err error) {
	if len(in) != 1 {
		return nil, nil, fmt.Errorf("L2Norm takes 1 input, got %d", len(in))
	}
	return []tensor.Shape{{1}}, nil, nil
}

func (l *L2Norm) InferType(in []tensor.DataType) (out, aux []tensor.DataType, err error) {
	return []tensor.DataType{in[0]}, nil, nil
}

func (l *L2Norm) ForwardResources(in []tensor.Shape) []resource.Request  { return nil }
func (l *L2Norm) BackwardResources(in []tensor.Shape) []resource.Request { return nil }

func (l *L2Norm) CreateOperator(ctx *Context, in []tensor.Shape, dtypes []tensor.DataType) (Operator, error) {
	return &l2normOp{}, nil
}

type l2normOp struct{}

func (op *l2normOp) Forward(ctx *Context, inputs []*tensor.Blob, req []WriteMode, outputs, aux []*tensor.Blob) {
	if !onHost(inputs) {
		panic("ops: L2Norm has no device kernels")
	}
	cpu.L2Norm(inputs[0], outputs[0])
}

func (op *l2normOp) Backward(ctx *Context, outGrad, inputs, outputs []*tensor.Blob, req []WriteMode, inGrad, aux []*tensor.Blob) {
	panic("ops: L2Norm has no backward pass")
}
