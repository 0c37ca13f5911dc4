package ops

import (
	"fmt"

	"github.com/born-ml/opcheck/internal/backend/cpu"
	"github.com/born-ml/opcheck/internal/resource"
	"github.com/born-ml/opcheck/internal/tensor"
)

// ActKind selects the activation function.
type ActKind int

// Supported activations.
const (
	ReLU ActKind = iota
	Sigmoid
	Tanh
)

// String returns the activation's name.
func (k ActKind) String() string {
	switch k {
	case ReLU:
		return "relu"
	case Sigmoid:
		return "sigmoid"
	case Tanh:
		return "tanh"
	default:
		return fmt.Sprintf("ActKind(%d)", int(k))
	}
}

// Activation describes an elementwise activation. The backward pass derives
// the gradient from the forward output, so only the output needs to be kept.
type Activation struct {
	Kind ActKind
}

// NewActivation creates an activation descriptor.
func NewActivation(kind ActKind) *Activation {
	return &Activation{Kind: kind}
}

func (a *Activation) Name() string            { return "Activation(" + a.Kind.String() + ")" }
func (a *Activation) ListArguments() []string { return []string{"data"} }
func (a *Activation) ListOutputs() []string   { return []string{"output"} }
func (a *Activation) ListAuxStates() []string { return nil }
func (a *Activation) NumVisibleOutputs() int  { return 1 }

func (a *Activation) InferShape(in []tensor.Shape) (out, aux []tensor.Shape, err error) {
	if len(in) != 1 {
		return nil, nil, fmt.Errorf("Activation takes 1 input, got %d", len(in))
	}
	return []tensor.Shape{in[0].Clone()}, nil, nil
}

func (a *Activation) InferType(in []tensor.DataType) (out, aux []tensor.DataType, err error) {
	return []tensor.DataType{in[0]}, nil, nil
}

func (a *Activation) ForwardResources(in []tensor.Shape) []resource.Request  { return nil }
func (a *Activation) BackwardResources(in []tensor.Shape) []resource.Request { return nil }

func (a *Activation) CreateOperator(ctx *Context, in []tensor.Shape, dtypes []tensor.DataType) (Operator, error) {
	if dtypes[0] != tensor.Float32 && dtypes[0] != tensor.Float64 {
		return nil, fmt.Errorf("Activation supports float32 and float64, got %s", dtypes[0])
	}
	return &activationOp{kind: a.Kind}, nil
}

type activationOp struct {
	kind ActKind
}

func (op *activationOp) fns() (fn, grad func(float64) float64) {
	switch op.kind {
	case ReLU:
		return cpu.ReLU, cpu.ReLUGrad
	case Sigmoid:
		return cpu.Sigmoid, cpu.SigmoidGrad
	case Tanh:
		return cpu.Tanh, cpu.TanhGrad
	default:
		panic(fmt.Sprintf("ops: unknown activation %s", op.kind))
	}
}

func (op *activationOp) Forward(ctx *Context, inputs []*tensor.Blob, req []WriteMode, outputs, aux []*tensor.Blob) {
	if req[0] == NullOp {
		return
	}

	if onHost(inputs) {
		fn, _ := op.fns()
		cpu.Unary(inputs[0], outputs[0], fn, ctx.Parallel)
		return
	}

	if op.kind != ReLU {
		panic(fmt.Sprintf("ops: activation %s has no device kernel", op.kind))
	}
	checkF32("Activation", inputs)
	k := deviceKernel[ReLUKernel](ctx, "Activation")
	if err := k.ReLUF32(inputs[0].Memory(), outputs[0].Memory(), inputs[0].NumElements()); err != nil {
		panic(fmt.Sprintf("ops: Activation forward on %s: %v", ctx.Device, err))
	}
}

func (op *activationOp) Backward(ctx *Context, outGrad, inputs, outputs []*tensor.Blob, req []WriteMode, inGrad, aux []*tensor.Blob) {
	if req[0] == NullOp {
		return
	}

	if onHost(inputs) {
		_, grad := op.fns()
		cpu.UnaryGrad(outGrad[0], outputs[0], inGrad[0], grad, req[0] == AddTo, ctx.Parallel)
		return
	}

	if op.kind != ReLU {
		panic(fmt.Sprintf("ops: activation %s has no device kernel", op.kind))
	}
	checkF32("Activation", inputs)
	k := deviceKernel[ReLUKernel](ctx, "Activation")
	if err := k.ReLUGradF32(outGrad[0].Memory(), outputs[0].Memory(), inGrad[0].Memory(),
		outputs[0].NumElements()); err != nil {
		panic(fmt.Sprintf("ops: Activation backward on %s: %v", ctx.Device, err))
	}
}
