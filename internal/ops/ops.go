// Package ops defines the operator contract the harness executes against:
// descriptors that declare an operator's signature and resource needs, and
// operators that run the forward and backward passes on blobs.
package ops

import (
	"fmt"

	"github.com/born-ml/opcheck/internal/parallel"
	"github.com/born-ml/opcheck/internal/resource"
	"github.com/born-ml/opcheck/internal/tensor"
)

// WriteMode tells a kernel how to combine its result with the target blob.
type WriteMode int

// Supported write modes.
const (
	WriteTo WriteMode = iota
	WriteInplace
	AddTo
	NullOp
)

// String returns a human-readable mode name.
func (m WriteMode) String() string {
	switch m {
	case WriteTo:
		return "WriteTo"
	case WriteInplace:
		return "WriteInplace"
	case AddTo:
		return "AddTo"
	case NullOp:
		return "NullOp"
	default:
		return fmt.Sprintf("WriteMode(%d)", int(m))
	}
}

// Fill returns n copies of mode, one per target blob.
func Fill(mode WriteMode, n int) []WriteMode {
	req := make([]WriteMode, n)
	for i := range req {
		req[i] = mode
	}
	return req
}

// Context carries per-execution state into an operator: where it runs,
// whether it runs in training mode, and the resources bound for it.
type Context struct {
	Device  tensor.Device
	Index   int
	IsTrain bool

	// Resources holds the handles granted for the pass about to run, in the
	// order the descriptor requested them.
	Resources []*resource.Resource

	// Parallel bounds the workers CPU kernels may spawn.
	Parallel parallel.Config
}

// Resource returns the first bound handle of the given kind.
// Panics if the operator never requested one.
func (c *Context) Resource(kind resource.Kind) *resource.Resource {
	for _, r := range c.Resources {
		if r.Kind() == kind {
			return r
		}
	}
	panic(fmt.Sprintf("ops: no %s resource bound", kind))
}

// Accelerator returns the accelerator serving the context's device.
// Panics for host contexts.
func (c *Context) Accelerator() tensor.Accelerator {
	acc, ok := tensor.AcceleratorFor(c.Device)
	if !ok {
		panic(fmt.Sprintf("ops: no accelerator registered for device %s", c.Device))
	}
	return acc
}

// Descriptor declares an operator's signature: its named inputs, outputs and
// auxiliary states, how output shapes and types derive from input shapes and
// types, and which resources each pass needs.
type Descriptor interface {
	Name() string

	ListArguments() []string
	ListOutputs() []string
	ListAuxStates() []string

	// NumVisibleOutputs returns how many leading outputs are visible to
	// consumers. Hidden trailing outputs (masks, saved statistics) exist for
	// the backward pass only and receive no gradient.
	NumVisibleOutputs() int

	InferShape(in []tensor.Shape) (out, aux []tensor.Shape, err error)
	InferType(in []tensor.DataType) (out, aux []tensor.DataType, err error)

	ForwardResources(in []tensor.Shape) []resource.Request
	BackwardResources(in []tensor.Shape) []resource.Request

	CreateOperator(ctx *Context, in []tensor.Shape, dtypes []tensor.DataType) (Operator, error)
}

// BackwardSupport is implemented by descriptors of forward-only operators.
// Descriptors that do not implement it support a backward pass.
type BackwardSupport interface {
	HasBackward() bool
}

// HasBackward reports whether a descriptor's operator has a backward pass.
func HasBackward(d Descriptor) bool {
	if bs, ok := d.(BackwardSupport); ok {
		return bs.HasBackward()
	}
	return true
}

// Operator runs the passes on blobs that all live on ctx's device. req holds
// one WriteMode per target blob: outputs for Forward, input gradients for
// Backward.
type Operator interface {
	Forward(ctx *Context, inputs []*tensor.Blob, req []WriteMode, outputs, aux []*tensor.Blob)
	Backward(ctx *Context, outGrad, inputs, outputs []*tensor.Blob, req []WriteMode, inGrad, aux []*tensor.Blob)
}

// LinearKernel is implemented by accelerators that can run the fully
// connected forward pass on device memory: y = x @ transpose(w) + b.
type LinearKernel interface {
	LinearF32(x, w, bias, y tensor.DeviceMemory, batch, inDim, outDim int) error
}

// LinearGradKernel is implemented by accelerators that can run the fully
// connected backward pass on device memory.
type LinearGradKernel interface {
	LinearGradF32(dy, x, w, dx, dw, db tensor.DeviceMemory, batch, inDim, outDim int) error
}

// ReLUKernel is implemented by accelerators that can run rectified linear
// activation on device memory. The gradient is taken against the forward
// output y.
type ReLUKernel interface {
	ReLUF32(x, y tensor.DeviceMemory, n int) error
	ReLUGradF32(dy, y, dx tensor.DeviceMemory, n int) error
}

// deviceKernel resolves the accelerator behind ctx and asserts it provides
// kernel capability K. Panics when the device cannot run the operator.
func deviceKernel[K any](ctx *Context, op string) K {
	k, ok := ctx.Accelerator().(K)
	if !ok {
		panic(fmt.Sprintf("ops: %s: accelerator %s lacks the required kernels",
			op, ctx.Accelerator().Name()))
	}
	return k
}

// checkF32 rejects device execution for element types the accelerator
// kernels cannot represent.
func checkF32(op string, blobs []*tensor.Blob) {
	for _, b := range blobs {
		if b.DType() != tensor.Float32 {
			panic(fmt.Sprintf("ops: %s: device kernels support float32 only, got %s", op, b.DType()))
		}
	}
}

// onHost reports whether the pass runs on host memory.
func onHost(blobs []*tensor.Blob) bool {
	return len(blobs) == 0 || blobs[0].Device() == tensor.CPU
}
