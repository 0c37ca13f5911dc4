package ops

import (
	"fmt"

	"github.com/born-ml/opcheck/internal/parallel"
	"github.com/born-ml/opcheck/internal/resource"
	"github.com/born-ml/opcheck/internal/tensor"
)

// Dropout describes inverted dropout: in training mode each element survives
// with probability 1-P and is scaled by 1/(1-P); in inference mode the input
// passes through unchanged. The survival mask is a second, hidden output so
// the backward pass can reuse the exact draws.
type Dropout struct {
	P float64
}

// NewDropout creates a dropout descriptor with drop probability p.
func NewDropout(p float64) *Dropout {
	return &Dropout{P: p}
}

func (d *Dropout) Name() string            { return "Dropout" }
func (d *Dropout) ListArguments() []string { return []string{"data"} }
func (d *Dropout) ListOutputs() []string   { return []string{"output", "mask"} }
func (d *Dropout) ListAuxStates() []string { return nil }
func (d *Dropout) NumVisibleOutputs() int  { return 1 }

func (d *Dropout) InferShape(in []tensor.Shape) (out, aux []tensor.Shape, err error) {
	if len(in) != 1 {
		return nil, nil, fmt.Errorf("Dropout takes 1 input, got %d", len(in))
	}
	return []tensor.Shape{in[0].Clone(), in[0].Clone()}, nil, nil
}

func (d *Dropout) InferType(in []tensor.DataType) (out, aux []tensor.DataType, err error) {
	return []tensor.DataType{in[0], in[0]}, nil, nil
}

func (d *Dropout) ForwardResources(in []tensor.Shape) []resource.Request {
	return []resource.Request{{Kind: resource.ParallelRandom}}
}

func (d *Dropout) BackwardResources(in []tensor.Shape) []resource.Request { return nil }

func (d *Dropout) CreateOperator(ctx *Context, in []tensor.Shape, dtypes []tensor.DataType) (Operator, error) {
	if d.P < 0 || d.P >= 1 {
		return nil, fmt.Errorf("Dropout probability must be in [0, 1), got %v", d.P)
	}
	return &dropoutOp{p: d.P}, nil
}

type dropoutOp struct {
	p float64
}

func (op *dropoutOp) Forward(ctx *Context, inputs []*tensor.Blob, req []WriteMode, outputs, aux []*tensor.Blob) {
	if !onHost(inputs) {
		panic("ops: Dropout has no device kernels")
	}
	data, out, mask := inputs[0], outputs[0], outputs[1]
	n := data.NumElements()

	if !ctx.IsTrain || op.p == 0 {
		// Identity pass-through; mask records full survival.
		parallel.For(n, func(i int) {
			out.SetAt(i, data.At(i))
			mask.SetAt(i, 1)
		}, ctx.Parallel)
		return
	}

	rnd := ctx.Resource(resource.ParallelRandom)
	if rnd.Streams() == 0 {
		panic("ops: Dropout bound a ParallelRandom handle without streams")
	}
	scale := 1 / (1 - op.p)
	parallel.ForWorker(n, func(w, i int) {
		if rnd.Stream(w).Float64() < op.p {
			mask.SetAt(i, 0)
			out.SetAt(i, 0)
		} else {
			mask.SetAt(i, scale)
			out.SetAt(i, data.At(i)*scale)
		}
	}, ctx.Parallel)
}

func (op *dropoutOp) Backward(ctx *Context, outGrad, inputs, outputs []*tensor.Blob, req []WriteMode, inGrad, aux []*tensor.Blob) {
	if req[0] == NullOp {
		return
	}
	// The mask output already carries the survival scaling.
	dy, mask, dx := outGrad[0], outputs[1], inGrad[0]
	parallel.For(dx.NumElements(), func(i int) {
		v := dy.At(i) * mask.At(i)
		if req[0] == AddTo {
			dx.SetAt(i, dx.At(i)+v)
		} else {
			dx.SetAt(i, v)
		}
	}, ctx.Parallel)
}
