package ops

import (
	"fmt"

	"github.com/born-ml/opcheck/internal/backend/cpu"
	"github.com/born-ml/opcheck/internal/resource"
	"github.com/born-ml/opcheck/internal/tensor"
)

// Embedding describes a table lookup: each float-encoded id in data selects a
// row of weight. The backward pass scatter-adds into the weight gradient and
// requests temp space so repeated row hits accumulate in double precision.
type Embedding struct {
	InputDim  int // vocabulary size
	OutputDim int // embedding width
}

// NewEmbedding creates an embedding descriptor for a vocab x dim table.
func NewEmbedding(vocab, dim int) *Embedding {
	return &Embedding{InputDim: vocab, OutputDim: dim}
}

func (e *Embedding) Name() string            { return "Embedding" }
func (e *Embedding) ListArguments() []string { return []string{"data", "weight"} }
func (e *Embedding) ListOutputs() []string   { return []string{"output"} }
func (e *Embedding) ListAuxStates() []string { return nil }
func (e *Embedding) NumVisibleOutputs() int  { return 1 }

func (e *Embedding) InferShape(in []tensor.Shape) (out, aux []tensor.Shape, err error) {
	if len(in) != 2 {
		return nil, nil, fmt.Errorf("Embedding takes 2 inputs, got %d", len(in))
	}
	if len(in[0]) != 1 {
		return nil, nil, fmt.Errorf("Embedding data must be [batch], got %v", in[0])
	}
	if !in[1].Equal(tensor.Shape{e.InputDim, e.OutputDim}) {
		return nil, nil, fmt.Errorf("Embedding weight must be [%d, %d], got %v", e.InputDim, e.OutputDim, in[1])
	}
	return []tensor.Shape{{in[0][0], e.OutputDim}}, nil, nil
}

func (e *Embedding) InferType(in []tensor.DataType) (out, aux []tensor.DataType, err error) {
	if err := uniformType("Embedding", in); err != nil {
		return nil, nil, err
	}
	return []tensor.DataType{in[0]}, nil, nil
}

func (e *Embedding) ForwardResources(in []tensor.Shape) []resource.Request { return nil }

func (e *Embedding) BackwardResources(in []tensor.Shape) []resource.Request {
	return []resource.Request{{Kind: resource.TempSpace}}
}

func (e *Embedding) CreateOperator(ctx *Context, in []tensor.Shape, dtypes []tensor.DataType) (Operator, error) {
	if e.InputDim <= 0 || e.OutputDim <= 0 {
		return nil, fmt.Errorf("Embedding dimensions must be positive, got %dx%d", e.InputDim, e.OutputDim)
	}
	return &embeddingOp{vocab: e.InputDim, dim: e.OutputDim}, nil
}

type embeddingOp struct {
	vocab, dim int
}

func (op *embeddingOp) Forward(ctx *Context, inputs []*tensor.Blob, req []WriteMode, outputs, aux []*tensor.Blob) {
	if !onHost(inputs) {
		panic("ops: Embedding has no device kernels")
	}
	cpu.EmbeddingForward(inputs[0], inputs[1], outputs[0], ctx.Parallel)
}

func (op *embeddingOp) Backward(ctx *Context, outGrad, inputs, outputs []*tensor.Blob, req []WriteMode, inGrad, aux []*tensor.Blob) {
	scratch := ctx.Resource(resource.TempSpace).SpaceFloat64(op.vocab * op.dim)
	cpu.EmbeddingBackward(outGrad[0], inputs[0], inGrad[1], inGrad[0], scratch, req[1] == AddTo)
}
