package ops

import (
	"fmt"

	"github.com/born-ml/opcheck/internal/backend/cpu"
	"github.com/born-ml/opcheck/internal/resource"
	"github.com/born-ml/opcheck/internal/tensor"
)

// FullyConnected describes a dense layer: output = data @ transpose(weight) + bias.
type FullyConnected struct {
	NumHidden int
	NoBias    bool
}

// NewFullyConnected creates a dense layer descriptor with numHidden units.
func NewFullyConnected(numHidden int) *FullyConnected {
	return &FullyConnected{NumHidden: numHidden}
}

func (fc *FullyConnected) Name() string { return "FullyConnected" }

func (fc *FullyConnected) ListArguments() []string {
	if fc.NoBias {
		return []string{"data", "weight"}
	}
	return []string{"data", "weight", "bias"}
}

func (fc *FullyConnected) ListOutputs() []string   { return []string{"output"} }
func (fc *FullyConnected) ListAuxStates() []string { return nil }
func (fc *FullyConnected) NumVisibleOutputs() int  { return 1 }

func (fc *FullyConnected) InferShape(in []tensor.Shape) (out, aux []tensor.Shape, err error) {
	if len(in) != len(fc.ListArguments()) {
		return nil, nil, fmt.Errorf("FullyConnected takes %d inputs, got %d", len(fc.ListArguments()), len(in))
	}
	data, weight := in[0], in[1]
	if len(data) != 2 {
		return nil, nil, fmt.Errorf("FullyConnected data must be [batch, features], got %v", data)
	}
	if !weight.Equal(tensor.Shape{fc.NumHidden, data[1]}) {
		return nil, nil, fmt.Errorf("FullyConnected weight must be [%d, %d], got %v", fc.NumHidden, data[1], weight)
	}
	if !fc.NoBias && !in[2].Equal(tensor.Shape{fc.NumHidden}) {
		return nil, nil, fmt.Errorf("FullyConnected bias must be [%d], got %v", fc.NumHidden, in[2])
	}
	return []tensor.Shape{{data[0], fc.NumHidden}}, nil, nil
}

func (fc *FullyConnected) InferType(in []tensor.DataType) (out, aux []tensor.DataType, err error) {
	if err := uniformType("FullyConnected", in); err != nil {
		return nil, nil, err
	}
	return []tensor.DataType{in[0]}, nil, nil
}

func (fc *FullyConnected) ForwardResources(in []tensor.Shape) []resource.Request  { return nil }
func (fc *FullyConnected) BackwardResources(in []tensor.Shape) []resource.Request { return nil }

func (fc *FullyConnected) CreateOperator(ctx *Context, in []tensor.Shape, dtypes []tensor.DataType) (Operator, error) {
	if dtypes[0] != tensor.Float32 && dtypes[0] != tensor.Float64 {
		return nil, fmt.Errorf("FullyConnected supports float32 and float64, got %s", dtypes[0])
	}
	return &fullyConnectedOp{noBias: fc.NoBias}, nil
}

type fullyConnectedOp struct {
	noBias bool
}

func (op *fullyConnectedOp) Forward(ctx *Context, inputs []*tensor.Blob, req []WriteMode, outputs, aux []*tensor.Blob) {
	if req[0] == NullOp {
		return
	}
	data, weight := inputs[0], inputs[1]
	var bias *tensor.Blob
	if !op.noBias {
		bias = inputs[2]
	}

	if onHost(inputs) {
		cpu.Linear(data, weight, bias, outputs[0], ctx.Parallel)
		return
	}

	checkF32("FullyConnected", inputs)
	k := deviceKernel[LinearKernel](ctx, "FullyConnected")
	var biasMem tensor.DeviceMemory
	if bias != nil {
		biasMem = bias.Memory()
	}
	batch, in := data.Shape()[0], data.Shape()[1]
	if err := k.LinearF32(data.Memory(), weight.Memory(), biasMem, outputs[0].Memory(),
		batch, in, weight.Shape()[0]); err != nil {
		panic(fmt.Sprintf("ops: FullyConnected forward on %s: %v", ctx.Device, err))
	}
}

func (op *fullyConnectedOp) Backward(ctx *Context, outGrad, inputs, outputs []*tensor.Blob, req []WriteMode, inGrad, aux []*tensor.Blob) {
	dy := outGrad[0]
	data, weight := inputs[0], inputs[1]
	dx, dw := inGrad[0], inGrad[1]
	var db *tensor.Blob
	if !op.noBias {
		db = inGrad[2]
	}

	if onHost(inputs) {
		cpu.LinearGrad(dy, data, weight, dx, dw, db, req[0] == AddTo, ctx.Parallel)
		return
	}

	checkF32("FullyConnected", inputs)
	k := deviceKernel[LinearGradKernel](ctx, "FullyConnected")
	var dbMem tensor.DeviceMemory
	if db != nil {
		dbMem = db.Memory()
	}
	batch, in := data.Shape()[0], data.Shape()[1]
	if err := k.LinearGradF32(dy.Memory(), data.Memory(), weight.Memory(),
		dx.Memory(), dw.Memory(), dbMem, batch, in, weight.Shape()[0]); err != nil {
		panic(fmt.Sprintf("ops: FullyConnected backward on %s: %v", ctx.Device, err))
	}
}

// uniformType checks that every input shares one data type.
func uniformType(op string, in []tensor.DataType) error {
	for _, dt := range in {
		if dt != in[0] {
			return fmt.Errorf("%s inputs must share one dtype, got %s and %s", op, in[0], dt)
		}
	}
	return nil
}
