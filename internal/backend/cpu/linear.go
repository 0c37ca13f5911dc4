// Package cpu implements the host kernels behind the reference operators.
// Every kernel dispatches on the blob's runtime data type into a generic
// implementation, and bounds its workers by the caller's parallel config.
package cpu

import (
	"fmt"

	"github.com/born-ml/opcheck/internal/parallel"
	"github.com/born-ml/opcheck/internal/tensor"
)

// Linear computes y = x @ transpose(w) + bias.
// x is [batch, in], w is [out, in], bias is [out] or nil, y is [batch, out].
func Linear(x, w, bias, y *tensor.Blob, cfg parallel.Config) {
	batch, in := x.Shape()[0], x.Shape()[1]
	out := w.Shape()[0]
	if w.Shape()[1] != in || y.Shape()[0] != batch || y.Shape()[1] != out {
		panic(fmt.Sprintf("linear: shape mismatch x=%v w=%v y=%v", x.Shape(), w.Shape(), y.Shape()))
	}

	switch x.DType() {
	case tensor.Float32:
		var b []float32
		if bias != nil {
			b = bias.AsFloat32()
		}
		linear(x.AsFloat32(), w.AsFloat32(), b, y.AsFloat32(), batch, in, out, cfg)
	case tensor.Float64:
		var b []float64
		if bias != nil {
			b = bias.AsFloat64()
		}
		linear(x.AsFloat64(), w.AsFloat64(), b, y.AsFloat64(), batch, in, out, cfg)
	default:
		panic(fmt.Sprintf("linear: unsupported dtype %s", x.DType()))
	}
}

func linear[T tensor.DType](x, w, bias, y []T, batch, in, out int, cfg parallel.Config) {
	parallel.For(batch, func(row int) {
		for o := 0; o < out; o++ {
			sum := T(0)
			for i := 0; i < in; i++ {
				sum += x[row*in+i] * w[o*in+i]
			}
			if bias != nil {
				sum += bias[o]
			}
			y[row*out+o] = sum
		}
	}, cfg)
}

// LinearGrad computes the fully connected gradients:
// dx = dy @ w, dw = transpose(dy) @ x, db = column sums of dy.
// db may be nil for bias-free layers. With accumulate the gradients are added
// to the targets instead of overwriting them.
func LinearGrad(dy, x, w, dx, dw, db *tensor.Blob, accumulate bool, cfg parallel.Config) {
	batch, in := x.Shape()[0], x.Shape()[1]
	out := w.Shape()[0]

	switch x.DType() {
	case tensor.Float32:
		var b []float32
		if db != nil {
			b = db.AsFloat32()
		}
		linearGrad(dy.AsFloat32(), x.AsFloat32(), w.AsFloat32(),
			dx.AsFloat32(), dw.AsFloat32(), b, batch, in, out, accumulate, cfg)
	case tensor.Float64:
		var b []float64
		if db != nil {
			b = db.AsFloat64()
		}
		linearGrad(dy.AsFloat64(), x.AsFloat64(), w.AsFloat64(),
			dx.AsFloat64(), dw.AsFloat64(), b, batch, in, out, accumulate, cfg)
	default:
		panic(fmt.Sprintf("linear: unsupported dtype %s", x.DType()))
	}
}

func linearGrad[T tensor.DType](dy, x, w, dx, dw, db []T, batch, in, out int, accumulate bool, cfg parallel.Config) {
	parallel.For(batch, func(row int) {
		for i := 0; i < in; i++ {
			sum := T(0)
			for o := 0; o < out; o++ {
				sum += dy[row*out+o] * w[o*in+i]
			}
			if accumulate {
				dx[row*in+i] += sum
			} else {
				dx[row*in+i] = sum
			}
		}
	}, cfg)

	parallel.For(out, func(o int) {
		for i := 0; i < in; i++ {
			sum := T(0)
			for row := 0; row < batch; row++ {
				sum += dy[row*out+o] * x[row*in+i]
			}
			if accumulate {
				dw[o*in+i] += sum
			} else {
				dw[o*in+i] = sum
			}
		}
		if db != nil {
			sum := T(0)
			for row := 0; row < batch; row++ {
				sum += dy[row*out+o]
			}
			if accumulate {
				db[o] += sum
			} else {
				db[o] = sum
			}
		}
	}, cfg)
}
