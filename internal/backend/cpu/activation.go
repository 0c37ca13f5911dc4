package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/opcheck/internal/parallel"
	"github.com/born-ml/opcheck/internal/tensor"
)

// Unary applies fn elementwise, reading x into y.
func Unary(x, y *tensor.Blob, fn func(float64) float64, cfg parallel.Config) {
	if x.NumElements() != y.NumElements() {
		panic(fmt.Sprintf("unary: %d elements in, %d out", x.NumElements(), y.NumElements()))
	}
	switch x.DType() {
	case tensor.Float32:
		unary(x.AsFloat32(), y.AsFloat32(), fn, cfg)
	case tensor.Float64:
		unary(x.AsFloat64(), y.AsFloat64(), fn, cfg)
	default:
		panic(fmt.Sprintf("unary: unsupported dtype %s", x.DType()))
	}
}

func unary[T tensor.DType](x, y []T, fn func(float64) float64, cfg parallel.Config) {
	parallel.For(len(x), func(i int) {
		y[i] = T(fn(float64(x[i])))
	}, cfg)
}

// UnaryGrad computes dx from dy and the forward output y:
// dx = dy * grad(y), where grad gives the activation derivative in terms of
// the activation's own output. With accumulate, dx is added to instead of set.
func UnaryGrad(dy, y, dx *tensor.Blob, grad func(float64) float64, accumulate bool, cfg parallel.Config) {
	switch dy.DType() {
	case tensor.Float32:
		unaryGrad(dy.AsFloat32(), y.AsFloat32(), dx.AsFloat32(), grad, accumulate, cfg)
	case tensor.Float64:
		unaryGrad(dy.AsFloat64(), y.AsFloat64(), dx.AsFloat64(), grad, accumulate, cfg)
	default:
		panic(fmt.Sprintf("unary: unsupported dtype %s", dy.DType()))
	}
}

func unaryGrad[T tensor.DType](dy, y, dx []T, grad func(float64) float64, accumulate bool, cfg parallel.Config) {
	parallel.For(len(dy), func(i int) {
		v := T(grad(float64(y[i]))) * dy[i]
		if accumulate {
			dx[i] += v
		} else {
			dx[i] = v
		}
	}, cfg)
}

// ReLU and its derivative, expressed on the forward output.
func ReLU(v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}

// ReLUGrad returns 1 where the activation output is positive.
func ReLUGrad(y float64) float64 {
	if y > 0 {
		return 1
	}
	return 0
}

// Sigmoid is the logistic function.
func Sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

// SigmoidGrad is the derivative in terms of the sigmoid output.
func SigmoidGrad(y float64) float64 {
	return y * (1 - y)
}

// Tanh is the hyperbolic tangent.
func Tanh(v float64) float64 {
	return math.Tanh(v)
}

// TanhGrad is the derivative in terms of the tanh output.
func TanhGrad(y float64) float64 {
	return 1 - y*y
}
