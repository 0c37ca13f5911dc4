// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/opcheck/internal/backend/cpu"
	"github.com/born-ml/opcheck/internal/parallel"
	"github.com/born-ml/opcheck/tensor"
)

// Linear computes y = x @ transpose(w) + bias on host blobs. bias may be nil.
func Linear(x, w, bias, y *tensor.Blob) {
	internalcpu.Linear(x, w, bias, y, parallel.DefaultConfig())
}

// LinearGrad computes the dense layer gradients dx, dw and db from dy. db may
// be nil when the layer has no bias. With accumulate the gradients are added
// to the targets instead of overwriting them.
func LinearGrad(dy, x, w, dx, dw, db *tensor.Blob, accumulate bool) {
	internalcpu.LinearGrad(dy, x, w, dx, dw, db, accumulate, parallel.DefaultConfig())
}

// Unary applies fn elementwise.
func Unary(x, y *tensor.Blob, fn func(float64) float64) {
	internalcpu.Unary(x, y, fn, parallel.DefaultConfig())
}

// UnaryGrad computes dx = dy * grad(y) elementwise, where grad is the
// activation derivative expressed on the forward output.
func UnaryGrad(dy, y, dx *tensor.Blob, grad func(float64) float64, accumulate bool) {
	internalcpu.UnaryGrad(dy, y, dx, grad, accumulate, parallel.DefaultConfig())
}

// Scalar activation functions and their derivatives, usable with Unary and
// UnaryGrad.
var (
	ReLU        = internalcpu.ReLU
	ReLUGrad    = internalcpu.ReLUGrad
	Sigmoid     = internalcpu.Sigmoid
	SigmoidGrad = internalcpu.SigmoidGrad
	Tanh        = internalcpu.Tanh
	TanhGrad    = internalcpu.TanhGrad
)

// L2Norm reduces x to its Euclidean norm. out is a single-element blob.
func L2Norm(x, out *tensor.Blob) {
	internalcpu.L2Norm(x, out)
}

// BatchNormForward normalizes x per channel over [batch, channels] data.
func BatchNormForward(x, gamma, beta, out, mean, variance, runningMean, runningVar *tensor.Blob,
	eps, momentum float64, train bool) {
	internalcpu.BatchNormForward(x, gamma, beta, out, mean, variance, runningMean, runningVar,
		eps, momentum, train, parallel.DefaultConfig())
}

// BatchNormBackward computes training-mode gradients from the saved batch
// statistics.
func BatchNormBackward(dy, x, gamma, mean, variance, dx, dgamma, dbeta *tensor.Blob,
	eps float64, accumulate bool) {
	internalcpu.BatchNormBackward(dy, x, gamma, mean, variance, dx, dgamma, dbeta,
		eps, accumulate, parallel.DefaultConfig())
}

// EmbeddingForward gathers weight rows selected by the float-encoded ids in
// indices.
func EmbeddingForward(indices, weight, out *tensor.Blob) {
	internalcpu.EmbeddingForward(indices, weight, out, parallel.DefaultConfig())
}

// EmbeddingBackward scatter-adds dy rows into dWeight. scratch must hold one
// float64 per weight element so repeated row hits accumulate in double
// precision; dIndices receives zeros.
func EmbeddingBackward(dy, indices, dWeight, dIndices *tensor.Blob, scratch []float64, accumulate bool) {
	internalcpu.EmbeddingBackward(dy, indices, dWeight, dIndices, scratch, accumulate)
}
