// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ops provides the public operator contract for the check harness.
//
// A Descriptor declares an operator's signature (named inputs, outputs and
// auxiliary states), how output shapes and types derive from inputs, and the
// resources each pass needs. An Operator runs the forward and backward passes
// on blobs. The package ships descriptors for the built-in operators:
//
//	fc := ops.NewFullyConnected(64)
//	act := ops.NewActivation(ops.ReLU)
//	drop := ops.NewDropout(0.25)
package ops

import (
	"github.com/born-ml/opcheck/internal/ops"
)

// Type aliases for public API

// Descriptor declares an operator's signature and resource needs.
type Descriptor = ops.Descriptor

// Operator runs forward and backward passes on blobs.
type Operator = ops.Operator

// Context carries per-execution state into an operator.
type Context = ops.Context

// BackwardSupport is implemented by descriptors of forward-only operators.
type BackwardSupport = ops.BackwardSupport

// WriteMode tells a kernel how to combine its result with the target blob.
type WriteMode = ops.WriteMode

// Write mode constants.
const (
	WriteTo      WriteMode = ops.WriteTo
	WriteInplace WriteMode = ops.WriteInplace
	AddTo        WriteMode = ops.AddTo
	NullOp       WriteMode = ops.NullOp
)

// ActKind selects the activation function.
type ActKind = ops.ActKind

// Activation constants.
const (
	ReLU    ActKind = ops.ReLU
	Sigmoid ActKind = ops.Sigmoid
	Tanh    ActKind = ops.Tanh
)

// Built-in operator descriptors.
type (
	// FullyConnected describes a dense layer: output = data @ transpose(weight) + bias.
	FullyConnected = ops.FullyConnected
	// Activation describes an elementwise activation.
	Activation = ops.Activation
	// Dropout describes inverted dropout with a hidden survival mask output.
	Dropout = ops.Dropout
	// BatchNorm describes per-channel batch normalization with running statistics.
	BatchNorm = ops.BatchNorm
	// Embedding describes a table lookup from float-encoded row ids.
	Embedding = ops.Embedding
	// L2Norm describes the forward-only Euclidean norm reduction.
	L2Norm = ops.L2Norm
)

// Accelerator kernel capabilities.
type (
	// LinearKernel runs the dense forward pass on device memory.
	LinearKernel = ops.LinearKernel
	// LinearGradKernel runs the dense backward pass on device memory.
	LinearGradKernel = ops.LinearGradKernel
	// ReLUKernel runs rectified linear activation on device memory.
	ReLUKernel = ops.ReLUKernel
)

// Constructors

// NewFullyConnected creates a dense layer descriptor with numHidden units.
func NewFullyConnected(numHidden int) *FullyConnected {
	return ops.NewFullyConnected(numHidden)
}

// NewActivation creates an activation descriptor.
func NewActivation(kind ActKind) *Activation {
	return ops.NewActivation(kind)
}

// NewDropout creates a dropout descriptor with drop probability p.
func NewDropout(p float64) *Dropout {
	return ops.NewDropout(p)
}

// NewBatchNorm creates a batch normalization descriptor with default
// epsilon and momentum.
func NewBatchNorm() *BatchNorm {
	return ops.NewBatchNorm()
}

// NewEmbedding creates an embedding descriptor for a vocab x dim table.
func NewEmbedding(vocab, dim int) *Embedding {
	return ops.NewEmbedding(vocab, dim)
}

// NewL2Norm creates the forward-only L2 norm descriptor.
func NewL2Norm() *L2Norm {
	return ops.NewL2Norm()
}

// Helpers

// HasBackward reports whether a descriptor's operator has a backward pass.
func HasBackward(d Descriptor) bool {
	return ops.HasBackward(d)
}

// Fill returns n copies of mode, one per target blob.
func Fill(mode WriteMode, n int) []WriteMode {
	return ops.Fill(mode, n)
}
