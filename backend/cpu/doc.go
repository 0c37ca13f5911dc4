// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go host kernels behind the built-in
// operators.
//
// # Overview
//
// These kernels are the reference implementations every device backend is
// checked against. They run on host blobs and parallelize across rows with a
// bounded worker pool. Matrix products accumulate in the blob's element type;
// normalization statistics and scalar reductions run in double precision.
//
// The harness reaches these kernels through the operator descriptors; this
// package exposes them directly for callers that want to compute on blobs
// without an executor:
//
//	cpu.Linear(x, w, bias, y)
//	cpu.Unary(x, y, cpu.ReLU)
package cpu
