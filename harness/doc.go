// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package harness executes operators for correctness and performance checks.
//
// # Overview
//
// The harness replays one operator over a fixed set of buffers, the way a
// unit test or a benchmark would:
//   - Executor: owns the five buffer groups of a test case (inputs, outputs,
//     auxiliary states, input gradients, output gradients), initializes the
//     operator lazily, and drives repeated forward and backward passes
//   - Runner: the common flows on top of an executor (run, compare two
//     backends, verify against stored values, timing sweeps)
//   - Dump/Load: Go-literal serialization of all buffers for baselines
//
// # Lifecycle
//
// An executor is cheap to construct; buffers and the operator come into
// existence on the first InitForward. InitBackward adds the gradient buffers
// and reports whether initialization had already happened. Forward and
// Backward replay the passes and record wall time per pass category.
//
//	e := harness.New[float32](tensor.CPU, tensor.Shape{2, 3}, tensor.Shape{4, 3}, tensor.Shape{4})
//	defer e.Release()
//	e.InitForward(fc, dtypes)
//	e.Forward(10)
//
// # Devices
//
// Buffers always live on the host. When the executor targets a device with a
// registered accelerator, each pass stages the buffers onto the device, runs
// the operator there, synchronizes, and copies results back. Targeting a
// device without an accelerator falls back to the host with a log line.
package harness
