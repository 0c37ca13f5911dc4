// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package harness provides the public API for executing operators under test.
//
// An Executor owns every buffer one operator test case needs, drives the
// forward and backward passes on the chosen device, times them, and exposes
// the buffers for comparison and serialization. A Runner wraps the common
// flows: run, compare across backends, verify against stored values, and
// collect timing sweeps.
//
// Example:
//
//	r := harness.NewRunner[float32](ops.NewFullyConnected(64))
//	e := r.RunBidirectional(tensor.CPU, shapes, 10)
//	defer e.Release()
package harness

import (
	"github.com/born-ml/opcheck/internal/harness"
	"github.com/born-ml/opcheck/internal/ops"
	"github.com/born-ml/opcheck/internal/perf"
	"github.com/born-ml/opcheck/internal/tensor"
)

// Type aliases for public API

// Executor owns the five buffer groups of one operator test case and drives
// the operator over them.
type Executor[T tensor.DType] = harness.Executor[T]

// Runner wraps an executor with the common test flows.
type Runner[T tensor.DType] = harness.Runner[T]

// Config tunes executor construction beyond the device and input shapes.
type Config = harness.Config

// Role names one of the five buffer groups an executor owns.
type Role = harness.Role

// Buffer roles in canonical group order.
const (
	Input   Role = harness.Input
	Output  Role = harness.Output
	Aux     Role = harness.Aux
	InGrad  Role = harness.InGrad
	OutGrad Role = harness.OutGrad
)

// RoleCount is the number of buffer roles.
const RoleCount = harness.RoleCount

// SizeError reports a reload whose payload does not fit the target buffers.
type SizeError = harness.SizeError

// Tolerance bounds an elementwise comparison.
type Tolerance = harness.Tolerance

// Timing collects wall-clock samples per pass category.
type Timing = perf.Timing

// TimingStats summarizes one timing category.
type TimingStats = perf.Stats

// Construction

// New creates an executor on dev for the given input shapes with the default
// configuration.
func New[T tensor.DType](dev tensor.Device, inputShapes ...tensor.Shape) *Executor[T] {
	return harness.New[T](dev, inputShapes...)
}

// NewWith creates an executor with an explicit configuration.
func NewWith[T tensor.DType](dev tensor.Device, cfg Config, inputShapes ...tensor.Shape) *Executor[T] {
	return harness.NewWith[T](dev, cfg, inputShapes...)
}

// NewRunner creates a runner for the descriptor.
func NewRunner[T tensor.DType](d ops.Descriptor) *Runner[T] {
	return harness.NewRunner[T](d)
}

// DefaultConfig runs in training mode with a fixed fill seed.
func DefaultConfig() Config {
	return harness.DefaultConfig()
}

// NewTiming creates an empty timing collector.
func NewTiming() *Timing {
	return perf.New()
}

// Helpers

// Roles returns all roles in canonical order.
func Roles() []Role {
	return harness.Roles()
}

// ToleranceFor returns a tolerance suited to the element type's precision.
func ToleranceFor[T tensor.DType]() Tolerance {
	return harness.ToleranceFor[T]()
}

// CompareBlobs checks two blobs for equal shape, equal type and elementwise
// match within tol.
func CompareBlobs(a, b *tensor.Blob, tol Tolerance) error {
	return harness.CompareBlobs(a, b, tol)
}

// CompareExecutors checks the given roles of two executors elementwise.
func CompareExecutors[T tensor.DType](a, b *Executor[T], roles []Role, tol Tolerance) error {
	return harness.CompareExecutors(a, b, roles, tol)
}

// FillUniform fills a blob with reproducible uniform draws from seed.
func FillUniform(b *tensor.Blob, seed int64) {
	harness.FillUniform(b, seed)
}
