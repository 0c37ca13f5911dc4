// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu exposes the WebGPU accelerator backend.
//
// On platforms with wgpu-native support, Register creates the backend and
// makes it available to the harness under tensor.WebGPU; elsewhere Register
// reports that WebGPU is unavailable and the harness keeps running on the
// host.
//
//	if b, err := webgpu.Register(); err == nil {
//	    defer b.Release()
//	}
package webgpu

import (
	internalwebgpu "github.com/born-ml/opcheck/internal/backend/webgpu"
)

// Backend is the WebGPU accelerator.
type Backend = internalwebgpu.Backend

// Register creates the WebGPU backend and registers it as the accelerator
// for tensor.WebGPU. The caller owns the returned backend and must Release
// it when done.
func Register() (*Backend, error) {
	return internalwebgpu.Register()
}

// IsAvailable reports whether WebGPU can be used in this build and on this
// machine.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
