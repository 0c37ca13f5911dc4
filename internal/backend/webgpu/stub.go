//go:build !windows

// Package webgpu runs operator kernels on the GPU through WebGPU.
//
// This build has no WebGPU support; Register reports it unavailable and the
// harness keeps running operators on the host.
package webgpu

import "errors"

// Backend is a placeholder on platforms without WebGPU support.
type Backend struct{}

// Register reports that WebGPU is not available in this build.
func Register() (*Backend, error) {
	return nil, errors.New("webgpu: not available on this platform")
}

// Name identifies the placeholder backend.
func (b *Backend) Name() string { return "WebGPU (unavailable)" }

// Release is a no-op.
func (b *Backend) Release() {}

// IsAvailable always reports false in this build.
func IsAvailable() bool { return false }
