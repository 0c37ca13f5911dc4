// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for the typed, shaped buffers the
// operator check harness allocates and compares.
//
// The package defines the core data types:
//   - Blob: a typed, shaped numeric buffer on a single device
//   - Arena: a release-together allocator for a batch of blobs
//   - Accelerator: the interface device backends register to receive staged blobs
//   - Shape, DataType, Device: core type definitions
//
// Example:
//
//	blob, err := tensor.NewBlob(tensor.Shape{2, 3}, tensor.Float32)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	data := blob.AsFloat32()
package tensor

import (
	"github.com/born-ml/opcheck/internal/tensor"
)

// Type aliases for public API

// DType is a constraint for blob fill and comparison element types.
// Supported types: float32, float64.
type DType = tensor.DType

// DataType represents the underlying element type of a blob.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Float16 DataType = tensor.Float16
	Int32   DataType = tensor.Int32
)

// Device identifies where a blob's memory lives.
type Device = tensor.Device

// Device constants.
const (
	CPU    Device = tensor.CPU
	WebGPU Device = tensor.WebGPU
)

// Shape represents the dimensions of a blob.
// Example: Shape{2, 3, 4} represents a 3D buffer with dimensions 2×3×4.
type Shape = tensor.Shape

// Blob is a typed, shaped numeric buffer living on exactly one device.
type Blob = tensor.Blob

// DeviceMemory is an opaque handle to accelerator-resident memory.
type DeviceMemory = tensor.DeviceMemory

// Accelerator is the device interface backends implement to receive staged
// blobs: allocation, transfer in both directions and a synchronization
// barrier.
type Accelerator = tensor.Accelerator

// Arena allocates blobs that are released together.
type Arena = tensor.Arena

// Creation functions

// NewBlob allocates a host blob of the given shape and element type.
func NewBlob(shape Shape, dtype DataType) (*Blob, error) {
	return tensor.NewBlob(shape, dtype)
}

// NewDeviceBlob wraps accelerator memory in a blob. The memory handle must
// cover at least the shape's byte size.
func NewDeviceBlob(shape Shape, dtype DataType, device Device, mem DeviceMemory) (*Blob, error) {
	return tensor.NewDeviceBlob(shape, dtype, device, mem)
}

// NewArena creates an arena whose blobs live on dev.
func NewArena(dev Device) *Arena {
	return tensor.NewArena(dev)
}

// DataTypeOf returns the DataType for a Go element type.
func DataTypeOf[T DType]() DataType {
	return tensor.DataTypeOf[T]()
}

// Accelerator registry

// RegisterAccelerator makes an accelerator available for its device.
func RegisterAccelerator(acc Accelerator) {
	tensor.RegisterAccelerator(acc)
}

// UnregisterAccelerator removes the accelerator serving dev, if any.
func UnregisterAccelerator(dev Device) {
	tensor.UnregisterAccelerator(dev)
}

// AcceleratorFor returns the accelerator registered for dev.
func AcceleratorFor(dev Device) (Accelerator, bool) {
	return tensor.AcceleratorFor(dev)
}

// HasAccelerator reports whether an accelerator serves dev.
func HasAccelerator(dev Device) bool {
	return tensor.HasAccelerator(dev)
}
