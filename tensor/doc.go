// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides typed, shaped buffers for the operator check harness.
//
// # Overview
//
// Blobs are the data structure every operator under test reads and writes.
// This package provides:
//   - Typed buffers with runtime shape and element type (Blob)
//   - Batch allocation with shared release (Arena)
//   - Device abstraction and an accelerator registry (CPU, WebGPU)
//   - Half-precision storage via float16 with conversion on access
//
// # Basic Usage
//
//	import "github.com/born-ml/opcheck/tensor"
//
//	func main() {
//	    blob, err := tensor.NewBlob(tensor.Shape{2, 3}, tensor.Float32)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    data := blob.AsFloat32()
//	    data[0] = 1.5
//	}
//
// # Supported Data Types
//
// Blobs store float32, float64, float16 and int32 elements. Fill and
// comparison helpers are generic over the DType constraint (float32,
// float64); float16 blobs are written and read through conversion because Go
// has no native half-precision type.
//
// # Devices
//
// A blob lives on exactly one device. Host blobs carry their bytes directly;
// device blobs carry an opaque DeviceMemory handle owned by the registered
// Accelerator. Backends register themselves with RegisterAccelerator, and the
// harness stages host blobs onto whichever device a run targets.
package tensor
