//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/opcheck/internal/tensor"
)

// The kernels submit work and return; completion is observed through
// Synchronize, which the executor calls at the end of a timed span.

func (b *Backend) buffer(mem tensor.DeviceMemory) (*deviceBuffer, error) {
	db, ok := mem.(*deviceBuffer)
	if !ok || db.buf == nil {
		return nil, fmt.Errorf("webgpu: foreign memory %T", mem)
	}
	return db, nil
}

// createUniformBuffer creates a uniform buffer with proper alignment.
// Uniform buffers require 16-byte alignment for struct fields.
func (b *Backend) createUniformBuffer(data []byte) *wgpu.Buffer {
	size := uint64(len(data))
	alignedSize := (size + 15) &^ 15 // Round up to 16-byte boundary

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             alignedSize,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, alignedSize)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), alignedSize)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// linearParams encodes the shared uniform block of the linear shaders.
func linearParams(batch, inDim, outDim int, hasBias bool) []byte {
	params := make([]byte, 16)
	//nolint:gosec // G115: dimensions are non-negative
	binary.LittleEndian.PutUint32(params[0:4], uint32(batch))
	//nolint:gosec // G115: dimensions are non-negative
	binary.LittleEndian.PutUint32(params[4:8], uint32(inDim))
	//nolint:gosec // G115: dimensions are non-negative
	binary.LittleEndian.PutUint32(params[8:12], uint32(outDim))
	if hasBias {
		binary.LittleEndian.PutUint32(params[12:16], 1)
	}
	return params
}

func sizeParams(n int) []byte {
	params := make([]byte, 16)
	//nolint:gosec // G115: element counts are non-negative
	binary.LittleEndian.PutUint32(params[0:4], uint32(n))
	return params
}

func groups1D(n int) uint32 {
	//nolint:gosec // G115: workgroup count is non-negative
	return uint32((n + workgroupSize - 1) / workgroupSize)
}

func groups2D(n int) uint32 {
	//nolint:gosec // G115: workgroup count is non-negative
	return uint32((n + matrixTile - 1) / matrixTile)
}

// LinearF32 computes y = x @ transpose(w) + bias on the device.
// A nil bias skips the bias add.
func (b *Backend) LinearF32(x, w, bias, y tensor.DeviceMemory, batch, inDim, outDim int) error {
	bx, err := b.buffer(x)
	if err != nil {
		return err
	}
	bw, err := b.buffer(w)
	if err != nil {
		return err
	}
	by, err := b.buffer(y)
	if err != nil {
		return err
	}
	biasBuf, biasSize := b.scratch, uint64(scratchBytes)
	if bias != nil {
		bb, err := b.buffer(bias)
		if err != nil {
			return err
		}
		biasBuf, biasSize = bb.buf, bb.aligned
	}

	shader := b.compileShader("linear", linearShader)
	pipeline := b.getOrCreatePipeline("linear", shader)

	bufferParams := b.createUniformBuffer(linearParams(batch, inDim, outDim, bias != nil))
	defer bufferParams.Release()

	bindGroup := b.device.CreateBindGroupSimple(pipeline.GetBindGroupLayout(0), []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bx.buf, 0, bx.aligned),
		wgpu.BufferBindingEntry(1, bw.buf, 0, bw.aligned),
		wgpu.BufferBindingEntry(2, biasBuf, 0, biasSize),
		wgpu.BufferBindingEntry(3, by.buf, 0, by.aligned),
		wgpu.BufferBindingEntry(4, bufferParams, 0, 16),
	})
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	computePass.DispatchWorkgroups(groups2D(outDim), groups2D(batch), 1)
	computePass.End()

	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)
	return nil
}

// LinearGradF32 computes the three linear gradients in one submission:
// dx = dy @ w, dw = transpose(dy) @ x and, when db is not nil, the batch sum
// db of dy.
func (b *Backend) LinearGradF32(dy, x, w, dx, dw, db tensor.DeviceMemory, batch, inDim, outDim int) error {
	bdy, err := b.buffer(dy)
	if err != nil {
		return err
	}
	bx, err := b.buffer(x)
	if err != nil {
		return err
	}
	bw, err := b.buffer(w)
	if err != nil {
		return err
	}
	bdx, err := b.buffer(dx)
	if err != nil {
		return err
	}
	bdw, err := b.buffer(dw)
	if err != nil {
		return err
	}

	bufferParams := b.createUniformBuffer(linearParams(batch, inDim, outDim, db != nil))
	defer bufferParams.Release()

	inputPipeline := b.getOrCreatePipeline("linear_grad_input",
		b.compileShader("linear_grad_input", linearGradInputShader))
	weightPipeline := b.getOrCreatePipeline("linear_grad_weight",
		b.compileShader("linear_grad_weight", linearGradWeightShader))

	inputBind := b.device.CreateBindGroupSimple(inputPipeline.GetBindGroupLayout(0), []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bdy.buf, 0, bdy.aligned),
		wgpu.BufferBindingEntry(1, bw.buf, 0, bw.aligned),
		wgpu.BufferBindingEntry(2, bdx.buf, 0, bdx.aligned),
		wgpu.BufferBindingEntry(3, bufferParams, 0, 16),
	})
	defer inputBind.Release()

	weightBind := b.device.CreateBindGroupSimple(weightPipeline.GetBindGroupLayout(0), []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bdy.buf, 0, bdy.aligned),
		wgpu.BufferBindingEntry(1, bx.buf, 0, bx.aligned),
		wgpu.BufferBindingEntry(2, bdw.buf, 0, bdw.aligned),
		wgpu.BufferBindingEntry(3, bufferParams, 0, 16),
	})
	defer weightBind.Release()

	var biasBind *wgpu.BindGroup
	var biasPipeline *wgpu.ComputePipeline
	if db != nil {
		bdb, err := b.buffer(db)
		if err != nil {
			return err
		}
		biasPipeline = b.getOrCreatePipeline("linear_grad_bias",
			b.compileShader("linear_grad_bias", linearGradBiasShader))
		biasBind = b.device.CreateBindGroupSimple(biasPipeline.GetBindGroupLayout(0), []wgpu.BindGroupEntry{
			wgpu.BufferBindingEntry(0, bdy.buf, 0, bdy.aligned),
			wgpu.BufferBindingEntry(1, bdb.buf, 0, bdb.aligned),
			wgpu.BufferBindingEntry(2, bufferParams, 0, 16),
		})
		defer biasBind.Release()
	}

	encoder := b.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)

	computePass.SetPipeline(inputPipeline)
	computePass.SetBindGroup(0, inputBind, nil)
	computePass.DispatchWorkgroups(groups2D(inDim), groups2D(batch), 1)

	computePass.SetPipeline(weightPipeline)
	computePass.SetBindGroup(0, weightBind, nil)
	computePass.DispatchWorkgroups(groups2D(inDim), groups2D(outDim), 1)

	if biasBind != nil {
		computePass.SetPipeline(biasPipeline)
		computePass.SetBindGroup(0, biasBind, nil)
		computePass.DispatchWorkgroups(groups1D(outDim), 1, 1)
	}
	computePass.End()

	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)
	return nil
}

// ReLUF32 computes y = max(x, 0) over n elements.
func (b *Backend) ReLUF32(x, y tensor.DeviceMemory, n int) error {
	bx, err := b.buffer(x)
	if err != nil {
		return err
	}
	by, err := b.buffer(y)
	if err != nil {
		return err
	}

	shader := b.compileShader("relu", reluShader)
	pipeline := b.getOrCreatePipeline("relu", shader)

	bufferParams := b.createUniformBuffer(sizeParams(n))
	defer bufferParams.Release()

	bindGroup := b.device.CreateBindGroupSimple(pipeline.GetBindGroupLayout(0), []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bx.buf, 0, bx.aligned),
		wgpu.BufferBindingEntry(1, by.buf, 0, by.aligned),
		wgpu.BufferBindingEntry(2, bufferParams, 0, 16),
	})
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	computePass.DispatchWorkgroups(groups1D(n), 1, 1)
	computePass.End()

	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)
	return nil
}

// ReLUGradF32 computes dx from dy and the forward output y over n elements.
func (b *Backend) ReLUGradF32(dy, y, dx tensor.DeviceMemory, n int) error {
	bdy, err := b.buffer(dy)
	if err != nil {
		return err
	}
	by, err := b.buffer(y)
	if err != nil {
		return err
	}
	bdx, err := b.buffer(dx)
	if err != nil {
		return err
	}

	shader := b.compileShader("relu_grad", reluGradShader)
	pipeline := b.getOrCreatePipeline("relu_grad", shader)

	bufferParams := b.createUniformBuffer(sizeParams(n))
	defer bufferParams.Release()

	bindGroup := b.device.CreateBindGroupSimple(pipeline.GetBindGroupLayout(0), []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bdy.buf, 0, bdy.aligned),
		wgpu.BufferBindingEntry(1, by.buf, 0, by.aligned),
		wgpu.BufferBindingEntry(2, bdx.buf, 0, bdx.aligned),
		wgpu.BufferBindingEntry(3, bufferParams, 0, 16),
	})
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	computePass.DispatchWorkgroups(groups1D(n), 1, 1)
	computePass.End()

	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)
	return nil
}
