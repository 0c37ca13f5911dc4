//go:build windows

package webgpu

import (
	"fmt"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/opcheck/internal/tensor"
)

// storageUsage covers every way a staged buffer is used: kernel storage plus
// both copy directions.
const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// deviceBuffer is GPU-resident memory handed to the harness. The logical size
// is what the blob asked for; the buffer itself is padded to the 4-byte
// granularity WebGPU copies require.
type deviceBuffer struct {
	buf     *wgpu.Buffer
	size    int
	aligned uint64
}

func (m *deviceBuffer) ByteSize() int { return m.size }

func align4(n int) uint64 {
	//nolint:gosec // G115: byte sizes are non-negative
	return uint64((n + 3) &^ 3)
}

// Alloc acquires a storage buffer of at least byteSize bytes from the pool.
func (b *Backend) Alloc(byteSize int) (tensor.DeviceMemory, error) {
	if byteSize < 0 {
		return nil, fmt.Errorf("webgpu: alloc %d bytes", byteSize)
	}
	aligned := align4(byteSize)
	buf := b.pool.Acquire(aligned, storageUsage)
	if buf == nil {
		return nil, fmt.Errorf("webgpu: failed to allocate %d bytes", byteSize)
	}
	return &deviceBuffer{buf: buf, size: byteSize, aligned: aligned}, nil
}

// Free returns the buffer to the pool.
func (b *Backend) Free(mem tensor.DeviceMemory) {
	db, ok := mem.(*deviceBuffer)
	if !ok || db.buf == nil {
		return
	}
	b.pool.Release(db.buf, db.aligned, storageUsage)
	db.buf = nil
}

// Upload copies host bytes into device memory through a mapped transfer
// buffer. The copy is complete once Synchronize returns.
func (b *Backend) Upload(dst tensor.DeviceMemory, src []byte) error {
	db, ok := dst.(*deviceBuffer)
	if !ok || db.buf == nil {
		return fmt.Errorf("webgpu: upload into foreign memory %T", dst)
	}
	if len(src) != db.size {
		return fmt.Errorf("webgpu: upload %d bytes into %d-byte buffer", len(src), db.size)
	}
	if len(src) == 0 {
		return nil
	}

	transfer := b.createBuffer(src, db.aligned, wgpu.BufferUsageCopySrc)
	defer transfer.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(transfer, 0, db.buf, 0, db.aligned)
	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)
	return nil
}

// Download copies device memory back into host bytes. It drains the queue on
// its own because the readback maps a staging copy of the buffer.
func (b *Backend) Download(dst []byte, src tensor.DeviceMemory) error {
	db, ok := src.(*deviceBuffer)
	if !ok || db.buf == nil {
		return fmt.Errorf("webgpu: download from foreign memory %T", src)
	}
	if len(dst) != db.size {
		return fmt.Errorf("webgpu: download %d-byte buffer into %d bytes", db.size, len(dst))
	}
	if len(dst) == 0 {
		return nil
	}

	data, err := b.readBuffer(db.buf, db.aligned)
	if err != nil {
		return err
	}
	copy(dst, data[:len(dst)])
	return nil
}

// Synchronize blocks until every submitted command has executed. Queues run
// in order, so reading back the fence buffer is a full barrier.
func (b *Backend) Synchronize() {
	if _, err := b.readBuffer(b.fence, fenceBytes); err != nil {
		panic("webgpu: synchronize: " + err.Error())
	}
}

// createBuffer creates a GPU buffer of alignedSize bytes and uploads data
// through MappedAtCreation.
func (b *Backend) createBuffer(data []byte, alignedSize uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
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

// readBuffer reads data back from a GPU buffer to CPU memory.
// Uses a staging buffer since storage buffers can't be mapped directly.
func (b *Backend) readBuffer(srcBuffer *wgpu.Buffer, size uint64) ([]byte, error) {
	stagingBuffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer stagingBuffer.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(srcBuffer, 0, stagingBuffer, 0, size)
	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)

	// MapAsync blocks until the copy, and everything before it, has run.
	err := stagingBuffer.MapAsync(b.device, wgpu.MapModeRead, 0, size)
	if err != nil {
		return nil, fmt.Errorf("failed to map staging buffer: %w", err)
	}

	mappedPtr := stagingBuffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	result := make([]byte, size)
	copy(result, mappedSlice)

	stagingBuffer.Unmap()

	return result, nil
}
