//go:build windows

package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

// Size class boundaries. The executor stages the same blob shapes pass after
// pass, so freed buffers almost always match a near-future request.
const (
	smallThreshold  = 4 * 1024    // 4KB
	mediumThreshold = 1024 * 1024 // 1MB
	maxPoolPerClass = 100
)

type sizeClass int

const (
	smallClass sizeClass = iota
	mediumClass
	largeClass
)

func classify(size uint64) sizeClass {
	if size < smallThreshold {
		return smallClass
	}
	if size < mediumThreshold {
		return mediumClass
	}
	return largeClass
}

type pooledBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
	usage  wgpu.BufferUsage
}

// BufferPool recycles GPU buffers between staging passes. Freed buffers are
// kept per size class and handed back to later requests of a compatible size
// and usage, cutting allocation overhead during repeated timing runs.
type BufferPool struct {
	device *wgpu.Device

	mu      sync.Mutex
	classes [3][]*pooledBuffer

	created uint64
	reused  uint64
	retired uint64
}

// NewBufferPool creates an empty pool allocating on the given device.
func NewBufferPool(device *wgpu.Device) *BufferPool {
	return &BufferPool{device: device}
}

// Acquire returns a buffer of at least size bytes carrying at least the
// requested usage, reusing a pooled one when possible.
func (p *BufferPool) Acquire(size uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	class := classify(size)
	pool := p.classes[class]
	for i, pb := range pool {
		if pb.size >= size && pb.usage&usage == usage {
			p.classes[class] = append(pool[:i], pool[i+1:]...)
			p.reused++
			return pb.buffer
		}
	}

	p.created++
	return p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: usage,
		Size:  size,
	})
}

// Release puts a buffer back for reuse, or frees it when its class is full.
func (p *BufferPool) Release(buffer *wgpu.Buffer, size uint64, usage wgpu.BufferUsage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	class := classify(size)
	if len(p.classes[class]) >= maxPoolPerClass {
		p.retired++
		buffer.Release()
		return
	}
	p.classes[class] = append(p.classes[class], &pooledBuffer{
		buffer: buffer,
		size:   size,
		usage:  usage,
	})
}

// Clear frees every pooled buffer. Called when the backend is released.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for class := range p.classes {
		for _, pb := range p.classes[class] {
			pb.buffer.Release()
		}
		p.classes[class] = nil
	}
}

// Stats reports lifetime pool activity and the number of buffers currently
// held.
func (p *BufferPool) Stats() (created, reused, retired uint64, pooled int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for class := range p.classes {
		pooled += len(p.classes[class])
	}
	return p.created, p.reused, p.retired, pooled
}
