package harness

import (
	"fmt"
	"sync"
	"testing"
	"unsafe"

	"github.com/born-ml/opcheck/internal/tensor"
)

// mockDevice is a fake accelerator slot used to exercise the staging path
// without hardware.
const mockDevice = tensor.Device(7)

type mockMemory struct {
	data []byte
}

func (m *mockMemory) ByteSize() int { return len(m.data) }

// mockAccelerator keeps device memory in plain byte slices and runs its
// kernels on the host, so staged execution can be checked end to end. It
// counts transfers and syncs for the staging-discipline tests.
type mockAccelerator struct {
	mu     sync.Mutex
	allocs int
	frees  int
	ups    int
	downs  int
	syncs  int
}

func (m *mockAccelerator) Name() string          { return "mock" }
func (m *mockAccelerator) Device() tensor.Device { return mockDevice }

func (m *mockAccelerator) Alloc(byteSize int) (tensor.DeviceMemory, error) {
	m.mu.Lock()
	m.allocs++
	m.mu.Unlock()
	return &mockMemory{data: make([]byte, byteSize)}, nil
}

func (m *mockAccelerator) Free(mem tensor.DeviceMemory) {
	m.mu.Lock()
	m.frees++
	m.mu.Unlock()
}

func (m *mockAccelerator) Upload(dst tensor.DeviceMemory, src []byte) error {
	dm, ok := dst.(*mockMemory)
	if !ok {
		return fmt.Errorf("mock: foreign memory %T", dst)
	}
	if len(src) != len(dm.data) {
		return fmt.Errorf("mock: upload %d bytes into %d", len(src), len(dm.data))
	}
	copy(dm.data, src)
	m.mu.Lock()
	m.ups++
	m.mu.Unlock()
	return nil
}

func (m *mockAccelerator) Download(dst []byte, src tensor.DeviceMemory) error {
	sm, ok := src.(*mockMemory)
	if !ok {
		return fmt.Errorf("mock: foreign memory %T", src)
	}
	if len(dst) != len(sm.data) {
		return fmt.Errorf("mock: download %d bytes into %d", len(sm.data), len(dst))
	}
	copy(dst, sm.data)
	m.mu.Lock()
	m.downs++
	m.mu.Unlock()
	return nil
}

func (m *mockAccelerator) Synchronize() {
	m.mu.Lock()
	m.syncs++
	m.mu.Unlock()
}

func (m *mockAccelerator) counts() (allocs, frees, ups, downs, syncs int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allocs, m.frees, m.ups, m.downs, m.syncs
}

// f32view reinterprets mock device bytes as float32 values.
//
//nolint:gosec // test-only view over mock device memory
func f32view(mem tensor.DeviceMemory) []float32 {
	m := mem.(*mockMemory)
	if len(m.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&m.data[0])), len(m.data)/4)
}

// LinearF32 computes y = x @ transpose(w) + bias. Accumulation runs in
// double precision, so results differ from the host's float32 sums the way a
// real device kernel's would.
func (m *mockAccelerator) LinearF32(x, w, bias, y tensor.DeviceMemory, batch, inDim, outDim int) error {
	xs, ws, ys := f32view(x), f32view(w), f32view(y)
	var bs []float32
	if bias != nil {
		bs = f32view(bias)
	}
	for b := 0; b < batch; b++ {
		for o := 0; o < outDim; o++ {
			var sum float64
			for i := 0; i < inDim; i++ {
				sum += float64(xs[b*inDim+i]) * float64(ws[o*inDim+i])
			}
			if bs != nil {
				sum += float64(bs[o])
			}
			ys[b*outDim+o] = float32(sum)
		}
	}
	return nil
}

func (m *mockAccelerator) LinearGradF32(dy, x, w, dx, dw, db tensor.DeviceMemory, batch, inDim, outDim int) error {
	dys, xs, ws := f32view(dy), f32view(x), f32view(w)
	dxs, dws := f32view(dx), f32view(dw)
	for b := 0; b < batch; b++ {
		for i := 0; i < inDim; i++ {
			var sum float64
			for o := 0; o < outDim; o++ {
				sum += float64(dys[b*outDim+o]) * float64(ws[o*inDim+i])
			}
			dxs[b*inDim+i] = float32(sum)
		}
	}
	for o := 0; o < outDim; o++ {
		for i := 0; i < inDim; i++ {
			var sum float64
			for b := 0; b < batch; b++ {
				sum += float64(dys[b*outDim+o]) * float64(xs[b*inDim+i])
			}
			dws[o*inDim+i] = float32(sum)
		}
	}
	if db != nil {
		dbs := f32view(db)
		for o := 0; o < outDim; o++ {
			var sum float64
			for b := 0; b < batch; b++ {
				sum += float64(dys[b*outDim+o])
			}
			dbs[o] = float32(sum)
		}
	}
	return nil
}

func (m *mockAccelerator) ReLUF32(x, y tensor.DeviceMemory, n int) error {
	xs, ys := f32view(x), f32view(y)
	for i := 0; i < n; i++ {
		if xs[i] > 0 {
			ys[i] = xs[i]
		} else {
			ys[i] = 0
		}
	}
	return nil
}

func (m *mockAccelerator) ReLUGradF32(dy, y, dx tensor.DeviceMemory, n int) error {
	dys, ys, dxs := f32view(dy), f32view(y), f32view(dx)
	for i := 0; i < n; i++ {
		if ys[i] > 0 {
			dxs[i] = dys[i]
		} else {
			dxs[i] = 0
		}
	}
	return nil
}

func registerMock(t *testing.T) *mockAccelerator {
	t.Helper()
	m := &mockAccelerator{}
	tensor.RegisterAccelerator(m)
	t.Cleanup(func() { tensor.UnregisterAccelerator(mockDevice) })
	return m
}
