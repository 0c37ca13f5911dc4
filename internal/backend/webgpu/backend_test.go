//go:build windows

package webgpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/born-ml/opcheck/internal/harness"
	"github.com/born-ml/opcheck/internal/ops"
	"github.com/born-ml/opcheck/internal/tensor"
)

func f32bytes(vals []float32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func bytesF32(buf []byte) []float32 {
	vals := make([]float32, len(buf)/4)
	for i := range vals {
		vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vals
}

func newBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New()
	if err != nil {
		t.Skip("WebGPU not available on this system")
	}
	t.Cleanup(b.Release)
	return b
}

func TestIsAvailable(t *testing.T) {
	t.Logf("WebGPU available: %v", IsAvailable())
}

func TestNew(t *testing.T) {
	b := newBackend(t)

	if b.Name() == "" {
		t.Error("Backend name should not be empty")
	}
	t.Logf("Backend name: %s", b.Name())

	if b.Device() != tensor.WebGPU {
		t.Errorf("Expected device WebGPU, got %v", b.Device())
	}
}

func TestRegisterExposesAccelerator(t *testing.T) {
	b, err := Register()
	if err != nil {
		t.Skip("WebGPU not available on this system")
	}

	if !tensor.HasAccelerator(tensor.WebGPU) {
		t.Error("Register should make the accelerator visible")
	}
	b.Release()
	if tensor.HasAccelerator(tensor.WebGPU) {
		t.Error("Release should unregister the accelerator")
	}
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	b := newBackend(t)

	want := f32bytes([]float32{1, -2.5, 3.25, 0, 99, -0.125})
	mem, err := b.Alloc(len(want))
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	defer b.Free(mem)

	if err := b.Upload(mem, want); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	b.Synchronize()

	got := make([]byte, len(want))
	if err := b.Download(got, mem); err != nil {
		t.Fatalf("Download: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestLinearKernel(t *testing.T) {
	b := newBackend(t)

	// x is [2, 3], w is [2, 3], bias is [2], y is [2, 2].
	x := []float32{1, 2, 3, 4, 5, 6}
	w := []float32{1, 0, -1, 0.5, 0.5, 0.5}
	bias := []float32{10, -10}
	want := []float32{8, -7, 8, -2.5}

	alloc := func(vals []float32) tensor.DeviceMemory {
		mem, err := b.Alloc(4 * len(vals))
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}
		t.Cleanup(func() { b.Free(mem) })
		if err := b.Upload(mem, f32bytes(vals)); err != nil {
			t.Fatalf("Upload: %v", err)
		}
		return mem
	}

	mx, mw, mb := alloc(x), alloc(w), alloc(bias)
	my := alloc(make([]float32, 4))

	if err := b.LinearF32(mx, mw, mb, my, 2, 3, 2); err != nil {
		t.Fatalf("LinearF32: %v", err)
	}
	b.Synchronize()

	out := make([]byte, 16)
	if err := b.Download(out, my); err != nil {
		t.Fatalf("Download: %v", err)
	}
	got := bytesF32(out)
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-5 {
			t.Errorf("y[%d]: got %g, want %g", i, got[i], want[i])
		}
	}
}

func TestReLUKernel(t *testing.T) {
	b := newBackend(t)

	x := []float32{-1, 2, -3, 4}
	mem, err := b.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	defer b.Free(mem)
	if err := b.Upload(mem, f32bytes(x)); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	out, err := b.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	defer b.Free(out)

	if err := b.ReLUF32(mem, out, 4); err != nil {
		t.Fatalf("ReLUF32: %v", err)
	}
	b.Synchronize()

	buf := make([]byte, 16)
	if err := b.Download(buf, out); err != nil {
		t.Fatalf("Download: %v", err)
	}
	got := bytesF32(buf)
	want := []float32{0, 2, 0, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("y[%d]: got %g, want %g", i, got[i], want[i])
		}
	}
}

func TestBufferPoolReusesFreedBuffers(t *testing.T) {
	b := newBackend(t)

	mem, err := b.Alloc(1024)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	b.Free(mem)

	mem2, err := b.Alloc(1024)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	defer b.Free(mem2)

	_, reused, _, _ := b.pool.Stats()
	if reused == 0 {
		t.Error("freeing and reallocating the same size should hit the pool")
	}
}

func TestExecutorAgainstHost(t *testing.T) {
	b, err := Register()
	if err != nil {
		t.Skip("WebGPU not available on this system")
	}
	defer b.Release()

	r := harness.NewRunner[float32](ops.NewFullyConnected(8))
	shapes := []tensor.Shape{{4, 16}, {8, 16}, {8}}
	if err := r.CompareBackends(tensor.CPU, tensor.WebGPU, shapes, harness.ToleranceFor[float32]()); err != nil {
		t.Errorf("device run diverged from host: %v", err)
	}
}
