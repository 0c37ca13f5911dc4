package tensor

import (
	"fmt"
	"unsafe"

	"github.com/x448/float16"
)

// Device identifies where a blob's memory lives.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case WebGPU:
		return "WebGPU"
	default:
		return fmt.Sprintf("Device(%d)", int(d))
	}
}

// DeviceMemory is an opaque handle to accelerator-resident memory. Handles are
// created and freed by the Accelerator that owns them; the harness only moves
// bytes in and out.
type DeviceMemory interface {
	ByteSize() int
}

// Blob is a typed, shaped numeric buffer. A blob lives on exactly one device:
// host blobs carry their bytes directly, accelerator blobs carry a DeviceMemory
// handle and no host bytes.
type Blob struct {
	shape  Shape
	dtype  DataType
	device Device
	data   []byte       // host storage; nil for accelerator blobs
	mem    DeviceMemory // accelerator storage; nil for host blobs
}

// NewBlob allocates a zero-filled host blob with the given shape and type.
func NewBlob(shape Shape, dtype DataType) (*Blob, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &Blob{
		shape:  shape.Clone(),
		dtype:  dtype,
		device: CPU,
		data:   make([]byte, shape.NumElements()*dtype.Size()),
	}, nil
}

// NewDeviceBlob wraps accelerator memory in a blob. The handle's byte size must
// match the shape and type exactly.
func NewDeviceBlob(shape Shape, dtype DataType, device Device, mem DeviceMemory) (*Blob, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	want := shape.NumElements() * dtype.Size()
	if mem.ByteSize() != want {
		return nil, fmt.Errorf("device memory holds %d bytes, shape %v of %s needs %d",
			mem.ByteSize(), shape, dtype, want)
	}
	return &Blob{shape: shape.Clone(), dtype: dtype, device: device, mem: mem}, nil
}

// Shape returns the blob's shape.
func (b *Blob) Shape() Shape {
	return b.shape
}

// DType returns the blob's data type.
func (b *Blob) DType() DataType {
	return b.dtype
}

// Device returns the device the blob's memory lives on.
func (b *Blob) Device() Device {
	return b.device
}

// NumElements returns the total number of elements.
func (b *Blob) NumElements() int {
	return b.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (b *Blob) ByteSize() int {
	return b.NumElements() * b.dtype.Size()
}

// Data returns the raw host byte slice.
// Panics for accelerator blobs, which have no host storage.
func (b *Blob) Data() []byte {
	if b.data == nil {
		panic(fmt.Sprintf("blob on %s has no host data", b.device))
	}
	return b.data
}

// Memory returns the accelerator memory handle.
// Panics for host blobs.
func (b *Blob) Memory() DeviceMemory {
	if b.mem == nil {
		panic("host blob has no device memory")
	}
	return b.mem
}

// AsFloat32 interprets the host data as []float32.
// Panics if the blob's dtype is not Float32.
func (b *Blob) AsFloat32() []float32 {
	if b.dtype != Float32 {
		panic(fmt.Sprintf("blob dtype is %s, not float32", b.dtype))
	}
	data := b.Data()
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), b.NumElements())
}

// AsFloat64 interprets the host data as []float64.
// Panics if the blob's dtype is not Float64.
func (b *Blob) AsFloat64() []float64 {
	if b.dtype != Float64 {
		panic(fmt.Sprintf("blob dtype is %s, not float64", b.dtype))
	}
	data := b.Data()
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&data[0])), b.NumElements())
}

// AsFloat16 interprets the host data as IEEE half-precision values.
// Panics if the blob's dtype is not Float16.
func (b *Blob) AsFloat16() []float16.Float16 {
	if b.dtype != Float16 {
		panic(fmt.Sprintf("blob dtype is %s, not float16", b.dtype))
	}
	data := b.Data()
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float16.Float16)(unsafe.Pointer(&data[0])), b.NumElements())
}

// AsInt32 interprets the host data as []int32.
// Panics if the blob's dtype is not Int32.
func (b *Blob) AsInt32() []int32 {
	if b.dtype != Int32 {
		panic(fmt.Sprintf("blob dtype is %s, not int32", b.dtype))
	}
	data := b.Data()
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*int32)(unsafe.Pointer(&data[0])), b.NumElements())
}

// At returns element i widened to float64, regardless of the blob's dtype.
func (b *Blob) At(i int) float64 {
	switch b.dtype {
	case Float32:
		return float64(b.AsFloat32()[i])
	case Float64:
		return b.AsFloat64()[i]
	case Float16:
		return f16value(uint16(b.AsFloat16()[i]))
	case Int32:
		return float64(b.AsInt32()[i])
	default:
		panic("unknown data type")
	}
}

// SetAt stores v into element i, narrowing to the blob's dtype.
func (b *Blob) SetAt(i int, v float64) {
	switch b.dtype {
	case Float32:
		b.AsFloat32()[i] = float32(v)
	case Float64:
		b.AsFloat64()[i] = v
	case Float16:
		b.AsFloat16()[i] = float16.Float16(f16bits(v))
	case Int32:
		b.AsInt32()[i] = int32(v)
	default:
		panic("unknown data type")
	}
}

// Zero clears every element of a host blob.
func (b *Blob) Zero() {
	data := b.Data()
	for i := range data {
		data[i] = 0
	}
}
