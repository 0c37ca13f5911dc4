// Package tensor provides the buffer, shape and device types shared by the
// opcheck operator harness and its compute backends.
package tensor

import "github.com/x448/float16"

// DType is a constraint for the element types an operator executor can run
// with. Float16 storage is supported at the Blob level only; Go has no native
// half-precision type, so half blobs are filled and read through conversion.
type DType interface {
	~float32 | ~float64
}

// DataType represents runtime type information for blobs.
type DataType int

// Supported data types for blobs.
const (
	Float32 DataType = iota
	Float64
	Float16
	Int32
)

// Size returns the byte size of one element of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64:
		return 8
	case Float16:
		return 2
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Float16:
		return "float16"
	case Int32:
		return "int32"
	default:
		return "unknown"
	}
}

// DataTypeOf returns the runtime DataType for a generic element type T.
func DataTypeOf[T DType]() DataType {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	default:
		panic("unsupported element type")
	}
}

// f16bits round-trips a float64 through IEEE half precision.
func f16bits(v float64) uint16 {
	return uint16(float16.Fromfloat32(float32(v)))
}

// f16value widens IEEE half-precision bits to float64.
func f16value(bits uint16) float64 {
	return float64(float16.Float16(bits).Float32())
}
