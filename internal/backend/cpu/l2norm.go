package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/opcheck/internal/tensor"
)

// L2Norm reduces x to its Euclidean norm. out is a single-element blob.
func L2Norm(x, out *tensor.Blob) {
	var sum float64
	switch x.DType() {
	case tensor.Float32:
		for _, v := range x.AsFloat32() {
			sum += float64(v) * float64(v)
		}
	case tensor.Float64:
		for _, v := range x.AsFloat64() {
			sum += v * v
		}
	default:
		panic(fmt.Sprintf("l2norm: unsupported dtype %s", x.DType()))
	}
	out.SetAt(0, math.Sqrt(sum))
}
