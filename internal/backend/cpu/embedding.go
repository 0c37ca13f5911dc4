package cpu

import (
	"fmt"

	"github.com/born-ml/opcheck/internal/parallel"
	"github.com/born-ml/opcheck/internal/tensor"
)

// EmbeddingForward gathers weight rows by index. indices is [batch] holding
// float-encoded row ids, weight is [vocab, dim], out is [batch, dim].
// Panics on out-of-vocabulary ids.
func EmbeddingForward(indices, weight, out *tensor.Blob, cfg parallel.Config) {
	batch := indices.Shape()[0]
	vocab, dim := weight.Shape()[0], weight.Shape()[1]

	parallel.For(batch, func(b int) {
		id := int(indices.At(b))
		if id < 0 || id >= vocab {
			panic(fmt.Sprintf("embedding: index %d out of vocabulary [0, %d)", id, vocab))
		}
		switch weight.DType() {
		case tensor.Float32:
			copy(out.AsFloat32()[b*dim:(b+1)*dim], weight.AsFloat32()[id*dim:(id+1)*dim])
		case tensor.Float64:
			copy(out.AsFloat64()[b*dim:(b+1)*dim], weight.AsFloat64()[id*dim:(id+1)*dim])
		default:
			panic(fmt.Sprintf("embedding: unsupported dtype %s", weight.DType()))
		}
	}, cfg)
}

// EmbeddingBackward scatter-adds output gradients into the weight gradient.
// scratch must hold vocab*dim float64s; repeated hits on one weight row
// accumulate there in double precision before narrowing back to the blob's
// type. Indices receive no gradient; dIndices is zeroed unless accumulate is
// set. The scatter runs sequentially because distinct batch entries may hit
// the same weight row.
func EmbeddingBackward(dy, indices, dWeight, dIndices *tensor.Blob, scratch []float64, accumulate bool) {
	batch := indices.Shape()[0]
	vocab, dim := dWeight.Shape()[0], dWeight.Shape()[1]
	if len(scratch) < vocab*dim {
		panic(fmt.Sprintf("embedding: scratch holds %d values, need %d", len(scratch), vocab*dim))
	}

	for i := 0; i < vocab*dim; i++ {
		if accumulate {
			scratch[i] = dWeight.At(i)
		} else {
			scratch[i] = 0
		}
	}
	if !accumulate {
		dIndices.Zero()
	}

	for b := 0; b < batch; b++ {
		id := int(indices.At(b))
		if id < 0 || id >= vocab {
			panic(fmt.Sprintf("embedding: index %d out of vocabulary [0, %d)", id, vocab))
		}
		for i := 0; i < dim; i++ {
			scratch[id*dim+i] += dy.At(b*dim + i)
		}
	}

	for i := 0; i < vocab*dim; i++ {
		dWeight.SetAt(i, scratch[i])
	}
}
