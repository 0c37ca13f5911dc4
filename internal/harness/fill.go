package harness

import (
	"math/rand"

	"github.com/born-ml/opcheck/internal/tensor"
)

// fillForward is the default ResetForward hook: inputs and aux states get
// seeded uniform draws from [-5, 5), outputs are zeroed. The same seed
// reproduces the same buffers, so two executors built alike start equal.
func (e *Executor[T]) fillForward() {
	//nolint:gosec // math/rand is appropriate for test data generation
	rng := rand.New(rand.NewSource(e.cfg.Seed))
	for _, b := range e.sets[Input] {
		fillUniform(b, rng)
	}
	for _, b := range e.sets[Aux] {
		fillUniform(b, rng)
	}
	for _, b := range e.sets[Output] {
		b.Zero()
	}
}

// fillBackward is the default ResetBackward hook: output gradients get
// seeded uniform draws, input gradients are zeroed.
func (e *Executor[T]) fillBackward() {
	//nolint:gosec // math/rand is appropriate for test data generation
	rng := rand.New(rand.NewSource(e.cfg.Seed + 1))
	for _, b := range e.sets[OutGrad] {
		fillUniform(b, rng)
	}
	for _, b := range e.sets[InGrad] {
		b.Zero()
	}
}

func fillUniform(b *tensor.Blob, rng *rand.Rand) {
	for i := 0; i < b.NumElements(); i++ {
		b.SetAt(i, rng.Float64()*10-5)
	}
}

// FillUniform overwrites a blob with seeded uniform draws from [-5, 5).
func FillUniform(b *tensor.Blob, seed int64) {
	//nolint:gosec // math/rand is appropriate for test data generation
	fillUniform(b, rand.New(rand.NewSource(seed)))
}
