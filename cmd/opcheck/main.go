// Command opcheck runs the built-in operators through the check harness:
// timing sweeps on the chosen device and, when a device other than the host
// is selected, a host-vs-device parity check.
//
// Usage:
//
//	opcheck -op fc -batch 64 -dim 128 -count 50
//	opcheck -op relu -device webgpu -batch 256 -stochastic
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"k8s.io/klog/v2"

	"github.com/born-ml/opcheck/backend/webgpu"
	"github.com/born-ml/opcheck/harness"
	"github.com/born-ml/opcheck/ops"
	"github.com/born-ml/opcheck/tensor"
)

// stochasticSweeps is how many random shape sets -stochastic draws.
const stochasticSweeps = 10

// embeddingVocab fixes the table height for the embedding sweep; -dim sets
// the row width.
const embeddingVocab = 1000

var (
	opName     = flag.String("op", "fc", "operator to run: fc, relu, sigmoid, tanh, dropout, batchnorm, embedding, l2norm")
	deviceName = flag.String("device", "cpu", "execution device: cpu, webgpu")
	count      = flag.Int("count", 50, "forward/backward repetitions per shape set")
	batch      = flag.Int("batch", 64, "batch size (upper bound with -stochastic)")
	dim        = flag.Int("dim", 128, "feature dimension")
	stochastic = flag.Bool("stochastic", false, "sweep random batch sizes in [1, batch] instead of one fixed size")
	seed       = flag.Int64("seed", 55, "seed for buffer fills and stochastic batch sizes")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "opcheck: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	desc, err := descriptorFor(*opName)
	if err != nil {
		return err
	}
	dev, err := deviceFor(*deviceName)
	if err != nil {
		return err
	}

	if dev == tensor.WebGPU {
		backend, err := webgpu.Register()
		if err != nil {
			return fmt.Errorf("device webgpu: %w", err)
		}
		defer backend.Release()
		if !deviceCapable(*opName) {
			return fmt.Errorf("operator %s has no webgpu kernels (try fc or relu)", *opName)
		}
	}

	shapeSets := buildShapeSets(*opName, *batch, *dim, *stochastic, *seed)
	klog.Infof("running %s on %s: %d shape sets x %d reps", desc.Name(), dev, len(shapeSets), *count)

	r := harness.NewRunner[float32](desc)
	r.Cfg.Seed = *seed
	if strings.ToLower(*opName) == "embedding" {
		// Table ids must land inside the vocabulary; the default uniform
		// fill would not.
		r.ResetForward = embeddingFill(*seed)
	}
	r.TimingTest(desc.Name(), dev, *count, shapeSets)

	if dev != tensor.CPU {
		tol := harness.ToleranceFor[float32]()
		if err := r.CompareBackends(tensor.CPU, dev, shapeSets[0], tol); err != nil {
			return fmt.Errorf("parity check: %w", err)
		}
		klog.Infof("parity check passed: %s agrees with the host within abs %g / rel %g",
			dev, tol.Abs, tol.Rel)
	}
	return nil
}

func descriptorFor(name string) (ops.Descriptor, error) {
	switch strings.ToLower(name) {
	case "fc", "fullyconnected":
		return ops.NewFullyConnected(*dim), nil
	case "relu":
		return ops.NewActivation(ops.ReLU), nil
	case "sigmoid":
		return ops.NewActivation(ops.Sigmoid), nil
	case "tanh":
		return ops.NewActivation(ops.Tanh), nil
	case "dropout":
		return ops.NewDropout(0.5), nil
	case "batchnorm":
		return ops.NewBatchNorm(), nil
	case "embedding":
		return ops.NewEmbedding(embeddingVocab, *dim), nil
	case "l2norm":
		return ops.NewL2Norm(), nil
	default:
		return nil, fmt.Errorf("unknown operator %q", name)
	}
}

func deviceFor(name string) (tensor.Device, error) {
	switch strings.ToLower(name) {
	case "cpu":
		return tensor.CPU, nil
	case "webgpu", "gpu":
		return tensor.WebGPU, nil
	default:
		return tensor.CPU, fmt.Errorf("unknown device %q", name)
	}
}

// deviceCapable reports whether the operator has device kernels. Host-only
// operators would panic mid-sweep on a device, so the CLI refuses up front.
func deviceCapable(name string) bool {
	switch strings.ToLower(name) {
	case "fc", "fullyconnected", "relu":
		return true
	default:
		return false
	}
}

// embeddingFill fills the id input with draws from [0, embeddingVocab) and
// the weight table with the usual uniform values.
func embeddingFill(seed int64) func(*harness.Executor[float32]) {
	return func(e *harness.Executor[float32]) {
		//nolint:gosec // math/rand is appropriate for test data generation
		rng := rand.New(rand.NewSource(seed))
		ids := e.Inputs()[0]
		for i := 0; i < ids.NumElements(); i++ {
			ids.SetAt(i, float64(rng.Intn(embeddingVocab)))
		}
		harness.FillUniform(e.Inputs()[1], seed+1)
		for _, b := range e.Outputs() {
			b.Zero()
		}
	}
}

// buildShapeSets returns the input shapes per sweep entry: one fixed batch,
// or stochasticSweeps random batches drawn from [1, batch].
func buildShapeSets(op string, batch, dim int, stochastic bool, seed int64) [][]tensor.Shape {
	batches := []int{batch}
	if stochastic {
		//nolint:gosec // math/rand is appropriate for sweep sizing
		rng := rand.New(rand.NewSource(seed))
		batches = make([]int, stochasticSweeps)
		for i := range batches {
			batches[i] = 1 + rng.Intn(batch)
		}
	}

	sets := make([][]tensor.Shape, len(batches))
	for i, b := range batches {
		switch strings.ToLower(op) {
		case "fc", "fullyconnected":
			sets[i] = []tensor.Shape{{b, dim}, {dim, dim}, {dim}}
		case "batchnorm":
			sets[i] = []tensor.Shape{{b, dim}, {dim}, {dim}}
		case "embedding":
			sets[i] = []tensor.Shape{{b}, {embeddingVocab, dim}}
		default:
			sets[i] = []tensor.Shape{{b, dim}}
		}
	}
	return sets
}
