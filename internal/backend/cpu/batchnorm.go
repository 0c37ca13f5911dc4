package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/opcheck/internal/parallel"
	"github.com/born-ml/opcheck/internal/tensor"
)

// BatchNormForward normalizes x per channel. x and out are [batch, channels];
// gamma, beta, mean, variance, runningMean and runningVar are [channels].
// In training mode the batch statistics are written to mean and variance and
// folded into the running statistics; in inference mode the running statistics
// are used directly and echoed into mean and variance.
func BatchNormForward(x, gamma, beta, out, mean, variance, runningMean, runningVar *tensor.Blob,
	eps, momentum float64, train bool, cfg parallel.Config) {
	if len(x.Shape()) != 2 {
		panic(fmt.Sprintf("batchnorm: need [batch, channels] input, got %v", x.Shape()))
	}

	switch x.DType() {
	case tensor.Float32:
		batchNormForward(x.AsFloat32(), gamma.AsFloat32(), beta.AsFloat32(), out.AsFloat32(),
			mean.AsFloat32(), variance.AsFloat32(), runningMean.AsFloat32(), runningVar.AsFloat32(),
			x.Shape()[0], x.Shape()[1], eps, momentum, train, cfg)
	case tensor.Float64:
		batchNormForward(x.AsFloat64(), gamma.AsFloat64(), beta.AsFloat64(), out.AsFloat64(),
			mean.AsFloat64(), variance.AsFloat64(), runningMean.AsFloat64(), runningVar.AsFloat64(),
			x.Shape()[0], x.Shape()[1], eps, momentum, train, cfg)
	default:
		panic(fmt.Sprintf("batchnorm: unsupported dtype %s", x.DType()))
	}
}

func batchNormForward[T tensor.DType](x, gamma, beta, out, mean, variance, runningMean, runningVar []T,
	batch, channels int, eps, momentum float64, train bool, cfg parallel.Config) {
	parallel.For(channels, func(c int) {
		var m, v float64
		if train {
			for n := 0; n < batch; n++ {
				m += float64(x[n*channels+c])
			}
			m /= float64(batch)
			for n := 0; n < batch; n++ {
				d := float64(x[n*channels+c]) - m
				v += d * d
			}
			v /= float64(batch)

			mean[c] = T(m)
			variance[c] = T(v)
			runningMean[c] = T(momentum*float64(runningMean[c]) + (1-momentum)*m)
			runningVar[c] = T(momentum*float64(runningVar[c]) + (1-momentum)*v)
		} else {
			m = float64(runningMean[c])
			v = float64(runningVar[c])
			mean[c] = T(m)
			variance[c] = T(v)
		}

		std := math.Sqrt(v + eps)
		for n := 0; n < batch; n++ {
			xhat := (float64(x[n*channels+c]) - m) / std
			out[n*channels+c] = T(float64(gamma[c])*xhat + float64(beta[c]))
		}
	}, cfg)
}

// BatchNormBackward computes training-mode gradients from the saved batch
// statistics. With accumulate the gradients are added to the targets.
func BatchNormBackward(dy, x, gamma, mean, variance, dx, dgamma, dbeta *tensor.Blob,
	eps float64, accumulate bool, cfg parallel.Config) {
	switch x.DType() {
	case tensor.Float32:
		batchNormBackward(dy.AsFloat32(), x.AsFloat32(), gamma.AsFloat32(),
			mean.AsFloat32(), variance.AsFloat32(),
			dx.AsFloat32(), dgamma.AsFloat32(), dbeta.AsFloat32(),
			x.Shape()[0], x.Shape()[1], eps, accumulate, cfg)
	case tensor.Float64:
		batchNormBackward(dy.AsFloat64(), x.AsFloat64(), gamma.AsFloat64(),
			mean.AsFloat64(), variance.AsFloat64(),
			dx.AsFloat64(), dgamma.AsFloat64(), dbeta.AsFloat64(),
			x.Shape()[0], x.Shape()[1], eps, accumulate, cfg)
	default:
		panic(fmt.Sprintf("batchnorm: unsupported dtype %s", x.DType()))
	}
}

func batchNormBackward[T tensor.DType](dy, x, gamma, mean, variance, dx, dgamma, dbeta []T,
	batch, channels int, eps float64, accumulate bool, cfg parallel.Config) {
	parallel.For(channels, func(c int) {
		m := float64(mean[c])
		std := math.Sqrt(float64(variance[c]) + eps)

		var sumDy, sumDyXhat float64
		for n := 0; n < batch; n++ {
			xhat := (float64(x[n*channels+c]) - m) / std
			sumDy += float64(dy[n*channels+c])
			sumDyXhat += float64(dy[n*channels+c]) * xhat
		}

		if accumulate {
			dgamma[c] += T(sumDyXhat)
			dbeta[c] += T(sumDy)
		} else {
			dgamma[c] = T(sumDyXhat)
			dbeta[c] = T(sumDy)
		}

		scale := float64(gamma[c]) / std
		for n := 0; n < batch; n++ {
			xhat := (float64(x[n*channels+c]) - m) / std
			g := scale * (float64(dy[n*channels+c]) - sumDy/float64(batch) - xhat*sumDyXhat/float64(batch))
			if accumulate {
				dx[n*channels+c] += T(g)
			} else {
				dx[n*channels+c] = T(g)
			}
		}
	}, cfg)
}
