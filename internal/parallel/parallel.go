// Package parallel provides the worker-pool helpers used by the opcheck CPU
// kernels and per-worker random streams.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64, // Typical cache line aware chunk.
	}
}

// Workers returns how many workers ForWorker will use for n items: 1 for
// sequential execution, otherwise the number of chunks the range splits into.
func (cfg Config) Workers(n int) int {
	if !cfg.Enabled || n < cfg.MinChunkSize {
		return 1
	}
	chunk := chunkSize(n, cfg)
	return (n + chunk - 1) / chunk
}

func chunkSize(n int, cfg Config) int {
	return max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)
}

// ForWorker executes f(w, i) for i in [0, n), where w identifies the worker
// running index i. Each worker owns a contiguous disjoint range, and w is
// always less than cfg.Workers(n), so callers can hand every worker its own
// mutable state (random streams, accumulators) without locking.
func ForWorker(n int, f func(w, i int), cfg Config) {
	if !cfg.Enabled || n < cfg.MinChunkSize {
		// Sequential fallback.
		for i := 0; i < n; i++ {
			f(0, i)
		}
		return
	}

	var wg sync.WaitGroup
	chunk := chunkSize(n, cfg)

	for w, start := 0, 0; start < n; w, start = w+1, start+chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(w, s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(w, i)
			}
		}(w, start, end)
	}
	wg.Wait()
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	ForWorker(n, func(_, i int) { f(i) }, cfg)
}

// ForBatch optimized for batch*channels iteration pattern.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	n := batch * channels
	For(n, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
