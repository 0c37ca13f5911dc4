// Package resource grants operators the auxiliary state they request before
// execution: scratch space, a random source, or per-worker random streams.
package resource

import (
	"fmt"
	"math/rand"
	"unsafe"

	"github.com/born-ml/opcheck/internal/tensor"
)

// Kind names one category of grantable resource.
type Kind int

// Supported resource kinds.
const (
	TempSpace Kind = iota
	Random
	ParallelRandom
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case TempSpace:
		return "TempSpace"
	case Random:
		return "Random"
	case ParallelRandom:
		return "ParallelRandom"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Request asks the manager for one resource of a kind.
type Request struct {
	Kind Kind
}

// Context identifies the device slot a resource is bound against. Handles for
// the same Context may be shared by the binder; handles for different
// Contexts never are.
type Context struct {
	Device tensor.Device
	Index  int
}

// Resource is one granted handle. The kind-specific accessors panic when
// called on the wrong kind; a handle is only ever used by the operator that
// requested it.
type Resource struct {
	kind Kind
	ctx  Context
	id   int64

	space   []byte       // TempSpace backing store, grown on demand
	rng     *rand.Rand   // Random source
	streams []*rand.Rand // ParallelRandom, populated by AllocStreams
}

// Kind returns the granted kind.
func (r *Resource) Kind() Kind {
	return r.kind
}

// Context returns the device slot the handle was granted for.
func (r *Resource) Context() Context {
	return r.ctx
}

// ID returns the handle's unique grant number.
func (r *Resource) ID() int64 {
	return r.id
}

// Space returns a TempSpace scratch slice of at least nbytes, reusing and
// growing one backing allocation across calls. Contents are unspecified.
func (r *Resource) Space(nbytes int) []byte {
	if r.kind != TempSpace {
		panic(fmt.Sprintf("resource: Space on %s handle", r.kind))
	}
	if cap(r.space) < nbytes {
		r.space = make([]byte, nbytes)
	}
	r.space = r.space[:nbytes]
	return r.space
}

// SpaceFloat64 returns TempSpace scratch viewed as n float64s.
// Contents are unspecified.
func (r *Resource) SpaceFloat64(n int) []float64 {
	if n == 0 {
		return nil
	}
	raw := r.Space(n * 8)
	//nolint:gosec // unsafe.Slice for zero-copy access, backing store is 8-aligned
	return unsafe.Slice((*float64)(unsafe.Pointer(&raw[0])), n)
}

// Rand returns the handle's random source.
// Valid for Random handles only.
func (r *Resource) Rand() *rand.Rand {
	if r.kind != Random {
		panic(fmt.Sprintf("resource: Rand on %s handle", r.kind))
	}
	return r.rng
}

// AllocStreams gives a ParallelRandom handle one independent random stream per
// worker. Streams are seeded deterministically from the handle's grant number
// so a given binding order reproduces the same draws.
func (r *Resource) AllocStreams(workers int) {
	if r.kind != ParallelRandom {
		panic(fmt.Sprintf("resource: AllocStreams on %s handle", r.kind))
	}
	if workers < 1 {
		panic(fmt.Sprintf("resource: AllocStreams with %d workers", workers))
	}
	r.streams = make([]*rand.Rand, workers)
	for w := range r.streams {
		//nolint:gosec // math/rand is appropriate for test data generation
		r.streams[w] = rand.New(rand.NewSource(r.id<<16 + int64(w)))
	}
}

// Streams reports how many streams AllocStreams granted.
func (r *Resource) Streams() int {
	return len(r.streams)
}

// Stream returns worker w's random stream.
// Panics if AllocStreams has not run or w is out of range.
func (r *Resource) Stream(w int) *rand.Rand {
	if r.kind != ParallelRandom {
		panic(fmt.Sprintf("resource: Stream on %s handle", r.kind))
	}
	if w < 0 || w >= len(r.streams) {
		panic(fmt.Sprintf("resource: stream %d of %d", w, len(r.streams)))
	}
	return r.streams[w]
}
