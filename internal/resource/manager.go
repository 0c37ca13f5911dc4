package resource

import (
	"fmt"
	"math/rand"
	"sync"
)

// Manager grants resource handles. Grants are cheap; callers that want to
// share a handle across repeated identical requests (temp space within one
// binding pass) do their own caching keyed by Context.
type Manager struct {
	mu     sync.Mutex
	seed   int64
	nextID int64
}

// NewManager creates a manager whose random grants derive from seed.
func NewManager(seed int64) *Manager {
	return &Manager{seed: seed}
}

// Request grants one handle for req against ctx.
// Panics on resource kinds the manager does not support.
func (m *Manager) Request(ctx Context, req Request) *Resource {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	r := &Resource{kind: req.Kind, ctx: ctx, id: m.nextID}

	switch req.Kind {
	case TempSpace:
		// Backing store grows on first use.
	case Random:
		//nolint:gosec // math/rand is appropriate for test data generation
		r.rng = rand.New(rand.NewSource(m.seed + m.nextID))
	case ParallelRandom:
		// Streams are allocated by the binder once the worker count is known.
	default:
		panic(fmt.Sprintf("resource: unsupported resource kind %s", req.Kind))
	}
	return r
}

var (
	globalMu sync.Mutex
	global   = NewManager(55)
)

// Get returns the process-wide manager.
func Get() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

// Reset replaces the process-wide manager with a fresh one seeded by seed.
// Intended for tests that need reproducible grants.
func Reset(seed int64) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = NewManager(seed)
}
