// Package identity implements the Identity Registry (C4): generation,
// FIFO recycling, and retry-counting of logical worker identities.
package identity

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cuemby/fleetmaster/pkg/types"
)

// Identity is an alias of types.Identity, kept local for readability.
type Identity = types.Identity

// Registry generates, recycles, and retry-counts identities for a single
// process kind (e.g. "worker"). The zero value is not usable; use New.
type Registry struct {
	processKind string
	counter     atomic.Int64

	mu       sync.Mutex
	unused   []Identity
	retries  map[Identity]int
	retired  map[Identity]bool
	maxRetry int
}

// New creates a registry for the given process kind and retry cap. A
// maxRetry of 0 disables the cap.
func New(processKind string, maxRetry int) *Registry {
	return &Registry{
		processKind: processKind,
		retries:     make(map[Identity]int),
		retired:     make(map[Identity]bool),
		maxRetry:    maxRetry,
	}
}

// Acquire dequeues an identity from the unused FIFO queue, skipping any
// retired identity, or generates a fresh one if the queue is empty.
func (r *Registry) Acquire() Identity {
	r.mu.Lock()
	defer r.mu.Unlock()

	for len(r.unused) > 0 {
		id := r.unused[0]
		r.unused = r.unused[1:]
		if r.retired[id] {
			continue
		}
		return id
	}

	n := r.counter.Add(1)
	return Identity(fmt.Sprintf("%s_%d", r.processKind, n))
}

// Release enqueues an identity onto the unused FIFO queue, making it
// available for a future Acquire. Callers must only do this for identities
// whose retry cap has not been exhausted.
func (r *Registry) Release(id Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unused = append(r.unused, id)
}

// IncrementRetry atomically gets-or-creates the retry counter for id and
// increments it, returning the post-increment value. The whole
// get-or-create-then-increment sequence runs under a single lock
// acquisition, so two concurrent completions for the same identity never
// observe the same post-increment value.
func (r *Registry) IncrementRetry(id Identity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries[id]++
	return r.retries[id]
}

// RetryCount returns the current retry count for id (0 if never recorded).
func (r *Registry) RetryCount(id Identity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retries[id]
}

// ExceedsCap reports whether count exceeds the configured retry cap. A cap
// of 0 means unlimited, so this always returns false in that case.
func (r *Registry) ExceedsCap(count int) bool {
	return r.maxRetry > 0 && count > r.maxRetry
}

// Retire marks an identity as retired: it will never again be dequeued by
// Acquire, even if Release were mistakenly called for it.
func (r *Registry) Retire(id Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retired[id] = true
}

// IsRetired reports whether id has been retired.
func (r *Registry) IsRetired(id Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retired[id]
}
