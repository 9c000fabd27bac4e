// Package invreg implements the invocation registry: a concurrent map from
// 16-bit invocation id to a pending invocation record.
package invreg

import (
	"io"
	"math/rand/v2"
	"sync"

	"github.com/riverproto/channel/internal/wireproto"
)

// Record is the narrow interface the registry needs from a pending
// invocation. Implementations live in pkg/river (open-session waiters,
// method-invocation result producers); invreg knows nothing about their
// concrete shape, only that each fires exactly once.
type Record interface {
	// HandleResponse delivers a terminal or non-terminal response frame.
	// remainRegistered reports whether the record should remain registered afterward
	// (true only for PROCEED_ASYNC_RESPONSE).
	HandleResponse(opcode wireproto.Opcode, payload io.Reader) (remainRegistered bool)

	// HandleClosed notifies the record that the channel closed before any
	// terminal response arrived. Called at most once.
	HandleClosed()
}

// Registry is the concurrent id -> Record map keyed by invocation id.
// Ids are 16-bit and are sampled by a non-cryptographic PRNG: invocation
// ids are routing keys, not secrets, so there is no need for crypto/rand
// here (contrast the corpus's own use of crypto/rand for session ids,
// which are security-sensitive).
type Registry struct {
	mu     sync.Mutex
	byID   map[uint16]Record
	closed bool
}

// New returns an empty, open Registry.
func New() *Registry {
	return &Registry{byID: make(map[uint16]Record)}
}

// Allocate samples a free 16-bit id and inserts rec under it, retrying on
// collision. It returns ErrClosed if the registry
// has already been closed (I3: no inserts after closed).
func (r *Registry) Allocate(rec Record) (uint16, error) {
	for {
		id := uint16(rand.IntN(1 << 16))

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return 0, ErrClosed
		}
		if _, exists := r.byID[id]; exists {
			r.mu.Unlock()
			continue
		}
		r.byID[id] = rec
		r.mu.Unlock()
		return id, nil
	}
}

// Remove deletes id from the registry if present (I2: removal frees the id
// for reuse). It is idempotent.
func (r *Registry) Remove(id uint16) {
	r.mu.Lock()
	delete(r.byID, id)
	r.mu.Unlock()
}

// Dispatch looks up id and, if found, hands it the response frame. It
// reports whether a record was found. A record that asks to remain
// registered (PROCEED_ASYNC_RESPONSE) is left in place; any other outcome
// removes it (I2).
func (r *Registry) Dispatch(id uint16, opcode wireproto.Opcode, payload io.Reader) (found bool) {
	r.mu.Lock()
	rec, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	r.mu.Unlock()

	remain := rec.HandleResponse(opcode, payload)
	if !remain {
		r.Remove(id)
	}
	return true
}

// Close marks the registry closed (I3) and delivers HandleClosed to every
// record that was registered at the moment of closure, exactly once each
// (P2, P6). Subsequent Allocate calls fail with ErrClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	snapshot := make([]Record, 0, len(r.byID))
	for id, rec := range r.byID {
		snapshot = append(snapshot, rec)
		delete(r.byID, id)
	}
	r.mu.Unlock()

	for _, rec := range snapshot {
		rec.HandleClosed()
	}
}

// Closed reports whether the registry has been closed.
func (r *Registry) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
