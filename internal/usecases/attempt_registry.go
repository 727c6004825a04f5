package usecases

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// AttemptRegistry tracks in-flight attempts so they can be cancelled
type AttemptRegistry struct {
	mu       sync.Mutex
	inflight map[uuid.UUID]*registeredAttempt
}

type registeredAttempt struct {
	cancel    context.CancelFunc
	cancelled bool
}

func NewAttemptRegistry() *AttemptRegistry {
	return &AttemptRegistry{inflight: make(map[uuid.UUID]*registeredAttempt)}
}

// Register derives a cancellable context for id. The returned release func
// must be called once the attempt is over.
func (r *AttemptRegistry) Register(ctx context.Context, id uuid.UUID) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	entry := &registeredAttempt{cancel: cancel}

	r.mu.Lock()
	r.inflight[id] = entry
	r.mu.Unlock()

	return ctx, func() {
		r.mu.Lock()
		if r.inflight[id] == entry {
			delete(r.inflight, id)
		}
		r.mu.Unlock()
		cancel()
	}
}

// Cancel stops the attempt's context. It reports false for unknown ids.
func (r *AttemptRegistry) Cancel(id uuid.UUID) bool {
	r.mu.Lock()
	entry, ok := r.inflight[id]
	if ok {
		entry.cancelled = true
	}
	r.mu.Unlock()

	if ok {
		entry.cancel()
	}
	return ok
}

// Cancelled reports whether Cancel was called for a still registered attempt
func (r *AttemptRegistry) Cancelled(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.inflight[id]
	return ok && entry.cancelled
}

// InFlight returns the number of registered attempts
func (r *AttemptRegistry) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}
