package orchestrator

import (
	"sync"

	"github.com/smartcab-platform/transaction-service/internal/domain"
)

// Registry maps transaction ids to their live orchestration contexts.
// Invariant: at most one context per transaction id; registering a second
// fails with ErrDuplicateContext. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	contexts map[string]*OrchestrationContext
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		contexts: make(map[string]*OrchestrationContext),
	}
}

// Register adds a context. Fails if one is already registered for the id.
func (r *Registry) Register(transactionID string, ctx *OrchestrationContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contexts[transactionID]; exists {
		return domain.ErrDuplicateContext
	}

	r.contexts[transactionID] = ctx
	return nil
}

// Lookup returns the live context for the id
func (r *Registry) Lookup(transactionID string) (*OrchestrationContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ctx, ok := r.contexts[transactionID]
	if !ok {
		return nil, domain.ErrContextNotFound
	}
	return ctx, nil
}

// Deregister removes the context for the id. Removing an absent id is a
// no-op so the deferred cleanup path is always safe.
func (r *Registry) Deregister(transactionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contexts, transactionID)
}

// Count returns the number of live orchestrations
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.contexts)
}

// ActiveIDs returns the ids of all live orchestrations
func (r *Registry) ActiveIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.contexts))
	for id := range r.contexts {
		ids = append(ids, id)
	}
	return ids
}

// CancelAll cancels every live orchestration with the given reason, used
// during graceful shutdown
func (r *Registry) CancelAll(reason string) {
	r.mu.RLock()
	contexts := make([]*OrchestrationContext, 0, len(r.contexts))
	for _, ctx := range r.contexts {
		contexts = append(contexts, ctx)
	}
	r.mu.RUnlock()

	for _, ctx := range contexts {
		ctx.Cancel(reason)
	}
}
