package orchestrator

import (
	"sync"

	"github.com/smartcab-platform/transaction-service/internal/domain"
)

// BinLeases serializes physical access to bins across transactions. A bin
// may be mid-operation in at most one step at a time; the planner does not
// enforce this, so the executor acquires a lease before touching hardware
// and fails fast with ErrBinBusy when another transaction holds it.
type BinLeases struct {
	mu     sync.Mutex
	leases map[string]string
}

// NewBinLeases creates an empty lease table
func NewBinLeases() *BinLeases {
	return &BinLeases{
		leases: make(map[string]string),
	}
}

// Acquire takes the lease on a bin for a transaction. Re-acquiring a lease
// already held by the same transaction succeeds.
func (b *BinLeases) Acquire(binID, transactionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	holder, held := b.leases[binID]
	if held && holder != transactionID {
		return domain.ErrBinBusy
	}

	b.leases[binID] = transactionID
	return nil
}

// Release frees the lease if the transaction holds it. Releasing a lease
// held by another transaction is a no-op.
func (b *BinLeases) Release(binID, transactionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.leases[binID] == transactionID {
		delete(b.leases, binID)
	}
}

// Holder returns the transaction currently holding the bin, if any
func (b *BinLeases) Holder(binID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	holder, held := b.leases[binID]
	return holder, held
}
