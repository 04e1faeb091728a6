package orchestrator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcab-platform/transaction-service/internal/domain"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	octx := NewOrchestrationContext("TX-1", testMachine())

	require.NoError(t, r.Register("TX-1", octx))

	found, err := r.Lookup("TX-1")
	require.NoError(t, err)
	assert.Same(t, octx, found)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("TX-1", NewOrchestrationContext("TX-1", testMachine())))

	err := r.Register("TX-1", NewOrchestrationContext("TX-1", testMachine()))
	assert.ErrorIs(t, err, domain.ErrDuplicateContext)
}

func TestRegistry_LookupMissing(t *testing.T) {
	r := NewRegistry()

	_, err := r.Lookup("TX-MISSING")
	assert.ErrorIs(t, err, domain.ErrContextNotFound)
}

func TestRegistry_DeregisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("TX-1", NewOrchestrationContext("TX-1", testMachine())))

	r.Deregister("TX-1")
	r.Deregister("TX-1")

	_, err := r.Lookup("TX-1")
	assert.ErrorIs(t, err, domain.ErrContextNotFound)
	assert.Equal(t, 0, r.Count())

	// The id can be reused after deregistration.
	assert.NoError(t, r.Register("TX-1", NewOrchestrationContext("TX-1", testMachine())))
}

func TestRegistry_ConcurrentRegistration(t *testing.T) {
	r := NewRegistry()

	const goroutines = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Register("TX-1", NewOrchestrationContext("TX-1", testMachine())); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes, "exactly one registration must win")
}

func TestBinLeases(t *testing.T) {
	leases := NewBinLeases()

	require.NoError(t, leases.Acquire("BIN-1", "TX-1"))

	t.Run("second transaction is refused", func(t *testing.T) {
		err := leases.Acquire("BIN-1", "TX-2")
		assert.ErrorIs(t, err, domain.ErrBinBusy)
	})

	t.Run("holder can re-acquire", func(t *testing.T) {
		assert.NoError(t, leases.Acquire("BIN-1", "TX-1"))
	})

	t.Run("release by non-holder is a no-op", func(t *testing.T) {
		leases.Release("BIN-1", "TX-2")
		holder, held := leases.Holder("BIN-1")
		assert.True(t, held)
		assert.Equal(t, "TX-1", holder)
	})

	t.Run("release frees the bin", func(t *testing.T) {
		leases.Release("BIN-1", "TX-1")
		assert.NoError(t, leases.Acquire("BIN-1", "TX-2"))
	})
}

func TestOrchestrationContext_ForceNextOnlyWhileHolding(t *testing.T) {
	octx := NewOrchestrationContext("TX-1", testMachine())

	assert.False(t, octx.DeliverForceNext(ForceNext{TransactionID: "TX-1"}),
		"force outside a discrepancy hold must be refused")

	octx.setHolding(true)
	assert.True(t, octx.DeliverForceNext(ForceNext{TransactionID: "TX-1", IsNextRequestItem: true}))

	// Leaving the hold drains any queued force so it cannot skip a later step.
	octx.setHolding(false)
	select {
	case <-octx.forceNext:
		t.Fatal("queued force should have been drained")
	default:
	}
}
