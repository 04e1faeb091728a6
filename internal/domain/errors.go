package domain

import "errors"

// Planning errors. These surface synchronously to the caller before any
// hardware action is taken; a plan either succeeds completely or no
// transaction is created.
var (
	// ErrItemUnavailable means no allocatable location holds the item at all
	ErrItemUnavailable = errors.New("item not found at any allocatable location")

	// ErrInsufficientStock means locations exist but cannot cover the
	// requested quantity
	ErrInsufficientStock = errors.New("insufficient stock to satisfy requested quantity")

	// ErrNoIssueHistory means the actor has no issue history for the item
	ErrNoIssueHistory = errors.New("no issue history found for actor and item")

	// ErrOverReturn means the requested return exceeds the outstanding
	// issued quantity
	ErrOverReturn = errors.New("return quantity exceeds issued quantity")

	// ErrAllocationInconsistent means the issue-history walk could not
	// satisfy a quantity that the validation pass said was available
	ErrAllocationInconsistent = errors.New("issue history inconsistent with requested return")

	// ErrNoReplenishableLocation means no location for the item has spare
	// capacity
	ErrNoReplenishableLocation = errors.New("no replenishable location found for item")

	// ErrInsufficientSpace means total spare capacity is below the
	// requested replenishment quantity
	ErrInsufficientSpace = errors.New("insufficient spare capacity to satisfy requested quantity")

	// ErrEmptyPlan means a non-empty request produced zero steps, an
	// internal consistency failure that must never silently succeed
	ErrEmptyPlan = errors.New("allocation produced an empty plan for a non-empty request")
)

// Orchestration errors
var (
	// ErrDuplicateContext means an orchestration context is already
	// registered for the transaction id
	ErrDuplicateContext = errors.New("orchestration context already registered for transaction")

	// ErrContextNotFound means no live orchestration context exists for
	// the transaction id
	ErrContextNotFound = errors.New("no orchestration context found for transaction")

	// ErrBinBusy means the bin is mid-operation in another transaction
	ErrBinBusy = errors.New("bin is busy with another transaction")

	// ErrBinFailed means the bin is flagged as failed hardware
	ErrBinFailed = errors.New("bin is marked as failed hardware")
)

// IsPlanningError reports whether err belongs to the planning taxonomy
func IsPlanningError(err error) bool {
	for _, target := range []error{
		ErrItemUnavailable,
		ErrInsufficientStock,
		ErrNoIssueHistory,
		ErrOverReturn,
		ErrAllocationInconsistent,
		ErrNoReplenishableLocation,
		ErrInsufficientSpace,
		ErrEmptyPlan,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
