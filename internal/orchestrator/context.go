package orchestrator

import (
	"context"
	"sync"
)

// OrchestrationContext is the live, in-memory handle for one running
// transaction. It carries the state machine and the channels that inbound
// bus events and operator overrides are delivered on. Owned exclusively by
// the goroutine running the transaction; other goroutines interact with it
// only through the Deliver* methods and the machine's flag setters.
type OrchestrationContext struct {
	TransactionID string

	Machine *Machine

	lockResults chan LockResult
	binClosed   chan BinClosedNotice
	userActions chan UserActionNotice
	warningAcks chan WarningAck
	forceNext   chan ForceNext

	mu           sync.Mutex
	currentBinID string
	holding      bool
	awaitingUser bool
	retryCount   int
	cancel       context.CancelFunc
	cancelReason string
}

// NewOrchestrationContext creates a context with single-slot delivery
// channels. Buffering one entry lets a delivery land between waits without
// blocking the dispatcher.
func NewOrchestrationContext(transactionID string, machine *Machine) *OrchestrationContext {
	return &OrchestrationContext{
		TransactionID: transactionID,
		Machine:       machine,
		lockResults:   make(chan LockResult, 1),
		binClosed:     make(chan BinClosedNotice, 1),
		userActions:   make(chan UserActionNotice, 1),
		warningAcks:   make(chan WarningAck, 1),
		forceNext:     make(chan ForceNext, 1),
	}
}

// DeliverLockResult hands a lock command outcome to the waiting
// orchestration. Returns false if nothing could accept it.
func (c *OrchestrationContext) DeliverLockResult(result LockResult) bool {
	select {
	case c.lockResults <- result:
		return true
	default:
		return false
	}
}

// DeliverBinClosed hands a bin-closed notice to the waiting orchestration
func (c *OrchestrationContext) DeliverBinClosed(notice BinClosedNotice) bool {
	select {
	case c.binClosed <- notice:
		return true
	default:
		return false
	}
}

// DeliverUserAction hands a user-action-complete notice to the waiting
// orchestration
func (c *OrchestrationContext) DeliverUserAction(notice UserActionNotice) bool {
	select {
	case c.userActions <- notice:
		return true
	default:
		return false
	}
}

// DeliverWarningAck hands an operator warning acknowledgment to the waiting
// orchestration
func (c *OrchestrationContext) DeliverWarningAck(ack WarningAck) bool {
	select {
	case c.warningAcks <- ack:
		return true
	default:
		return false
	}
}

// DeliverForceNext hands a force-next override to the orchestration. The
// override is accepted only while the orchestration is at a skippable wait,
// the user-action window or a discrepancy hold; a force arriving in any
// other state is refused so steps cannot be skipped outside the intended
// recovery flow.
func (c *OrchestrationContext) DeliverForceNext(force ForceNext) bool {
	c.mu.Lock()
	accepting := c.holding || c.awaitingUser
	c.mu.Unlock()

	if !accepting {
		return false
	}

	select {
	case c.forceNext <- force:
		return true
	default:
		return false
	}
}

// LockResults exposes the lock result delivery channel for inspection
func (c *OrchestrationContext) LockResults() <-chan LockResult {
	return c.lockResults
}

// ForceNextRequests exposes the force-next delivery channel for inspection
func (c *OrchestrationContext) ForceNextRequests() <-chan ForceNext {
	return c.forceNext
}

// CurrentBinID returns the bin the orchestration is currently working
func (c *OrchestrationContext) CurrentBinID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentBinID
}

func (c *OrchestrationContext) setCurrentBin(binID string) {
	c.mu.Lock()
	c.currentBinID = binID
	c.mu.Unlock()
}

// Holding reports whether the orchestration is blocked on a discrepancy
func (c *OrchestrationContext) Holding() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.holding
}

func (c *OrchestrationContext) setHolding(v bool) {
	c.mu.Lock()
	c.holding = v
	c.mu.Unlock()

	if !v {
		c.drainForceNext()
	}
}

func (c *OrchestrationContext) setAwaitingUser(v bool) {
	c.mu.Lock()
	c.awaitingUser = v
	c.mu.Unlock()

	if !v {
		c.drainForceNext()
	}
}

// drainForceNext discards a force queued during a closed accept window so a
// stale override cannot skip a later step.
func (c *OrchestrationContext) drainForceNext() {
	c.mu.Lock()
	open := c.holding || c.awaitingUser
	c.mu.Unlock()
	if open {
		return
	}
	select {
	case <-c.forceNext:
	default:
	}
}

// Cancel stops the orchestration with the given reason. Safe to call from
// any goroutine; a second call is a no-op.
func (c *OrchestrationContext) Cancel(reason string) {
	c.mu.Lock()
	cancel := c.cancel
	if c.cancelReason == "" {
		c.cancelReason = reason
	}
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// CancelReason returns the reason the orchestration was cancelled, if any
func (c *OrchestrationContext) CancelReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelReason
}

func (c *OrchestrationContext) bindCancel(cancel context.CancelFunc) {
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
}
