package orchestrator

import (
	"context"
	"sync"

	"github.com/smartcab-platform/transaction-service/pkg/logging"
	"github.com/smartcab-platform/transaction-service/pkg/metrics"
)

// State is one node of the per-transaction execution state machine
type State string

const (
	StateIdle                State = "IDLE"
	StateConnecting          State = "CONNECTING"
	StateReady               State = "READY"
	StateOpeningBin          State = "OPENING_BIN"
	StateBinOpen             State = "BIN_OPEN"
	StateClosingBin          State = "CLOSING_BIN"
	StateUpdatingTransaction State = "UPDATING_TRANSACTION"
	StateProcessingNext      State = "PROCESSING_NEXT"
	StateBinFailed           State = "BIN_FAILED"
	StateCompleted           State = "COMPLETED"
	StateError               State = "ERROR"
	StateCancelled           State = "CANCELLED"
)

// Terminal reports whether the state accepts no further transitions
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateError, StateCancelled:
		return true
	}
	return false
}

// Event drives state machine transitions
type Event string

const (
	EventStart              Event = "START"
	EventBusConnected       Event = "BUS_CONNECTED"
	EventProcessItem        Event = "PROCESS_ITEM"
	EventLockOpenSuccess    Event = "LOCK_OPEN_SUCCESS"
	EventLockOpenFail       Event = "LOCK_OPEN_FAIL"
	EventUserActionComplete Event = "USER_ACTION_COMPLETE"
	EventWarningPopupClosed Event = "WARNING_POPUP_CLOSED"
	EventBinClosed          Event = "BIN_CLOSED"
	EventTransactionUpdated Event = "TRANSACTION_UPDATED"
	EventAllItemsProcessed  Event = "ALL_ITEMS_PROCESSED"
	EventErrorOccurred      Event = "ERROR_OCCURRED"
	EventSkipItem           Event = "SKIP_ITEM"
	EventRetry              Event = "RETRY"
	EventCancel             Event = "CANCEL"
)

// transitions is the complete (state, event) -> next state table. An event
// with no entry for the current state is a logged no-op, never a failure.
// Terminal states have no entries at all.
var transitions = map[State]map[Event]State{
	StateIdle: {
		EventStart:  StateConnecting,
		EventCancel: StateCancelled,
	},
	StateConnecting: {
		EventBusConnected:  StateReady,
		EventErrorOccurred: StateError,
		EventCancel:        StateCancelled,
	},
	StateReady: {
		EventProcessItem:       StateOpeningBin,
		EventAllItemsProcessed: StateCompleted,
		EventErrorOccurred:     StateError,
		EventCancel:            StateCancelled,
	},
	StateOpeningBin: {
		EventLockOpenSuccess: StateBinOpen,
		EventLockOpenFail:    StateOpeningBin,
		EventRetry:           StateOpeningBin,
		EventSkipItem:        StateBinFailed,
		EventErrorOccurred:   StateError,
		EventCancel:          StateCancelled,
	},
	StateBinOpen: {
		EventUserActionComplete: StateClosingBin,
		EventSkipItem:           StateClosingBin,
		EventErrorOccurred:      StateError,
		EventCancel:             StateCancelled,
	},
	StateClosingBin: {
		EventBinClosed:     StateUpdatingTransaction,
		EventErrorOccurred: StateError,
		EventCancel:        StateCancelled,
	},
	StateUpdatingTransaction: {
		EventWarningPopupClosed: StateUpdatingTransaction,
		EventTransactionUpdated: StateProcessingNext,
		EventErrorOccurred:      StateError,
		EventCancel:             StateCancelled,
	},
	StateProcessingNext: {
		EventProcessItem:       StateOpeningBin,
		EventAllItemsProcessed: StateCompleted,
		EventErrorOccurred:     StateError,
		EventCancel:            StateCancelled,
	},
	StateBinFailed: {
		EventProcessItem:       StateOpeningBin,
		EventAllItemsProcessed: StateCompleted,
		EventErrorOccurred:     StateError,
		EventCancel:            StateCancelled,
	},
}

// Flags are the externally visible execution flags reported to operator UIs
// over the process status channel
type Flags struct {
	IsProcessingItem    bool `json:"isProcessingItem"`
	IsCloseWarningPopup bool `json:"isCloseWarningPopup"`
	IsNextRequestItem   bool `json:"isNextRequestItem"`
}

// effect describes the flag changes applied on entering a state. A nil field
// leaves the flag untouched.
type effect struct {
	processingItem    *bool
	closeWarningPopup *bool
	nextRequestItem   *bool
}

// effects maps each state to the flag changes applied exactly once on entry,
// keeping the state-to-flags mapping total and testable instead of scattered
// across handlers
var effects = map[State]effect{
	StateOpeningBin:          {processingItem: boolPtr(true)},
	StateBinOpen:             {processingItem: boolPtr(true)},
	StateUpdatingTransaction: {processingItem: boolPtr(false)},
	StateProcessingNext:      {nextRequestItem: boolPtr(true), closeWarningPopup: boolPtr(false)},
	StateBinFailed:           {processingItem: boolPtr(false)},
	StateCompleted:           {processingItem: boolPtr(false), closeWarningPopup: boolPtr(false)},
	StateError:               {processingItem: boolPtr(false)},
	StateCancelled:           {processingItem: boolPtr(false)},
}

func boolPtr(b bool) *bool { return &b }

// Machine is the per-transaction state machine. All transitions go through
// Fire so every state change is logged, measured and applies its flag
// effects exactly once.
type Machine struct {
	mu            sync.Mutex
	transactionID string
	state         State
	flags         Flags
	logger        *logging.Logger
	metrics       *metrics.Metrics
}

// NewMachine creates a machine in IDLE with the initial flag set. The
// isNextRequestItem flag starts true: a fresh transaction is always allowed
// to advance to its first step.
func NewMachine(transactionID string, logger *logging.Logger, m *metrics.Metrics) *Machine {
	return &Machine{
		transactionID: transactionID,
		state:         StateIdle,
		flags:         Flags{IsNextRequestItem: true},
		logger:        logger,
		metrics:       m,
	}
}

// Fire applies an event. It returns the resulting state and whether a
// transition happened; an event not in the table for the current state
// leaves the machine unchanged.
func (m *Machine) Fire(ctx context.Context, event Event) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.state
	next, ok := transitions[from][event]
	if !ok {
		m.logger.WithFields(map[string]any{
			"transactionId": m.transactionID,
			"state":         string(from),
			"event":         string(event),
		}).Debug("ignoring event with no transition for current state")
		return from, false
	}

	m.state = next
	m.applyEffect(next)

	m.logger.StateTransition(ctx, m.transactionID, string(from), string(next), string(event))
	if m.metrics != nil {
		m.metrics.RecordStateTransition(string(from), string(next), string(event))
	}

	return next, true
}

func (m *Machine) applyEffect(state State) {
	eff, ok := effects[state]
	if !ok {
		return
	}
	if eff.processingItem != nil {
		m.flags.IsProcessingItem = *eff.processingItem
	}
	if eff.closeWarningPopup != nil {
		m.flags.IsCloseWarningPopup = *eff.closeWarningPopup
	}
	if eff.nextRequestItem != nil {
		m.flags.IsNextRequestItem = *eff.nextRequestItem
	}
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Flags returns a copy of the current flag set
func (m *Machine) Flags() Flags {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags
}

// SetNextRequestItem flips the advance flag from outside the state machine.
// Operator overrides and discrepancy detection both use this path.
func (m *Machine) SetNextRequestItem(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags.IsNextRequestItem = v
}

// SetCloseWarningPopup flips the warning popup flag from outside the state
// machine
func (m *Machine) SetCloseWarningPopup(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags.IsCloseWarningPopup = v
}
