package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcab-platform/transaction-service/pkg/logging"
)

func testMachine() *Machine {
	logger := logging.New(logging.DefaultConfig("orchestrator-test"))
	return NewMachine("TX-1", logger, nil)
}

func allEvents() []Event {
	return []Event{
		EventStart, EventBusConnected, EventProcessItem,
		EventLockOpenSuccess, EventLockOpenFail, EventUserActionComplete,
		EventWarningPopupClosed, EventBinClosed, EventTransactionUpdated,
		EventAllItemsProcessed, EventErrorOccurred, EventSkipItem,
		EventRetry, EventCancel,
	}
}

func TestMachine_HappyPath(t *testing.T) {
	m := testMachine()
	ctx := context.Background()

	sequence := []struct {
		event Event
		want  State
	}{
		{EventStart, StateConnecting},
		{EventBusConnected, StateReady},
		{EventProcessItem, StateOpeningBin},
		{EventLockOpenSuccess, StateBinOpen},
		{EventUserActionComplete, StateClosingBin},
		{EventBinClosed, StateUpdatingTransaction},
		{EventTransactionUpdated, StateProcessingNext},
		{EventProcessItem, StateOpeningBin},
		{EventLockOpenSuccess, StateBinOpen},
		{EventUserActionComplete, StateClosingBin},
		{EventBinClosed, StateUpdatingTransaction},
		{EventTransactionUpdated, StateProcessingNext},
		{EventAllItemsProcessed, StateCompleted},
	}

	for _, s := range sequence {
		got, transitioned := m.Fire(ctx, s.event)
		require.True(t, transitioned, "event %s in state", s.event)
		assert.Equal(t, s.want, got)
	}
}

func TestMachine_UnknownEventIsNoOp(t *testing.T) {
	ctx := context.Background()

	// Drive a machine into each non-terminal state, then verify every event
	// without a table entry leaves the state unchanged.
	paths := map[State][]Event{
		StateIdle:                {},
		StateConnecting:          {EventStart},
		StateReady:               {EventStart, EventBusConnected},
		StateOpeningBin:          {EventStart, EventBusConnected, EventProcessItem},
		StateBinOpen:             {EventStart, EventBusConnected, EventProcessItem, EventLockOpenSuccess},
		StateClosingBin:          {EventStart, EventBusConnected, EventProcessItem, EventLockOpenSuccess, EventUserActionComplete},
		StateUpdatingTransaction: {EventStart, EventBusConnected, EventProcessItem, EventLockOpenSuccess, EventUserActionComplete, EventBinClosed},
		StateProcessingNext:      {EventStart, EventBusConnected, EventProcessItem, EventLockOpenSuccess, EventUserActionComplete, EventBinClosed, EventTransactionUpdated},
		StateBinFailed:           {EventStart, EventBusConnected, EventProcessItem, EventSkipItem},
	}

	for state, path := range paths {
		t.Run(string(state), func(t *testing.T) {
			m := testMachine()
			for _, e := range path {
				_, ok := m.Fire(ctx, e)
				require.True(t, ok)
			}
			require.Equal(t, state, m.State())

			for _, e := range allEvents() {
				if _, known := transitions[state][e]; known {
					continue
				}
				got, transitioned := m.Fire(ctx, e)
				assert.False(t, transitioned, "event %s must be a no-op in %s", e, state)
				assert.Equal(t, state, got)
			}
		})
	}
}

func TestMachine_TerminalStatesAcceptNothing(t *testing.T) {
	ctx := context.Background()

	terminalPaths := map[State][]Event{
		StateCompleted: {EventStart, EventBusConnected, EventAllItemsProcessed},
		StateError:     {EventStart, EventErrorOccurred},
		StateCancelled: {EventStart, EventCancel},
	}

	for state, path := range terminalPaths {
		t.Run(string(state), func(t *testing.T) {
			m := testMachine()
			for _, e := range path {
				_, ok := m.Fire(ctx, e)
				require.True(t, ok)
			}
			require.Equal(t, state, m.State())
			assert.True(t, state.Terminal())

			for _, e := range allEvents() {
				got, transitioned := m.Fire(ctx, e)
				assert.False(t, transitioned)
				assert.Equal(t, state, got)
			}
		})
	}
}

func TestMachine_FlagEffects(t *testing.T) {
	m := testMachine()
	ctx := context.Background()

	assert.True(t, m.Flags().IsNextRequestItem)
	assert.False(t, m.Flags().IsProcessingItem)

	m.Fire(ctx, EventStart)
	m.Fire(ctx, EventBusConnected)
	m.Fire(ctx, EventProcessItem)
	assert.True(t, m.Flags().IsProcessingItem, "OPENING_BIN sets isProcessingItem")

	m.Fire(ctx, EventLockOpenSuccess)
	m.Fire(ctx, EventUserActionComplete)
	m.Fire(ctx, EventBinClosed)
	assert.False(t, m.Flags().IsProcessingItem, "UPDATING_TRANSACTION clears isProcessingItem")

	// A discrepancy flips the advance flag from outside the machine.
	m.SetNextRequestItem(false)
	m.SetCloseWarningPopup(true)
	assert.False(t, m.Flags().IsNextRequestItem)
	assert.True(t, m.Flags().IsCloseWarningPopup)

	// Entering PROCESSING_NEXT restores the advance flags.
	m.Fire(ctx, EventTransactionUpdated)
	assert.True(t, m.Flags().IsNextRequestItem)
	assert.False(t, m.Flags().IsCloseWarningPopup)
}
