package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSteps() []ExecutionStep {
	return []ExecutionStep{
		{
			StepID: "TX-1-BIN-1-0",
			BinID:  "BIN-1",
			ItemsToIssue: []ItemAction{
				{ItemID: "ITEM-A", LoadcellID: "LC-1", RequestQty: 5, CurrentQty: 10},
			},
			Status: StepStatusPending,
		},
		{
			StepID: "TX-1-BIN-2-1",
			BinID:  "BIN-2",
			ItemsToIssue: []ItemAction{
				{ItemID: "ITEM-A", LoadcellID: "LC-2", RequestQty: 3, CurrentQty: 8},
			},
			Status: StepStatusPending,
		},
	}
}

func TestNewTransaction(t *testing.T) {
	tx, err := NewTransaction("TX-1", TransactionTypeIssue, "user-1", 8, testSteps())
	require.NoError(t, err)

	assert.Equal(t, TransactionStatusPending, tx.Status)
	assert.Empty(t, tx.CurrentStepID)
	assert.Len(t, tx.DomainEvents, 1)

	_, err = NewTransaction("TX-2", TransactionTypeIssue, "user-1", 0, nil)
	assert.ErrorIs(t, err, ErrNoExecutionSteps)
}

func TestTransaction_Lifecycle(t *testing.T) {
	tx, err := NewTransaction("TX-1", TransactionTypeIssue, "user-1", 8, testSteps())
	require.NoError(t, err)

	require.NoError(t, tx.Start())
	assert.Equal(t, TransactionStatusProcessing, tx.Status)
	assert.Equal(t, "TX-1-BIN-1-0", tx.CurrentStepID)
	assert.ErrorIs(t, tx.Start(), ErrTransactionNotPending)

	require.NoError(t, tx.BeginStep("TX-1-BIN-1-0"))
	require.NoError(t, tx.CompleteStep("TX-1-BIN-1-0"))
	require.NoError(t, tx.BeginStep("TX-1-BIN-2-1"))
	require.NoError(t, tx.CompleteStep("TX-1-BIN-2-1"))

	require.NoError(t, tx.Complete())
	assert.Equal(t, TransactionStatusCompleted, tx.Status)
	assert.True(t, tx.IsTerminal())
	assert.NotNil(t, tx.CompletedAt)

	assert.ErrorIs(t, tx.Complete(), ErrTransactionTerminal)
	assert.ErrorIs(t, tx.Cancel("late"), ErrTransactionTerminal)
}

func TestTransaction_SkippedStepDegradesOutcome(t *testing.T) {
	tx, err := NewTransaction("TX-1", TransactionTypeIssue, "user-1", 8, testSteps())
	require.NoError(t, err)
	require.NoError(t, tx.Start())

	require.NoError(t, tx.CompleteStep("TX-1-BIN-1-0"))
	require.NoError(t, tx.SkipStep("TX-1-BIN-2-1", "bin failed to open"))

	require.NoError(t, tx.Complete())
	assert.Equal(t, TransactionStatusCompletedWithError, tx.Status)

	step, err := tx.StepByID("TX-1-BIN-2-1")
	require.NoError(t, err)
	assert.Equal(t, StepStatusSkipped, step.Status)
	assert.Equal(t, "bin failed to open", step.SkipReason)
}

func TestTransaction_InvalidEventDegradesOutcome(t *testing.T) {
	tx, err := NewTransaction("TX-1", TransactionTypeIssue, "user-1", 8, testSteps())
	require.NoError(t, err)
	require.NoError(t, tx.Start())

	tx.AppendEvent(TransactionEvent{
		EventID:         "EV-1",
		TransactionID:   "TX-1",
		StepID:          "TX-1-BIN-1-0",
		BinID:           "BIN-1",
		ItemID:          "ITEM-A",
		QuantityBefore:  10,
		QuantityAfter:   8,
		QuantityChanged: 2,
		IsValid:         false,
		Errors:          []string{"removed 2, requested 5"},
		CreatedAt:       time.Now(),
	})

	require.NoError(t, tx.Complete())
	assert.Equal(t, TransactionStatusCompletedWithError, tx.Status)
}

func TestTransaction_HoldAndResume(t *testing.T) {
	tx, err := NewTransaction("TX-1", TransactionTypeIssue, "user-1", 8, testSteps())
	require.NoError(t, err)
	require.NoError(t, tx.Start())

	assert.ErrorIs(t, tx.Resume(), ErrTransactionNotHeld)

	require.NoError(t, tx.Hold("quantity discrepancy at BIN-1"))
	assert.Equal(t, TransactionStatusAwaitingCorrection, tx.Status)
	assert.Equal(t, "quantity discrepancy at BIN-1", tx.LastError)

	require.NoError(t, tx.Resume())
	assert.Equal(t, TransactionStatusProcessing, tx.Status)
}

func TestTransaction_FailRecordsReason(t *testing.T) {
	tx, err := NewTransaction("TX-1", TransactionTypeIssue, "user-1", 8, testSteps())
	require.NoError(t, err)
	require.NoError(t, tx.Start())

	require.NoError(t, tx.Fail("discrepancy unresolved within hold window"))
	assert.Equal(t, TransactionStatusFailed, tx.Status)
	assert.Equal(t, "discrepancy unresolved within hold window", tx.LastError)
	assert.ErrorIs(t, tx.Hold("late"), ErrTransactionTerminal)
}

func TestTransaction_StepByIDMissing(t *testing.T) {
	tx, err := NewTransaction("TX-1", TransactionTypeIssue, "user-1", 8, testSteps())
	require.NoError(t, err)

	_, err = tx.StepByID("TX-1-BIN-9-9")
	assert.ErrorIs(t, err, ErrStepNotFound)
	assert.ErrorIs(t, tx.BeginStep("TX-1-BIN-9-9"), ErrStepNotFound)
}

func TestBin_FailureThreshold(t *testing.T) {
	bin := &Bin{BinID: "BIN-1", IsLocked: true}

	assert.False(t, bin.RecordFailedOpen())
	assert.False(t, bin.RecordFailedOpen())
	assert.True(t, bin.RecordFailedOpen())
	assert.True(t, bin.IsFailed)

	require.NoError(t, bin.ClearFailure())
	assert.False(t, bin.IsFailed)
	assert.Zero(t, bin.FailedOpenAttempts)

	assert.ErrorIs(t, bin.ClearFailure(), ErrBinNotFailed)
}

func TestBin_OpenResetsFailedAttempts(t *testing.T) {
	bin := &Bin{BinID: "BIN-1", IsLocked: true}

	bin.RecordFailedOpen()
	bin.MarkOpened()
	assert.Zero(t, bin.FailedOpenAttempts)
	assert.False(t, bin.IsLocked)

	bin.MarkClosed()
	assert.True(t, bin.IsLocked)
}

func TestStockLocation_QuantityFromWeight(t *testing.T) {
	loc := &StockLocation{LoadcellID: "LC-1", UnitWeight: 10, ZeroWeight: 100}

	tests := []struct {
		name   string
		weight float64
		want   int
	}{
		{"exact units", 150, 5},
		{"rounds down partial unit", 158, 5},
		{"at zero weight", 100, 0},
		{"below zero weight clamps", 80, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loc.QuantityFromWeight(tt.weight)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	bad := &StockLocation{LoadcellID: "LC-2", UnitWeight: 0}
	_, err := bad.QuantityFromWeight(100)
	assert.ErrorIs(t, err, ErrInvalidUnitWeight)
}

func TestStockLocation_SpareCapacity(t *testing.T) {
	loc := &StockLocation{CalibratedCapacity: 50, AvailableQty: 20}
	assert.Equal(t, 30, loc.SpareCapacity())

	over := &StockLocation{CalibratedCapacity: 50, AvailableQty: 55}
	assert.Zero(t, over.SpareCapacity())
}
