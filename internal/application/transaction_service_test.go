package application

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcab-platform/transaction-service/internal/domain"
	"github.com/smartcab-platform/transaction-service/internal/orchestrator"
	"github.com/smartcab-platform/transaction-service/internal/planner"
	apperrors "github.com/smartcab-platform/transaction-service/pkg/errors"
	"github.com/smartcab-platform/transaction-service/pkg/logging"
)

// Fakes

type fakeStock struct {
	locations []*domain.StockLocation
}

func (f *fakeStock) FindLocationsByItem(_ context.Context, itemID string) ([]*domain.StockLocation, error) {
	var result []*domain.StockLocation
	for _, loc := range f.locations {
		if loc.ItemID == itemID {
			result = append(result, loc)
		}
	}
	return result, nil
}

func (f *fakeStock) FindLocationsByBin(_ context.Context, binID string) ([]*domain.StockLocation, error) {
	var result []*domain.StockLocation
	for _, loc := range f.locations {
		if loc.BinID == binID {
			result = append(result, loc)
		}
	}
	return result, nil
}

func (f *fakeStock) FindIssueHistory(_ context.Context, _, _ string) ([]*domain.IssueRecord, error) {
	return nil, nil
}

func (f *fakeStock) FindActorBins(_ context.Context, _, _ string) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (f *fakeStock) UpdateAvailableQty(_ context.Context, _ string, _ int) error { return nil }

func (f *fakeStock) SaveIssueRecord(_ context.Context, _ *domain.IssueRecord) error { return nil }

func (f *fakeStock) RecordReturn(_ context.Context, _, _, _ string, _ int) error { return nil }

type fakeBins struct {
	bins map[string]*domain.Bin
}

func (f *fakeBins) Save(_ context.Context, _ *domain.Bin) error { return nil }

func (f *fakeBins) FindByID(_ context.Context, binID string) (*domain.Bin, error) {
	return f.bins[binID], nil
}

func (f *fakeBins) FindByCabinetID(_ context.Context, _ string) ([]*domain.Bin, error) {
	return nil, nil
}

func (f *fakeBins) FindFailed(_ context.Context) ([]*domain.Bin, error) { return nil, nil }

type fakeTxRepo struct {
	mu    sync.Mutex
	saved map[string]*domain.Transaction
}

func newFakeTxRepo() *fakeTxRepo {
	return &fakeTxRepo{saved: make(map[string]*domain.Transaction)}
}

func (f *fakeTxRepo) Save(_ context.Context, tx *domain.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[tx.TransactionID] = tx
	return nil
}

func (f *fakeTxRepo) FindByID(_ context.Context, id string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved[id], nil
}

func (f *fakeTxRepo) FindByUserID(_ context.Context, _ string) ([]*domain.Transaction, error) {
	return nil, nil
}

func (f *fakeTxRepo) FindByStatus(_ context.Context, status domain.TransactionStatus) ([]*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*domain.Transaction
	for _, tx := range f.saved {
		if tx.Status == status {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (f *fakeTxRepo) FindRecent(_ context.Context, _ int64) ([]*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*domain.Transaction
	for _, tx := range f.saved {
		result = append(result, tx)
	}
	return result, nil
}

func (f *fakeTxRepo) AppendEvent(_ context.Context, _ string, _ domain.TransactionEvent) error {
	return nil
}

type fakeRunner struct {
	mu      sync.Mutex
	started []*domain.Transaction
	err     error
}

func (f *fakeRunner) Start(_ context.Context, tx *domain.Transaction) (*orchestrator.OrchestrationContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.started = append(f.started, tx)
	return nil, nil
}

func (f *fakeRunner) startedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.started)
}

// Setup

func testService(t *testing.T) (*TransactionApplicationService, *fakeTxRepo, *fakeRunner, *orchestrator.Registry) {
	t.Helper()

	stock := &fakeStock{
		locations: []*domain.StockLocation{{
			LoadcellID:         "LC-1",
			BinID:              "BIN-1",
			CabinetID:          "CAB-1",
			ItemID:             "ITEM-A",
			ItemName:           "Item A",
			UnitWeight:         10.0,
			ZeroWeight:         100.0,
			CalibratedCapacity: 50,
			AvailableQty:       20,
		}},
	}
	bins := &fakeBins{bins: map[string]*domain.Bin{
		"BIN-1": {BinID: "BIN-1", CabinetID: "CAB-1", Name: "BIN-1", IsLocked: true},
	}}

	repo := newFakeTxRepo()
	runner := &fakeRunner{}
	registry := orchestrator.NewRegistry()
	logger := logging.New(logging.DefaultConfig("application-test"))

	svc := NewTransactionApplicationService(planner.New(stock, bins), repo, runner, registry, logger)
	return svc, repo, runner, registry
}

func liveContext(t *testing.T, registry *orchestrator.Registry, transactionID string) *orchestrator.OrchestrationContext {
	t.Helper()
	logger := logging.New(logging.DefaultConfig("application-test"))
	octx := orchestrator.NewOrchestrationContext(transactionID, orchestrator.NewMachine(transactionID, logger, nil))
	require.NoError(t, registry.Register(transactionID, octx))
	return octx
}

// Tests

func TestPlanAndStart(t *testing.T) {
	svc, repo, runner, _ := testService(t)

	dto, err := svc.PlanAndStart(context.Background(), CreateTransactionCommand{
		Type:   "ISSUE",
		UserID: "user-1",
		Items:  []RequestedItemInput{{ItemID: "ITEM-A", Quantity: 5}},
	})
	require.NoError(t, err)
	require.NotNil(t, dto)

	assert.Equal(t, "ISSUE", dto.Type)
	assert.Equal(t, string(domain.TransactionStatusPending), dto.Status)
	require.Len(t, dto.ExecutionSteps, 1)
	assert.Equal(t, "BIN-1", dto.ExecutionSteps[0].BinID)
	assert.Equal(t, 5, dto.ExecutionSteps[0].ItemsToIssue[0].RequestQty)

	assert.Equal(t, 1, runner.startedCount())

	stored, err := repo.FindByID(context.Background(), dto.TransactionID)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestPlanAndStart_ValidationErrors(t *testing.T) {
	svc, repo, runner, _ := testService(t)

	tests := []struct {
		name string
		cmd  CreateTransactionCommand
	}{
		{
			name: "unknown type",
			cmd: CreateTransactionCommand{
				Type: "BORROW", UserID: "user-1",
				Items: []RequestedItemInput{{ItemID: "ITEM-A", Quantity: 1}},
			},
		},
		{
			name: "no items",
			cmd:  CreateTransactionCommand{Type: "ISSUE", UserID: "user-1"},
		},
		{
			name: "non-positive quantity",
			cmd: CreateTransactionCommand{
				Type: "ISSUE", UserID: "user-1",
				Items: []RequestedItemInput{{ItemID: "ITEM-A", Quantity: 0}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PlanAndStart(context.Background(), tt.cmd)
			require.Error(t, err)

			appErr, ok := apperrors.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
		})
	}

	// No partial state: planning failures leave nothing behind.
	assert.Empty(t, repo.saved)
	assert.Equal(t, 0, runner.startedCount())
}

func TestPlanAndStart_PlanningErrorMapping(t *testing.T) {
	svc, repo, _, _ := testService(t)

	t.Run("insufficient stock maps to 422", func(t *testing.T) {
		_, err := svc.PlanAndStart(context.Background(), CreateTransactionCommand{
			Type:   "ISSUE",
			UserID: "user-1",
			Items:  []RequestedItemInput{{ItemID: "ITEM-A", Quantity: 100}},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
	})

	t.Run("unknown item maps to 404", func(t *testing.T) {
		_, err := svc.PlanAndStart(context.Background(), CreateTransactionCommand{
			Type:   "ISSUE",
			UserID: "user-1",
			Items:  []RequestedItemInput{{ItemID: "ITEM-MISSING", Quantity: 1}},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrItemUnavailable)

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
	})

	assert.Empty(t, repo.saved, "planning errors must not create transactions")
}

func TestForceNextStep(t *testing.T) {
	svc, _, _, registry := testService(t)

	t.Run("no live transaction", func(t *testing.T) {
		err := svc.ForceNextStep(context.Background(), ForceNextStepCommand{TransactionID: "TX-MISSING"})
		require.Error(t, err)

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
	})

	t.Run("refused outside a skippable wait", func(t *testing.T) {
		liveContext(t, registry, "TX-RUNNING")

		err := svc.ForceNextStep(context.Background(), ForceNextStepCommand{
			TransactionID:     "TX-RUNNING",
			IsNextRequestItem: true,
		})
		require.Error(t, err)

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusConflict, appErr.HTTPStatus)
	})
}

func TestCancelTransaction(t *testing.T) {
	svc, repo, _, registry := testService(t)

	t.Run("live transaction is cancelled through its context", func(t *testing.T) {
		octx := liveContext(t, registry, "TX-LIVE")

		require.NoError(t, svc.CancelTransaction(context.Background(), CancelTransactionCommand{
			TransactionID: "TX-LIVE",
			Reason:        "changed my mind",
		}))
		assert.Equal(t, "changed my mind", octx.CancelReason())
	})

	t.Run("pending transaction is cancelled directly", func(t *testing.T) {
		steps := []domain.ExecutionStep{{
			StepID: "TX-P-BIN-1-0", BinID: "BIN-1",
			ItemsToIssue: []domain.ItemAction{{ItemID: "ITEM-A", RequestQty: 1}},
			Status:       domain.StepStatusPending,
		}}
		tx, err := domain.NewTransaction("TX-P", domain.TransactionTypeIssue, "user-1", 1, steps)
		require.NoError(t, err)
		require.NoError(t, repo.Save(context.Background(), tx))

		require.NoError(t, svc.CancelTransaction(context.Background(), CancelTransactionCommand{TransactionID: "TX-P"}))

		stored, _ := repo.FindByID(context.Background(), "TX-P")
		assert.Equal(t, domain.TransactionStatusCancelled, stored.Status)
	})

	t.Run("finished transaction refuses cancellation", func(t *testing.T) {
		stored, _ := repo.FindByID(context.Background(), "TX-P")
		require.True(t, stored.IsTerminal())

		err := svc.CancelTransaction(context.Background(), CancelTransactionCommand{TransactionID: "TX-P"})
		require.Error(t, err)

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusConflict, appErr.HTTPStatus)
	})
}

func TestListTransactions_StatusFilter(t *testing.T) {
	svc, repo, _, _ := testService(t)

	for _, id := range []string{"TX-1", "TX-2"} {
		steps := []domain.ExecutionStep{{
			StepID: id + "-BIN-1-0", BinID: "BIN-1",
			ItemsToIssue: []domain.ItemAction{{ItemID: "ITEM-A", RequestQty: 1}},
			Status:       domain.StepStatusPending,
		}}
		tx, err := domain.NewTransaction(id, domain.TransactionTypeIssue, "user-1", 1, steps)
		require.NoError(t, err)
		require.NoError(t, repo.Save(context.Background(), tx))
	}

	dtos, err := svc.ListTransactions(context.Background(), ListTransactionsQuery{
		Status: string(domain.TransactionStatusPending),
	})
	require.NoError(t, err)
	assert.Len(t, dtos, 2)

	dtos, err = svc.ListTransactions(context.Background(), ListTransactionsQuery{
		Status: string(domain.TransactionStatusCompleted),
	})
	require.NoError(t, err)
	assert.Empty(t, dtos)
}
