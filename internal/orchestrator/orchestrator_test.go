package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcab-platform/transaction-service/internal/domain"
	"github.com/smartcab-platform/transaction-service/pkg/cloudevents"
	"github.com/smartcab-platform/transaction-service/pkg/logging"
	"github.com/smartcab-platform/transaction-service/pkg/resilience"
)

// Fakes

type fakeTxStore struct {
	mu       sync.Mutex
	snapshot domain.Transaction
	saves    int
}

func (f *fakeTxStore) Save(_ context.Context, tx *domain.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = *tx
	f.saves++
	return nil
}

func (f *fakeTxStore) FindByID(_ context.Context, _ string) (*domain.Transaction, error) {
	return nil, nil
}

func (f *fakeTxStore) FindByUserID(_ context.Context, _ string) ([]*domain.Transaction, error) {
	return nil, nil
}

func (f *fakeTxStore) FindByStatus(_ context.Context, _ domain.TransactionStatus) ([]*domain.Transaction, error) {
	return nil, nil
}

func (f *fakeTxStore) FindRecent(_ context.Context, _ int64) ([]*domain.Transaction, error) {
	return nil, nil
}

func (f *fakeTxStore) AppendEvent(_ context.Context, _ string, _ domain.TransactionEvent) error {
	return nil
}

func (f *fakeTxStore) Status() domain.TransactionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot.Status
}

func (f *fakeTxStore) Snapshot() domain.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

type fakeBinStore struct {
	mu   sync.Mutex
	bins map[string]*domain.Bin
}

func newFakeBinStore(bins ...*domain.Bin) *fakeBinStore {
	s := &fakeBinStore{bins: make(map[string]*domain.Bin)}
	for _, b := range bins {
		copied := *b
		s.bins[b.BinID] = &copied
	}
	return s
}

func (f *fakeBinStore) Save(_ context.Context, bin *domain.Bin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *bin
	f.bins[bin.BinID] = &copied
	return nil
}

func (f *fakeBinStore) FindByID(_ context.Context, binID string) (*domain.Bin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bin, ok := f.bins[binID]
	if !ok {
		return nil, nil
	}
	copied := *bin
	return &copied, nil
}

func (f *fakeBinStore) FindByCabinetID(_ context.Context, _ string) ([]*domain.Bin, error) {
	return nil, nil
}

func (f *fakeBinStore) FindFailed(_ context.Context) ([]*domain.Bin, error) {
	return nil, nil
}

type fakeStockStore struct {
	mu        sync.Mutex
	locations []*domain.StockLocation
	issued    []*domain.IssueRecord
	returns   int
}

func (f *fakeStockStore) FindLocationsByItem(_ context.Context, itemID string) ([]*domain.StockLocation, error) {
	var result []*domain.StockLocation
	for _, loc := range f.locations {
		if loc.ItemID == itemID {
			result = append(result, loc)
		}
	}
	return result, nil
}

func (f *fakeStockStore) FindLocationsByBin(_ context.Context, binID string) ([]*domain.StockLocation, error) {
	var result []*domain.StockLocation
	for _, loc := range f.locations {
		if loc.BinID == binID {
			result = append(result, loc)
		}
	}
	return result, nil
}

func (f *fakeStockStore) FindIssueHistory(_ context.Context, _, _ string) ([]*domain.IssueRecord, error) {
	return nil, nil
}

func (f *fakeStockStore) FindActorBins(_ context.Context, _, _ string) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (f *fakeStockStore) UpdateAvailableQty(_ context.Context, _ string, _ int) error {
	return nil
}

func (f *fakeStockStore) SaveIssueRecord(_ context.Context, record *domain.IssueRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued = append(f.issued, record)
	return nil
}

func (f *fakeStockStore) RecordReturn(_ context.Context, _, _, _ string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.returns++
	return nil
}

func (f *fakeStockStore) IssuedRecords() []*domain.IssueRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.IssueRecord(nil), f.issued...)
}

type fakeBus struct {
	commands chan *cloudevents.CloudEvent
	process  chan *cloudevents.CloudEvent
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		commands: make(chan *cloudevents.CloudEvent, 32),
		process:  make(chan *cloudevents.CloudEvent, 32),
	}
}

func (b *fakeBus) PublishBinCommand(_ context.Context, event *cloudevents.CloudEvent) error {
	b.commands <- event
	return nil
}

func (b *fakeBus) PublishProcessEvent(_ context.Context, event *cloudevents.CloudEvent) error {
	select {
	case b.process <- event:
	default:
	}
	return nil
}

type fakeScale struct {
	mu       sync.Mutex
	baseline map[string]float64
	current  map[string]float64
}

func (s *fakeScale) CaptureBaseline(_ context.Context, _ string) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline, nil
}

func (s *fakeScale) ReadCurrent(_ context.Context, _ string) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

// Test setup helpers

func testConfig() *Config {
	return &Config{
		LockResultWait:     100 * time.Millisecond,
		LockOpenRetries:    3,
		ManualWait:         80 * time.Millisecond,
		ManualPollInterval: 10 * time.Millisecond,
		UserActionWait:     500 * time.Millisecond,
		BinClosedWait:      100 * time.Millisecond,
		DiscrepancyHold:    2 * time.Second,
		StepRetry: &resilience.RetryConfig{
			MaxAttempts:     2,
			InitialDelay:    time.Millisecond,
			MaxDelay:        5 * time.Millisecond,
			BackoffFactor:   2.0,
			RetryableErrors: func(error) bool { return true },
		},
	}
}

func testTransaction(t *testing.T, requestQty int) *domain.Transaction {
	t.Helper()

	steps := []domain.ExecutionStep{{
		StepID: domain.NewStepID("TX-1", "BIN-1", 0),
		BinID:  "BIN-1",
		ItemsToIssue: []domain.ItemAction{{
			ItemID:     "ITEM-A",
			ItemName:   "Item A",
			LoadcellID: "LC-1",
			RequestQty: requestQty,
			CurrentQty: 10,
		}},
		Status: domain.StepStatusPending,
	}}

	tx, err := domain.NewTransaction("TX-1", domain.TransactionTypeIssue, "user-1", requestQty, steps)
	require.NoError(t, err)
	return tx
}

type harness struct {
	orch  *Orchestrator
	txs   *fakeTxStore
	bins  *fakeBinStore
	stock *fakeStockStore
	bus   *fakeBus
	scale *fakeScale
}

func newHarness(scale *fakeScale) *harness {
	return newHarnessWithConfig(scale, testConfig())
}

func newHarnessWithConfig(scale *fakeScale, cfg *Config) *harness {
	txs := &fakeTxStore{}
	bins := newFakeBinStore(&domain.Bin{
		BinID:            "BIN-1",
		CabinetID:        "CAB-1",
		Name:             "BIN-1",
		LockControllerID: "LOCK-1",
		LockChannel:      1,
		IsLocked:         true,
	})
	stock := &fakeStockStore{
		locations: []*domain.StockLocation{{
			LoadcellID:         "LC-1",
			BinID:              "BIN-1",
			CabinetID:          "CAB-1",
			ItemID:             "ITEM-A",
			ItemName:           "Item A",
			UnitWeight:         10.0,
			ZeroWeight:         100.0,
			CalibratedCapacity: 20,
			AvailableQty:       10,
		}},
	}
	bus := newFakeBus()
	logger := logging.New(logging.DefaultConfig("orchestrator-test"))

	orch := New(NewRegistry(), txs, bins, stock, bus, scale, logger, nil, cfg)
	return &harness{orch: orch, txs: txs, bins: bins, stock: stock, bus: bus, scale: scale}
}

// reactCabinet plays the cabinet controller: it answers open commands with
// the scripted lock result and confirms close commands. It also reports the
// user action as done right after a successful open.
func (h *harness) reactCabinet(t *testing.T, octx *OrchestrationContext, openSucceeds bool) {
	t.Helper()

	go func() {
		for event := range h.bus.commands {
			switch event.Type {
			case cloudevents.BinOpenRequested:
				octx.DeliverLockResult(LockResult{
					TransactionID: "TX-1",
					BinID:         "BIN-1",
					Success:       openSucceeds,
				})
				if openSucceeds {
					octx.DeliverUserAction(UserActionNotice{TransactionID: "TX-1", BinID: "BIN-1"})
				}
			case cloudevents.BinCloseRequested:
				octx.DeliverBinClosed(BinClosedNotice{TransactionID: "TX-1", BinID: "BIN-1"})
			}
		}
	}()
}

func awaitStatus(t *testing.T, txs *fakeTxStore, want domain.TransactionStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		return txs.Status() == want
	}, 5*time.Second, 10*time.Millisecond, "expected transaction status %s, got %s", want, txs.Status())
}

// Tests

func TestOrchestrator_CompletesCleanStep(t *testing.T) {
	scale := &fakeScale{
		baseline: map[string]float64{"LC-1": 150.0}, // 5 units
		current:  map[string]float64{"LC-1": 100.0}, // 0 units, 5 removed
	}
	h := newHarness(scale)
	tx := testTransaction(t, 5)

	octx, err := h.orch.Start(context.Background(), tx)
	require.NoError(t, err)
	h.reactCabinet(t, octx, true)

	awaitStatus(t, h.txs, domain.TransactionStatusCompleted)

	final := h.txs.Snapshot()
	require.Len(t, final.Events, 1)
	event := final.Events[0]
	assert.Equal(t, 5, event.QuantityBefore)
	assert.Equal(t, 0, event.QuantityAfter)
	assert.Equal(t, 5, event.QuantityChanged)
	assert.True(t, event.IsValid)
	assert.False(t, event.Forced)

	assert.Equal(t, domain.StepStatusCompleted, final.ExecutionSteps[0].Status)

	// The issue leaves a history record for future returns.
	records := h.stock.IssuedRecords()
	require.Len(t, records, 1)
	assert.Equal(t, "user-1", records[0].ActorID)
	assert.Equal(t, 5, records[0].IssuedQty)

	// Context is deregistered once terminal.
	require.Eventually(t, func() bool {
		_, lookupErr := h.orch.Registry().Lookup("TX-1")
		return lookupErr != nil
	}, time.Second, 10*time.Millisecond)
}

func TestOrchestrator_RepeatedOpenFailureSkipsBin(t *testing.T) {
	scale := &fakeScale{
		baseline: map[string]float64{"LC-1": 150.0},
		current:  map[string]float64{"LC-1": 150.0},
	}
	h := newHarness(scale)
	tx := testTransaction(t, 5)

	octx, err := h.orch.Start(context.Background(), tx)
	require.NoError(t, err)
	h.reactCabinet(t, octx, false)

	awaitStatus(t, h.txs, domain.TransactionStatusCompletedWithError)

	final := h.txs.Snapshot()
	assert.Equal(t, domain.StepStatusSkipped, final.ExecutionSteps[0].Status)
	assert.Empty(t, final.Events)

	bin, err := h.bins.FindByID(context.Background(), "BIN-1")
	require.NoError(t, err)
	assert.True(t, bin.IsFailed)
	assert.GreaterOrEqual(t, bin.FailedOpenAttempts, domain.MaxFailedOpenAttempts)

	var marked *domain.BinMarkedFailedEvent
	for _, event := range final.DomainEvents {
		if e, ok := event.(*domain.BinMarkedFailedEvent); ok {
			marked = e
		}
	}
	require.NotNil(t, marked)
	assert.Equal(t, "TX-1", marked.TransactionID)
	assert.Equal(t, "BIN-1", marked.BinID)
	assert.Equal(t, "CAB-1", marked.CabinetID)
	assert.GreaterOrEqual(t, marked.Attempts, domain.MaxFailedOpenAttempts)
	assert.False(t, marked.FailedAt.IsZero())
}

func TestOrchestrator_SkipsBinAlreadyFailed(t *testing.T) {
	scale := &fakeScale{
		baseline: map[string]float64{"LC-1": 150.0},
		current:  map[string]float64{"LC-1": 150.0},
	}
	h := newHarness(scale)
	failed, _ := h.bins.FindByID(context.Background(), "BIN-1")
	failed.MarkFailed()
	require.NoError(t, h.bins.Save(context.Background(), failed))

	tx := testTransaction(t, 5)
	octx, err := h.orch.Start(context.Background(), tx)
	require.NoError(t, err)
	h.reactCabinet(t, octx, true)

	awaitStatus(t, h.txs, domain.TransactionStatusCompletedWithError)

	final := h.txs.Snapshot()
	assert.Equal(t, domain.StepStatusSkipped, final.ExecutionSteps[0].Status)
	assert.Equal(t, "bin marked as failed hardware", final.ExecutionSteps[0].SkipReason)
}

func TestOrchestrator_DiscrepancyHeldUntilForced(t *testing.T) {
	// 5 requested but the weights say only 3 were taken.
	scale := &fakeScale{
		baseline: map[string]float64{"LC-1": 150.0}, // 5 units
		current:  map[string]float64{"LC-1": 120.0}, // 2 units, 3 removed
	}
	h := newHarness(scale)
	tx := testTransaction(t, 5)

	octx, err := h.orch.Start(context.Background(), tx)
	require.NoError(t, err)
	h.reactCabinet(t, octx, true)

	// The orchestration must park in the discrepancy hold, not advance.
	require.Eventually(t, func() bool {
		return octx.Holding()
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, domain.TransactionStatusAwaitingCorrection, h.txs.Status())
	assert.False(t, octx.Machine.Flags().IsNextRequestItem)

	require.True(t, octx.DeliverForceNext(ForceNext{
		TransactionID:     "TX-1",
		IsNextRequestItem: true,
		Operator:          "supervisor-7",
	}))

	awaitStatus(t, h.txs, domain.TransactionStatusCompletedWithError)

	final := h.txs.Snapshot()
	require.Len(t, final.Events, 1)
	event := final.Events[0]
	assert.Equal(t, 3, event.QuantityChanged)
	assert.False(t, event.IsValid)
	assert.True(t, event.Forced)
	assert.NotEmpty(t, event.Errors)

	var advance *domain.ForcedAdvanceEvent
	for _, domainEvent := range final.DomainEvents {
		if e, ok := domainEvent.(*domain.ForcedAdvanceEvent); ok {
			advance = e
		}
	}
	require.NotNil(t, advance)
	assert.Equal(t, "supervisor-7", advance.Operator)
}

func TestOrchestrator_DecliningAckKeepsHold(t *testing.T) {
	// 5 requested but the weights say only 3 were taken.
	scale := &fakeScale{
		baseline: map[string]float64{"LC-1": 150.0},
		current:  map[string]float64{"LC-1": 120.0},
	}
	h := newHarness(scale)
	tx := testTransaction(t, 5)

	octx, err := h.orch.Start(context.Background(), tx)
	require.NoError(t, err)
	h.reactCabinet(t, octx, true)

	require.Eventually(t, func() bool {
		return octx.Holding()
	}, 3*time.Second, 10*time.Millisecond)

	// Closing the popup without confirming continuation keeps the
	// transaction held instead of failing it.
	require.True(t, octx.DeliverWarningAck(WarningAck{
		TransactionID:       "TX-1",
		IsCloseWarningPopup: true,
		IsNextRequestItem:   false,
	}))

	time.Sleep(100 * time.Millisecond)
	assert.True(t, octx.Holding())
	assert.Equal(t, domain.TransactionStatusAwaitingCorrection, h.txs.Status())

	// A later confirming ack resumes and completes the step.
	require.True(t, octx.DeliverWarningAck(WarningAck{
		TransactionID:     "TX-1",
		IsNextRequestItem: true,
	}))

	awaitStatus(t, h.txs, domain.TransactionStatusCompletedWithError)

	final := h.txs.Snapshot()
	require.Len(t, final.Events, 1)
	assert.False(t, final.Events[0].IsValid)
	assert.False(t, final.Events[0].Forced)
}

func TestOrchestrator_ForceSkipDuringUserAction(t *testing.T) {
	scale := &fakeScale{
		baseline: map[string]float64{"LC-1": 150.0}, // 5 units
		current:  map[string]float64{"LC-1": 100.0}, // 0 units, 5 removed
	}
	cfg := testConfig()
	cfg.UserActionWait = 10 * time.Second
	h := newHarnessWithConfig(scale, cfg)
	tx := testTransaction(t, 5)

	octx, err := h.orch.Start(context.Background(), tx)
	require.NoError(t, err)

	// The cabinet answers open and close but the user never reports done.
	go func() {
		for event := range h.bus.commands {
			switch event.Type {
			case cloudevents.BinOpenRequested:
				octx.DeliverLockResult(LockResult{TransactionID: "TX-1", BinID: "BIN-1", Success: true})
			case cloudevents.BinCloseRequested:
				octx.DeliverBinClosed(BinClosedNotice{TransactionID: "TX-1", BinID: "BIN-1"})
			}
		}
	}()

	// The override is refused until the user-action wait begins, then
	// accepted.
	require.Eventually(t, func() bool {
		return octx.DeliverForceNext(ForceNext{
			TransactionID: "TX-1",
			Operator:      "supervisor-7",
		})
	}, 3*time.Second, 10*time.Millisecond)

	// Completion well inside the user-action window proves the force
	// advanced the step.
	awaitStatus(t, h.txs, domain.TransactionStatusCompleted)

	final := h.txs.Snapshot()
	require.Len(t, final.Events, 1)
	assert.True(t, final.Events[0].IsValid)
}

func TestOrchestrator_DuplicateStartRefused(t *testing.T) {
	scale := &fakeScale{
		baseline: map[string]float64{"LC-1": 150.0},
		current:  map[string]float64{"LC-1": 100.0},
	}
	h := newHarness(scale)
	tx := testTransaction(t, 5)

	octx, err := h.orch.Start(context.Background(), tx)
	require.NoError(t, err)
	h.reactCabinet(t, octx, true)

	_, err = h.orch.Start(context.Background(), tx)
	assert.ErrorIs(t, err, domain.ErrDuplicateContext)

	awaitStatus(t, h.txs, domain.TransactionStatusCompleted)
}

func TestOrchestrator_CancelStopsExecution(t *testing.T) {
	scale := &fakeScale{
		baseline: map[string]float64{"LC-1": 150.0},
		current:  map[string]float64{"LC-1": 150.0},
	}
	h := newHarness(scale)
	tx := testTransaction(t, 5)

	// No cabinet reactor: the orchestration sits waiting for a lock result.
	octx, err := h.orch.Start(context.Background(), tx)
	require.NoError(t, err)

	octx.Cancel("operator cancel")

	awaitStatus(t, h.txs, domain.TransactionStatusCancelled)
	assert.Equal(t, "operator cancel", h.txs.Snapshot().LastError)
}
