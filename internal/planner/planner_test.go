package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcab-platform/transaction-service/internal/domain"
)

// In-memory fakes for the inventory store

type fakeStockRepo struct {
	locations []*domain.StockLocation
	history   map[string][]*domain.IssueRecord
	actorBins map[string]map[string]bool
}

func (f *fakeStockRepo) FindLocationsByItem(_ context.Context, itemID string) ([]*domain.StockLocation, error) {
	var result []*domain.StockLocation
	for _, loc := range f.locations {
		if loc.ItemID == itemID {
			result = append(result, loc)
		}
	}
	return result, nil
}

func (f *fakeStockRepo) FindLocationsByBin(_ context.Context, binID string) ([]*domain.StockLocation, error) {
	var result []*domain.StockLocation
	for _, loc := range f.locations {
		if loc.BinID == binID {
			result = append(result, loc)
		}
	}
	return result, nil
}

func (f *fakeStockRepo) FindIssueHistory(_ context.Context, actorID, itemID string) ([]*domain.IssueRecord, error) {
	return f.history[actorID+"|"+itemID], nil
}

func (f *fakeStockRepo) FindActorBins(_ context.Context, actorID, itemID string) (map[string]bool, error) {
	if bins, ok := f.actorBins[actorID+"|"+itemID]; ok {
		return bins, nil
	}
	return map[string]bool{}, nil
}

func (f *fakeStockRepo) UpdateAvailableQty(_ context.Context, _ string, _ int) error {
	return nil
}

func (f *fakeStockRepo) SaveIssueRecord(_ context.Context, _ *domain.IssueRecord) error {
	return nil
}

func (f *fakeStockRepo) RecordReturn(_ context.Context, _, _, _ string, _ int) error {
	return nil
}

type fakeBinRepo struct {
	bins map[string]*domain.Bin
}

func (f *fakeBinRepo) Save(_ context.Context, _ *domain.Bin) error { return nil }

func (f *fakeBinRepo) FindByID(_ context.Context, binID string) (*domain.Bin, error) {
	return f.bins[binID], nil
}

func (f *fakeBinRepo) FindByCabinetID(_ context.Context, _ string) ([]*domain.Bin, error) {
	return nil, nil
}

func (f *fakeBinRepo) FindFailed(_ context.Context) ([]*domain.Bin, error) { return nil, nil }

func testLocation(loadcellID, binID, itemID string, available, capacity int) *domain.StockLocation {
	return &domain.StockLocation{
		LoadcellID:         loadcellID,
		BinID:              binID,
		CabinetID:          "CAB-1",
		ItemID:             itemID,
		ItemName:           "Item " + itemID,
		UnitWeight:         10.0,
		ZeroWeight:         100.0,
		CalibratedCapacity: capacity,
		AvailableQty:       available,
	}
}

func testBins(binIDs ...string) *fakeBinRepo {
	bins := make(map[string]*domain.Bin, len(binIDs))
	for _, id := range binIDs {
		bins[id] = &domain.Bin{
			BinID:     id,
			CabinetID: "CAB-1",
			Name:      id,
			IsLocked:  true,
		}
	}
	return &fakeBinRepo{bins: bins}
}

func TestPlanIssue_ActorHistoryFirst(t *testing.T) {
	// Bin A holds 50, bin B holds 30; actor previously used bin A.
	// A request for 70 must take 50 from A first, then 20 from B.
	stock := &fakeStockRepo{
		locations: []*domain.StockLocation{
			testLocation("LC-B", "BIN-B", "ITEM-X", 30, 100),
			testLocation("LC-A", "BIN-A", "ITEM-X", 50, 100),
		},
		actorBins: map[string]map[string]bool{
			"actor-1|ITEM-X": {"BIN-A": true},
		},
	}

	p := New(stock, testBins("BIN-A", "BIN-B"))

	steps, err := p.Plan(context.Background(), "TX-1", domain.TransactionTypeIssue,
		[]RequestedItem{{ItemID: "ITEM-X", Quantity: 70}}, "actor-1")
	require.NoError(t, err)
	require.Len(t, steps, 2)

	assert.Equal(t, "BIN-A", steps[0].BinID)
	require.Len(t, steps[0].ItemsToIssue, 1)
	assert.Equal(t, 50, steps[0].ItemsToIssue[0].RequestQty)

	assert.Equal(t, "BIN-B", steps[1].BinID)
	require.Len(t, steps[1].ItemsToIssue, 1)
	assert.Equal(t, 20, steps[1].ItemsToIssue[0].RequestQty)

	total := steps[0].TotalRequestQty() + steps[1].TotalRequestQty()
	assert.Equal(t, 70, total)
}

func TestPlanIssue_Errors(t *testing.T) {
	tests := []struct {
		name      string
		available int
		quantity  int
		noStock   bool
		wantErr   error
	}{
		{name: "no candidate locations", noStock: true, quantity: 10, wantErr: domain.ErrItemUnavailable},
		{name: "insufficient stock", available: 5, quantity: 10, wantErr: domain.ErrInsufficientStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stock := &fakeStockRepo{}
			if !tt.noStock {
				stock.locations = []*domain.StockLocation{
					testLocation("LC-1", "BIN-1", "ITEM-X", tt.available, 100),
				}
			}

			p := New(stock, testBins("BIN-1"))

			_, err := p.Plan(context.Background(), "TX-1", domain.TransactionTypeIssue,
				[]RequestedItem{{ItemID: "ITEM-X", Quantity: tt.quantity}}, "actor-1")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPlanIssue_SkipsExpiredAndFailedBins(t *testing.T) {
	expired := time.Now().Add(-time.Hour)
	goodLoc := testLocation("LC-GOOD", "BIN-GOOD", "ITEM-X", 10, 100)
	expiredLoc := testLocation("LC-EXP", "BIN-EXP", "ITEM-X", 10, 100)
	expiredLoc.ExpiresAt = &expired
	failedLoc := testLocation("LC-FAIL", "BIN-FAIL", "ITEM-X", 10, 100)

	stock := &fakeStockRepo{locations: []*domain.StockLocation{expiredLoc, failedLoc, goodLoc}}
	bins := testBins("BIN-GOOD", "BIN-EXP", "BIN-FAIL")
	bins.bins["BIN-FAIL"].IsFailed = true

	p := New(stock, bins)

	steps, err := p.Plan(context.Background(), "TX-1", domain.TransactionTypeIssue,
		[]RequestedItem{{ItemID: "ITEM-X", Quantity: 10}}, "actor-1")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "BIN-GOOD", steps[0].BinID)
}

func TestPlanReturn(t *testing.T) {
	stock := &fakeStockRepo{
		locations: []*domain.StockLocation{
			testLocation("LC-1", "BIN-1", "ITEM-Y", 10, 100),
			testLocation("LC-2", "BIN-2", "ITEM-Y", 10, 100),
		},
		history: map[string][]*domain.IssueRecord{
			"actor-1|ITEM-Y": {
				{ActorID: "actor-1", ItemID: "ITEM-Y", LoadcellID: "LC-1", BinID: "BIN-1", IssuedQty: 30},
				{ActorID: "actor-1", ItemID: "ITEM-Y", LoadcellID: "LC-2", BinID: "BIN-2", IssuedQty: 20},
			},
		},
	}

	p := New(stock, testBins("BIN-1", "BIN-2"))

	t.Run("walks issue history in stored order", func(t *testing.T) {
		steps, err := p.Plan(context.Background(), "TX-1", domain.TransactionTypeReturn,
			[]RequestedItem{{ItemID: "ITEM-Y", Quantity: 40}}, "actor-1")
		require.NoError(t, err)
		require.Len(t, steps, 2)

		assert.Equal(t, "BIN-1", steps[0].BinID)
		assert.Equal(t, 30, steps[0].ItemsToReturn[0].RequestQty)
		assert.Equal(t, "BIN-2", steps[1].BinID)
		assert.Equal(t, 10, steps[1].ItemsToReturn[0].RequestQty)
	})

	t.Run("over-return fails before any step is created", func(t *testing.T) {
		_, err := p.Plan(context.Background(), "TX-2", domain.TransactionTypeReturn,
			[]RequestedItem{{ItemID: "ITEM-Y", Quantity: 60}}, "actor-1")
		assert.ErrorIs(t, err, domain.ErrOverReturn)
	})

	t.Run("no issue history", func(t *testing.T) {
		_, err := p.Plan(context.Background(), "TX-3", domain.TransactionTypeReturn,
			[]RequestedItem{{ItemID: "ITEM-Y", Quantity: 5}}, "actor-unknown")
		assert.ErrorIs(t, err, domain.ErrNoIssueHistory)
	})
}

func TestPlanReturn_AccountsForPriorReturns(t *testing.T) {
	stock := &fakeStockRepo{
		locations: []*domain.StockLocation{
			testLocation("LC-1", "BIN-1", "ITEM-Y", 10, 100),
		},
		history: map[string][]*domain.IssueRecord{
			"actor-1|ITEM-Y": {
				{ActorID: "actor-1", ItemID: "ITEM-Y", LoadcellID: "LC-1", BinID: "BIN-1", IssuedQty: 30, ReturnedQty: 25},
			},
		},
	}

	p := New(stock, testBins("BIN-1"))

	_, err := p.Plan(context.Background(), "TX-1", domain.TransactionTypeReturn,
		[]RequestedItem{{ItemID: "ITEM-Y", Quantity: 10}}, "actor-1")
	assert.ErrorIs(t, err, domain.ErrOverReturn)
}

func TestPlanReplenish(t *testing.T) {
	t.Run("fills least-full location first", func(t *testing.T) {
		stock := &fakeStockRepo{
			locations: []*domain.StockLocation{
				testLocation("LC-FULL", "BIN-FULL", "ITEM-Z", 80, 100), // ratio 0.8
				testLocation("LC-LOW", "BIN-LOW", "ITEM-Z", 10, 100),   // ratio 0.1
			},
		}

		p := New(stock, testBins("BIN-FULL", "BIN-LOW"))

		steps, err := p.Plan(context.Background(), "TX-1", domain.TransactionTypeReplenish,
			[]RequestedItem{{ItemID: "ITEM-Z", Quantity: 100}}, "actor-1")
		require.NoError(t, err)
		require.Len(t, steps, 2)

		assert.Equal(t, "BIN-LOW", steps[0].BinID)
		assert.Equal(t, 90, steps[0].ItemsToReplenish[0].RequestQty)
		assert.Equal(t, "BIN-FULL", steps[1].BinID)
		assert.Equal(t, 10, steps[1].ItemsToReplenish[0].RequestQty)
	})

	t.Run("no replenishable location", func(t *testing.T) {
		stock := &fakeStockRepo{
			locations: []*domain.StockLocation{
				testLocation("LC-1", "BIN-1", "ITEM-Z", 100, 100),
			},
		}

		p := New(stock, testBins("BIN-1"))

		_, err := p.Plan(context.Background(), "TX-1", domain.TransactionTypeReplenish,
			[]RequestedItem{{ItemID: "ITEM-Z", Quantity: 10}}, "actor-1")
		assert.ErrorIs(t, err, domain.ErrNoReplenishableLocation)
	})

	t.Run("insufficient space", func(t *testing.T) {
		stock := &fakeStockRepo{
			locations: []*domain.StockLocation{
				testLocation("LC-1", "BIN-1", "ITEM-Z", 90, 100),
			},
		}

		p := New(stock, testBins("BIN-1"))

		_, err := p.Plan(context.Background(), "TX-1", domain.TransactionTypeReplenish,
			[]RequestedItem{{ItemID: "ITEM-Z", Quantity: 50}}, "actor-1")
		assert.ErrorIs(t, err, domain.ErrInsufficientSpace)
	})
}

func TestPlan_GroupsMultipleItemsPerBin(t *testing.T) {
	stock := &fakeStockRepo{
		locations: []*domain.StockLocation{
			testLocation("LC-1", "BIN-1", "ITEM-A", 20, 100),
			testLocation("LC-2", "BIN-1", "ITEM-B", 20, 100),
		},
	}

	p := New(stock, testBins("BIN-1"))

	steps, err := p.Plan(context.Background(), "TX-1", domain.TransactionTypeIssue,
		[]RequestedItem{
			{ItemID: "ITEM-A", Quantity: 5},
			{ItemID: "ITEM-B", Quantity: 3},
		}, "actor-1")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Len(t, steps[0].ItemsToIssue, 2)
}

func TestPlan_KeepTrackExcludesAllRequestedItems(t *testing.T) {
	// BIN-1 holds three items; a request for A and B must only keep-track C,
	// never the sibling requested item.
	stock := &fakeStockRepo{
		locations: []*domain.StockLocation{
			testLocation("LC-1", "BIN-1", "ITEM-A", 20, 100),
			testLocation("LC-2", "BIN-1", "ITEM-B", 20, 100),
			testLocation("LC-3", "BIN-1", "ITEM-C", 20, 100),
		},
	}

	p := New(stock, testBins("BIN-1"))

	steps, err := p.Plan(context.Background(), "TX-1", domain.TransactionTypeIssue,
		[]RequestedItem{
			{ItemID: "ITEM-A", Quantity: 5},
			{ItemID: "ITEM-B", Quantity: 3},
		}, "actor-1")
	require.NoError(t, err)
	require.Len(t, steps, 1)

	require.Len(t, steps[0].KeepTrackItems, 1)
	assert.Equal(t, "ITEM-C", steps[0].KeepTrackItems[0].ItemID)
}

func TestPlan_Idempotent(t *testing.T) {
	stock := &fakeStockRepo{
		locations: []*domain.StockLocation{
			testLocation("LC-1", "BIN-1", "ITEM-X", 50, 100),
			testLocation("LC-2", "BIN-2", "ITEM-X", 30, 100),
		},
	}

	p := New(stock, testBins("BIN-1", "BIN-2"))
	req := []RequestedItem{{ItemID: "ITEM-X", Quantity: 60}}

	first, err := p.Plan(context.Background(), "TX-1", domain.TransactionTypeIssue, req, "actor-1")
	require.NoError(t, err)
	second, err := p.Plan(context.Background(), "TX-1", domain.TransactionTypeIssue, req, "actor-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPlan_Instructions(t *testing.T) {
	stock := &fakeStockRepo{
		locations: []*domain.StockLocation{
			testLocation("LC-1", "BIN-1", "ITEM-A", 20, 100),
		},
	}

	p := New(stock, testBins("BIN-1"))

	steps, err := p.Plan(context.Background(), "TX-1", domain.TransactionTypeIssue,
		[]RequestedItem{{ItemID: "ITEM-A", Quantity: 5}}, "actor-1")
	require.NoError(t, err)
	require.Len(t, steps, 1)

	require.Len(t, steps[0].Instructions, 3)
	assert.Equal(t, "Go to CAB-1/BIN-1", steps[0].Instructions[0])
	assert.Equal(t, "Take 5 x Item ITEM-A", steps[0].Instructions[1])
	assert.Equal(t, "Close BIN-1", steps[0].Instructions[2])
}

func TestPlan_EmptyRequest(t *testing.T) {
	p := New(&fakeStockRepo{}, testBins())

	_, err := p.Plan(context.Background(), "TX-1", domain.TransactionTypeIssue, nil, "actor-1")
	assert.ErrorIs(t, err, domain.ErrEmptyPlan)
}

func TestPlan_RejectsNonPositiveQuantity(t *testing.T) {
	p := New(&fakeStockRepo{}, testBins())

	_, err := p.Plan(context.Background(), "TX-1", domain.TransactionTypeIssue,
		[]RequestedItem{{ItemID: "ITEM-A", Quantity: 0}}, "actor-1")
	assert.Error(t, err)
}
