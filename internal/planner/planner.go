package planner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/smartcab-platform/transaction-service/internal/domain"
)

// RequestedItem is one line of a transaction request
type RequestedItem struct {
	ItemID   string
	Quantity int
}

// PlannedItem is an ephemeral allocation of part of one requested item to
// one stock location. Never persisted; consumed to build execution steps.
type PlannedItem struct {
	ItemID     string
	ItemName   string
	LoadcellID string
	BinID      string
	CabinetID  string
	RequestQty int
	CurrentQty int
}

// Planner converts a list of requested items into a bin-by-bin execution
// plan. It reads the inventory store but performs no writes.
type Planner struct {
	stock domain.StockRepository
	bins  domain.BinRepository
}

// New creates a new Planner
func New(stock domain.StockRepository, bins domain.BinRepository) *Planner {
	return &Planner{stock: stock, bins: bins}
}

// Plan produces the ordered execution steps for a transaction. Allocation is
// computed independently per requested item, then merged by bin. Any failure
// aborts the whole plan; nothing is partially applied.
func (p *Planner) Plan(ctx context.Context, transactionID string, txType domain.TransactionType, requested []RequestedItem, actorID string) ([]domain.ExecutionStep, error) {
	if len(requested) == 0 {
		return nil, domain.ErrEmptyPlan
	}

	var planned []PlannedItem
	for _, req := range requested {
		if req.Quantity <= 0 {
			return nil, fmt.Errorf("requested quantity for item %s must be positive", req.ItemID)
		}

		var (
			allocations []PlannedItem
			err         error
		)
		switch txType {
		case domain.TransactionTypeIssue:
			allocations, err = p.planIssue(ctx, req.ItemID, req.Quantity, actorID)
		case domain.TransactionTypeReturn:
			allocations, err = p.planReturn(ctx, req.ItemID, req.Quantity, actorID)
		case domain.TransactionTypeReplenish:
			allocations, err = p.planReplenish(ctx, req.ItemID, req.Quantity)
		default:
			err = fmt.Errorf("unknown transaction type: %s", txType)
		}
		if err != nil {
			return nil, err
		}

		planned = append(planned, allocations...)
	}

	steps, err := p.buildSteps(ctx, transactionID, txType, planned, requested)
	if err != nil {
		return nil, err
	}

	if len(steps) == 0 {
		return nil, domain.ErrEmptyPlan
	}

	return steps, nil
}

// planIssue allocates an issue request across locations holding the item.
// Locations the actor has drawn from before sort first; allocation is then
// greedy in that order.
func (p *Planner) planIssue(ctx context.Context, itemID string, quantity int, actorID string) ([]PlannedItem, error) {
	locations, err := p.allocatableLocations(ctx, itemID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	candidates := make([]*domain.StockLocation, 0, len(locations))
	for _, loc := range locations {
		if loc.AvailableQty > 0 && !loc.Expired(now) {
			candidates = append(candidates, loc)
		}
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("item %s: %w", itemID, domain.ErrItemUnavailable)
	}

	actorBins, err := p.stock.FindActorBins(ctx, actorID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load actor bin history: %w", err)
	}

	// Stable: previously-used bins first, ties preserve original order
	sort.SliceStable(candidates, func(i, j int) bool {
		return actorBins[candidates[i].BinID] && !actorBins[candidates[j].BinID]
	})

	totalAvailable := 0
	for _, c := range candidates {
		totalAvailable += c.AvailableQty
	}
	if totalAvailable < quantity {
		return nil, fmt.Errorf("item %s: need %d, have %d: %w", itemID, quantity, totalAvailable, domain.ErrInsufficientStock)
	}

	var allocations []PlannedItem
	remaining := quantity
	for _, c := range candidates {
		if remaining == 0 {
			break
		}

		take := min(remaining, c.AvailableQty)
		allocations = append(allocations, PlannedItem{
			ItemID:     c.ItemID,
			ItemName:   c.ItemName,
			LoadcellID: c.LoadcellID,
			BinID:      c.BinID,
			CabinetID:  c.CabinetID,
			RequestQty: take,
			CurrentQty: c.AvailableQty,
		})
		remaining -= take
	}

	return allocations, nil
}

// planReturn walks the actor's issue history in stored order, returning to
// each source location until the requested quantity is covered
func (p *Planner) planReturn(ctx context.Context, itemID string, quantity int, actorID string) ([]PlannedItem, error) {
	records, err := p.stock.FindIssueHistory(ctx, actorID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load issue history: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("item %s: %w", itemID, domain.ErrNoIssueHistory)
	}

	totalOutstanding := 0
	for _, r := range records {
		totalOutstanding += r.Outstanding()
	}
	if quantity > totalOutstanding {
		return nil, fmt.Errorf("item %s: returning %d but only %d issued: %w", itemID, quantity, totalOutstanding, domain.ErrOverReturn)
	}

	locations, err := p.allocatableLocations(ctx, itemID)
	if err != nil {
		return nil, err
	}
	byLoadcell := make(map[string]*domain.StockLocation, len(locations))
	for _, loc := range locations {
		byLoadcell[loc.LoadcellID] = loc
	}

	var allocations []PlannedItem
	remaining := quantity
	for _, r := range records {
		if remaining == 0 {
			break
		}

		outstanding := r.Outstanding()
		if outstanding == 0 {
			continue
		}

		loc, ok := byLoadcell[r.LoadcellID]
		if !ok {
			continue
		}

		give := min(remaining, outstanding)
		allocations = append(allocations, PlannedItem{
			ItemID:     itemID,
			ItemName:   loc.ItemName,
			LoadcellID: r.LoadcellID,
			BinID:      r.BinID,
			CabinetID:  loc.CabinetID,
			RequestQty: give,
			CurrentQty: loc.AvailableQty,
		})
		remaining -= give
	}

	if remaining > 0 {
		return nil, fmt.Errorf("item %s: issue history walk left %d unallocated: %w", itemID, remaining, domain.ErrAllocationInconsistent)
	}

	return allocations, nil
}

// planReplenish fills locations least-full first, deliberately rebalancing
// stock across bins rather than topping up any single one
func (p *Planner) planReplenish(ctx context.Context, itemID string, quantity int) ([]PlannedItem, error) {
	locations, err := p.allocatableLocations(ctx, itemID)
	if err != nil {
		return nil, err
	}

	candidates := make([]*domain.StockLocation, 0, len(locations))
	for _, loc := range locations {
		if loc.SpareCapacity() > 0 {
			candidates = append(candidates, loc)
		}
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("item %s: %w", itemID, domain.ErrNoReplenishableLocation)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].FillRatio() < candidates[j].FillRatio()
	})

	totalSpare := 0
	for _, c := range candidates {
		totalSpare += c.SpareCapacity()
	}
	if totalSpare < quantity {
		return nil, fmt.Errorf("item %s: need space for %d, have %d: %w", itemID, quantity, totalSpare, domain.ErrInsufficientSpace)
	}

	var allocations []PlannedItem
	remaining := quantity
	for _, c := range candidates {
		if remaining == 0 {
			break
		}

		fill := min(remaining, c.SpareCapacity())
		allocations = append(allocations, PlannedItem{
			ItemID:     c.ItemID,
			ItemName:   c.ItemName,
			LoadcellID: c.LoadcellID,
			BinID:      c.BinID,
			CabinetID:  c.CabinetID,
			RequestQty: fill,
			CurrentQty: c.AvailableQty,
		})
		remaining -= fill
	}

	return allocations, nil
}

// allocatableLocations returns the item's stock locations in bins that are
// neither failed nor damaged
func (p *Planner) allocatableLocations(ctx context.Context, itemID string) ([]*domain.StockLocation, error) {
	locations, err := p.stock.FindLocationsByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock locations: %w", err)
	}

	result := make([]*domain.StockLocation, 0, len(locations))
	for _, loc := range locations {
		bin, err := p.bins.FindByID(ctx, loc.BinID)
		if err != nil {
			return nil, fmt.Errorf("failed to load bin %s: %w", loc.BinID, err)
		}
		if bin != nil && bin.Allocatable() {
			result = append(result, loc)
		}
	}
	return result, nil
}
