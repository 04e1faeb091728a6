package planner

import (
	"context"
	"fmt"

	"github.com/smartcab-platform/transaction-service/internal/domain"
)

// buildSteps groups planned items by bin (preserving first-seen bin order),
// merges each bin's allocations into one execution step, and attaches
// keep-track items and operator instructions.
func (p *Planner) buildSteps(ctx context.Context, transactionID string, txType domain.TransactionType, planned []PlannedItem, requested []RequestedItem) ([]domain.ExecutionStep, error) {
	requestedSet := make(map[string]bool, len(requested))
	for _, r := range requested {
		requestedSet[r.ItemID] = true
	}

	var binOrder []string
	byBin := make(map[string][]PlannedItem)
	for _, item := range planned {
		if _, seen := byBin[item.BinID]; !seen {
			binOrder = append(binOrder, item.BinID)
		}
		byBin[item.BinID] = append(byBin[item.BinID], item)
	}

	steps := make([]domain.ExecutionStep, 0, len(binOrder))
	for seq, binID := range binOrder {
		items := byBin[binID]

		bin, err := p.bins.FindByID(ctx, binID)
		if err != nil {
			return nil, fmt.Errorf("failed to load bin %s: %w", binID, err)
		}
		if bin == nil {
			return nil, fmt.Errorf("bin %s referenced by plan does not exist", binID)
		}

		keepTrack, err := p.keepTrackItems(ctx, binID, requestedSet)
		if err != nil {
			return nil, err
		}

		actions := make([]domain.ItemAction, 0, len(items))
		for _, item := range items {
			actions = append(actions, domain.ItemAction{
				ItemID:     item.ItemID,
				ItemName:   item.ItemName,
				LoadcellID: item.LoadcellID,
				RequestQty: item.RequestQty,
				CurrentQty: item.CurrentQty,
			})
		}

		step := domain.ExecutionStep{
			StepID:         domain.NewStepID(transactionID, binID, seq),
			BinID:          binID,
			KeepTrackItems: keepTrack,
			Location: domain.StepLocation{
				CabinetID:   bin.CabinetID,
				CabinetName: bin.CabinetID,
			},
			Instructions: buildInstructions(txType, bin, actions),
			Status:       domain.StepStatusPending,
		}

		switch txType {
		case domain.TransactionTypeIssue:
			step.ItemsToIssue = actions
		case domain.TransactionTypeReturn:
			step.ItemsToReturn = actions
		case domain.TransactionTypeReplenish:
			step.ItemsToReplenish = actions
		}

		steps = append(steps, step)
	}

	return steps, nil
}

// keepTrackItems lists the other items physically present at the bin so the
// orchestrator can detect unauthorized removal during the visit. Every item
// that is part of the request, not just the one being planned, is excluded
// so multi-item requests do not flag their own siblings.
func (p *Planner) keepTrackItems(ctx context.Context, binID string, requestedSet map[string]bool) ([]domain.KeepTrack, error) {
	locations, err := p.stock.FindLocationsByBin(ctx, binID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bin contents: %w", err)
	}

	seen := make(map[string]bool)
	var keepTrack []domain.KeepTrack
	for _, loc := range locations {
		if requestedSet[loc.ItemID] || seen[loc.LoadcellID] {
			continue
		}
		seen[loc.LoadcellID] = true
		keepTrack = append(keepTrack, domain.KeepTrack{
			LoadcellID: loc.LoadcellID,
			ItemID:     loc.ItemID,
			ItemName:   loc.ItemName,
			CurrentQty: loc.AvailableQty,
		})
	}

	return keepTrack, nil
}

// buildInstructions produces the fixed-shape operator instruction list for
// one bin visit
func buildInstructions(txType domain.TransactionType, bin *domain.Bin, actions []domain.ItemAction) []string {
	binName := bin.Name
	if binName == "" {
		binName = bin.BinID
	}

	instructions := make([]string, 0, len(actions)+2)
	instructions = append(instructions, fmt.Sprintf("Go to %s/%s", bin.CabinetID, binName))

	for _, a := range actions {
		itemName := a.ItemName
		if itemName == "" {
			itemName = a.ItemID
		}
		switch txType {
		case domain.TransactionTypeIssue:
			instructions = append(instructions, fmt.Sprintf("Take %d x %s", a.RequestQty, itemName))
		case domain.TransactionTypeReturn:
			instructions = append(instructions, fmt.Sprintf("Return %d x %s", a.RequestQty, itemName))
		case domain.TransactionTypeReplenish:
			instructions = append(instructions, fmt.Sprintf("Place %d x %s", a.RequestQty, itemName))
		}
	}

	instructions = append(instructions, fmt.Sprintf("Close %s", binName))
	return instructions
}
