package orchestrator

import (
	"context"
	"fmt"

	"github.com/smartcab-platform/transaction-service/internal/domain"
)

// Scale reads loadcell weights for a bin. Implemented by the weighing
// collaborator; faked in tests.
type Scale interface {
	// CaptureBaseline takes a fresh zero reference for every loadcell in
	// the bin, keyed by loadcell id
	CaptureBaseline(ctx context.Context, binID string) (map[string]float64, error)

	// ReadCurrent reads the current weight of every loadcell in the bin,
	// keyed by loadcell id
	ReadCurrent(ctx context.Context, binID string) (map[string]float64, error)
}

// itemOutcome is the measured result of one item action at a bin
type itemOutcome struct {
	action     domain.ItemAction
	qtyBefore  int
	qtyAfter   int
	qtyChanged int
	valid      bool
	detail     string
}

// measureOutcomes derives per-item quantity changes from the baseline and
// closing weight readings. The expected direction of change depends on the
// transaction type: issues remove stock, returns and replenishments add it.
// A loadcell missing from either reading or miscalibrated is reported as an
// invalid outcome, not an error, so one bad cell cannot abort the step.
func measureOutcomes(
	txType domain.TransactionType,
	actions []domain.ItemAction,
	locations map[string]*domain.StockLocation,
	baseline map[string]float64,
	current map[string]float64,
) []itemOutcome {
	outcomes := make([]itemOutcome, 0, len(actions))

	for _, action := range actions {
		outcome := itemOutcome{action: action}

		loc, ok := locations[action.LoadcellID]
		if !ok {
			outcome.detail = fmt.Sprintf("no stock location for loadcell %s", action.LoadcellID)
			outcomes = append(outcomes, outcome)
			continue
		}

		before, hasBefore := baseline[action.LoadcellID]
		after, hasAfter := current[action.LoadcellID]
		if !hasBefore || !hasAfter {
			outcome.detail = fmt.Sprintf("missing weight reading for loadcell %s", action.LoadcellID)
			outcomes = append(outcomes, outcome)
			continue
		}

		qtyBefore, err := loc.QuantityFromWeight(before)
		if err != nil {
			outcome.detail = err.Error()
			outcomes = append(outcomes, outcome)
			continue
		}
		qtyAfter, err := loc.QuantityFromWeight(after)
		if err != nil {
			outcome.detail = err.Error()
			outcomes = append(outcomes, outcome)
			continue
		}

		outcome.qtyBefore = qtyBefore
		outcome.qtyAfter = qtyAfter

		switch txType {
		case domain.TransactionTypeIssue:
			outcome.qtyChanged = qtyBefore - qtyAfter
		default:
			outcome.qtyChanged = qtyAfter - qtyBefore
		}

		// Zero tolerance: any deviation from the requested quantity is a
		// discrepancy.
		if outcome.qtyChanged == action.RequestQty {
			outcome.valid = true
		} else {
			outcome.detail = fmt.Sprintf("expected quantity change %d, measured %d", action.RequestQty, outcome.qtyChanged)
		}

		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

// keepTrackViolations reports unauthorized removals from watched loadcells
// at the bin. Only removals are flagged; an unexpected addition is noise,
// not theft.
func keepTrackViolations(
	keepTrack []domain.KeepTrack,
	locations map[string]*domain.StockLocation,
	baseline map[string]float64,
	current map[string]float64,
) []DiscrepancyItem {
	var violations []DiscrepancyItem

	for _, kt := range keepTrack {
		loc, ok := locations[kt.LoadcellID]
		if !ok {
			continue
		}
		before, hasBefore := baseline[kt.LoadcellID]
		after, hasAfter := current[kt.LoadcellID]
		if !hasBefore || !hasAfter {
			continue
		}

		qtyBefore, err := loc.QuantityFromWeight(before)
		if err != nil {
			continue
		}
		qtyAfter, err := loc.QuantityFromWeight(after)
		if err != nil {
			continue
		}

		if qtyAfter < qtyBefore {
			violations = append(violations, DiscrepancyItem{
				ItemID:      kt.ItemID,
				LoadcellID:  kt.LoadcellID,
				RequestQty:  0,
				ActualQty:   qtyBefore - qtyAfter,
				Description: fmt.Sprintf("item %s removed without being requested", kt.ItemID),
			})
		}
	}

	return violations
}
