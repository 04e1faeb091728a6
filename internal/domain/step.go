package domain

import (
	"fmt"
	"time"
)

// StepStatus represents the status of an execution step
type StepStatus string

const (
	StepStatusPending    StepStatus = "PENDING"
	StepStatusInProgress StepStatus = "IN_PROGRESS"
	StepStatusCompleted  StepStatus = "COMPLETED"
	StepStatusSkipped    StepStatus = "SKIPPED"
)

// ExecutionStep is one bin visit within a transaction plan, bundling every
// item action at that bin. The allocation is immutable once the plan is
// created; only the status fields change during execution.
type ExecutionStep struct {
	StepID           string         `bson:"stepId"`
	BinID            string         `bson:"binId"`
	ItemsToIssue     []ItemAction   `bson:"itemsToIssue,omitempty"`
	ItemsToReturn    []ItemAction   `bson:"itemsToReturn,omitempty"`
	ItemsToReplenish []ItemAction   `bson:"itemsToReplenish,omitempty"`
	KeepTrackItems   []KeepTrack    `bson:"keepTrackItems,omitempty"`
	Location         StepLocation   `bson:"location"`
	Instructions     []string       `bson:"instructions"`
	Status           StepStatus     `bson:"status"`
	SkipReason       string         `bson:"skipReason,omitempty"`
	StartedAt        *time.Time     `bson:"startedAt,omitempty"`
	CompletedAt      *time.Time     `bson:"completedAt,omitempty"`
}

// ItemAction is one item movement planned at a bin
type ItemAction struct {
	ItemID      string `bson:"itemId"`
	ItemName    string `bson:"itemName"`
	LoadcellID  string `bson:"loadcellId"`
	RequestQty  int    `bson:"requestQty"`
	CurrentQty  int    `bson:"currentQty"`
}

// KeepTrack records an item physically present at the bin that is not part
// of the request, watched to detect unauthorized removal during the visit
type KeepTrack struct {
	LoadcellID string `bson:"loadcellId"`
	ItemID     string `bson:"itemId"`
	ItemName   string `bson:"itemName"`
	CurrentQty int    `bson:"currentQty"`
}

// StepLocation is a display snapshot of where the bin lives
type StepLocation struct {
	CabinetID   string `bson:"cabinetId"`
	CabinetName string `bson:"cabinetName"`
	ClusterName string `bson:"clusterName,omitempty"`
	SiteName    string `bson:"siteName,omitempty"`
}

// NewStepID derives a stable step id from the transaction, bin and sequence
func NewStepID(transactionID, binID string, sequence int) string {
	return fmt.Sprintf("%s-%s-%d", transactionID, binID, sequence)
}

// Actions returns whichever action list this step carries. The three lists
// are mutually exclusive by transaction type.
func (s *ExecutionStep) Actions() []ItemAction {
	switch {
	case len(s.ItemsToIssue) > 0:
		return s.ItemsToIssue
	case len(s.ItemsToReturn) > 0:
		return s.ItemsToReturn
	default:
		return s.ItemsToReplenish
	}
}

// TotalRequestQty sums the requested quantities across all actions at this bin
func (s *ExecutionStep) TotalRequestQty() int {
	total := 0
	for _, a := range s.Actions() {
		total += a.RequestQty
	}
	return total
}
