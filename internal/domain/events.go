package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// TransactionCreatedEvent is published when a transaction plan is created
type TransactionCreatedEvent struct {
	TransactionID string    `json:"transactionId"`
	Type          string    `json:"type"`
	UserID        string    `json:"userId"`
	StepCount     int       `json:"stepCount"`
	TotalQty      int       `json:"totalQty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (e *TransactionCreatedEvent) EventType() string     { return "cabinet.transaction.created" }
func (e *TransactionCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// TransactionStartedEvent is published when step execution begins
type TransactionStartedEvent struct {
	TransactionID string    `json:"transactionId"`
	Type          string    `json:"type"`
	StartedAt     time.Time `json:"startedAt"`
}

func (e *TransactionStartedEvent) EventType() string     { return "cabinet.transaction.started" }
func (e *TransactionStartedEvent) OccurredAt() time.Time { return e.StartedAt }

// StepSkippedEvent is published when a step is skipped for a failed bin
// or a manual-intervention timeout
type StepSkippedEvent struct {
	TransactionID string    `json:"transactionId"`
	StepID        string    `json:"stepId"`
	BinID         string    `json:"binId"`
	Reason        string    `json:"reason"`
	SkippedAt     time.Time `json:"skippedAt"`
}

func (e *StepSkippedEvent) EventType() string     { return "cabinet.step.skipped" }
func (e *StepSkippedEvent) OccurredAt() time.Time { return e.SkippedAt }

// DiscrepancyDetectedEvent is published when the weight-derived quantity
// change at a bin does not match the requested quantity
type DiscrepancyDetectedEvent struct {
	TransactionID string    `json:"transactionId"`
	StepID        string    `json:"stepId"`
	BinID         string    `json:"binId"`
	ItemCount     int       `json:"itemCount"`
	DetectedAt    time.Time `json:"detectedAt"`
}

func (e *DiscrepancyDetectedEvent) EventType() string     { return "cabinet.discrepancy.detected" }
func (e *DiscrepancyDetectedEvent) OccurredAt() time.Time { return e.DetectedAt }

// ForcedAdvanceEvent is published when an operator forces past a
// discrepancy hold
type ForcedAdvanceEvent struct {
	TransactionID string    `json:"transactionId"`
	StepID        string    `json:"stepId"`
	Operator      string    `json:"operator"`
	ForcedAt      time.Time `json:"forcedAt"`
}

func (e *ForcedAdvanceEvent) EventType() string     { return "cabinet.step.forced-advance" }
func (e *ForcedAdvanceEvent) OccurredAt() time.Time { return e.ForcedAt }

// TransactionCompletedEvent is published when a transaction reaches a
// terminal success status
type TransactionCompletedEvent struct {
	TransactionID string    `json:"transactionId"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	StepCount     int       `json:"stepCount"`
	EventCount    int       `json:"eventCount"`
	CompletedAt   time.Time `json:"completedAt"`
}

func (e *TransactionCompletedEvent) EventType() string     { return "cabinet.transaction.completed" }
func (e *TransactionCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }

// TransactionFailedEvent is published on unrecoverable infrastructure failure
type TransactionFailedEvent struct {
	TransactionID string    `json:"transactionId"`
	Type          string    `json:"type"`
	Reason        string    `json:"reason"`
	FailedAt      time.Time `json:"failedAt"`
}

func (e *TransactionFailedEvent) EventType() string     { return "cabinet.transaction.failed" }
func (e *TransactionFailedEvent) OccurredAt() time.Time { return e.FailedAt }

// TransactionCancelledEvent is published on explicit operator cancellation
type TransactionCancelledEvent struct {
	TransactionID string    `json:"transactionId"`
	Type          string    `json:"type"`
	Reason        string    `json:"reason"`
	CancelledAt   time.Time `json:"cancelledAt"`
}

func (e *TransactionCancelledEvent) EventType() string     { return "cabinet.transaction.cancelled" }
func (e *TransactionCancelledEvent) OccurredAt() time.Time { return e.CancelledAt }

// BinMarkedFailedEvent is published when a bin crosses the failed-open
// threshold and is excluded from future allocation
type BinMarkedFailedEvent struct {
	TransactionID string    `json:"transactionId"`
	BinID         string    `json:"binId"`
	CabinetID     string    `json:"cabinetId"`
	Attempts      int       `json:"attempts"`
	FailedAt      time.Time `json:"failedAt"`
}

func (e *BinMarkedFailedEvent) EventType() string     { return "cabinet.bin.failed" }
func (e *BinMarkedFailedEvent) OccurredAt() time.Time { return e.FailedAt }

// BinFailureClearedEvent is published when a failed bin is manually restored
type BinFailureClearedEvent struct {
	BinID     string    `json:"binId"`
	CabinetID string    `json:"cabinetId"`
	ClearedBy string    `json:"clearedBy"`
	ClearedAt time.Time `json:"clearedAt"`
}

func (e *BinFailureClearedEvent) EventType() string     { return "cabinet.bin.failure-cleared" }
func (e *BinFailureClearedEvent) OccurredAt() time.Time { return e.ClearedAt }
