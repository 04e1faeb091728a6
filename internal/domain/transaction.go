package domain

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Errors
var (
	ErrTransactionNotPending  = errors.New("transaction is not pending")
	ErrTransactionTerminal    = errors.New("transaction is in a terminal state")
	ErrTransactionNotHeld     = errors.New("transaction is not awaiting correction")
	ErrStepNotFound           = errors.New("execution step not found in transaction")
	ErrNoExecutionSteps       = errors.New("transaction must have at least one execution step")
)

// TransactionType represents the kind of cabinet operation
type TransactionType string

const (
	TransactionTypeIssue     TransactionType = "ISSUE"
	TransactionTypeReturn    TransactionType = "RETURN"
	TransactionTypeReplenish TransactionType = "REPLENISH"
)

// TransactionStatus represents the status of a transaction
type TransactionStatus string

const (
	TransactionStatusPending            TransactionStatus = "PENDING"
	TransactionStatusProcessing         TransactionStatus = "PROCESSING"
	TransactionStatusCompleted          TransactionStatus = "COMPLETED"
	TransactionStatusCompletedWithError TransactionStatus = "COMPLETED_WITH_ERROR"
	TransactionStatusAwaitingCorrection TransactionStatus = "AWAITING_CORRECTION"
	TransactionStatusFailed             TransactionStatus = "FAILED"
	TransactionStatusCancelled          TransactionStatus = "CANCELLED"
)

// Transaction is the aggregate root for one issue/return/replenish operation.
// It owns its execution steps and accumulated audit events; only the step
// orchestrator for this transaction id mutates it after creation.
type Transaction struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	TransactionID   string             `bson:"transactionId"`
	Type            TransactionType    `bson:"type"`
	Status          TransactionStatus  `bson:"status"`
	UserID          string             `bson:"userId"`
	TotalRequestQty int                `bson:"totalRequestQty"`
	ExecutionSteps  []ExecutionStep    `bson:"executionSteps"`
	CurrentStepID   string             `bson:"currentStepId,omitempty"`
	Events          []TransactionEvent `bson:"events"`
	LastError       string             `bson:"lastError,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
	StartedAt       *time.Time         `bson:"startedAt,omitempty"`
	CompletedAt     *time.Time         `bson:"completedAt,omitempty"`
	DomainEvents    []DomainEvent      `bson:"-"`
}

// TransactionEvent is an immutable audit row recording one item movement
// at one bin. Append-only; never mutated after creation.
type TransactionEvent struct {
	EventID         string    `bson:"eventId"`
	TransactionID   string    `bson:"transactionId"`
	StepID          string    `bson:"stepId"`
	BinID           string    `bson:"binId"`
	ItemID          string    `bson:"itemId"`
	QuantityBefore  int       `bson:"quantityBefore"`
	QuantityAfter   int       `bson:"quantityAfter"`
	QuantityChanged int       `bson:"quantityChanged"`
	IsValid         bool      `bson:"isValid"`
	Errors          []string  `bson:"errors,omitempty"`
	Forced          bool      `bson:"forced,omitempty"`
	CreatedAt       time.Time `bson:"createdAt"`
}

// NewTransaction creates a new Transaction aggregate from a completed plan
func NewTransaction(transactionID string, txType TransactionType, userID string, totalRequestQty int, steps []ExecutionStep) (*Transaction, error) {
	if len(steps) == 0 {
		return nil, ErrNoExecutionSteps
	}

	now := time.Now()
	tx := &Transaction{
		TransactionID:   transactionID,
		Type:            txType,
		Status:          TransactionStatusPending,
		UserID:          userID,
		TotalRequestQty: totalRequestQty,
		ExecutionSteps:  steps,
		Events:          make([]TransactionEvent, 0),
		CreatedAt:       now,
		UpdatedAt:       now,
		DomainEvents:    make([]DomainEvent, 0),
	}

	tx.AddDomainEvent(&TransactionCreatedEvent{
		TransactionID: transactionID,
		Type:          string(txType),
		UserID:        userID,
		StepCount:     len(steps),
		TotalQty:      totalRequestQty,
		CreatedAt:     now,
	})

	return tx, nil
}

// Start moves the transaction to processing and points at the first step
func (t *Transaction) Start() error {
	if t.Status != TransactionStatusPending {
		return ErrTransactionNotPending
	}

	now := time.Now()
	t.Status = TransactionStatusProcessing
	t.CurrentStepID = t.ExecutionSteps[0].StepID
	t.StartedAt = &now
	t.UpdatedAt = now

	t.AddDomainEvent(&TransactionStartedEvent{
		TransactionID: t.TransactionID,
		Type:          string(t.Type),
		StartedAt:     now,
	})

	return nil
}

// StepByID returns a pointer to the step with the given id
func (t *Transaction) StepByID(stepID string) (*ExecutionStep, error) {
	for i := range t.ExecutionSteps {
		if t.ExecutionSteps[i].StepID == stepID {
			return &t.ExecutionSteps[i], nil
		}
	}
	return nil, ErrStepNotFound
}

// BeginStep marks a step as in progress and advances the current step pointer
func (t *Transaction) BeginStep(stepID string) error {
	step, err := t.StepByID(stepID)
	if err != nil {
		return err
	}

	now := time.Now()
	step.Status = StepStatusInProgress
	step.StartedAt = &now
	t.CurrentStepID = stepID
	t.UpdatedAt = now

	return nil
}

// CompleteStep marks a step as completed
func (t *Transaction) CompleteStep(stepID string) error {
	step, err := t.StepByID(stepID)
	if err != nil {
		return err
	}

	now := time.Now()
	step.Status = StepStatusCompleted
	step.CompletedAt = &now
	t.UpdatedAt = now

	return nil
}

// SkipStep marks a step as skipped, recording the reason. A skipped step
// degrades the final outcome but never aborts the remaining steps.
func (t *Transaction) SkipStep(stepID string, reason string) error {
	step, err := t.StepByID(stepID)
	if err != nil {
		return err
	}

	now := time.Now()
	step.Status = StepStatusSkipped
	step.SkipReason = reason
	step.CompletedAt = &now
	t.UpdatedAt = now

	t.AddDomainEvent(&StepSkippedEvent{
		TransactionID: t.TransactionID,
		StepID:        stepID,
		BinID:         step.BinID,
		Reason:        reason,
		SkippedAt:     now,
	})

	return nil
}

// AppendEvent appends an audit event to the transaction
func (t *Transaction) AppendEvent(event TransactionEvent) {
	t.Events = append(t.Events, event)
	t.UpdatedAt = time.Now()
}

// Hold moves a processing transaction into the discrepancy-held state,
// waiting for an operator to acknowledge or force-advance
func (t *Transaction) Hold(reason string) error {
	if t.IsTerminal() {
		return ErrTransactionTerminal
	}

	t.Status = TransactionStatusAwaitingCorrection
	t.LastError = reason
	t.UpdatedAt = time.Now()

	return nil
}

// Resume moves a held transaction back to processing
func (t *Transaction) Resume() error {
	if t.Status != TransactionStatusAwaitingCorrection {
		return ErrTransactionNotHeld
	}

	t.Status = TransactionStatusProcessing
	t.UpdatedAt = time.Now()

	return nil
}

// Complete moves the transaction to its terminal success status. The outcome
// degrades to COMPLETED_WITH_ERROR when any step was skipped or recorded an
// invalid quantity change.
func (t *Transaction) Complete() error {
	if t.IsTerminal() {
		return ErrTransactionTerminal
	}

	now := time.Now()
	status := TransactionStatusCompleted
	if t.HadError() {
		status = TransactionStatusCompletedWithError
	}

	t.Status = status
	t.CompletedAt = &now
	t.UpdatedAt = now

	t.AddDomainEvent(&TransactionCompletedEvent{
		TransactionID: t.TransactionID,
		Type:          string(t.Type),
		Status:        string(status),
		StepCount:     len(t.ExecutionSteps),
		EventCount:    len(t.Events),
		CompletedAt:   now,
	})

	return nil
}

// Fail moves the transaction to FAILED after an unrecoverable error
func (t *Transaction) Fail(reason string) error {
	if t.IsTerminal() {
		return ErrTransactionTerminal
	}

	now := time.Now()
	t.Status = TransactionStatusFailed
	t.LastError = reason
	t.CompletedAt = &now
	t.UpdatedAt = now

	t.AddDomainEvent(&TransactionFailedEvent{
		TransactionID: t.TransactionID,
		Type:          string(t.Type),
		Reason:        reason,
		FailedAt:      now,
	})

	return nil
}

// Cancel cancels the transaction via explicit operator action
func (t *Transaction) Cancel(reason string) error {
	if t.IsTerminal() {
		return ErrTransactionTerminal
	}

	now := time.Now()
	t.Status = TransactionStatusCancelled
	if reason != "" {
		t.LastError = reason
	}
	t.CompletedAt = &now
	t.UpdatedAt = now

	t.AddDomainEvent(&TransactionCancelledEvent{
		TransactionID: t.TransactionID,
		Type:          string(t.Type),
		Reason:        reason,
		CancelledAt:   now,
	})

	return nil
}

// IsTerminal reports whether the transaction accepts no further transitions
func (t *Transaction) IsTerminal() bool {
	switch t.Status {
	case TransactionStatusCompleted, TransactionStatusCompletedWithError,
		TransactionStatusFailed, TransactionStatusCancelled:
		return true
	}
	return false
}

// HadError reports whether any step was skipped or any audit event was invalid
func (t *Transaction) HadError() bool {
	for i := range t.ExecutionSteps {
		if t.ExecutionSteps[i].Status == StepStatusSkipped {
			return true
		}
	}
	for i := range t.Events {
		if !t.Events[i].IsValid {
			return true
		}
	}
	return false
}

// AddDomainEvent adds a domain event to be published
func (t *Transaction) AddDomainEvent(event DomainEvent) {
	t.DomainEvents = append(t.DomainEvents, event)
}

// ClearDomainEvents clears pending domain events after publishing
func (t *Transaction) ClearDomainEvents() {
	t.DomainEvents = make([]DomainEvent, 0)
}
