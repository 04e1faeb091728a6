package cloudevents

import (
	"time"
)

// EventType constants for cabinet domain events
const (
	// Transaction lifecycle events
	TransactionCreated   = "cabinet.transaction.created"
	TransactionStarted   = "cabinet.transaction.started"
	TransactionCompleted = "cabinet.transaction.completed"
	TransactionCancelled = "cabinet.transaction.cancelled"
	TransactionFailed    = "cabinet.transaction.failed"

	// Step execution events
	StepStarted   = "cabinet.step.started"
	StepCompleted = "cabinet.step.completed"
	StepSkipped   = "cabinet.step.skipped"
	ForcedAdvance = "cabinet.step.forced-advance"

	// Discrepancy / audit events
	DiscrepancyDetected = "cabinet.discrepancy.detected"
	ItemQuantityChanged = "cabinet.item.quantity-changed"

	// Bin / hardware events
	BinOpenRequested  = "cabinet.bin.open-requested"
	BinCloseRequested = "cabinet.bin.close-requested"
	LockOpenSuccess   = "cabinet.lock.open-success"
	LockOpenFail      = "cabinet.lock.open-fail"
	BinClosed         = "cabinet.bin.closed"
	BinFailed         = "cabinet.bin.failed"
	BinFailureCleared = "cabinet.bin.failure-cleared"
	WeightReported    = "cabinet.weight.reported"

	// Operator / process events
	ProcessStatusReported = "cabinet.process.status"
	ProcessWarningRaised  = "cabinet.process.warning"
	ProcessWarningAcked   = "cabinet.process.warning-acked"
	ForceNextStepReceived = "cabinet.process.force-next-step"
	UserActionCompleted   = "cabinet.process.user-action-complete"
)

// Source constants for event sources
const (
	SourceTransactionService = "/smartcab/transaction-service"
	SourceCabinetController  = "/smartcab/cabinet-controller"
	SourceOperatorTablet     = "/smartcab/operator-tablet"
)

// CloudEvent represents a CloudEvents v1.0 compliant event for the cabinet platform
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	// Cabinet-specific extensions
	CorrelationID string `json:"cabcorrelationid,omitempty"`
	TransactionID string `json:"cabtransactionid,omitempty"`
	CabinetID     string `json:"cabcabinetid,omitempty"`
	BinID         string `json:"cabbinid,omitempty"`
}

// DataAs unmarshals the event data into the provided value. The Data field
// holds either the original struct (locally produced events) or a decoded
// map (events that crossed the wire), so callers go through JSON either way.
func (e *CloudEvent) DataAs(v interface{}) error {
	return remarshal(e.Data, v)
}
