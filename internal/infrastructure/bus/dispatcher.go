package bus

import (
	"context"
	"errors"

	"github.com/smartcab-platform/transaction-service/internal/domain"
	"github.com/smartcab-platform/transaction-service/internal/orchestrator"
	"github.com/smartcab-platform/transaction-service/pkg/cloudevents"
	"github.com/smartcab-platform/transaction-service/pkg/kafka"
	"github.com/smartcab-platform/transaction-service/pkg/logging"
)

// Dispatcher routes inbound cabinet events to the orchestration context of the
// transaction they belong to. Events for unknown or already finished
// transactions are logged and dropped; the consumer must keep making progress
// regardless of what arrives on the wire.
type Dispatcher struct {
	registry *orchestrator.Registry
	logger   *logging.Logger
}

// NewDispatcher creates a dispatcher over the given context registry
func NewDispatcher(registry *orchestrator.Registry, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logger}
}

// RegisterHandlers subscribes the dispatcher to every inbound cabinet topic
func (d *Dispatcher) RegisterHandlers(consumer *kafka.InstrumentedConsumer) {
	consumer.Subscribe(kafka.Topics.LockEvents, cloudevents.LockOpenSuccess, d.handleLockResult)
	consumer.Subscribe(kafka.Topics.LockEvents, cloudevents.LockOpenFail, d.handleLockResult)
	consumer.Subscribe(kafka.Topics.LockEvents, cloudevents.BinClosed, d.handleBinClosed)
	consumer.Subscribe(kafka.Topics.ProcessStatus, cloudevents.UserActionCompleted, d.handleUserAction)
	consumer.Subscribe(kafka.Topics.ProcessErrors, cloudevents.ProcessWarningAcked, d.handleWarningAck)
	consumer.Subscribe(kafka.Topics.ProcessOverrides, cloudevents.ForceNextStepReceived, d.handleForceNext)
}

func (d *Dispatcher) handleLockResult(ctx context.Context, event *cloudevents.CloudEvent) error {
	var result orchestrator.LockResult
	if err := event.DataAs(&result); err != nil {
		d.logger.Warn("discarding malformed lock result", "event_id", event.ID, "error", err)
		return nil
	}
	if result.TransactionID == "" {
		result.TransactionID = event.TransactionID
	}
	if result.BinID == "" {
		result.BinID = event.BinID
	}
	result.Success = event.Type == cloudevents.LockOpenSuccess

	octx, ok := d.lookup(result.TransactionID, event)
	if !ok {
		return nil
	}
	if !octx.DeliverLockResult(result) {
		d.logger.Debug("lock result not consumed", "transaction_id", result.TransactionID, "bin_id", result.BinID)
	}
	return nil
}

func (d *Dispatcher) handleBinClosed(ctx context.Context, event *cloudevents.CloudEvent) error {
	var notice orchestrator.BinClosedNotice
	if err := event.DataAs(&notice); err != nil {
		d.logger.Warn("discarding malformed bin closed notice", "event_id", event.ID, "error", err)
		return nil
	}
	if notice.TransactionID == "" {
		notice.TransactionID = event.TransactionID
	}
	if notice.BinID == "" {
		notice.BinID = event.BinID
	}

	octx, ok := d.lookup(notice.TransactionID, event)
	if !ok {
		return nil
	}
	octx.DeliverBinClosed(notice)
	return nil
}

func (d *Dispatcher) handleUserAction(ctx context.Context, event *cloudevents.CloudEvent) error {
	var notice orchestrator.UserActionNotice
	if err := event.DataAs(&notice); err != nil {
		d.logger.Warn("discarding malformed user action notice", "event_id", event.ID, "error", err)
		return nil
	}
	if notice.TransactionID == "" {
		notice.TransactionID = event.TransactionID
	}

	octx, ok := d.lookup(notice.TransactionID, event)
	if !ok {
		return nil
	}
	octx.DeliverUserAction(notice)
	return nil
}

func (d *Dispatcher) handleWarningAck(ctx context.Context, event *cloudevents.CloudEvent) error {
	var ack orchestrator.WarningAck
	if err := event.DataAs(&ack); err != nil {
		d.logger.Warn("discarding malformed warning ack", "event_id", event.ID, "error", err)
		return nil
	}
	if ack.TransactionID == "" {
		ack.TransactionID = event.TransactionID
	}

	octx, ok := d.lookup(ack.TransactionID, event)
	if !ok {
		return nil
	}
	if !octx.DeliverWarningAck(ack) {
		d.logger.Debug("warning ack not consumed", "transaction_id", ack.TransactionID)
	}
	return nil
}

func (d *Dispatcher) handleForceNext(ctx context.Context, event *cloudevents.CloudEvent) error {
	var force orchestrator.ForceNext
	if err := event.DataAs(&force); err != nil {
		d.logger.Warn("discarding malformed force next request", "event_id", event.ID, "error", err)
		return nil
	}
	if force.TransactionID == "" {
		force.TransactionID = event.TransactionID
	}

	octx, ok := d.lookup(force.TransactionID, event)
	if !ok {
		return nil
	}
	if !octx.DeliverForceNext(force) {
		d.logger.Warn("force next rejected, transaction is not at a skippable wait",
			"transaction_id", force.TransactionID, "operator", force.Operator)
	}
	return nil
}

func (d *Dispatcher) lookup(transactionID string, event *cloudevents.CloudEvent) (*orchestrator.OrchestrationContext, bool) {
	if transactionID == "" {
		d.logger.Warn("discarding event without transaction id", "event_type", event.Type, "event_id", event.ID)
		return nil, false
	}
	octx, err := d.registry.Lookup(transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrContextNotFound) {
			d.logger.Debug("event for inactive transaction dropped",
				"transaction_id", transactionID, "event_type", event.Type)
		} else {
			d.logger.Warn("context lookup failed",
				"transaction_id", transactionID, "event_type", event.Type, "error", err)
		}
		return nil, false
	}
	return octx, true
}
