package cloudevents

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventFactory creates CloudEvents for cabinet domain events
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// CreateEvent creates a new CloudEvent with the given parameters
func (f *EventFactory) CreateEvent(
	ctx context.Context,
	eventType string,
	subject string,
	data interface{},
) *CloudEvent {
	return &CloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}
}

// CreateTransactionEvent creates an event scoped to a transaction, carrying
// the transaction id as a CloudEvents extension for bus-side correlation
func (f *EventFactory) CreateTransactionEvent(
	ctx context.Context,
	eventType string,
	transactionID string,
	data interface{},
) *CloudEvent {
	event := f.CreateEvent(ctx, eventType, "transaction/"+transactionID, data)
	event.TransactionID = transactionID
	return event
}

// CreateBinEvent creates an event scoped to a bin within a transaction
func (f *EventFactory) CreateBinEvent(
	ctx context.Context,
	eventType string,
	transactionID string,
	binID string,
	data interface{},
) *CloudEvent {
	event := f.CreateEvent(ctx, eventType, "bin/"+binID, data)
	event.TransactionID = transactionID
	event.BinID = binID
	return event
}

// CreateEventWithCorrelation creates an event with correlation tracking
func (f *EventFactory) CreateEventWithCorrelation(
	ctx context.Context,
	eventType string,
	subject string,
	data interface{},
	correlationID string,
) *CloudEvent {
	event := f.CreateEvent(ctx, eventType, subject, data)
	event.CorrelationID = correlationID
	return event
}

func remarshal(from interface{}, to interface{}) error {
	raw, err := json.Marshal(from)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, to)
}
