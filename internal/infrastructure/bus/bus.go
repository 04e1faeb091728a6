package bus

import (
	"context"

	"github.com/smartcab-platform/transaction-service/pkg/cloudevents"
	"github.com/smartcab-platform/transaction-service/pkg/kafka"
)

// CabinetBus publishes orchestrator events on the right Kafka topics. Bin
// commands go to the hardware command topic; everything else is operator
// chatter routed by event type.
type CabinetBus struct {
	producer *kafka.CircuitBreakerProducer
}

// NewCabinetBus creates a CabinetBus over the circuit-breaker producer
func NewCabinetBus(producer *kafka.CircuitBreakerProducer) *CabinetBus {
	return &CabinetBus{producer: producer}
}

// PublishBinCommand publishes an open/close lock command for the cabinet
// controllers
func (b *CabinetBus) PublishBinCommand(ctx context.Context, event *cloudevents.CloudEvent) error {
	return b.producer.PublishEvent(ctx, kafka.Topics.BinCommands, event)
}

// PublishProcessEvent publishes an operator-facing event. Warnings ride the
// error channel, everything else the status channel.
func (b *CabinetBus) PublishProcessEvent(ctx context.Context, event *cloudevents.CloudEvent) error {
	topic := kafka.Topics.ProcessStatus
	if event.Type == cloudevents.ProcessWarningRaised {
		topic = kafka.Topics.ProcessErrors
	}
	return b.producer.PublishEvent(ctx, topic, event)
}
