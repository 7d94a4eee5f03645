// Package events publishes inventory domain events. Publishing is
// best-effort: a broker failure is logged and never fails the
// operation that triggered it.
package events

import (
	"context"

	"github.com/barstock/barstock-backend/pkg/logger"
	"github.com/barstock/barstock-backend/pkg/messaging"
)

// publisher is satisfied by messaging.Publisher and by test doubles
type publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// Publisher publishes inventory events to the inventory.events exchange
type Publisher struct {
	pub    publisher
	logger *logger.Logger
}

// NewPublisher creates a new inventory event publisher
func NewPublisher(pub publisher, log *logger.Logger) *Publisher {
	return &Publisher{
		pub:    pub,
		logger: log.WithComponent("events"),
	}
}

func (p *Publisher) publish(ctx context.Context, eventType string, payload interface{}) {
	if p == nil || p.pub == nil {
		return
	}
	if err := p.pub.Publish(ctx, eventType, payload); err != nil {
		p.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

// MovementRecorded publishes an inventory.movement.recorded event
func (p *Publisher) MovementRecorded(ctx context.Context, payload messaging.MovementRecordedEvent) {
	p.publish(ctx, messaging.EventMovementRecorded, payload)
}

// MovementEdited publishes an inventory.movement.edited event
func (p *Publisher) MovementEdited(ctx context.Context, payload messaging.MovementEditedEvent) {
	p.publish(ctx, messaging.EventMovementEdited, payload)
}

// MovementDeleted publishes an inventory.movement.deleted event
func (p *Publisher) MovementDeleted(ctx context.Context, payload messaging.MovementDeletedEvent) {
	p.publish(ctx, messaging.EventMovementDeleted, payload)
}

// LotReceived publishes an inventory.lot.received event
func (p *Publisher) LotReceived(ctx context.Context, payload messaging.LotReceivedEvent) {
	p.publish(ctx, messaging.EventLotReceived, payload)
}

// LotInspected publishes an inventory.lot.inspected event
func (p *Publisher) LotInspected(ctx context.Context, payload messaging.LotInspectedEvent) {
	p.publish(ctx, messaging.EventLotInspected, payload)
}
