package events

import (
	"context"
	"sort"

	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
	"github.com/pantryhub/pantry-backend/internal/inventory/service"
	"github.com/pantryhub/pantry-backend/pkg/logger"
	"github.com/pantryhub/pantry-backend/pkg/messaging"
)

// sink is the part of messaging.Publisher this package uses
type sink interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// InventoryEventPublisher publishes inventory-related events. A nil
// publisher drops every event, which is how the service runs without
// RabbitMQ.
type InventoryEventPublisher struct {
	publisher sink
	logger    *logger.Logger
}

var _ service.EventPublisher = (*InventoryEventPublisher)(nil)

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "pantry-service", log)
	if err != nil {
		return nil, err
	}

	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// BatchAdded publishes a batch added event
func (p *InventoryEventPublisher) BatchAdded(ctx context.Context, batch *repository.StockBatch, added float64, merged bool) {
	if p == nil {
		return
	}

	data := messaging.BatchAddedEvent{
		PantryID:      batch.TenantID,
		BatchID:       batch.ID,
		Name:          batch.Name,
		Category:      batch.Category,
		Barcode:       batch.Barcode,
		Quantity:      added,
		TotalQuantity: batch.Quantity,
		Unit:          batch.Unit,
		Merged:        merged,
		ExpiresAt:     batch.ExpirationDate,
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchAdded, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish batch added event")
	}
}

// BatchUpdated publishes a batch updated event
func (p *InventoryEventPublisher) BatchUpdated(ctx context.Context, batch *repository.StockBatch, changes repository.Changes) {
	if p == nil {
		return
	}

	changed := make([]string, 0, len(changes))
	values := make(map[string]string, len(changes))
	for field, c := range changes {
		changed = append(changed, field)
		values[field] = c.New
	}
	sort.Strings(changed)

	data := messaging.BatchUpdatedEvent{
		PantryID: batch.TenantID,
		BatchID:  batch.ID,
		Changed:  changed,
		Values:   values,
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchUpdated, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish batch updated event")
	}
}

// BatchRemoved publishes a batch removed event, and a distribution logged
// event when the removal went to a recipient.
func (p *InventoryEventPublisher) BatchRemoved(ctx context.Context, result *service.RemoveResult) {
	if p == nil {
		return
	}

	data := messaging.BatchRemovedEvent{
		PantryID:        result.TenantID,
		BatchID:         result.BatchID,
		Name:            result.ItemName,
		QuantityRemoved: result.QuantityRemoved,
		QuantityLeft:    result.QuantityRemaining,
		Unit:            result.Unit,
		Deleted:         result.Deleted,
	}
	if e := result.Entry; e != nil {
		if e.RecipientName != nil {
			data.RecipientName = *e.RecipientName
		}
		if e.Reason != nil {
			data.Reason = *e.Reason
		}
		data.StandardizedLbs = e.StandardizedWeight
		data.EstimatedValue = e.EstimatedValue
		data.PeopleServed = e.PeopleServed
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchRemoved, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", result.BatchID).Msg("failed to publish batch removed event")
	}

	if result.Distribution != nil {
		p.DistributionLogged(ctx, result.Distribution)
	}
}

// DistributionLogged publishes a distribution logged event
func (p *InventoryEventPublisher) DistributionLogged(ctx context.Context, d *repository.ClientDistribution) {
	if p == nil {
		return
	}

	data := messaging.DistributionLoggedEvent{
		PantryID:       d.TenantID,
		DistributionID: d.ID,
		ClientName:     d.ClientName,
		ItemName:       d.ItemName,
		Quantity:       d.QuantityDistributed,
		Unit:           d.Unit,
		Reason:         d.Reason,
		DistributedAt:  d.DistributionDate,
	}
	if d.ClientID != nil {
		data.ClientID = *d.ClientID
	}
	if d.ItemID != nil {
		data.ItemID = *d.ItemID
	}

	if err := p.publisher.Publish(ctx, messaging.EventDistributionLogged, data); err != nil {
		p.logger.Error().Err(err).Str("distribution_id", d.ID).Msg("failed to publish distribution logged event")
	}
}
