package consumers

import (
	"context"

	"github.com/pantryhub/pantry-backend/pkg/logger"
	"github.com/pantryhub/pantry-backend/pkg/messaging"
)

// planChangedBinding routes plan changes from the organization service into
// this service's queue
var planChangedBinding = messaging.QueueBinding{
	Service:    "pantry-service",
	Queue:      "pantry-service.organization-events",
	Exchange:   messaging.ExchangeOrganizationEvents,
	RoutingKey: "organization.plan.*",
}

// PlanApplier stores plan changes announced by the organization service
type PlanApplier interface {
	ApplyPlanChange(ctx context.Context, tenantID, plan string, maxItems int) error
}

// OrganizationEventConsumer keeps the local plan projection in sync
type OrganizationEventConsumer struct {
	consumer *messaging.Consumer
	plans    PlanApplier
	logger   *logger.Logger
}

// NewOrganizationEventConsumer creates a new organization event consumer
func NewOrganizationEventConsumer(rmq *messaging.RabbitMQ, plans PlanApplier, log *logger.Logger) (*OrganizationEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, planChangedBinding, log)
	if err != nil {
		return nil, err
	}

	c := &OrganizationEventConsumer{
		consumer: consumer,
		plans:    plans,
		logger:   log,
	}

	consumer.RegisterHandler(messaging.EventPlanChanged, c.HandlePlanChanged)

	return c, nil
}

// Start starts consuming messages
func (c *OrganizationEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// HandlePlanChanged applies an organization.plan.changed event
func (c *OrganizationEventConsumer) HandlePlanChanged(ctx context.Context, event *messaging.Event) error {
	var data messaging.PlanChangedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("pantry_id", data.PantryID).
		Str("plan", data.Plan).
		Int("max_items", data.MaxItems).
		Msg("received plan changed event")

	return c.plans.ApplyPlanChange(ctx, data.PantryID, data.Plan, data.MaxItems)
}
