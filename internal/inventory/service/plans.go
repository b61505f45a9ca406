package service

import (
	"context"
	"math"
	"strings"

	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
	"github.com/pantryhub/pantry-backend/pkg/errors"
	"github.com/pantryhub/pantry-backend/pkg/logger"
)

// UnlimitedItems is the limit reported for plans without an item ceiling
const UnlimitedItems = math.MaxInt32

// PlanProvider resolves a pantry's distinct-item limit from the local plan
// projection, falling back to the configured default.
type PlanProvider struct {
	plans      PlanStore
	defaultMax int
	logger     *logger.Logger
}

// NewPlanProvider creates a plan provider
func NewPlanProvider(plans PlanStore, defaultMax int, log *logger.Logger) *PlanProvider {
	if log == nil {
		log = logger.Nop()
	}
	return &PlanProvider{
		plans:      plans,
		defaultMax: defaultMax,
		logger:     log.WithComponent("plans"),
	}
}

// MaxItems returns the pantry's limit. A plan with no positive ceiling is
// unlimited.
func (p *PlanProvider) MaxItems(ctx context.Context, tenantID string) (int, error) {
	plan, err := p.plans.Get(ctx, tenantID)
	if errors.Is(err, errors.ErrNotFound) {
		if p.defaultMax <= 0 {
			return UnlimitedItems, nil
		}
		return p.defaultMax, nil
	}
	if err != nil {
		return 0, err
	}
	if plan.MaxItems <= 0 {
		return UnlimitedItems, nil
	}
	return plan.MaxItems, nil
}

// ApplyPlanChange stores the plan announced by the organization service
func (p *PlanProvider) ApplyPlanChange(ctx context.Context, tenantID, plan string, maxItems int) error {
	if strings.TrimSpace(tenantID) == "" {
		return errors.BadRequest("plan change without pantry id")
	}
	if maxItems < 0 {
		maxItems = 0
	}

	if err := p.plans.Upsert(ctx, &repository.PantryPlan{
		TenantID: tenantID,
		Plan:     plan,
		MaxItems: maxItems,
	}); err != nil {
		return err
	}

	p.logger.Info().
		Str("pantry_id", tenantID).
		Str("plan", plan).
		Int("max_items", maxItems).
		Msg("pantry plan updated")
	return nil
}
