package memory

import (
	"context"

	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
	"github.com/pantryhub/pantry-backend/pkg/errors"
)

// PlanRepository is the in-memory pantry plan projection
type PlanRepository struct {
	s *Store
}

// Get returns the pantry's plan, or NotFound
func (r *PlanRepository) Get(_ context.Context, tenantID string) (*repository.PantryPlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	plan, ok := r.s.plans[tenantID]
	if !ok {
		return nil, errors.NotFound("plan")
	}
	return &plan, nil
}

// Upsert stores the latest plan for a pantry
func (r *PlanRepository) Upsert(_ context.Context, plan *repository.PantryPlan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	plan.UpdatedAt = r.s.now()
	r.s.plans[plan.TenantID] = *plan
	return nil
}
