package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pantryhub/pantry-backend/pkg/database"
	"github.com/pantryhub/pantry-backend/pkg/errors"
)

// PlanRepository stores the pantry plan projection fed by organization events
type PlanRepository struct {
	db *database.DB
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *database.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// Get returns the pantry's plan, or NotFound when none was received yet
func (r *PlanRepository) Get(ctx context.Context, tenantID string) (*PantryPlan, error) {
	var plan PantryPlan
	query := `SELECT tenant_id, plan, max_items, updated_at FROM pantry_plans WHERE tenant_id = $1`

	err := r.db.WithTenantTx(ctx, tenantID, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &plan, query, tenantID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("plan")
	}
	if err != nil {
		return nil, storageError(err)
	}
	return &plan, nil
}

// Upsert stores the latest plan for a pantry
func (r *PlanRepository) Upsert(ctx context.Context, plan *PantryPlan) error {
	query := `
		INSERT INTO pantry_plans (tenant_id, plan, max_items, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			max_items = EXCLUDED.max_items,
			updated_at = EXCLUDED.updated_at
		RETURNING updated_at
	`

	err := r.db.WithTenantTx(ctx, plan.TenantID, func(tx *sqlx.Tx) error {
		return tx.QueryRowxContext(ctx, query, plan.TenantID, plan.Plan, plan.MaxItems).Scan(&plan.UpdatedAt)
	})
	return storageError(err)
}
