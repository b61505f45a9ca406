package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pantryhub/pantry-backend/pkg/database"
	"github.com/pantryhub/pantry-backend/pkg/errors"
)

const distributionColumns = `id, tenant_id, client_name, client_id, item_id, item_name, category,
	quantity_distributed, unit, reason, distribution_date, created_at, updated_at`

// DistributionRepository handles client distribution persistence
type DistributionRepository struct {
	db *database.DB
}

// NewDistributionRepository creates a new distribution repository
func NewDistributionRepository(db *database.DB) *DistributionRepository {
	return &DistributionRepository{db: db}
}

// Create records a distribution
func (r *DistributionRepository) Create(ctx context.Context, d *ClientDistribution) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.DistributionDate.IsZero() {
		d.DistributionDate = time.Now().UTC()
	}

	query := `
		INSERT INTO client_distributions (
			id, tenant_id, client_name, client_id, item_id, item_name, category,
			quantity_distributed, unit, reason, distribution_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	err := r.db.WithTenantTx(ctx, d.TenantID, func(tx *sqlx.Tx) error {
		return tx.QueryRowxContext(ctx, query,
			d.ID, d.TenantID, d.ClientName, d.ClientID, d.ItemID, d.ItemName, d.Category,
			d.QuantityDistributed, d.Unit, d.Reason, d.DistributionDate,
		).Scan(&d.CreatedAt, &d.UpdatedAt)
	})
	return storageError(err)
}

// Get gets a distribution by ID
func (r *DistributionRepository) Get(ctx context.Context, tenantID, id string) (*ClientDistribution, error) {
	if !validID(id) {
		return nil, errors.NotFound("distribution")
	}

	var d ClientDistribution
	query := `SELECT ` + distributionColumns + ` FROM client_distributions WHERE tenant_id = $1 AND id = $2`

	err := r.db.WithTenantTx(ctx, tenantID, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &d, query, tenantID, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("distribution")
	}
	if err != nil {
		return nil, storageError(err)
	}
	return normalizeDistribution(&d), nil
}

// List lists distributions, newest first
func (r *DistributionRepository) List(ctx context.Context, tenantID string, filter DistributionFilter) ([]ClientDistribution, error) {
	q := psql.Select(distributionColumns).
		From("client_distributions").
		Where(squirrel.Eq{"tenant_id": tenantID})

	if filter.ClientName != "" {
		q = q.Where(squirrel.ILike{"client_name": filter.ClientName})
	}
	if filter.ClientID != "" {
		q = q.Where(squirrel.Eq{"client_id": filter.ClientID})
	}
	if filter.Reason != "" {
		q = q.Where(squirrel.Eq{"reason": filter.Reason})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"distribution_date": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"distribution_date": *filter.To})
	}
	q = q.OrderBy("distribution_date DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Internal("failed to build distribution query").WithCause(err)
	}

	records := []ClientDistribution{}
	err = r.db.WithTenantTx(ctx, tenantID, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &records, query, args...)
	})
	if err != nil {
		return nil, storageError(err)
	}
	for i := range records {
		normalizeDistribution(&records[i])
	}
	return records, nil
}

// Update replaces the mutable fields of a distribution
func (r *DistributionRepository) Update(ctx context.Context, d *ClientDistribution) error {
	if !validID(d.ID) {
		return errors.NotFound("distribution")
	}

	query := `
		UPDATE client_distributions SET
			client_name = $3, client_id = $4, item_id = $5, item_name = $6, category = $7,
			quantity_distributed = $8, unit = $9, reason = $10, distribution_date = $11,
			updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING created_at, updated_at
	`

	err := r.db.WithTenantTx(ctx, d.TenantID, func(tx *sqlx.Tx) error {
		return tx.QueryRowxContext(ctx, query,
			d.TenantID, d.ID, d.ClientName, d.ClientID, d.ItemID, d.ItemName, d.Category,
			d.QuantityDistributed, d.Unit, d.Reason, d.DistributionDate,
		).Scan(&d.CreatedAt, &d.UpdatedAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return errors.NotFound("distribution")
	}
	return storageError(err)
}

// Delete deletes a distribution
func (r *DistributionRepository) Delete(ctx context.Context, tenantID, id string) error {
	if !validID(id) {
		return errors.NotFound("distribution")
	}

	query := `DELETE FROM client_distributions WHERE tenant_id = $1 AND id = $2`

	return storageError(r.db.WithTenantTx(ctx, tenantID, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query, tenantID, id)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("distribution")
		}
		return nil
	}))
}

// Clients summarizes named recipients, most recent visit first. Sentinel
// names used for anonymous and system flows are left out.
func (r *DistributionRepository) Clients(ctx context.Context, tenantID string) ([]ClientSummary, error) {
	query := `
		SELECT client_name, client_id, COUNT(*) AS visits, MAX(distribution_date) AS last_visit
		FROM client_distributions
		WHERE tenant_id = $1 AND client_name NOT IN ($2, $3)
		GROUP BY client_name, client_id
		ORDER BY last_visit DESC
	`

	clients := []ClientSummary{}
	err := r.db.WithTenantTx(ctx, tenantID, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &clients, query, tenantID, ClientGeneralAdjustment, ClientWalkIn)
	})
	if err != nil {
		return nil, storageError(err)
	}
	for i := range clients {
		clients[i].LastVisit = clients[i].LastVisit.UTC()
	}
	return clients, nil
}

func normalizeDistribution(d *ClientDistribution) *ClientDistribution {
	d.DistributionDate = d.DistributionDate.UTC()
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return d
}
