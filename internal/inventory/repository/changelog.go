package repository

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pantryhub/pantry-backend/pkg/database"
	"github.com/pantryhub/pantry-backend/pkg/errors"
)

const changeLogColumns = `id, tenant_id, action, item_id, item_name, category, changes,
	quantity_changed, unit, previous_quantity, new_quantity, reason, recipient_name,
	recipient_id, standardized_weight, estimated_value, people_served, waste_diverted, logged_at`

// ChangeLogRepository handles the append-only audit log
type ChangeLogRepository struct {
	db *database.DB
}

// NewChangeLogRepository creates a new change log repository
func NewChangeLogRepository(db *database.DB) *ChangeLogRepository {
	return &ChangeLogRepository{db: db}
}

// Append writes one entry
func (r *ChangeLogRepository) Append(ctx context.Context, entry *ChangeLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO change_logs (` + changeLogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	err := r.db.WithTenantTx(ctx, entry.TenantID, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			entry.ID, entry.TenantID, entry.Action, entry.ItemID, entry.ItemName, entry.Category,
			entry.Changes, entry.QuantityChanged, entry.Unit, entry.PreviousQuantity,
			entry.NewQuantity, entry.Reason, entry.RecipientName, entry.RecipientID,
			entry.StandardizedWeight, entry.EstimatedValue, entry.PeopleServed,
			entry.WasteDiverted, entry.Timestamp,
		)
		return err
	})
	return storageError(err)
}

// Recent returns the newest entries first. A limit of zero returns all.
func (r *ChangeLogRepository) Recent(ctx context.Context, tenantID string, limit int) ([]ChangeLogEntry, error) {
	q := psql.Select(changeLogColumns).
		From("change_logs").
		Where(squirrel.Eq{"tenant_id": tenantID}).
		OrderBy("logged_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Internal("failed to build change log query").WithCause(err)
	}

	entries := []ChangeLogEntry{}
	err = r.db.WithTenantTx(ctx, tenantID, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &entries, query, args...)
	})
	if err != nil {
		return nil, storageError(err)
	}
	for i := range entries {
		entries[i].Timestamp = entries[i].Timestamp.UTC()
	}
	return entries, nil
}

// ImpactBuckets sums impact metrics per action within [from, to)
func (r *ChangeLogRepository) ImpactBuckets(ctx context.Context, tenantID string, from, to *time.Time) ([]ImpactBucket, error) {
	q := psql.Select(
		"action",
		"recipient_name IS NOT NULL AS to_recipient",
		"COUNT(*) AS entries",
		"COALESCE(SUM(standardized_weight), 0) AS weight",
		"COALESCE(SUM(estimated_value), 0) AS value",
		"COALESCE(SUM(people_served), 0) AS people_served",
		"COUNT(*) FILTER (WHERE waste_diverted) AS waste_diverted",
	).
		From("change_logs").
		Where(squirrel.Eq{"tenant_id": tenantID}).
		GroupBy("action", "to_recipient").
		OrderBy("action")

	if from != nil {
		q = q.Where(squirrel.GtOrEq{"logged_at": *from})
	}
	if to != nil {
		q = q.Where(squirrel.Lt{"logged_at": *to})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Internal("failed to build impact query").WithCause(err)
	}

	buckets := []ImpactBucket{}
	err = r.db.WithTenantTx(ctx, tenantID, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &buckets, query, args...)
	})
	if err != nil {
		return nil, storageError(err)
	}
	return buckets, nil
}
