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

const batchColumns = `id, tenant_id, name, category, quantity, unit, barcode,
	expiration_date, storage_location, version, created_at, last_modified`

// BatchRepository handles stock batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Insert creates a new batch. A batch for the same lot already existing
// yields a Conflict error.
func (r *BatchRepository) Insert(ctx context.Context, batch *StockBatch) error {
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_batches (
			id, tenant_id, name, category, quantity, unit, barcode,
			expiration_date, storage_location, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
		RETURNING version, created_at, last_modified
	`

	err := r.db.WithTenantTx(ctx, batch.TenantID, func(tx *sqlx.Tx) error {
		return tx.QueryRowxContext(ctx, query,
			batch.ID, batch.TenantID, batch.Name, batch.Category, batch.Quantity,
			batch.Unit, batch.Barcode, batch.ExpirationDate, batch.StorageLocation,
		).Scan(&batch.Version, &batch.CreatedAt, &batch.LastModified)
	})
	return storageError(err)
}

// Get gets a batch by ID
func (r *BatchRepository) Get(ctx context.Context, tenantID, id string) (*StockBatch, error) {
	if !validID(id) {
		return nil, errors.NotFound("batch")
	}

	var batch StockBatch
	query := `SELECT ` + batchColumns + ` FROM stock_batches WHERE tenant_id = $1 AND id = $2`

	err := r.db.WithTenantTx(ctx, tenantID, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &batch, query, tenantID, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("batch")
	}
	if err != nil {
		return nil, storageError(err)
	}
	return normalizeBatch(&batch), nil
}

// FindLot returns the batch holding barcode with the given expiration, or NotFound
func (r *BatchRepository) FindLot(ctx context.Context, tenantID, barcode string, expiration *time.Time) (*StockBatch, error) {
	var batch StockBatch
	query := `
		SELECT ` + batchColumns + ` FROM stock_batches
		WHERE tenant_id = $1 AND barcode = $2 AND expiration_date IS NOT DISTINCT FROM $3
	`

	err := r.db.WithTenantTx(ctx, tenantID, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &batch, query, tenantID, barcode, expiration)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("batch")
	}
	if err != nil {
		return nil, storageError(err)
	}
	return normalizeBatch(&batch), nil
}

// HasBarcode reports whether any batch of the pantry carries barcode
func (r *BatchRepository) HasBarcode(ctx context.Context, tenantID, barcode string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM stock_batches WHERE tenant_id = $1 AND barcode = $2)`

	err := r.db.WithTenantTx(ctx, tenantID, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &exists, query, tenantID, barcode)
	})
	return exists, storageError(err)
}

// List lists batches ordered by expiration (undated last) then name
func (r *BatchRepository) List(ctx context.Context, tenantID string, filter BatchFilter) ([]StockBatch, error) {
	q := psql.Select(batchColumns).
		From("stock_batches").
		Where(squirrel.Eq{"tenant_id": tenantID})

	if filter.Category != "" {
		q = q.Where(squirrel.Eq{"category": filter.Category})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": "%" + filter.Search + "%"},
			squirrel.Eq{"barcode": filter.Search},
		})
	}
	if filter.ExpiringBefore != nil {
		q = q.Where(squirrel.LtOrEq{"expiration_date": *filter.ExpiringBefore})
	}
	q = q.OrderBy("expiration_date ASC NULLS LAST", "name ASC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Internal("failed to build batch query").WithCause(err)
	}

	batches := []StockBatch{}
	err = r.db.WithTenantTx(ctx, tenantID, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &batches, query, args...)
	})
	if err != nil {
		return nil, storageError(err)
	}
	for i := range batches {
		normalizeBatch(&batches[i])
	}
	return batches, nil
}

// Increment atomically adds delta to a batch's quantity
func (r *BatchRepository) Increment(ctx context.Context, tenantID, id string, delta float64) (*StockBatch, error) {
	if !validID(id) {
		return nil, errors.NotFound("batch")
	}

	var batch StockBatch
	query := `
		UPDATE stock_batches SET
			quantity = quantity + $3, version = version + 1, last_modified = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING ` + batchColumns

	err := r.db.WithTenantTx(ctx, tenantID, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &batch, query, tenantID, id, delta)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("batch")
	}
	if err != nil {
		return nil, storageError(err)
	}
	return normalizeBatch(&batch), nil
}

// UpdateIfVersion writes every mutable field of batch when the stored version
// still equals batch.Version. On success batch carries the new version.
func (r *BatchRepository) UpdateIfVersion(ctx context.Context, batch *StockBatch) error {
	if !validID(batch.ID) {
		return errors.NotFound("batch")
	}

	query := `
		UPDATE stock_batches SET
			name = $3, category = $4, quantity = $5, unit = $6, barcode = $7,
			expiration_date = $8, storage_location = $9,
			version = version + 1, last_modified = NOW()
		WHERE tenant_id = $1 AND id = $2 AND version = $10
		RETURNING version, last_modified
	`

	err := r.db.WithTenantTx(ctx, batch.TenantID, func(tx *sqlx.Tx) error {
		return tx.QueryRowxContext(ctx, query,
			batch.TenantID, batch.ID, batch.Name, batch.Category, batch.Quantity,
			batch.Unit, batch.Barcode, batch.ExpirationDate, batch.StorageLocation,
			batch.Version,
		).Scan(&batch.Version, &batch.LastModified)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return StaleVersion()
	}
	return storageError(err)
}

// DeleteIfVersion removes a batch when the stored version still equals version
func (r *BatchRepository) DeleteIfVersion(ctx context.Context, tenantID, id string, version int64) error {
	if !validID(id) {
		return errors.NotFound("batch")
	}

	query := `DELETE FROM stock_batches WHERE tenant_id = $1 AND id = $2 AND version = $3`

	return storageError(r.db.WithTenantTx(ctx, tenantID, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query, tenantID, id, version)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return StaleVersion()
		}
		return nil
	}))
}

// normalizeBatch converts scanned timestamps to UTC
func normalizeBatch(b *StockBatch) *StockBatch {
	if b.ExpirationDate != nil {
		exp := b.ExpirationDate.UTC()
		b.ExpirationDate = &exp
	}
	b.CreatedAt = b.CreatedAt.UTC()
	b.LastModified = b.LastModified.UTC()
	return b
}
