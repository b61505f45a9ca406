package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pantryhub/pantry-backend/pkg/database"
	"github.com/pantryhub/pantry-backend/pkg/errors"
)

// BarcodeCacheRepository handles barcode cache persistence
type BarcodeCacheRepository struct {
	db *database.DB
}

// NewBarcodeCacheRepository creates a new barcode cache repository
func NewBarcodeCacheRepository(db *database.DB) *BarcodeCacheRepository {
	return &BarcodeCacheRepository{db: db}
}

// Get returns the cached metadata for a barcode, or NotFound
func (r *BarcodeCacheRepository) Get(ctx context.Context, tenantID, barcode string) (*BarcodeCacheEntry, error) {
	var entry BarcodeCacheEntry
	query := `
		SELECT tenant_id, barcode, name, category, storage_location, last_modified
		FROM barcode_cache WHERE tenant_id = $1 AND barcode = $2
	`

	err := r.db.WithTenantTx(ctx, tenantID, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &entry, query, tenantID, barcode)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("barcode")
	}
	if err != nil {
		return nil, storageError(err)
	}
	entry.LastModified = entry.LastModified.UTC()
	return &entry, nil
}

// Upsert creates or replaces the cached metadata for a barcode
func (r *BarcodeCacheRepository) Upsert(ctx context.Context, entry *BarcodeCacheEntry) error {
	query := `
		INSERT INTO barcode_cache (tenant_id, barcode, name, category, storage_location, last_modified)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (tenant_id, barcode) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			storage_location = EXCLUDED.storage_location,
			last_modified = EXCLUDED.last_modified
		RETURNING last_modified
	`

	err := r.db.WithTenantTx(ctx, entry.TenantID, func(tx *sqlx.Tx) error {
		return tx.QueryRowxContext(ctx, query,
			entry.TenantID, entry.Barcode, entry.Name, entry.Category, entry.StorageLocation,
		).Scan(&entry.LastModified)
	})
	return storageError(err)
}

// Delete forgets a barcode. Deleting an unknown barcode is not an error.
func (r *BarcodeCacheRepository) Delete(ctx context.Context, tenantID, barcode string) error {
	query := `DELETE FROM barcode_cache WHERE tenant_id = $1 AND barcode = $2`

	return storageError(r.db.WithTenantTx(ctx, tenantID, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query, tenantID, barcode)
		return err
	}))
}

// Count returns the number of distinct barcodes registered for the pantry
func (r *BarcodeCacheRepository) Count(ctx context.Context, tenantID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM barcode_cache WHERE tenant_id = $1`

	err := r.db.WithTenantTx(ctx, tenantID, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &count, query, tenantID)
	})
	return count, storageError(err)
}
