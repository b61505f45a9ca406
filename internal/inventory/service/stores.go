package service

import (
	"context"
	"time"

	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
)

// BatchStore is the stock batch table. Both the PostgreSQL and the memory
// repositories satisfy it.
type BatchStore interface {
	Insert(ctx context.Context, batch *repository.StockBatch) error
	Get(ctx context.Context, tenantID, id string) (*repository.StockBatch, error)
	FindLot(ctx context.Context, tenantID, barcode string, expiration *time.Time) (*repository.StockBatch, error)
	HasBarcode(ctx context.Context, tenantID, barcode string) (bool, error)
	List(ctx context.Context, tenantID string, filter repository.BatchFilter) ([]repository.StockBatch, error)
	Increment(ctx context.Context, tenantID, id string, delta float64) (*repository.StockBatch, error)
	UpdateIfVersion(ctx context.Context, batch *repository.StockBatch) error
	DeleteIfVersion(ctx context.Context, tenantID, id string, version int64) error
}

// BarcodeStore is the barcode metadata cache
type BarcodeStore interface {
	Get(ctx context.Context, tenantID, barcode string) (*repository.BarcodeCacheEntry, error)
	Upsert(ctx context.Context, entry *repository.BarcodeCacheEntry) error
	Delete(ctx context.Context, tenantID, barcode string) error
	Count(ctx context.Context, tenantID string) (int, error)
}

// ChangeLogStore is the append-only audit log
type ChangeLogStore interface {
	Append(ctx context.Context, entry *repository.ChangeLogEntry) error
	Recent(ctx context.Context, tenantID string, limit int) ([]repository.ChangeLogEntry, error)
	ImpactBuckets(ctx context.Context, tenantID string, from, to *time.Time) ([]repository.ImpactBucket, error)
}

// DistributionStore is the client distribution ledger
type DistributionStore interface {
	Create(ctx context.Context, d *repository.ClientDistribution) error
	Get(ctx context.Context, tenantID, id string) (*repository.ClientDistribution, error)
	List(ctx context.Context, tenantID string, filter repository.DistributionFilter) ([]repository.ClientDistribution, error)
	Update(ctx context.Context, d *repository.ClientDistribution) error
	Delete(ctx context.Context, tenantID, id string) error
	Clients(ctx context.Context, tenantID string) ([]repository.ClientSummary, error)
}

// PlanStore holds the pantry plan projection
type PlanStore interface {
	Get(ctx context.Context, tenantID string) (*repository.PantryPlan, error)
	Upsert(ctx context.Context, plan *repository.PantryPlan) error
}

// Stores groups the tables the pipeline reads and writes
type Stores struct {
	Batches       BatchStore
	Barcodes      BarcodeStore
	ChangeLog     ChangeLogStore
	Distributions DistributionStore
}

// EventPublisher receives domain events after successful writes. Delivery is
// best effort; implementations log their own failures.
type EventPublisher interface {
	BatchAdded(ctx context.Context, batch *repository.StockBatch, added float64, merged bool)
	BatchUpdated(ctx context.Context, batch *repository.StockBatch, changes repository.Changes)
	BatchRemoved(ctx context.Context, result *RemoveResult)
	DistributionLogged(ctx context.Context, d *repository.ClientDistribution)
}
