// Package memory keeps the inventory tables in process memory. It honors the
// same lot uniqueness and version checks as the PostgreSQL repositories and
// backs local development (storage.driver=memory) and service tests.
package memory

import (
	"sync"
	"time"

	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
)

// Store holds every table, partitioned by tenant
type Store struct {
	mu            sync.RWMutex
	batches       map[string]map[string]repository.StockBatch // tenant -> id -> batch
	lots          map[string]map[string]string                // tenant -> lot key -> batch id
	barcodes      map[string]map[string]repository.BarcodeCacheEntry
	changeLogs    map[string][]repository.ChangeLogEntry
	distributions map[string]map[string]repository.ClientDistribution
	plans         map[string]repository.PantryPlan
	now           func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		batches:       map[string]map[string]repository.StockBatch{},
		lots:          map[string]map[string]string{},
		barcodes:      map[string]map[string]repository.BarcodeCacheEntry{},
		changeLogs:    map[string][]repository.ChangeLogEntry{},
		distributions: map[string]map[string]repository.ClientDistribution{},
		plans:         map[string]repository.PantryPlan{},
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Batches returns the stock batch table
func (s *Store) Batches() *BatchRepository { return &BatchRepository{s: s} }

// Barcodes returns the barcode cache table
func (s *Store) Barcodes() *BarcodeCacheRepository { return &BarcodeCacheRepository{s: s} }

// ChangeLog returns the audit log table
func (s *Store) ChangeLog() *ChangeLogRepository { return &ChangeLogRepository{s: s} }

// Distributions returns the client distribution table
func (s *Store) Distributions() *DistributionRepository { return &DistributionRepository{s: s} }

// Plans returns the pantry plan table
func (s *Store) Plans() *PlanRepository { return &PlanRepository{s: s} }

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
