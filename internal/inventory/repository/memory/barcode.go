package memory

import (
	"context"

	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
	"github.com/pantryhub/pantry-backend/pkg/errors"
)

// BarcodeCacheRepository is the in-memory barcode cache
type BarcodeCacheRepository struct {
	s *Store
}

// Get returns the cached metadata for a barcode, or NotFound
func (r *BarcodeCacheRepository) Get(_ context.Context, tenantID, barcode string) (*repository.BarcodeCacheEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	entry, ok := r.s.barcodes[tenantID][barcode]
	if !ok {
		return nil, errors.NotFound("barcode")
	}
	return &entry, nil
}

// Upsert creates or replaces the cached metadata for a barcode
func (r *BarcodeCacheRepository) Upsert(_ context.Context, entry *repository.BarcodeCacheEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.barcodes[entry.TenantID] == nil {
		r.s.barcodes[entry.TenantID] = map[string]repository.BarcodeCacheEntry{}
	}
	entry.LastModified = r.s.now()
	r.s.barcodes[entry.TenantID][entry.Barcode] = *entry
	return nil
}

// Delete forgets a barcode. Deleting an unknown barcode is not an error.
func (r *BarcodeCacheRepository) Delete(_ context.Context, tenantID, barcode string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.barcodes[tenantID], barcode)
	return nil
}

// Count returns the number of distinct barcodes registered for the pantry
func (r *BarcodeCacheRepository) Count(_ context.Context, tenantID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return len(r.s.barcodes[tenantID]), nil
}
