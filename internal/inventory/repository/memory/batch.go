package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
	"github.com/pantryhub/pantry-backend/pkg/errors"
)

// BatchRepository is the in-memory stock batch table
type BatchRepository struct {
	s *Store
}

// Insert creates a new batch, rejecting a second batch for the same lot
func (r *BatchRepository) Insert(_ context.Context, batch *repository.StockBatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}

	lots := r.s.lots[batch.TenantID]
	if lots == nil {
		lots = map[string]string{}
		r.s.lots[batch.TenantID] = lots
		r.s.batches[batch.TenantID] = map[string]repository.StockBatch{}
	}
	key := batch.LotKey()
	if _, exists := lots[key]; exists {
		return errors.Conflict("a batch with this barcode and expiration date already exists")
	}

	now := r.s.now()
	batch.Version = 1
	batch.CreatedAt = now
	batch.LastModified = now

	stored := *batch
	stored.ExpirationDate = copyTime(batch.ExpirationDate)
	r.s.batches[batch.TenantID][batch.ID] = stored
	lots[key] = batch.ID
	return nil
}

// Get gets a batch by ID
func (r *BatchRepository) Get(_ context.Context, tenantID, id string) (*repository.StockBatch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.batches[tenantID][id]
	if !ok {
		return nil, errors.NotFound("batch")
	}
	return cloneBatch(b), nil
}

// FindLot returns the batch for a barcode and expiration, or NotFound
func (r *BatchRepository) FindLot(_ context.Context, tenantID, barcode string, expiration *time.Time) (*repository.StockBatch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.lots[tenantID][repository.LotKey(barcode, expiration)]
	if !ok {
		return nil, errors.NotFound("batch")
	}
	return cloneBatch(r.s.batches[tenantID][id]), nil
}

// HasBarcode reports whether any batch of the pantry carries barcode
func (r *BatchRepository) HasBarcode(_ context.Context, tenantID, barcode string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, b := range r.s.batches[tenantID] {
		if b.Barcode == barcode {
			return true, nil
		}
	}
	return false, nil
}

// List lists batches ordered by expiration (undated last) then name
func (r *BatchRepository) List(_ context.Context, tenantID string, filter repository.BatchFilter) ([]repository.StockBatch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	out := []repository.StockBatch{}
	for _, b := range r.s.batches[tenantID] {
		if filter.Category != "" && b.Category != filter.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(b.Name), search) && b.Barcode != filter.Search {
			continue
		}
		if filter.ExpiringBefore != nil && (b.ExpirationDate == nil || b.ExpirationDate.After(*filter.ExpiringBefore)) {
			continue
		}
		out = append(out, *cloneBatch(b))
	}

	sort.Slice(out, func(i, j int) bool {
		ei, ej := out[i].ExpirationDate, out[j].ExpirationDate
		switch {
		case ei == nil && ej != nil:
			return false
		case ei != nil && ej == nil:
			return true
		case ei != nil && ej != nil && !ei.Equal(*ej):
			return ei.Before(*ej)
		}
		return out[i].Name < out[j].Name
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Increment atomically adds delta to a batch's quantity
func (r *BatchRepository) Increment(_ context.Context, tenantID, id string, delta float64) (*repository.StockBatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.batches[tenantID][id]
	if !ok {
		return nil, errors.NotFound("batch")
	}
	b.Quantity += delta
	b.Version++
	b.LastModified = r.s.now()
	r.s.batches[tenantID][id] = b
	return cloneBatch(b), nil
}

// UpdateIfVersion writes batch when the stored version matches batch.Version
func (r *BatchRepository) UpdateIfVersion(_ context.Context, batch *repository.StockBatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.batches[batch.TenantID][batch.ID]
	if !ok || current.Version != batch.Version {
		return repository.StaleVersion()
	}

	lots := r.s.lots[batch.TenantID]
	oldKey, newKey := current.LotKey(), batch.LotKey()
	if newKey != oldKey {
		if _, taken := lots[newKey]; taken {
			return errors.Conflict("a batch with this barcode and expiration date already exists")
		}
		delete(lots, oldKey)
		lots[newKey] = batch.ID
	}

	batch.Version = current.Version + 1
	batch.CreatedAt = current.CreatedAt
	batch.LastModified = r.s.now()

	stored := *batch
	stored.ExpirationDate = copyTime(batch.ExpirationDate)
	r.s.batches[batch.TenantID][batch.ID] = stored
	return nil
}

// DeleteIfVersion removes a batch when the stored version matches
func (r *BatchRepository) DeleteIfVersion(_ context.Context, tenantID, id string, version int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.batches[tenantID][id]
	if !ok || current.Version != version {
		return repository.StaleVersion()
	}
	delete(r.s.batches[tenantID], id)
	delete(r.s.lots[tenantID], current.LotKey())
	return nil
}

func cloneBatch(b repository.StockBatch) *repository.StockBatch {
	b.ExpirationDate = copyTime(b.ExpirationDate)
	return &b
}
