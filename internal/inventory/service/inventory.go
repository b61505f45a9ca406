package service

import (
	"context"
	"strings"

	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
)

// InventoryService handles ledger reads
type InventoryService struct {
	batches  BatchStore
	maxLimit int
}

// NewInventoryService creates a new inventory service
func NewInventoryService(batches BatchStore, maxLimit int) *InventoryService {
	return &InventoryService{batches: batches, maxLimit: maxLimit}
}

// ListBatches lists the pantry's batches, soonest expiring first
func (s *InventoryService) ListBatches(ctx context.Context, tenantID string, filter repository.BatchFilter) ([]repository.StockBatch, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Limit = capLimit(filter.Limit, s.maxLimit)

	batches, err := s.batches.List(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	if batches == nil {
		batches = []repository.StockBatch{}
	}
	return batches, nil
}

// GetBatch gets a batch by ID
func (s *InventoryService) GetBatch(ctx context.Context, tenantID, id string) (*repository.StockBatch, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	return s.batches.Get(ctx, tenantID, id)
}

// capLimit clamps a requested page size to (0, max]. Zero or negative
// requests get the maximum.
func capLimit(requested, max int) int {
	if max <= 0 {
		return requested
	}
	if requested <= 0 || requested > max {
		return max
	}
	return requested
}
