package service

import (
	"context"
	"strings"

	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
	"github.com/pantryhub/pantry-backend/pkg/errors"
)

// Lookup sources
const (
	SourceCache     = "cache"
	SourceInventory = "inventory"
)

// BarcodeItem is the metadata used to pre-fill a new item form
type BarcodeItem struct {
	Barcode         string `json:"barcode"`
	Name            string `json:"name"`
	Category        string `json:"category"`
	StorageLocation string `json:"storageLocation"`
}

// BarcodeLookup is the single shape returned for cache and inventory hits
type BarcodeLookup struct {
	Found  bool         `json:"found"`
	Source string       `json:"source,omitempty"`
	Item   *BarcodeItem `json:"item"`
}

// BarcodeService resolves barcode metadata
type BarcodeService struct {
	barcodes BarcodeStore
	batches  BatchStore
}

// NewBarcodeService creates a new barcode service
func NewBarcodeService(barcodes BarcodeStore, batches BatchStore) *BarcodeService {
	return &BarcodeService{barcodes: barcodes, batches: batches}
}

// Lookup checks the barcode cache first and falls back to live batches
func (s *BarcodeService) Lookup(ctx context.Context, tenantID, barcode string) (*BarcodeLookup, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, errors.Validation(map[string]string{"barcode": "this field is required"})
	}

	entry, err := s.barcodes.Get(ctx, tenantID, barcode)
	if err == nil {
		return &BarcodeLookup{
			Found:  true,
			Source: SourceCache,
			Item: &BarcodeItem{
				Barcode:         entry.Barcode,
				Name:            entry.Name,
				Category:        entry.Category,
				StorageLocation: entry.StorageLocation,
			},
		}, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	batches, err := s.batches.List(ctx, tenantID, repository.BatchFilter{Search: barcode})
	if err != nil {
		return nil, err
	}
	for _, b := range batches {
		if b.Barcode != barcode {
			continue
		}
		return &BarcodeLookup{
			Found:  true,
			Source: SourceInventory,
			Item: &BarcodeItem{
				Barcode:         b.Barcode,
				Name:            b.Name,
				Category:        b.Category,
				StorageLocation: b.StorageLocation,
			},
		}, nil
	}

	return &BarcodeLookup{Found: false}, nil
}
