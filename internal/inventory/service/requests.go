package service

import (
	"strings"
	"time"

	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
	"github.com/pantryhub/pantry-backend/pkg/errors"
	"github.com/pantryhub/pantry-backend/pkg/httputil"
)

// Warning codes for side writes that failed after the primary write succeeded
const (
	WarningAuditWriteFailed        = "AUDIT_WRITE_FAILED"
	WarningDistributionWriteFailed = "DISTRIBUTION_WRITE_FAILED"
	WarningBarcodeCacheWriteFailed = "BARCODE_CACHE_WRITE_FAILED"
)

// Warning reports a degraded side write
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AddRequest receives stock into the ledger
type AddRequest struct {
	Name            string  `json:"name" validate:"required"`
	Category        string  `json:"category" validate:"required"`
	Quantity        float64 `json:"quantity" validate:"gt=0"`
	Unit            string  `json:"unit" validate:"omitempty,oneof=units lbs kg oz"`
	Barcode         string  `json:"barcode"`
	ExpirationDate  string  `json:"expirationDate"`
	StorageLocation string  `json:"storageLocation"`
}

// UpdateRequest is a partial edit of a batch. Nil fields are left untouched;
// an empty ExpirationDate clears it.
type UpdateRequest struct {
	Name            *string  `json:"name" validate:"omitempty,min=1"`
	Category        *string  `json:"category" validate:"omitempty,min=1"`
	Quantity        *float64 `json:"quantity" validate:"omitempty,gte=0"`
	Unit            *string  `json:"unit" validate:"omitempty,oneof=units lbs kg oz"`
	Barcode         *string  `json:"barcode" validate:"omitempty,min=1"`
	ExpirationDate  *string  `json:"expirationDate"`
	StorageLocation *string  `json:"storageLocation"`
}

// RemoveRequest takes stock out of a batch. A nil Quantity removes the whole
// batch.
type RemoveRequest struct {
	Quantity      *float64 `json:"quantity"`
	Unit          string   `json:"unit" validate:"omitempty,oneof=units lbs kg oz"`
	Reason        string   `json:"reason" validate:"omitempty,oneof=individual family emergency expired damaged other"`
	RecipientName string   `json:"recipientName"`
	RecipientID   string   `json:"recipientId"`
	FamilySize    int      `json:"familySize" validate:"gte=0"`
}

// DistributionRequest records a hand-off without touching batch quantities
type DistributionRequest struct {
	ItemID              string  `json:"itemId"`
	ItemName            string  `json:"itemName" validate:"required"`
	Category            string  `json:"category" validate:"required"`
	QuantityDistributed float64 `json:"quantityDistributed" validate:"gt=0"`
	Unit                string  `json:"unit" validate:"omitempty,oneof=units lbs kg oz"`
	Reason              string  `json:"reason" validate:"required,oneof=individual family emergency expired damaged other"`
	ClientName          string  `json:"clientName" validate:"required"`
	ClientID            string  `json:"clientId"`
	FamilySize          int     `json:"familySize" validate:"gte=0"`
	DistributionDate    string  `json:"distributionDate"`
}

// DistributionUpdate replaces every mutable field of a distribution record
type DistributionUpdate struct {
	ClientName          string  `json:"clientName" validate:"required"`
	ClientID            string  `json:"clientId"`
	ItemID              string  `json:"itemId"`
	ItemName            string  `json:"itemName" validate:"required"`
	Category            string  `json:"category" validate:"required"`
	QuantityDistributed float64 `json:"quantityDistributed" validate:"gt=0"`
	Unit                string  `json:"unit" validate:"omitempty,oneof=units lbs kg oz"`
	Reason              string  `json:"reason" validate:"required,oneof=individual family emergency expired damaged other"`
	DistributionDate    string  `json:"distributionDate"`
}

// AddResult is the batch after an add
type AddResult struct {
	Batch    *repository.StockBatch     `json:"batch"`
	Merged   bool                       `json:"merged"`
	Entry    *repository.ChangeLogEntry `json:"entry,omitempty"`
	Warnings []Warning                  `json:"warnings,omitempty"`
}

// UpdateResult is the batch after an edit. Entry is nil for no-op edits.
type UpdateResult struct {
	Batch    *repository.StockBatch     `json:"batch"`
	Changes  repository.Changes         `json:"changes,omitempty"`
	Entry    *repository.ChangeLogEntry `json:"entry,omitempty"`
	Warnings []Warning                  `json:"warnings,omitempty"`
}

// RemoveResult describes what left a batch
type RemoveResult struct {
	TenantID          string                         `json:"-"`
	BatchID           string                         `json:"batchId"`
	ItemName          string                         `json:"itemName"`
	QuantityRemoved   float64                        `json:"quantityRemoved"`
	QuantityRemaining float64                        `json:"quantityRemaining"`
	Unit              string                         `json:"unit"`
	Deleted           bool                           `json:"deleted"`
	Entry             *repository.ChangeLogEntry     `json:"entry,omitempty"`
	Distribution      *repository.ClientDistribution `json:"distribution,omitempty"`
	Warnings          []Warning                      `json:"warnings,omitempty"`
}

// DistributionResult is a directly logged distribution
type DistributionResult struct {
	Distribution *repository.ClientDistribution `json:"distribution"`
	Entry        *repository.ChangeLogEntry     `json:"entry,omitempty"`
	Warnings     []Warning                      `json:"warnings,omitempty"`
}

// parseDate accepts YYYY-MM-DD or RFC 3339 and returns UTC midnight of that
// day. Blank input means no date.
func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		t, err = time.Parse(time.RFC3339, value)
		if err != nil {
			return nil, errors.Validation(map[string]string{field: "must be an ISO date (YYYY-MM-DD)"})
		}
	}
	day := startOfDay(t)
	return &day, nil
}

// parseTimestamp accepts RFC 3339 or YYYY-MM-DD and falls back to now
func parseTimestamp(field, value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.Validation(map[string]string{field: "must be an ISO timestamp"})
}

func validate(req interface{}) error {
	return httputil.Validate(req)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func float(f float64) *float64 {
	return &f
}

func unitOrDefault(u string) string {
	if u == "" {
		return repository.UnitUnits
	}
	return u
}
