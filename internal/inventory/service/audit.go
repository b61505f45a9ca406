package service

import (
	"context"
	"time"

	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
	"github.com/pantryhub/pantry-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// AuditService reads the change log. Entries are only ever written by the
// Reconciler.
type AuditService struct {
	changeLog ChangeLogStore
	maxRecent int
}

// NewAuditService creates a new audit service
func NewAuditService(changeLog ChangeLogStore, maxRecent int) *AuditService {
	return &AuditService{changeLog: changeLog, maxRecent: maxRecent}
}

// ImpactSummary totals the impact metrics of a period
type ImpactSummary struct {
	From                 *time.Time     `json:"from,omitempty"`
	To                   *time.Time     `json:"to,omitempty"`
	PoundsReceived       float64        `json:"poundsReceived"`
	PoundsDistributed    float64        `json:"poundsDistributed"`
	PoundsDiscarded      float64        `json:"poundsDiscarded"`
	ValueDistributed     float64        `json:"valueDistributed"`
	PeopleServed         int            `json:"peopleServed"`
	Distributions        int            `json:"distributions"`
	WasteDivertedEntries int            `json:"wasteDivertedEntries"`
	ByAction             map[string]int `json:"byAction"`
}

// Recent returns the newest entries first
func (s *AuditService) Recent(ctx context.Context, tenantID string, limit int) ([]repository.ChangeLogEntry, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	entries, err := s.changeLog.Recent(ctx, tenantID, capLimit(limit, s.maxRecent))
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []repository.ChangeLogEntry{}
	}
	return entries, nil
}

// ImpactSummary aggregates the change log between from (inclusive) and to
// (exclusive). Either bound may be nil.
func (s *AuditService) ImpactSummary(ctx context.Context, tenantID string, from, to *time.Time) (*ImpactSummary, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, errors.Validation(map[string]string{"to": "must be after from"})
	}

	buckets, err := s.changeLog.ImpactBuckets(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}

	var received, distributed, discarded, value decimal.Decimal
	summary := &ImpactSummary{From: from, To: to, ByAction: map[string]int{}}

	for _, b := range buckets {
		weight := decimal.NewFromFloat(b.Weight)
		summary.ByAction[b.Action] += b.Entries
		summary.WasteDivertedEntries += b.WasteDiverted

		switch {
		case b.Action == repository.ActionAdded:
			received = received.Add(weight)
		case b.ToRecipient:
			distributed = distributed.Add(weight)
			value = value.Add(decimal.NewFromFloat(b.Value))
			summary.PeopleServed += b.PeopleServed
			summary.Distributions += b.Entries
		case b.Action == repository.ActionDeleted:
			discarded = discarded.Add(weight)
		}
	}

	summary.PoundsReceived, _ = received.Round(3).Float64()
	summary.PoundsDistributed, _ = distributed.Round(3).Float64()
	summary.PoundsDiscarded, _ = discarded.Round(3).Float64()
	summary.ValueDistributed, _ = value.Round(2).Float64()
	return summary, nil
}
