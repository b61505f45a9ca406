package service

import (
	"context"
	"strings"

	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
	"github.com/pantryhub/pantry-backend/pkg/errors"
	"github.com/pantryhub/pantry-backend/pkg/logger"
)

// DistributionService manages the client distribution ledger outside the
// reconciliation pipeline. Edits here never touch batch quantities.
type DistributionService struct {
	distributions DistributionStore
	maxList       int
	logger        *logger.Logger
}

// NewDistributionService creates a new distribution service
func NewDistributionService(distributions DistributionStore, maxList int, log *logger.Logger) *DistributionService {
	if log == nil {
		log = logger.Nop()
	}
	return &DistributionService{
		distributions: distributions,
		maxList:       maxList,
		logger:        log.WithComponent("distributions"),
	}
}

// List lists distributions, newest first
func (s *DistributionService) List(ctx context.Context, tenantID string, filter repository.DistributionFilter) ([]repository.ClientDistribution, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if filter.Reason != "" && !repository.ValidReason(filter.Reason) {
		return nil, errors.Validation(map[string]string{"reason": "must be one of: individual family emergency expired damaged other"})
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, errors.Validation(map[string]string{"to": "must not be before from"})
	}
	filter.ClientName = strings.TrimSpace(filter.ClientName)
	filter.Limit = capLimit(filter.Limit, s.maxList)

	records, err := s.distributions.List(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []repository.ClientDistribution{}
	}
	return records, nil
}

// Update replaces every mutable field of a distribution. A blank
// distribution date keeps the recorded one.
func (s *DistributionService) Update(ctx context.Context, tenantID, id string, req DistributionUpdate) (*repository.ClientDistribution, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	current, err := s.distributions.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	date, err := parseTimestamp("distributionDate", req.DistributionDate, current.DistributionDate)
	if err != nil {
		return nil, err
	}

	d := &repository.ClientDistribution{
		ID:                  current.ID,
		TenantID:            tenantID,
		ClientName:          strings.TrimSpace(req.ClientName),
		ClientID:            optional(req.ClientID),
		ItemID:              optional(req.ItemID),
		ItemName:            strings.TrimSpace(req.ItemName),
		Category:            strings.TrimSpace(req.Category),
		QuantityDistributed: req.QuantityDistributed,
		Unit:                unitOrDefault(req.Unit),
		Reason:              req.Reason,
		DistributionDate:    date,
	}
	if err := s.distributions.Update(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("pantry_id", tenantID).
		Str("distribution_id", id).
		Msg("distribution record edited")
	return d, nil
}

// Delete deletes a distribution
func (s *DistributionService) Delete(ctx context.Context, tenantID, id string) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if err := s.distributions.Delete(ctx, tenantID, id); err != nil {
		return err
	}

	s.logger.Info().
		Str("pantry_id", tenantID).
		Str("distribution_id", id).
		Msg("distribution record deleted")
	return nil
}

// Clients lists the pantry's named recipients with their visit counts
func (s *DistributionService) Clients(ctx context.Context, tenantID string) ([]repository.ClientSummary, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	clients, err := s.distributions.Clients(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if clients == nil {
		clients = []repository.ClientSummary{}
	}
	return clients, nil
}
