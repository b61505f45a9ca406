package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
	"github.com/pantryhub/pantry-backend/pkg/errors"
)

// DistributionRepository is the in-memory client distribution ledger
type DistributionRepository struct {
	s *Store
}

// Create records a distribution
func (r *DistributionRepository) Create(_ context.Context, d *repository.ClientDistribution) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	now := r.s.now()
	if d.DistributionDate.IsZero() {
		d.DistributionDate = now
	}
	d.CreatedAt = now
	d.UpdatedAt = now

	if r.s.distributions[d.TenantID] == nil {
		r.s.distributions[d.TenantID] = map[string]repository.ClientDistribution{}
	}
	r.s.distributions[d.TenantID][d.ID] = *d
	return nil
}

// Get gets a distribution by ID
func (r *DistributionRepository) Get(_ context.Context, tenantID, id string) (*repository.ClientDistribution, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.distributions[tenantID][id]
	if !ok {
		return nil, errors.NotFound("distribution")
	}
	return &d, nil
}

// List lists distributions, newest first
func (r *DistributionRepository) List(_ context.Context, tenantID string, filter repository.DistributionFilter) ([]repository.ClientDistribution, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []repository.ClientDistribution{}
	for _, d := range r.s.distributions[tenantID] {
		if filter.ClientName != "" && !strings.EqualFold(d.ClientName, filter.ClientName) {
			continue
		}
		if filter.ClientID != "" && (d.ClientID == nil || *d.ClientID != filter.ClientID) {
			continue
		}
		if filter.Reason != "" && d.Reason != filter.Reason {
			continue
		}
		if filter.From != nil && d.DistributionDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !d.DistributionDate.Before(*filter.To) {
			continue
		}
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].DistributionDate.After(out[j].DistributionDate)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Update replaces the mutable fields of a distribution
func (r *DistributionRepository) Update(_ context.Context, d *repository.ClientDistribution) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.distributions[d.TenantID][d.ID]
	if !ok {
		return errors.NotFound("distribution")
	}
	d.CreatedAt = current.CreatedAt
	d.UpdatedAt = r.s.now()
	r.s.distributions[d.TenantID][d.ID] = *d
	return nil
}

// Delete deletes a distribution
func (r *DistributionRepository) Delete(_ context.Context, tenantID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.distributions[tenantID][id]; !ok {
		return errors.NotFound("distribution")
	}
	delete(r.s.distributions[tenantID], id)
	return nil
}

// Clients summarizes named recipients, most recent visit first
func (r *DistributionRepository) Clients(_ context.Context, tenantID string) ([]repository.ClientSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	type key struct{ name, id string }
	byClient := map[key]*repository.ClientSummary{}
	for _, d := range r.s.distributions[tenantID] {
		if d.ClientName == repository.ClientGeneralAdjustment || d.ClientName == repository.ClientWalkIn {
			continue
		}
		k := key{name: d.ClientName}
		if d.ClientID != nil {
			k.id = *d.ClientID
		}
		c, ok := byClient[k]
		if !ok {
			c = &repository.ClientSummary{ClientName: d.ClientName, ClientID: d.ClientID}
			byClient[k] = c
		}
		c.Visits++
		if d.DistributionDate.After(c.LastVisit) {
			c.LastVisit = d.DistributionDate
		}
	}

	out := make([]repository.ClientSummary, 0, len(byClient))
	for _, c := range byClient {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastVisit.After(out[j].LastVisit)
	})
	return out, nil
}
