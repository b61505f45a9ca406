package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
)

// ChangeLogRepository is the in-memory audit log
type ChangeLogRepository struct {
	s *Store
}

// Append writes one entry
func (r *ChangeLogRepository) Append(_ context.Context, entry *repository.ChangeLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.s.now()
	}
	r.s.changeLogs[entry.TenantID] = append(r.s.changeLogs[entry.TenantID], *entry)
	return nil
}

// Recent returns the newest entries first
func (r *ChangeLogRepository) Recent(_ context.Context, tenantID string, limit int) ([]repository.ChangeLogEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]repository.ChangeLogEntry, len(r.s.changeLogs[tenantID]))
	copy(out, r.s.changeLogs[tenantID])

	// Entries appended in the same clock tick keep reverse insertion order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ImpactBuckets sums impact metrics per action within [from, to)
func (r *ChangeLogRepository) ImpactBuckets(_ context.Context, tenantID string, from, to *time.Time) ([]repository.ImpactBucket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	type key struct {
		action      string
		toRecipient bool
	}
	buckets := map[key]*repository.ImpactBucket{}

	for _, e := range r.s.changeLogs[tenantID] {
		if from != nil && e.Timestamp.Before(*from) {
			continue
		}
		if to != nil && !e.Timestamp.Before(*to) {
			continue
		}
		k := key{action: e.Action, toRecipient: e.RecipientName != nil}
		b, ok := buckets[k]
		if !ok {
			b = &repository.ImpactBucket{Action: k.action, ToRecipient: k.toRecipient}
			buckets[k] = b
		}
		b.Entries++
		b.Weight += e.StandardizedWeight
		b.Value += e.EstimatedValue
		b.PeopleServed += e.PeopleServed
		if e.WasteDiverted {
			b.WasteDiverted++
		}
	}

	out := make([]repository.ImpactBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Action != out[j].Action {
			return out[i].Action < out[j].Action
		}
		return !out[i].ToRecipient && out[j].ToRecipient
	})
	return out, nil
}
