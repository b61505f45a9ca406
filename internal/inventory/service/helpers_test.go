package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
	"github.com/pantryhub/pantry-backend/internal/inventory/repository/memory"
	"github.com/pantryhub/pantry-backend/internal/inventory/service"
	"github.com/pantryhub/pantry-backend/pkg/config"
	"github.com/pantryhub/pantry-backend/pkg/logger"
)

var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

type harness struct {
	store     *memory.Store
	stores    service.Stores
	plans     *service.PlanProvider
	publisher *recordingPublisher
	rec       *service.Reconciler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, func(s *service.Stores) {})
}

// newHarnessWith lets a test wrap individual stores before the pipeline is built
func newHarnessWith(t *testing.T, wrap func(*service.Stores)) *harness {
	t.Helper()

	store := memory.New()
	stores := service.Stores{
		Batches:       store.Batches(),
		Barcodes:      store.Barcodes(),
		ChangeLog:     store.ChangeLog(),
		Distributions: store.Distributions(),
	}
	wrap(&stores)

	plans := service.NewPlanProvider(store.Plans(), 100, logger.Nop())
	publisher := &recordingPublisher{}
	rec := service.NewReconciler(stores, plans, service.NewImpactCalculator(config.DefaultImpactConfig()), publisher, logger.Nop())
	rec.SetClock(tickingClock(testNow))

	return &harness{store: store, stores: stores, plans: plans, publisher: publisher, rec: rec}
}

// tickingClock advances one millisecond per call so entries keep a strict order
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	var n int
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return start.Add(time.Duration(n) * time.Millisecond)
	}
}

func (h *harness) entries(t *testing.T, tenantID string) []repository.ChangeLogEntry {
	t.Helper()
	entries, err := h.store.ChangeLog().Recent(context.Background(), tenantID, 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	return entries
}

func (h *harness) batches(t *testing.T, tenantID string) []repository.StockBatch {
	t.Helper()
	batches, err := h.store.Batches().List(context.Background(), tenantID, repository.BatchFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	return batches
}

func (h *harness) distributions(t *testing.T, tenantID string) []repository.ClientDistribution {
	t.Helper()
	records, err := h.store.Distributions().List(context.Background(), tenantID, repository.DistributionFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	return records
}

func ptr[T any](v T) *T {
	return &v
}

func rice() service.AddRequest {
	return service.AddRequest{
		Name:     "Rice",
		Category: "dry_goods",
		Quantity: 10,
		Unit:     "lbs",
		Barcode:  "123",
	}
}

// recordingPublisher collects the events the pipeline emits
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) record(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, fmt.Sprintf(format, args...))
}

func (p *recordingPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *recordingPublisher) BatchAdded(_ context.Context, b *repository.StockBatch, added float64, merged bool) {
	p.record("added %s %v merged=%t", b.Barcode, added, merged)
}

func (p *recordingPublisher) BatchUpdated(_ context.Context, b *repository.StockBatch, changes repository.Changes) {
	p.record("updated %s fields=%d", b.Barcode, len(changes))
}

func (p *recordingPublisher) BatchRemoved(_ context.Context, r *service.RemoveResult) {
	p.record("removed %s %v deleted=%t", r.BatchID, r.QuantityRemoved, r.Deleted)
}

func (p *recordingPublisher) DistributionLogged(_ context.Context, d *repository.ClientDistribution) {
	p.record("distributed %s %v", d.ClientName, d.QuantityDistributed)
}

// failingChangeLog rejects every append
type failingChangeLog struct {
	service.ChangeLogStore
}

func (failingChangeLog) Append(context.Context, *repository.ChangeLogEntry) error {
	return fmt.Errorf("connection reset by peer")
}

// failingDistributions rejects every create
type failingDistributions struct {
	service.DistributionStore
}

func (failingDistributions) Create(context.Context, *repository.ClientDistribution) error {
	return fmt.Errorf("connection reset by peer")
}

// racingBatches bumps the stored version right before the first
// compare-and-swap write, as a concurrent writer would.
type racingBatches struct {
	service.BatchStore
	mu    sync.Mutex
	races int
	calls int
}

func (r *racingBatches) race(ctx context.Context, tenantID, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.races > 0 {
		r.races--
		_, _ = r.BatchStore.Increment(ctx, tenantID, id, 1)
	}
}

func (r *racingBatches) UpdateIfVersion(ctx context.Context, b *repository.StockBatch) error {
	r.race(ctx, b.TenantID, b.ID)
	return r.BatchStore.UpdateIfVersion(ctx, b)
}

func (r *racingBatches) DeleteIfVersion(ctx context.Context, tenantID, id string, version int64) error {
	r.race(ctx, tenantID, id)
	return r.BatchStore.DeleteIfVersion(ctx, tenantID, id, version)
}
