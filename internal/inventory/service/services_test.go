package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
	"github.com/pantryhub/pantry-backend/internal/inventory/repository/memory"
	"github.com/pantryhub/pantry-backend/internal/inventory/service"
	"github.com/pantryhub/pantry-backend/pkg/errors"
	"github.com/pantryhub/pantry-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// PLAN PROVIDER
// ============================================================================

func TestPlanProvider_MaxItems(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	plans := service.NewPlanProvider(store.Plans(), 100, logger.Nop())
	limit, err := plans.MaxItems(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 100, limit, "pantries without a plan get the default")

	require.NoError(t, plans.ApplyPlanChange(ctx, "p1", "community", 25))
	limit, err = plans.MaxItems(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 25, limit)

	require.NoError(t, plans.ApplyPlanChange(ctx, "p1", "enterprise", -1))
	limit, err = plans.MaxItems(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, service.UnlimitedItems, limit)

	unlimitedDefault := service.NewPlanProvider(store.Plans(), 0, nil)
	limit, err = unlimitedDefault.MaxItems(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, service.UnlimitedItems, limit)
}

func TestPlanProvider_ApplyPlanChangeRequiresPantry(t *testing.T) {
	plans := service.NewPlanProvider(memory.New().Plans(), 100, nil)

	err := plans.ApplyPlanChange(context.Background(), " ", "starter", 10)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

// ============================================================================
// INVENTORY READS
// ============================================================================

func TestInventoryService_ListBatches(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, req := range []service.AddRequest{
		{Name: "Carrots", Category: "produce", Quantity: 3, Barcode: "C", ExpirationDate: "2026-03-15"},
		{Name: "Apples", Category: "produce", Quantity: 2, Barcode: "A", ExpirationDate: "2026-03-12"},
		{Name: "Pasta", Category: "dry_goods", Quantity: 5, Barcode: "P"},
	} {
		_, err := h.rec.Add(ctx, "p1", req)
		require.NoError(t, err)
	}

	inventory := service.NewInventoryService(h.store.Batches(), 2)

	all, err := inventory.ListBatches(ctx, "p1", repository.BatchFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2, "list is capped")
	assert.Equal(t, "Apples", all[0].Name)
	assert.Equal(t, "Carrots", all[1].Name)

	produce, err := inventory.ListBatches(ctx, "p1", repository.BatchFilter{Category: " produce ", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, produce, 2)

	search, err := inventory.ListBatches(ctx, "p1", repository.BatchFilter{Search: "past"})
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, "P", search[0].Barcode)

	empty, err := inventory.ListBatches(ctx, "p2", repository.BatchFilter{})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	got, err := inventory.GetBatch(ctx, "p1", search[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Pasta", got.Name)

	_, err = inventory.GetBatch(ctx, "p2", search[0].ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

// ============================================================================
// AUDIT
// ============================================================================

func TestAuditService_RecentIsNewestFirstAndCapped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	added, err := h.rec.Add(ctx, "p1", rice())
	require.NoError(t, err)
	_, err = h.rec.Update(ctx, "p1", added.Batch.ID, service.UpdateRequest{Name: ptr("Jasmine Rice")})
	require.NoError(t, err)
	_, err = h.rec.Remove(ctx, "p1", added.Batch.ID, service.RemoveRequest{})
	require.NoError(t, err)

	audit := service.NewAuditService(h.store.ChangeLog(), 2)

	entries, err := audit.Recent(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, repository.ActionDeleted, entries[0].Action)
	assert.Equal(t, repository.ActionUpdated, entries[1].Action)

	entries, err = audit.Recent(ctx, "p1", 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	entries, err = audit.Recent(ctx, "p1", 500)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestAuditService_ImpactSummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.rec.Add(ctx, "p1", rice())
	require.NoError(t, err)
	_, err = h.rec.Add(ctx, "p1", rice())
	require.NoError(t, err)
	_, err = h.rec.Remove(ctx, "p1", first.Batch.ID, service.RemoveRequest{Quantity: ptr(3.0), RecipientName: "Maria", FamilySize: 2})
	require.NoError(t, err)
	_, err = h.rec.Remove(ctx, "p1", first.Batch.ID, service.RemoveRequest{Reason: "damaged"})
	require.NoError(t, err)
	_, err = h.rec.LogDistribution(ctx, "p1", service.DistributionRequest{
		ItemName: "Beans", Category: "canned", QuantityDistributed: 1, Unit: "kg", Reason: "individual", ClientName: "Ana",
	})
	require.NoError(t, err)

	audit := service.NewAuditService(h.store.ChangeLog(), 50)
	summary, err := audit.ImpactSummary(ctx, "p1", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 20.0, summary.PoundsReceived)
	assert.Equal(t, 5.205, summary.PoundsDistributed)
	assert.Equal(t, 17.0, summary.PoundsDiscarded)
	assert.Equal(t, 13.01, summary.ValueDistributed)
	assert.Equal(t, 3, summary.PeopleServed)
	assert.Equal(t, 2, summary.Distributions)
	assert.Equal(t, map[string]int{"added": 2, "distributed": 2, "deleted": 1}, summary.ByAction)

	from := testNow.Add(time.Hour)
	later, err := audit.ImpactSummary(ctx, "p1", &from, nil)
	require.NoError(t, err)
	assert.Zero(t, later.PoundsReceived)
	assert.Empty(t, later.ByAction)

	_, err = audit.ImpactSummary(ctx, "p1", &from, &from)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

// ============================================================================
// DISTRIBUTION LEDGER
// ============================================================================

func logDistribution(t *testing.T, h *harness, client, reason string, qty float64) *repository.ClientDistribution {
	t.Helper()
	result, err := h.rec.LogDistribution(context.Background(), "p1", service.DistributionRequest{
		ItemName: "Rice", Category: "dry_goods", QuantityDistributed: qty, Unit: "lbs", Reason: reason, ClientName: client,
	})
	require.NoError(t, err)
	return result.Distribution
}

func TestDistributionService_ListFilters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	logDistribution(t, h, "Maria", "family", 2)
	logDistribution(t, h, "Sam", "emergency", 1)
	logDistribution(t, h, "Maria", "individual", 4)

	svc := service.NewDistributionService(h.store.Distributions(), 100, logger.Nop())

	all, err := svc.List(ctx, "p1", repository.DistributionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	maria, err := svc.List(ctx, "p1", repository.DistributionFilter{ClientName: "maria"})
	require.NoError(t, err)
	assert.Len(t, maria, 2)

	emergency, err := svc.List(ctx, "p1", repository.DistributionFilter{Reason: "emergency"})
	require.NoError(t, err)
	require.Len(t, emergency, 1)
	assert.Equal(t, "Sam", emergency[0].ClientName)

	_, err = svc.List(ctx, "p1", repository.DistributionFilter{Reason: "gift"})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	capped := service.NewDistributionService(h.store.Distributions(), 1, nil)
	one, err := capped.List(ctx, "p1", repository.DistributionFilter{Limit: 50})
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestDistributionService_UpdateReplacesFields(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	original := logDistribution(t, h, "Maria", "family", 2)
	svc := service.NewDistributionService(h.store.Distributions(), 100, logger.Nop())

	updated, err := svc.Update(ctx, "p1", original.ID, service.DistributionUpdate{
		ClientName:          "Maria Lopez",
		ClientID:            "client-9",
		ItemName:            "Rice",
		Category:            "dry_goods",
		QuantityDistributed: 3,
		Unit:                "lbs",
		Reason:              "individual",
	})
	require.NoError(t, err)
	assert.Equal(t, "Maria Lopez", updated.ClientName)
	assert.Equal(t, original.DistributionDate, updated.DistributionDate, "blank date keeps the recorded one")

	stored, err := h.store.Distributions().Get(ctx, "p1", original.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, stored.QuantityDistributed)
	require.NotNil(t, stored.ClientID)
	assert.Equal(t, "client-9", *stored.ClientID)

	_, err = svc.Update(ctx, "p1", "missing", service.DistributionUpdate{
		ClientName: "x", ItemName: "x", Category: "x", QuantityDistributed: 1, Reason: "other",
	})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = svc.Update(ctx, "p1", original.ID, service.DistributionUpdate{ClientName: "x"})
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestDistributionService_Delete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	d := logDistribution(t, h, "Maria", "family", 2)
	svc := service.NewDistributionService(h.store.Distributions(), 100, logger.Nop())

	require.NoError(t, svc.Delete(ctx, "p1", d.ID))
	assert.Empty(t, h.distributions(t, "p1"))

	err := svc.Delete(ctx, "p1", d.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	// Deleting a ledger row leaves the audit trail alone
	assert.Len(t, h.entries(t, "p1"), 1)
}

func TestDistributionService_ClientsSkipsSentinels(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	logDistribution(t, h, "Maria", "family", 2)
	logDistribution(t, h, "Maria", "family", 1)
	logDistribution(t, h, "Sam", "individual", 1)
	logDistribution(t, h, repository.ClientWalkIn, "other", 1)
	logDistribution(t, h, repository.ClientGeneralAdjustment, "other", 1)

	svc := service.NewDistributionService(h.store.Distributions(), 100, logger.Nop())
	clients, err := svc.Clients(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, clients, 2)

	visits := map[string]int{}
	for _, c := range clients {
		visits[c.ClientName] = c.Visits
	}
	assert.Equal(t, map[string]int{"Maria": 2, "Sam": 1}, visits)
}

// ============================================================================
// BARCODE LOOKUP
// ============================================================================

func TestBarcodeService_Lookup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.rec.Add(ctx, "p1", service.AddRequest{Name: "Oats", Category: "breakfast", Quantity: 1, Barcode: "OAT", StorageLocation: "Shelf 1"})
	require.NoError(t, err)

	// A batch that never went through the cache
	require.NoError(t, h.store.Batches().Insert(ctx, &repository.StockBatch{
		TenantID: "p1", Name: "Tea", Category: "drinks", Quantity: 1, Unit: "units", Barcode: "TEA", StorageLocation: "N/A",
	}))

	svc := service.NewBarcodeService(h.store.Barcodes(), h.store.Batches())

	cached, err := svc.Lookup(ctx, "p1", "OAT")
	require.NoError(t, err)
	assert.True(t, cached.Found)
	assert.Equal(t, service.SourceCache, cached.Source)
	assert.Equal(t, &service.BarcodeItem{Barcode: "OAT", Name: "Oats", Category: "breakfast", StorageLocation: "Shelf 1"}, cached.Item)

	live, err := svc.Lookup(ctx, "p1", "TEA")
	require.NoError(t, err)
	assert.True(t, live.Found)
	assert.Equal(t, service.SourceInventory, live.Source)
	assert.Equal(t, "Tea", live.Item.Name)

	missing, err := svc.Lookup(ctx, "p1", "NOPE")
	require.NoError(t, err)
	assert.False(t, missing.Found)
	assert.Nil(t, missing.Item)

	other, err := svc.Lookup(ctx, "p2", "OAT")
	require.NoError(t, err)
	assert.False(t, other.Found)

	_, err = svc.Lookup(ctx, "p1", "  ")
	assert.True(t, errors.Is(err, errors.ErrValidation))
}
