package repository_test

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"
	"time"

	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
	"github.com/pantryhub/pantry-backend/pkg/errors"
	"github.com/pantryhub/pantry-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	ctx := context.Background()

	if !testing.Short() {
		var err error
		suite, err = testutil.NewIntegrationSuite(ctx, repository.Migrations())
		if err != nil {
			log.Printf("integration suite unavailable, skipping PostgreSQL tests: %v", err)
			suite = nil
		}
	}

	code := m.Run()

	if suite != nil {
		suite.Cleanup(ctx, repository.Tables()...)
		testutil.TerminateContainer(ctx)
	}
	os.Exit(code)
}

func requireSuite(t *testing.T) {
	t.Helper()
	testutil.SkipIfShort(t)
	if suite == nil {
		t.Skip("skipping integration test: no PostgreSQL container")
	}
}

func createBatch(t *testing.T, ctx context.Context, repo *repository.BatchRepository, pantryID, barcode string, expiration *time.Time) *repository.StockBatch {
	t.Helper()
	batch := &repository.StockBatch{
		TenantID:        pantryID,
		Name:            "Rice",
		Category:        "Grains",
		Quantity:        10,
		Unit:            repository.UnitLbs,
		Barcode:         barcode,
		ExpirationDate:  expiration,
		StorageLocation: repository.DefaultStorageLocation,
	}
	require.NoError(t, repo.Insert(ctx, batch))
	return batch
}

// --- Batch Repository Tests ---

func TestBatchRepository_LotUniqueness(t *testing.T) {
	requireSuite(t)
	ctx := testutil.DefaultTestContext(t)
	pantryID := suite.NewPantryID()
	repo := repository.NewBatchRepository(suite.DB)

	exp := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	first := createBatch(t, ctx, repo, pantryID, "0001", &exp)
	assert.Equal(t, int64(1), first.Version)

	// Same lot again
	dup := &repository.StockBatch{
		TenantID: pantryID, Name: "Rice", Category: "Grains", Quantity: 1,
		Unit: repository.UnitLbs, Barcode: "0001", ExpirationDate: &exp, StorageLocation: "N/A",
	}
	err := repo.Insert(ctx, dup)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	// Undated lots are unique too
	createBatch(t, ctx, repo, pantryID, "0001", nil)
	undated := &repository.StockBatch{
		TenantID: pantryID, Name: "Rice", Category: "Grains", Quantity: 1,
		Unit: repository.UnitLbs, Barcode: "0001", StorageLocation: "N/A",
	}
	err = repo.Insert(ctx, undated)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	// Another pantry may hold the same lot
	createBatch(t, ctx, repo, suite.NewPantryID(), "0001", &exp)
}

func TestBatchRepository_FindLotAndIncrement(t *testing.T) {
	requireSuite(t)
	ctx := testutil.DefaultTestContext(t)
	pantryID := suite.NewPantryID()
	repo := repository.NewBatchRepository(suite.DB)

	exp := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	batch := createBatch(t, ctx, repo, pantryID, "0002", &exp)

	found, err := repo.FindLot(ctx, pantryID, "0002", &exp)
	require.NoError(t, err)
	assert.Equal(t, batch.ID, found.ID)

	_, err = repo.FindLot(ctx, pantryID, "0002", nil)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	updated, err := repo.Increment(ctx, pantryID, batch.ID, 2.5)
	require.NoError(t, err)
	assert.Equal(t, 12.5, updated.Quantity)
	assert.Equal(t, int64(2), updated.Version)

	known, err := repo.HasBarcode(ctx, pantryID, "0002")
	require.NoError(t, err)
	assert.True(t, known)
}

func TestBatchRepository_CompareAndSwap(t *testing.T) {
	requireSuite(t)
	ctx := testutil.DefaultTestContext(t)
	pantryID := suite.NewPantryID()
	repo := repository.NewBatchRepository(suite.DB)

	batch := createBatch(t, ctx, repo, pantryID, "0003", nil)

	stale := *batch
	batch.Quantity = 4
	require.NoError(t, repo.UpdateIfVersion(ctx, batch))
	assert.Equal(t, int64(2), batch.Version)

	stale.Quantity = 1
	err := repo.UpdateIfVersion(ctx, &stale)
	assert.True(t, errors.Is(err, repository.ErrStaleVersion))

	err = repo.DeleteIfVersion(ctx, pantryID, batch.ID, 1)
	assert.True(t, errors.Is(err, repository.ErrStaleVersion))

	require.NoError(t, repo.DeleteIfVersion(ctx, pantryID, batch.ID, batch.Version))
	_, err = repo.Get(ctx, pantryID, batch.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestBatchRepository_NegativeQuantityRejected(t *testing.T) {
	requireSuite(t)
	ctx := testutil.DefaultTestContext(t)
	pantryID := suite.NewPantryID()
	repo := repository.NewBatchRepository(suite.DB)

	batch := createBatch(t, ctx, repo, pantryID, "0004", nil)
	batch.Quantity = -1

	err := repo.UpdateIfVersion(ctx, batch)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

// --- Change Log Repository Tests ---

func TestChangeLogRepository_RecentAndImpact(t *testing.T) {
	requireSuite(t)
	ctx := testutil.DefaultTestContext(t)
	pantryID := suite.NewPantryID()
	repo := repository.NewChangeLogRepository(suite.DB)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	recipient := "Smith"
	entries := []*repository.ChangeLogEntry{
		{Action: repository.ActionAdded, QuantityChanged: 10, ImpactMetrics: repository.ImpactMetrics{StandardizedWeight: 10, EstimatedValue: 25}},
		{Action: repository.ActionDistributed, QuantityChanged: 4, RecipientName: &recipient,
			ImpactMetrics: repository.ImpactMetrics{StandardizedWeight: 4, EstimatedValue: 10, PeopleServed: 3}},
		{Action: repository.ActionDeleted, QuantityChanged: 6, ImpactMetrics: repository.ImpactMetrics{StandardizedWeight: 6, EstimatedValue: 15}},
	}
	for i, e := range entries {
		e.TenantID = pantryID
		e.ItemName = "Rice"
		e.Category = "Grains"
		e.Unit = repository.UnitLbs
		e.Timestamp = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Append(ctx, e))
	}

	recent, err := repo.Recent(ctx, pantryID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, repository.ActionDeleted, recent[0].Action)
	assert.Equal(t, repository.ActionDistributed, recent[1].Action)

	to := base.Add(2 * time.Hour)
	buckets, err := repo.ImpactBuckets(ctx, pantryID, &base, &to)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	byAction := map[string]repository.ImpactBucket{}
	for _, b := range buckets {
		byAction[b.Action] = b
	}
	assert.Equal(t, 10.0, byAction[repository.ActionAdded].Weight)
	assert.True(t, byAction[repository.ActionDistributed].ToRecipient)
	assert.Equal(t, 3, byAction[repository.ActionDistributed].PeopleServed)
}

// --- Distribution Repository Tests ---

func TestDistributionRepository_Lifecycle(t *testing.T) {
	requireSuite(t)
	ctx := testutil.DefaultTestContext(t)
	pantryID := suite.NewPantryID()
	repo := repository.NewDistributionRepository(suite.DB)

	d := &repository.ClientDistribution{
		TenantID: pantryID, ClientName: "Smith", ClientID: testutil.PtrString("c-1"),
		ItemName: "Rice", Category: "Grains", QuantityDistributed: 2, Unit: repository.UnitLbs,
		Reason: repository.ReasonFamily, DistributionDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(ctx, d))
	require.NoError(t, repo.Create(ctx, &repository.ClientDistribution{
		TenantID: pantryID, ClientName: repository.ClientGeneralAdjustment,
		ItemName: "Rice", Category: "Grains", QuantityDistributed: 1, Unit: repository.UnitLbs,
		Reason: repository.ReasonOther,
	}))

	list, err := repo.List(ctx, pantryID, repository.DistributionFilter{ClientName: "smith"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, d.ID, list[0].ID)

	d.QuantityDistributed = 3
	require.NoError(t, repo.Update(ctx, d))
	got, err := repo.Get(ctx, pantryID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.QuantityDistributed)

	clients, err := repo.Clients(ctx, pantryID)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "Smith", clients[0].ClientName)
	assert.Equal(t, 1, clients[0].Visits)

	require.NoError(t, repo.Delete(ctx, pantryID, d.ID))
	_, err = repo.Get(ctx, pantryID, d.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

// --- Barcode Cache / Plan Repository Tests ---

func TestBarcodeCacheRepository_Upsert(t *testing.T) {
	requireSuite(t)
	ctx := testutil.DefaultTestContext(t)
	pantryID := suite.NewPantryID()
	repo := repository.NewBarcodeCacheRepository(suite.DB)

	entry := &repository.BarcodeCacheEntry{TenantID: pantryID, Barcode: "0005", Name: "Beans", Category: "Canned", StorageLocation: "A"}
	require.NoError(t, repo.Upsert(ctx, entry))

	entry.Name = "Black Beans"
	require.NoError(t, repo.Upsert(ctx, entry))

	got, err := repo.Get(ctx, pantryID, "0005")
	require.NoError(t, err)
	assert.Equal(t, "Black Beans", got.Name)

	count, err := repo.Count(ctx, pantryID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPlanRepository_Upsert(t *testing.T) {
	requireSuite(t)
	ctx := testutil.DefaultTestContext(t)
	pantryID := suite.NewPantryID()
	repo := repository.NewPlanRepository(suite.DB)

	require.NoError(t, repo.Upsert(ctx, &repository.PantryPlan{TenantID: pantryID, Plan: "free", MaxItems: 100}))
	require.NoError(t, repo.Upsert(ctx, &repository.PantryPlan{TenantID: pantryID, Plan: "pro", MaxItems: 1000}))

	plan, err := repo.Get(ctx, pantryID)
	require.NoError(t, err)
	assert.Equal(t, "pro", plan.Plan)
	assert.Equal(t, 1000, plan.MaxItems)
}
