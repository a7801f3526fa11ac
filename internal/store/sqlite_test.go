package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvallenSolutions/alkatera-sub012/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testFactor(name, org string) model.ImpactFactor {
	return model.ImpactFactor{
		Name:           name,
		Category:       model.CategoryIngredient,
		Value:          0.62,
		Unit:           "kg CO2e/kg",
		Source:         "DEFRA 2024",
		Verified:       true,
		Confidence:     95,
		OrganisationID: org,
	}
}

// --- Curated factors ---

func TestSQLite_InsertAndSearchFactor(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	inserted, err := st.InsertFactor(ctx, testFactor("Organic barley", ""))
	require.NoError(t, err)
	assert.NotEmpty(t, inserted.ID)

	found, err := st.SearchFactors(ctx, "barley", model.CategoryIngredient, "")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Organic barley", found[0].Name)
	assert.True(t, found[0].Verified)
}

func TestSQLite_SearchFactors_CaseInsensitiveSubstring(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.InsertFactor(ctx, testFactor("Glass Bottle 700ml", ""))
	require.NoError(t, err)

	for _, q := range []string{"glass", "GLASS BOTTLE", "bottle 700"} {
		found, err := st.SearchFactors(ctx, q, "", "")
		require.NoError(t, err)
		assert.Len(t, found, 1, "query %q", q)
	}

	none, err := st.SearchFactors(ctx, "aluminium", "", "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_SearchFactors_OrgScopedSortsFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.InsertFactor(ctx, testFactor("Organic barley", ""))
	require.NoError(t, err)
	_, err = st.InsertFactor(ctx, testFactor("Organic barley", "org-1"))
	require.NoError(t, err)

	found, err := st.SearchFactors(ctx, "barley", model.CategoryIngredient, "org-1")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "org-1", found[0].OrganisationID)
	assert.Equal(t, "", found[1].OrganisationID)

	// A different organisation sees only the global row.
	other, err := st.SearchFactors(ctx, "barley", model.CategoryIngredient, "org-2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "", other[0].OrganisationID)
}

func TestSQLite_InsertFactor_RejectsNegativeValue(t *testing.T) {
	st := newTestSQLiteStore(t)

	f := testFactor("Organic barley", "")
	f.Value = -1
	_, err := st.InsertFactor(context.Background(), f)
	require.Error(t, err)
}

func TestSQLite_BulkInsertFactors(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	factors := []model.ImpactFactor{
		testFactor("Organic barley", ""),
		testFactor("Apple juice concentrate", ""),
		testFactor("Cane molasses", "org-1"),
	}
	n, err := st.BulkInsertFactors(ctx, factors)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	found, err := st.SearchFactors(ctx, "molasses", model.CategoryIngredient, "org-1")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestSQLite_FactorMetadataRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	f := testFactor("Organic barley", "")
	f.Metadata = map[string]string{"region": "GB", "vintage": "2024"}
	_, err := st.InsertFactor(ctx, f)
	require.NoError(t, err)

	found, err := st.SearchFactors(ctx, "barley", "", "")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "GB", found[0].Metadata["region"])
}

// --- Factor cache ---

func testResolved(name string) model.ResolvedFactor {
	return model.ResolvedFactor{
		Factor: model.ImpactFactor{
			Name:     name,
			Category: model.CategoryIngredient,
			Value:    1.25,
			Unit:     "kg CO2e/kg",
			Source:   "ecoinvent",
		},
		Stage:      model.StageExternal,
		Tag:        model.TagSecondaryModelled,
		Confidence: 70,
		ResolvedAt: time.Now().UTC(),
	}
}

func TestSQLite_FactorCache_SetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedFactor(ctx, "barley|ingredient|global", testResolved("barley"), 24*time.Hour))

	entry, err := st.GetCachedFactor(ctx, "barley|ingredient|global")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "barley", entry.Resolved.Factor.Name)
	assert.Equal(t, model.StageExternal, entry.Resolved.Stage)
	assert.InDelta(t, 70, entry.Resolved.Confidence, 1e-9)
}

func TestSQLite_FactorCache_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	entry, err := st.GetCachedFactor(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestSQLite_FactorCache_ExpiredNeverReturned(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Entry written with an already-elapsed TTL.
	require.NoError(t, st.SetCachedFactor(ctx, "stale", testResolved("barley"), -time.Hour))

	entry, err := st.GetCachedFactor(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestSQLite_FactorCache_OverwriteSameKey(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := testResolved("barley")
	first.Factor.Value = 1.0
	require.NoError(t, st.SetCachedFactor(ctx, "k", first, 24*time.Hour))

	second := testResolved("barley")
	second.Factor.Value = 2.0
	require.NoError(t, st.SetCachedFactor(ctx, "k", second, 24*time.Hour))

	entry, err := st.GetCachedFactor(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.InDelta(t, 2.0, entry.Resolved.Factor.Value, 1e-9)
}

func TestSQLite_DeleteExpiredFactors(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedFactor(ctx, "fresh", testResolved("a"), 24*time.Hour))
	require.NoError(t, st.SetCachedFactor(ctx, "stale-1", testResolved("b"), -time.Hour))
	require.NoError(t, st.SetCachedFactor(ctx, "stale-2", testResolved("c"), -time.Minute))

	n, err := st.DeleteExpiredFactors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entry, err := st.GetCachedFactor(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, entry)
}

// --- Production, assessments, overhead, facility ---

func TestSQLite_ProductionEntries(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertProductionEntry(ctx, model.ProductionEntry{
		OrganisationID: "org-1",
		ProductID:      "prod-1",
		Year:           2025,
		UnitsProduced:  20000,
		Volume:         14000,
	}))
	require.NoError(t, st.InsertProductionEntry(ctx, model.ProductionEntry{
		OrganisationID: "org-1",
		ProductID:      "prod-2",
		Year:           2024,
		UnitsProduced:  5000,
	}))

	entries, err := st.ListProductionEntries(ctx, "org-1", 2025)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "prod-1", entries[0].ProductID)
	assert.Equal(t, model.UnitCount(20000), entries[0].UnitsProduced)
	assert.Equal(t, model.BulkVolume(14000), entries[0].Volume)
}

func TestSQLite_LatestCompletedAssessment(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	older := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.InsertAssessment(ctx, model.ProductAssessment{
		ProductID: "prod-1", Status: model.AssessmentCompleted, Scope3PerUnitKg: 0.4, CompletedAt: older,
	}))
	require.NoError(t, st.InsertAssessment(ctx, model.ProductAssessment{
		ProductID: "prod-1", Status: model.AssessmentCompleted, Scope3PerUnitKg: 0.5, CompletedAt: newer,
	}))
	require.NoError(t, st.InsertAssessment(ctx, model.ProductAssessment{
		ProductID: "prod-1", Status: model.AssessmentDraft, Scope3PerUnitKg: 0.9, CompletedAt: newer.AddDate(0, 1, 0),
	}))

	a, err := st.LatestCompletedAssessment(ctx, "prod-1")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.InDelta(t, 0.5, a.Scope3PerUnitKg, 1e-9)

	missing, err := st.LatestCompletedAssessment(ctx, "prod-unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLite_OverheadEntries(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertOverheadEntry(ctx, model.OverheadEntry{
		OrganisationID: "org-1", Year: 2025, Category: "business travel", CO2eKg: 172,
	}))
	require.NoError(t, st.InsertOverheadEntry(ctx, model.OverheadEntry{
		OrganisationID: "org-1", Year: 2025, Category: "purchased services", MaterialType: "merchandise", CO2eKg: 44,
	}))

	entries, err := st.ListOverheadEntries(ctx, "org-1", 2025)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "merchandise", entries[1].MaterialType)
}

func TestSQLite_FacilityImpacts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.InsertFacilityImpacts(ctx, model.FacilityPeriodImpacts{
		FacilityID:  "fac-1",
		Year:        2025,
		CO2eKg:      50000,
		WaterLitres: 2.4e6,
		WasteKg:     12000,
		TotalVolume: 1e6,
	})
	require.NoError(t, err)

	f, err := st.GetFacilityImpacts(ctx, "fac-1", 2025)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.InDelta(t, 50000, f.CO2eKg, 1e-9)
	assert.Equal(t, model.BulkVolume(1e6), f.TotalVolume)

	missing, err := st.GetFacilityImpacts(ctx, "fac-1", 2023)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
