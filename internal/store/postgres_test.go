package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvallenSolutions/alkatera-sub012/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetCachedFactor_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, key, resolved, created_at, expires_at FROM factor_cache`).
		WithArgs("missing-key").
		WillReturnError(pgx.ErrNoRows)

	entry, err := s.GetCachedFactor(context.Background(), "missing-key")
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedFactor_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	resolved := model.ResolvedFactor{
		Factor:     model.ImpactFactor{Name: "barley", Category: model.CategoryIngredient, Value: 0.62},
		Stage:      model.StageExternal,
		Tag:        model.TagSecondaryModelled,
		Confidence: 70,
	}
	resolvedJSON, err := json.Marshal(resolved)
	require.NoError(t, err)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, key, resolved, created_at, expires_at FROM factor_cache`).
		WithArgs("barley|ingredient|global").
		WillReturnRows(pgxmock.NewRows([]string{"id", "key", "resolved", "created_at", "expires_at"}).
			AddRow("id-1", "barley|ingredient|global", resolvedJSON, now, now.Add(24*time.Hour)))

	entry, err := s.GetCachedFactor(context.Background(), "barley|ingredient|global")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "barley", entry.Resolved.Factor.Name)
	assert.InDelta(t, 70, entry.Resolved.Confidence, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetCachedFactor(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO factor_cache`).
		WithArgs(pgxmock.AnyArg(), "k", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetCachedFactor(context.Background(), "k", model.ResolvedFactor{}, 24*time.Hour)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpiredFactors(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM factor_cache WHERE expires_at`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.DeleteExpiredFactors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SearchFactors(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, name, category, value, unit, source, organisation_id, verified, confidence, metadata, created_at`).
		WithArgs("barley", "org-1", "ingredient").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "category", "value", "unit", "source", "organisation_id", "verified", "confidence", "metadata", "created_at"}).
			AddRow("f1", "Organic barley", "ingredient", 0.62, "kg CO2e/kg", "DEFRA 2024", "org-1", true, 95.0, []byte(`{"region":"GB"}`), now).
			AddRow("f2", "Organic barley", "ingredient", 0.70, "kg CO2e/kg", "DEFRA 2024", "", true, 95.0, []byte(`null`), now))

	factors, err := s.SearchFactors(context.Background(), "barley", model.CategoryIngredient, "org-1")
	require.NoError(t, err)
	require.Len(t, factors, 2)
	assert.Equal(t, "org-1", factors[0].OrganisationID)
	assert.Equal(t, "GB", factors[0].Metadata["region"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertFactor_ValidatesFirst(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	_, err := s.InsertFactor(context.Background(), model.ImpactFactor{
		Name:     "bad",
		Category: model.CategoryIngredient,
		Value:    -1,
	})
	require.Error(t, err)
}

func TestPostgresStore_BulkInsertFactors_UsesCopy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	cols := []string{"id", "name", "category", "value", "unit", "source", "organisation_id", "verified", "confidence", "metadata", "created_at"}
	mock.ExpectCopyFrom(pgx.Identifier{"curated_factors"}, cols).WillReturnResult(2)

	factors := []model.ImpactFactor{
		{Name: "Organic barley", Category: model.CategoryIngredient, Value: 0.62, Unit: "kg CO2e/kg"},
		{Name: "Glass bottle", Category: model.CategoryPackaging, Value: 1.44, Unit: "kg CO2e/kg"},
	}
	n, err := s.BulkInsertFactors(context.Background(), factors)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestCompletedAssessment_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, product_id, status`).
		WithArgs("prod-x", "completed").
		WillReturnError(pgx.ErrNoRows)

	a, err := s.LatestCompletedAssessment(context.Background(), "prod-x")
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProductionEntries(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, organisation_id, product_id, year, units_produced, volume_litres, recorded_at`).
		WithArgs("org-1", 2025).
		WillReturnRows(pgxmock.NewRows([]string{"id", "organisation_id", "product_id", "year", "units_produced", "volume_litres", "recorded_at"}).
			AddRow("e1", "org-1", "prod-1", 2025, int64(20000), 14000.0, now))

	entries, err := s.ListProductionEntries(context.Background(), "org-1", 2025)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.UnitCount(20000), entries[0].UnitsProduced)
	assert.NoError(t, mock.ExpectationsWereMet())
}
