package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/AvallenSolutions/alkatera-sub012/internal/db"
	"github.com/AvallenSolutions/alkatera-sub012/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres connects to PostgreSQL and verifies the connection.
func NewPostgres(ctx context.Context, databaseURL string, cfg PoolConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse database url")
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS curated_factors (
	id              UUID PRIMARY KEY,
	name            TEXT NOT NULL,
	category        TEXT NOT NULL,
	value           DOUBLE PRECISION NOT NULL CHECK (value >= 0),
	unit            TEXT NOT NULL,
	source          TEXT NOT NULL,
	organisation_id TEXT NOT NULL DEFAULT '',
	verified        BOOLEAN NOT NULL DEFAULT FALSE,
	confidence      DOUBLE PRECISION NOT NULL DEFAULT 90,
	metadata        JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS factor_cache (
	id         UUID PRIMARY KEY,
	key        TEXT NOT NULL UNIQUE,
	resolved   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS production_entries (
	id              UUID PRIMARY KEY,
	organisation_id TEXT NOT NULL,
	product_id      TEXT NOT NULL,
	year            INT NOT NULL,
	units_produced  BIGINT NOT NULL DEFAULT 0,
	volume_litres   DOUBLE PRECISION NOT NULL DEFAULT 0,
	recorded_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS product_assessments (
	id                  UUID PRIMARY KEY,
	product_id          TEXT NOT NULL,
	status              TEXT NOT NULL,
	scope3_per_unit_kg  DOUBLE PRECISION NOT NULL DEFAULT 0,
	scope12_per_unit_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
	completed_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS overhead_entries (
	id              UUID PRIMARY KEY,
	organisation_id TEXT NOT NULL,
	year            INT NOT NULL,
	category        TEXT NOT NULL,
	material_type   TEXT NOT NULL DEFAULT '',
	co2e_kg         DOUBLE PRECISION NOT NULL DEFAULT 0,
	recorded_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS facility_impacts (
	id                  UUID PRIMARY KEY,
	facility_id         TEXT NOT NULL,
	year                INT NOT NULL,
	co2e_kg             DOUBLE PRECISION NOT NULL DEFAULT 0,
	water_litres        DOUBLE PRECISION NOT NULL DEFAULT 0,
	waste_kg            DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_volume_litres DOUBLE PRECISION NOT NULL DEFAULT 0,
	finalized_at        TIMESTAMPTZ NOT NULL,
	UNIQUE (facility_id, year)
);

CREATE INDEX IF NOT EXISTS idx_curated_factors_name ON curated_factors(lower(name));
CREATE INDEX IF NOT EXISTS idx_curated_factors_org ON curated_factors(organisation_id);
CREATE INDEX IF NOT EXISTS idx_factor_cache_expires_at ON factor_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_production_entries_org_year ON production_entries(organisation_id, year);
CREATE INDEX IF NOT EXISTS idx_product_assessments_product ON product_assessments(product_id, status);
CREATE INDEX IF NOT EXISTS idx_overhead_entries_org_year ON overhead_entries(organisation_id, year);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertFactor(ctx context.Context, f model.ImpactFactor) (*model.ImpactFactor, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	f.ID = uuid.New().String()
	f.CreatedAt = time.Now().UTC()

	metadataJSON, err := json.Marshal(f.Metadata)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal factor metadata")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO curated_factors (id, name, category, value, unit, source, organisation_id, verified, confidence, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		f.ID, f.Name, string(f.Category), f.Value, f.Unit, f.Source, f.OrganisationID, f.Verified, f.Confidence, metadataJSON, f.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert factor %s", f.Name)
	}
	return &f, nil
}

func (s *PostgresStore) BulkInsertFactors(ctx context.Context, factors []model.ImpactFactor) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(factors))
	for _, f := range factors {
		if err := f.Validate(); err != nil {
			return 0, err
		}
		metadataJSON, err := json.Marshal(f.Metadata)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal factor metadata")
		}
		rows = append(rows, []any{
			uuid.New().String(), f.Name, string(f.Category), f.Value, f.Unit, f.Source, f.OrganisationID, f.Verified, f.Confidence, metadataJSON, now,
		})
	}

	n, err := db.CopyFrom(ctx, s.pool, "curated_factors",
		[]string{"id", "name", "category", "value", "unit", "source", "organisation_id", "verified", "confidence", "metadata", "created_at"},
		rows,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: bulk insert factors")
	}
	return int(n), nil
}

func (s *PostgresStore) SearchFactors(ctx context.Context, name string, category model.FactorCategory, organisationID string) ([]model.ImpactFactor, error) {
	query := `SELECT id, name, category, value, unit, source, organisation_id, verified, confidence, metadata, created_at
		 FROM curated_factors
		 WHERE name ILIKE '%' || $1 || '%'
		   AND (organisation_id = $2 OR organisation_id = '')`
	args := []any{name, organisationID}

	if category != "" {
		query += ` AND category = $3`
		args = append(args, string(category))
	}

	query += ` ORDER BY CASE WHEN organisation_id = '' THEN 1 ELSE 0 END, created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search factors")
	}
	defer rows.Close()

	var factors []model.ImpactFactor
	for rows.Next() {
		var f model.ImpactFactor
		var cat string
		var metadataJSON []byte
		if err := rows.Scan(&f.ID, &f.Name, &cat, &f.Value, &f.Unit, &f.Source, &f.OrganisationID, &f.Verified, &f.Confidence, &metadataJSON, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan factor")
		}
		f.Category = model.FactorCategory(cat)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &f.Metadata); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal factor metadata")
			}
		}
		factors = append(factors, f)
	}
	return factors, eris.Wrap(rows.Err(), "postgres: search factors iterate")
}

func (s *PostgresStore) GetCachedFactor(ctx context.Context, key string) (*model.CacheEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, key, resolved, created_at, expires_at FROM factor_cache
		 WHERE key = $1 AND expires_at > now()`,
		key,
	)

	var e model.CacheEntry
	var resolvedJSON []byte
	err := row.Scan(&e.ID, &e.Key, &resolvedJSON, &e.CreatedAt, &e.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached factor")
	}
	if err := json.Unmarshal(resolvedJSON, &e.Resolved); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached factor")
	}
	return &e, nil
}

func (s *PostgresStore) SetCachedFactor(ctx context.Context, key string, resolved model.ResolvedFactor, ttl time.Duration) error {
	now := time.Now().UTC()

	resolvedJSON, err := json.Marshal(resolved)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal resolved factor")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO factor_cache (id, key, resolved, created_at, expires_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key) DO UPDATE SET resolved = EXCLUDED.resolved, created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at`,
		uuid.New().String(), key, resolvedJSON, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached factor")
}

func (s *PostgresStore) DeleteExpiredFactors(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM factor_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired factors")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) InsertProductionEntry(ctx context.Context, e model.ProductionEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO production_entries (id, organisation_id, product_id, year, units_produced, volume_litres, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.OrganisationID, e.ProductID, e.Year, int64(e.UnitsProduced), float64(e.Volume), e.RecordedAt,
	)
	return eris.Wrapf(err, "postgres: insert production entry for %s", e.ProductID)
}

func (s *PostgresStore) ListProductionEntries(ctx context.Context, organisationID string, year int) ([]model.ProductionEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, organisation_id, product_id, year, units_produced, volume_litres, recorded_at
		 FROM production_entries WHERE organisation_id = $1 AND year = $2 ORDER BY recorded_at`,
		organisationID, year,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list production entries")
	}
	defer rows.Close()

	var entries []model.ProductionEntry
	for rows.Next() {
		var e model.ProductionEntry
		var units int64
		var volume float64
		if err := rows.Scan(&e.ID, &e.OrganisationID, &e.ProductID, &e.Year, &units, &volume, &e.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan production entry")
		}
		e.UnitsProduced = model.UnitCount(units)
		e.Volume = model.BulkVolume(volume)
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list production entries iterate")
}

func (s *PostgresStore) InsertAssessment(ctx context.Context, a model.ProductAssessment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO product_assessments (id, product_id, status, scope3_per_unit_kg, scope12_per_unit_kg, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.ProductID, string(a.Status), a.Scope3PerUnitKg, a.Scope12PerUnitKg, a.CompletedAt,
	)
	return eris.Wrapf(err, "postgres: insert assessment for %s", a.ProductID)
}

func (s *PostgresStore) LatestCompletedAssessment(ctx context.Context, productID string) (*model.ProductAssessment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, product_id, status, scope3_per_unit_kg, scope12_per_unit_kg, completed_at
		 FROM product_assessments
		 WHERE product_id = $1 AND status = $2
		 ORDER BY completed_at DESC LIMIT 1`,
		productID, string(model.AssessmentCompleted),
	)

	var a model.ProductAssessment
	err := row.Scan(&a.ID, &a.ProductID, &a.Status, &a.Scope3PerUnitKg, &a.Scope12PerUnitKg, &a.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest completed assessment")
	}
	return &a, nil
}

func (s *PostgresStore) InsertOverheadEntry(ctx context.Context, e model.OverheadEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO overhead_entries (id, organisation_id, year, category, material_type, co2e_kg, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.OrganisationID, e.Year, e.Category, e.MaterialType, e.CO2eKg, e.RecordedAt,
	)
	return eris.Wrapf(err, "postgres: insert overhead entry for %s", e.OrganisationID)
}

func (s *PostgresStore) ListOverheadEntries(ctx context.Context, organisationID string, year int) ([]model.OverheadEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, organisation_id, year, category, material_type, co2e_kg, recorded_at
		 FROM overhead_entries WHERE organisation_id = $1 AND year = $2 ORDER BY recorded_at`,
		organisationID, year,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list overhead entries")
	}
	defer rows.Close()

	var entries []model.OverheadEntry
	for rows.Next() {
		var e model.OverheadEntry
		if err := rows.Scan(&e.ID, &e.OrganisationID, &e.Year, &e.Category, &e.MaterialType, &e.CO2eKg, &e.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan overhead entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list overhead entries iterate")
}

func (s *PostgresStore) InsertFacilityImpacts(ctx context.Context, f model.FacilityPeriodImpacts) (*model.FacilityPeriodImpacts, error) {
	f.ID = uuid.New().String()
	if f.FinalizedAt.IsZero() {
		f.FinalizedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO facility_impacts (id, facility_id, year, co2e_kg, water_litres, waste_kg, total_volume_litres, finalized_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, f.FacilityID, f.Year, f.CO2eKg, f.WaterLitres, f.WasteKg, float64(f.TotalVolume), f.FinalizedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert facility impacts for %s", f.FacilityID)
	}
	return &f, nil
}

func (s *PostgresStore) GetFacilityImpacts(ctx context.Context, facilityID string, year int) (*model.FacilityPeriodImpacts, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, facility_id, year, co2e_kg, water_litres, waste_kg, total_volume_litres, finalized_at
		 FROM facility_impacts WHERE facility_id = $1 AND year = $2`,
		facilityID, year,
	)

	var f model.FacilityPeriodImpacts
	var totalVolume float64
	err := row.Scan(&f.ID, &f.FacilityID, &f.Year, &f.CO2eKg, &f.WaterLitres, &f.WasteKg, &totalVolume, &f.FinalizedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get facility impacts")
	}
	f.TotalVolume = model.BulkVolume(totalVolume)
	return &f, nil
}
