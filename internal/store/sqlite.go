package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/AvallenSolutions/alkatera-sub012/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS curated_factors (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	category        TEXT NOT NULL,
	value           REAL NOT NULL CHECK (value >= 0),
	unit            TEXT NOT NULL,
	source          TEXT NOT NULL,
	organisation_id TEXT NOT NULL DEFAULT '',
	verified        INTEGER NOT NULL DEFAULT 0,
	confidence      REAL NOT NULL DEFAULT 90,
	metadata        TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS factor_cache (
	id         TEXT PRIMARY KEY,
	key        TEXT NOT NULL UNIQUE,
	resolved   TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS production_entries (
	id              TEXT PRIMARY KEY,
	organisation_id TEXT NOT NULL,
	product_id      TEXT NOT NULL,
	year            INTEGER NOT NULL,
	units_produced  INTEGER NOT NULL DEFAULT 0,
	volume_litres   REAL NOT NULL DEFAULT 0,
	recorded_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS product_assessments (
	id                  TEXT PRIMARY KEY,
	product_id          TEXT NOT NULL,
	status              TEXT NOT NULL,
	scope3_per_unit_kg  REAL NOT NULL DEFAULT 0,
	scope12_per_unit_kg REAL NOT NULL DEFAULT 0,
	completed_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS overhead_entries (
	id              TEXT PRIMARY KEY,
	organisation_id TEXT NOT NULL,
	year            INTEGER NOT NULL,
	category        TEXT NOT NULL,
	material_type   TEXT NOT NULL DEFAULT '',
	co2e_kg         REAL NOT NULL DEFAULT 0,
	recorded_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS facility_impacts (
	id                  TEXT PRIMARY KEY,
	facility_id         TEXT NOT NULL,
	year                INTEGER NOT NULL,
	co2e_kg             REAL NOT NULL DEFAULT 0,
	water_litres        REAL NOT NULL DEFAULT 0,
	waste_kg            REAL NOT NULL DEFAULT 0,
	total_volume_litres REAL NOT NULL DEFAULT 0,
	finalized_at        DATETIME NOT NULL,
	UNIQUE (facility_id, year)
);

CREATE INDEX IF NOT EXISTS idx_curated_factors_name ON curated_factors(name);
CREATE INDEX IF NOT EXISTS idx_curated_factors_org ON curated_factors(organisation_id);
CREATE INDEX IF NOT EXISTS idx_factor_cache_expires_at ON factor_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_production_entries_org_year ON production_entries(organisation_id, year);
CREATE INDEX IF NOT EXISTS idx_product_assessments_product ON product_assessments(product_id, status);
CREATE INDEX IF NOT EXISTS idx_overhead_entries_org_year ON overhead_entries(organisation_id, year);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertFactor(ctx context.Context, f model.ImpactFactor) (*model.ImpactFactor, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	f.ID = uuid.New().String()
	f.CreatedAt = time.Now().UTC()

	metadataJSON, err := json.Marshal(f.Metadata)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal factor metadata")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO curated_factors (id, name, category, value, unit, source, organisation_id, verified, confidence, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, string(f.Category), f.Value, f.Unit, f.Source, f.OrganisationID, f.Verified, f.Confidence, string(metadataJSON), f.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert factor %s", f.Name)
	}
	return &f, nil
}

func (s *SQLiteStore) BulkInsertFactors(ctx context.Context, factors []model.ImpactFactor) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin bulk insert")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO curated_factors (id, name, category, value, unit, source, organisation_id, verified, confidence, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare bulk insert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := 0
	for _, f := range factors {
		if err := f.Validate(); err != nil {
			return inserted, err
		}
		metadataJSON, err := json.Marshal(f.Metadata)
		if err != nil {
			return inserted, eris.Wrap(err, "sqlite: marshal factor metadata")
		}
		_, err = stmt.ExecContext(ctx,
			uuid.New().String(), f.Name, string(f.Category), f.Value, f.Unit, f.Source, f.OrganisationID, f.Verified, f.Confidence, string(metadataJSON), now,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "sqlite: bulk insert factor %s", f.Name)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit bulk insert")
	}
	return inserted, nil
}

func (s *SQLiteStore) SearchFactors(ctx context.Context, name string, category model.FactorCategory, organisationID string) ([]model.ImpactFactor, error) {
	query := `SELECT id, name, category, value, unit, source, organisation_id, verified, confidence, metadata, created_at
		 FROM curated_factors
		 WHERE instr(lower(name), lower(?)) > 0
		   AND (organisation_id = ? OR organisation_id = '')`
	args := []any{name, organisationID}

	if category != "" {
		query += ` AND category = ?`
		args = append(args, string(category))
	}

	// Organisation-scoped rows sort ahead of globals so the first match wins
	// the stage-1 tie-break.
	query += ` ORDER BY CASE WHEN organisation_id = '' THEN 1 ELSE 0 END, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search factors")
	}
	defer rows.Close()

	var factors []model.ImpactFactor
	for rows.Next() {
		f, err := scanFactor(rows)
		if err != nil {
			return nil, err
		}
		factors = append(factors, *f)
	}
	return factors, eris.Wrap(rows.Err(), "sqlite: search factors iterate")
}

func (s *SQLiteStore) GetCachedFactor(ctx context.Context, key string) (*model.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, key, resolved, created_at, expires_at FROM factor_cache
		 WHERE key = ? AND expires_at > datetime('now')`,
		key,
	)

	var e model.CacheEntry
	var resolvedJSON string
	err := row.Scan(&e.ID, &e.Key, &resolvedJSON, &e.CreatedAt, &e.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached factor")
	}
	if err := json.Unmarshal([]byte(resolvedJSON), &e.Resolved); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached factor")
	}
	return &e, nil
}

func (s *SQLiteStore) SetCachedFactor(ctx context.Context, key string, resolved model.ResolvedFactor, ttl time.Duration) error {
	now := time.Now().UTC()

	resolvedJSON, err := json.Marshal(resolved)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal resolved factor")
	}

	// Last-write-wins on a key collision: a redundantly refreshed entry has
	// no correctness impact.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO factor_cache (id, key, resolved, created_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET resolved = excluded.resolved, created_at = excluded.created_at, expires_at = excluded.expires_at`,
		uuid.New().String(), key, string(resolvedJSON), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached factor")
}

func (s *SQLiteStore) DeleteExpiredFactors(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM factor_cache WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired factors")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) InsertProductionEntry(ctx context.Context, e model.ProductionEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO production_entries (id, organisation_id, product_id, year, units_produced, volume_litres, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OrganisationID, e.ProductID, e.Year, int64(e.UnitsProduced), float64(e.Volume), e.RecordedAt,
	)
	return eris.Wrapf(err, "sqlite: insert production entry for %s", e.ProductID)
}

func (s *SQLiteStore) ListProductionEntries(ctx context.Context, organisationID string, year int) ([]model.ProductionEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organisation_id, product_id, year, units_produced, volume_litres, recorded_at
		 FROM production_entries WHERE organisation_id = ? AND year = ? ORDER BY recorded_at`,
		organisationID, year,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list production entries")
	}
	defer rows.Close()

	var entries []model.ProductionEntry
	for rows.Next() {
		var e model.ProductionEntry
		var units int64
		var volume float64
		if err := rows.Scan(&e.ID, &e.OrganisationID, &e.ProductID, &e.Year, &units, &volume, &e.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan production entry")
		}
		e.UnitsProduced = model.UnitCount(units)
		e.Volume = model.BulkVolume(volume)
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list production entries iterate")
}

func (s *SQLiteStore) InsertAssessment(ctx context.Context, a model.ProductAssessment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO product_assessments (id, product_id, status, scope3_per_unit_kg, scope12_per_unit_kg, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.ProductID, string(a.Status), a.Scope3PerUnitKg, a.Scope12PerUnitKg, a.CompletedAt,
	)
	return eris.Wrapf(err, "sqlite: insert assessment for %s", a.ProductID)
}

func (s *SQLiteStore) LatestCompletedAssessment(ctx context.Context, productID string) (*model.ProductAssessment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, product_id, status, scope3_per_unit_kg, scope12_per_unit_kg, completed_at
		 FROM product_assessments
		 WHERE product_id = ? AND status = ?
		 ORDER BY completed_at DESC LIMIT 1`,
		productID, string(model.AssessmentCompleted),
	)

	var a model.ProductAssessment
	err := row.Scan(&a.ID, &a.ProductID, &a.Status, &a.Scope3PerUnitKg, &a.Scope12PerUnitKg, &a.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest completed assessment")
	}
	return &a, nil
}

func (s *SQLiteStore) InsertOverheadEntry(ctx context.Context, e model.OverheadEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO overhead_entries (id, organisation_id, year, category, material_type, co2e_kg, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OrganisationID, e.Year, e.Category, e.MaterialType, e.CO2eKg, e.RecordedAt,
	)
	return eris.Wrapf(err, "sqlite: insert overhead entry for %s", e.OrganisationID)
}

func (s *SQLiteStore) ListOverheadEntries(ctx context.Context, organisationID string, year int) ([]model.OverheadEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organisation_id, year, category, material_type, co2e_kg, recorded_at
		 FROM overhead_entries WHERE organisation_id = ? AND year = ? ORDER BY recorded_at`,
		organisationID, year,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list overhead entries")
	}
	defer rows.Close()

	var entries []model.OverheadEntry
	for rows.Next() {
		var e model.OverheadEntry
		if err := rows.Scan(&e.ID, &e.OrganisationID, &e.Year, &e.Category, &e.MaterialType, &e.CO2eKg, &e.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan overhead entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list overhead entries iterate")
}

func (s *SQLiteStore) InsertFacilityImpacts(ctx context.Context, f model.FacilityPeriodImpacts) (*model.FacilityPeriodImpacts, error) {
	f.ID = uuid.New().String()
	if f.FinalizedAt.IsZero() {
		f.FinalizedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO facility_impacts (id, facility_id, year, co2e_kg, water_litres, waste_kg, total_volume_litres, finalized_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.FacilityID, f.Year, f.CO2eKg, f.WaterLitres, f.WasteKg, float64(f.TotalVolume), f.FinalizedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert facility impacts for %s", f.FacilityID)
	}
	return &f, nil
}

func (s *SQLiteStore) GetFacilityImpacts(ctx context.Context, facilityID string, year int) (*model.FacilityPeriodImpacts, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, facility_id, year, co2e_kg, water_litres, waste_kg, total_volume_litres, finalized_at
		 FROM facility_impacts WHERE facility_id = ? AND year = ?`,
		facilityID, year,
	)

	var f model.FacilityPeriodImpacts
	var totalVolume float64
	err := row.Scan(&f.ID, &f.FacilityID, &f.Year, &f.CO2eKg, &f.WaterLitres, &f.WasteKg, &totalVolume, &f.FinalizedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get facility impacts")
	}
	f.TotalVolume = model.BulkVolume(totalVolume)
	return &f, nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanFactor(row scannable) (*model.ImpactFactor, error) {
	var f model.ImpactFactor
	var category string
	var metadataJSON sql.NullString

	err := row.Scan(&f.ID, &f.Name, &category, &f.Value, &f.Unit, &f.Source, &f.OrganisationID, &f.Verified, &f.Confidence, &metadataJSON, &f.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan factor")
	}

	f.Category = model.FactorCategory(category)
	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &f.Metadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal factor metadata")
		}
	}
	return &f, nil
}
