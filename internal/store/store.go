// Package store provides persistence for curated factors, the factor cache,
// and the upstream records the aggregation engine reads.
package store

import (
	"context"
	"time"

	"github.com/AvallenSolutions/alkatera-sub012/internal/model"
)

// Store defines the persistence interface for the impact engine. Curated
// factor rows are append-only: corrections insert new rows so calculations
// stay auditable.
type Store interface {
	// Curated factors (resolver stage 1)
	InsertFactor(ctx context.Context, f model.ImpactFactor) (*model.ImpactFactor, error)
	BulkInsertFactors(ctx context.Context, factors []model.ImpactFactor) (int, error)
	SearchFactors(ctx context.Context, name string, category model.FactorCategory, organisationID string) ([]model.ImpactFactor, error)

	// Factor cache (resolver stage 2)
	GetCachedFactor(ctx context.Context, key string) (*model.CacheEntry, error)
	SetCachedFactor(ctx context.Context, key string, resolved model.ResolvedFactor, ttl time.Duration) error
	DeleteExpiredFactors(ctx context.Context) (int, error)

	// Production log
	InsertProductionEntry(ctx context.Context, e model.ProductionEntry) error
	ListProductionEntries(ctx context.Context, organisationID string, year int) ([]model.ProductionEntry, error)

	// Product assessments
	InsertAssessment(ctx context.Context, a model.ProductAssessment) error
	LatestCompletedAssessment(ctx context.Context, productID string) (*model.ProductAssessment, error)

	// Corporate overhead
	InsertOverheadEntry(ctx context.Context, e model.OverheadEntry) error
	ListOverheadEntries(ctx context.Context, organisationID string, year int) ([]model.OverheadEntry, error)

	// Facility period readings
	InsertFacilityImpacts(ctx context.Context, f model.FacilityPeriodImpacts) (*model.FacilityPeriodImpacts, error)
	GetFacilityImpacts(ctx context.Context, facilityID string, year int) (*model.FacilityPeriodImpacts, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
