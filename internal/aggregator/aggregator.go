// Package aggregator assembles an organisation's annual Scope 3 inventory
// from two streams: per-unit product assessments scaled by production counts,
// and corporate overhead activities classified into reporting buckets.
package aggregator

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AvallenSolutions/alkatera-sub012/internal/model"
	"github.com/AvallenSolutions/alkatera-sub012/internal/store"
)

// Report is one organisation-year Scope 3 inventory.
type Report struct {
	OrganisationID string                `json:"organisation_id"`
	Year           int                   `json:"year"`
	Breakdown      model.Scope3Breakdown `json:"breakdown"`
	ProductsSeen   int                   `json:"products_seen"`
	Skipped        []string              `json:"skipped,omitempty"` // product IDs excluded from the products bucket
	GeneratedAt    time.Time             `json:"generated_at"`
}

// Aggregator builds Scope 3 reports from stored production and overhead
// records.
type Aggregator struct {
	store store.Store
	now   func() time.Time
}

// New creates an aggregator over the given store.
func New(st store.Store) *Aggregator {
	return &Aggregator{store: st, now: time.Now}
}

// WithNow overrides the aggregator clock. Test hook.
func (a *Aggregator) WithNow(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Aggregate computes the organisation's Scope 3 breakdown for one year. The
// products bucket is per-unit Scope 3 impact times units produced; the other
// seven buckets come from classified overhead activities. The total is always
// recomputed from the buckets.
func (a *Aggregator) Aggregate(ctx context.Context, organisationID string, year int) (*Report, error) {
	report := &Report{
		OrganisationID: organisationID,
		Year:           year,
		GeneratedAt:    a.now(),
	}

	if err := a.addProducts(ctx, report); err != nil {
		return nil, err
	}
	if err := a.addOverheads(ctx, report); err != nil {
		return nil, err
	}

	zap.L().Info("aggregator: report built",
		zap.String("organisation_id", organisationID),
		zap.Int("year", year),
		zap.Int("products_seen", report.ProductsSeen),
		zap.Int("skipped", len(report.Skipped)),
		zap.Float64("total_kg", report.Breakdown.Total),
	)
	return report, nil
}

// addProducts scales each production entry's latest completed per-unit
// assessment by the discrete unit count. The entry's bulk volume is never a
// multiplier here: scaling a per-unit factor by litres instead of items
// inflates the bucket by orders of magnitude.
func (a *Aggregator) addProducts(ctx context.Context, report *Report) error {
	entries, err := a.store.ListProductionEntries(ctx, report.OrganisationID, report.Year)
	if err != nil {
		return eris.Wrap(err, "aggregator: list production entries")
	}

	for _, entry := range entries {
		report.ProductsSeen++

		if entry.UnitsProduced <= 0 {
			zap.L().Info("aggregator: skipping product with no production",
				zap.String("product_id", entry.ProductID),
				zap.Int("year", entry.Year),
				zap.Int64("units", int64(entry.UnitsProduced)),
			)
			report.Skipped = append(report.Skipped, entry.ProductID)
			continue
		}

		assessment, err := a.store.LatestCompletedAssessment(ctx, entry.ProductID)
		if err != nil {
			return eris.Wrapf(err, "aggregator: assessment for product %s", entry.ProductID)
		}
		if assessment == nil {
			zap.L().Warn("aggregator: skipping product without a completed assessment",
				zap.String("product_id", entry.ProductID),
			)
			report.Skipped = append(report.Skipped, entry.ProductID)
			continue
		}

		// Scope 1/2 per-unit impacts are reported in the organisation's own
		// scopes; adding them here would double count.
		kg := assessment.Scope3PerUnitKg * entry.UnitsProduced.Units()
		report.Breakdown.Add(model.ScopeProducts, kg)
	}
	return nil
}

func (a *Aggregator) addOverheads(ctx context.Context, report *Report) error {
	entries, err := a.store.ListOverheadEntries(ctx, report.OrganisationID, report.Year)
	if err != nil {
		return eris.Wrap(err, "aggregator: list overhead entries")
	}

	for _, entry := range entries {
		report.Breakdown.Add(classifyOverhead(entry), entry.CO2eKg)
	}
	return nil
}

// overheadBuckets maps normalized category labels to reporting buckets.
// "purchased services" is handled separately: entries with a material type
// are physical merchandise, not services.
var overheadBuckets = map[string]model.ScopeCategory{
	"business travel":      model.ScopeBusinessTravel,
	"employee commuting":   model.ScopeEmployeeCommuting,
	"capital goods":        model.ScopeCapitalGoods,
	"operational waste":    model.ScopeOperationalWaste,
	"waste":                model.ScopeOperationalWaste,
	"downstream logistics": model.ScopeDownstreamLogistics,
	"logistics":            model.ScopeDownstreamLogistics,
	"marketing materials":  model.ScopeMarketingMaterials,
}

// classifyOverhead assigns an overhead activity to one of the seven non-product
// buckets. Unrecognized labels land in purchased_services so no recorded
// emission is ever dropped from the total.
func classifyOverhead(entry model.OverheadEntry) model.ScopeCategory {
	label := normalizeLabel(entry.Category)

	if label == "purchased services" {
		if entry.MaterialType != "" {
			return model.ScopeMarketingMaterials
		}
		return model.ScopePurchasedServices
	}

	if cat, ok := overheadBuckets[label]; ok {
		return cat
	}

	zap.L().Warn("aggregator: unrecognized overhead category, using purchased_services",
		zap.String("category", entry.Category),
		zap.String("entry_id", entry.ID),
	)
	return model.ScopePurchasedServices
}

func normalizeLabel(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(s, "_", " "))), " ")
}
