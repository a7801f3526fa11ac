// Package allocator apportions a facility's measured period impacts to a
// single product by volumetric share. The arithmetic is pure: no clamping,
// no silent correction, and any input that would produce a misleading ratio
// is rejected outright.
package allocator

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/AvallenSolutions/alkatera-sub012/internal/model"
)

// Validation sentinels. Callers distinguish a rejected input from an
// infrastructure failure with errors.Is.
var (
	ErrZeroTotalVolume    = eris.New("allocator: facility total volume must be positive")
	ErrNegativeVolume     = eris.New("allocator: product volume must be positive")
	ErrVolumeExceedsTotal = eris.New("allocator: product volume exceeds facility total volume")
	ErrNegativeMetric     = eris.New("allocator: impact metrics must not be negative")
	ErrUnfinalizedImpacts = eris.New("allocator: facility impacts not finalized")
)

// provenancePrinter renders volumes with thousand separators for the audit
// trail string.
var provenancePrinter = message.NewPrinter(language.BritishEnglish)

// Allocator computes volumetric impact allocations.
type Allocator struct {
	now func() time.Time
}

// New creates an allocator.
func New() *Allocator {
	return &Allocator{now: time.Now}
}

// WithNow overrides the allocator clock. Test hook.
func (a *Allocator) WithNow(now func() time.Time) *Allocator {
	a.now = now
	return a
}

// Allocate attributes the facility's period impacts to a product that
// accounts for productVolume litres of the facility's total volume.
//
// The ratio is productVolume / totalVolume; each per-unit metric is the
// facility metric divided by the total volume, so that
// perUnit * totalVolume reproduces the facility metric exactly and the sum
// of all product allocations can never exceed what was measured.
func (a *Allocator) Allocate(impacts model.FacilityPeriodImpacts, productVolume float64) (*model.AllocatedImpact, error) {
	if err := validate(impacts, productVolume); err != nil {
		return nil, err
	}

	total := impacts.TotalVolume.Litres()
	ratio := productVolume / total

	allocated := &model.AllocatedImpact{
		FacilityID:    impacts.FacilityID,
		ProductVolume: productVolume,
		Ratio:         ratio,
		CO2ePerUnit:   impacts.CO2eKg / total,
		WaterPerUnit:  impacts.WaterLitres / total,
		WastePerUnit:  impacts.WasteKg / total,
		Provenance:    provenance(impacts, productVolume),
		ComputedAt:    a.now(),
	}

	zap.L().Debug("allocator: computed allocation",
		zap.String("facility_id", impacts.FacilityID),
		zap.Int("year", impacts.Year),
		zap.Float64("ratio", ratio),
		zap.Float64("co2e_per_unit_kg", allocated.CO2ePerUnit),
	)
	return allocated, nil
}

func validate(impacts model.FacilityPeriodImpacts, productVolume float64) error {
	total := impacts.TotalVolume.Litres()
	if total <= 0 {
		return eris.Wrapf(ErrZeroTotalVolume, "facility %s year %d: total %g", impacts.FacilityID, impacts.Year, total)
	}
	if productVolume <= 0 {
		return eris.Wrapf(ErrNegativeVolume, "facility %s: product volume %g", impacts.FacilityID, productVolume)
	}
	if productVolume > total {
		return eris.Wrapf(ErrVolumeExceedsTotal, "facility %s: product %g > total %g", impacts.FacilityID, productVolume, total)
	}
	if impacts.CO2eKg < 0 || impacts.WaterLitres < 0 || impacts.WasteKg < 0 {
		return eris.Wrapf(ErrNegativeMetric, "facility %s year %d", impacts.FacilityID, impacts.Year)
	}
	if impacts.FinalizedAt.IsZero() {
		return eris.Wrapf(ErrUnfinalizedImpacts, "facility %s year %d", impacts.FacilityID, impacts.Year)
	}
	return nil
}

// provenance describes the allocation inputs in one human-readable line,
// stored alongside the result so a reviewer can verify it without replaying
// the calculation.
func provenance(impacts model.FacilityPeriodImpacts, productVolume float64) string {
	return provenancePrinter.Sprintf("allocated %.0f L of %.0f L facility volume (facility %s, %d): CO2e %.1f kg, water %.1f L, waste %.1f kg",
		productVolume,
		impacts.TotalVolume.Litres(),
		impacts.FacilityID,
		impacts.Year,
		impacts.CO2eKg,
		impacts.WaterLitres,
		impacts.WasteKg,
	)
}
