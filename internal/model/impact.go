package model

import "time"

// UnitCount is a discrete count of finished items. It is deliberately a
// distinct type from BulkVolume: multiplying a per-unit factor by a bulk
// volume (litres, hectolitres) instead of a unit count silently inflates
// results by orders of magnitude, so the two never interconvert implicitly.
type UnitCount int64

// Units returns the count as a float for arithmetic with per-unit factors.
func (c UnitCount) Units() float64 {
	return float64(c)
}

// BulkVolume is a bulk production quantity in litres.
type BulkVolume float64

// Litres returns the volume in litres.
func (v BulkVolume) Litres() float64 {
	return float64(v)
}

// Hectolitres returns the volume in hectolitres.
func (v BulkVolume) Hectolitres() float64 {
	return float64(v) / 100
}

// FacilityPeriodImpacts holds a facility's total measured impacts for one
// reporting period, plus the facility's total production volume for that
// period. Immutable once referenced by an allocation.
type FacilityPeriodImpacts struct {
	ID          string     `json:"id,omitempty"`
	FacilityID  string     `json:"facility_id"`
	Year        int        `json:"year"`
	CO2eKg      float64    `json:"co2e_kg"`
	WaterLitres float64    `json:"water_litres"`
	WasteKg     float64    `json:"waste_kg"`
	TotalVolume BulkVolume `json:"total_volume_litres"`
	FinalizedAt time.Time  `json:"finalized_at"`
}

// AllocatedImpact is the allocator's output: the share of a facility's period
// impacts attributed to a single product, normalized to a per-unit-of-volume
// basis. Recomputed, never mutated, whenever volumes change.
type AllocatedImpact struct {
	FacilityID    string    `json:"facility_id"`
	ProductVolume float64   `json:"product_volume_litres"`
	Ratio         float64   `json:"ratio"` // productVolume / facility total volume
	CO2ePerUnit   float64   `json:"co2e_per_unit_kg"`
	WaterPerUnit  float64   `json:"water_per_unit_l"`
	WastePerUnit  float64   `json:"waste_per_unit_kg"`
	Provenance    string    `json:"provenance"`
	ComputedAt    time.Time `json:"computed_at"`
}
