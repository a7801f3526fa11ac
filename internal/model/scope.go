package model

import "time"

// ScopeCategory is one of the eight fixed Scope 3 reporting buckets.
type ScopeCategory string

const (
	ScopeProducts            ScopeCategory = "products"
	ScopeBusinessTravel      ScopeCategory = "business_travel"
	ScopePurchasedServices   ScopeCategory = "purchased_services"
	ScopeEmployeeCommuting   ScopeCategory = "employee_commuting"
	ScopeCapitalGoods        ScopeCategory = "capital_goods"
	ScopeOperationalWaste    ScopeCategory = "operational_waste"
	ScopeDownstreamLogistics ScopeCategory = "downstream_logistics"
	ScopeMarketingMaterials  ScopeCategory = "marketing_materials"
)

// ScopeCategories lists the eight buckets in reporting order.
func ScopeCategories() []ScopeCategory {
	return []ScopeCategory{
		ScopeProducts,
		ScopeBusinessTravel,
		ScopePurchasedServices,
		ScopeEmployeeCommuting,
		ScopeCapitalGoods,
		ScopeOperationalWaste,
		ScopeDownstreamLogistics,
		ScopeMarketingMaterials,
	}
}

// Scope3Breakdown maps the eight fixed category keys to kg CO2e. Total is a
// derived value: it is recomputed from the eight buckets and never
// accumulated independently, so it cannot drift out of sync with its inputs.
type Scope3Breakdown struct {
	Products            float64 `json:"products"`
	BusinessTravel      float64 `json:"business_travel"`
	PurchasedServices   float64 `json:"purchased_services"`
	EmployeeCommuting   float64 `json:"employee_commuting"`
	CapitalGoods        float64 `json:"capital_goods"`
	OperationalWaste    float64 `json:"operational_waste"`
	DownstreamLogistics float64 `json:"downstream_logistics"`
	MarketingMaterials  float64 `json:"marketing_materials"`
	Total               float64 `json:"total"`
}

// Add accumulates kg CO2e into a category bucket and recomputes the total.
func (b *Scope3Breakdown) Add(cat ScopeCategory, kg float64) {
	switch cat {
	case ScopeProducts:
		b.Products += kg
	case ScopeBusinessTravel:
		b.BusinessTravel += kg
	case ScopePurchasedServices:
		b.PurchasedServices += kg
	case ScopeEmployeeCommuting:
		b.EmployeeCommuting += kg
	case ScopeCapitalGoods:
		b.CapitalGoods += kg
	case ScopeOperationalWaste:
		b.OperationalWaste += kg
	case ScopeDownstreamLogistics:
		b.DownstreamLogistics += kg
	case ScopeMarketingMaterials:
		b.MarketingMaterials += kg
	}
	b.Total = b.Sum()
}

// Get returns the value of a category bucket.
func (b Scope3Breakdown) Get(cat ScopeCategory) float64 {
	switch cat {
	case ScopeProducts:
		return b.Products
	case ScopeBusinessTravel:
		return b.BusinessTravel
	case ScopePurchasedServices:
		return b.PurchasedServices
	case ScopeEmployeeCommuting:
		return b.EmployeeCommuting
	case ScopeCapitalGoods:
		return b.CapitalGoods
	case ScopeOperationalWaste:
		return b.OperationalWaste
	case ScopeDownstreamLogistics:
		return b.DownstreamLogistics
	case ScopeMarketingMaterials:
		return b.MarketingMaterials
	default:
		return 0
	}
}

// Sum returns the sum of the eight category buckets.
func (b Scope3Breakdown) Sum() float64 {
	return b.Products +
		b.BusinessTravel +
		b.PurchasedServices +
		b.EmployeeCommuting +
		b.CapitalGoods +
		b.OperationalWaste +
		b.DownstreamLogistics +
		b.MarketingMaterials
}

// AssessmentStatus is the lifecycle state of a product assessment.
type AssessmentStatus string

const (
	AssessmentDraft     AssessmentStatus = "draft"
	AssessmentCompleted AssessmentStatus = "completed"
)

// ProductAssessment is an upstream record of a product's assessed per-unit
// impacts. Scope3PerUnitKg and Scope12PerUnitKg are separate first-class
// fields so the products bucket of an organisation's Scope 3 inventory can
// never accidentally absorb the product's own-facility Scope 1/2 impacts.
type ProductAssessment struct {
	ID               string           `json:"id"`
	ProductID        string           `json:"product_id"`
	Status           AssessmentStatus `json:"status"`
	Scope3PerUnitKg  float64          `json:"scope3_per_unit_kg"`  // per finished item, Scope 3 only
	Scope12PerUnitKg float64          `json:"scope12_per_unit_kg"` // own-facility Scope 1/2, counted elsewhere
	CompletedAt      time.Time        `json:"completed_at"`
}

// ProductionEntry is an upstream production-log record for one product and
// period. UnitsProduced is the discrete count of finished items; Volume is
// the bulk quantity and is never used to scale per-unit factors.
type ProductionEntry struct {
	ID             string     `json:"id"`
	OrganisationID string     `json:"organisation_id"`
	ProductID      string     `json:"product_id"`
	Year           int        `json:"year"`
	UnitsProduced  UnitCount  `json:"units_produced"`
	Volume         BulkVolume `json:"volume_litres"`
	RecordedAt     time.Time  `json:"recorded_at"`
}

// OverheadEntry is an upstream corporate-overhead record: an activity with a
// free-text category label and a computed CO2e mass. MaterialType is set on
// purchased-services entries that are actually merchandise or marketing
// materials.
type OverheadEntry struct {
	ID             string    `json:"id"`
	OrganisationID string    `json:"organisation_id"`
	Year           int       `json:"year"`
	Category       string    `json:"category"`
	MaterialType   string    `json:"material_type,omitempty"`
	CO2eKg         float64   `json:"co2e_kg"`
	RecordedAt     time.Time `json:"recorded_at"`
}
