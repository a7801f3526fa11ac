package model

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScope3Breakdown_AddRecomputesTotal(t *testing.T) {
	var b Scope3Breakdown
	b.Add(ScopeProducts, 10000)
	b.Add(ScopeBusinessTravel, 172)

	assert.Equal(t, 10000.0, b.Products)
	assert.Equal(t, 172.0, b.BusinessTravel)
	assert.Equal(t, 10172.0, b.Total)
}

func TestScope3Breakdown_TotalEqualsSum_Random(t *testing.T) {
	r := rand.New(rand.NewPCG(42, 0))

	for i := 0; i < 200; i++ {
		var b Scope3Breakdown
		for _, cat := range ScopeCategories() {
			// Including zero contributions.
			if r.Float64() < 0.3 {
				continue
			}
			b.Add(cat, r.Float64()*1e6)
		}
		assert.InDelta(t, b.Sum(), b.Total, 1e-9)
	}
}

func TestScope3Breakdown_AllZero(t *testing.T) {
	var b Scope3Breakdown
	for _, cat := range ScopeCategories() {
		b.Add(cat, 0)
	}
	assert.Equal(t, 0.0, b.Total)
}

func TestScope3Breakdown_Get(t *testing.T) {
	var b Scope3Breakdown
	for i, cat := range ScopeCategories() {
		b.Add(cat, float64(i+1))
	}
	for i, cat := range ScopeCategories() {
		assert.Equal(t, float64(i+1), b.Get(cat))
	}
	assert.Equal(t, 0.0, b.Get("unknown"))
}

func TestUnitCountAndBulkVolumeAreDistinct(t *testing.T) {
	units := UnitCount(100000)
	volume := BulkVolume(10000) // same production run, expressed in litres

	assert.Equal(t, 100000.0, units.Units())
	assert.Equal(t, 10000.0, volume.Litres())
	assert.Equal(t, 100.0, volume.Hectolitres())

	// The per-unit contribution uses the discrete count, not the bulk volume.
	perUnit := 0.002744
	assert.InDelta(t, 274.4, perUnit*units.Units(), 1e-9)
}
