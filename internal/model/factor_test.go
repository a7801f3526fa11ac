package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFactorCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    FactorCategory
		wantErr bool
	}{
		{"ingredient", CategoryIngredient, false},
		{"Packaging", CategoryPackaging, false},
		{"  ENERGY  ", CategoryEnergy, false},
		{"transport", CategoryTransport, false},
		{"waste", CategoryWaste, false},
		{"logistics", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFactorCategory(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestImpactFactor_Validate(t *testing.T) {
	valid := ImpactFactor{
		Name:     "Organic barley",
		Category: CategoryIngredient,
		Value:    0.62,
		Unit:     "kg CO2e/kg",
	}
	assert.NoError(t, valid.Validate())

	negative := valid
	negative.Value = -0.1
	assert.Error(t, negative.Validate())

	unnamed := valid
	unnamed.Name = "  "
	assert.Error(t, unnamed.Validate())

	badCategory := valid
	badCategory.Category = "misc"
	assert.Error(t, badCategory.Validate())
}

func TestImpactFactor_Tag_FromStoredFlag(t *testing.T) {
	verified := ImpactFactor{Verified: true}
	assert.Equal(t, TagPrimaryVerified, verified.Tag())

	modelled := ImpactFactor{Verified: false}
	assert.Equal(t, TagSecondaryModelled, modelled.Tag())
}

func TestFactorQuery_CacheKey(t *testing.T) {
	q := FactorQuery{Name: "  Glass Bottle 700ml ", Category: CategoryPackaging, OrganisationID: "org-1"}
	assert.Equal(t, "glass bottle 700ml|packaging|org-1", q.CacheKey())

	// Org-agnostic queries share a global key.
	global := FactorQuery{Name: "Glass Bottle 700ml", Category: CategoryPackaging}
	assert.Equal(t, "glass bottle 700ml|packaging|global", global.CacheKey())

	// Case differences normalize to the same key.
	upper := FactorQuery{Name: "GLASS BOTTLE 700ML", Category: CategoryPackaging, OrganisationID: "org-1"}
	assert.Equal(t, q.CacheKey(), upper.CacheKey())
}

func TestCacheEntry_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := CacheEntry{
		CreatedAt: now.Add(-23 * time.Hour),
		ExpiresAt: now.Add(time.Hour),
	}
	assert.False(t, entry.Expired(now))
	assert.True(t, entry.Expired(now.Add(time.Hour)))     // boundary: expiry instant is expired
	assert.True(t, entry.Expired(now.Add(25*time.Hour)))
}
