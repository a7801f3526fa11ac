// Package model defines the core types for impact factor resolution,
// facility allocation, and scope aggregation.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// FactorCategory classifies what an impact factor measures.
type FactorCategory string

const (
	CategoryIngredient FactorCategory = "ingredient"
	CategoryPackaging  FactorCategory = "packaging"
	CategoryEnergy     FactorCategory = "energy"
	CategoryTransport  FactorCategory = "transport"
	CategoryWaste      FactorCategory = "waste"
)

// FactorCategories lists all valid categories.
func FactorCategories() []FactorCategory {
	return []FactorCategory{
		CategoryIngredient,
		CategoryPackaging,
		CategoryEnergy,
		CategoryTransport,
		CategoryWaste,
	}
}

// ParseFactorCategory converts a string to a FactorCategory.
func ParseFactorCategory(s string) (FactorCategory, error) {
	c := FactorCategory(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range FactorCategories() {
		if c == valid {
			return c, nil
		}
	}
	return "", eris.Errorf("unknown factor category: %q", s)
}

// SourceTag is the normalized data-quality tag attached to a resolved factor.
type SourceTag string

const (
	TagPrimaryVerified   SourceTag = "primary_verified"
	TagSecondaryModelled SourceTag = "secondary_modelled"
	TagHybridProxy       SourceTag = "hybrid_proxy"
)

// ImpactFactor is a named emission/impact coefficient. Rows are immutable once
// referenced by a calculation: corrections create new rows, never in-place
// edits, so every historical calculation stays reproducible.
type ImpactFactor struct {
	ID             string            `json:"id,omitempty"`
	Name           string            `json:"name"`
	Category       FactorCategory    `json:"category"`
	Value          float64           `json:"value"` // kg CO2e (or L, kg) per reference unit
	Unit           string            `json:"unit"`
	Source         string            `json:"source"`
	OrganisationID string            `json:"organisation_id,omitempty"` // empty = global
	Verified       bool              `json:"verified"`                  // stored flag, never inferred
	Confidence     float64           `json:"confidence"`                // declared confidence, 0-100
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Validate checks the factor's invariants.
func (f ImpactFactor) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return eris.New("factor: name is required")
	}
	if f.Value < 0 {
		return eris.Errorf("factor %q: value must be >= 0, got %g", f.Name, f.Value)
	}
	if _, err := ParseFactorCategory(string(f.Category)); err != nil {
		return eris.Wrapf(err, "factor %q", f.Name)
	}
	return nil
}

// Tag returns the data-quality tag recorded on the curated row. The flag is
// stored at write time, never inferred from the name or source string.
func (f ImpactFactor) Tag() SourceTag {
	if f.Verified {
		return TagPrimaryVerified
	}
	return TagSecondaryModelled
}

// FactorQuery identifies one factor lookup.
type FactorQuery struct {
	Name           string         `json:"name"`
	Category       FactorCategory `json:"category"`
	OrganisationID string         `json:"organisation_id,omitempty"`
}

// CacheKey returns the normalized cache key for this query: lower-cased name,
// category, and organisation id. Org-agnostic queries share a global key.
func (q FactorQuery) CacheKey() string {
	org := q.OrganisationID
	if org == "" {
		org = "global"
	}
	return fmt.Sprintf("%s|%s|%s", strings.ToLower(strings.TrimSpace(q.Name)), q.Category, org)
}

// ResolutionStage identifies which resolver stage produced a result.
type ResolutionStage int

const (
	StageCurated  ResolutionStage = 1
	StageCache    ResolutionStage = 2
	StageExternal ResolutionStage = 3
)

func (s ResolutionStage) String() string {
	switch s {
	case StageCurated:
		return "curated"
	case StageCache:
		return "cache"
	case StageExternal:
		return "external"
	default:
		return "unknown"
	}
}

// ResolvedFactor is the outcome of one resolver invocation. It is ephemeral:
// produced per lookup, with external-stage results persisted into the cache.
type ResolvedFactor struct {
	Factor     ImpactFactor    `json:"factor"`
	Stage      ResolutionStage `json:"stage"`
	Tag        SourceTag       `json:"tag"`
	Confidence float64         `json:"confidence"` // 0-100
	ResolvedAt time.Time       `json:"resolved_at"`
}

// CacheEntry is a persisted stage-2 record holding a previously resolved
// external lookup.
type CacheEntry struct {
	ID        string         `json:"id"`
	Key       string         `json:"key"`
	Resolved  ResolvedFactor `json:"resolved"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Expired reports whether the entry is past its TTL. An expired entry must
// never be served; it is treated as a miss and is eligible for overwrite.
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
