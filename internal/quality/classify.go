// Package quality normalizes heterogeneous source descriptions into the
// three data-quality tags used across the resolver and aggregator.
package quality

import (
	"strings"

	"go.uber.org/zap"

	"github.com/AvallenSolutions/alkatera-sub012/internal/model"
)

// Classification pairs a normalized tag with its numeric confidence (0-100).
type Classification struct {
	Tag        model.SourceTag `json:"tag"`
	Confidence float64         `json:"confidence"`
}

// Confidence levels per tag. Recognized modelled sources rank above the
// unrecognized default so an unknown label is never presented as more
// certain than a known one.
const (
	ConfidencePrimary   = 95
	ConfidenceSecondary = 75
	ConfidenceHybrid    = 60
	ConfidenceUnknown   = 50
)

// rawTagMap maps normalized upstream tag strings to classifications.
// "regional standard" and "secondary modelled" are deliberately equal:
// regional government factors and lifecycle databases are both modelled
// data, not measured data.
var rawTagMap = map[string]Classification{
	"primary verified":   {Tag: model.TagPrimaryVerified, Confidence: ConfidencePrimary},
	"primary_verified":   {Tag: model.TagPrimaryVerified, Confidence: ConfidencePrimary},
	"regional standard":  {Tag: model.TagSecondaryModelled, Confidence: ConfidenceSecondary},
	"regional_standard":  {Tag: model.TagSecondaryModelled, Confidence: ConfidenceSecondary},
	"secondary modelled": {Tag: model.TagSecondaryModelled, Confidence: ConfidenceSecondary},
	"secondary_modelled": {Tag: model.TagSecondaryModelled, Confidence: ConfidenceSecondary},
	"hybrid proxy":       {Tag: model.TagHybridProxy, Confidence: ConfidenceHybrid},
	"hybrid_proxy":       {Tag: model.TagHybridProxy, Confidence: ConfidenceHybrid},
}

// ClassifyTag maps an upstream source-tag string to a normalized
// classification. Unrecognized tags default to secondary_modelled with a
// lower confidence: work is shown as less certain, never more certain,
// than it actually is.
func ClassifyTag(raw string) Classification {
	key := strings.ToLower(strings.TrimSpace(raw))
	if c, ok := rawTagMap[key]; ok {
		return c
	}

	zap.L().Warn("quality: unrecognized source tag, defaulting to secondary_modelled",
		zap.String("tag", raw),
	)
	return Classification{Tag: model.TagSecondaryModelled, Confidence: ConfidenceUnknown}
}

// ClassifyPriority maps a source priority level to a classification.
// Level 1 is primary verified; levels 2 and 3 are both modelled.
func ClassifyPriority(level int) Classification {
	switch level {
	case 1:
		return Classification{Tag: model.TagPrimaryVerified, Confidence: ConfidencePrimary}
	case 2, 3:
		return Classification{Tag: model.TagSecondaryModelled, Confidence: ConfidenceSecondary}
	default:
		zap.L().Warn("quality: unrecognized priority level, defaulting to secondary_modelled",
			zap.Int("level", level),
		)
		return Classification{Tag: model.TagSecondaryModelled, Confidence: ConfidenceUnknown}
	}
}
