package resolver

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/AvallenSolutions/alkatera-sub012/internal/model"
	"github.com/AvallenSolutions/alkatera-sub012/internal/store"
)

// CuratedStage resolves against the curated factor table. Matching is a
// case-insensitive substring check on the factor name; when both an
// organisation-scoped and a global row match, the organisation-scoped row
// wins.
type CuratedStage struct {
	store             store.Store
	defaultConfidence float64
}

// NewCuratedStage creates the stage-1 curated lookup.
func NewCuratedStage(st store.Store, defaultConfidence float64) *CuratedStage {
	return &CuratedStage{store: st, defaultConfidence: defaultConfidence}
}

func (s *CuratedStage) Name() string { return "curated" }

func (s *CuratedStage) Lookup(ctx context.Context, q model.FactorQuery) (*model.ResolvedFactor, error) {
	factors, err := s.store.SearchFactors(ctx, q.Name, q.Category, q.OrganisationID)
	if err != nil {
		return nil, eris.Wrap(err, "curated stage: search")
	}
	if len(factors) == 0 {
		return nil, nil
	}

	// The store sorts organisation-scoped rows ahead of globals, newest
	// first, so the head of the slice is the tie-break winner.
	f := factors[0]

	confidence := f.Confidence
	if confidence <= 0 {
		confidence = s.defaultConfidence
	}

	return &model.ResolvedFactor{
		Factor:     f,
		Stage:      model.StageCurated,
		Tag:        f.Tag(),
		Confidence: confidence,
	}, nil
}
