package resolver

import (
	"context"

	"github.com/AvallenSolutions/alkatera-sub012/internal/model"
)

// Stage is one source in the resolution cascade. Stages are tried in order
// and the first hit wins; adding a fourth source is a one-line change to the
// stage list, not a new branch in the resolver.
type Stage interface {
	// Name identifies the stage in logs and provenance.
	Name() string

	// Lookup returns the resolved factor for a query, or (nil, nil) on a
	// miss. Errors are treated as misses by the resolver so a single
	// degraded source never fails the whole cascade.
	Lookup(ctx context.Context, q model.FactorQuery) (*model.ResolvedFactor, error)
}
