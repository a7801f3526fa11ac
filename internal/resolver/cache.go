package resolver

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/AvallenSolutions/alkatera-sub012/internal/model"
	"github.com/AvallenSolutions/alkatera-sub012/internal/store"
)

// CacheStage resolves against previously cached external lookups. An entry
// past its TTL is a miss, even if the store has not evicted it yet.
type CacheStage struct {
	store store.Store
	now   func() time.Time
}

// NewCacheStage creates the stage-2 cache lookup.
func NewCacheStage(st store.Store) *CacheStage {
	return &CacheStage{store: st, now: time.Now}
}

func (s *CacheStage) Name() string { return "cache" }

func (s *CacheStage) Lookup(ctx context.Context, q model.FactorQuery) (*model.ResolvedFactor, error) {
	entry, err := s.store.GetCachedFactor(ctx, q.CacheKey())
	if err != nil {
		return nil, eris.Wrap(err, "cache stage: get")
	}
	if entry == nil {
		return nil, nil
	}

	// The store filters expired rows, but re-check here: clock skew between
	// the database and the process must never serve a stale entry.
	if entry.Expired(s.now()) {
		return nil, nil
	}

	// Confidence and tag were recorded at cache-write time, inherited from
	// the stage-3 lookup that produced the entry.
	resolved := entry.Resolved
	resolved.Stage = model.StageCache
	return &resolved, nil
}
