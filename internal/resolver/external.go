package resolver

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/AvallenSolutions/alkatera-sub012/internal/model"
	"github.com/AvallenSolutions/alkatera-sub012/internal/resilience"
	"github.com/AvallenSolutions/alkatera-sub012/internal/store"
	"github.com/AvallenSolutions/alkatera-sub012/pkg/climatiq"
)

// ExternalStage queries the live emission factor database, degrading to a
// deterministic mock when the database is unconfigured, unreachable, or the
// circuit breaker is open. On a live or mock hit the result is written into
// the stage-2 cache before returning, so the next identical query is served
// locally.
type ExternalStage struct {
	live    climatiq.Client // nil when unconfigured
	mock    climatiq.Client
	store   store.Store
	breaker *resilience.CircuitBreaker
	cfg     Config
}

// NewExternalStage creates the stage-3 external lookup. live may be nil.
func NewExternalStage(live climatiq.Client, st store.Store, cfg Config) *ExternalStage {
	return &ExternalStage{
		live:  live,
		mock:  climatiq.NewMockClient(),
		store: st,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			ShouldTrip: resilience.IsTransient,
		}),
		cfg: cfg,
	}
}

func (s *ExternalStage) Name() string { return "external" }

func (s *ExternalStage) Lookup(ctx context.Context, q model.FactorQuery) (*model.ResolvedFactor, error) {
	factor, mocked, err := s.fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	if factor == nil {
		return nil, nil
	}

	resolved := s.toResolved(q, factor, mocked)

	// Write the cache entry only after a successful fetch; a cancelled or
	// failed stage-3 call must never leave a partial entry behind.
	if err := s.store.SetCachedFactor(ctx, q.CacheKey(), *resolved, s.cfg.CacheTTL()); err != nil {
		zap.L().Warn("external stage: cache write failed",
			zap.String("key", q.CacheKey()),
			zap.Error(err),
		)
	}

	return resolved, nil
}

// fetch returns the external factor and whether the mock produced it. A nil
// factor with nil error is a genuine miss: the live database answered and
// has no match.
func (s *ExternalStage) fetch(ctx context.Context, q model.FactorQuery) (*climatiq.Factor, bool, error) {
	req := climatiq.SearchRequest{
		Query:    q.Name,
		Category: string(q.Category),
	}

	if s.live == nil {
		zap.L().Debug("external stage: live source unconfigured, using mock",
			zap.String("query", q.Name),
		)
		f, err := s.mock.Search(ctx, req)
		return f, true, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.cfg.ExternalTimeout())
	defer cancel()

	f, err := resilience.ExecuteVal(queryCtx, s.breaker, func(ctx context.Context) (*climatiq.Factor, error) {
		return s.live.Search(ctx, req)
	})
	if err == nil {
		return f, false, nil
	}
	if errors.Is(err, climatiq.ErrNoMatch) {
		return nil, false, nil
	}

	// Transient failures, misconfiguration, and open-circuit rejections all
	// degrade to the mock: a resolution call never fails on network
	// conditions alone.
	zap.L().Warn("external stage: live lookup failed, falling back to mock",
		zap.String("query", q.Name),
		zap.Error(err),
	)
	f, mockErr := s.mock.Search(ctx, req)
	return f, true, mockErr
}

func (s *ExternalStage) toResolved(q model.FactorQuery, f *climatiq.Factor, mocked bool) *model.ResolvedFactor {
	metadata := map[string]string{
		"activity_id": f.ActivityID,
	}
	if f.Region != "" {
		metadata["region"] = f.Region
	}

	tag := model.TagSecondaryModelled
	confidence := s.cfg.LiveConfidence
	if mocked {
		metadata["mock"] = "true"
		tag = model.TagHybridProxy
		confidence = s.cfg.MockConfidence
	}

	return &model.ResolvedFactor{
		Factor: model.ImpactFactor{
			Name:           f.Name,
			Category:       q.Category,
			Value:          f.FactorKgCO2e,
			Unit:           f.Unit,
			Source:         f.Source,
			OrganisationID: q.OrganisationID,
			Metadata:       metadata,
		},
		Stage:      model.StageExternal,
		Tag:        tag,
		Confidence: confidence,
	}
}
