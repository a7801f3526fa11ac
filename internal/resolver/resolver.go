// Package resolver implements the tiered emission factor cascade: curated
// table first, then the lookup cache, then the external database with its
// deterministic fallback. The first stage that answers wins.
package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AvallenSolutions/alkatera-sub012/internal/model"
	"github.com/AvallenSolutions/alkatera-sub012/internal/store"
	"github.com/AvallenSolutions/alkatera-sub012/pkg/climatiq"
)

// ErrNotFound is returned when every stage of the cascade misses. This is a
// normal outcome for obscure materials, not a failure of the resolver.
var ErrNotFound = eris.New("resolver: no emission factor found")

// Resolver runs queries through the stage cascade in order.
type Resolver struct {
	stages []Stage
	cfg    Config
	now    func() time.Time
}

// New wires the standard three-stage cascade: curated store, cache, external.
// live may be nil, in which case stage 3 serves deterministic mock factors.
func New(st store.Store, live climatiq.Client, cfg Config) *Resolver {
	return &Resolver{
		stages: []Stage{
			NewCuratedStage(st, cfg.CuratedConfidence),
			NewCacheStage(st),
			NewExternalStage(live, st, cfg),
		},
		cfg: cfg,
		now: time.Now,
	}
}

// NewWithStages builds a resolver over an explicit stage list, in cascade
// order.
func NewWithStages(cfg Config, stages ...Stage) *Resolver {
	return &Resolver{stages: stages, cfg: cfg, now: time.Now}
}

// WithNow overrides the resolver clock. Test hook.
func (r *Resolver) WithNow(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve walks the cascade and returns the first hit. A stage error is
// logged and treated as a miss so one degraded source cannot take down the
// whole cascade; ErrNotFound is returned only when every stage misses.
func (r *Resolver) Resolve(ctx context.Context, q model.FactorQuery) (*model.ResolvedFactor, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "resolver: context done")
	}

	for _, stage := range r.stages {
		resolved, err := stage.Lookup(ctx, q)
		if err != nil {
			zap.L().Warn("resolver: stage failed, continuing cascade",
				zap.String("stage", stage.Name()),
				zap.String("query", q.Name),
				zap.Error(err),
			)
			continue
		}
		if resolved == nil {
			continue
		}

		resolved.ResolvedAt = r.now()
		zap.L().Debug("resolver: hit",
			zap.String("stage", stage.Name()),
			zap.String("query", q.Name),
			zap.Float64("value", resolved.Factor.Value),
			zap.Float64("confidence", resolved.Confidence),
		)
		return resolved, nil
	}

	return nil, eris.Wrapf(ErrNotFound, "query %q category %q", q.Name, q.Category)
}

// BatchSummary reports the outcome of a batch resolution.
type BatchSummary struct {
	Total    int      `json:"total"`
	Resolved int      `json:"resolved"`
	Missing  []string `json:"missing,omitempty"`
}

// ResolveAll resolves a batch of queries concurrently, bounded by
// MaxConcurrentLookups. Unresolvable queries are collected in the summary
// rather than failing the batch; results holds a non-nil entry per resolved
// query, index-aligned with the input.
func (r *Resolver) ResolveAll(ctx context.Context, queries []model.FactorQuery) ([]*model.ResolvedFactor, BatchSummary, error) {
	results := make([]*model.ResolvedFactor, len(queries))
	summary := BatchSummary{Total: len(queries)}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrentLookups)

	for i, q := range queries {
		g.Go(func() error {
			resolved, err := r.Resolve(gctx, q)
			if err != nil {
				if eris.Is(err, ErrNotFound) {
					mu.Lock()
					summary.Missing = append(summary.Missing, q.Name)
					mu.Unlock()
					return nil
				}
				return err
			}
			results[i] = resolved
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, summary, eris.Wrap(err, "resolver: batch")
	}

	summary.Resolved = summary.Total - len(summary.Missing)
	if len(summary.Missing) > 0 {
		zap.L().Info("resolver: batch completed with misses",
			zap.Int("total", summary.Total),
			zap.Int("resolved", summary.Resolved),
			zap.Strings("missing", summary.Missing),
		)
	}
	return results, summary, nil
}
