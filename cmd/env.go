package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/AvallenSolutions/alkatera-sub012/internal/resolver"
	"github.com/AvallenSolutions/alkatera-sub012/internal/store"
	"github.com/AvallenSolutions/alkatera-sub012/pkg/climatiq"
)

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, store.PoolConfig{})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initResolver wires the three-stage cascade. Without an API key the live
// external source stays unconfigured and stage 3 serves deterministic mocks.
func initResolver(st store.Store) *resolver.Resolver {
	var live climatiq.Client
	if cfg.Climatiq.Key != "" {
		live = climatiq.NewClient(cfg.Climatiq.Key,
			climatiq.WithBaseURL(cfg.Climatiq.BaseURL),
			climatiq.WithRateLimit(cfg.Climatiq.RatePerSec, 2*int(cfg.Climatiq.RatePerSec)),
		)
	}
	return resolver.New(st, live, cfg.Resolver)
}
