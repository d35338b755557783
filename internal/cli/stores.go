package cli

import (
	"context"
	"fmt"
	"time"

	"formbuilder-service/internal/app"
	"formbuilder-service/internal/config"
	"formbuilder-service/internal/infra/memory"
	pgstore "formbuilder-service/internal/infra/postgres"
	redisstore "formbuilder-service/internal/infra/redis"
	"formbuilder-service/internal/metrics"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// backend is the set of stores selected by config, plus a cleanup func.
type backend struct {
	forms     app.FormStore
	responses app.ResponseStore
	fills     app.FillSessionStore
	cache     app.FormCache
	close     func()
}

// openBackend picks Postgres when a URL is configured and Redis for the form
// cache and fill sessions when an address is configured; memory otherwise.
func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	b := &backend{close: func() {}}
	var closers []func()

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		b.forms = pgstore.NewFormStore(pool)
		b.responses = pgstore.NewResponseStore(pool)
	} else {
		b.forms = memory.NewFormStore()
		b.responses = memory.NewResponseStore()
	}

	cacheTTL := config.TTLDuration(cfg.Form.CacheTTL, 10*time.Minute)
	sessionTTL := config.TTLDuration(cfg.Fill.SessionTTL, config.TTLDuration(cfg.Redis.TTL, 2*time.Hour))
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = client.Close() })
		b.cache = redisstore.NewFormCache(client, b.forms, cacheTTL)
		b.fills = redisstore.NewFillSessionStore(client, sessionTTL)
	} else {
		b.cache = memory.NewFormCache(b.forms, cacheTTL)
		b.fills = memory.NewFillSessionStore(sessionTTL)
	}

	b.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return b, nil
}

func (b *backend) service(m *metrics.Metrics) *app.FormService {
	return app.NewFormService(b.forms, b.responses, b.fills,
		app.WithCache(b.cache),
		app.WithMetrics(m),
	)
}
