package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/atelier-jewellery/storefront/internal/config"
	"github.com/atelier-jewellery/storefront/internal/guard"
	"github.com/atelier-jewellery/storefront/internal/remote"
	"github.com/atelier-jewellery/storefront/internal/remote/memory"
	"github.com/atelier-jewellery/storefront/internal/remote/postgres"
	"github.com/atelier-jewellery/storefront/internal/remote/postgrest"
	"github.com/atelier-jewellery/storefront/pkg/database"
	"github.com/atelier-jewellery/storefront/pkg/httpclient"
)

// Backends holds the remote store and in-flight guard selected by
// configuration, together with the connections they own.
type Backends struct {
	Remote remote.Store
	Guard  guard.Guard

	pool *pgxpool.Pool
	rdb  *redis.Client
}

// OpenBackends connects the configured remote store and guard. reg receives
// connection pool metrics; it may be nil.
func OpenBackends(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (*Backends, error) {
	b := &Backends{}

	rs, err := b.openRemote(ctx, cfg, reg, logger)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Remote = rs

	g, err := b.openGuard(ctx, cfg, logger)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Guard = g

	return b, nil
}

func (b *Backends) openRemote(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (remote.Store, error) {
	switch cfg.Remote {
	case config.RemotePostgres:
		pgCfg := cfg.Postgres()
		pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		b.pool = pool
		logger.Info("connected to PostgreSQL", slog.String("host", pgCfg.Host))

		if cfg.RunMigrations {
			if err := database.RunMigrations(ctx, pool, postgres.Migrations(), logger); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		if reg != nil {
			if err := database.RegisterPoolMetrics(reg, pool, "wishlist"); err != nil {
				logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
			}
		}
		qt := database.NewQueryTracer(cfg.SlowQueryThreshold, logger)
		return postgres.NewStore(pool, postgres.WithQueryTracer(qt)), nil

	case config.RemotePostgREST:
		client := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			httpclient.DefaultCircuitBreakerConfig("postgrest"),
			logger,
		)
		logger.Info("using PostgREST remote", slog.String("url", cfg.PostgRESTURL))
		return postgrest.NewStore(cfg.PostgREST(), client), nil

	default:
		logger.Warn("using in-memory remote store; wishlists are lost on restart")
		return memory.NewStore(), nil
	}
}

func (b *Backends) openGuard(ctx context.Context, cfg *config.Config, logger *slog.Logger) (guard.Guard, error) {
	if cfg.Guard != config.GuardRedis {
		return guard.NewLocal(), nil
	}

	rdb, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	b.rdb = rdb
	logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))
	return guard.NewRedis(rdb, cfg.GuardTTL, logger), nil
}

// Ping checks the remote store.
func (b *Backends) Ping(ctx context.Context) error {
	return b.Remote.Ping(ctx)
}

// PingRedis checks the guard's Redis connection; it is a no-op for the local guard.
func (b *Backends) PingRedis(ctx context.Context) error {
	if b.rdb == nil {
		return nil
	}
	return b.rdb.Ping(ctx).Err()
}

// Close releases the connections owned by the backends.
func (b *Backends) Close() {
	if b.rdb != nil {
		_ = b.rdb.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}
