package cli

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"qsnap-gateway/internal/app"
	"qsnap-gateway/internal/config"
	"qsnap-gateway/internal/infra/memory"
	"qsnap-gateway/internal/infra/postgres"
	redisinfra "qsnap-gateway/internal/infra/redis"
	"qsnap-gateway/internal/remote"
)

// gateway holds the wired components and the connections they borrow.
type gateway struct {
	client   *remote.Client
	service  *app.WorkspaceService
	redis    *redis.Client
	registry *redisinfra.WorkspaceRegistry
	pool     *pgxpool.Pool
}

func (g *gateway) Close() {
	g.service.CloseAll()
	if g.redis != nil {
		_ = g.redis.Close()
	}
	if g.pool != nil {
		g.pool.Close()
	}
}

func pollConfig(cfg config.Config) app.PollConfig {
	def := app.DefaultPollConfig()
	return app.PollConfig{
		Interval:     config.Duration(cfg.Polling.Interval, def.Interval),
		MaxBackoff:   config.Duration(cfg.Polling.MaxBackoff, def.MaxBackoff),
		StallTimeout: config.Duration(cfg.Polling.StallTimeout, def.StallTimeout),
		Jitter:       cfg.Polling.Jitter,
	}
}

func newRemoteClient(cfg config.Config) *remote.Client {
	return remote.New(cfg.RemoteURL(), config.Duration(cfg.Remote.Timeout, 2*time.Minute))
}

// buildGateway wires the service from config. Redis and Postgres are optional;
// without them the in-memory implementations are used.
func buildGateway(ctx context.Context, cfg config.Config) (*gateway, error) {
	g := &gateway{client: newRemoteClient(cfg)}

	if cfg.Redis.Addr != "" {
		g.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			if g.redis != nil {
				_ = g.redis.Close()
			}
			return nil, err
		}
		g.pool = pool
	}

	indexTTL := config.Duration(cfg.Papers.IndexTTL, 10*time.Second)
	var index app.PaperIndex
	var registry app.WorkspaceRegistry
	if g.redis != nil {
		index = redisinfra.NewPaperIndex(g.redis, g.client, indexTTL)
		g.registry = redisinfra.NewWorkspaceRegistry(g.redis, config.Duration(cfg.Redis.TTL, 10*time.Minute))
		registry = g.registry
	} else {
		index = memory.NewPaperIndex(g.client, indexTTL)
		registry = memory.NewWorkspaceRegistry()
	}

	var journal app.SolveJournal
	if g.pool != nil {
		journal = postgres.NewSolveJournal(g.pool)
	} else {
		size := cfg.Papers.JournalSize
		if size <= 0 {
			size = 500
		}
		journal = memory.NewSolveJournal(size)
	}

	g.service = app.NewWorkspaceService(g.client, index, registry, journal, pollConfig(cfg))
	log.Printf("remote backend %s (redis=%t postgres=%t)", g.client.BaseURL(), g.redis != nil, g.pool != nil)
	return g, nil
}
