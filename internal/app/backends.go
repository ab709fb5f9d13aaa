// Package app assembles the configured directory, cache and broker backends.
package app

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tamias-pos/customer-display/internal/display"
	"github.com/tamias-pos/customer-display/internal/router"
	"github.com/tamias-pos/customer-display/pkg/config"
	"github.com/tamias-pos/customer-display/pkg/mongo"
	"github.com/tamias-pos/customer-display/pkg/postgres"
	"github.com/tamias-pos/customer-display/pkg/redis"
	"github.com/tamias-pos/customer-display/pkg/supabase"
)

// Publisher sends a broadcast to a cashier channel, as the terminal does.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

type Backends struct {
	Directory display.Directory
	Broker    display.Broker
	Publisher Publisher
	Checks    map[string]router.Pinger
	// Presence and Cache are nil when the broker keeps no presence hash or
	// the directory cache is off.
	Presence router.PresenceReader
	Cache    router.CacheInvalidator

	closers []func() error
	log     *zap.Logger
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Open connects every backend cfg selects. On error, whatever was already
// opened is closed again.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (_ *Backends, err error) {
	b := &Backends{
		Checks: make(map[string]router.Pinger),
		log:    log,
	}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	var rest *supabase.Client
	if cfg.DirectoryBackend == config.BackendSupabase || cfg.BrokerBackend == config.BackendSupabase {
		rest = supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, log)
	}

	if err := b.openDirectory(ctx, cfg, rest); err != nil {
		return nil, err
	}

	var client *goredis.Client
	if cfg.UsesRedis() {
		client = redis.NewClient(cfg)
		b.closers = append(b.closers, client.Close)
		if err := redis.Ping(ctx, client); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		b.Checks["redis"] = pingFunc(func(ctx context.Context) error { return redis.Ping(ctx, client) })
		log.Info("connected to redis", zap.String("address", cfg.RedisAddress))
	}

	if cfg.CacheTTL > 0 {
		cache := redis.NewCachedDirectory(b.Directory, client, cfg.CacheTTL, log)
		b.Directory = cache
		b.Cache = cache
	}

	switch cfg.BrokerBackend {
	case config.BackendRedis:
		broker := redis.NewBroker(client, cfg.PresenceTTL, log)
		b.Broker = broker
		b.Publisher = broker
		b.Presence = broker
		b.Checks["broker"] = broker
	case config.BackendSupabase:
		b.Broker = supabase.NewRealtimeBroker(cfg.SupabaseURL, cfg.SupabaseAnonKey, log)
		b.Publisher = rest
		b.Checks["broker"] = rest
	default:
		return nil, fmt.Errorf("unknown broker backend %q", cfg.BrokerBackend)
	}

	log.Info("backends ready",
		zap.String("directory", cfg.DirectoryBackend),
		zap.String("broker", cfg.BrokerBackend),
		zap.Duration("cache_ttl", cfg.CacheTTL))
	return b, nil
}

func (b *Backends) openDirectory(ctx context.Context, cfg config.Config, rest *supabase.Client) error {
	switch cfg.DirectoryBackend {
	case config.BackendMongo:
		client, err := mongo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() error { return client.Disconnect(context.Background()) })

		dir := mongo.NewDirectory(client, cfg.MongoDatabase, b.log)
		if err := dir.EnsureIndexes(ctx); err != nil {
			return err
		}
		b.Directory = dir
		b.Checks["directory"] = dir
		b.log.Info("connected to MongoDB", zap.String("database", cfg.MongoDatabase))

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, db.Close)

		if cfg.PostgresMigrate {
			if err := postgres.Migrate(db, b.log); err != nil {
				return err
			}
		}
		dir := postgres.NewDirectory(db)
		b.Directory = dir
		b.Checks["directory"] = dir
		b.log.Info("connected to Postgres")

	case config.BackendSupabase:
		b.Directory = rest
		b.Checks["directory"] = rest

	default:
		return fmt.Errorf("unknown directory backend %q", cfg.DirectoryBackend)
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	if err := errors.Join(errs...); err != nil {
		b.log.Warn("closing backends", zap.Error(err))
		return err
	}
	return nil
}
