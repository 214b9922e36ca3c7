package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"slackhooks/config"
	"slackhooks/core/log"
	"slackhooks/services"
)

var (
	_ services.InstallationStore = (*MemoryInstallationsStore)(nil)
	_ services.InstallationStore = (*PostgresInstallationsRepository)(nil)
	_ services.StateConsumer     = (*MemoryOAuthStatesStore)(nil)
	_ services.StateConsumer     = (*PostgresOAuthStatesRepository)(nil)
	_ services.StateConsumer     = (*RedisOAuthStatesStore)(nil)
)

// Stores holds the backends selected by configuration
type Stores struct {
	Installations services.InstallationStore
	States        services.StateStore

	postgres *sqlx.DB
	redis    *redis.Client
}

// OpenStores connects the configured backends and makes sure the Postgres schema exists
func OpenStores(ctx context.Context, cfg config.StoreConfig) (*Stores, error) {
	stores := &Stores{}

	if cfg.NeedsPostgres() {
		conn, err := NewConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		stores.postgres = conn
		if err := EnsureSchema(ctx, conn, cfg.DatabaseSchema); err != nil {
			stores.Close()
			return nil, err
		}
		log.Info("✅ Connected to Postgres (schema %s)", cfg.DatabaseSchema)
	}

	if cfg.StateBackend == config.BackendRedis {
		client, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			stores.Close()
			return nil, err
		}
		stores.redis = client
		log.Info("✅ Connected to Redis")
	}

	switch cfg.InstallationBackend {
	case config.BackendPostgres:
		stores.Installations = NewPostgresInstallationsRepository(stores.postgres, cfg.DatabaseSchema)
	case config.BackendMemory:
		stores.Installations = NewMemoryInstallationsStore()
	default:
		stores.Close()
		return nil, fmt.Errorf("unsupported installation backend %q", cfg.InstallationBackend)
	}

	switch cfg.StateBackend {
	case config.BackendPostgres:
		stores.States = NewPostgresOAuthStatesRepository(stores.postgres, cfg.DatabaseSchema)
	case config.BackendRedis:
		stores.States = NewRedisOAuthStatesStore(stores.redis)
	case config.BackendMemory:
		stores.States = NewMemoryOAuthStatesStore()
	default:
		stores.Close()
		return nil, fmt.Errorf("unsupported state backend %q", cfg.StateBackend)
	}

	log.Info("📋 Installation store: %s, state store: %s", cfg.InstallationBackend, cfg.StateBackend)
	return stores, nil
}

// Close releases any open connections
func (s *Stores) Close() {
	if s.postgres != nil {
		if err := s.postgres.Close(); err != nil {
			log.Error("❌ Failed to close Postgres connection: %v", err)
		}
		s.postgres = nil
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Error("❌ Failed to close Redis connection: %v", err)
		}
		s.redis = nil
	}
}
