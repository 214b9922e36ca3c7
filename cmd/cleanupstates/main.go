package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"slackhooks/config"
	"slackhooks/core/log"
	"slackhooks/db"
	"slackhooks/services/oauthstate"
)

type Options struct {
	Backend        string        `long:"backend" env:"STATE_STORE_BACKEND" default:"postgres" choice:"postgres" choice:"redis" description:"Where OAuth states are stored"`
	DatabaseURL    string        `long:"db-url" env:"DB_URL" description:"Postgres connection string"`
	DatabaseSchema string        `long:"db-schema" env:"DB_SCHEMA" default:"public" description:"Postgres schema"`
	RedisURL       string        `long:"redis-url" env:"REDIS_URL" description:"Redis connection string"`
	Timeout        time.Duration `long:"timeout" default:"1m" description:"Give up after this long"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn("⚠️ .env file not found, using system environment variables")
	}

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		log.Error("❌ Cleanup failed: %v", err)
		os.Exit(1)
	}
}

func run(opts Options) error {
	log.Info("🧹 Starting expired OAuth state cleanup (%s)", opts.Backend)

	storeConfig := config.StoreConfig{
		InstallationBackend: config.BackendMemory,
		StateBackend:        opts.Backend,
		DatabaseURL:         opts.DatabaseURL,
		DatabaseSchema:      opts.DatabaseSchema,
		RedisURL:            opts.RedisURL,
	}
	if err := storeConfig.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	stores, err := db.OpenStores(ctx, storeConfig)
	if err != nil {
		return err
	}
	defer stores.Close()

	removed, err := oauthstate.NewManager(stores.States).CleanupExpired(ctx)
	if err != nil {
		return err
	}

	log.Info("✅ Completed successfully - removed %d expired OAuth states", removed)
	return nil
}
