// Package main applies the SQL migrations in db/migrations.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/archon-research/emissions-api/db/migrator"
	"github.com/archon-research/emissions-api/internal/adapters/outbound/postgres"
	"github.com/archon-research/emissions-api/internal/pkg/env"
)

func main() {
	dir := flag.String("dir", "./db/migrations", "Directory holding *.sql migrations")
	list := flag.Bool("list", false, "List applied migrations after applying")
	flag.Parse()

	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: env.ParseLogLevel(slog.LevelInfo),
	}))
	slog.SetDefault(logger)

	dbURL := env.Get("DATABASE_URL", "")
	if dbURL == "" {
		logger.Error("required environment variable not set", "key", "DATABASE_URL")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.OpenPool(ctx, postgres.DefaultDBConfig(dbURL))
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	m := migrator.New(pool, *dir).WithLogger(logger)
	if err := m.ApplyAll(ctx); err != nil {
		logger.Error("migration failed", "error", err)
		pool.Close()
		os.Exit(1)
	}

	if *list {
		applied, err := m.ListApplied(ctx)
		if err != nil {
			logger.Error("failed to list migrations", "error", err)
			pool.Close()
			os.Exit(1)
		}
		for _, name := range applied {
			logger.Info("applied", "file", name)
		}
	}

	logger.Info("all migrations up to date")
}
