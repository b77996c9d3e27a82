package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
	"github.com/safar/go-price-resolver/internal/config"
	"github.com/safar/go-price-resolver/internal/logger"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "migrate", Format: "console"})

	if len(os.Args) < 2 {
		logg.Error(ctx, "usage: go run scripts/run_migrations.go [up|down]", nil)
		os.Exit(2)
	}

	direction := os.Args[1]
	if direction != "up" && direction != "down" {
		logg.Error(ctx, "direction must be 'up' or 'down'", nil)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "load config", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logg.Error(ctx, "connect to database", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logg.Error(ctx, "ping database", err)
		os.Exit(1)
	}

	migrationDir := "migrations"
	files, err := os.ReadDir(migrationDir)
	if err != nil {
		logg.Error(ctx, "read migration directory", err)
		os.Exit(1)
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), fmt.Sprintf(".%s.sql", direction)) {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)
	if direction == "down" {
		for i, j := 0, len(migrationFiles)-1; i < j; i, j = i+1, j-1 {
			migrationFiles[i], migrationFiles[j] = migrationFiles[j], migrationFiles[i]
		}
	}

	for _, filename := range migrationFiles {
		fileCtx := logg.WithField(ctx, "file", filename)
		content, err := os.ReadFile(filepath.Join(migrationDir, filename))
		if err != nil {
			logg.Error(fileCtx, "read migration file", err)
			os.Exit(1)
		}

		logg.Info(fileCtx, "running migration")
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			logg.Error(fileCtx, "execute migration", err)
			os.Exit(1)
		}
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"count":     len(migrationFiles),
		"direction": direction,
	}), "migrations complete")
}
