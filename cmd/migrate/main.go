package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/turisb2b/marketplace/internal/authz"
	"github.com/turisb2b/marketplace/internal/config"
	"github.com/turisb2b/marketplace/internal/observability/logger"
	"github.com/turisb2b/marketplace/internal/store/postgres"
)

func main() {
	down := flag.Bool("down", false, "drop all tables instead of applying the schema")
	resetPolicy := flag.Bool("reset-policy", false, "overwrite the permission and role level tables with the built-in defaults")
	flag.Parse()

	if *down && *resetPolicy {
		fmt.Fprintln(os.Stderr, "-down and -reset-policy cannot be combined")
		os.Exit(2)
	}

	logger.InitLogger(logger.Config{Level: "info", Format: "text", ServiceName: "turisb2b-migrate"})

	// Only the DB_* variables are needed here.
	var dbCfg config.DatabaseConfig
	if err := envconfig.Process("", &dbCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read environment: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := postgres.New(ctx, postgres.Config{
		Host:         dbCfg.Host,
		Port:         dbCfg.Port,
		User:         dbCfg.User,
		Password:     dbCfg.Password,
		Database:     dbCfg.Database,
		SSLMode:      dbCfg.SSLMode,
		MaxOpenConns: 1,
	})
	if err != nil {
		slog.Error("failed to connect", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	script, name := postgres.InitialSchema, "001_initial_schema.up.sql"
	if *down {
		script, name = postgres.DropSchema, "001_initial_schema.down.sql"
	}

	slog.Info("running migration", logger.String("file", name))
	if err := db.Migrate(ctx, script); err != nil {
		slog.Error("migration failed", logger.String("file", name), logger.Error(err))
		os.Exit(1)
	}
	slog.Info("migration completed", logger.String("file", name))

	if *resetPolicy {
		p := authz.DefaultPolicy()
		if err := postgres.NewPolicyRepository(db).Save(ctx, p); err != nil {
			slog.Error("failed to reset policy tables", logger.Error(err))
			os.Exit(1)
		}
		slog.Info("policy tables reset",
			slog.Int("permissions", len(p.Permissions())),
			slog.Int("roles", len(p.Roles())),
		)
	}
}
