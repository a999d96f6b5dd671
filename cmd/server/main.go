// Copyright 2026 The turisb2b Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turisb2b/marketplace/internal/audit"
	"github.com/turisb2b/marketplace/internal/authz"
	"github.com/turisb2b/marketplace/internal/config"
	"github.com/turisb2b/marketplace/internal/identity"
	"github.com/turisb2b/marketplace/internal/jobs"
	"github.com/turisb2b/marketplace/internal/observability/logger"
	"github.com/turisb2b/marketplace/internal/observability/metrics"
	"github.com/turisb2b/marketplace/internal/observability/tracing"
	"github.com/turisb2b/marketplace/internal/store/postgres"
	"github.com/turisb2b/marketplace/internal/token"
	transportHTTP "github.com/turisb2b/marketplace/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting turisb2b marketplace api")

	if len(os.Args) > 1 {
		var cmdErr error
		switch os.Args[1] {
		case "bootstrap":
			cmdErr = runBootstrap(cfg)
		case "migrate":
			cmdErr = runMigrate(cfg)
		default:
			cmdErr = fmt.Errorf("unknown command %q", os.Args[1])
		}
		if cmdErr != nil {
			slog.Error("command failed", logger.Operation(os.Args[1]), logger.Error(cmdErr))
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := run(cfg); err != nil {
		slog.Error("server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracer.Shutdown(shutdownCtx)
	}()

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize meter: %w", err)
	}
	authzMetrics, err := metrics.NewAuthzMetrics(meter)
	if err != nil {
		return fmt.Errorf("failed to register authz metrics: %w", err)
	}

	// Initialize database
	db, err := postgres.New(ctx, dbConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	slog.Info("connected to database")

	auditLogger := audit.NewSlogLogger()

	// Authorization policy
	var loader authz.PolicyLoader = authz.StaticLoader{}
	if cfg.Authz.PolicySource == config.PolicySourceDatabase {
		loader = postgres.NewPolicyRepository(db)
	}
	decider := authz.NewDecider(nil)
	reloader := authz.NewReloader(decider, loader,
		policyObserver(auditLogger, authzMetrics, cfg.Authz.PolicySource),
		authz.WithStrictPermissions(cfg.Authz.StrictPermissions),
	)
	if _, err := reloader.Reload(ctx); err != nil {
		return err
	}
	warnUnknownRequirements(decider.Policy())
	go reloader.Run(ctx, cfg.Authz.ReloadInterval)

	// Initialize services
	tokenService, err := token.NewService(cfg.Token.Secret, cfg.Token.Issuer, cfg.Token.TTL)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}
	identityService := newIdentityService(cfg, db, auditLogger)
	jobService := jobs.NewService(postgres.NewJobRepository(db), auditLogger)

	// Run Bootstrap (ENV driven)
	if err := newBootstrapService(cfg, identityService, auditLogger).Bootstrap(ctx); err != nil {
		slog.Error("bootstrap failed", logger.Error(err))
	}

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Stop()

	handler := transportHTTP.NewHandler(
		identityService,
		tokenService,
		jobService,
		decider,
		reloader,
		auditLogger,
		authzMetrics,
		tracer,
		cfg.Authz.PolicySource,
		db,
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler: transportHTTP.NewRouter(handler, rateLimiter, transportHTTP.RouterConfig{
			RequestTimeout: cfg.Server.RequestTimeout,
			TrustProxy:     cfg.RateLimit.TrustProxy,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// policyObserver reports every reload attempt to logs, metrics and the audit trail.
func policyObserver(auditLogger audit.Logger, m *metrics.AuthzMetrics, source string) authz.ReloadObserver {
	return func(ctx context.Context, p *authz.Policy, err error) {
		m.RecordPolicyReload(ctx, err == nil)

		event := audit.Event{
			Type:     audit.TypePolicyReloaded,
			ActorID:  transportHTTP.GetUserID(ctx),
			Resource: "policy:" + source,
		}
		if err != nil {
			event.Type = audit.TypePolicyRejected
			event.Metadata = map[string]any{audit.AttrReason: err.Error()}
			slog.ErrorContext(ctx, "policy reload failed", logger.PolicySource(source), logger.Error(err))
		} else {
			event.Metadata = map[string]any{
				audit.AttrPermissions: len(p.Permissions()),
				audit.AttrRoles:       len(p.Roles()),
			}
			slog.InfoContext(ctx, "policy loaded",
				logger.PolicySource(source),
				slog.Int("permissions", len(p.Permissions())),
				slog.Int("roles", len(p.Roles())),
				slog.Bool("strict", p.Strict()),
			)
		}
		auditLogger.Log(ctx, event)
	}
}

// warnUnknownRequirements flags route requirements that name permissions or
// roles the policy does not define; those require level 0 unless strict mode
// is on.
func warnUnknownRequirements(p *authz.Policy) {
	for op, req := range transportHTTP.RouteRequirements() {
		if unknown := p.Unknown(req.Permissions); len(unknown) > 0 {
			slog.Warn("route requires unknown permissions",
				logger.Operation(op),
				logger.Permissions(unknown),
				slog.Bool("strict", p.Strict()),
			)
		}
		if unknown := p.UnknownRoles(req.Roles); len(unknown) > 0 {
			slog.Warn("route requires unknown roles",
				logger.Operation(op),
				logger.Roles(unknown),
				slog.Bool("strict", p.Strict()),
			)
		}
	}
}

func dbConfig(cfg *config.Config) postgres.Config {
	return postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
}

func newIdentityService(cfg *config.Config, db *postgres.DB, auditLogger audit.Logger) *identity.Service {
	passwordHasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)
	return identity.NewService(
		postgres.NewUserRepository(db),
		passwordHasher,
		auditLogger,
		cfg.Security.LockoutMaxAttempts,
		cfg.Security.LockoutDuration,
	)
}

func newBootstrapService(cfg *config.Config, identityService *identity.Service, auditLogger audit.Logger) *identity.BootstrapService {
	return identity.NewBootstrapService(identityService, auditLogger, identity.BootstrapConfig{
		Email:    cfg.Bootstrap.AdminEmail,
		Password: cfg.Bootstrap.AdminPassword,
		Name:     cfg.Bootstrap.AdminName,
	})
}

func runBootstrap(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, dbConfig(cfg))
	if err != nil {
		return err
	}
	defer db.Close()

	auditLogger := audit.NewSlogLogger()
	return newBootstrapService(cfg, newIdentityService(cfg, db, auditLogger), auditLogger).Bootstrap(ctx)
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, dbConfig(cfg))
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("applying initial schema")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	slog.Info("migration successful")
	return nil
}
