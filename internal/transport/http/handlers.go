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

package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/turisb2b/marketplace/internal/audit"
	"github.com/turisb2b/marketplace/internal/authz"
	"github.com/turisb2b/marketplace/internal/identity"
	"github.com/turisb2b/marketplace/internal/jobs"
	"github.com/turisb2b/marketplace/internal/observability/logger"
	"github.com/turisb2b/marketplace/internal/observability/metrics"
	"github.com/turisb2b/marketplace/internal/observability/tracing"
	"github.com/turisb2b/marketplace/internal/token"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace/noop"
)

// Per-operation requirements. Admin operations start from adminScope and
// override it where an operation needs more.
var (
	reqReadJobs   = authz.Requirement{Permissions: []string{authz.PermReadJobs}}
	reqWriteJobs  = authz.Requirement{Permissions: []string{authz.PermWriteJobs}}
	reqDeleteJobs = authz.Requirement{Permissions: []string{authz.PermDeleteJobs}}

	adminScope      = authz.Requirement{Roles: []string{authz.RoleAdmin}}
	reqViewPolicy   = adminScope
	reqReloadPolicy = adminScope.Override(authz.Requirement{
		Roles:       []string{authz.RoleSuperAdmin},
		Permissions: []string{authz.PermManagePolicy},
	})
)

// RouteRequirements lists the requirement declared for every guarded operation.
func RouteRequirements() map[string]authz.Requirement {
	return map[string]authz.Requirement{
		"jobs.list":     reqReadJobs,
		"jobs.get":      reqReadJobs,
		"jobs.create":   reqWriteJobs,
		"jobs.update":   reqWriteJobs,
		"jobs.delete":   reqDeleteJobs,
		"policy.view":   reqViewPolicy,
		"policy.reload": reqReloadPolicy,
	}
}

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	tokenService    *token.Service
	jobService      *jobs.Service
	decider         *authz.Decider
	reloader        *authz.Reloader
	auditLogger     audit.Logger
	authzMetrics    *metrics.AuthzMetrics
	tracer          *tracing.Tracer
	policySource    string
	store           Pinger
	validate        *validator.Validate
}

// NewHandler creates a new HTTP handler. authzMetrics and store may be nil; a
// nil tracer is replaced by a no-op one.
func NewHandler(
	identityService *identity.Service,
	tokenService *token.Service,
	jobService *jobs.Service,
	decider *authz.Decider,
	reloader *authz.Reloader,
	auditLogger audit.Logger,
	authzMetrics *metrics.AuthzMetrics,
	tracer *tracing.Tracer,
	policySource string,
	store Pinger,
) *Handler {
	if tracer == nil {
		tracer = tracing.NewWithProvider(noop.NewTracerProvider(), "turisb2b")
	}
	return &Handler{
		identityService: identityService,
		tokenService:    tokenService,
		jobService:      jobService,
		decider:         decider,
		reloader:        reloader,
		auditLogger:     auditLogger,
		authzMetrics:    authzMetrics,
		tracer:          tracer,
		policySource:    policySource,
		store:           store,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RouterConfig holds router-level settings
type RouterConfig struct {
	RequestTimeout time.Duration
	// TrustProxy takes the client address from X-Forwarded-For or X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter, cfg RouterConfig) *chi.Mux {
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)

			r.Get("/auth/me", h.GetCurrentUser)

			r.Route("/jobs", func(r chi.Router) {
				r.With(h.Require("jobs.list", reqReadJobs)).Get("/", h.ListJobs)
				r.With(h.Require("jobs.create", reqWriteJobs)).Post("/", h.CreateJob)
				r.With(h.Require("jobs.get", reqReadJobs)).Get("/{jobID}", h.GetJob)
				r.With(h.Require("jobs.update", reqWriteJobs)).Put("/{jobID}", h.UpdateJob)
				r.With(h.Require("jobs.delete", reqDeleteJobs)).Delete("/{jobID}", h.DeleteJob)
			})

			r.Route("/admin", func(r chi.Router) {
				r.With(h.Require("policy.view", reqViewPolicy)).Get("/policy", h.GetPolicy)
				r.With(h.Require("policy.reload", reqReloadPolicy)).Post("/policy/reload", h.ReloadPolicy)
			})
		})
	})

	return r
}

const healthCheckTimeout = 2 * time.Second

// HealthCheck returns the health status. With a store configured it also
// reports 503 when the database is unreachable.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			slog.WarnContext(r.Context(), "health check failed", logger.Component("database"), logger.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unhealthy",
				"service":  "turisb2b",
				"database": "unreachable",
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "turisb2b",
	})
}

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		slog.DebugContext(r.Context(), "request validation failed", logger.Error(err))
		respondError(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
