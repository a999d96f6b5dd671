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
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/turisb2b/marketplace/internal/audit"
	"github.com/turisb2b/marketplace/internal/authz"
	"github.com/turisb2b/marketplace/internal/observability/logger"
	"github.com/turisb2b/marketplace/internal/observability/metrics"
	"github.com/turisb2b/marketplace/internal/observability/tracing"
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				attrs := []any{
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				}
				if ww.Status() >= http.StatusInternalServerError {
					slog.ErrorContext(r.Context(), "http_request", attrs...)
					return
				}
				slog.InfoContext(r.Context(), "http_request", attrs...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// Authenticate resolves the bearer token into a principal.
// Requests without an Authorization header continue anonymously; a present
// but invalid credential is rejected.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		scheme, raw, ok := strings.Cut(header, " ")
		raw = strings.TrimSpace(raw)
		if !ok || !strings.EqualFold(scheme, "Bearer") || raw == "" {
			unauthorized(w, "invalid authorization header")
			return
		}

		principal, err := h.tokenService.Verify(r.Context(), raw)
		if err != nil {
			h.auditLogger.Log(r.Context(), audit.Event{
				Type:      audit.TypeTokenRejected,
				Resource:  r.URL.Path,
				IPAddress: getClientIP(r),
				UserAgent: r.UserAgent(),
				Metadata:  map[string]any{audit.AttrReason: err.Error()},
			})
			unauthorized(w, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// Require guards an operation with req. Unauthenticated callers get 401,
// insufficient ones get 403 with a generic message.
func (h *Handler) Require(operation string, req authz.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFrom(r.Context())

			ctx, span := h.tracer.StartDecision(r.Context(), operation, req.Roles, req.Permissions)
			start := time.Now()
			err := h.decider.Authorize(principal, req)
			h.authzMetrics.RecordDecisionDuration(ctx, operation, time.Since(start))
			result := decisionResult(err)
			tracing.EndDecision(span, result, err)
			h.authzMetrics.RecordDecision(ctx, operation, result)

			if err == nil {
				next.ServeHTTP(w, r)
				return
			}
			if !authz.IsDenied(err) {
				slog.ErrorContext(ctx, "authorization failed", logger.Operation(operation), logger.Error(err))
				respondError(w, http.StatusInternalServerError, "internal error")
				return
			}

			attrs := []any{
				logger.Operation(operation),
				logger.Decision(result),
				logger.Roles(req.Roles),
				logger.Permissions(req.Permissions),
			}
			if principal != nil {
				attrs = append(attrs, logger.UserID(principal.ID))
			}
			slog.WarnContext(ctx, "access denied", append(attrs, logger.Error(err))...)

			event := audit.Event{
				Type:      audit.TypeAccessDenied,
				Resource:  operation,
				IPAddress: getClientIP(r),
				UserAgent: r.UserAgent(),
				Metadata: map[string]any{
					audit.AttrOperation: operation,
					audit.AttrReason:    result,
				},
			}
			if principal != nil {
				event.ActorID = principal.ID
			}
			var permErr *authz.PermissionError
			var roleErr *authz.RoleError
			switch {
			case errors.As(err, &permErr):
				event.Metadata[audit.AttrMissing] = permErr.Missing
			case errors.As(err, &roleErr):
				event.Metadata[audit.AttrRequired] = roleErr.Required
			}
			h.auditLogger.Log(ctx, event)

			if errors.Is(err, authz.ErrUnauthenticated) {
				unauthorized(w, "authentication required")
				return
			}
			respondError(w, http.StatusForbidden, "forbidden")
		})
	}
}

func decisionResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultAllow
	case errors.Is(err, authz.ErrUnauthenticated):
		return metrics.ResultUnauthenticated
	case !authz.IsDenied(err):
		return metrics.ResultError
	default:
		return metrics.ResultForbidden
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="turisb2b"`)
	respondError(w, http.StatusUnauthorized, message)
}
