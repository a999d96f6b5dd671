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
	"log/slog"
	"net/http"

	"github.com/turisb2b/marketplace/internal/authz"
	"github.com/turisb2b/marketplace/internal/observability/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PolicyResponse describes the active authorization tables
type PolicyResponse struct {
	Source      string         `json:"source"`
	Strict      bool           `json:"strict_permissions"`
	Permissions map[string]int `json:"permissions"`
	Roles       map[string]int `json:"roles"`
}

func toPolicyResponse(source string, p *authz.Policy) PolicyResponse {
	return PolicyResponse{
		Source:      source,
		Strict:      p.Strict(),
		Permissions: p.Permissions(),
		Roles:       p.Roles(),
	}
}

// GetPolicy returns the active permission and role tables
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, toPolicyResponse(h.policySource, h.decider.Policy()))
}

// ReloadPolicy reloads the tables from the configured source
func (h *Handler) ReloadPolicy(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		respondError(w, http.StatusNotImplemented, "policy reload not configured")
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "authz.policy.reload",
		trace.WithAttributes(attribute.String("authz.policy.source", h.policySource)),
	)
	defer span.End()

	p, err := h.reloader.Reload(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reload failed")
		slog.ErrorContext(ctx, "policy reload failed",
			logger.Error(err),
			logger.PolicySource(h.policySource),
			logger.UserID(GetUserID(ctx)),
		)
		respondError(w, http.StatusBadGateway, "policy reload failed")
		return
	}
	span.SetAttributes(
		attribute.Int("authz.policy.permissions", len(p.Permissions())),
		attribute.Int("authz.policy.roles", len(p.Roles())),
	)

	respondJSON(w, http.StatusOK, toPolicyResponse(h.policySource, p))
}
