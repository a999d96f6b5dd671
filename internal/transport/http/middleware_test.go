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
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turisb2b/marketplace/internal/audit"
	"github.com/turisb2b/marketplace/internal/authz"
	"github.com/turisb2b/marketplace/internal/jobs"
	"github.com/turisb2b/marketplace/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// =============================================================================
// AUTHORIZATION GUARD TESTS
// Category: Access Control - Route Requirements
// Type: Unit Test (UT)
// =============================================================================

// TestPurpose: Validates that guarded routes reject anonymous callers with 401 and a bearer challenge.
// Scope: Unit Test
// Security: Authentication enforcement (CWE-306)
// Expected: 401 with WWW-Authenticate for every guarded route when no token is presented.
// Test Case ID: GRD-01
func TestGuard_Anonymous_ReturnsUnauthorized(t *testing.T) {
	s := newTestServer(t, nil)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/jobs"},
		{http.MethodPost, "/api/v1/jobs"},
		{http.MethodGet, "/api/v1/jobs/any"},
		{http.MethodDelete, "/api/v1/jobs/any"},
		{http.MethodGet, "/api/v1/admin/policy"},
		{http.MethodPost, "/api/v1/admin/policy/reload"},
		{http.MethodGet, "/api/v1/auth/me"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := s.do(t, rt.method, rt.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")
		})
	}
}

// TestPurpose: Validates that a malformed or forged bearer credential is rejected before authorization.
// Scope: Unit Test
// Security: Bearer credential verification (CWE-287)
// Expected: 401 and a token_rejected audit event.
// Test Case ID: GRD-02
func TestGuard_InvalidToken_ReturnsUnauthorized(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/v1/jobs", "forged.token.value", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, s.audit.ofType(audit.TypeTokenRejected))
}

func TestGuard_NonBearerScheme_ReturnsUnauthorized(t *testing.T) {
	s := newTestServer(t, nil)

	next := s.handler.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()
	next.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// TestPurpose: Validates the permission conjunction at the route level using the marketplace levels.
// Scope: Unit Test
// Security: RBAC enforcement on job operations
// Expected: Level 1 may read and write jobs but not delete them; level 2 may delete.
// Test Case ID: GRD-03
func TestGuard_JobPermissions(t *testing.T) {
	s := newTestServer(t, nil)
	userToken := s.tokenFor(t, "user-1", authz.LevelUser)
	modToken := s.tokenFor(t, "mod-1", authz.LevelModerator)

	w := s.do(t, http.MethodPost, "/api/v1/jobs", userToken, jobs.Input{Title: "Passeio de buggy", PriceCents: 25000})
	require.Equal(t, http.StatusCreated, w.Code)
	var created JobResponse
	decodeJSON(t, w, &created)
	assert.Equal(t, "user-1", created.CreatedBy)

	w = s.do(t, http.MethodGet, "/api/v1/jobs/"+created.ID, userToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/jobs/"+created.ID, userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/jobs/"+created.ID, modToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/jobs/"+created.ID, userToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestPurpose: Validates that a level-0 principal is authenticated but holds no permissions.
// Scope: Unit Test
// Security: Least privilege for zero-level tokens
// Expected: 403 (not 401) on read:jobs; /auth/me would still authenticate.
// Test Case ID: GRD-04
func TestGuard_LevelZero_ReturnsForbidden(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(t, http.MethodGet, "/api/v1/jobs", s.tokenFor(t, "anon-1", 0), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// TestPurpose: Validates that denial responses never disclose requirement names or the caller's level.
// Scope: Unit Test
// Security: Information disclosure (CWE-209)
// Expected: Body is the generic "forbidden"; the unmet permission is recorded in the access_denied audit event only.
// Test Case ID: GRD-05
func TestGuard_Denial_DoesNotLeakDetails(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(t, http.MethodDelete, "/api/v1/jobs/job-1", s.tokenFor(t, "user-1", authz.LevelUser), nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	msg := decodeError(t, w)
	assert.Equal(t, "forbidden", msg)
	assert.NotContains(t, w.Body.String(), authz.PermDeleteJobs)
	assert.NotContains(t, w.Body.String(), "level")

	denied := s.audit.ofType(audit.TypeAccessDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, "user-1", denied[0].ActorID)
	assert.Equal(t, []string{authz.PermDeleteJobs}, denied[0].Metadata[audit.AttrMissing])
	assert.Equal(t, "jobs.delete", denied[0].Metadata[audit.AttrOperation])
}

// TestPurpose: Validates the admin scope (role admin) and its reload override (super_admin + manage:policy).
// Scope: Unit Test
// Security: Privileged operation protection
// Expected: Level 2 cannot view the policy; level 3 can view but not reload; level 4 can reload.
// Test Case ID: GRD-06
func TestGuard_AdminScopeOverride(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/v1/admin/policy", s.tokenFor(t, "mod", authz.LevelModerator), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	adminToken := s.tokenFor(t, "admin", authz.LevelAdmin)
	w = s.do(t, http.MethodGet, "/api/v1/admin/policy", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view PolicyResponse
	decodeJSON(t, w, &view)
	assert.Equal(t, "static", view.Source)
	assert.Equal(t, authz.LevelSuperAdmin, view.Roles[authz.RoleSuperAdmin])

	w = s.do(t, http.MethodPost, "/api/v1/admin/policy/reload", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	denied := s.audit.ofType(audit.TypeAccessDenied)
	require.NotEmpty(t, denied)
	assert.Equal(t, []string{authz.RoleSuperAdmin}, denied[len(denied)-1].Metadata[audit.AttrRequired])

	w = s.do(t, http.MethodPost, "/api/v1/admin/policy/reload", s.tokenFor(t, "root", authz.LevelSuperAdmin), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

type failingLoader struct{}

func (failingLoader) Load(context.Context, ...authz.PolicyOption) (*authz.Policy, error) {
	return nil, errors.New("database unavailable")
}

// TestPurpose: Validates that a failed reload surfaces an error and keeps serving the previous tables.
// Scope: Unit Test
// Security: Fail-safe policy reload
// Expected: 502 from the reload endpoint; subsequent decisions still use the active policy.
// Test Case ID: GRD-07
func TestGuard_ReloadFailure_KeepsPolicy(t *testing.T) {
	s := newTestServer(t, failingLoader{})
	before := s.decider.Policy()

	w := s.do(t, http.MethodPost, "/api/v1/admin/policy/reload", s.tokenFor(t, "root", authz.LevelSuperAdmin), nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Same(t, before, s.decider.Policy())

	w = s.do(t, http.MethodGet, "/api/v1/jobs", s.tokenFor(t, "user", authz.LevelUser), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestPurpose: Validates that policy reloads are traced with their source and outcome.
// Scope: Unit Test
// Expected: One "authz.policy.reload" span per request; a failed reload ends with an error status.
// Test Case ID: GRD-07B
func TestReloadPolicy_Span(t *testing.T) {
	for _, tt := range []struct {
		name   string
		loader authz.PolicyLoader
		status codes.Code
	}{
		{"success", nil, codes.Unset},
		{"failure", failingLoader{}, codes.Error},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.loader)
			recorder := tracetest.NewSpanRecorder()
			s.handler.tracer = tracing.NewWithProvider(
				sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)), "test")

			s.do(t, http.MethodPost, "/api/v1/admin/policy/reload", s.tokenFor(t, "root", authz.LevelSuperAdmin), nil)

			var reload []sdktrace.ReadOnlySpan
			for _, span := range recorder.Ended() {
				if span.Name() == "authz.policy.reload" {
					reload = append(reload, span)
				}
			}
			require.Len(t, reload, 1)
			assert.Equal(t, tt.status, reload[0].Status().Code)
			assert.Contains(t, reload[0].Attributes(), attribute.String("authz.policy.source", "static"))
		})
	}
}

// TestPurpose: Validates that a swapped policy takes effect on the next request.
// Scope: Unit Test
// Security: Policy changes apply without restart
// Expected: Raising read:jobs to level 3 denies a level-1 caller that was previously allowed.
// Test Case ID: GRD-08
func TestGuard_PolicySwap_AppliesImmediately(t *testing.T) {
	s := newTestServer(t, nil)
	userToken := s.tokenFor(t, "user", authz.LevelUser)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/jobs", userToken, nil).Code)

	perms := authz.DefaultPolicy().Permissions()
	perms[authz.PermReadJobs] = authz.LevelAdmin
	p, err := authz.NewPolicy(perms, authz.DefaultRoleLevels)
	require.NoError(t, err)
	s.decider.Swap(p)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/v1/jobs", userToken, nil).Code)
}

// TestPurpose: Validates that every decision is counted by operation and result.
// Scope: Unit Test
// Expected: authz.decisions carries allow, forbidden and unauthenticated data points for jobs.list.
// Test Case ID: GRD-09
func TestGuard_RecordsDecisionMetrics(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodGet, "/api/v1/jobs", "", nil)
	s.do(t, http.MethodGet, "/api/v1/jobs", s.tokenFor(t, "zero", 0), nil)
	s.do(t, http.MethodGet, "/api/v1/jobs", s.tokenFor(t, "user", authz.LevelUser), nil)

	var rm metricdata.ResourceMetrics
	require.NoError(t, s.reader.Collect(context.Background(), &rm))

	results := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "authz.decisions" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				op, _ := dp.Attributes.Value(attribute.Key("operation"))
				res, _ := dp.Attributes.Value(attribute.Key("result"))
				if op.AsString() == "jobs.list" {
					results[res.AsString()] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, map[string]int64{"allow": 1, "forbidden": 1, "unauthenticated": 1}, results)
}

// TestPurpose: Validates that every declared route requirement names only known permissions and roles.
// Scope: Unit Test
// Security: Guards against typos silently failing open
// Expected: No unknown permission or role in RouteRequirements against the default policy.
// Test Case ID: GRD-10
func TestRouteRequirements_AreKnown(t *testing.T) {
	p := authz.DefaultPolicy()
	for op, req := range RouteRequirements() {
		assert.Empty(t, p.Unknown(req.Permissions), "operation %s names unknown permissions", op)
		assert.Empty(t, p.UnknownRoles(req.Roles), "operation %s names unknown roles", op)
		assert.False(t, req.IsZero(), "operation %s has no requirement", op)
	}
	assert.Equal(t, []string{authz.RoleSuperAdmin}, RouteRequirements()["policy.reload"].Roles)
	assert.True(t, strings.HasPrefix(RouteRequirements()["policy.reload"].Permissions[0], "manage:"))
}
