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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/turisb2b/marketplace/internal/audit"
	"github.com/turisb2b/marketplace/internal/authz"
	"github.com/turisb2b/marketplace/internal/identity"
	"github.com/turisb2b/marketplace/internal/jobs"
	"github.com/turisb2b/marketplace/internal/observability/metrics"
	"github.com/turisb2b/marketplace/internal/token"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// memUserRepo is an in-memory identity.UserRepository
type memUserRepo struct {
	mu          sync.Mutex
	users       map[string]*identity.User
	credentials map[string]*identity.Credentials
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		users:       make(map[string]*identity.User),
		credentials: make(map[string]*identity.Credentials),
	}
}

func (m *memUserRepo) Create(_ context.Context, u *identity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *memUserRepo) AddCredentials(_ context.Context, c *identity.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentials[c.UserID] = c
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, identity.ErrUserNotFound
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (m *memUserRepo) UpdateLockout(_ context.Context, id string, attempts int, until *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.FailedLoginAttempts = attempts
		u.LockedUntil = until
	}
	return nil
}

func (m *memUserRepo) UpdateAccessLevel(_ context.Context, id string, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.AccessLevel = level
	return nil
}

func (m *memUserRepo) GetCredentials(_ context.Context, id string) (*identity.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.credentials[id]; ok {
		return c, nil
	}
	return nil, identity.ErrUserNotFound
}

// memJobRepo is an in-memory jobs.Repository. Like the jobs.id UUID column,
// it fails with a storage error on IDs that are not UUIDs.
type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*jobs.Job
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[string]*jobs.Job)}
}

func (m *memJobRepo) List(_ context.Context, search string, limit, offset int) ([]*jobs.Job, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	needle := strings.ToLower(search)
	var matched []*jobs.Job
	for _, j := range m.jobs {
		if strings.Contains(strings.ToLower(j.Title), needle) || strings.Contains(strings.ToLower(j.Description), needle) {
			matched = append(matched, j)
		}
	}
	sort.Slice(matched, func(a, b int) bool { return matched[a].ID > matched[b].ID })
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	return matched[offset:min(offset+limit, total)], total, nil
}

func checkUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid input syntax for type uuid: %q", id)
	}
	return nil
}

func (m *memJobRepo) GetByID(_ context.Context, id string) (*jobs.Job, error) {
	if err := checkUUID(id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		return j, nil
	}
	return nil, jobs.ErrJobNotFound
}

func (m *memJobRepo) Create(_ context.Context, j *jobs.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = j
	return nil
}

func (m *memJobRepo) Update(_ context.Context, j *jobs.Job) error {
	if err := checkUUID(j.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[j.ID]; !ok {
		return jobs.ErrJobNotFound
	}
	m.jobs[j.ID] = j
	return nil
}

func (m *memJobRepo) Delete(_ context.Context, id string) error {
	if err := checkUUID(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return jobs.ErrJobNotFound
	}
	delete(m.jobs, id)
	return nil
}

// recordingAudit keeps audit events for assertions
type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Log(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAudit) ofType(eventType string) []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// testServer bundles a fully wired router over in-memory storage
type testServer struct {
	router  *chi.Mux
	handler *Handler
	tokens  *token.Service
	users   *memUserRepo
	jobs    *memJobRepo
	audit   *recordingAudit
	decider *authz.Decider
	reader  *sdkmetric.ManualReader
}

func newTestServer(t *testing.T, loader authz.PolicyLoader) *testServer {
	t.Helper()

	auditLog := &recordingAudit{}
	users := newMemUserRepo()
	jobRepo := newMemJobRepo()

	tokens, err := token.NewService(testSecret, "turisb2b-test", time.Hour)
	require.NoError(t, err)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	authzMetrics, err := metrics.NewAuthzMetrics(metrics.NewWithMeter(provider.Meter("test")))
	require.NoError(t, err)

	decider := authz.NewDecider(nil)
	if loader == nil {
		loader = authz.StaticLoader{}
	}
	reloader := authz.NewReloader(decider, loader, nil)

	identityService := identity.NewService(users, identity.NewPasswordHasher(8*1024, 1, 1, 16, 32), auditLog, 3, time.Minute)
	jobService := jobs.NewService(jobRepo, auditLog)

	h := NewHandler(identityService, tokens, jobService, decider, reloader, auditLog, authzMetrics, nil, "static", nil)

	rl := NewRateLimiter(1000, 1000)
	t.Cleanup(rl.Stop)

	return &testServer{
		router:  NewRouter(h, rl, RouterConfig{RequestTimeout: 5 * time.Second}),
		handler: h,
		tokens:  tokens,
		users:   users,
		jobs:    jobRepo,
		audit:   auditLog,
		decider: decider,
		reader:  reader,
	}
}

// tokenFor issues a bearer token for a synthetic principal
func (s *testServer) tokenFor(t *testing.T, userID string, level int) string {
	t.Helper()
	raw, _, err := s.tokens.Issue(context.Background(), userID, level)
	require.NoError(t, err)
	return raw
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["error"]
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst))
}
