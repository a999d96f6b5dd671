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

//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turisb2b/marketplace/internal/authz"
	"github.com/turisb2b/marketplace/internal/identity"
	"github.com/turisb2b/marketplace/internal/jobs"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// openTestDB connects using DB_* variables, falling back to docker-compose defaults.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := New(ctx, Config{
		Host:         envOr("DB_HOST", "localhost"),
		Port:         envOr("DB_PORT", "5432"),
		User:         envOr("DB_USER", "turisb2b"),
		Password:     envOr("DB_PASSWORD", "turisb2b_dev_password"),
		Database:     envOr("DB_NAME", "turisb2b"),
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to database: %v", err)
	}
	t.Cleanup(db.Close)

	require.NoError(t, db.Ping(ctx))
	require.NoError(t, db.Migrate(ctx, InitialSchema))
	return db
}

func createTestUser(t *testing.T, db *DB, level int) *identity.User {
	t.Helper()
	ctx := context.Background()
	repo := NewUserRepository(db)

	user := &identity.User{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Email:       uuid.NewString() + "@integration.test",
		Name:        "Integration",
		AccessLevel: level,
	}
	require.NoError(t, repo.Create(ctx, user))
	t.Cleanup(func() {
		_, _ = db.pool.Exec(context.Background(), "DELETE FROM users WHERE id = $1", user.ID)
	})
	return user
}

// TestPurpose: Validates user persistence including access level, credentials and lockout fields.
// Scope: Database Integration Test
// Security: Stored access level is the source of the bearer token nivel claim
// Expected: Users round-trip by ID and email; access level updates persist; unknown IDs map to ErrUserNotFound.
// Test Case ID: DB-01
func TestUserRepository_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)

	user := createTestUser(t, db, authz.LevelUser)

	byEmail, err := repo.GetByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.Equal(t, authz.LevelUser, byEmail.AccessLevel)
	assert.Nil(t, byEmail.CorporationID)

	require.NoError(t, repo.AddCredentials(ctx, &identity.Credentials{UserID: user.ID, PasswordHash: "$argon2id$x"}))
	creds, err := repo.GetCredentials(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "$argon2id$x", creds.PasswordHash)

	until := time.Now().Add(time.Minute).UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.UpdateLockout(ctx, user.ID, 3, &until))
	require.NoError(t, repo.UpdateAccessLevel(ctx, user.ID, authz.LevelAdmin))

	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, byID.FailedLoginAttempts)
	require.NotNil(t, byID.LockedUntil)
	assert.True(t, until.Equal(*byID.LockedUntil))
	assert.Equal(t, authz.LevelAdmin, byID.AccessLevel)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
	assert.ErrorIs(t, repo.UpdateAccessLevel(ctx, uuid.NewString(), 1), identity.ErrUserNotFound)
}

// TestPurpose: Validates job persistence with case-insensitive search and pagination.
// Scope: Database Integration Test
// Expected: Search matches title or description ignoring case; LIKE wildcards in the search are literal.
// Test Case ID: DB-02
func TestJobRepository_ListSearch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewJobRepository(db)
	owner := createTestUser(t, db, authz.LevelUser)
	marker := uuid.NewString()[:8]

	titles := []string{"Mergulho " + marker, "Passeio " + marker + " 100%", "Outro"}
	for i, title := range titles {
		now := time.Now().Add(time.Duration(i) * time.Second)
		job := &jobs.Job{
			ID:          uuid.Must(uuid.NewV7()).String(),
			Title:       title,
			Description: "desc",
			CreatedBy:   owner.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		require.NoError(t, repo.Create(ctx, job))
		t.Cleanup(func() { _ = repo.Delete(context.Background(), job.ID) })
	}

	items, total, err := repo.List(ctx, marker, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	// newest first
	assert.Equal(t, titles[1], items[0].Title)

	items, total, err = repo.List(ctx, marker+" 100%", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, items, 1)

	items, _, err = repo.List(ctx, "MERGULHO "+marker, 1, 0)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	got, err := repo.GetByID(ctx, items[0].ID)
	require.NoError(t, err)
	got.Title = "Mergulho atualizado " + marker
	require.NoError(t, repo.Update(ctx, got))

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, uuid.NewString()), jobs.ErrJobNotFound)
}

// TestPurpose: Validates that the seeded policy tables load into a Policy equal to the built-in defaults.
// Scope: Database Integration Test
// Security: Authorization table integrity
// Expected: Loaded permission and role levels match the defaults; a saved policy reloads unchanged.
// Test Case ID: DB-03
func TestPolicyRepository_Load(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewPolicyRepository(db)

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, authz.DefaultPolicy().Permissions(), loaded.Permissions())
	assert.Equal(t, authz.DefaultPolicy().Roles(), loaded.Roles())

	require.NoError(t, repo.Save(ctx, authz.DefaultPolicy()))
	reloaded, err := repo.Load(ctx, authz.WithStrictPermissions(true))
	require.NoError(t, err)
	assert.Equal(t, loaded.Permissions(), reloaded.Permissions())
	assert.True(t, reloaded.Strict())
}
