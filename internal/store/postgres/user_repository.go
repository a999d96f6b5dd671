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

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/turisb2b/marketplace/internal/identity"
)

const userColumns = `
	id, corporation_id, email, name, access_level,
	failed_login_attempts, locked_until, created_at, updated_at, deleted_at`

// UserRepository implements identity.UserRepository
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	now := time.Now()
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO users (id, corporation_id, email, name, access_level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.CorporationID, user.Email, user.Name, user.AccessLevel, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now

	return nil
}

// AddCredentials adds credentials for a user
func (r *UserRepository) AddCredentials(ctx context.Context, credentials *identity.Credentials) error {
	now := time.Now()

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO credentials (user_id, password_hash, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET password_hash = EXCLUDED.password_hash, updated_at = EXCLUDED.updated_at
	`, credentials.UserID, credentials.PasswordHash, now)
	if err != nil {
		return fmt.Errorf("failed to insert credentials: %w", err)
	}

	credentials.UpdatedAt = now

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+userColumns+`
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	return scanUser(row)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+userColumns+`
		FROM users
		WHERE email = $1 AND deleted_at IS NULL
	`, email)
	return scanUser(row)
}

// UpdateLockout updates user lockout status
func (r *UserRepository) UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = $1, locked_until = $2, updated_at = NOW()
		WHERE id = $3
	`, failedAttempts, lockedUntil, userID)
	if err != nil {
		return fmt.Errorf("failed to update user lockout status: %w", err)
	}
	return nil
}

// UpdateAccessLevel changes a user's access level
func (r *UserRepository) UpdateAccessLevel(ctx context.Context, userID string, level int) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET access_level = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`, userID, level)
	if err != nil {
		return fmt.Errorf("failed to update access level: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

// GetCredentials retrieves user credentials
func (r *UserRepository) GetCredentials(ctx context.Context, userID string) (*identity.Credentials, error) {
	var creds identity.Credentials

	err := r.db.pool.QueryRow(ctx, `
		SELECT user_id, password_hash, updated_at
		FROM credentials
		WHERE user_id = $1
	`, userID).Scan(&creds.UserID, &creds.PasswordHash, &creds.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}

	return &creds, nil
}

func scanUser(row pgx.Row) (*identity.User, error) {
	var user identity.User
	err := row.Scan(
		&user.ID, &user.CorporationID, &user.Email, &user.Name, &user.AccessLevel,
		&user.FailedLoginAttempts, &user.LockedUntil, &user.CreatedAt, &user.UpdatedAt, &user.DeletedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
