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

package identity

import (
	"context"
	"errors"
	"time"

	"github.com/turisb2b/marketplace/internal/authz"
)

// Domain errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password does not meet security requirements")
	ErrAccountLocked      = errors.New("account is locked")
)

// User is a marketplace account. AccessLevel is the integer rank ("nivel")
// copied into every bearer token issued to the user.
type User struct {
	ID                  string
	CorporationID       *string // nil for prestadores not bound to a corporation
	Email               string
	Name                string
	AccessLevel         int
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           *time.Time
}

// Principal returns the authorization view of the user.
func (u *User) Principal() *authz.Principal {
	return &authz.Principal{ID: u.ID, AccessLevel: u.AccessLevel}
}

// Credentials represents user authentication credentials
type Credentials struct {
	UserID       string
	PasswordHash string
	UpdatedAt    time.Time
}

// UserRepository defines the interface for user persistence
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *User) error

	// AddCredentials stores the password hash for a user
	AddCredentials(ctx context.Context, credentials *Credentials) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdateLockout updates user lockout status
	UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error

	// UpdateAccessLevel changes a user's access level
	UpdateAccessLevel(ctx context.Context, userID string, level int) error

	// GetCredentials retrieves user credentials
	GetCredentials(ctx context.Context, userID string) (*Credentials, error)
}
