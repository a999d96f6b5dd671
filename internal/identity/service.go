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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/turisb2b/marketplace/internal/audit"
	"github.com/turisb2b/marketplace/internal/authz"
	"github.com/turisb2b/marketplace/internal/observability/logger"
)

const minPasswordLength = 8

// Registration describes a new account
type Registration struct {
	Email         string
	Name          string
	Password      string
	CorporationID *string
	AccessLevel   int
}

// Service provides identity-related business logic
type Service struct {
	repo               UserRepository
	hasher             *PasswordHasher
	auditLogger        audit.Logger
	validate           *validator.Validate
	lockoutMaxAttempts int
	lockoutDuration    time.Duration
	now                func() time.Time
}

// NewService creates a new identity service
func NewService(
	repo UserRepository,
	hasher *PasswordHasher,
	auditLogger audit.Logger,
	lockoutMaxAttempts int,
	lockoutDuration time.Duration,
) *Service {
	return &Service{
		repo:               repo,
		hasher:             hasher,
		auditLogger:        auditLogger,
		validate:           validator.New(validator.WithRequiredStructEnabled()),
		lockoutMaxAttempts: lockoutMaxAttempts,
		lockoutDuration:    lockoutDuration,
		now:                time.Now,
	}
}

// Register creates a user with a password credential.
// A zero AccessLevel registers a standard user.
func (s *Service) Register(ctx context.Context, reg Registration) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(reg.Email))
	if err := s.validate.Var(email, "required,email,max=254"); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(reg.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	if existing, err := s.repo.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrUserAlreadyExists
	} else if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	level := reg.AccessLevel
	if level <= 0 {
		level = authz.LevelUser
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		ID:            uuid.Must(uuid.NewV7()).String(),
		CorporationID: reg.CorporationID,
		Email:         email,
		Name:          strings.TrimSpace(reg.Name),
		AccessLevel:   level,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if err := s.repo.AddCredentials(ctx, &Credentials{UserID: user.ID, PasswordHash: hash}); err != nil {
		return nil, fmt.Errorf("failed to add credentials: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:          audit.TypeUserCreated,
		CorporationID: deref(user.CorporationID),
		ActorID:       user.ID,
		Resource:      "user",
	})

	return user, nil
}

// Authenticate authenticates a user with email and password
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			Resource: "login",
			Metadata: map[string]any{audit.AttrReason: "user_not_found"},
		})
		return nil, ErrInvalidCredentials
	}

	if user.LockedUntil != nil && user.LockedUntil.After(s.now()) {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			ActorID:  user.ID,
			Resource: "login",
			Metadata: map[string]any{audit.AttrReason: "locked_out"},
		})
		return nil, ErrAccountLocked
	}

	credentials, err := s.repo.GetCredentials(ctx, user.ID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	// An expired lockout starts a fresh window of attempts.
	failed := user.FailedLoginAttempts
	if user.LockedUntil != nil {
		failed = 0
	}

	valid, err := s.hasher.Verify(password, credentials.PasswordHash)
	if err != nil || !valid {
		attempts := failed + 1
		var lockedUntil *time.Time

		if attempts >= s.lockoutMaxAttempts {
			until := s.now().Add(s.lockoutDuration)
			lockedUntil = &until
			s.auditLogger.Log(ctx, audit.Event{
				Type:     audit.TypeUserLocked,
				ActorID:  user.ID,
				Resource: "login",
				Metadata: map[string]any{audit.AttrAttempts: attempts},
			})
		}

		if err := s.repo.UpdateLockout(ctx, user.ID, attempts, lockedUntil); err != nil {
			slog.WarnContext(ctx, "failed to record failed login", logger.UserID(user.ID), logger.Error(err))
		}

		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			ActorID:  user.ID,
			Resource: "login",
			Metadata: map[string]any{
				audit.AttrReason:   "invalid_password",
				audit.AttrAttempts: attempts,
			},
		})

		return nil, ErrInvalidCredentials
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		if err := s.repo.UpdateLockout(ctx, user.ID, 0, nil); err != nil {
			slog.WarnContext(ctx, "failed to reset login attempts", logger.UserID(user.ID), logger.Error(err))
		}
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:          audit.TypeLoginSuccess,
		CorporationID: deref(user.CorporationID),
		ActorID:       user.ID,
		Resource:      "login",
	})

	return user, nil
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
