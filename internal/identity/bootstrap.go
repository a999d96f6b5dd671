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

	"github.com/turisb2b/marketplace/internal/audit"
	"github.com/turisb2b/marketplace/internal/authz"
	"github.com/turisb2b/marketplace/internal/observability/logger"
)

// BootstrapConfig names the first super administrator.
type BootstrapConfig struct {
	Email    string
	Password string
	Name     string
}

// BootstrapService seeds the initial super administrator
type BootstrapService struct {
	identityService *Service
	auditLogger     audit.Logger
	cfg             BootstrapConfig
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(identityService *Service, auditLogger audit.Logger, cfg BootstrapConfig) *BootstrapService {
	return &BootstrapService{
		identityService: identityService,
		auditLogger:     auditLogger,
		cfg:             cfg,
	}
}

// Bootstrap ensures the configured account exists with super_admin level.
// It is a no-op when no bootstrap email is configured.
func (s *BootstrapService) Bootstrap(ctx context.Context) error {
	if s.cfg.Email == "" {
		return nil
	}

	level := authz.LevelForRole(authz.RoleSuperAdmin)

	user, err := s.identityService.repo.GetByEmail(ctx, s.cfg.Email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		user, err = s.identityService.Register(ctx, Registration{
			Email:       s.cfg.Email,
			Name:        s.cfg.Name,
			Password:    s.cfg.Password,
			AccessLevel: level,
		})
		if err != nil {
			return fmt.Errorf("failed to create bootstrap admin: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to look up bootstrap admin: %w", err)
	case user.AccessLevel >= level:
		// already bootstrapped
		return nil
	default:
		if err := s.identityService.repo.UpdateAccessLevel(ctx, user.ID, level); err != nil {
			return fmt.Errorf("failed to promote bootstrap admin: %w", err)
		}
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeBootstrapAdmin,
		ActorID:  user.ID,
		Resource: "user",
		Metadata: map[string]any{audit.AttrRoles: []string{authz.RoleSuperAdmin}},
	})
	slog.InfoContext(ctx, "bootstrapped super administrator", logger.UserID(user.ID))
	return nil
}
