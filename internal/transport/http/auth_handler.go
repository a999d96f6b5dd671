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
	"time"

	"github.com/turisb2b/marketplace/internal/audit"
	"github.com/turisb2b/marketplace/internal/identity"
	"github.com/turisb2b/marketplace/internal/observability/logger"
)

// RegisterRequest represents registration data
type RegisterRequest struct {
	Email         string  `json:"email" validate:"required,email,max=254"`
	Password      string  `json:"password" validate:"required,min=8,max=128"`
	Name          string  `json:"name" validate:"max=200"`
	CorporationID *string `json:"corporation_id,omitempty" validate:"omitempty,uuid"`
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued bearer token
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
}

// Register handles self-service user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.identityService.Register(r.Context(), identity.Registration{
		Email:         req.Email,
		Name:          req.Name,
		Password:      req.Password,
		CorporationID: req.CorporationID,
	})
	if err != nil {
		h.auditLogger.Log(r.Context(), audit.Event{
			Type:      audit.TypeRegistrationErr,
			Resource:  "user",
			IPAddress: getClientIP(r),
			UserAgent: r.UserAgent(),
			Metadata:  map[string]any{audit.AttrReason: err.Error()},
		})

		switch {
		case errors.Is(err, identity.ErrUserAlreadyExists):
			respondError(w, http.StatusConflict, "user already exists")
		case errors.Is(err, identity.ErrInvalidEmail):
			respondError(w, http.StatusBadRequest, "invalid email address")
		case errors.Is(err, identity.ErrWeakPassword):
			respondError(w, http.StatusBadRequest, "password does not meet security requirements")
		default:
			slog.ErrorContext(r.Context(), "failed to register user", logger.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})
}

// Login exchanges credentials for a bearer token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.identityService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrAccountLocked) {
			respondError(w, http.StatusTooManyRequests, "account temporarily locked")
			return
		}
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	raw, expiresAt, err := h.tokenService.Issue(r.Context(), user.ID, user.AccessLevel)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to issue token", logger.Error(err), logger.UserID(user.ID))
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeTokenIssued,
		ActorID:   user.ID,
		Resource:  "token",
		IPAddress: getClientIP(r),
		UserAgent: r.UserAgent(),
	})

	respondJSON(w, http.StatusOK, LoginResponse{
		AccessToken: raw,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		UserID:      user.ID,
	})
}

// GetCurrentUser returns the authenticated user
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFrom(r.Context())
	if principal == nil {
		unauthorized(w, "authentication required")
		return
	}

	user, err := h.identityService.GetUser(r.Context(), principal.ID)
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":        user.ID,
		"email":          user.Email,
		"name":           user.Name,
		"corporation_id": user.CorporationID,
		"access_level":   principal.AccessLevel,
	})
}
