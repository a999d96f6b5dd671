package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/turisb2b/marketplace/internal/authz"
)

// Domain errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrWeakSecret   = errors.New("token secret must be at least 32 bytes")
)

// Claims are the bearer token claims. Nivel is the caller's access level.
type Claims struct {
	Nivel *int `json:"nivel"`
	jwt.RegisteredClaims
}

// Service issues and verifies HS256 bearer tokens.
type Service struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates a new token service
func NewService(secret, issuer string, ttl time.Duration) (*Service, error) {
	if len(secret) < 32 {
		return nil, ErrWeakSecret
	}
	return &Service{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token for userID carrying the given access level.
func (s *Service) Issue(ctx context.Context, userID string, level int) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	if level < 0 {
		return "", time.Time{}, fmt.Errorf("%w: negative access level", ErrInvalidToken)
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		Nivel: &level,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify validates raw and returns the principal it names.
func (s *Service) Verify(ctx context.Context, raw string) (*authz.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if claims.Nivel == nil || *claims.Nivel < 0 {
		return nil, fmt.Errorf("%w: missing or negative nivel", ErrInvalidToken)
	}

	return &authz.Principal{
		ID:          claims.Subject,
		AccessLevel: *claims.Nivel,
	}, nil
}
