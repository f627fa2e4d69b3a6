// Package token issues and verifies the access/refresh JWT pair. It is a
// pure signing layer: persistence of outstanding refresh tokens belongs to
// the caller.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer   = "storefront-api"
	audience = "storefront-users"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

type Pair struct {
	AccessToken  string
	RefreshToken string
}

type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// NewService builds a token service. An empty refreshSecret falls back to
// the access secret.
func NewService(secret, refreshSecret string, accessExpiry, refreshExpiry time.Duration) *Service {
	if refreshSecret == "" {
		refreshSecret = secret
	}
	return &Service{
		accessSecret:  []byte(secret),
		refreshSecret: []byte(refreshSecret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}
}

func (s *Service) IssuePair(userID uuid.UUID) (Pair, error) {
	access, err := sign(userID, s.accessSecret, s.accessExpiry)
	if err != nil {
		return Pair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := sign(userID, s.refreshSecret, s.refreshExpiry)
	if err != nil {
		return Pair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) VerifyAccess(tokenStr string) (uuid.UUID, error) {
	return verify(tokenStr, s.accessSecret)
}

func (s *Service) VerifyRefresh(tokenStr string) (uuid.UUID, error) {
	return verify(tokenStr, s.refreshSecret)
}

func (s *Service) RefreshExpiry() time.Duration { return s.refreshExpiry }

func sign(userID uuid.UUID, secret []byte, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		// The jti keeps tokens unique even when two are signed for the same
		// user within the same second, which matters for rotation.
		ID:        uuid.NewString(),
		Subject:   userID.String(),
		Issuer:    issuer,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// verify enforces the canonical claim schema strictly: HS256 only, matching
// issuer and audience, user id in the subject claim. Tokens with legacy
// claim shapes are rejected rather than guessed at.
func verify(tokenStr string, secret []byte) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, ErrTokenExpired
		}
		return uuid.Nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}
