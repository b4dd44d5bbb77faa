// Package session mints and checks the bearer tokens the API hands out after login.
//
// Tokens are HS256-signed JWTs. The subject is the user's UUID and a custom is_admin claim
// carries the role, so the admin gate does not need to parse anything else. There is no
// refresh or rotation: once a token expires the member logs in again.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/trentd187/beach-club/internal/apperr"
	"github.com/trentd187/beach-club/internal/models"
)

// Issuer is the value written to and required in the iss claim.
const Issuer = "beach-club"

var (
	// Both are 401s. They differ only in the message, so clients know to sign in again.
	ErrInvalidToken = apperr.Auth("invalid token")
	ErrExpired      = apperr.Auth("token expired")
)

// Claims is the JWT payload.
type Claims struct {
	jwt.RegisteredClaims
	// Role at issue time. Auth also checks the stored flag, so a revoked admin loses
	// access immediately.
	IsAdmin bool `json:"is_admin"`
}

// Identity is what a verified token says about its bearer.
type Identity struct {
	UserID    uuid.UUID
	IsAdmin   bool
	ExpiresAt time.Time
}

// Token is a freshly issued credential.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Manager signs and verifies tokens with a single secret and validity window.
type Manager struct {
	secret []byte           // HMAC key; JWT_SECRET from config
	ttl    time.Duration    // lifetime of every issued token
	now    func() time.Time // swapped in tests to move the clock
}

// NewManager returns a Manager. ttl applies to every token it issues.
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue mints a token for user valid for the configured TTL.
func (m *Manager) Issue(user *models.User) (Token, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   user.ID.String(), // whose token this is
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now), // not valid before it was minted
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(), // unique per token (jti)
		},
		IsAdmin: user.IsAdmin,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	// Report the expiry at the precision the token actually carries.
	return Token{Value: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify checks the signature, algorithm, issuer and time window of raw and returns the
// identity it carries. Expired tokens fail with ErrExpired; every other problem with
// ErrInvalidToken.
func (m *Manager) Verify(raw string) (*Identity, error) {
	// Pin the algorithm: without WithValidMethods a token could pick its own,
	// including "none". Expiry is required, not just checked when present.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	var claims Claims
	// The key func is where a multi-key setup would choose a key; there is only one.
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Wrap(ErrExpired, err)
		}
		return nil, apperr.Wrap(ErrInvalidToken, err)
	}

	// A valid signature with a non-UUID subject means a token from somewhere else.
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperr.Wrap(ErrInvalidToken, err)
	}
	return &Identity{UserID: id, IsAdmin: claims.IsAdmin, ExpiresAt: claims.ExpiresAt.Time}, nil
}
