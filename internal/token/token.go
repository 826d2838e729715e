package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidSignature indicates the token signature does not match the secret.
	ErrInvalidSignature = errors.New("token: invalid signature")
	// ErrExpired indicates the token is past its expiry.
	ErrExpired = errors.New("token: expired")
	// ErrMalformed indicates the token could not be parsed at all.
	ErrMalformed = errors.New("token: malformed")
)

// Claims is the payload carried by issued tokens.
type Claims struct {
	UserID uint64 `json:"userId"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HMAC-signed bearer tokens. Verification is
// purely computational and never touches I/O.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager creates a Manager with the process-wide signing secret and
// token validity window.
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue creates a signed token embedding the user ID, valid for the
// configured window.
func (m *Manager) Issue(userID uint64) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded user ID.
func (m *Manager) Verify(tokenString string) (uint64, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return 0, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return 0, ErrInvalidSignature
		default:
			return 0, ErrMalformed
		}
	}
	if !parsed.Valid || claims.UserID == 0 {
		return 0, ErrMalformed
	}

	return claims.UserID, nil
}
