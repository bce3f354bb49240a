package util

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const sessionIssuer = "open-auth-bouncer"

// ErrInvalidSessionCookie is returned when a session cookie fails verification
var ErrInvalidSessionCookie = errors.New("invalid session cookie")

// SessionSigner signs and verifies the session id carried in the session cookie.
// The cookie only ever holds the id; session data stays in the store.
type SessionSigner struct {
	secret []byte
	ttl    time.Duration
}

func NewSessionSigner(secret string, ttl time.Duration) *SessionSigner {
	return &SessionSigner{secret: []byte(secret), ttl: ttl}
}

// Sign returns an HS256 token whose jti is the session id
func (s *SessionSigner) Sign(sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:       sessionID,
		Issuer:   sessionIssuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the session id
func (s *SessionSigner) Verify(value string) (string, error) {
	if value == "" {
		return "", ErrInvalidSessionCookie
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(value, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSessionCookie, err)
	}
	if !token.Valid || claims.ID == "" || claims.Issuer != sessionIssuer {
		return "", ErrInvalidSessionCookie
	}

	return claims.ID, nil
}
