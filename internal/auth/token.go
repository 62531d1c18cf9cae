package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"company-quiz-service/internal/domain"
)

// DefaultTokenTTL matches the 30-minute lifetime of internal tokens.
const DefaultTokenTTL = 30 * time.Minute

// TokenManager issues and resolves HMAC-signed bearer tokens with the
// user's email as subject.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// NewTokenManagerWithClock is test-only for deterministic expiry.
func NewTokenManagerWithClock(secret string, ttl time.Duration, now func() time.Time) *TokenManager {
	m := NewTokenManager(secret, ttl)
	m.now = now
	return m
}

func (m *TokenManager) Encode(email string) (string, error) {
	now := m.now()
	claims := jwt.MapClaims{
		"sub": email,
		"iat": now.Unix(),
		"exp": now.Add(m.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Decode verifies signature and expiry and returns the subject email.
func (m *TokenManager) Decode(raw string) (string, error) {
	token, err := jwt.Parse(raw, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", domain.Unauthorized("token expired")
		}
		return "", domain.Unauthorized("invalid token")
	}
	return subject(token)
}

// Refresh re-issues a token from a structurally valid, well-signed one.
// Expiry is deliberately not checked: an expired token stays refreshable.
func (m *TokenManager) Refresh(raw string) (string, error) {
	token, err := jwt.Parse(raw, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", domain.Unauthorized("invalid token")
	}
	email, err := subject(token)
	if err != nil {
		return "", err
	}
	return m.Encode(email)
}

func (m *TokenManager) keyFunc(*jwt.Token) (interface{}, error) {
	return m.secret, nil
}

func subject(token *jwt.Token) (string, error) {
	email, err := token.Claims.GetSubject()
	if err != nil || email == "" {
		return "", domain.Unauthorized("invalid token")
	}
	return email, nil
}
