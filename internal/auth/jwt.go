package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims carried by a transport token. The token
// identifies a server-side session row, not the user directly, so revoking
// the session invalidates every copy of the token.
type Claims struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager handles JWT token generation and validation.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager creates a new token manager with the given secret and token lifetime.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// TTL returns the configured token lifetime.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Generate creates a signed JWT referencing the given session.
func (m *TokenManager) Generate(sessionID, name, email string) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		SessionID: sessionID,
		Name:      name,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			Issuer:    "identity",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signedToken, nil
}

// Validate parses and validates a transport token, returning the claims.
// Tokens signed with any non-HMAC algorithm are rejected.
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.SessionID == "" {
		return nil, fmt.Errorf("token missing session id")
	}

	return claims, nil
}
