package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrInvalidClaim = errors.New("invalid token claims")
)

// APIClaims identifies the user calling the sync API.
type APIClaims struct {
	UserID string `json:"uid"`
	// Integrations optionally narrows the token to specific integration IDs
	Integrations []string `json:"integrations,omitempty"`
	jwt.RegisteredClaims
}

// CanAccess reports whether the token covers integrationID
func (c *APIClaims) CanAccess(integrationID string) bool {
	if len(c.Integrations) == 0 {
		return true
	}
	for _, id := range c.Integrations {
		if id == integrationID {
			return true
		}
	}
	return false
}

// TokenManager handles JWT token generation and validation
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}
}

// GenerateToken signs an HS256 token for userID
func (tm *TokenManager) GenerateToken(userID string, integrations ...string) (string, error) {
	now := time.Now()

	claims := APIClaims{
		UserID:       userID,
		Integrations: integrations,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tm.issuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// ValidateToken validates a JWT token and returns the claims
func (tm *TokenManager) ValidateToken(tokenString string) (*APIClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &APIClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithIssuer(tm.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*APIClaims)
	if !ok || !token.Valid || claims.UserID == "" || claims.Subject != claims.UserID {
		return nil, ErrInvalidClaim
	}

	return claims, nil
}
