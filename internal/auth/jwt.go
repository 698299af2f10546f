// Package auth is the portal's placeholder login: any non-empty credentials
// are accepted and exchanged for a signed token. Real authentication design
// is out of scope; the token exists so the API surface matches a protected
// deployment.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the JWT claims for a portal session.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTManager signs and validates session tokens.
type JWTManager struct {
	secret   string
	issuer   string
	audience string
	expiry   time.Duration
}

// NewJWTManager creates a new JWT manager.
func NewJWTManager(secret, issuer, audience string, expiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		expiry:   expiry,
	}
}

// ValidateConfig checks the manager is usable.
func (j *JWTManager) ValidateConfig() error {
	if j.secret == "" {
		return errors.New("jwt secret must not be empty")
	}
	if j.expiry <= 0 {
		return errors.New("jwt expiry must be positive")
	}
	return nil
}

// GenerateToken creates a signed session token for the given username.
func (j *JWTManager) GenerateToken(username string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.issuer,
			Audience:  []string{j.audience},
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secret))
}

// ValidateToken validates and parses a session token.
func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
