// Package auth issues and verifies the HS256 access tokens accepted by the
// collection gateway.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/clubsync/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the standard claims plus the client's role.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// GenerateToken signs a token for subject valid for validity.
func GenerateToken(subject, role string, secretKey []byte, validity time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		Role: role,
	})

	return token.SignedString(secretKey)
}

// ParseToken verifies tokenString and returns its claims.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
