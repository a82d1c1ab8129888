// Package auth mints and verifies the HS256 access tokens handed to clients.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/shopkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the standard claims; the identity id travels as Subject.
type Claims struct {
	jwt.RegisteredClaims
}

// GenerateToken signs an access token for identityID that expires after
// validityDuration.
func GenerateToken(identityID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetIdentityIDFromToken verifies tokenString and returns its subject.
// Expired tokens yield common.ErrTokenExpired; anything else that fails
// verification yields common.ErrInvalidToken.
func GetIdentityIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return "", common.ErrInvalidToken
	}

	return claims.Subject, nil
}
