// Package auth issues and verifies the access tokens that carry a caller's
// address to execute calls.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/userledger/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the registered claims plus the caller address.
type Claims struct {
	jwt.RegisteredClaims
	Address string
}

func GenerateToken(address string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		Address: address,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenString, nil
}

// GetAddressFromToken verifies tokenString and returns its address claim.
func GetAddressFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.Address == "" {
		return "", common.ErrInvalidToken
	}

	return claims.Address, nil
}
