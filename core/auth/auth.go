// Package auth 调用方身份：JWT 中的 subject 就是链上地址
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "metajuke"

var (
	ErrMissingSecret = errors.New("auth: jwt secret not configured")
	ErrInvalidToken  = errors.New("auth: invalid token")
)

// Claims token 载荷
type Claims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

// GenerateToken 为地址签发 HS256 token
func GenerateToken(secret, address string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	if address == "" {
		return "", fmt.Errorf("auth: address required")
	}
	now := time.Now()
	claims := Claims{
		Address: address,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   address,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken 校验签名、过期时间和签发方
func ParseToken(secret, tokenString string) (*Claims, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Address == "" || claims.Address != claims.Subject {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
