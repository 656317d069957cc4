// Package auth issues and checks the HS256 bearer tokens. Project keys carry
// a role claim (anon, service_role); driver tokens add the driver id as sub.
package auth

import (
	"errors"
	"fmt"
	"time"

	"tourbackend/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoSecret = errors.New("JWT_SECRET is not configured")

type Claims struct {
	Role  domain.Role `json:"role"`
	Email string      `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Sign issues a token for role. A zero ttl means no expiry, as for project keys.
func Sign(secret string, role domain.Role, subject, email string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	claims := Claims{
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Parse validates signature, algorithm and expiry and returns the claims.
func Parse(secret, token string) (Claims, error) {
	if secret == "" {
		return Claims{}, ErrNoSecret
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Claims{}, fmt.Errorf("invalid token: %w", err)
	}
	switch claims.Role {
	case domain.RoleAnon, domain.RoleServiceRole, domain.RoleDriver:
	default:
		return Claims{}, fmt.Errorf("invalid token: unknown role %q", claims.Role)
	}
	if claims.Role == domain.RoleDriver && claims.Subject == "" {
		return Claims{}, errors.New("invalid token: driver token without subject")
	}
	return claims, nil
}
