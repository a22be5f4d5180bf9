package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminSubject is the subject claim carried by console session tokens.
const AdminSubject = "admin"

// SignAdminToken issues a signed console session token.
func SignAdminToken(secret string, expiry time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("empty jwt secret")
	}
	claims := jwt.RegisteredClaims{
		Subject:   AdminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
	}
	signed, errSign := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if errSign != nil {
		return "", fmt.Errorf("sign admin token: %w", errSign)
	}
	return signed, nil
}

// ParseAdminToken validates a console session token and returns its claims.
func ParseAdminToken(secret, raw string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, errParse := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if errParse != nil {
		return nil, fmt.Errorf("parse admin token: %w", errParse)
	}
	if !token.Valid || claims.Subject != AdminSubject {
		return nil, fmt.Errorf("invalid admin token")
	}
	return claims, nil
}
