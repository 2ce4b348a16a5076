// Package auth verifies the bearer tokens that identify custody callers.
// A token is HS256-signed and its subject is the caller's address.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/simaogato/kipubank-backend/internal/domain"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidSubject = errors.New("invalid token subject")
)

// IssueToken signs an HS256 token whose subject is caller
func IssueToken(caller domain.Address, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   caller.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseCaller validates tokenString and returns the address in its subject
func ParseCaller(tokenString string, secret []byte) (domain.Address, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return domain.Address{}, ErrInvalidToken
	}

	caller, err := domain.ParseAddress(claims.Subject)
	if err != nil {
		return domain.Address{}, ErrInvalidSubject
	}
	return caller, nil
}

func ExtractBearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
