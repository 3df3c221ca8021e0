package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Tokens issues and verifies HS256 session tokens. The token names the
// session; whether that session is still open is checked on every request.
type Tokens struct {
	key []byte
}

func NewTokens(secret string) Tokens {
	return Tokens{key: []byte(secret)}
}

func (t Tokens) Issue(sessionID, username string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:       sessionID,
		Subject:  username,
		Issuer:   "bankist",
		IssuedAt: jwt.NewNumericDate(now),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return signed, nil
}

// Verify returns the session id carried by token.
func (t Tokens) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer("bankist"))
	parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.key, nil
	})
	if err != nil || !parsed.Valid || claims.ID == "" {
		return "", ErrInvalidToken
	}
	return claims.ID, nil
}
