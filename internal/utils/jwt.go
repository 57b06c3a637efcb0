package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is the only error ParseToken returns. Signature, algorithm,
// expiry and shape failures are deliberately indistinguishable.
var ErrInvalidToken = errors.New("invalid or expired token")

type sessionData struct {
	SessionID string `json:"session_id"`
}

type sessionClaims struct {
	Data sessionData `json:"data"`
	jwt.RegisteredClaims
}

// GenerateToken signs a session id with HS256 and the given lifetime.
func GenerateToken(secret []byte, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &sessionClaims{
		Data: sessionData{SessionID: sessionID},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken verifies the token and returns the embedded session id.
func ParseToken(secret []byte, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.Data.SessionID == "" {
		return "", ErrInvalidToken
	}

	return claims.Data.SessionID, nil
}
