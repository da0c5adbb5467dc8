package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/guildpoints/points-ledger/internal/serviceerrs"
)

const TokenExpire = 3 * time.Hour

const adminSubject = "admin"

type Claims struct {
	jwt.RegisteredClaims
}

func buildJWTString(secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   adminSubject,
				ID:        uuid.NewString(),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenExpire)),
			},
		},
	)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("JWT signing: %w", err)
	}
	return tokenString, nil
}

// Authenticate issues the admin session cookie.
func Authenticate(secret []byte) (http.Cookie, error) {
	jwtString, err := buildJWTString(secret)
	if err != nil {
		return http.Cookie{}, fmt.Errorf("authentication failed: %w", err)
	}
	return http.Cookie{
		Name:     "jwt-token",
		Value:    jwtString,
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
	}, nil
}

func CheckToken(tokenString string, secret []byte) (Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		})
	if err != nil {
		return Claims{}, fmt.Errorf("failed to parse token %w", err)
	}
	if claims.Subject != adminSubject {
		return Claims{}, fmt.Errorf("unexpected token subject %q", claims.Subject)
	}
	tokenExpired := claims.ExpiresAt.Before(time.Now())
	if tokenExpired {
		return Claims{}, serviceerrs.ErrTokenExpired
	}

	return *claims, nil
}
