// Package auth verifies bearer credentials. Credential issuance lives in an
// external identity service; this package only validates what it minted.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// ContextKey represents keys for context values
type ContextKey string

// UserIDContextKey is where the verified user identity is stored on the
// request context. Handlers must take the caller identity from here and
// nowhere else.
const UserIDContextKey ContextKey = "verified_user_id"

// Claims are the JWT claims the identity service embeds
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// RequireAuth validates the Bearer token and stores the verified user
// identity in the request context. Missing or invalid credentials yield 401.
func RequireAuth(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			userID, err := validateToken(tokenParts[1], secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(string(UserIDContextKey), userID)
			return next(c)
		}
	}
}

func validateToken(tokenString string, secret []byte) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return "", fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		if err == nil {
			err = fmt.Errorf("invalid token")
		}
		return "", err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", fmt.Errorf("token carries no user identity")
	}

	return userID, nil
}

// VerifiedUserID extracts the verified user identity from echo context.
// Returns empty string if the auth middleware did not run.
func VerifiedUserID(c echo.Context) string {
	v := c.Get(string(UserIDContextKey))
	if v == nil {
		return ""
	}
	userID, _ := v.(string)
	return userID
}
