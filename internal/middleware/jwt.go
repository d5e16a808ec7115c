package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/campusbid/auction-service/internal/model"
)

// principalKey is the echo context key under which JWTAuth stores the
// authenticated caller.
const principalKey = "principal"

var errInvalidToken = errors.New("invalid token")

// BearerToken extracts the raw token from the Authorization header, or
// returns the empty string when the header is absent or malformed.
func BearerToken(c echo.Context) string {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

// ParsePrincipal validates an HS256 access token and returns the caller
// it identifies. The sub and role claims are required; anything short
// of that is treated as an invalid token.
func ParsePrincipal(secret, raw string) (model.Principal, error) {
	if raw == "" {
		return model.Principal{}, errInvalidToken
	}
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return model.Principal{}, errInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return model.Principal{}, errInvalidToken
	}
	sub, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)
	role, _ := claims["role"].(string)
	if sub == "" || role == "" {
		return model.Principal{}, errInvalidToken
	}
	return model.Principal{ID: sub, Name: name, Role: role}, nil
}

// JWTAuth validates the bearer token on every request and stores the
// resulting Principal in the context for downstream handlers.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := BearerToken(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			principal, err := ParsePrincipal(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(principalKey, principal)
			return next(c)
		}
	}
}

// Caller returns the Principal stored by JWTAuth. The boolean is false
// on unauthenticated routes.
func Caller(c echo.Context) (model.Principal, bool) {
	p, ok := c.Get(principalKey).(model.Principal)
	return p, ok
}
