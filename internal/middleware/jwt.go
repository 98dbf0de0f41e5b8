// Package middleware contains reusable HTTP middleware: authentication,
// role checks, response caching, rate limiting and request logging.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-enrollment/internal/utils"
)

// Context keys set by JWTAuth.
const (
	ContextEmail = "user_email"
	ContextRole  = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores the subject (email) and role claims in the request context.
// The secret must match the one used when issuing tokens.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(ContextEmail, strings.ToLower(claims.Subject))
			c.Set(ContextRole, strings.ToLower(claims.Role))
			return next(c)
		}
	}
}
