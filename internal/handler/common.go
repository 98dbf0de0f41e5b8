// Package handler exposes the HTTP handlers of the enrollment API.  Each
// handler decodes the request, calls one service and maps sentinel errors
// to status codes.  Error bodies have the shape {"error": "..."}.
package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/class-enrollment/internal/middleware"
	"github.com/iliyamo/class-enrollment/internal/model"
)

var errNoIdentity = errors.New("no authenticated user in context")

// getUserEmail returns the email stored by the JWT middleware.
func getUserEmail(c echo.Context) (string, error) {
	email := middleware.CurrentEmail(c)
	if email == "" {
		return "", errNoIdentity
	}
	return email, nil
}

// canActFor reports whether the caller may read or write data owned by
// email: either it is their own or they are an admin.
func canActFor(c echo.Context, email string) bool {
	if strings.EqualFold(middleware.CurrentEmail(c), strings.TrimSpace(email)) {
		return true
	}
	return middleware.CurrentRole(c) == model.RoleAdmin
}

// logError records an unexpected failure through the request-scoped
// logger installed by middleware.RequestLogger.
func logError(c echo.Context, err error, msg string) {
	zerolog.Ctx(c.Request().Context()).Error().Err(err).
		Str("route", c.Path()).
		Msg(msg)
}

// CachePurger drops cached responses whose path starts with one of paths.
// middleware.CachePurger satisfies it.
type CachePurger interface {
	Purge(ctx context.Context, paths ...string)
}

// Cached route prefixes touched by writes.
const (
	classesPath          = "/v1/classes"
	leaderboardPath      = "/v1/leaderboard/"
	instructorsBoardPath = "/v1/leaderboard/instructors"
	classProjectionPath  = "/v1/enrollment-projection/class/"
)

// purge runs after a successful write.  The purge outlives a client
// disconnect, since the write it follows has already committed.
func purge(c echo.Context, cache CachePurger, paths ...string) {
	if cache == nil {
		return
	}
	cache.Purge(context.WithoutCancel(c.Request().Context()), paths...)
}
