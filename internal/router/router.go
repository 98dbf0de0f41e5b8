// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/class-enrollment/internal/config"
	"github.com/iliyamo/class-enrollment/internal/handler"
	"github.com/iliyamo/class-enrollment/internal/middleware"
	"github.com/iliyamo/class-enrollment/internal/model"
)

// Handlers groups every HTTP handler the API exposes.
type Handlers struct {
	Health      *handler.HealthHandler
	Settlement  *handler.SettlementHandler
	Projection  *handler.ProjectionHandler
	Leaderboard *handler.LeaderboardHandler
	Cart        *handler.CartHandler
	Payment     *handler.PaymentHandler
	Catalog     *handler.CatalogHandler
	Admin       *handler.AdminHandler
}

// Options carries what the route middleware needs.  Redis may be nil, in
// which case caching and rate limiting are skipped.
type Options struct {
	JWTSecret string
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Redis     *redis.Client
	Log       zerolog.Logger
}

// RegisterRoutes registers every route.
func RegisterRoutes(e *echo.Echo, h Handlers, opts Options) {
	cache := middleware.NewRedisCache(opts.Cache, opts.Redis)
	limiter := middleware.NewRateLimiter(opts.RateLimit, opts.Redis, opts.Log)

	RegisterPublic(e, h, cache)
	RegisterStudent(e, h, opts.JWTSecret, limiter)
	RegisterInstructor(e, h, opts.JWTSecret, cache)
	RegisterAdmin(e, h, opts.JWTSecret)
}

// RegisterPublic registers routes that need no token: health, sign-up,
// the catalog and the leaderboards.
func RegisterPublic(e *echo.Echo, h Handlers, cache echo.MiddlewareFunc) {
	e.GET("/healthz", h.Health.Health)
	e.POST("/v1/users", h.Catalog.Register)
	e.GET("/v1/classes", h.Catalog.ListClasses, cache)
	e.GET("/v1/classes/:id", h.Catalog.GetClass)
	e.GET("/v1/instructors", h.Catalog.Instructors)
	e.GET("/v1/leaderboard/classes", h.Leaderboard.Classes, cache)
	e.GET("/v1/leaderboard/instructors", h.Leaderboard.Instructors, cache)
}

// RegisterStudent registers routes for any signed-in user.  Writes that
// move money or seats go through the per-caller limiter; settlement is
// also limited per payment.  The by-email projection is not cached
// because the handler checks ownership.
func RegisterStudent(e *echo.Echo, h Handlers, jwtSecret string, limiter *middleware.RateLimiter) {
	limit := limiter.PerCaller()
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStudent, model.RoleInstructor, model.RoleAdmin),
	)
	g.POST("/settlement", h.Settlement.Settle, limit, limiter.PerPayment())
	g.GET("/enrollment-projection/:email", h.Projection.ByStudent)

	g.POST("/cart", h.Cart.Add, limit)
	g.GET("/cart", h.Cart.List)
	g.DELETE("/cart/:classId", h.Cart.Remove, limit)

	g.POST("/payments/intent", h.Payment.CreateIntent, limit)
	g.GET("/payments/history", h.Payment.History)
	g.GET("/payments/history/count", h.Payment.HistoryCount)

	g.POST("/applications", h.Catalog.Apply)
	g.GET("/applications/:email", h.Catalog.ApplicationStatus)
}

// RegisterInstructor registers class authoring and the per-class
// enrollment view, available to instructors and admins.  Ownership of an
// edited class is checked by the service.
func RegisterInstructor(e *echo.Echo, h Handlers, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleInstructor, model.RoleAdmin),
	)
	g.POST("/classes", h.Catalog.CreateClass)
	g.PUT("/classes/:id", h.Catalog.UpdateClass)
	g.GET("/instructor/classes", h.Catalog.MyClasses)
	g.GET("/enrollment-projection/class/:classId", h.Projection.ByClass, cache)
}

// RegisterAdmin registers the admin dashboard and review endpoints.
func RegisterAdmin(e *echo.Echo, h Handlers, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.PATCH("/applications/:id/status", h.Admin.DecideApplication)
	g.PATCH("/classes/:id/status", h.Admin.ReviewClass)
	g.PATCH("/users/:email/role", h.Admin.ChangeRole)
	g.GET("/classes", h.Admin.Classes)
	g.GET("/applications", h.Admin.Applications)
	g.GET("/stats", h.Admin.Summary)
}
