package router // package router defines how HTTP routes are registered for the API

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/video-rental/internal/config"
	"github.com/iliyamo/video-rental/internal/handler"
	"github.com/iliyamo/video-rental/internal/middleware"
	"github.com/iliyamo/video-rental/internal/model"
)

// Handlers groups the HTTP handlers served by the API.
type Handlers struct {
	Health    *handler.HealthHandler
	Auth      *handler.AuthHandler
	Catalog   *handler.CatalogHandler
	Customers *handler.CustomerHandler
	Rentals   *handler.RentalHandler
}

// Options carries the settings shared by the route groups. Redis may be nil,
// in which case caching and rate limiting pass requests straight through.
type Options struct {
	JWTSecret string
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Redis     *redis.Client
	Logger    *slog.Logger
}

// guards is the middleware chain of each access level.
type guards struct {
	cached      []echo.MiddlewareFunc
	staff       []echo.MiddlewareFunc
	manager     []echo.MiddlewareFunc
	managerRead []echo.MiddlewareFunc
}

func newGuards(opts Options) guards {
	auth := middleware.JWTAuth(opts.JWTSecret)
	limit := middleware.NewTokenBucket(opts.RateLimit, opts.Redis)
	invalidate := middleware.InvalidateOnWrite(opts.Cache, opts.Redis)
	managerOnly := middleware.RequireRole(model.RoleManager)
	return guards{
		cached: []echo.MiddlewareFunc{middleware.NewRedisCache(opts.Cache, opts.Redis)},
		staff: []echo.MiddlewareFunc{
			auth, middleware.RequireRole(model.RoleClerk, model.RoleManager), limit, invalidate,
		},
		manager:     []echo.MiddlewareFunc{auth, managerOnly, limit, invalidate},
		managerRead: []echo.MiddlewareFunc{auth, managerOnly},
	}
}

// New builds the Echo instance with the global middleware, the jsoniter
// serializer, the validator and every route registered.
func New(h Handlers, opts Options) *echo.Echo {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = JSONSerializer{}
	e.Validator = NewValidator()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(requestLogger(opts.Logger))

	g := newGuards(opts)
	RegisterRoutes(e, h.Health)
	RegisterAuth(e, h.Auth, opts.JWTSecret)
	RegisterCatalog(e, h.Catalog, g)
	RegisterCustomers(e, h.Customers, g)
	RegisterRentals(e, h.Rentals, g)
	return e
}

// RegisterRoutes registers routes that do not require authentication and are
// never cached. Currently it exposes only the health check.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterAuth registers the staff account endpoints. Register and login are
// open; /v1/me requires a valid access token of either staff role and role
// changes require a manager.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleClerk, model.RoleManager))
	e.PUT("/v1/staff/:id/role", a.SetRole,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleManager))
}
