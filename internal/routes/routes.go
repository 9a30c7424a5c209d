package routes

import (
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/authfront/authfront/internal/auth"
	"github.com/authfront/authfront/internal/config"
	"github.com/authfront/authfront/internal/identity"
	"github.com/authfront/authfront/internal/metrics"
	"github.com/authfront/authfront/internal/middleware"
	"github.com/authfront/authfront/internal/notification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	Store   identity.Store
	Cache   *redis.Client
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Setup installs the middleware chain and every application route.
func Setup(app *fiber.App, d Deps) error {
	if d.Store == nil {
		return errors.New("user store is required")
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:    []byte(d.Cfg.JWTSecret),
		Algorithm: d.Cfg.JWTAlgorithm,
		TTL:       d.Cfg.AccessTokenTTL,
	})
	if err != nil {
		return err
	}
	svc := auth.NewService(
		d.Store,
		auth.NewBcryptHasher(d.Cfg.BcryptCost),
		tokens,
		notification.NewLoggerNotifier(d.Logger),
		d.Logger,
	)
	handler := auth.NewHandler(svc, d.Metrics)

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	app.Use(cors.New(corsConfig(d.Cfg.CORSAllowOrigins)))

	RegisterHealthRoutes(app, d)
	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	}

	var idempotency fiber.Handler
	if d.Cache != nil {
		idempotency = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	RegisterAuthRoutes(app, handler, svc, idempotency)

	return nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowMethods: strings.Join([]string{fiber.MethodGet, fiber.MethodPost, fiber.MethodOptions}, ","),
		AllowHeaders: strings.Join([]string{
			fiber.HeaderOrigin,
			fiber.HeaderContentType,
			fiber.HeaderAccept,
			fiber.HeaderAuthorization,
			middleware.HeaderIdempotencyKey,
			middleware.HeaderRequestID,
		}, ","),
		ExposeHeaders: middleware.HeaderRequestID,
	}
	// Browsers refuse credentials with a wildcard origin, and fiber panics on it.
	if len(origins) > 0 && !slices.Contains(origins, "*") {
		cfg.AllowCredentials = true
	}
	if cfg.AllowOrigins == "" {
		cfg.AllowOrigins = "*"
	}
	return cfg
}
