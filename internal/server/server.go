package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/authfront/authfront/internal/config"
	"github.com/authfront/authfront/internal/middleware"
	"github.com/authfront/authfront/internal/routes"
)

// Server wraps the Fiber application.
type Server struct {
	app *fiber.App
	cfg config.Config
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, deps routes.Deps) (*Server, error) {
	deps.Cfg = cfg
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		Immutable:             true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(deps.Logger),
	})

	if err := routes.Setup(app, deps); err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg}, nil
}

// App exposes the underlying Fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// errorHandler renders every failure as {"detail": "..."}. Unexpected errors
// are logged and reported without internals.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := http.StatusInternalServerError
		detail := http.StatusText(http.StatusInternalServerError)

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			detail = fe.Message
		} else {
			logger.ErrorContext(c.UserContext(), "unhandled request error",
				slog.String("request_id", middleware.GetRequestID(c)),
				slog.String("route", c.Route().Path),
				slog.Any("error", err),
			)
		}

		return c.Status(code).JSON(fiber.Map{"detail": detail})
	}
}
