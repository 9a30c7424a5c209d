package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	healthOK          = "ok"
	healthUnavailable = "unavailable"
	healthDisabled    = "disabled"
)

// RegisterHealthRoutes adds the liveness endpoint covering the store and cache.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		storeStatus := healthOK
		if err := d.Store.Ping(ctx); err != nil {
			storeStatus = healthUnavailable
			d.Logger.WarnContext(ctx, "health: store ping failed", slog.Any("error", err))
		}

		cacheStatus := healthDisabled
		if d.Cache != nil {
			cacheStatus = healthOK
			if err := d.Cache.Ping(ctx).Err(); err != nil {
				cacheStatus = healthUnavailable
				d.Logger.WarnContext(ctx, "health: redis ping failed", slog.Any("error", err))
			}
		}

		status := http.StatusOK
		if storeStatus != healthOK || cacheStatus == healthUnavailable {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    fiber.Map{"store": storeStatus, "redis": cacheStatus},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
