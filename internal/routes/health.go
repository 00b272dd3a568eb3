package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RegisterHealthRoutes adds liveness/readiness style endpoints.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		dbStatus := "ok"
		redisStatus := "ok"
		rpcStatus := "ok"

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if d.DB != nil {
			if err := d.DB.Ping(ctx); err != nil {
				dbStatus = err.Error()
			}
		} else {
			dbStatus = "memory"
		}
		if d.Cache != nil {
			if err := d.Cache.Ping(ctx).Err(); err != nil {
				redisStatus = err.Error()
			}
		} else {
			redisStatus = "memory"
		}
		if d.RPC != nil {
			if _, err := d.RPC.ChainID(ctx); err != nil {
				rpcStatus = err.Error()
			}
		} else {
			rpcStatus = "memory"
		}

		status := http.StatusOK
		for _, s := range []string{dbStatus, redisStatus, rpcStatus} {
			if s != "ok" && s != "memory" {
				status = http.StatusServiceUnavailable
			}
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    fiber.Map{"postgres": dbStatus, "redis": redisStatus, "rpc": rpcStatus},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
