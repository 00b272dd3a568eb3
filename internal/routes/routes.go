package routes

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dmsd/dmsd/internal/auth"
	"github.com/dmsd/dmsd/internal/config"
	"github.com/dmsd/dmsd/internal/dashboard"
	"github.com/dmsd/dmsd/internal/identity"
	"github.com/dmsd/dmsd/internal/middleware"
	"github.com/dmsd/dmsd/internal/txlog"
)

// ChainProbe reports the chain a JSON-RPC node serves. *ethclient.Client satisfies it.
type ChainProbe interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	RPC      ChainProbe
	Logger   *slog.Logger
	Hub      *dashboard.Hub
	Journal  txlog.Journal
	Auth     *auth.Service
	Identity *identity.Service
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Hub == nil || d.Auth == nil || d.Identity == nil || d.Journal == nil {
		return fmt.Errorf("dashboard hub, auth, identity and journal are required")
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	if d.Logger != nil {
		app.Use(middleware.Audit(d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	authHandler := auth.NewHandler(d.Auth)
	RegisterAuthRoutes(api, authHandler, middleware.SignInRateLimit(d.Cache, 5))

	// Protected routes
	var replays middleware.ReplayStore = middleware.NewMemoryReplays()
	if d.Cache != nil {
		replays = middleware.NewRedisReplays(d.Cache)
	}
	idempotency := middleware.Idempotency(replays, d.Cfg.IdempotencyTTL, d.Logger)
	protected := api.Group("", middleware.SessionAuth(d.Auth))
	RegisterSignOutRoute(protected, authHandler)
	RegisterIdentityRoutes(protected, identity.NewHandler(d.Identity))
	RegisterDashboardRoutes(protected, dashboard.NewHandler(d.Hub, d.Journal), idempotency)

	return nil
}
