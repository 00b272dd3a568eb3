package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/text/language"

	"github.com/dmsd/dmsd/internal/auth"
	"github.com/dmsd/dmsd/internal/config"
	"github.com/dmsd/dmsd/internal/contract"
	"github.com/dmsd/dmsd/internal/dashboard"
	"github.com/dmsd/dmsd/internal/identity"
	"github.com/dmsd/dmsd/internal/notification"
	"github.com/dmsd/dmsd/internal/routes"
	"github.com/dmsd/dmsd/internal/txlog"
)

// Infra carries the connections and backends main opened. DB, Cache and RPC
// may be nil in development; in-process fallbacks take their place.
type Infra struct {
	DB       *pgxpool.Pool
	Cache    *redis.Client
	RPC      routes.ChainProbe
	Contract contract.Client
	Signers  dashboard.Signers
}

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app       *fiber.App
	cfg       config.Config
	hub       *dashboard.Hub
	stopSweep func()
}

const sweepInterval = time.Minute

// New builds the services, instantiates the HTTP server and delegates route
// wiring to routes.Setup.
func New(cfg config.Config, infra Infra, logger *slog.Logger) (*Server, error) {
	if infra.Contract == nil || infra.Signers == nil {
		return nil, errors.New("contract backend and signers are required")
	}
	contractAddress := common.HexToAddress(cfg.ContractAddress)
	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		return nil, fmt.Errorf("parse LOCALE: %w", err)
	}

	var (
		journal   txlog.Journal
		accounts  identity.Repository
		nonces    auth.NonceStore
		snapshots dashboard.SnapshotStore
		notifier  notification.Notifier = notification.NewLoggerNotifier(logger)
	)
	if infra.DB != nil {
		journal = txlog.NewPostgresJournal(infra.DB)
		accounts = identity.NewPostgresRepository(infra.DB)
	} else {
		journal = txlog.NewInMemory()
		accounts = identity.NewMemoryRepository()
	}
	if infra.Cache != nil {
		nonces = auth.NewRedisNonceStore(infra.Cache)
		snapshots = dashboard.NewRedisSnapshotStore(infra.Cache)
		notifier = notification.Multi{notifier, notification.NewRedisNotifier(infra.Cache)}
	} else {
		nonces = auth.NewMemoryNonceStore()
		snapshots = dashboard.NewMemorySnapshotStore()
	}

	hub := dashboard.NewHub(contractAddress, dashboard.Deps{
		Contract:  infra.Contract,
		Signers:   infra.Signers,
		Journal:   journal,
		Notifier:  notifier,
		Logger:    logger,
		Language:  tag,
		TxTimeout: cfg.TxTimeout,
	}, snapshots, cfg.SessionTTL, logger)

	ids := identity.NewService(accounts)
	authSvc := auth.NewService(cfg, ids, nonces, hub, logger)
	hub.SetLogoutHook(authSvc.EndSession)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	if err := routes.Setup(app, routes.Deps{
		Cfg:      cfg,
		DB:       infra.DB,
		Cache:    infra.Cache,
		RPC:      infra.RPC,
		Logger:   logger,
		Hub:      hub,
		Journal:  journal,
		Auth:     authSvc,
		Identity: ids,
	}); err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, hub: hub, stopSweep: hub.StartSweeper(sweepInterval)}, nil
}

// App exposes the Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown stops accepting requests, then closes every dashboard session.
// Session snapshots survive so clients reconnect to the same dashboards.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopSweep()
	httpErr := s.app.ShutdownWithContext(ctx)
	return errors.Join(httpErr, s.hub.Shutdown(ctx))
}
