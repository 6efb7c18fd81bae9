package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Felista-Njeri/inva.ai/internal/config"
	"github.com/Felista-Njeri/inva.ai/internal/db"
	"github.com/Felista-Njeri/inva.ai/internal/events"
	apphttp "github.com/Felista-Njeri/inva.ai/internal/http"
	"github.com/Felista-Njeri/inva.ai/internal/http/handlers"
	"github.com/Felista-Njeri/inva.ai/internal/metadata"
	"github.com/Felista-Njeri/inva.ai/internal/repositories"
	"github.com/Felista-Njeri/inva.ai/internal/services"
	tonconn "github.com/Felista-Njeri/inva.ai/internal/ton"
	"github.com/Felista-Njeri/inva.ai/internal/treasury"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Invoice store
	var store repositories.InvoiceStore
	if cfg.StoreBackend == "memory" {
		log.Warn("using in-memory invoice store, state is lost on restart")
		store = repositories.NewMemoryStore()
	} else {
		pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
		if err != nil {
			log.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()

		if err := db.RunMigrations(ctx, pool, log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
		store = repositories.NewInvoiceRepo(pool)
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Treasury
	var tr treasury.Treasury
	if cfg.TreasuryBackend == "bank" {
		log.Warn("using in-process bank treasury, no real funds move")
		tr = treasury.NewBank()
	} else {
		api, err := tonconn.ConnectAPI(ctx, cfg.TONNetwork, cfg.LiteServerHost, cfg.LiteServerPort, cfg.LiteServerKey, log)
		if err != nil {
			log.Fatal("failed to connect to TON network", zap.Error(err))
		}
		tr, err = treasury.NewTONTreasury(ctx, api, cfg.TONHotWalletSeed, log)
		if err != nil {
			log.Fatal("failed to init TON treasury", zap.Error(err))
		}
	}

	// Services
	registry := services.NewRegistry(cfg.AdminAddresses, cfg.AllowedTokens, cfg.FeeCollectorAddress, cfg.PlatformFeeBPS)
	ledger := services.NewLedgerService(store, tr, registry, publisher, log)
	preview := metadata.NewFetcher(cfg.MetadataFetchTimeoutMS, cfg.MetadataFetchMaxRetries, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(cfg, log)
	invoiceHandler := handlers.NewInvoiceHandler(ledger, preview, cfg, log)
	adminHandler := handlers.NewAdminHandler(ledger, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, invoiceHandler, adminHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
