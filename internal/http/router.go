package http

import (
	"time"

	"github.com/Felista-Njeri/inva.ai/internal/config"
	"github.com/Felista-Njeri/inva.ai/internal/http/handlers"
	"github.com/Felista-Njeri/inva.ai/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	invoiceHandler *handlers.InvoiceHandler,
	adminHandler *handlers.AdminHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/wallet", authHandler.WalletAuth)

	// Rate-limited endpoints
	if rdb != nil {
		api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))
	}

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// Invoices
	protected.Post("/invoices", invoiceHandler.CreateInvoice)
	protected.Get("/invoices", invoiceHandler.ListInvoices)
	protected.Get("/invoices/:id", invoiceHandler.GetInvoice)
	protected.Post("/invoices/:id/pay", invoiceHandler.PayInvoice)
	protected.Get("/invoices/:id/payment", invoiceHandler.GetPaymentInfo)
	protected.Post("/invoices/:id/approve", invoiceHandler.ApproveInvoice)
	protected.Post("/invoices/:id/dispute", invoiceHandler.RaiseDispute)
	protected.Post("/invoices/:id/resolve", invoiceHandler.ResolveDispute)
	protected.Post("/invoices/:id/cancel", invoiceHandler.CancelInvoice)
	protected.Get("/invoices/:id/escrow", invoiceHandler.GetEscrowBalance)
	protected.Get("/invoices/:id/dispute-reason", invoiceHandler.GetDisputeReason)
	protected.Get("/invoices/:id/metadata", invoiceHandler.GetMetadataPreview)

	// Admin (registry operations)
	admin := protected.Group("/admin", middleware.AdminMiddleware(cfg))
	admin.Post("/tokens/allow", adminHandler.AllowToken)
	admin.Post("/tokens/disallow", adminHandler.DisallowToken)
	admin.Post("/fee-collector", adminHandler.SetFeeCollector)
	admin.Post("/pause", adminHandler.SetPaused)
	admin.Post("/emergency-withdraw", adminHandler.EmergencyWithdraw)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
