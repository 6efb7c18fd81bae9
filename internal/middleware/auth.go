package middleware

import (
	"strings"

	"github.com/Felista-Njeri/inva.ai/internal/auth"
	"github.com/Felista-Njeri/inva.ai/internal/config"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CtxIdentity holds the authenticated wallet address for the request. The
// ledger never infers callers; handlers read this and pass it explicitly.
const CtxIdentity = "identity"

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(CtxIdentity, claims.Address)
		return c.Next()
	}
}

func GetIdentity(c *fiber.Ctx) string {
	id, _ := c.Locals(CtxIdentity).(string)
	return id
}

// AdminMiddleware restricts a route to configured administrator addresses.
func AdminMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !cfg.IsAdmin(GetIdentity(c)) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin access required"})
		}
		return c.Next()
	}
}
