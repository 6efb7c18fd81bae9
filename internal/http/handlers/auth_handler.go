package handlers

import (
	"github.com/Felista-Njeri/inva.ai/internal/auth"
	"github.com/Felista-Njeri/inva.ai/internal/config"
	"github.com/Felista-Njeri/inva.ai/internal/http/dto"
	"github.com/Felista-Njeri/inva.ai/internal/ton"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuthHandler struct {
	cfg *config.Config
	log *zap.Logger
}

func NewAuthHandler(cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, log: log}
}

// WalletAuth exchanges a TON Connect ton_proof for a JWT carrying the wallet
// address as the caller identity.
func (h *AuthHandler) WalletAuth(c *fiber.Ctx) error {
	var req dto.WalletAuthRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	workchain, addressHash, err := ton.ParseRawAddress(req.Proof.Address)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	if err := ton.VerifyProof(req.Proof.PublicKey, addressHash, workchain, req.Proof.Proof, h.cfg.TONProofAllowedDomains); err != nil {
		h.log.Debug("wallet proof rejected", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "proof verification failed"})
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, req.Proof.Address, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("jwt generation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.AuthResponse{Token: token, Address: req.Proof.Address})
}
