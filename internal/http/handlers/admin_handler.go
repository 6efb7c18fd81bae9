package handlers

import (
	"github.com/Felista-Njeri/inva.ai/internal/http/dto"
	"github.com/Felista-Njeri/inva.ai/internal/middleware"
	"github.com/Felista-Njeri/inva.ai/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AdminHandler struct {
	ledger *services.LedgerService
	log    *zap.Logger
}

func NewAdminHandler(ledger *services.LedgerService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{ledger: ledger, log: log}
}

func (h *AdminHandler) AllowToken(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if err := h.ledger.AllowToken(c.Context(), middleware.GetIdentity(c), req.Token); err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *AdminHandler) DisallowToken(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if err := h.ledger.DisallowToken(c.Context(), middleware.GetIdentity(c), req.Token); err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *AdminHandler) SetFeeCollector(c *fiber.Ctx) error {
	var req dto.FeeCollectorRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if err := h.ledger.SetFeeCollector(c.Context(), middleware.GetIdentity(c), req.Collector); err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *AdminHandler) SetPaused(c *fiber.Ctx) error {
	var req dto.PauseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if err := h.ledger.SetPaused(c.Context(), middleware.GetIdentity(c), req.Paused); err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *AdminHandler) EmergencyWithdraw(c *fiber.Ctx) error {
	var req dto.EmergencyWithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if err := h.ledger.EmergencyWithdraw(c.Context(), middleware.GetIdentity(c), req.Token, req.To, req.Amount); err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
