package handlers

import (
	"errors"

	"github.com/Felista-Njeri/inva.ai/internal/http/dto"
	"github.com/Felista-Njeri/inva.ai/internal/models"
	"github.com/gofiber/fiber/v2"
)

// ledgerError maps the ledger error taxonomy onto HTTP statuses.
func ledgerError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, models.ErrValidation):
		status = fiber.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		status = fiber.StatusForbidden
	case errors.Is(err, models.ErrInvalidState):
		status = fiber.StatusConflict
	case errors.Is(err, models.ErrPaused):
		status = fiber.StatusServiceUnavailable
	case errors.Is(err, models.ErrTransfer):
		status = fiber.StatusBadGateway
	}
	// ErrTransferStuck and ErrInvariant stay 500: both need operator attention.
	return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error()})
}
