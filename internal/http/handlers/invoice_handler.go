package handlers

import (
	"strconv"

	"github.com/Felista-Njeri/inva.ai/internal/config"
	"github.com/Felista-Njeri/inva.ai/internal/http/dto"
	"github.com/Felista-Njeri/inva.ai/internal/metadata"
	"github.com/Felista-Njeri/inva.ai/internal/middleware"
	"github.com/Felista-Njeri/inva.ai/internal/models"
	"github.com/Felista-Njeri/inva.ai/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type InvoiceHandler struct {
	ledger  *services.LedgerService
	preview *metadata.Fetcher
	cfg     *config.Config
	log     *zap.Logger
}

func NewInvoiceHandler(ledger *services.LedgerService, preview *metadata.Fetcher, cfg *config.Config, log *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{ledger: ledger, preview: preview, cfg: cfg, log: log}
}

func invoiceID(c *fiber.Ctx) (uint64, error) {
	return strconv.ParseUint(c.Params("id"), 10, 64)
}

func (h *InvoiceHandler) CreateInvoice(c *fiber.Ctx) error {
	var req dto.CreateInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	caller := middleware.GetIdentity(c)
	inv, err := h.ledger.CreateInvoice(c.Context(), caller, services.CreateInvoiceInput{
		Client:                  req.Client,
		Amount:                  req.Amount,
		Token:                   req.Token,
		PaymentWindowSeconds:    req.PaymentWindowSeconds,
		EarlyPaymentDiscountBPS: req.EarlyPaymentDiscountBPS,
		RequiresApproval:        req.RequiresApproval,
		Arbitrator:              req.Arbitrator,
		MetadataRef:             req.MetadataRef,
	})
	if err != nil {
		return ledgerError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: inv})
}

func (h *InvoiceHandler) GetInvoice(c *fiber.Ctx) error {
	id, err := invoiceID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid invoice id"})
	}

	inv, err := h.ledger.GetInvoice(c.Context(), id)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: inv})
}

// ListInvoices returns the caller's invoice ids, as provider or client
// depending on the role query param.
func (h *InvoiceHandler) ListInvoices(c *fiber.Ctx) error {
	caller := middleware.GetIdentity(c)

	var (
		ids []uint64
		err error
	)
	switch c.Query("role") {
	case "client":
		ids, err = h.ledger.ListByClient(c.Context(), caller)
	default:
		ids, err = h.ledger.ListByProvider(c.Context(), caller)
	}
	if err != nil {
		h.log.Error("list invoices failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: ids})
}

// PayInvoice settles a fungible-token invoice by pulling funds through the
// treasury, or records an exact-value native payment. Native invoices are
// normally funded on-chain and recorded by the deposit watcher; this
// endpoint covers hosts where value can be attached to the call.
func (h *InvoiceHandler) PayInvoice(c *fiber.Ctx) error {
	id, err := invoiceID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid invoice id"})
	}

	var req dto.PayInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	caller := middleware.GetIdentity(c)
	inv, err := h.ledger.MakePayment(c.Context(), caller, id, req.AttachedValue)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: inv})
}

// GetPaymentInfo tells the client where and how much to deposit for a
// native-asset invoice.
func (h *InvoiceHandler) GetPaymentInfo(c *fiber.Ctx) error {
	id, err := invoiceID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid invoice id"})
	}

	inv, err := h.ledger.GetInvoice(c.Context(), id)
	if err != nil {
		return ledgerError(c, err)
	}
	if inv.Token != models.NativeToken {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: "invoice is not payable with the native asset"})
	}

	owed, err := h.ledger.AmountOwed(c.Context(), id)
	if err != nil {
		return ledgerError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.PaymentInfoResponse{
		InvoiceID:      inv.ID,
		DepositAddress: h.cfg.TONHotWalletAddress,
		Memo:           models.PaymentMemo(inv.ID),
		AmountNano:     owed,
		Status:         inv.Status,
	}})
}

func (h *InvoiceHandler) ApproveInvoice(c *fiber.Ctx) error {
	id, err := invoiceID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid invoice id"})
	}

	caller := middleware.GetIdentity(c)
	inv, err := h.ledger.ApproveInvoice(c.Context(), caller, id)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: inv})
}

func (h *InvoiceHandler) RaiseDispute(c *fiber.Ctx) error {
	id, err := invoiceID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid invoice id"})
	}

	var req dto.RaiseDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	caller := middleware.GetIdentity(c)
	inv, err := h.ledger.RaiseDispute(c.Context(), caller, id, req.Reason)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: inv})
}

func (h *InvoiceHandler) ResolveDispute(c *fiber.Ctx) error {
	id, err := invoiceID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid invoice id"})
	}

	var req dto.ResolveDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	caller := middleware.GetIdentity(c)
	inv, err := h.ledger.ResolveDispute(c.Context(), caller, id, req.FavorProvider)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: inv})
}

func (h *InvoiceHandler) CancelInvoice(c *fiber.Ctx) error {
	id, err := invoiceID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid invoice id"})
	}

	caller := middleware.GetIdentity(c)
	inv, err := h.ledger.CancelInvoice(c.Context(), caller, id)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: inv})
}

func (h *InvoiceHandler) GetEscrowBalance(c *fiber.Ctx) error {
	id, err := invoiceID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid invoice id"})
	}

	balance, err := h.ledger.EscrowBalance(c.Context(), id)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"escrow_balance": balance}})
}

func (h *InvoiceHandler) GetDisputeReason(c *fiber.Ctx) error {
	id, err := invoiceID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid invoice id"})
	}

	reason, err := h.ledger.DisputeReason(c.Context(), id)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"dispute_reason": reason}})
}

// GetMetadataPreview resolves the invoice's off-ledger metadata ref into a
// human-readable preview. Purely presentational; the ledger itself never
// interprets the ref.
func (h *InvoiceHandler) GetMetadataPreview(c *fiber.Ctx) error {
	id, err := invoiceID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid invoice id"})
	}

	inv, err := h.ledger.GetInvoice(c.Context(), id)
	if err != nil {
		return ledgerError(c, err)
	}

	preview, err := h.preview.Fetch(c.Context(), inv.MetadataRef)
	if err != nil {
		h.log.Debug("metadata preview failed", zap.String("ref", inv.MetadataRef), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: "metadata not reachable"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.MetadataPreviewResponse{
		Ref:         inv.MetadataRef,
		Title:       preview.Title,
		Description: preview.Description,
	}})
}
