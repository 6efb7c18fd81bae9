package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Felista-Njeri/inva.ai/internal/events"
	"github.com/Felista-Njeri/inva.ai/internal/models"
	"github.com/Felista-Njeri/inva.ai/internal/repositories"
	"github.com/Felista-Njeri/inva.ai/internal/treasury"
	"go.uber.org/zap"
)

// LedgerService is the invoice lifecycle engine. Every operation takes the
// caller's identity explicitly; the service never infers who is calling.
// A single mutex serializes all mutating operations, and any outbound
// transfer runs only after the new state is committed and the mutex
// released, so a reentrant call can only observe fully settled state.
type LedgerService struct {
	store     repositories.InvoiceStore
	treasury  treasury.Treasury
	registry  *Registry
	publisher events.Publisher
	log       *zap.Logger

	mu    sync.Mutex
	nowFn func() time.Time
}

func NewLedgerService(
	store repositories.InvoiceStore,
	tr treasury.Treasury,
	registry *Registry,
	publisher events.Publisher,
	log *zap.Logger,
) *LedgerService {
	return &LedgerService{
		store:     store,
		treasury:  tr,
		registry:  registry,
		publisher: publisher,
		log:       log,
		nowFn:     time.Now,
	}
}

// SetClock replaces the logical clock. Used by tests and hosts that supply
// their own notion of time.
func (s *LedgerService) SetClock(nowFn func() time.Time) {
	s.nowFn = nowFn
}

type CreateInvoiceInput struct {
	Client                  string
	Amount                  int64
	Token                   string
	PaymentWindowSeconds    int64
	EarlyPaymentDiscountBPS int64
	RequiresApproval        bool
	Arbitrator              string
	MetadataRef             string
}

// CreateInvoice opens a new invoice with the caller as provider.
func (s *LedgerService) CreateInvoice(ctx context.Context, caller string, in CreateInvoiceInput) (*models.Invoice, error) {
	if s.registry.Paused() {
		return nil, models.ErrPaused
	}
	if caller == "" {
		return nil, fmt.Errorf("%w: empty caller identity", models.ErrValidation)
	}
	if in.Client == "" {
		return nil, fmt.Errorf("%w: empty client identity", models.ErrValidation)
	}
	if in.Client == caller {
		return nil, fmt.Errorf("%w: provider and client must differ", models.ErrValidation)
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %d", models.ErrValidation, in.Amount)
	}
	if !s.registry.IsTokenAllowed(in.Token) {
		return nil, fmt.Errorf("%w: token %q is not on the allow-list", models.ErrValidation, in.Token)
	}
	if in.PaymentWindowSeconds < models.MinPaymentWindowSeconds || in.PaymentWindowSeconds > models.MaxPaymentWindowSeconds {
		return nil, fmt.Errorf("%w: payment window %ds out of bounds [%d, %d]",
			models.ErrValidation, in.PaymentWindowSeconds, models.MinPaymentWindowSeconds, models.MaxPaymentWindowSeconds)
	}
	if in.EarlyPaymentDiscountBPS < 0 || in.EarlyPaymentDiscountBPS > models.MaxDiscountBPS {
		return nil, fmt.Errorf("%w: discount %dbps exceeds cap %dbps",
			models.ErrValidation, in.EarlyPaymentDiscountBPS, models.MaxDiscountBPS)
	}
	if in.MetadataRef == "" {
		return nil, fmt.Errorf("%w: empty metadata ref", models.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	window := time.Duration(in.PaymentWindowSeconds) * time.Second

	terms := models.PaymentTerms{
		PaymentWindowSeconds:    in.PaymentWindowSeconds,
		EarlyPaymentDiscountBPS: in.EarlyPaymentDiscountBPS,
		RequiresApproval:        in.RequiresApproval,
		Arbitrator:              in.Arbitrator,
	}
	if in.EarlyPaymentDiscountBPS > 0 {
		terms.EarlyPaymentDeadline = now.Add(window / 2)
	}

	inv := &models.Invoice{
		Provider:    caller,
		Client:      in.Client,
		Amount:      in.Amount,
		Token:       in.Token,
		Terms:       terms,
		Status:      models.InvoiceStatusCreated,
		CreatedAt:   now,
		DueDate:     now.Add(window),
		MetadataRef: in.MetadataRef,
	}

	if err := s.store.Create(ctx, inv); err != nil {
		return nil, err
	}

	_ = s.publisher.Publish(ctx, events.StreamInvoices, events.Event{
		Type: events.EventInvoiceCreated,
		Payload: map[string]any{
			"invoice_id": inv.ID,
			"provider":   inv.Provider,
			"client":     inv.Client,
			"amount":     inv.Amount,
			"token":      inv.Token,
			"due_date":   inv.DueDate,
		},
	})

	return inv, nil
}

// MakePayment records the client's payment into escrow. attachedValue is the
// native-asset value carried with the call and must match the owed amount
// exactly for native invoices; fungible amounts are pulled via the treasury
// and attachedValue must be zero. If the terms skip approval, settlement
// runs in the same operation.
//
// If persisting the paid state fails after a fungible pull succeeded, the
// invoice stays Created and the pulled funds sit in custody untracked by any
// escrow balance, so an administrator can return them via EmergencyWithdraw.
func (s *LedgerService) MakePayment(ctx context.Context, caller string, id uint64, attachedValue int64) (*models.Invoice, error) {
	if s.registry.Paused() {
		return nil, models.ErrPaused
	}

	s.mu.Lock()

	inv, err := s.store.Get(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if caller != inv.Client {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: only the client can pay invoice %d", models.ErrUnauthorized, id)
	}
	if inv.Status != models.InvoiceStatusCreated {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: invoice %d is %s", models.ErrInvalidState, id, inv.Status)
	}

	now := s.nowFn()
	if now.After(inv.DueDate) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: invoice %d expired at %s", models.ErrInvalidState, id, inv.DueDate.Format(time.RFC3339))
	}

	isEarly := inv.Terms.EarlyPaymentDiscountBPS > 0 && !now.After(inv.Terms.EarlyPaymentDeadline)
	paymentAmount := inv.Amount
	if isEarly {
		paymentAmount = models.DiscountedAmount(inv.Amount, inv.Terms.EarlyPaymentDiscountBPS)
	}

	if inv.Token == models.NativeToken {
		if attachedValue != paymentAmount {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: attached value %d does not match owed %d",
				models.ErrValidation, attachedValue, paymentAmount)
		}
	} else {
		if attachedValue != 0 {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: native value attached to a %s invoice", models.ErrValidation, inv.Token)
		}
		if err := s.treasury.TransferIn(ctx, inv.Token, caller, paymentAmount); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: pull %d %s from %s: %v", models.ErrTransfer, paymentAmount, inv.Token, caller, err)
		}
	}

	inv.EscrowBalance = paymentAmount
	inv.PaidAt = &now
	if inv.Terms.RequiresApproval {
		inv.Status = models.InvoiceStatusPaid
	} else {
		inv.Status = models.InvoiceStatusApproved
	}

	var payouts []payout
	if inv.Status == models.InvoiceStatusApproved {
		payouts, err = s.settleLocked(ctx, inv)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
	} else if err := s.store.Update(ctx, inv); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	_ = s.publisher.Publish(ctx, events.StreamInvoices, events.Event{
		Type: events.EventInvoicePaid,
		Payload: map[string]any{
			"invoice_id":     inv.ID,
			"payment_amount": paymentAmount,
			"early":          isEarly,
			"paid_at":        now,
		},
	})

	if len(payouts) > 0 {
		if err := s.finishSettlement(ctx, inv, payouts); err != nil {
			return inv, err
		}
	}

	return inv, nil
}

// ApproveInvoice releases a paid invoice's escrow. Available while paused so
// escrowed funds are never stranded.
func (s *LedgerService) ApproveInvoice(ctx context.Context, caller string, id uint64) (*models.Invoice, error) {
	s.mu.Lock()

	inv, err := s.store.Get(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if caller != inv.Client {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: only the client can approve invoice %d", models.ErrUnauthorized, id)
	}
	if inv.Status != models.InvoiceStatusPaid || !inv.Terms.RequiresApproval {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: invoice %d is %s", models.ErrInvalidState, id, inv.Status)
	}

	inv.Status = models.InvoiceStatusApproved
	payouts, err := s.settleLocked(ctx, inv)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	_ = s.publisher.Publish(ctx, events.StreamInvoices, events.Event{
		Type:    events.EventInvoiceApproved,
		Payload: map[string]any{"invoice_id": inv.ID},
	})

	if err := s.finishSettlement(ctx, inv, payouts); err != nil {
		return inv, err
	}
	return inv, nil
}

// RaiseDispute freezes a paid or approved invoice pending arbitration.
func (s *LedgerService) RaiseDispute(ctx context.Context, caller string, id uint64, reason string) (*models.Invoice, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: empty dispute reason", models.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller != inv.Provider && caller != inv.Client {
		return nil, fmt.Errorf("%w: only provider or client can dispute invoice %d", models.ErrUnauthorized, id)
	}
	if inv.Status != models.InvoiceStatusPaid && inv.Status != models.InvoiceStatusApproved {
		return nil, fmt.Errorf("%w: invoice %d is %s", models.ErrInvalidState, id, inv.Status)
	}

	inv.Status = models.InvoiceStatusDisputed
	inv.DisputeReason = reason
	if err := s.store.Update(ctx, inv); err != nil {
		return nil, err
	}

	_ = s.publisher.Publish(ctx, events.StreamInvoices, events.Event{
		Type: events.EventInvoiceDisputed,
		Payload: map[string]any{
			"invoice_id": inv.ID,
			"raised_by":  caller,
			"reason":     reason,
		},
	})

	return inv, nil
}

// ResolveDispute settles a disputed invoice. In the provider's favor the
// normal fee split applies; otherwise the full escrow goes back to the
// client. Only the invoice's arbitrator or a ledger administrator may call.
func (s *LedgerService) ResolveDispute(ctx context.Context, caller string, id uint64, favorProvider bool) (*models.Invoice, error) {
	s.mu.Lock()

	inv, err := s.store.Get(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	isArbitrator := inv.Terms.Arbitrator != "" && caller == inv.Terms.Arbitrator
	if !isArbitrator && !s.registry.IsAdmin(caller) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: only the arbitrator or an administrator can resolve invoice %d", models.ErrUnauthorized, id)
	}
	if inv.Status != models.InvoiceStatusDisputed {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: invoice %d is %s", models.ErrInvalidState, id, inv.Status)
	}
	if inv.EscrowBalance <= 0 {
		s.mu.Unlock()
		s.log.Error("disputed invoice has no escrow",
			zap.Uint64("invoice_id", inv.ID),
			zap.Int64("escrow_balance", inv.EscrowBalance),
		)
		return nil, fmt.Errorf("%w: disputed invoice %d has escrow balance %d", models.ErrInvariant, id, inv.EscrowBalance)
	}

	balance := inv.EscrowBalance
	inv.EscrowBalance = 0

	var payouts []payout
	if favorProvider {
		fee := models.PlatformFee(balance, s.registry.FeeBPS())
		inv.Status = models.InvoiceStatusCompleted
		payouts = append(payouts, payout{token: inv.Token, to: inv.Provider, amount: balance - fee})
		if fee > 0 {
			payouts = append(payouts, payout{token: inv.Token, to: s.registry.FeeCollector(), amount: fee})
		}
	} else {
		inv.Status = models.InvoiceStatusRefunded
		payouts = append(payouts, payout{token: inv.Token, to: inv.Client, amount: balance})
	}

	if err := s.store.Update(ctx, inv); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	_ = s.publisher.Publish(ctx, events.StreamInvoices, events.Event{
		Type: events.EventInvoiceResolved,
		Payload: map[string]any{
			"invoice_id":     inv.ID,
			"favor_provider": favorProvider,
			"resolved_by":    caller,
			"status":         inv.Status,
		},
	})

	if err := s.executePayouts(ctx, inv, payouts); err != nil {
		return inv, err
	}
	return inv, nil
}

// CancelInvoice withdraws a never-paid invoice.
func (s *LedgerService) CancelInvoice(ctx context.Context, caller string, id uint64) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller != inv.Provider {
		return nil, fmt.Errorf("%w: only the provider can cancel invoice %d", models.ErrUnauthorized, id)
	}
	if inv.Status != models.InvoiceStatusCreated {
		return nil, fmt.Errorf("%w: invoice %d is %s", models.ErrInvalidState, id, inv.Status)
	}

	inv.Status = models.InvoiceStatusCancelled
	if err := s.store.Update(ctx, inv); err != nil {
		return nil, err
	}

	_ = s.publisher.Publish(ctx, events.StreamInvoices, events.Event{
		Type:    events.EventInvoiceCancelled,
		Payload: map[string]any{"invoice_id": inv.ID},
	})

	return inv, nil
}

// --- reads ---

func (s *LedgerService) GetInvoice(ctx context.Context, id uint64) (*models.Invoice, error) {
	return s.store.Get(ctx, id)
}

func (s *LedgerService) ListByProvider(ctx context.Context, provider string) ([]uint64, error) {
	return s.store.ListByProvider(ctx, provider)
}

func (s *LedgerService) ListByClient(ctx context.Context, client string) ([]uint64, error) {
	return s.store.ListByClient(ctx, client)
}

func (s *LedgerService) EscrowBalance(ctx context.Context, id uint64) (int64, error) {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return inv.EscrowBalance, nil
}

// AmountOwed reports what a payment made right now would cost, early
// discount included. Only meaningful for unpaid invoices.
func (s *LedgerService) AmountOwed(ctx context.Context, id uint64) (int64, error) {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if inv.Status != models.InvoiceStatusCreated {
		return 0, fmt.Errorf("%w: invoice %d is %s", models.ErrInvalidState, id, inv.Status)
	}
	now := s.nowFn()
	if inv.Terms.EarlyPaymentDiscountBPS > 0 && !now.After(inv.Terms.EarlyPaymentDeadline) {
		return models.DiscountedAmount(inv.Amount, inv.Terms.EarlyPaymentDiscountBPS), nil
	}
	return inv.Amount, nil
}

func (s *LedgerService) DisputeReason(ctx context.Context, id uint64) (string, error) {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return inv.DisputeReason, nil
}
