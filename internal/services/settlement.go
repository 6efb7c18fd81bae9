package services

import (
	"context"
	"fmt"

	"github.com/Felista-Njeri/inva.ai/internal/events"
	"github.com/Felista-Njeri/inva.ai/internal/models"
	"go.uber.org/zap"
)

// payout is an outbound transfer owed after state has been committed.
type payout struct {
	token  string
	to     string
	amount int64
}

// settleLocked performs the one-time release of an approved invoice's escrow:
// it zeroes the balance, flips the status to completed and persists BOTH
// before any transfer happens. The caller holds s.mu and must release it
// before executing the returned payouts, so that a transfer that re-enters
// the ledger finds a fully settled invoice.
func (s *LedgerService) settleLocked(ctx context.Context, inv *models.Invoice) ([]payout, error) {
	if inv.Status != models.InvoiceStatusApproved {
		s.log.Error("settlement invoked outside approved state",
			zap.Uint64("invoice_id", inv.ID),
			zap.String("status", inv.Status),
		)
		return nil, fmt.Errorf("%w: settlement on %s invoice %d", models.ErrInvariant, inv.Status, inv.ID)
	}
	if inv.EscrowBalance <= 0 {
		s.log.Error("settlement invoked with empty escrow",
			zap.Uint64("invoice_id", inv.ID),
			zap.Int64("escrow_balance", inv.EscrowBalance),
		)
		return nil, fmt.Errorf("%w: approved invoice %d has escrow balance %d", models.ErrInvariant, inv.ID, inv.EscrowBalance)
	}

	balance := inv.EscrowBalance
	fee := models.PlatformFee(balance, s.registry.FeeBPS())
	providerAmount := balance - fee

	inv.EscrowBalance = 0
	inv.Status = models.InvoiceStatusCompleted
	if err := s.store.Update(ctx, inv); err != nil {
		return nil, err
	}

	payouts := []payout{{token: inv.Token, to: inv.Provider, amount: providerAmount}}
	if fee > 0 {
		payouts = append(payouts, payout{token: inv.Token, to: s.registry.FeeCollector(), amount: fee})
	}
	return payouts, nil
}

// finishSettlement announces the settlement and pays out. Runs outside the
// service mutex.
func (s *LedgerService) finishSettlement(ctx context.Context, inv *models.Invoice, payouts []payout) error {
	providerAmount := payouts[0].amount
	var fee int64
	if len(payouts) > 1 {
		fee = payouts[1].amount
	}

	_ = s.publisher.Publish(ctx, events.StreamInvoices, events.Event{
		Type: events.EventInvoiceSettled,
		Payload: map[string]any{
			"invoice_id":      inv.ID,
			"provider_amount": providerAmount,
			"platform_fee":    fee,
			"token":           inv.Token,
		},
	})

	return s.executePayouts(ctx, inv, payouts)
}

// executePayouts issues the outbound transfers for an already-committed
// settlement or refund. A failure here cannot be rolled back: the invoice is
// already terminal and the funds are accounted for but physically stuck, so
// the error is flagged for administrator recovery instead of being retried
// or reversed.
func (s *LedgerService) executePayouts(ctx context.Context, inv *models.Invoice, payouts []payout) error {
	for _, p := range payouts {
		if err := s.treasury.TransferOut(ctx, p.token, p.to, p.amount); err != nil {
			s.log.Error("outbound transfer failed after settlement commit — funds stuck",
				zap.Uint64("invoice_id", inv.ID),
				zap.String("token", p.token),
				zap.String("to", p.to),
				zap.Int64("amount", p.amount),
				zap.Error(err),
			)
			return fmt.Errorf("%w: invoice %d, %d %s to %s: %v",
				models.ErrTransferStuck, inv.ID, p.amount, p.token, p.to, err)
		}
	}
	return nil
}
