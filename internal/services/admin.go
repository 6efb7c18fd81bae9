package services

import (
	"context"
	"fmt"

	"github.com/Felista-Njeri/inva.ai/internal/models"
	"go.uber.org/zap"
)

// Administrative surface. These operations stay available while the ledger
// is paused.

func (s *LedgerService) requireAdmin(caller string) error {
	if !s.registry.IsAdmin(caller) {
		return fmt.Errorf("%w: %s is not an administrator", models.ErrUnauthorized, caller)
	}
	return nil
}

func (s *LedgerService) AllowToken(_ context.Context, caller, token string) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("%w: empty token", models.ErrValidation)
	}
	s.registry.AllowToken(token)
	s.log.Info("token allowed", zap.String("token", token), zap.String("by", caller))
	return nil
}

func (s *LedgerService) DisallowToken(_ context.Context, caller, token string) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	s.registry.DisallowToken(token)
	s.log.Info("token disallowed", zap.String("token", token), zap.String("by", caller))
	return nil
}

func (s *LedgerService) SetFeeCollector(_ context.Context, caller, collector string) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if collector == "" {
		return fmt.Errorf("%w: empty fee collector", models.ErrValidation)
	}
	s.registry.SetFeeCollector(collector)
	s.log.Info("fee collector rotated", zap.String("collector", collector), zap.String("by", caller))
	return nil
}

// SetPaused engages or releases the pause switch. While paused, operations
// that accept new funds (create, pay) fail immediately; approval, disputes,
// resolution and cancellation stay available so escrowed funds can always
// reach a terminal state.
func (s *LedgerService) SetPaused(_ context.Context, caller string, paused bool) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	s.registry.SetPaused(paused)
	s.log.Warn("pause switch changed", zap.Bool("paused", paused), zap.String("by", caller))
	return nil
}

// EmergencyWithdraw extracts token balance held by the treasury beyond what
// invoices track: stray transfers, not active escrow. Withdrawing into
// tracked escrow is refused.
func (s *LedgerService) EmergencyWithdraw(ctx context.Context, caller, token, to string, amount int64) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if to == "" {
		return fmt.Errorf("%w: empty destination", models.ErrValidation)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", models.ErrValidation, amount)
	}

	s.mu.Lock()
	held, err := s.treasury.Balance(ctx, token)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: read treasury balance: %v", models.ErrTransfer, err)
	}
	tracked, err := s.store.EscrowTotal(ctx, token)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if amount > held-tracked {
		s.mu.Unlock()
		return fmt.Errorf("%w: withdraw %d exceeds untracked balance %d (held %d, escrowed %d)",
			models.ErrValidation, amount, held-tracked, held, tracked)
	}
	s.mu.Unlock()

	if err := s.treasury.TransferOut(ctx, token, to, amount); err != nil {
		return fmt.Errorf("%w: emergency withdraw %d %s to %s: %v", models.ErrTransfer, amount, token, to, err)
	}

	s.log.Warn("emergency withdrawal executed",
		zap.String("token", token),
		zap.String("to", to),
		zap.Int64("amount", amount),
		zap.String("by", caller),
	)
	return nil
}
