package repositories

import (
	"context"

	"github.com/Felista-Njeri/inva.ai/internal/models"
)

// InvoiceStore is the ledger's storage contract. It holds invoice records
// (including escrow balance and dispute reason) plus derived provider/client
// indices, and carries no business logic. Updates replace the whole record,
// so a failed operation never leaves a partially written invoice behind.
type InvoiceStore interface {
	// Create assigns the next monotonic id, stores the invoice and appends
	// it to the provider and client indices.
	Create(ctx context.Context, inv *models.Invoice) error

	// Get returns the invoice for id, or models.ErrNotFound.
	Get(ctx context.Context, id uint64) (*models.Invoice, error)

	// Update persists the full record for an existing invoice.
	Update(ctx context.Context, inv *models.Invoice) error

	// ListByProvider / ListByClient return invoice ids in creation order.
	ListByProvider(ctx context.Context, provider string) ([]uint64, error)
	ListByClient(ctx context.Context, client string) ([]uint64, error)

	// EscrowTotal returns the sum of escrow balances currently held for a token.
	EscrowTotal(ctx context.Context, token string) (int64, error)
}
