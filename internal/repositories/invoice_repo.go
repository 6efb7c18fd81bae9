package repositories

import (
	"context"
	"errors"

	"github.com/Felista-Njeri/inva.ai/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InvoiceRepo is the postgres-backed InvoiceStore. Ids come from the
// invoices sequence, so they stay monotonic and are never reused.
type InvoiceRepo struct {
	pool *pgxpool.Pool
}

func NewInvoiceRepo(pool *pgxpool.Pool) *InvoiceRepo {
	return &InvoiceRepo{pool: pool}
}

func (r *InvoiceRepo) Create(ctx context.Context, inv *models.Invoice) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO invoices (
			provider, client, amount, token,
			payment_window_seconds, early_payment_discount_bps, early_payment_deadline,
			requires_approval, arbitrator,
			status, created_at, due_date, metadata_ref,
			escrow_balance, dispute_reason
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`, inv.Provider, inv.Client, inv.Amount, inv.Token,
		inv.Terms.PaymentWindowSeconds, inv.Terms.EarlyPaymentDiscountBPS, inv.Terms.EarlyPaymentDeadline,
		inv.Terms.RequiresApproval, inv.Terms.Arbitrator,
		inv.Status, inv.CreatedAt, inv.DueDate, inv.MetadataRef,
		inv.EscrowBalance, inv.DisputeReason).Scan(&inv.ID)
}

func (r *InvoiceRepo) Get(ctx context.Context, id uint64) (*models.Invoice, error) {
	var inv models.Invoice
	err := r.pool.QueryRow(ctx, `
		SELECT id, provider, client, amount, token,
		       payment_window_seconds, early_payment_discount_bps, early_payment_deadline,
		       requires_approval, arbitrator,
		       status, created_at, due_date, paid_at, metadata_ref,
		       escrow_balance, dispute_reason
		FROM invoices WHERE id = $1
	`, id).Scan(&inv.ID, &inv.Provider, &inv.Client, &inv.Amount, &inv.Token,
		&inv.Terms.PaymentWindowSeconds, &inv.Terms.EarlyPaymentDiscountBPS, &inv.Terms.EarlyPaymentDeadline,
		&inv.Terms.RequiresApproval, &inv.Terms.Arbitrator,
		&inv.Status, &inv.CreatedAt, &inv.DueDate, &inv.PaidAt, &inv.MetadataRef,
		&inv.EscrowBalance, &inv.DisputeReason)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvoiceRepo) Update(ctx context.Context, inv *models.Invoice) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices SET
			status = $1, paid_at = $2, escrow_balance = $3, dispute_reason = $4
		WHERE id = $5
	`, inv.Status, inv.PaidAt, inv.EscrowBalance, inv.DisputeReason, inv.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *InvoiceRepo) ListByProvider(ctx context.Context, provider string) ([]uint64, error) {
	return r.listIDs(ctx, `SELECT id FROM invoices WHERE provider = $1 ORDER BY id`, provider)
}

func (r *InvoiceRepo) ListByClient(ctx context.Context, client string) ([]uint64, error) {
	return r.listIDs(ctx, `SELECT id FROM invoices WHERE client = $1 ORDER BY id`, client)
}

func (r *InvoiceRepo) listIDs(ctx context.Context, query, arg string) ([]uint64, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *InvoiceRepo) EscrowTotal(ctx context.Context, token string) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(escrow_balance), 0) FROM invoices WHERE token = $1
	`, token).Scan(&total)
	return total, err
}
