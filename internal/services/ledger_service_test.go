package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Felista-Njeri/inva.ai/internal/events"
	"github.com/Felista-Njeri/inva.ai/internal/models"
	"github.com/Felista-Njeri/inva.ai/internal/repositories"
	"github.com/Felista-Njeri/inva.ai/internal/treasury"
	"go.uber.org/zap"
)

const (
	provider     = "wallet-provider"
	client       = "wallet-client"
	arbitrator   = "wallet-arbitrator"
	admin        = "wallet-admin"
	feeCollector = "wallet-fees"

	daySeconds = int64(86400)
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	svc   *LedgerService
	store *repositories.MemoryStore
	bank  *treasury.Bank
	pub   *recordingPublisher
	base  time.Time
	now   *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := repositories.NewMemoryStore()
	bank := treasury.NewBank()
	registry := NewRegistry([]string{admin}, []string{models.NativeToken, "USDT"}, feeCollector, 50)
	pub := &recordingPublisher{}
	svc := NewLedgerService(store, bank, registry, pub, zap.NewNop())

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	svc.SetClock(func() time.Time { return now })

	return &fixture{svc: svc, store: store, bank: bank, pub: pub, base: base, now: &now}
}

func (f *fixture) advance(d time.Duration) {
	*f.now = f.now.Add(d)
}

// createNative opens a standard native invoice: 1000 nano, 30 day window,
// 500bps early discount.
func (f *fixture) createNative(t *testing.T, requiresApproval bool) *models.Invoice {
	t.Helper()
	inv, err := f.svc.CreateInvoice(context.Background(), provider, CreateInvoiceInput{
		Client:                  client,
		Amount:                  1000,
		Token:                   models.NativeToken,
		PaymentWindowSeconds:    30 * daySeconds,
		EarlyPaymentDiscountBPS: 500,
		RequiresApproval:        requiresApproval,
		Arbitrator:              arbitrator,
		MetadataRef:             "https://example.com/invoice/1",
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	return inv
}

func TestCreateInvoiceValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	valid := CreateInvoiceInput{
		Client:               client,
		Amount:               1000,
		Token:                models.NativeToken,
		PaymentWindowSeconds: 30 * daySeconds,
		MetadataRef:          "ref",
	}

	tests := []struct {
		name   string
		caller string
		mutate func(*CreateInvoiceInput)
	}{
		{"empty caller", "", func(in *CreateInvoiceInput) {}},
		{"empty client", provider, func(in *CreateInvoiceInput) { in.Client = "" }},
		{"self invoice", provider, func(in *CreateInvoiceInput) { in.Client = provider }},
		{"zero amount", provider, func(in *CreateInvoiceInput) { in.Amount = 0 }},
		{"negative amount", provider, func(in *CreateInvoiceInput) { in.Amount = -5 }},
		{"disallowed token", provider, func(in *CreateInvoiceInput) { in.Token = "DOGE" }},
		{"window too short", provider, func(in *CreateInvoiceInput) { in.PaymentWindowSeconds = daySeconds - 1 }},
		{"window too long", provider, func(in *CreateInvoiceInput) { in.PaymentWindowSeconds = 366 * daySeconds }},
		{"discount over cap", provider, func(in *CreateInvoiceInput) { in.EarlyPaymentDiscountBPS = 5001 }},
		{"empty metadata ref", provider, func(in *CreateInvoiceInput) { in.MetadataRef = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := f.svc.CreateInvoice(ctx, tt.caller, in)
			if !errors.Is(err, models.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}

	if _, err := f.svc.CreateInvoice(ctx, provider, valid); err != nil {
		t.Errorf("valid input rejected: %v", err)
	}
}

func TestCreateInvoiceTerms(t *testing.T) {
	f := newFixture(t)

	inv := f.createNative(t, false)

	if inv.Status != models.InvoiceStatusCreated {
		t.Errorf("status = %s, want %s", inv.Status, models.InvoiceStatusCreated)
	}
	wantDue := f.base.Add(30 * 24 * time.Hour)
	if !inv.DueDate.Equal(wantDue) {
		t.Errorf("due date = %s, want %s", inv.DueDate, wantDue)
	}
	wantDeadline := f.base.Add(15 * 24 * time.Hour)
	if !inv.Terms.EarlyPaymentDeadline.Equal(wantDeadline) {
		t.Errorf("early deadline = %s, want %s", inv.Terms.EarlyPaymentDeadline, wantDeadline)
	}

	// No discount, no deadline.
	flat, err := f.svc.CreateInvoice(context.Background(), provider, CreateInvoiceInput{
		Client:               client,
		Amount:               500,
		Token:                models.NativeToken,
		PaymentWindowSeconds: 2 * daySeconds,
		MetadataRef:          "ref",
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if !flat.Terms.EarlyPaymentDeadline.IsZero() {
		t.Errorf("deadline should be zero without a discount, got %s", flat.Terms.EarlyPaymentDeadline)
	}
}

func TestEarlyPaymentAutoSettles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.createNative(t, false)

	// Attached native value lands in custody before the ledger records it.
	f.bank.Mint(models.NativeToken, "@ledger", 950)

	got, err := f.svc.MakePayment(ctx, client, inv.ID, 950)
	if err != nil {
		t.Fatalf("MakePayment: %v", err)
	}
	if got.Status != models.InvoiceStatusCompleted {
		t.Errorf("status = %s, want %s", got.Status, models.InvoiceStatusCompleted)
	}
	if got.EscrowBalance != 0 {
		t.Errorf("escrow = %d, want 0", got.EscrowBalance)
	}
	if got.PaidAt == nil {
		t.Error("PaidAt not set")
	}

	// 950 * 50 / 10000 floors to 4.
	if b := f.bank.BalanceOf(models.NativeToken, provider); b != 946 {
		t.Errorf("provider balance = %d, want 946", b)
	}
	if b := f.bank.BalanceOf(models.NativeToken, feeCollector); b != 4 {
		t.Errorf("fee collector balance = %d, want 4", b)
	}
	if b := f.bank.BalanceOf(models.NativeToken, "@ledger"); b != 0 {
		t.Errorf("custody balance = %d, want 0", b)
	}

	want := []string{events.EventInvoiceCreated, events.EventInvoicePaid, events.EventInvoiceSettled}
	got2 := f.pub.types()
	if len(got2) != len(want) {
		t.Fatalf("events = %v, want %v", got2, want)
	}
	for i := range want {
		if got2[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got2[i], want[i])
		}
	}
}

func TestPaymentAmountMustMatchOwed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.createNative(t, false)

	// Early window: 950 owed, full amount is rejected.
	if _, err := f.svc.MakePayment(ctx, client, inv.ID, 1000); !errors.Is(err, models.ErrValidation) {
		t.Errorf("early overpay: expected ErrValidation, got %v", err)
	}

	// Past the half-window deadline: full amount owed again.
	f.advance(16 * 24 * time.Hour)
	if _, err := f.svc.MakePayment(ctx, client, inv.ID, 950); !errors.Is(err, models.ErrValidation) {
		t.Errorf("late discount: expected ErrValidation, got %v", err)
	}

	f.bank.Mint(models.NativeToken, "@ledger", 1000)
	got, err := f.svc.MakePayment(ctx, client, inv.ID, 1000)
	if err != nil {
		t.Fatalf("MakePayment: %v", err)
	}
	if got.Status != models.InvoiceStatusCompleted {
		t.Errorf("status = %s, want %s", got.Status, models.InvoiceStatusCompleted)
	}
	// 1000 * 50 / 10000 = 5.
	if b := f.bank.BalanceOf(models.NativeToken, provider); b != 995 {
		t.Errorf("provider balance = %d, want 995", b)
	}
}

func TestPaymentAtDeadlineBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.createNative(t, true)

	// Exactly at the deadline still counts as early.
	f.advance(15 * 24 * time.Hour)
	f.bank.Mint(models.NativeToken, "@ledger", 950)
	got, err := f.svc.MakePayment(ctx, client, inv.ID, 950)
	if err != nil {
		t.Fatalf("MakePayment at deadline: %v", err)
	}
	if got.EscrowBalance != 950 {
		t.Errorf("escrow = %d, want 950", got.EscrowBalance)
	}
}

func TestPaymentLifecycleGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.createNative(t, true)

	if _, err := f.svc.MakePayment(ctx, provider, inv.ID, 950); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("provider paying: expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.svc.MakePayment(ctx, client, 999, 950); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown invoice: expected ErrNotFound, got %v", err)
	}

	if _, err := f.svc.MakePayment(ctx, client, inv.ID, 950); err != nil {
		t.Fatalf("MakePayment: %v", err)
	}

	// Second payment finds a non-created invoice.
	if _, err := f.svc.MakePayment(ctx, client, inv.ID, 950); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("double pay: expected ErrInvalidState, got %v", err)
	}
}

func TestPaymentAfterDueDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.createNative(t, false)
	f.advance(31 * 24 * time.Hour)

	if _, err := f.svc.MakePayment(ctx, client, inv.ID, 1000); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestApprovalFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.createNative(t, true)
	f.bank.Mint(models.NativeToken, "@ledger", 950)

	paid, err := f.svc.MakePayment(ctx, client, inv.ID, 950)
	if err != nil {
		t.Fatalf("MakePayment: %v", err)
	}
	if paid.Status != models.InvoiceStatusPaid {
		t.Fatalf("status = %s, want %s", paid.Status, models.InvoiceStatusPaid)
	}
	if b := f.bank.BalanceOf(models.NativeToken, provider); b != 0 {
		t.Errorf("provider paid before approval: balance %d", b)
	}

	if _, err := f.svc.ApproveInvoice(ctx, provider, inv.ID); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("provider approving: expected ErrUnauthorized, got %v", err)
	}

	done, err := f.svc.ApproveInvoice(ctx, client, inv.ID)
	if err != nil {
		t.Fatalf("ApproveInvoice: %v", err)
	}
	if done.Status != models.InvoiceStatusCompleted {
		t.Errorf("status = %s, want %s", done.Status, models.InvoiceStatusCompleted)
	}
	if b := f.bank.BalanceOf(models.NativeToken, provider); b != 946 {
		t.Errorf("provider balance = %d, want 946", b)
	}

	if _, err := f.svc.ApproveInvoice(ctx, client, inv.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("double approve: expected ErrInvalidState, got %v", err)
	}
}

func TestFungiblePaymentPullsFromTreasury(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.svc.CreateInvoice(ctx, provider, CreateInvoiceInput{
		Client:               client,
		Amount:               1000,
		Token:                "USDT",
		PaymentWindowSeconds: 30 * daySeconds,
		MetadataRef:          "ref",
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	// Attaching native value to a fungible invoice is rejected.
	if _, err := f.svc.MakePayment(ctx, client, inv.ID, 1000); !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}

	// Unfunded client cannot be pulled from.
	if _, err := f.svc.MakePayment(ctx, client, inv.ID, 0); !errors.Is(err, models.ErrTransfer) {
		t.Errorf("expected ErrTransfer, got %v", err)
	}
	got, err := f.svc.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if got.Status != models.InvoiceStatusCreated {
		t.Errorf("failed pull mutated status to %s", got.Status)
	}

	f.bank.Mint("USDT", client, 1000)
	done, err := f.svc.MakePayment(ctx, client, inv.ID, 0)
	if err != nil {
		t.Fatalf("MakePayment: %v", err)
	}
	if done.Status != models.InvoiceStatusCompleted {
		t.Errorf("status = %s, want %s", done.Status, models.InvoiceStatusCompleted)
	}
	if b := f.bank.BalanceOf("USDT", provider); b != 995 {
		t.Errorf("provider balance = %d, want 995", b)
	}
	if b := f.bank.BalanceOf("USDT", client); b != 0 {
		t.Errorf("client balance = %d, want 0", b)
	}
}

func TestDisputeRefundsClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.createNative(t, true)
	f.bank.Mint(models.NativeToken, "@ledger", 950)
	if _, err := f.svc.MakePayment(ctx, client, inv.ID, 950); err != nil {
		t.Fatalf("MakePayment: %v", err)
	}

	if _, err := f.svc.RaiseDispute(ctx, client, inv.ID, ""); !errors.Is(err, models.ErrValidation) {
		t.Errorf("empty reason: expected ErrValidation, got %v", err)
	}
	if _, err := f.svc.RaiseDispute(ctx, "wallet-stranger", inv.ID, "not my invoice"); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("stranger disputing: expected ErrUnauthorized, got %v", err)
	}

	disputed, err := f.svc.RaiseDispute(ctx, client, inv.ID, "work never delivered")
	if err != nil {
		t.Fatalf("RaiseDispute: %v", err)
	}
	if disputed.Status != models.InvoiceStatusDisputed {
		t.Errorf("status = %s, want %s", disputed.Status, models.InvoiceStatusDisputed)
	}

	reason, err := f.svc.DisputeReason(ctx, inv.ID)
	if err != nil || reason != "work never delivered" {
		t.Errorf("DisputeReason = %q, %v", reason, err)
	}

	if _, err := f.svc.ResolveDispute(ctx, client, inv.ID, false); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("client resolving: expected ErrUnauthorized, got %v", err)
	}

	resolved, err := f.svc.ResolveDispute(ctx, arbitrator, inv.ID, false)
	if err != nil {
		t.Fatalf("ResolveDispute: %v", err)
	}
	if resolved.Status != models.InvoiceStatusRefunded {
		t.Errorf("status = %s, want %s", resolved.Status, models.InvoiceStatusRefunded)
	}
	if resolved.EscrowBalance != 0 {
		t.Errorf("escrow = %d, want 0", resolved.EscrowBalance)
	}
	// Refunds carry no fee.
	if b := f.bank.BalanceOf(models.NativeToken, client); b != 950 {
		t.Errorf("client balance = %d, want 950", b)
	}
	if b := f.bank.BalanceOf(models.NativeToken, feeCollector); b != 0 {
		t.Errorf("fee collector balance = %d, want 0", b)
	}
}

func TestDisputeResolvedForProvider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.createNative(t, true)
	f.bank.Mint(models.NativeToken, "@ledger", 950)
	if _, err := f.svc.MakePayment(ctx, client, inv.ID, 950); err != nil {
		t.Fatalf("MakePayment: %v", err)
	}
	if _, err := f.svc.RaiseDispute(ctx, provider, inv.ID, "client ghosted after delivery"); err != nil {
		t.Fatalf("RaiseDispute: %v", err)
	}

	// An administrator may resolve when no arbitrator steps in.
	resolved, err := f.svc.ResolveDispute(ctx, admin, inv.ID, true)
	if err != nil {
		t.Fatalf("ResolveDispute: %v", err)
	}
	if resolved.Status != models.InvoiceStatusCompleted {
		t.Errorf("status = %s, want %s", resolved.Status, models.InvoiceStatusCompleted)
	}
	if b := f.bank.BalanceOf(models.NativeToken, provider); b != 946 {
		t.Errorf("provider balance = %d, want 946", b)
	}
	if b := f.bank.BalanceOf(models.NativeToken, feeCollector); b != 4 {
		t.Errorf("fee collector balance = %d, want 4", b)
	}

	if _, err := f.svc.ResolveDispute(ctx, admin, inv.ID, true); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("double resolve: expected ErrInvalidState, got %v", err)
	}
}

func TestCancelInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.createNative(t, true)

	if _, err := f.svc.CancelInvoice(ctx, client, inv.ID); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("client cancelling: expected ErrUnauthorized, got %v", err)
	}

	cancelled, err := f.svc.CancelInvoice(ctx, provider, inv.ID)
	if err != nil {
		t.Fatalf("CancelInvoice: %v", err)
	}
	if cancelled.Status != models.InvoiceStatusCancelled {
		t.Errorf("status = %s, want %s", cancelled.Status, models.InvoiceStatusCancelled)
	}

	// A paid invoice can no longer be cancelled.
	inv2 := f.createNative(t, true)
	if _, err := f.svc.MakePayment(ctx, client, inv2.ID, 950); err != nil {
		t.Fatalf("MakePayment: %v", err)
	}
	if _, err := f.svc.CancelInvoice(ctx, provider, inv2.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("cancel after payment: expected ErrInvalidState, got %v", err)
	}
}

func TestPauseBlocksOnlyInboundFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.createNative(t, true)
	f.bank.Mint(models.NativeToken, "@ledger", 950)
	if _, err := f.svc.MakePayment(ctx, client, inv.ID, 950); err != nil {
		t.Fatalf("MakePayment: %v", err)
	}
	unpaid := f.createNative(t, true)

	if err := f.svc.SetPaused(ctx, admin, true); err != nil {
		t.Fatalf("SetPaused: %v", err)
	}

	if _, err := f.svc.CreateInvoice(ctx, provider, CreateInvoiceInput{
		Client:               client,
		Amount:               100,
		Token:                models.NativeToken,
		PaymentWindowSeconds: 2 * daySeconds,
		MetadataRef:          "ref",
	}); !errors.Is(err, models.ErrPaused) {
		t.Errorf("create while paused: expected ErrPaused, got %v", err)
	}
	if _, err := f.svc.MakePayment(ctx, client, unpaid.ID, 950); !errors.Is(err, models.ErrPaused) {
		t.Errorf("pay while paused: expected ErrPaused, got %v", err)
	}

	// Escrowed funds still reach a terminal state while paused.
	if _, err := f.svc.ApproveInvoice(ctx, client, inv.ID); err != nil {
		t.Errorf("approve while paused: %v", err)
	}
	if _, err := f.svc.CancelInvoice(ctx, provider, unpaid.ID); err != nil {
		t.Errorf("cancel while paused: %v", err)
	}

	if err := f.svc.SetPaused(ctx, admin, false); err != nil {
		t.Fatalf("SetPaused: %v", err)
	}
	if _, err := f.svc.CreateInvoice(ctx, provider, CreateInvoiceInput{
		Client:               client,
		Amount:               100,
		Token:                models.NativeToken,
		PaymentWindowSeconds: 2 * daySeconds,
		MetadataRef:          "ref",
	}); err != nil {
		t.Errorf("create after unpause: %v", err)
	}
}

func TestAdminOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.AllowToken(ctx, client, "JUSDT"); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("non-admin allow: expected ErrUnauthorized, got %v", err)
	}
	if err := f.svc.AllowToken(ctx, admin, ""); !errors.Is(err, models.ErrValidation) {
		t.Errorf("empty token: expected ErrValidation, got %v", err)
	}
	if err := f.svc.AllowToken(ctx, admin, "JUSDT"); err != nil {
		t.Fatalf("AllowToken: %v", err)
	}
	if _, err := f.svc.CreateInvoice(ctx, provider, CreateInvoiceInput{
		Client:               client,
		Amount:               100,
		Token:                "JUSDT",
		PaymentWindowSeconds: 2 * daySeconds,
		MetadataRef:          "ref",
	}); err != nil {
		t.Errorf("invoice in newly allowed token: %v", err)
	}

	if err := f.svc.DisallowToken(ctx, admin, "JUSDT"); err != nil {
		t.Fatalf("DisallowToken: %v", err)
	}
	if _, err := f.svc.CreateInvoice(ctx, provider, CreateInvoiceInput{
		Client:               client,
		Amount:               100,
		Token:                "JUSDT",
		PaymentWindowSeconds: 2 * daySeconds,
		MetadataRef:          "ref",
	}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("disallowed token: expected ErrValidation, got %v", err)
	}

	if err := f.svc.SetFeeCollector(ctx, admin, ""); !errors.Is(err, models.ErrValidation) {
		t.Errorf("empty collector: expected ErrValidation, got %v", err)
	}
	if err := f.svc.SetFeeCollector(ctx, admin, "wallet-new-fees"); err != nil {
		t.Fatalf("SetFeeCollector: %v", err)
	}

	// Fees from the next settlement go to the new collector.
	inv := f.createNative(t, false)
	f.bank.Mint(models.NativeToken, "@ledger", 950)
	if _, err := f.svc.MakePayment(ctx, client, inv.ID, 950); err != nil {
		t.Fatalf("MakePayment: %v", err)
	}
	if b := f.bank.BalanceOf(models.NativeToken, "wallet-new-fees"); b != 4 {
		t.Errorf("new collector balance = %d, want 4", b)
	}
	if b := f.bank.BalanceOf(models.NativeToken, feeCollector); b != 0 {
		t.Errorf("old collector balance = %d, want 0", b)
	}
}

func TestEmergencyWithdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 950 tracked escrow plus 100 of stray custody.
	inv := f.createNative(t, true)
	f.bank.Mint(models.NativeToken, "@ledger", 950)
	if _, err := f.svc.MakePayment(ctx, client, inv.ID, 950); err != nil {
		t.Fatalf("MakePayment: %v", err)
	}
	f.bank.Mint(models.NativeToken, "@ledger", 100)

	if err := f.svc.EmergencyWithdraw(ctx, client, models.NativeToken, "wallet-rescue", 100); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("non-admin: expected ErrUnauthorized, got %v", err)
	}
	if err := f.svc.EmergencyWithdraw(ctx, admin, models.NativeToken, "", 100); !errors.Is(err, models.ErrValidation) {
		t.Errorf("empty destination: expected ErrValidation, got %v", err)
	}
	if err := f.svc.EmergencyWithdraw(ctx, admin, models.NativeToken, "wallet-rescue", 150); !errors.Is(err, models.ErrValidation) {
		t.Errorf("withdraw into escrow: expected ErrValidation, got %v", err)
	}

	if err := f.svc.EmergencyWithdraw(ctx, admin, models.NativeToken, "wallet-rescue", 100); err != nil {
		t.Fatalf("EmergencyWithdraw: %v", err)
	}
	if b := f.bank.BalanceOf(models.NativeToken, "wallet-rescue"); b != 100 {
		t.Errorf("rescue balance = %d, want 100", b)
	}

	// Tracked escrow is untouched and still settles.
	if _, err := f.svc.ApproveInvoice(ctx, client, inv.ID); err != nil {
		t.Errorf("settlement after withdrawal: %v", err)
	}
	if b := f.bank.BalanceOf(models.NativeToken, provider); b != 946 {
		t.Errorf("provider balance = %d, want 946", b)
	}
}

func TestAmountOwed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.createNative(t, false)

	owed, err := f.svc.AmountOwed(ctx, inv.ID)
	if err != nil || owed != 950 {
		t.Errorf("early owed = %d, %v; want 950", owed, err)
	}

	f.advance(16 * 24 * time.Hour)
	owed, err = f.svc.AmountOwed(ctx, inv.ID)
	if err != nil || owed != 1000 {
		t.Errorf("late owed = %d, %v; want 1000", owed, err)
	}
}

func TestListInvoices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.createNative(t, false)
	b := f.createNative(t, false)

	byProvider, err := f.svc.ListByProvider(ctx, provider)
	if err != nil {
		t.Fatalf("ListByProvider: %v", err)
	}
	if len(byProvider) != 2 || byProvider[0] != a.ID || byProvider[1] != b.ID {
		t.Errorf("ListByProvider = %v, want [%d %d]", byProvider, a.ID, b.ID)
	}

	byClient, err := f.svc.ListByClient(ctx, client)
	if err != nil {
		t.Fatalf("ListByClient: %v", err)
	}
	if len(byClient) != 2 {
		t.Errorf("ListByClient = %v, want 2 ids", byClient)
	}

	none, err := f.svc.ListByProvider(ctx, "wallet-stranger")
	if err != nil {
		t.Fatalf("ListByProvider: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("stranger list = %v, want empty", none)
	}
}
