package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NativeToken is the sentinel token denoting the chain's native asset.
// Fungible tokens are identified by their master contract address.
const NativeToken = "TON"

// Payment terms bounds. Amounts are in base units (nano), rates in basis points.
const (
	MinPaymentWindowSeconds = 86400            // 1 day
	MaxPaymentWindowSeconds = 365 * 86400      // 1 year
	MaxDiscountBPS          = 5000             // 50%
	BPSDenominator          = 10000
)

// Invoice statuses
const (
	InvoiceStatusCreated   = "created"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusApproved  = "approved"
	InvoiceStatusCompleted = "completed"
	InvoiceStatusDisputed  = "disputed"
	InvoiceStatusCancelled = "cancelled"
	InvoiceStatusRefunded  = "refunded"
)

// Valid state transitions: from -> []to
var ValidInvoiceTransitions = map[string][]string{
	InvoiceStatusCreated:   {InvoiceStatusPaid, InvoiceStatusApproved, InvoiceStatusCancelled},
	InvoiceStatusPaid:      {InvoiceStatusApproved, InvoiceStatusDisputed},
	InvoiceStatusApproved:  {InvoiceStatusCompleted, InvoiceStatusDisputed},
	InvoiceStatusDisputed:  {InvoiceStatusCompleted, InvoiceStatusRefunded},
	InvoiceStatusCompleted: {},
	InvoiceStatusCancelled: {},
	InvoiceStatusRefunded:  {},
}

func IsValidTransition(from, to string) bool {
	allowed, ok := ValidInvoiceTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminalStatus(status string) bool {
	allowed, ok := ValidInvoiceTransitions[status]
	return ok && len(allowed) == 0
}

// PaymentTerms are fixed at invoice creation and never change afterwards.
type PaymentTerms struct {
	PaymentWindowSeconds    int64     `json:"payment_window_seconds"`
	EarlyPaymentDiscountBPS int64     `json:"early_payment_discount_bps"`
	EarlyPaymentDeadline    time.Time `json:"early_payment_deadline,omitzero"`
	RequiresApproval        bool      `json:"requires_approval"`
	Arbitrator              string    `json:"arbitrator,omitempty"`
}

type Invoice struct {
	ID            uint64       `json:"id"`
	Provider      string       `json:"provider"`
	Client        string       `json:"client"`
	Amount        int64        `json:"amount"`
	Token         string       `json:"token"`
	Terms         PaymentTerms `json:"terms"`
	Status        string       `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	DueDate       time.Time    `json:"due_date"`
	PaidAt        *time.Time   `json:"paid_at,omitempty"`
	MetadataRef   string       `json:"metadata_ref"`
	EscrowBalance int64        `json:"escrow_balance"`
	DisputeReason string       `json:"dispute_reason,omitempty"`
}

// PaymentMemo is the transfer comment that ties an on-chain native deposit
// to an invoice.
func PaymentMemo(id uint64) string {
	return fmt.Sprintf("inv:%d", id)
}

// ParsePaymentMemo extracts the invoice id from a transfer comment.
func ParsePaymentMemo(memo string) (uint64, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(memo), "inv:")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// DiscountedAmount applies an early-payment discount with floor rounding.
func DiscountedAmount(amount, discountBPS int64) int64 {
	return amount - amount*discountBPS/BPSDenominator
}

// PlatformFee computes the platform cut of a settled balance with floor rounding.
func PlatformFee(balance, feeBPS int64) int64 {
	return balance * feeBPS / BPSDenominator
}
