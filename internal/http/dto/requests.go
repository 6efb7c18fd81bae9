package dto

import "github.com/Felista-Njeri/inva.ai/internal/ton"

type WalletAuthRequest struct {
	Proof ton.ProofData `json:"proof"`
}

type CreateInvoiceRequest struct {
	Client                  string `json:"client"`
	Amount                  int64  `json:"amount"`
	Token                   string `json:"token"`
	PaymentWindowSeconds    int64  `json:"payment_window_seconds"`
	EarlyPaymentDiscountBPS int64  `json:"early_payment_discount_bps"`
	RequiresApproval        bool   `json:"requires_approval"`
	Arbitrator              string `json:"arbitrator"`
	MetadataRef             string `json:"metadata_ref"`
}

type PayInvoiceRequest struct {
	// AttachedValue is the native-asset value carried with the payment.
	// Zero for fungible-token invoices, whose amount is pulled instead.
	AttachedValue int64 `json:"attached_value"`
}

type RaiseDisputeRequest struct {
	Reason string `json:"reason"`
}

type ResolveDisputeRequest struct {
	FavorProvider bool `json:"favor_provider"`
}

type TokenRequest struct {
	Token string `json:"token"`
}

type FeeCollectorRequest struct {
	Collector string `json:"collector"`
}

type PauseRequest struct {
	Paused bool `json:"paused"`
}

type EmergencyWithdrawRequest struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}
