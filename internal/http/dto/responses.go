package dto

type AuthResponse struct {
	Token   string `json:"token"`
	Address string `json:"address"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// PaymentInfoResponse tells a client how to pay a native-asset invoice:
// send exactly AmountNano to DepositAddress with Memo as the comment.
type PaymentInfoResponse struct {
	InvoiceID      uint64 `json:"invoice_id"`
	DepositAddress string `json:"deposit_address"`
	Memo           string `json:"memo"`
	AmountNano     int64  `json:"amount_nano"`
	Status         string `json:"status"`
}

type MetadataPreviewResponse struct {
	Ref         string `json:"ref"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}
