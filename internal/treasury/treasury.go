package treasury

import "context"

// Treasury moves assets in and out of the ledger's custody. Implementations
// are untrusted from the ledger's point of view: a TransferOut may run
// arbitrary code (token callbacks, wallet hooks) before returning, so the
// ledger commits its own state before calling out.
type Treasury interface {
	// TransferIn pulls amount of token from the given account into custody.
	TransferIn(ctx context.Context, token, from string, amount int64) error

	// TransferOut pays amount of token out of custody to the given account.
	TransferOut(ctx context.Context, token, to string, amount int64) error

	// Balance reports the total amount of token currently in custody.
	Balance(ctx context.Context, token string) (int64, error)
}
