package models

import "errors"

// Ledger error taxonomy. Callers distinguish categories with errors.Is;
// handlers map them to HTTP statuses.
var (
	// ErrNotFound: no invoice exists for the given id.
	ErrNotFound = errors.New("ledger: invoice not found")

	// ErrValidation: bad input shape or bounds. Caller-fixable, no state change.
	ErrValidation = errors.New("ledger: validation failed")

	// ErrUnauthorized: caller does not hold the role the operation requires.
	ErrUnauthorized = errors.New("ledger: caller not authorized")

	// ErrInvalidState: operation not permitted for the invoice's current status.
	ErrInvalidState = errors.New("ledger: operation invalid for current status")

	// ErrPaused: ledger is paused and the operation accepts new funds.
	ErrPaused = errors.New("ledger: paused")

	// ErrTransfer: asset movement failed before any state was committed;
	// the whole operation aborts with no state change.
	ErrTransfer = errors.New("ledger: transfer failed")

	// ErrTransferStuck: an outbound transfer failed after settlement state
	// was already committed. The invoice stays settled; the funds are
	// accounted for but physically stuck and need administrator recovery.
	ErrTransferStuck = errors.New("ledger: transfer failed after settlement committed")

	// ErrInvariant: escrow balance inconsistent with invoice status.
	// Indicates a lifecycle bug, never silently recovered.
	ErrInvariant = errors.New("ledger: escrow invariant violation")
)
