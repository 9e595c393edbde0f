package services

import "errors"

// Error taxonomy for the ledger core. Signature and attribution failures
// are never retried blindly; duplicate references are success-shaped no-ops.
var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrStorageConflict     = errors.New("optimistic lock failed")
	ErrUnavailable         = errors.New("storage temporarily unavailable")
	ErrNotRefundable       = errors.New("transaction not refundable")
	ErrInvalidAmount       = errors.New("amount must be positive")
)
