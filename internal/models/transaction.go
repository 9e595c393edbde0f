package models

import (
	"time"
)

// Transaction types. Purchases (airtime, data, electricity, cable) are
// all debits against the wallet; the purchased service is recorded in
// Description and Metadata, not in the ledger type.
const (
	TypeFunding = "funding"
	TypeDebit   = "debit"
	TypeRefund  = "refund"
)

// Transaction statuses. A transaction is created pending (debit path)
// or directly completed (funding path) and moves to exactly one
// terminal state. Terminal states are immutable.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
)

// Transaction is one balance-affecting ledger entry. Reference is the
// caller/processor-supplied idempotency key, unique per (type, reference).
type Transaction struct {
	ID                    int        `json:"id" db:"id"`
	TransactionID         string     `json:"transaction_id" db:"transaction_id"`
	WalletID              string     `json:"wallet_id" db:"wallet_id"`
	UserID                string     `json:"user_id" db:"user_id"`
	Type                  string     `json:"type" db:"type"`
	Amount                int64      `json:"amount" db:"amount"` // in kobo
	Currency              string     `json:"currency" db:"currency"`
	Status                string     `json:"status" db:"status"`
	Reference             string     `json:"reference" db:"reference"`
	Provider              string     `json:"provider,omitempty" db:"provider"`
	PhoneNumber           string     `json:"phone_number,omitempty" db:"phone_number"`
	Description           string     `json:"description,omitempty" db:"description"`
	ProviderRequestID     string     `json:"provider_request_id,omitempty" db:"provider_request_id"`
	ProviderTransactionID string     `json:"provider_transaction_id,omitempty" db:"provider_transaction_id"`
	Metadata              Metadata   `json:"metadata,omitempty" db:"metadata"`
	CreatedAt             time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at" db:"updated_at"`
	SettledAt             *time.Time `json:"settled_at,omitempty" db:"settled_at"`
}

// Terminal reports whether the transaction has reached an immutable state.
func (t *Transaction) Terminal() bool {
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusRefunded:
		return true
	}
	return false
}
