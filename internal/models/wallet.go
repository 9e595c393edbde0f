package models

import (
	"time"
)

// Wallet holds a single user's spendable balance in minor currency
// units (kobo). One active wallet per user; the balance is only
// mutated through committed ledger transactions.
type Wallet struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Balance   int64     `json:"balance" db:"balance"` // in kobo
	Currency  string    `json:"currency" db:"currency"`
	Version   int       `json:"version" db:"version"` // for optimistic locking
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
