package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pocketvance/backend/internal/models"
)

const (
	conflictRetryAttempts = 3
	conflictRetryBackoff  = 50 * time.Millisecond
)

// LedgerService is the single source of truth for wallet balances and
// transaction history. Every balance mutation runs inside one database
// transaction, serialized per wallet by a FOR UPDATE row lock and a
// version-checked update. A unique index on (type, reference) is the
// final idempotency backstop.
type LedgerService struct {
	db       *sql.DB
	currency string
}

func NewLedgerService(db *sql.DB) *LedgerService {
	currency := "NGN"
	if envCurrency := os.Getenv("WALLET_CURRENCY"); envCurrency != "" {
		currency = envCurrency
	}
	return &LedgerService{
		db:       db,
		currency: currency,
	}
}

// EnsureWallet creates the user's wallet on first use. Safe to call
// concurrently: the unique index on user_id makes creation a no-op for
// everyone but the first caller.
func (s *LedgerService) EnsureWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, balance, currency, version, created_at, updated_at)
		VALUES ($1, $2, 0, $3, 1, $4, $4)
		ON CONFLICT (user_id) DO NOTHING`,
		uuid.New().String(), userID, s.currency, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	return s.GetWalletByUserID(ctx, userID)
}

func (s *LedgerService) GetWalletByUserID(ctx context.Context, userID string) (*models.Wallet, error) {
	var w models.Wallet
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, balance, currency, version, updated_at
		FROM wallets
		WHERE user_id = $1`, userID).
		Scan(&w.ID, &w.UserID, &w.Balance, &w.Currency, &w.Version, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetBalance reads the current committed balance for a user. No side effects.
func (s *LedgerService) GetBalance(ctx context.Context, userID string) (int64, error) {
	w, err := s.GetWalletByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

// ApplyCredit atomically credits a wallet for an inbound funding event.
// If a funding transaction with this reference already exists the
// existing record is returned with applied=false and the balance is
// untouched. Webhook redelivery is therefore safe.
func (s *LedgerService) ApplyCredit(ctx context.Context, walletID string, amount int64, reference string, metadata models.Metadata) (*models.Transaction, bool, error) {
	if amount <= 0 {
		return nil, false, ErrInvalidAmount
	}

	var txn *models.Transaction
	var applied bool
	err := s.withConflictRetry(ctx, func() error {
		t, a, err := s.applyCreditOnce(ctx, walletID, amount, reference, metadata)
		if err != nil {
			return err
		}
		txn, applied = t, a
		return nil
	})
	return txn, applied, err
}

func (s *LedgerService) applyCreditOnce(ctx context.Context, walletID string, amount int64, reference string, metadata models.Metadata) (*models.Transaction, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	existing, err := s.findByTypeAndReference(tx, models.TypeFunding, reference)
	if err == nil {
		return existing, false, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, err
	}

	wallet, err := s.lockWallet(tx, walletID)
	if err != nil {
		return nil, false, err
	}

	if err := s.updateWalletBalance(tx, wallet.ID, wallet.Balance+amount, wallet.Version); err != nil {
		return nil, false, err
	}

	txn := &models.Transaction{
		TransactionID: uuid.New().String(),
		WalletID:      wallet.ID,
		UserID:        wallet.UserID,
		Type:          models.TypeFunding,
		Amount:        amount,
		Currency:      wallet.Currency,
		Status:        models.StatusCompleted,
		Reference:     reference,
		Description:   "Wallet funding",
		Metadata:      metadata,
	}
	if err := s.insertTransaction(tx, txn); err != nil {
		if isUniqueViolation(err) {
			// Lost the race against a concurrent delivery of the same
			// event. The committed row wins.
			tx.Rollback()
			winner, ferr := s.findByTypeAndReferenceDB(ctx, models.TypeFunding, reference)
			if ferr != nil {
				return nil, false, ferr
			}
			return winner, false, nil
		}
		return nil, false, err
	}

	if err := s.appendTransactionEvent(tx, txn.TransactionID, models.StatusCompleted); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return txn, true, nil
}

// DebitRequest carries the purchase details recorded on the pending
// transaction at reservation time.
type DebitRequest struct {
	Provider    string
	PhoneNumber string
	Description string
	Metadata    models.Metadata
}

// ReserveDebit decrements the balance up front, before any external
// call, so two concurrent purchases can never race past the same
// balance. If a debit with this reference already exists in any status
// it is returned unchanged with reserved=false.
func (s *LedgerService) ReserveDebit(ctx context.Context, walletID string, amount int64, reference string, req *DebitRequest) (*models.Transaction, bool, error) {
	if amount <= 0 {
		return nil, false, ErrInvalidAmount
	}

	var txn *models.Transaction
	var reserved bool
	err := s.withConflictRetry(ctx, func() error {
		t, r, err := s.reserveDebitOnce(ctx, walletID, amount, reference, req)
		if err != nil {
			return err
		}
		txn, reserved = t, r
		return nil
	})
	return txn, reserved, err
}

func (s *LedgerService) reserveDebitOnce(ctx context.Context, walletID string, amount int64, reference string, req *DebitRequest) (*models.Transaction, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	existing, err := s.findByTypeAndReference(tx, models.TypeDebit, reference)
	if err == nil {
		return existing, false, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, err
	}

	wallet, err := s.lockWallet(tx, walletID)
	if err != nil {
		return nil, false, err
	}

	if wallet.Balance < amount {
		return nil, false, ErrInsufficientFunds
	}

	if err := s.updateWalletBalance(tx, wallet.ID, wallet.Balance-amount, wallet.Version); err != nil {
		return nil, false, err
	}

	txn := &models.Transaction{
		TransactionID: uuid.New().String(),
		WalletID:      wallet.ID,
		UserID:        wallet.UserID,
		Type:          models.TypeDebit,
		Amount:        amount,
		Currency:      wallet.Currency,
		Status:        models.StatusPending,
		Reference:     reference,
	}
	if req != nil {
		txn.Provider = req.Provider
		txn.PhoneNumber = req.PhoneNumber
		txn.Description = req.Description
		txn.Metadata = req.Metadata
	}
	if err := s.insertTransaction(tx, txn); err != nil {
		if isUniqueViolation(err) {
			tx.Rollback()
			winner, ferr := s.findByTypeAndReferenceDB(ctx, models.TypeDebit, reference)
			if ferr != nil {
				return nil, false, ferr
			}
			return winner, false, nil
		}
		return nil, false, err
	}

	if err := s.appendTransactionEvent(tx, txn.TransactionID, models.StatusPending); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return txn, true, nil
}

// SettlementUpdate carries provider identifiers and the raw provider
// response captured at settlement time.
type SettlementUpdate struct {
	ProviderRequestID     string
	ProviderTransactionID string
	Metadata              models.Metadata
}

// SettleDebit moves a pending debit to completed (reservation stands)
// or failed (the reserved amount is re-credited). Settling an already
// terminal transaction is a no-op returning the existing record.
func (s *LedgerService) SettleDebit(ctx context.Context, transactionID, outcome string, update *SettlementUpdate) (*models.Transaction, error) {
	if outcome != models.StatusCompleted && outcome != models.StatusFailed {
		return nil, fmt.Errorf("invalid settlement outcome: %s", outcome)
	}

	var txn *models.Transaction
	err := s.withConflictRetry(ctx, func() error {
		t, err := s.settleDebitOnce(ctx, transactionID, outcome, update)
		if err != nil {
			return err
		}
		txn = t
		return nil
	})
	return txn, err
}

func (s *LedgerService) settleDebitOnce(ctx context.Context, transactionID, outcome string, update *SettlementUpdate) (*models.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	txn, err := s.lockTransaction(tx, transactionID)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}

	if txn.Type != models.TypeDebit {
		return nil, fmt.Errorf("transaction %s is not a debit", transactionID)
	}

	if txn.Terminal() {
		log.Printf("[LEDGER] Settle on terminal transaction %s (status %s), no-op", transactionID, txn.Status)
		return txn, nil
	}

	if outcome == models.StatusFailed {
		// Restore the reserved funds.
		wallet, err := s.lockWallet(tx, txn.WalletID)
		if err != nil {
			return nil, err
		}
		if err := s.updateWalletBalance(tx, wallet.ID, wallet.Balance+txn.Amount, wallet.Version); err != nil {
			return nil, err
		}
	}

	if err := s.markTransactionSettled(tx, txn, outcome, update); err != nil {
		return nil, err
	}

	if err := s.appendTransactionEvent(tx, txn.TransactionID, outcome); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return txn, nil
}

// Refund credits back a completed debit, links a refund transaction to
// it and moves the original to refunded.
func (s *LedgerService) Refund(ctx context.Context, transactionID, reason string) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.withConflictRetry(ctx, func() error {
		t, err := s.refundOnce(ctx, transactionID, reason)
		if err != nil {
			return err
		}
		txn = t
		return nil
	})
	return txn, err
}

func (s *LedgerService) refundOnce(ctx context.Context, transactionID, reason string) (*models.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	original, err := s.lockTransaction(tx, transactionID)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}

	if original.Type != models.TypeDebit || original.Status != models.StatusCompleted {
		return nil, ErrNotRefundable
	}

	wallet, err := s.lockWallet(tx, original.WalletID)
	if err != nil {
		return nil, err
	}

	if err := s.updateWalletBalance(tx, wallet.ID, wallet.Balance+original.Amount, wallet.Version); err != nil {
		return nil, err
	}

	refund := &models.Transaction{
		TransactionID: uuid.New().String(),
		WalletID:      wallet.ID,
		UserID:        wallet.UserID,
		Type:          models.TypeRefund,
		Amount:        original.Amount,
		Currency:      wallet.Currency,
		Status:        models.StatusCompleted,
		Reference:     "RFD-" + original.Reference,
		Provider:      original.Provider,
		Description:   reason,
		Metadata:      models.Metadata{"original_transaction_id": original.TransactionID},
	}
	if err := s.insertTransaction(tx, refund); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrNotRefundable
		}
		return nil, err
	}

	if _, err := tx.Exec(`
		UPDATE transactions SET status = $1, updated_at = $2 WHERE transaction_id = $3`,
		models.StatusRefunded, time.Now(), original.TransactionID); err != nil {
		return nil, err
	}

	if err := s.appendTransactionEvent(tx, original.TransactionID, models.StatusRefunded); err != nil {
		return nil, err
	}
	if err := s.appendTransactionEvent(tx, refund.TransactionID, models.StatusCompleted); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return refund, nil
}

// GetTransactionByReference fetches a transaction by its idempotency key.
func (s *LedgerService) GetTransactionByReference(ctx context.Context, txType, reference string) (*models.Transaction, error) {
	txn, err := s.findByTypeAndReferenceDB(ctx, txType, reference)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	return txn, err
}

// ListPendingDebits returns debits still pending after the cutoff,
// oldest first, for the reconciliation job.
func (s *LedgerService) ListPendingDebits(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, wallet_id, user_id, type, amount, currency, status, reference,
		       COALESCE(provider, ''), COALESCE(provider_request_id, ''), COALESCE(provider_transaction_id, ''), created_at
		FROM transactions
		WHERE type = $1 AND status = $2 AND created_at < $3
		ORDER BY created_at ASC
		LIMIT $4`,
		models.TypeDebit, models.StatusPending, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.TransactionID, &t.WalletID, &t.UserID, &t.Type, &t.Amount,
			&t.Currency, &t.Status, &t.Reference, &t.Provider, &t.ProviderRequestID,
			&t.ProviderTransactionID, &t.CreatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// Internal helpers

func (s *LedgerService) withConflictRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= conflictRetryAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !errors.Is(lastErr, ErrStorageConflict) {
			return lastErr
		}
		log.Printf("[LEDGER] Storage conflict on attempt %d, retrying", attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(conflictRetryBackoff):
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (s *LedgerService) lockWallet(tx *sql.Tx, walletID string) (*models.Wallet, error) {
	var w models.Wallet
	err := tx.QueryRow(`
		SELECT id, user_id, balance, currency, version, updated_at
		FROM wallets
		WHERE id = $1
		FOR UPDATE`, walletID).
		Scan(&w.ID, &w.UserID, &w.Balance, &w.Currency, &w.Version, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *LedgerService) updateWalletBalance(tx *sql.Tx, walletID string, newBalance int64, version int) error {
	if newBalance < 0 {
		return ErrInsufficientFunds
	}

	result, err := tx.Exec(`
		UPDATE wallets
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, time.Now(), walletID, version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: wallet %s", ErrStorageConflict, walletID)
	}

	return nil
}

func (s *LedgerService) insertTransaction(tx *sql.Tx, txn *models.Transaction) error {
	now := time.Now()
	txn.CreatedAt = now
	txn.UpdatedAt = now
	if txn.Status == models.StatusCompleted {
		txn.SettledAt = &now
	}

	return tx.QueryRow(`
		INSERT INTO transactions
		(transaction_id, wallet_id, user_id, type, amount, currency, status, reference,
		 provider, phone_number, description, metadata, created_at, updated_at, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`,
		txn.TransactionID, txn.WalletID, txn.UserID, txn.Type, txn.Amount, txn.Currency,
		txn.Status, txn.Reference, txn.Provider, txn.PhoneNumber, txn.Description,
		txn.Metadata, txn.CreatedAt, txn.UpdatedAt, txn.SettledAt).Scan(&txn.ID)
}

func (s *LedgerService) markTransactionSettled(tx *sql.Tx, txn *models.Transaction, status string, update *SettlementUpdate) error {
	now := time.Now()
	txn.Status = status
	txn.UpdatedAt = now
	txn.SettledAt = &now
	if update != nil {
		if update.ProviderRequestID != "" {
			txn.ProviderRequestID = update.ProviderRequestID
		}
		if update.ProviderTransactionID != "" {
			txn.ProviderTransactionID = update.ProviderTransactionID
		}
		if update.Metadata != nil {
			txn.Metadata = update.Metadata
		}
	}

	_, err := tx.Exec(`
		UPDATE transactions
		SET status = $1, provider_request_id = $2, provider_transaction_id = $3,
		    metadata = $4, updated_at = $5, settled_at = $6
		WHERE transaction_id = $7`,
		txn.Status, txn.ProviderRequestID, txn.ProviderTransactionID, txn.Metadata,
		txn.UpdatedAt, txn.SettledAt, txn.TransactionID)
	return err
}

func (s *LedgerService) lockTransaction(tx *sql.Tx, transactionID string) (*models.Transaction, error) {
	var t models.Transaction
	err := tx.QueryRow(`
		SELECT id, transaction_id, wallet_id, user_id, type, amount, currency, status, reference,
		       COALESCE(provider, ''), COALESCE(provider_request_id, ''), COALESCE(provider_transaction_id, ''), created_at
		FROM transactions
		WHERE transaction_id = $1
		FOR UPDATE`, transactionID).
		Scan(&t.ID, &t.TransactionID, &t.WalletID, &t.UserID, &t.Type, &t.Amount, &t.Currency,
			&t.Status, &t.Reference, &t.Provider, &t.ProviderRequestID, &t.ProviderTransactionID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *LedgerService) findByTypeAndReference(tx *sql.Tx, txType, reference string) (*models.Transaction, error) {
	row := tx.QueryRow(`
		SELECT id, transaction_id, wallet_id, user_id, type, amount, currency, status, reference,
		       COALESCE(provider, ''), COALESCE(provider_request_id, ''), COALESCE(provider_transaction_id, ''), created_at
		FROM transactions
		WHERE type = $1 AND reference = $2`, txType, reference)
	return scanTransactionRow(row)
}

func (s *LedgerService) findByTypeAndReferenceDB(ctx context.Context, txType, reference string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, transaction_id, wallet_id, user_id, type, amount, currency, status, reference,
		       COALESCE(provider, ''), COALESCE(provider_request_id, ''), COALESCE(provider_transaction_id, ''), created_at
		FROM transactions
		WHERE type = $1 AND reference = $2`, txType, reference)
	return scanTransactionRow(row)
}

func scanTransactionRow(row *sql.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.TransactionID, &t.WalletID, &t.UserID, &t.Type, &t.Amount, &t.Currency,
		&t.Status, &t.Reference, &t.Provider, &t.ProviderRequestID, &t.ProviderTransactionID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *LedgerService) appendTransactionEvent(tx *sql.Tx, transactionID, status string) error {
	_, err := tx.Exec(`
		INSERT INTO transaction_events (transaction_id, status, created_at)
		VALUES ($1, $2, $3)`,
		transactionID, status, time.Now())
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
