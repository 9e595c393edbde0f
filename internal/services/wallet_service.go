package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/pocketvance/backend/internal/models"
)

// WalletService serves the user-facing wallet read API and implements
// the wallet resolution the funding ingestor depends on.
type WalletService struct {
	db        *sql.DB
	ledger    *LedgerService
	validator *ValidationHelper
	bankName  string
}

func NewWalletService(db *sql.DB, ledger *LedgerService, bankName string) *WalletService {
	return &WalletService{
		db:        db,
		ledger:    ledger,
		validator: NewValidationHelper(),
		bankName:  bankName,
	}
}

// ResolveWalletByEmail maps a payment processor's customer email to a
// wallet through the indexed profiles table.
func (ws *WalletService) ResolveWalletByEmail(ctx context.Context, email string) (*models.Wallet, error) {
	var w models.Wallet
	err := ws.db.QueryRowContext(ctx, `
		SELECT w.id, w.user_id, w.balance, w.currency, w.version, w.updated_at
		FROM wallets w
		JOIN profiles p ON p.user_id = w.user_id
		WHERE p.email = $1`, email).
		Scan(&w.ID, &w.UserID, &w.Balance, &w.Currency, &w.Version, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (ws *WalletService) ResolveWalletByUserID(ctx context.Context, userID string) (*models.Wallet, error) {
	return ws.ledger.GetWalletByUserID(ctx, userID)
}

// GetBalance returns the caller's wallet balance
// @Summary Get wallet balance
// @Description Retrieve the authenticated user's wallet balance in kobo
// @Tags wallet
// @Produce json
// @Success 200 {object} object{balance=int64,currency=string}
// @Failure 500 {object} ErrorResponse
// @Router /wallet/balance [get]
func (ws *WalletService) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	wallet, err := ws.ledger.EnsureWallet(r.Context(), userID)
	if err != nil {
		log.Printf("[WALLET] Balance lookup failed for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch balance", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"balance":  wallet.Balance,
		"currency": wallet.Currency,
	})
}

// ListTransactions lists the caller's transactions
// @Summary List transactions
// @Description Get the authenticated user's transactions with optional status/type filters
// @Tags transactions
// @Produce json
// @Param status query string false "Filter by status"
// @Param type query string false "Filter by type"
// @Param limit query int false "Number of transactions to return (default: 50, max: 100)"
// @Success 200 {object} object{transactions=[]models.Transaction,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /transactions [get]
func (ws *WalletService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	status := r.URL.Query().Get("status")
	txType := r.URL.Query().Get("type")
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	transactions, err := ws.fetchTransactions(r.Context(), userID, status, txType, limit)
	if err != nil {
		log.Printf("[WALLET] Transaction list failed for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// GetTransaction fetches one transaction by id
// @Summary Get transaction by ID
// @Description Retrieve one of the authenticated user's transactions
// @Tags transactions
// @Produce json
// @Param txId path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /transactions/{txId} [get]
func (ws *WalletService) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	txID := chi.URLParam(r, "txId")

	var t models.Transaction
	err := ws.db.QueryRowContext(r.Context(), `
		SELECT id, transaction_id, wallet_id, user_id, type, amount, currency, status, reference,
		       COALESCE(provider, ''), COALESCE(phone_number, ''), COALESCE(description, ''), created_at, updated_at
		FROM transactions
		WHERE transaction_id = $1 AND user_id = $2`, txID, userID).
		Scan(&t.ID, &t.TransactionID, &t.WalletID, &t.UserID, &t.Type, &t.Amount, &t.Currency,
			&t.Status, &t.Reference, &t.Provider, &t.PhoneNumber, &t.Description, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to fetch transaction", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(t)
}

// GetRecentTransactions lists recent transactions
// @Summary Get recent transactions
// @Description Get the authenticated user's most recent transactions
// @Tags transactions
// @Produce json
// @Param limit query int false "Number of transactions to return (default: 10, max: 100)"
// @Success 200 {array} models.Transaction
// @Failure 500 {object} ErrorResponse
// @Router /transactions/recent [get]
func (ws *WalletService) GetRecentTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Limit int `validate:"omitempty,min=1,max=100"`
	}
	req.Limit = 10

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			req.Limit = l
		}
	}

	if err := ws.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	transactions, err := ws.fetchTransactions(r.Context(), userID, "", "", req.Limit)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch recent transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transactions)
}

// GetTopUpQR renders the user's funding details as a QR code
// @Summary Get top-up QR code
// @Description PNG QR code carrying the user's virtual funding account details
// @Tags wallet
// @Produce png
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /wallet/topup-qr [get]
func (ws *WalletService) GetTopUpQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var accountNumber, accountName sql.NullString
	err := ws.db.QueryRowContext(r.Context(), `
		SELECT virtual_account_number, full_name FROM profiles WHERE user_id = $1`, userID).
		Scan(&accountNumber, &accountName)
	if err == sql.ErrNoRows || (err == nil && !accountNumber.Valid) {
		SendErrorResponse(w, "No virtual account provisioned", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to fetch funding details", http.StatusInternalServerError, nil)
		return
	}

	payload, err := json.Marshal(map[string]string{
		"bank":           ws.bankName,
		"account_number": accountNumber.String,
		"account_name":   accountName.String,
	})
	if err != nil {
		SendErrorResponse(w, "Failed to build QR payload", http.StatusInternalServerError, nil)
		return
	}

	png, err := qrcode.Encode(string(payload), qrcode.Medium, 256)
	if err != nil {
		SendErrorResponse(w, "Failed to generate QR code", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Write(png)
}

// RefundTransaction refunds a completed purchase debit
// @Summary Refund a completed debit
// @Description Credit back a completed purchase debit and mark the original refunded
// @Tags admin
// @Accept json
// @Produce json
// @Param txId path string true "Transaction ID"
// @Param request body object{reason=string} true "Refund reason"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/transactions/{txId}/refund [post]
func (ws *WalletService) RefundTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txId")

	var req struct {
		Reason string `json:"reason" validate:"required,min=3,max=255"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := ws.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	refund, err := ws.ledger.Refund(r.Context(), txID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ErrTransactionNotFound):
			SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		case errors.Is(err, ErrNotRefundable):
			SendErrorResponse(w, "Only completed debits can be refunded", http.StatusConflict, nil)
		default:
			log.Printf("[WALLET] Refund failed for %s: %v", txID, err)
			SendErrorResponse(w, "Failed to process refund", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(refund)
}

func (ws *WalletService) fetchTransactions(ctx context.Context, userID, status, txType string, limit int) ([]models.Transaction, error) {
	query := `
		SELECT id, transaction_id, wallet_id, user_id, type, amount, currency, status, reference,
		       COALESCE(provider, ''), COALESCE(phone_number, ''), COALESCE(description, ''), created_at, updated_at
		FROM transactions
		WHERE user_id = $1`
	args := []interface{}{userID}

	if status != "" {
		args = append(args, status)
		query += " AND status = $" + strconv.Itoa(len(args))
	}
	if txType != "" {
		args = append(args, txType)
		query += " AND type = $" + strconv.Itoa(len(args))
	}

	args = append(args, limit)
	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args))

	rows, err := ws.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.TransactionID, &t.WalletID, &t.UserID, &t.Type, &t.Amount,
			&t.Currency, &t.Status, &t.Reference, &t.Provider, &t.PhoneNumber, &t.Description,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}
