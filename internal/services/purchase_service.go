package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/pocketvance/backend/internal/billing"
	"github.com/pocketvance/backend/internal/models"
)

// DebitLedger is the slice of the ledger store the purchase path needs.
type DebitLedger interface {
	EnsureWallet(ctx context.Context, userID string) (*models.Wallet, error)
	ReserveDebit(ctx context.Context, walletID string, amount int64, reference string, req *DebitRequest) (*models.Transaction, bool, error)
	SettleDebit(ctx context.Context, transactionID, outcome string, update *SettlementUpdate) (*models.Transaction, error)
	GetTransactionByReference(ctx context.Context, txType, reference string) (*models.Transaction, error)
}

// BillingClient is the external bill-payment aggregator.
type BillingClient interface {
	Purchase(ctx context.Context, req *billing.PurchaseRequest) (*billing.PurchaseResult, error)
	QueryStatus(ctx context.Context, requestID string) (*billing.PurchaseResult, error)
}

// PurchaseService spends wallet funds against the billing aggregator.
// Funds are reserved before the provider call, so concurrent purchases
// can never authorize more than the balance; an ambiguous provider
// outcome leaves the transaction pending for reconciliation instead of
// guessing.
type PurchaseService struct {
	ledger          DebitLedger
	billing         BillingClient
	guard           *IdempotencyGuard
	validator       *ValidationHelper
	providerTimeout time.Duration
}

func NewPurchaseService(ledger DebitLedger, billingClient BillingClient, guard *IdempotencyGuard, providerTimeout time.Duration) *PurchaseService {
	if providerTimeout <= 0 {
		providerTimeout = 10 * time.Second
	}
	return &PurchaseService{
		ledger:          ledger,
		billing:         billingClient,
		guard:           guard,
		validator:       NewValidationHelper(),
		providerTimeout: providerTimeout,
	}
}

// PurchaseRequest is one bill purchase attempt. Reference is a
// client-generated idempotency token, unique per logical purchase, so
// client retries never double-spend.
type PurchaseRequest struct {
	ServiceID     string `json:"serviceID" validate:"required"`
	Amount        int64  `json:"amount" validate:"required,gt=0"` // in kobo
	Phone         string `json:"phone" validate:"required,min=7,max=15"`
	BillersCode   string `json:"billersCode,omitempty"`
	VariationCode string `json:"variationCode,omitempty"`
	Reference     string `json:"reference" validate:"required,min=8,max=64"`
}

// PurchaseBill handles a bill purchase request
// @Summary Purchase airtime, data or bill payment
// @Description Debit the wallet and deliver a bill purchase through the billing aggregator
// @Tags purchases
// @Accept json
// @Produce json
// @Param purchase body PurchaseRequest true "Purchase data"
// @Success 200 {object} object{success=bool,transaction=models.Transaction}
// @Success 202 {object} object{success=bool,transaction=models.Transaction,message=string}
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /purchases [post]
func (ps *PurchaseService) PurchaseBill(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req PurchaseRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := ps.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	txn, err := ps.Process(r.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientFunds):
			SendErrorResponse(w, "Insufficient balance", http.StatusBadRequest, nil)
		case errors.Is(err, ErrUnavailable):
			SendErrorResponse(w, "Service temporarily unavailable, try again", http.StatusServiceUnavailable, nil)
		default:
			log.Printf("[PURCHASE] Failed for user %s: %v", userID, err)
			SendErrorResponse(w, "Failed to process purchase", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if txn.Status == models.StatusPending {
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":     false,
			"transaction": txn,
			"message":     "Purchase is processing, status will be resolved shortly",
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":     txn.Status == models.StatusCompleted,
		"transaction": txn,
	})
}

// Process runs the full reserve -> provider call -> settle sequence and
// returns the transaction in its resulting state. A replayed reference
// returns the existing transaction without a second provider call.
func (ps *PurchaseService) Process(ctx context.Context, userID string, req *PurchaseRequest) (*models.Transaction, error) {
	wallet, err := ps.ledger.EnsureWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	guardKey := "debit:" + req.Reference
	firstSeen, _ := ps.guard.CheckAndReserve(ctx, guardKey)
	if !firstSeen {
		existing, err := ps.ledger.GetTransactionByReference(ctx, models.TypeDebit, req.Reference)
		if err == nil {
			log.Printf("[PURCHASE] Duplicate reference %s short-circuited", req.Reference)
			return existing, nil
		}
		// Guard and ledger disagree; the ledger is authoritative, so
		// fall through and let ReserveDebit decide.
	}

	category := purchaseCategory(req.ServiceID)
	txn, reserved, err := ps.ledger.ReserveDebit(ctx, wallet.ID, req.Amount, req.Reference, &DebitRequest{
		Provider:    req.ServiceID,
		PhoneNumber: req.Phone,
		Description: fmt.Sprintf("%s %s purchase", strings.ToUpper(req.ServiceID), category),
	})
	if err != nil {
		ps.guard.Release(ctx, guardKey)
		return nil, err
	}

	if !reserved {
		// Idempotent replay: the attempt already exists. If it is still
		// pending the reconciliation job owns its resolution.
		return txn, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, ps.providerTimeout)
	defer cancel()

	result, err := ps.billing.Purchase(callCtx, &billing.PurchaseRequest{
		RequestID:     req.Reference,
		ServiceID:     req.ServiceID,
		Amount:        req.Amount,
		Phone:         req.Phone,
		BillersCode:   req.BillersCode,
		VariationCode: req.VariationCode,
	})
	if err != nil {
		// Request never left the process; nothing irreversible happened,
		// but the reservation stands until reconciliation clears it.
		log.Printf("[PURCHASE] Provider call not issued for %s: %v", req.Reference, err)
		return txn, nil
	}

	return ps.settle(ctx, txn, result)
}

func (ps *PurchaseService) settle(ctx context.Context, txn *models.Transaction, result *billing.PurchaseResult) (*models.Transaction, error) {
	update := &SettlementUpdate{
		ProviderRequestID:     result.ProviderRequestID,
		ProviderTransactionID: result.ProviderTransactionID,
		Metadata:              models.Metadata{"provider_response": result.Raw},
	}

	switch result.Outcome {
	case billing.OutcomeSuccess:
		return ps.ledger.SettleDebit(ctx, txn.TransactionID, models.StatusCompleted, update)
	case billing.OutcomeFailure:
		log.Printf("[PURCHASE] Provider declined %s: %s %s", txn.Reference, result.Code, result.Description)
		return ps.ledger.SettleDebit(ctx, txn.TransactionID, models.StatusFailed, update)
	default:
		// Indeterminate: keep the reservation, never guess. The
		// reconciliation job resolves it against the provider's own
		// status query.
		log.Printf("[PURCHASE] Indeterminate provider outcome for %s: %s", txn.Reference, result.Description)
		return txn, nil
	}
}

func purchaseCategory(serviceID string) string {
	id := strings.ToLower(serviceID)
	switch {
	case id == "mtn" || id == "glo" || id == "airtel" || id == "9mobile":
		return "airtime"
	case strings.Contains(id, "data"):
		return "data"
	case strings.Contains(id, "electric"):
		return "electricity"
	case strings.Contains(id, "dstv") || strings.Contains(id, "gotv") || strings.Contains(id, "startimes"):
		return "cable"
	default:
		return "bill"
	}
}
