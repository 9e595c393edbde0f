package services

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/pocketvance/backend/internal/billing"
	"github.com/pocketvance/backend/internal/models"
)

// ReconcileLedger is the slice of the ledger store reconciliation needs.
type ReconcileLedger interface {
	ListPendingDebits(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error)
	SettleDebit(ctx context.Context, transactionID, outcome string, update *SettlementUpdate) (*models.Transaction, error)
}

// ReconciliationService resolves debits left pending by indeterminate
// provider outcomes. It re-queries the provider's own transaction
// status by reference; attempts older than MaxPendingAge are force
// failed so reserved funds are not held indefinitely.
type ReconciliationService struct {
	ledger        ReconcileLedger
	billing       BillingClient
	eligibility   time.Duration
	maxPendingAge time.Duration
	batchLimit    int
	queryTimeout  time.Duration
}

// ReconcileSummary reports one reconciliation pass.
type ReconcileSummary struct {
	Processed    int `json:"processed"`
	Completed    int `json:"completed"`
	Failed       int `json:"failed"`
	ForceFailed  int `json:"force_failed"`
	StillPending int `json:"still_pending"`
	Errors       int `json:"errors"`
}

func NewReconciliationService(ledger ReconcileLedger, billingClient BillingClient, eligibility, maxPendingAge time.Duration, batchLimit int) *ReconciliationService {
	if eligibility <= 0 {
		eligibility = 2 * time.Minute
	}
	if maxPendingAge <= 0 {
		maxPendingAge = 24 * time.Hour
	}
	if batchLimit <= 0 {
		batchLimit = 100
	}
	return &ReconciliationService{
		ledger:        ledger,
		billing:       billingClient,
		eligibility:   eligibility,
		maxPendingAge: maxPendingAge,
		batchLimit:    batchLimit,
		queryTimeout:  10 * time.Second,
	}
}

// Run executes one reconciliation pass over pending debits old enough
// to be eligible for re-query.
func (s *ReconciliationService) Run(ctx context.Context) (*ReconcileSummary, error) {
	cutoff := time.Now().Add(-s.eligibility)
	pending, err := s.ledger.ListPendingDebits(ctx, cutoff, s.batchLimit)
	if err != nil {
		return nil, err
	}

	summary := &ReconcileSummary{Processed: len(pending)}
	for _, txn := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		s.resolve(ctx, &txn, summary)
	}

	if summary.Processed > 0 {
		log.Printf("[RECONCILE] Pass done: processed=%d completed=%d failed=%d force_failed=%d still_pending=%d errors=%d",
			summary.Processed, summary.Completed, summary.Failed, summary.ForceFailed, summary.StillPending, summary.Errors)
	}
	return summary, nil
}

func (s *ReconciliationService) resolve(ctx context.Context, txn *models.Transaction, summary *ReconcileSummary) {
	if time.Since(txn.CreatedAt) > s.maxPendingAge {
		// The provider never confirmed within the maximum pending
		// lifetime; restore the reserved funds.
		update := &SettlementUpdate{Metadata: models.Metadata{"reconcile_reason": "max pending lifetime exceeded"}}
		if _, err := s.ledger.SettleDebit(ctx, txn.TransactionID, models.StatusFailed, update); err != nil {
			summary.Errors++
			log.Printf("[RECONCILE] Failed to force-fail %s: %v", txn.TransactionID, err)
			return
		}
		summary.ForceFailed++
		log.Printf("[RECONCILE] Force-failed stale pending debit %s (reference %s)", txn.TransactionID, txn.Reference)
		return
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	result, err := s.billing.QueryStatus(queryCtx, txn.Reference)
	cancel()
	if err != nil {
		summary.Errors++
		log.Printf("[RECONCILE] Status query failed for %s: %v", txn.Reference, err)
		return
	}

	update := &SettlementUpdate{
		ProviderRequestID:     result.ProviderRequestID,
		ProviderTransactionID: result.ProviderTransactionID,
		Metadata:              models.Metadata{"provider_response": result.Raw, "resolved_by": "reconciliation"},
	}

	switch result.Outcome {
	case billing.OutcomeSuccess:
		if _, err := s.ledger.SettleDebit(ctx, txn.TransactionID, models.StatusCompleted, update); err != nil {
			summary.Errors++
			return
		}
		summary.Completed++
	case billing.OutcomeFailure:
		if _, err := s.ledger.SettleDebit(ctx, txn.TransactionID, models.StatusFailed, update); err != nil {
			summary.Errors++
			return
		}
		summary.Failed++
	default:
		// Still ambiguous on the provider side; keep waiting.
		summary.StillPending++
	}
}

// Start runs reconciliation passes on a fixed interval until ctx is
// cancelled. Called from main as a background goroutine.
func (s *ReconciliationService) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[RECONCILE] Job started, interval %s", interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[RECONCILE] Job stopped")
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("[RECONCILE] Pass failed: %v", err)
			}
		}
	}
}

// ReconcileNow triggers a reconciliation pass
// @Summary Trigger reconciliation
// @Description Run one reconciliation pass over pending purchase debits
// @Tags admin
// @Produce json
// @Success 200 {object} ReconcileSummary
// @Failure 500 {object} ErrorResponse
// @Router /admin/reconcile [post]
func (s *ReconciliationService) ReconcileNow(w http.ResponseWriter, r *http.Request) {
	summary, err := s.Run(r.Context())
	if err != nil {
		SendErrorResponse(w, "Reconciliation pass failed", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}
