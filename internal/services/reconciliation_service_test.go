package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/pocketvance/backend/internal/billing"
	"github.com/pocketvance/backend/internal/models"
)

func pendingDebit(txID, reference string, age time.Duration) models.Transaction {
	return models.Transaction{
		TransactionID: txID,
		WalletID:      "w1",
		UserID:        "user1",
		Type:          models.TypeDebit,
		Amount:        50000,
		Status:        models.StatusPending,
		Reference:     reference,
		CreatedAt:     time.Now().Add(-age),
	}
}

func TestReconciliationService_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("completes debits the provider confirms", func(t *testing.T) {
		ledger := &MockReconcileLedger{}
		billingClient := &MockBillingClient{}
		service := NewReconciliationService(ledger, billingClient, 2*time.Minute, 24*time.Hour, 100)

		ledger.On("ListPendingDebits", mock.Anything, mock.Anything, 100).
			Return([]models.Transaction{pendingDebit("tx-1", "REF-1", 10*time.Minute)}, nil)
		billingClient.On("QueryStatus", mock.Anything, "REF-1").
			Return(&billing.PurchaseResult{Outcome: billing.OutcomeSuccess, Code: "000"}, nil)
		ledger.On("SettleDebit", mock.Anything, "tx-1", models.StatusCompleted, mock.Anything).
			Return(&models.Transaction{TransactionID: "tx-1", Status: models.StatusCompleted}, nil)

		summary, err := service.Run(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 1, summary.Processed)
		assert.Equal(t, 1, summary.Completed)
		ledger.AssertExpectations(t)
	})

	t.Run("fails debits the provider rejects", func(t *testing.T) {
		ledger := &MockReconcileLedger{}
		billingClient := &MockBillingClient{}
		service := NewReconciliationService(ledger, billingClient, 2*time.Minute, 24*time.Hour, 100)

		ledger.On("ListPendingDebits", mock.Anything, mock.Anything, 100).
			Return([]models.Transaction{pendingDebit("tx-2", "REF-2", 10*time.Minute)}, nil)
		billingClient.On("QueryStatus", mock.Anything, "REF-2").
			Return(&billing.PurchaseResult{Outcome: billing.OutcomeFailure, Code: "016"}, nil)
		ledger.On("SettleDebit", mock.Anything, "tx-2", models.StatusFailed, mock.Anything).
			Return(&models.Transaction{TransactionID: "tx-2", Status: models.StatusFailed}, nil)

		summary, err := service.Run(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 1, summary.Failed)
	})

	t.Run("keeps waiting on ambiguous provider state", func(t *testing.T) {
		ledger := &MockReconcileLedger{}
		billingClient := &MockBillingClient{}
		service := NewReconciliationService(ledger, billingClient, 2*time.Minute, 24*time.Hour, 100)

		ledger.On("ListPendingDebits", mock.Anything, mock.Anything, 100).
			Return([]models.Transaction{pendingDebit("tx-3", "REF-3", 10*time.Minute)}, nil)
		billingClient.On("QueryStatus", mock.Anything, "REF-3").
			Return(&billing.PurchaseResult{Outcome: billing.OutcomeIndeterminate}, nil)

		summary, err := service.Run(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 1, summary.StillPending)
		ledger.AssertNotCalled(t, "SettleDebit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("force fails debits past the maximum pending lifetime", func(t *testing.T) {
		ledger := &MockReconcileLedger{}
		billingClient := &MockBillingClient{}
		service := NewReconciliationService(ledger, billingClient, 2*time.Minute, 24*time.Hour, 100)

		ledger.On("ListPendingDebits", mock.Anything, mock.Anything, 100).
			Return([]models.Transaction{pendingDebit("tx-4", "REF-4", 25*time.Hour)}, nil)
		ledger.On("SettleDebit", mock.Anything, "tx-4", models.StatusFailed, mock.Anything).
			Return(&models.Transaction{TransactionID: "tx-4", Status: models.StatusFailed}, nil)

		summary, err := service.Run(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 1, summary.ForceFailed)
		billingClient.AssertNotCalled(t, "QueryStatus", mock.Anything, mock.Anything)
	})

	t.Run("query failures are counted and skipped", func(t *testing.T) {
		ledger := &MockReconcileLedger{}
		billingClient := &MockBillingClient{}
		service := NewReconciliationService(ledger, billingClient, 2*time.Minute, 24*time.Hour, 100)

		ledger.On("ListPendingDebits", mock.Anything, mock.Anything, 100).
			Return([]models.Transaction{
				pendingDebit("tx-5", "REF-5", 10*time.Minute),
				pendingDebit("tx-6", "REF-6", 10*time.Minute),
			}, nil)
		billingClient.On("QueryStatus", mock.Anything, "REF-5").
			Return(nil, errors.New("marshal failure"))
		billingClient.On("QueryStatus", mock.Anything, "REF-6").
			Return(&billing.PurchaseResult{Outcome: billing.OutcomeSuccess, Code: "000"}, nil)
		ledger.On("SettleDebit", mock.Anything, "tx-6", models.StatusCompleted, mock.Anything).
			Return(&models.Transaction{TransactionID: "tx-6", Status: models.StatusCompleted}, nil)

		summary, err := service.Run(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 2, summary.Processed)
		assert.Equal(t, 1, summary.Errors)
		assert.Equal(t, 1, summary.Completed)
	})

	t.Run("list failure aborts the pass", func(t *testing.T) {
		ledger := &MockReconcileLedger{}
		billingClient := &MockBillingClient{}
		service := NewReconciliationService(ledger, billingClient, 2*time.Minute, 24*time.Hour, 100)

		ledger.On("ListPendingDebits", mock.Anything, mock.Anything, 100).
			Return(nil, errors.New("db down"))

		_, err := service.Run(ctx)
		assert.Error(t, err)
	})
}
