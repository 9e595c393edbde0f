package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/pocketvance/backend/internal/billing"
	"github.com/pocketvance/backend/internal/models"
)

type MockCreditLedger struct {
	mock.Mock
}

func (m *MockCreditLedger) ApplyCredit(ctx context.Context, walletID string, amount int64, reference string, metadata models.Metadata) (*models.Transaction, bool, error) {
	args := m.Called(ctx, walletID, amount, reference, metadata)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Transaction), args.Bool(1), args.Error(2)
}

type MockWalletResolver struct {
	mock.Mock
}

func (m *MockWalletResolver) ResolveWalletByEmail(ctx context.Context, email string) (*models.Wallet, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wallet), args.Error(1)
}

func (m *MockWalletResolver) ResolveWalletByUserID(ctx context.Context, userID string) (*models.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wallet), args.Error(1)
}

type MockDebitLedger struct {
	mock.Mock
}

func (m *MockDebitLedger) EnsureWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wallet), args.Error(1)
}

func (m *MockDebitLedger) ReserveDebit(ctx context.Context, walletID string, amount int64, reference string, req *DebitRequest) (*models.Transaction, bool, error) {
	args := m.Called(ctx, walletID, amount, reference, req)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Transaction), args.Bool(1), args.Error(2)
}

func (m *MockDebitLedger) SettleDebit(ctx context.Context, transactionID, outcome string, update *SettlementUpdate) (*models.Transaction, error) {
	args := m.Called(ctx, transactionID, outcome, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockDebitLedger) GetTransactionByReference(ctx context.Context, txType, reference string) (*models.Transaction, error) {
	args := m.Called(ctx, txType, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

type MockBillingClient struct {
	mock.Mock
}

func (m *MockBillingClient) Purchase(ctx context.Context, req *billing.PurchaseRequest) (*billing.PurchaseResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.PurchaseResult), args.Error(1)
}

func (m *MockBillingClient) QueryStatus(ctx context.Context, requestID string) (*billing.PurchaseResult, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.PurchaseResult), args.Error(1)
}

type MockReconcileLedger struct {
	mock.Mock
}

func (m *MockReconcileLedger) ListPendingDebits(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transaction), args.Error(1)
}

func (m *MockReconcileLedger) SettleDebit(ctx context.Context, transactionID, outcome string, update *SettlementUpdate) (*models.Transaction, error) {
	args := m.Called(ctx, transactionID, outcome, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}
