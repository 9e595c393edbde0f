package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/pocketvance/backend/internal/models"
)

// Funding outcomes. Everything except a rejection is acknowledged to
// the processor so it stops redelivering.
const (
	FundingApplied        = "applied"
	FundingAlreadyApplied = "already_applied"
	FundingIgnored        = "ignored"
)

// CreditLedger is the slice of the ledger store the ingestor needs.
type CreditLedger interface {
	ApplyCredit(ctx context.Context, walletID string, amount int64, reference string, metadata models.Metadata) (*models.Transaction, bool, error)
}

// WalletResolver maps an external user identifier to a wallet. Backed
// by an indexed lookup, never a user scan.
type WalletResolver interface {
	ResolveWalletByEmail(ctx context.Context, email string) (*models.Wallet, error)
	ResolveWalletByUserID(ctx context.Context, userID string) (*models.Wallet, error)
}

// FundingService converts verified payment-processor events into
// wallet credits. Signature verification happens over the raw payload
// before anything is parsed or applied.
type FundingService struct {
	ledger          CreditLedger
	resolver        WalletResolver
	guard           *IdempotencyGuard
	paystackSecret  string
	flutterwaveHash string
}

// FundingResult is the tagged outcome handed to the transport layer.
type FundingResult struct {
	Outcome     string
	Transaction *models.Transaction
	Message     string
}

func NewFundingService(ledger CreditLedger, resolver WalletResolver, guard *IdempotencyGuard, paystackSecret, flutterwaveHash string) *FundingService {
	return &FundingService{
		ledger:          ledger,
		resolver:        resolver,
		guard:           guard,
		paystackSecret:  paystackSecret,
		flutterwaveHash: flutterwaveHash,
	}
}

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		Amount    int64  `json:"amount"` // already in kobo
		Reference string `json:"reference"`
		Channel   string `json:"channel"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

// IngestPaystack processes a Paystack webhook delivery. The signature
// header is an HMAC-SHA512 of the raw body keyed with the secret key.
func (s *FundingService) IngestPaystack(ctx context.Context, signature string, body []byte) (*FundingResult, error) {
	if !s.verifyPaystackSignature(signature, body) {
		log.Printf("[WEBHOOK] Paystack signature mismatch")
		return nil, ErrInvalidSignature
	}

	var event paystackEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("malformed paystack event: %w", err)
	}

	// Only settled virtual-account transfers credit the wallet; every
	// other event is acknowledged and dropped.
	if event.Event != "charge.success" || event.Data.Channel != "dedicated_nuban" {
		return &FundingResult{Outcome: FundingIgnored, Message: "event not actionable"}, nil
	}

	wallet, err := s.resolver.ResolveWalletByEmail(ctx, event.Data.Customer.Email)
	if err != nil {
		log.Printf("[WEBHOOK] Unattributed paystack credit: reference=%s email=%s amount=%d", event.Data.Reference, event.Data.Customer.Email, event.Data.Amount)
		return nil, err
	}

	return s.applyFunding(ctx, wallet, event.Data.Amount, "paystack", event.Data.Reference, body)
}

type flutterwaveEvent struct {
	Event string `json:"event"`
	Data  struct {
		TxRef  string  `json:"tx_ref"`
		Amount float64 `json:"amount"` // in naira
		Status string  `json:"status"`
	} `json:"data"`
}

// IngestFlutterwave processes a Flutterwave webhook delivery. The
// verif-hash header is a shared secret compared verbatim.
func (s *FundingService) IngestFlutterwave(ctx context.Context, signature string, body []byte) (*FundingResult, error) {
	if s.flutterwaveHash == "" ||
		subtle.ConstantTimeCompare([]byte(signature), []byte(s.flutterwaveHash)) != 1 {
		log.Printf("[WEBHOOK] Flutterwave hash mismatch")
		return nil, ErrInvalidSignature
	}

	var event flutterwaveEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("malformed flutterwave event: %w", err)
	}

	if event.Event != "charge.completed" {
		return &FundingResult{Outcome: FundingIgnored, Message: "event not actionable"}, nil
	}
	if event.Data.Status != "successful" {
		return &FundingResult{Outcome: FundingIgnored, Message: "payment not successful"}, nil
	}

	userID, err := userIDFromTxRef(event.Data.TxRef)
	if err != nil {
		return nil, err
	}

	wallet, err := s.resolver.ResolveWalletByUserID(ctx, userID)
	if err != nil {
		log.Printf("[WEBHOOK] Unattributed flutterwave credit: tx_ref=%s amount=%.2f", event.Data.TxRef, event.Data.Amount)
		return nil, err
	}

	amountKobo := int64(math.Round(event.Data.Amount * 100))
	return s.applyFunding(ctx, wallet, amountKobo, "flutterwave", event.Data.TxRef, body)
}

func (s *FundingService) applyFunding(ctx context.Context, wallet *models.Wallet, amount int64, provider, reference string, rawEvent []byte) (*FundingResult, error) {
	guardKey := fmt.Sprintf("funding:%s:%s", provider, reference)
	firstSeen, _ := s.guard.CheckAndReserve(ctx, guardKey)
	if !firstSeen {
		log.Printf("[WEBHOOK] Duplicate %s delivery short-circuited: %s", provider, reference)
		return &FundingResult{Outcome: FundingAlreadyApplied, Message: "duplicate delivery"}, nil
	}

	var payload map[string]any
	json.Unmarshal(rawEvent, &payload)
	metadata := models.Metadata{"provider": provider, "provider_payload": payload}

	txn, applied, err := s.ledger.ApplyCredit(ctx, wallet.ID, amount, reference, metadata)
	if err != nil {
		// Let a future redelivery retry cleanly.
		s.guard.Release(ctx, guardKey)
		return nil, err
	}

	if !applied {
		return &FundingResult{Outcome: FundingAlreadyApplied, Transaction: txn, Message: "reference already credited"}, nil
	}

	log.Printf("[WEBHOOK] Credited %d kobo to wallet %s via %s (reference %s)", amount, wallet.ID, provider, reference)
	return &FundingResult{Outcome: FundingApplied, Transaction: txn, Message: "wallet credited"}, nil
}

func (s *FundingService) verifyPaystackSignature(signature string, body []byte) bool {
	if s.paystackSecret == "" || signature == "" {
		return false
	}

	h := hmac.New(sha512.New, []byte(s.paystackSecret))
	h.Write(body)
	expected := hex.EncodeToString(h.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// Funding references carry the user id in the second segment,
// e.g. PVANCE_<userID>_<timestamp>.
func userIDFromTxRef(txRef string) (string, error) {
	parts := strings.Split(txRef, "_")
	if len(parts) < 2 || parts[1] == "" {
		return "", fmt.Errorf("invalid funding reference format: %s", txRef)
	}
	return parts[1], nil
}
