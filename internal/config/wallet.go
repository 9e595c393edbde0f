package config

import (
	"os"
	"strconv"
	"time"
)

type WalletConfig struct {
	Currency             string
	ProviderTimeout      time.Duration
	ReconcileInterval    time.Duration
	ReconcileEligibility time.Duration
	ReconcileBatchLimit  int
	MaxPendingAge        time.Duration
	IdempotencyRetention time.Duration
	FundingBankName      string
}

type WebhookConfig struct {
	PaystackSecretKey     string
	FlutterwaveSecretHash string
}

type BillingConfig struct {
	BaseURL   string
	PublicKey string
	APIKey    string
}

func LoadWalletConfig() *WalletConfig {
	return &WalletConfig{
		Currency:             getEnv("WALLET_CURRENCY", "NGN"),
		ProviderTimeout:      getEnvAsDuration("BILLING_PROVIDER_TIMEOUT", 10*time.Second),
		ReconcileInterval:    getEnvAsDuration("RECONCILE_INTERVAL", 5*time.Minute),
		ReconcileEligibility: getEnvAsDuration("RECONCILE_ELIGIBILITY_AGE", 2*time.Minute),
		ReconcileBatchLimit:  getEnvAsInt("RECONCILE_BATCH_LIMIT", 100),
		MaxPendingAge:        getEnvAsDuration("MAX_PENDING_AGE", 24*time.Hour),
		IdempotencyRetention: getEnvAsDuration("IDEMPOTENCY_RETENTION", 365*24*time.Hour),
		FundingBankName:      getEnv("FUNDING_BANK_NAME", "Wema Bank"),
	}
}

func LoadWebhookConfig() *WebhookConfig {
	return &WebhookConfig{
		PaystackSecretKey:     getEnv("PAYSTACK_SECRET_KEY", ""),
		FlutterwaveSecretHash: getEnv("FLUTTERWAVE_SECRET_KEY", ""),
	}
}

func LoadBillingConfig() *BillingConfig {
	return &BillingConfig{
		BaseURL:   getEnv("VTPASS_BASE_URL", "https://api-service.vtpass.com"),
		PublicKey: getEnv("VTPASS_PUBLIC_KEY", ""),
		APIKey:    getEnv("VTPASS_API_KEY", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
