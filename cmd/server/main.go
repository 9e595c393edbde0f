package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/pocketvance/backend/docs"
	"github.com/pocketvance/backend/internal/billing"
	"github.com/pocketvance/backend/internal/config"
	"github.com/pocketvance/backend/internal/database"
	"github.com/pocketvance/backend/internal/handlers"
	mW "github.com/pocketvance/backend/internal/middleware"
	"github.com/pocketvance/backend/internal/services"
)

// @title PocketVance Wallet API
// @version 1.0
// @description Wallet ledger backend: webhook funding, bill purchases, settlement reporting
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "PocketVance Wallet API"
	docs.SwaggerInfo.Description = "Wallet ledger backend: webhook funding, bill purchases, settlement reporting"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	walletCfg := config.LoadWalletConfig()
	webhookCfg := config.LoadWebhookConfig()
	billingCfg := config.LoadBillingConfig()

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	ledgerService := services.NewLedgerService(db)
	guard := services.NewIdempotencyGuard(redisClient, walletCfg.IdempotencyRetention)
	walletService := services.NewWalletService(db, ledgerService, walletCfg.FundingBankName)
	fundingService := services.NewFundingService(ledgerService, walletService, guard,
		webhookCfg.PaystackSecretKey, webhookCfg.FlutterwaveSecretHash)
	webhookHandler := handlers.NewWebhookHandler(fundingService)

	billingClient := billing.NewClient(billingCfg.BaseURL, billingCfg.PublicKey, billingCfg.APIKey, walletCfg.ProviderTimeout)
	purchaseService := services.NewPurchaseService(ledgerService, billingClient, guard, walletCfg.ProviderTimeout)
	reconciliationService := services.NewReconciliationService(ledgerService, billingClient,
		walletCfg.ReconcileEligibility, walletCfg.MaxPendingAge, walletCfg.ReconcileBatchLimit)
	settlementService := services.NewSettlementService(db)

	// Background reconciliation of pending purchase debits
	jobCtx, stopJobs := context.WithCancel(context.Background())
	go reconciliationService.Start(jobCtx, walletCfg.ReconcileInterval)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Payment processor webhooks authenticate by signature, not JWT
	r.Post("/webhooks/paystack", webhookHandler.HandlePaystack)
	r.Post("/webhooks/flutterwave", webhookHandler.HandleFlutterwave)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/wallet/balance", walletService.GetBalance)
			r.Get("/wallet/topup-qr", walletService.GetTopUpQR)

			r.Get("/transactions", walletService.ListTransactions)
			r.Get("/transactions/recent", walletService.GetRecentTransactions)
			r.Get("/transactions/{txId}", walletService.GetTransaction)

			r.Post("/purchases", purchaseService.PurchaseBill)

			// Settlement and operations endpoints
			r.Get("/settlement/export", settlementService.ExportSettlementFeed)
			r.Get("/settlement/status/{txId}", settlementService.ReportTransactionStatus)
			r.Post("/admin/reconcile", reconciliationService.ReconcileNow)
			r.Post("/admin/transactions/{txId}/refund", walletService.RefundTransaction)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	stopJobs()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
