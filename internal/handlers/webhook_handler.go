package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/pocketvance/backend/internal/services"
)

// Processors redeliver on non-2xx, so only two conditions reject a
// delivery: a bad signature (401) and a credit we could not attribute
// to a wallet (404, after logging enough to replay it by hand).
// Everything else is acknowledged.
type WebhookHandler struct {
	funding *services.FundingService
}

func NewWebhookHandler(funding *services.FundingService) *WebhookHandler {
	return &WebhookHandler{funding: funding}
}

// HandlePaystack receives Paystack webhook deliveries
// @Summary Paystack webhook
// @Description Ingest a Paystack charge event and credit the matching wallet
// @Tags webhooks
// @Accept json
// @Produce json
// @Param x-paystack-signature header string true "HMAC-SHA512 signature of the raw body"
// @Success 200 {object} object{status=string,message=string}
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /webhooks/paystack [post]
func (h *WebhookHandler) HandlePaystack(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	result, err := h.funding.IngestPaystack(r.Context(), r.Header.Get("x-paystack-signature"), body)
	h.respond(w, "paystack", result, err)
}

// HandleFlutterwave receives Flutterwave webhook deliveries
// @Summary Flutterwave webhook
// @Description Ingest a Flutterwave charge event and credit the matching wallet
// @Tags webhooks
// @Accept json
// @Produce json
// @Param verif-hash header string true "Shared webhook secret hash"
// @Success 200 {object} object{status=string,message=string}
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /webhooks/flutterwave [post]
func (h *WebhookHandler) HandleFlutterwave(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	result, err := h.funding.IngestFlutterwave(r.Context(), r.Header.Get("verif-hash"), body)
	h.respond(w, "flutterwave", result, err)
}

// Signature verification needs the raw bytes, so the body is read
// before any JSON decoding happens.
func (h *WebhookHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		services.SendErrorResponse(w, "Unreadable request body", http.StatusBadRequest, nil)
		return nil, false
	}
	return body, true
}

func (h *WebhookHandler) respond(w http.ResponseWriter, provider string, result *services.FundingResult, err error) {
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidSignature):
			services.SendErrorResponse(w, "Invalid signature", http.StatusUnauthorized, nil)
		case errors.Is(err, services.ErrWalletNotFound):
			services.SendErrorResponse(w, "No wallet for delivery", http.StatusNotFound, nil)
		default:
			log.Printf("[WEBHOOK] %s ingestion failed: %v", provider, err)
			services.SendErrorResponse(w, "Failed to process delivery", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  result.Outcome,
		"message": result.Message,
	})
}
