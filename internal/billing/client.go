// Package billing is the HTTP client for the VTPass bill-payment
// aggregator (airtime, data, electricity, cable). Provider responses
// are classified into the three outcomes the ledger core understands:
// success, failure, and indeterminate. Indeterminate covers transport
// errors, timeouts, 5xx responses and unknown response codes, and must
// never be collapsed into failure by callers.
package billing

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeFailure       Outcome = "failure"
	OutcomeIndeterminate Outcome = "indeterminate"
)

// Response codes VTPass documents as definite declines. Anything not
// listed here and not "000" is treated as indeterminate.
var declineCodes = map[string]bool{
	"010": true, // variation code does not exist
	"012": true, // product does not exist
	"013": true, // below minimum amount
	"014": true, // request id already exists
	"016": true, // transaction failed
	"017": true, // above maximum amount
	"018": true, // low wallet balance (aggregator side)
	"031": true, // below minimum quantity
	"034": true, // service suspended
}

type Client struct {
	BaseURL    string
	PublicKey  string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(baseURL, publicKey, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:   baseURL,
		PublicKey: publicKey,
		APIKey:    apiKey,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// PurchaseRequest is one bill purchase attempt. Amount is in kobo;
// the VTPass wire format takes naira, converted at this boundary.
type PurchaseRequest struct {
	RequestID     string
	ServiceID     string
	Amount        int64
	Phone         string
	BillersCode   string
	VariationCode string
}

// PurchaseResult carries the classified outcome plus the raw provider
// payload for the transaction's audit metadata.
type PurchaseResult struct {
	Outcome               Outcome
	Code                  string
	Description           string
	ProviderRequestID     string
	ProviderTransactionID string
	Raw                   map[string]any
}

type payRequest struct {
	RequestID     string  `json:"request_id"`
	ServiceID     string  `json:"serviceID"`
	Amount        float64 `json:"amount"`
	Phone         string  `json:"phone"`
	BillersCode   string  `json:"billersCode,omitempty"`
	VariationCode string  `json:"variation_code,omitempty"`
}

type providerResponse struct {
	Code                string `json:"code"`
	ResponseDescription string `json:"response_description"`
	RequestID           string `json:"requestId"`
	TransactionID       string `json:"transactionId"`
	Content             struct {
		Transactions struct {
			Status        string `json:"status"`
			TransactionID string `json:"transactionId"`
		} `json:"transactions"`
	} `json:"content"`
}

// Purchase submits a pay request. Transport failures and ambiguous
// responses come back as OutcomeIndeterminate, not as an error; a
// non-nil error means the request could not even be constructed.
func (c *Client) Purchase(ctx context.Context, req *PurchaseRequest) (*PurchaseResult, error) {
	payload := payRequest{
		RequestID:     req.RequestID,
		ServiceID:     req.ServiceID,
		Amount:        float64(req.Amount) / 100, // kobo -> naira
		Phone:         req.Phone,
		BillersCode:   req.BillersCode,
		VariationCode: req.VariationCode,
	}
	return c.do(ctx, "/api/pay", payload)
}

// QueryStatus re-queries a previous purchase by its request id, for the
// reconciliation job.
func (c *Client) QueryStatus(ctx context.Context, requestID string) (*PurchaseResult, error) {
	payload := map[string]string{"request_id": requestID}
	return c.do(ctx, "/api/requery", payload)
}

func (c *Client) do(ctx context.Context, path string, payload any) (*PurchaseResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal billing request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create billing request: %w", err)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(c.PublicKey + ":" + c.APIKey))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// Timeout or connection failure: the provider may or may not
		// have processed the request.
		log.Printf("[BILLING] Transport failure on %s: %v", path, err)
		return indeterminate(fmt.Sprintf("transport failure: %v", err)), nil
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[BILLING] Failed to read response on %s: %v", path, err)
		return indeterminate("unreadable provider response"), nil
	}

	if resp.StatusCode >= 500 {
		log.Printf("[BILLING] Provider returned %d on %s", resp.StatusCode, path)
		return indeterminate(fmt.Sprintf("provider returned %d", resp.StatusCode)), nil
	}

	var pr providerResponse
	if err := json.Unmarshal(bodyBytes, &pr); err != nil {
		log.Printf("[BILLING] Unparsable provider response on %s: %v", path, err)
		return indeterminate("unparsable provider response"), nil
	}

	result := &PurchaseResult{
		Code:                  pr.Code,
		Description:           pr.ResponseDescription,
		ProviderRequestID:     pr.RequestID,
		ProviderTransactionID: pr.TransactionID,
	}
	if result.ProviderTransactionID == "" {
		result.ProviderTransactionID = pr.Content.Transactions.TransactionID
	}
	json.Unmarshal(bodyBytes, &result.Raw)

	result.Outcome = classify(&pr)
	return result, nil
}

func classify(pr *providerResponse) Outcome {
	status := strings.ToLower(pr.Content.Transactions.Status)
	desc := strings.ToLower(pr.ResponseDescription)

	switch {
	case pr.Code == "000" && (status == "" || status == "delivered" || strings.Contains(desc, "successful")):
		return OutcomeSuccess
	case pr.Code == "000":
		// Accepted but still processing on the provider side.
		return OutcomeIndeterminate
	case status == "failed" || status == "reversed":
		return OutcomeFailure
	case declineCodes[pr.Code]:
		return OutcomeFailure
	default:
		return OutcomeIndeterminate
	}
}

func indeterminate(description string) *PurchaseResult {
	return &PurchaseResult{
		Outcome:     OutcomeIndeterminate,
		Description: description,
	}
}
