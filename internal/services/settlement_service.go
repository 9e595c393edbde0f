package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/pocketvance/backend/internal/models"
)

// Institution BIC used on our side of settlement messages.
const settlementBIC = "PKTVANCE"

// SettlementService exports completed funding credits as ISO 20022
// messages for downstream settlement and reporting.
type SettlementService struct {
	db *sql.DB
}

func NewSettlementService(db *sql.DB) *SettlementService {
	return &SettlementService{db: db}
}

// ExportSettlementFeed exports completed funding credits as pacs.008
// @Summary Export settlement feed
// @Description pacs.008 FIToFICustomerCreditTransfer covering completed funding credits since a timestamp
// @Tags settlement
// @Produce xml
// @Param since query string false "RFC3339 lower bound on settlement time (default: start of today)"
// @Param limit query int false "Maximum credits to include (default: 500)"
// @Success 200 {string} string "pacs.008 XML document"
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /settlement/export [get]
func (ss *SettlementService) ExportSettlementFeed(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Truncate(24 * time.Hour)
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		parsed, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			SendErrorResponse(w, "Invalid since timestamp, expected RFC3339", http.StatusBadRequest, nil)
			return
		}
		since = parsed
	}

	limit := 500
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 5000 {
			limit = l
		}
	}

	credits, err := ss.settledCredits(r.Context(), since, limit)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch settled credits", http.StatusInternalServerError, nil)
		return
	}
	if len(credits) == 0 {
		SendErrorResponse(w, "No settled credits in window", http.StatusNotFound, nil)
		return
	}

	doc, err := ss.BuildPacs008(credits)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	xmlData, err := ss.ConvertToXML(doc)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Write([]byte(xmlData))
}

// ReportTransactionStatus reports one transaction as pacs.002
// @Summary Report transaction status
// @Description pacs.002 FIToFIPaymentStatusReport for a single transaction
// @Tags settlement
// @Produce json
// @Param txId path string true "Transaction ID"
// @Success 200 {object} object{status=string,messageType=string,xml=string}
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /settlement/status/{txId} [get]
func (ss *SettlementService) ReportTransactionStatus(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txId")

	var t models.Transaction
	err := ss.db.QueryRowContext(r.Context(), `
		SELECT transaction_id, reference, status FROM transactions WHERE transaction_id = $1`, txID).
		Scan(&t.TransactionID, &t.Reference, &t.Status)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to fetch transaction", http.StatusInternalServerError, nil)
		return
	}

	doc, err := ss.BuildPacs002(&t)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	xmlData, err := ss.ConvertToXML(doc)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      t.Status,
		"messageType": "pacs.002.001.08",
		"xml":         xmlData,
	})
}

// BuildPacs008 creates a pacs.008 FIToFICustomerCreditTransfer covering
// a batch of completed funding credits.
func (ss *SettlementService) BuildPacs008(credits []models.Transaction) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	msgId := uuid.New().String()
	creDtTm := time.Now()
	settlementDate := time.Now()

	var total int64
	for _, c := range credits {
		total += c.Amount
	}

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: common.Max15NumericText(strconv.Itoa(len(credits))),
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(credits[0].Currency),
				Value: float64(total) / 100, // kobo -> naira
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG", // Clearing
			},
		},
	}

	for i := range credits {
		c := &credits[i]
		doc.CdtTrfTxInf = append(doc.CdtTrfTxInf, pacs_v08.CreditTransferTransaction39{
			PmtId: pacs_v08.PaymentIdentification7{
				InstrId:    &[]common.Max35Text{common.Max35Text(c.TransactionID)}[0],
				EndToEndId: common.Max35Text(c.Reference),
				TxId:       &[]common.Max35Text{common.Max35Text(c.TransactionID)}[0],
			},
			IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(c.Currency),
				Value: float64(c.Amount) / 100,
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			ChrgBr:        "SLEV",
			DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
				FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
					ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
						MmbId: common.Max35Text(c.Provider),
					},
				},
			},
			Dbtr: pacs_v08.PartyIdentification135{
				Nm: &[]common.Max140Text{common.Max140Text(c.Provider)}[0],
			},
			CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
				FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
					BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(settlementBIC)}[0],
				},
			},
			Cdtr: pacs_v08.PartyIdentification135{
				Nm: &[]common.Max140Text{common.Max140Text(c.UserID)}[0],
			},
		})
	}

	return doc, nil
}

// BuildPacs002 creates a pacs.002 payment status report for one
// transaction, mapping ledger status to the external status codes.
func (ss *SettlementService) BuildPacs002(txn *models.Transaction) (*pacs_v08.FIToFIPaymentStatusReportV08, error) {
	msgId := uuid.New().String()
	creDtTm := time.Now()
	status := externalStatusCode(txn.Status)

	doc := &pacs_v08.FIToFIPaymentStatusReportV08{
		GrpHdr: pacs_v08.GroupHeader53{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
		},
		TxInfAndSts: []pacs_v08.PaymentTransaction80{
			{
				OrgnlInstrId:    &[]common.Max35Text{common.Max35Text(txn.TransactionID)}[0],
				OrgnlEndToEndId: &[]common.Max35Text{common.Max35Text(txn.Reference)}[0],
				OrgnlTxId:       &[]common.Max35Text{common.Max35Text(txn.TransactionID)}[0],
				TxSts:           &[]pacs_v08.ExternalPaymentTransactionStatus1Code{pacs_v08.ExternalPaymentTransactionStatus1Code(status)}[0],
			},
		},
	}

	return doc, nil
}

// ConvertToXML converts an ISO 20022 document to an XML string.
func (ss *SettlementService) ConvertToXML(doc interface{}) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}

func externalStatusCode(status string) string {
	switch status {
	case models.StatusCompleted:
		return "ACSC" // settled
	case models.StatusFailed, models.StatusRefunded:
		return "RJCT"
	default:
		return "PDNG"
	}
}

func (ss *SettlementService) settledCredits(ctx context.Context, since time.Time, limit int) ([]models.Transaction, error) {
	rows, err := ss.db.QueryContext(ctx, `
		SELECT transaction_id, user_id, amount, currency, reference, COALESCE(provider, ''), created_at
		FROM transactions
		WHERE type = $1 AND status = $2 AND settled_at >= $3
		ORDER BY settled_at ASC
		LIMIT $4`, models.TypeFunding, models.StatusCompleted, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	credits := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.TransactionID, &t.UserID, &t.Amount, &t.Currency, &t.Reference, &t.Provider, &t.CreatedAt); err != nil {
			return nil, err
		}
		credits = append(credits, t)
	}
	return credits, rows.Err()
}
