package services

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/pocketvance/backend/internal/models"
)

func settledCreditRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"transaction_id", "user_id", "amount", "currency", "reference", "provider", "created_at",
	}).
		AddRow("tx-1", "user1", 250000, "NGN", "PSK-001", "paystack", time.Now()).
		AddRow("tx-2", "user2", 100000, "NGN", "FLW-002", "flutterwave", time.Now())
}

func TestSettlementService_BuildPacs008(t *testing.T) {
	service := NewSettlementService(nil)

	credits := []models.Transaction{
		{TransactionID: "tx-1", UserID: "user1", Amount: 250000, Currency: "NGN", Reference: "PSK-001", Provider: "paystack"},
		{TransactionID: "tx-2", UserID: "user2", Amount: 100000, Currency: "NGN", Reference: "FLW-002", Provider: "flutterwave"},
	}

	doc, err := service.BuildPacs008(credits)
	assert.NoError(t, err)
	assert.Equal(t, "2", string(doc.GrpHdr.NbOfTxs))
	assert.Equal(t, float64(3500), doc.GrpHdr.TtlIntrBkSttlmAmt.Value) // 350000 kobo
	assert.Len(t, doc.CdtTrfTxInf, 2)
	assert.Equal(t, "PSK-001", string(doc.CdtTrfTxInf[0].PmtId.EndToEndId))

	xmlData, err := service.ConvertToXML(doc)
	assert.NoError(t, err)
	assert.Contains(t, xmlData, "PSK-001")
	assert.Contains(t, xmlData, "<?xml")
}

func TestSettlementService_BuildPacs002(t *testing.T) {
	service := NewSettlementService(nil)

	tests := []struct {
		status string
		want   string
	}{
		{models.StatusCompleted, "ACSC"},
		{models.StatusFailed, "RJCT"},
		{models.StatusRefunded, "RJCT"},
		{models.StatusPending, "PDNG"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			doc, err := service.BuildPacs002(&models.Transaction{
				TransactionID: "tx-1",
				Reference:     "REF-1",
				Status:        tt.status,
			})
			assert.NoError(t, err)
			assert.Equal(t, tt.want, string(*doc.TxInfAndSts[0].TxSts))
		})
	}
}

func TestSettlementService_ExportSettlementFeed(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSettlementService(db)

	t.Run("exports pacs.008 XML", func(t *testing.T) {
		mock.ExpectQuery("WHERE type = \\$1 AND status = \\$2 AND settled_at >= \\$3").
			WithArgs(models.TypeFunding, models.StatusCompleted, sqlmock.AnyArg(), 500).
			WillReturnRows(settledCreditRows())

		w := httptest.NewRecorder()
		service.ExportSettlementFeed(w, httptest.NewRequest("GET", "/settlement/export", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/xml", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "PSK-001")
		assert.Contains(t, w.Body.String(), "FLW-002")
	})

	t.Run("rejects bad since timestamp", func(t *testing.T) {
		w := httptest.NewRecorder()
		service.ExportSettlementFeed(w, httptest.NewRequest("GET", "/settlement/export?since=yesterday", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty window returns 404", func(t *testing.T) {
		mock.ExpectQuery("WHERE type = \\$1 AND status = \\$2 AND settled_at >= \\$3").
			WithArgs(models.TypeFunding, models.StatusCompleted, sqlmock.AnyArg(), 500).
			WillReturnRows(sqlmock.NewRows([]string{
				"transaction_id", "user_id", "amount", "currency", "reference", "provider", "created_at",
			}))

		w := httptest.NewRecorder()
		service.ExportSettlementFeed(w, httptest.NewRequest("GET", "/settlement/export", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSettlementService_ReportTransactionStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSettlementService(db)
	router := chi.NewRouter()
	router.Get("/settlement/status/{txId}", service.ReportTransactionStatus)

	t.Run("reports completed transaction", func(t *testing.T) {
		mock.ExpectQuery("SELECT transaction_id, reference, status FROM transactions").
			WithArgs("tx-1").
			WillReturnRows(sqlmock.NewRows([]string{"transaction_id", "reference", "status"}).
				AddRow("tx-1", "REF-1", models.StatusCompleted))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/settlement/status/tx-1", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "pacs.002.001.08")
		assert.Contains(t, w.Body.String(), "ACSC")
	})

	t.Run("unknown transaction", func(t *testing.T) {
		mock.ExpectQuery("SELECT transaction_id, reference, status FROM transactions").
			WithArgs("tx-none").
			WillReturnError(sql.ErrNoRows)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/settlement/status/tx-none", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
