package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/cart"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/storage/postgres"
)

// ReceiptStore reads recorded orders. *postgres.Repository satisfies it.
type ReceiptStore interface {
	GetReceipt(ctx context.Context, orderID string) (postgres.Receipt, error)
	ListReceipts(ctx context.Context, conversationID string, limit int) ([]postgres.Receipt, error)
}

type receiptResponse struct {
	OrderID        string          `json:"order_id"`
	SessionID      string          `json:"checkout_session_id"`
	ConversationID string          `json:"conversation_id"`
	MerchantURL    string          `json:"merchant_url"`
	MerchantName   string          `json:"merchant_name"`
	Status         string          `json:"status"`
	Total          int64           `json:"total_paise"`
	Currency       string          `json:"currency"`
	Items          []cart.LineItem `json:"items"`
	PlacedAt       time.Time       `json:"placed_at"`
}

func toReceiptResponse(rc postgres.Receipt) receiptResponse {
	items := rc.Items
	if items == nil {
		items = []cart.LineItem{}
	}
	return receiptResponse{
		OrderID:        rc.OrderID,
		SessionID:      rc.SessionID,
		ConversationID: rc.ConversationID,
		MerchantURL:    rc.MerchantURL,
		MerchantName:   rc.MerchantName,
		Status:         rc.Status,
		Total:          rc.Total,
		Currency:       rc.Currency,
		Items:          items,
		PlacedAt:       rc.PlacedAt,
	}
}

// GET /api/receipts/{order_id}
func (s *server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	orderID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/receipts/"), "/")
	if orderID == "" {
		http.Error(w, "order id required", http.StatusBadRequest)
		return
	}
	if s.Receipts == nil {
		writeError(w, errReceiptsUnavailable)
		return
	}
	rc, err := s.Receipts.GetReceipt(r.Context(), orderID)
	if errors.Is(err, postgres.ErrReceiptNotFound) {
		http.Error(w, "receipt not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("failed to load receipt", zap.String("order_id", orderID), zap.Error(err))
		http.Error(w, "failed to load receipt", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptResponse(rc))
}

func (s *server) listReceipts(ctx context.Context, w http.ResponseWriter, conversationID string, limit int) {
	if s.Receipts == nil {
		writeError(w, errReceiptsUnavailable)
		return
	}
	list, err := s.Receipts.ListReceipts(ctx, conversationID, limit)
	if err != nil {
		s.logger.Error("failed to list receipts", zap.String("conversation_id", conversationID), zap.Error(err))
		http.Error(w, "failed to list receipts", http.StatusInternalServerError)
		return
	}
	out := make([]receiptResponse, 0, len(list))
	for _, rc := range list {
		out = append(out, toReceiptResponse(rc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"receipts": out})
}
