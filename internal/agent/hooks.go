package agent

import (
	"context"
	"time"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/cart"
)

// CheckoutStarted is emitted after the merchant accepts a new session.
type CheckoutStarted struct {
	ConversationID string    `json:"conversation_id"`
	MerchantURL    string    `json:"merchant_url"`
	SessionID      string    `json:"checkout_session_id"`
	Total          int64     `json:"total"`
	Currency       string    `json:"currency"`
	LineCount      int       `json:"line_count"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// OrderPlaced is emitted after a successful completion, once the cart has
// been cleared.
type OrderPlaced struct {
	ConversationID string          `json:"conversation_id"`
	MerchantURL    string          `json:"merchant_url"`
	MerchantName   string          `json:"merchant_name"`
	SessionID      string          `json:"checkout_session_id"`
	OrderID        string          `json:"order_id"`
	Status         string          `json:"status,omitempty"`
	Total          int64           `json:"total"`
	Currency       string          `json:"currency"`
	Items          []cart.LineItem `json:"items"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// Hooks observe checkout milestones. A hook error is logged and never fails
// the operation that triggered it.
type Hooks interface {
	CheckoutStarted(ctx context.Context, e CheckoutStarted) error
	OrderPlaced(ctx context.Context, e OrderPlaced) error
}
