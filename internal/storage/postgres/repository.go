package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/agent"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/cart"
)

var ErrReceiptNotFound = errors.New("receipt not found")

// Receipt is one confirmed order as recorded by the agent.
type Receipt struct {
	OrderID        string
	SessionID      string
	ConversationID string
	MerchantURL    string
	MerchantName   string
	Status         string
	Total          int64
	Currency       string
	Items          []cart.LineItem
	PlacedAt       time.Time
}

// Repository records checkout sessions and receipts. It implements
// agent.Hooks.
type Repository struct {
	DB     *sql.DB
	logger *zap.Logger
}

func NewRepository(db *sql.DB, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{DB: db, logger: logger.Named("receipts")}
}

func (r *Repository) CheckoutStarted(ctx context.Context, e agent.CheckoutStarted) error {
	if r.DB == nil {
		return fmt.Errorf("database not initialized")
	}
	const query = `
		INSERT INTO checkout_sessions (id, conversation_id, merchant_url, total, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'open', $6)
		ON CONFLICT (id) DO UPDATE SET
			conversation_id = EXCLUDED.conversation_id,
			total = EXCLUDED.total,
			currency = EXCLUDED.currency,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.DB.ExecContext(ctx, query, e.SessionID, e.ConversationID, e.MerchantURL, e.Total, e.Currency, e.OccurredAt); err != nil {
		return fmt.Errorf("failed to insert checkout session: %w", err)
	}
	r.logger.Debug("checkout session recorded", zap.String("session_id", e.SessionID))
	return nil
}

// OrderPlaced stores the receipt and its lines in one transaction and marks
// the checkout session completed.
func (r *Repository) OrderPlaced(ctx context.Context, e agent.OrderPlaced) error {
	if r.DB == nil {
		return fmt.Errorf("database not initialized")
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin receipt tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO receipts (order_id, session_id, conversation_id, merchant_url, merchant_name, status, total, currency, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (order_id) DO UPDATE SET
			status = EXCLUDED.status,
			total = EXCLUDED.total,
			updated_at = CURRENT_TIMESTAMP
	`, e.OrderID, e.SessionID, e.ConversationID, e.MerchantURL, e.MerchantName, e.Status, e.Total, e.Currency, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}

	for _, li := range e.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO receipt_items (order_id, product_id, title, unit_price, quantity, line_total)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (order_id, product_id) DO UPDATE SET
				quantity = EXCLUDED.quantity,
				line_total = EXCLUDED.line_total
		`, e.OrderID, li.ProductID, li.Title, li.UnitPrice, li.Quantity, li.LineTotal())
		if err != nil {
			return fmt.Errorf("failed to insert receipt item %s: %w", li.ProductID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE checkout_sessions SET status = 'completed', updated_at = CURRENT_TIMESTAMP WHERE id = $1`,
		e.SessionID); err != nil {
		return fmt.Errorf("failed to complete checkout session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit receipt: %w", err)
	}
	r.logger.Info("receipt recorded", zap.String("order_id", e.OrderID), zap.Int("items", len(e.Items)))
	return nil
}

func (r *Repository) GetReceipt(ctx context.Context, orderID string) (Receipt, error) {
	if r.DB == nil {
		return Receipt{}, fmt.Errorf("database not initialized")
	}
	var rc Receipt
	err := r.DB.QueryRowContext(ctx, `
		SELECT order_id, session_id, conversation_id, merchant_url, merchant_name, status, total, currency, placed_at
		FROM receipts WHERE order_id = $1
	`, orderID).Scan(&rc.OrderID, &rc.SessionID, &rc.ConversationID, &rc.MerchantURL, &rc.MerchantName,
		&rc.Status, &rc.Total, &rc.Currency, &rc.PlacedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Receipt{}, ErrReceiptNotFound
	}
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to query receipt: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT product_id, title, unit_price, quantity
		FROM receipt_items WHERE order_id = $1 ORDER BY id
	`, orderID)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to query receipt items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var li cart.LineItem
		if err := rows.Scan(&li.ProductID, &li.Title, &li.UnitPrice, &li.Quantity); err != nil {
			return Receipt{}, fmt.Errorf("failed to scan receipt item: %w", err)
		}
		rc.Items = append(rc.Items, li)
	}
	if err := rows.Err(); err != nil {
		return Receipt{}, fmt.Errorf("error iterating receipt items: %w", err)
	}
	return rc, nil
}

// ListReceipts returns a conversation's receipts, newest first.
func (r *Repository) ListReceipts(ctx context.Context, conversationID string, limit int) ([]Receipt, error) {
	if r.DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT order_id, session_id, conversation_id, merchant_url, merchant_name, status, total, currency, placed_at
		FROM receipts WHERE conversation_id = $1
		ORDER BY placed_at DESC
		LIMIT $2
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	out := []Receipt{}
	for rows.Next() {
		var rc Receipt
		if err := rows.Scan(&rc.OrderID, &rc.SessionID, &rc.ConversationID, &rc.MerchantURL, &rc.MerchantName,
			&rc.Status, &rc.Total, &rc.Currency, &rc.PlacedAt); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating receipts: %w", err)
	}
	return out, nil
}
