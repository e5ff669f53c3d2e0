// Package checkout drives a single UCP checkout session from creation to
// completion.
//
// Mutating calls carry the identity layer's per-call Idempotency-Key. A
// repeated Create or Complete after a failure is therefore a new request as
// far as the merchant can tell, and is safe only if the merchant deduplicates
// on its own. The transport never retries these calls.
package checkout

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/cart"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

const (
	DemoToken        = "upi_success"
	sessionsPath     = "/checkout-sessions"
	upiHandlerID     = "upi"
	instrumentID     = "card_1"
	credentialType   = "token"
	instrumentType   = "card"
	instrumentBrand  = "visa"
	instrumentDigits = "4242"
)

type State int

const (
	StateIdle State = iota
	StateCreated
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Poster issues one mutating call. *ucp.Client satisfies it.
type Poster interface {
	PostJSON(ctx context.Context, op, rawURL string, body, out any) error
}

type Config struct {
	Build BuildOptions
	// AllowDemoProof lets Complete send DemoToken when no proof is supplied.
	AllowDemoProof bool
}

// Session is the merchant-assigned session the client is tracking.
type Session struct {
	ID       string
	BaseURL  string
	Total    int64
	Currency string
}

type Receipt struct {
	OrderID   string
	Status    string
	SessionID string
	Total     int64
}

// Client holds at most one tracked session. It is not safe for concurrent
// use; the owning agent session serializes access.
type Client struct {
	poster Poster
	cfg    Config
	logger *zap.Logger

	state   State
	session Session
}

func NewClient(p Poster, cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Build.Currency == "" {
		cfg.Build.Currency = DefaultCurrency
	}
	return &Client{poster: p, cfg: cfg, logger: logger.Named("checkout")}
}

func (c *Client) State() State { return c.state }

// Active returns the tracked session, if any.
func (c *Client) Active() (Session, bool) {
	return c.session, c.session.ID != ""
}

// RequireActive returns the tracked session or a Validation error. It never
// touches the network.
func (c *Client) RequireActive() (Session, error) {
	s, ok := c.Active()
	if !ok {
		return Session{}, ucp.Validation("complete_checkout", "no checkout in progress; use checkout first")
	}
	return s, nil
}

// Create opens a new session for items. A previously tracked session is
// dropped without being cancelled at the merchant. On failure nothing
// changes.
func (c *Client) Create(ctx context.Context, baseURL string, items []cart.LineItem, handlers []ucp.PaymentHandler) (Session, error) {
	const op = "create_checkout"
	body, err := BuildCreateRequest(items, handlers, c.cfg.Build)
	if err != nil {
		return Session{}, err
	}

	var resp ucp.CheckoutSession
	if err := c.poster.PostJSON(ctx, op, baseURL+sessionsPath, body, &resp); err != nil {
		c.logger.Warn("checkout session create failed", zap.String("base_url", baseURL), zap.Error(err))
		return Session{}, err
	}
	id := strings.TrimSpace(resp.ID)
	if id == "" {
		return Session{}, ucp.Protocol(op, "merchant response has no session id")
	}

	if prev, ok := c.Active(); ok && prev.ID != id {
		c.logger.Info("replacing tracked checkout session",
			zap.String("previous_session_id", prev.ID), zap.String("session_id", id))
	}
	currency := resp.Currency
	if currency == "" {
		currency = body.Currency
	}
	c.session = Session{ID: id, BaseURL: baseURL, Total: resp.Total(), Currency: currency}
	c.state = StateCreated
	c.logger.Info("checkout session created",
		zap.String("session_id", id), zap.Int64("total", c.session.Total), zap.Int("lines", len(items)))
	return c.session, nil
}

// Complete submits payment for the tracked session. On success the session
// is released; the caller must clear its cart in the same critical section.
// On failure the session is kept so the call can be retried.
func (c *Client) Complete(ctx context.Context, baseURL string, handlers []ucp.PaymentHandler, proof string) (Receipt, error) {
	const op = "complete_checkout"
	s, err := c.RequireActive()
	if err != nil {
		return Receipt{}, err
	}
	if s.BaseURL != "" && s.BaseURL != baseURL {
		return Receipt{}, ucp.Validation(op, "checkout session %s belongs to %s, not %s; run checkout again", s.ID, s.BaseURL, baseURL)
	}
	instrument, err := BuildInstrument(handlers, proof, c.cfg.AllowDemoProof)
	if err != nil {
		return Receipt{}, err
	}

	body := ucp.CompleteCheckoutRequest{PaymentData: instrument, RiskSignals: map[string]any{}}
	rawURL := baseURL + sessionsPath + "/" + url.PathEscape(s.ID) + "/complete"
	var resp ucp.CompleteCheckoutResponse
	if err := c.poster.PostJSON(ctx, op, rawURL, body, &resp); err != nil {
		c.state = StateFailed
		c.logger.Warn("checkout completion failed", zap.String("session_id", s.ID), zap.Error(err))
		return Receipt{}, err
	}

	r := Receipt{OrderID: s.ID, SessionID: s.ID, Total: s.Total, Status: resp.Status}
	if resp.Order != nil {
		if resp.Order.ID != "" {
			r.OrderID = resp.Order.ID
		}
		if resp.Order.Status != "" {
			r.Status = resp.Order.Status
		}
	}
	c.session = Session{}
	c.state = StateCompleted
	c.logger.Info("checkout completed", zap.String("session_id", s.ID), zap.String("order_id", r.OrderID))
	return r, nil
}

// BuildInstrument returns the payment instrument sent on completion. The
// instrument is tagged as a card because merchant SDKs currently only accept
// that type; the proof travels as the credential token.
func BuildInstrument(handlers []ucp.PaymentHandler, proof string, allowDemo bool) (ucp.PaymentInstrument, error) {
	token := strings.TrimSpace(proof)
	if token == "" {
		if !allowDemo {
			return ucp.PaymentInstrument{}, ucp.Validation("complete_checkout", "payment proof (UTR) is required")
		}
		token = DemoToken
	}
	h := selectHandler(handlers)
	if h.Name == "" && h.ID == upiHandlerID {
		h.Name = DefaultHandler().Name
	}
	return ucp.PaymentInstrument{
		ID:          instrumentID,
		HandlerID:   h.ID,
		HandlerName: h.Name,
		Type:        instrumentType,
		Brand:       instrumentBrand,
		LastDigits:  instrumentDigits,
		Credential:  ucp.Credential{Type: credentialType, Token: token},
	}, nil
}

// selectHandler prefers the UPI handler, then the first advertised one.
func selectHandler(handlers []ucp.PaymentHandler) ucp.PaymentHandler {
	for _, h := range handlers {
		if h.ID == upiHandlerID {
			return h
		}
	}
	if len(handlers) > 0 && handlers[0].ID != "" {
		return handlers[0]
	}
	return DefaultHandler()
}
