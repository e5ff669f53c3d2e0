// Package agent composes the merchant cache, catalog, cart, checkout client
// and payment intent generator into one shopping session per conversation.
package agent

import (
	"context"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/cart"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/catalog"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/checkout"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/merchant"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/payment"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

const payInstruction = "After paying, use confirm_payment(utr) with your UTR/reference number."

// Transport performs merchant calls. *ucp.Client satisfies it.
type Transport interface {
	GetJSON(ctx context.Context, op, rawURL string, query url.Values, out any) error
	PostJSON(ctx context.Context, op, rawURL string, body, out any) error
}

type Config struct {
	// MerchantURL preconfigures a merchant; its profile is fetched lazily.
	MerchantURL     string
	StrictDiscovery bool
	Checkout        checkout.Config
	QRModuleSize    int
}

type Deps struct {
	Transport Transport
	Hooks     []Hooks
	Logger    *zap.Logger
	Now       func() time.Time
}

// Session is one conversation's shopping state. All operations are
// serialized; a concurrent call waits for the running one to finish.
type Session struct {
	id string

	mu       sync.Mutex
	merchant *merchant.Cache
	catalog  *catalog.Client
	cart     *cart.Store
	checkout *checkout.Client
	cfg      Config
	hooks    []Hooks
	now      func() time.Time
	logger   *zap.Logger

	lastActive time.Time
}

func NewSession(id string, cfg Config, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("conversation_id", id))
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		id: id,
		merchant: merchant.NewCache(deps.Transport, cfg.MerchantURL,
			merchant.WithStrictDiscovery(cfg.StrictDiscovery), merchant.WithLogger(logger)),
		catalog:    catalog.New(deps.Transport),
		cart:       cart.NewStore(),
		checkout:   checkout.NewClient(deps.Transport, cfg.Checkout, logger),
		cfg:        cfg,
		hooks:      deps.Hooks,
		now:        now,
		logger:     logger.Named("agent"),
		lastActive: now(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) lock() func() {
	s.mu.Lock()
	s.lastActive = s.now()
	return s.mu.Unlock
}

// LastActive reports when an operation last started.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// requireMerchant lazily discovers a preconfigured merchant and returns the
// base URL, or NotConnected without touching the network when none is known.
func (s *Session) requireMerchant(ctx context.Context, op string) (string, error) {
	if s.merchant.State() == merchant.StateConfigured {
		s.merchant.Ensure(ctx)
	}
	return s.merchant.RequireBaseURL(op)
}

// requireConfigured fails with NotConnected when no merchant URL is known.
// Unlike requireMerchant it never triggers discovery.
func (s *Session) requireConfigured(op string) error {
	if s.merchant.State() == merchant.StateDisconnected {
		return ucp.NotConnected(op)
	}
	return nil
}

// Connect switches merchants. A checkout session opened at the previous
// merchant stays tracked but can no longer be confirmed here.
func (s *Session) Connect(ctx context.Context, rawURL string) (MerchantInfo, error) {
	defer s.lock()()
	p, err := s.merchant.Connect(ctx, rawURL)
	if err != nil {
		return MerchantInfo{}, err
	}
	if active, ok := s.checkout.Active(); ok && active.BaseURL != p.BaseURL {
		s.logger.Warn("merchant changed with a checkout in progress",
			zap.String("session_id", active.ID), zap.String("session_merchant", active.BaseURL))
	}
	return merchantInfo(p), nil
}

// MerchantState reports the connection state without any network call.
func (s *Session) MerchantState() merchant.State {
	defer s.lock()()
	return s.merchant.State()
}

func (s *Session) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	defer s.lock()()
	base, err := s.requireMerchant(ctx, "browse_categories")
	if err != nil {
		return nil, err
	}
	products, err := s.catalog.Catalogue(ctx, base)
	if err != nil {
		return nil, err
	}
	return catalog.Categories(products), nil
}

func (s *Session) Search(ctx context.Context, query, category string) ([]ProductView, error) {
	defer s.lock()()
	base, err := s.requireMerchant(ctx, "search_products")
	if err != nil {
		return nil, err
	}
	products, err := s.catalog.Search(ctx, base, query, category)
	if err != nil {
		return nil, err
	}
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		out = append(out, summaryView(p))
	}
	return out, nil
}

func (s *Session) GetProduct(ctx context.Context, productID string) (ProductView, error) {
	defer s.lock()()
	base, err := s.requireMerchant(ctx, "get_product")
	if err != nil {
		return ProductView{}, err
	}
	p, err := s.catalog.Product(ctx, base, productID)
	if err != nil {
		return ProductView{}, err
	}
	return productView(p), nil
}

// AddToCart looks the product up first so title and price come from the
// merchant.
func (s *Session) AddToCart(ctx context.Context, productID string, qty int) (cart.View, error) {
	defer s.lock()()
	base, err := s.requireMerchant(ctx, "add_to_cart")
	if err != nil {
		return cart.View{}, err
	}
	if qty < 1 {
		return cart.View{}, ucp.Validation("add_to_cart", "quantity must be at least 1, got %d", qty)
	}
	p, err := s.catalog.Product(ctx, base, productID)
	if err != nil {
		return cart.View{}, err
	}
	if _, err := s.cart.Add(p, qty); err != nil {
		return cart.View{}, err
	}
	return s.cart.View(), nil
}

func (s *Session) UpdateCart(_ context.Context, productID string, qty int) (cart.View, error) {
	defer s.lock()()
	if err := s.cart.SetQuantity(productID, qty); err != nil {
		return cart.View{}, err
	}
	return s.cart.View(), nil
}

func (s *Session) RemoveFromCart(_ context.Context, productID string) (cart.View, error) {
	defer s.lock()()
	if err := s.cart.Remove(productID); err != nil {
		return cart.View{}, err
	}
	return s.cart.View(), nil
}

func (s *Session) ViewCart(context.Context) cart.View {
	defer s.lock()()
	return s.cart.View()
}

// Checkout opens a merchant session for the current cart and renders the UPI
// payment intent for its total. Cart contents are unchanged.
func (s *Session) Checkout(ctx context.Context) (CheckoutResult, error) {
	defer s.lock()()
	if err := s.requireConfigured("checkout"); err != nil {
		return CheckoutResult{}, err
	}
	if s.cart.Len() == 0 {
		return CheckoutResult{}, ucp.Validation("checkout", "cart is empty; add items first")
	}
	base, err := s.requireMerchant(ctx, "checkout")
	if err != nil {
		return CheckoutResult{}, err
	}
	handlers := s.merchant.Profile().PaymentHandlers()

	sess, err := s.checkout.Create(ctx, base, s.cart.Items(), handlers)
	if err != nil {
		return CheckoutResult{}, err
	}
	// The session is already tracked, so a QR failure must not fail checkout.
	intent, err := payment.NewIntent(handlers, sess.Total, sess.ID, s.cfg.QRModuleSize)
	if err != nil {
		s.logger.Warn("QR code not rendered; returning link only", zap.String("session_id", sess.ID), zap.Error(err))
	}

	s.emit(ctx, func(ctx context.Context, h Hooks) error {
		return h.CheckoutStarted(ctx, CheckoutStarted{
			ConversationID: s.id,
			MerchantURL:    base,
			SessionID:      sess.ID,
			Total:          sess.Total,
			Currency:       sess.Currency,
			LineCount:      s.cart.Len(),
			OccurredAt:     s.now(),
		})
	})

	return CheckoutResult{
		SessionID:   sess.ID,
		Total:       sess.Total,
		Currency:    sess.Currency,
		PayeeVPA:    intent.Payee.VPA,
		PayeeName:   intent.Payee.Name,
		UPILink:     intent.URI,
		QRBase64:    intent.QRBase64,
		Instruction: payInstruction,
	}, nil
}

// Confirm completes the tracked session with proof. On success the cart and
// the session id are cleared together; on failure both are kept.
func (s *Session) Confirm(ctx context.Context, proof string) (OrderResult, error) {
	defer s.lock()()
	if err := s.requireConfigured("confirm_payment"); err != nil {
		return OrderResult{}, err
	}
	active, err := s.checkout.RequireActive()
	if err != nil {
		return OrderResult{}, err
	}
	base, err := s.requireMerchant(ctx, "confirm_payment")
	if err != nil {
		return OrderResult{}, err
	}
	profile := s.merchant.Profile()

	receipt, err := s.checkout.Complete(ctx, base, profile.PaymentHandlers(), proof)
	if err != nil {
		return OrderResult{}, err
	}
	items := s.cart.Items()
	s.cart.Clear()

	s.emit(ctx, func(ctx context.Context, h Hooks) error {
		return h.OrderPlaced(ctx, OrderPlaced{
			ConversationID: s.id,
			MerchantURL:    base,
			MerchantName:   profile.DisplayName(),
			SessionID:      receipt.SessionID,
			OrderID:        receipt.OrderID,
			Status:         receipt.Status,
			Total:          receipt.Total,
			Currency:       active.Currency,
			Items:          items,
			OccurredAt:     s.now(),
		})
	})

	return OrderResult{
		OrderID:   receipt.OrderID,
		SessionID: receipt.SessionID,
		Status:    receipt.Status,
		Total:     receipt.Total,
	}, nil
}

// CheckoutState reports the checkout client state and the tracked session id.
func (s *Session) CheckoutState() (checkout.State, string) {
	defer s.lock()()
	active, _ := s.checkout.Active()
	return s.checkout.State(), active.ID
}

func (s *Session) emit(ctx context.Context, fn func(context.Context, Hooks) error) {
	for _, h := range s.hooks {
		if err := fn(ctx, h); err != nil {
			s.logger.Warn("checkout hook failed", zap.Error(err))
		}
	}
}
