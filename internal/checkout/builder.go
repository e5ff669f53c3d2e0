package checkout

import (
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/cart"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/shipping"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

const DefaultCurrency = "INR"

// DefaultHandler is substituted when the merchant advertises no handlers and
// demo fallbacks are allowed.
func DefaultHandler() ucp.PaymentHandler {
	return ucp.PaymentHandler{
		ID:      "upi",
		Name:    "in.npci.upi",
		Version: "2026-01-11",
		Config:  map[string]any{},
	}
}

type BuildOptions struct {
	Currency            string
	Fulfillment         shipping.Strategy
	AllowDefaultHandler bool
}

// BuildCreateRequest maps cart lines and the merchant's handlers to a
// session-creation body. It does no I/O.
func BuildCreateRequest(items []cart.LineItem, handlers []ucp.PaymentHandler, opts BuildOptions) (ucp.CreateCheckoutRequest, error) {
	const op = "checkout"
	if len(items) == 0 {
		return ucp.CreateCheckoutRequest{}, ucp.Validation(op, "cart is empty; add items first")
	}
	if opts.Currency == "" {
		opts.Currency = DefaultCurrency
	}
	if opts.Fulfillment == nil {
		opts.Fulfillment = shipping.DefaultStandard()
	}

	if len(handlers) == 0 {
		if !opts.AllowDefaultHandler {
			return ucp.CreateCheckoutRequest{}, ucp.Validation(op, "merchant advertises no payment handlers")
		}
		handlers = []ucp.PaymentHandler{DefaultHandler()}
	}

	lines := make([]ucp.LineItem, 0, len(items))
	for _, li := range items {
		lines = append(lines, ucp.LineItem{
			Item:     ucp.Item{ID: li.ProductID, Title: li.Title, Price: li.UnitPrice},
			Quantity: li.Quantity,
		})
	}

	return ucp.CreateCheckoutRequest{
		Currency:  opts.Currency,
		LineItems: lines,
		Payment: ucp.PaymentSection{
			Handlers:    append([]ucp.PaymentHandler(nil), handlers...),
			Instruments: []ucp.PaymentInstrument{},
		},
		Fulfillment: opts.Fulfillment.Fulfillment(lines),
	}, nil
}
