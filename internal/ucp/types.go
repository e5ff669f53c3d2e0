package ucp

import (
	"encoding/json"
	"fmt"
)

// Discovery is the document served at /.well-known/ucp.
type Discovery struct {
	UCP struct {
		Version      string       `json:"version,omitempty"`
		Capabilities []Capability `json:"capabilities"`
	} `json:"ucp"`
	Payment struct {
		Handlers []PaymentHandler `json:"handlers"`
	} `json:"payment"`
	Merchant struct {
		Name              string `json:"name"`
		ProductCategories string `json:"product_categories"`
	} `json:"merchant"`
}

type Capability struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// PaymentHandler describes one settlement channel a merchant accepts.
// The raw document is retained so the handler can be echoed back verbatim
// in a checkout request.
type PaymentHandler struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Version string         `json:"version"`
	Config  map[string]any `json:"config"`

	raw json.RawMessage
}

type paymentHandlerFields PaymentHandler

func (h *PaymentHandler) UnmarshalJSON(data []byte) error {
	var f paymentHandlerFields
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode payment handler: %w", err)
	}
	*h = PaymentHandler(f)
	h.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (h PaymentHandler) MarshalJSON() ([]byte, error) {
	if len(h.raw) > 0 {
		return h.raw, nil
	}
	f := paymentHandlerFields(h)
	if f.Config == nil {
		f.Config = map[string]any{}
	}
	return json.Marshal(f)
}

// ConfigString returns a string config value, or "" when absent or not a string.
func (h PaymentHandler) ConfigString(key string) string {
	if h.Config == nil {
		return ""
	}
	s, _ := h.Config[key].(string)
	return s
}

// Product is a merchant catalog entry. Prices are in minor currency units.
type Product struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Price       int64  `json:"price"`
	Category    string `json:"category,omitempty"`
	OriginState string `json:"origin_state,omitempty"`
	ArtisanName string `json:"artisan_name,omitempty"`
	GITag       string `json:"gi_tag,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Description string `json:"description,omitempty"`
}

type ProductList struct {
	Products []Product `json:"products"`
	Count    int       `json:"count,omitempty"`
}

// Checkout session wire types.

type Item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price int64  `json:"price"`
}

type LineItem struct {
	Item     Item `json:"item"`
	Quantity int  `json:"quantity"`
}

const TotalTypeTotal = "total"

type Total struct {
	Type   string `json:"type"`
	Amount int64  `json:"amount"`
}

type Destination struct {
	ID              string `json:"id"`
	StreetAddress   string `json:"street_address"`
	AddressLocality string `json:"address_locality"`
	AddressRegion   string `json:"address_region"`
	PostalCode      string `json:"postal_code"`
	AddressCountry  string `json:"address_country"`
}

type FulfillmentOption struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Totals []Total `json:"totals"`
}

type FulfillmentGroup struct {
	ID               string              `json:"id"`
	LineItemIDs      []string            `json:"line_item_ids"`
	Options          []FulfillmentOption `json:"options"`
	SelectedOptionID string              `json:"selected_option_id"`
}

type FulfillmentMethod struct {
	Type                  string             `json:"type"`
	Destinations          []Destination      `json:"destinations"`
	SelectedDestinationID string             `json:"selected_destination_id"`
	Groups                []FulfillmentGroup `json:"groups"`
}

type Fulfillment struct {
	Methods []FulfillmentMethod `json:"methods"`
}

type PaymentSection struct {
	Handlers             []PaymentHandler    `json:"handlers"`
	Instruments          []PaymentInstrument `json:"instruments"`
	SelectedInstrumentID *string             `json:"selected_instrument_id"`
}

type CreateCheckoutRequest struct {
	Currency    string         `json:"currency"`
	LineItems   []LineItem     `json:"line_items"`
	Payment     PaymentSection `json:"payment"`
	Fulfillment Fulfillment    `json:"fulfillment"`
}

// CheckoutSession is the merchant's view of a session. Only the fields the
// agent relies on are decoded.
type CheckoutSession struct {
	ID       string  `json:"id"`
	Status   string  `json:"status,omitempty"`
	Currency string  `json:"currency,omitempty"`
	Totals   []Total `json:"totals"`
}

// Total returns the amount of the entry typed "total", or 0 when absent.
func (s CheckoutSession) Total() int64 {
	for _, t := range s.Totals {
		if t.Type == TotalTypeTotal {
			return t.Amount
		}
	}
	return 0
}

type Credential struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type PaymentInstrument struct {
	ID          string     `json:"id"`
	HandlerID   string     `json:"handler_id"`
	HandlerName string     `json:"handler_name"`
	Type        string     `json:"type"`
	Brand       string     `json:"brand,omitempty"`
	LastDigits  string     `json:"last_digits,omitempty"`
	Credential  Credential `json:"credential"`
}

type CompleteCheckoutRequest struct {
	PaymentData PaymentInstrument `json:"payment_data"`
	RiskSignals map[string]any    `json:"risk_signals"`
}

type Order struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

type CompleteCheckoutResponse struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
	Order  *Order `json:"order,omitempty"`
}
