package merchant

import (
	"time"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

const DefaultDisplayName = "Merchant"

// Profile is a snapshot of a merchant's discovery document. It is never
// mutated after construction; re-discovery replaces it wholesale.
type Profile struct {
	BaseURL      string
	Version      string
	Capabilities []string
	Handlers     []ucp.PaymentHandler
	Name         string
	Categories   string
	FetchedAt    time.Time
}

func newProfile(baseURL string, doc ucp.Discovery, now time.Time) *Profile {
	p := &Profile{
		BaseURL:      baseURL,
		Version:      doc.UCP.Version,
		Capabilities: make([]string, 0, len(doc.UCP.Capabilities)),
		Handlers:     append([]ucp.PaymentHandler(nil), doc.Payment.Handlers...),
		Name:         doc.Merchant.Name,
		Categories:   doc.Merchant.ProductCategories,
		FetchedAt:    now,
	}
	for _, c := range doc.UCP.Capabilities {
		p.Capabilities = append(p.Capabilities, c.Name)
	}
	return p
}

// DisplayName falls back to DefaultDisplayName for a nil or unnamed profile.
func (p *Profile) DisplayName() string {
	if p == nil || p.Name == "" {
		return DefaultDisplayName
	}
	return p.Name
}

func (p *Profile) HandlerIDs() []string {
	if p == nil {
		return []string{}
	}
	ids := make([]string, 0, len(p.Handlers))
	for _, h := range p.Handlers {
		ids = append(ids, h.ID)
	}
	return ids
}

// PaymentHandlers is nil-safe.
func (p *Profile) PaymentHandlers() []ucp.PaymentHandler {
	if p == nil {
		return nil
	}
	return p.Handlers
}

func (p *Profile) Handler(id string) (ucp.PaymentHandler, bool) {
	if p == nil {
		return ucp.PaymentHandler{}, false
	}
	for _, h := range p.Handlers {
		if h.ID == id {
			return h, true
		}
	}
	return ucp.PaymentHandler{}, false
}
