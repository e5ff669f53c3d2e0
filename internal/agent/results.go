package agent

import (
	"unicode/utf8"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/merchant"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

const summaryDescriptionLimit = 200

type MerchantInfo struct {
	Name              string   `json:"name"`
	BaseURL           string   `json:"base_url"`
	Capabilities      []string `json:"capabilities"`
	PaymentHandlers   []string `json:"payment_handlers"`
	ProductCategories string   `json:"product_categories,omitempty"`
}

func merchantInfo(p *merchant.Profile) MerchantInfo {
	caps := p.Capabilities
	if caps == nil {
		caps = []string{}
	}
	return MerchantInfo{
		Name:              p.DisplayName(),
		BaseURL:           p.BaseURL,
		Capabilities:      caps,
		PaymentHandlers:   p.HandlerIDs(),
		ProductCategories: p.Categories,
	}
}

// ProductView is a product as shown to the shopper. PriceRupees is derived
// from the minor-unit price.
type ProductView struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Price       int64   `json:"price"`
	PriceRupees float64 `json:"price_rs"`
	Category    string  `json:"category,omitempty"`
	OriginState string  `json:"origin_state,omitempty"`
	ArtisanName string  `json:"artisan_name,omitempty"`
	GITag       string  `json:"gi_tag,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	Description string  `json:"description,omitempty"`
}

func productView(p ucp.Product) ProductView {
	return ProductView{
		ID:          p.ID,
		Title:       p.Title,
		Price:       p.Price,
		PriceRupees: float64(p.Price) / 100,
		Category:    p.Category,
		OriginState: p.OriginState,
		ArtisanName: p.ArtisanName,
		GITag:       p.GITag,
		ImageURL:    p.ImageURL,
		Description: p.Description,
	}
}

// summaryView is productView with the description cut for listings.
func summaryView(p ucp.Product) ProductView {
	v := productView(p)
	v.GITag = ""
	v.Description = truncate(v.Description, summaryDescriptionLimit)
	return v
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

type CheckoutResult struct {
	SessionID   string `json:"checkout_session_id"`
	Total       int64  `json:"order_total_paise"`
	Currency    string `json:"currency"`
	PayeeVPA    string `json:"payee_vpa"`
	PayeeName   string `json:"payee_name"`
	UPILink     string `json:"upi_link"`
	QRBase64    string `json:"qr_base64,omitempty"`
	Instruction string `json:"message"`
}

type OrderResult struct {
	OrderID   string `json:"order_id"`
	SessionID string `json:"checkout_session_id"`
	Status    string `json:"status,omitempty"`
	Total     int64  `json:"total_paise"`
}
