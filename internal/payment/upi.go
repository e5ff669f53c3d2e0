// Package payment renders UPI payment intents: a upi:// deep link and its
// QR code. It performs no I/O and never observes settlement.
package payment

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

const (
	DefaultVPA       = "merchant@ybl"
	DefaultPayeeName = "Merchant"
	// DefaultQRModuleSize is the pixel width of one QR module.
	DefaultQRModuleSize = 4

	currencyINR  = "INR"
	upiHandlerID = "upi"
)

// Payee identifies who receives a UPI payment.
type Payee struct {
	VPA  string
	Name string
}

// ResolvePayee reads vpa and merchant_name from the handler with id "upi",
// falling back to the defaults for anything missing.
func ResolvePayee(handlers []ucp.PaymentHandler) Payee {
	p := Payee{VPA: DefaultVPA, Name: DefaultPayeeName}
	for _, h := range handlers {
		if h.ID != upiHandlerID {
			continue
		}
		if v := h.ConfigString("vpa"); v != "" {
			p.VPA = v
		}
		if n := h.ConfigString("merchant_name"); n != "" {
			p.Name = n
		}
		break
	}
	return p
}

// FormatAmount renders minor units as a decimal with two places.
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// Link builds upi://pay?pa=..&pn=..&am=..&cu=INR&tn=... An empty note
// becomes Order_<orderID>.
func Link(vpa, name string, amountMinor int64, orderID, note string) string {
	if note == "" {
		note = "Order_" + orderID
	}
	var b strings.Builder
	b.WriteString("upi://pay?pa=")
	b.WriteString(vpa)
	b.WriteString("&pn=")
	b.WriteString(escape(name))
	b.WriteString("&am=")
	b.WriteString(FormatAmount(amountMinor))
	b.WriteString("&cu=")
	b.WriteString(currencyINR)
	b.WriteString("&tn=")
	b.WriteString(escape(note))
	return b.String()
}

// QRBase64 encodes uri as a PNG QR code and returns it base64 encoded, with
// no data-URI prefix. moduleSize <= 0 uses DefaultQRModuleSize.
func QRBase64(uri string, moduleSize int) (string, error) {
	if moduleSize <= 0 {
		moduleSize = DefaultQRModuleSize
	}
	q, err := qrcode.New(uri, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	// a negative size is pixels per module
	png, err := q.PNG(-moduleSize)
	if err != nil {
		return "", fmt.Errorf("render qr png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// Intent is everything a payer needs to settle one checkout session.
type Intent struct {
	Payee       Payee
	AmountMinor int64
	OrderRef    string
	URI         string
	QRBase64    string
}

// NewIntent resolves the payee from handlers and renders link and QR code.
// The link cannot fail; when the QR code cannot be rendered the returned
// intent still carries the link, with QRBase64 empty, alongside the error.
func NewIntent(handlers []ucp.PaymentHandler, amountMinor int64, orderRef string, moduleSize int) (Intent, error) {
	if orderRef == "" {
		orderRef = "order"
	}
	payee := ResolvePayee(handlers)
	in := Intent{Payee: payee, AmountMinor: amountMinor, OrderRef: orderRef}
	in.URI = Link(payee.VPA, payee.Name, amountMinor, orderRef, "")
	qr, err := QRBase64(in.URI, moduleSize)
	if err != nil {
		return in, fmt.Errorf("render QR code: %w", err)
	}
	in.QRBase64 = qr
	return in, nil
}

// escape percent-encodes a query value; spaces become %20 and "/" stays
// literal.
func escape(s string) string {
	e := strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
	return strings.ReplaceAll(e, "%2F", "/")
}
