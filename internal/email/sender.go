package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/agent"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/payment"
)

type Sender interface {
	Send(to, subject, htmlBody string) error
}

type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	Username string
	Password string
}

type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth // nil for local dev (MailHog)
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	s := &SMTPSender{addr: fmt.Sprintf("%s:%s", cfg.Host, cfg.Port), from: cfg.From}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return s
}

func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	msg := buildRFC822(s.from, to, subject, htmlBody)
	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func buildRFC822(from, to, subject, html string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&buf, "\r\n%s\r\n", html)
	return buf.Bytes()
}

// LogSender logs instead of sending; useful without SMTP.
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) Send(to, subject, htmlBody string) error {
	l := s.Logger
	if l == nil {
		l = zap.NewNop()
	}
	l.Info("email", zap.String("to", to), zap.String("subject", subject), zap.Int("bytes", len(htmlBody)))
	return nil
}

var receiptTpl = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"money": payment.FormatAmount,
}).Parse(`
<h2>Thanks for your order at {{.MerchantName}}!</h2>
<p>Order ID: <b>{{.OrderID}}</b></p>
<table>
{{range .Items}}<tr><td>{{.Title}}</td><td>x{{.Quantity}}</td><td>{{money .LineTotal}}</td></tr>
{{end}}</table>
<p>Total: <b>{{.Currency}} {{money .Total}}</b></p>
<p>Checkout session: {{.SessionID}}</p>
`))

type receiptLine struct {
	Title     string
	Quantity  int
	LineTotal int64
}

// RenderReceipt renders the order confirmation body.
func RenderReceipt(e agent.OrderPlaced) (string, error) {
	lines := make([]receiptLine, 0, len(e.Items))
	for _, li := range e.Items {
		lines = append(lines, receiptLine{Title: li.Title, Quantity: li.Quantity, LineTotal: li.LineTotal()})
	}
	var buf bytes.Buffer
	err := receiptTpl.Execute(&buf, map[string]any{
		"MerchantName": e.MerchantName,
		"OrderID":      e.OrderID,
		"SessionID":    e.SessionID,
		"Currency":     e.Currency,
		"Total":        e.Total,
		"Items":        lines,
	})
	if err != nil {
		return "", fmt.Errorf("render receipt: %w", err)
	}
	return buf.String(), nil
}

func ReceiptSubject(e agent.OrderPlaced) string {
	return fmt.Sprintf("Your order %s is confirmed", e.OrderID)
}
