package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/agent"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/cart"
)

func TestRenderReceipt(t *testing.T) {
	body, err := RenderReceipt(agent.OrderPlaced{
		MerchantName: "Artisan <Shop>",
		OrderID:      "ord_1",
		SessionID:    "cs_1",
		Currency:     "INR",
		Total:        105000,
		Items:        []cart.LineItem{{ProductID: "P1", Title: "Ikat Saree", UnitPrice: 50000, Quantity: 2}},
	})
	require.NoError(t, err)

	assert.Contains(t, body, "Order ID: <b>ord_1</b>")
	assert.Contains(t, body, "INR 1050.00")
	assert.Contains(t, body, "<td>Ikat Saree</td><td>x2</td><td>1000.00</td>")
	assert.Contains(t, body, "Artisan &lt;Shop&gt;")
}

func TestBuildRFC822(t *testing.T) {
	msg := string(buildRFC822("a@x.test", "b@x.test", "Hi", "<p>x</p>"))
	assert.True(t, strings.HasPrefix(msg, "From: a@x.test\r\nTo: b@x.test\r\nSubject: Hi\r\n"))
	assert.Contains(t, msg, "Content-Type: text/html; charset=UTF-8")
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, LogSender{}.Send("b@x.test", "Hi", "<p>x</p>"))
	assert.Equal(t, "Your order ord_1 is confirmed", ReceiptSubject(agent.OrderPlaced{OrderID: "ord_1"}))
}
