package agent

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/cucumber/godog"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/cart"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/identity"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp/ucptest"
)

func TestBDDFeatures(t *testing.T) {
	opts := godog.Options{
		Format: "pretty",
		Paths:  []string{"features"},
		Strict: true,
	}

	suite := godog.TestSuite{
		Name: "ucp-shopping-agent",
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			world := &shopperWorld{}
			world.Register(sc)
		},
		Options: &opts,
	}

	if suite.Run() != 0 {
		t.Fail()
	}
}

type shopperWorld struct {
	merchant *ucptest.Merchant
	server   *httptest.Server
	session  *Session

	lastErr  error
	view     cart.View
	checkout CheckoutResult
	order    OrderResult
}

func (w *shopperWorld) Register(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		w.merchant = ucptest.NewMerchant()
		w.server = httptest.NewServer(w.merchant)
		transport := ucp.NewClient(ucp.Options{Decorator: identity.New("", nil)})
		w.session = NewSession("bdd", demoConfig(), Deps{Transport: transport})
		return ctx, nil
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		if w.server != nil {
			w.server.Close()
		}
		return ctx, nil
	})

	sc.Step(`^a merchant whose UPI handler has vpa "([^"]+)"$`, w.merchantWithVPA)
	sc.Step(`^the merchant sells:$`, w.merchantSells)
	sc.Step(`^the merchant opens checkout session "([^"]+)" with total (\d+)$`, w.merchantOpensSession)
	sc.Step(`^the merchant fails checkout creation with status (\d+)$`, w.merchantFailsCreate)
	sc.Step(`^I connect to the merchant$`, w.connect)
	sc.Step(`^I add (\d+) of "([^"]+)" to the cart$`, w.addToCart)
	sc.Step(`^I check out$`, w.checkOut)
	sc.Step(`^I confirm payment with "([^"]+)"$`, w.confirm)
	sc.Step(`^the cart total is (\d+)$`, w.cartTotalIs)
	sc.Step(`^the checkout session is "([^"]+)" with total (\d+)$`, w.checkoutSessionIs)
	sc.Step(`^the UPI link has pa "([^"]+)" and am "([^"]+)"$`, w.upiLinkHas)
	sc.Step(`^the QR code decodes as a PNG image$`, w.qrIsPNG)
	sc.Step(`^an order id is returned$`, w.orderIDReturned)
	sc.Step(`^the merchant received payment token "([^"]+)"$`, w.merchantReceivedToken)
	sc.Step(`^the cart is empty$`, w.cartIsEmpty)
	sc.Step(`^no checkout session is tracked$`, w.noSessionTracked)
	sc.Step(`^the operation fails with a "([^"]+)" error$`, w.operationFailsWith)
	sc.Step(`^the cart holds (\d+) of "([^"]+)" with total (\d+)$`, w.cartHolds)
	sc.Step(`^the merchant received no checkout calls$`, w.noCheckoutCalls)
}

func (w *shopperWorld) merchantWithVPA(vpa string) error {
	w.merchant.Set(func(m *ucptest.Merchant) {
		m.Handlers = []map[string]any{{
			"id": "upi", "name": "in.npci.upi", "version": "2026-01-11",
			"config": map[string]any{"vpa": vpa},
		}}
	})
	return nil
}

func (w *shopperWorld) merchantSells(table *godog.Table) error {
	rows, err := tableToMaps(table)
	if err != nil {
		return err
	}
	for _, row := range rows {
		price, err := strconv.ParseInt(row["price"], 10, 64)
		if err != nil {
			return fmt.Errorf("price for %s: %w", row["id"], err)
		}
		p := ucp.Product{ID: row["id"], Title: row["title"], Price: price}
		w.merchant.Set(func(m *ucptest.Merchant) { m.Products[p.ID] = p })
	}
	return nil
}

func (w *shopperWorld) merchantOpensSession(id string, total int64) error {
	w.merchant.Set(func(m *ucptest.Merchant) {
		m.SessionID = id
		m.SessionTotal = total
	})
	return nil
}

func (w *shopperWorld) merchantFailsCreate(status int) error {
	w.merchant.Set(func(m *ucptest.Merchant) { m.CreateStatus = status })
	return nil
}

func (w *shopperWorld) connect() error {
	_, err := w.session.Connect(context.Background(), w.server.URL)
	return err
}

func (w *shopperWorld) addToCart(qty int, id string) error {
	w.view, w.lastErr = w.session.AddToCart(context.Background(), id, qty)
	return nil
}

func (w *shopperWorld) checkOut() error {
	w.checkout, w.lastErr = w.session.Checkout(context.Background())
	return nil
}

func (w *shopperWorld) confirm(proof string) error {
	w.order, w.lastErr = w.session.Confirm(context.Background(), proof)
	return nil
}

func (w *shopperWorld) cartTotalIs(total int64) error {
	if w.lastErr != nil {
		return fmt.Errorf("unexpected error: %w", w.lastErr)
	}
	if got := w.session.ViewCart(context.Background()).Total; got != total {
		return fmt.Errorf("cart total = %d, want %d", got, total)
	}
	return nil
}

func (w *shopperWorld) checkoutSessionIs(id string, total int64) error {
	if w.lastErr != nil {
		return fmt.Errorf("checkout failed: %w", w.lastErr)
	}
	if w.checkout.SessionID != id || w.checkout.Total != total {
		return fmt.Errorf("checkout = (%s, %d), want (%s, %d)", w.checkout.SessionID, w.checkout.Total, id, total)
	}
	return nil
}

func (w *shopperWorld) upiLinkHas(pa, am string) error {
	u, err := url.Parse(w.checkout.UPILink)
	if err != nil {
		return fmt.Errorf("parse upi link %q: %w", w.checkout.UPILink, err)
	}
	q := u.Query()
	if q.Get("pa") != pa || q.Get("am") != am {
		return fmt.Errorf("upi link %q: pa=%q am=%q", w.checkout.UPILink, q.Get("pa"), q.Get("am"))
	}
	if q.Get("cu") != "INR" {
		return fmt.Errorf("upi link currency = %q", q.Get("cu"))
	}
	return nil
}

func (w *shopperWorld) qrIsPNG() error {
	raw, err := base64.StdEncoding.DecodeString(w.checkout.QRBase64)
	if err != nil {
		return fmt.Errorf("decode qr base64: %w", err)
	}
	if _, err := png.Decode(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("decode qr png: %w", err)
	}
	return nil
}

func (w *shopperWorld) orderIDReturned() error {
	if w.lastErr != nil {
		return fmt.Errorf("confirm failed: %w", w.lastErr)
	}
	if w.order.OrderID == "" {
		return fmt.Errorf("empty order id")
	}
	return nil
}

func (w *shopperWorld) merchantReceivedToken(token string) error {
	body := w.merchant.LastPost().Body
	data, _ := body["payment_data"].(map[string]any)
	cred, _ := data["credential"].(map[string]any)
	if got, _ := cred["token"].(string); got != token {
		return fmt.Errorf("merchant got token %q, want %q", got, token)
	}
	return nil
}

func (w *shopperWorld) cartIsEmpty() error {
	if v := w.session.ViewCart(context.Background()); !v.Empty() || v.Total != 0 {
		return fmt.Errorf("cart not empty: %+v", v)
	}
	return nil
}

func (w *shopperWorld) noSessionTracked() error {
	if _, id := w.session.CheckoutState(); id != "" {
		return fmt.Errorf("session %q still tracked", id)
	}
	return nil
}

func (w *shopperWorld) operationFailsWith(kind string) error {
	if w.lastErr == nil {
		return fmt.Errorf("expected a %s error, got none", kind)
	}
	if got := ucp.KindOf(w.lastErr); string(got) != kind {
		return fmt.Errorf("error kind = %q, want %q (%v)", got, kind, w.lastErr)
	}
	return nil
}

func (w *shopperWorld) cartHolds(qty int, id string, total int64) error {
	v := w.session.ViewCart(context.Background())
	for _, li := range v.Items {
		if li.ProductID == id {
			if li.Quantity != qty {
				return fmt.Errorf("%s quantity = %d, want %d", id, li.Quantity, qty)
			}
			if v.Total != total {
				return fmt.Errorf("cart total = %d, want %d", v.Total, total)
			}
			return nil
		}
	}
	return fmt.Errorf("%s not in cart", id)
}

func (w *shopperWorld) noCheckoutCalls() error {
	if n := w.merchant.PostCount(); n != 0 {
		return fmt.Errorf("merchant received %d checkout calls", n)
	}
	return nil
}

func tableToMaps(table *godog.Table) ([]map[string]string, error) {
	if table == nil || len(table.Rows) < 2 {
		return nil, fmt.Errorf("table needs a header and at least one row")
	}
	header := make([]string, len(table.Rows[0].Cells))
	for i, c := range table.Rows[0].Cells {
		header[i] = c.Value
	}
	out := make([]map[string]string, 0, len(table.Rows)-1)
	for _, row := range table.Rows[1:] {
		m := make(map[string]string, len(header))
		for i, c := range row.Cells {
			if i < len(header) {
				m[header[i]] = c.Value
			}
		}
		out = append(out, m)
	}
	return out, nil
}
