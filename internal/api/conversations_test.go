package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/agent"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/authz"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/cart"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/checkout"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/identity"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/storage/postgres"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp/ucptest"
)

type observed struct {
	mu    sync.Mutex
	calls []string
}

func (o *observed) ObserveRequest(handler string, status int, _ time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, handler+":"+http.StatusText(status))
}

type memReceipts struct {
	byID map[string]postgres.Receipt
}

func (m memReceipts) GetReceipt(_ context.Context, id string) (postgres.Receipt, error) {
	rc, ok := m.byID[id]
	if !ok {
		return postgres.Receipt{}, postgres.ErrReceiptNotFound
	}
	return rc, nil
}

func (m memReceipts) ListReceipts(_ context.Context, conv string, _ int) ([]postgres.Receipt, error) {
	var out []postgres.Receipt
	for _, rc := range m.byID {
		if rc.ConversationID == conv {
			out = append(out, rc)
		}
	}
	return out, nil
}

// ownerOnly allows only the principal recorded via Write.
type ownerOnly struct {
	mu     sync.Mutex
	owners map[string]string
}

func (o *ownerOnly) Write(_ context.Context, tuples ...authz.TupleKey) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, tk := range tuples {
		o.owners[tk.Object] = tk.User
	}
	return nil
}

func (o *ownerOnly) Check(_ context.Context, user, object, _ string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.owners[object] == user, nil
}

func newTestAPI(t *testing.T, deps Deps) *httptest.Server {
	t.Helper()
	cfg := agent.Config{Checkout: checkout.Config{
		Build:          checkout.BuildOptions{AllowDefaultHandler: true},
		AllowDemoProof: true,
	}}
	transport := ucp.NewClient(ucp.Options{Decorator: identity.New("", nil)})
	deps.Registry = agent.NewRegistry(cfg, agent.Deps{Transport: transport}, 0)
	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)
	srv := httptest.NewServer(WithCORS(mux))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string, headers ...string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestConversationFlow(t *testing.T) {
	m := ucptest.Seeded()
	merchantURL := m.Start(t)
	obs := &observed{}
	srv := newTestAPI(t, Deps{Observer: obs})
	base := srv.URL + "/api/conversations/c1"

	status, body := do(t, http.MethodGet, base+"/cart", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["total_paise"])

	status, body = do(t, http.MethodPost, base+"/cart", `{"product_id":"P1"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(ucp.KindNotConnected), body["kind"])

	status, body = do(t, http.MethodPost, base+"/merchant", `{"url":"`+merchantURL+`"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Artisan Shop", body["name"])

	status, body = do(t, http.MethodGet, base+"/products?q=saree", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["products"], 1)

	status, _ = do(t, http.MethodGet, base+"/products/NOPE", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = do(t, http.MethodPost, base+"/cart", `{"product_id":"P1","quantity":2}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 100000, body["total_paise"])

	status, body = do(t, http.MethodPost, base+"/cart", `{"product_id":"P2","quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(ucp.KindValidation), body["kind"])

	status, body = do(t, http.MethodPost, base+"/checkout", "")
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "cs_1", body["checkout_session_id"])

	status, body = do(t, http.MethodGet, base+"/checkout", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cs_1", body["checkout_session_id"])

	status, body = do(t, http.MethodPost, base+"/confirm", `{"utr":"UTR123"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "ord_1", body["order_id"])

	status, body = do(t, http.MethodGet, base+"/cart", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["total_paise"])

	// another conversation is isolated
	status, body = do(t, http.MethodGet, srv.URL+"/api/conversations/c2/merchant", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "disconnected", body["state"])

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Contains(t, obs.calls, "conversations:OK")
	assert.Contains(t, obs.calls, "conversations:Conflict")
}

func TestCheckoutTransportFailureIsBadGateway(t *testing.T) {
	m := ucptest.Seeded()
	m.CreateStatus = http.StatusServiceUnavailable
	merchantURL := m.Start(t)
	srv := newTestAPI(t, Deps{})
	base := srv.URL + "/api/conversations/c1"

	status, _ := do(t, http.MethodPost, base+"/merchant", `{"url":"`+merchantURL+`"}`)
	require.Equal(t, http.StatusOK, status)
	status, _ = do(t, http.MethodPost, base+"/cart", `{"product_id":"P1"}`)
	require.Equal(t, http.StatusOK, status)

	status, body := do(t, http.MethodPost, base+"/checkout", "")
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, string(ucp.KindTransport), body["kind"])

	status, body = do(t, http.MethodPost, base+"/confirm", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(ucp.KindValidation), body["kind"])
}

func TestCartUpdateAndRemove(t *testing.T) {
	m := ucptest.Seeded()
	merchantURL := m.Start(t)
	srv := newTestAPI(t, Deps{})
	base := srv.URL + "/api/conversations/c1"

	do(t, http.MethodPost, base+"/merchant", `{"url":"`+merchantURL+`"}`)
	do(t, http.MethodPost, base+"/cart", `{"product_id":"P1"}`)
	do(t, http.MethodPost, base+"/cart", `{"product_id":"P2"}`)

	status, body := do(t, http.MethodPatch, base+"/cart/P1", `{"quantity":3}`)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 270000, body["total_paise"])

	status, body = do(t, http.MethodDelete, base+"/cart/P2", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 150000, body["total_paise"])

	status, _ = do(t, http.MethodDelete, base+"/cart/P2", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, http.MethodPut, base+"/cart/P1", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestOwnershipIsEnforced(t *testing.T) {
	fga := &ownerOnly{owners: map[string]string{}}
	srv := newTestAPI(t, Deps{Authz: fga, Owners: fga})

	status, body := do(t, http.MethodPost, srv.URL+"/api/conversations", "", "X-Principal", "user:alice")
	require.Equal(t, http.StatusCreated, status)
	id, _ := body["conversation_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "user:alice", body["owner"])

	status, _ = do(t, http.MethodGet, srv.URL+"/api/conversations/"+id+"/cart", "", "X-Principal", "user:alice")
	assert.Equal(t, http.StatusOK, status)

	status, _ = do(t, http.MethodPost, srv.URL+"/api/conversations/"+id+"/checkout", "", "X-Principal", "user:mallory")
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = do(t, http.MethodDelete, srv.URL+"/api/conversations/"+id, "", "X-Principal", "user:alice")
	assert.Equal(t, http.StatusNoContent, status)
}

func TestReceipts(t *testing.T) {
	store := memReceipts{byID: map[string]postgres.Receipt{
		"ord_1": {OrderID: "ord_1", ConversationID: "c1", Status: "confirmed", Total: 100000, Currency: "INR",
			Items: []cart.LineItem{{ProductID: "P1", Title: "Ikat Saree", UnitPrice: 50000, Quantity: 2}}},
	}}
	srv := newTestAPI(t, Deps{Receipts: store})

	status, body := do(t, http.MethodGet, srv.URL+"/api/receipts/ord_1", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 100000, body["total_paise"])
	assert.Len(t, body["items"], 1)

	status, _ = do(t, http.MethodGet, srv.URL+"/api/receipts/missing", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = do(t, http.MethodGet, srv.URL+"/api/conversations/c1/receipts", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["receipts"], 1)
}

func TestReceiptsWithoutStore(t *testing.T) {
	srv := newTestAPI(t, Deps{})
	status, _ := do(t, http.MethodGet, srv.URL+"/api/receipts/ord_1", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ucp.NotConnected("x"), http.StatusConflict},
		{ucp.NotFound("x", "gone"), http.StatusNotFound},
		{ucp.Validation("x", "bad"), http.StatusBadRequest},
		{ucp.Transport("x", 503, errors.New("u")), http.StatusBadGateway},
		{ucp.Protocol("x", "garbled"), http.StatusBadGateway},
		{errReceiptsUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestConversationTarget(t *testing.T) {
	cases := []struct {
		path, object, relation string
	}{
		{"/api/conversations/c1/cart", "conversation:c1", authz.RelationShop},
		{"/api/conversations/c1/cart/P1", "conversation:c1", authz.RelationShop},
		{"/api/conversations/c1/checkout", "conversation:c1", authz.RelationPay},
		{"/api/conversations/c1/confirm/", "conversation:c1", authz.RelationPay},
		{"/api/conversations/c1", "conversation:c1", authz.RelationShop},
		{"/api/conversations/", "", ""},
	}
	for _, tc := range cases {
		obj, rel := conversationTarget(httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, tc.object, obj, tc.path)
		assert.Equal(t, tc.relation, rel, tc.path)
	}
}
