// Package ucptest provides an in-process UCP merchant for tests.
package ucptest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

type RecordedPost struct {
	Path   string
	Header http.Header
	Body   map[string]any
}

// Merchant serves discovery, catalog and checkout endpoints from in-memory
// fixtures and records every request. Fields may be changed between calls.
type Merchant struct {
	mu sync.Mutex

	Name     string
	Handlers []map[string]any
	Products map[string]ucp.Product

	CreateStatus   int
	SessionID      string
	SessionTotal   int64
	CompleteStatus int
	OrderID        string

	gets  []string
	posts []RecordedPost
}

func NewMerchant() *Merchant {
	return &Merchant{
		Name:           "Artisan Shop",
		Products:       map[string]ucp.Product{},
		CreateStatus:   http.StatusCreated,
		SessionID:      "cs_1",
		CompleteStatus: http.StatusOK,
		OrderID:        "ord_1",
	}
}

// Start serves m until the test ends and returns its base URL.
func (m *Merchant) Start(t testing.TB) string {
	t.Helper()
	srv := httptest.NewServer(m)
	t.Cleanup(srv.Close)
	return srv.URL
}

// Set applies fn while holding the merchant's lock.
func (m *Merchant) Set(fn func(*Merchant)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

func (m *Merchant) PostCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posts)
}

func (m *Merchant) LastPost() RecordedPost {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.posts) == 0 {
		return RecordedPost{}
	}
	return m.posts[len(m.posts)-1]
}

func (m *Merchant) Gets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.gets...)
}

func (m *Merchant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.Method == http.MethodPost {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		m.posts = append(m.posts, RecordedPost{Path: r.URL.Path, Header: r.Header.Clone(), Body: body})
	} else {
		m.gets = append(m.gets, r.URL.Path)
	}

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && path == "/.well-known/ucp":
		handlers := m.Handlers
		if handlers == nil {
			handlers = []map[string]any{}
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"ucp":      map[string]any{"version": "2026-01-11", "capabilities": []map[string]any{{"name": "dev.ucp.shopping.checkout"}}},
			"payment":  map[string]any{"handlers": handlers},
			"merchant": map[string]any{"name": m.Name, "product_categories": "textiles"},
		})
	case r.Method == http.MethodGet && (path == "/products" || path == "/catalogue"):
		q := strings.ToLower(r.URL.Query().Get("q"))
		cat := r.URL.Query().Get("category")
		out := []ucp.Product{}
		for _, p := range m.sortedProducts() {
			if q != "" && !strings.Contains(strings.ToLower(p.Title), q) {
				continue
			}
			if cat != "" && p.Category != cat {
				continue
			}
			out = append(out, p)
		}
		WriteJSON(w, http.StatusOK, map[string]any{"products": out})
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/products/"):
		p, ok := m.Products[strings.TrimPrefix(path, "/products/")]
		if !ok {
			WriteJSON(w, http.StatusNotFound, map[string]any{"detail": "product not found"})
			return
		}
		WriteJSON(w, http.StatusOK, p)
	case r.Method == http.MethodPost && path == "/checkout-sessions":
		if m.CreateStatus >= 300 {
			WriteJSON(w, m.CreateStatus, map[string]any{"detail": "unavailable"})
			return
		}
		WriteJSON(w, m.CreateStatus, map[string]any{
			"id":       m.SessionID,
			"status":   "ready_for_complete",
			"currency": "INR",
			"totals":   []map[string]any{{"type": "total", "amount": m.SessionTotal}},
		})
	case r.Method == http.MethodPost && strings.HasPrefix(path, "/checkout-sessions/") && strings.HasSuffix(path, "/complete"):
		if m.CompleteStatus >= 300 {
			WriteJSON(w, m.CompleteStatus, map[string]any{"detail": "declined"})
			return
		}
		WriteJSON(w, m.CompleteStatus, map[string]any{
			"id":     m.SessionID,
			"status": "completed",
			"order":  map[string]any{"id": m.OrderID, "status": "confirmed"},
		})
	default:
		http.NotFound(w, r)
	}
}

func (m *Merchant) sortedProducts() []ucp.Product {
	out := make([]ucp.Product, 0, len(m.Products))
	for _, p := range m.Products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Seeded returns a merchant with one UPI handler and two products:
// P1 "Ikat Saree" at 50000 and P2 "Madhubani Print" at 120000.
func Seeded() *Merchant {
	m := NewMerchant()
	m.Handlers = []map[string]any{{
		"id": "upi", "name": "in.npci.upi", "version": "2026-01-11",
		"config": map[string]any{"vpa": "shop@upi", "merchant_name": "Artisan Shop"},
	}}
	m.Products["P1"] = ucp.Product{ID: "P1", Title: "Ikat Saree", Price: 50000, Category: "textiles"}
	m.Products["P2"] = ucp.Product{ID: "P2", Title: "Madhubani Print", Price: 120000, Category: "paintings"}
	m.SessionTotal = 100000
	return m
}
