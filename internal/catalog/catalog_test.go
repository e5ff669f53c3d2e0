package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

func newMerchant(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "none" {
			_, _ = w.Write([]byte(`{"products":[]}`))
			return
		}
		assert.Equal(t, "textiles", r.URL.Query().Get("category"))
		_, _ = w.Write([]byte(`{"products":[{"id":"P1","title":"Ikat Saree","price":50000,"category":"textiles"}]}`))
	})
	mux.HandleFunc("/products/P1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"P1","title":"Ikat Saree","price":50000,"gi_tag":"Pochampally"}`))
	})
	mux.HandleFunc("/products/broken", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"price":100}`))
	})
	mux.HandleFunc("/catalogue", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"products":[
			{"id":"P1","title":"a","price":1,"category":"textiles"},
			{"id":"P2","title":"b","price":1,"category":"pottery"},
			{"id":"P3","title":"c","price":1},
			{"id":"P4","title":"d","price":1,"category":"textiles"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSearch(t *testing.T) {
	srv := newMerchant(t)
	c := New(ucp.NewClient(ucp.Options{}))

	got, err := c.Search(context.Background(), srv.URL, "saree", "textiles")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "P1", got[0].ID)

	none, err := c.Search(context.Background(), srv.URL, "none", "")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestProduct(t *testing.T) {
	srv := newMerchant(t)
	c := New(ucp.NewClient(ucp.Options{}))

	p, err := c.Product(context.Background(), srv.URL, "P1")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), p.Price)
	assert.Equal(t, "Pochampally", p.GITag)

	_, err = c.Product(context.Background(), srv.URL, "missing")
	assert.Equal(t, ucp.KindNotFound, ucp.KindOf(err))

	_, err = c.Product(context.Background(), srv.URL, "broken")
	assert.Equal(t, ucp.KindProtocol, ucp.KindOf(err))

	_, err = c.Product(context.Background(), srv.URL, "  ")
	assert.Equal(t, ucp.KindValidation, ucp.KindOf(err))
}

func TestCatalogueCategories(t *testing.T) {
	srv := newMerchant(t)
	c := New(ucp.NewClient(ucp.Options{}))

	products, err := c.Catalogue(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, []Category{
		{Name: "general", Count: 1},
		{Name: "pottery", Count: 1},
		{Name: "textiles", Count: 2},
	}, Categories(products))
}

func TestCategoriesEmpty(t *testing.T) {
	assert.Empty(t, Categories(nil))
	assert.NotNil(t, Categories(nil))
}
