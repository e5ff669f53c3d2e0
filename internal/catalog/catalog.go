// Package catalog reads products from a connected merchant's REST service.
package catalog

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

// GeneralCategory groups products that carry no category.
const GeneralCategory = "general"

type Fetcher interface {
	GetJSON(ctx context.Context, op, rawURL string, query url.Values, out any) error
}

type Client struct {
	fetcher Fetcher
}

func New(f Fetcher) *Client {
	return &Client{fetcher: f}
}

// Search lists products matching query and category. Empty values are not
// sent, so an empty search returns the merchant's default listing.
func (c *Client) Search(ctx context.Context, baseURL, query, category string) ([]ucp.Product, error) {
	const op = "search_products"
	q := url.Values{}
	if s := strings.TrimSpace(query); s != "" {
		q.Set("q", s)
	}
	if s := strings.TrimSpace(category); s != "" {
		q.Set("category", s)
	}
	var out ucp.ProductList
	if err := c.fetcher.GetJSON(ctx, op, baseURL+"/products", q, &out); err != nil {
		return nil, err
	}
	return validProducts(op, out.Products)
}

// Product fetches one product. The returned product always has an id and title.
func (c *Client) Product(ctx context.Context, baseURL, id string) (ucp.Product, error) {
	const op = "get_product"
	id = strings.TrimSpace(id)
	if id == "" {
		return ucp.Product{}, ucp.Validation(op, "product id is required")
	}
	var p ucp.Product
	if err := c.fetcher.GetJSON(ctx, op, baseURL+"/products/"+url.PathEscape(id), nil, &p); err != nil {
		return ucp.Product{}, err
	}
	if p.ID == "" || p.Title == "" {
		return ucp.Product{}, ucp.Protocol(op, "product %q is missing id or title", id)
	}
	if p.Price < 0 {
		return ucp.Product{}, ucp.Protocol(op, "product %q has negative price %d", id, p.Price)
	}
	return p, nil
}

// Catalogue returns the merchant's full product listing.
func (c *Client) Catalogue(ctx context.Context, baseURL string) ([]ucp.Product, error) {
	const op = "browse_categories"
	var out ucp.ProductList
	if err := c.fetcher.GetJSON(ctx, op, baseURL+"/catalogue", nil, &out); err != nil {
		return nil, err
	}
	return validProducts(op, out.Products)
}

type Category struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Categories counts products per category, sorted by name.
func Categories(products []ucp.Product) []Category {
	counts := map[string]int{}
	for _, p := range products {
		name := p.Category
		if name == "" {
			name = GeneralCategory
		}
		counts[name]++
	}
	out := make([]Category, 0, len(counts))
	for name, n := range counts {
		out = append(out, Category{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func validProducts(op string, in []ucp.Product) ([]ucp.Product, error) {
	if in == nil {
		return []ucp.Product{}, nil
	}
	for i, p := range in {
		if p.ID == "" || p.Title == "" {
			return nil, ucp.Protocol(op, "product at index %d is missing id or title", i)
		}
	}
	return in, nil
}
