// Package cart keeps the agent's in-memory cart: an insertion-ordered set of
// line items keyed by product id.
package cart

import (
	"strings"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

// LineItem is one product in the cart. Title and unit price are captured from
// the product lookup that preceded the first add.
type LineItem struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	UnitPrice int64  `json:"price_paise"`
	Quantity  int    `json:"quantity"`
}

func (li LineItem) LineTotal() int64 {
	return li.UnitPrice * int64(li.Quantity)
}

// ViewLine is a LineItem with its computed line total.
type ViewLine struct {
	LineItem
	LineTotal int64 `json:"line_total_paise"`
}

// View is a read-only projection of the cart.
type View struct {
	Items []ViewLine `json:"items"`
	Total int64      `json:"total_paise"`
}

func (v View) Empty() bool { return len(v.Items) == 0 }

// Store is not safe for concurrent use; the owning agent session serializes
// access.
type Store struct {
	items []LineItem
}

func NewStore() *Store {
	return &Store{}
}

// Add merges qty into the existing line for p.ID, or appends a new line.
// An existing line keeps the title and price it was created with.
func (s *Store) Add(p ucp.Product, qty int) (LineItem, error) {
	const op = "add_to_cart"
	if qty < 1 {
		return LineItem{}, ucp.Validation(op, "quantity must be at least 1, got %d", qty)
	}
	if strings.TrimSpace(p.ID) == "" {
		return LineItem{}, ucp.Validation(op, "product id is required")
	}
	if i := s.index(p.ID); i >= 0 {
		s.items[i].Quantity += qty
		return s.items[i], nil
	}
	li := LineItem{ProductID: p.ID, Title: p.Title, UnitPrice: p.Price, Quantity: qty}
	s.items = append(s.items, li)
	return li, nil
}

// SetQuantity overwrites the quantity of an existing line; qty <= 0 removes it.
func (s *Store) SetQuantity(productID string, qty int) error {
	i := s.index(productID)
	if i < 0 {
		return ucp.NotFound("update_cart", "product %q not in cart", productID)
	}
	if qty <= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
		return nil
	}
	s.items[i].Quantity = qty
	return nil
}

func (s *Store) Remove(productID string) error {
	if err := s.SetQuantity(productID, 0); err != nil {
		if ue, ok := err.(*ucp.Error); ok {
			ue.Op = "remove_from_cart"
		}
		return err
	}
	return nil
}

func (s *Store) View() View {
	v := View{Items: make([]ViewLine, 0, len(s.items))}
	for _, li := range s.items {
		lt := li.LineTotal()
		v.Items = append(v.Items, ViewLine{LineItem: li, LineTotal: lt})
		v.Total += lt
	}
	return v
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []LineItem {
	return append([]LineItem(nil), s.items...)
}

func (s *Store) Len() int { return len(s.items) }

// Clear empties the cart. Call it only after a confirmed completion.
func (s *Store) Clear() {
	s.items = nil
}

func (s *Store) index(productID string) int {
	for i, li := range s.items {
		if li.ProductID == productID {
			return i
		}
	}
	return -1
}
