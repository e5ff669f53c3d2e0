package mcp

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/agent"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/cart"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/catalog"
)

func (s *Server) registerTools() {
	s.addTool("discover_merchant",
		"Connect to a UCP merchant by URL. Fetches /.well-known/ucp and stores the merchant for browsing and checkout. Call this first with the merchant's base URL (e.g. http://localhost:8000).",
		map[string]*jsonschema.Schema{
			"merchant_url": {Type: "string", Description: "Merchant base URL"},
		}, []string{"merchant_url"}, s.handleDiscover)

	s.addTool("browse_categories",
		"List product categories and counts from the connected merchant.",
		nil, nil, s.handleCategories)

	s.addTool("search_products",
		"Search products by keyword and optional category.",
		map[string]*jsonschema.Schema{
			"query":    {Type: "string", Description: "Keyword; empty lists everything"},
			"category": {Type: "string", Description: "Category filter"},
		}, nil, s.handleSearch)

	s.addTool("get_product",
		"Get full product details by ID.",
		map[string]*jsonschema.Schema{
			"product_id": {Type: "string"},
		}, []string{"product_id"}, s.handleGetProduct)

	s.addTool("add_to_cart",
		"Add a product to the cart. Use the product ID from search_products or get_product.",
		map[string]*jsonschema.Schema{
			"product_id": {Type: "string"},
			"quantity":   {Type: "integer", Description: "Defaults to 1"},
		}, []string{"product_id"}, s.handleAddToCart)

	s.addTool("update_cart",
		"Update quantity for a product in the cart. Use 0 to remove.",
		map[string]*jsonschema.Schema{
			"product_id": {Type: "string"},
			"quantity":   {Type: "integer"},
		}, []string{"product_id", "quantity"}, s.handleUpdateCart)

	s.addTool("remove_from_cart",
		"Remove a product from the cart.",
		map[string]*jsonschema.Schema{
			"product_id": {Type: "string"},
		}, []string{"product_id"}, s.handleRemoveFromCart)

	s.addTool("view_cart",
		"Show the current cart with line items and totals.",
		nil, nil, s.handleViewCart)

	s.addTool("checkout",
		"Create a checkout session and return a UPI payment link and QR code. Scan the QR or open the link to pay.",
		nil, nil, s.handleCheckout)

	s.addTool("confirm_payment",
		"Confirm that payment is done and complete the order. Optionally pass the UTR/reference from your UPI app.",
		map[string]*jsonschema.Schema{
			"utr": {Type: "string", Description: "UPI transaction reference"},
		}, nil, s.handleConfirm)
}

type discoverResult struct {
	Success  bool               `json:"success"`
	Merchant agent.MerchantInfo `json:"merchant"`
	Message  string             `json:"message"`
}

func (s *Server) handleDiscover(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args struct {
		MerchantURL string `json:"merchant_url"`
	}
	if err := decodeArgs("discover_merchant", req, &args); err != nil {
		return nil, err
	}
	sess, err := s.conversation(req)
	if err != nil {
		return nil, err
	}
	info, err := sess.Connect(ctx, args.MerchantURL)
	if err != nil {
		return nil, err
	}
	return jsonResult(discoverResult{
		Success:  true,
		Merchant: info,
		Message:  "You can now use browse_categories, search_products, get_product, add_to_cart, etc.",
	})
}

type categoriesResult struct {
	Categories []catalog.Category `json:"categories"`
	Message    string             `json:"message,omitempty"`
}

func (s *Server) handleCategories(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	sess, err := s.conversation(req)
	if err != nil {
		return nil, err
	}
	cats, err := sess.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	out := categoriesResult{Categories: cats}
	if len(cats) == 0 {
		out.Message = "No categories found."
	}
	return jsonResult(out)
}

type productsResult struct {
	UI       ui                  `json:"_ui"`
	Products []agent.ProductView `json:"products"`
	Message  string              `json:"message,omitempty"`
}

func (s *Server) handleSearch(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args struct {
		Query    string `json:"query"`
		Category string `json:"category"`
	}
	if err := decodeArgs("search_products", req, &args); err != nil {
		return nil, err
	}
	sess, err := s.conversation(req)
	if err != nil {
		return nil, err
	}
	products, err := sess.Search(ctx, args.Query, args.Category)
	if err != nil {
		return nil, err
	}
	out := productsResult{UI: ui{Type: "product-grid"}, Products: products}
	if len(products) == 0 {
		out.Message = "No products found."
	}
	return jsonResult(out)
}

type productResult struct {
	UI      ui                `json:"_ui"`
	Product agent.ProductView `json:"product"`
}

func (s *Server) handleGetProduct(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args struct {
		ProductID string `json:"product_id"`
	}
	if err := decodeArgs("get_product", req, &args); err != nil {
		return nil, err
	}
	sess, err := s.conversation(req)
	if err != nil {
		return nil, err
	}
	p, err := sess.GetProduct(ctx, args.ProductID)
	if err != nil {
		return nil, err
	}
	return jsonResult(productResult{UI: ui{Type: "product-detail"}, Product: p})
}

type cartResult struct {
	UI ui `json:"_ui"`
	cart.View
	Message string `json:"message,omitempty"`
}

func cartPayload(v cart.View) (*mcpsdk.CallToolResult, error) {
	out := cartResult{UI: ui{Type: "cart"}, View: v}
	if v.Empty() {
		out.Message = "Your cart is empty."
	}
	return jsonResult(out)
}

type cartArgs struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

func (s *Server) handleAddToCart(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args cartArgs
	if err := decodeArgs("add_to_cart", req, &args); err != nil {
		return nil, err
	}
	qty := 1
	if args.Quantity != nil {
		qty = *args.Quantity
	}
	sess, err := s.conversation(req)
	if err != nil {
		return nil, err
	}
	v, err := sess.AddToCart(ctx, args.ProductID, qty)
	if err != nil {
		return nil, err
	}
	return cartPayload(v)
}

func (s *Server) handleUpdateCart(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args cartArgs
	if err := decodeArgs("update_cart", req, &args); err != nil {
		return nil, err
	}
	qty := 0
	if args.Quantity != nil {
		qty = *args.Quantity
	}
	sess, err := s.conversation(req)
	if err != nil {
		return nil, err
	}
	v, err := sess.UpdateCart(ctx, args.ProductID, qty)
	if err != nil {
		return nil, err
	}
	return cartPayload(v)
}

func (s *Server) handleRemoveFromCart(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args cartArgs
	if err := decodeArgs("remove_from_cart", req, &args); err != nil {
		return nil, err
	}
	sess, err := s.conversation(req)
	if err != nil {
		return nil, err
	}
	v, err := sess.RemoveFromCart(ctx, args.ProductID)
	if err != nil {
		return nil, err
	}
	return cartPayload(v)
}

func (s *Server) handleViewCart(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	sess, err := s.conversation(req)
	if err != nil {
		return nil, err
	}
	return cartPayload(sess.ViewCart(ctx))
}

type checkoutResult struct {
	UI ui `json:"_ui"`
	agent.CheckoutResult
}

func (s *Server) handleCheckout(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	sess, err := s.conversation(req)
	if err != nil {
		return nil, err
	}
	res, err := sess.Checkout(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResult(checkoutResult{UI: ui{Type: "checkout"}, CheckoutResult: res})
}

type confirmResult struct {
	UI      ui   `json:"_ui"`
	Success bool `json:"success"`
	agent.OrderResult
	Message string `json:"message"`
}

func (s *Server) handleConfirm(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args struct {
		UTR string `json:"utr"`
	}
	if err := decodeArgs("confirm_payment", req, &args); err != nil {
		return nil, err
	}
	sess, err := s.conversation(req)
	if err != nil {
		return nil, err
	}
	res, err := sess.Confirm(ctx, args.UTR)
	if err != nil {
		return nil, err
	}
	return jsonResult(confirmResult{
		UI:          ui{Type: "order-confirmation"},
		Success:     true,
		OrderResult: res,
		Message:     "Thank you for your payment.",
	})
}
