// Package api serves the shopping agent over HTTP. Every conversation gets
// its own cart and checkout under /api/conversations/{id}/.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/agent"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/authz"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

// RequestObserver records per-route request outcomes. *metrics.Metrics
// satisfies it.
type RequestObserver interface {
	ObserveRequest(handler string, status int, start time.Time)
}

// TupleWriter records conversation ownership. *authz.OpenFGAClient
// satisfies it.
type TupleWriter interface {
	Write(ctx context.Context, tuples ...authz.TupleKey) error
}

type Deps struct {
	Registry *agent.Registry
	Receipts ReceiptStore
	Authz    authz.Client
	Owners   TupleWriter
	Observer RequestObserver
	Logger   *zap.Logger
}

type server struct {
	Deps
	logger *zap.Logger
}

// RegisterRoutes wires the conversation and receipt endpoints into mux.
func RegisterRoutes(mux *http.ServeMux, deps Deps) {
	if deps.Authz == nil {
		deps.Authz = authz.NoopClient{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	s := &server{Deps: deps, logger: deps.Logger.Named("api")}

	mux.Handle("/api/conversations", s.route("conversations-create", http.HandlerFunc(s.handleCreateConversation)))
	guarded := authz.Require(s.Authz, s.logger, conversationTarget)(http.HandlerFunc(s.handleConversation))
	mux.Handle("/api/conversations/", s.route("conversations", guarded))
	mux.Handle("/api/receipts/", s.route("receipts", http.HandlerFunc(s.handleReceipt)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (s *server) route(name string, h http.Handler) http.Handler {
	observed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		if s.Observer != nil {
			s.Observer.ObserveRequest(name, rec.status, start)
		}
	})
	return otelhttp.NewHandler(observed, name)
}

// POST /api/conversations → new conversation owned by the caller
func (s *server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := uuid.NewString()
	owner := authz.PrincipalFromRequest(r)
	if s.Owners != nil {
		err := s.Owners.Write(r.Context(), authz.TupleKey{
			User: owner, Relation: authz.RelationOwner, Object: authz.ConversationObject(id),
		})
		if err != nil {
			s.logger.Warn("failed to record conversation owner", zap.String("conversation_id", id), zap.Error(err))
			http.Error(w, "authorization store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	if _, err := s.Registry.Get(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"conversation_id": id, "owner": owner})
}

// conversationTarget maps a conversation route to the relation it needs:
// can_pay for checkout and confirm, can_shop for everything else.
func conversationTarget(r *http.Request) (string, string) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/conversations/"), "/")
	id, rest, _ := strings.Cut(path, "/")
	if id == "" {
		return "", ""
	}
	resource, _, _ := strings.Cut(rest, "/")
	if resource == "checkout" || resource == "confirm" {
		return authz.ConversationObject(id), authz.RelationPay
	}
	return authz.ConversationObject(id), authz.RelationShop
}

// /api/conversations/{id}/{resource}[/{item}]
func (s *server) handleConversation(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/conversations/"), "/")
	parts := strings.Split(path, "/")
	id := parts[0]
	if id == "" {
		http.Error(w, "conversation id required", http.StatusBadRequest)
		return
	}
	resource := ""
	if len(parts) > 1 {
		resource = parts[1]
	}
	item := ""
	if len(parts) > 2 {
		item = strings.Join(parts[2:], "/")
	}

	if resource == "" {
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.Registry.Drop(id)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	sess, err := s.Registry.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx := r.Context()

	switch resource {
	case "merchant":
		s.handleMerchant(ctx, w, r, sess)
	case "categories":
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		cats, err := sess.ListCategories(ctx)
		respond(w, http.StatusOK, map[string]any{"categories": cats}, err)
	case "products":
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		if item != "" {
			p, err := sess.GetProduct(ctx, item)
			respond(w, http.StatusOK, p, err)
			return
		}
		q := r.URL.Query()
		products, err := sess.Search(ctx, q.Get("q"), q.Get("category"))
		respond(w, http.StatusOK, map[string]any{"products": products}, err)
	case "cart":
		s.handleCart(ctx, w, r, sess, item)
	case "checkout":
		switch r.Method {
		case http.MethodPost:
			res, err := sess.Checkout(ctx)
			respond(w, http.StatusCreated, res, err)
		case http.MethodGet:
			state, sessionID := sess.CheckoutState()
			writeJSON(w, http.StatusOK, map[string]string{"state": state.String(), "checkout_session_id": sessionID})
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	case "confirm":
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		var req struct {
			UTR string `json:"utr"`
		}
		if err := decodeBody(r, "confirm_payment", &req); err != nil {
			writeError(w, err)
			return
		}
		res, err := sess.Confirm(ctx, req.UTR)
		respond(w, http.StatusOK, res, err)
	case "receipts":
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		s.listReceipts(ctx, w, id, limit)
	default:
		http.Error(w, "unknown conversation resource", http.StatusNotFound)
	}
}

func (s *server) handleMerchant(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *agent.Session) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"state": sess.MerchantState().String()})
	case http.MethodPost:
		var req struct {
			URL string `json:"url"`
		}
		if err := decodeBody(r, "discover_merchant", &req); err != nil {
			writeError(w, err)
			return
		}
		info, err := sess.Connect(ctx, req.URL)
		respond(w, http.StatusOK, info, err)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type cartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

func (s *server) handleCart(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *agent.Session, productID string) {
	var req cartRequest
	if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
		if err := decodeBody(r, "cart", &req); err != nil {
			writeError(w, err)
			return
		}
	}
	if productID == "" {
		productID = req.ProductID
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, sess.ViewCart(ctx))
	case http.MethodPost:
		qty := 1
		if req.Quantity != nil {
			qty = *req.Quantity
		}
		v, err := sess.AddToCart(ctx, productID, qty)
		respond(w, http.StatusOK, v, err)
	case http.MethodPut, http.MethodPatch:
		if req.Quantity == nil {
			writeError(w, ucp.Validation("update_cart", "quantity is required"))
			return
		}
		v, err := sess.UpdateCart(ctx, productID, *req.Quantity)
		respond(w, http.StatusOK, v, err)
	case http.MethodDelete:
		v, err := sess.RemoveFromCart(ctx, productID)
		respond(w, http.StatusOK, v, err)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func respond(w http.ResponseWriter, status int, v any, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, v)
}

// WithCORS is a permissive CORS wrapper for local testing.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Principal, X-User")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

var errReceiptsUnavailable = errors.New("receipts store unavailable")
