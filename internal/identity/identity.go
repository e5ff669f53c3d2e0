// Package identity stamps mutating merchant calls with the agent's identity,
// a request signature, and per-call idempotency and correlation ids.
//
// Keys are minted per HTTP call, not per logical operation. A caller that
// retries a logical create or complete sends a new Idempotency-Key, so the
// merchant cannot tell the retry from a fresh request. Only merchant-side
// deduplication prevents double effects.
package identity

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

const (
	HeaderAgent          = "UCP-Agent"
	HeaderSignature      = "Request-Signature"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderRequestID      = "Request-Id"
	HeaderContentType    = "Content-Type"

	DefaultAgentProfile = "https://agent.example/mcp-commerce"
	// DemoSignature is a placeholder. It proves nothing about the caller.
	DemoSignature = "mcp-demo"
)

// Signer produces the Request-Signature value for one outgoing request.
type Signer interface {
	Sign(ctx context.Context, method, url string, body []byte) (string, error)
}

// StaticSigner returns the same signature for every request.
type StaticSigner string

func (s StaticSigner) Sign(context.Context, string, string, []byte) (string, error) {
	return string(s), nil
}

// Layer implements ucp.Decorator.
type Layer struct {
	agentProfile string
	signer       Signer
	newID        func() string
}

type Option func(*Layer)

// WithIDSource replaces the UUID generator.
func WithIDSource(fn func() string) Option {
	return func(l *Layer) { l.newID = fn }
}

func New(agentProfile string, signer Signer, opts ...Option) *Layer {
	if agentProfile == "" {
		agentProfile = DefaultAgentProfile
	}
	if signer == nil {
		signer = StaticSigner(DemoSignature)
	}
	l := &Layer{agentProfile: agentProfile, signer: signer, newID: uuid.NewString}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Headers computes a fresh header set. Nothing is cached between calls.
func (l *Layer) Headers(ctx context.Context, method, url string, body []byte) (http.Header, error) {
	sig, err := l.signer.Sign(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}
	h := http.Header{}
	h.Set(HeaderAgent, fmt.Sprintf("profile=%q", l.agentProfile))
	h.Set(HeaderSignature, sig)
	h.Set(HeaderIdempotencyKey, l.newID())
	h.Set(HeaderRequestID, l.newID())
	h.Set(HeaderContentType, "application/json")
	return h, nil
}

func (l *Layer) Decorate(req *http.Request, body []byte) error {
	h, err := l.Headers(req.Context(), req.Method, req.URL.String(), body)
	if err != nil {
		return err
	}
	for k, vs := range h {
		req.Header[k] = vs
	}
	return nil
}
