package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadersCarryIdentityAndFreshKeys(t *testing.T) {
	l := New("", nil)

	first, err := l.Headers(context.Background(), http.MethodPost, "http://m.test/checkout-sessions", nil)
	require.NoError(t, err)
	second, err := l.Headers(context.Background(), http.MethodPost, "http://m.test/checkout-sessions", nil)
	require.NoError(t, err)

	assert.Equal(t, `profile="https://agent.example/mcp-commerce"`, first.Get(HeaderAgent))
	assert.Equal(t, DemoSignature, first.Get(HeaderSignature))
	assert.Equal(t, "application/json", first.Get(HeaderContentType))
	assert.NotEmpty(t, first.Get(HeaderIdempotencyKey))
	assert.NotEqual(t, first.Get(HeaderIdempotencyKey), first.Get(HeaderRequestID))

	// a retry of the same logical call gets new keys
	assert.NotEqual(t, first.Get(HeaderIdempotencyKey), second.Get(HeaderIdempotencyKey))
	assert.NotEqual(t, first.Get(HeaderRequestID), second.Get(HeaderRequestID))
}

func TestDecorateUsesIDSource(t *testing.T) {
	n := 0
	l := New("https://agent.test/profile", StaticSigner("sig"), WithIDSource(func() string {
		n++
		return "id-" + strconv.Itoa(n)
	}))
	req := httptest.NewRequest(http.MethodPost, "http://m.test/checkout-sessions", nil)

	require.NoError(t, l.Decorate(req, []byte(`{}`)))

	assert.Equal(t, "id-1", req.Header.Get(HeaderIdempotencyKey))
	assert.Equal(t, "id-2", req.Header.Get(HeaderRequestID))
	assert.Equal(t, "sig", req.Header.Get(HeaderSignature))
	assert.Equal(t, `profile="https://agent.test/profile"`, req.Header.Get(HeaderAgent))
}

type failingSigner struct{}

func (failingSigner) Sign(context.Context, string, string, []byte) (string, error) {
	return "", errors.New("no key")
}

func TestDecorateSignerFailure(t *testing.T) {
	l := New("", failingSigner{})
	req := httptest.NewRequest(http.MethodPost, "http://m.test/x", nil)
	err := l.Decorate(req, nil)
	require.Error(t, err)
	assert.Empty(t, req.Header.Get(HeaderIdempotencyKey))
}
