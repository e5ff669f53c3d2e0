package ucp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveCall(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, op+":"+outcome)
}

type countingDecorator struct{ calls int }

func (d *countingDecorator) Decorate(req *http.Request, _ []byte) error {
	d.calls++
	req.Header.Set("X-Decorated", "yes")
	return nil
}

func TestGetJSONDecodesAndEncodesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products", r.URL.Path)
		assert.Equal(t, "silk saree", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"products":[{"id":"P1","title":"Saree","price":50000}]}`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c := NewClient(Options{Observer: obs})
	var out ProductList
	err := c.GetJSON(context.Background(), "search", srv.URL+"/products", map[string][]string{"q": {"silk saree"}}, &out)

	require.NoError(t, err)
	require.Len(t, out.Products, 1)
	assert.Equal(t, int64(50000), out.Products[0].Price)
	assert.Equal(t, []string{"search:ok"}, obs.outcomes)
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   Kind
	}{
		{"not found", http.StatusNotFound, `{"detail":"missing"}`, KindNotFound},
		{"server error", http.StatusInternalServerError, `boom`, KindTransport},
		{"bad gateway", http.StatusBadGateway, ``, KindTransport},
		{"malformed json", http.StatusOK, `{not json`, KindProtocol},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(Options{})
			var out map[string]any
			err := c.GetJSON(context.Background(), "get_product", srv.URL, nil, &out)

			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
			assert.True(t, errors.Is(err, &Error{Kind: tc.kind}))
		})
	}
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"products":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Options{ReadRetries: 2})
	var out ProductList
	require.NoError(t, c.GetJSON(context.Background(), "search", srv.URL, nil, &out))
	assert.Equal(t, 2, calls)
}

func TestPostJSONIsDecoratedAndNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "yes", r.Header.Get("X-Decorated"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	dec := &countingDecorator{}
	c := NewClient(Options{Decorator: dec, ReadRetries: 3})
	err := c.PostJSON(context.Background(), "create_checkout", srv.URL, map[string]string{"a": "b"}, nil)

	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
	var ue *Error
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusServiceUnavailable, ue.Status)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, dec.calls)
}

func TestGetJSONIsNotDecorated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-Decorated"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	dec := &countingDecorator{}
	c := NewClient(Options{Decorator: dec})
	require.NoError(t, c.GetJSON(context.Background(), "discover", srv.URL, nil, &Discovery{}))
	assert.Zero(t, dec.calls)
}

func TestTimeoutIsTransport(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	obs := &recordingObserver{}
	c := NewClient(Options{WriteTimeout: 50 * time.Millisecond, Observer: obs})
	err := c.PostJSON(context.Background(), "complete_checkout", srv.URL, struct{}{}, nil)

	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, []string{"complete_checkout:timeout"}, obs.outcomes)
}

func TestUnreachableMerchant(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Options{})
	err := c.GetJSON(context.Background(), "discover", url, nil, &Discovery{})
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestPostNotFoundIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	obs := &recordingObserver{}
	c := NewClient(Options{Observer: obs})
	err := c.PostJSON(context.Background(), "complete_checkout", srv.URL+"/checkout-sessions/cs_old/complete", struct{}{}, nil)

	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, []string{"complete_checkout:http_error"}, obs.outcomes)
}
