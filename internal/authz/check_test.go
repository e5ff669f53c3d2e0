package authz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	allow bool
	err   error
	got   TupleKey
}

func (f *fakeClient) Check(_ context.Context, user, object, relation string) (bool, error) {
	f.got = TupleKey{User: user, Relation: relation, Object: object}
	return f.allow, f.err
}

func TestPrincipalFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, Anonymous, PrincipalFromRequest(r))

	r.Header.Set("X-User", "bob")
	assert.Equal(t, "user:bob", PrincipalFromRequest(r))

	r.Header.Set("X-Principal", "user:alice")
	assert.Equal(t, "user:alice", PrincipalFromRequest(r))

	r.AddCookie(&http.Cookie{Name: "act_as", Value: "user:carol"})
	assert.Equal(t, "user:carol", PrincipalFromRequest(r))
}

func TestCan(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Principal", "user:alice")

	c := &fakeClient{allow: true}
	allowed, err := Can(context.Background(), c, nil, r, ConversationObject("c1"), RelationPay)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, TupleKey{User: "user:alice", Relation: "can_pay", Object: "conversation:c1"}, c.got)

	c = &fakeClient{err: errors.New("down")}
	allowed, err = Can(context.Background(), c, nil, r, ConversationObject("c1"), RelationPay)
	assert.Error(t, err)
	assert.False(t, allowed)
}

func TestRequire(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	objRel := func(r *http.Request) (string, string) {
		if id := r.URL.Query().Get("c"); id != "" {
			return ConversationObject(id), RelationShop
		}
		return "", ""
	}

	cases := []struct {
		name   string
		client Client
		target string
		want   int
	}{
		{"allowed", &fakeClient{allow: true}, "/?c=1", http.StatusNoContent},
		{"denied", &fakeClient{allow: false}, "/?c=1", http.StatusForbidden},
		{"error", &fakeClient{err: errors.New("x")}, "/?c=1", http.StatusForbidden},
		{"skipped", &fakeClient{allow: false}, "/", http.StatusNoContent},
		{"noop", NoopClient{}, "/?c=1", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Require(tc.client, nil, objRel)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tc.target, nil))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestOpenFGAClient(t *testing.T) {
	var writes []TupleKey
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stores/s1/write":
			var body struct {
				Writes struct {
					TupleKeys []TupleKey `json:"tuple_keys"`
				} `json:"writes"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			writes = append(writes, body.Writes.TupleKeys...)
			_, _ = w.Write([]byte(`{}`))
		case "/stores/s1/check":
			var body struct {
				TupleKey TupleKey `json:"tuple_key"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			allowed := false
			for _, tk := range writes {
				if tk.User == body.TupleKey.User && tk.Object == body.TupleKey.Object {
					allowed = true
				}
			}
			_ = json.NewEncoder(w).Encode(map[string]bool{"allowed": allowed})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewOpenFGA(srv.URL+"/", "s1")
	ctx := context.Background()
	require.NoError(t, c.Write(ctx, TupleKey{User: "user:alice", Relation: RelationOwner, Object: ConversationObject("c1")}))

	ok, err := c.Check(ctx, "user:alice", ConversationObject("c1"), RelationPay)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Check(ctx, "user:bob", ConversationObject("c1"), RelationPay)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok = New("", "s1").(NoopClient)
	assert.True(t, ok)
}
