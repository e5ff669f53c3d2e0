package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

func TestRegistryIsolatesConversations(t *testing.T) {
	m := seededMerchant()
	base := m.Start(t)
	r := NewRegistry(demoConfig(), Deps{Transport: ucp.NewClient(ucp.Options{})}, 0)
	ctx := context.Background()

	a, err := r.Get("alice")
	require.NoError(t, err)
	b, err := r.Get("bob")
	require.NoError(t, err)
	again, err := r.Get(" alice ")
	require.NoError(t, err)
	assert.Same(t, a, again)

	_, err = a.Connect(ctx, base)
	require.NoError(t, err)
	_, err = a.AddToCart(ctx, "P1", 1)
	require.NoError(t, err)

	assert.Len(t, a.ViewCart(ctx).Items, 1)
	assert.True(t, b.ViewCart(ctx).Empty())
	_, err = b.Search(ctx, "", "")
	assert.Equal(t, ucp.KindNotConnected, ucp.KindOf(err))
	assert.Equal(t, []string{"alice", "bob"}, r.IDs())
}

func TestRegistryRejectsBlankID(t *testing.T) {
	r := NewRegistry(Config{}, Deps{}, 0)
	_, err := r.Get("  ")
	assert.Equal(t, ucp.KindValidation, ucp.KindOf(err))
}

func TestRegistryDropsIdleSessions(t *testing.T) {
	now := time.Date(2026, 1, 11, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	r := NewRegistry(Config{}, Deps{Now: clock}, time.Hour)

	first, err := r.Get("c1")
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	same, err := r.Get("c1")
	require.NoError(t, err)
	assert.Same(t, first, same)

	now = now.Add(2 * time.Hour)
	_, err = r.Get("c2")
	require.NoError(t, err)
	_, ok := r.Lookup("c1")
	assert.False(t, ok)

	r.Drop("c2")
	assert.Empty(t, r.IDs())
}
