package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/config"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/identity"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/merchant"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp/ucptest"
)

func TestPreconfiguredMerchantIsDiscoveredLazily(t *testing.T) {
	m := ucptest.Seeded()
	t.Setenv("MERCHANT_URL", m.Start(t))
	t.Setenv("UCP_REQUEST_SIGNATURE", "sig-1")
	cfg, err := config.Load()
	require.NoError(t, err)

	reg := NewRegistry(cfg, NewTransport(cfg, nil, nil), nil, nil)
	sess, err := reg.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, merchant.StateConfigured, sess.MerchantState())
	assert.Empty(t, m.Gets())

	ctx := context.Background()
	products, err := sess.Search(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, merchant.StateConnected, sess.MerchantState())

	_, err = sess.AddToCart(ctx, "P1", 2)
	require.NoError(t, err)
	_, err = sess.Checkout(ctx)
	require.NoError(t, err)

	create := m.LastPost()
	assert.Equal(t, "sig-1", create.Header.Get(identity.HeaderSignature))
	assert.Contains(t, create.Header.Get(identity.HeaderAgent), cfg.Agent.Profile)
}
