package main

import (
	"bytes"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp/ucptest"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := newApp()
	a.Writer = &out
	a.ErrWriter = &errOut
	err := a.Run(append([]string{"shopper"}, args...))
	return out.String(), err
}

func TestIntentCommand(t *testing.T) {
	qr := filepath.Join(t.TempDir(), "pay.png")
	out, err := run(t, "intent", "--vpa", "shop@upi", "--name", "Artisan Shop", "--amount", "150000", "--order", "cs_9", "--qr-out", qr)
	require.NoError(t, err)
	assert.Equal(t, "upi://pay?pa=shop@upi&pn=Artisan%20Shop&am=1500.00&cu=INR&tn=Order_cs_9", strings.TrimSpace(out))

	f, err := os.Open(qr)
	require.NoError(t, err)
	defer f.Close()
	_, err = png.Decode(f)
	assert.NoError(t, err)
}

func TestIntentRequiresAmount(t *testing.T) {
	_, err := run(t, "intent")
	assert.Error(t, err)
}

func TestDiscoverAndSearch(t *testing.T) {
	m := ucptest.Seeded()
	base := m.Start(t)
	t.Setenv("MERCHANT_URL", "")

	out, err := run(t, "discover", base)
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "Artisan Shop", info["name"])

	out, err = run(t, "--merchant", base, "search", "-q", "print")
	require.NoError(t, err)
	var res struct {
		Products []struct {
			ID string `json:"id"`
		} `json:"products"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Products, 1)
	assert.Equal(t, "P2", res.Products[0].ID)
}

func TestSearchWithoutMerchant(t *testing.T) {
	t.Setenv("MERCHANT_URL", "")
	_, err := run(t, "search")
	assert.Error(t, err)
}
