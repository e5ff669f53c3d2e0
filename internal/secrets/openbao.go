package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	bao "github.com/openbao/openbao/api/v2"
)

var ErrOpenBaoSecretNotFound = errors.New("openbao secret path not found")

// Config locates one KV v2 secret.
type Config struct {
	Addr       string
	Token      string
	Mount      string
	SecretPath string
	Namespace  string
	Timeout    time.Duration
}

func (c Config) Enabled() bool {
	return c.Addr != "" && c.Token != "" && c.SecretPath != ""
}

// ConfigFromEnv reads OPENBAO_ADDR, OPENBAO_TOKEN, OPENBAO_SECRET_PATH,
// OPENBAO_MOUNT and OPENBAO_NAMESPACE.
func ConfigFromEnv() Config {
	mount := strings.Trim(strings.TrimSpace(os.Getenv("OPENBAO_MOUNT")), "/")
	if mount == "" {
		mount = "secret"
	}
	return Config{
		Addr:       strings.TrimRight(strings.TrimSpace(os.Getenv("OPENBAO_ADDR")), "/"),
		Token:      os.Getenv("OPENBAO_TOKEN"),
		Mount:      mount,
		SecretPath: strings.Trim(strings.TrimSpace(os.Getenv("OPENBAO_SECRET_PATH")), "/"),
		Namespace:  strings.TrimSpace(os.Getenv("OPENBAO_NAMESPACE")),
		Timeout:    5 * time.Second,
	}
}

// BootstrapFromOpenBao exports the configured secret's keys as environment
// variables, e.g. UCP_REQUEST_SIGNATURE or ORDER_DB_PASSWORD. Without
// OpenBao configuration it is a no-op. It returns the number of keys set.
func BootstrapFromOpenBao(ctx context.Context) (int, error) {
	cfg := ConfigFromEnv()
	if !cfg.Enabled() {
		return 0, nil
	}
	values, err := Read(ctx, cfg)
	if err != nil {
		return 0, err
	}
	for k, v := range values {
		if err := os.Setenv(k, v); err != nil {
			return 0, fmt.Errorf("export %s: %w", k, err)
		}
	}
	return len(values), nil
}

// Read fetches the secret and flattens scalar values to strings. Values of
// other types are skipped.
func Read(ctx context.Context, cfg Config) (map[string]string, error) {
	bc := bao.DefaultConfig()
	bc.Address = cfg.Addr
	if cfg.Timeout > 0 {
		bc.Timeout = cfg.Timeout
	}
	bc.MaxRetries = 0
	client, err := bao.NewClient(bc)
	if err != nil {
		return nil, fmt.Errorf("create OpenBao client: %w", err)
	}
	client.SetToken(cfg.Token)
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	secret, err := client.KVv2(cfg.Mount).Get(ctx, cfg.SecretPath)
	if errors.Is(err, bao.ErrSecretNotFound) {
		return nil, ErrOpenBaoSecretNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read OpenBao secret %s/%s: %w", cfg.Mount, cfg.SecretPath, err)
	}

	out := make(map[string]string, len(secret.Data))
	for k, v := range secret.Data {
		switch val := v.(type) {
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case bool:
			out[k] = strconv.FormatBool(val)
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		}
	}
	return out, nil
}
