// Package merchant holds the connected merchant's base URL and the
// capability profile discovered from its /.well-known/ucp document.
package merchant

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

const discoveryPath = "/.well-known/ucp"

// State is the cache's connection state.
type State int

const (
	// StateDisconnected: no base URL known.
	StateDisconnected State = iota
	// StateConfigured: a base URL is known but no profile has been fetched.
	StateConfigured
	// StateConnected: base URL and profile are both present.
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConfigured:
		return "configured"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Fetcher performs a read call against the merchant. *ucp.Client satisfies it.
type Fetcher interface {
	GetJSON(ctx context.Context, op, rawURL string, query url.Values, out any) error
}

type Cache struct {
	mu      sync.RWMutex
	fetcher Fetcher
	baseURL string
	profile *Profile
	strict  bool
	now     func() time.Time
	logger  *zap.Logger
}

type Option func(*Cache)

// WithStrictDiscovery makes RequireBaseURL demand a fetched profile too.
func WithStrictDiscovery(strict bool) Option {
	return func(c *Cache) { c.strict = strict }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l.Named("merchant")
		}
	}
}

// NewCache returns a cache that is StateConfigured when preconfiguredURL is
// non-empty and StateDisconnected otherwise.
func NewCache(fetcher Fetcher, preconfiguredURL string, opts ...Option) *Cache {
	c := &Cache{
		fetcher: fetcher,
		baseURL: normalize(preconfiguredURL),
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect discovers the merchant at rawURL. On success the profile and base
// URL are replaced together; on failure the prior state is kept.
func (c *Cache) Connect(ctx context.Context, rawURL string) (*Profile, error) {
	const op = "discover_merchant"
	base := normalize(rawURL)
	if err := validateBaseURL(base); err != nil {
		return nil, ucp.Validation(op, "invalid merchant url %q: %v", rawURL, err)
	}

	profile, err := c.fetch(ctx, op, base)
	if err != nil {
		c.logger.Warn("merchant discovery failed", zap.String("base_url", base), zap.Error(err))
		return nil, err
	}

	c.mu.Lock()
	c.baseURL = base
	c.profile = profile
	c.mu.Unlock()

	c.logger.Info("merchant connected",
		zap.String("base_url", base),
		zap.String("name", profile.DisplayName()),
		zap.Strings("handlers", profile.HandlerIDs()))
	return profile, nil
}

// Ensure fetches the profile when a base URL is configured but no profile is
// cached. Failures are logged and leave the cache StateConfigured.
func (c *Cache) Ensure(ctx context.Context) State {
	c.mu.RLock()
	base, have := c.baseURL, c.profile != nil
	c.mu.RUnlock()
	if base == "" {
		return StateDisconnected
	}
	if have {
		return StateConnected
	}

	profile, err := c.fetch(ctx, "auto_discover", base)
	if err != nil {
		c.logger.Warn("lazy discovery failed; continuing without profile",
			zap.String("base_url", base), zap.Error(err))
		return StateConfigured
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A concurrent Connect to another merchant wins.
	if c.baseURL == base && c.profile == nil {
		c.profile = profile
	}
	return c.stateLocked()
}

func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateLocked()
}

func (c *Cache) stateLocked() State {
	switch {
	case c.baseURL == "":
		return StateDisconnected
	case c.profile == nil:
		return StateConfigured
	default:
		return StateConnected
	}
}

func (c *Cache) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// Profile returns the cached profile, or nil.
func (c *Cache) Profile() *Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profile
}

// RequireBaseURL returns the base URL or a NotConnected error for op. It
// performs no network call.
func (c *Cache) RequireBaseURL(op string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.baseURL == "" {
		return "", ucp.NotConnected(op)
	}
	if c.strict && c.profile == nil {
		return "", &ucp.Error{Kind: ucp.KindNotConnected, Op: op,
			Msg: "merchant profile not discovered (strict discovery)", Err: ucp.ErrNotConnected}
	}
	return c.baseURL, nil
}

func (c *Cache) fetch(ctx context.Context, op, base string) (*Profile, error) {
	var doc ucp.Discovery
	if err := c.fetcher.GetJSON(ctx, op, base+discoveryPath, nil, &doc); err != nil {
		return nil, err
	}
	return newProfile(base, doc, c.now()), nil
}

func normalize(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

func validateBaseURL(base string) error {
	if base == "" {
		return errEmptyURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errScheme
	}
	if u.Host == "" {
		return errNoHost
	}
	return nil
}
