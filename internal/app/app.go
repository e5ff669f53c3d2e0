// Package app assembles the shopping agent from configuration. The server
// and the shopper CLI share it.
package app

import (
	"go.uber.org/zap"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/agent"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/config"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/identity"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/logging"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

func NewLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(cfg.ServiceName, cfg.Telemetry.LogLevel, cfg.Telemetry.LogFormat)
}

// NewTransport returns the merchant client with identity headers on every
// checkout call. obs may be nil.
func NewTransport(cfg config.Config, obs ucp.Observer, logger *zap.Logger) *ucp.Client {
	layer := identity.New(cfg.Agent.Profile, identity.StaticSigner(cfg.Agent.Signature))
	opts := ucp.Options{
		ReadTimeout:  cfg.Merchant.ReadTimeout,
		WriteTimeout: cfg.Merchant.CheckoutTimeout,
		ReadRetries:  cfg.Merchant.ReadRetries,
		Decorator:    layer,
		Observer:     obs,
		Logger:       logger,
	}
	return ucp.NewClient(opts)
}

func AgentConfig(cfg config.Config) agent.Config {
	return agent.Config{
		MerchantURL:     cfg.Merchant.URL,
		StrictDiscovery: cfg.Merchant.StrictDiscovery,
		Checkout:        cfg.CheckoutSettings(),
		QRModuleSize:    cfg.Payment.QRModuleSize,
	}
}

func NewRegistry(cfg config.Config, transport agent.Transport, hooks []agent.Hooks, logger *zap.Logger) *agent.Registry {
	return agent.NewRegistry(AgentConfig(cfg), agent.Deps{
		Transport: transport,
		Hooks:     hooks,
		Logger:    logger,
	}, cfg.SessionIdleTTL)
}
