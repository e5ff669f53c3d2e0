package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/checkout"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/email"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/identity"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/payment"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/shipping"
	postgres "github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/storage/postgres"
)

// Config aggregates runtime configuration grouped by concern.
type Config struct {
	ServiceName    string
	Merchant       MerchantConfig
	Agent          AgentConfig
	Checkout       CheckoutConfig
	Payment        PaymentConfig
	HTTP           HTTPConfig
	Telemetry      TelemetryConfig
	Kafka          KafkaConfig
	Database       postgres.DatabaseConfig
	Email          EmailConfig
	OpenFGA        OpenFGAConfig
	SessionIdleTTL time.Duration
}

type MerchantConfig struct {
	URL             string
	ReadTimeout     time.Duration
	CheckoutTimeout time.Duration
	ReadRetries     int
	StrictDiscovery bool
}

type AgentConfig struct {
	Profile   string
	Signature string
}

type CheckoutConfig struct {
	Currency string
	// AllowDemoFallbacks enables the default UPI handler and the demo
	// payment token when the merchant or caller supplies none.
	AllowDemoFallbacks bool
	Fulfillment        shipping.Standard
}

type PaymentConfig struct {
	QRModuleSize int
}

type HTTPConfig struct {
	Addr string
}

type TelemetryConfig struct {
	Enabled   bool
	Endpoint  string
	Version   string
	LogLevel  string
	LogFormat string
}

type KafkaConfig struct {
	Brokers      []string
	OrdersTopic  string
	ReceiptGroup string
}

func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 && k.OrdersTopic != "" }

type EmailConfig struct {
	SMTP          email.SMTPConfig
	DemoRecipient string
}

type OpenFGAConfig struct {
	APIURL  string
	StoreID string
}

// Load reads configuration from environment variables, applying sensible defaults.
func Load() (Config, error) {
	var errs []string
	intVar := func(key string, fallback int) int {
		v, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
		if err != nil {
			errs = append(errs, fmt.Sprintf("parse %s: %v", key, err))
			return fallback
		}
		return v
	}
	int64Var := func(key string, fallback int64) int64 {
		v, err := strconv.ParseInt(getEnv(key, strconv.FormatInt(fallback, 10)), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("parse %s: %v", key, err))
			return fallback
		}
		return v
	}
	boolVar := func(key string, fallback bool) bool {
		v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
		if err != nil {
			errs = append(errs, fmt.Sprintf("parse %s: %v", key, err))
			return fallback
		}
		return v
	}
	durVar := func(key string, fallback time.Duration) time.Duration {
		v, err := time.ParseDuration(getEnv(key, fallback.String()))
		if err != nil {
			errs = append(errs, fmt.Sprintf("parse %s: %v", key, err))
			return fallback
		}
		return v
	}

	ship := shipping.DefaultStandard()
	cfg := Config{
		ServiceName: getEnv("SERVICE_NAME", "ucp-shopping-agent"),
		Merchant: MerchantConfig{
			URL:             strings.TrimSpace(os.Getenv("MERCHANT_URL")),
			ReadTimeout:     durVar("MERCHANT_READ_TIMEOUT", 10*time.Second),
			CheckoutTimeout: durVar("MERCHANT_CHECKOUT_TIMEOUT", 15*time.Second),
			ReadRetries:     intVar("MERCHANT_READ_RETRIES", 1),
			StrictDiscovery: boolVar("STRICT_DISCOVERY", false),
		},
		Agent: AgentConfig{
			Profile:   getEnv("UCP_AGENT_PROFILE", identity.DefaultAgentProfile),
			Signature: getEnv("UCP_REQUEST_SIGNATURE", identity.DemoSignature),
		},
		Checkout: CheckoutConfig{
			Currency:           getEnv("CHECKOUT_CURRENCY", checkout.DefaultCurrency),
			AllowDemoFallbacks: boolVar("ALLOW_DEMO_FALLBACKS", true),
			Fulfillment: shipping.Standard{
				Destination: shipping.Address{
					ID:       getEnv("FULFILLMENT_DESTINATION_ID", ship.Destination.ID),
					Street:   getEnv("FULFILLMENT_STREET", ship.Destination.Street),
					Locality: getEnv("FULFILLMENT_LOCALITY", ship.Destination.Locality),
					Region:   getEnv("FULFILLMENT_REGION", ship.Destination.Region),
					Postcode: getEnv("FULFILLMENT_POSTCODE", ship.Destination.Postcode),
					Country:  getEnv("FULFILLMENT_COUNTRY", ship.Destination.Country),
				},
				GroupID:     getEnv("FULFILLMENT_GROUP_ID", ship.GroupID),
				OptionID:    getEnv("FULFILLMENT_OPTION_ID", ship.OptionID),
				OptionTitle: getEnv("FULFILLMENT_OPTION_TITLE", ship.OptionTitle),
				Price:       int64Var("FULFILLMENT_PRICE", ship.Price),
			},
		},
		Payment: PaymentConfig{
			QRModuleSize: intVar("UPI_QR_SIZE", payment.DefaultQRModuleSize),
		},
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_LISTEN_ADDR", ":3000"),
		},
		Telemetry: TelemetryConfig{
			Enabled:   boolVar("OTEL_ENABLED", true),
			Endpoint:  getEnv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", ""),
			Version:   getEnv("SERVICE_VERSION", "dev"),
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
		Kafka: KafkaConfig{
			Brokers:      splitAndTrim(getEnv("KAFKA_BROKERS", "")),
			OrdersTopic:  getEnv("KAFKA_ORDERS_TOPIC", "ucp.orders.v1"),
			ReceiptGroup: getEnv("KAFKA_RECEIPT_GROUP_ID", "receipt-workers"),
		},
		Database: postgres.DatabaseConfig{
			Host:     getEnv("ORDER_DB_HOST", ""),
			Port:     intVar("ORDER_DB_PORT", 5432),
			Database: getEnv("ORDER_DB_NAME", "ucpagent"),
			User:     getEnv("ORDER_DB_USER", "ucpagent"),
			Password: getEnv("ORDER_DB_PASSWORD", ""),
			SSLMode:  getEnv("ORDER_DB_SSLMODE", "disable"),
		},
		Email: EmailConfig{
			SMTP: email.SMTPConfig{
				Host:     getEnv("SMTP_HOST", "localhost"),
				Port:     getEnv("SMTP_PORT", "1025"),
				From:     getEnv("SMTP_FROM", "receipts@ucp-agent.local"),
				Username: os.Getenv("SMTP_USERNAME"),
				Password: os.Getenv("SMTP_PASSWORD"),
			},
			DemoRecipient: getEnv("DEMO_TO_EMAIL", "test@example.local"),
		},
		OpenFGA: OpenFGAConfig{
			APIURL:  strings.TrimRight(os.Getenv("OPENFGA_API_URL"), "/"),
			StoreID: os.Getenv("OPENFGA_STORE_ID"),
		},
		SessionIdleTTL: durVar("SESSION_IDLE_TTL", 30*time.Minute),
	}

	if cfg.Merchant.ReadRetries < 0 {
		errs = append(errs, "MERCHANT_READ_RETRIES must be >= 0")
	}
	if cfg.Payment.QRModuleSize < 1 {
		errs = append(errs, "UPI_QR_SIZE must be >= 1")
	}
	if cfg.Checkout.Fulfillment.Price < 0 {
		errs = append(errs, "FULFILLMENT_PRICE must be >= 0")
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// DatabaseEnabled reports whether a receipts database is configured.
func (c Config) DatabaseEnabled() bool { return c.Database.Host != "" }

// CheckoutSettings maps the checkout group onto the checkout client config.
func (c Config) CheckoutSettings() checkout.Config {
	return checkout.Config{
		Build: checkout.BuildOptions{
			Currency:            c.Checkout.Currency,
			Fulfillment:         c.Checkout.Fulfillment,
			AllowDefaultHandler: c.Checkout.AllowDemoFallbacks,
		},
		AllowDemoProof: c.Checkout.AllowDemoFallbacks,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
