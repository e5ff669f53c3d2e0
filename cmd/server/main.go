package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/agent"
	internalapi "github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/api"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/app"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/authz"
	appconfig "github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/config"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/events"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/metrics"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/secrets"
	postgres "github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/storage/postgres"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/telemetry"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

func setupTelemetry(lc fx.Lifecycle, cfg appconfig.Config, logger *zap.Logger) {
	if !cfg.Telemetry.Enabled {
		logger.Info("tracing disabled")
		return
	}
	var shutdown func(context.Context) error
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			shutdown, err = telemetry.InitTracer(ctx, cfg.ServiceName, cfg.Telemetry.Version, cfg.Telemetry.Endpoint)
			if err != nil {
				return err
			}
			logger.Info("OpenTelemetry initialized", zap.String("service", cfg.ServiceName))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if shutdown == nil {
				return nil
			}
			if err := shutdown(ctx); err != nil {
				logger.Warn("error shutting down tracer provider", zap.Error(err))
			}
			return nil
		},
	})
}

// newSQLDB returns nil when no receipts database is configured or it is
// unreachable; receipts are then not recorded.
func newSQLDB(lc fx.Lifecycle, cfg appconfig.Config, logger *zap.Logger) *sql.DB {
	if !cfg.DatabaseEnabled() {
		logger.Info("ORDER_DB_HOST not set; receipts ledger disabled")
		return nil
	}
	logger.Info("connecting to PostgreSQL",
		zap.String("database", cfg.Database.Database),
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port))
	db, err := postgres.Open(context.Background(), cfg.Database)
	if err != nil {
		logger.Warn("failed to connect to database; receipts ledger disabled", zap.Error(err))
		return nil
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return db.Close() },
	})
	return db
}

func newRepository(db *sql.DB, logger *zap.Logger) *postgres.Repository {
	if db == nil {
		return nil
	}
	return postgres.NewRepository(db, logger)
}

// newKafkaProducer constructs a shared Kafka producer and binds its lifecycle to Fx.
func newKafkaProducer(cfg appconfig.Config, lc fx.Lifecycle, logger *zap.Logger) *events.Producer {
	if !cfg.Kafka.Enabled() {
		logger.Info("KAFKA_BROKERS not set; order events disabled")
		return nil
	}
	prod := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic, logger)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return prod.Close() },
	})
	return prod
}

func newMetrics() *metrics.Metrics { return metrics.New(nil) }

func newTransport(cfg appconfig.Config, m *metrics.Metrics, logger *zap.Logger) *ucp.Client {
	return app.NewTransport(cfg, m, logger)
}

func newRegistry(cfg appconfig.Config, transport *ucp.Client, m *metrics.Metrics, prod *events.Producer, repo *postgres.Repository, logger *zap.Logger) *agent.Registry {
	hooks := []agent.Hooks{m}
	if prod != nil {
		hooks = append(hooks, prod)
	}
	if repo != nil {
		hooks = append(hooks, repo)
	}
	return app.NewRegistry(cfg, transport, hooks, logger)
}

func newAuthz(cfg appconfig.Config, logger *zap.Logger) (authz.Client, internalapi.TupleWriter) {
	if cfg.OpenFGA.APIURL == "" || cfg.OpenFGA.StoreID == "" {
		logger.Info("OpenFGA not configured; conversations are open to every caller")
		return authz.NoopClient{}, nil
	}
	c := authz.NewOpenFGA(cfg.OpenFGA.APIURL, cfg.OpenFGA.StoreID)
	return c, c
}

func newWebServer(cfg appconfig.Config, reg *agent.Registry, m *metrics.Metrics, repo *postgres.Repository, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	checker, owners := newAuthz(cfg, logger)
	deps := internalapi.Deps{
		Registry: reg,
		Authz:    checker,
		Owners:   owners,
		Observer: m,
		Logger:   logger,
	}
	if repo != nil {
		deps.Receipts = repo
	}
	internalapi.RegisterRoutes(mux, deps)
	mux.Handle("/metrics", m.Handler())

	return &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           internalapi.WithCORS(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func registerWebServer(lc fx.Lifecycle, cfg appconfig.Config, logger *zap.Logger, shutdowner fx.Shutdowner, httpServer *http.Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				logger.Info("HTTP API listening",
					zap.String("addr", cfg.HTTP.Addr),
					zap.String("merchant_url", cfg.Merchant.URL))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("HTTP server error", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	})
}

func main() {
	_ = godotenv.Load()
	bootstrapped, bootErr := secrets.BootstrapFromOpenBao(context.Background())

	fxApp := fx.New(
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Provide(
			appconfig.Load,
			app.NewLogger,
			newMetrics,
			newTransport,
			newSQLDB,
			newRepository,
			newKafkaProducer,
			newRegistry,
			newWebServer,
		),
		fx.Invoke(
			func(logger *zap.Logger, cfg appconfig.Config) {
				if bootErr != nil {
					logger.Warn("OpenBao bootstrap failed; using environment only", zap.Error(bootErr))
				} else if bootstrapped > 0 {
					logger.Info("secrets loaded from OpenBao", zap.Int("keys", bootstrapped))
				}
				logger.Info("starting", zap.String("service", cfg.ServiceName))
			},
			setupTelemetry,
			registerWebServer,
		),
	)

	fxApp.Run()
}
