package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/app"
	appconfig "github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/config"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/email"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/events"
)

func main() {
	_ = godotenv.Load()
	if err := serve(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "receiptworker:", err)
		os.Exit(1)
	}
}

// serve consumes until a signal arrives or a receipt cannot be sent. Deferred
// cleanup always runs; only main exits the process.
func serve(ctx context.Context) error {
	cfg, err := appconfig.Load()
	if err != nil {
		return err
	}
	if !cfg.Kafka.Enabled() {
		return errors.New("KAFKA_BROKERS not set")
	}
	logger, err := app.NewLogger(cfg)
	if err != nil {
		return err
	}
	logger = logger.Named("receipt-worker")
	defer func() { _ = logger.Sync() }()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.OrdersTopic,
		GroupID:  cfg.Kafka.ReceiptGroup,
		MinBytes: 1e3, MaxBytes: 10e6,
	})
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warn("closing reader", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := &worker{sender: pickSender(cfg, logger), to: cfg.Email.DemoRecipient, logger: logger}
	logger.Info("consuming", zap.String("topic", cfg.Kafka.OrdersTopic), zap.String("group", cfg.Kafka.ReceiptGroup))
	if err := w.run(ctx, reader); err != nil {
		logger.Error("consumer stopped", zap.Error(err))
		return err
	}
	logger.Info("consumer stopped")
	return nil
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type worker struct {
	sender email.Sender
	to     string
	logger *zap.Logger
}

// run commits a message once it is handled or known to be unprocessable.
// A failed send leaves the offset uncommitted so the message is redelivered.
func (w *worker) run(ctx context.Context, r messageReader) error {
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}
		// Stop without committing so the group resumes from this message.
		if err := w.handle(msg); err != nil {
			return fmt.Errorf("receipt at offset %d not sent: %w", msg.Offset, err)
		}
		if err := r.CommitMessages(ctx, msg); err != nil {
			w.logger.Warn("commit error", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// handle returns an error only for failures worth retrying.
func (w *worker) handle(msg kafka.Message) error {
	env, err := events.Decode(msg.Value)
	if err != nil {
		w.logger.Warn("bad event; skipping", zap.Error(err), zap.ByteString("payload", msg.Value))
		return nil
	}
	if env.EventType != events.TypeOrderPlaced {
		w.logger.Debug("ignored event", zap.String("event_type", env.EventType), zap.ByteString("key", msg.Key))
		return nil
	}
	order, err := env.OrderPlaced()
	if err != nil {
		w.logger.Warn("bad OrderPlaced payload; skipping", zap.Error(err))
		return nil
	}
	body, err := email.RenderReceipt(order)
	if err != nil {
		w.logger.Error("render receipt", zap.String("order_id", order.OrderID), zap.Error(err))
		return nil
	}
	if err := w.sender.Send(w.to, email.ReceiptSubject(order), body); err != nil {
		return err
	}
	w.logger.Info("receipt sent", zap.String("to", w.to), zap.String("order_id", order.OrderID), zap.Int64("total", order.Total))
	return nil
}

func pickSender(cfg appconfig.Config, logger *zap.Logger) email.Sender {
	// Use SMTP if configured; else fallback to log
	if os.Getenv("SMTP_HOST") != "" || os.Getenv("SMTP_PORT") != "" {
		return email.NewSMTPSender(cfg.Email.SMTP)
	}
	return email.LogSender{Logger: logger}
}
