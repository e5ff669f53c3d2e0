package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/app"
	appconfig "github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/config"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/mcp"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/payment"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/secrets"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "shopper",
		Usage:   "UCP shopping agent: MCP server and merchant tools",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "merchant",
				Aliases: []string{"m"},
				Usage:   "Merchant base URL (overrides MERCHANT_URL)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (overrides LOG_LEVEL)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "Serve the shopping tools over MCP stdio",
				Action: mcpCommand,
			},
			{
				Name:      "discover",
				Usage:     "Fetch and print a merchant's UCP profile",
				ArgsUsage: "[merchant-url]",
				Action:    discoverCommand,
			},
			{
				Name:  "search",
				Usage: "Search the merchant catalogue",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}},
					&cli.StringFlag{Name: "category", Aliases: []string{"c"}},
				},
				Action: searchCommand,
			},
			{
				Name:  "intent",
				Usage: "Render a UPI payment link (and optionally its QR PNG) without a merchant",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "vpa", Value: payment.DefaultVPA, Usage: "Payee VPA"},
					&cli.StringFlag{Name: "name", Value: payment.DefaultPayeeName, Usage: "Payee display name"},
					&cli.Int64Flag{Name: "amount", Required: true, Usage: "Amount in paise"},
					&cli.StringFlag{Name: "order", Value: "order", Usage: "Order reference"},
					&cli.StringFlag{Name: "note", Usage: "Transaction note (default Order_<order>)"},
					&cli.StringFlag{Name: "qr-out", Usage: "Write the QR code PNG to this file"},
					&cli.IntFlag{Name: "qr-size", Value: payment.DefaultQRModuleSize, Usage: "Pixels per QR module"},
				},
				Action: intentCommand,
			},
		},
	}
}

// loadConfig applies global flag overrides before reading the environment.
func loadConfig(c *cli.Context) (appconfig.Config, error) {
	if v := c.String("merchant"); v != "" {
		_ = os.Setenv("MERCHANT_URL", v)
	}
	if v := c.String("log-level"); v != "" {
		_ = os.Setenv("LOG_LEVEL", v)
	}
	return appconfig.Load()
}

func mcpCommand(c *cli.Context) error {
	if _, err := secrets.BootstrapFromOpenBao(c.Context); err != nil {
		fmt.Fprintln(os.Stderr, "warning: OpenBao bootstrap failed:", err)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, err := app.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reg := app.NewRegistry(cfg, app.NewTransport(cfg, nil, logger), nil, logger)
	srv := mcp.NewServer(reg, Version, logger)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}

func discoverCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	target := c.Args().First()
	if target == "" {
		target = cfg.Merchant.URL
	}
	reg := app.NewRegistry(cfg, app.NewTransport(cfg, nil, nil), nil, nil)
	sess, err := reg.Get("cli")
	if err != nil {
		return err
	}
	info, err := sess.Connect(c.Context, target)
	if err != nil {
		return err
	}
	return printJSON(c, info)
}

func searchCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Merchant.URL == "" {
		return ucp.NotConnected("search_products")
	}
	reg := app.NewRegistry(cfg, app.NewTransport(cfg, nil, nil), nil, nil)
	sess, err := reg.Get("cli")
	if err != nil {
		return err
	}
	products, err := sess.Search(c.Context, c.String("query"), c.String("category"))
	if err != nil {
		return err
	}
	return printJSON(c, map[string]any{"products": products})
}

func intentCommand(c *cli.Context) error {
	link := payment.Link(c.String("vpa"), c.String("name"), c.Int64("amount"), c.String("order"), c.String("note"))
	fmt.Fprintln(c.App.Writer, link)

	out := c.String("qr-out")
	if out == "" {
		return nil
	}
	b64, err := payment.QRBase64(link, c.Int("qr-size"))
	if err != nil {
		return err
	}
	png, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return fmt.Errorf("decode QR: %w", err)
	}
	if err := os.WriteFile(out, png, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(c.App.ErrWriter, "QR written to %s\n", out)
	return nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
