// Package cli implements the invoicectl command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"invoice-engine/internal/app"
	"invoice-engine/internal/config"
	"invoice-engine/internal/core"
	"invoice-engine/internal/db"
	"invoice-engine/internal/gateway"
	"invoice-engine/internal/logger"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "invoicectl",
		Short:         "Invoice totals and payment reconciliation engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default $INVOICE_ENGINE_CONFIG)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		if err := logger.Setup(cfg.LoggerConfig()); err != nil {
			return nil, fmt.Errorf("logger setup: %w", err)
		}
		return cfg, nil
	}

	cmd.AddCommand(newServeCmd(load))
	cmd.AddCommand(newMigrateCmd(load))
	cmd.AddCommand(newSweepCmd(load))
	cmd.AddCommand(newShowCmd(load))
	cmd.AddCommand(newSendCmd(load))
	cmd.AddCommand(newSignCmd(load))
	cmd.AddCommand(newTotalsCmd())
	return cmd
}

// configLoader loads and applies configuration on first use, so commands that
// need no database (totals) run without any setup.
type configLoader func() (*config.Config, error)

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

func Execute() error {
	return newRootCmd().Execute()
}

// engine is the fully wired service graph shared by serve and the one-shot commands.
type engine struct {
	pool     *pgxpool.Pool
	gateway  gateway.Gateway
	events   *core.EventBus
	invoices core.InvoiceService
	payments core.PaymentService
	svc      app.ApplicationService
}

func newEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	gw, err := gateway.New(cfg.Gateway.Mode, cfg.Gateway.BaseURL, cfg.Gateway.KeyID, cfg.Gateway.KeySecret)
	if err != nil {
		return nil, err
	}

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	events := core.NewEventBus()
	invoices := core.NewInvoiceService(pool, core.InvoiceOptions{
		NumberPrefix:    cfg.Invoice.NumberPrefix,
		DefaultDueDays:  cfg.Invoice.DefaultDueDays,
		DefaultCurrency: cfg.Invoice.DefaultCurrency,
	})
	payments := core.NewPaymentService(pool, gw, events, core.PaymentOptions{
		GatewayTimeout: cfg.Gateway.Timeout,
	})

	return &engine{
		pool:     pool,
		gateway:  gw,
		events:   events,
		invoices: invoices,
		payments: payments,
		svc:      app.NewAppService(invoices, payments),
	}, nil
}

func (e *engine) Close() {
	e.pool.Close()
}
