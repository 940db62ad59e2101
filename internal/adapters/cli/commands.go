package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"invoice-engine/internal/db"
	"invoice-engine/internal/gateway"
)

func newMigrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			pool, err := db.NewPool(cmd.Context(), cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			defer pool.Close()

			applied, err := db.Migrate(cmd.Context(), pool)
			if err != nil {
				return err
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			return nil
		},
	}
}

func newSweepCmd(load configLoader) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Cancel payment attempts left open longer than the attempt TTL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Payments.AttemptTTL
			}
			e, err := newEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := e.svc.SweepStaleAttempts(cmd.Context(), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled %d stale payment attempt(s)\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "override PAYMENT_ATTEMPT_TTL")
	return cmd
}

func newShowCmd(load configLoader) *cobra.Command {
	var withPayments bool

	cmd := &cobra.Command{
		Use:   "show <invoice-id>",
		Short: "Print an invoice snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInvoiceID(args[0])
			if err != nil {
				return err
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			e, err := newEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := e.svc.GetInvoice(cmd.Context(), 0, id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderInvoice(res.Invoice))

			if withPayments {
				payments, err := e.svc.ListPayments(cmd.Context(), 0, id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderAttempts(payments.Attempts))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withPayments, "payments", false, "also list payment attempts")
	return cmd
}

func newSendCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "send <invoice-id>",
		Short: "Move a draft invoice to sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInvoiceID(args[0])
			if err != nil {
				return err
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			e, err := newEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := e.svc.SendInvoice(cmd.Context(), 0, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", res.Invoice.InvoiceNumber, res.Invoice.Status)
			return nil
		},
	}
}

// signer is implemented by every gateway adapter through its HMAC verifier.
type signer interface {
	Sign(orderID, paymentID string) string
}

func newSignCmd(load configLoader) *cobra.Command {
	var orderID, paymentID string

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the callback signature for an order and payment id",
		Long:  "Computes the signature the gateway would attach to a callback. Useful for replaying test-mode payments by hand.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			gw, err := gateway.New(cfg.Gateway.Mode, cfg.Gateway.BaseURL, cfg.Gateway.KeyID, cfg.Gateway.KeySecret)
			if err != nil {
				return err
			}
			s, ok := gw.(signer)
			if !ok {
				return fmt.Errorf("gateway %s cannot sign callbacks", gw.Name())
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.Sign(orderID, paymentID))
			return nil
		},
	}
	cmd.Flags().StringVar(&orderID, "order", "", "gateway order id")
	cmd.Flags().StringVar(&paymentID, "payment", "", "gateway payment id")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("payment")
	return cmd
}

func parseInvoiceID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid invoice id %q", s)
	}
	return id, nil
}
