package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"invoice-engine/internal/adapters/web"
	"invoice-engine/internal/config"
	"invoice-engine/internal/core"
	"invoice-engine/internal/logger"
)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the stale payment janitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return Serve(cmd.Context(), cfg)
		},
	}
}

// Serve runs the HTTP server and the payment janitor until ctx is cancelled or
// the process receives SIGINT/SIGTERM.
func Serve(ctx context.Context, cfg *config.Config) error {
	if cfg.Server.JWTSecret == "" {
		return errors.New("JWT_SECRET is required to serve the API")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	log := logger.WithComponent("server")
	e.events.Subscribe(logEvent)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           web.NewHandler(e.svc, cfg.Server.AllowedOrigins, cfg.Server.JWTSecret),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("gateway", e.gateway.Name()).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return core.RunJanitor(gctx, e.payments, cfg.Payments.JanitorInterval, cfg.Payments.AttemptTTL)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// logEvent is the default subscriber: downstream notifiers hook in the same way.
func logEvent(_ context.Context, ev core.Event) error {
	l := logger.WithComponent("events")
	l.Info().
		Str("event", string(ev.Type)).
		Int("invoice_id", ev.InvoiceID).
		Str("amount", ev.Amount.StringFixed(2)).
		Msg("payment event")
	return nil
}
