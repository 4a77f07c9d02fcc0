// =============================================================================
// sepacetamol - Serve Command
// =============================================================================
//
// This file defines the 'serve' command, which exposes the converters over
// HTTP (see internal/server for the routes).
//
// COMMAND USAGE:
//   sepacetamol serve [--addr :8080]
//
// The server stops gracefully on SIGINT or SIGTERM: it stops accepting
// connections and waits up to 15 seconds for running conversions.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/sepacetamol/internal/observability"
	"github.com/ginjaninja78/sepacetamol/internal/server"
)

// shutdownTimeout bounds the graceful shutdown.
const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `The serve command starts the HTTP API:

  POST /sepa/preview     payment workbook -> JSON preview with grand total
  POST /sepa/generate    confirmed payment list -> pain.001 XML
  POST /datev/personio   Personio export -> DATEV EXTF CSV
  GET  /healthz          liveness
  GET  /metrics          Prometheus metrics`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: server.addr)")
	bindFlags(v, serveCmd.Flags(), map[string]string{"server.addr": "addr"})
}

// runServe serves until ctx is done, then shuts the server down.
func runServe(ctx context.Context) error {
	metrics := observability.NewMetrics()
	router := server.NewRouter(mainConfig, metrics, logger)
	srv := server.NewServer(mainConfig.Server, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}
