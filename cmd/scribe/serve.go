package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/scribe/pkg/adapters/api"
	"github.com/aretw0/scribe/pkg/adapters/metrics"
	"github.com/aretw0/scribe/pkg/adapters/sqlite"
	"github.com/aretw0/scribe/pkg/core"
)

var (
	serveAddr string
	serveDB   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the notes REST API from a SQLite database",
	Long: `Serve exposes subjects and notes over HTTP under /api/v1, with
/health and Prometheus metrics at /metrics.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		path := cfg.Storage.Path
		if serveDB != "" {
			path = serveDB
		}

		logger := slog.Default()
		repo, err := sqlite.Open(path, sqlite.WithLogger(logger))
		if err != nil {
			fatal("Failed to open database", err)
		}
		defer repo.Close()

		recorder := metrics.New()
		handler := api.NewServer(core.NewService(repo),
			api.WithLogger(logger),
			api.WithMetricsHandler(recorder.Handler()),
		)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := serve(ctx, addr, handler, logger); err != nil {
			fatal("Server failed", err)
		}
	},
}

// serve runs the HTTP server until ctx is cancelled, then drains it.
func serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr)")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "SQLite database path (default: storage.path)")
}
