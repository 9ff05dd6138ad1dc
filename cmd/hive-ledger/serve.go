package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kaizencycle/hive-ledger/pkg/api"
	"github.com/kaizencycle/hive-ledger/pkg/config"
)

// runServe starts the HTTP service and blocks until SIGINT/SIGTERM, then
// drains in-flight requests before exiting.
func runServe(cfg *config.Config, stderr io.Writer) int {
	c, err := setup(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer c.Close()

	server := api.NewServer(cfg, c.store, c.gic, c.builder, c.rewards, c.bonuses, c.archiver, c.signer, c.audit)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("hive-ledger listening", "port", cfg.Port, "data_dir", cfg.DataDir, "demo_mode", cfg.DemoMode)
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: shutdown: %v\n", err)
			return 1
		}
	}
	return 0
}
