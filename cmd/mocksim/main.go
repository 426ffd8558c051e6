// Command mocksim serves an in-process BioSim simulator for local development and
// integration tests.
//
// Usage:
//
//	go run ./cmd/mocksim -addr :8090 -max-memory 20000
//	BIOSIM_BASE_URL=http://localhost:8090 biosim models
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/couchcryptid/biosim-client/internal/simulator"
)

func main() {
	if err := run(); err != nil {
		slog.Error("mocksim failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", ":8090", "listen address")
	maxMemory := flag.Int("max-memory", 20000, "reported server capacity in climate objects")
	models := flag.String("models", strings.Join(simulator.DefaultModels, ","), "comma-separated model list")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sim := simulator.New(logger,
		simulator.WithMaxMemory(*maxMemory),
		simulator.WithModels(strings.Split(*models, ",")...),
	)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           sim,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("simulator listening", "addr", *addr, "max_memory", *maxMemory)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("simulator stopped", "live_handles", sim.Live())
	return nil
}
