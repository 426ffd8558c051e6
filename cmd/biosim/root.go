package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/biosim-client/internal/adapter/biosim"
	httpadapter "github.com/couchcryptid/biosim-client/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/biosim-client/internal/adapter/kafka"
	"github.com/couchcryptid/biosim-client/internal/climate"
	"github.com/couchcryptid/biosim-client/internal/config"
	"github.com/couchcryptid/biosim-client/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

// environment is what the commands take from the process.
type environment struct {
	stdin      io.Reader
	stdout     io.Writer
	newMetrics func() *observability.Metrics
}

type rootFlags struct {
	noHTTP bool
}

func newRootCmd(env environment) *cobra.Command {
	var flags rootFlags
	root := &cobra.Command{
		Use:   "biosim",
		Short: "Client for the BioSim climate simulation server",
		Long: `biosim retrieves climate normals and runs climate-dependent models on a BioSim
server. Generated climate is reused across the locations of a run, large requests are
split into batches the server accepts, and every handle left on the server is released
before exit.

Configuration comes from the environment (BIOSIM_BASE_URL, BIOSIM_TIMEOUT, LOG_LEVEL,
KAFKA_BROKERS, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&flags.noHTTP, "no-http", false, "do not serve health and metrics endpoints while running")

	root.AddCommand(
		newNormalsCmd(env, &flags),
		newModelCmd(env, &flags),
		newModelsCmd(env, &flags),
		newLoadCmd(env, &flags),
	)
	return root
}

// app is the wiring shared by every command.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	svc     *climate.Service
	sink    sink
	srv     *httpadapter.Server
	stop    context.CancelFunc
}

// start loads configuration and wires the service. The returned context is cancelled on
// SIGINT or SIGTERM.
func start(cmd *cobra.Command, env environment, flags *rootFlags) (context.Context, *app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger := observability.NewLogger(cfg)
	metrics := env.newMetrics()
	clock := clockwork.NewRealClock()

	client := biosim.NewClient(cfg.BaseURL, cfg.Timeout, clock, metrics, logger)
	svc := climate.New(client, climate.OptionsFromConfig(cfg), logger, metrics)

	a := &app{cfg: cfg, logger: logger, metrics: metrics, svc: svc}
	if len(cfg.KafkaBrokers) > 0 {
		a.sink = kafkaadapter.NewWriter(cfg, clock, metrics, logger)
		logger.Info("publishing results to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	} else {
		a.sink = newJSONSink(env.stdout)
	}

	if !flags.noHTTP {
		a.srv = httpadapter.NewServer(cfg.HTTPAddr, svc, logger)
		go func() {
			if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	a.stop = stop
	metrics.Running.Set(1)
	return ctx, a, nil
}

// close releases cached handles and shuts everything down within the shutdown timeout.
func (a *app) close() {
	defer a.stop()
	a.metrics.Running.Set(0)

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.svc.Close(ctx); err != nil {
		a.logger.Error("handle release error", "error", err)
	}
	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil {
			a.logger.Error("http server shutdown error", "error", err)
		}
	}
	if err := a.sink.Close(); err != nil {
		a.logger.Error("sink close error", "error", err)
	}
	a.logger.Info("shutdown complete")
}

// run wires the app, calls fn and tears everything down.
func run(cmd *cobra.Command, env environment, flags *rootFlags, fn func(ctx context.Context, a *app) error) error {
	ctx, a, err := start(cmd, env, flags)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}
