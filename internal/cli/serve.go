package cli

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

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/api"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/events"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/monitor"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/pkg/config"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/pkg/kafka"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/pkg/trace"
)

const shutdownTimeout = 10 * time.Second

func newServeRouterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve-router",
		Short: "Start the order router HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRouter(ctx, a.cfg, a.logger)
		},
	}
}

func newServeEngineCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve-engine",
		Short: "Start the strategy engine HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runEngine(ctx, a.cfg, a.logger.With("component", "engine"))
		},
	}
}

func apiOptions(cfg *config.Config, logger *slog.Logger, serviceName string) (api.Options, *events.Bus) {
	registry := monitor.NewRegistry()
	bus := events.NewBus()
	return api.Options{
		ServiceName:    serviceName,
		Logger:         logger,
		Metrics:        monitor.NewMetrics(registry),
		Registry:       registry,
		MetricsPath:    cfg.MetricsPath,
		Bus:            bus,
		Health:         api.NewHealth(false),
		JWTSecret:      cfg.Auth.JWTSecret,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		RateLimit:      cfg.HTTP.RateLimit,
		RateBurst:      cfg.HTTP.RateBurst,
	}, bus
}

func runRouter(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTrace, err := trace.InitTracer(ctx, cfg.ServiceName, cfg.Env, cfg.Trace.Endpoint)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTrace(context.Background()) }()

	opts, bus := apiOptions(cfg, logger, cfg.ServiceName)
	orders, err := buildRouter(cfg, logger, opts.Metrics, bus)
	if err != nil {
		return err
	}
	server := api.NewRouterServer(orders, opts)
	httpSrv := api.NewHTTPServer(fmt.Sprintf(":%d", cfg.HTTP.Port), server.Router)

	g, gctx := errgroup.WithContext(ctx)
	if err := startMirror(gctx, g, cfg, logger, opts.Metrics, bus, events.RouterEvents...); err != nil {
		return err
	}
	return serve(gctx, g, logger, opts.Health, httpSrv)
}

func runEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTrace, err := trace.InitTracer(ctx, cfg.ServiceName+"-engine", cfg.Env, cfg.Trace.Endpoint)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTrace(context.Background()) }()

	opts, bus := apiOptions(cfg, logger, cfg.ServiceName+"-engine")
	eng, err := buildEngine(ctx, cfg, logger, opts.Metrics, bus)
	if err != nil {
		return err
	}
	defer eng.Close()

	recs, err := loadStrategies(cfg.Engine.StrategiesFile, logger)
	if err != nil {
		return err
	}
	if err := eng.orch.Sync(ctx, recs); err != nil {
		return err
	}

	server := api.NewEngineServer(eng.orch, opts)
	httpSrv := api.NewHTTPServer(fmt.Sprintf(":%d", cfg.HTTP.EnginePort), server.Router)

	g, gctx := errgroup.WithContext(ctx)
	if err := startMirror(gctx, g, cfg, logger, opts.Metrics, bus, events.EventStrategyStatus); err != nil {
		return err
	}
	return serve(gctx, g, logger, opts.Health, httpSrv)
}

// startMirror runs the Kafka mirror in g when brokers are configured.
func startMirror(ctx context.Context, g *errgroup.Group, cfg *config.Config, logger *slog.Logger, metrics *monitor.Metrics, bus *events.Bus, topics ...events.Event) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil
	}
	producer, err := kafka.NewSyncProducer(cfg.Kafka.Brokers, logger, metrics)
	if err != nil {
		return err
	}
	mirror := kafka.NewMirror(bus, producer, cfg.Kafka.Topic, logger)
	g.Go(func() error {
		defer producer.Close()
		return mirror.Run(ctx, topics...)
	})
	return nil
}

// serve runs httpSrv until ctx is done, then drains it.
func serve(ctx context.Context, g *errgroup.Group, logger *slog.Logger, health *api.Health, httpSrv *http.Server) error {
	g.Go(func() error {
		logger.Info("http server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", httpSrv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		health.SetReady(false)
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	health.SetReady(true)
	return g.Wait()
}
