package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/events"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/indicators"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/monitor"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/orchestrator"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/risk"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/router"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/routerclient"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/strategy"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/venue"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/pkg/config"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/pkg/db"
)

func buildRouter(cfg *config.Config, logger *slog.Logger, metrics *monitor.Metrics, bus *events.Bus) (*router.Router, error) {
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	limit, mode, loc, err := cfg.TrackerSettings()
	if err != nil {
		return nil, err
	}
	simCfg, err := cfg.SimConfig()
	if err != nil {
		return nil, err
	}
	prices, err := cfg.ReferencePrices()
	if err != nil {
		return nil, err
	}
	collar, err := cfg.LiveCollar()
	if err != nil {
		return nil, err
	}

	tracker := risk.NewDailyTracker(limit, mode, risk.WithLocation(loc))
	opts := []router.Option{
		router.WithRules(rules),
		router.WithLogger(logger),
		router.WithMetrics(metrics),
		router.WithBus(bus),
		router.WithLiveCollar(collar),
	}
	if cfg.Alpaca.APIKey != "" {
		opts = append(opts, router.WithLiveAdapter(venue.NewAlpacaAdapter(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, logger)))
		logger.Info("live adapter configured", "broker", "alpaca")
	} else if mode == risk.ModeLive {
		logger.Warn("tracker starts in live mode without any live adapter; orders will fail routing")
	}

	logger.Info("order router configured",
		"mode", mode,
		"daily_limit", limit.String(),
		"max_order_notional", rules.MaxOrderNotional.String(),
		"fill_model", simCfg.FillModel,
		"reference_prices", len(prices),
	)
	return router.New(tracker, venue.NewPriceBook(prices), venue.NewSimulator(simCfg), opts...), nil
}

// engine bundles the orchestrator with the resources that must be released.
type engine struct {
	orch    *orchestrator.Orchestrator
	client  *routerclient.HTTPClient
	closeFn func() error
}

func (e *engine) Close() error {
	if e.closeFn == nil {
		return nil
	}
	return e.closeFn()
}

func buildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *monitor.Metrics, bus *events.Bus) (*engine, error) {
	var (
		store   orchestrator.Store = orchestrator.NewMemoryStore()
		closeFn func() error
	)
	if cfg.Engine.DBPath != "" {
		database, err := db.Open(ctx, cfg.Engine.DBPath)
		if err != nil {
			return nil, err
		}
		if err := db.ApplyMigrations(database); err != nil {
			_ = database.Close()
			return nil, err
		}
		store = database.Strategies()
		closeFn = database.Close
		logger.Info("strategy store opened", "path", cfg.Engine.DBPath)
	}

	client := routerclient.New(routerclient.Options{
		BaseURL: cfg.Engine.RouterURL,
		Timeout: cfg.Engine.RouterTimeout,
		Token:   cfg.Engine.RouterToken,
	})
	orch := orchestrator.New(client, store,
		orchestrator.WithRecentSize(cfg.Engine.RecentExecutions),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(metrics),
		orchestrator.WithBus(bus),
		orchestrator.WithIndicators(indicators.NewEngine(
			cfg.Engine.Indicators.SMAShort,
			cfg.Engine.Indicators.SMALong,
			cfg.Engine.Indicators.RSIPeriod,
			cfg.Engine.Indicators.Window,
		)),
	)
	return &engine{orch: orch, client: client, closeFn: closeFn}, nil
}

// loadStrategies reads the strategies file. A missing file yields no records.
func loadStrategies(path string, logger *slog.Logger) ([]strategy.Record, error) {
	if path == "" {
		return nil, nil
	}
	recs, err := strategy.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("no strategies file", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load strategies: %w", err)
	}
	logger.Info("strategies loaded", "path", path, "count", len(recs))
	return recs, nil
}
