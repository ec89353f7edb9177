// Package orchestrator runs strategies and submits their signals to the order router.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/events"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/indicators"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/monitor"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/routerclient"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/strategy"
)

// State is the engine-wide execution summary.
type State struct {
	TradesSubmitted  int               `json:"trades_submitted"`
	RecentExecutions []order.Execution `json:"recent_executions"`
}

// StatusChange is published on the bus whenever a strategy changes status.
type StatusChange struct {
	StrategyID string          `json:"strategy_id"`
	Status     strategy.Status `json:"status"`
	LastError  string          `json:"last_error,omitempty"`
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRecentSize bounds the recent executions buffer.
func WithRecentSize(n int) Option {
	return func(o *Orchestrator) { o.recent = newRecentBuffer(n) }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithMetrics(m *monitor.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithBus(bus *events.Bus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIndicators feeds every executed market state through e and fills in
// any indicator the caller did not supply.
func WithIndicators(e *indicators.Engine) Option {
	return func(o *Orchestrator) { o.indicators = e }
}

// Orchestrator turns strategy signals into routed orders and tracks outcomes.
type Orchestrator struct {
	client  routerclient.Client
	store   Store
	logger  *slog.Logger
	metrics *monitor.Metrics
	bus     *events.Bus
	now     func() time.Time

	indicators *indicators.Engine

	// mu serializes counter updates and record read-modify-write cycles.
	// It is never held across a router call.
	mu              sync.Mutex
	tradesSubmitted int
	recent          *recentBuffer
	impls           map[string]strategy.Strategy
}

func New(client routerclient.Client, store Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client: client,
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		recent: newRecentBuffer(50),
		impls:  make(map[string]strategy.Strategy),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register validates and stores a new strategy in PENDING status.
func (o *Orchestrator) Register(ctx context.Context, rec strategy.Record) (strategy.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	impl, err := strategy.Build(rec)
	if err != nil {
		return strategy.Record{}, err
	}
	now := o.now().UTC()
	rec.Status = strategy.StatusPending
	rec.LastError = ""
	rec.CreatedAt = now
	rec.UpdatedAt = now

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.store.Save(ctx, rec); err != nil {
		return strategy.Record{}, fmt.Errorf("save strategy %s: %w", rec.ID, err)
	}
	o.impls[rec.ID] = impl
	o.logger.Info("strategy registered", "strategy_id", rec.ID, "type", rec.Type)
	return rec, nil
}

// Sync upserts configured records. Existing records keep their status and
// last error; definitions and the enabled flag are overwritten.
func (o *Orchestrator) Sync(ctx context.Context, recs []strategy.Record) error {
	for _, rec := range recs {
		impl, err := strategy.Build(rec)
		if err != nil {
			return fmt.Errorf("strategy %s: %w", rec.ID, err)
		}
		o.mu.Lock()
		existing, err := o.store.Get(ctx, rec.ID)
		switch {
		case err == nil:
			rec.Status = existing.Status
			rec.LastError = existing.LastError
			rec.CreatedAt = existing.CreatedAt
		case errors.Is(err, ErrNotFound):
			rec.Status = strategy.StatusPending
			rec.CreatedAt = o.now().UTC()
		default:
			o.mu.Unlock()
			return err
		}
		rec.UpdatedAt = o.now().UTC()
		err = o.store.Save(ctx, rec)
		if err == nil {
			o.impls[rec.ID] = impl
		}
		o.mu.Unlock()
		if err != nil {
			return fmt.Errorf("save strategy %s: %w", rec.ID, err)
		}
	}
	return nil
}

// SetEnabled toggles whether a strategy may be executed.
func (o *Orchestrator) SetEnabled(ctx context.Context, id string, enabled bool) (strategy.Record, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return strategy.Record{}, err
	}
	rec.Enabled = enabled
	rec.UpdatedAt = o.now().UTC()
	if err := o.store.Save(ctx, rec); err != nil {
		return strategy.Record{}, err
	}
	return rec, nil
}

func (o *Orchestrator) Get(ctx context.Context, id string) (strategy.Record, error) {
	return o.store.Get(ctx, id)
}

func (o *Orchestrator) List(ctx context.Context) ([]strategy.Record, error) {
	return o.store.List(ctx)
}

// State returns the trade count and the most recent executions, newest first.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return State{TradesSubmitted: o.tradesSubmitted, RecentExecutions: o.recent.snapshot()}
}

// ExecuteStrategy generates signals for the strategy and submits each one.
//
// Submission stops at the first failure: the strategy is marked ERROR and the
// original error is returned together with the executions that succeeded
// before it. With no signals the strategy and engine state are untouched.
func (o *Orchestrator) ExecuteStrategy(ctx context.Context, id string, state strategy.MarketState) ([]order.Execution, error) {
	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrStrategyDisabled, id)
	}
	impl, err := o.implFor(rec)
	if err != nil {
		o.markError(ctx, id, err)
		return nil, err
	}

	signals, err := impl.GenerateSignals(ctx, o.enrich(state))
	if err != nil {
		o.markError(ctx, id, err)
		return nil, err
	}
	executions := make([]order.Execution, 0, len(signals))
	if len(signals) == 0 {
		return executions, nil
	}

	for _, sig := range signals {
		sig.StrategyID = id
		exec, err := o.client.SubmitOrder(ctx, sig.Request())
		o.metrics.ObserveStrategyOrder(id, err)
		if err != nil {
			o.markError(ctx, id, err)
			return executions, err
		}
		o.recordSuccess(ctx, id, exec)
		executions = append(executions, exec)
	}
	return executions, nil
}

func (o *Orchestrator) enrich(state strategy.MarketState) strategy.MarketState {
	if o.indicators == nil || state.Symbol == "" {
		return state
	}
	derived := o.indicators.Update(state.Symbol, state.Timestamp, state.Price())
	if len(derived) == 0 {
		return state
	}
	merged := make(map[string]float64, len(state.Indicators)+len(derived))
	for k, v := range derived {
		merged[k] = v
	}
	for k, v := range state.Indicators {
		merged[k] = v
	}
	state.Indicators = merged
	return state
}

func (o *Orchestrator) implFor(rec strategy.Record) (strategy.Strategy, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if impl, ok := o.impls[rec.ID]; ok {
		return impl, nil
	}
	impl, err := strategy.Build(rec)
	if err != nil {
		return nil, err
	}
	o.impls[rec.ID] = impl
	return impl, nil
}

func (o *Orchestrator) recordSuccess(ctx context.Context, id string, exec order.Execution) {
	ctx = context.WithoutCancel(ctx)
	o.mu.Lock()
	o.tradesSubmitted++
	o.recent.push(exec)
	o.setStatusLocked(ctx, id, strategy.StatusActive, "")
	o.mu.Unlock()

	if err := o.store.AppendExecution(ctx, id, exec); err != nil {
		o.logger.Error("append execution failed", "strategy_id", id, "order_id", exec.OrderID, "error", err)
	}
	o.logger.Info("strategy order routed", "strategy_id", id, "order_id", exec.OrderID, "status", exec.Status)
}

func (o *Orchestrator) markError(ctx context.Context, id string, cause error) {
	ctx = context.WithoutCancel(ctx)
	o.mu.Lock()
	o.setStatusLocked(ctx, id, strategy.StatusError, cause.Error())
	o.mu.Unlock()
	o.logger.Warn("strategy execution failed", "strategy_id", id, "error", cause)
}

// setStatusLocked persists a status change. Store failures are logged so the
// caller's own error is never masked.
func (o *Orchestrator) setStatusLocked(ctx context.Context, id string, status strategy.Status, lastError string) {
	rec, err := o.store.Get(ctx, id)
	if err != nil {
		o.logger.Error("load strategy failed", "strategy_id", id, "error", err)
		return
	}
	changed := rec.Status != status || rec.LastError != lastError
	rec.Status = status
	rec.LastError = lastError
	rec.UpdatedAt = o.now().UTC()
	if err := o.store.Save(ctx, rec); err != nil {
		o.logger.Error("save strategy failed", "strategy_id", id, "error", err)
		return
	}
	if changed {
		o.bus.Publish(events.EventStrategyStatus, id, StatusChange{StrategyID: id, Status: status, LastError: lastError})
	}
}
