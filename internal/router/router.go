// Package router admits, routes and records orders.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/events"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/monitor"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/risk"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/venue"
)

// ErrDuplicateInFlight is returned when a client order id is already being routed.
var ErrDuplicateInFlight = errors.New("order with this client order id is already in flight")

// Router runs the risk check, the daily limit, the venue and the logs for each order.
type Router struct {
	rules   risk.Rules
	tracker *risk.DailyTracker
	prices  *venue.PriceBook
	paper   venue.Adapter
	live    map[string]venue.Adapter

	liveCollar decimal.Decimal

	logger  *slog.Logger
	metrics *monitor.Metrics
	bus     *events.Bus
	now     func() time.Time
	newID   func() string

	mu         sync.RWMutex
	orders     []order.Order
	executions []order.Execution
	byClientID map[string]order.Execution
	inflight   map[string]struct{}
}

// New creates a Router. paper is used whenever the tracker is in paper mode.
func New(tracker *risk.DailyTracker, prices *venue.PriceBook, paper venue.Adapter, opts ...Option) *Router {
	r := &Router{
		rules:      risk.DefaultRules(),
		tracker:    tracker,
		prices:     prices,
		paper:      paper,
		live:       make(map[string]venue.Adapter),
		liveCollar: DefaultLiveCollar,
		logger:     slog.Default(),
		now:        time.Now,
		newID:      defaultID,
		orders:     []order.Order{},
		executions: []order.Execution{},
		byClientID: make(map[string]order.Execution),
		inflight:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RouteOrder runs the full pipeline for req. On success the execution has
// been committed to the tracker and appended to both logs. On any error
// nothing has been committed or logged.
//
// A request carrying a ClientOrderID that was already routed returns the
// stored execution and replayed=true without routing again.
func (r *Router) RouteOrder(ctx context.Context, req order.Request) (exec order.Execution, replayed bool, err error) {
	req = req.Normalize()
	r.stage(StageReceived, req)

	if req.ClientOrderID != "" {
		prev, ok, err := r.claim(req.ClientOrderID)
		if err != nil || ok {
			return prev, ok, err
		}
		defer r.unclaim(req.ClientOrderID)
	}

	if err := req.Validate(); err != nil {
		r.reject(StageRejectedRisk, req, err)
		return order.Execution{}, false, err
	}
	assessment, err := risk.Evaluate(req, r.rules, r.prices)
	if err != nil {
		r.reject(StageRejectedRisk, req, err)
		return order.Execution{}, false, err
	}
	r.stage(StageRiskChecked, req)

	mode := r.tracker.Mode()
	hold, err := r.tracker.Reserve(r.holdAmount(mode, req, assessment.Notional))
	if err != nil {
		r.reject(StageRejectedLimit, req, err)
		return order.Execution{}, false, err
	}
	r.stage(StageLimitChecked, req)

	adapter, err := r.adapterFor(mode, req.Broker)
	if err != nil {
		hold.Release()
		r.reject(StageRoutingFailed, req, err)
		return order.Execution{}, false, err
	}

	o := order.New(r.newID(), req, r.now())
	if adapter != r.paper {
		o.LimitPrice = r.collarPrice(req, assessment.Price)
	}
	start := time.Now()
	exec, err = adapter.Execute(ctx, o, assessment.Price)
	r.metrics.ObserveVenue(adapter.Name(), err, time.Since(start))
	if err == nil {
		err = exec.Validate()
	}
	if err == nil && exec.Status == order.StatusRejected {
		err = &order.RouterClientError{Op: "execute", Detail: fmt.Sprintf("order rejected by %s", adapter.Name())}
	}
	if err != nil {
		hold.Release()
		r.reject(StageRoutingFailed, req, err)
		return order.Execution{}, false, err
	}
	r.stage(StageRouted, req)

	committed := exec.Notional()
	if adapter != r.paper && exec.Status != order.StatusFilled {
		// A live order still working at the broker keeps its full exposure.
		committed = hold.Amount()
	}
	if committed.GreaterThan(hold.Amount()) {
		// a live fill outside its collar, e.g. a sell improving on the band
		r.logger.Warn("fill notional above reservation",
			"symbol", req.Symbol,
			"side", req.Side,
			"executed_notional", committed.String(),
			"reserved_notional", hold.Amount().String(),
		)
		committed = hold.Amount()
	}
	hold.Commit(committed)
	if exec.AvgPrice != nil {
		r.prices.Set(exec.Symbol, *exec.AvgPrice)
	}

	o.Status = exec.Status
	r.mu.Lock()
	r.orders = append(r.orders, o)
	r.executions = append(r.executions, exec)
	if req.ClientOrderID != "" {
		r.byClientID[req.ClientOrderID] = exec
	}
	r.mu.Unlock()
	r.stage(StageLogged, req)

	st := r.tracker.Snapshot()
	r.metrics.ObserveCommit(committed.InexactFloat64(), st.CurrentNotional.InexactFloat64())
	r.bus.Publish(events.EventOrderRouted, exec.OrderID, exec)
	r.logger.Info("order routed",
		"order_id", exec.OrderID,
		"symbol", exec.Symbol,
		"side", exec.Side,
		"status", exec.Status,
		"filled_quantity", exec.FilledQuantity.String(),
		"committed_notional", committed.String(),
		"daily_notional", st.CurrentNotional.String(),
	)
	return exec, false, nil
}

func (r *Router) claim(id string) (order.Execution, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byClientID[id]; ok {
		return prev, true, nil
	}
	if _, busy := r.inflight[id]; busy {
		return order.Execution{}, false, ErrDuplicateInFlight
	}
	r.inflight[id] = struct{}{}
	return order.Execution{}, false, nil
}

func (r *Router) unclaim(id string) {
	r.mu.Lock()
	delete(r.inflight, id)
	r.mu.Unlock()
}

// holdAmount pads the notional of market and stop orders by the worst price
// they may fill at: the paper venue's maximum slippage, or the live collar.
// Limit orders reserve exactly quantity × limit price.
func (r *Router) holdAmount(mode risk.Mode, req order.Request, notional decimal.Decimal) decimal.Decimal {
	if req.Type == order.TypeLimit {
		return notional
	}
	var pad decimal.Decimal
	if mode == risk.ModeLive {
		pad = r.liveCollar
	} else if b, ok := r.paper.(venue.SlippageBounded); ok {
		pad = b.MaxSlippage()
	}
	if !pad.IsPositive() {
		return notional
	}
	return notional.Mul(decimal.NewFromInt(1).Add(pad))
}

// collarPrice bounds a live market or stop order around ref: buys may pay at
// most ref×(1+collar), sells accept no less than ref×(1−collar). Prices are
// rounded to cents toward the inside of the band.
func (r *Router) collarPrice(req order.Request, ref decimal.Decimal) *decimal.Decimal {
	if req.Type == order.TypeLimit {
		return nil
	}
	one := decimal.NewFromInt(1)
	var p decimal.Decimal
	if req.Side == order.SideBuy {
		p = ref.Mul(one.Add(r.liveCollar)).RoundFloor(2)
	} else {
		p = ref.Mul(one.Sub(r.liveCollar)).RoundCeil(2)
	}
	return &p
}

func (r *Router) adapterFor(mode risk.Mode, broker string) (venue.Adapter, error) {
	if mode != risk.ModeLive {
		return r.paper, nil
	}
	a, ok := r.live[broker]
	if !ok {
		return nil, &order.RouterClientError{Op: "route", Detail: fmt.Sprintf("no live adapter for broker %q", broker)}
	}
	return a, nil
}

func (r *Router) stage(s Stage, req order.Request) {
	r.metrics.ObserveStage(string(s))
	r.logger.Debug("order stage", "stage", s, "symbol", req.Symbol, "side", req.Side)
}

func (r *Router) reject(s Stage, req order.Request, err error) {
	r.metrics.ObserveStage(string(s))
	topic := events.EventOrderRejected
	if s == StageRoutingFailed {
		topic = events.EventOrderRoutingFailed
		r.logger.Warn("order routing failed", "stage", s, "symbol", req.Symbol, "error", err)
	} else {
		r.logger.Info("order rejected", "stage", s, "symbol", req.Symbol, "reason", err.Error())
	}
	r.bus.Publish(topic, req.Symbol, events.Rejection{Stage: string(s), Symbol: req.Symbol, Reason: err.Error()})
}

// OrdersLog returns a copy of every routed order in submission order.
func (r *Router) OrdersLog() []order.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]order.Order, len(r.orders))
	copy(out, r.orders)
	return out
}

// Executions returns a copy of every execution in submission order.
func (r *Router) Executions() []order.Execution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]order.Execution, len(r.executions))
	copy(out, r.executions)
	return out
}

// State returns the daily tracker state.
func (r *Router) State() risk.State {
	return r.tracker.Snapshot()
}

// Reset zeroes the daily tracker. Logs are kept.
func (r *Router) Reset() risk.State {
	r.tracker.Reset()
	st := r.tracker.Snapshot()
	r.metrics.SetDailyNotional(st.CurrentNotional.InexactFloat64())
	r.bus.Publish(events.EventTrackerReset, st.TradingDay, st)
	r.logger.Info("daily tracker reset", "trading_day", st.TradingDay)
	return st
}

// UpdateState applies an update_state call to the tracker.
func (r *Router) UpdateState(u risk.Update) (risk.State, error) {
	if err := r.tracker.UpdateState(u); err != nil {
		return risk.State{}, err
	}
	st := r.tracker.Snapshot()
	r.bus.Publish(events.EventTrackerUpdated, st.TradingDay, st)
	r.logger.Info("daily tracker updated", "limit", st.Limit.String(), "mode", st.Mode, "trades_submitted", st.TradesSubmitted)
	return st, nil
}
