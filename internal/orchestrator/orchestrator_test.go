package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/events"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/indicators"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/strategy"
)

// stubClient answers from a queue of results; once exhausted it succeeds.
type stubClient struct {
	mu    sync.Mutex
	errs  []error
	calls []order.Request
}

func (s *stubClient) SubmitOrder(_ context.Context, req order.Request) (order.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.calls)
	s.calls = append(s.calls, req)
	if n < len(s.errs) && s.errs[n] != nil {
		return order.Execution{}, s.errs[n]
	}
	avg := decimal.NewFromInt(100)
	return order.Execution{
		OrderID:        fmt.Sprintf("o-%d", n+1),
		Status:         order.StatusFilled,
		Symbol:         req.Symbol,
		Side:           req.Side,
		Quantity:       req.Quantity,
		FilledQuantity: req.Quantity,
		AvgPrice:       &avg,
		Tags:           req.Tags,
	}, nil
}

func (s *stubClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func thresholdRecord(id string) strategy.Record {
	return strategy.Record{
		ID:      id,
		Name:    id,
		Type:    strategy.TypeCustom,
		Enabled: true,
		Parameters: map[string]any{
			"handler": "threshold", "symbol": "AAPL", "quantity": 1, "buy_below": 150,
		},
	}
}

func multiSignalRecord(id string, n int) strategy.Record {
	handler := fmt.Sprintf("emit-%d", n)
	strategy.RegisterHandler(handler, func(_ context.Context, st strategy.MarketState, _ map[string]any) ([]strategy.Signal, error) {
		out := make([]strategy.Signal, n)
		for i := range out {
			out[i] = strategy.Signal{Symbol: st.Symbol, Side: order.SideBuy, Type: order.TypeMarket, Quantity: decimal.NewFromInt(int64(i + 1))}
		}
		return out, nil
	})
	return strategy.Record{ID: id, Type: strategy.TypeCustom, Enabled: true, Parameters: map[string]any{"handler": handler}}
}

var dip = strategy.MarketState{Symbol: "AAPL", Last: 120}

func TestExecuteStrategySuccessAndFailure(t *testing.T) {
	ctx := context.Background()
	connErr := &order.RouterClientError{Op: "submit order", Err: errors.New("dial tcp: connection refused")}
	client := &stubClient{errs: []error{nil, connErr}}
	bus := events.NewBus()
	statuses, unsub := bus.Subscribe(4, events.EventStrategyStatus)
	defer unsub()
	orch := New(client, NewMemoryStore(), WithBus(bus))

	if _, err := orch.Register(ctx, thresholdRecord("good")); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if _, err := orch.Register(ctx, thresholdRecord("bad")); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	execs, err := orch.ExecuteStrategy(ctx, "good", dip)
	if err != nil {
		t.Fatalf("ExecuteStrategy returned error: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("executions=%d, expected 1", len(execs))
	}
	st := orch.State()
	if st.TradesSubmitted != 1 || len(st.RecentExecutions) != 1 || st.RecentExecutions[0].OrderID != execs[0].OrderID {
		t.Fatalf("unexpected state after success: %+v", st)
	}
	good, _ := orch.Get(ctx, "good")
	if good.Status != strategy.StatusActive {
		t.Fatalf("Status=%s, expected ACTIVE", good.Status)
	}
	if execs[0].Tags[0] != "strategy:good" {
		t.Fatalf("execution not tagged with strategy: %v", execs[0].Tags)
	}

	_, err = orch.ExecuteStrategy(ctx, "bad", dip)
	if !errors.Is(err, connErr) {
		t.Fatalf("err=%v, expected the original client error", err)
	}
	if st := orch.State(); st.TradesSubmitted != 1 || len(st.RecentExecutions) != 1 {
		t.Fatalf("state changed by failure: %+v", st)
	}
	bad, _ := orch.Get(ctx, "bad")
	if bad.Status != strategy.StatusError || bad.LastError == "" {
		t.Fatalf("unexpected record after failure: %+v", bad)
	}

	first := <-statuses
	second := <-statuses
	if first.Payload.(StatusChange).Status != strategy.StatusActive || second.Payload.(StatusChange).Status != strategy.StatusError {
		t.Fatalf("unexpected status events: %+v, %+v", first, second)
	}
}

func TestExecuteStrategyFailFast(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{errs: []error{nil, &order.RouterClientError{Op: "submit order", StatusCode: 403, Detail: "Daily notional limit exceeded"}}}
	orch := New(client, NewMemoryStore())
	if _, err := orch.Register(ctx, multiSignalRecord("batch", 3)); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	execs, err := orch.ExecuteStrategy(ctx, "batch", dip)
	if !order.IsRouterClientError(err) {
		t.Fatalf("err=%v, expected RouterClientError", err)
	}
	if client.callCount() != 2 {
		t.Fatalf("router called %d times, expected 2", client.callCount())
	}
	if len(execs) != 1 {
		t.Fatalf("executions before failure=%d, expected 1", len(execs))
	}
	if st := orch.State(); st.TradesSubmitted != 1 {
		t.Fatalf("TradesSubmitted=%d, expected 1", st.TradesSubmitted)
	}
	rec, _ := orch.Get(ctx, "batch")
	if rec.Status != strategy.StatusError {
		t.Fatalf("Status=%s, expected ERROR", rec.Status)
	}
}

func TestExecuteStrategyNoSignals(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{}
	orch := New(client, NewMemoryStore())
	if _, err := orch.Register(ctx, thresholdRecord("quiet")); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	execs, err := orch.ExecuteStrategy(ctx, "quiet", strategy.MarketState{Symbol: "AAPL", Last: 200})
	if err != nil {
		t.Fatalf("ExecuteStrategy returned error: %v", err)
	}
	if len(execs) != 0 || client.callCount() != 0 {
		t.Fatalf("expected no routing, got %d executions and %d calls", len(execs), client.callCount())
	}
	rec, _ := orch.Get(ctx, "quiet")
	if rec.Status != strategy.StatusPending {
		t.Fatalf("Status=%s, expected PENDING", rec.Status)
	}
	if st := orch.State(); st.TradesSubmitted != 0 || len(st.RecentExecutions) != 0 {
		t.Fatalf("state changed without signals: %+v", st)
	}
}

func TestExecuteStrategyGuards(t *testing.T) {
	ctx := context.Background()
	orch := New(&stubClient{}, NewMemoryStore())

	if _, err := orch.ExecuteStrategy(ctx, "missing", dip); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, expected ErrNotFound", err)
	}

	rec := thresholdRecord("off")
	rec.Enabled = false
	if _, err := orch.Register(ctx, rec); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if _, err := orch.ExecuteStrategy(ctx, "off", dip); !errors.Is(err, ErrStrategyDisabled) {
		t.Fatalf("err=%v, expected ErrStrategyDisabled", err)
	}
	if _, err := orch.SetEnabled(ctx, "off", true); err != nil {
		t.Fatalf("SetEnabled returned error: %v", err)
	}
	if _, err := orch.ExecuteStrategy(ctx, "off", dip); err != nil {
		t.Fatalf("ExecuteStrategy after enabling returned error: %v", err)
	}
}

func TestExecuteStrategySignalError(t *testing.T) {
	ctx := context.Background()
	strategy.RegisterHandler("explode", func(context.Context, strategy.MarketState, map[string]any) ([]strategy.Signal, error) {
		return nil, errors.New("feature store offline")
	})
	orch := New(&stubClient{}, NewMemoryStore())
	if _, err := orch.Register(ctx, strategy.Record{ID: "x", Type: strategy.TypeCustom, Enabled: true, Parameters: map[string]any{"handler": "explode"}}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if _, err := orch.ExecuteStrategy(ctx, "x", dip); err == nil {
		t.Fatalf("expected signal generation error")
	}
	rec, _ := orch.Get(ctx, "x")
	if rec.Status != strategy.StatusError || rec.LastError == "" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestRecentExecutionsBounded(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	orch := New(&stubClient{}, store, WithRecentSize(2))
	if _, err := orch.Register(ctx, multiSignalRecord("many", 3)); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if _, err := orch.ExecuteStrategy(ctx, "many", dip); err != nil {
		t.Fatalf("ExecuteStrategy returned error: %v", err)
	}
	st := orch.State()
	if st.TradesSubmitted != 3 {
		t.Fatalf("TradesSubmitted=%d, expected 3", st.TradesSubmitted)
	}
	if len(st.RecentExecutions) != 2 || st.RecentExecutions[0].OrderID != "o-3" || st.RecentExecutions[1].OrderID != "o-2" {
		t.Fatalf("unexpected recent executions: %+v", st.RecentExecutions)
	}
	if got := len(store.ExecutionsFor("many")); got != 3 {
		t.Fatalf("journal entries=%d, expected 3", got)
	}
}

func TestRegisterAndSync(t *testing.T) {
	ctx := context.Background()
	orch := New(&stubClient{errs: []error{errors.New("boom")}}, NewMemoryStore())

	if _, err := orch.Register(ctx, strategy.Record{Type: "unknown"}); !errors.Is(err, strategy.ErrUnknownType) {
		t.Fatalf("err=%v, expected ErrUnknownType", err)
	}
	rec, err := orch.Register(ctx, strategy.Record{Type: strategy.TypeCustom, Enabled: true, Parameters: map[string]any{"handler": "threshold", "quantity": 1, "buy_below": 150}})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if rec.ID == "" || rec.Status != strategy.StatusPending {
		t.Fatalf("unexpected registered record: %+v", rec)
	}
	_, _ = orch.ExecuteStrategy(ctx, rec.ID, dip)

	updated := rec
	updated.Name = "renamed"
	if err := orch.Sync(ctx, []strategy.Record{updated, thresholdRecord("fresh")}); err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	got, _ := orch.Get(ctx, rec.ID)
	if got.Name != "renamed" || got.Status != strategy.StatusError {
		t.Fatalf("Sync lost status or name: %+v", got)
	}
	fresh, _ := orch.Get(ctx, "fresh")
	if fresh.Status != strategy.StatusPending {
		t.Fatalf("Status=%s, expected PENDING", fresh.Status)
	}
	all, _ := orch.List(ctx)
	if len(all) != 2 {
		t.Fatalf("List=%d, expected 2", len(all))
	}
}

func TestExecuteStrategyDerivesIndicators(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{}
	orch := New(client, NewMemoryStore(), WithIndicators(indicators.NewEngine(2, 3, 2, 0)))
	if _, err := orch.Register(ctx, strategy.Record{
		ID: "cross", Type: strategy.TypeMACross, Enabled: true,
		Parameters: map[string]any{"symbol": "MSFT", "quantity": 1},
	}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	start := time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC)
	// falling prices seed fast < slow, then a jump crosses it
	prices := []float64{110, 105, 100, 95, 130}
	var routed []order.Execution
	for i, p := range prices {
		st := strategy.MarketState{Symbol: "MSFT", Timestamp: start.Add(time.Duration(i) * time.Minute), Last: p}
		execs, err := orch.ExecuteStrategy(ctx, "cross", st)
		if err != nil {
			t.Fatalf("ExecuteStrategy returned error: %v", err)
		}
		routed = append(routed, execs...)
	}
	if len(routed) != 1 || routed[0].Side != order.SideBuy {
		t.Fatalf("expected one golden cross buy, got %+v", routed)
	}
	if client.callCount() != 1 {
		t.Fatalf("calls=%d, expected 1", client.callCount())
	}
}

func TestEnrichKeepsCallerIndicators(t *testing.T) {
	orch := New(&stubClient{}, NewMemoryStore(), WithIndicators(indicators.NewEngine(1, 1, 1, 0)))
	in := strategy.MarketState{Symbol: "AAPL", Last: 120, Indicators: map[string]float64{"sma_short": 7}}
	out := orch.enrich(in)
	if out.Indicators["sma_short"] != 7 {
		t.Fatalf("caller indicator overwritten: %v", out.Indicators)
	}
	if out.Indicators["sma_long"] != 120 {
		t.Fatalf("sma_long=%v, expected 120", out.Indicators["sma_long"])
	}
	if len(in.Indicators) != 1 {
		t.Fatalf("input map mutated: %v", in.Indicators)
	}
}
