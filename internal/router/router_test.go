package router

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/events"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/risk"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/venue"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

type failingAdapter struct {
	name  string
	err   error
	calls int
}

func (f *failingAdapter) Name() string { return f.name }

func (f *failingAdapter) Execute(context.Context, order.Order, decimal.Decimal) (order.Execution, error) {
	f.calls++
	return order.Execution{}, f.err
}

func newTestRouter(limit string, opts ...Option) *Router {
	tracker := risk.NewDailyTracker(dec(limit), risk.ModePaper)
	prices := venue.NewPriceBook(map[string]decimal.Decimal{"AAPL": dec("100")})
	return New(tracker, prices, venue.NewSimulator(venue.DefaultSimConfig()), opts...)
}

func limitOrder(symbol, qty, price string) order.Request {
	return order.Request{Broker: "paper", Venue: "sim", Symbol: symbol, Side: order.SideBuy, Type: order.TypeLimit, Quantity: dec(qty), Price: decPtr(price)}
}

func TestRouteOrderDailyLimitScenario(t *testing.T) {
	r := newTestRouter("30000")
	ctx := context.Background()

	exec, _, err := r.RouteOrder(ctx, limitOrder("AAPL", "200", "100"))
	if err != nil {
		t.Fatalf("first order returned error: %v", err)
	}
	if exec.Status != order.StatusFilled {
		t.Fatalf("Status=%s, expected filled", exec.Status)
	}
	if got := r.State().CurrentNotional; !got.Equal(dec("20000")) {
		t.Fatalf("CurrentNotional=%s, expected 20000", got)
	}

	_, _, err = r.RouteOrder(ctx, limitOrder("AAPL", "200", "100"))
	if !risk.IsDailyLimit(err) {
		t.Fatalf("err=%v, expected DailyLimitError", err)
	}
	if !strings.Contains(err.Error(), "Daily notional") {
		t.Fatalf("message=%q, expected to contain Daily notional", err.Error())
	}
	if got := r.State().CurrentNotional; !got.Equal(dec("20000")) {
		t.Fatalf("CurrentNotional=%s after rejection, expected 20000", got)
	}
	if len(r.OrdersLog()) != 1 || len(r.Executions()) != 1 {
		t.Fatalf("logs mutated by rejected order: orders=%d executions=%d", len(r.OrdersLog()), len(r.Executions()))
	}
}

func TestRouteOrderNotionalCeilingScenario(t *testing.T) {
	r := newTestRouter("0")

	_, _, err := r.RouteOrder(context.Background(), limitOrder("BTCUSD", "0.6", "200000"))
	if !risk.IsViolation(err) {
		t.Fatalf("err=%v, expected Violation", err)
	}
	if !strings.Contains(err.Error(), "Notional") {
		t.Fatalf("message=%q, expected to contain Notional", err.Error())
	}
	st := r.State()
	if !st.CurrentNotional.IsZero() || !st.ReservedNotional.IsZero() {
		t.Fatalf("tracker mutated by violation: %+v", st)
	}
	if len(r.OrdersLog()) != 0 {
		t.Fatalf("order log mutated by violation")
	}
}

func TestRouteOrderMarketUsesReferencePrice(t *testing.T) {
	r := newTestRouter("1000000")
	req := order.Request{Symbol: "aapl", Side: "BUY", Quantity: dec("5")}

	exec, _, err := r.RouteOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("RouteOrder returned error: %v", err)
	}
	if exec.Symbol != "AAPL" || exec.Broker != "paper" || exec.Venue != "sim" {
		t.Fatalf("request not normalized: %+v", exec)
	}
	if !exec.AvgPrice.Equal(dec("100")) {
		t.Fatalf("AvgPrice=%s, expected 100", exec.AvgPrice)
	}
	if got := r.State().CurrentNotional; !got.Equal(dec("500")) {
		t.Fatalf("CurrentNotional=%s, expected 500", got)
	}
}

func TestRouteOrderPartialFillCommitsExecutedNotional(t *testing.T) {
	tracker := risk.NewDailyTracker(dec("100000"), risk.ModePaper)
	sim := venue.NewSimulator(venue.SimConfig{FillModel: venue.FillPartial, PartialFillRatio: dec("0.5")})
	r := New(tracker, venue.NewPriceBook(nil), sim)

	exec, _, err := r.RouteOrder(context.Background(), limitOrder("MSFT", "10", "300"))
	if err != nil {
		t.Fatalf("RouteOrder returned error: %v", err)
	}
	if exec.Status != order.StatusPartiallyFilled {
		t.Fatalf("Status=%s, expected partially_filled", exec.Status)
	}
	st := r.State()
	if !st.CurrentNotional.Equal(dec("1500")) {
		t.Fatalf("CurrentNotional=%s, expected 1500", st.CurrentNotional)
	}
	if !st.ReservedNotional.IsZero() {
		t.Fatalf("ReservedNotional=%s, expected 0", st.ReservedNotional)
	}
}

func TestRouteOrderRoutingFailureCommitsNothing(t *testing.T) {
	tracker := risk.NewDailyTracker(dec("100000"), risk.ModePaper)
	broken := &failingAdapter{name: "paper", err: &order.RouterClientError{Op: "execute", Err: errors.New("venue down")}}
	bus := events.NewBus()
	failures, unsub := bus.Subscribe(1, events.EventOrderRoutingFailed)
	defer unsub()
	r := New(tracker, venue.NewPriceBook(nil), broken, WithBus(bus))

	_, _, err := r.RouteOrder(context.Background(), limitOrder("AAPL", "1", "100"))
	if !order.IsRouterClientError(err) {
		t.Fatalf("err=%v, expected RouterClientError", err)
	}
	st := r.State()
	if !st.CurrentNotional.IsZero() || !st.ReservedNotional.IsZero() || st.TradesSubmitted != 0 {
		t.Fatalf("tracker mutated by routing failure: %+v", st)
	}
	if len(r.Executions()) != 0 {
		t.Fatalf("execution log mutated by routing failure")
	}
	env := <-failures
	if rej, ok := env.Payload.(events.Rejection); !ok || rej.Stage != string(StageRoutingFailed) {
		t.Fatalf("unexpected event payload: %+v", env.Payload)
	}
}

func TestRouteOrderLiveModeWithoutAdapter(t *testing.T) {
	tracker := risk.NewDailyTracker(dec("100000"), risk.ModeLive)
	r := New(tracker, venue.NewPriceBook(nil), venue.NewSimulator(venue.DefaultSimConfig()))

	req := limitOrder("AAPL", "1", "100")
	req.Broker = "alpaca"
	_, _, err := r.RouteOrder(context.Background(), req)
	var rce *order.RouterClientError
	if !errors.As(err, &rce) || !strings.Contains(rce.Error(), "alpaca") {
		t.Fatalf("err=%v, expected RouterClientError naming the broker", err)
	}
	if st := r.State(); !st.ReservedNotional.IsZero() || !st.CurrentNotional.IsZero() {
		t.Fatalf("hold leaked: %+v", st)
	}
}

func TestRouteOrderLiveModeUsesBrokerAdapter(t *testing.T) {
	tracker := risk.NewDailyTracker(dec("100000"), risk.ModeLive)
	live := &failingAdapter{name: "alpaca", err: &order.RouterClientError{Op: "alpaca place order", Err: context.DeadlineExceeded}}
	r := New(tracker, venue.NewPriceBook(nil), venue.NewSimulator(venue.DefaultSimConfig()), WithLiveAdapter(live))

	req := limitOrder("AAPL", "1", "100")
	req.Broker = "alpaca"
	_, _, err := r.RouteOrder(context.Background(), req)
	if !order.IsRouterClientError(err) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v, expected RouterClientError wrapping deadline", err)
	}
	if live.calls != 1 {
		t.Fatalf("live adapter called %d times, expected exactly 1", live.calls)
	}
}

func TestRouteOrderInvalidRequest(t *testing.T) {
	r := newTestRouter("1000")
	_, _, err := r.RouteOrder(context.Background(), order.Request{Symbol: "AAPL", Side: "hold", Quantity: dec("1")})
	if !errors.Is(err, order.ErrInvalidRequest) {
		t.Fatalf("err=%v, expected ErrInvalidRequest", err)
	}
}

func TestRouteOrderClientOrderIDReplay(t *testing.T) {
	r := newTestRouter("100000")
	req := limitOrder("AAPL", "10", "100")
	req.ClientOrderID = "abc-1"

	first, replayed, err := r.RouteOrder(context.Background(), req)
	if err != nil || replayed {
		t.Fatalf("first RouteOrder: replayed=%v err=%v", replayed, err)
	}
	second, replayed, err := r.RouteOrder(context.Background(), req)
	if err != nil || !replayed {
		t.Fatalf("second RouteOrder: replayed=%v err=%v", replayed, err)
	}
	if first.OrderID != second.OrderID {
		t.Fatalf("replay returned %s, expected %s", second.OrderID, first.OrderID)
	}
	if got := r.State().CurrentNotional; !got.Equal(dec("1000")) {
		t.Fatalf("CurrentNotional=%s, expected a single commit of 1000", got)
	}
}

func TestLogsAreStable(t *testing.T) {
	r := newTestRouter("100000")
	for i := 0; i < 3; i++ {
		if _, _, err := r.RouteOrder(context.Background(), limitOrder("AAPL", "1", "100")); err != nil {
			t.Fatalf("RouteOrder returned error: %v", err)
		}
	}
	orders, execs := r.OrdersLog(), r.Executions()
	for i := 0; i < 3; i++ {
		if !reflect.DeepEqual(orders, r.OrdersLog()) || !reflect.DeepEqual(execs, r.Executions()) {
			t.Fatalf("logs changed between reads")
		}
	}
	orders[0].Symbol = "MUTATED"
	if r.OrdersLog()[0].Symbol != "AAPL" {
		t.Fatalf("OrdersLog exposed internal storage")
	}
}

func TestPreviewPlanMatchesRouteWithoutMutation(t *testing.T) {
	cases := []struct {
		name      string
		req       order.Request
		wantStage Stage
	}{
		{name: "accepted", req: limitOrder("AAPL", "100", "100"), wantStage: StageLimitChecked},
		{name: "risk rejected", req: limitOrder("BTCUSD", "0.6", "200000"), wantStage: StageRejectedRisk},
		{name: "limit rejected", req: limitOrder("AAPL", "400", "100"), wantStage: StageRejectedLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter("30000")
			before := r.State()

			plan, err := r.PreviewPlan(context.Background(), tc.req)
			if err != nil {
				t.Fatalf("PreviewPlan returned error: %v", err)
			}
			if plan.Stage != tc.wantStage {
				t.Fatalf("Stage=%s, expected %s", plan.Stage, tc.wantStage)
			}
			if !reflect.DeepEqual(before, r.State()) || len(r.OrdersLog()) != 0 || len(r.Executions()) != 0 {
				t.Fatalf("PreviewPlan mutated state")
			}

			_, _, routeErr := r.RouteOrder(context.Background(), tc.req)
			if plan.Accepted != (routeErr == nil) {
				t.Fatalf("plan accepted=%v, route err=%v", plan.Accepted, routeErr)
			}
			if routeErr != nil && plan.Reason != routeErr.Error() {
				t.Fatalf("plan reason=%q, route err=%q", plan.Reason, routeErr.Error())
			}
			if plan.Accepted && plan.ExpectedExecution == nil {
				t.Fatalf("accepted plan missing expected execution")
			}
		})
	}
}

func TestConcurrentRoutingRespectsLimit(t *testing.T) {
	r := newTestRouter("5000")

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = r.RouteOrder(context.Background(), limitOrder("AAPL", "3", "100"))
		}()
	}
	wg.Wait()

	st := r.State()
	if st.CurrentNotional.GreaterThan(dec("5000")) {
		t.Fatalf("CurrentNotional=%s exceeds limit", st.CurrentNotional)
	}
	if len(r.Executions()) != 16 {
		t.Fatalf("executions=%d, expected 16", len(r.Executions()))
	}
}

func TestResetAndUpdateState(t *testing.T) {
	r := newTestRouter("30000")
	if _, _, err := r.RouteOrder(context.Background(), limitOrder("AAPL", "200", "100")); err != nil {
		t.Fatalf("RouteOrder returned error: %v", err)
	}
	if st := r.Reset(); !st.CurrentNotional.IsZero() {
		t.Fatalf("Reset left CurrentNotional=%s", st.CurrentNotional)
	}
	if len(r.OrdersLog()) != 1 {
		t.Fatalf("Reset cleared the order log")
	}

	limit := dec("10")
	st, err := r.UpdateState(risk.Update{Limit: &limit})
	if err != nil {
		t.Fatalf("UpdateState returned error: %v", err)
	}
	if !st.Limit.Equal(limit) {
		t.Fatalf("Limit=%s, expected 10", st.Limit)
	}
	if _, _, err := r.RouteOrder(context.Background(), limitOrder("AAPL", "1", "100")); !risk.IsDailyLimit(err) {
		t.Fatalf("err=%v, expected DailyLimitError under new limit", err)
	}
}

func TestStageTransitions(t *testing.T) {
	path := []Stage{StageReceived, StageRiskChecked, StageLimitChecked, StageRouted, StageLogged}
	for i := 0; i < len(path)-1; i++ {
		if !path[i].CanTransition(path[i+1]) {
			t.Fatalf("%s -> %s should be allowed", path[i], path[i+1])
		}
	}
	if StageReceived.CanTransition(StageRouted) {
		t.Fatalf("RECEIVED -> ROUTED should not be allowed")
	}
	if StageLogged.CanTransition(StageReceived) || !StageRoutingFailed.Failed() || StageLogged.Failed() {
		t.Fatalf("terminal stages misclassified")
	}
}

// priceAdapter fills every order completely at price and remembers what it was sent.
type priceAdapter struct {
	name  string
	price decimal.Decimal
	sent  []order.Order
}

func (p *priceAdapter) Name() string { return p.name }

func (p *priceAdapter) Execute(_ context.Context, o order.Order, _ decimal.Decimal) (order.Execution, error) {
	p.sent = append(p.sent, o)
	exec := order.Execution{OrderID: o.ID, Broker: o.Broker, Symbol: o.Symbol, Side: o.Side, Quantity: o.Quantity}
	exec.Apply([]order.Fill{{ID: "f-1", Quantity: o.Quantity, Price: p.price}})
	return exec, nil
}

func newLiveRouter(limit string, fill string, opts ...Option) (*Router, *priceAdapter) {
	live := &priceAdapter{name: "alpaca", price: dec(fill)}
	tracker := risk.NewDailyTracker(dec(limit), risk.ModeLive)
	prices := venue.NewPriceBook(map[string]decimal.Decimal{"AAPL": dec("100")})
	opts = append(opts, WithLiveAdapter(live))
	return New(tracker, prices, venue.NewSimulator(venue.DefaultSimConfig()), opts...), live
}

func liveMarket(side order.Side, qty string) order.Request {
	return order.Request{Broker: "alpaca", Venue: "nasdaq", Symbol: "AAPL", Side: side, Type: order.TypeMarket, Quantity: dec(qty)}
}

func TestLiveMarketOrderReservesCollar(t *testing.T) {
	ctx := context.Background()

	// 100 × 100 × 1.01 does not fit under 10000
	r, live := newLiveRouter("10000", "101")
	_, _, err := r.RouteOrder(ctx, liveMarket(order.SideBuy, "100"))
	if !risk.IsDailyLimit(err) {
		t.Fatalf("err=%v, expected DailyLimitError for the collared hold", err)
	}
	if len(live.sent) != 0 {
		t.Fatalf("broker called despite limit rejection")
	}

	r, live = newLiveRouter("10100", "101")
	exec, _, err := r.RouteOrder(ctx, liveMarket(order.SideBuy, "100"))
	if err != nil {
		t.Fatalf("RouteOrder returned error: %v", err)
	}
	if len(live.sent) != 1 || live.sent[0].LimitPrice == nil || !live.sent[0].LimitPrice.Equal(dec("101")) {
		t.Fatalf("broker order not collared at 101: %+v", live.sent)
	}
	if live.sent[0].Type != order.TypeMarket {
		t.Fatalf("logged type changed to %s", live.sent[0].Type)
	}
	st := r.State()
	if !st.CurrentNotional.Equal(exec.Notional()) || st.CurrentNotional.GreaterThan(st.Limit) {
		t.Fatalf("current=%s limit=%s notional=%s", st.CurrentNotional, st.Limit, exec.Notional())
	}
	if !st.ReservedNotional.IsZero() {
		t.Fatalf("hold leaked: %s", st.ReservedNotional)
	}
}

func TestLiveFillAboveReservationIsCapped(t *testing.T) {
	// a sell filling well above the reference
	r, live := newLiveRouter("10100", "105")
	if _, _, err := r.RouteOrder(context.Background(), liveMarket(order.SideSell, "100")); err != nil {
		t.Fatalf("RouteOrder returned error: %v", err)
	}
	if got := live.sent[0].LimitPrice; got == nil || !got.Equal(dec("99")) {
		t.Fatalf("sell collar=%v, expected 99", got)
	}
	st := r.State()
	if !st.CurrentNotional.Equal(dec("10100")) {
		t.Fatalf("current=%s, expected the reservation 10100", st.CurrentNotional)
	}
	if st.CurrentNotional.GreaterThan(st.Limit) {
		t.Fatalf("current %s above limit %s", st.CurrentNotional, st.Limit)
	}
}

func TestLiveCollarZeroReservesReference(t *testing.T) {
	r, live := newLiveRouter("10000", "100", WithLiveCollar(decimal.Zero))
	if _, _, err := r.RouteOrder(context.Background(), liveMarket(order.SideBuy, "100")); err != nil {
		t.Fatalf("RouteOrder returned error: %v", err)
	}
	if got := live.sent[0].LimitPrice; got == nil || !got.Equal(dec("100")) {
		t.Fatalf("collar=%v, expected 100", got)
	}
	if got := r.State().CurrentNotional; !got.Equal(dec("10000")) {
		t.Fatalf("current=%s, expected 10000", got)
	}
}

func TestLivePlanShowsCollar(t *testing.T) {
	r, live := newLiveRouter("20000", "100")
	plan, err := r.PreviewPlan(context.Background(), liveMarket(order.SideBuy, "10"))
	if err != nil {
		t.Fatalf("PreviewPlan returned error: %v", err)
	}
	if !plan.Accepted || plan.Order.LimitPrice == nil || !plan.Order.LimitPrice.Equal(dec("101")) {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if !plan.ProjectedNotional.Equal(dec("1010")) {
		t.Fatalf("projected=%s, expected 1010", plan.ProjectedNotional)
	}
	if len(live.sent) != 0 {
		t.Fatalf("preview reached the broker")
	}
}

func TestPaperSlippagePadsMarketHold(t *testing.T) {
	ctx := context.Background()
	prices := map[string]decimal.Decimal{"AAPL": dec("100")}
	market := order.Request{Symbol: "AAPL", Side: order.SideBuy, Type: order.TypeMarket, Quantity: dec("100")}

	// no slippage: exactly at the limit is accepted
	r := New(risk.NewDailyTracker(dec("10000"), risk.ModePaper), venue.NewPriceBook(prices), venue.NewSimulator(venue.DefaultSimConfig()))
	if _, _, err := r.RouteOrder(ctx, market); err != nil {
		t.Fatalf("order at the limit rejected: %v", err)
	}

	// 10 bps slippage reserves 10010
	cfg := venue.DefaultSimConfig()
	cfg.SlippageBps = dec("10")
	r = New(risk.NewDailyTracker(dec("10000"), risk.ModePaper), venue.NewPriceBook(prices), venue.NewSimulator(cfg))
	_, _, err := r.RouteOrder(ctx, market)
	if !risk.IsDailyLimit(err) || !strings.Contains(err.Error(), "10010") {
		t.Fatalf("err=%v, expected the padded hold to exceed the limit", err)
	}
	// limit orders are never padded
	if _, _, err := r.RouteOrder(ctx, limitOrder("AAPL", "100", "100")); err != nil {
		t.Fatalf("limit order at the limit rejected: %v", err)
	}
}
