package monitor

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	registry := NewRegistry()
	m := NewMetrics(registry)

	m.ObserveStage("ROUTED")
	m.ObserveStage("ROUTED")
	m.ObserveCommit(20000, 20000)
	m.ObserveStrategyOrder("s-1", errors.New("boom"))

	if got := testutil.ToFloat64(m.RouterStages.WithLabelValues("ROUTED")); got != 2 {
		t.Fatalf("router_stage_total{ROUTED}=%v, expected 2", got)
	}
	if got := testutil.ToFloat64(m.DailyNotional); got != 20000 {
		t.Fatalf("router_daily_notional=%v, expected 20000", got)
	}
	if got := testutil.ToFloat64(m.StrategyExecutions.WithLabelValues("s-1", "error")); got != 1 {
		t.Fatalf("engine_strategy_orders_total=%v, expected 1", got)
	}

	m.ObserveRequest("GET", "/orders/log", 200, time.Millisecond)
	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatalf("scrape output missing http_requests_total")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveStage("RECEIVED")
	m.ObserveCommit(1, 1)
	m.ObserveVenue("paper", nil, time.Millisecond)
	m.ObservePublish("topic", nil)
	m.ObserveRequest("GET", "/", 200, time.Millisecond)
}
