package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/events"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/monitor"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/risk"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/router"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/venue"
)

func newTestRouterServer(t *testing.T, limit string, opts Options) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tracker := risk.NewDailyTracker(decimal.RequireFromString(limit), risk.ModePaper)
	prices := venue.NewPriceBook(map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(100)})
	registry := monitor.NewRegistry()
	metrics := monitor.NewMetrics(registry)
	if opts.Bus == nil {
		opts.Bus = events.NewBus()
	}
	opts.Registry = registry
	opts.Metrics = metrics

	orders := router.New(tracker, prices, venue.NewSimulator(venue.DefaultSimConfig()),
		router.WithMetrics(metrics),
		router.WithBus(opts.Bus),
	)
	server := NewRouterServer(orders, opts)
	ts := httptest.NewServer(server.Router)
	t.Cleanup(ts.Close)
	return ts
}

func doJSONRequest(t *testing.T, client *http.Client, method, url string, headers map[string]string, payload any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func getRaw(t *testing.T, client *http.Client, url string) []byte {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get %s status=%d body=%s", url, resp.StatusCode, body)
	}
	return body
}

func orderPayload(qty, price float64) map[string]any {
	return map[string]any{
		"broker":     "paper",
		"venue":      "sim",
		"symbol":     "AAPL",
		"side":       "buy",
		"order_type": "limit",
		"quantity":   qty,
		"price":      price,
	}
}
