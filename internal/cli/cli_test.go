package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/api"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/events"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/pkg/config"
)

func startRouter(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	orders, err := buildRouter(cfg, slog.Default(), nil, events.NewBus())
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	ts := httptest.NewServer(api.NewRouterServer(orders, api.Options{}).Router)
	t.Cleanup(ts.Close)
	return ts
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd("test")
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "none.yaml")))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "order-router test") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestPlanCommand(t *testing.T) {
	ts := startRouter(t)
	t.Setenv("ROUTER_ENGINE_ROUTER_URL", ts.URL)

	out, err := runCmd(t, "plan", "--symbol", "aapl", "--side", "buy", "--type", "limit", "--quantity", "10", "--price", "190")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	var resp struct {
		Plan struct {
			Accepted bool    `json:"accepted"`
			Notional float64 `json:"notional"`
		} `json:"plan"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if !resp.Plan.Accepted || resp.Plan.Notional != 1900 {
		t.Fatalf("unexpected plan: %+v", resp.Plan)
	}
}

func TestExecuteCommand(t *testing.T) {
	ts := startRouter(t)
	t.Setenv("ROUTER_ENGINE_ROUTER_URL", ts.URL)

	dir := t.TempDir()
	strategies := writeFile(t, dir, "strategies.yaml", `
strategies:
  - id: dip
    type: custom
    enabled: true
    parameters:
      handler: threshold
      symbol: AAPL
      quantity: 2
      buy_below: 150
  - id: idle
    type: custom
    enabled: false
    parameters:
      handler: threshold
      quantity: 1
      buy_below: 150
`)
	market := writeFile(t, dir, "market.yaml", `
market:
  - symbol: AAPL
    last: 120
`)

	out, err := runCmd(t, "execute", "--market", market, "--strategies", strategies)
	if err != nil {
		t.Fatalf("execute: %v\n%s", err, out)
	}
	var resp struct {
		Results []struct {
			StrategyID string `json:"strategy_id"`
			Executions []struct {
				Status string `json:"status"`
			} `json:"executions"`
		} `json:"results"`
		State struct {
			TradesSubmitted int `json:"trades_submitted"`
		} `json:"state"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(resp.Results) != 1 || resp.Results[0].StrategyID != "dip" {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
	if len(resp.Results[0].Executions) != 1 || resp.Results[0].Executions[0].Status != "filled" {
		t.Fatalf("unexpected executions: %+v", resp.Results[0].Executions)
	}
	if resp.State.TradesSubmitted != 1 {
		t.Fatalf("trades_submitted=%d", resp.State.TradesSubmitted)
	}
}

func TestExecuteCommandReportsRouterFailure(t *testing.T) {
	ts := startRouter(t)
	url := ts.URL
	ts.Close()
	t.Setenv("ROUTER_ENGINE_ROUTER_URL", url)

	dir := t.TempDir()
	strategies := writeFile(t, dir, "strategies.yaml", `
strategies:
  - id: dip
    type: custom
    enabled: true
    parameters:
      handler: threshold
      quantity: 1
      buy_below: 150
`)
	market := writeFile(t, dir, "market.yaml", "market:\n  - symbol: AAPL\n    last: 120\n")

	out, err := runCmd(t, "execute", "--market", market, "--strategies", strategies)
	if err == nil {
		t.Fatalf("expected error, output %s", out)
	}
	if !strings.Contains(out, `"error"`) {
		t.Fatalf("expected the failure in the report: %s", out)
	}
}

func TestTokenCommand(t *testing.T) {
	if _, err := runCmd(t, "token"); err == nil {
		t.Fatalf("expected error without a secret")
	}
	t.Setenv("ROUTER_AUTH_JWT_SECRET", "s3cret")
	out, err := runCmd(t, "token", "--subject", "ops")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if strings.Count(strings.TrimSpace(out), ".") != 2 {
		t.Fatalf("output is not a JWT: %q", out)
	}
}

func TestBuildEngineWithSQLite(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.Engine.DBPath = filepath.Join(t.TempDir(), "engine.db")
	eng, err := buildEngine(context.Background(), cfg, slog.Default(), nil, events.NewBus())
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	defer eng.Close()

	recs, err := loadStrategies(filepath.Join(t.TempDir(), "missing.yaml"), slog.Default())
	if err != nil || len(recs) != 0 {
		t.Fatalf("missing file: recs=%v err=%v", recs, err)
	}
	list, err := eng.orch.List(context.Background())
	if err != nil || len(list) != 0 {
		t.Fatalf("list: %v %v", list, err)
	}
}
