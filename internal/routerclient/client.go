// Package routerclient talks to the order router over HTTP.
package routerclient

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/risk"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/router"
)

// Client submits orders to an order router. Every failure is an *order.RouterClientError.
type Client interface {
	SubmitOrder(ctx context.Context, req order.Request) (order.Execution, error)
}

// Options configures HTTPClient.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Token   string
}

// HTTPClient is the resty-backed Client. It never retries.
type HTTPClient struct {
	client *resty.Client
}

var _ Client = (*HTTPClient)(nil)

type errorBody struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

type planEnvelope struct {
	Plan router.Plan `json:"plan"`
}

// New creates an HTTPClient for the router at opts.BaseURL.
func New(opts Options) *HTTPClient {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	if opts.Token != "" {
		client.SetAuthToken(opts.Token)
	}
	return &HTTPClient{client: client}
}

// SubmitOrder posts req to /orders.
func (c *HTTPClient) SubmitOrder(ctx context.Context, req order.Request) (order.Execution, error) {
	var exec order.Execution
	r := c.client.R().SetContext(ctx).SetBody(req).SetResult(&exec)
	if req.ClientOrderID != "" {
		r.SetHeader("Idempotency-Key", req.ClientOrderID)
	}
	if err := c.do(r, http.MethodPost, "/orders", "submit order"); err != nil {
		return order.Execution{}, err
	}
	return exec, nil
}

// PreviewPlan posts req to /plans.
func (c *HTTPClient) PreviewPlan(ctx context.Context, req order.Request) (router.Plan, error) {
	var env planEnvelope
	r := c.client.R().SetContext(ctx).SetBody(req).SetResult(&env)
	if err := c.do(r, http.MethodPost, "/plans", "preview plan"); err != nil {
		return router.Plan{}, err
	}
	return env.Plan, nil
}

// OrdersLog fetches /orders/log.
func (c *HTTPClient) OrdersLog(ctx context.Context) ([]order.Order, error) {
	var orders []order.Order
	r := c.client.R().SetContext(ctx).SetResult(&orders)
	if err := c.do(r, http.MethodGet, "/orders/log", "orders log"); err != nil {
		return nil, err
	}
	return orders, nil
}

// Executions fetches /executions.
func (c *HTTPClient) Executions(ctx context.Context) ([]order.Execution, error) {
	var execs []order.Execution
	r := c.client.R().SetContext(ctx).SetResult(&execs)
	if err := c.do(r, http.MethodGet, "/executions", "executions"); err != nil {
		return nil, err
	}
	return execs, nil
}

// State fetches /state.
func (c *HTTPClient) State(ctx context.Context) (risk.State, error) {
	var st risk.State
	r := c.client.R().SetContext(ctx).SetResult(&st)
	if err := c.do(r, http.MethodGet, "/state", "state"); err != nil {
		return risk.State{}, err
	}
	return st, nil
}

func (c *HTTPClient) do(r *resty.Request, method, path, op string) error {
	var body errorBody
	r.SetError(&body)
	resp, err := r.Execute(method, path)
	if err != nil {
		return &order.RouterClientError{Op: op, Err: err}
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		detail := body.Detail
		if detail == "" {
			detail = strings.TrimSpace(string(resp.Body()))
		}
		return &order.RouterClientError{Op: op, StatusCode: resp.StatusCode(), Detail: detail}
	}
	return nil
}
