package venue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
)

// Compile-time interface check.
var _ Adapter = (*AlpacaAdapter)(nil)

type orderPlacer interface {
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
}

// AlpacaAdapter forwards orders to the Alpaca trading API.
type AlpacaAdapter struct {
	client orderPlacer
	logger *slog.Logger
	now    func() time.Time
}

// NewAlpacaAdapter creates an adapter configured with the given credentials and endpoint.
func NewAlpacaAdapter(apiKey, apiSecret, baseURL string, logger *slog.Logger) *AlpacaAdapter {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})
	return newAlpacaAdapter(client, logger)
}

func newAlpacaAdapter(client orderPlacer, logger *slog.Logger) *AlpacaAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlpacaAdapter{client: client, logger: logger, now: time.Now}
}

// Name returns "alpaca".
func (a *AlpacaAdapter) Name() string { return "alpaca" }

type placeResult struct {
	order *alpaca.Order
	err   error
}

// Execute places o with Alpaca. Failures, including ctx expiry while the
// request is in flight, come back as *order.RouterClientError.
func (a *AlpacaAdapter) Execute(ctx context.Context, o order.Order, _ decimal.Decimal) (order.Execution, error) {
	if err := ctx.Err(); err != nil {
		return order.Execution{}, &order.RouterClientError{Op: "alpaca place order", Err: err}
	}

	req := alpaca.PlaceOrderRequest{
		Symbol:        o.Symbol,
		Qty:           &o.Quantity,
		Side:          alpaca.Side(o.Side),
		TimeInForce:   alpaca.Day,
		ClientOrderID: o.ID,
	}
	switch {
	case o.Type == order.TypeLimit:
		req.Type = alpaca.Limit
		req.LimitPrice = o.Price
	case o.Type == order.TypeStop && o.LimitPrice != nil:
		req.Type = alpaca.StopLimit
		req.StopPrice = o.Price
		req.LimitPrice = o.LimitPrice
	case o.Type == order.TypeStop:
		req.Type = alpaca.Stop
		req.StopPrice = o.Price
	case o.LimitPrice != nil:
		// collared market order
		req.Type = alpaca.Limit
		req.LimitPrice = o.LimitPrice
	default:
		req.Type = alpaca.Market
	}

	done := make(chan placeResult, 1)
	go func() {
		placed, err := a.client.PlaceOrder(req)
		done <- placeResult{order: placed, err: err}
	}()

	var res placeResult
	select {
	case <-ctx.Done():
		a.logger.Warn("alpaca place order abandoned", "order_id", o.ID, "error", ctx.Err())
		return order.Execution{}, &order.RouterClientError{Op: "alpaca place order", Err: ctx.Err()}
	case res = <-done:
	}

	if res.err != nil {
		rce := &order.RouterClientError{Op: "alpaca place order", Err: res.err}
		var apiErr *alpaca.APIError
		if errors.As(res.err, &apiErr) {
			rce.StatusCode = apiErr.StatusCode
			rce.Detail = apiErr.Message
		}
		return order.Execution{}, rce
	}
	if res.order == nil {
		return order.Execution{}, &order.RouterClientError{Op: "alpaca place order", Detail: "empty response"}
	}
	return a.toExecution(o, res.order), nil
}

func (a *AlpacaAdapter) toExecution(o order.Order, placed *alpaca.Order) order.Execution {
	exec := order.Execution{
		OrderID:     o.ID,
		Broker:      o.Broker,
		Venue:       o.Venue,
		Symbol:      o.Symbol,
		Side:        o.Side,
		Quantity:    o.Quantity,
		SubmittedAt: o.SubmittedAt,
		Fills:       []order.Fill{},
		Tags:        append(append([]string(nil), o.Tags...), "alpaca:"+placed.ID),
	}

	if placed.FilledQty.IsPositive() && placed.FilledAvgPrice != nil {
		ts := a.now().UTC()
		if placed.FilledAt != nil {
			ts = placed.FilledAt.UTC()
		}
		filled := decimal.Min(placed.FilledQty, o.Quantity)
		exec.Apply([]order.Fill{{
			ID:        uuid.NewString(),
			Quantity:  filled,
			Price:     *placed.FilledAvgPrice,
			Timestamp: ts,
		}})
	} else {
		exec.Status = order.StatusPending
	}

	switch strings.ToLower(placed.Status) {
	case "rejected", "canceled", "expired":
		if !exec.FilledQuantity.IsPositive() {
			exec.Status = order.StatusRejected
		}
	}
	return exec
}
