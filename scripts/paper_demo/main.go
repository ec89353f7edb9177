package main

import (
	"context"
	"errors"
	"log"

	"github.com/shopspring/decimal"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/risk"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/router"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/venue"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/pkg/logging"
)

// paper_demo routes a few orders through an in-process router on the paper
// venue. It does not open any port or contact a broker.
//
// Usage:
//   go run ./scripts/paper_demo
//
// It will:
//   1) Fill a limit order within every limit.
//   2) Reject an order over the per-order notional ceiling.
//   3) Reject an order that would break the daily notional limit.
//   4) Partially fill a limit order and commit only the filled notional.

func main() {
	logger := logging.NewLogger("info", "paper-demo", "local")
	ctx := context.Background()

	sim := venue.NewSimulator(venue.SimConfig{
		FillModel:        venue.FillPartial,
		PartialFillRatio: decimal.RequireFromString("0.5"),
	})
	tracker := risk.NewDailyTracker(decimal.NewFromInt(30_000), risk.ModePaper)
	prices := venue.NewPriceBook(map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(190)})
	r := router.New(tracker, prices, sim, router.WithLogger(logger))

	submit := func(label string, req order.Request) {
		exec, _, err := r.RouteOrder(ctx, req)
		var violation *risk.Violation
		var limitErr *risk.DailyLimitError
		switch {
		case errors.As(err, &violation):
			log.Printf("%s: rejected by risk rule %s: %v", label, violation.Rule, err)
		case errors.As(err, &limitErr):
			log.Printf("%s: rejected by daily limit: %v", label, err)
		case err != nil:
			log.Printf("%s: failed: %v", label, err)
		default:
			log.Printf("%s: %s %s/%s @ %v", label, exec.Status, exec.FilledQuantity, exec.Quantity, exec.AvgPrice)
		}
		st := r.State()
		log.Printf("    daily notional %s / %s", st.CurrentNotional, st.Limit)
	}

	price := decimal.NewFromInt(100)
	submit("partial limit", order.Request{Symbol: "AAPL", Side: order.SideBuy, Type: order.TypeLimit, Quantity: decimal.NewFromInt(200), Price: &price})
	submit("market", order.Request{Symbol: "AAPL", Side: order.SideBuy, Quantity: decimal.NewFromInt(10)})

	big := decimal.NewFromInt(200_000)
	submit("over ceiling", order.Request{Symbol: "AAPL", Side: order.SideBuy, Type: order.TypeLimit, Quantity: decimal.RequireFromString("0.6"), Price: &big})
	submit("over daily limit", order.Request{Symbol: "AAPL", Side: order.SideBuy, Type: order.TypeLimit, Quantity: decimal.NewFromInt(300), Price: &price})

	log.Printf("orders logged: %d", len(r.OrdersLog()))
}
