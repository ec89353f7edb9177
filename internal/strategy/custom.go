package strategy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
)

// HandlerFunc is compiled-in strategy code selected by name from a Record.
type HandlerFunc func(ctx context.Context, state MarketState, params map[string]any) ([]Signal, error)

var (
	handlersMu sync.RWMutex
	handlers   = map[string]HandlerFunc{
		"threshold": thresholdHandler,
	}
)

// RegisterHandler makes fn available to custom strategies under name.
func RegisterHandler(name string, fn HandlerFunc) {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	handlers[strings.ToLower(name)] = fn
}

// Handlers lists registered handler names.
func Handlers() []string {
	handlersMu.RLock()
	defer handlersMu.RUnlock()
	names := make([]string, 0, len(handlers))
	for n := range handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Custom runs a registered handler with the record's parameters.
type Custom struct {
	name   string
	fn     HandlerFunc
	params map[string]any
}

func NewCustom(params map[string]any) (*Custom, error) {
	name, _ := params["handler"].(string)
	if name == "" {
		return nil, fmt.Errorf("%w: handler is required", ErrInvalidParameters)
	}
	handlersMu.RLock()
	fn, ok := handlers[strings.ToLower(name)]
	handlersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no handler registered as %q", ErrInvalidParameters, name)
	}
	return &Custom{name: name, fn: fn, params: params}, nil
}

func (c *Custom) GenerateSignals(ctx context.Context, state MarketState) ([]Signal, error) {
	signals, err := c.fn(ctx, state, c.params)
	if err != nil {
		return nil, fmt.Errorf("custom handler %s: %w", c.name, err)
	}
	return signals, nil
}

type thresholdParams struct {
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	BuyBelow  float64         `json:"buy_below"`
	SellAbove float64         `json:"sell_above"`
}

// thresholdHandler buys under one price and sells over another.
func thresholdHandler(_ context.Context, state MarketState, params map[string]any) ([]Signal, error) {
	var p thresholdParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if !p.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidParameters)
	}
	if p.Symbol != "" && !strings.EqualFold(p.Symbol, state.Symbol) {
		return nil, nil
	}
	price := state.Price()
	var side order.Side
	switch {
	case price <= 0:
		return nil, nil
	case p.BuyBelow > 0 && price < p.BuyBelow:
		side = order.SideBuy
	case p.SellAbove > 0 && price > p.SellAbove:
		side = order.SideSell
	default:
		return nil, nil
	}
	return []Signal{{
		Symbol:   strings.ToUpper(state.Symbol),
		Side:     side,
		Type:     order.TypeMarket,
		Quantity: p.Quantity,
		Price:    priceOf(price),
		Note:     "threshold crossed",
	}}, nil
}
