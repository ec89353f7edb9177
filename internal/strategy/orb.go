package strategy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
)

// ORBParams configures an opening-range breakout.
type ORBParams struct {
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	BufferBps float64         `json:"buffer_bps"`
	Broker    string          `json:"broker,omitempty"`
	Venue     string          `json:"venue,omitempty"`
}

// OpeningRangeBreakout buys above the opening range high and sells below the
// low, at most once per side per trading day.
type OpeningRangeBreakout struct {
	p ORBParams

	mu    sync.Mutex
	fired map[string]struct{}
}

func NewOpeningRangeBreakout(p ORBParams) (*OpeningRangeBreakout, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidParameters)
	}
	if !p.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidParameters)
	}
	if p.BufferBps < 0 {
		return nil, fmt.Errorf("%w: buffer_bps must not be negative", ErrInvalidParameters)
	}
	return &OpeningRangeBreakout{p: p, fired: make(map[string]struct{})}, nil
}

func (s *OpeningRangeBreakout) GenerateSignals(_ context.Context, state MarketState) ([]Signal, error) {
	if !strings.EqualFold(s.p.Symbol, state.Symbol) || state.OpeningRange == nil {
		return nil, nil
	}
	rng := state.OpeningRange
	if rng.High <= 0 || rng.Low <= 0 || rng.Low > rng.High {
		return nil, nil
	}
	price := state.Price()
	if price <= 0 {
		return nil, nil
	}

	buf := s.p.BufferBps / 10_000
	var side order.Side
	switch {
	case price > rng.High*(1+buf):
		side = order.SideBuy
	case price < rng.Low*(1-buf):
		side = order.SideSell
	default:
		return nil, nil
	}

	ts := state.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	key := ts.UTC().Format("2006-01-02") + "|" + string(side)
	s.mu.Lock()
	_, done := s.fired[key]
	if !done {
		s.fired[key] = struct{}{}
	}
	s.mu.Unlock()
	if done {
		return nil, nil
	}

	return []Signal{{
		Symbol:   strings.ToUpper(s.p.Symbol),
		Side:     side,
		Type:     order.TypeMarket,
		Quantity: s.p.Quantity,
		Price:    priceOf(price),
		Broker:   s.p.Broker,
		Venue:    s.p.Venue,
		Note:     fmt.Sprintf("opening range breakout %s [%g, %g]", side, rng.Low, rng.High),
	}}, nil
}
