package strategy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
)

// RSIParams configures an overbought/oversold strategy.
type RSIParams struct {
	Symbol     string          `json:"symbol"`
	Quantity   decimal.Decimal `json:"quantity"`
	Field      string          `json:"field,omitempty"`
	Oversold   float64         `json:"oversold,omitempty"`
	Overbought float64         `json:"overbought,omitempty"`
	Broker     string          `json:"broker,omitempty"`
	Venue      string          `json:"venue,omitempty"`
}

// RSIReversion buys when the RSI indicator drops below Oversold and sells
// when it rises above Overbought. A zone only fires on entry: staying
// oversold across several snapshots yields one BUY.
type RSIReversion struct {
	p RSIParams

	mu   sync.Mutex
	zone order.Side
}

func NewRSIReversion(p RSIParams) (*RSIReversion, error) {
	if p.Field == "" {
		p.Field = "rsi"
	}
	if p.Oversold == 0 {
		p.Oversold = 30
	}
	if p.Overbought == 0 {
		p.Overbought = 70
	}
	if p.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidParameters)
	}
	if !p.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidParameters)
	}
	if p.Oversold < 0 || p.Overbought > 100 || p.Oversold >= p.Overbought {
		return nil, fmt.Errorf("%w: need 0 <= oversold < overbought <= 100", ErrInvalidParameters)
	}
	return &RSIReversion{p: p}, nil
}

func (s *RSIReversion) GenerateSignals(_ context.Context, state MarketState) ([]Signal, error) {
	if !strings.EqualFold(s.p.Symbol, state.Symbol) {
		return nil, nil
	}
	rsi, ok := state.Field(strings.ToLower(s.p.Field))
	if !ok {
		return nil, nil
	}

	var zone order.Side
	switch {
	case rsi < s.p.Oversold:
		zone = order.SideBuy
	case rsi > s.p.Overbought:
		zone = order.SideSell
	}

	s.mu.Lock()
	prev := s.zone
	s.zone = zone
	s.mu.Unlock()
	if zone == "" || zone == prev {
		return nil, nil
	}

	return []Signal{{
		Symbol:   strings.ToUpper(s.p.Symbol),
		Side:     zone,
		Type:     order.TypeMarket,
		Quantity: s.p.Quantity,
		Price:    priceOf(state.Price()),
		Broker:   s.p.Broker,
		Venue:    s.p.Venue,
		Note:     fmt.Sprintf("%s %.2f outside [%g, %g]", s.p.Field, rsi, s.p.Oversold, s.p.Overbought),
	}}, nil
}
