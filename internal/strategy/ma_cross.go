package strategy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
)

// MACrossParams configures a moving average crossover. Fast and Slow name
// the indicator fields compared.
type MACrossParams struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Fast     string          `json:"fast,omitempty"`
	Slow     string          `json:"slow,omitempty"`
	Broker   string          `json:"broker,omitempty"`
	Venue    string          `json:"venue,omitempty"`
}

// MACross buys on a golden cross (fast moves above slow) and sells on a
// death cross. The first snapshot with both averages only seeds the state.
type MACross struct {
	p MACrossParams

	mu     sync.Mutex
	seeded bool
	above  bool
}

func NewMACross(p MACrossParams) (*MACross, error) {
	if p.Fast == "" {
		p.Fast = "sma_short"
	}
	if p.Slow == "" {
		p.Slow = "sma_long"
	}
	if p.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidParameters)
	}
	if !p.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidParameters)
	}
	if strings.EqualFold(p.Fast, p.Slow) {
		return nil, fmt.Errorf("%w: fast and slow must differ", ErrInvalidParameters)
	}
	return &MACross{p: p}, nil
}

func (s *MACross) GenerateSignals(_ context.Context, state MarketState) ([]Signal, error) {
	if !strings.EqualFold(s.p.Symbol, state.Symbol) {
		return nil, nil
	}
	fast, ok := state.Field(strings.ToLower(s.p.Fast))
	if !ok || fast <= 0 {
		return nil, nil
	}
	slow, ok := state.Field(strings.ToLower(s.p.Slow))
	if !ok || slow <= 0 {
		return nil, nil
	}

	above := fast > slow
	s.mu.Lock()
	crossed := s.seeded && above != s.above && fast != slow
	s.seeded = true
	if fast != slow {
		s.above = above
	}
	s.mu.Unlock()
	if !crossed {
		return nil, nil
	}

	side, label := order.SideSell, "death cross"
	if above {
		side, label = order.SideBuy, "golden cross"
	}
	return []Signal{{
		Symbol:   strings.ToUpper(s.p.Symbol),
		Side:     side,
		Type:     order.TypeMarket,
		Quantity: s.p.Quantity,
		Price:    priceOf(state.Price()),
		Broker:   s.p.Broker,
		Venue:    s.p.Venue,
		Note:     fmt.Sprintf("%s: %s %.2f vs %s %.2f", label, s.p.Fast, fast, s.p.Slow, slow),
	}}, nil
}
