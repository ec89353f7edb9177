package strategy

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
)

// Range is a high/low band, such as the opening range of a session.
type Range struct {
	High float64 `json:"high" yaml:"high"`
	Low  float64 `json:"low" yaml:"low"`
}

// MarketState is the snapshot a strategy evaluates.
type MarketState struct {
	Symbol       string             `json:"symbol" yaml:"symbol"`
	Timestamp    time.Time          `json:"timestamp" yaml:"timestamp"`
	Last         float64            `json:"last" yaml:"last"`
	Open         float64            `json:"open" yaml:"open"`
	High         float64            `json:"high" yaml:"high"`
	Low          float64            `json:"low" yaml:"low"`
	Close        float64            `json:"close" yaml:"close"`
	Volume       float64            `json:"volume" yaml:"volume"`
	Indicators   map[string]float64 `json:"indicators,omitempty" yaml:"indicators"`
	OpeningRange *Range             `json:"opening_range,omitempty" yaml:"opening_range"`
}

// Price returns the last trade price, falling back to the close.
func (m MarketState) Price() float64 {
	if m.Last > 0 {
		return m.Last
	}
	return m.Close
}

// Field looks up a named numeric field or indicator.
func (m MarketState) Field(name string) (float64, bool) {
	switch name {
	case "last", "price":
		return m.Price(), m.Price() > 0
	case "open":
		return m.Open, true
	case "high":
		return m.High, true
	case "low":
		return m.Low, true
	case "close":
		return m.Close, true
	case "volume":
		return m.Volume, true
	}
	v, ok := m.Indicators[name]
	return v, ok
}

// Signal is a strategy's intent to trade.
type Signal struct {
	StrategyID string           `json:"strategy_id"`
	Symbol     string           `json:"symbol"`
	Side       order.Side       `json:"side"`
	Type       order.Type       `json:"order_type"`
	Quantity   decimal.Decimal  `json:"quantity"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	Broker     string           `json:"broker,omitempty"`
	Venue      string           `json:"venue,omitempty"`
	Note       string           `json:"note,omitempty"`
}

// Request translates the signal into an order request tagged with its strategy.
func (s Signal) Request() order.Request {
	req := order.Request{
		Broker:   s.Broker,
		Venue:    s.Venue,
		Symbol:   s.Symbol,
		Side:     s.Side,
		Type:     s.Type,
		Quantity: s.Quantity,
		Price:    s.Price,
	}
	if s.StrategyID != "" {
		req.Tags = []string{"strategy:" + s.StrategyID}
	}
	return req
}

// Strategy generates signals from market state. Implementations must be safe
// for concurrent use.
type Strategy interface {
	GenerateSignals(ctx context.Context, state MarketState) ([]Signal, error)
}

// Status is the lifecycle status of a registered strategy.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	StatusError   Status = "ERROR"
)

// Record is a registered strategy and its execution status.
type Record struct {
	ID         string         `json:"id" yaml:"id"`
	Name       string         `json:"name" yaml:"name"`
	Type       string         `json:"type" yaml:"type"`
	Parameters map[string]any `json:"parameters" yaml:"parameters"`
	Enabled    bool           `json:"enabled" yaml:"enabled"`
	Status     Status         `json:"status" yaml:"-"`
	LastError  string         `json:"last_error,omitempty" yaml:"-"`
	Metadata   map[string]any `json:"metadata,omitempty" yaml:"metadata"`
	CreatedAt  time.Time      `json:"created_at" yaml:"-"`
	UpdatedAt  time.Time      `json:"updated_at" yaml:"-"`
}

func priceOf(v float64) *decimal.Decimal {
	if v <= 0 {
		return nil
	}
	d := decimal.NewFromFloat(v)
	return &d
}
