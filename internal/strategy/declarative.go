package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
)

// Condition compares one market field against a constant.
type Condition struct {
	Field    string  `json:"field"`
	Operator string  `json:"operator"`
	Value    float64 `json:"value"`
}

func (c Condition) matches(state MarketState) bool {
	v, ok := state.Field(strings.ToLower(c.Field))
	if !ok {
		return false
	}
	switch c.Operator {
	case "gt", ">":
		return v > c.Value
	case "gte", ">=":
		return v >= c.Value
	case "lt", "<":
		return v < c.Value
	case "lte", "<=":
		return v <= c.Value
	case "eq", "==":
		return v == c.Value
	default:
		return false
	}
}

// Action is the order emitted when the rule matches.
type Action struct {
	Side      order.Side       `json:"side"`
	Quantity  decimal.Decimal  `json:"quantity"`
	OrderType order.Type       `json:"order_type"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Broker    string           `json:"broker,omitempty"`
	Venue     string           `json:"venue,omitempty"`
}

// DeclarativeParams configures a rule-matching strategy.
type DeclarativeParams struct {
	Symbol     string      `json:"symbol"`
	Match      string      `json:"match"`
	Conditions []Condition `json:"conditions"`
	Action     Action      `json:"action"`
}

// Declarative emits its action whenever its conditions hold.
type Declarative struct {
	p DeclarativeParams
}

func NewDeclarative(p DeclarativeParams) (*Declarative, error) {
	p.Match = strings.ToLower(p.Match)
	if p.Match == "" {
		p.Match = "all"
	}
	if p.Match != "all" && p.Match != "any" {
		return nil, fmt.Errorf("%w: match must be all or any", ErrInvalidParameters)
	}
	if len(p.Conditions) == 0 {
		return nil, fmt.Errorf("%w: at least one condition is required", ErrInvalidParameters)
	}
	for _, c := range p.Conditions {
		switch c.Operator {
		case "gt", ">", "gte", ">=", "lt", "<", "lte", "<=", "eq", "==":
		default:
			return nil, fmt.Errorf("%w: unsupported operator %q", ErrInvalidParameters, c.Operator)
		}
	}
	p.Action.Side = order.Side(strings.ToLower(string(p.Action.Side)))
	if p.Action.Side != order.SideBuy && p.Action.Side != order.SideSell {
		return nil, fmt.Errorf("%w: action side must be buy or sell", ErrInvalidParameters)
	}
	if !p.Action.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: action quantity must be positive", ErrInvalidParameters)
	}
	if p.Action.OrderType == "" {
		p.Action.OrderType = order.TypeMarket
	}
	return &Declarative{p: p}, nil
}

func (d *Declarative) GenerateSignals(_ context.Context, state MarketState) ([]Signal, error) {
	if d.p.Symbol != "" && !strings.EqualFold(d.p.Symbol, state.Symbol) {
		return nil, nil
	}
	if !d.matches(state) {
		return nil, nil
	}

	price := d.p.Action.Price
	if price == nil {
		price = priceOf(state.Price())
	}
	symbol := d.p.Symbol
	if symbol == "" {
		symbol = state.Symbol
	}
	return []Signal{{
		Symbol:   symbol,
		Side:     d.p.Action.Side,
		Type:     d.p.Action.OrderType,
		Quantity: d.p.Action.Quantity,
		Price:    price,
		Broker:   d.p.Action.Broker,
		Venue:    d.p.Action.Venue,
		Note:     "declarative rule matched",
	}}, nil
}

func (d *Declarative) matches(state MarketState) bool {
	if d.p.Match == "any" {
		for _, c := range d.p.Conditions {
			if c.matches(state) {
				return true
			}
		}
		return false
	}
	for _, c := range d.p.Conditions {
		if !c.matches(state) {
			return false
		}
	}
	return true
}
