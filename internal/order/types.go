package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Quantities and prices travel as JSON numbers on every HTTP surface.
	decimal.MarshalJSONWithoutQuotes = true
}

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Type is the order type accepted by the router.
type Type string

const (
	TypeMarket Type = "market"
	TypeLimit  Type = "limit"
	TypeStop   Type = "stop"
)

// Status is the lifecycle status of an order or execution.
type Status string

const (
	StatusPending         Status = "pending"
	StatusFilled          Status = "filled"
	StatusPartiallyFilled Status = "partially_filled"
	StatusRejected        Status = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusFilled || s == StatusRejected
}

// Request is an order submission as received from a caller.
type Request struct {
	Broker        string           `json:"broker"`
	Venue         string           `json:"venue"`
	Symbol        string           `json:"symbol"`
	Side          Side             `json:"side"`
	Type          Type             `json:"order_type"`
	Quantity      decimal.Decimal  `json:"quantity"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	ClientOrderID string           `json:"client_order_id,omitempty"`
	Tags          []string         `json:"tags,omitempty"`
}

// Normalize returns a copy with canonical casing and defaults applied.
func (r Request) Normalize() Request {
	r.Broker = strings.ToLower(strings.TrimSpace(r.Broker))
	r.Venue = strings.ToLower(strings.TrimSpace(r.Venue))
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	r.Side = Side(strings.ToLower(strings.TrimSpace(string(r.Side))))
	r.Type = Type(strings.ToLower(strings.TrimSpace(string(r.Type))))
	if r.Type == "" {
		r.Type = TypeMarket
	}
	if r.Broker == "" {
		r.Broker = "paper"
	}
	if r.Venue == "" {
		r.Venue = "sim"
	}
	return r
}

// Order is the router's record of an accepted submission.
type Order struct {
	ID       string           `json:"order_id"`
	Broker   string           `json:"broker"`
	Venue    string           `json:"venue"`
	Symbol   string           `json:"symbol"`
	Side     Side             `json:"side"`
	Type     Type             `json:"order_type"`
	Quantity decimal.Decimal  `json:"quantity"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	// LimitPrice is the worst fill price the router accepts for a live
	// market or stop order; the broker receives it as a limit.
	LimitPrice  *decimal.Decimal `json:"limit_price,omitempty"`
	Status      Status           `json:"status"`
	SubmittedAt time.Time        `json:"submitted_at"`
	Tags        []string         `json:"tags,omitempty"`
}

// New builds a pending order from a normalized request.
func New(id string, req Request, now time.Time) Order {
	o := Order{
		ID:          id,
		Broker:      req.Broker,
		Venue:       req.Venue,
		Symbol:      req.Symbol,
		Side:        req.Side,
		Type:        req.Type,
		Quantity:    req.Quantity,
		Status:      StatusPending,
		SubmittedAt: now.UTC(),
		Tags:        append([]string(nil), req.Tags...),
	}
	if req.Price != nil {
		p := *req.Price
		o.Price = &p
	}
	return o
}

// Fill is one (partial or full) execution at a single price.
type Fill struct {
	ID        string          `json:"fill_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// Execution is the outcome of routing one order.
type Execution struct {
	OrderID        string           `json:"order_id"`
	Status         Status           `json:"status"`
	Broker         string           `json:"broker"`
	Venue          string           `json:"venue"`
	Symbol         string           `json:"symbol"`
	Side           Side             `json:"side"`
	Quantity       decimal.Decimal  `json:"quantity"`
	FilledQuantity decimal.Decimal  `json:"filled_quantity"`
	AvgPrice       *decimal.Decimal `json:"avg_price"`
	SubmittedAt    time.Time        `json:"submitted_at"`
	Fills          []Fill           `json:"fills"`
	Tags           []string         `json:"tags"`
}

// Notional returns the executed cash value, zero when nothing filled.
func (e Execution) Notional() decimal.Decimal {
	if e.AvgPrice == nil || !e.FilledQuantity.IsPositive() {
		return decimal.Zero
	}
	return e.FilledQuantity.Mul(*e.AvgPrice)
}

// Apply sets the filled quantity, average price and status from a set of fills.
func (e *Execution) Apply(fills []Fill) {
	e.Fills = fills
	filled := decimal.Zero
	value := decimal.Zero
	for _, f := range fills {
		filled = filled.Add(f.Quantity)
		value = value.Add(f.Quantity.Mul(f.Price))
	}
	e.FilledQuantity = filled
	e.AvgPrice = nil
	switch {
	case filled.IsPositive() && filled.GreaterThanOrEqual(e.Quantity):
		avg := value.Div(filled)
		e.AvgPrice = &avg
		e.Status = StatusFilled
	case filled.IsPositive():
		avg := value.Div(filled)
		e.AvgPrice = &avg
		e.Status = StatusPartiallyFilled
	default:
		e.Status = StatusPending
	}
}
