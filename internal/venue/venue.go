// Package venue turns accepted orders into execution reports, either by
// simulating fills on the paper venue or by forwarding to a live broker.
package venue

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
)

// Adapter executes a single accepted order. Implementations make exactly one
// attempt; retries are the caller's concern.
type Adapter interface {
	Name() string
	Execute(ctx context.Context, o order.Order, price decimal.Decimal) (order.Execution, error)
}

// SlippageBounded is implemented by adapters that can bound how far a fill
// may move against the reference price, as a fraction.
type SlippageBounded interface {
	MaxSlippage() decimal.Decimal
}

// PriceBook holds the last known price per symbol.
type PriceBook struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewPriceBook seeds a book with reference prices.
func NewPriceBook(seed map[string]decimal.Decimal) *PriceBook {
	pb := &PriceBook{prices: make(map[string]decimal.Decimal, len(seed))}
	for sym, p := range seed {
		pb.prices[normalizeSymbol(sym)] = p
	}
	return pb
}

// Reference returns the last known price for symbol.
func (pb *PriceBook) Reference(symbol string) (decimal.Decimal, bool) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	p, ok := pb.prices[normalizeSymbol(symbol)]
	return p, ok
}

// Set records price as the latest price for symbol. Non-positive prices are ignored.
func (pb *PriceBook) Set(symbol string, price decimal.Decimal) {
	if !price.IsPositive() {
		return
	}
	pb.mu.Lock()
	pb.prices[normalizeSymbol(symbol)] = price
	pb.mu.Unlock()
}

// Snapshot copies the book.
func (pb *PriceBook) Snapshot() map[string]decimal.Decimal {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(pb.prices))
	for k, v := range pb.prices {
		out[k] = v
	}
	return out
}
