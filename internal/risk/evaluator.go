package risk

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
)

// Rule names carried by Violation.
const (
	RuleSymbol         = "allowed_symbols"
	RuleVenue          = "allowed_venues"
	RuleQuantity       = "max_order_quantity"
	RuleReferencePrice = "reference_price"
	RuleNotional       = "max_order_notional"
)

// PriceLookup supplies reference prices for market orders sent without one.
type PriceLookup interface {
	Reference(symbol string) (decimal.Decimal, bool)
}

// Evaluate validates a normalized request against the static rules and returns its notional.
// It reads prices but never writes anything.
func Evaluate(req order.Request, rules Rules, prices PriceLookup) (Assessment, error) {
	if len(rules.AllowedSymbols) > 0 && !contains(rules.AllowedSymbols, req.Symbol) {
		return Assessment{}, &Violation{Rule: RuleSymbol, Reason: fmt.Sprintf("Symbol %s is not allowed", req.Symbol)}
	}
	if len(rules.AllowedVenues) > 0 && !contains(rules.AllowedVenues, req.Venue) {
		return Assessment{}, &Violation{Rule: RuleVenue, Reason: fmt.Sprintf("Venue %s is not allowed", req.Venue)}
	}
	if rules.MaxOrderQuantity.IsPositive() && req.Quantity.GreaterThan(rules.MaxOrderQuantity) {
		return Assessment{}, &Violation{
			Rule:   RuleQuantity,
			Reason: fmt.Sprintf("Quantity exceeds per-order limit: %s > %s", req.Quantity, rules.MaxOrderQuantity),
		}
	}

	price, ok := resolvePrice(req, prices)
	if !ok {
		return Assessment{}, &Violation{Rule: RuleReferencePrice, Reason: fmt.Sprintf("No reference price for %s", req.Symbol)}
	}

	notional := req.Quantity.Mul(price)
	if rules.MaxOrderNotional.IsPositive() && notional.GreaterThan(rules.MaxOrderNotional) {
		return Assessment{}, &Violation{
			Rule:   RuleNotional,
			Reason: fmt.Sprintf("Notional exceeds per-order limit: %s > %s", notional, rules.MaxOrderNotional),
		}
	}
	return Assessment{Price: price, Notional: notional}, nil
}

func resolvePrice(req order.Request, prices PriceLookup) (decimal.Decimal, bool) {
	if req.Price != nil && req.Price.IsPositive() {
		return *req.Price, true
	}
	if prices == nil {
		return decimal.Zero, false
	}
	p, ok := prices.Reference(req.Symbol)
	if !ok || !p.IsPositive() {
		return decimal.Zero, false
	}
	return p, true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
