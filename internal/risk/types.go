package risk

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Rules are the static per-order constraints applied before any state is touched.
// Zero or negative ceilings mean unlimited; empty allow-lists allow everything.
type Rules struct {
	MaxOrderNotional decimal.Decimal `json:"max_order_notional"`
	MaxOrderQuantity decimal.Decimal `json:"max_order_quantity"`
	AllowedSymbols   []string        `json:"allowed_symbols,omitempty"`
	AllowedVenues    []string        `json:"allowed_venues,omitempty"`
}

// DefaultRules returns the per-order ceiling used when nothing is configured.
func DefaultRules() Rules {
	return Rules{
		MaxOrderNotional: decimal.NewFromInt(100_000),
	}
}

// Assessment is the outcome of a passed evaluation.
type Assessment struct {
	Price    decimal.Decimal `json:"price"`
	Notional decimal.Decimal `json:"notional"`
}

// Mode is the trading mode the tracker is bound to.
type Mode string

const (
	ModePaper Mode = "paper"
	ModeLive  Mode = "live"
)

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePaper:
		return ModePaper, nil
	case ModeLive:
		return ModeLive, nil
	default:
		return "", fmt.Errorf("unknown trading mode %q", s)
	}
}

// State is a point-in-time view of the daily notional tracker.
type State struct {
	TradingDay       string          `json:"trading_day"`
	CurrentNotional  decimal.Decimal `json:"current_notional"`
	ReservedNotional decimal.Decimal `json:"reserved_notional"`
	Limit            decimal.Decimal `json:"limit"`
	Mode             Mode            `json:"mode"`
	TradesSubmitted  int             `json:"trades_submitted"`
}

// Update carries the optional fields of an update_state call.
type Update struct {
	Limit           *decimal.Decimal `json:"limit,omitempty"`
	Mode            *Mode            `json:"mode,omitempty"`
	TradesSubmitted *int             `json:"trades_submitted,omitempty"`
}
