package router

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/events"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/monitor"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/risk"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/venue"
)

// Option customizes a Router.
type Option func(*Router)

func WithRules(rules risk.Rules) Option {
	return func(r *Router) { r.rules = rules }
}

// WithLiveAdapter registers a broker adapter used when the tracker is in live mode.
func WithLiveAdapter(a venue.Adapter) Option {
	return func(r *Router) {
		if a != nil {
			r.live[a.Name()] = a
		}
	}
}

// DefaultLiveCollar is the live price band used when none is configured.
var DefaultLiveCollar = decimal.New(1, -2)

// WithLiveCollar sets the fractional price band around the reference price
// inside which live market and stop orders may fill. Negative values are ignored.
func WithLiveCollar(collar decimal.Decimal) Option {
	return func(r *Router) {
		if !collar.IsNegative() {
			r.liveCollar = collar
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *monitor.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

func WithBus(bus *events.Bus) Option {
	return func(r *Router) { r.bus = bus }
}

func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides order id generation.
func WithIDGenerator(next func() string) Option {
	return func(r *Router) {
		if next != nil {
			r.newID = next
		}
	}
}

func defaultID() string { return uuid.NewString() }
