package venue

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
)

// FillModel selects how limit orders are filled on the paper venue.
type FillModel string

const (
	FillFull    FillModel = "full"
	FillPartial FillModel = "partial"
)

var bpsDivisor = decimal.NewFromInt(10_000)

// SimConfig controls the realism of the paper venue.
type SimConfig struct {
	FillModel        FillModel
	PartialFillRatio decimal.Decimal // fraction of a limit order filled under FillPartial
	SlippageBps      decimal.Decimal // adverse slippage applied to market and stop fills
	Seed             int64           // non-zero enables random slippage in [0, SlippageBps]
	LatencyMin       time.Duration
	LatencyMax       time.Duration
}

// DefaultSimConfig fills everything in full at the reference price.
func DefaultSimConfig() SimConfig {
	return SimConfig{FillModel: FillFull, PartialFillRatio: decimal.RequireFromString("0.5")}
}

// Simulator is the paper venue. It never contacts an exchange.
type Simulator struct {
	cfg SimConfig
	now func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator creates a paper venue.
func NewSimulator(cfg SimConfig) *Simulator {
	if cfg.FillModel == "" {
		cfg.FillModel = FillFull
	}
	if !cfg.PartialFillRatio.IsPositive() || cfg.PartialFillRatio.GreaterThan(decimal.NewFromInt(1)) {
		cfg.PartialFillRatio = decimal.RequireFromString("0.5")
	}
	if cfg.LatencyMax > 0 && cfg.LatencyMin > cfg.LatencyMax {
		cfg.LatencyMin, cfg.LatencyMax = cfg.LatencyMax, cfg.LatencyMin
	}
	s := &Simulator{cfg: cfg, now: time.Now}
	if cfg.Seed != 0 {
		s.rng = rand.New(rand.NewSource(cfg.Seed))
	}
	return s
}

// ParseFillModel parses a fill model name.
func ParseFillModel(s string) (FillModel, error) {
	switch FillModel(strings.ToLower(strings.TrimSpace(s))) {
	case "", FillFull:
		return FillFull, nil
	case FillPartial:
		return FillPartial, nil
	default:
		return "", fmt.Errorf("unknown fill model %q", s)
	}
}

func (s *Simulator) Name() string { return "paper" }

// MaxSlippage returns the largest adverse price move as a fraction.
func (s *Simulator) MaxSlippage() decimal.Decimal {
	return s.cfg.SlippageBps.Div(bpsDivisor)
}

// Execute fills o against price after the configured gateway latency.
func (s *Simulator) Execute(ctx context.Context, o order.Order, price decimal.Decimal) (order.Execution, error) {
	if err := s.wait(ctx); err != nil {
		return order.Execution{}, err
	}
	return s.fill(o, price, s.slippage()), nil
}

// Preview returns the fill the simulator expects to produce, using the
// worst-case slippage and no latency.
func (s *Simulator) Preview(o order.Order, price decimal.Decimal) order.Execution {
	return s.fill(o, price, s.MaxSlippage())
}

func (s *Simulator) fill(o order.Order, price, slip decimal.Decimal) order.Execution {
	exec := order.Execution{
		OrderID:     o.ID,
		Broker:      o.Broker,
		Venue:       o.Venue,
		Symbol:      o.Symbol,
		Side:        o.Side,
		Quantity:    o.Quantity,
		SubmittedAt: o.SubmittedAt,
		Tags:        append(append([]string(nil), o.Tags...), "paper"),
	}

	px := price
	qty := o.Quantity
	switch o.Type {
	case order.TypeLimit:
		if s.cfg.FillModel == FillPartial {
			qty = o.Quantity.Mul(s.cfg.PartialFillRatio)
		}
	default:
		if slip.IsPositive() {
			one := decimal.NewFromInt(1)
			if o.Side == order.SideBuy {
				px = price.Mul(one.Add(slip))
			} else {
				px = price.Mul(one.Sub(slip))
			}
		}
	}

	var fills []order.Fill
	if qty.IsPositive() {
		fills = []order.Fill{{
			ID:        uuid.NewString(),
			Quantity:  qty,
			Price:     px,
			Timestamp: s.now().UTC(),
		}}
	}
	exec.Apply(fills)
	if exec.Fills == nil {
		exec.Fills = []order.Fill{}
	}
	return exec
}

func (s *Simulator) slippage() decimal.Decimal {
	max := s.MaxSlippage()
	if !max.IsPositive() || s.rng == nil {
		return max
	}
	s.mu.Lock()
	noise := s.rng.Float64()
	s.mu.Unlock()
	return max.Mul(decimal.NewFromFloat(noise))
}

func (s *Simulator) wait(ctx context.Context) error {
	if s.cfg.LatencyMax <= 0 {
		return ctx.Err()
	}
	delay := s.cfg.LatencyMin
	if span := s.cfg.LatencyMax - s.cfg.LatencyMin; span > 0 && s.rng != nil {
		s.mu.Lock()
		delay += time.Duration(s.rng.Int63n(int64(span) + 1))
		s.mu.Unlock()
	}
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
