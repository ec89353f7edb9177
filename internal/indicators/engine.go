// Package indicators derives rolling indicators from the prices a strategy sees.
package indicators

import (
	"strings"
	"sync"
	"time"
)

// Keys written by Engine.Update.
const (
	KeySMAShort = "sma_short"
	KeySMALong  = "sma_long"
	KeyRSI      = "rsi"
)

// Engine maintains per-symbol price windows.
type Engine struct {
	mu      sync.Mutex
	prices  map[string][]float64
	seen    map[string]time.Time
	window  int
	shortMA int
	longMA  int
	rsi     int
}

// NewEngine builds an engine. Non-positive periods fall back to 10/30/14 and
// the window is widened to cover the longest lookback.
func NewEngine(shortMA, longMA, rsiPeriod, window int) *Engine {
	if shortMA <= 0 {
		shortMA = 10
	}
	if longMA <= 0 {
		longMA = 30
	}
	if rsiPeriod <= 0 {
		rsiPeriod = 14
	}
	window = max(window, longMA, shortMA, rsiPeriod+1)
	return &Engine{
		prices:  make(map[string][]float64),
		seen:    make(map[string]time.Time),
		window:  window,
		shortMA: shortMA,
		longMA:  longMA,
		rsi:     rsiPeriod,
	}
}

// Update ingests a price observed at ts and returns the indicators that have
// enough history. Non-positive prices and a repeat of the last non-zero ts
// for the symbol are not appended.
func (e *Engine) Update(symbol string, ts time.Time, price float64) map[string]float64 {
	symbol = strings.ToUpper(symbol)
	e.mu.Lock()
	defer e.mu.Unlock()

	arr := e.prices[symbol]
	repeat := !ts.IsZero() && ts.Equal(e.seen[symbol])
	if price > 0 && !repeat {
		if !ts.IsZero() {
			e.seen[symbol] = ts
		}
		arr = append(arr, price)
		if len(arr) > e.window {
			arr = arr[len(arr)-e.window:]
		}
		e.prices[symbol] = arr
	}

	values := map[string]float64{}
	if len(arr) >= e.shortMA {
		values[KeySMAShort] = SMA(arr, e.shortMA)
	}
	if len(arr) >= e.longMA {
		values[KeySMALong] = SMA(arr, e.longMA)
	}
	if len(arr) > e.rsi {
		values[KeyRSI] = RSI(arr, e.rsi)
	}
	return values
}

// Reset drops the history for symbol.
func (e *Engine) Reset(symbol string) {
	e.mu.Lock()
	delete(e.prices, strings.ToUpper(symbol))
	delete(e.seen, strings.ToUpper(symbol))
	e.mu.Unlock()
}
