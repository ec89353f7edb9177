package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const dayLayout = "2006-01-02"

// DailyTracker enforces the aggregate notional cap for one trading day.
//
// All reads and writes go through mu. Reserve performs the limit check and
// holds the order's notional in the same critical section, so two concurrent
// orders can never both pass against the same headroom.
type DailyTracker struct {
	mu sync.Mutex

	limit    decimal.Decimal
	mode     Mode
	current  decimal.Decimal
	reserved decimal.Decimal
	trades   int
	day      string

	holds  map[uint64]decimal.Decimal
	nextID uint64

	now func() time.Time
	loc *time.Location
}

// TrackerOption customizes a DailyTracker.
type TrackerOption func(*DailyTracker)

// WithClock overrides the wall clock used for day rollover.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *DailyTracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLocation sets the timezone that defines the trading day boundary.
func WithLocation(loc *time.Location) TrackerOption {
	return func(t *DailyTracker) {
		if loc != nil {
			t.loc = loc
		}
	}
}

// NewDailyTracker creates a tracker starting at zero for the current day.
// A limit <= 0 disables the cap.
func NewDailyTracker(limit decimal.Decimal, mode Mode, opts ...TrackerOption) *DailyTracker {
	t := &DailyTracker{
		limit: limit,
		mode:  mode,
		holds: make(map[uint64]decimal.Decimal),
		now:   time.Now,
		loc:   time.UTC,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.mode == "" {
		t.mode = ModePaper
	}
	t.day = t.today()
	return t
}

func (t *DailyTracker) today() string {
	return t.now().In(t.loc).Format(dayLayout)
}

// rolloverLocked zeroes the day's counters when the calendar day changed.
// In-flight holds survive and land in the new day when committed.
func (t *DailyTracker) rolloverLocked() {
	if d := t.today(); d != t.day {
		t.day = d
		t.current = decimal.Zero
		t.trades = 0
	}
}

func (t *DailyTracker) exceedsLocked(n decimal.Decimal) error {
	if !t.limit.IsPositive() {
		return nil
	}
	committed := t.current.Add(t.reserved)
	if committed.Add(n).GreaterThan(t.limit) {
		return &DailyLimitError{Requested: n, Committed: committed, Limit: t.limit}
	}
	return nil
}

// Check reports, without mutating anything, whether n fits under the cap.
func (t *DailyTracker) Check(n decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	return t.exceedsLocked(n)
}

// Commit debits n directly. Prefer Reserve when the order still has to execute.
func (t *DailyTracker) Commit(n decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	t.current = t.current.Add(n)
	t.trades++
}

// Reserve checks n against the cap and holds it until the returned hold is
// committed or released.
func (t *DailyTracker) Reserve(n decimal.Decimal) (*Hold, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	if err := t.exceedsLocked(n); err != nil {
		return nil, err
	}
	t.nextID++
	id := t.nextID
	t.holds[id] = n
	t.reserved = t.reserved.Add(n)
	return &Hold{tracker: t, id: id, amount: n}, nil
}

// Reset zeroes the current day's notional and trade count.
func (t *DailyTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.day = t.today()
	t.current = decimal.Zero
	t.trades = 0
}

// UpdateState applies the non-nil fields of u.
func (t *DailyTracker) UpdateState(u Update) error {
	if u.Limit != nil && u.Limit.IsNegative() {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidUpdate)
	}
	if u.TradesSubmitted != nil && *u.TradesSubmitted < 0 {
		return fmt.Errorf("%w: trades_submitted must not be negative", ErrInvalidUpdate)
	}
	var mode Mode
	if u.Mode != nil {
		m, err := ParseMode(string(*u.Mode))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
		}
		mode = m
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	if u.Limit != nil {
		t.limit = *u.Limit
	}
	if u.Mode != nil {
		t.mode = mode
	}
	if u.TradesSubmitted != nil {
		t.trades = *u.TradesSubmitted
	}
	return nil
}

// Mode returns the current trading mode.
func (t *DailyTracker) Mode() Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// Snapshot returns the tracker state.
func (t *DailyTracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	return State{
		TradingDay:       t.day,
		CurrentNotional:  t.current,
		ReservedNotional: t.reserved,
		Limit:            t.limit,
		Mode:             t.mode,
		TradesSubmitted:  t.trades,
	}
}

// Hold is notional reserved for an order that has passed the limit check.
// Exactly one of Commit or Release takes effect; later calls are no-ops.
type Hold struct {
	tracker *DailyTracker
	id      uint64
	amount  decimal.Decimal
}

// Amount returns the reserved notional.
func (h *Hold) Amount() decimal.Decimal { return h.amount }

// Commit converts the hold into committed notional of executed, which may be
// smaller than the reserved amount for partial fills.
func (h *Hold) Commit(executed decimal.Decimal) {
	t := h.tracker
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.releaseLocked(h.id) {
		return
	}
	t.rolloverLocked()
	t.current = t.current.Add(executed)
	t.trades++
}

// Release drops the hold without committing anything.
func (h *Hold) Release() {
	t := h.tracker
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releaseLocked(h.id)
}

func (t *DailyTracker) releaseLocked(id uint64) bool {
	amount, ok := t.holds[id]
	if !ok {
		return false
	}
	delete(t.holds, id)
	t.reserved = t.reserved.Sub(amount)
	return true
}
