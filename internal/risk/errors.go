package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidUpdate is returned for update_state calls with out-of-range values.
var ErrInvalidUpdate = errors.New("invalid tracker update")

// Violation is a static rule rejection. No state has been mutated when it is returned.
type Violation struct {
	Rule   string
	Reason string
}

func (v *Violation) Error() string { return v.Reason }

// DailyLimitError reports that an order would push the day's notional over the cap.
type DailyLimitError struct {
	Requested decimal.Decimal
	Committed decimal.Decimal
	Limit     decimal.Decimal
}

func (e *DailyLimitError) Error() string {
	return fmt.Sprintf("Daily notional limit exceeded: %s + %s > %s",
		e.Committed.String(), e.Requested.String(), e.Limit.String())
}

// IsViolation reports whether err is a static rule rejection.
func IsViolation(err error) bool {
	var v *Violation
	return errors.As(err, &v)
}

// IsDailyLimit reports whether err is a daily cap rejection.
func IsDailyLimit(err error) bool {
	var d *DailyLimitError
	return errors.As(err, &d)
}
