package order

import "fmt"

// Validate checks a normalized request for structural problems.
// Risk limits are not checked here.
func (r Request) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidRequest)
	}
	switch r.Side {
	case SideBuy, SideSell:
	default:
		return fmt.Errorf("%w: side must be buy or sell, got %q", ErrInvalidRequest, r.Side)
	}
	switch r.Type {
	case TypeMarket:
	case TypeLimit, TypeStop:
		if r.Price == nil {
			return fmt.Errorf("%w: %s order requires a price", ErrInvalidRequest, r.Type)
		}
	default:
		return fmt.Errorf("%w: unsupported order type %q", ErrInvalidRequest, r.Type)
	}
	if !r.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
	}
	if r.Price != nil && !r.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidRequest)
	}
	return nil
}

// Validate checks the fill invariants of an execution report.
func (e Execution) Validate() error {
	if e.FilledQuantity.IsNegative() {
		return fmt.Errorf("%w: negative filled quantity", ErrInvalidExecution)
	}
	if e.FilledQuantity.GreaterThan(e.Quantity) {
		return fmt.Errorf("%w: filled %s exceeds quantity %s", ErrInvalidExecution, e.FilledQuantity, e.Quantity)
	}
	if e.FilledQuantity.IsPositive() && e.AvgPrice == nil {
		return fmt.Errorf("%w: avg_price missing for filled quantity %s", ErrInvalidExecution, e.FilledQuantity)
	}
	return nil
}
