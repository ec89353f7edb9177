package order

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest marks a malformed order request.
var ErrInvalidRequest = errors.New("invalid order request")

// ErrInvalidExecution marks an execution report that breaks fill invariants.
var ErrInvalidExecution = errors.New("invalid execution report")

// RouterClientError is a transport or broker failure on the way to or from a venue or the router.
type RouterClientError struct {
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *RouterClientError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Detail != "":
		return fmt.Sprintf("order router %s: status %d: %s", e.Op, e.StatusCode, e.Detail)
	case e.StatusCode > 0:
		return fmt.Sprintf("order router %s: status %d", e.Op, e.StatusCode)
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("order router %s: %s: %v", e.Op, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("order router %s: %s", e.Op, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("order router %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("order router %s failed", e.Op)
	}
}

func (e *RouterClientError) Unwrap() error { return e.Err }

// IsRouterClientError reports whether err is or wraps a RouterClientError.
func IsRouterClientError(err error) bool {
	var rce *RouterClientError
	return errors.As(err, &rce)
}
