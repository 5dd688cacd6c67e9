package exchange

import (
	"fmt"

	"github.com/pkg/errors"
)

// Binance error codes the bot cares about explicitly.
const (
	codeCancelRejected    = -2011 // cancel rejected: unknown order
	codeOrderDoesNotExist = -2013
)

// APIError is an application-level rejection from the exchange
// (bad signature, invalid order, insufficient margin, ...).
// It is never retried.
type APIError struct {
	Status int   // HTTP status
	Code   int64 // Binance error code, 0 when absent
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance api error: http %d code %d: %s", e.Status, e.Code, e.Msg)
}

// IsAPIError reports whether err is an exchange rejection and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsOrderNotFound reports whether err means the order is already gone
// (filled or cancelled). Callers cancelling protective orders treat this
// as success.
func IsOrderNotFound(err error) bool {
	apiErr, ok := IsAPIError(err)
	if !ok {
		return false
	}
	return apiErr.Code == codeCancelRejected || apiErr.Code == codeOrderDoesNotExist
}

// retryable reports whether err is a transient transport failure.
// Rejections carry an *APIError and are final; everything else coming out
// of the HTTP round trip (dial failure, timeout, truncated body) is
// assumed transient.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := IsAPIError(err); ok {
		return false
	}
	return true
}
