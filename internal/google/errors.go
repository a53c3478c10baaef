package google

import (
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// ErrNotAuthenticated is returned when no usable credential is stored.
var ErrNotAuthenticated = errors.New("not authenticated")

// ExchangeError reports a failed authorization code exchange. Reason is the
// text shown on the redirect page.
type ExchangeError struct {
	Reason string
	Err    error
}

// Error implements the error interface
func (e *ExchangeError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "authorization code exchange failed"
}

// Unwrap returns the underlying cause.
func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// newExchangeError builds an ExchangeError, using the token endpoint's own
// error code and description when the cause is an oauth2.RetrieveError.
func newExchangeError(err error) *ExchangeError {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "" {
		reason := retrieveErr.ErrorCode
		if retrieveErr.ErrorDescription != "" {
			reason = fmt.Sprintf("%s: %s", retrieveErr.ErrorCode, retrieveErr.ErrorDescription)
		}
		return &ExchangeError{Reason: reason, Err: err}
	}
	return &ExchangeError{Reason: err.Error(), Err: err}
}
