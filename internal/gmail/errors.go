package gmail

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/teemow/gmail-sender/internal/google"
)

// ErrorKind classifies a mail operation failure.
type ErrorKind string

const (
	// KindNotAuthenticated means no usable credential is stored. Callers
	// turn it into guidance, not a failure.
	KindNotAuthenticated ErrorKind = "NotAuthenticated"

	// KindAuthorizationExchangeFailed means the authorization code could
	// not be exchanged for a token.
	KindAuthorizationExchangeFailed ErrorKind = "AuthorizationExchangeFailed"

	// KindAttachmentUnreadable means the attachment path is missing,
	// unreadable, not a regular file, or too large.
	KindAttachmentUnreadable ErrorKind = "AttachmentUnreadable"

	// KindProviderRejected means Gmail (or Google's token endpoint during a
	// refresh) answered with a non-success status.
	KindProviderRejected ErrorKind = "ProviderRejected"

	// KindTransportTimeout means the provider call did not finish in time.
	KindTransportTimeout ErrorKind = "TransportTimeout"

	// KindTransportFailed covers network failures that are not timeouts.
	KindTransportFailed ErrorKind = "TransportFailed"

	// KindInvalidMessage means the message itself cannot be composed.
	KindInvalidMessage ErrorKind = "InvalidMessage"
)

// Error is a classified mail operation failure. Message is what the caller
// shows to the user; Err keeps the cause for errors.Is / errors.As.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// newError creates an Error with a formatted message.
func newError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

// KindOf reports the kind of err, or "" when err is not a classified mail
// or authorization failure.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var mailErr *Error
	if errors.As(err, &mailErr) {
		return mailErr.Kind
	}

	var exchangeErr *google.ExchangeError
	if errors.As(err, &exchangeErr) {
		return KindAuthorizationExchangeFailed
	}

	if errors.Is(err, google.ErrNotAuthenticated) {
		return KindNotAuthenticated
	}

	return ""
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// classifyProviderError maps an error returned by the Gmail API client into
// an Error. The provider's own message is kept verbatim.
func classifyProviderError(err error) *Error {
	if err == nil {
		return nil
	}

	var mailErr *Error
	if errors.As(err, &mailErr) {
		return mailErr
	}

	if errors.Is(err, google.ErrNotAuthenticated) {
		return &Error{Kind: KindNotAuthenticated, Message: "not authenticated", Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTransportTimeout, Message: "request to Gmail timed out", Err: err}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error()
		}
		return &Error{Kind: KindProviderRejected, Message: msg, Err: err}
	}

	// A failed refresh (revoked or expired grant) surfaces from the token
	// endpoint rather than from Gmail.
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		msg := retrieveErr.ErrorDescription
		if msg == "" {
			msg = retrieveErr.Error()
		}
		return &Error{Kind: KindProviderRejected, Message: msg, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTransportTimeout, Message: "request to Gmail timed out", Err: err}
	}

	return &Error{Kind: KindTransportFailed, Message: err.Error(), Err: err}
}
