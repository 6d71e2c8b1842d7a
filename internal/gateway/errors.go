package gateway

import (
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
	"google.golang.org/api/googleapi"
)

// Kind classifies gateway failures.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindInvalidArgument Kind = "invalid_argument"
	KindUpstream        Kind = "upstream"
)

// Caller-facing messages.
const (
	MsgNotAuthenticated    = "Not authenticated"
	MsgLabelNameRequired   = "Label name is required"
	MsgLabelIDRequired     = "Label ID is required"
	MsgInvalidMutation     = "Missing or invalid emailId or labelIds"
	MsgUpstreamUnavailable = "Gmail request failed"
)

// Error is a classified gateway failure.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

// Detail renders the full cause chain with stack frames for logs.
func (e *Error) Detail() string {
	if e.cause == nil {
		return e.Message
	}
	return eris.ToString(e.cause, true)
}

// Unauthenticated reports a missing access token.
func Unauthenticated() *Error {
	return &Error{
		Kind:    KindUnauthenticated,
		Message: MsgNotAuthenticated,
		cause:   eris.New("access token missing"),
	}
}

// InvalidArgument reports a request that failed local validation.
func InvalidArgument(msg string) *Error {
	return &Error{
		Kind:    KindInvalidArgument,
		Message: msg,
		cause:   eris.New(msg),
	}
}

// Upstream wraps a failed upstream call made for operation.
func Upstream(operation string, err error) *Error {
	if err == nil {
		err = eris.New("unknown upstream failure")
	}
	return &Error{
		Kind:    KindUpstream,
		Message: MsgUpstreamUnavailable,
		cause:   eris.Wrapf(err, "%s failed", operation),
	}
}

// KindOf classifies err. Unclassified errors count as upstream failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return KindUpstream
}

// HTTPStatus maps a Kind to its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message a caller may see for err. Upstream
// failures always render as fallback.
func PublicMessage(err error, fallback string) string {
	var gerr *Error
	if !errors.As(err, &gerr) {
		return fallback
	}
	switch gerr.Kind {
	case KindUnauthenticated:
		return MsgNotAuthenticated
	case KindInvalidArgument:
		return gerr.Message
	default:
		return fallback
	}
}

// GoogleAPIStatus extracts the HTTP code and first reason of a Gmail API
// error in err's chain.
func GoogleAPIStatus(err error) (code int, reason string, ok bool) {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return 0, "", false
	}
	if len(apiErr.Errors) > 0 {
		reason = apiErr.Errors[0].Reason
	}
	return apiErr.Code, reason, true
}
