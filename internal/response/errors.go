package response

import (
	"fmt"

	"github.com/rohmanhakim/webretriever/pkg/failure"
)

type ResponseErrorCause string

const (
	ErrCauseAuthExhausted    ResponseErrorCause = "auth exhausted"
	ErrCauseTooManyRedirects ResponseErrorCause = "too many redirects"
	ErrCauseRemoteError      ResponseErrorCause = "remote error"
	ErrCauseInvalidRedirect  ResponseErrorCause = "invalid redirect location"
	ErrCauseSlotUnavailable  ResponseErrorCause = "no in-flight slot available"
)

// ResponseError is the dispatch pipeline's ClassifiedError (§7 Auth,
// Protocol, Remote kinds).
type ResponseError struct {
	Message   string
	Cause     ResponseErrorCause
	Kind      failure.Kind
	Retryable bool
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("response: %s: %s", e.Cause, e.Message)
}

func (e *ResponseError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *ResponseError) IsRetryable() bool {
	return e.Retryable
}
