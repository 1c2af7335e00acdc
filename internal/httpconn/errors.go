package httpconn

import (
	"fmt"

	"github.com/rohmanhakim/webretriever/pkg/failure"
)

// ConnErrorCause classifies a connection-layer failure (§7: Network, TLS,
// Protocol error kinds).
type ConnErrorCause string

const (
	ErrCauseDial          ConnErrorCause = "dial failure"
	ErrCauseTLSHandshake  ConnErrorCause = "tls handshake failure"
	ErrCauseRequestBuild  ConnErrorCause = "request build failure"
	ErrCauseTransport     ConnErrorCause = "transport failure"
	ErrCauseMalformedResp ConnErrorCause = "malformed response"
)

// ConnError is the connection layer's ClassifiedError. Kind drives the
// §6 exit-status table; Retryable drives the worker's §4.6 ERROR-state
// transition (retry vs finally-fail).
type ConnError struct {
	Message   string
	Cause     ConnErrorCause
	Kind      failure.Kind
	Retryable bool
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("httpconn: %s: %s", e.Cause, e.Message)
}

func (e *ConnError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *ConnError) IsRetryable() bool {
	return e.Retryable
}

func dialError(err error) *ConnError {
	return &ConnError{
		Message:   err.Error(),
		Cause:     ErrCauseDial,
		Kind:      failure.KindNetwork,
		Retryable: true,
	}
}

func tlsError(err error) *ConnError {
	return &ConnError{
		Message:   err.Error(),
		Cause:     ErrCauseTLSHandshake,
		Kind:      failure.KindTLS,
		Retryable: false,
	}
}

func transportError(err error) *ConnError {
	return &ConnError{
		Message:   err.Error(),
		Cause:     ErrCauseTransport,
		Kind:      failure.KindNetwork,
		Retryable: true,
	}
}
