package uri

import (
	"fmt"

	"github.com/rohmanhakim/webretriever/pkg/failure"
)

type ErrorCause string

const (
	CauseMalformed         ErrorCause = "malformed uri"
	CauseUnsupportedScheme ErrorCause = "unsupported scheme"
)

// Error is the ClassifiedError raised by Parse/Resolve. Always fatal to
// the single candidate being parsed (§7 MalformedInput: "diagnostic, skip
// the item, continue") — never fatal to the run as a whole.
type Error struct {
	Cause   ErrorCause
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("uri: %s: %s", e.Cause, e.Message)
}

func (e *Error) Severity() failure.Severity {
	return failure.SeverityFatal
}

func (e *Error) Kind() failure.Kind {
	return failure.KindMalformedInput
}
