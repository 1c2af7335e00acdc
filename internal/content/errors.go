package content

import (
	"fmt"

	"github.com/rohmanhakim/webretriever/pkg/failure"
)

type ParseErrorCause string

const (
	ErrCauseMalformedDocument ParseErrorCause = "malformed document"
)

// ParseError is a content parser's ClassifiedError (§7 Protocol kind:
// "malformed response"). Parse failures are never retryable — re-fetching
// the same bytes won't produce a different document.
type ParseError struct {
	Message string
	Cause   ParseErrorCause
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("content: %s: %s", e.Cause, e.Message)
}

func (e *ParseError) Severity() failure.Severity {
	return failure.SeverityFatal
}
