package sink

import (
	"fmt"

	"github.com/rohmanhakim/webretriever/internal/metadata"
	"github.com/rohmanhakim/webretriever/pkg/failure"
)

type SinkErrorCause string

const (
	ErrCauseRefused      SinkErrorCause = "refused by policy"
	ErrCauseAlreadyExists SinkErrorCause = "already exists"
	ErrCauseWriteFailure SinkErrorCause = "write failed"
	ErrCauseDiskFull     SinkErrorCause = "disk is full"
	ErrCausePathError    SinkErrorCause = "path error"
)

// SinkError is the file sink's ClassifiedError (§7 I/O error kind).
type SinkError struct {
	Message   string
	Retryable bool
	Cause     SinkErrorCause
	Path      string
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink: %s: %s", e.Cause, e.Message)
}

func (e *SinkError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *SinkError) IsRetryable() bool {
	return e.Retryable
}

func (e *SinkError) Kind() failure.Kind {
	return failure.KindIO
}

// mapSinkErrorToMetadataCause is observational only, per metadata.ErrorCause's
// documented invariant; it must never feed back into retry/abort decisions.
func mapSinkErrorToMetadataCause(err *SinkError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseDiskFull, ErrCauseWriteFailure, ErrCausePathError:
		return metadata.CauseStorageFailure
	case ErrCauseRefused, ErrCauseAlreadyExists:
		return metadata.CausePolicyDisallow
	default:
		return metadata.CauseUnknown
	}
}
