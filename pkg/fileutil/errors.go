package fileutil

import (
	"fmt"

	"github.com/rohmanhakim/webretriever/pkg/failure"
)

type FileErrorCause string

const (
	ErrCausePathError           FileErrorCause = "path error"
	ErrCauseUniqueNameExhausted FileErrorCause = "unique name exhausted"
	ErrCauseAlreadyExists       FileErrorCause = "already exists"
)

type FileError struct {
	Message   string
	Retryable bool
	Cause     FileErrorCause
}

func (e *FileError) Error() string {
	return fmt.Sprintf("storage error: %s: %s", e.Cause, e.Message)
}

func (e *FileError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}
