package metadata

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

import (
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-logfmt/logfmt"
)

// MetadataSink is the observability boundary every pipeline package writes
// through. Implementations must treat every method as fire-and-forget
// logging: nothing here may be consulted to make a retry, continuation, or
// abort decision (that rule lives on ErrorCause, but it applies to the
// whole interface).
type MetadataSink interface {
	RecordFetch(fetchURL string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int)
	RecordAssetFetch(fetchURL string, httpStatus int, duration time.Duration, retryCount int)
	RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, details string, attrs []Attribute)
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
}

// CrawlFinalizer receives the terminal summary of a completed run, once,
// after the worker pool has drained (§4.11's statistics collector).
type CrawlFinalizer interface {
	RecordFinalCrawlStats(totalPages int, totalErrors int, totalAssets int, duration time.Duration)
}

var causeNames = map[ErrorCause]string{
	CauseUnknown:            "unknown",
	CauseNetworkFailure:     "network_failure",
	CausePolicyDisallow:     "policy_disallow",
	CauseContentInvalid:     "content_invalid",
	CauseStorageFailure:     "storage_failure",
	CauseInvariantViolation: "invariant_violation",
}

func (c ErrorCause) String() string {
	if name, ok := causeNames[c]; ok {
		return name
	}
	return "unknown"
}

// Recorder is the default MetadataSink/CrawlFinalizer: every event becomes
// one logfmt line written to w. Safe for concurrent use by every worker.
type Recorder struct {
	mu  sync.Mutex
	enc *logfmt.Encoder
}

// NewRecorder builds a Recorder writing logfmt lines to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: logfmt.NewEncoder(w)}
}

// NewStderrRecorder is the default collaborator wired by the CLI when no
// other metadata sink is configured.
func NewStderrRecorder() *Recorder {
	return NewRecorder(os.Stderr)
}

func (r *Recorder) emit(keyvals ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enc.EncodeKeyvals(keyvals...); err != nil {
		return
	}
	r.enc.EndRecord()
}

func (r *Recorder) RecordFetch(fetchURL string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
	r.emit(
		"event", "fetch",
		"url", fetchURL,
		"status", httpStatus,
		"duration_ms", duration.Milliseconds(),
		"content_type", contentType,
		"retries", retryCount,
		"depth", crawlDepth,
	)
}

func (r *Recorder) RecordAssetFetch(fetchURL string, httpStatus int, duration time.Duration, retryCount int) {
	r.emit(
		"event", "asset_fetch",
		"url", fetchURL,
		"status", httpStatus,
		"duration_ms", duration.Milliseconds(),
		"retries", retryCount,
	)
}

func (r *Recorder) RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, details string, attrs []Attribute) {
	keyvals := []interface{}{
		"event", "error",
		"time", observedAt.Format(time.RFC3339),
		"package", packageName,
		"action", action,
		"cause", cause.String(),
		"details", details,
	}
	for _, a := range attrs {
		keyvals = append(keyvals, string(a.Key), a.Value)
	}
	r.emit(keyvals...)
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	keyvals := []interface{}{
		"event", "artifact",
		"kind", string(kind),
		"path", path,
	}
	for _, a := range attrs {
		keyvals = append(keyvals, string(a.Key), a.Value)
	}
	r.emit(keyvals...)
}

func (r *Recorder) RecordFinalCrawlStats(totalPages int, totalErrors int, totalAssets int, duration time.Duration) {
	r.emit(
		"event", "crawl_summary",
		"pages", totalPages,
		"errors", totalErrors,
		"assets", totalAssets,
		"duration_ms", strconv.FormatInt(duration.Milliseconds(), 10),
	)
}
