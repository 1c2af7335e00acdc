// Package response implements the engine's response dispatch (§4.7):
// given a received header set and a streamed body, decide what happens to
// the Job that produced it — HEAD-to-GET flip, auth challenge, redirect,
// Metalink hint, chunked-download synthesis, or a plain success handed to
// the file sink and content parsers.
package response

import (
	"github.com/rohmanhakim/webretriever/internal/job"
	"github.com/rohmanhakim/webretriever/pkg/failure"
)

// OutcomeKind is the tagged-union discriminant for Outcome, replacing the
// original's coroutine-style pause/resume on 401/407 with an explicit
// returned value the frontier applies (SPEC_FULL §9 "Coroutine-like
// pause-and-resume").
type OutcomeKind int

const (
	// Done means the job is finished: either the body was written and
	// parsed (if applicable), or the response was a terminal
	// non-retryable status that still counts as "handled" (e.g. a 404).
	Done OutcomeKind = iota
	// RetryWithAuth means a 401 arrived with usable challenges attached
	// to NewJob; the frontier re-enqueues it.
	RetryWithAuth
	// RetryWithProxyAuth is the 407 symmetric case.
	RetryWithProxyAuth
	// Redirected means NewJob is the successor job for a 3xx response;
	// the original job ends here.
	Redirected
	// FlippedToGet means a HEAD response determined the resource is
	// parseable or large enough to warrant a full GET; NewJob is the
	// same target with HeadFirst cleared.
	FlippedToGet
	// MetalinkHint means the response pointed at a separate Metalink
	// description (RFC 6249 describedby/duplicate); NewJob fetches it.
	MetalinkHint
	// Chunked means Content-Length exceeded chunk_size; NewJob carries a
	// synthesized single-mirror Metalink whose parts the frontier will
	// dispatch concurrently.
	Chunked
	// Failed means the response could not be handled; Err carries the
	// classified reason (§7).
	Failed
)

// Outcome is what Dispatch returns; the frontier/engine applies exactly
// one of these transitions per response.
type Outcome struct {
	Kind   OutcomeKind
	NewJob *job.Job
	Err    failure.ClassifiedError
}

// Params carries the per-dispatch configuration Dispatch needs beyond the
// Job and the raw *http.Response: none of it is response-pipeline state,
// all of it is config threaded through from the engine.
type Params struct {
	ChunkSize     int64
	Credentials   *Credentials
	ProxyCreds    *Credentials
	MaxRedirect   int
	ETagSeen      func(etag string) bool // true if already seen this run
	RememberETag  func(etag string)
}

// Credentials is the username/password pair used to answer a Basic or
// Digest challenge (§6 "Authentication: Basic and Digest, with Digest
// preferred when both are offered").
type Credentials struct {
	Username string
	Password string
}
