package frontier

import (
	"time"

	"github.com/rohmanhakim/webretriever/internal/job"
)

/*
 Frontier - manages crawl scheduling & ordering (§4.4): enqueue, acquire_job,
 release_job over the Host registry's per-origin queues. It is a data
 structure + policy module, not a pipeline executor: it knows nothing about
 fetching, parsing, or storage.
*/

// Disposition is the outcome a worker reports when it releases a job back
// to the Manager (§4.4 release_job).
type Disposition int

const (
	// Completed means the job's content was fully retrieved, or the
	// response was a terminal non-retryable status (e.g. 404): the job
	// leaves the system and the host's failure counter resets.
	Completed Disposition = iota
	// Retry means a recoverable error occurred (timeout, connection
	// reset, 5xx, 429): the job is re-enqueued at the back of its host's
	// queue after a waitretry + random_wait delay.
	Retry
	// FinallyFailed means the job failed with a non-retryable error: the
	// job is dropped and the host's failure counter is bumped; once that
	// counter exceeds config.tries, the host's remaining queue is drained
	// as well.
	FinallyFailed
)

// DispatchUnit is what AcquireJob hands to a worker: either a whole Job
// (Part is nil) or one still-open Part of a Job's Metalink, dispatched
// independently of the rest of that Job's parts (§4.4 "metalink parts are
// concurrently dequeuable").
type DispatchUnit struct {
	Job  *job.Job
	Part *job.Part
}

// AcquireResult is returned by Manager.AcquireJob. Unit is nil when no
// dispatchable job exists right now; SleepHint then tells the caller how
// long to wait before polling again. It is zero when no queued host is in
// a cooldown: the frontier is empty, or its queued work is held behind an
// in-flight robots.txt job or in-flight Metalink parts.
type AcquireResult struct {
	Unit      *DispatchUnit
	SleepHint time.Duration
}
