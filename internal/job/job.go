// Package job implements the engine's retrieval-unit data model (§3 DATA
// MODEL: Job, Part, Metalink) grounded in the teacher's CrawlToken /
// CrawlAdmissionCandidate pattern (internal/frontier): plain data +
// accessors, no scheduling policy.
package job

import (
	"time"

	"github.com/google/uuid"
	"github.com/rohmanhakim/webretriever/internal/uri"
)

// Challenge holds a parsed WWW-Authenticate / Proxy-Authenticate challenge
// attached to a Job after a 401/407 response (§4.7).
type Challenge struct {
	Scheme string // "Basic" or "Digest"
	Realm  string
	Nonce  string
	Opaque string
	QOP    string
}

// Job is one retrieval unit (§3). ID is a per-job correlation ID surfaced
// in metadata events.
type Job struct {
	ID                uuid.UUID
	URI               uri.URI
	OriginalURI       uri.URI
	Referer           *uri.URI
	RedirectionLevel  int
	RecursionLevel    int
	HeadFirst         bool
	Sitemap           bool
	RobotsTxt         bool
	RequestedByUser   bool
	LocalFilename     string
	LocalFilenameFinal string
	Metalink          *Metalink
	Parts             []*Part
	Part              *Part
	Challenges        []Challenge
	ProxyChallenges   []Challenge
	AuthFailureCount  int
	HTTPStatusLast    int
	inUse             bool
}

// New constructs a root Job for target, not yet admitted to any host
// queue.
func New(target uri.URI, referer *uri.URI, requestedByUser bool) *Job {
	return &Job{
		ID:              uuid.New(),
		URI:             target,
		OriginalURI:     target,
		Referer:         referer,
		RequestedByUser: requestedByUser,
	}
}

// Redirected builds the successor Job for a 3xx response: same chain,
// redirection level bumped, referer preserved as the job that redirected.
func (j *Job) Redirected(target uri.URI) *Job {
	return &Job{
		ID:               uuid.New(),
		URI:              target,
		OriginalURI:      j.OriginalURI,
		Referer:          &j.URI,
		RedirectionLevel: j.RedirectionLevel + 1,
		RecursionLevel:   j.RecursionLevel,
	}
}

// Discovered builds a child Job for a link found while parsing this job's
// content, one recursion level deeper.
func (j *Job) Discovered(target uri.URI) *Job {
	return &Job{
		ID:             uuid.New(),
		URI:            target,
		OriginalURI:    target,
		Referer:        &j.URI,
		RecursionLevel: j.RecursionLevel + 1,
	}
}

// InUse reports whether a worker currently holds this job.
func (j *Job) InUse() bool {
	return j.inUse
}

// MarkInUse is called by the worker that pops this job; MarkReleased when
// the job is considered complete and may be removed by the main thread.
func (j *Job) MarkInUse()    { j.inUse = true }
func (j *Job) MarkReleased() { j.inUse = false }

// Part is a byte range of a larger object fetched independently (Metalink
// or synthetic chunk), per §3.
type Part struct {
	ID       int
	Position int64
	Length   int64
	Done     bool
	InUse    bool
	Hash     string
}

// Metalink is an RFC 5854-style description of a file with multiple
// mirrors, piecewise hashes, and total size (§3).
type Metalink struct {
	Name       string
	Size       int64
	Pieces     []Part
	Mirrors    []Mirror
	GlobalHash string
}

// Mirror is one candidate origin for a Metalink's pieces, ordered by
// Priority descending.
type Mirror struct {
	URL      uri.URI
	Priority int
}

// SynthesizeChunked builds the single-mirror Metalink used for the
// chunked-download case (§4.7): one origin, N equal-sized pieces.
func SynthesizeChunked(origin uri.URI, name string, totalSize, chunkSize int64) *Metalink {
	if chunkSize <= 0 || totalSize <= chunkSize {
		return nil
	}
	var pieces []Part
	var pos int64
	id := 0
	for pos < totalSize {
		length := chunkSize
		if pos+length > totalSize {
			length = totalSize - pos
		}
		pieces = append(pieces, Part{ID: id, Position: pos, Length: length})
		pos += length
		id++
	}
	return &Metalink{
		Name:    name,
		Size:    totalSize,
		Pieces:  pieces,
		Mirrors: []Mirror{{URL: origin, Priority: 0}},
	}
}

// DelayOverride carries a per-discovery pacing override (e.g. a sitemap's
// own crawl-delay hint), mirroring the teacher's DiscoveryMetadata.
type DelayOverride struct {
	Duration time.Duration
}
