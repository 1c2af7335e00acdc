package engine

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rohmanhakim/webretriever/internal/frontier"
	"github.com/rohmanhakim/webretriever/internal/host"
	"github.com/rohmanhakim/webretriever/internal/httpconn"
	"github.com/rohmanhakim/webretriever/internal/job"
	"github.com/rohmanhakim/webretriever/internal/metadata"
	"github.com/rohmanhakim/webretriever/internal/response"
	"github.com/rohmanhakim/webretriever/internal/sink"
	"github.com/rohmanhakim/webretriever/internal/uri"
	"github.com/rohmanhakim/webretriever/pkg/failure"
	"github.com/rohmanhakim/webretriever/pkg/hashutil"
)

// dispatchUnit drives one popped unit of work through connection
// acquisition, request/response, and outcome handling (§4.6's GET_JOB and
// GET_RESPONSE states, and §4.7's response dispatch), always ending in
// exactly one frontier.ReleaseJob call.
func (e *Engine) dispatchUnit(ctx context.Context, h *host.Host, unit *frontier.DispatchUnit) {
	j := unit.Job

	if j.RobotsTxt {
		e.handleRobotsJob(ctx, h, unit)
		return
	}

	if e.robotsDisallows(h, j) {
		e.recordPolicyDisallow(j)
		e.frontier.ReleaseJob(h, unit, frontier.Completed)
		return
	}

	outcome, fetchErr := e.fetch(ctx, h, j, unit.Part)
	if fetchErr != nil {
		e.releaseOnError(h, unit, fetchErr)
		return
	}
	e.applyOutcome(h, unit, outcome)
}

// robotsDisallows applies the cached robots decision for j's host, if any
// has been fetched yet. A host with no cached Robot (robots disabled, or
// its robots.txt job hasn't resolved) allows everything.
func (e *Engine) robotsDisallows(h *host.Host, j *job.Job) bool {
	if !e.opts.RespectRobots {
		return false
	}
	rb, ok := e.robotsReg.Get(h.Scheme, h.Hostname, h.Port)
	if !ok {
		return false
	}
	return !rb.Decide(j.URI.Path).Allowed
}

func (e *Engine) recordPolicyDisallow(j *job.Job) {
	e.collector.AddError()
	if e.metadataSink == nil {
		return
	}
	e.metadataSink.RecordError(time.Now(), "engine", "dispatch", metadata.CausePolicyDisallow, "blocked by robots.txt", []metadata.Attribute{
		metadata.NewAttr(metadata.AttrURL, j.URI.String()),
	})
}

// connSlotPollInterval is how often acquireSlot rechecks a connection's
// in-flight cap while waiting for a peer request to free one (§4.6
// GET_JOB->GET_RESPONSE: a connection at MaxInFlight makes its waiters
// drain responses rather than dial a new one).
const connSlotPollInterval = 5 * time.Millisecond

// acquireSlot blocks until conn has a free in-flight slot or ctx is
// cancelled. A connection admits at most MaxInFlight concurrent
// requests (§4.5: 1 for HTTP/1.1, the configured http2_request_window
// for HTTP/2), so two jobs racing the same HTTP/2 origin pace against
// that shared window instead of firing unboundedly many streams.
func acquireSlot(ctx context.Context, conn *httpconn.Connection) failure.ClassifiedError {
	for !conn.TryAcquire() {
		if !sleepCtx(ctx, connSlotPollInterval) {
			return &response.ResponseError{Message: "context cancelled waiting for an in-flight slot", Cause: response.ErrCauseSlotUnavailable, Kind: failure.KindInterrupted, Retryable: true}
		}
	}
	return nil
}

// fetch performs one request/response cycle for j (or j.Part) and runs it
// through response.Dispatch. It never retries internally: retry policy is
// entirely the frontier's (via the Disposition applyOutcome reports back).
func (e *Engine) fetch(ctx context.Context, h *host.Host, j *job.Job, part *job.Part) (response.Outcome, failure.ClassifiedError) {
	scheme := e.pool.ResolveScheme(j.URI.Scheme, j.URI.Host)
	key := httpconn.Key{Scheme: scheme, Host: j.URI.Host, Port: j.URI.Port}
	conn := e.pool.Get(key)

	req, buildErr := response.BuildRequest(ctx, j, part, e.opts.UserAgent, e.opts.Credentials, e.opts.ProxyCredentials)
	if buildErr != nil {
		return response.Outcome{}, &response.ResponseError{Message: buildErr.Error(), Cause: response.ErrCauseInvalidRedirect, Kind: failure.KindMalformedInput}
	}

	if slotErr := acquireSlot(ctx, conn); slotErr != nil {
		return response.Outcome{}, slotErr
	}
	defer conn.Release()

	start := time.Now()
	resp, connErr := conn.Do(req)
	if connErr != nil {
		e.collector.AddError()
		return response.Outcome{}, connErr
	}
	defer resp.Body.Close()

	outcome := response.Dispatch(resp, j, part, response.Params{
		ChunkSize:    e.opts.ChunkSize,
		MaxRedirect:  e.opts.MaxRedirect,
		ETagSeen:     e.seenETag,
		RememberETag: e.rememberETag,
	})

	contentType, _ := splitContentType(resp.Header.Get("Content-Type"))
	e.recordFetch(j, part, resp.StatusCode, contentType, time.Since(start))

	if outcome.Kind != response.Done {
		io.Copy(io.Discard, resp.Body)
		return outcome, nil
	}

	bodyErr := e.consumeBody(h, j, part, resp)
	if bodyErr != nil {
		return response.Outcome{}, bodyErr
	}
	return outcome, nil
}

// recordFetch reports the attempt to the metadata sink: a Part (chunk) or
// a non-document content type is an "asset" fetch, everything else a page
// fetch, mirroring the spec's crawl-depth/page distinction (§2 item 10).
func (e *Engine) recordFetch(j *job.Job, part *job.Part, status int, contentType string, d time.Duration) {
	if e.metadataSink == nil {
		return
	}
	if part != nil || !isDocumentType(contentType) {
		e.metadataSink.RecordAssetFetch(j.URI.String(), status, d, j.AuthFailureCount)
		return
	}
	e.metadataSink.RecordFetch(j.URI.String(), status, d, contentType, j.AuthFailureCount, j.RecursionLevel)
}

func isDocumentType(contentType string) bool {
	switch contentType {
	case "text/html", "application/xhtml+xml", "text/xml", "application/xml",
		"application/atom+xml", "application/rss+xml", "application/metalink4+xml":
		return true
	default:
		return false
	}
}

// consumeBody reads a Done response's body, writes it through the sink,
// and feeds it to a matching content parser for link discovery (§4.7
// "2xx/304/416: hand off to file sink and, if applicable, content
// parsers").
func (e *Engine) consumeBody(h *host.Host, j *job.Job, part *job.Part, resp *http.Response) failure.ClassifiedError {
	contentType, charset := splitContentType(resp.Header.Get("Content-Type"))

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return &response.ResponseError{Message: readErr.Error(), Cause: response.ErrCauseRemoteError, Kind: failure.KindNetwork, Retryable: true}
	}

	path := sink.LocalPath(j.URI, e.opts.SinkPolicy.Naming)
	if e.opts.SinkPolicy.AdjustExtension {
		path = sink.AdjustExtension(path, contentType)
	}

	var referer string
	if j.Referer != nil {
		referer = j.Referer.String()
	}

	writeReq := sink.WriteRequest{
		OutputDir:     e.opts.SinkPolicy.Naming.DirectoryPrefix,
		LocalFilename: path,
		ContentType:   contentType,
		Charset:       charset,
		OriginURL:     j.URI.String(),
		RefererURL:    referer,
		Body:          bytes.NewReader(body),
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := time.Parse(time.RFC1123, lm); err == nil {
			writeReq.LastModified = t
		}
	}
	if part != nil {
		writeReq.IsPartWrite = true
		writeReq.AppendFrom = part.Position
	}

	result, writeErr := e.sinkImpl.Write(writeReq)
	if writeErr != nil {
		e.collector.AddError()
		return writeErr
	}
	e.collector.AddBytesWritten(result.BytesWritten)
	e.recordKnown(j.URI.String(), result.Path)

	if part != nil {
		if part.Hash != "" {
			ok, hashErr := hashutil.Verify(body, hashutil.HashAlgoSHA256, part.Hash)
			if hashErr != nil || !ok {
				e.collector.AddError()
				if e.metadataSink != nil {
					e.metadataSink.RecordError(time.Now(), "engine", "chunk-verify", metadata.CauseInvariantViolation, "piece hash mismatch", []metadata.Attribute{
						metadata.NewAttr(metadata.AttrURL, j.URI.String()),
					})
				}
				return &response.ResponseError{Message: "metalink piece hash mismatch", Cause: response.ErrCauseRemoteError, Kind: failure.KindRemote, Retryable: true}
			}
		}
		part.Done = true
		e.collector.AddChunk()
		return nil
	}
	if isDocumentType(contentType) {
		e.collector.AddPageFetched()
	} else {
		e.collector.AddAssetFetched()
	}

	if e.opts.MaxRecursionLevel > 0 && j.RecursionLevel >= e.opts.MaxRecursionLevel {
		return nil
	}

	parser, ok := e.parsers.Lookup(contentType)
	if !ok {
		return nil
	}

	parsed, parseErr := parser.Parse(body, charset, j.URI)
	if parseErr != nil {
		if e.metadataSink != nil {
			e.metadataSink.RecordError(time.Now(), "engine", "parse", metadata.CauseContentInvalid, parseErr.Error(), []metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, j.URI.String()),
			})
		}
		return nil
	}

	if !e.opts.Recursive {
		parsed.Links = nil
	}
	e.discoverLinks(h, j, parsed)

	if contentType == "text/html" && e.conversions != nil {
		occurrences := scanConversionOccurrences(body, j.URI)
		e.conversions.Record(result.Path, occurrences)
	}

	return nil
}

func splitContentType(header string) (contentType, charset string) {
	contentType = header
	if idx := strings.Index(header, ";"); idx >= 0 {
		contentType = header[:idx]
		rest := header[idx+1:]
		if cidx := strings.Index(strings.ToLower(rest), "charset="); cidx >= 0 {
			charset = strings.TrimSpace(rest[cidx+len("charset="):])
		}
	}
	return strings.TrimSpace(strings.ToLower(contentType)), charset
}

func (e *Engine) releaseOnError(h *host.Host, unit *frontier.DispatchUnit, err failure.ClassifiedError) {
	disposition := frontier.Retry
	if err.Severity() == failure.SeverityFatal {
		disposition = frontier.FinallyFailed
	}
	e.frontier.ReleaseJob(h, unit, disposition)
}

// applyOutcome realizes §4.7's per-Kind transition: continuation jobs
// (FlippedToGet, RetryWithAuth/ProxyAuth, Chunked) are pushed directly to
// the front of the host's own queue since they are the *same* resource,
// not a new discovery, and must bypass the blacklist; Redirected and
// MetalinkHint name a genuinely new URI and go through the normal
// admission path.
func (e *Engine) applyOutcome(h *host.Host, unit *frontier.DispatchUnit, outcome response.Outcome) {
	switch outcome.Kind {
	case response.Done:
		e.frontier.ReleaseJob(h, unit, frontier.Completed)

	case response.FlippedToGet, response.RetryWithAuth, response.RetryWithProxyAuth, response.Chunked:
		h.Jobs.PushFront(outcome.NewJob)
		e.frontier.ReleaseJob(h, unit, frontier.Completed)

	case response.Redirected, response.MetalinkHint:
		if outcome.NewJob != nil {
			e.admitAndEnqueue(outcome.NewJob)
		}
		e.frontier.ReleaseJob(h, unit, frontier.Completed)

	case response.Failed:
		e.collector.AddError()
		disposition := frontier.Retry
		if outcome.Err != nil && outcome.Err.Severity() == failure.SeverityFatal {
			disposition = frontier.FinallyFailed
		}
		e.frontier.ReleaseJob(h, unit, disposition)
	}
}

// admitAndEnqueue is the single path every genuinely new URI (a seed, a
// redirect target, a discovered link, a Metalink hint) goes through: if
// its host is new, a robots.txt job is scheduled ahead of it (§4.3), then
// it is admitted via the blacklist and enqueued.
func (e *Engine) admitAndEnqueue(j *job.Job) bool {
	if e.opts.RespectRobots && !j.RobotsTxt && e.frontier.HostIsNew(j.URI) {
		if robotsURI, err := uri.Resolve(j.URI, "/robots.txt"); err == nil {
			robotsJob := job.New(robotsURI, nil, false)
			robotsJob.RobotsTxt = true
			e.frontier.Enqueue(robotsJob)
		}
	}
	return e.frontier.Enqueue(j)
}
