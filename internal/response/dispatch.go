package response

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rohmanhakim/webretriever/internal/job"
	"github.com/rohmanhakim/webretriever/internal/uri"
	"github.com/rohmanhakim/webretriever/pkg/failure"
)

// Dispatch decides what happens to j given resp's headers and status, per
// §4.7. It never reads resp.Body: header-only decisions (HEAD flip, auth,
// redirect, Metalink Link-header hints, chunk synthesis) are resolved
// here; the engine reads the body afterward only when Dispatch returns
// Done, handing it to the sink and, for a matching Content-Type, to a
// content.Parser.
func Dispatch(resp *http.Response, j *job.Job, part *job.Part, params Params) Outcome {
	j.HTTPStatusLast = resp.StatusCode

	switch {
	case j.HeadFirst && resp.StatusCode >= 200 && resp.StatusCode < 300:
		return dispatchHeadResponse(resp, j, params)

	case resp.StatusCode == http.StatusUnauthorized:
		return dispatchAuthChallenge(resp, j, false)

	case resp.StatusCode == http.StatusProxyAuthRequired:
		return dispatchAuthChallenge(resp, j, true)

	case resp.StatusCode == 301, resp.StatusCode == 302, resp.StatusCode == 303, resp.StatusCode == 307, resp.StatusCode == 308:
		return dispatchRedirect(resp, j, params)

	case resp.StatusCode == 200, resp.StatusCode == 206, resp.StatusCode == 304, resp.StatusCode == 416:
		if hint := ParseMetalinkLinks(resp, j); hint != nil {
			return Outcome{Kind: MetalinkHint, NewJob: hint}
		}
		if j.Metalink == nil && part == nil {
			if chunked := maybeChunk(resp, j, params); chunked != nil {
				return Outcome{Kind: Chunked, NewJob: chunked}
			}
		}
		if params.ETagSeen != nil {
			if etag := resp.Header.Get("ETag"); etag != "" && params.ETagSeen(etag) {
				return Outcome{Kind: Done}
			}
			if etag := resp.Header.Get("ETag"); etag != "" && params.RememberETag != nil {
				params.RememberETag(etag)
			}
		}
		return Outcome{Kind: Done}

	case resp.StatusCode >= 500:
		return Outcome{Kind: Failed, Err: &ResponseError{
			Message:   "server error " + strconv.Itoa(resp.StatusCode),
			Cause:     ErrCauseRemoteError,
			Kind:      failure.KindRemote,
			Retryable: true,
		}}

	case resp.StatusCode == 429:
		return Outcome{Kind: Failed, Err: &ResponseError{
			Message:   "rate limited",
			Cause:     ErrCauseRemoteError,
			Kind:      failure.KindRemote,
			Retryable: true,
		}}

	default:
		return Outcome{Kind: Failed, Err: &ResponseError{
			Message:   "remote error " + strconv.Itoa(resp.StatusCode),
			Cause:     ErrCauseRemoteError,
			Kind:      failure.KindRemote,
			Retryable: false,
		}}
	}
}

// dispatchHeadResponse implements §4.7's head_first rule: inspect
// Content-Type; if parseable or total size exceeds chunk_size, flip the
// job to a GET; otherwise the job is considered done without ever
// fetching the body.
func dispatchHeadResponse(resp *http.Response, j *job.Job, params Params) Outcome {
	contentType := baseContentType(resp.Header.Get("Content-Type"))
	size := contentLength(resp)

	if isParseable(contentType) || (params.ChunkSize > 0 && size > params.ChunkSize) {
		next := *j
		next.HeadFirst = false
		return Outcome{Kind: FlippedToGet, NewJob: &next}
	}
	return Outcome{Kind: Done}
}

func isParseable(contentType string) bool {
	switch contentType {
	case "text/html", "application/xhtml+xml", "text/css",
		"application/atom+xml", "application/rss+xml",
		"application/xml+sitemap", "application/metalink+xml":
		return true
	default:
		return false
	}
}

func baseContentType(header string) string {
	if idx := strings.Index(header, ";"); idx >= 0 {
		header = header[:idx]
	}
	return strings.TrimSpace(strings.ToLower(header))
}

func contentLength(resp *http.Response) int64 {
	if resp.ContentLength >= 0 {
		return resp.ContentLength
	}
	if v := resp.Header.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// dispatchAuthChallenge implements the §4.7 401/407 rule: on the first
// attempt, with usable challenges present, attach them to the job and
// re-enqueue; otherwise surface as a terminal auth failure (§7 Auth kind:
// "no further auth retries for this job").
func dispatchAuthChallenge(resp *http.Response, j *job.Job, proxy bool) Outcome {
	var challenges []job.Challenge
	if proxy {
		challenges = ExtractProxyChallenges(resp)
	} else {
		challenges = ExtractChallenges(resp)
	}

	if len(challenges) == 0 || j.AuthFailureCount > 0 {
		return Outcome{Kind: Failed, Err: &ResponseError{
			Message:   "auth failed with no further challenges to attempt",
			Cause:     ErrCauseAuthExhausted,
			Kind:      failure.KindAuth,
			Retryable: false,
		}}
	}

	next := *j
	next.AuthFailureCount++
	if proxy {
		next.ProxyChallenges = challenges
	} else {
		next.Challenges = challenges
	}

	kind := RetryWithAuth
	if proxy {
		kind = RetryWithProxyAuth
	}
	return Outcome{Kind: kind, NewJob: &next}
}

// dispatchRedirect implements §4.7's 3xx rule: parse Location, absolutize
// against the current job's URI, build a successor job one redirection
// level deeper with the original referer chain preserved; the original
// job ends here.
func dispatchRedirect(resp *http.Response, j *job.Job, params Params) Outcome {
	if params.MaxRedirect > 0 && j.RedirectionLevel >= params.MaxRedirect {
		return Outcome{Kind: Failed, Err: &ResponseError{
			Message:   "max_redirect exceeded",
			Cause:     ErrCauseTooManyRedirects,
			Kind:      failure.KindProtocol,
			Retryable: false,
		}}
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return Outcome{Kind: Failed, Err: &ResponseError{
			Message:   "redirect with no Location header",
			Cause:     ErrCauseInvalidRedirect,
			Kind:      failure.KindProtocol,
			Retryable: false,
		}}
	}

	target, err := uri.Resolve(j.URI, location)
	if err != nil {
		return Outcome{Kind: Failed, Err: &ResponseError{
			Message:   "malformed redirect Location: " + err.Error(),
			Cause:     ErrCauseInvalidRedirect,
			Kind:      failure.KindProtocol,
			Retryable: false,
		}}
	}

	next := j.Redirected(target)
	return Outcome{Kind: Redirected, NewJob: next}
}

// ParseMetalinkLinks implements §4.7's RFC 6249 Link-header handling: a
// rel=describedby pointing at a Metalink description takes priority over
// rel=duplicate mirrors. Returns the successor job for the hint, or nil if
// neither relation is present.
func ParseMetalinkLinks(resp *http.Response, j *job.Job) *job.Job {
	describedBy, duplicates := parseLinkHeader(resp.Header.Values("Link"))

	if describedBy != "" {
		if target, err := uri.Resolve(j.URI, describedBy); err == nil {
			return j.Discovered(target)
		}
	}
	if len(duplicates) > 0 {
		if target, err := uri.Resolve(j.URI, duplicates[0]); err == nil {
			return j.Discovered(target)
		}
	}
	return nil
}

func parseLinkHeader(values []string) (describedBy string, duplicates []string) {
	for _, raw := range values {
		for _, link := range strings.Split(raw, ",") {
			parts := strings.Split(link, ";")
			if len(parts) < 2 {
				continue
			}
			url := strings.Trim(strings.TrimSpace(parts[0]), "<>")
			for _, p := range parts[1:] {
				p = strings.TrimSpace(p)
				if !strings.HasPrefix(p, "rel=") {
					continue
				}
				rel := strings.Trim(strings.TrimPrefix(p, "rel="), `"`)
				switch rel {
				case "describedby":
					describedBy = url
				case "duplicate":
					duplicates = append(duplicates, url)
				}
			}
		}
	}
	return describedBy, duplicates
}

// maybeChunk implements §4.7's chunked-download rule: when chunk_size > 0
// and Content-Length exceeds it, synthesize a single-mirror Metalink with
// N equal-sized pieces and return the successor job carrying it.
func maybeChunk(resp *http.Response, j *job.Job, params Params) *job.Job {
	if params.ChunkSize <= 0 {
		return nil
	}
	size := contentLength(resp)
	if size <= params.ChunkSize {
		return nil
	}

	ml := job.SynthesizeChunked(j.URI, lastPathSegment(j.URI.Path), size, params.ChunkSize)
	if ml == nil {
		return nil
	}

	next := *j
	next.Metalink = ml
	next.Parts = make([]*job.Part, len(ml.Pieces))
	for i := range ml.Pieces {
		next.Parts[i] = &ml.Pieces[i]
	}
	return &next
}

func lastPathSegment(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 || idx == len(path)-1 {
		return "download"
	}
	return path[idx+1:]
}
