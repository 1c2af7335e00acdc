package response

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rohmanhakim/webretriever/internal/job"
)

// BuildRequest constructs the outbound *http.Request for j, applying the
// method (HEAD for head_first, GET otherwise, or a ranged GET for a
// Metalink/chunk part), conditional headers, and any auth challenge
// already attached to the job from a prior 401/407 (§4.7).
func BuildRequest(ctx context.Context, j *job.Job, part *job.Part, userAgent string, creds, proxyCreds Credentials) (*http.Request, error) {
	method := http.MethodGet
	if j.HeadFirst {
		method = http.MethodHead
	}

	req, err := http.NewRequestWithContext(ctx, method, j.URI.String(), nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	if j.Referer != nil {
		req.Header.Set("Referer", j.Referer.String())
	}

	if part != nil {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(part.Position, 10)+"-"+strconv.FormatInt(part.Position+part.Length-1, 10))
	}

	if len(j.Challenges) > 0 {
		if authz, ok := BuildAuthorization(j.Challenges, method, req.URL.RequestURI(), creds); ok {
			req.Header.Set("Authorization", authz)
		}
	}
	if len(j.ProxyChallenges) > 0 {
		if authz, ok := BuildAuthorization(j.ProxyChallenges, method, req.URL.RequestURI(), proxyCreds); ok {
			req.Header.Set("Proxy-Authorization", authz)
		}
	}

	return req, nil
}
