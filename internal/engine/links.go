package engine

import (
	"github.com/rohmanhakim/webretriever/internal/content"
	"github.com/rohmanhakim/webretriever/internal/convert"
	"github.com/rohmanhakim/webretriever/internal/host"
	"github.com/rohmanhakim/webretriever/internal/job"
	"github.com/rohmanhakim/webretriever/internal/uri"
)

// discoverLinks admits every link a parser extracted from j's body that
// survives the configured Scope (§4.9), recursion depth, and the
// blacklist, each as a freshly Discovered job off j.
func (e *Engine) discoverLinks(h *host.Host, j *job.Job, parsed content.ParseResult) {
	if e.opts.MaxRecursionLevel > 0 && j.RecursionLevel+1 > e.opts.MaxRecursionLevel {
		return
	}

	for _, link := range parsed.Links {
		target, err := uri.Parse(link.URL)
		if err != nil {
			continue
		}
		if !e.opts.Scope.Allows(e.seedHost, target.Host, target.Scheme, j.URI.Path, target.Path) {
			continue
		}

		next := j.Discovered(target)
		e.admitAndEnqueue(next)
	}

	if parsed.Metalink != nil && j.Metalink == nil {
		j.Metalink = parsed.Metalink
		for _, part := range parsed.Metalink.Pieces {
			p := part
			j.Parts = append(j.Parts, &p)
		}
	}
}

// scanConversionOccurrences resolves every href/src/action attribute in
// body against baseURI, recording the absolute URL convert.Registry needs
// to decide whether it was also downloaded (§4.11).
func scanConversionOccurrences(body []byte, baseURI uri.URI) []convert.Occurrence {
	return convert.ScanOccurrences(body, func(raw string) (string, bool) {
		target, err := uri.Resolve(baseURI, raw)
		if err != nil {
			return "", false
		}
		return target.String(), true
	})
}
