// Package content implements the engine's content parser interface (§4.9):
// pure functions over a buffer that extract candidate links, invoked by
// the engine only for a matching Content-Type and only when recursion
// depth permits. No parser here touches the network, the frontier, or the
// file sink directly.
package content

import (
	"github.com/rohmanhakim/webretriever/internal/job"
	"github.com/rohmanhakim/webretriever/internal/uri"
)

// ExtractedLink is one candidate URI surfaced by a parser, plus enough
// context for the engine's link-relation handling (§4.7 Metalink hints
// reuse the same shape for rel=describedby / rel=duplicate).
type ExtractedLink struct {
	URL string
	Rel string
}

// ParseResult is a parser's pure output: the links it found, and a
// document encoding that the HTML and CSS parsers fill in (CSS passes
// sourceEncoding through unchanged) and the XML-based parsers leave empty.
// Nothing in the engine reads DocumentEncoding.
type ParseResult struct {
	Links            []ExtractedLink
	DocumentEncoding string
	// Metalink is populated only by the metalink parser (§4.7 "If the
	// body itself is a metalink description, parse it, build Parts").
	Metalink *job.Metalink
}

// Parser is the pure-function contract every content format implements
// (§4.9): bytes in, extracted links (and optional declared encoding) out.
type Parser interface {
	// ContentTypes lists the MIME types this parser claims.
	ContentTypes() []string
	// Parse extracts links from body. sourceEncoding is the charset the
	// transport layer believes the bytes are in (from Content-Type or a
	// caller default); baseURI is the document's own URL, against which
	// relative links are resolved.
	Parse(body []byte, sourceEncoding string, baseURI uri.URI) (ParseResult, error)
}

// Registry maps a Content-Type to the Parser that handles it, mirroring
// §4.9's "the engine feeds bodies to parsers only for the matching
// Content-Type".
type Registry struct {
	byContentType map[string]Parser
}

// NewRegistry builds a Registry with the engine's default parser set:
// HTML, CSS, Atom/RSS, Sitemap, and Metalink.
func NewRegistry() *Registry {
	r := &Registry{byContentType: make(map[string]Parser)}
	for _, p := range []Parser{
		NewHTMLParser(),
		NewCSSParser(),
		NewFeedParser(),
		NewSitemapParser(),
		NewMetalinkParser(),
	} {
		r.Register(p)
	}
	return r
}

// Register adds p under every Content-Type it claims, letting later
// registrations override earlier ones for the same type.
func (r *Registry) Register(p Parser) {
	for _, ct := range p.ContentTypes() {
		r.byContentType[ct] = p
	}
}

// Lookup returns the Parser bound to contentType, or false if no parser
// claims it (the engine treats the body as opaque in that case).
func (r *Registry) Lookup(contentType string) (Parser, bool) {
	p, ok := r.byContentType[contentType]
	return p, ok
}
