package content

import (
	"regexp"
	"strings"

	"github.com/rohmanhakim/webretriever/internal/uri"
)

// CSSParser extracts url(...) references (backgrounds, @font-face,
// @import) from a stylesheet. CSS has no DOM, so a targeted regex over
// the raw bytes is the idiomatic approach rather than pulling in a full
// CSS tokenizer for a handful of url()/@import forms.
type CSSParser struct{}

func NewCSSParser() *CSSParser { return &CSSParser{} }

func (p *CSSParser) ContentTypes() []string {
	return []string{"text/css"}
}

var (
	cssURLFuncPattern = regexp.MustCompile(`url\(\s*(['"]?)([^'")]+)\1\s*\)`)
	cssImportPattern  = regexp.MustCompile(`@import\s+(?:url\()?\s*(['"]?)([^'")]+)\1\s*\)?`)
)

func (p *CSSParser) Parse(body []byte, sourceEncoding string, baseURI uri.URI) (ParseResult, error) {
	text := string(body)

	var links []ExtractedLink
	seen := make(map[string]struct{})
	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "data:") {
			return
		}
		resolved, err := uri.Resolve(baseURI, raw)
		if err != nil {
			return
		}
		if _, dup := seen[resolved.String()]; dup {
			return
		}
		seen[resolved.String()] = struct{}{}
		links = append(links, ExtractedLink{URL: resolved.String()})
	}

	for _, m := range cssURLFuncPattern.FindAllStringSubmatch(text, -1) {
		add(m[2])
	}
	for _, m := range cssImportPattern.FindAllStringSubmatch(text, -1) {
		add(m[2])
	}

	return ParseResult{Links: links, DocumentEncoding: sourceEncoding}, nil
}
