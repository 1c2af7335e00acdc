package content

import (
	"encoding/xml"

	"github.com/rohmanhakim/webretriever/internal/uri"
)

// SitemapParser extracts <loc> entries from a sitemap or sitemap index
// (§4.10 "Sitemap URLs discovered this way are enqueued as sitemap
// jobs"). A sitemap index's entries are themselves sitemap URLs; this
// parser doesn't distinguish them from regular jobs; the engine re-parses
// whatever comes back under the same Content-Type.
type SitemapParser struct{}

func NewSitemapParser() *SitemapParser { return &SitemapParser{} }

func (p *SitemapParser) ContentTypes() []string {
	return []string{"application/xml+sitemap"}
}

type sitemapURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

func (p *SitemapParser) Parse(body []byte, sourceEncoding string, baseURI uri.URI) (ParseResult, error) {
	var urlset sitemapURLSet
	if err := xml.Unmarshal(body, &urlset); err == nil && len(urlset.URLs) > 0 {
		var links []ExtractedLink
		for _, u := range urlset.URLs {
			if resolved, err := uri.Resolve(baseURI, u.Loc); err == nil {
				links = append(links, ExtractedLink{URL: resolved.String()})
			}
		}
		return ParseResult{Links: links}, nil
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err != nil {
		return ParseResult{}, &ParseError{Message: err.Error(), Cause: ErrCauseMalformedDocument}
	}
	var links []ExtractedLink
	for _, s := range index.Sitemaps {
		if resolved, err := uri.Resolve(baseURI, s.Loc); err == nil {
			links = append(links, ExtractedLink{URL: resolved.String()})
		}
	}
	return ParseResult{Links: links}, nil
}
