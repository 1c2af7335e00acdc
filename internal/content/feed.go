package content

import (
	"encoding/xml"

	"github.com/rohmanhakim/webretriever/internal/uri"
)

// FeedParser extracts entry/item links from Atom and RSS feeds. Both
// formats are handled by one parser since an Atom <feed> and an RSS
// <rss><channel> only differ in element names, not in what the engine
// needs out of them: a flat list of linked resources.
type FeedParser struct{}

func NewFeedParser() *FeedParser { return &FeedParser{} }

func (p *FeedParser) ContentTypes() []string {
	return []string{"application/atom+xml", "application/rss+xml"}
}

type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []struct {
			Link string `xml:"link"`
		} `xml:"item"`
	} `xml:"channel"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

type atomFeed struct {
	XMLName xml.Name   `xml:"feed"`
	Links   []atomLink `xml:"link"`
	Entries []struct {
		Links []atomLink `xml:"link"`
	} `xml:"entry"`
}

func (p *FeedParser) Parse(body []byte, sourceEncoding string, baseURI uri.URI) (ParseResult, error) {
	var links []ExtractedLink

	var rss rssFeed
	if err := xml.Unmarshal(body, &rss); err == nil && len(rss.Channel.Items) > 0 {
		for _, item := range rss.Channel.Items {
			if item.Link == "" {
				continue
			}
			if resolved, err := uri.Resolve(baseURI, item.Link); err == nil {
				links = append(links, ExtractedLink{URL: resolved.String()})
			}
		}
		return ParseResult{Links: links}, nil
	}

	var atom atomFeed
	if err := xml.Unmarshal(body, &atom); err != nil {
		return ParseResult{}, &ParseError{Message: err.Error(), Cause: ErrCauseMalformedDocument}
	}
	appendAtomLinks(&links, baseURI, atom.Links)
	for _, entry := range atom.Entries {
		appendAtomLinks(&links, baseURI, entry.Links)
	}

	return ParseResult{Links: links}, nil
}

func appendAtomLinks(links *[]ExtractedLink, baseURI uri.URI, atomLinks []atomLink) {
	for _, l := range atomLinks {
		if l.Href == "" {
			continue
		}
		resolved, err := uri.Resolve(baseURI, l.Href)
		if err != nil {
			continue
		}
		*links = append(*links, ExtractedLink{URL: resolved.String(), Rel: l.Rel})
	}
}
