package content

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rohmanhakim/webretriever/internal/uri"
)

// HTMLParser extracts hyperlinks and asset references from an HTML
// document via goquery's DOM querying.
type HTMLParser struct{}

func NewHTMLParser() *HTMLParser { return &HTMLParser{} }

func (p *HTMLParser) ContentTypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// linkBearingAttrs maps each tag this parser inspects to the attribute
// that carries its URL.
var linkBearingAttrs = map[string]string{
	"a":      "href",
	"area":   "href",
	"link":   "href",
	"img":    "src",
	"script": "src",
	"iframe": "src",
	"source": "src",
	"embed":  "src",
	"form":   "action",
}

func (p *HTMLParser) Parse(body []byte, sourceEncoding string, baseURI uri.URI) (ParseResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ParseResult{}, &ParseError{Message: err.Error(), Cause: ErrCauseMalformedDocument}
	}

	effectiveBase := baseURI
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if resolved, err := uri.Resolve(baseURI, href); err == nil {
			effectiveBase = resolved
		}
	}

	var links []ExtractedLink
	for tag, attr := range linkBearingAttrs {
		doc.Find(tag + "[" + attr + "]").Each(func(_ int, sel *goquery.Selection) {
			raw, ok := sel.Attr(attr)
			if !ok || raw == "" || strings.HasPrefix(raw, "javascript:") || strings.HasPrefix(raw, "mailto:") || strings.HasPrefix(raw, "data:") {
				return
			}
			resolved, err := uri.Resolve(effectiveBase, raw)
			if err != nil {
				return
			}
			rel, _ := sel.Attr("rel")
			links = append(links, ExtractedLink{URL: resolved.String(), Rel: rel})
		})
	}

	// srcset carries one or more candidate URLs; take each one.
	doc.Find("img[srcset], source[srcset]").Each(func(_ int, sel *goquery.Selection) {
		srcset, _ := sel.Attr("srcset")
		for _, candidate := range strings.Split(srcset, ",") {
			fields := strings.Fields(strings.TrimSpace(candidate))
			if len(fields) == 0 {
				continue
			}
			resolved, err := uri.Resolve(effectiveBase, fields[0])
			if err != nil {
				continue
			}
			links = append(links, ExtractedLink{URL: resolved.String()})
		}
	})

	encoding := sourceEncoding
	if charset, ok := doc.Find("meta[charset]").First().Attr("charset"); ok && charset != "" {
		encoding = charset
	} else {
		doc.Find(`meta[http-equiv]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			equiv, _ := sel.Attr("http-equiv")
			if !strings.EqualFold(equiv, "Content-Type") {
				return true
			}
			content, _ := sel.Attr("content")
			if idx := strings.Index(strings.ToLower(content), "charset="); idx >= 0 {
				encoding = content[idx+len("charset="):]
			}
			return false
		})
	}

	return ParseResult{Links: links, DocumentEncoding: encoding}, nil
}
