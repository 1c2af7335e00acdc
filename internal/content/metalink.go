package content

import (
	"encoding/xml"

	"github.com/rohmanhakim/webretriever/internal/job"
	"github.com/rohmanhakim/webretriever/internal/uri"
)

// MetalinkParser builds a job.Metalink from an RFC 5854 description
// (§4.7 "If the body itself is a metalink description, parse it, build
// Parts, and replace the job with multiple part-jobs"). It emits no
// ExtractedLinks of its own kind; the engine reads Metalink off the
// ParseResult directly.
type MetalinkParser struct{}

func NewMetalinkParser() *MetalinkParser { return &MetalinkParser{} }

func (p *MetalinkParser) ContentTypes() []string {
	return []string{"application/metalink+xml"}
}

type metalinkDoc struct {
	XMLName xml.Name `xml:"metalink"`
	Files   []struct {
		Name string `xml:"name,attr"`
		Size int64  `xml:"size"`
		Hash []struct {
			Type  string `xml:"type,attr"`
			Value string `xml:",chardata"`
		} `xml:"hash"`
		Pieces struct {
			Length int64  `xml:"length,attr"`
			Type   string `xml:"type,attr"`
			Hashes []string `xml:"hash"`
		} `xml:"pieces"`
		URLs []struct {
			Priority int    `xml:"priority,attr"`
			Value    string `xml:",chardata"`
		} `xml:"url"`
	} `xml:"file"`
}

func (p *MetalinkParser) Parse(body []byte, sourceEncoding string, baseURI uri.URI) (ParseResult, error) {
	var doc metalinkDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return ParseResult{}, &ParseError{Message: err.Error(), Cause: ErrCauseMalformedDocument}
	}
	if len(doc.Files) == 0 {
		return ParseResult{}, &ParseError{Message: "metalink document has no <file> entries", Cause: ErrCauseMalformedDocument}
	}

	f := doc.Files[0]

	ml := &job.Metalink{
		Name: f.Name,
		Size: f.Size,
	}
	for _, h := range f.Hash {
		if h.Type == "sha-256" || h.Type == "sha256" {
			ml.GlobalHash = h.Value
		}
	}

	for _, u := range f.URLs {
		resolved, err := uri.Resolve(baseURI, u.Value)
		if err != nil {
			continue
		}
		ml.Mirrors = append(ml.Mirrors, job.Mirror{URL: resolved, Priority: u.Priority})
	}

	if f.Pieces.Length > 0 && len(f.Pieces.Hashes) > 0 {
		var pos int64
		for i, hash := range f.Pieces.Hashes {
			length := f.Pieces.Length
			if pos+length > f.Size {
				length = f.Size - pos
			}
			ml.Pieces = append(ml.Pieces, job.Part{
				ID:       i,
				Position: pos,
				Length:   length,
				Hash:     hash,
			})
			pos += length
		}
	}

	return ParseResult{Metalink: ml}, nil
}
