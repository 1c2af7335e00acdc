// Package convert implements the §4.11 post-pass: once the worker pool
// has terminated, every HTML document written to disk with convert_links
// set has its recorded link occurrences rewritten to point at the local
// copy of whatever was also downloaded, leaving everything else absolute.
package convert

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// Occurrence is one rewritable reference inside a saved document: the
// exact byte range of the URL text (not the surrounding attribute) as it
// appeared when the document was parsed, plus the absolute URL it
// resolved to.
type Occurrence struct {
	Offset int
	Length int
	URL    string
}

// URLIndex resolves an absolute URL to the local path it was (or will be)
// saved under, mirroring the spec's "Known-URLs (for parsers)" shared
// table (§5). Lookup returns ok=false for anything never fetched.
type URLIndex interface {
	Lookup(absoluteURL string) (localPath string, ok bool)
}

// document is one recorded HTML file awaiting conversion.
type document struct {
	path        string
	occurrences []Occurrence
}

// Registry accumulates documents during the crawl (worker on HTML parse,
// per the §5 "Conversions vector" row) and rewrites them all in Run, which
// the engine calls once after every worker has exited.
type Registry struct {
	mu        sync.Mutex
	documents []document
	backup    bool
}

func NewRegistry(backupConverted bool) *Registry {
	return &Registry{backup: backupConverted}
}

// Record stores path's occurrences for the post-pass. Called by a worker
// immediately after a successful HTML parse and write, under the
// conversions-mutex per §5.
func (r *Registry) Record(path string, occurrences []Occurrence) {
	if len(occurrences) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents = append(r.documents, document{path: path, occurrences: occurrences})
}

// Run rewrites every recorded document against index, resolving each
// occurrence to a relative path when index has it and leaving it absolute
// otherwise. It is only safe to call after the worker pool has fully
// drained (§4.11: "After the worker pool terminates").
func (r *Registry) Run(index URLIndex) error {
	r.mu.Lock()
	docs := r.documents
	r.mu.Unlock()

	for _, d := range docs {
		if err := r.convertOne(d, index); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) convertOne(d document, index URLIndex) error {
	original, err := os.ReadFile(d.path)
	if err != nil {
		return err
	}

	rewritten := rewrite(original, d.occurrences, index, d.path)
	if bytes.Equal(rewritten, original) {
		return nil
	}

	if r.backup {
		if err := os.WriteFile(d.path+".orig", original, 0o644); err != nil {
			return err
		}
	}

	return os.WriteFile(d.path, rewritten, 0o644)
}

// rewrite replaces each occurrence's byte range with a path relative to
// docPath when index resolves it, leaving the surrounding bytes
// untouched. Occurrences are applied back-to-front so earlier offsets
// stay valid as the buffer's length changes.
func rewrite(body []byte, occurrences []Occurrence, index URLIndex, docPath string) []byte {
	ordered := append([]Occurrence(nil), occurrences...)
	for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	}

	out := append([]byte(nil), body...)
	for _, occ := range ordered {
		if occ.Offset < 0 || occ.Offset+occ.Length > len(out) {
			continue
		}
		localPath, ok := index.Lookup(occ.URL)
		if !ok {
			continue
		}
		rel, err := filepath.Rel(filepath.Dir(docPath), localPath)
		if err != nil {
			continue
		}
		out = append(out[:occ.Offset], append([]byte(rel), out[occ.Offset+occ.Length:]...)...)
	}
	return out
}

// linkAttrPattern matches href="..."/src="..." attribute values in raw
// HTML bytes, capturing the URL's exact byte range for later rewriting —
// the same raw-bytes-regex technique content.CSSParser uses for url(...),
// applied here because byte offsets (not a parsed DOM) are what the
// post-pass needs.
var linkAttrPattern = regexp.MustCompile(`(?i)(?:href|src|action)\s*=\s*"([^"]*)"`)

// ScanOccurrences finds every href/src/action attribute value in an HTML
// document and resolves it against resolve, producing the Occurrence list
// a worker passes to Registry.Record right after parsing the same
// document with content.HTMLParser.
func ScanOccurrences(body []byte, resolve func(raw string) (absoluteURL string, ok bool)) []Occurrence {
	var occurrences []Occurrence
	for _, m := range linkAttrPattern.FindAllSubmatchIndex(body, -1) {
		start, end := m[2], m[3]
		raw := string(body[start:end])
		absolute, ok := resolve(raw)
		if !ok {
			continue
		}
		occurrences = append(occurrences, Occurrence{Offset: start, Length: end - start, URL: absolute})
	}
	return occurrences
}
