package sink

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/rohmanhakim/webretriever/internal/uri"
)

// NamingOptions controls local filename construction (§6 "Local filename
// construction"): protocol and host directories, a cut of the leading N
// directory components, the query-string-in-filename toggle, and the
// restrict_file_names sanitization mode.
type NamingOptions struct {
	DirectoryPrefix     string
	ProtocolDirectories bool
	HostDirectories     bool
	CutDirs             int
	CutFileGetVars      bool
	RestrictFileNames   string
}

// extensionTable is the SPEC_FULL §9.1-3 extension-adjustment table: fires
// only when the filename doesn't already end (case-insensitively) with the
// target extension; every other content type is left opaque.
var extensionTable = map[string]string{
	"text/html":                ".html",
	"application/xhtml+xml":    ".html",
	"text/css":                 ".css",
	"application/atom+xml":     ".atom",
	"application/rss+xml":      ".rss",
	"application/xml+sitemap":  ".xml",
	"application/metalink+xml": ".meta4",
}

// LocalPath builds the on-disk path for u under opts.DirectoryPrefix,
// mirroring the teacher's deterministic-layout pattern but keyed by the
// URL's own host/path rather than a content hash, per §6's
// protocol_directories / host_directories / cut_dirs knobs.
func LocalPath(u uri.URI, opts NamingOptions) string {
	// Trim only the leading slash: a trailing one marks a directory
	// request (§4.8's index.html default) and must survive the split as
	// an empty final segment, not be silently trimmed away with it.
	segments := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if opts.CutDirs > 0 && opts.CutDirs < len(segments) {
		segments = segments[opts.CutDirs:]
	}
	name := segments[len(segments)-1]
	if name == "" {
		name = "index.html"
	}
	if !opts.CutFileGetVars && u.Query != "" {
		name += "@" + u.Query
	}
	name = restrictName(name, opts.RestrictFileNames)
	dirSegments := segments[:len(segments)-1]

	parts := []string{opts.DirectoryPrefix}
	if opts.ProtocolDirectories {
		parts = append(parts, u.Scheme)
	}
	if opts.HostDirectories {
		parts = append(parts, u.Host)
	}
	parts = append(parts, dirSegments...)
	parts = append(parts, name)

	return filepath.Join(parts...)
}

// windowsReserved is the set of characters Windows forbids in a filename,
// beyond what every other restrict_file_names mode already strips.
const windowsReserved = `\/:*?"<>|`

// restrictName applies the §6 restrict_file_names sanitization: "unix"
// strips NUL and '/'; "windows" additionally strips the Windows-reserved
// character set and trailing dots/spaces; "nocontrol" strips C0 control
// characters; "ascii" drops anything outside the printable ASCII range;
// "lowercase"/"uppercase" case-fold the result. "none" (the default)
// passes name through unchanged.
func restrictName(name, mode string) string {
	switch mode {
	case "unix":
		return stripRunes(name, func(r rune) bool { return r == 0 || r == '/' })
	case "windows":
		stripped := stripRunes(name, func(r rune) bool { return r == 0 || strings.ContainsRune(windowsReserved, r) })
		return strings.TrimRight(stripped, ". ")
	case "nocontrol":
		return stripRunes(name, unicode.IsControl)
	case "ascii":
		return stripRunes(name, func(r rune) bool { return r < 0x20 || r > 0x7e })
	case "lowercase":
		return strings.ToLower(name)
	case "uppercase":
		return strings.ToUpper(name)
	default:
		return name
	}
}

func stripRunes(s string, drop func(rune) bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if drop(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// AdjustExtension appends the content-type-appropriate extension to path
// if it doesn't already end with one (case-insensitively), per §4.8 step 2
// and SPEC_FULL §9.1-3. Content types outside the static table are left
// opaque.
func AdjustExtension(path, contentType string) string {
	ext, ok := extensionTable[contentType]
	if !ok {
		return path
	}
	if strings.HasSuffix(strings.ToLower(path), ext) {
		return path
	}
	return path + ext
}
