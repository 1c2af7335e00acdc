// Package uri implements the engine's URI value type and normalizer
// (§4.1): parsing and canonicalizing absolute and relative URIs, with
// IRI->ASCII conversion for internationalized hosts.
package uri

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"

	"github.com/rohmanhakim/webretriever/pkg/urlutil"
)

// URI is the engine's immutable, normalized URI value (§3 DATA MODEL).
// Once constructed by Parse or Resolve, a URI never changes; every
// transformation returns a new value.
type URI struct {
	Scheme      string
	Host        string
	Port        string
	Path        string
	Query       string
	Fragment    string
	IsIPAddress bool
}

// String renders the URI back to its canonical wire form.
func (u URI) String() string {
	raw := url.URL{
		Scheme:   u.Scheme,
		Host:     u.hostport(),
		Path:     u.Path,
		RawQuery: u.Query,
		Fragment: u.Fragment,
	}
	return raw.String()
}

func (u URI) hostport() string {
	if u.Port == "" {
		return u.Host
	}
	return u.Host + ":" + u.Port
}

// CanonicalKey is the string used as the blacklist admission key: scheme,
// host, port, path, and query, normalized, with the fragment dropped
// (fragments are never sent to the server so never distinguish resources).
func (u URI) CanonicalKey() string {
	return u.String()
}

// Origin returns the (scheme, host, port) triple identifying the Host
// registry bucket this URI belongs to.
func (u URI) Origin() (scheme, host, port string) {
	return u.Scheme, u.Host, u.Port
}

// Parse normalizes an absolute URI string into a canonical URI, or fails
// with an *Error whose Cause is CauseMalformed or CauseUnsupportedScheme.
func Parse(raw string) (URI, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return URI{}, &Error{Cause: CauseMalformed, Message: err.Error()}
	}
	if !parsed.IsAbs() {
		return URI{}, &Error{Cause: CauseMalformed, Message: fmt.Sprintf("not an absolute URI: %q", raw)}
	}
	return fromParsedURL(*parsed)
}

// Resolve resolves a candidate reference (absolute or relative) against
// base, producing a canonical absolute URI.
func Resolve(base URI, ref string) (URI, error) {
	baseURL, err := url.Parse(base.String())
	if err != nil {
		return URI{}, &Error{Cause: CauseMalformed, Message: err.Error()}
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return URI{}, &Error{Cause: CauseMalformed, Message: err.Error()}
	}
	resolved := baseURL.ResolveReference(refURL)
	return fromParsedURL(*resolved)
}

func fromParsedURL(parsed url.URL) (URI, error) {
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return URI{}, &Error{Cause: CauseUnsupportedScheme, Message: parsed.Scheme}
	}

	canonical := urlutil.Canonicalize(parsed)

	asciiHost, err := toASCIIHost(canonical.Hostname())
	if err != nil {
		return URI{}, &Error{Cause: CauseMalformed, Message: fmt.Sprintf("host %q: %v", canonical.Hostname(), err)}
	}

	path := canonical.EscapedPath()
	if path == "" {
		path = "/"
	}

	return URI{
		Scheme:      canonical.Scheme,
		Host:        asciiHost,
		Port:        canonical.Port(),
		Path:        path,
		Query:       canonical.RawQuery,
		Fragment:    "",
		IsIPAddress: isIPAddress(canonical.Hostname()),
	}, nil
}

// toASCIIHost converts an internationalized domain name to its ASCII
// (punycode) form per §3's invariant "host is lowercase punycode-encoded".
// IP-literal hosts pass through unchanged.
func toASCIIHost(host string) (string, error) {
	if isIPAddress(host) {
		return strings.ToLower(host), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", err
	}
	return strings.ToLower(ascii), nil
}

func isIPAddress(host string) bool {
	return strings.Count(host, ".") == 3 && isAllDigitsAndDots(host) || strings.Contains(host, ":")
}

func isAllDigitsAndDots(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}
