package uri_test

import (
	"testing"

	"github.com/rohmanhakim/webretriever/internal/uri"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_CanonicalizesSchemeAndHost(t *testing.T) {
	u, err := uri.Parse("HTTPS://Example.COM:443/Guide")
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "example.com", u.Host)
	assert.Equal(t, "", u.Port)
	assert.Equal(t, "/Guide", u.Path)
}

func TestParse_RejectsRelative(t *testing.T) {
	_, err := uri.Parse("/just/a/path")
	require.Error(t, err)
	var uriErr *uri.Error
	require.ErrorAs(t, err, &uriErr)
	assert.Equal(t, uri.CauseMalformed, uriErr.Cause)
}

func TestParse_RejectsUnsupportedScheme(t *testing.T) {
	_, err := uri.Parse("ftp://example.com/file")
	require.Error(t, err)
	var uriErr *uri.Error
	require.ErrorAs(t, err, &uriErr)
	assert.Equal(t, uri.CauseUnsupportedScheme, uriErr.Cause)
}

func TestParse_PunycodesInternationalHost(t *testing.T) {
	u, err := uri.Parse("https://пример.испытание/path")
	require.NoError(t, err)
	assert.Contains(t, u.Host, "xn--")
}

func TestParse_PreservesIPLiteralHost(t *testing.T) {
	u, err := uri.Parse("http://192.168.1.1/path")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.1", u.Host)
	assert.True(t, u.IsIPAddress)
}

func TestParse_Idempotent(t *testing.T) {
	u1, err := uri.Parse("https://Example.com:443/a/b/")
	require.NoError(t, err)
	u2, err := uri.Parse(u1.String())
	require.NoError(t, err)
	assert.Equal(t, u1, u2)
}

func TestResolve_RelativePath(t *testing.T) {
	base, err := uri.Parse("https://example.com/docs/index.html")
	require.NoError(t, err)
	resolved, err := uri.Resolve(base, "../images/logo.png")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/images/logo.png", resolved.String())
}

func TestResolve_AbsoluteOverridesBase(t *testing.T) {
	base, err := uri.Parse("https://example.com/docs/index.html")
	require.NoError(t, err)
	resolved, err := uri.Resolve(base, "http://other.example/page")
	require.NoError(t, err)
	assert.Equal(t, "http", resolved.Scheme)
	assert.Equal(t, "other.example", resolved.Host)
}

func TestCanonicalKey_DropsFragmentKeepsQuery(t *testing.T) {
	u, err := uri.Parse("https://example.com/page?id=1#section")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page?id=1", u.CanonicalKey())
}

func TestOrigin(t *testing.T) {
	u, err := uri.Parse("https://example.com:8443/page")
	require.NoError(t, err)
	scheme, host, port := u.Origin()
	assert.Equal(t, "https", scheme)
	assert.Equal(t, "example.com", host)
	assert.Equal(t, "8443", port)
}
