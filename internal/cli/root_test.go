package cmd_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cmd "github.com/rohmanhakim/webretriever/internal/cli"
	"github.com/rohmanhakim/webretriever/internal/config"
	"github.com/rohmanhakim/webretriever/internal/uri"
)

func seedURIs(t *testing.T, raw ...string) []uri.URI {
	t.Helper()
	uris := make([]uri.URI, len(raw))
	for i, r := range raw {
		u, err := uri.Parse(r)
		require.NoError(t, err)
		uris[i] = u
	}
	return uris
}

func TestParseSeedURIs_RejectsRelative(t *testing.T) {
	cmd.ResetFlags()
	_, err := uri.Parse("docs/index.html")
	assert.Error(t, err)
}

func TestBuildConfigForTest_Defaults(t *testing.T) {
	cmd.ResetFlags()

	cfg, err := cmd.BuildConfigForTest(seedURIs(t, "https://example.org/docs"))
	require.NoError(t, err)

	assert.Equal(t, 1, len(cfg.SeedURLs()))
	assert.Equal(t, "example.org", cfg.SeedURLs()[0].Host)
}

func TestTranslateOptionsForTest_MapsFields(t *testing.T) {
	cmd.ResetFlags()

	cfg, err := cmd.BuildConfigForTest(seedURIs(t, "https://example.org"))
	require.NoError(t, err)

	opts := cmd.TranslateOptionsForTest(cfg)

	assert.Equal(t, cfg.Concurrency(), opts.MaxWorkers)
	assert.Equal(t, cfg.MaxRedirect(), opts.MaxRedirect)
	assert.Equal(t, cfg.Tries(), opts.MaxTries)
	assert.Equal(t, cfg.WaitRetry(), opts.WaitRetry)
	assert.Equal(t, cfg.UserAgent(), opts.UserAgent)
	assert.Equal(t, cfg.RespectRobots(), opts.RespectRobots)
	assert.Equal(t, cfg.OutputDir(), opts.SinkPolicy.Naming.DirectoryPrefix)
	assert.Equal(t, cfg.Clobber(), opts.SinkPolicy.Clobber)
	assert.Equal(t, cfg.SpanHosts(), opts.Scope.SpanHosts)
	assert.Nil(t, opts.Scope.AcceptRegex)
}

func TestTranslateOptionsForTest_CompilesAcceptRegex(t *testing.T) {
	cmd.ResetFlags()

	urlSeeds := toURLs(t, seedURIs(t, "https://example.org"))
	cfg, err := config.WithDefault(urlSeeds).WithAcceptRegex(`\.html$`).Build()
	require.NoError(t, err)

	opts := cmd.TranslateOptionsForTest(cfg)

	require.NotNil(t, opts.Scope.AcceptRegex)
	assert.True(t, opts.Scope.AcceptRegex("/docs/page.html"))
	assert.False(t, opts.Scope.AcceptRegex("/docs/page.pdf"))
}

func toURLs(t *testing.T, uris []uri.URI) []url.URL {
	t.Helper()
	urls := make([]url.URL, len(uris))
	for i, u := range uris {
		parsed, err := url.Parse(u.String())
		require.NoError(t, err)
		urls[i] = *parsed
	}
	return urls
}
