package job_test

import (
	"testing"

	"github.com/rohmanhakim/webretriever/internal/job"
	"github.com/rohmanhakim/webretriever/internal/uri"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) uri.URI {
	t.Helper()
	u, err := uri.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestNew_SetsOriginalURIAndID(t *testing.T) {
	target := mustParse(t, "https://example.com/a")
	j := job.New(target, nil, true)

	assert.Equal(t, target, j.URI)
	assert.Equal(t, target, j.OriginalURI)
	assert.True(t, j.RequestedByUser)
	assert.NotEqual(t, [16]byte{}, j.ID)
}

func TestRedirected_BumpsRedirectionLevelPreservesRecursion(t *testing.T) {
	seed := mustParse(t, "http://h/x")
	j := job.New(seed, nil, true)
	j.RecursionLevel = 2

	redirectTarget := mustParse(t, "https://h/x")
	next := j.Redirected(redirectTarget)

	assert.Equal(t, 1, next.RedirectionLevel)
	assert.Equal(t, 2, next.RecursionLevel)
	assert.Equal(t, seed, next.OriginalURI)
	require.NotNil(t, next.Referer)
	assert.Equal(t, seed, *next.Referer)
}

func TestDiscovered_BumpsRecursionLevelResetsRedirection(t *testing.T) {
	seed := mustParse(t, "http://h/a.html")
	j := job.New(seed, nil, true)
	j.RecursionLevel = 1
	j.RedirectionLevel = 3

	child := mustParse(t, "http://h/b.html")
	next := j.Discovered(child)

	assert.Equal(t, 2, next.RecursionLevel)
	assert.Equal(t, 0, next.RedirectionLevel)
	assert.Equal(t, child, next.OriginalURI)
}

func TestInUseLifecycle(t *testing.T) {
	j := job.New(mustParse(t, "http://h/a"), nil, true)
	assert.False(t, j.InUse())
	j.MarkInUse()
	assert.True(t, j.InUse())
	j.MarkReleased()
	assert.False(t, j.InUse())
}

func TestSynthesizeChunked_EqualPieces(t *testing.T) {
	origin := mustParse(t, "http://h/big")
	ml := job.SynthesizeChunked(origin, "big", 3_000_000, 1_000_000)
	require.NotNil(t, ml)
	assert.Len(t, ml.Pieces, 3)
	assert.Equal(t, int64(3_000_000), ml.Size)
	var sum int64
	for i, p := range ml.Pieces {
		assert.Equal(t, i, p.ID)
		sum += p.Length
	}
	assert.Equal(t, ml.Size, sum)
}

func TestSynthesizeChunked_UnevenRemainder(t *testing.T) {
	origin := mustParse(t, "http://h/big")
	ml := job.SynthesizeChunked(origin, "big", 2_500_000, 1_000_000)
	require.NotNil(t, ml)
	require.Len(t, ml.Pieces, 3)
	assert.Equal(t, int64(500_000), ml.Pieces[2].Length)
}

func TestSynthesizeChunked_SizeEqualsChunkSizeIsNotChunked(t *testing.T) {
	origin := mustParse(t, "http://h/exact")
	ml := job.SynthesizeChunked(origin, "exact", 1_000_000, 1_000_000)
	assert.Nil(t, ml)
}

func TestSynthesizeChunked_ZeroChunkSizeDisabled(t *testing.T) {
	origin := mustParse(t, "http://h/x")
	ml := job.SynthesizeChunked(origin, "x", 5_000_000, 0)
	assert.Nil(t, ml)
}
