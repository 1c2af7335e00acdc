package frontier_test

import (
	"testing"
	"time"

	"github.com/rohmanhakim/webretriever/internal/blacklist"
	"github.com/rohmanhakim/webretriever/internal/frontier"
	"github.com/rohmanhakim/webretriever/internal/host"
	"github.com/rohmanhakim/webretriever/internal/job"
	"github.com/rohmanhakim/webretriever/internal/uri"
	"github.com/rohmanhakim/webretriever/pkg/limiter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) uri.URI {
	t.Helper()
	u, err := uri.Parse(raw)
	require.NoError(t, err)
	return u
}

func newManager() (*frontier.Manager, *host.Registry) {
	hosts := host.NewRegistry()
	return frontier.NewManager(hosts, blacklist.New(), limiter.NewConcurrentRateLimiter(), 3, 10*time.Millisecond, false), hosts
}

func TestEnqueue_DuplicateTargetRejected(t *testing.T) {
	m, _ := newManager()
	u := mustParse(t, "https://example.com/a")

	assert.True(t, m.Enqueue(job.New(u, nil, true)))
	assert.False(t, m.Enqueue(job.New(u, nil, true)))
}

func TestAcquireJob_ReturnsEnqueuedJob(t *testing.T) {
	m, _ := newManager()
	u := mustParse(t, "https://example.com/a")
	j := job.New(u, nil, true)
	m.Enqueue(j)

	result := m.AcquireJob()
	require.NotNil(t, result.Unit)
	assert.Equal(t, j, result.Unit.Job)
	assert.Nil(t, result.Unit.Part)
}

func TestAcquireJob_RobotsJobTakesPriorityOverQueuedJob(t *testing.T) {
	m, _ := newManager()
	u := mustParse(t, "https://example.com/a")
	ordinary := job.New(u, nil, true)
	m.Enqueue(ordinary)

	robotsURI := mustParse(t, "https://example.com/robots.txt")
	robotsJob := job.New(robotsURI, nil, false)
	robotsJob.RobotsTxt = true
	m.Enqueue(robotsJob)

	result := m.AcquireJob()
	require.NotNil(t, result.Unit)
	assert.True(t, result.Unit.Job.RobotsTxt)
}

func TestAcquireJob_BlocksOtherJobsWhileRobotsJobPending(t *testing.T) {
	m, hosts := newManager()
	robotsURI := mustParse(t, "https://example.com/robots.txt")
	robotsJob := job.New(robotsURI, nil, false)
	robotsJob.RobotsTxt = true
	m.Enqueue(robotsJob)

	ordinary := job.New(mustParse(t, "https://example.com/a"), nil, true)
	m.Enqueue(ordinary)

	first := m.AcquireJob()
	require.NotNil(t, first.Unit)
	require.True(t, first.Unit.Job.RobotsTxt)

	second := m.AcquireJob()
	assert.Nil(t, second.Unit, "ordinary job must not dispatch while robots job is in flight")

	h, ok := hosts.Get(robotsURI)
	require.True(t, ok)
	m.ReleaseJob(h, first.Unit, frontier.Completed)

	third := m.AcquireJob()
	require.NotNil(t, third.Unit)
	assert.False(t, third.Unit.Job.RobotsTxt)
}

func TestReleaseJob_RetryReEnqueuesAtBackOfHostQueue(t *testing.T) {
	m, hosts := newManager()
	u := mustParse(t, "https://example.com/a")
	j := job.New(u, nil, true)
	m.Enqueue(j)

	result := m.AcquireJob()
	require.NotNil(t, result.Unit)

	h, _ := hosts.Get(u)
	m.ReleaseJob(h, result.Unit, frontier.Retry)

	assert.Equal(t, 1, h.Jobs.Size())
	assert.True(t, h.BlockedUntil.After(time.Now()))
}

func TestReleaseJob_FinallyFailedDrainsHostQueue(t *testing.T) {
	hosts := host.NewRegistry()
	m := frontier.NewManager(hosts, blacklist.New(), limiter.NewConcurrentRateLimiter(), 0, 10*time.Millisecond, false)
	u := mustParse(t, "https://example.com/a")
	j1 := job.New(u, nil, true)
	m.Enqueue(j1)
	m.Enqueue(job.New(mustParse(t, "https://example.com/b"), nil, true))

	h, _ := hosts.Get(u)
	require.Equal(t, 2, h.Jobs.Size(), "both jobs queued before the first is dispatched")

	first := m.AcquireJob()
	require.NotNil(t, first.Unit)
	m.ReleaseJob(h, first.Unit, frontier.FinallyFailed)

	assert.Equal(t, 0, h.Jobs.Size(), "exceeding maxTries drains the remaining queue")
}

func TestAcquireJob_MetalinkPartsDispatchConcurrently(t *testing.T) {
	m, hosts := newManager()
	origin := mustParse(t, "https://example.com/big.iso")
	j := job.New(origin, nil, true)
	j.Metalink = job.SynthesizeChunked(origin, "big.iso", 300, 100)
	require.NotNil(t, j.Metalink)
	require.Len(t, j.Metalink.Pieces, 3)
	m.Enqueue(j)

	first := m.AcquireJob()
	require.NotNil(t, first.Unit)
	require.NotNil(t, first.Unit.Part)

	second := m.AcquireJob()
	require.NotNil(t, second.Unit)
	require.NotNil(t, second.Unit.Part)
	assert.NotEqual(t, first.Unit.Part.ID, second.Unit.Part.ID)

	h, _ := hosts.Get(origin)
	assert.Equal(t, 1, h.Jobs.Size(), "metalink job stays queued while parts remain open")

	third := m.AcquireJob()
	require.NotNil(t, third.Unit)

	m.ReleaseJob(h, first.Unit, frontier.Completed)
	m.ReleaseJob(h, second.Unit, frontier.Completed)
	m.ReleaseJob(h, third.Unit, frontier.Completed)

	assert.Equal(t, 0, h.Jobs.Size(), "metalink job dequeues once every part is done")
}
