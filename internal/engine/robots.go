package engine

import (
	"context"
	"time"

	"github.com/rohmanhakim/webretriever/internal/frontier"
	"github.com/rohmanhakim/webretriever/internal/host"
	"github.com/rohmanhakim/webretriever/internal/job"
	"github.com/rohmanhakim/webretriever/internal/metadata"
	"github.com/rohmanhakim/webretriever/internal/robots"
)

// handleRobotsJob fetches and applies h's robots.txt (§4.10), then
// admits any Sitemap URLs it declared as ordinary discovered jobs before
// releasing the synthetic robots unit itself. A 4xx (or any fetch
// failure robots.RobotsFetcher already maps to "allow all") never blocks
// the host's real jobs: robots.ApplyToHost has already recorded that in
// h.Robots, so admission simply proceeds once this returns.
func (e *Engine) handleRobotsJob(ctx context.Context, h *host.Host, unit *frontier.DispatchUnit) {
	j := unit.Job

	result, fetchErr := e.robotsFetcher.Fetch(ctx, h.Scheme, h.Hostname)
	if fetchErr != nil && e.metadataSink != nil {
		e.metadataSink.RecordError(time.Now(), "engine", "robots", metadata.CauseNetworkFailure, fetchErr.Error(), []metadata.Attribute{
			metadata.NewAttr(metadata.AttrHost, h.Hostname),
		})
	}

	robots.ApplyToHost(h, e.robotsReg, result, e.opts.UserAgent)
	h.RobotJobPending = false

	if e.opts.RespectRobots {
		for _, sitemapURI := range h.Robots.Sitemaps {
			sitemapJob := job.New(sitemapURI, &j.URI, false)
			sitemapJob.Sitemap = true
			e.frontier.Enqueue(sitemapJob)
		}
	}

	e.frontier.ReleaseJob(h, unit, frontier.Completed)
}
