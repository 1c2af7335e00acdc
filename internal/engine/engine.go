// Package engine wires the frontier, host registry, HTTP connection pool,
// response dispatcher, file sink, and content parsers into the worker
// pool described in §4.6: a fixed-size set of downloader goroutines, each
// driving a job through GET_JOB -> GET_RESPONSE -> (GET_JOB | ERROR) ->
// ... -> EXIT. Go's scheduler makes the four states implicit in control
// flow rather than an explicit state field: GET_JOB is the top of the
// loop, GET_RESPONSE is the body of fetch, ERROR is its failure branch,
// and EXIT is returning from the goroutine when the context is done or
// the frontier is permanently empty.
package engine

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rohmanhakim/webretriever/internal/blacklist"
	"github.com/rohmanhakim/webretriever/internal/content"
	"github.com/rohmanhakim/webretriever/internal/convert"
	"github.com/rohmanhakim/webretriever/internal/frontier"
	"github.com/rohmanhakim/webretriever/internal/host"
	"github.com/rohmanhakim/webretriever/internal/httpconn"
	"github.com/rohmanhakim/webretriever/internal/job"
	"github.com/rohmanhakim/webretriever/internal/metadata"
	"github.com/rohmanhakim/webretriever/internal/robots"
	"github.com/rohmanhakim/webretriever/internal/robots/cache"
	"github.com/rohmanhakim/webretriever/internal/signal"
	"github.com/rohmanhakim/webretriever/internal/sink"
	"github.com/rohmanhakim/webretriever/internal/stats"
	"github.com/rohmanhakim/webretriever/internal/uri"
	"github.com/rohmanhakim/webretriever/pkg/fileutil"
	"github.com/rohmanhakim/webretriever/pkg/limiter"
)

// Engine owns every collaborator of a single crawl run. It is built once
// by the CLI and run to completion; nothing about it is reusable across
// runs (a fresh Engine is cheaper than resetting one).
type Engine struct {
	opts Options

	hosts     *host.Registry
	seen      *blacklist.Blacklist
	frontier  *frontier.Manager
	pacing    limiter.RateLimiter
	pool      *httpconn.Pool
	sinkImpl  sink.Sink
	parsers   *content.Registry
	robotsFetcher *robots.RobotsFetcher
	robotsReg *robots.Registry
	metadataSink metadata.MetadataSink
	finalizer    metadata.CrawlFinalizer
	collector    *stats.Collector
	signals      *signal.Manager
	conversions  *convert.Registry
	stores       *noopStores

	mu        sync.Mutex
	active    atomic.Int32
	seedHost  string

	knownMu  sync.Mutex
	known    map[string]string // absolute URL -> local path, written by successful sink writes

	etagMu sync.Mutex
	etags  map[string]struct{}
}

// New builds an Engine from opts and a metadata sink; every other
// collaborator is constructed with sensible defaults grounded in §4's
// component designs. Callers that need a custom RateLimiter, HSTS store,
// or robots cache should use NewWithCollaborators instead.
func New(opts Options, metadataSink metadata.MetadataSink) *Engine {
	pacing := limiter.NewConcurrentRateLimiter()
	pacing.SetBaseDelay(opts.Wait)
	if opts.RandomWait {
		pacing.SetJitter(opts.Wait / 2)
	}
	return NewWithCollaborators(opts, metadataSink, pacing, httpconn.NewPool(httpconn.NewInMemoryHSTS(), 100, 10*time.Second, 30*time.Second), cache.NewMemoryCache())
}

// NewWithCollaborators builds an Engine with explicit rate limiter,
// connection pool, and robots cache, for callers (tests, or a CLI flag
// wiring a persistent cache) that need to supply their own.
func NewWithCollaborators(opts Options, metadataSink metadata.MetadataSink, pacing limiter.RateLimiter, pool *httpconn.Pool, robotsCache cache.Cache) *Engine {
	hosts := host.NewRegistry()
	seen := blacklist.New()

	e := &Engine{
		opts:         opts,
		hosts:        hosts,
		seen:         seen,
		pacing:       pacing,
		pool:         pool,
		sinkImpl:     sink.NewLocalSink(metadataSink, opts.SinkPolicy),
		parsers:      content.NewRegistry(),
		robotsFetcher: robots.NewRobotsFetcher(metadataSink, opts.UserAgent, robotsCache),
		robotsReg:    robots.NewRegistry(),
		metadataSink: metadataSink,
		collector:    stats.New(),
		signals:      signal.NewManager(),
		stores:       newNoopStores(),
		known:        make(map[string]string),
		etags:        make(map[string]struct{}),
	}
	if finalizer, ok := metadataSink.(metadata.CrawlFinalizer); ok {
		e.finalizer = finalizer
	}
	if opts.ConvertLinks && !opts.DeleteAfter {
		e.conversions = convert.NewRegistry(opts.BackupConverted)
	}
	e.frontier = frontier.NewManager(hosts, seen, pacing, opts.MaxTries, opts.WaitRetry, opts.RandomWait)
	return e
}

// Seed admits the run's starting URIs (§4 "Data flow: seed URIs enter via
// the input thread"). The first seed's host becomes the scope's reference
// host for span_hosts decisions; no_parent compares against the linking
// page's own path instead.
func (e *Engine) Seed(seeds []uri.URI) {
	for i, u := range seeds {
		if i == 0 {
			e.seedHost = u.Host
		}
		j := job.New(u, nil, true)
		e.admitAndEnqueue(j)
	}
}

// Run starts opts.MaxWorkers downloader goroutines and blocks until the
// frontier drains, the context is cancelled, or the signal manager's soft
// terminate fires. It always runs the link-conversion post-pass and
// finalizes stats before returning, even on early termination, since
// whatever was already written to disk should still get its post-pass.
func (e *Engine) Run(ctx context.Context) error {
	stop := e.signals.ListenForInterrupts()
	defer stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-e.signals.Context().Done()
		cancel()
	}()

	group, gctx := errgroup.WithContext(ctx)
	workers := e.opts.MaxWorkers
	if workers <= 0 {
		workers = 5
	}
	for i := 0; i < workers; i++ {
		group.Go(func() error {
			e.workerLoop(gctx)
			return nil
		})
	}

	err := group.Wait()

	if e.conversions != nil {
		_ = e.conversions.Run(e)
	}
	if e.opts.DeleteAfter {
		e.knownMu.Lock()
		for _, p := range e.known {
			if !fileutil.IsSinkSpecialName(p) {
				_ = os.Remove(p)
			}
		}
		e.knownMu.Unlock()
	}
	if e.finalizer != nil {
		snap := e.collector.Finalize()
		e.finalizer.RecordFinalCrawlStats(snap.TotalPages, snap.TotalErrors, snap.TotalAssets, snap.Duration)
	}
	if shutdownErr := e.Shutdown(); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}

// Shutdown flushes the persisted-cache collaborators (§4.12: HSTS, HPKP,
// OCSP, TLS session resumption, netrc) after every worker has joined and
// before the process exits. Run already calls this; it's exported so a
// caller driving the worker pool directly (tests, an embedder) can still
// honor the same ordering.
func (e *Engine) Shutdown() error {
	return e.stores.flush()
}

// Lookup implements convert.URLIndex, backing the link-conversion
// post-pass's "local copy of whatever was also downloaded" rule.
func (e *Engine) Lookup(absoluteURL string) (string, bool) {
	e.knownMu.Lock()
	defer e.knownMu.Unlock()
	p, ok := e.known[absoluteURL]
	return p, ok
}

func (e *Engine) recordKnown(absoluteURL, localPath string) {
	e.knownMu.Lock()
	defer e.knownMu.Unlock()
	e.known[absoluteURL] = localPath
}

// seenETag reports whether etag was already recorded this run and records
// it if not, realizing §4.7's "ETag-seen filter prevents re-crawling
// identical resources across runs within the process" under its own
// etag-mutex (§5's shared-state table keeps this lock separate from the
// frontier lock).
func (e *Engine) seenETag(etag string) bool {
	e.etagMu.Lock()
	defer e.etagMu.Unlock()
	_, ok := e.etags[etag]
	return ok
}

func (e *Engine) rememberETag(etag string) {
	e.etagMu.Lock()
	defer e.etagMu.Unlock()
	e.etags[etag] = struct{}{}
}

// workerLoop is one downloader thread's four-state machine. GET_JOB is
// the loop's top: acquire a unit of work or decide the frontier is
// permanently drained. GET_RESPONSE, ERROR, and the releasing of the unit
// back to the frontier all happen inside dispatchUnit.
func (e *Engine) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		unit, h, ok := e.nextUnit(ctx)
		if !ok {
			return
		}

		e.dispatchUnit(ctx, h, unit)
		e.active.Add(-1)
		e.reapHostIfDrained(h)

		if e.opts.Wait > 0 {
			sleepCtx(ctx, e.pacing.ResolveDelay(h.Hostname))
		}
	}
}

// nextUnit implements GET_JOB's "queue empty" branches: poll the
// frontier, and when nothing is ready, back off for SleepHint (or a small
// fixed interval when the frontier reports no hint at all) rather than
// busy-spinning. It reports ok=false once no worker has anything in
// flight and every host queue has drained, which is this engine's
// idiomatic-Go stand-in for the spec's worker_cond/main_cond signaling.
func (e *Engine) nextUnit(ctx context.Context) (*frontier.DispatchUnit, *host.Host, bool) {
	for {
		select {
		case <-ctx.Done():
			return nil, nil, false
		default:
		}

		result := e.frontier.AcquireJob()
		if result.Unit != nil {
			e.active.Add(1)
			h, _ := e.hosts.Get(result.Unit.Job.URI)
			return result.Unit, h, true
		}

		if e.active.Load() == 0 && e.hosts.Len() == 0 {
			return nil, nil, false
		}

		wait := result.SleepHint
		if wait <= 0 {
			wait = 50 * time.Millisecond
		}
		if !sleepCtx(ctx, wait) {
			return nil, nil, false
		}
	}
}

// reapHostIfDrained removes h from the registry once nothing remains to
// dispatch for it (§3 "Host ... destroyed when its queue empties and all
// workers release it").
func (e *Engine) reapHostIfDrained(h *host.Host) {
	if h == nil {
		return
	}
	if h.Jobs.Size() == 0 && h.InFlightCount == 0 {
		e.hosts.Remove(uri.URI{Scheme: h.Scheme, Host: h.Hostname, Port: h.Port})
	}
}

// sleepCtx sleeps for d or until ctx is cancelled, whichever comes first,
// reporting false if cancellation won the race.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
