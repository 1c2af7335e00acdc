// Package stats implements the process-wide statistics collector (§2 item
// 10, §3 "Quota, stats, flags: process-wide counters updated by atomic
// fetch-add"). Nothing here feeds back into scheduling decisions; it is
// read once, at the end of a run, by the CrawlFinalizer (§8 invariant:
// "the quota counter is monotonically non-decreasing and equals the total
// of response body lengths written").
package stats

import (
	"sync/atomic"
	"time"
)

// Collector holds every atomic counter the engine updates during a crawl.
// Safe for concurrent use by every worker goroutine; no locking beyond the
// atomics themselves.
type Collector struct {
	pagesFetched   atomic.Int64
	assetsFetched  atomic.Int64
	bytesWritten   atomic.Int64
	redirects      atomic.Int64
	chunks         atomic.Int64
	authFailures   atomic.Int64
	notModified    atomic.Int64
	errors         atomic.Int64
	startedAt      time.Time
}

// New returns a Collector with its clock started at construction time.
func New() *Collector {
	return &Collector{startedAt: time.Now()}
}

func (c *Collector) AddPageFetched()          { c.pagesFetched.Add(1) }
func (c *Collector) AddAssetFetched()         { c.assetsFetched.Add(1) }
func (c *Collector) AddBytesWritten(n int64)  { c.bytesWritten.Add(n) }
func (c *Collector) AddRedirect()             { c.redirects.Add(1) }
func (c *Collector) AddChunk()                { c.chunks.Add(1) }
func (c *Collector) AddAuthFailure()          { c.authFailures.Add(1) }
func (c *Collector) AddNotModified()          { c.notModified.Add(1) }
func (c *Collector) AddError()                { c.errors.Add(1) }

func (c *Collector) PagesFetched() int64  { return c.pagesFetched.Load() }
func (c *Collector) AssetsFetched() int64 { return c.assetsFetched.Load() }
func (c *Collector) BytesWritten() int64  { return c.bytesWritten.Load() }
func (c *Collector) Redirects() int64     { return c.redirects.Load() }
func (c *Collector) Chunks() int64        { return c.chunks.Load() }
func (c *Collector) AuthFailures() int64  { return c.authFailures.Load() }
func (c *Collector) NotModified() int64   { return c.notModified.Load() }
func (c *Collector) Errors() int64        { return c.errors.Load() }

// Snapshot freezes the current counters for RecordFinalCrawlStats, called
// exactly once after the worker pool has drained.
type Snapshot struct {
	TotalPages  int
	TotalErrors int
	TotalAssets int
	Duration    time.Duration
}

// Finalize produces the terminal Snapshot handed to a
// metadata.CrawlFinalizer. Calling it does not reset the Collector; the
// caller is expected to call it once, at shutdown.
func (c *Collector) Finalize() Snapshot {
	return Snapshot{
		TotalPages:  int(c.pagesFetched.Load()),
		TotalErrors: int(c.errors.Load()),
		TotalAssets: int(c.assetsFetched.Load()),
		Duration:    time.Since(c.startedAt),
	}
}
