// Package frontier implements the engine's job queue manager (§4.4):
// enqueue, acquire_job, release_job over the Host registry's per-origin
// FIFO queues. Ordering is FIFO within a host, except a host's robots.txt
// job always sits at the front of its queue and blocks every other job on
// that host until it resolves, and a Metalink job's still-open parts may
// be dequeued concurrently rather than strictly in turn.
package frontier

import (
	"math/rand"
	"time"

	"github.com/rohmanhakim/webretriever/internal/blacklist"
	"github.com/rohmanhakim/webretriever/internal/host"
	"github.com/rohmanhakim/webretriever/internal/job"
	"github.com/rohmanhakim/webretriever/internal/uri"
	"github.com/rohmanhakim/webretriever/pkg/limiter"
)

// Manager is the frontier: it owns no network or parsing logic, only
// ordering, deduplication, and per-host pacing handoffs to RateLimiter.
type Manager struct {
	hosts      *host.Registry
	seen       *blacklist.Blacklist
	pacing     limiter.RateLimiter
	maxTries   int
	waitRetry  time.Duration
	randomWait bool
	rng        *rand.Rand
}

// NewManager builds a frontier over the given collaborators. maxTries is
// config.tries (the finally-failed threshold); waitRetry is config's base
// retry delay, jittered 0.5x-1.5x per job when randomWait is set (§4.4);
// with randomWait false, every job waits exactly waitRetry.
func NewManager(hosts *host.Registry, seen *blacklist.Blacklist, pacing limiter.RateLimiter, maxTries int, waitRetry time.Duration, randomWait bool) *Manager {
	return &Manager{
		hosts:      hosts,
		seen:       seen,
		pacing:     pacing,
		maxTries:   maxTries,
		waitRetry:  waitRetry,
		randomWait: randomWait,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Enqueue admits j's target URI through the blacklist and, if newly
// admitted, pushes j onto its host's queue. A robots.txt job always goes
// to the front; every other job goes to the back. Returns false if the
// target was already admitted (a duplicate discovery), in which case j is
// discarded by the caller.
func (m *Manager) Enqueue(j *job.Job) bool {
	if !m.seen.Admit(j.URI.CanonicalKey()) {
		return false
	}

	h, _ := m.hosts.GetOrCreate(j.URI)
	if j.RobotsTxt {
		h.Jobs.PushFront(j)
		h.RobotJobPending = true
	} else {
		h.Jobs.Enqueue(j)
	}
	return true
}

// HostIsNew reports whether u's origin was unseen before this call,
// creating the Host bucket as a side effect. Callers use this to decide
// whether to enqueue a robots.txt job ahead of the rest of that origin's
// work (§4.3).
func (m *Manager) HostIsNew(u uri.URI) bool {
	_, isNew := m.hosts.GetOrCreate(u)
	return isNew
}

// AcquireJob finds the next dispatchable unit of work across every host,
// honoring each host's BlockedUntil cooldown and its robots-pending gate.
// Hosts are visited in map iteration order; callers relying on global FIFO
// fairness should call AcquireJob from multiple pacing-aware workers
// rather than expecting strict round-robin from a single call.
func (m *Manager) AcquireJob() AcquireResult {
	now := time.Now()
	var sleepHint time.Duration
	sawWork := false

	var result AcquireResult
	m.hosts.Each(func(h *host.Host) {
		if result.Unit != nil {
			return
		}
		if h.Jobs.Size() == 0 {
			return
		}
		sawWork = true

		if now.Before(h.BlockedUntil) {
			wait := h.BlockedUntil.Sub(now)
			if sleepHint == 0 || wait < sleepHint {
				sleepHint = wait
			}
			return
		}

		front, ok := h.Jobs.Peek()
		if !ok {
			return
		}

		if h.RobotJobPending && !front.RobotsTxt {
			// The robots.txt job for this host is still in flight
			// (dequeued but not yet released); every other job on this
			// host waits until it resolves.
			return
		}

		if front.Metalink != nil {
			// The Metalink job itself is never dequeued here: it stays
			// resident at the queue head until every part is Done, so
			// repeated AcquireJob calls keep finding it and handing out
			// whichever parts remain open. It is removed in ReleaseJob
			// once the last part completes.
			if part := nextOpenPart(front.Metalink); part != nil {
				part.InUse = true
				h.InFlightCount++
				result.Unit = &DispatchUnit{Job: front, Part: part}
				return
			}
			// every remaining part is already in flight; nothing more
			// to give out for this host right now.
			return
		}

		h.Jobs.Dequeue()
		front.MarkInUse()
		h.InFlightCount++
		result.Unit = &DispatchUnit{Job: front}
	})

	if result.Unit != nil {
		return result
	}
	if !sawWork {
		return AcquireResult{}
	}
	result.SleepHint = sleepHint
	return result
}

func nextOpenPart(ml *job.Metalink) *job.Part {
	for i := range ml.Pieces {
		p := &ml.Pieces[i]
		if !p.Done && !p.InUse {
			return p
		}
	}
	return nil
}

// ReleaseJob records the outcome of dispatching unit and updates the
// owning host's failure/backoff state accordingly.
func (m *Manager) ReleaseJob(h *host.Host, unit *DispatchUnit, disposition Disposition) {
	if unit.Part != nil {
		m.releasePart(h, unit, disposition)
		return
	}

	h.InFlightCount--
	unit.Job.MarkReleased()

	switch disposition {
	case Completed:
		m.hosts.ResetFailure(h)
		m.pacing.ResetBackoff(h.Hostname)
		if unit.Job.RobotsTxt {
			h.RobotJobPending = false
		}
	case Retry:
		m.pacing.Backoff(h.Hostname)
		delay := m.waitRetryDelay()
		if delay > 0 {
			h.BlockedUntil = time.Now().Add(delay)
		}
		h.Jobs.Enqueue(unit.Job)
	case FinallyFailed:
		if m.hosts.IncreaseFailure(h, m.maxTries) {
			h.RobotJobPending = false
		}
	}
}

// releasePart handles one Metalink part's outcome. The owning Job is never
// re-enqueued here: AcquireJob leaves a Metalink job resident at its host
// queue's head for as long as any part remains open, so the job is only
// ever removed once, by dequeueIfExhausted below.
func (m *Manager) releasePart(h *host.Host, unit *DispatchUnit, disposition Disposition) {
	h.InFlightCount--

	switch disposition {
	case Completed:
		unit.Part.Done = true
		unit.Part.InUse = false
		m.hosts.ResetFailure(h)
	case Retry:
		unit.Part.InUse = false
		m.pacing.Backoff(h.Hostname)
	case FinallyFailed:
		unit.Part.Done = true
		unit.Part.InUse = false
		m.hosts.IncreaseFailure(h, m.maxTries)
	}

	m.dequeueIfExhausted(h, unit.Job)
}

// dequeueIfExhausted removes j from h's queue once every part of its
// Metalink is Done (succeeded or permanently given up on). It only pops
// when j is still at the queue head, which holds as long as nothing else
// was ever pushed ahead of a resident Metalink job.
func (m *Manager) dequeueIfExhausted(h *host.Host, j *job.Job) {
	if !allPartsDone(j.Metalink) {
		return
	}
	if front, ok := h.Jobs.Peek(); ok && front == j {
		h.Jobs.Dequeue()
	}
}

func allPartsDone(ml *job.Metalink) bool {
	for i := range ml.Pieces {
		if !ml.Pieces[i].Done {
			return false
		}
	}
	return true
}

// waitRetryDelay applies random_wait jitter (0.5x-1.5x) to the configured
// base retry delay, only when random_wait is set (§4.4); otherwise the
// delay is exactly waitRetry.
func (m *Manager) waitRetryDelay() time.Duration {
	if m.waitRetry <= 0 {
		return 0
	}
	if !m.randomWait {
		return m.waitRetry
	}
	factor := 0.5 + m.rng.Float64()
	return time.Duration(float64(m.waitRetry) * factor)
}
