// Package host implements the engine's per-origin scheduling unit (§4.3):
// the Host registry keyed by (scheme, host, port), failure accounting, and
// each origin's ordered job queue.
package host

import (
	"sync"
	"time"

	"github.com/rohmanhakim/webretriever/internal/job"
	"github.com/rohmanhakim/webretriever/pkg/collections"
	"github.com/rohmanhakim/webretriever/internal/uri"
)

// RobotsState is the per-host cache of parsed robots.txt state, populated
// by the robots package and consumed by the frontier's admission check.
type RobotsState struct {
	Fetched       bool
	Pending       bool
	DisallowAllowAll bool
	CrawlDelay    time.Duration
	Sitemaps      []uri.URI
}

// Host is one (scheme, host, port) scheduling bucket (§3 DATA MODEL).
type Host struct {
	Scheme        string
	Hostname      string
	Port          string
	FailureCount  int
	Robots        RobotsState
	Jobs          *collections.FIFOQueue[*job.Job]
	BlockedUntil  time.Time
	InFlightCount int
	RobotJobPending bool
}

func newHost(scheme, hostname, port string) *Host {
	return &Host{
		Scheme:   scheme,
		Hostname: hostname,
		Port:     port,
		Jobs:     collections.NewFIFOQueue[*job.Job](),
	}
}

// Key identifies a Host bucket.
type Key struct {
	Scheme, Hostname, Port string
}

func keyOf(u uri.URI) Key {
	return Key{Scheme: u.Scheme, Hostname: u.Host, Port: u.Port}
}

// Registry is the process-wide Host registry, guarded by a single mutex
// (the frontier-mutex of §5's shared-state table — Host registry and
// Blacklist share the same lock in this implementation via the caller
// holding Registry's lock before touching a Host's Jobs queue).
type Registry struct {
	mu    sync.Mutex
	hosts map[Key]*Host
}

// NewRegistry returns an empty Host registry.
func NewRegistry() *Registry {
	return &Registry{hosts: make(map[Key]*Host)}
}

// GetOrCreate returns the Host for u's origin, creating it if absent.
// isNew is true the first time a given origin is seen; the caller (the
// scheduler) uses it to decide whether to schedule a robots.txt job ahead
// of all others on that host (§4.3).
func (r *Registry) GetOrCreate(u uri.URI) (h *Host, isNew bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := keyOf(u)
	if existing, ok := r.hosts[k]; ok {
		return existing, false
	}
	created := newHost(u.Scheme, u.Host, u.Port)
	r.hosts[k] = created
	return created, true
}

// Get looks up the Host for u's origin without creating one.
func (r *Registry) Get(u uri.URI) (*Host, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.hosts[keyOf(u)]
	return h, ok
}

// IncreaseFailure increments h's failure counter. When the counter
// exceeds maxTries, the host is marked finally failed: its pending jobs
// are discarded and the caller is told to close its in-use connections.
func (r *Registry) IncreaseFailure(h *Host, maxTries int) (finallyFailed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h.FailureCount++
	if h.FailureCount > maxTries {
		for {
			if _, ok := h.Jobs.Dequeue(); !ok {
				break
			}
		}
		return true
	}
	return false
}

// ResetFailure clears h's failure counter, called on any 2xx/3xx response
// from the host.
func (r *Registry) ResetFailure(h *Host) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h.FailureCount = 0
}

// Remove deletes h from the registry once its queue empties and all
// workers release it.
func (r *Registry) Remove(u uri.URI) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.hosts, keyOf(u))
}

// Len reports how many hosts are currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.hosts)
}

// Each calls fn for every registered host. fn must not mutate the
// registry's host set.
func (r *Registry) Each(fn func(*Host)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range r.hosts {
		fn(h)
	}
}
