package limiter

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rohmanhakim/webretriever/pkg/timeutil"
)

// RateLimiter is the per-host pacing authority for the worker pool.
// Responsibilities:
//   - Bookkeep each hostname's last fetch timestamp
//   - Compute the final delay for each hostname given base wait, per-host
//     crawl-delay (from robots.txt), and backoff state
//   - Throttle overall transfer bandwidth via a shared token bucket
type RateLimiter interface {
	SetBaseDelay(baseDelay time.Duration)
	SetJitter(jitter time.Duration)
	SetRandomSeed(randomSeed int64)
	SetCrawlDelay(host string, delay time.Duration)
	Backoff(host string)
	ResetBackoff(host string)
	MarkLastFetchAsNow(host string)
	SetRNG(rng interface{})
	ResolveDelay(host string) time.Duration
	WaitBandwidth(ctx context.Context, n int) error
}

// ConcurrentRateLimiter is safe for concurrent use by every worker
// goroutine; per-host state is guarded by mu, and the shared bandwidth
// token bucket (limit_rate) is guarded internally by rate.Limiter.
type ConcurrentRateLimiter struct {
	mu           sync.RWMutex
	rngMu        sync.Mutex
	baseDelay    time.Duration
	jitter       time.Duration
	hostTimings  map[string]hostTiming
	rng          *rand.Rand
	bandwidth    *rate.Limiter
	backoffParam timeutil.BackoffParam
}

// NewConcurrentRateLimiter builds a limiter with the default backoff curve
// (1s initial, 2x multiplier, 30s cap) and no bandwidth cap (unlimited)
// until SetBandwidthLimit is called.
func NewConcurrentRateLimiter() *ConcurrentRateLimiter {
	return &ConcurrentRateLimiter{
		hostTimings:  make(map[string]hostTiming),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		bandwidth:    rate.NewLimiter(rate.Inf, 0),
		backoffParam: timeutil.NewBackoffParam(1*time.Second, 2.0, 30*time.Second),
	}
}

// SetBackoffParam replaces the exponential backoff curve used by Backoff.
func (r *ConcurrentRateLimiter) SetBackoffParam(param timeutil.BackoffParam) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backoffParam = param
}

// SetBandwidthLimit configures the `--limit-rate` global token bucket:
// bytesPerSecond tokens replenish per second, with burst headroom equal to
// one read buffer so short bursts aren't stalled needlessly.
func (r *ConcurrentRateLimiter) SetBandwidthLimit(bytesPerSecond int, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bytesPerSecond <= 0 {
		r.bandwidth = rate.NewLimiter(rate.Inf, 0)
		return
	}
	r.bandwidth = rate.NewLimiter(rate.Limit(bytesPerSecond), burst)
}

// WaitBandwidth blocks until n bytes may be read/written under the
// configured `--limit-rate` cap, or ctx is cancelled.
func (r *ConcurrentRateLimiter) WaitBandwidth(ctx context.Context, n int) error {
	r.mu.RLock()
	bw := r.bandwidth
	r.mu.RUnlock()
	return bw.WaitN(ctx, n)
}

func (r *ConcurrentRateLimiter) SetBaseDelay(baseDelay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.baseDelay = baseDelay
}

func (r *ConcurrentRateLimiter) SetJitter(jitter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jitter = jitter
}

func (r *ConcurrentRateLimiter) SetRandomSeed(randomSeed int64) {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()

	r.rng = rand.New(rand.NewSource(randomSeed))
}

// SetCrawlDelay sets delay to given host, separate from the global base
// delay. Populated from a host's robots.txt Crawl-delay directive.
func (r *ConcurrentRateLimiter) SetCrawlDelay(host string, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currentHostTiming, exists := r.hostTimings[host]
	if exists {
		currentHostTiming.crawlDelay = delay
		r.hostTimings[host] = currentHostTiming
	} else {
		r.hostTimings[host] = hostTiming{
			crawlDelay: delay,
		}
	}
}

// exponentialBackoffDelay computes exponential backoff based on count and
// the configured backoffParam. Does NOT take lock; caller must hold r.mu
// (RLock or Lock).
func (r *ConcurrentRateLimiter) exponentialBackoffDelay(backoffCount int) time.Duration {
	exponent := float64(backoffCount - 1)
	delay := float64(r.backoffParam.InitialDuration()) * math.Pow(r.backoffParam.Multiplier(), exponent)
	if max := float64(r.backoffParam.MaxDuration()); max > 0 && delay > max {
		delay = max
	}

	if r.jitter > 0 {
		jitterValue := r.computeJitter(r.jitter)
		delay += float64(jitterValue)
	}

	return time.Duration(delay)
}

// Backoff triggers exponential backoff ("waitretry") for the given host,
// called after a 429/503 or connection failure (§4.6 ERROR state).
func (r *ConcurrentRateLimiter) Backoff(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currentHostTiming, exists := r.hostTimings[host]
	if exists {
		currentHostTiming.backoffCount++
		currentHostTiming.backoffDelay = r.exponentialBackoffDelay(currentHostTiming.backoffCount)
		r.hostTimings[host] = currentHostTiming
	} else {
		r.hostTimings[host] = hostTiming{
			backoffCount: 1,
			backoffDelay: r.exponentialBackoffDelay(1),
		}
	}
}

// ResetBackoff clears backoff state for host, called after a successful
// request.
func (r *ConcurrentRateLimiter) ResetBackoff(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currentHostTiming, exists := r.hostTimings[host]
	if exists {
		currentHostTiming.backoffCount = 0
		currentHostTiming.backoffDelay = time.Duration(0)
		r.hostTimings[host] = currentHostTiming
	}
}

// MarkLastFetchAsNow stamps host's lastFetchAt to time.Now().
func (r *ConcurrentRateLimiter) MarkLastFetchAsNow(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currentHostTiming, exists := r.hostTimings[host]
	if exists {
		currentHostTiming.lastFetchAt = time.Now()
		r.hostTimings[host] = currentHostTiming
	} else {
		r.hostTimings[host] = hostTiming{
			lastFetchAt: time.Now(),
		}
	}
}

// computeJitter returns a pseudo-random duration in [0, max).
func (r *ConcurrentRateLimiter) computeJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	r.rngMu.Lock()
	defer r.rngMu.Unlock()

	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return time.Duration(r.rng.Int63n(int64(max)))
}

// SetRNG allows injecting a custom random number generator for testing.
func (r *ConcurrentRateLimiter) SetRNG(rng interface{}) {
	if randImpl, ok := rng.(*rand.Rand); ok {
		r.rngMu.Lock()
		r.rng = randImpl
		r.rngMu.Unlock()
	}
}

// ResolveDelay computes the final pacing delay for host:
// FinalDelay = max(BaseDelay, crawlDelay, BackoffDelay) + Jitter, minus
// however much time has already elapsed since the last fetch.
func (r *ConcurrentRateLimiter) ResolveDelay(host string) time.Duration {
	r.mu.RLock()
	currentHostTiming, exists := r.hostTimings[host]
	base := r.baseDelay
	jitter := r.jitter
	r.mu.RUnlock()

	if !exists {
		return time.Duration(0)
	}

	delays := []time.Duration{base, currentHostTiming.crawlDelay, currentHostTiming.backoffDelay}
	finalDelay := timeutil.MaxDuration(delays)
	finalDelay += r.computeJitter(jitter)

	elapsed := time.Since(currentHostTiming.lastFetchAt)

	if elapsed < finalDelay {
		return finalDelay - elapsed
	}

	return time.Duration(0)
}

func (r *ConcurrentRateLimiter) BaseDelay() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.baseDelay
}

func (r *ConcurrentRateLimiter) Jitter() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jitter
}

func (r *ConcurrentRateLimiter) RNG() *rand.Rand {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return r.rng
}

func (r *ConcurrentRateLimiter) HostTimings() map[string]hostTiming {
	r.mu.RLock()
	defer r.mu.RUnlock()

	copyMap := make(map[string]hostTiming, len(r.hostTimings))
	for k, v := range r.hostTimings {
		copyMap[k] = v
	}
	return copyMap
}
