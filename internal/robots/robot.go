package robots

/*
Responsibilities

- Fetch robots.txt per host
- Cache rules for crawl duration
- Enforce allow/disallow rules before enqueue

Robots checks occur before a URL enters the frontier.
*/

import (
	"sync"

	"github.com/rohmanhakim/webretriever/internal/host"
	"github.com/rohmanhakim/webretriever/internal/uri"
)

// Robot wraps an immutable ruleSet with the longest-prefix-match decision
// logic (§4.10). It never refetches or mutates its rules; a fresh Robot is
// built from a new ruleSet whenever robots.txt is re-fetched.
type Robot struct {
	rules ruleSet
}

// NewRobot builds a Robot around an already-resolved ruleSet.
func NewRobot(rules ruleSet) *Robot {
	return &Robot{rules: rules}
}

// Decide reports whether path may be crawled under this Robot's rules.
// Matching is longest-prefix: the allow or disallow rule with the longest
// matching prefix wins; ties favor allow. No wildcard or "$" expansion.
func (rb *Robot) Decide(path string) Decision {
	rs := rb.rules

	if !rs.hasGroups {
		return Decision{Allowed: true, Reason: EmptyRuleSet, CrawlDelay: rs.CrawlDelay()}
	}
	if !rs.matchedGroup {
		return Decision{Allowed: true, Reason: UserAgentNotMatched, CrawlDelay: rs.CrawlDelay()}
	}

	allowLen := longestMatch(rs.allowRules, path)
	disallowLen := longestMatch(rs.disallowRules, path)

	if allowLen == -1 && disallowLen == -1 {
		return Decision{Allowed: true, Reason: NoMatchingRules, CrawlDelay: rs.CrawlDelay()}
	}
	if disallowLen > allowLen {
		return Decision{Allowed: false, Reason: DisallowedByRobots, CrawlDelay: rs.CrawlDelay()}
	}
	return Decision{Allowed: true, Reason: AllowedByRobots, CrawlDelay: rs.CrawlDelay()}
}

// longestMatch returns the length of the longest rule prefix matching path,
// or -1 if none match. normalizePath guarantees every prefix starts with
// "/", so there is no empty-prefix special case.
func longestMatch(rules []pathRule, path string) int {
	best := -1
	for _, r := range rules {
		if len(r.prefix) <= len(path) && path[:len(r.prefix)] == r.prefix && len(r.prefix) > best {
			best = len(r.prefix)
		}
	}
	return best
}

// Registry caches one Robot per origin for the lifetime of the crawl,
// avoiding re-parsing a host's rules on every admission check (§4.3's
// per-host state, mirrored here rather than in the host.Registry itself
// since ruleSet/Robot are unexported and not JSON-serializable like the
// cache.Cache port expects).
type Registry struct {
	mu   sync.Mutex
	bots map[string]*Robot
}

// NewRegistry returns an empty Robot registry.
func NewRegistry() *Registry {
	return &Registry{bots: make(map[string]*Robot)}
}

func originKey(scheme, hostname, port string) string {
	return scheme + "://" + hostname + ":" + port
}

// Put installs rb as the current Robot for the given origin.
func (r *Registry) Put(scheme, hostname, port string, rb *Robot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bots[originKey(scheme, hostname, port)] = rb
}

// Get returns the cached Robot for the given origin, if any.
func (r *Registry) Get(scheme, hostname, port string) (*Robot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rb, ok := r.bots[originKey(scheme, hostname, port)]
	return rb, ok
}

// ApplyToHost maps a fetched and parsed robots.txt result onto h's
// RobotsState and registers the resulting Robot in reg, so later admission
// checks against this host reuse the parsed rules instead of the raw
// fetch result.
func ApplyToHost(h *host.Host, reg *Registry, result RobotsFetchResult, userAgent string) *Robot {
	rs := MapResponseToRuleSet(result.Response, userAgent, result.FetchedAt)
	rb := NewRobot(rs)
	reg.Put(h.Scheme, h.Hostname, h.Port, rb)

	h.Robots.Fetched = true
	h.Robots.Pending = false
	h.Robots.DisallowAllowAll = wouldDisallowEverything(rs)
	if rs.crawlDelay != nil {
		h.Robots.CrawlDelay = *rs.crawlDelay
	}

	h.Robots.Sitemaps = h.Robots.Sitemaps[:0]
	for _, sm := range result.Response.Sitemaps {
		parsed, err := uri.Parse(sm)
		if err != nil {
			continue
		}
		h.Robots.Sitemaps = append(h.Robots.Sitemaps, parsed)
	}

	return rb
}

// wouldDisallowEverything reports whether rs disallows "/" without an
// overriding allow rule for "/", i.e. the whole host is off-limits.
func wouldDisallowEverything(rs ruleSet) bool {
	if !rs.matchedGroup {
		return false
	}
	rootDisallowed := false
	for _, r := range rs.disallowRules {
		if r.prefix == "/" {
			rootDisallowed = true
			break
		}
	}
	if !rootDisallowed {
		return false
	}
	for _, r := range rs.allowRules {
		if r.prefix == "/" {
			return false
		}
	}
	return true
}
