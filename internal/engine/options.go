package engine

import (
	"time"

	"github.com/rohmanhakim/webretriever/internal/response"
	"github.com/rohmanhakim/webretriever/internal/sink"
)

// Options carries every per-run knob the engine needs (§6 EXTERNAL
// INTERFACES): concurrency, recursion policy, scope filters, and the
// collaborators' tunables that don't belong to any one package.
type Options struct {
	MaxWorkers        int
	MaxRedirect       int
	MaxTries          int
	WaitRetry         time.Duration
	Wait              time.Duration
	RandomWait        bool
	ChunkSize         int64
	UserAgent         string
	MaxRecursionLevel int
	Recursive         bool
	RespectRobots     bool
	ConvertLinks      bool
	BackupConverted   bool
	DeleteAfter       bool
	Credentials       response.Credentials
	ProxyCredentials  response.Credentials
	SinkPolicy        sink.Policy
	Scope             Scope
}

// Scope implements §4.9's link-admission filters: scheme, host-spanning,
// and accept rules against the URI itself (the filename-phase
// rules live in sink.Policy.Allowed instead).
type Scope struct {
	SpanHosts      bool
	Domains        []string
	ExcludeDomains []string
	HTTPSOnly      bool
	NoParent       bool
	AcceptRegex    func(path string) bool
	AcceptPatterns func(path string) bool
}

// Allows reports whether a discovered URI, relative to its seed host, may
// be admitted to the frontier (§4.9's link-survival filters, applied
// before the blacklist).
func (s Scope) Allows(seedHost, candidateHost, candidateScheme, parentPath, candidatePath string) bool {
	if s.HTTPSOnly && candidateScheme != "https" {
		return false
	}
	for _, excluded := range s.ExcludeDomains {
		if candidateHost == excluded {
			return false
		}
	}
	if len(s.Domains) > 0 {
		allowed := false
		for _, d := range s.Domains {
			if candidateHost == d {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	if !s.SpanHosts && candidateHost != seedHost {
		return false
	}
	if s.NoParent && !withinParent(parentPath, candidatePath) {
		return false
	}
	if s.AcceptRegex != nil && !s.AcceptRegex(candidatePath) {
		return false
	}
	if s.AcceptPatterns != nil && !s.AcceptPatterns(candidatePath) {
		return false
	}
	return true
}

// withinParent implements --no-parent: candidatePath must share
// parentPath's directory prefix or a deeper one, never climb above it
// (SPEC_FULL §9.1's accept_regex/accept_patterns AND semantics extends
// naturally here: every configured rule must agree, not just one).
func withinParent(parentPath, candidatePath string) bool {
	dir := parentPath
	if idx := lastSlash(dir); idx >= 0 {
		dir = dir[:idx+1]
	}
	return len(candidatePath) >= len(dir) && candidatePath[:len(dir)] == dir
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}
