// Package config builds a Config from CLI flags or a config file, sized to
// the engine.Options a run needs (§6 EXTERNAL INTERFACES). The line-oriented
// file format, its boolean/size/duration literals, and the case-insensitive
// name matching are handled by parser.go; this file owns the builder-style
// With*/Build API the teacher's internal/config already used.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

// Config carries every per-run knob named in §6, prior to being translated
// into engine.Options by the CLI layer (translation lives in internal/cli
// so this package stays free of an internal/engine import cycle).
type Config struct {
	seedURLs []url.URL

	// Scope (§4.9)
	spanHosts      bool
	domains        []string
	excludeDomains []string
	httpsOnly      bool
	noParent       bool
	acceptRegex    string
	acceptPatterns string

	// Limits
	maxRecursionLevel int
	recursive         bool

	// Politeness (§4.4)
	concurrency int
	wait        time.Duration
	waitRetry   time.Duration
	randomWait  bool
	tries       int
	timeout     time.Duration
	userAgent   string
	maxRedirect int

	// Output (§4.8)
	outputDir           string
	protocolDirectories bool
	hostDirectories     bool
	cutDirs             int
	cutFileGetVars      bool
	restrictFileNames   string
	clobber             bool
	backups             int
	timestamping        bool
	adjustExtension     bool
	fsync               bool
	dryRun              bool

	// Recursion behavior
	respectRobots   bool
	convertLinks    bool
	backupConverted bool
	deleteAfter     bool

	// Chunked/Metalink (§4.7)
	chunkSize int64

	// Authentication (§6)
	username      string
	password      string
	proxyUsername string
	proxyPassword string
}

// WithDefault returns a Config seeded with seedURLs and every other field at
// its §6-documented default. seedURLs must be non-empty by the time Build is
// called.
func WithDefault(seedURLs []url.URL) *Config {
	return &Config{
		seedURLs:          seedURLs,
		maxRecursionLevel: 5,
		recursive:         true,
		concurrency:       5,
		wait:              0,
		waitRetry:         10 * time.Second,
		randomWait:        false,
		tries:             20,
		timeout:           30 * time.Second,
		userAgent:         "webretriever/1.0",
		maxRedirect:       20,
		outputDir:         "output",
		restrictFileNames: "none",
		clobber:           true,
		backups:           0,
		adjustExtension:   true,
		respectRobots:     true,
		chunkSize:         0,
	}
}

// WithConfigFile parses path as a §6 line-oriented config file and applies
// every recognized directive over WithDefault(seedURLs)'s values.
func WithConfigFile(path string, seedURLs []url.URL) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}

	directives, err := parseConfigFile(path, 0)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	cfg := WithDefault(seedURLs)
	for _, d := range directives {
		if err := cfg.apply(d.name, d.value); err != nil {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
		}
	}
	return cfg.Build()
}

// apply assigns one parsed "name value" directive, matching directive names
// case-insensitively with "-"/"_" interchangeable, per §6.
func (c *Config) apply(name, value string) error {
	switch normalizeDirectiveName(name) {
	case "span_hosts":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.spanHosts = b
	case "https_only":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.httpsOnly = b
	case "no_parent":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.noParent = b
	case "accept_regex":
		c.acceptRegex = value
	case "accept_patterns":
		c.acceptPatterns = value
	case "level", "max_recursion_level":
		n, err := parseLimit(value)
		if err != nil {
			return err
		}
		c.maxRecursionLevel = n
	case "recursive":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.recursive = b
	case "concurrency", "max_threads":
		n, err := parseLimit(value)
		if err != nil {
			return err
		}
		c.concurrency = n
	case "wait":
		d, err := parseDurationLiteral(value)
		if err != nil {
			return err
		}
		c.wait = d
	case "waitretry":
		d, err := parseDurationLiteral(value)
		if err != nil {
			return err
		}
		c.waitRetry = d
	case "random_wait":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.randomWait = b
	case "tries":
		n, err := parseLimit(value)
		if err != nil {
			return err
		}
		c.tries = n
	case "timeout":
		d, err := parseDurationLiteral(value)
		if err != nil {
			return err
		}
		c.timeout = d
	case "user_agent":
		c.userAgent = value
	case "max_redirect":
		n, err := parseLimit(value)
		if err != nil {
			return err
		}
		c.maxRedirect = n
	case "directory_prefix":
		c.outputDir = value
	case "protocol_directories":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.protocolDirectories = b
	case "host_directories":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.hostDirectories = b
	case "cut_dirs":
		n, err := parseLimit(value)
		if err != nil {
			return err
		}
		c.cutDirs = n
	case "cut_file_get_vars":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.cutFileGetVars = b
	case "restrict_file_names":
		c.restrictFileNames = value
	case "clobber":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.clobber = b
	case "backups":
		n, err := parseLimit(value)
		if err != nil {
			return err
		}
		c.backups = n
	case "timestamping":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.timestamping = b
	case "adjust_extension":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.adjustExtension = b
	case "fsync":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.fsync = b
	case "dry_run", "spider":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.dryRun = b
	case "robots":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.respectRobots = b
	case "convert_links":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.convertLinks = b
	case "backup_converted":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.backupConverted = b
	case "delete_after":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.deleteAfter = b
	case "chunk_size":
		n, err := parseSize(value)
		if err != nil {
			return err
		}
		c.chunkSize = n
	case "user":
		c.username = value
	case "password":
		c.password = value
	case "proxy_user":
		c.proxyUsername = value
	case "proxy_password":
		c.proxyPassword = value
	case "domains":
		c.domains = splitCommaList(value)
	case "exclude_domains":
		c.excludeDomains = splitCommaList(value)
	default:
		// Unrecognized directives are ignored rather than rejected, mirroring
		// the predecessor's tolerance for a plugin-introduced option name in
		// a shared config file.
	}
	return nil
}

func (c *Config) WithSeedURLs(urls []url.URL) *Config    { c.seedURLs = urls; return c }
func (c *Config) WithSpanHosts(v bool) *Config            { c.spanHosts = v; return c }
func (c *Config) WithDomains(v []string) *Config          { c.domains = v; return c }
func (c *Config) WithExcludeDomains(v []string) *Config   { c.excludeDomains = v; return c }
func (c *Config) WithHTTPSOnly(v bool) *Config             { c.httpsOnly = v; return c }
func (c *Config) WithNoParent(v bool) *Config              { c.noParent = v; return c }
func (c *Config) WithAcceptRegex(v string) *Config          { c.acceptRegex = v; return c }
func (c *Config) WithAcceptPatterns(v string) *Config       { c.acceptPatterns = v; return c }
func (c *Config) WithMaxRecursionLevel(v int) *Config       { c.maxRecursionLevel = v; return c }
func (c *Config) WithRecursive(v bool) *Config              { c.recursive = v; return c }
func (c *Config) WithConcurrency(v int) *Config             { c.concurrency = v; return c }
func (c *Config) WithWait(v time.Duration) *Config          { c.wait = v; return c }
func (c *Config) WithWaitRetry(v time.Duration) *Config     { c.waitRetry = v; return c }
func (c *Config) WithRandomWait(v bool) *Config              { c.randomWait = v; return c }
func (c *Config) WithTries(v int) *Config                    { c.tries = v; return c }
func (c *Config) WithTimeout(v time.Duration) *Config        { c.timeout = v; return c }
func (c *Config) WithUserAgent(v string) *Config             { c.userAgent = v; return c }
func (c *Config) WithMaxRedirect(v int) *Config               { c.maxRedirect = v; return c }
func (c *Config) WithOutputDir(v string) *Config              { c.outputDir = v; return c }
func (c *Config) WithProtocolDirectories(v bool) *Config      { c.protocolDirectories = v; return c }
func (c *Config) WithHostDirectories(v bool) *Config          { c.hostDirectories = v; return c }
func (c *Config) WithCutDirs(v int) *Config                    { c.cutDirs = v; return c }
func (c *Config) WithCutFileGetVars(v bool) *Config            { c.cutFileGetVars = v; return c }
func (c *Config) WithRestrictFileNames(v string) *Config       { c.restrictFileNames = v; return c }
func (c *Config) WithClobber(v bool) *Config                   { c.clobber = v; return c }
func (c *Config) WithBackups(v int) *Config                     { c.backups = v; return c }
func (c *Config) WithTimestamping(v bool) *Config                { c.timestamping = v; return c }
func (c *Config) WithAdjustExtension(v bool) *Config             { c.adjustExtension = v; return c }
func (c *Config) WithFsync(v bool) *Config                        { c.fsync = v; return c }
func (c *Config) WithDryRun(v bool) *Config                        { c.dryRun = v; return c }
func (c *Config) WithRespectRobots(v bool) *Config                  { c.respectRobots = v; return c }
func (c *Config) WithConvertLinks(v bool) *Config                    { c.convertLinks = v; return c }
func (c *Config) WithBackupConverted(v bool) *Config                  { c.backupConverted = v; return c }
func (c *Config) WithDeleteAfter(v bool) *Config                       { c.deleteAfter = v; return c }
func (c *Config) WithChunkSize(v int64) *Config                         { c.chunkSize = v; return c }
func (c *Config) WithCredentials(user, pass string) *Config              { c.username, c.password = user, pass; return c }
func (c *Config) WithProxyCredentials(user, pass string) *Config          { c.proxyUsername, c.proxyPassword = user, pass; return c }

// Build validates the accumulated Config and returns it by value.
func (c *Config) Build() (Config, error) {
	if len(c.seedURLs) == 0 {
		return Config{}, fmt.Errorf("%w: seedUrls cannot be empty", ErrInvalidConfig)
	}
	return *c, nil
}

func (c Config) SeedURLs() []url.URL {
	urls := make([]url.URL, len(c.seedURLs))
	copy(urls, c.seedURLs)
	return urls
}

func (c Config) SpanHosts() bool            { return c.spanHosts }
func (c Config) Domains() []string          { return append([]string(nil), c.domains...) }
func (c Config) ExcludeDomains() []string    { return append([]string(nil), c.excludeDomains...) }
func (c Config) HTTPSOnly() bool             { return c.httpsOnly }
func (c Config) NoParent() bool              { return c.noParent }
func (c Config) AcceptRegex() string         { return c.acceptRegex }
func (c Config) AcceptPatterns() string      { return c.acceptPatterns }
func (c Config) MaxRecursionLevel() int      { return c.maxRecursionLevel }
func (c Config) Recursive() bool             { return c.recursive }
func (c Config) Concurrency() int            { return c.concurrency }
func (c Config) Wait() time.Duration         { return c.wait }
func (c Config) WaitRetry() time.Duration    { return c.waitRetry }
func (c Config) RandomWait() bool            { return c.randomWait }
func (c Config) Tries() int                  { return c.tries }
func (c Config) Timeout() time.Duration      { return c.timeout }
func (c Config) UserAgent() string           { return c.userAgent }
func (c Config) MaxRedirect() int            { return c.maxRedirect }
func (c Config) OutputDir() string           { return c.outputDir }
func (c Config) ProtocolDirectories() bool   { return c.protocolDirectories }
func (c Config) HostDirectories() bool       { return c.hostDirectories }
func (c Config) CutDirs() int                { return c.cutDirs }
func (c Config) CutFileGetVars() bool        { return c.cutFileGetVars }
func (c Config) RestrictFileNames() string   { return c.restrictFileNames }
func (c Config) Clobber() bool               { return c.clobber }
func (c Config) Backups() int                { return c.backups }
func (c Config) Timestamping() bool          { return c.timestamping }
func (c Config) AdjustExtension() bool       { return c.adjustExtension }
func (c Config) Fsync() bool                 { return c.fsync }
func (c Config) DryRun() bool                { return c.dryRun }
func (c Config) RespectRobots() bool         { return c.respectRobots }
func (c Config) ConvertLinks() bool          { return c.convertLinks }
func (c Config) BackupConverted() bool       { return c.backupConverted }
func (c Config) DeleteAfter() bool           { return c.deleteAfter }
func (c Config) ChunkSize() int64            { return c.chunkSize }
func (c Config) Credentials() (user, pass string)           { return c.username, c.password }
func (c Config) ProxyCredentials() (user, pass string)      { return c.proxyUsername, c.proxyPassword }

func splitCommaList(v string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if i > start {
				out = append(out, trimSpace(v[start:i]))
			}
			start = i + 1
		}
	}
	return out
}

func trimSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}
