// Package cmd implements the §6 CLI surface: one or more positional seed
// URIs, long options, and a config file loaded from --config-file (no
// environment variable is consulted), all translated into an
// engine.Options and handed to internal/engine.
package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohmanhakim/webretriever/internal/build"
	"github.com/rohmanhakim/webretriever/internal/config"
	"github.com/rohmanhakim/webretriever/internal/engine"
	"github.com/rohmanhakim/webretriever/internal/metadata"
	"github.com/rohmanhakim/webretriever/internal/response"
	"github.com/rohmanhakim/webretriever/internal/sink"
	"github.com/rohmanhakim/webretriever/internal/uri"
	"github.com/rohmanhakim/webretriever/pkg/failure"
)

var (
	cfgFile         string
	spanHosts       bool
	domains         []string
	excludeDomains  []string
	httpsOnly       bool
	noParent        bool
	acceptRegex     string
	acceptPatterns  string
	maxLevel        int
	recursive       bool
	concurrency     int
	wait            time.Duration
	waitRetry       time.Duration
	randomWait      bool
	tries           int
	timeout         time.Duration
	userAgent       string
	maxRedirect     int
	outputDir       string
	protocolDirs    bool
	hostDirs        bool
	cutDirs         int
	cutFileGetVars  bool
	restrictFileNames string
	clobber         bool
	backups         int
	timestamping    bool
	adjustExt       bool
	fsync           bool
	dryRun          bool
	respectRobots   bool
	convertLinks    bool
	backupConverted bool
	deleteAfter     bool
	chunkSize       int64
	username        string
	password        string
	proxyUser       string
	proxyPassword   string
)

var rootCmd = &cobra.Command{
	Use:     "webretriever [flags] URI...",
	Short:   "A recursive HTTP/HTTPS retriever.",
	Version: build.FullVersion(),
	Long: `webretriever recursively downloads HTTP and HTTPS resources, following
links discovered in HTML, CSS, Atom/RSS feeds, sitemaps, and Metalink
descriptions, honoring robots.txt and an optional link-conversion pass so
a mirrored site browses correctly offline.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seeds, err := parseSeedURIs(args)
		if err != nil {
			return err
		}

		cfg, err := buildConfig(seeds)
		if err != nil {
			return err
		}

		opts := translateOptions(cfg)
		sinkObj := metadata.NewStderrRecorder()
		eng := engine.New(opts, sinkObj)
		eng.Seed(seeds)

		if err := eng.Run(context.Background()); err != nil {
			return err
		}
		return nil
	},
}

// Execute runs the root command. Any error it returns (bad flags, seed URIs
// or config, or an error from Engine.Run) is printed to stderr and the
// process exits with ExitGeneric; the per-kind table of failure.ExitStatusFor
// is not applied, and errors met while fetching do not change the exit
// status.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(failure.ExitGeneric))
	}
}

func parseSeedURIs(args []string) ([]uri.URI, error) {
	seeds := make([]uri.URI, 0, len(args))
	for _, a := range args {
		u, err := uri.Parse(a)
		if err != nil {
			return nil, fmt.Errorf("invalid seed URI %q: %w", a, err)
		}
		seeds = append(seeds, u)
	}
	return seeds, nil
}

func buildConfig(seeds []uri.URI) (config.Config, error) {
	urlSeeds := make([]url.URL, len(seeds))
	for i, s := range seeds {
		parsed, err := url.Parse(s.String())
		if err != nil {
			return config.Config{}, err
		}
		urlSeeds[i] = *parsed
	}

	if cfgFile != "" {
		return config.WithConfigFile(cfgFile, urlSeeds)
	}

	// Flags carry the defaults already via init()'s flags.*Var calls, so
	// every value reaching here is meaningful as-is (unlike a flag set
	// whose zero value is ambiguous with "not provided").
	builder := config.WithDefault(urlSeeds).
		WithSpanHosts(spanHosts).
		WithDomains(domains).
		WithExcludeDomains(excludeDomains).
		WithHTTPSOnly(httpsOnly).
		WithNoParent(noParent).
		WithAcceptRegex(acceptRegex).
		WithAcceptPatterns(acceptPatterns).
		WithMaxRecursionLevel(maxLevel).
		WithRecursive(recursive).
		WithConcurrency(concurrency).
		WithWait(wait).
		WithWaitRetry(waitRetry).
		WithRandomWait(randomWait).
		WithTries(tries).
		WithTimeout(timeout).
		WithUserAgent(userAgent).
		WithMaxRedirect(maxRedirect).
		WithOutputDir(outputDir).
		WithProtocolDirectories(protocolDirs).
		WithHostDirectories(hostDirs).
		WithCutDirs(cutDirs).
		WithCutFileGetVars(cutFileGetVars).
		WithRestrictFileNames(restrictFileNames).
		WithClobber(clobber).
		WithBackups(backups).
		WithTimestamping(timestamping).
		WithAdjustExtension(adjustExt).
		WithFsync(fsync).
		WithDryRun(dryRun).
		WithRespectRobots(respectRobots).
		WithConvertLinks(convertLinks).
		WithBackupConverted(backupConverted).
		WithDeleteAfter(deleteAfter).
		WithChunkSize(chunkSize).
		WithCredentials(username, password).
		WithProxyCredentials(proxyUser, proxyPassword)

	return builder.Build()
}

// translateOptions maps a validated config.Config onto the engine's
// Options, compiling the accept_regex/accept_patterns strings into the
// AND'd Scope predicate decided in SPEC_FULL §9.1.
func translateOptions(cfg config.Config) engine.Options {
	user, pass := cfg.Credentials()
	proxyUser, proxyPass := cfg.ProxyCredentials()

	return engine.Options{
		MaxWorkers:        cfg.Concurrency(),
		MaxRedirect:       cfg.MaxRedirect(),
		MaxTries:          cfg.Tries(),
		WaitRetry:         cfg.WaitRetry(),
		Wait:              cfg.Wait(),
		RandomWait:        cfg.RandomWait(),
		ChunkSize:         cfg.ChunkSize(),
		UserAgent:         cfg.UserAgent(),
		MaxRecursionLevel: cfg.MaxRecursionLevel(),
		Recursive:         cfg.Recursive(),
		RespectRobots:     cfg.RespectRobots(),
		ConvertLinks:      cfg.ConvertLinks(),
		BackupConverted:   cfg.BackupConverted(),
		DeleteAfter:       cfg.DeleteAfter(),
		Credentials:       response.Credentials{Username: user, Password: pass},
		ProxyCredentials:  response.Credentials{Username: proxyUser, Password: proxyPass},
		SinkPolicy: sink.Policy{
			Spider:          cfg.DryRun(),
			Clobber:         cfg.Clobber(),
			Backups:         cfg.Backups(),
			Timestamping:    cfg.Timestamping(),
			AdjustExtension: cfg.AdjustExtension(),
			Fsync:           cfg.Fsync(),
			Naming: sink.NamingOptions{
				DirectoryPrefix:     cfg.OutputDir(),
				ProtocolDirectories: cfg.ProtocolDirectories(),
				HostDirectories:     cfg.HostDirectories(),
				CutDirs:             cfg.CutDirs(),
				CutFileGetVars:      cfg.CutFileGetVars(),
				RestrictFileNames:   cfg.RestrictFileNames(),
			},
		},
		Scope: engine.Scope{
			SpanHosts:      cfg.SpanHosts(),
			Domains:        cfg.Domains(),
			ExcludeDomains: cfg.ExcludeDomains(),
			HTTPSOnly:      cfg.HTTPSOnly(),
			NoParent:       cfg.NoParent(),
			AcceptRegex:    compileMatcher(cfg.AcceptRegex()),
			AcceptPatterns: compileMatcher(cfg.AcceptPatterns()),
		},
	}
}

// compileMatcher turns a raw (possibly empty) regex string into a Scope
// predicate; an empty pattern always passes, matching §9.1's rule that an
// unset filter never excludes anything.
func compileMatcher(pattern string) func(path string) bool {
	if pattern == "" {
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	return re.MatchString
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config-file", "", "path to a line-oriented config file (§6)")
	flags.BoolVar(&spanHosts, "span-hosts", false, "follow links onto other hosts")
	flags.StringSliceVar(&domains, "domains", nil, "restrict recursion to these hosts")
	flags.StringSliceVar(&excludeDomains, "exclude-domains", nil, "never recurse onto these hosts")
	flags.BoolVar(&httpsOnly, "https-only", false, "only follow https:// links")
	flags.BoolVar(&noParent, "no-parent", false, "never ascend above the seed's directory")
	flags.StringVar(&acceptRegex, "accept-regex", "", "only admit links whose path matches this regex")
	flags.StringVar(&acceptPatterns, "accept-patterns", "", "only admit links whose path matches this regex (ANDed with accept-regex)")
	flags.IntVar(&maxLevel, "level", 5, "maximum recursion depth (0 = unlimited)")
	flags.BoolVar(&recursive, "recursive", true, "follow discovered links")
	flags.IntVar(&concurrency, "concurrency", 5, "number of downloader goroutines")
	flags.DurationVar(&wait, "wait", 0, "pause between requests to the same host")
	flags.DurationVar(&waitRetry, "waitretry", 10*time.Second, "pause before retrying a failed request")
	flags.BoolVar(&randomWait, "random-wait", false, "randomize wait between 0.5x and 1.5x")
	flags.IntVar(&tries, "tries", 20, "non-retryable failures tolerated per host before its remaining queue is dropped")
	flags.DurationVar(&timeout, "timeout", 30*time.Second, "per-request timeout")
	flags.StringVar(&userAgent, "user-agent", "webretriever/1.0", "User-Agent request header")
	flags.IntVar(&maxRedirect, "max-redirect", 20, "maximum redirects followed per job")
	flags.StringVar(&outputDir, "directory-prefix", "output", "root output directory")
	flags.BoolVar(&protocolDirs, "protocol-directories", false, "prefix saved paths with http/https")
	flags.BoolVar(&hostDirs, "host-directories", false, "prefix saved paths with the host name")
	flags.IntVar(&cutDirs, "cut-dirs", 0, "ignore this many leading path components when saving")
	flags.BoolVar(&cutFileGetVars, "cut-file-get-vars", false, "drop the query string from the saved filename")
	flags.StringVar(&restrictFileNames, "restrict-file-names", "none", "filename sanitization mode: none, unix, windows, nocontrol, ascii, lowercase, uppercase")
	flags.BoolVar(&clobber, "clobber", true, "overwrite existing files instead of disambiguating")
	flags.IntVar(&backups, "backups", 0, "number of numbered backups to keep on overwrite")
	flags.BoolVar(&timestamping, "timestamping", false, "skip re-download when the remote isn't newer")
	flags.BoolVar(&adjustExt, "adjust-extension", true, "append the content-type's extension when missing")
	flags.BoolVar(&fsync, "fsync", false, "fsync every written file")
	flags.BoolVar(&dryRun, "spider", false, "don't write anything to disk")
	flags.BoolVar(&respectRobots, "robots", true, "honor robots.txt")
	flags.BoolVar(&convertLinks, "convert-links", false, "rewrite saved documents' links to local copies after the run")
	flags.BoolVar(&backupConverted, "backup-converted", false, "keep a .orig backup of every file rewritten by convert-links")
	flags.BoolVar(&deleteAfter, "delete-after", false, "delete downloaded files once the run finishes (disables convert-links)")
	flags.Int64Var(&chunkSize, "chunk-size", 0, "split responses larger than this into concurrently fetched chunks (0 = never)")
	flags.StringVar(&username, "user", "", "HTTP Basic/Digest username")
	flags.StringVar(&password, "password", "", "HTTP Basic/Digest password")
	flags.StringVar(&proxyUser, "proxy-user", "", "proxy Basic/Digest username")
	flags.StringVar(&proxyPassword, "proxy-password", "", "proxy Basic/Digest password")
}

// ResetFlags restores every package-level flag variable to its zero value,
// for test isolation between cobra command invocations.
func ResetFlags() {
	cfgFile = ""
	spanHosts, httpsOnly, noParent = false, false, false
	domains, excludeDomains = nil, nil
	acceptRegex, acceptPatterns = "", ""
	maxLevel, concurrency, tries, maxRedirect, cutDirs, backups = 0, 0, 0, 0, 0, 0
	recursive, randomWait, protocolDirs, hostDirs = false, false, false, false
	cutFileGetVars, restrictFileNames = false, ""
	clobber, timestamping, adjustExt, fsync, dryRun = false, false, false, false, false
	respectRobots, convertLinks, backupConverted, deleteAfter = false, false, false, false
	wait, waitRetry, timeout = 0, 0, 0
	userAgent, outputDir = "", ""
	chunkSize = 0
	username, password, proxyUser, proxyPassword = "", "", "", ""
}

// BuildConfigForTest exposes buildConfig to the package's test suite.
func BuildConfigForTest(seeds []uri.URI) (config.Config, error) {
	return buildConfig(seeds)
}

// TranslateOptionsForTest exposes translateOptions to the package's test
// suite.
func TranslateOptionsForTest(cfg config.Config) engine.Options {
	return translateOptions(cfg)
}
