package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"gopkg.in/yaml.v3"

	"webrag/pkg/cache"
	"webrag/pkg/config"
	"webrag/pkg/crawler"
	"webrag/pkg/discover"
	"webrag/pkg/extract"
	"webrag/pkg/fetch"
	"webrag/pkg/llm"
	"webrag/pkg/models"
	"webrag/pkg/process"
	"webrag/pkg/session"
	"webrag/pkg/sitemap"
	"webrag/pkg/utils"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "chat":
		runChat(os.Args[2:])
	case "crawl":
		runCrawl(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "version":
		fmt.Printf("webrag %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `webrag - Website crawler with retrieval-augmented chat

Usage:
  webrag <command> [options]

Commands:
  chat      Crawl a site, then answer questions about its content
  crawl     Crawl a site and report statistics (optionally save the corpus)
  validate  Validate configuration file
  version   Show version info

Run 'webrag <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file. An empty path means the
// built-in defaults with no file involved.
func loadConfig(path string) (*config.AppConfig, error) {
	cfg := &config.AppConfig{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// crawlFlags are the options shared by the chat and crawl subcommands
type crawlFlags struct {
	configFile string
	rawURL     string
	mode       string
	deepCrawl  bool
	cacheMode  string
	logLevel   string
	pprofAddr  string
}

func registerCrawlFlags(fs *flag.FlagSet) *crawlFlags {
	cf := &crawlFlags{}
	fs.StringVar(&cf.configFile, "config", "", "Path to config file (optional, defaults apply without one)")
	fs.StringVar(&cf.rawURL, "url", "", "URL of the website to crawl (required)")
	fs.StringVar(&cf.mode, "mode", "markdown", "Extraction mode (markdown, llm)")
	fs.BoolVar(&cf.deepCrawl, "deep-crawl", false, "Follow sitemap or internal links instead of the single page")
	fs.StringVar(&cf.cacheMode, "cache", "", "Page cache mode (bypass, enabled, read_only, write_only, disabled)")
	fs.StringVar(&cf.logLevel, "loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	fs.StringVar(&cf.pprofAddr, "pprof", "", "pprof address, e.g. localhost:6060 (disabled by default)")
	return cf
}

// runChat handles the chat subcommand
func runChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	cf := registerCrawlFlags(fs)
	modelChoice := fs.String("model", "", "Chat model name (defaults to the configured model)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webrag chat [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  webrag chat -url https://docs.example.com -deep-crawl\n")
		fmt.Fprintf(os.Stderr, "  webrag chat -url https://docs.example.com -model llama-3.3-70b-versatile\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if cf.rawURL == "" {
		fmt.Fprintln(os.Stderr, "Error: -url is required")
		fs.Usage()
		os.Exit(1)
	}

	executeChat(cf, *modelChoice)
}

// runCrawl handles the crawl subcommand
func runCrawl(args []string) {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	cf := registerCrawlFlags(fs)
	outDir := fs.String("out", "", "Directory for the combined markdown and HTML corpus (not written when empty)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webrag crawl [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  webrag crawl -url https://docs.example.com -deep-crawl -out ./corpus\n")
		fmt.Fprintf(os.Stderr, "  webrag crawl -url https://docs.example.com -mode llm\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if cf.rawURL == "" {
		fmt.Fprintln(os.Stderr, "Error: -url is required")
		fs.Usage()
		os.Exit(1)
	}

	executeCrawl(cf, *outDir)
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: webrag validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "Configuration valid.")
	return 0
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
	}

	return log
}

// loadAndValidateConfig loads the config file, applies the CLI cache mode
// override, validates, and logs warnings.
func loadAndValidateConfig(cf *crawlFlags, log *logrus.Logger) *config.AppConfig {
	if cf.configFile != "" {
		log.Infof("Loading configuration from %s", cf.configFile)
	}
	appCfg, err := loadConfig(cf.configFile)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	if cf.cacheMode != "" {
		appCfg.Cache.Mode = models.CacheMode(cf.cacheMode)
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	return appCfg
}

// resolveCrawlMode maps the -mode and -deep-crawl flags onto a crawl mode
func resolveCrawlMode(modeStr string, deepCrawl bool) (models.CrawlMode, error) {
	switch strings.ToLower(strings.TrimSpace(modeStr)) {
	case "", "markdown":
		if deepCrawl {
			return models.ModeMarkdownDeep, nil
		}
		return models.ModeMarkdownBase, nil
	case "llm":
		return models.ModeLLM, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want markdown or llm)", modeStr)
	}
}

// startPprof starts the pprof HTTP server if addr is non-empty.
func startPprof(addr string, log *logrus.Logger) {
	if addr != "" {
		go func() {
			log.Infof("Starting pprof server at http://%s/debug/pprof/", addr)
			if err := http.ListenAndServe(addr, nil); err != nil {
				log.Errorf("pprof server error: %v", err)
			}
		}()
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM. A second
// signal, or a graceful shutdown that overstays its welcome, forces exit.
func signalContext(log *logrus.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	return ctx, cancel
}

// buildSession wires the full pipeline for one target site and returns the
// session plus a cleanup function releasing the page cache.
func buildSession(appCfg *config.AppConfig, baseURL string, log *logrus.Logger) (*session.Session, func(), error) {
	logEntry := log.WithField("component", "webrag")
	cleanup := func() {}

	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, logEntry)
	fetcher := fetch.NewFetcher(httpClient, appCfg, logEntry)
	rateLimiter := fetch.NewRateLimiter(appCfg.Crawl.DelayPerHost, logEntry)

	var robots *fetch.RobotsGate
	if appCfg.Crawl.RespectRobots {
		robots = fetch.NewRobotsGate(fetcher, rateLimiter, appCfg, logEntry)
	}

	var htmlFetcher fetch.HTMLFetcher
	if appCfg.Fetch.Browser {
		log.Info("Using headless browser fetcher")
		htmlFetcher = fetch.NewBrowserFetcher(appCfg, logEntry)
	} else {
		htmlFetcher = fetch.NewHTTPHTMLFetcher(fetcher, rateLimiter, robots, appCfg, logEntry)
	}

	processor := process.NewPageProcessor(appCfg.Fetch, logEntry)

	var pageCache *cache.PageCache
	cacheMode := appCfg.Cache.Mode
	if cacheMode.Reads() || cacheMode.Writes() {
		parsed, err := url.Parse(strings.TrimSpace(baseURL))
		if err != nil || parsed.Hostname() == "" {
			return nil, cleanup, fmt.Errorf("%w: %s", utils.ErrInvalidURL, baseURL)
		}
		pc, err := cache.NewPageCache(appCfg.Cache.Dir, parsed.Hostname(), logEntry)
		if err != nil {
			return nil, cleanup, fmt.Errorf("open page cache: %w", err)
		}
		pageCache = pc
		cleanup = func() {
			if closeErr := pc.Close(); closeErr != nil {
				log.Errorf("Closing page cache: %v", closeErr)
			}
		}
	}

	source := crawler.NewCachingSource(htmlFetcher, processor, pageCache, cacheMode, logEntry)
	scheduler := crawler.NewScheduler(source, appCfg.Crawl.MaxConcurrentFetches, logEntry)
	resolver := sitemap.NewResolver(fetcher, rateLimiter, appCfg, logEntry)
	discoverer := discover.NewDiscoverer(source, appCfg.Crawl.DiscoveryLimit, logEntry)

	var extractor crawler.Extractor
	if appCfg.LLM.ResolveAPIKey() != "" {
		extractionModel, err := llm.NewChatModel(appCfg.LLM, "")
		if err != nil {
			return nil, cleanup, err
		}
		ex, err := extract.NewExtractor(extractionModel, appCfg.LLM, logEntry)
		if err != nil {
			return nil, cleanup, err
		}
		extractor = ex
	} else {
		logEntry.Infof("No API key in %s, LLM extraction unavailable", appCfg.LLM.APIKeyEnv)
	}

	orch := crawler.NewOrchestrator(source, scheduler, resolver, discoverer, extractor, logEntry)

	embedder, err := llm.NewEmbedder(appCfg.Embedding)
	if err != nil {
		return nil, cleanup, err
	}

	factory := func(modelChoice string) (llms.Model, error) {
		return llm.NewChatModel(appCfg.LLM, modelChoice)
	}

	return session.New(orch, embedder, factory, appCfg, logEntry), cleanup, nil
}

// executeChat runs the full pipeline: crawl, prepare, then an interactive
// question loop on stdin.
func executeChat(cf *crawlFlags, modelChoice string) {
	log := setupLogger(cf.logLevel)
	appCfg := loadAndValidateConfig(cf, log)

	mode, err := resolveCrawlMode(cf.mode, cf.deepCrawl)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if mode == models.ModeLLM && cf.deepCrawl {
		log.Warn("-deep-crawl has no effect in llm mode")
	}

	startPprof(cf.pprofAddr, log)

	ctx, cancel := signalContext(log)
	defer cancel()

	sess, cleanup, err := buildSession(appCfg, cf.rawURL, log)
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}
	defer cleanup()

	outcome, err := sess.StartCrawl(ctx, cf.rawURL, mode)
	if err != nil {
		exitCrawlError(err, log)
	}
	printStats(os.Stdout, sess.Stats(), outcome.Usage)

	msg, err := sess.PrepareChat(ctx, modelChoice)
	if err != nil {
		log.WithField("category", utils.CategorizeError(err)).Fatalf("Chat preparation failed: %v", err)
	}
	fmt.Println(msg)

	askLoop(ctx, sess)
	fmt.Println("Session ended.")
}

// executeCrawl runs a crawl without the chat loop and optionally writes
// the combined corpus to disk.
func executeCrawl(cf *crawlFlags, outDir string) {
	log := setupLogger(cf.logLevel)
	appCfg := loadAndValidateConfig(cf, log)

	mode, err := resolveCrawlMode(cf.mode, cf.deepCrawl)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	startPprof(cf.pprofAddr, log)

	ctx, cancel := signalContext(log)
	defer cancel()

	sess, cleanup, err := buildSession(appCfg, cf.rawURL, log)
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}
	defer cleanup()

	outcome, err := sess.StartCrawl(ctx, cf.rawURL, mode)
	if err != nil {
		exitCrawlError(err, log)
	}
	printStats(os.Stdout, sess.Stats(), outcome.Usage)

	if outDir != "" {
		mdPath, htmlPath, err := writeCorpus(outDir, cf.rawURL, sess.CombinedMarkdown(), sess.CombinedHTML())
		if err != nil {
			log.Fatalf("Failed to write corpus: %v", err)
		}
		log.Infof("Corpus written to %s and %s", mdPath, htmlPath)
	}
}

// exitCrawlError reports a failed crawl and exits. Cancellation is a clean
// shutdown, not a failure.
func exitCrawlError(err error, log *logrus.Logger) {
	if errors.Is(err, context.Canceled) {
		log.Warn("Crawl cancelled gracefully.")
		os.Exit(0)
	}
	log.WithField("category", utils.CategorizeError(err)).Fatalf("Crawl failed: %v", err)
}

// printStats renders crawl statistics for the terminal
func printStats(w io.Writer, stats *models.CrawlStats, usage *models.UsageStats) {
	if stats == nil {
		return
	}

	fmt.Fprintf(w, "\nCrawl finished in %v\n", stats.Duration.Round(time.Millisecond))
	if stats.TotalExtractions > 0 {
		fmt.Fprintf(w, "  Extractions: %d  Images: %d  Internal links: %d\n",
			stats.TotalExtractions, stats.TotalImages, stats.TotalLinks)
	} else {
		fmt.Fprintf(w, "  Pages: %d  Images: %d  Internal links: %d\n",
			stats.TotalPages, stats.TotalImages, stats.TotalLinks)
	}
	for _, page := range stats.PerPage {
		fmt.Fprintf(w, "  %s (images: %d, links: %d)\n", page.URL, page.ImageCount, page.LinkCount)
	}

	if usage != nil && usage.Requests() > 0 {
		fmt.Fprintf(w, "  Token usage: %d completion + %d prompt = %d total over %d requests\n",
			usage.CompletionTokens, usage.PromptTokens, usage.TotalTokens, usage.Requests())
		for _, req := range usage.History {
			fmt.Fprintf(w, "    request %d: %d completion + %d prompt = %d total\n",
				req.Request, req.CompletionTokens, req.PromptTokens, req.TotalTokens)
		}
	}
	fmt.Fprintln(w)
}

// writeCorpus saves the combined markdown and HTML corpus under outDir,
// named after the crawled host.
func writeCorpus(outDir, rawURL, markdown, html string) (mdPath, htmlPath string, err error) {
	base := "corpus"
	if parsed, parseErr := url.Parse(strings.TrimSpace(rawURL)); parseErr == nil && parsed.Hostname() != "" {
		base = utils.SanitizeFilename(parsed.Hostname())
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create output dir: %w", err)
	}

	mdPath = filepath.Join(outDir, base+".md")
	if err := os.WriteFile(mdPath, []byte(markdown), 0o644); err != nil {
		return "", "", fmt.Errorf("write markdown corpus: %w", err)
	}
	htmlPath = filepath.Join(outDir, base+".html")
	if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		return "", "", fmt.Errorf("write HTML corpus: %w", err)
	}
	return mdPath, htmlPath, nil
}

// askLoop reads questions from stdin until EOF, "exit" or cancellation
func askLoop(ctx context.Context, sess *session.Session) {
	fmt.Println(`Ask questions about the crawled content. "exit" or Ctrl-D quits.`)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			return
		}

		answer, err := sess.Ask(ctx, question)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		fmt.Println(answer)
		fmt.Println()
	}
}
