// Package main is the intelhub CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/accionlabs/intelhub/internal/archive"
	"github.com/accionlabs/intelhub/internal/catalog"
	"github.com/accionlabs/intelhub/internal/chat"
	"github.com/accionlabs/intelhub/internal/cli"
	"github.com/accionlabs/intelhub/internal/config"
	"github.com/accionlabs/intelhub/internal/dataset"
	"github.com/accionlabs/intelhub/internal/digest"
	"github.com/accionlabs/intelhub/internal/export"
	"github.com/accionlabs/intelhub/internal/gemini"
	"github.com/accionlabs/intelhub/internal/models"
	"github.com/accionlabs/intelhub/internal/retry"
	"github.com/accionlabs/intelhub/internal/search"
	"github.com/accionlabs/intelhub/internal/server"
	"github.com/accionlabs/intelhub/internal/storage"
	"github.com/accionlabs/intelhub/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/intelhub/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "intelhub server" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "digest":
		runDigest()
	case "facts":
		runFacts()
	case "list":
		runList()
	case "search":
		runSearch()
	case "export":
		runExport()
	case "chat":
		runChat()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("intelhub version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (model calls, tab reloads, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("model", cfg.AI.Model),
	)

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	index, err := search.NewDigestIndex(cfg.Storage.SearchIndexPath)
	if err != nil {
		logger.Fatal("Failed to open search index", zap.Error(err))
	}
	defer index.Close()
	ctx := context.Background()
	entries := components.Archive.All(ctx)
	if err := index.Rebuild(ctx, entries); err != nil {
		logger.Warn("search index rebuild failed", zap.Error(err))
	} else {
		logger.Info("search index rebuilt", zap.Int("digests", len(entries)))
	}

	tabs := catalog.New(&cfg.Tabs, cfg.Chat.MaxUploadBytes, logger)
	tabs.LoadAll()
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if _, err := tabs.Watch(watchCtx); err != nil {
		logger.Warn("tab file watching disabled", zap.String("dir", cfg.Tabs.Directory), zap.Error(err))
	}

	srv := server.NewServer(server.Services{
		Digests:  components.Digests,
		Chat:     components.Chat,
		Archive:  components.Archive,
		Index:    index,
		Sessions: chat.NewSessionStore(cfg.Chat.SessionCapacity),
		Catalog:  tabs,
	}, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

// flagsFirst moves any flags (and their values) that appear after positional
// arguments to the front so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "intelhub digest Acme -output json"
// would otherwise leave -output unparsed.
func flagsFirst(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinArgs joins positional args with spaces so multi-word company names and questions
// work the same with or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

// setup loads config and a logger for one-shot commands. Logs go to stderr only in debug mode.
func setup(configPath string) (*config.Config, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := zap.NewNop()
	if cfg.Debug {
		if logger, err = utils.NewLogger(true); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
	}
	return cfg, logger
}

func runDigest() {
	fs := flag.NewFlagSet("digest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "server URL; empty generates directly and saves to the local archive")
	outputFormat := fs.String("output", "text", "output format: text or json")
	save := fs.Bool("save", true, "save the digest to the archive (direct mode)")
	_ = fs.Parse(flagsFirst(os.Args[2:]))

	company := joinArgs(fs.Args())
	if company == "" {
		fmt.Println("Usage: intelhub digest [flags] <company name>")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	var d *models.Digest
	if *serverURL != "" {
		var err error
		if d, err = digestViaHTTP(*serverURL, company); err != nil {
			fmt.Fprintf(os.Stderr, "Digest failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, logger := setup(*configPath)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.GenerateTimeoutSeconds)*time.Second)
		defer cancel()
		if d, err = components.Digests.GenerateDigest(ctx, company); err != nil {
			fmt.Fprintf(os.Stderr, "Digest failed: %v\n", err)
			os.Exit(1)
		}
		if *save && !components.Archive.Save(ctx, d) {
			fmt.Fprintln(os.Stderr, "Warning: the digest could not be saved")
		}
	}
	if err := cli.WriteDigest(os.Stdout, d, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func digestViaHTTP(serverURL, company string) (*models.Digest, error) {
	body, err := json.Marshal(map[string]string{"company": company})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/digests", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return nil, serverError(resp)
	}
	var d models.Digest
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &d, nil
}

// serverError reads an API error body.
func serverError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

func runFacts() {
	fs := flag.NewFlagSet("facts", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(flagsFirst(os.Args[2:]))

	company := joinArgs(fs.Args())
	if company == "" {
		fmt.Println("Usage: intelhub facts [flags] <company name>")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)
	cfg, logger := setup(*configPath)
	defer logger.Sync()

	client, err := gemini.NewClient(&cfg.AI, gemini.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	svc := digest.NewService(client, newPolicy(cfg, logger), logger)
	facts := svc.GenerateFacts(context.Background(), company)
	if err := cli.WriteFacts(os.Stdout, company, facts, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	all := fs.Bool("all", false, "list every saved digest, not just the current month")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseFormat(*outputFormat)
	cfg, logger := setup(*configPath)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx := context.Background()
	var digests []*models.Digest
	if *all {
		for _, e := range components.Archive.All(ctx) {
			digests = append(digests, e.Digest)
		}
	} else {
		digests = components.Archive.LoadCurrentMonth(ctx)
	}
	if err := cli.WriteDigestList(os.Stdout, digests, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL (the server owns the search index)")
	limit := fs.Int("limit", 10, "number of results")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(flagsFirst(os.Args[2:]))

	query := joinArgs(fs.Args())
	if query == "" {
		fmt.Println("Usage: intelhub search [flags] <query>")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	res, err := searchViaHTTP(*serverURL, query, *limit, *fuzzy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	// Retry with typo tolerance when an exact search finds nothing.
	if len(res.Hits) == 0 && !*fuzzy {
		if fuzzyRes, err := searchViaHTTP(*serverURL, query, *limit, true); err == nil {
			res = fuzzyRes
		}
	}
	if err := cli.WriteHits(os.Stdout, query, res.Hits, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if len(res.Hits) == 0 && res.Suggestion != "" && format == cli.OutputText {
		fmt.Printf("Did you mean %q?\n", res.Suggestion)
	}
}

func searchViaHTTP(serverURL, query string, limit int, fuzzy bool) (*search.Results, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	if fuzzy {
		params.Set("fuzzy", "true")
	}
	resp, err := http.Get(serverURL + "/api/v1/digests/search?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, serverError(resp)
	}
	var out search.Results
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outPath := fs.String("o", "", "output file (default: digest-<Company>.pdf in the current directory)")
	_ = fs.Parse(flagsFirst(os.Args[2:]))

	if fs.NArg() != 1 {
		fmt.Println("Usage: intelhub export [flags] <digest-id>")
		os.Exit(1)
	}
	cfg, logger := setup(*configPath)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	d, ok := components.Archive.Find(context.Background(), fs.Arg(0))
	if !ok {
		fmt.Fprintf(os.Stderr, "Digest not found: %s\n", fs.Arg(0))
		os.Exit(1)
	}
	path := *outPath
	if path == "" {
		path = export.Filename(d.CompanyName)
	}
	if err := writePDF(path, d); err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Digest exported: %s\n", path)
}

func writePDF(path string, d *models.Digest) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.WritePDF(f, d); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	file := fs.String("file", "", "data file to ask about (.xlsx, .xlsm, .ods, .csv, .json)")
	tab := fs.String("tab", "", "configured tab to ask about instead of -file")
	description := fs.String("description", "", "what the data represents")
	instruction := fs.String("instruction", "", "system instruction for the model")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(flagsFirst(os.Args[2:]))

	question := joinArgs(fs.Args())
	if question == "" || (*file == "") == (*tab == "") {
		fmt.Println("Usage: intelhub chat (-file <path> | -tab <name>) [flags] <question>")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)
	cfg, logger := setup(*configPath)
	defer logger.Sync()

	var ds *models.Dataset
	desc, instr := *description, *instruction
	if *file != "" {
		var err error
		if ds, err = dataset.ParseFile(*file, cfg.Chat.MaxUploadBytes); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load data: %v\n", err)
			os.Exit(1)
		}
	} else {
		tabs := catalog.New(&cfg.Tabs, cfg.Chat.MaxUploadBytes, logger)
		tabs.LoadAll()
		entry, err := tabs.Get(*tab)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load tab: %v\n", err)
			os.Exit(1)
		}
		ds = entry.Dataset
		if desc == "" {
			desc = entry.Config.Description
		}
		if instr == "" {
			instr = entry.Config.SystemInstruction
		}
	}

	client, err := gemini.NewClient(&cfg.AI, gemini.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	svc := chat.NewService(client, newPolicy(cfg, logger), cfg.Chat.MaxRows, logger)
	answer, err := svc.Chat(context.Background(), question, ds, desc, instr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, question, answer, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

type statusResponse struct {
	DigestsThisMonth int            `json:"digests_this_month"`
	IndexedDigests   *uint64        `json:"indexed_digests,omitempty"`
	Sessions         int            `json:"sessions"`
	Tabs             int            `json:"tabs"`
	TabsReady        int            `json:"tabs_ready"`
	Model            string         `json:"model"`
	DiskUsage        *storage.Usage `json:"disk_usage,omitempty"`
	DiskUsageBytes   *int64         `json:"disk_usage_bytes,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	status, err := statusViaHTTP(*serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if format == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Printf("digests_this_month: %d   # saved this calendar month\n", status.DigestsThisMonth)
	if status.IndexedDigests != nil {
		fmt.Printf("indexed_digests:    %d   # documents in the search index\n", *status.IndexedDigests)
	}
	fmt.Printf("sessions:           %d   # live dataset chat sessions\n", status.Sessions)
	fmt.Printf("tabs:               %d/%d ready\n", status.TabsReady, status.Tabs)
	fmt.Printf("model:              %s\n", status.Model)
	if status.DiskUsage != nil {
		fmt.Printf("database_bytes:     %d\n", status.DiskUsage.DatabaseBytes)
		fmt.Printf("search_index_bytes: %d\n", status.DiskUsage.SearchIndexBytes)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, serverError(resp)
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds initialized services.
type Components struct {
	Storage *storage.SQLiteStorage
	Archive *archive.Archive
	// Digests and Chat are nil unless the model client was requested.
	Digests *digest.Service
	Chat    *chat.Service
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// newPolicy builds the retry policy for model calls from config.
func newPolicy(cfg *config.Config, logger *zap.Logger) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.AI.MaxAttempts,
		BaseDelay:   time.Duration(cfg.AI.BaseDelayMillis) * time.Millisecond,
		Logger:      logger,
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, withModel bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{
		Storage: store,
		Archive: archive.New(store, logger),
	}
	if !withModel {
		return c, nil
	}

	client, err := gemini.NewClient(&cfg.AI, gemini.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize model client: %w", err)
	}
	policy := newPolicy(cfg, logger)
	c.Digests = digest.NewService(client, policy, logger)
	c.Chat = chat.NewService(client, policy, cfg.Chat.MaxRows, logger)
	return c, nil
}

func printUsage() {
	fmt.Println(`intelhub - Customer intelligence digests and data chat

Usage:
  intelhub server [flags]                  Start the HTTP server
  intelhub digest [flags] <company>        Generate a company digest
  intelhub facts [flags] <company>         Show quick facts about a company
  intelhub list [flags]                    List saved digests
  intelhub search [flags] <query>          Search saved digests (needs a running server)
  intelhub export [flags] <digest-id>      Export a saved digest as PDF
  intelhub chat [flags] <question>         Ask a question about a data file or tab
  intelhub status [flags]                  Show server status
  intelhub version                         Show version
  intelhub help                            Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/intelhub/config.yaml)
  --debug            Enable debug logging

Digest Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL; empty (default) generates directly and saves locally
  --save             Save the digest to the archive in direct mode (default: true)
  --output string    Output format: text or json (default: text)

List Flags:
  --all              Include digests from previous months

Search Flags:
  --server string    Server URL (default: http://localhost:8080)
  --limit int        Number of results (default: 10)
  --fuzzy            Enable typo tolerance (used automatically when nothing matches)

Export Flags:
  --o string         Output file (default: digest-<Company>.pdf)

Chat Flags:
  --file string         Data file (.xlsx, .xlsm, .ods, .csv, .json)
  --tab string          Configured tab (e.g. RMG) instead of --file
  --description string  What the data represents
  --instruction string  System instruction for the model

The model API key is read from ai.api_key, or from GEMINI_API_KEY / API_KEY.

Examples:
  intelhub server
  intelhub digest Acme Corp
  intelhub digest --server http://localhost:8080 --output json "Acme Corp"
  intelhub facts Acme Corp
  intelhub list --all
  intelhub search cloud migration
  intelhub export Acme-Corp-1741944600000
  intelhub chat --file bench.xlsx --description "bench employees" who has been on bench longest
  intelhub chat --tab RMG how many people are in ATG`)
}
