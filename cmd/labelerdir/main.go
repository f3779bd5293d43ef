package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"labelerdir/internal/bsky"
	"labelerdir/internal/config"
	"labelerdir/internal/directory"
	"labelerdir/internal/labelers"
	"labelerdir/internal/mcp"
	"labelerdir/internal/server"
	"labelerdir/internal/snapshot"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
	case "serve":
		if err := runServe(ctx, os.Args[2:]); err != nil {
			log.Fatalf("serve: %v", err)
		}
	case "dump":
		if err := runDump(ctx, os.Args[2:]); err != nil {
			log.Fatalf("dump: %v", err)
		}
	case "mcp":
		if err := runMCP(ctx, os.Args[2:]); err != nil {
			log.Fatalf("mcp: %v", err)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
}

func usage(w *os.File) {
	fmt.Fprintln(w, "labelerdir - Bluesky labeler directory")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  %s serve [flags]   regenerate every -revalidate and serve the JSON API\n", os.Args[0])
	fmt.Fprintf(w, "  %s dump [flags]    run the pipeline once and write JSON\n", os.Args[0])
	fmt.Fprintf(w, "  %s mcp [flags]     serve search tools over MCP stdio\n", os.Args[0])
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run a command with -h to list its flags.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment Variables:")
	fmt.Fprintln(w, "  LABELERDIR_CONFIG            YAML config file")
	fmt.Fprintln(w, "  LABELERDIR_DIRECTORY_URL     Labeler directory endpoint")
	fmt.Fprintln(w, "  LABELERDIR_APPVIEW_URL       AppView host for getServices and resolveHandle")
	fmt.Fprintln(w, "  LABELERDIR_BATCH_SIZE        DIDs per getServices request (max 25)")
	fmt.Fprintln(w, "  LABELERDIR_REVALIDATE        Regeneration interval (e.g. 24h)")
	fmt.Fprintln(w, "  LABELERDIR_REQUEST_TIMEOUT   HTTP timeout per request")
	fmt.Fprintln(w, "  LABELERDIR_RATE_LIMIT_RPS    Profile request rate limit, 0 disables")
	fmt.Fprintln(w, "  LABELERDIR_PARTIAL           Keep successful batches when others fail")
	fmt.Fprintln(w, "  LABELERDIR_RESOLVE_WORKERS   Concurrent description resolution")
	fmt.Fprintln(w, "  LABELERDIR_LISTEN            API listen address")
	fmt.Fprintln(w, "  LABELERDIR_TOKEN             Bearer token for POST /api/refresh")
	fmt.Fprintln(w, "  LABELERDIR_USER_AGENT        User-Agent for upstream requests")
}

// flagOverrides holds command-line values that win over file and env config.
type flagOverrides struct {
	configPath     string
	directoryURL   string
	appViewURL     string
	batchSize      int
	revalidate     time.Duration
	requestTimeout time.Duration
	rateLimitRPS   float64
	partial        bool
	resolveWorkers int
	listen         string
	token          string
}

func bindFlags(fs *flag.FlagSet) *flagOverrides {
	o := &flagOverrides{}
	fs.StringVar(&o.configPath, "config", os.Getenv("LABELERDIR_CONFIG"), "YAML config file (can also use LABELERDIR_CONFIG env var)")
	fs.StringVar(&o.directoryURL, "directory-url", "", "Labeler directory endpoint")
	fs.StringVar(&o.appViewURL, "appview-url", "", "AppView host")
	fs.IntVar(&o.batchSize, "batch-size", 0, "DIDs per getServices request (default 10)")
	fs.DurationVar(&o.revalidate, "revalidate", 0, "Regeneration interval (default 24h)")
	fs.DurationVar(&o.requestTimeout, "request-timeout", 0, "HTTP timeout per request (default 30s)")
	fs.Float64Var(&o.rateLimitRPS, "rate-limit-rps", 0, "Profile request rate limit, 0 disables")
	fs.BoolVar(&o.partial, "partial", false, "Keep successful batches when others fail")
	fs.IntVar(&o.resolveWorkers, "resolve-workers", 0, "Concurrent description resolution (default 8)")
	fs.StringVar(&o.listen, "listen", "", "API listen address (default localhost:8765)")
	fs.StringVar(&o.token, "token", "", "Bearer token for POST /api/refresh")
	return o
}

// load layers explicitly set flags over the file and environment config.
func (o *flagOverrides) load(fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "directory-url":
			cfg.DirectoryURL = o.directoryURL
		case "appview-url":
			cfg.AppViewURL = o.appViewURL
		case "batch-size":
			cfg.BatchSize = o.batchSize
		case "revalidate":
			cfg.Revalidate = o.revalidate
		case "request-timeout":
			cfg.RequestTimeout = o.requestTimeout
		case "rate-limit-rps":
			cfg.RateLimitRPS = o.rateLimitRPS
		case "partial":
			cfg.Partial = o.partial
		case "resolve-workers":
			cfg.ResolveWorkers = o.resolveWorkers
		case "listen":
			cfg.Listen = o.listen
		case "token":
			cfg.Token = o.token
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newPipeline(cfg *config.Config, logger *log.Logger) *labelers.Pipeline {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	dir := directory.NewClient(cfg.DirectoryURL, httpClient, cfg.UserAgent)
	appView := bsky.NewClient(cfg.AppViewURL, httpClient, cfg.UserAgent)

	return labelers.NewPipeline(dir, appView, appView, cfg.PipelineOptions(), logger)
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	overrides := bindFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	cfg, err := overrides.load(fs)
	if err != nil {
		return err
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	logger.Printf("labelerdir starting: batchSize=%d revalidate=%s partial=%t appview=%s",
		cfg.BatchSize, cfg.Revalidate, cfg.Partial, cfg.AppViewURL)

	store := snapshot.New(newPipeline(cfg, logger), cfg.Revalidate, logger)
	go func() {
		if err := store.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Printf("Snapshot loop error: %v", err)
		}
	}()

	apiServer := server.NewServer(cfg.Listen, cfg.Token, store, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("error stopping server: %w", err)
	}
	return nil
}

func runDump(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	overrides := bindFlags(fs)
	var output string
	fs.StringVar(&output, "o", "", "Output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	cfg, err := overrides.load(fs)
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	result, err := newPipeline(cfg, logger).Run(ctx)
	if err != nil {
		return err
	}

	if len(result.Failed) > 0 {
		logger.Printf("Warning: %d labelers could not be fetched", len(result.Failed))
	}

	if output == "" {
		return writeResult(os.Stdout, result)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := writeResult(f, result); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeResult(w *os.File, result *labelers.ResultSet) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	overrides := bindFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	cfg, err := overrides.load(fs)
	if err != nil {
		return err
	}

	// stdout carries the protocol
	logger := log.New(os.Stderr, "[LABELERDIR-MCP] ", log.Ltime|log.Lmicroseconds)

	store := snapshot.New(newPipeline(cfg, logger), cfg.Revalidate, logger)
	go func() {
		if err := store.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Printf("Snapshot loop error: %v", err)
		}
	}()

	return mcp.Run(ctx, store, logger)
}
