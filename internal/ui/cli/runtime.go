package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"pymeta/internal/core/app"
	"pymeta/internal/core/config"
	"pymeta/internal/data/index"
	"pymeta/internal/shared/observability"
	"pymeta/internal/ui/report"
)

// Run executes the command line and returns the process exit status. The
// default mode reads Python source from stdin and writes its document to
// stdout; failures are written to stderr as a JSON error object.
func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "pymeta v%s\n", versionString)
		return 0
	}

	configureLogging(stderr, opts.verbose)

	if err := validateModes(opts); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()

	store, err := openStore(cfg)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		return 1
	}

	application, err := app.New(cfg, store)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	defer application.Close()

	enc, err := report.NewEncoder(cfg.Output.Format, cfg.Output.Indent, cfg.Output.Compact)
	if err != nil {
		slog.Error("invalid output settings", "error", err)
		return 1
	}

	switch {
	case opts.callers != "" || opts.defs != "" || opts.show != "":
		return runQuery(application, enc, opts, stdout)
	case opts.scanDir != "":
		return withObservability(ctx, application, func() int {
			return runScan(ctx, application, enc, opts, stdout, stderr)
		})
	case opts.watchDir != "":
		return withObservability(ctx, application, func() int {
			return runWatch(ctx, application, enc, opts, stdout)
		})
	default:
		return runStdin(ctx, application, enc, opts, stdin, stdout, stderr)
	}
}

func runStdin(ctx context.Context, application *app.App, enc *report.Encoder, opts cliOptions, stdin io.Reader, stdout, stderr io.Writer) int {
	source, err := io.ReadAll(stdin)
	if err != nil {
		_ = report.WriteError(stderr, fmt.Errorf("read stdin: %w", err))
		return 1
	}

	doc, err := application.Extract(ctx, opts.filename, source)
	if err != nil {
		_ = report.WriteError(stderr, err)
		return 1
	}
	if err := enc.EncodeDocument(stdout, doc); err != nil {
		_ = report.WriteError(stderr, err)
		return 1
	}

	if application.Config.Output.Summary {
		var stats report.Stats
		stats.Add(doc)
		label := opts.filename
		if label == "" {
			label = "<stdin>"
		}
		fmt.Fprintln(stderr, report.RenderSummary(label, stats))
	}
	return 0
}

func runScan(ctx context.Context, application *app.App, enc *report.Encoder, opts cliOptions, stdout, stderr io.Writer) int {
	result, err := application.Scan(ctx, opts.scanDir)
	if err != nil {
		slog.Error("scan failed", "root", opts.scanDir, "error", err)
		return 1
	}
	if err := enc.EncodeScan(stdout, result); err != nil {
		slog.Error("failed to write scan output", "error", err)
		return 1
	}

	if application.Config.Output.Summary {
		var stats report.Stats
		for _, f := range result.Files {
			if f.Err != nil {
				stats.Add(nil)
				continue
			}
			stats.Add(f.Document)
		}
		fmt.Fprintln(stderr, report.RenderSummary(opts.scanDir, stats))
	}

	if opts.strict && result.Failed() > 0 {
		return 1
	}
	return 0
}

func runWatch(ctx context.Context, application *app.App, enc *report.Encoder, opts cliOptions, stdout io.Writer) int {
	var mu sync.Mutex
	application.SetUpdateHandler(func(result app.FileResult) {
		mu.Lock()
		defer mu.Unlock()
		if err := enc.EncodeUpdate(stdout, result); err != nil {
			slog.Warn("failed to write update", "path", result.Path, "error", err)
		}
	})

	if err := application.Watch(ctx, opts.watchDir); err != nil {
		slog.Error("watch failed", "root", opts.watchDir, "error", err)
		return 1
	}
	slog.Info("shutting down")
	return 0
}

func runQuery(application *app.App, enc *report.Encoder, opts cliOptions, stdout io.Writer) int {
	if application.Store == nil {
		slog.Error("queries need an index; set [db] enabled or pass -db")
		return 1
	}

	if opts.show != "" {
		doc, err := application.Store.LoadDocument(filepath.ToSlash(opts.show))
		if err != nil {
			slog.Error("show failed", "path", opts.show, "error", err)
			return 1
		}
		if err := enc.EncodeDocument(stdout, doc); err != nil {
			slog.Error("failed to write query output", "error", err)
			return 1
		}
		return 0
	}

	if opts.callers != "" {
		sites, err := application.Store.Callers(opts.callers)
		if err != nil {
			slog.Error("callers query failed", "callee", opts.callers, "error", err)
			return 1
		}
		if err := enc.EncodeCallSites(stdout, sites); err != nil {
			slog.Error("failed to write query output", "error", err)
			return 1
		}
		return 0
	}

	defs, err := application.Store.Definitions(opts.defs)
	if err != nil {
		slog.Error("definitions query failed", "name", opts.defs, "error", err)
		return 1
	}
	if err := enc.EncodeDefinitions(stdout, defs); err != nil {
		slog.Error("failed to write query output", "error", err)
		return 1
	}
	return 0
}

// withObservability runs fn with the metrics server up when configured.
func withObservability(ctx context.Context, application *app.App, fn func() int) int {
	addr := strings.TrimSpace(application.Config.Observability.MetricsAddr)
	if addr == "" {
		return fn()
	}

	server := NewObservabilityServer(addr, app.NewHealthService(application))
	if err := server.Start(ctx); err != nil {
		slog.Error("failed to start observability server", "addr", addr, "error", err)
		return 1
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Stop(stopCtx); err != nil {
			slog.Warn("failed to stop observability server", "error", err)
		}
	}()
	return fn()
}

// loadConfig reads the config file, applies environment and flag overrides
// and validates the result. A db path from the file is relative to the file's
// directory; paths from the environment or -db stay relative to the working
// directory. A missing file is only an error when -config was given
// explicitly.
func loadConfig(opts cliOptions) (*config.Config, error) {
	required := opts.configPath != defaultConfigPath
	cfg, err := config.LoadOrDefault(opts.configPath, required)
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(opts.configPath); statErr == nil {
		cfg.DB.Path = config.ResolveRelative(filepath.Dir(opts.configPath), cfg.DB.Path)
	}
	config.ApplyEnvOverrides(cfg)
	applyFlagOverrides(cfg, opts)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyFlagOverrides(cfg *config.Config, opts cliOptions) {
	if opts.format != "" {
		cfg.Output.Format = strings.ToLower(strings.TrimSpace(opts.format))
	}
	if opts.compact {
		cfg.Output.Compact = true
	}
	if opts.summary {
		cfg.Output.Summary = true
	}
	if opts.dbPath != "" {
		cfg.DB.Enabled = true
		cfg.DB.Path = opts.dbPath
	}
}

func openStore(cfg *config.Config) (*index.Store, error) {
	if !cfg.DB.Enabled {
		return nil, nil
	}
	return index.OpenWithBusyTimeout(cfg.DB.Path, cfg.DB.BusyTimeout)
}

// configureLogging sends structured logs to stderr; stdout carries output.
func configureLogging(output io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
