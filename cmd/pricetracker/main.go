package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-price-tracker/config"
	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/aluiziolira/go-price-tracker/pipeline"
	"github.com/aluiziolira/go-price-tracker/scheduler"
	"github.com/aluiziolira/go-price-tracker/scraper"
	"github.com/aluiziolira/go-price-tracker/targets"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"
)

type options struct {
	configFile string
	importFile string
	clear      bool
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	var opts options
	defaults := config.DefaultConfig()

	flag.StringVar(&opts.configFile, "config", "", "YAML configuration file")
	flag.StringVar(&opts.importFile, "import", "", "Validate the URLs in this file and save them as the target list")
	flag.BoolVar(&opts.clear, "clear", false, "Clear the saved target list and exit")
	urlsFile := flag.String("urls", defaults.URLsFile, "File holding the saved target list")
	reportFile := flag.String("report", defaults.ReportFile, "Text report path")
	exportFile := flag.String("export", defaults.ExportFile, "Spreadsheet export path (empty disables export)")
	exportFormat := flag.String("format", defaults.ExportFormat, "Export format: xlsx, csv, json, or dual")
	schedule := flag.String("schedule", "", "Cron expression for repeated batches (e.g. \"@every 6h\")")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	logFile := flag.String("log-file", "", "Also write JSON logs to this rotated file")
	delay := flag.Duration("delay", defaults.Delay, "Minimum pause before each product request")
	randomDelay := flag.Duration("random-delay", defaults.RandomDelay, "Random jitter added to the pause")
	timeout := flag.Duration("timeout", defaults.Timeout, "Per-request timeout")
	maxRetries := flag.Int("max-retries", defaults.MaxRetries, "Retries after the first attempt for transient failures")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	cfg, err := loadConfig(opts.configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// Explicit flags win over the config file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "urls":
			cfg.URLsFile = *urlsFile
		case "report":
			cfg.ReportFile = *reportFile
		case "export":
			cfg.ExportFile = *exportFile
		case "format":
			cfg.ExportFormat = strings.ToLower(*exportFormat)
		case "schedule":
			cfg.Schedule = *schedule
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "log-file":
			cfg.LogFile = *logFile
		case "delay":
			cfg.Delay = *delay
		case "random-delay":
			cfg.RandomDelay = *randomDelay
		case "timeout":
			cfg.Timeout = *timeout
		case "max-retries":
			cfg.MaxRetries = *maxRetries
		case "v":
			cfg.Verbose = *verbose
		}
	})

	logger, level := newLogger(cfg.Verbose, cfg.LogFile)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	switch {
	case opts.clear:
		if err := targets.Clear(cfg.URLsFile); err != nil {
			slog.Error("clear target list", slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Println("Target list cleared")
		return
	case opts.importFile != "":
		if err := importTargets(opts.importFile, cfg.URLsFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing current target")
	}()

	fetcher, err := scraper.NewFetcher(cfg)
	if err != nil {
		slog.Error("initialising fetcher", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(fetcher.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}
	defer func() {
		if metricsServer == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}()

	batch := func(ctx context.Context) error {
		return runBatch(ctx, cfg, fetcher, flag.Args())
	}

	if cfg.Schedule == "" {
		if err := batch(ctx); err != nil {
			slog.Error("price check failed", slog.Any("error", err))
			stop()
			os.Exit(1)
		}
		return
	}

	s, err := scheduler.New(cfg.Schedule, batch)
	if err != nil {
		slog.Error("invalid schedule", slog.Any("error", err))
		os.Exit(1)
	}
	if err := s.Run(ctx); err != nil {
		slog.Error("scheduler failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	return cfg, nil
}

// importTargets validates every line of src and replaces the saved list.
func importTargets(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	list, err := targets.Parse(string(data))
	if err != nil {
		return err
	}
	if err := targets.Save(dst, list); err != nil {
		return err
	}
	fmt.Printf("Saved %d URL(s) to %s\n", len(list), dst)
	return nil
}

// collectTargets prefers URLs given on the command line over the saved list.
func collectTargets(cfg *config.Config, args []string) ([]models.Target, error) {
	if len(args) > 0 {
		return targets.Parse(strings.Join(args, "\n"))
	}
	list, err := targets.Load(cfg.URLsFile)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: add URLs with -import or pass them as arguments", targets.ErrNoTargets)
	}
	return list, nil
}

func runBatch(ctx context.Context, cfg *config.Config, fetcher *scraper.Fetcher, args []string) error {
	list, err := collectTargets(cfg, args)
	if err != nil {
		return err
	}

	observer := pipeline.NewChannelObserver(16)
	orchestrator, err := pipeline.NewOrchestrator(cfg, fetcher, observer)
	if err != nil {
		return err
	}
	orchestrator.Metrics = fetcher.Metrics

	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		renderEvents(os.Stderr, observer.Events())
	}()

	result, runErr := orchestrator.Run(ctx, list)
	observer.Close()
	<-rendered
	if runErr != nil {
		return runErr
	}

	if cfg.ExportFile != "" && len(result.Records) > 0 {
		exporter, err := pipeline.NewExporter(cfg.ExportFormat, cfg.ExportFile)
		if err != nil {
			return fmt.Errorf("create exporter: %w", err)
		}
		if err := pipeline.Export(exporter, result.Records); err != nil {
			return fmt.Errorf("export results: %w", err)
		}
		slog.Info("results exported", slog.String("file", cfg.ExportFile), slog.String("format", cfg.ExportFormat))
	}

	printSummary(os.Stdout, result, cfg)
	return nil
}

func newLogger(verbose bool, logFile string) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	if logFile != "" {
		rotated := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		return slog.New(slog.NewJSONHandler(io.MultiWriter(os.Stdout, rotated), opts)), level
	}

	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
