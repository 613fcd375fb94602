package main

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
	"syscall"
	"time"

	"pixelqc/internal/config"
	"pixelqc/internal/infrastructure"
	"pixelqc/internal/operations"
	"pixelqc/pkg/contracts"
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var errUsage = errors.New("usage")

type options struct {
	base       string
	configPath string
	fine       string
	secondary  string
	bands      string
	out        string
	runID      string
	dedupe     bool
	version    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet(config.AppName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.base, "base", "", "base directory for configs/, data/ and logs/ (defaults to the executable's directory)")
	fs.StringVar(&o.configPath, "config", "", "runtime configuration file (defaults to configs/pixelqc.yaml)")
	fs.StringVar(&o.fine, "fine", "", "fine-resolution table: csv, xlsx, parquet or dbf (required)")
	fs.StringVar(&o.secondary, "secondary", "", "secondary table: csv, xlsx, parquet or dbf (required)")
	fs.StringVar(&o.bands, "bands", "", "band configuration, JSON or YAML (defaults to configuration.json in the base directory)")
	fs.StringVar(&o.out, "out", "", "output directory (defaults to output.dir)")
	fs.StringVar(&o.runID, "run-id", "", "run id used in output file names")
	fs.BoolVar(&o.dedupe, "dedupe-secondary", false, "keep only the first secondary row per parent id")
	fs.BoolVar(&o.version, "version", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s -fine <table> -secondary <table> [flags]\n\n", config.AppName)
		fmt.Fprintln(fs.Output(), "Keeps the most homogeneous coarse pixels of every measurement band.")
		fmt.Fprintln(fs.Output())
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	if o.version {
		return &o, nil
	}
	if o.fine == "" || o.secondary == "" {
		fmt.Fprintln(fs.Output(), "both -fine and -secondary are required")
		fs.Usage()
		return nil, errUsage
	}
	return &o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return exitUsage
	}
	if opts.version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return exitOK
	}

	paths, err := resolvePaths(opts.base)
	if err != nil {
		slog.Error("Failed to initialize paths", "error", err)
		return exitFailure
	}
	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("Failed to create directories", "error", err)
		return exitFailure
	}

	configPath := opts.configPath
	if configPath == "" && config.FileExists(paths.ConfigFile) {
		configPath = paths.ConfigFile
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return exitFailure
	}
	applyOverrides(cfg, opts, paths)

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	paths.LogPathResolution(logger)

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFromTelemetry(cfg.Telemetry), logger)
	if err != nil {
		logger.Error("Failed to initialize telemetry", slog.String("error", err.Error()))
		return exitFailure
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	runner, err := operations.NewRunner(cfg, providers, logger)
	if err != nil {
		logger.Error("Failed to create runner", slog.String("error", err.Error()))
		return exitFailure
	}

	bands := opts.bands
	if bands == "" {
		bands = paths.BandConfigFile
	}

	manifest, err := runner.Run(ctx, operations.RunRequest{
		RunID:          cfg.Output.RunID,
		FinePath:       resolveInput(opts.fine, paths),
		SecondaryPath:  resolveInput(opts.secondary, paths),
		BandConfigPath: bands,
		OutputDir:      cfg.Output.Dir,
	})
	printSummary(stdout, manifest)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", config.AppName, err)
		return exitFailure
	}
	return exitOK
}

func resolvePaths(base string) (*config.Paths, error) {
	if base == "" {
		return config.GetPaths()
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	return config.NewPaths(abs), nil
}

// applyOverrides applies flags over the loaded configuration and anchors
// relative output locations at the base directory
func applyOverrides(cfg *config.Config, opts *options, paths *config.Paths) {
	if opts.out != "" {
		cfg.Output.Dir = opts.out
	} else if !filepath.IsAbs(cfg.Output.Dir) {
		cfg.Output.Dir = filepath.Join(paths.BaseDir, cfg.Output.Dir)
	}
	if opts.runID != "" {
		cfg.Output.RunID = opts.runID
	}
	if opts.dedupe {
		cfg.Input.DedupeSecondary = true
	}
	if cfg.Logging.FilePath != "" && !filepath.IsAbs(cfg.Logging.FilePath) {
		cfg.Logging.FilePath = filepath.Join(paths.BaseDir, cfg.Logging.FilePath)
	}
}

// resolveInput looks a relative table up in the working directory first and
// in data/input second
func resolveInput(path string, paths *config.Paths) string {
	if filepath.IsAbs(path) || config.FileExists(path) {
		return path
	}
	if candidate := paths.GetInputPath(path); config.FileExists(candidate) {
		return candidate
	}
	return path
}

func printSummary(w io.Writer, m *operations.RunManifest) {
	if m == nil {
		return
	}

	name := m.RunID
	if name == "" {
		name = m.ID
	}
	fmt.Fprintf(w, "run %s %s\n", name, m.Status)

	if r := m.Report; r != nil {
		fmt.Fprintf(w, "fine rows: %d, secondary rows: %d\n", r.FineRows, r.SecondaryRows)
		fmt.Fprintf(w, "groups: %d, undefined: %d, unmatched ids: %d\n", r.Groups, len(r.Undefined), len(r.DropIDs))
		for _, b := range r.Bands {
			fmt.Fprintf(w, "band %s: kept %d of %d\n", b.Range, b.Retained, b.Population)
		}
		fmt.Fprintf(w, "retained rows: %d\n", r.RetainedRows)
	}
	for _, a := range m.Artifacts {
		fmt.Fprintf(w, "wrote %s (%d rows)\n", a.Path, a.Rows)
	}
	if m.Error != "" {
		fmt.Fprintf(w, "error: %s\n", m.Error)
	}
}
