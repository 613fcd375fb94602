package operations

import (
	"context"
	"log/slog"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"pixelqc/internal/config"
	"pixelqc/internal/dataprocessing"
	"pixelqc/internal/exporter"
	"pixelqc/internal/infrastructure"
	"pixelqc/internal/loader"
	"pixelqc/internal/validation"
	"pixelqc/pkg/contracts/domain"
)

// RunRequest names the inputs of one filter run. Empty fields fall back to
// the configuration.
type RunRequest struct {
	RunID          string
	FinePath       string
	SecondaryPath  string
	BandConfigPath string
	OutputDir      string
}

// Runner executes complete filter runs: validate, load, filter, export and
// record. A Runner can execute several runs one after another.
type Runner struct {
	cfg       *config.Config
	providers *infrastructure.OTelProviders
	metrics   *infrastructure.PipelineMetrics
	validator *validation.FileValidator
	loader    *loader.Loader
	logger    *slog.Logger
}

// NewRunner creates a Runner. providers may be nil, in which case spans and
// metrics are disabled.
func NewRunner(cfg *config.Config, providers *infrastructure.OTelProviders, logger *slog.Logger) (*Runner, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = infrastructure.WithComponent(logger, "runner")

	r := &Runner{
		cfg:       cfg,
		providers: providers,
		validator: validation.NewFileValidator(logger),
		loader:    loader.New(loader.Options{Sheet: cfg.Input.Sheet, Logger: logger}),
		logger:    logger,
	}

	if providers != nil {
		metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
		if err != nil {
			return nil, err
		}
		r.metrics = metrics
	}
	return r, nil
}

func (r *Runner) resolve(req RunRequest) RunRequest {
	if req.RunID == "" {
		req.RunID = r.cfg.Output.RunID
	}
	if req.OutputDir == "" {
		req.OutputDir = r.cfg.Output.Dir
	}
	if req.BandConfigPath == "" {
		req.BandConfigPath = config.DefaultBandConfigFile
	}
	return req
}

// Run executes one run. The returned manifest is never nil and records the
// failure when err is not nil; it is written to the output directory in both
// cases when manifests are enabled.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunManifest, error) {
	req = r.resolve(req)

	ctx = infrastructure.EnsureTraceID(ctx)
	if req.RunID != "" {
		ctx = infrastructure.WithRunID(ctx, req.RunID)
	}

	var tracer *StageTracer
	if r.providers != nil {
		tracer = NewStageTracer(r.providers.Tracer, r.metrics, r.logger)
	} else {
		tracer = NewStageTracer(nil, nil, r.logger)
	}

	manifest := NewRunManifest(req.RunID)
	tracer.WithManifest(manifest)
	manifest.Start(infrastructure.GetTraceID(ctx), RunInputs{
		Fine:             req.FinePath,
		Secondary:        req.SecondaryPath,
		BandConfig:       req.BandConfigPath,
		FineColumns:      []string{r.cfg.Input.FineIDColumn, r.cfg.Input.FineValueColumn},
		SecondaryColumns: []string{r.cfg.Input.SecondaryIDColumn, r.cfg.Input.SecondaryMeasurementColumn},
		BandColumn:       r.cfg.Input.BandColumn,
		Grouping:         r.cfg.Input.Grouping,
		DedupeSecondary:  r.cfg.Input.DedupeSecondary,
	})

	r.logger.InfoContext(ctx, "Starting run",
		slog.String("run_id", req.RunID),
		slog.String("fine", req.FinePath),
		slog.String("secondary", req.SecondaryPath),
		slog.String("bands", req.BandConfigPath),
		slog.String("output_dir", req.OutputDir))

	err := r.execute(ctx, req, tracer, manifest)

	if r.metrics != nil {
		status := "success"
		if err != nil {
			status = "failure"
		}
		r.metrics.RunsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}

	if err != nil {
		manifest.Fail(err)
		r.logger.ErrorContext(ctx, "Run failed", slog.String("error", err.Error()))
	} else {
		manifest.Complete()
	}

	r.finish(ctx, req, manifest)
	return manifest, err
}

func (r *Runner) execute(ctx context.Context, req RunRequest, tracer *StageTracer, manifest *RunManifest) error {
	if err := r.validator.ValidateRun(req.FinePath, req.SecondaryPath, req.BandConfigPath, req.OutputDir); err != nil {
		return err
	}

	bands, err := config.LoadBandConfig(req.BandConfigPath)
	if err != nil {
		return err
	}
	manifest.SetBandConfig(bands)

	fine, secondary, err := r.load(ctx, req, tracer, manifest)
	if err != nil {
		return err
	}

	pipeline := dataprocessing.NewPipeline(dataprocessing.Options{
		BandColumn: r.cfg.Input.BandColumn,
		Strategy:   dataprocessing.ParseGroupingStrategy(r.cfg.Input.Grouping),
		Observer:   tracer,
		Logger:     r.logger,
	})
	report, err := pipeline.Run(ctx, fine, secondary, *bands)
	if err != nil {
		return err
	}
	manifest.SetReport(report)
	r.recordReport(ctx, report)

	return r.export(ctx, req, report.Result, tracer, manifest)
}

func (r *Runner) load(ctx context.Context, req RunRequest, tracer *StageTracer, manifest *RunManifest) (domain.FineTable, domain.SecondaryTable, error) {
	stageCtx := tracer.StageStarted(ctx, dataprocessing.StageLoad, 0)

	fine, secondary, err := r.loader.LoadBoth(stageCtx,
		req.FinePath, loader.FineColumns{ID: r.cfg.Input.FineIDColumn, Value: r.cfg.Input.FineValueColumn},
		req.SecondaryPath, loader.SecondaryColumns{ID: r.cfg.Input.SecondaryIDColumn, Measurement: r.cfg.Input.SecondaryMeasurementColumn},
	)
	if err != nil {
		tracer.StageFinished(stageCtx, dataprocessing.StageLoad, 0, err)
		return domain.FineTable{}, domain.SecondaryTable{}, err
	}

	if r.cfg.Input.DedupeSecondary {
		var collapsed int
		secondary, collapsed = loader.CollapseByParent(secondary)
		manifest.SetCollapsedRows(collapsed)
		if collapsed > 0 {
			r.logger.WarnContext(ctx, "Duplicate secondary rows collapsed",
				slog.Int("collapsed", collapsed))
		}
	}

	if r.metrics != nil {
		r.metrics.RowsLoaded.Add(ctx, int64(fine.Len()), metric.WithAttributes(attribute.String("table", "fine")))
		r.metrics.RowsLoaded.Add(ctx, int64(secondary.Len()), metric.WithAttributes(attribute.String("table", "secondary")))
	}

	tracer.StageFinished(stageCtx, dataprocessing.StageLoad, fine.Len()+secondary.Len(), nil)
	return fine, secondary, nil
}

func (r *Runner) export(ctx context.Context, req RunRequest, result domain.FilteredResult, tracer *StageTracer, manifest *RunManifest) error {
	stageCtx := tracer.StageStarted(ctx, dataprocessing.StageExport, result.Len())

	exp := exporter.New(exporter.Options{
		Dir:               req.OutputDir,
		RunID:             req.RunID,
		IDColumn:          r.cfg.Input.SecondaryIDColumn,
		MeasurementColumn: r.cfg.Input.SecondaryMeasurementColumn,
		ScatterCSV:        r.cfg.Output.ScatterCSV,
		Logger:            r.logger,
	})
	artifacts, err := exp.Export(stageCtx, result)
	manifest.AddArtifacts(artifacts...)
	if err != nil {
		tracer.StageFinished(stageCtx, dataprocessing.StageExport, 0, err)
		return err
	}

	if r.metrics != nil {
		for _, a := range artifacts {
			r.metrics.OutputBytes.Add(ctx, a.Bytes, metric.WithAttributes(attribute.String("kind", string(a.Kind))))
		}
	}

	tracer.StageFinished(stageCtx, dataprocessing.StageExport, result.Len(), nil)
	return nil
}

func (r *Runner) recordReport(ctx context.Context, report *dataprocessing.Report) {
	if r.metrics == nil {
		return
	}
	r.metrics.GroupsTotal.Add(ctx, int64(report.Groups))
	r.metrics.UndefinedGroups.Add(ctx, int64(len(report.Undefined)))
	r.metrics.UnmatchedIDs.Add(ctx, int64(len(report.DropIDs)))
	for _, b := range report.Bands {
		r.metrics.RowsRetained.Add(ctx, int64(b.Retained), metric.WithAttributes(attribute.String("band", b.Name)))
	}
}

// finish writes the metrics textfile and the manifest. Failures are logged
// and do not change the outcome of the run.
func (r *Runner) finish(ctx context.Context, req RunRequest, manifest *RunManifest) {
	if r.cfg.Output.MetricsFile != "" && r.providers != nil && r.providers.Registry != nil {
		path := filepath.Join(req.OutputDir, r.cfg.Output.MetricsFile)
		if err := r.providers.WriteMetricsTextfile(path); err != nil {
			r.logger.WarnContext(ctx, "Failed to write metrics file", slog.String("error", err.Error()))
		} else {
			manifest.SetMetricsFile(path)
		}
	}

	if !r.cfg.Output.Manifest {
		return
	}
	path, err := manifest.SaveToFile(req.OutputDir)
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to write run manifest", slog.String("error", err.Error()))
		return
	}
	r.logger.InfoContext(ctx, "Run manifest written",
		slog.String("path", path),
		slog.String("status", string(manifest.GetStatus())))
}
