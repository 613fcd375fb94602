package dataprocessing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	apperrors "pixelqc/internal/errors"
	"pixelqc/pkg/contracts/domain"
)

// Stage names one step of the filtering pipeline
type Stage string

const (
	StageLoad      Stage = "load"
	StageAggregate Stage = "aggregate"
	StageReconcile Stage = "reconcile"
	StageBand      Stage = "band"
	StageSelect    Stage = "select"
	StageExport    Stage = "export"
)

// StageObserver is notified at every stage boundary of a run. Implementations
// may return a derived context (e.g. carrying a tracing span).
type StageObserver interface {
	StageStarted(ctx context.Context, stage Stage, rowsIn int) context.Context
	StageFinished(ctx context.Context, stage Stage, rowsOut int, err error)
}

type noopObserver struct{}

func (noopObserver) StageStarted(ctx context.Context, _ Stage, _ int) context.Context { return ctx }
func (noopObserver) StageFinished(context.Context, Stage, int, error)                 {}

// Options configures a Pipeline
type Options struct {
	// BandColumn is the column bands are evaluated on (default: measurement)
	BandColumn string

	// Strategy selects the grouping implementation
	Strategy GroupingStrategy

	// Observer receives stage notifications; nil disables them
	Observer StageObserver

	Logger *slog.Logger
}

// BandStats summarizes one band of a run
type BandStats struct {
	Name       string `json:"name"`
	Range      string `json:"range"`
	Population int    `json:"population"`
	Retained   int    `json:"retained"`
}

// Report is the outcome of a pipeline run
type Report struct {
	Result domain.FilteredResult `json:"-"`

	FineRows       int              `json:"fine_rows"`
	SecondaryRows  int              `json:"secondary_rows"`
	Groups         int              `json:"groups"`
	Variations     int              `json:"variations"`
	Undefined      []UndefinedGroup `json:"undefined,omitempty"`
	EmptyRows      int              `json:"empty_rows"`
	DropIDs        []int64          `json:"drop_ids,omitempty"`
	ReconciledRows int              `json:"reconciled_rows"`
	RetainedRows   int              `json:"retained_rows"`
	Bands          []BandStats      `json:"bands"`
	Duration       time.Duration    `json:"duration"`
}

// Pipeline composes GroupAggregator, Reconciler, Bander and
// TopPercentileSelector. Every stage consumes a complete table and produces
// a complete table before the next one starts.
type Pipeline struct {
	aggregator *GroupAggregator
	reconciler *Reconciler
	bander     *Bander
	selector   *TopPercentileSelector
	observer   StageObserver
	logger     *slog.Logger
}

// NewPipeline creates a pipeline from options
func NewPipeline(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := opts.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	return &Pipeline{
		aggregator: NewGroupAggregator(logger).WithStrategy(opts.Strategy),
		reconciler: NewReconciler(logger),
		bander:     NewBander(opts.BandColumn, logger),
		selector:   NewTopPercentileSelector(logger),
		observer:   observer,
		logger:     logger,
	}
}

// Run filters the secondary table down to the most homogeneous rows of each
// band. The percentage is validated before any processing starts. Any error
// aborts the run; undefined variations and unmatched ids are reported in the
// Report instead.
func (p *Pipeline) Run(ctx context.Context, fine domain.FineTable, secondary domain.SecondaryTable, cfg domain.BandConfig) (*Report, error) {
	start := time.Now()

	if err := ValidatePercentage(cfg.Percentage); err != nil {
		p.logger.ErrorContext(ctx, "invalid selection percentage", slog.Any("error", err))
		return nil, err
	}

	p.logger.InfoContext(ctx, "starting pixel quality filtering",
		slog.Int("fine_rows", fine.Len()),
		slog.Int("secondary_rows", secondary.Len()),
		slog.Int("bands", len(cfg.Bands)),
		slog.Float64("percentage", cfg.Percentage),
		slog.String("band_column", p.bander.Column()))

	report := &Report{
		FineRows:      fine.Len(),
		SecondaryRows: secondary.Len(),
	}

	// aggregate
	stageCtx := p.observer.StageStarted(ctx, StageAggregate, fine.Len())
	agg, err := p.aggregator.Aggregate(fine)
	if err != nil {
		return nil, p.fail(stageCtx, StageAggregate, err)
	}
	p.observer.StageFinished(stageCtx, StageAggregate, len(agg.Variations), nil)
	report.Groups = agg.Groups
	report.Variations = len(agg.Variations)
	report.Undefined = agg.Undefined
	if len(agg.Undefined) > 0 {
		p.logger.WarnContext(ctx, "groups with undefined coefficient of variation excluded",
			slog.Int("count", len(agg.Undefined)),
			slog.Any("parent_ids", agg.UndefinedIDs()))
	}

	// reconcile
	stageCtx = p.observer.StageStarted(ctx, StageReconcile, secondary.Len())
	rec, err := p.reconciler.Reconcile(secondary, agg.Variations)
	if err != nil {
		return nil, p.fail(stageCtx, StageReconcile, err)
	}
	p.observer.StageFinished(stageCtx, StageReconcile, rec.Table.Len(), nil)
	report.EmptyRows = rec.EmptyRows
	report.DropIDs = rec.DropIDs
	report.ReconciledRows = rec.Table.Len()
	if rec.EmptyRows > 0 {
		p.logger.WarnContext(ctx, "parent ids without a secondary row dropped",
			slog.Int("empty_rows", rec.EmptyRows),
			slog.Any("drop_ids", rec.DropIDs))
	}

	// band
	stageCtx = p.observer.StageStarted(ctx, StageBand, rec.Table.Len())
	banded, err := p.bander.Split(rec.Table, cfg.Bands)
	if err != nil {
		return nil, p.fail(stageCtx, StageBand, err)
	}
	p.observer.StageFinished(stageCtx, StageBand, countBanded(banded), nil)

	// select
	stageCtx = p.observer.StageStarted(ctx, StageSelect, countBanded(banded))
	result, err := p.selector.Select(banded, cfg.Percentage)
	if err != nil {
		return nil, p.fail(stageCtx, StageSelect, err)
	}
	p.observer.StageFinished(stageCtx, StageSelect, result.Len(), nil)

	report.Result = result
	report.RetainedRows = result.Len()
	for _, b := range result.Bands {
		report.Bands = append(report.Bands, BandStats{
			Name:       b.Band.Name,
			Range:      b.Band.String(),
			Population: b.Population,
			Retained:   len(b.Rows),
		})
	}
	report.Duration = time.Since(start)

	p.logger.InfoContext(ctx, "pixel quality filtering complete",
		slog.Int("reconciled_rows", report.ReconciledRows),
		slog.Int("retained_rows", report.RetainedRows),
		slog.Duration("duration", report.Duration))

	return report, nil
}

// fail tags err with the stage that raised it and notifies the observer
func (p *Pipeline) fail(ctx context.Context, stage Stage, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Stage == "" {
		appErr.Stage = string(stage)
	}
	p.observer.StageFinished(ctx, stage, 0, err)
	p.logger.ErrorContext(ctx, "pipeline stage failed",
		slog.String("stage", string(stage)),
		slog.String("error", err.Error()))
	return err
}

func countBanded(t *BandedTable) int {
	n := 0
	for _, b := range t.Bands {
		n += len(b.Rows)
	}
	return n
}
