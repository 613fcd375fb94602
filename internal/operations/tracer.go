package operations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"pixelqc/internal/dataprocessing"
	"pixelqc/internal/infrastructure"
)

// TracerName is the instrumentation scope of stage spans
const TracerName = "pixelqc.operations"

type stageKey struct{}

type stageSpan struct {
	stage dataprocessing.Stage
	span  trace.Span
	start time.Time
}

// StageTracer instruments pipeline stages: one span per stage, duration and
// error metrics, and stage records on the run manifest. It implements
// dataprocessing.StageObserver.
type StageTracer struct {
	tracer   trace.Tracer
	metrics  *infrastructure.PipelineMetrics
	manifest *RunManifest
	logger   *slog.Logger
}

// NewStageTracer creates a stage tracer. A nil tracer disables spans and nil
// metrics disable metric recording.
func NewStageTracer(tracer trace.Tracer, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *StageTracer {
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer(TracerName)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StageTracer{tracer: tracer, metrics: metrics, logger: logger}
}

// WithManifest records stage starts and outcomes on m
func (st *StageTracer) WithManifest(m *RunManifest) *StageTracer {
	st.manifest = m
	return st
}

// StageStarted opens the stage span and returns a context carrying it
func (st *StageTracer) StageStarted(ctx context.Context, stage dataprocessing.Stage, rowsIn int) context.Context {
	ctx, span := st.tracer.Start(ctx, fmt.Sprintf("pipeline.stage.%s", stage),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("stage.name", string(stage)),
			attribute.Int("stage.rows_in", rowsIn),
			attribute.String("run.id", infrastructure.GetRunID(ctx)),
		),
	)

	if st.metrics != nil {
		st.metrics.ActiveStages.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", string(stage))))
	}
	if st.manifest != nil {
		st.manifest.RecordStageStart(stage, rowsIn)
	}

	st.logger.DebugContext(ctx, "Stage started",
		slog.String("stage", string(stage)),
		slog.Int("rows_in", rowsIn))

	return context.WithValue(ctx, stageKey{}, &stageSpan{stage: stage, span: span, start: time.Now()})
}

// StageFinished closes the stage span and records the outcome
func (st *StageTracer) StageFinished(ctx context.Context, stage dataprocessing.Stage, rowsOut int, err error) {
	s, ok := ctx.Value(stageKey{}).(*stageSpan)
	if !ok || s.stage != stage {
		st.logger.WarnContext(ctx, "Stage finished without a matching start",
			slog.String("stage", string(stage)))
		return
	}
	duration := time.Since(s.start)

	s.span.SetAttributes(
		attribute.Int("stage.rows_out", rowsOut),
		attribute.Float64("stage.duration_seconds", duration.Seconds()),
	)
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()

	if st.metrics != nil {
		st.metrics.ActiveStages.Add(ctx, -1, metric.WithAttributes(attribute.String("stage", string(stage))))
		st.metrics.RecordStage(ctx, string(stage), duration, err)
	}
	if st.manifest != nil {
		if err != nil {
			st.manifest.RecordStageFailure(stage, err)
		} else {
			st.manifest.RecordStageCompletion(stage, rowsOut)
		}
	}

	st.logger.DebugContext(ctx, "Stage finished",
		slog.String("stage", string(stage)),
		slog.Int("rows_out", rowsOut),
		slog.Duration("duration", duration),
		slog.Bool("failed", err != nil))
}

var _ dataprocessing.StageObserver = (*StageTracer)(nil)
