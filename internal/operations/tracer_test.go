package operations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"pixelqc/internal/dataprocessing"
	apperrors "pixelqc/internal/errors"
	"pixelqc/internal/infrastructure"
)

func newTestTracer(t *testing.T) (*StageTracer, *tracetest.SpanRecorder, *sdkmetric.ManualReader) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	metrics, err := infrastructure.CreatePipelineMetrics(mp.Meter("test"))
	require.NoError(t, err)

	return NewStageTracer(tp.Tracer(TracerName), metrics, nil), recorder, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func spanAttr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestStageTracer_Success(t *testing.T) {
	tracer, recorder, reader := newTestTracer(t)
	manifest := NewRunManifest("r1")
	tracer.WithManifest(manifest)

	ctx := infrastructure.WithRunID(context.Background(), "r1")
	stageCtx := tracer.StageStarted(ctx, dataprocessing.StageAggregate, 10)

	exec, ok := manifest.Stage(dataprocessing.StageAggregate)
	require.True(t, ok)
	assert.Equal(t, StageStatusRunning, exec.Status)

	tracer.StageFinished(stageCtx, dataprocessing.StageAggregate, 4, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "pipeline.stage.aggregate", span.Name())
	assert.Equal(t, codes.Ok, span.Status().Code)

	rowsIn, ok := spanAttr(span.Attributes(), "stage.rows_in")
	require.True(t, ok)
	assert.Equal(t, int64(10), rowsIn.AsInt64())
	rowsOut, ok := spanAttr(span.Attributes(), "stage.rows_out")
	require.True(t, ok)
	assert.Equal(t, int64(4), rowsOut.AsInt64())
	runID, ok := spanAttr(span.Attributes(), "run.id")
	require.True(t, ok)
	assert.Equal(t, "r1", runID.AsString())

	exec, _ = manifest.Stage(dataprocessing.StageAggregate)
	assert.Equal(t, StageStatusCompleted, exec.Status)
	assert.Equal(t, 10, exec.RowsIn)
	assert.Equal(t, 4, exec.RowsOut)
	assert.NotNil(t, exec.EndTime)

	metrics := collect(t, reader)
	require.Contains(t, metrics, "pixelqc_stage_duration_seconds")
	hist := metrics["pixelqc_stage_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)

	active := metrics["pixelqc_active_stages"].Data.(metricdata.Sum[int64])
	for _, dp := range active.DataPoints {
		assert.Equal(t, int64(0), dp.Value)
	}
	assert.NotContains(t, metrics, "pixelqc_stage_errors_total")
}

func TestStageTracer_Failure(t *testing.T) {
	tracer, recorder, reader := newTestTracer(t)
	manifest := NewRunManifest("")
	tracer.WithManifest(manifest)

	stageErr := apperrors.NewAlignmentMismatchError("reconcile", "3 secondary rows for 2 variation rows")
	stageCtx := tracer.StageStarted(context.Background(), dataprocessing.StageReconcile, 3)
	tracer.StageFinished(stageCtx, dataprocessing.StageReconcile, 0, stageErr)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)

	exec, ok := manifest.Stage(dataprocessing.StageReconcile)
	require.True(t, ok)
	assert.Equal(t, StageStatusFailed, exec.Status)
	assert.Contains(t, exec.Error, "ALIGNMENT_MISMATCH")

	metrics := collect(t, reader)
	require.Contains(t, metrics, "pixelqc_stage_errors_total")
	errs := metrics["pixelqc_stage_errors_total"].Data.(metricdata.Sum[int64])
	require.Len(t, errs.DataPoints, 1)
	errType, ok := errs.DataPoints[0].Attributes.Value("error.type")
	require.True(t, ok)
	assert.Equal(t, "ALIGNMENT_MISMATCH", errType.AsString())
}

func TestStageTracer_UnmatchedFinish(t *testing.T) {
	tracer, recorder, _ := newTestTracer(t)

	// a finish without a start, or for a different stage, is ignored
	tracer.StageFinished(context.Background(), dataprocessing.StageBand, 1, nil)
	stageCtx := tracer.StageStarted(context.Background(), dataprocessing.StageBand, 1)
	tracer.StageFinished(stageCtx, dataprocessing.StageSelect, 1, nil)

	assert.Empty(t, recorder.Ended())
}

func TestStageTracer_Disabled(t *testing.T) {
	tracer := NewStageTracer(nil, nil, nil)

	ctx := tracer.StageStarted(context.Background(), dataprocessing.StageSelect, 5)
	assert.NotPanics(t, func() {
		tracer.StageFinished(ctx, dataprocessing.StageSelect, 2, nil)
	})
}
