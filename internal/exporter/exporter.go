package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	apperrors "pixelqc/internal/errors"
	"pixelqc/pkg/contracts/domain"
)

const stageExport = "export"

// Output name prefixes
const (
	CleanedDataPrefix = "cleaned_data"
	ScatterPrefix     = "scatter"
)

// ArtifactKind identifies an output file
type ArtifactKind string

const (
	ArtifactWorkbook ArtifactKind = "workbook"
	ArtifactScatter  ArtifactKind = "scatter_csv"
)

// Artifact describes one written output file
type Artifact struct {
	Kind  ArtifactKind `json:"kind"`
	Path  string       `json:"path"`
	Rows  int          `json:"rows"`
	Bytes int64        `json:"bytes"`
}

// Options configures an Exporter
type Options struct {
	Dir   string
	RunID string

	// IDColumn and MeasurementColumn name the key columns in the outputs;
	// they default to parent_id and measurement
	IDColumn          string
	MeasurementColumn string

	// ScatterCSV also writes the (measurement, CV) plot data as CSV
	ScatterCSV bool

	Logger *slog.Logger
}

// Exporter writes the filtered result of a run
type Exporter struct {
	dir               string
	runID             string
	idColumn          string
	measurementColumn string
	scatter           bool
	csv               *CSVWriter
	logger            *slog.Logger
}

// New creates an Exporter
func New(opts Options) *Exporter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "exporter")

	idColumn := opts.IDColumn
	if idColumn == "" {
		idColumn = "parent_id"
	}
	measurementColumn := opts.MeasurementColumn
	if measurementColumn == "" {
		measurementColumn = "measurement"
	}

	return &Exporter{
		dir:               opts.Dir,
		runID:             opts.RunID,
		idColumn:          idColumn,
		measurementColumn: measurementColumn,
		scatter:           opts.ScatterCSV,
		csv:               NewCSVWriter(opts.Dir, logger),
		logger:            logger,
	}
}

// Export writes the workbook and, when enabled, the scatter CSV
func (e *Exporter) Export(ctx context.Context, result domain.FilteredResult) ([]Artifact, error) {
	workbook, err := e.WriteWorkbook(ctx, result)
	if err != nil {
		return nil, err
	}
	artifacts := []Artifact{workbook}

	if e.scatter {
		scatter, err := e.WriteScatter(ctx, result)
		if err != nil {
			return artifacts, err
		}
		artifacts = append(artifacts, scatter)
	}

	for _, a := range artifacts {
		e.logger.InfoContext(ctx, "Wrote output",
			slog.String("kind", string(a.Kind)),
			slog.String("path", a.Path),
			slog.Int("rows", a.Rows),
			slog.Int64("bytes", a.Bytes))
	}
	return artifacts, nil
}

// WriteScatter writes one line per retained row with its band, id,
// measurement and coefficient of variation, for plotting.
func (e *Exporter) WriteScatter(ctx context.Context, result domain.FilteredResult) (Artifact, error) {
	stream, err := e.csv.CreateStreamWriter(
		FileName(ScatterPrefix, e.runID, "csv"),
		[]string{columnBand, e.idColumn, e.measurementColumn, columnCV},
	)
	if err != nil {
		return Artifact{}, exportError("failed to create scatter csv", err)
	}

	points := result.PlotPoints()
	for i, p := range points {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				stream.Close()
				return Artifact{}, err
			}
		}
		record := []string{p.Band, formatInt(p.ParentID), formatFloat(p.Measurement), formatFloat(p.CV)}
		if err := stream.WriteRecord(record); err != nil {
			stream.Close()
			return Artifact{}, exportError("failed to write scatter row", err)
		}
	}

	if err := stream.Close(); err != nil {
		return Artifact{}, exportError("failed to close scatter csv", err)
	}
	return newArtifact(ArtifactScatter, stream.Path(), len(points))
}

func newArtifact(kind ArtifactKind, path string, rows int) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, exportError(fmt.Sprintf("failed to stat %s", path), err)
	}
	return Artifact{Kind: kind, Path: path, Rows: rows, Bytes: info.Size()}, nil
}

func exportError(message string, cause error) *apperrors.AppError {
	return apperrors.NewStorageError(message, cause).WithStage(stageExport)
}
