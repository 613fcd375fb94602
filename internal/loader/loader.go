package loader

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "pixelqc/internal/errors"
	"pixelqc/pkg/contracts/domain"
)

const stageLoad = "load"

// Format is an input table encoding
type Format string

const (
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatParquet Format = "parquet"
	FormatDBF     Format = "dbf"
)

// DetectFormat picks the table format from the file extension
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".parquet":
		return FormatParquet, nil
	case ".dbf":
		return FormatDBF, nil
	default:
		return "", apperrors.NewParsingError(fmt.Sprintf("unsupported input format %q", filepath.Ext(path)), nil).
			WithStage(stageLoad).
			WithContext("file", path)
	}
}

// FineColumns names the columns of the fine-resolution table
type FineColumns struct {
	ID    string
	Value string
}

// SecondaryColumns names the key columns of the secondary table; every other
// column is carried through unchanged.
type SecondaryColumns struct {
	ID          string
	Measurement string
}

// Options configures a Loader
type Options struct {
	// Sheet selects the worksheet of xlsx inputs; empty means the first sheet
	Sheet  string
	Logger *slog.Logger
}

// Loader reads fine and secondary tables from csv, xlsx, parquet or dBASE files
type Loader struct {
	sheet  string
	logger *slog.Logger
}

// New creates a Loader
func New(opts Options) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		sheet:  opts.Sheet,
		logger: logger.With("component", "loader"),
	}
}

// rawTable is a decoded input before typing: a header row and string cells
type rawTable struct {
	header []string
	rows   [][]string
}

// cell returns the value at column idx, or "" for short rows
func (t *rawTable) cell(row []string, idx int) string {
	if idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

// columnIndex finds a header column, exact match first, then case-insensitive
func (t *rawTable) columnIndex(name string) int {
	for i, h := range t.header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	for i, h := range t.header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func (l *Loader) read(ctx context.Context, path string) (*rawTable, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatCSV:
		return readCSV(ctx, path)
	case FormatXLSX:
		return readXLSX(ctx, path, l.sheet)
	case FormatDBF:
		return readDBF(ctx, path)
	default:
		return readParquet(ctx, path)
	}
}

// LoadFine reads the fine-resolution table
func (l *Loader) LoadFine(ctx context.Context, path string, cols FineColumns) (domain.FineTable, error) {
	start := time.Now()

	raw, err := l.read(ctx, path)
	if err != nil {
		return domain.FineTable{}, err
	}

	idIdx, err := requireColumn(raw, cols.ID, path)
	if err != nil {
		return domain.FineTable{}, err
	}
	valueIdx, err := requireColumn(raw, cols.Value, path)
	if err != nil {
		return domain.FineTable{}, err
	}

	records := make([]domain.FineRecord, 0, len(raw.rows))
	for i, row := range raw.rows {
		if isBlank(row) {
			continue
		}
		id, err := parseID(raw.cell(row, idIdx), cols.ID, i+2)
		if err != nil {
			return domain.FineTable{}, err
		}
		value, err := parseNumber(raw.cell(row, valueIdx), cols.Value, i+2)
		if err != nil {
			return domain.FineTable{}, err
		}
		records = append(records, domain.FineRecord{ParentID: id, Value: value})
	}

	l.logger.InfoContext(ctx, "Loaded fine table",
		slog.String("file", path),
		slog.Int("rows", len(records)),
		slog.Duration("elapsed", time.Since(start)))

	return domain.FineTable{Records: records}, nil
}

// LoadSecondary reads the secondary table. Columns other than the id and
// measurement columns are carried as raw strings in header order.
func (l *Loader) LoadSecondary(ctx context.Context, path string, cols SecondaryColumns) (domain.SecondaryTable, error) {
	start := time.Now()

	raw, err := l.read(ctx, path)
	if err != nil {
		return domain.SecondaryTable{}, err
	}

	idIdx, err := requireColumn(raw, cols.ID, path)
	if err != nil {
		return domain.SecondaryTable{}, err
	}
	measIdx, err := requireColumn(raw, cols.Measurement, path)
	if err != nil {
		return domain.SecondaryTable{}, err
	}

	var carriedIdx []int
	var carried []string
	for i, h := range raw.header {
		if i == idIdx || i == measIdx {
			continue
		}
		carriedIdx = append(carriedIdx, i)
		carried = append(carried, strings.TrimSpace(h))
	}

	records := make([]domain.SecondaryRecord, 0, len(raw.rows))
	for i, row := range raw.rows {
		if isBlank(row) {
			continue
		}
		id, err := parseID(raw.cell(row, idIdx), cols.ID, i+2)
		if err != nil {
			return domain.SecondaryTable{}, err
		}
		measurement, err := parseNumber(raw.cell(row, measIdx), cols.Measurement, i+2)
		if err != nil {
			return domain.SecondaryTable{}, err
		}

		values := make([]string, len(carriedIdx))
		for j, idx := range carriedIdx {
			values[j] = raw.cell(row, idx)
		}
		records = append(records, domain.SecondaryRecord{
			ParentID:    id,
			Measurement: measurement,
			Carried:     values,
		})
	}

	l.logger.InfoContext(ctx, "Loaded secondary table",
		slog.String("file", path),
		slog.Int("rows", len(records)),
		slog.Any("carried_columns", carried),
		slog.Duration("elapsed", time.Since(start)))

	return domain.SecondaryTable{CarriedColumns: carried, Records: records}, nil
}

// LoadBoth reads the two tables concurrently. The first failure cancels the
// other read.
func (l *Loader) LoadBoth(ctx context.Context, finePath string, fineCols FineColumns, secondaryPath string, secondaryCols SecondaryColumns) (domain.FineTable, domain.SecondaryTable, error) {
	var (
		fine      domain.FineTable
		secondary domain.SecondaryTable
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fine, err = l.LoadFine(gctx, finePath, fineCols)
		return err
	})
	g.Go(func() error {
		var err error
		secondary, err = l.LoadSecondary(gctx, secondaryPath, secondaryCols)
		return err
	})

	if err := g.Wait(); err != nil {
		return domain.FineTable{}, domain.SecondaryTable{}, err
	}
	return fine, secondary, nil
}

func requireColumn(raw *rawTable, name, path string) (int, error) {
	idx := raw.columnIndex(name)
	if idx < 0 {
		return -1, apperrors.NewMalformedInputError(stageLoad, name, "column not found").
			WithContext("file", path).
			WithContext("header", raw.header)
	}
	return idx, nil
}

// parseID accepts integers and integral floats ("12.0"), as written by
// shapefile and spreadsheet exports.
func parseID(s, column string, line int) (int64, error) {
	if s == "" {
		return 0, apperrors.NewMalformedInputError(stageLoad, column, fmt.Sprintf("empty id on line %d", line))
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, apperrors.NewMalformedInputError(stageLoad, column, fmt.Sprintf("invalid id %q on line %d", s, line))
	}
	return int64(f), nil
}

func parseNumber(s, column string, line int) (float64, error) {
	if s == "" {
		return 0, apperrors.NewMalformedInputError(stageLoad, column, fmt.Sprintf("empty value on line %d", line))
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, apperrors.NewMalformedInputError(stageLoad, column, fmt.Sprintf("invalid number %q on line %d", s, line))
	}
	return f, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
