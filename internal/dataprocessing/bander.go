package dataprocessing

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	apperrors "pixelqc/internal/errors"
	"pixelqc/pkg/contracts/domain"
)

// Built-in columns a table can be banded on. Any other name refers to a
// carried column of the secondary table.
const (
	ColumnMeasurement = "measurement"
	ColumnCV          = "coefficient_of_variation"
)

// BandSubset is the rows of a reconciled table that fall inside one band
type BandSubset struct {
	Band domain.Band
	Rows []domain.ReconciledRecord
}

// BandedTable maps bands to their rows, in band definition order
type BandedTable struct {
	CarriedColumns []string
	Bands          []BandSubset
}

// ByName returns the subset of the named band. When names repeat, the last
// definition wins.
func (t *BandedTable) ByName(name string) (BandSubset, bool) {
	for i := len(t.Bands) - 1; i >= 0; i-- {
		if t.Bands[i].Band.Name == name {
			return t.Bands[i], true
		}
	}
	return BandSubset{}, false
}

// Bander partitions a reconciled table into named value bands over one column.
// Bands are not checked for gaps or overlaps; a row can land in zero or
// several bands.
type Bander struct {
	column string
	logger *slog.Logger
}

// NewBander creates a bander over the given column. An empty column means
// ColumnMeasurement.
func NewBander(column string, logger *slog.Logger) *Bander {
	if column == "" {
		column = ColumnMeasurement
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bander{column: column, logger: logger}
}

// Column returns the column the bander reads
func (b *Bander) Column() string {
	return b.column
}

// Split assigns every row to each band whose range contains the row's value.
func (b *Bander) Split(table domain.ReconciledTable, bands []domain.Band) (*BandedTable, error) {
	value, err := b.valueFunc(table)
	if err != nil {
		return nil, err
	}

	values := make([]float64, table.Len())
	for i, rec := range table.Records {
		v, err := value(rec)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	banded := &BandedTable{
		CarriedColumns: table.CarriedColumns,
		Bands:          make([]BandSubset, len(bands)),
	}
	for bi, band := range bands {
		subset := BandSubset{Band: band}
		for i, rec := range table.Records {
			if band.Contains(values[i]) {
				subset.Rows = append(subset.Rows, rec)
			}
		}
		banded.Bands[bi] = subset

		b.logger.Debug("band populated",
			slog.String("band", band.String()),
			slog.String("column", b.column),
			slog.Int("rows", len(subset.Rows)))
	}

	return banded, nil
}

func (b *Bander) valueFunc(table domain.ReconciledTable) (func(domain.ReconciledRecord) (float64, error), error) {
	switch b.column {
	case ColumnMeasurement:
		return func(r domain.ReconciledRecord) (float64, error) { return r.Measurement, nil }, nil
	case ColumnCV:
		return func(r domain.ReconciledRecord) (float64, error) { return r.CV, nil }, nil
	}

	idx := table.CarriedIndex(b.column)
	if idx < 0 {
		return nil, apperrors.NewMalformedInputError(string(StageBand), b.column, "column not found in reconciled table")
	}

	return func(r domain.ReconciledRecord) (float64, error) {
		if idx >= len(r.Carried) {
			return 0, apperrors.NewMalformedInputError(string(StageBand), b.column,
				fmt.Sprintf("missing value for parent id %d", r.ParentID)).
				WithContext("parent_id", r.ParentID)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Carried[idx]), 64)
		if err != nil {
			return 0, apperrors.NewMalformedInputError(string(StageBand), b.column,
				fmt.Sprintf("non-numeric value %q for parent id %d", r.Carried[idx], r.ParentID)).
				WithContext("parent_id", r.ParentID)
		}
		return v, nil
	}, nil
}
