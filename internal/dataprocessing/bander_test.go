package dataprocessing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pixelqc/internal/errors"
	"pixelqc/pkg/contracts/domain"
)

func reconciledTable(rows ...domain.ReconciledRecord) domain.ReconciledTable {
	return domain.ReconciledTable{CarriedColumns: []string{"elevation"}, Records: rows}
}

func rrow(id int64, measurement, cv float64, elevation string) domain.ReconciledRecord {
	return domain.ReconciledRecord{
		SecondaryRecord: domain.SecondaryRecord{ParentID: id, Measurement: measurement, Carried: []string{elevation}},
		CV:              cv,
	}
}

func TestBander_Split(t *testing.T) {
	table := reconciledTable(
		rrow(1, 10, 0.3, "100"),
		rrow(2, 40, 0.1, "200"),
		rrow(3, 60, 0.5, "300"),
		rrow(4, 90, 0.2, "400"),
		rrow(5, 50, 0.4, "500"),
	)
	bands := []domain.Band{
		{Name: "low", From: 0, To: 50},
		{Name: "high", From: 50, To: 0},
		{Name: "mid", From: 30, To: 70},
		{Name: "none", From: 1000, To: 2000},
	}

	banded, err := NewBander("", nil).Split(table, bands)
	require.NoError(t, err)
	require.Len(t, banded.Bands, 4)

	ids := func(s BandSubset) []int64 {
		var out []int64
		for _, r := range s.Rows {
			out = append(out, r.ParentID)
		}
		return out
	}

	assert.Equal(t, []int64{1, 2}, ids(banded.Bands[0]))
	assert.Equal(t, []int64{3, 4, 5}, ids(banded.Bands[1]))
	// overlapping bands share rows
	assert.Equal(t, []int64{2, 3, 5}, ids(banded.Bands[2]))
	assert.Empty(t, banded.Bands[3].Rows)

	high, ok := banded.ByName("high")
	require.True(t, ok)
	assert.Equal(t, "high", high.Band.Name)
	_, ok = banded.ByName("missing")
	assert.False(t, ok)

	// source table untouched
	assert.Equal(t, 5, table.Len())
	assert.Equal(t, int64(1), table.Records[0].ParentID)
}

func TestBander_AssignmentRule(t *testing.T) {
	bands := []domain.Band{
		{Name: "a", From: 0, To: 5},
		{Name: "b", From: 5, To: 10},
		{Name: "c", From: 10, To: 0},
		{Name: "all", From: 0, To: 0},
	}
	values := []float64{-1, 0, 4.999, 5, 9.999, 10, 1e6}

	for _, x := range values {
		banded, err := NewBander(ColumnMeasurement, nil).Split(reconciledTable(rrow(1, x, 0, "0")), bands)
		require.NoError(t, err)
		for _, subset := range banded.Bands {
			b := subset.Band
			want := (b.From == 0 || x >= b.From) && (b.To == 0 || x < b.To)
			assert.Equal(t, want, len(subset.Rows) == 1, "x=%v band=%s", x, b)
		}
	}
}

func TestBander_OtherColumns(t *testing.T) {
	table := reconciledTable(rrow(1, 10, 0.3, "150"), rrow(2, 40, 0.1, " 250 "))
	bands := []domain.Band{{Name: "lowland", To: 200}, {Name: "upland", From: 200}}

	banded, err := NewBander("elevation", nil).Split(table, bands)
	require.NoError(t, err)
	assert.Len(t, banded.Bands[0].Rows, 1)
	assert.Equal(t, int64(1), banded.Bands[0].Rows[0].ParentID)
	assert.Equal(t, int64(2), banded.Bands[1].Rows[0].ParentID)

	banded, err = NewBander(ColumnCV, nil).Split(table, []domain.Band{{Name: "smooth", To: 0.2}})
	require.NoError(t, err)
	require.Len(t, banded.Bands[0].Rows, 1)
	assert.Equal(t, int64(2), banded.Bands[0].Rows[0].ParentID)
}

func TestBander_MalformedColumn(t *testing.T) {
	tests := []struct {
		name   string
		column string
		table  domain.ReconciledTable
	}{
		{name: "unknown column", column: "slope", table: reconciledTable(rrow(1, 10, 0.3, "150"))},
		{name: "non-numeric value", column: "elevation", table: reconciledTable(rrow(1, 10, 0.3, "n/a"))},
		{
			name:   "short row",
			column: "elevation",
			table: reconciledTable(domain.ReconciledRecord{
				SecondaryRecord: domain.SecondaryRecord{ParentID: 3},
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBander(tt.column, nil).Split(tt.table, []domain.Band{{Name: "x"}})
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrMalformedInput))
			assert.Contains(t, err.Error(), tt.column)
		})
	}
}
