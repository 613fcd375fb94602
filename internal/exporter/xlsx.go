package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"pixelqc/pkg/contracts/domain"
)

const (
	// SheetCleanedData holds every retained row
	SheetCleanedData = "cleaned_data"
	// SheetBands summarizes population and retention per band
	SheetBands = "bands"

	columnCV   = "coefficient_of_variation"
	columnBand = "band"
)

// workbookHeader lists the cleaned_data columns: the key columns under their
// source names, the carried columns, the statistic and the band.
func (e *Exporter) workbookHeader(carried []string) []interface{} {
	header := make([]interface{}, 0, len(carried)+4)
	header = append(header, e.idColumn, e.measurementColumn)
	for _, c := range carried {
		header = append(header, c)
	}
	return append(header, columnCV, columnBand)
}

// WriteWorkbook writes the retained rows and the band summary to an xlsx file
func (e *Exporter) WriteWorkbook(ctx context.Context, result domain.FilteredResult) (Artifact, error) {
	path := filepath.Join(e.dir, FileName(CleanedDataPrefix, e.runID, "xlsx"))

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetCleanedData); err != nil {
		return Artifact{}, exportError("failed to name sheet", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return Artifact{}, exportError("failed to create header style", err)
	}

	sw, err := f.NewStreamWriter(SheetCleanedData)
	if err != nil {
		return Artifact{}, exportError("failed to open sheet stream", err)
	}
	if err := sw.SetRow("A1", e.workbookHeader(result.CarriedColumns), excelize.RowOpts{StyleID: bold}); err != nil {
		return Artifact{}, exportError("failed to write header", err)
	}

	rowNum := 2
	for _, band := range result.Bands {
		if err := ctx.Err(); err != nil {
			return Artifact{}, err
		}
		for _, rec := range band.Rows {
			cell, err := excelize.CoordinatesToCellName(1, rowNum)
			if err != nil {
				return Artifact{}, exportError("invalid cell", err)
			}
			if err := sw.SetRow(cell, workbookRow(rec, band.Band.Name)); err != nil {
				return Artifact{}, exportError(fmt.Sprintf("failed to write row %d", rowNum), err)
			}
			rowNum++
		}
	}
	if err := sw.Flush(); err != nil {
		return Artifact{}, exportError("failed to flush sheet", err)
	}

	if err := writeBandSheet(f, result, bold); err != nil {
		return Artifact{}, err
	}

	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return Artifact{}, exportError("failed to create output directory", err)
	}
	if err := f.SaveAs(path); err != nil {
		return Artifact{}, exportError(fmt.Sprintf("failed to save %s", path), err)
	}

	return newArtifact(ArtifactWorkbook, path, rowNum-2)
}

func workbookRow(rec domain.ReconciledRecord, band string) []interface{} {
	row := make([]interface{}, 0, len(rec.Carried)+4)
	row = append(row, rec.ParentID, rec.Measurement)
	for _, v := range rec.Carried {
		row = append(row, cellValue(v))
	}
	return append(row, rec.CV, band)
}

// cellValue writes numeric carried values as numbers so spreadsheets can sort them
func cellValue(s string) interface{} {
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return f
	}
	return s
}

func writeBandSheet(f *excelize.File, result domain.FilteredResult, headerStyle int) error {
	if _, err := f.NewSheet(SheetBands); err != nil {
		return exportError("failed to create bands sheet", err)
	}

	header := []interface{}{"band", "from", "to", "range", "population", "retained"}
	if err := f.SetSheetRow(SheetBands, "A1", &header); err != nil {
		return exportError("failed to write bands header", err)
	}
	if err := f.SetRowStyle(SheetBands, 1, 1, headerStyle); err != nil {
		return exportError("failed to style bands header", err)
	}

	for i, band := range result.Bands {
		row := []interface{}{
			band.Band.Name,
			bound(band.Band.From),
			bound(band.Band.To),
			band.Band.String(),
			band.Population,
			len(band.Rows),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return exportError("invalid cell", err)
		}
		if err := f.SetSheetRow(SheetBands, cell, &row); err != nil {
			return exportError("failed to write band summary", err)
		}
	}
	return nil
}

// bound leaves unbounded (zero) band ends empty
func bound(v float64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
