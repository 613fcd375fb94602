package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Valentin-Kaiser/go-dbase/dbase"
	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	apperrors "pixelqc/internal/errors"
)

// utf8BOM is written by spreadsheet tools at the start of CSV exports
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ctxCheckEvery bounds how many rows are read between cancellation checks
const ctxCheckEvery = 4096

func readCSV(ctx context.Context, path string) (*rawTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to open %s", path), err).WithStage(stageLoad)
	}
	defer file.Close()

	br := bufio.NewReader(file)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, emptyInput("file has no header row", path)
	}
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read header of %s", path), err).WithStage(stageLoad)
	}

	table := &rawTable{header: header}
	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read %s", path), err).WithStage(stageLoad)
		}
		table.rows = append(table.rows, record)
	}

	return table, nil
}

func readXLSX(ctx context.Context, path, sheet string) (*rawTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to open %s", path), err).WithStage(stageLoad)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, emptyInput("workbook has no sheets", path)
		}
		sheet = sheets[0]
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read sheet %q of %s", sheet, path), err).WithStage(stageLoad)
	}
	if len(rows) == 0 {
		return nil, emptyInput("sheet has no header row", path).WithContext("sheet", sheet)
	}

	return &rawTable{header: rows[0], rows: rows[1:]}, nil
}

// readParquet reads a flat parquet file into string cells. Leaf columns are
// named by their dotted path; null values become empty cells.
func readParquet(ctx context.Context, path string) (*rawTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to open %s", path), err).WithStage(stageLoad)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to stat %s", path), err).WithStage(stageLoad)
	}

	pf, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to open parquet file %s", path), err).WithStage(stageLoad)
	}

	columns := pf.Schema().Columns()
	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = strings.Join(col, ".")
	}

	table := &rawTable{header: header, rows: make([][]string, 0, pf.NumRows())}

	reader := parquet.NewReader(pf)
	defer reader.Close()

	buf := make([]parquet.Row, 256)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := reader.ReadRows(buf)
		for _, row := range buf[:n] {
			cells := make([]string, len(header))
			for _, v := range row {
				idx := v.Column()
				if idx < 0 || idx >= len(cells) || v.IsNull() {
					continue
				}
				cells[idx] = v.String()
			}
			table.rows = append(table.rows, cells)
		}

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read rows of %s", path), err).WithStage(stageLoad)
		}
	}

	return table, nil
}

// readDBF reads a dBASE attribute table, the .dbf part of a shapefile.
// Character fields are decoded as Windows-1252, the ArcGIS default. Rows
// flagged as deleted are skipped.
func readDBF(ctx context.Context, path string) (*rawTable, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to open %s", path), err).WithStage(stageLoad)
	}

	// shapefile tables are dBASE III; only the FoxPro versions count as tested
	table, err := dbase.OpenTable(&dbase.Config{
		Filename:   path,
		Converter:  dbase.NewDefaultConverter(charmap.Windows1252),
		TrimSpaces: true,
		Untested:   true,
	})
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to open dBASE table %s", path), err).WithStage(stageLoad)
	}
	defer table.Close()

	columns := table.Columns()
	if len(columns) == 0 {
		return nil, emptyInput("table has no columns", path)
	}
	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.Name()
	}

	raw := &rawTable{header: header}
	for n := 0; !table.EOF(); n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		row, err := table.Next()
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read row %d of %s", n+1, path), err).WithStage(stageLoad)
		}
		if row.Deleted {
			continue
		}

		values := row.Values()
		cells := make([]string, len(header))
		for i := 0; i < len(cells) && i < len(values); i++ {
			cells[i] = dbfCell(values[i])
		}
		raw.rows = append(raw.rows, cells)
	}

	return raw, nil
}

// dbfCell renders a decoded dBASE field the way the csv reader would see it
func dbfCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case []byte:
		return strings.TrimSpace(string(val))
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format("2006-01-02")
	default:
		return fmt.Sprint(val)
	}
}

func emptyInput(message, path string) *apperrors.AppError {
	return apperrors.NewAppError(apperrors.ErrTypeMalformedInput, message, nil).
		WithStage(stageLoad).
		WithContext("file", path)
}
