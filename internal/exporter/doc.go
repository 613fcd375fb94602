// Package exporter writes the outputs of a filter run.
//
// Exporter writes an xlsx workbook with two sheets:
//
//	cleaned_data  every retained row: id, measurement, carried columns,
//	              coefficient_of_variation and band
//	bands         one line per band: bounds, population and retained count
//
// and, when enabled, a scatter CSV of (measurement, coefficient of variation)
// pairs per band for plotting. File names are deterministic: the run id is
// appended when one is given (cleaned_data_<run-id>.xlsx), otherwise the
// plain name is used (cleaned_data.xlsx).
//
// CSVWriter is the low-level CSV writer; it writes a UTF-8 BOM so Excel
// recognizes the encoding, and StreamWriter writes large files row by row.
package exporter
