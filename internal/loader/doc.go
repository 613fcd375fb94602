// Package loader reads the fine-resolution and secondary tables of a filter
// run from csv, xlsx, parquet or dBASE (.dbf) files, chosen by extension.
// dBASE tables are the attribute part of a shapefile export.
//
// Both tables are located by column name. The fine table needs a parent id and
// a value column; the secondary table needs a parent id and a measurement
// column, and every other column is carried through as text. A missing column
// or an unparseable cell is a MALFORMED_INPUT error naming the column.
//
//	l := loader.New(loader.Options{Logger: logger})
//	fine, secondary, err := l.LoadBoth(ctx,
//	    "fine.csv", loader.FineColumns{ID: "FID_pixelc", Value: "grid_code"},
//	    "coarse.xlsx", loader.SecondaryColumns{ID: "FID_pixelc", Measurement: "grid_code"})
package loader
