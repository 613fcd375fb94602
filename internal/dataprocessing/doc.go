// Package dataprocessing implements the pixel quality filter: it measures how
// homogeneous the fine-resolution pixels under each coarse parent pixel are
// and keeps the most homogeneous rows of the secondary table per value band.
//
// # Architecture
//
// The package is organized into four components run in sequence by Pipeline:
//
// 1. GroupAggregator: groups fine records by parent id and computes the
// coefficient of variation (population stddev / mean) of each group
// 2. Reconciler: restricts the secondary table to the ids that have a
// statistic, reports ids without a secondary row and attaches the statistic
// 3. Bander: splits the reconciled rows into named [from, to) value bands,
// where a zero bound means unbounded
// 4. TopPercentileSelector: keeps the floor(n*p) lowest-variation rows of
// every band
//
// # Usage
//
//	pipeline := dataprocessing.NewPipeline(dataprocessing.Options{
//	    BandColumn: dataprocessing.ColumnMeasurement,
//	    Logger:     logger,
//	})
//	report, err := pipeline.Run(ctx, fine, secondary, bandConfig)
//	if err != nil {
//	    return err
//	}
//	rows := report.Result.Rows()
//
// # Data Flow
//
//	FineTable → GroupAggregator → VariationRecords ─┐
//	SecondaryTable ─────────────────────────────────┴→ Reconciler → Bander → TopPercentileSelector → FilteredResult
//
// # Error Handling
//
// Groups with fewer than two members or a zero mean have no defined statistic;
// they are listed in Report.Undefined and never ranked. Ids without a
// secondary row are counted in Report.EmptyRows and Report.DropIDs. Everything
// else (missing columns, duplicate ids, bad percentage) aborts the run with an
// errors.AppError naming the stage.
//
// # Concurrency
//
// A Pipeline run is synchronous and every stage returns new tables; inputs are
// never modified, so the same tables can be reused across runs.
package dataprocessing
