// Package operations runs complete filter runs and keeps their record.
//
// Runner drives one run through its stages:
//
//	load -> aggregate -> reconcile -> band -> select -> export
//
// The middle four stages are the dataprocessing.Pipeline; Runner adds input
// validation, table loading, output export and the run record around it.
//
// StageTracer observes every stage: it opens one OpenTelemetry span per
// stage, records stage duration and error metrics, and writes the stage
// outcome into the RunManifest.
//
// RunManifest is the machine-readable record of a run. It is written as
// manifest_<run-id>.json next to the outputs, for failed runs too, so a
// failed run can be diagnosed without the logs.
//
// Example usage:
//
//	runner, err := operations.NewRunner(cfg, providers, logger)
//	if err != nil {
//		return err
//	}
//	manifest, err := runner.Run(ctx, operations.RunRequest{
//		RunID:          "survey-7",
//		FinePath:       "ndvi_30m.csv",
//		SecondaryPath:  "lst_1km.xlsx",
//		BandConfigPath: "configuration.json",
//	})
package operations
