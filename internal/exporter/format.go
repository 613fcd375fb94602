package exporter

import (
	"strconv"
)

// formatFloat formats a float64 with the fewest digits that round-trip, so
// exported coefficients keep their full precision.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatInt formats an int64 value for CSV output
func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

// FileName builds a deterministic output name: prefix_runID.ext, or
// prefix.ext when no run id is given.
func FileName(prefix, runID, ext string) string {
	if runID == "" {
		return prefix + "." + ext
	}
	return prefix + "_" + runID + "." + ext
}
