package domain

// BandResult is the set of rows retained for one band.
type BandResult struct {
	Band Band `json:"band"`

	// Population is the number of rows that fell in the band before selection
	Population int `json:"population"`

	// Rows are the retained rows, ascending by coefficient of variation
	Rows []ReconciledRecord `json:"rows"`
}

// FilteredResult is the outcome of a pipeline run: the retained rows of every
// band, in band definition order.
type FilteredResult struct {
	CarriedColumns []string     `json:"carried_columns,omitempty"`
	Bands          []BandResult `json:"bands"`
}

// Rows concatenates the retained rows of all bands.
func (r FilteredResult) Rows() []ReconciledRecord {
	var rows []ReconciledRecord
	for _, b := range r.Bands {
		rows = append(rows, b.Rows...)
	}
	return rows
}

// Len returns the total number of retained rows
func (r FilteredResult) Len() int {
	n := 0
	for _, b := range r.Bands {
		n += len(b.Rows)
	}
	return n
}

// PlotPoint is one (measurement, coefficient of variation) pair handed to a
// plotting collaborator.
type PlotPoint struct {
	Band        string  `json:"band" csv:"band"`
	ParentID    int64   `json:"parent_id" csv:"parent_id"`
	Measurement float64 `json:"measurement" csv:"measurement"`
	CV          float64 `json:"coefficient_of_variation" csv:"coefficient_of_variation"`
}

// PlotPoints exposes the measurement and statistic columns of the result.
func (r FilteredResult) PlotPoints() []PlotPoint {
	points := make([]PlotPoint, 0, r.Len())
	for _, b := range r.Bands {
		for _, row := range b.Rows {
			points = append(points, PlotPoint{
				Band:        b.Band.Name,
				ParentID:    row.ParentID,
				Measurement: row.Measurement,
				CV:          row.CV,
			})
		}
	}
	return points
}
