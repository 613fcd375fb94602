package domain

// FineRecord is one fine-resolution pixel measurement (e.g. 30m NDVI) tagged
// with the coarse parent pixel it falls within.
type FineRecord struct {
	// ParentID identifies the coarse pixel this fine pixel belongs to
	ParentID int64 `json:"parent_id" csv:"parent_id"`

	// Value is the fine-resolution measurement
	Value float64 `json:"value" csv:"value"`
}

// FineTable is the fine-resolution input table.
type FineTable struct {
	Records []FineRecord `json:"records"`
}

// Len returns the number of records in the table
func (t FineTable) Len() int {
	return len(t.Records)
}

// SecondaryRecord is one row of the secondary table (e.g. 1km LST) keyed by
// parent pixel id. Carried holds the remaining columns of the source row,
// aligned with SecondaryTable.CarriedColumns, so they survive to the export
// untouched.
type SecondaryRecord struct {
	ParentID    int64    `json:"parent_id" csv:"parent_id"`
	Measurement float64  `json:"measurement" csv:"measurement"`
	Carried     []string `json:"carried,omitempty"`
}

// SecondaryTable is the secondary input table.
type SecondaryTable struct {
	// CarriedColumns names the pass-through columns in source order
	CarriedColumns []string          `json:"carried_columns,omitempty"`
	Records        []SecondaryRecord `json:"records"`
}

// Len returns the number of records in the table
func (t SecondaryTable) Len() int {
	return len(t.Records)
}

// CarriedIndex returns the position of a carried column, or -1.
func (t SecondaryTable) CarriedIndex(column string) int {
	return carriedIndex(t.CarriedColumns, column)
}

func carriedIndex(columns []string, column string) int {
	for i, name := range columns {
		if name == column {
			return i
		}
	}
	return -1
}

// VariationRecord holds the coefficient of variation of one non-empty parent
// pixel group.
type VariationRecord struct {
	ParentID int64   `json:"parent_id" csv:"parent_id"`
	CV       float64 `json:"coefficient_of_variation" csv:"coefficient_of_variation"`
}

// ReconciledRecord is a secondary row extended with the coefficient of
// variation of its parent pixel group.
type ReconciledRecord struct {
	SecondaryRecord
	CV float64 `json:"coefficient_of_variation" csv:"coefficient_of_variation"`
}

// ReconciledTable is the secondary table restricted to the ids that have a
// variation record, sorted ascending by parent id.
type ReconciledTable struct {
	CarriedColumns []string           `json:"carried_columns,omitempty"`
	Records        []ReconciledRecord `json:"records"`
}

// Len returns the number of records in the table
func (t ReconciledTable) Len() int {
	return len(t.Records)
}

// CarriedIndex returns the position of a carried column, or -1.
func (t ReconciledTable) CarriedIndex(column string) int {
	return carriedIndex(t.CarriedColumns, column)
}

// ParentIDs returns the parent ids of the table in row order.
func (t ReconciledTable) ParentIDs() []int64 {
	ids := make([]int64, len(t.Records))
	for i, r := range t.Records {
		ids[i] = r.ParentID
	}
	return ids
}
