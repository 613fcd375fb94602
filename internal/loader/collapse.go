package loader

import (
	"pixelqc/internal/dataprocessing"
	"pixelqc/pkg/contracts/domain"
)

// CollapseByParent keeps the first secondary row of every parent id, in
// input order, and reports how many rows were dropped. Exports that hold one
// row per fine pixel repeat the parent id; collapsing them gives the
// reconciler the unique ids it requires.
func CollapseByParent(table domain.SecondaryTable) (domain.SecondaryTable, int) {
	seen := dataprocessing.NewIDSet()
	records := make([]domain.SecondaryRecord, 0, len(table.Records))

	for _, rec := range table.Records {
		if seen.Contains(rec.ParentID) {
			continue
		}
		seen.Add(rec.ParentID)
		records = append(records, rec)
	}

	collapsed := domain.SecondaryTable{
		CarriedColumns: append([]string(nil), table.CarriedColumns...),
		Records:        records,
	}
	return collapsed, len(table.Records) - len(records)
}
