package dataprocessing

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"

	apperrors "pixelqc/internal/errors"
	"pixelqc/pkg/contracts/domain"
)

// Reconciliation is the output of Reconciler.Reconcile
type Reconciliation struct {
	// Table is the secondary table restricted to the requested ids that have
	// a secondary row, with the coefficient of variation attached
	Table domain.ReconciledTable

	// EmptyRows counts requested ids with no secondary row
	EmptyRows int

	// DropIDs lists those ids in request order
	DropIDs []int64
}

// Reconciler joins variation records onto the secondary table by parent id.
type Reconciler struct {
	logger *slog.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{logger: logger}
}

// Reconcile restricts both tables to their common parent ids, sorts them by
// parent id and attaches the coefficient of variation to each secondary row.
// Neither input is modified.
//
// A parent id duplicated on either side after the unmatched ids are dropped,
// or any difference in row count between the two reduced sides, is an
// AlignmentMismatch.
func (r *Reconciler) Reconcile(secondary domain.SecondaryTable, variations []domain.VariationRecord) (*Reconciliation, error) {
	stage := string(StageReconcile)

	index := make(map[int64][]int, secondary.Len())
	for i, rec := range secondary.Records {
		index[rec.ParentID] = append(index[rec.ParentID], i)
	}

	result := &Reconciliation{}
	dropped := NewIDSet()
	chosen := make([]domain.SecondaryRecord, 0, len(variations))
	for _, v := range variations {
		rows, ok := index[v.ParentID]
		if !ok {
			result.EmptyRows++
			result.DropIDs = append(result.DropIDs, v.ParentID)
			dropped.Add(v.ParentID)
			r.logger.Debug("dropping unmatched parent id",
				slog.Int64("parent_id", v.ParentID),
				slog.String("error", apperrors.NewUnmatchedIDError(stage, v.ParentID).Error()))
			continue
		}
		for _, i := range rows {
			rec := secondary.Records[i]
			rec.Carried = slices.Clone(rec.Carried)
			chosen = append(chosen, rec)
		}
	}

	kept := make([]domain.VariationRecord, 0, len(variations)-result.EmptyRows)
	for _, v := range variations {
		if !dropped.Contains(v.ParentID) {
			kept = append(kept, v)
		}
	}

	sort.SliceStable(chosen, func(i, j int) bool { return chosen[i].ParentID < chosen[j].ParentID })
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].ParentID < kept[j].ParentID })

	if id, ok := firstDuplicate(len(chosen), func(i int) int64 { return chosen[i].ParentID }); ok {
		return nil, apperrors.NewAlignmentMismatchError(stage,
			fmt.Sprintf("parent id %d appears more than once in the secondary table", id)).
			WithContext("parent_id", id)
	}
	if id, ok := firstDuplicate(len(kept), func(i int) int64 { return kept[i].ParentID }); ok {
		return nil, apperrors.NewAlignmentMismatchError(stage,
			fmt.Sprintf("parent id %d appears more than once in the variation table", id)).
			WithContext("parent_id", id)
	}
	if len(chosen) != len(kept) {
		return nil, apperrors.NewAlignmentMismatchError(stage,
			fmt.Sprintf("%d secondary rows for %d variation rows", len(chosen), len(kept)))
	}

	cvByID := make(map[int64]float64, len(kept))
	for _, v := range kept {
		cvByID[v.ParentID] = v.CV
	}

	records := make([]domain.ReconciledRecord, len(chosen))
	for i, rec := range chosen {
		cv, ok := cvByID[rec.ParentID]
		if !ok {
			return nil, apperrors.NewAlignmentMismatchError(stage,
				fmt.Sprintf("parent id %d has no variation record", rec.ParentID)).
				WithContext("parent_id", rec.ParentID)
		}
		records[i] = domain.ReconciledRecord{SecondaryRecord: rec, CV: cv}
	}

	result.Table = domain.ReconciledTable{
		CarriedColumns: slices.Clone(secondary.CarriedColumns),
		Records:        records,
	}

	r.logger.Info("reconciled tables",
		slog.Int("requested_ids", len(variations)),
		slog.Int("reconciled_rows", len(records)),
		slog.Int("empty_rows", result.EmptyRows),
		slog.Any("drop_ids", result.DropIDs))

	return result, nil
}

// firstDuplicate returns the first id repeated in a sorted sequence
func firstDuplicate(n int, id func(int) int64) (int64, bool) {
	for i := 1; i < n; i++ {
		if id(i) == id(i-1) {
			return id(i), true
		}
	}
	return 0, false
}
