package dataprocessing

import (
	"log/slog"

	apperrors "pixelqc/internal/errors"
	"pixelqc/pkg/contracts/domain"
)

// GroupingStrategy selects how fine records are partitioned by parent id
type GroupingStrategy int

const (
	// IndexedGrouping builds an id -> values index once; cost follows row count
	IndexedGrouping GroupingStrategy = iota

	// DenseRangeScan tests every integer in [min, max] for members. Cost follows
	// the id span, so it is only reasonable for densely packed ids.
	DenseRangeScan
)

// String returns the strategy name used in logs and config
func (s GroupingStrategy) String() string {
	switch s {
	case DenseRangeScan:
		return "dense_range"
	default:
		return "indexed"
	}
}

// ParseGroupingStrategy maps a config value to a strategy. Unknown values
// fall back to IndexedGrouping.
func ParseGroupingStrategy(name string) GroupingStrategy {
	if name == "dense_range" {
		return DenseRangeScan
	}
	return IndexedGrouping
}

// UndefinedGroup is a non-empty group whose coefficient of variation could not
// be computed. It is reported and kept out of every later stage.
type UndefinedGroup struct {
	ParentID int64  `json:"parent_id"`
	Members  int    `json:"members"`
	Reason   string `json:"reason"`
}

// Err describes the group as an UNDEFINED_VARIATION error
func (u UndefinedGroup) Err() error {
	return apperrors.NewUndefinedVariationError(u.ParentID, u.Reason).
		WithStage(string(StageAggregate)).
		WithContext("members", u.Members)
}

// AggregationResult is the output of GroupAggregator.Aggregate
type AggregationResult struct {
	// Groups is the number of non-empty parent pixel groups
	Groups int

	// Variations holds one record per group with a defined statistic,
	// ascending by parent id
	Variations []domain.VariationRecord

	// Undefined lists the groups excluded for an undefined statistic
	Undefined []UndefinedGroup
}

// UndefinedIDs returns the parent ids of the undefined groups
func (r *AggregationResult) UndefinedIDs() []int64 {
	ids := make([]int64, len(r.Undefined))
	for i, u := range r.Undefined {
		ids[i] = u.ParentID
	}
	return ids
}

// GroupAggregator partitions a fine-resolution table by parent id and computes
// the coefficient of variation of each non-empty group.
type GroupAggregator struct {
	strategy GroupingStrategy
	logger   *slog.Logger
}

// NewGroupAggregator creates an aggregator using IndexedGrouping
func NewGroupAggregator(logger *slog.Logger) *GroupAggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &GroupAggregator{
		strategy: IndexedGrouping,
		logger:   logger,
	}
}

// WithStrategy sets the grouping strategy
func (a *GroupAggregator) WithStrategy(strategy GroupingStrategy) *GroupAggregator {
	a.strategy = strategy
	return a
}

// Aggregate computes one VariationRecord per non-empty parent id group.
// The input table is never modified.
func (a *GroupAggregator) Aggregate(table domain.FineTable) (*AggregationResult, error) {
	if table.Len() == 0 {
		return nil, apperrors.NewMalformedInputError(string(StageAggregate), "parent_id", "fine table has no rows")
	}

	var groups []group
	switch a.strategy {
	case DenseRangeScan:
		groups = scanDenseRange(table)
	default:
		groups = indexGroups(table)
	}

	result := &AggregationResult{
		Groups:     len(groups),
		Variations: make([]domain.VariationRecord, 0, len(groups)),
	}

	for _, g := range groups {
		cv, reason, ok := CoefficientOfVariation(g.values)
		if !ok {
			undefined := UndefinedGroup{
				ParentID: g.id,
				Members:  len(g.values),
				Reason:   reason,
			}
			a.logger.Debug("coefficient of variation undefined",
				slog.Int64("parent_id", g.id),
				slog.Any("error", undefined.Err()))
			result.Undefined = append(result.Undefined, undefined)
			continue
		}
		result.Variations = append(result.Variations, domain.VariationRecord{
			ParentID: g.id,
			CV:       cv,
		})
	}

	a.logger.Info("aggregated fine table",
		slog.String("strategy", a.strategy.String()),
		slog.Int("rows", table.Len()),
		slog.Int("groups", result.Groups),
		slog.Int("variations", len(result.Variations)),
		slog.Int("undefined", len(result.Undefined)))

	return result, nil
}

// group is one non-empty partition of the fine table
type group struct {
	id     int64
	values []float64
}

func indexGroups(table domain.FineTable) []group {
	observed := NewIDSet()
	index := make(map[int64][]float64)
	for _, r := range table.Records {
		observed.Add(r.ParentID)
		index[r.ParentID] = append(index[r.ParentID], r.Value)
	}

	groups := make([]group, 0, observed.Len())
	for _, id := range observed.Slice() {
		groups = append(groups, group{id: id, values: index[id]})
	}
	return groups
}

func scanDenseRange(table domain.FineTable) []group {
	observed := NewIDSet()
	for _, r := range table.Records {
		observed.Add(r.ParentID)
	}
	lo, hi, ok := observed.Bounds()
	if !ok {
		return nil
	}

	var groups []group
	for id := lo; ; id++ {
		var values []float64
		for _, r := range table.Records {
			if r.ParentID == id {
				values = append(values, r.Value)
			}
		}
		if len(values) > 0 {
			groups = append(groups, group{id: id, values: values})
		}
		if id == hi {
			break
		}
	}
	return groups
}
