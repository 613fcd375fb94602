package dataprocessing

import (
	"log/slog"
	"math"
	"slices"
	"sort"

	apperrors "pixelqc/internal/errors"
	"pixelqc/pkg/contracts/domain"
)

// ValidatePercentage rejects selection fractions outside (0, 1]
func ValidatePercentage(p float64) error {
	if math.IsNaN(p) || p <= 0 || p > 1 {
		return apperrors.NewInvalidPercentageError(p).WithStage(string(StageSelect))
	}
	return nil
}

// RetainCount is the number of rows kept from a band of n rows: floor(n*p)
func RetainCount(n int, p float64) int {
	return int(math.Floor(float64(n) * p))
}

// cvLess orders coefficients ascending with NaN after every number
func cvLess(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	return math.IsNaN(b) || a < b
}

// TopPercentileSelector keeps the lowest-variation fraction of every band.
type TopPercentileSelector struct {
	logger *slog.Logger
}

// NewTopPercentileSelector creates a new selector
func NewTopPercentileSelector(logger *slog.Logger) *TopPercentileSelector {
	if logger == nil {
		logger = slog.Default()
	}
	return &TopPercentileSelector{logger: logger}
}

// Select sorts each band ascending by coefficient of variation and retains
// the first floor(count*p) rows. Ties keep their incoming order. The banded
// table is not modified.
func (s *TopPercentileSelector) Select(banded *BandedTable, p float64) (domain.FilteredResult, error) {
	if err := ValidatePercentage(p); err != nil {
		return domain.FilteredResult{}, err
	}

	result := domain.FilteredResult{
		CarriedColumns: banded.CarriedColumns,
		Bands:          make([]domain.BandResult, len(banded.Bands)),
	}

	for i, subset := range banded.Bands {
		rows := slices.Clone(subset.Rows)
		sort.SliceStable(rows, func(a, b int) bool { return cvLess(rows[a].CV, rows[b].CV) })

		k := RetainCount(len(rows), p)
		result.Bands[i] = domain.BandResult{
			Band:       subset.Band,
			Population: len(rows),
			Rows:       rows[:k:k],
		}

		s.logger.Debug("band filtered",
			slog.String("band", subset.Band.Name),
			slog.Int("population", len(rows)),
			slog.Int("retained", k))
	}

	return result, nil
}
