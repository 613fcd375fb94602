package domain

import (
	"fmt"
)

// Band is a named value range over a measurement column. A zero From means
// no lower bound and a zero To means no upper bound; otherwise the band is
// the half-open range [From, To).
type Band struct {
	Name string  `json:"name" yaml:"name" validate:"required"`
	From float64 `json:"from" yaml:"from"`
	To   float64 `json:"to" yaml:"to"`
}

// Contains reports whether x falls inside the band
func (b Band) Contains(x float64) bool {
	return (b.From == 0 || x >= b.From) && (b.To == 0 || x < b.To)
}

// Bounded reports whether both ends of the band are set
func (b Band) Bounded() bool {
	return b.From != 0 && b.To != 0
}

// String renders the band as a range, e.g. "low [-inf, 50)"
func (b Band) String() string {
	from, to := "-inf", "+inf"
	if b.From != 0 {
		from = fmt.Sprintf("%g", b.From)
	}
	if b.To != 0 {
		to = fmt.Sprintf("%g", b.To)
	}
	return fmt.Sprintf("%s [%s, %s)", b.Name, from, to)
}

// BandConfig is the threshold-band configuration of one run. The JSON field
// names follow the legacy configuration.json layout.
type BandConfig struct {
	// Percentage is the fraction of each band to retain, in (0, 1]
	Percentage float64 `json:"percentage" yaml:"percentage" validate:"gt=0,lte=1"`

	// Bands are the ordered band definitions
	Bands []Band `json:"data_groups_explanation" yaml:"data_groups_explanation" validate:"required,min=1,unique=Name,dive"`
}
