// Package severity provides the total order over configured severity
// levels used for routing admission decisions.
package severity

import (
	"errors"
	"fmt"
)

// ErrUnknownSeverity is returned when a level is not part of the
// configured severity list.
var ErrUnknownSeverity = errors.New("unknown severity")

// DefaultLevels is the severity order used when no configuration is
// available, lowest first.
var DefaultLevels = []string{"info", "warning", "critical"}

// Ranking compares severity names by their position in a configured,
// ordered level list. Index 0 is the lowest severity.
type Ranking struct {
	levels []string
}

// NewRanking builds a ranking over the given ordered levels. An empty
// list falls back to DefaultLevels.
func NewRanking(levels []string) *Ranking {
	if len(levels) == 0 {
		levels = DefaultLevels
	}
	return &Ranking{levels: levels}
}

// Levels returns the configured level list, lowest first.
func (r *Ranking) Levels() []string { return r.levels }

// Highest returns the top-ranked severity name.
func (r *Ranking) Highest() string { return r.levels[len(r.levels)-1] }

// Rank returns the index of level in the configured order.
func (r *Ranking) Rank(level string) (int, error) {
	for i, l := range r.levels {
		if l == level {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSeverity, level)
}

// AtLeastAsSevere reports whether a ranks at or above b.
// Either side being unknown yields an error, never a panic.
func (r *Ranking) AtLeastAsSevere(a, b string) (bool, error) {
	ra, err := r.Rank(a)
	if err != nil {
		return false, err
	}
	rb, err := r.Rank(b)
	if err != nil {
		return false, err
	}
	return ra >= rb, nil
}
