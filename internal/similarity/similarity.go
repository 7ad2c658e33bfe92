// Package similarity compares clauses against standard template clauses for
// the detected contract type.
package similarity

import (
	"strings"

	"github.com/ppiankov/clauserisk/internal/model"
)

const (
	// StandardThreshold is the score a clause must exceed to count as standard
	StandardThreshold = 0.9

	// DeviationThreshold is the lower bound of the "similar but altered" band
	DeviationThreshold = 0.6
)

// Match is the best standard clause found for a piece of text
type Match struct {
	Score     float64
	BestMatch string
}

// IsStandard reports whether the clause is effectively a standard clause
func (m Match) IsStandard() bool {
	return m.Score > StandardThreshold
}

// IsDeviant reports whether the clause resembles a standard clause but differs from it
func (m Match) IsDeviant() bool {
	return m.Score >= DeviationThreshold && m.Score < StandardThreshold
}

// Apply writes the match onto a clause. The suggested standard text is only
// attached to deviant clauses.
func (m Match) Apply(c *model.Clause) {
	score := m.Score
	standard := m.IsStandard()
	deviant := m.IsDeviant()

	c.SimilarityScore = &score
	c.IsStandard = &standard
	c.DeviationFlag = &deviant
	if deviant {
		c.SuggestedStandard = m.BestMatch
	}
}

// Comparator finds the closest standard clause
type Comparator struct{}

// NewComparator creates a new comparator
func NewComparator() *Comparator {
	return &Comparator{}
}

// Compare scores text against every standard clause and returns the best.
// Ties keep the earlier standard clause.
func (c *Comparator) Compare(text string, standards []string) Match {
	var best Match
	if strings.TrimSpace(text) == "" {
		return best
	}

	for _, std := range standards {
		score := TextSimilarity(text, std)
		if score > best.Score {
			best = Match{Score: score, BestMatch: std}
		}
	}

	return best
}
