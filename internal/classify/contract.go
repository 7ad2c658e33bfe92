package classify

import (
	"strings"

	"github.com/ppiankov/clauserisk/internal/model"
	"github.com/ppiankov/clauserisk/internal/rules"
)

// TypeClassifier labels a whole document by keyword-frequency voting
type TypeClassifier struct {
	types []rules.TypeRule
}

// NewTypeClassifier creates a contract type classifier from a rule set
func NewTypeClassifier(r *rules.Rules) *TypeClassifier {
	types := make([]rules.TypeRule, len(r.ContractTypes))
	copy(types, r.ContractTypes)
	return &TypeClassifier{types: types}
}

// Counts returns the raw keyword occurrence total for every type.
// Occurrences are counted as non-overlapping substrings, so a keyword
// appearing twice counts twice.
func (c *TypeClassifier) Counts(text string) map[model.ContractType]int {
	lower := strings.ToLower(text)

	counts := make(map[model.ContractType]int, len(c.types))
	for _, t := range c.types {
		total := 0
		for _, keyword := range t.Keywords {
			total += strings.Count(lower, keyword)
		}
		counts[t.Type] = total
	}
	return counts
}

// Classify returns the type with the highest count, or general when nothing matched.
// Ties go to the type listed first in the rules.
func (c *TypeClassifier) Classify(text string) model.ContractType {
	counts := c.Counts(text)

	best := model.ContractGeneral
	bestCount := 0
	for _, t := range c.types {
		if counts[t.Type] > bestCount {
			best = t.Type
			bestCount = counts[t.Type]
		}
	}
	return best
}

// Confidence normalizes raw counts into a distribution that sums to 1.
// When nothing matched every type is 0; callers must not read that as uniform.
func (c *TypeClassifier) Confidence(text string) map[model.ContractType]float64 {
	counts := c.Counts(text)

	total := 0
	for _, n := range counts {
		total += n
	}

	confidence := make(map[model.ContractType]float64, len(counts))
	for t, n := range counts {
		if total == 0 {
			confidence[t] = 0
			continue
		}
		confidence[t] = float64(n) / float64(total)
	}
	return confidence
}
