// Package score implements the additive risk-pattern engine and the
// contract-level composite scorer.
package score

import (
	"math"
	"strings"

	"github.com/ppiankov/clauserisk/internal/model"
	"github.com/ppiankov/clauserisk/internal/rules"
)

// MaxScore is the ceiling for a clause score
const MaxScore = 100

// Scorer calculates clause risk and composite contract risk
type Scorer struct {
	patterns         []model.RiskPattern
	thresholds       rules.Thresholds
	highImpactWeight int
}

// NewScorer creates a scorer from a rule set
func NewScorer(r *rules.Rules) *Scorer {
	patterns := make([]model.RiskPattern, len(r.RiskPatterns))
	copy(patterns, r.RiskPatterns)

	return &Scorer{
		patterns:         patterns,
		thresholds:       r.Thresholds,
		highImpactWeight: r.HighImpactWeight,
	}
}

// ScoreClause sums the weights of every pattern with at least one keyword in
// the text. Each pattern counts once however many of its keywords match.
func (s *Scorer) ScoreClause(text string) model.ClauseRisk {
	lower := strings.ToLower(text)

	total := 0
	flags := []model.RiskFlag{}

	for _, p := range s.patterns {
		if !containsAny(lower, p.Keywords) {
			continue
		}

		total += p.Weight
		if p.Weight >= s.highImpactWeight {
			flags = append(flags, model.RiskFlag{
				Type:        p.Name,
				Description: p.Description,
			})
		}
	}

	if total > MaxScore {
		total = MaxScore
	}
	if total < 0 {
		total = 0
	}

	return model.ClauseRisk{
		Score: total,
		Level: s.Level(float64(total)),
		Flags: flags,
	}
}

// ScoreContract aggregates scored clauses. The composite is the mean clause
// score rounded to two decimals; no clauses means score 0 and level low.
func (s *Scorer) ScoreContract(clauses []model.Clause) model.RiskSummary {
	summary := model.RiskSummary{
		RiskLevel:   model.RiskLow,
		Flags:       []model.RiskFlag{},
		ClauseCount: len(clauses),
	}

	if len(clauses) == 0 {
		return summary
	}

	sum := 0
	for _, c := range clauses {
		sum += c.RiskScore
		summary.Flags = append(summary.Flags, c.Flags...)
		if s.Level(float64(c.RiskScore)) == model.RiskHigh {
			summary.HighRiskClauses++
		}
	}

	mean := float64(sum) / float64(len(clauses))
	summary.CompositeScore = math.Round(mean*100) / 100
	summary.RiskLevel = s.Level(summary.CompositeScore)

	return summary
}

// Level maps a score to a risk level using the configured thresholds
func (s *Scorer) Level(score float64) model.RiskLevel {
	return s.thresholds.Level(score)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
