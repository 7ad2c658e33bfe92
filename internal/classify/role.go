// Package classify assigns semantic roles to clauses and a domain label to
// whole contracts using the keyword tables from the rules package.
package classify

import (
	"strings"

	"github.com/ppiankov/clauserisk/internal/model"
	"github.com/ppiankov/clauserisk/internal/rules"
)

// RoleClassifier tags clauses as obligation, right, prohibition, condition,
// definition or general
type RoleClassifier struct {
	tiers []rules.RoleRule
}

// NewRoleClassifier creates a role classifier from a rule set
func NewRoleClassifier(r *rules.Rules) *RoleClassifier {
	tiers := make([]rules.RoleRule, len(r.Roles))
	copy(tiers, r.Roles)
	return &RoleClassifier{tiers: tiers}
}

// Classify returns the role of a clause
func (c *RoleClassifier) Classify(text string) model.ClauseType {
	role, _ := c.ClassifyWithHeuristic(text)
	return role
}

// ClassifyWithHeuristic returns the role and the keyword that decided it.
// Tiers are checked in order and the first tier with any hit wins, so
// "shall not" (prohibition) beats "shall" (obligation).
func (c *RoleClassifier) ClassifyWithHeuristic(text string) (model.ClauseType, string) {
	lower := strings.ToLower(text)

	for _, tier := range c.tiers {
		for _, keyword := range tier.Keywords {
			if strings.Contains(lower, keyword) {
				return tier.Role, "keyword:" + keyword
			}
		}
	}

	return model.ClauseGeneral, ""
}
