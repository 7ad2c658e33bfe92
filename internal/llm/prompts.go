package llm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/clauserisk/internal/model"
)

const (
	contractSystemPrompt = "You are a legal advisor helping small businesses in India understand contracts. Use simple, clear language."
	clauseSystemPrompt   = "You are a legal advisor simplifying contract terms for small businesses in India."

	maxPromptFlags = 5
)

// BuildContractPrompt constructs the prompt for a whole-contract summary
func BuildContractPrompt(analysis model.ContractAnalysis) string {
	return fmt.Sprintf(`Summarize this %s contract for a small business owner in India.

Contract Overview:
- Total Clauses: %d
- Risk Score: %s/100 (%s)
- High-Risk Clauses: %d

High-Risk Areas:
%s

Provide:
1. Executive summary (2-3 sentences)
2. Top 3 concerns for the business
3. Top 3 recommendations

Use simple business language, avoid legal jargon.`,
		analysis.ContractType,
		analysis.ClauseCount,
		FormatScore(analysis.CompositeScore),
		analysis.RiskLevel,
		analysis.HighRiskClauses,
		formatRiskFlags(analysis.Flags))
}

// BuildClausePrompt constructs the prompt for a single clause explanation
func BuildClausePrompt(text string, level model.RiskLevel) string {
	if level == "" {
		level = model.RiskMedium
	}

	return fmt.Sprintf(`Explain this contract clause to a small business owner:

Clause: %s

Risk Level: %s

Provide:
1. What it means in simple terms
2. Why it matters for small businesses
3. Potential concerns
4. Alternative wording suggestion (if concerning)

Keep it concise and practical.`, text, level)
}

// FormatScore renders a composite score without trailing zeros
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

func formatRiskFlags(flags []model.RiskFlag) string {
	if len(flags) == 0 {
		return "No major risk flags detected"
	}

	lines := make([]string, 0, maxPromptFlags)
	for i, flag := range flags {
		if i >= maxPromptFlags {
			break
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", flag.Type, flag.Description))
	}
	return strings.Join(lines, "\n")
}

// extractRecommendations returns up to three non-empty lines following the
// first line that mentions recommendations
func extractRecommendations(text string) []string {
	var recommendations []string
	inSection := false

	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(strings.ToLower(line), "recommendation") {
			inSection = true
			continue
		}
		if inSection && strings.TrimSpace(line) != "" {
			recommendations = append(recommendations, cleanLine(line))
		}
	}

	if len(recommendations) == 0 {
		return []string{
			"Review high-risk clauses with legal counsel",
			"Negotiate unfavorable terms before signing",
			"Keep detailed records of all obligations",
		}
	}
	return limit(recommendations, 3)
}

// extractConcerns returns up to three lines mentioning a concern or risk
func extractConcerns(text string) []string {
	var concerns []string
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "concern") || strings.Contains(lower, "risk") {
			concerns = append(concerns, cleanLine(line))
		}
	}
	return limit(concerns, 3)
}

// extractAlternatives returns up to two non-empty lines following the first
// line that suggests alternatives
func extractAlternatives(text string) []string {
	var alternatives []string
	inSection := false

	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "alternative") || strings.Contains(lower, "suggest") {
			inSection = true
			continue
		}
		if inSection && strings.TrimSpace(line) != "" {
			alternatives = append(alternatives, cleanLine(line))
		}
	}
	return limit(alternatives, 2)
}

func cleanLine(line string) string {
	return strings.TrimSpace(strings.Trim(line, "- "))
}

func limit(items []string, n int) []string {
	if items == nil {
		return []string{}
	}
	if len(items) > n {
		return items[:n]
	}
	return items
}
