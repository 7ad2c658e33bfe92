package model

import "time"

// ContractType is the domain label assigned to a whole document
type ContractType string

const (
	ContractEmployment  ContractType = "employment"
	ContractVendor      ContractType = "vendor"
	ContractLease       ContractType = "lease"
	ContractPartnership ContractType = "partnership"
	ContractService     ContractType = "service"
	ContractGeneral     ContractType = "general"
)

// RiskSummary is the contract-level aggregate of clause scores
type RiskSummary struct {
	CompositeScore  float64    `json:"composite_score"`   // Mean of clause scores (0 when empty)
	RiskLevel       RiskLevel  `json:"risk_level"`        // Same thresholds as clauses
	Flags           []RiskFlag `json:"flags"`             // All high-impact flags in clause order
	ClauseCount     int        `json:"clause_count"`      // len(clauses)
	HighRiskClauses int        `json:"high_risk_clauses"` // Clauses with level high
}

// ContractAnalysis is the aggregate result computed once per document
type ContractAnalysis struct {
	ContractType   ContractType             `json:"contract_type"`
	TypeConfidence map[ContractType]float64 `json:"type_confidence,omitempty"`
	Clauses        []Clause                 `json:"clauses"`
	RiskSummary
}

// Report is the complete analysis output for a single document
type Report struct {
	ContractID   string    `json:"contract_id"`
	Source       string    `json:"source,omitempty"` // File path or URL the text came from
	AnalyzedAt   time.Time `json:"analyzed_at"`
	RulesVersion string    `json:"rules_version"`

	ContractAnalysis

	// Explanation is generated after scoring and never affects it
	Explanation *Explanation `json:"explanation,omitempty"`
}

// Explanation is the plain-language summary of a contract
type Explanation struct {
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
	Provider        string   `json:"provider,omitempty"` // openai, groq, anthropic, ...
	Model           string   `json:"model,omitempty"`
	Fallback        bool     `json:"fallback"`           // True when the templated summary was used
	Warnings        []string `json:"warnings,omitempty"` // Why the generator was skipped or failed
}

// ClauseExplanation is the plain-language explanation of a single clause
type ClauseExplanation struct {
	PlainLanguage string   `json:"plain_language"`
	Concerns      []string `json:"concerns"`
	Alternatives  []string `json:"alternatives"`
	Fallback      bool     `json:"fallback"`
}

// ClauseReport is the output of single-clause analysis
type ClauseReport struct {
	ClauseID     string            `json:"clause_id"`
	ContractType ContractType      `json:"contract_type"`
	Clause       Clause            `json:"clause"`
	Explanation  ClauseExplanation `json:"explanation"`
	AnalyzedAt   time.Time         `json:"analyzed_at"`
}
