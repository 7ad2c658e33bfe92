package model

// Clause is a contiguous span of contract text treated as the unit of risk analysis
type Clause struct {
	ID        int        `json:"id"`                  // 1-based position in document order
	Header    string     `json:"header"`              // Section title, numeral, or truncated body
	Text      string     `json:"text"`                // Trimmed clause body
	FullText  string     `json:"full_text"`           // Header and body, for display/comparison
	WordCount int        `json:"word_count"`          // Whitespace-token count of Text
	Type      ClauseType `json:"type"`                // Semantic role
	Heuristic string     `json:"heuristic,omitempty"` // Which keyword decided the role (e.g., "keyword:shall")
	RiskScore int        `json:"risk_score"`          // 0-100
	RiskLevel RiskLevel  `json:"risk_level"`          // Derived from RiskScore
	Flags     []RiskFlag `json:"flags,omitempty"`     // High-impact patterns that fired on this clause

	// Enrichments attached by optional collaborators; omitted when absent
	Entities          *Entities `json:"entities,omitempty"`
	SimilarityScore   *float64  `json:"similarity_score,omitempty"`
	IsStandard        *bool     `json:"is_standard,omitempty"`
	DeviationFlag     *bool     `json:"deviation_flag,omitempty"`
	SuggestedStandard string    `json:"suggested_standard,omitempty"`
}

// ClauseType is the semantic role of a clause
type ClauseType string

const (
	ClauseObligation  ClauseType = "obligation"
	ClauseRight       ClauseType = "right"
	ClauseProhibition ClauseType = "prohibition"
	ClauseCondition   ClauseType = "condition"
	ClauseDefinition  ClauseType = "definition"
	ClauseGeneral     ClauseType = "general"
)

// Valid reports whether t is one of the known clause roles
func (t ClauseType) Valid() bool {
	switch t {
	case ClauseObligation, ClauseRight, ClauseProhibition, ClauseCondition, ClauseDefinition, ClauseGeneral:
		return true
	}
	return false
}

// RiskLevel buckets a 0-100 score
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskPattern is a named keyword-triggered rule
type RiskPattern struct {
	Name        string   `json:"name" yaml:"name"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
	Weight      int      `json:"weight" yaml:"weight"`
	Description string   `json:"description" yaml:"description"`
}

// RiskFlag is surfaced when a high-impact pattern fires
type RiskFlag struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ClauseRisk is the result of scoring a single clause
type ClauseRisk struct {
	Score int        `json:"score"`
	Level RiskLevel  `json:"level"`
	Flags []RiskFlag `json:"flags"`
}

// Entities groups extracted occurrences by category
type Entities struct {
	Parties      []Entity `json:"parties"`
	Dates        []Entity `json:"dates"`
	Amounts      []Entity `json:"amounts"`
	Jurisdiction []Entity `json:"jurisdiction"`
	Durations    []Entity `json:"durations"`
	Locations    []Entity `json:"locations"`
}

// Count returns the total number of extracted entities
func (e *Entities) Count() int {
	if e == nil {
		return 0
	}
	return len(e.Parties) + len(e.Dates) + len(e.Amounts) + len(e.Jurisdiction) + len(e.Durations) + len(e.Locations)
}

// Entity is a single occurrence within a clause
type Entity struct {
	Text    string `json:"text"`
	Type    string `json:"type,omitempty"`    // Sub-label (e.g., "currency", "governing_law")
	Context string `json:"context,omitempty"` // Full matched phrase
	Value   int    `json:"value,omitempty"`   // Numeric part of durations
	Unit    string `json:"unit,omitempty"`    // day, week, month, year
	Start   int    `json:"start"`
	End     int    `json:"end"`
}
