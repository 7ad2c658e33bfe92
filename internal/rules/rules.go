// Package rules loads the versioned keyword and risk-pattern tables that drive
// clause classification and scoring.
//
// The tables are data, not code: a YAML document validated against an embedded
// JSON Schema, parsed once and then only read. Adding a language means adding
// a key under a role's keywords; the matching order is fixed by list position.
package rules

import (
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/ppiankov/clauserisk/internal/model"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var embeddedRules []byte

//go:embed rules.schema.json
var schemaJSON string

// ErrInvalidRules is returned when a rules document fails validation
var ErrInvalidRules = errors.New("invalid rules")

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error

	defaultOnce  sync.Once
	defaultRules *Rules
)

// Rules is a parsed, validated rule set. Treat it as read-only once loaded.
type Rules struct {
	Version          string
	Thresholds       Thresholds
	HighImpactWeight int
	Roles            []RoleRule          // Checked in order, first hit wins
	ContractTypes    []TypeRule          // Ties resolved in order
	RiskPatterns     []model.RiskPattern // Additive

	// Digest is the BLAKE2b-256 of the source document, empty for rules
	// built in code
	Digest string
}

// Fingerprint identifies the rule content for result caching. Two documents
// sharing a version string but differing in any table get different values.
func (r *Rules) Fingerprint() string {
	if r.Digest == "" {
		return "version:" + r.Version
	}
	return "blake2b:" + r.Digest
}

// RoleRule is one tier of the role classifier
type RoleRule struct {
	Role      model.ClauseType
	Keywords  []string // Lowercased, languages concatenated in sorted language order
	Languages []string
}

// TypeRule lists the keywords voting for a contract type
type TypeRule struct {
	Type     model.ContractType
	Keywords []string
}

// Thresholds are the score cut-offs shared by clause and contract levels
type Thresholds struct {
	High   int `yaml:"high" json:"high"`
	Medium int `yaml:"medium" json:"medium"`
}

// Level maps a score to a risk level
func (t Thresholds) Level(score float64) model.RiskLevel {
	switch {
	case score >= float64(t.High):
		return model.RiskHigh
	case score >= float64(t.Medium):
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

type ruleFile struct {
	Version          string     `yaml:"version"`
	Thresholds       Thresholds `yaml:"thresholds"`
	HighImpactWeight int        `yaml:"high_impact_weight"`
	Roles            []struct {
		Role     string              `yaml:"role"`
		Keywords map[string][]string `yaml:"keywords"`
	} `yaml:"roles"`
	ContractTypes []struct {
		Type     string   `yaml:"type"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"contract_types"`
	RiskPatterns []model.RiskPattern `yaml:"risk_patterns"`
}

// Embedded returns the raw default rules document
func Embedded() []byte {
	out := make([]byte, len(embeddedRules))
	copy(out, embeddedRules)
	return out
}

// Default returns the embedded rule set, parsed once per process
func Default() *Rules {
	defaultOnce.Do(func() {
		r, err := Parse(embeddedRules)
		if err != nil {
			panic(fmt.Sprintf("embedded rules: %v", err))
		}
		defaultRules = r
	})
	return defaultRules
}

// Load reads and parses a rules file. An empty path returns the embedded default.
func Load(path string) (*Rules, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}

	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Parse validates a YAML rules document against the schema and builds a Rules value
func Parse(data []byte) (*Rules, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	sum := blake2b.Sum256(data)
	r := &Rules{
		Digest:           hex.EncodeToString(sum[:]),
		Version:          f.Version,
		Thresholds:       f.Thresholds,
		HighImpactWeight: f.HighImpactWeight,
	}

	if r.Thresholds.Medium >= r.Thresholds.High {
		return nil, fmt.Errorf("%w: medium threshold %d must be below high threshold %d", ErrInvalidRules, r.Thresholds.Medium, r.Thresholds.High)
	}

	seenRoles := make(map[model.ClauseType]bool)
	for _, role := range f.Roles {
		rt := model.ClauseType(role.Role)
		if seenRoles[rt] {
			return nil, fmt.Errorf("%w: duplicate role tier %q", ErrInvalidRules, rt)
		}
		seenRoles[rt] = true

		languages := make([]string, 0, len(role.Keywords))
		for lang := range role.Keywords {
			languages = append(languages, lang)
		}
		sort.Strings(languages)

		var keywords []string
		for _, lang := range languages {
			keywords = append(keywords, lowerAll(role.Keywords[lang])...)
		}

		r.Roles = append(r.Roles, RoleRule{
			Role:      rt,
			Keywords:  keywords,
			Languages: languages,
		})
	}

	seenTypes := make(map[model.ContractType]bool)
	for _, ct := range f.ContractTypes {
		t := model.ContractType(ct.Type)
		if t == model.ContractGeneral {
			return nil, fmt.Errorf("%w: %q is the fallback type and cannot carry keywords", ErrInvalidRules, t)
		}
		if seenTypes[t] {
			return nil, fmt.Errorf("%w: duplicate contract type %q", ErrInvalidRules, t)
		}
		seenTypes[t] = true
		r.ContractTypes = append(r.ContractTypes, TypeRule{Type: t, Keywords: lowerAll(ct.Keywords)})
	}

	seenPatterns := make(map[string]bool)
	for _, p := range f.RiskPatterns {
		if seenPatterns[p.Name] {
			return nil, fmt.Errorf("%w: duplicate risk pattern %q", ErrInvalidRules, p.Name)
		}
		seenPatterns[p.Name] = true
		p.Keywords = lowerAll(p.Keywords)
		r.RiskPatterns = append(r.RiskPatterns, p)
	}

	return r, nil
}

// Pattern returns the named risk pattern
func (r *Rules) Pattern(name string) (model.RiskPattern, bool) {
	for _, p := range r.RiskPatterns {
		if p.Name == name {
			return p, true
		}
	}
	return model.RiskPattern{}, false
}

// IsHighImpact reports whether a pattern's weight is large enough to be flagged
func (r *Rules) IsHighImpact(p model.RiskPattern) bool {
	return p.Weight >= r.HighImpactWeight
}

func validateSchema(data []byte) error {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("rules.schema.json", schemaJSON)
	})
	if schemaErr != nil {
		return fmt.Errorf("compile rules schema: %w", schemaErr)
	}

	// Round-trip through JSON so the validator sees JSON-native types
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	return nil
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
