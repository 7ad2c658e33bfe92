// Package extract pulls structured entities (parties, dates, amounts,
// jurisdiction, durations) out of clause text.
package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/clauserisk/internal/model"
)

// EntityExtractor extracts entities from a span of contract text
type EntityExtractor interface {
	Extract(text string) *model.Entities
}

// PatternExtractor is a regex-based EntityExtractor. Locations require a
// named-entity model and are always returned empty.
type PatternExtractor struct {
	parties      *regexp.Regexp
	dates        []*regexp.Regexp
	amounts      []*regexp.Regexp
	jurisdiction []labeledPattern
	durations    *regexp.Regexp
}

type labeledPattern struct {
	label   string
	pattern *regexp.Regexp
}

const months = `(?:january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)`

// NewPatternExtractor creates an extractor with the default pattern set
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{
		// Name followed by a defined-term parenthetical: Acme Ltd (the "Vendor")
		parties: regexp.MustCompile(`([A-Z][A-Za-z0-9&.]*(?:[ \t]+(?:[A-Z][A-Za-z0-9&.]*|of|&))*)[ \t]*\([ \t]*(?:the[ \t]+)?["“']?([A-Z][A-Za-z ]*?)["”']?[ \t]*\)`),
		dates: []*regexp.Regexp{
			regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
			regexp.MustCompile(`\b\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}\b`),
			regexp.MustCompile(`(?i)\b\d{1,2}(?:st|nd|rd|th)?[ \t]+(?:of[ \t]+)?` + months + `\.?,?[ \t]+\d{4}\b`),
			regexp.MustCompile(`(?i)\b` + months + `\.?[ \t]+\d{1,2}(?:st|nd|rd|th)?,?[ \t]+\d{4}\b`),
		},
		amounts: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:\b(?:rs\.?|inr|usd|eur|gbp)[ \t]?|[$€£₹][ \t]?)\d[\d,]*(?:\.\d+)?(?:[ \t]?(?:lakhs?|crores?|million|billion|thousand)\b)?`),
			regexp.MustCompile(`(?i)\b\d[\d,]*(?:\.\d+)?[ \t]+(?:rupees|dollars|euros|pounds)\b`),
		},
		jurisdiction: []labeledPattern{
			{"governing_law", regexp.MustCompile(`(?i)governed by.*?laws of ([^,.\n]+)`)},
			{"jurisdiction", regexp.MustCompile(`(?i)jurisdiction of ([^,.\n]+)`)},
			{"courts", regexp.MustCompile(`(?i)courts? (?:of|in) ([^,.\n]+)`)},
			{"arbitration", regexp.MustCompile(`(?i)arbitration in ([^,.\n]+)`)},
		},
		durations: regexp.MustCompile(`(?i)\b(\d+)\s+(day|week|month|year)s?\b`),
	}
}

// Extract returns the entities found in text. Offsets are byte offsets into
// text. Each category is deduplicated case-insensitively, keeping the first hit.
func (e *PatternExtractor) Extract(text string) *model.Entities {
	return &model.Entities{
		Parties:      dedupe(e.extractParties(text)),
		Dates:        dedupe(findAll(text, e.dates, "date")),
		Amounts:      dedupe(findAll(text, e.amounts, "currency")),
		Jurisdiction: dedupe(e.extractJurisdiction(text)),
		Durations:    dedupe(e.extractDurations(text)),
		Locations:    []model.Entity{},
	}
}

func (e *PatternExtractor) extractParties(text string) []model.Entity {
	var out []model.Entity
	for _, m := range e.parties.FindAllStringSubmatchIndex(text, -1) {
		name := strings.TrimSpace(text[m[2]:m[3]])
		name = trimLeadingConnector(name)
		if name == "" {
			continue
		}
		out = append(out, model.Entity{
			Text:    name,
			Type:    strings.TrimSpace(text[m[4]:m[5]]), // Defined role, e.g. Employer
			Context: text[m[0]:m[1]],
			Start:   m[0],
			End:     m[1],
		})
	}
	return out
}

// trimLeadingConnector drops a capitalized "And" or "Of" picked up at a sentence start
func trimLeadingConnector(name string) string {
	for _, prefix := range []string{"and ", "of ", "& "} {
		for strings.HasPrefix(strings.ToLower(name), prefix) {
			name = strings.TrimSpace(name[len(prefix):])
		}
	}
	return name
}

func (e *PatternExtractor) extractJurisdiction(text string) []model.Entity {
	var out []model.Entity
	for _, lp := range e.jurisdiction {
		for _, m := range lp.pattern.FindAllStringSubmatchIndex(text, -1) {
			out = append(out, model.Entity{
				Text:    strings.TrimSpace(text[m[2]:m[3]]),
				Type:    lp.label,
				Context: text[m[0]:m[1]],
				Start:   m[0],
				End:     m[1],
			})
		}
	}
	return out
}

func (e *PatternExtractor) extractDurations(text string) []model.Entity {
	var out []model.Entity
	for _, m := range e.durations.FindAllStringSubmatchIndex(text, -1) {
		value, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		out = append(out, model.Entity{
			Text:  text[m[0]:m[1]],
			Value: value,
			Unit:  strings.ToLower(text[m[4]:m[5]]),
			Start: m[0],
			End:   m[1],
		})
	}
	return out
}

// findAll runs several patterns and returns their hits in document order.
// Overlapping hits from later patterns are skipped.
func findAll(text string, patterns []*regexp.Regexp, label string) []model.Entity {
	var out []model.Entity
	for _, p := range patterns {
		for _, m := range p.FindAllStringIndex(text, -1) {
			if overlaps(out, m[0], m[1]) {
				continue
			}
			out = append(out, model.Entity{
				Text:  strings.TrimRight(text[m[0]:m[1]], ", "),
				Type:  label,
				Start: m[0],
				End:   m[1],
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out
}

func overlaps(entities []model.Entity, start, end int) bool {
	for _, e := range entities {
		if start < e.End && e.Start < end {
			return true
		}
	}
	return false
}

func dedupe(entities []model.Entity) []model.Entity {
	seen := make(map[string]bool)
	unique := make([]model.Entity, 0, len(entities))

	for _, e := range entities {
		key := strings.ToLower(strings.TrimSpace(e.Text))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, e)
	}

	return unique
}
