// Package segment splits raw contract text into ordered clause candidates.
//
// Two interchangeable strategies are provided. HeadingStrategy splits on
// line-isolated section headings ("1. Definitions", "2.1 Payment", "Article 4").
// ParagraphStrategy splits on blank lines. The Segmenter runs the heading
// strategy and falls back to paragraphs only when it yields fewer than two
// clauses; results are never merged.
package segment

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MinClauseLength is the rune count a trimmed body must exceed to be kept
	MinClauseLength = 20

	// HeaderPreviewLength is the rune length of headers derived from body text
	HeaderPreviewLength = 50

	// GeneralHeader labels text that appears before the first heading
	GeneralHeader = "General"
)

// Candidate is a clause before classification and scoring
type Candidate struct {
	Header   string
	Text     string
	FullText string
}

// Strategy turns normalized text into clause candidates
type Strategy interface {
	Name() string
	Split(text string) []Candidate
}

// Segmenter applies the heading strategy with a paragraph fallback
type Segmenter struct {
	primary  Strategy
	fallback Strategy
}

// NewSegmenter creates a segmenter with the default strategies
func NewSegmenter() *Segmenter {
	return &Segmenter{
		primary:  HeadingStrategy{},
		fallback: ParagraphStrategy{},
	}
}

// Segment splits text into candidates in document order.
// It also reports which strategy produced them.
func (s *Segmenter) Segment(text string) ([]Candidate, string) {
	text = Normalize(text)

	candidates := s.primary.Split(text)
	if len(candidates) >= 2 {
		return candidates, s.primary.Name()
	}

	return s.fallback.Split(text), s.fallback.Name()
}

// Normalize converts CRLF and bare CR line endings to LF
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// headingPattern matches a whole trimmed line: "1", "1.1", optional trailing
// period, then a short title; or "Article N"
var headingPattern = regexp.MustCompile(`(?i)^(?:\d+(?:\.\d+)*\.?[ \t]+[a-z][a-z0-9 \t(),\-]*|article[ \t]+\d+)$`)

// IsHeading reports whether a single line is a section heading
func IsHeading(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || utf8.RuneCountInString(line) >= 100 {
		return false
	}
	return headingPattern.MatchString(line)
}

// HeadingStrategy splits on numbered or "Article" headings alone on their line
type HeadingStrategy struct{}

// Name returns the strategy name
func (HeadingStrategy) Name() string {
	return "heading"
}

// Split splits text at heading lines. Text before the first heading belongs to
// GeneralHeader. Bodies that are too short are dropped with their heading.
func (HeadingStrategy) Split(text string) []Candidate {
	var candidates []Candidate

	header := GeneralHeader
	var body strings.Builder

	flush := func() {
		content := strings.TrimSpace(body.String())
		body.Reset()
		if !longEnough(content) {
			return
		}
		candidates = append(candidates, Candidate{
			Header:   header,
			Text:     content,
			FullText: header + "\n" + content,
		})
	}

	for _, line := range strings.Split(text, "\n") {
		if IsHeading(line) {
			flush()
			header = strings.TrimSpace(line)
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	return candidates
}

// paragraphBreak matches two or more line breaks, possibly with blanks between
var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// ParagraphStrategy splits on blank lines
type ParagraphStrategy struct{}

// Name returns the strategy name
func (ParagraphStrategy) Name() string {
	return "paragraph"
}

// Split returns one candidate per paragraph longer than MinClauseLength.
// Paragraphs carry no explicit heading, so the header is a preview of the text.
func (ParagraphStrategy) Split(text string) []Candidate {
	var candidates []Candidate

	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if !longEnough(para) {
			continue
		}
		candidates = append(candidates, Candidate{
			Header:   Preview(para, HeaderPreviewLength),
			Text:     para,
			FullText: para,
		})
	}

	return candidates
}

// Preview truncates s to n runes, appending "..." when truncated
func Preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

func longEnough(s string) bool {
	return utf8.RuneCountInString(s) > MinClauseLength
}
