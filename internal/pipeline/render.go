package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/clauserisk/internal/llm"
	"github.com/ppiankov/clauserisk/internal/model"
)

const footer = "_Generated by clauserisk. This report flags contract language for review and is not legal advice._"

// Renderer writes reports as JSON, Markdown and a terminal summary
type Renderer struct {
	includeFooter bool
	out           io.Writer
}

// NewRenderer creates a renderer that prints summaries to stdout
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter, out: os.Stdout}
}

// SetOutput redirects terminal summaries
func (r *Renderer) SetOutput(w io.Writer) {
	r.out = w
}

// WriteJSON encodes any value as indented JSON
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// RenderJSON writes the report to path, creating parent directories
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteJSON(w, report)
	})
}

// RenderMarkdown writes the Markdown report to path
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, r.Markdown(report))
		return err
	})
}

// Markdown renders a report as a Markdown document
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder

	title := "Contract Risk Report"
	if report.Source != "" {
		title += ": " + filepath.Base(report.Source)
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	fmt.Fprintf(&b, "| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Contract ID | `%s` |\n", report.ContractID)
	if report.Source != "" {
		fmt.Fprintf(&b, "| Source | %s |\n", report.Source)
	}
	fmt.Fprintf(&b, "| Contract type | %s |\n", report.ContractType)
	fmt.Fprintf(&b, "| Risk score | %s/100 |\n", llm.FormatScore(report.CompositeScore))
	fmt.Fprintf(&b, "| Risk level | **%s** |\n", strings.ToUpper(string(report.RiskLevel)))
	fmt.Fprintf(&b, "| Clauses | %d (%d high risk) |\n", report.ClauseCount, report.HighRiskClauses)
	fmt.Fprintf(&b, "| Rules version | %s |\n", report.RulesVersion)
	fmt.Fprintf(&b, "| Analyzed at | %s |\n\n", report.AnalyzedAt.Format("2006-01-02 15:04:05 MST"))

	if report.Explanation != nil {
		b.WriteString("## Summary\n\n")
		b.WriteString(strings.TrimSpace(report.Explanation.Summary))
		b.WriteString("\n\n")
		if report.Explanation.Fallback {
			b.WriteString("_Templated summary; no language model was used._\n\n")
		}

		if len(report.Explanation.Recommendations) > 0 {
			b.WriteString("## Recommendations\n\n")
			for _, rec := range report.Explanation.Recommendations {
				fmt.Fprintf(&b, "- %s\n", rec)
			}
			b.WriteString("\n")
		}
	}

	if len(report.Flags) > 0 {
		b.WriteString("## Flags\n\n")
		for _, f := range report.Flags {
			fmt.Fprintf(&b, "- **%s**: %s\n", f.Type, f.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Clauses\n\n")
	if len(report.Clauses) == 0 {
		b.WriteString("No clauses could be extracted.\n\n")
	}
	for _, c := range report.Clauses {
		fmt.Fprintf(&b, "### %d. %s\n\n", c.ID, c.Header)
		fmt.Fprintf(&b, "- Type: %s\n", c.Type)
		fmt.Fprintf(&b, "- Risk: %d/100 (%s)\n", c.RiskScore, c.RiskLevel)
		if len(c.Flags) > 0 {
			names := make([]string, len(c.Flags))
			for i, f := range c.Flags {
				names[i] = f.Type
			}
			fmt.Fprintf(&b, "- Flags: %s\n", strings.Join(names, ", "))
		}
		if c.DeviationFlag != nil && *c.DeviationFlag {
			fmt.Fprintf(&b, "- Deviates from standard (similarity %.2f)\n", *c.SimilarityScore)
		}
		b.WriteString("\n")
		for _, line := range strings.Split(c.Text, "\n") {
			fmt.Fprintf(&b, "> %s\n", line)
		}
		b.WriteString("\n")
		if c.SuggestedStandard != "" {
			fmt.Fprintf(&b, "Suggested standard wording: %s\n\n", c.SuggestedStandard)
		}
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		b.WriteString(footer)
		b.WriteString("\n")
	}

	return b.String()
}

// RenderSummary prints a short human-readable summary
func (r *Renderer) RenderSummary(report *model.Report) {
	w := r.out

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  Contract Risk Summary\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	if report.Source != "" {
		fmt.Fprintf(w, "  Source:        %s\n", report.Source)
	}
	fmt.Fprintf(w, "  Contract ID:   %s\n", report.ContractID)
	fmt.Fprintf(w, "  Type:          %s\n", report.ContractType)
	fmt.Fprintf(w, "  Risk score:    %s/100 (%s)\n", llm.FormatScore(report.CompositeScore), report.RiskLevel)
	fmt.Fprintf(w, "  Clauses:       %d (%d high risk)\n", report.ClauseCount, report.HighRiskClauses)
	fmt.Fprintf(w, "\n")

	for _, c := range report.Clauses {
		if c.RiskLevel == model.RiskLow {
			continue
		}
		fmt.Fprintf(w, "  [%-6s] %3d  #%d %s\n", c.RiskLevel, c.RiskScore, c.ID, c.Header)
	}

	if report.Explanation != nil && len(report.Explanation.Recommendations) > 0 {
		fmt.Fprintf(w, "\n  Recommendations:\n")
		for _, rec := range report.Explanation.Recommendations {
			fmt.Fprintf(w, "    - %s\n", rec)
		}
	}
	fmt.Fprintf(w, "\n")
}

// RenderClause prints a single-clause report
func (r *Renderer) RenderClause(report *model.ClauseReport) {
	w := r.out
	c := report.Clause

	fmt.Fprintf(w, "\n  Clause %s\n", report.ClauseID)
	fmt.Fprintf(w, "  Type:   %s\n", c.Type)
	fmt.Fprintf(w, "  Risk:   %d/100 (%s)\n", c.RiskScore, c.RiskLevel)
	for _, f := range c.Flags {
		fmt.Fprintf(w, "  Flag:   %s: %s\n", f.Type, f.Description)
	}
	fmt.Fprintf(w, "\n  %s\n", report.Explanation.PlainLanguage)
	if len(report.Explanation.Concerns) > 0 {
		fmt.Fprintf(w, "\n  Concerns:\n")
		for _, s := range report.Explanation.Concerns {
			fmt.Fprintf(w, "    - %s\n", s)
		}
	}
	if len(report.Explanation.Alternatives) > 0 {
		fmt.Fprintf(w, "\n  Alternatives:\n")
		for _, s := range report.Explanation.Alternatives {
			fmt.Fprintf(w, "    - %s\n", s)
		}
	}
	fmt.Fprintf(w, "\n")
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
