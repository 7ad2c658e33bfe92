package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ppiankov/clauserisk/internal/model"
	"github.com/ppiankov/clauserisk/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	jsonOut      string
	mdOut        string
	outputFormat string
	timeout      time.Duration
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|url>",
	Short: "Segment a contract and score every clause",
	Long: `Analyze loads a contract and produces a risk report:
- Load a .txt, .md or .html file, or fetch an http(s) URL
- Label the contract type by keyword votes
- Split the text into clauses at numbered or Article headings
- Tag each clause's role and score it against the risk-pattern table
- Aggregate a composite score and flag high-impact findings

Example:
  clauserisk analyze lease.txt
  clauserisk analyze lease.txt --json report.json --md report.md
  clauserisk analyze https://example.com/terms --format json
  clauserisk analyze nda.md --llm-provider openai --llm-model gpt-4o-mini`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&jsonOut, "json", "", "write JSON report to file")
	analyzeCmd.Flags().StringVar(&mdOut, "md", "", "write Markdown report to file")
	analyzeCmd.Flags().StringVar(&outputFormat, "format", "summary", "stdout format: summary, json, markdown")
	analyzeCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "timeout for the whole analysis")
	analyzeCmd.Flags().Bool("no-cache", false, "disable the result cache")
	analyzeCmd.Flags().Bool("no-templates", false, "skip standard-clause comparison")
	analyzeCmd.Flags().Bool("no-robots", false, "ignore robots.txt when fetching URLs")
	analyzeCmd.Flags().Bool("no-footer", false, "omit the footer in Markdown reports")
	analyzeCmd.Flags().String("audit", "", "audit sink: none, jsonl, sqlite")
	addLLMFlags(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ref := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCommonFlags(cmd, cfg)
	if noFooter, _ := cmd.Flags().GetBool("no-footer"); noFooter {
		cfg.Output.IncludeFooter = false
	}

	p, closeSink, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Analyzing %s...\n", ref)
	}

	report, err := p.Analyze(ctx, ref)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	return writeReport(cmd.OutOrStdout(), p, report, cfg)
}

// timeoutOrDefault returns the --timeout value shared by single-document commands
func timeoutOrDefault() time.Duration {
	if timeout <= 0 {
		return 2 * time.Minute
	}
	return timeout
}

// writeReport writes the requested report files and prints report to out
func writeReport(out io.Writer, p *pipeline.Pipeline, report *model.Report, cfg *model.Config) error {
	renderer := p.Renderer()
	renderer.SetOutput(out)

	switch outputFormat {
	case "json":
		if err := writeFiles(renderer, report); err != nil {
			return err
		}
		return pipeline.WriteJSON(out, report)
	case "markdown", "md":
		if err := writeFiles(renderer, report); err != nil {
			return err
		}
		_, err := io.WriteString(out, renderer.Markdown(report))
		return err
	case "summary", "":
		return p.RenderReport(report, jsonOut, mdOut, cfg.Output.Verbose)
	default:
		return fmt.Errorf("unknown format: %s (supported: summary, json, markdown)", outputFormat)
	}
}

func writeFiles(renderer *pipeline.Renderer, report *model.Report) error {
	if jsonOut != "" {
		if err := renderer.RenderJSON(report, jsonOut); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
	}
	if mdOut != "" {
		if err := renderer.RenderMarkdown(report, mdOut); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
	}
	return nil
}
