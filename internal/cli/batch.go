package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/clauserisk/internal/llm"
	"github.com/ppiankov/clauserisk/internal/worker"
	"github.com/spf13/cobra"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Analyze many contracts listed in a file in parallel",
	Long: `Batch analyzes every contract listed in an input file:
- Read file paths or URLs from the input file (one per line, # comments allowed)
- Analyze documents in parallel with a configurable worker count
- URL fetches and LLM calls share one per-host rate limiter
- Write a JSON and a Markdown report per document

Example:
  clauserisk batch contracts.txt
  clauserisk batch contracts.txt --concurrency 8 --output-dir ./reports
  clauserisk batch contracts.txt --timeout 30m --no-cache`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: concurrency.workers)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./clauserisk-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().Bool("no-cache", false, "disable the result cache")
	batchCmd.Flags().Bool("no-templates", false, "skip standard-clause comparison")
	batchCmd.Flags().Bool("no-robots", false, "ignore robots.txt when fetching URLs")
	batchCmd.Flags().Bool("no-footer", false, "omit the footer in Markdown reports")
	batchCmd.Flags().String("audit", "", "audit sink: none, jsonl, sqlite")
	addLLMFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCommonFlags(cmd, cfg)
	if noFooter, _ := cmd.Flags().GetBool("no-footer"); noFooter {
		cfg.Output.IncludeFooter = false
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency.Workers = concurrency
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  clauserisk Batch Analysis\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	if cfg.LLM.Provider != "" {
		fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p, closeSink, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers)

	fmt.Fprintf(os.Stderr, "⚙️  Analyzing contracts with %d workers...\n\n", cfg.Concurrency.Workers)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	renderer := p.Renderer()
	for _, result := range results {
		if result.Error != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Ref, result.Error)
			continue
		}

		base := filepath.Join(outputDir, reportName(result.Index, result.Ref))
		if err := renderer.RenderJSON(result.Report, base+".json"); err != nil {
			result.Error = fmt.Errorf("write JSON: %w", err)
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Ref, result.Error)
			continue
		}
		if err := renderer.RenderMarkdown(result.Report, base+".md"); err != nil {
			result.Error = fmt.Errorf("write Markdown: %w", err)
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Ref, result.Error)
			continue
		}

		fmt.Fprintf(os.Stderr, "✓ %s (%s, risk: %s/100 %s, %v)\n",
			result.Ref,
			result.Report.ContractType,
			llm.FormatScore(result.Report.CompositeScore),
			result.Report.RiskLevel,
			result.Duration.Round(time.Millisecond))
	}

	summary := worker.Summarize(results)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:      %d contracts\n", summary.Total)
	fmt.Fprintf(os.Stderr, "  Success:    %d\n", summary.Succeeded)
	fmt.Fprintf(os.Stderr, "  Failures:   %d\n", summary.Failed)
	fmt.Fprintf(os.Stderr, "  High risk:  %d\n", summary.HighRisk)
	fmt.Fprintf(os.Stderr, "  Output:     %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// reportName builds a unique, filesystem-safe report name for a batch entry
func reportName(index int, ref string) string {
	return fmt.Sprintf("%03d-%s", index+1, sanitizeFilename(ref))
}

// sanitizeFilename turns a path or URL into a single safe file name
func sanitizeFilename(s string) string {
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimSuffix(s, "/")
	if ext := filepath.Ext(s); ext != "" && !strings.ContainsAny(ext, "/?=&") {
		s = strings.TrimSuffix(s, ext)
	}

	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		"&", "_",
		"=", "_",
		" ", "-",
	)
	s = strings.Trim(replacer.Replace(s), "._-")

	if s == "" {
		return "contract"
	}

	// Limit length without splitting a rune
	for len(s) > 100 {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}

	return s
}
