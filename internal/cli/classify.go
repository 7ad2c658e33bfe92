package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/ppiankov/clauserisk/internal/model"
	"github.com/ppiankov/clauserisk/internal/pipeline"
	"github.com/spf13/cobra"
)

var classifyAsJSON bool

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify <file|url>",
	Short: "Label a contract's type without scoring it",
	Long: `Classify loads a contract and reports its type (employment, vendor,
lease, partnership, service or general) with the share of keyword votes
each type received.

Example:
  clauserisk classify offer-letter.txt
  clauserisk classify https://example.com/msa.html --json`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().BoolVar(&classifyAsJSON, "json", false, "print the classification as JSON")
	classifyCmd.Flags().Bool("no-robots", false, "ignore robots.txt when fetching URLs")
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCommonFlags(cmd, cfg)
	// Classification never reads or writes cached reports
	cfg.Cache.Enabled = false

	p, err := pipeline.NewPipeline(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutOrDefault())
	defer cancel()

	result, err := p.Classify(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if classifyAsJSON {
		return pipeline.WriteJSON(out, result)
	}

	fmt.Fprintf(out, "%s\n", result.ContractType)

	types := make([]string, 0, len(result.Confidence))
	for ct := range result.Confidence {
		types = append(types, string(ct))
	}
	sort.Strings(types)
	for _, ct := range types {
		share := result.Confidence[model.ContractType(ct)]
		if share > 0 {
			fmt.Fprintf(out, "  %-12s %5.1f%%\n", ct, share*100)
		}
	}
	return nil
}
