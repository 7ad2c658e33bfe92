package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/clauserisk/internal/model"
	"github.com/ppiankov/clauserisk/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	clauseType   string
	clauseID     string
	clauseFile   string
	clauseAsJSON bool
)

// clauseCmd represents the clause command
var clauseCmd = &cobra.Command{
	Use:   "clause [text]",
	Short: "Score a single clause",
	Long: `Clause scores one clause of text against the risk-pattern table and
explains it in plain language. The text comes from the argument, --file,
or stdin when the argument is "-".

Example:
  clauserisk clause "The Company may terminate this agreement at any time without notice."
  clauserisk clause --file clause.txt --type employment --json
  pbpaste | clauserisk clause -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClause,
}

func init() {
	rootCmd.AddCommand(clauseCmd)

	clauseCmd.Flags().StringVar(&clauseType, "type", string(model.ContractGeneral), "contract type the clause belongs to")
	clauseCmd.Flags().StringVar(&clauseID, "id", "", "clause ID recorded in the audit trail (default: random UUID)")
	clauseCmd.Flags().StringVar(&clauseFile, "file", "", "read clause text from file")
	clauseCmd.Flags().BoolVar(&clauseAsJSON, "json", false, "print the clause report as JSON")
	clauseCmd.Flags().String("audit", "", "audit sink: none, jsonl, sqlite")
	addLLMFlags(clauseCmd)
}

func runClause(cmd *cobra.Command, args []string) error {
	text, err := clauseText(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCommonFlags(cmd, cfg)

	p, closeSink, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutOrDefault())
	defer cancel()

	report, err := p.AnalyzeClause(ctx, clauseID, text, model.ContractType(strings.ToLower(clauseType)))
	if err != nil {
		return err
	}

	if clauseAsJSON {
		return pipeline.WriteJSON(cmd.OutOrStdout(), report)
	}

	renderer := p.Renderer()
	renderer.SetOutput(cmd.OutOrStdout())
	renderer.RenderClause(report)
	return nil
}

// clauseText resolves the clause from --file, stdin ("-") or the argument
func clauseText(stdin io.Reader, args []string) (string, error) {
	switch {
	case clauseFile != "":
		data, err := os.ReadFile(clauseFile)
		if err != nil {
			return "", fmt.Errorf("read clause: %w", err)
		}
		return string(data), nil
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	case len(args) == 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("clause text required: pass it as an argument, with --file, or '-' for stdin")
	}
}
