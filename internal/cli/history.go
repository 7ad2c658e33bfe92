package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/clauserisk/internal/audit"
	"github.com/ppiankov/clauserisk/internal/pipeline"
	"github.com/spf13/cobra"
)

var historyAsJSON bool

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history <contract-id>",
	Short: "Show the audit trail of a contract",
	Long: `History prints every recorded stage event for a contract ID, oldest
first. It needs an audit sink that keeps events (jsonl or sqlite).

Example:
  clauserisk history 3f0c9a4e-6d0b-4a61-9d0e-3c1f9b0e7a55 --audit sqlite`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().BoolVar(&historyAsJSON, "json", false, "print events as JSON")
	historyCmd.Flags().String("audit", "", "audit sink: jsonl, sqlite")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCommonFlags(cmd, cfg)

	sink, err := audit.Open(cfg.Audit)
	if err != nil {
		return fmt.Errorf("open audit sink: %w", err)
	}
	defer func() { _ = sink.Close() }()

	reader, ok := sink.(audit.HistoryReader)
	if !ok {
		return fmt.Errorf("audit sink %q does not keep history (use jsonl or sqlite)", cfg.Audit.Sink)
	}

	events, err := reader.History(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}

	out := cmd.OutOrStdout()
	if historyAsJSON {
		return pipeline.WriteJSON(out, events)
	}

	if len(events) == 0 {
		fmt.Fprintf(out, "No events recorded for %s\n", args[0])
		return nil
	}

	for _, e := range events {
		fmt.Fprintf(out, "%s  %-15s %s\n", e.Timestamp.Format(time.RFC3339), e.Action, formatMetadata(e.Metadata))
	}
	return nil
}

// formatMetadata renders metadata as sorted key=value pairs
func formatMetadata(md map[string]any) string {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, md[k]))
	}
	return strings.Join(parts, " ")
}
