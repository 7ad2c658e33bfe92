package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ppiankov/clauserisk/internal/rules"
	"github.com/ppiankov/clauserisk/internal/util"
	"github.com/spf13/cobra"
)

var rulesRaw bool

// rulesCmd represents the rules command
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate the scoring rules",
	Long: `Rules are a versioned YAML document holding the role keywords, the
contract-type keywords, the risk thresholds and the weighted risk patterns.
The embedded default is used unless --rules or rules.path points elsewhere.`,
}

var rulesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active rule set",
	Long: `Show prints the active rules version, thresholds and risk patterns.
With --raw it prints the YAML document itself, which is a good starting
point for a custom rules file.

Example:
  clauserisk rules show
  clauserisk rules show --raw > my-rules.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path := util.ExpandHome(cfg.Rules.Path)
		out := cmd.OutOrStdout()

		if rulesRaw {
			data := rules.Embedded()
			if path != "" {
				data, err = os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read rules: %w", err)
				}
			}
			_, err = out.Write(data)
			return err
		}

		r, err := rules.Load(path)
		if err != nil {
			return err
		}

		origin := "embedded"
		if path != "" {
			origin = path
		}
		fmt.Fprintf(out, "Rules version:  %s (%s)\n", r.Version, origin)
		fmt.Fprintf(out, "Thresholds:     high >= %d, medium >= %d\n", r.Thresholds.High, r.Thresholds.Medium)
		fmt.Fprintf(out, "Flag weight:    >= %d\n\n", r.HighImpactWeight)

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PATTERN\tWEIGHT\tKEYWORDS")
		for _, p := range r.RiskPatterns {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", p.Name, p.Weight, strings.Join(p.Keywords, ", "))
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Fprintln(out)
		for _, role := range r.Roles {
			fmt.Fprintf(out, "Role %-12s %d keywords (%s)\n", role.Role, len(role.Keywords), strings.Join(role.Languages, ", "))
		}
		for _, ct := range r.ContractTypes {
			fmt.Fprintf(out, "Type %-12s %d keywords\n", ct.Type, len(ct.Keywords))
		}
		return nil
	},
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a rules file against the schema",
	Long: `Validate checks a rules file against the embedded JSON Schema and the
semantic checks applied at load time (threshold order, duplicate names).
Without an argument the active rules are validated.

Example:
  clauserisk rules validate my-rules.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path = util.ExpandHome(cfg.Rules.Path)
		}

		r, err := rules.Load(path)
		if err != nil {
			return err
		}

		name := path
		if name == "" {
			name = "embedded rules"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: version %s, %d roles, %d contract types, %d risk patterns\n",
			name, r.Version, len(r.Roles), len(r.ContractTypes), len(r.RiskPatterns))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesShowCmd)
	rulesCmd.AddCommand(rulesValidateCmd)

	rulesShowCmd.Flags().BoolVar(&rulesRaw, "raw", false, "print the YAML rules document")
}
