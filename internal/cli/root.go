package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ppiankov/clauserisk/internal/audit"
	"github.com/ppiankov/clauserisk/internal/logging"
	"github.com/ppiankov/clauserisk/internal/model"
	"github.com/ppiankov/clauserisk/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "0.1.0"

var (
	cfgFile   string
	verbose   bool
	logFormat string
	rulesPath string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "clauserisk",
	Short: "clauserisk - contract clause segmentation and risk scoring",
	Long: `clauserisk splits contracts into clauses, tags each clause with its role
(obligation, right, prohibition, condition, definition), labels the contract
type, and scores every clause against a table of weighted risk patterns.

Scores are deterministic and driven by a versioned rules file. Optional
plain-language explanations from a language model never change a score.

clauserisk flags language worth a second look. It is not legal advice.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "clauserisk v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.clauserisk/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "rules file (default: embedded rules)")

	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("output.log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("rules.path", rootCmd.PersistentFlags().Lookup("rules"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads .env, the config file and CLAUSERISK_* environment variables
func initConfig() {
	// A missing .env is normal
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".clauserisk"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// CLAUSERISK_LLM_PROVIDER maps to llm.provider
	viper.SetEnvPrefix("CLAUSERISK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	registerDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// registerDefaults makes every config key known to viper so environment
// variables can override keys that no config file sets
func registerDefaults(v *viper.Viper) {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return
	}

	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, val := range node {
			key := prefix + k
			if child, ok := val.(map[string]any); ok {
				walk(key+".", child)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)

	// Keys that are never written to the config file
	v.SetDefault("llm.api_key", "")
	v.SetDefault("http.http_proxy", "")
	v.SetDefault("http.https_proxy", "")
	v.SetDefault("http.no_proxy", "")
	v.SetDefault("llm.base_url", "")
}

// loadConfig resolves defaults, config file, environment and persistent flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}

	applyProviderKeys(cfg)

	format, err := logging.ParseFormat(cfg.Output.LogFormat)
	if err != nil {
		return nil, err
	}
	logging.Setup(os.Stderr, cfg.Output.Verbose, format)

	return cfg, nil
}

// applyProviderKeys falls back to the provider's conventional environment variables
func applyProviderKeys(cfg *model.Config) {
	if cfg.LLM.APIKey == "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "groq":
			cfg.LLM.APIKey = os.Getenv("GROQ_API_KEY")
		case "anthropic", "claude":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if cfg.HTTP.HTTPProxy == "" {
		cfg.HTTP.HTTPProxy = os.Getenv("HTTP_PROXY")
	}
	if cfg.HTTP.HTTPSProxy == "" {
		cfg.HTTP.HTTPSProxy = os.Getenv("HTTPS_PROXY")
	}
	if cfg.HTTP.NoProxy == "" {
		cfg.HTTP.NoProxy = os.Getenv("NO_PROXY")
	}
}

// buildPipeline opens the audit sink and creates a pipeline. The returned
// close function releases the sink.
func buildPipeline(cfg *model.Config) (*pipeline.Pipeline, func(), error) {
	sink, err := audit.Open(cfg.Audit)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit sink: %w", err)
	}
	closeSink := func() {
		if err := sink.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close audit sink: %v\n", err)
		}
	}

	p, err := pipeline.NewPipeline(cfg, pipeline.WithAuditSink(sink))
	if err != nil {
		closeSink()
		return nil, nil, err
	}
	return p, closeSink, nil
}

// addLLMFlags registers the LLM flags shared by analyze, batch and clause
func addLLMFlags(cmd *cobra.Command) {
	cmd.Flags().String("llm-provider", "", "explanation provider: openai, groq, ollama, anthropic (empty disables)")
	cmd.Flags().String("llm-model", "", "explanation model name")
}

// applyCommonFlags copies explicitly set command flags onto cfg
func applyCommonFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()

	if flags.Lookup("llm-provider") != nil && flags.Changed("llm-provider") {
		cfg.LLM.Provider, _ = flags.GetString("llm-provider")
		applyProviderKeys(cfg)
	}
	if flags.Lookup("llm-model") != nil && flags.Changed("llm-model") {
		cfg.LLM.Model, _ = flags.GetString("llm-model")
	}
	if flags.Lookup("no-cache") != nil && flags.Changed("no-cache") {
		noCache, _ := flags.GetBool("no-cache")
		cfg.Cache.Enabled = !noCache
	}
	if flags.Lookup("no-templates") != nil && flags.Changed("no-templates") {
		off, _ := flags.GetBool("no-templates")
		cfg.Templates.Enabled = !off
	}
	if flags.Lookup("audit") != nil && flags.Changed("audit") {
		cfg.Audit.Sink, _ = flags.GetString("audit")
	}
	if flags.Lookup("no-robots") != nil && flags.Changed("no-robots") {
		off, _ := flags.GetBool("no-robots")
		cfg.HTTP.RespectRobots = !off
	}
}
