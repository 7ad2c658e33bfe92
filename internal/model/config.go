package model

import (
	"runtime"
	"time"
)

// Config holds the complete clauserisk configuration.
// Field tags serve both viper (mapstructure) and the YAML written by `config init`.
type Config struct {
	Rules        RulesConfig        `yaml:"rules" mapstructure:"rules"`
	Templates    TemplatesConfig    `yaml:"templates" mapstructure:"templates"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Audit        AuditConfig        `yaml:"audit" mapstructure:"audit"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// RulesConfig points at an external rules file; empty means the embedded default
type RulesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// TemplatesConfig controls standard-clause comparison
type TemplatesConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir     string `yaml:"dir" mapstructure:"dir"` // Directory of <type>_template.json files; empty uses embedded templates
}

// HTTPConfig controls fetching contracts from URLs
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig controls the analysis result cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig controls document and clause parallelism
type ConcurrencyConfig struct {
	Workers       int `yaml:"workers" mapstructure:"workers"`               // Documents processed in parallel (batch)
	ClauseWorkers int `yaml:"clause_workers" mapstructure:"clause_workers"` // Clauses scored in parallel per document
}

// RateLimitingConfig limits outbound requests per host
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// LLMConfig configures the optional explanation generator
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, groq, ollama, anthropic, "" (disabled)
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"-" mapstructure:"api_key"` // Never written to disk
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
}

// AuditConfig selects where stage-completion events go
type AuditConfig struct {
	Sink   string `yaml:"sink" mapstructure:"sink"` // none, jsonl, sqlite
	Dir    string `yaml:"dir" mapstructure:"dir"`   // jsonl directory
	DBPath string `yaml:"db_path" mapstructure:"db_path"`
}

// OutputConfig controls logging and rendering
type OutputConfig struct {
	Verbose       bool   `yaml:"verbose" mapstructure:"verbose"`
	LogFormat     string `yaml:"log_format" mapstructure:"log_format"` // text, json
	IncludeFooter bool   `yaml:"include_footer" mapstructure:"include_footer"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Templates: TemplatesConfig{
			Enabled: true,
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "clauserisk/0.1 (+https://github.com/ppiankov/clauserisk)",
			MaxBodyBytes:  5_000_000,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "~/.clauserisk/cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:       runtime.NumCPU(),
			ClauseWorkers: runtime.NumCPU(),
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         5,
		},
		LLM: LLMConfig{
			Timeout:     30,
			MaxTokens:   600,
			Temperature: 0.5,
		},
		Audit: AuditConfig{
			Sink:   "none",
			Dir:    "~/.clauserisk/audit",
			DBPath: "~/.clauserisk/audit.db",
		},
		Output: OutputConfig{
			LogFormat:     "text",
			IncludeFooter: true,
		},
	}
}
