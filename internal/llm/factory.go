package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/clauserisk/internal/model"
)

// ErrUnknownProvider is returned for an unsupported provider name
var ErrUnknownProvider = errors.New("unknown LLM provider")

const (
	groqBaseURL   = "https://api.groq.com/openai/v1"
	ollamaBaseURL = "http://localhost:11434/v1"

	groqDefaultModel   = "llama-3.3-70b-versatile"
	ollamaDefaultModel = "llama3.1"
)

// NewProvider creates a new LLM provider based on configuration.
// An empty provider name disables explanations and returns nil.
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(strings.TrimSpace(config.Provider))

	switch provider {
	case "openai":
		return NewOpenAIProvider("openai", config)

	case "groq":
		if config.BaseURL == "" {
			config.BaseURL = groqBaseURL
		}
		if config.Model == "" {
			config.Model = groqDefaultModel
		}
		return NewOpenAIProvider("groq", config)

	case "ollama":
		// Ollama serves an OpenAI-compatible API and ignores the key
		if config.BaseURL == "" {
			config.BaseURL = ollamaBaseURL
		}
		if config.Model == "" {
			config.Model = ollamaDefaultModel
		}
		if config.APIKey == "" {
			config.APIKey = "ollama"
		}
		return NewOpenAIProvider("ollama", config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: %s (supported: openai, groq, ollama, anthropic)", ErrUnknownProvider, config.Provider)
	}
}

// ConfigFromModel converts the application config to llm.Config
func ConfigFromModel(llmConfig model.LLMConfig, httpConfig model.HTTPConfig) Config {
	return Config{
		Provider:    llmConfig.Provider,
		Model:       llmConfig.Model,
		APIKey:      llmConfig.APIKey,
		BaseURL:     llmConfig.BaseURL,
		Timeout:     llmConfig.Timeout,
		MaxTokens:   llmConfig.MaxTokens,
		Temperature: llmConfig.Temperature,
		HTTPProxy:   httpConfig.HTTPProxy,
		HTTPSProxy:  httpConfig.HTTPSProxy,
		NoProxy:     httpConfig.NoProxy,
	}
}
