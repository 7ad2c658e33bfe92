package llm

import (
	"errors"
	"testing"

	"github.com/ppiankov/clauserisk/internal/model"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{Provider: ""})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if provider != nil {
		t.Error("Expected nil provider when disabled")
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewProvider(Config{Provider: "mystery"})
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("Expected ErrUnknownProvider, got %v", err)
	}
}

func TestNewProvider_Names(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"openai", "openai"},
		{"groq", "groq"},
		{"GROQ", "groq"},
		{"ollama", "ollama"},
		{"anthropic", "anthropic"},
		{"claude", "anthropic"},
	}

	for _, tt := range tests {
		provider, err := NewProvider(Config{Provider: tt.provider, APIKey: "key"})
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tt.provider, err)
		}
		if provider.Name() != tt.want {
			t.Errorf("%s: expected name %s, got %s", tt.provider, tt.want, provider.Name())
		}
	}
}

func TestNewProvider_GroqDefaults(t *testing.T) {
	provider, err := NewProvider(Config{Provider: "groq", APIKey: "key"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	p := provider.(*OpenAIProvider)
	if p.config.BaseURL != groqBaseURL {
		t.Errorf("Expected Groq base URL, got %s", p.config.BaseURL)
	}
	if p.config.Model != groqDefaultModel {
		t.Errorf("Expected Groq default model, got %s", p.config.Model)
	}
}

func TestNewProvider_OllamaNeedsNoKey(t *testing.T) {
	provider, err := NewProvider(Config{Provider: "ollama"})
	if err != nil {
		t.Fatalf("Expected ollama to work without a key, got %v", err)
	}
	if provider.Name() != "ollama" {
		t.Errorf("Unexpected name %s", provider.Name())
	}
}

func TestNewProvider_MissingKey(t *testing.T) {
	for _, name := range []string{"openai", "groq", "anthropic"} {
		if _, err := NewProvider(Config{Provider: name}); err == nil {
			t.Errorf("%s: expected error without API key", name)
		}
	}
}

func TestConfigFromModel(t *testing.T) {
	cfg := ConfigFromModel(
		model.LLMConfig{Provider: "groq", Model: "m", APIKey: "k", Timeout: 12, MaxTokens: 300, Temperature: 0.2},
		model.HTTPConfig{HTTPSProxy: "http://proxy:3128"},
	)

	if cfg.Provider != "groq" || cfg.Model != "m" || cfg.APIKey != "k" || cfg.Timeout != 12 || cfg.MaxTokens != 300 {
		t.Errorf("Unexpected config: %+v", cfg)
	}
	if cfg.HTTPSProxy != "http://proxy:3128" {
		t.Errorf("Expected proxy to carry over, got %q", cfg.HTTPSProxy)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Provider != "" {
		t.Error("Expected LLM disabled by default")
	}
	if cfg.MaxTokens != 600 || cfg.Timeout != 30 {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
}
