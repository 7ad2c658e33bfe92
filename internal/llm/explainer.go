package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ppiankov/clauserisk/internal/model"
)

// Limiter throttles outbound provider calls; keys are URL-shaped so a
// per-domain limiter can be shared with the document fetcher
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// explainRetryDelay is the pause before the single retry of a temporary failure
var explainRetryDelay = 2 * time.Second

// Explainer produces plain-language explanations. It never fails: when the
// provider is absent, unavailable or errors, a templated explanation is returned.
type Explainer struct {
	provider Provider
	config   Config
	limiter  Limiter

	availableOnce sync.Once
	available     bool
}

// ExplainerOption configures an Explainer
type ExplainerOption func(*Explainer)

// WithLimiter rate limits provider calls
func WithLimiter(l Limiter) ExplainerOption {
	return func(e *Explainer) {
		e.limiter = l
	}
}

// NewExplainer creates an explainer around an optional provider
func NewExplainer(provider Provider, config Config, opts ...ExplainerOption) *Explainer {
	e := &Explainer{
		provider: provider,
		config:   config,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewExplainerFromConfig builds the provider from config and wraps it
func NewExplainerFromConfig(config Config, opts ...ExplainerOption) (*Explainer, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}
	return NewExplainer(provider, config, opts...), nil
}

// IsEnabled returns true if a provider is configured
func (e *Explainer) IsEnabled() bool {
	return e != nil && e.provider != nil
}

// ProviderName returns the configured provider name, or "" when disabled
func (e *Explainer) ProviderName() string {
	if !e.IsEnabled() {
		return ""
	}
	return e.provider.Name()
}

// CacheKey identifies the explanation source for result caching
func (e *Explainer) CacheKey() string {
	if !e.IsEnabled() {
		return "fallback"
	}
	return e.provider.Name() + ":" + e.config.Model
}

// ExplainContract summarizes an analyzed contract
func (e *Explainer) ExplainContract(ctx context.Context, analysis model.ContractAnalysis) model.Explanation {
	if !e.IsEnabled() {
		return FallbackContractExplanation(analysis)
	}

	resp, warning := e.complete(ctx, CompletionRequest{
		System: contractSystemPrompt,
		Prompt: BuildContractPrompt(analysis),
	})
	if resp == nil {
		out := FallbackContractExplanation(analysis)
		out.Provider = e.provider.Name()
		out.Warnings = []string{warning}
		return out
	}

	return model.Explanation{
		Summary:         resp.Text,
		Recommendations: extractRecommendations(resp.Text),
		Provider:        e.provider.Name(),
		Model:           resp.Model,
		Warnings:        []string{fmt.Sprintf("Tokens used: %d", resp.TokensUsed)},
	}
}

// ExplainClause explains a single scored clause
func (e *Explainer) ExplainClause(ctx context.Context, text string, risk model.ClauseRisk) model.ClauseExplanation {
	if !e.IsEnabled() {
		return FallbackClauseExplanation(risk.Level)
	}

	resp, warning := e.complete(ctx, CompletionRequest{
		System:    clauseSystemPrompt,
		Prompt:    BuildClausePrompt(text, risk.Level),
		MaxTokens: 500,
	})
	if resp == nil {
		slog.Debug("Clause explanation fell back", "reason", warning)
		return FallbackClauseExplanation(risk.Level)
	}

	return model.ClauseExplanation{
		PlainLanguage: resp.Text,
		Concerns:      extractConcerns(resp.Text),
		Alternatives:  extractAlternatives(resp.Text),
	}
}

// complete runs one provider call. A nil response comes with the reason.
func (e *Explainer) complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, string) {
	e.availableOnce.Do(func() {
		e.available = e.provider.IsAvailable(ctx)
	})
	if !e.available {
		return nil, fmt.Sprintf("LLM provider '%s' is not available (check API key or connectivity)", e.provider.Name())
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, "llm://"+e.provider.Name()); err != nil {
			return nil, fmt.Sprintf("LLM rate limit wait failed: %v", err)
		}
	}

	resp, err := e.provider.Complete(ctx, req)
	if err != nil && IsTemporary(err) {
		slog.Debug("Retrying LLM call", "provider", e.provider.Name(), "error", err)
		select {
		case <-ctx.Done():
		case <-time.After(explainRetryDelay):
			resp, err = e.provider.Complete(ctx, req)
		}
	}
	if err != nil {
		slog.Warn("LLM explanation failed", "provider", e.provider.Name(), "error", err)
		return nil, fmt.Sprintf("LLM explanation failed: %v", err)
	}
	return resp, ""
}

// FallbackContractExplanation is the templated summary used without a provider
func FallbackContractExplanation(analysis model.ContractAnalysis) model.Explanation {
	summary := fmt.Sprintf(`This %s contract contains %d clauses with an overall risk score of %s/100 (%s risk).

%d clause(s) require careful attention. Review all high-risk clauses with legal counsel before signing.`,
		analysis.ContractType,
		analysis.ClauseCount,
		FormatScore(analysis.CompositeScore),
		analysis.RiskLevel,
		analysis.HighRiskClauses)

	return model.Explanation{
		Summary: summary,
		Recommendations: []string{
			fmt.Sprintf("Review %d high-risk clause(s) carefully", analysis.HighRiskClauses),
			"Consult legal advisor for unfavorable terms",
			"Document all obligations and deadlines",
		},
		Fallback: true,
	}
}

// FallbackClauseExplanation is the templated clause explanation used without a provider
func FallbackClauseExplanation(level model.RiskLevel) model.ClauseExplanation {
	if level == "" {
		level = model.RiskMedium
	}

	return model.ClauseExplanation{
		PlainLanguage: fmt.Sprintf("This clause is classified as %s risk. Review carefully and consider legal consultation.", level),
		Concerns:      []string{"Requires legal review", "May have unfavorable terms"},
		Alternatives:  []string{"Negotiate more balanced terms"},
		Fallback:      true,
	}
}
