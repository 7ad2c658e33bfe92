// Package pipeline turns a contract reference into a finished report:
// load, analyze, explain, cache, audit and render.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/clauserisk/internal/analysis"
	"github.com/ppiankov/clauserisk/internal/audit"
	"github.com/ppiankov/clauserisk/internal/cache"
	"github.com/ppiankov/clauserisk/internal/extract"
	"github.com/ppiankov/clauserisk/internal/llm"
	"github.com/ppiankov/clauserisk/internal/model"
	"github.com/ppiankov/clauserisk/internal/rules"
	"github.com/ppiankov/clauserisk/internal/similarity"
	"github.com/ppiankov/clauserisk/internal/source"
	"github.com/ppiankov/clauserisk/internal/util"
	"github.com/ppiankov/clauserisk/internal/worker"
)

// Pipeline orchestrates loading, analysis and explanation
type Pipeline struct {
	config    *model.Config
	rules     *rules.Rules
	loader    *source.Loader
	engine    *analysis.Engine
	explainer *llm.Explainer
	cache     *cache.ReportCache // nil when caching is disabled
	sink      audit.Sink
	renderer  *Renderer

	templatesKey string // which standard templates feed similarity fields

	now   func() time.Time
	newID func() string
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithAuditSink records load/explain events and passes the sink to the engine
func WithAuditSink(sink audit.Sink) Option {
	return func(p *Pipeline) {
		if sink != nil {
			p.sink = sink
		}
	}
}

// WithExplainer replaces the explainer built from configuration
func WithExplainer(e *llm.Explainer) Option {
	return func(p *Pipeline) {
		p.explainer = e
	}
}

// WithCache replaces the cache built from configuration; nil disables caching
func WithCache(c cache.Cache) Option {
	return func(p *Pipeline) {
		if c == nil {
			p.cache = nil
			return
		}
		p.cache = cache.NewReportCache(c)
	}
}

// WithRules replaces the rules loaded from configuration
func WithRules(r *rules.Rules) Option {
	return func(p *Pipeline) {
		p.rules = r
	}
}

// WithClock overrides the report timestamp source
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// NewPipeline creates a pipeline from configuration. Optional collaborators
// that fail to initialize are logged and left out rather than failing.
func NewPipeline(cfg *model.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}

	p := &Pipeline{
		config:   cfg,
		sink:     audit.NopSink{},
		renderer: NewRenderer(cfg.Output.IncludeFooter),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
	}
	if c := cache.Open(cfg.Cache); c != nil {
		p.cache = cache.NewReportCache(c)
	}

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	p.explainer = newExplainer(cfg, limiter)

	for _, opt := range opts {
		opt(p)
	}

	if p.rules == nil {
		r, err := rules.Load(util.ExpandHome(cfg.Rules.Path))
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		p.rules = r
	}

	fetcher := source.NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes,
		cfg.HTTP.RespectRobots, cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)
	fetcher.SetLimiter(limiter)
	p.loader = source.NewLoader(fetcher)

	engineOpts := []analysis.Option{
		analysis.WithExtractor(extract.NewPatternExtractor()),
		analysis.WithAuditSink(p.sink),
		analysis.WithWorkers(cfg.Concurrency.ClauseWorkers),
	}
	store, templatesKey := newTemplateStore(cfg.Templates)
	if store != nil {
		engineOpts = append(engineOpts, analysis.WithTemplates(store))
	}
	p.templatesKey = templatesKey
	p.engine = analysis.New(p.rules, engineOpts...)

	return p, nil
}

func newExplainer(cfg *model.Config, limiter llm.Limiter) *llm.Explainer {
	llmConfig := llm.ConfigFromModel(cfg.LLM, cfg.HTTP)

	e, err := llm.NewExplainerFromConfig(llmConfig, llm.WithLimiter(limiter))
	if err != nil {
		slog.Warn("Failed to initialize LLM provider, using templated explanations", "provider", cfg.LLM.Provider, "error", err)
		return llm.NewExplainer(nil, llmConfig)
	}
	return e
}

// newTemplateStore returns the configured store, or nil, with a label that
// tells cached reports from different template sources apart
func newTemplateStore(cfg model.TemplatesConfig) (similarity.TemplateStore, string) {
	if !cfg.Enabled {
		return nil, "templates:off"
	}
	if cfg.Dir != "" {
		dir := util.ExpandHome(cfg.Dir)
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		return similarity.NewDirStore(dir), "templates:dir:" + dir
	}

	store, err := similarity.NewEmbeddedStore()
	if err != nil {
		slog.Warn("Standard templates unavailable", "error", err)
		return nil, "templates:off"
	}
	return store, "templates:embedded"
}

// Rules returns the active rule set
func (p *Pipeline) Rules() *rules.Rules {
	return p.rules
}

// Analyze loads a file or URL and produces a report
func (p *Pipeline) Analyze(ctx context.Context, ref string) (*model.Report, error) {
	id := p.newID()

	doc, err := p.loader.Load(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}

	p.record(ctx, id, audit.ActionLoad, map[string]any{
		"source": doc.Source,
		"format": doc.Format,
		"bytes":  len(doc.Text),
	})

	return p.AnalyzeText(ctx, id, doc.Source, doc.Text)
}

// AnalyzeText analyzes text that is already loaded. An empty contract ID is
// replaced with a fresh UUID.
func (p *Pipeline) AnalyzeText(ctx context.Context, contractID, src, text string) (*model.Report, error) {
	if contractID == "" {
		contractID = p.newID()
	}

	key := cache.Key(text, p.rules.Fingerprint(), p.templatesKey, p.explainer.CacheKey())
	if p.cache != nil {
		if cached, ok := p.cache.Get(key); ok {
			slog.Debug("Cache hit", "contract_id", contractID, "source", src)
			cached.ContractID = contractID
			cached.Source = src
			cached.AnalyzedAt = p.now()
			p.record(ctx, contractID, audit.ActionAnalyze, map[string]any{
				"contract_type": cached.ContractType,
				"risk_score":    cached.CompositeScore,
				"clause_count":  cached.ClauseCount,
				"cached":        true,
			})
			return cached, nil
		}
	}

	result, err := p.engine.Analyze(ctx, contractID, text)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	report := &model.Report{
		ContractID:       contractID,
		Source:           src,
		AnalyzedAt:       p.now(),
		RulesVersion:     p.rules.Version,
		ContractAnalysis: result,
	}

	// Explanation runs after scoring and never changes it
	explanation := p.explainer.ExplainContract(ctx, result)
	report.Explanation = &explanation
	p.record(ctx, contractID, audit.ActionExplain, map[string]any{
		"provider": explanation.Provider,
		"fallback": explanation.Fallback,
	})

	if p.cache != nil {
		if err := p.cache.Put(key, report); err != nil {
			slog.Warn("Failed to cache report", "contract_id", contractID, "error", err)
		}
	}

	return report, nil
}

// Classification is the contract type of a document with its vote distribution
type Classification struct {
	Source       string                         `json:"source"`
	ContractType model.ContractType             `json:"contract_type"`
	Confidence   map[model.ContractType]float64 `json:"confidence"`
}

// Classify loads a document and labels its contract type without scoring it
func (p *Pipeline) Classify(ctx context.Context, ref string) (*Classification, error) {
	doc, err := p.loader.Load(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}

	ct, confidence := p.engine.ClassifyType(doc.Text)
	return &Classification{Source: doc.Source, ContractType: ct, Confidence: confidence}, nil
}

// AnalyzeClause scores and explains a single clause. An empty contract type
// means general; an empty clause ID gets a fresh UUID.
func (p *Pipeline) AnalyzeClause(ctx context.Context, clauseID, text string, contractType model.ContractType) (*model.ClauseReport, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("clause text is empty")
	}
	if contractType == "" {
		contractType = model.ContractGeneral
	}
	if clauseID == "" {
		clauseID = p.newID()
	}

	clause := p.engine.AnalyzeClause(text, contractType)
	explanation := p.explainer.ExplainClause(ctx, clause.Text, model.ClauseRisk{
		Score: clause.RiskScore,
		Level: clause.RiskLevel,
		Flags: clause.Flags,
	})

	p.record(ctx, clauseID, audit.ActionAnalyzeClause, map[string]any{
		"contract_type": contractType,
		"risk_score":    clause.RiskScore,
		"risk_level":    clause.RiskLevel,
		"entity_count":  clause.Entities.Count(),
	})

	return &model.ClauseReport{
		ClauseID:     clauseID,
		ContractType: contractType,
		Clause:       clause,
		Explanation:  explanation,
		AnalyzedAt:   p.now(),
	}, nil
}

// RenderReport writes JSON and Markdown files when paths are given and
// prints a terminal summary to stdout
func (p *Pipeline) RenderReport(report *model.Report, jsonPath, mdPath string, verbose bool) error {
	if jsonPath != "" {
		if err := p.renderer.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			slog.Info("Wrote JSON report", "path", jsonPath)
		}
	}

	if mdPath != "" {
		if err := p.renderer.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			slog.Info("Wrote Markdown report", "path", mdPath)
		}
	}

	p.renderer.RenderSummary(report)

	return nil
}

// Renderer returns the pipeline's renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

func (p *Pipeline) record(ctx context.Context, contractID, action string, metadata map[string]any) {
	err := p.sink.Record(ctx, audit.Event{
		ContractID: contractID,
		Action:     action,
		Metadata:   metadata,
	})
	if err != nil {
		slog.Warn("Audit record failed", "contract_id", contractID, "action", action, "error", err)
	}
}
