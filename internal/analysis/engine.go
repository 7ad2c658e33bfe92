// Package analysis runs the clause risk engine over one document: contract
// typing, segmentation, per-clause role tagging and scoring, optional
// enrichment, and the composite summary.
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"strings"

	"github.com/ppiankov/clauserisk/internal/audit"
	"github.com/ppiankov/clauserisk/internal/classify"
	"github.com/ppiankov/clauserisk/internal/extract"
	"github.com/ppiankov/clauserisk/internal/model"
	"github.com/ppiankov/clauserisk/internal/rules"
	"github.com/ppiankov/clauserisk/internal/score"
	"github.com/ppiankov/clauserisk/internal/segment"
	"github.com/ppiankov/clauserisk/internal/similarity"
	"github.com/ppiankov/clauserisk/internal/worker"
)

// Engine is safe for concurrent use once constructed
type Engine struct {
	rules      *rules.Rules
	segmenter  *segment.Segmenter
	roles      *classify.RoleClassifier
	types      *classify.TypeClassifier
	scorer     *score.Scorer
	extractor  extract.EntityExtractor
	templates  similarity.TemplateStore
	comparator *similarity.Comparator
	sink       audit.Sink
	workers    int
}

// Option configures an Engine
type Option func(*Engine)

// WithExtractor attaches entities to every clause
func WithExtractor(x extract.EntityExtractor) Option {
	return func(e *Engine) {
		e.extractor = x
	}
}

// WithTemplates compares every clause against the standard template for the
// detected contract type
func WithTemplates(store similarity.TemplateStore) Option {
	return func(e *Engine) {
		e.templates = store
		if store != nil {
			e.comparator = similarity.NewComparator()
		}
	}
}

// WithAuditSink records stage-completion events
func WithAuditSink(sink audit.Sink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithWorkers bounds how many clauses are processed in parallel
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// New creates an engine from a rule set. A nil rule set uses the embedded default.
func New(r *rules.Rules, opts ...Option) *Engine {
	if r == nil {
		r = rules.Default()
	}

	e := &Engine{
		rules:     r,
		segmenter: segment.NewSegmenter(),
		roles:     classify.NewRoleClassifier(r),
		types:     classify.NewTypeClassifier(r),
		scorer:    score.NewScorer(r),
		sink:      audit.NopSink{},
		workers:   runtime.NumCPU(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Rules returns the rule set the engine was built with
func (e *Engine) Rules() *rules.Rules {
	return e.rules
}

// Scorer returns the engine's scorer
func (e *Engine) Scorer() *score.Scorer {
	return e.scorer
}

// ClassifyType labels the whole document and returns the normalized vote distribution
func (e *Engine) ClassifyType(text string) (model.ContractType, map[model.ContractType]float64) {
	return e.types.Classify(text), e.types.Confidence(text)
}

// Analyze runs the full engine. Clause order is document order. The only
// error is ctx cancellation; empty input yields zero clauses and a low score.
func (e *Engine) Analyze(ctx context.Context, contractID, text string) (model.ContractAnalysis, error) {
	contractType, confidence := e.ClassifyType(text)
	e.record(ctx, contractID, audit.ActionClassifyType, map[string]any{
		"contract_type": contractType,
		"confidence":    confidence,
	})

	candidates, strategy := e.segmenter.Segment(text)
	e.record(ctx, contractID, audit.ActionSegment, map[string]any{
		"clause_count": len(candidates),
		"strategy":     strategy,
	})

	standards := e.standards(contractType)

	clauses := make([]model.Clause, len(candidates))
	worker.ForEach(ctx, e.workers, len(candidates), func(_ context.Context, i int) {
		clauses[i] = e.buildClause(i+1, candidates[i], standards)
	})
	if err := ctx.Err(); err != nil {
		return model.ContractAnalysis{}, err
	}

	summary := e.scorer.ScoreContract(clauses)
	e.record(ctx, contractID, audit.ActionScore, map[string]any{
		"composite_score":   summary.CompositeScore,
		"risk_level":        summary.RiskLevel,
		"high_risk_clauses": summary.HighRiskClauses,
	})

	analysis := model.ContractAnalysis{
		ContractType:   contractType,
		TypeConfidence: confidence,
		Clauses:        clauses,
		RiskSummary:    summary,
	}

	e.record(ctx, contractID, audit.ActionAnalyze, map[string]any{
		"contract_type": contractType,
		"risk_score":    summary.CompositeScore,
		"risk_level":    summary.RiskLevel,
		"clause_count":  summary.ClauseCount,
		"flag_count":    len(summary.Flags),
	})

	return analysis, nil
}

// AnalyzeClause tags, scores and enriches a single clause outside any
// document. The contract type selects the standard template, if any.
func (e *Engine) AnalyzeClause(text string, contractType model.ContractType) model.Clause {
	text = strings.TrimSpace(segment.Normalize(text))
	candidate := segment.Candidate{
		Header:   segment.Preview(text, segment.HeaderPreviewLength),
		Text:     text,
		FullText: text,
	}
	return e.buildClause(1, candidate, e.standards(contractType))
}

func (e *Engine) buildClause(id int, c segment.Candidate, standards []string) model.Clause {
	role, heuristic := e.roles.ClassifyWithHeuristic(c.Text)
	risk := e.scorer.ScoreClause(c.Text)

	clause := model.Clause{
		ID:        id,
		Header:    c.Header,
		Text:      c.Text,
		FullText:  c.FullText,
		WordCount: len(strings.Fields(c.Text)),
		Type:      role,
		Heuristic: heuristic,
		RiskScore: risk.Score,
		RiskLevel: risk.Level,
		Flags:     risk.Flags,
	}

	if e.extractor != nil {
		clause.Entities = e.extractor.Extract(c.Text)
	}

	if e.comparator != nil && len(standards) > 0 {
		e.comparator.Compare(c.Text, standards).Apply(&clause)
	}

	return clause
}

// standards returns the template clauses for a type, or nil when there is
// no store or no template
func (e *Engine) standards(contractType model.ContractType) []string {
	if e.templates == nil {
		return nil
	}

	standards, err := e.templates.Standards(contractType)
	if err != nil {
		if !errors.Is(err, similarity.ErrNoTemplate) {
			slog.Warn("Standard template unavailable", "contract_type", contractType, "error", err)
		}
		return nil
	}
	return standards
}

func (e *Engine) record(ctx context.Context, contractID, action string, metadata map[string]any) {
	err := e.sink.Record(ctx, audit.Event{
		ContractID: contractID,
		Action:     action,
		Metadata:   metadata,
	})
	if err != nil {
		slog.Warn("Audit record failed", "contract_id", contractID, "action", action, "error", err)
	}
}
