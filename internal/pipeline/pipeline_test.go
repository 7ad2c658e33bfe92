package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/clauserisk/internal/audit"
	"github.com/ppiankov/clauserisk/internal/cache"
	"github.com/ppiankov/clauserisk/internal/llm"
	"github.com/ppiankov/clauserisk/internal/model"
	"github.com/ppiankov/clauserisk/internal/rules"
	"github.com/ppiankov/clauserisk/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leaseContract = `LEASE AGREEMENT
This lease agreement is made between Asha Rao (the "Landlord") and Vikram Singh (the "Tenant") for the premises at Pune.

1. Rent
The Tenant shall pay the monthly rent in advance on or before the fifth day of each month.

2. Security Deposit
The Tenant shall pay a security deposit which the Landlord may forfeit at its sole discretion.

3. Jurisdiction
All disputes shall be subject to the exclusive jurisdiction of the courts of Singapore.
`

var fixedTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordingSink) Record(ctx context.Context, e audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Action)
	}
	return out
}

// fakeProvider implements llm.Provider
type fakeProvider struct {
	calls atomic.Int32
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.calls.Add(1)
	return &llm.CompletionResponse{
		Text:  "This lease favours the landlord.\n\nRecommendations:\n- Cap the deposit forfeiture\n- Move jurisdiction to Pune\n- Ask for a notice period",
		Model: "fake-1",
	}, nil
}

func (p *fakeProvider) IsAvailable(ctx context.Context) bool { return true }

func testConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false
	cfg.HTTP.RespectRobots = false
	cfg.HTTP.Timeout = 5 * time.Second
	return cfg
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedTime })}, opts...)
	p, err := NewPipeline(testConfig(), opts...)
	require.NoError(t, err)
	return p
}

func writeContract(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestPipeline_AnalyzeFile(t *testing.T) {
	p := newTestPipeline(t)
	path := writeContract(t, "lease.txt", leaseContract)

	report, err := p.Analyze(context.Background(), path)
	require.NoError(t, err)

	_, err = uuid.Parse(report.ContractID)
	assert.NoError(t, err, "contract ID should be a UUID")
	assert.Equal(t, path, report.Source)
	assert.Equal(t, fixedTime, report.AnalyzedAt)
	assert.Equal(t, p.Rules().Version, report.RulesVersion)

	assert.Equal(t, model.ContractLease, report.ContractType)
	require.Len(t, report.Clauses, 4)
	assert.Equal(t, "3. Jurisdiction", report.Clauses[3].Header)
	assert.Equal(t, 40, report.Clauses[3].RiskScore)

	for _, c := range report.Clauses {
		assert.NotNil(t, c.Entities, "entities attached to clause %d", c.ID)
		assert.NotNil(t, c.SimilarityScore, "similarity attached to clause %d", c.ID)
	}

	require.NotNil(t, report.Explanation)
	assert.True(t, report.Explanation.Fallback)
	assert.Len(t, report.Explanation.Recommendations, 3)
}

func TestPipeline_AnalyzeURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		html := strings.ReplaceAll(leaseContract, "\n\n", "</p><p>")
		_, _ = fmt.Fprintf(w, "<html><body><p>%s</p></body></html>", strings.ReplaceAll(html, "\n", "<br>"))
	}))
	defer server.Close()

	p := newTestPipeline(t)

	report, err := p.Analyze(context.Background(), server.URL+"/lease")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/lease", report.Source)
	assert.Equal(t, model.ContractLease, report.ContractType)
	assert.Len(t, report.Clauses, 4)
}

func TestPipeline_AnalyzeUnsupported(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.Analyze(context.Background(), writeContract(t, "lease.pdf", "%PDF-1.7"))
	assert.True(t, errors.Is(err, source.ErrUnsupportedFormat))
}

func TestPipeline_AuditSequence(t *testing.T) {
	sink := &recordingSink{}
	p := newTestPipeline(t, WithAuditSink(sink))

	report, err := p.Analyze(context.Background(), writeContract(t, "lease.md", leaseContract))
	require.NoError(t, err)

	assert.Equal(t, []string{
		audit.ActionLoad,
		audit.ActionClassifyType,
		audit.ActionSegment,
		audit.ActionScore,
		audit.ActionAnalyze,
		audit.ActionExplain,
	}, sink.actions())

	for _, e := range sink.events {
		assert.Equal(t, report.ContractID, e.ContractID)
	}
}

func TestPipeline_ExplanationNeverChangesScores(t *testing.T) {
	provider := &fakeProvider{}
	withLLM := newTestPipeline(t, WithExplainer(llm.NewExplainer(provider, llm.DefaultConfig())))
	without := newTestPipeline(t)

	a, err := withLLM.AnalyzeText(context.Background(), "c-1", "", leaseContract)
	require.NoError(t, err)
	b, err := without.AnalyzeText(context.Background(), "c-1", "", leaseContract)
	require.NoError(t, err)

	assert.Equal(t, b.ContractAnalysis, a.ContractAnalysis)
	assert.Equal(t, int32(1), provider.calls.Load())
	assert.False(t, a.Explanation.Fallback)
	assert.Equal(t, "fake", a.Explanation.Provider)
	assert.True(t, b.Explanation.Fallback)
}

func TestPipeline_Cache(t *testing.T) {
	provider := &fakeProvider{}
	sink := &recordingSink{}
	p := newTestPipeline(t,
		WithCache(cache.NewMemoryCache(time.Minute, time.Minute)),
		WithExplainer(llm.NewExplainer(provider, llm.DefaultConfig())),
		WithAuditSink(sink),
	)

	first, err := p.AnalyzeText(context.Background(), "c-1", "a.txt", leaseContract)
	require.NoError(t, err)
	second, err := p.AnalyzeText(context.Background(), "c-2", "b.txt", leaseContract)
	require.NoError(t, err)

	assert.Equal(t, int32(1), provider.calls.Load(), "second run should be served from cache")
	assert.Equal(t, "c-2", second.ContractID)
	assert.Equal(t, "b.txt", second.Source)
	assert.Equal(t, first.Clauses, second.Clauses)
	assert.Equal(t, first.CompositeScore, second.CompositeScore)
	assert.Equal(t, first.Explanation.Summary, second.Explanation.Summary)

	actions := sink.actions()
	assert.Equal(t, audit.ActionAnalyze, actions[len(actions)-1])
	assert.Equal(t, true, sink.events[len(sink.events)-1].Metadata["cached"])

	// Changing the text misses the cache
	_, err = p.AnalyzeText(context.Background(), "c-3", "", leaseContract+"\n4. Notices\nAll notices shall be given in writing to the addresses above.")
	require.NoError(t, err)
	assert.Equal(t, int32(2), provider.calls.Load())
}

func TestPipeline_CacheKeyedByRuleContent(t *testing.T) {
	shared := cache.NewMemoryCache(time.Minute, time.Minute)

	custom, err := rules.Parse(bytes.Replace(rules.Embedded(),
		[]byte("  - name: foreign_jurisdiction\n    weight: 40"),
		[]byte("  - name: foreign_jurisdiction\n    weight: 5"), 1))
	require.NoError(t, err)
	require.Equal(t, rules.Default().Version, custom.Version, "same version string, different tables")
	p, _ := custom.Pattern("foreign_jurisdiction")
	require.Equal(t, 5, p.Weight)

	defaults := newTestPipeline(t, WithCache(shared))
	first, err := defaults.AnalyzeText(context.Background(), "c-1", "", leaseContract)
	require.NoError(t, err)

	viaCache := newTestPipeline(t, WithCache(shared), WithRules(custom))
	second, err := viaCache.AnalyzeText(context.Background(), "c-2", "", leaseContract)
	require.NoError(t, err)

	fresh := newTestPipeline(t, WithRules(custom))
	want, err := fresh.AnalyzeText(context.Background(), "c-3", "", leaseContract)
	require.NoError(t, err)

	assert.NotEqual(t, first.CompositeScore, second.CompositeScore)
	assert.Equal(t, want.CompositeScore, second.CompositeScore)
	assert.Equal(t, want.Clauses, second.Clauses)
}

func TestPipeline_CacheKeyedByTemplateSource(t *testing.T) {
	shared := cache.NewMemoryCache(time.Minute, time.Minute)

	off := testConfig()
	off.Templates.Enabled = false
	withoutTemplates, err := NewPipeline(off, WithCache(shared))
	require.NoError(t, err)
	plain, err := withoutTemplates.AnalyzeText(context.Background(), "c-1", "", leaseContract)
	require.NoError(t, err)
	for _, c := range plain.Clauses {
		require.Nil(t, c.SimilarityScore)
	}

	withTemplates := newTestPipeline(t, WithCache(shared))
	compared, err := withTemplates.AnalyzeText(context.Background(), "c-2", "", leaseContract)
	require.NoError(t, err)
	require.NotEmpty(t, compared.Clauses)
	for _, c := range compared.Clauses {
		assert.NotNil(t, c.SimilarityScore, "clause %d served from the templates-off entry", c.ID)
	}
}

func TestPipeline_EmptyText(t *testing.T) {
	p := newTestPipeline(t)

	report, err := p.AnalyzeText(context.Background(), "", "", "   ")
	require.NoError(t, err)
	assert.NotEmpty(t, report.ContractID)
	assert.Empty(t, report.Clauses)
	assert.Equal(t, 0.0, report.CompositeScore)
	assert.Equal(t, model.RiskLow, report.RiskLevel)
	assert.Equal(t, model.ContractGeneral, report.ContractType)
}

func TestPipeline_AnalyzeClause(t *testing.T) {
	sink := &recordingSink{}
	p := newTestPipeline(t, WithAuditSink(sink))

	text := "The Company may terminate this agreement at any time without cause and without notice. The Employee shall have unlimited liability for any damages."
	report, err := p.AnalyzeClause(context.Background(), "", text, "")
	require.NoError(t, err)

	assert.NotEmpty(t, report.ClauseID)
	assert.Equal(t, model.ContractGeneral, report.ContractType)
	assert.Equal(t, model.RiskHigh, report.Clause.RiskLevel)
	assert.GreaterOrEqual(t, report.Clause.RiskScore, 70)
	assert.True(t, report.Explanation.Fallback)
	assert.Contains(t, report.Explanation.PlainLanguage, "high risk")
	assert.Equal(t, fixedTime, report.AnalyzedAt)

	assert.Equal(t, []string{audit.ActionAnalyzeClause}, sink.actions())
	assert.Equal(t, report.ClauseID, sink.events[0].ContractID)

	_, err = p.AnalyzeClause(context.Background(), "x", "  ", model.ContractLease)
	assert.Error(t, err)
}

func TestPipeline_Classify(t *testing.T) {
	p := newTestPipeline(t)

	c, err := p.Classify(context.Background(), writeContract(t, "lease.txt", leaseContract))
	require.NoError(t, err)
	assert.Equal(t, model.ContractLease, c.ContractType)
	assert.Greater(t, c.Confidence[model.ContractLease], 0.5)
}

func TestNewPipeline_BadRulesPath(t *testing.T) {
	cfg := testConfig()
	cfg.Rules.Path = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewPipeline(cfg)
	assert.Error(t, err)
}

func TestNewPipeline_UnknownProviderFallsBack(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.Provider = "mystery"

	p, err := NewPipeline(cfg)
	require.NoError(t, err)

	report, err := p.AnalyzeText(context.Background(), "", "", leaseContract)
	require.NoError(t, err)
	assert.True(t, report.Explanation.Fallback)
}

func TestRenderer(t *testing.T) {
	p := newTestPipeline(t)
	report, err := p.AnalyzeText(context.Background(), "c-9", "contracts/lease.txt", leaseContract)
	require.NoError(t, err)

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "out", "lease.json")
	mdPath := filepath.Join(dir, "out", "lease.md")

	var summary bytes.Buffer
	p.Renderer().SetOutput(&summary)
	require.NoError(t, p.RenderReport(report, jsonPath, mdPath, false))

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded model.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "c-9", decoded.ContractID)
	assert.Equal(t, report.CompositeScore, decoded.CompositeScore)

	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Contract Risk Report: lease.txt")
	assert.Contains(t, string(md), "### 4. 3. Jurisdiction")
	assert.Contains(t, string(md), "**foreign_jurisdiction**")
	assert.Contains(t, string(md), footer)

	assert.Contains(t, summary.String(), "Contract Risk Summary")
	assert.Contains(t, summary.String(), "c-9")
}

func TestRenderer_NoFooter(t *testing.T) {
	r := NewRenderer(false)
	md := r.Markdown(&model.Report{ContractID: "x"})
	assert.NotContains(t, md, footer)
	assert.Contains(t, md, "No clauses could be extracted.")
}
