package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ppiankov/clauserisk/internal/audit"
	"github.com/ppiankov/clauserisk/internal/extract"
	"github.com/ppiankov/clauserisk/internal/model"
	"github.com/ppiankov/clauserisk/internal/similarity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const employmentContract = `EMPLOYMENT AGREEMENT
This employment agreement is made between Acme Pvt Ltd (the "Employer") and Ravi Kumar (the "Employee").

1. Salary
The Employer shall pay the Employee a monthly salary of Rs. 50,000 on the last working day.

2. Termination
The Employer may terminate this agreement at any time without cause and without notice. The Employee shall have unlimited liability for any damages.

3. Confidentiality
The parties agree to maintain confidentiality of proprietary information disclosed during the term of this agreement.
`

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

func (s *recordingSink) Record(ctx context.Context, e audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		out = append(out, e.Action)
	}
	return out
}

func TestEngine_Analyze(t *testing.T) {
	engine := New(nil)

	analysis, err := engine.Analyze(context.Background(), "c-1", employmentContract)
	require.NoError(t, err)

	assert.Equal(t, model.ContractEmployment, analysis.ContractType)
	require.Len(t, analysis.Clauses, 4)

	wantHeaders := []string{"General", "1. Salary", "2. Termination", "3. Confidentiality"}
	for i, c := range analysis.Clauses {
		assert.Equal(t, i+1, c.ID)
		assert.Equal(t, wantHeaders[i], c.Header)
		assert.Equal(t, len(strings.Fields(c.Text)), c.WordCount)
	}

	termination := analysis.Clauses[2]
	assert.Equal(t, 80, termination.RiskScore)
	assert.Equal(t, model.RiskHigh, termination.RiskLevel)
	assert.Equal(t, model.ClauseObligation, termination.Type)
	assert.Equal(t, "keyword:shall", termination.Heuristic)

	assert.Equal(t, 4, analysis.ClauseCount)
	assert.Equal(t, 1, analysis.HighRiskClauses)
	assert.Equal(t, 20.0, analysis.CompositeScore)
	assert.Equal(t, model.RiskLow, analysis.RiskLevel)

	var flagTypes []string
	for _, f := range analysis.Flags {
		flagTypes = append(flagTypes, f.Type)
	}
	assert.Equal(t, []string{"unilateral_termination", "uncapped_liability"}, flagTypes)

	sum := 0.0
	for _, v := range analysis.TypeConfidence {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestEngine_EnrichmentOmittedWithoutCollaborators(t *testing.T) {
	analysis, err := New(nil).Analyze(context.Background(), "c-2", employmentContract)
	require.NoError(t, err)

	for _, c := range analysis.Clauses {
		assert.Nil(t, c.Entities)
		assert.Nil(t, c.SimilarityScore)
		assert.Nil(t, c.IsStandard)
		assert.Nil(t, c.DeviationFlag)
		assert.Empty(t, c.SuggestedStandard)
	}
}

func TestEngine_Enrichment(t *testing.T) {
	store, err := similarity.NewEmbeddedStore()
	require.NoError(t, err)

	engine := New(nil, WithExtractor(extract.NewPatternExtractor()), WithTemplates(store))

	analysis, err := engine.Analyze(context.Background(), "c-3", employmentContract)
	require.NoError(t, err)

	for _, c := range analysis.Clauses {
		require.NotNil(t, c.Entities, "clause %d", c.ID)
		require.NotNil(t, c.SimilarityScore, "clause %d", c.ID)
		require.NotNil(t, c.IsStandard)
		require.NotNil(t, c.DeviationFlag)
		if !*c.DeviationFlag {
			assert.Empty(t, c.SuggestedStandard)
		}
	}

	preamble := analysis.Clauses[0]
	assert.NotEmpty(t, preamble.Entities.Parties)
}

type missingStore struct{}

func (missingStore) Standards(model.ContractType) ([]string, error) {
	return nil, fmt.Errorf("lease: %w", similarity.ErrNoTemplate)
}

type brokenStore struct{}

func (brokenStore) Standards(model.ContractType) ([]string, error) {
	return nil, errors.New("disk on fire")
}

func TestEngine_MissingTemplateDegrades(t *testing.T) {
	for _, store := range []similarity.TemplateStore{missingStore{}, brokenStore{}} {
		analysis, err := New(nil, WithTemplates(store)).Analyze(context.Background(), "c-4", employmentContract)
		require.NoError(t, err)
		for _, c := range analysis.Clauses {
			assert.Nil(t, c.SimilarityScore)
		}
	}
}

func TestEngine_AuditEvents(t *testing.T) {
	sink := &recordingSink{}
	engine := New(nil, WithAuditSink(sink))

	_, err := engine.Analyze(context.Background(), "c-5", employmentContract)
	require.NoError(t, err)

	assert.Equal(t, []string{
		audit.ActionClassifyType,
		audit.ActionSegment,
		audit.ActionScore,
		audit.ActionAnalyze,
	}, sink.actions())

	for _, e := range sink.events {
		assert.Equal(t, "c-5", e.ContractID)
	}
	assert.Equal(t, 4, sink.events[1].Metadata["clause_count"])
	assert.Equal(t, "heading", sink.events[1].Metadata["strategy"])
}

func TestEngine_AuditFailureDoesNotFail(t *testing.T) {
	sink := &recordingSink{err: errors.New("read-only filesystem")}

	analysis, err := New(nil, WithAuditSink(sink)).Analyze(context.Background(), "c-6", employmentContract)
	require.NoError(t, err)
	assert.Len(t, analysis.Clauses, 4)
}

func TestEngine_OrderPreservedUnderParallelism(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 60; i++ {
		fmt.Fprintf(&b, "%d. Section %d\n", i, i)
		if i%3 == 0 {
			fmt.Fprintf(&b, "Clause %d: the Vendor may terminate at its sole discretion and pay a penalty.\n\n", i)
		} else {
			fmt.Fprintf(&b, "Clause %d: the Buyer shall pay each invoice within thirty days.\n\n", i)
		}
	}
	text := b.String()

	serial, err := New(nil, WithWorkers(1)).Analyze(context.Background(), "", text)
	require.NoError(t, err)
	parallel, err := New(nil, WithWorkers(16)).Analyze(context.Background(), "", text)
	require.NoError(t, err)

	require.Len(t, parallel.Clauses, 60)
	for i, c := range parallel.Clauses {
		assert.Equal(t, i+1, c.ID)
		assert.Equal(t, fmt.Sprintf("%d. Section %d", i+1, i+1), c.Header)
	}
	assert.Equal(t, serial, parallel)
}

func TestEngine_EmptyInput(t *testing.T) {
	for _, text := range []string{"", "   \n\n", "Too short."} {
		analysis, err := New(nil).Analyze(context.Background(), "", text)
		require.NoError(t, err)

		assert.Empty(t, analysis.Clauses)
		assert.Equal(t, 0.0, analysis.CompositeScore)
		assert.Equal(t, model.RiskLow, analysis.RiskLevel)
		assert.NotNil(t, analysis.Flags)
		assert.Empty(t, analysis.Flags)
		assert.Equal(t, model.ContractGeneral, analysis.ContractType)
		for ct, v := range analysis.TypeConfidence {
			assert.Zero(t, v, "confidence for %s", ct)
		}
	}
}

func TestEngine_Idempotent(t *testing.T) {
	engine := New(nil)

	first, err := engine.Analyze(context.Background(), "", employmentContract)
	require.NoError(t, err)
	second, err := engine.Analyze(context.Background(), "", employmentContract)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEngine_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Analyze(ctx, "", employmentContract)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_AnalyzeClause(t *testing.T) {
	engine := New(nil, WithExtractor(extract.NewPatternExtractor()))

	text := "The Company may terminate this agreement at any time without cause and without notice. The Employee shall have unlimited liability for any damages."
	clause := engine.AnalyzeClause(text, model.ContractEmployment)

	assert.Equal(t, 1, clause.ID)
	assert.Contains(t, []model.ClauseType{model.ClauseObligation, model.ClauseProhibition}, clause.Type)
	assert.GreaterOrEqual(t, clause.RiskScore, 70)
	assert.Equal(t, model.RiskHigh, clause.RiskLevel)
	assert.Equal(t, text, clause.Text)
	assert.True(t, strings.HasSuffix(clause.Header, "..."))
	assert.NotNil(t, clause.Entities)

	low := engine.AnalyzeClause("The parties agree to maintain confidentiality of proprietary information disclosed during the term of this agreement.", model.ContractGeneral)
	assert.Less(t, low.RiskScore, 40)
	assert.Equal(t, model.RiskLow, low.RiskLevel)
	assert.Empty(t, low.Flags)
}
