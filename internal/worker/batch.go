package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/clauserisk/internal/model"
)

// Analyzer analyzes one contract reference (file path or URL)
type Analyzer interface {
	Analyze(ctx context.Context, ref string) (*model.Report, error)
}

// AnalyzeJob analyzes a single reference
type AnalyzeJob struct {
	Index    int
	Ref      string
	Analyzer Analyzer
}

// Execute runs the analysis
func (j *AnalyzeJob) Execute(ctx context.Context) Result {
	start := time.Now()
	report, err := j.Analyzer.Analyze(ctx, j.Ref)
	return &AnalyzeResult{
		Index:    j.Index,
		Ref:      j.Ref,
		Report:   report,
		Error:    err,
		Duration: time.Since(start),
	}
}

// AnalyzeResult is the outcome of one batch entry
type AnalyzeResult struct {
	Index    int
	Ref      string
	Report   *model.Report
	Error    error
	Duration time.Duration
}

// GetError returns the analysis error, if any
func (r *AnalyzeResult) GetError() error {
	return r.Error
}

// BatchProcessor analyzes many references concurrently
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyzer Analyzer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// ProcessRefs analyzes every reference and returns results in input order.
// Failures are reported per entry and never abort the batch.
func (b *BatchProcessor) ProcessRefs(ctx context.Context, refs []string) []*AnalyzeResult {
	if len(refs) == 0 {
		return []*AnalyzeResult{}
	}

	pool := NewPoolWithContext(ctx, b.concurrency)
	pool.Start()

	for i, ref := range refs {
		pool.Submit(&AnalyzeJob{
			Index:    i,
			Ref:      ref,
			Analyzer: b.analyzer,
		})
	}

	results := pool.Wait()

	out := make([]*AnalyzeResult, 0, len(results))
	for _, result := range results {
		out = append(out, result.(*AnalyzeResult))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })

	// Entries dropped by cancellation still get a result
	if len(out) < len(refs) {
		done := make(map[int]bool, len(out))
		for _, r := range out {
			done[r.Index] = true
		}
		for i, ref := range refs {
			if !done[i] {
				out = append(out, &AnalyzeResult{Index: i, Ref: ref, Error: fmt.Errorf("not analyzed: %w", context.Cause(ctx))})
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	}

	return out
}

// ProcessFile reads references from a file and analyzes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*AnalyzeResult, error) {
	refs, err := ReadRefsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read references: %w", err)
	}

	return b.ProcessRefs(ctx, refs), nil
}

// ReadRefsFromFile reads one file path or URL per line, skipping blanks,
// comments and duplicates
func ReadRefsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var refs []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			refs = append(refs, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return refs, nil
}

// Summary counts batch outcomes
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	HighRisk  int
}

// Summarize tallies results; high-risk counts contracts whose level is high
func Summarize(results []*AnalyzeResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Error != nil {
			s.Failed++
			continue
		}
		s.Succeeded++
		if r.Report != nil && r.Report.RiskLevel == model.RiskHigh {
			s.HighRisk++
		}
	}
	return s
}
