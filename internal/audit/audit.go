// Package audit records stage-completion events per contract and reads them
// back as a history.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/clauserisk/internal/model"
	"github.com/ppiankov/clauserisk/internal/util"
)

// Actions emitted by the analysis engine and pipeline
const (
	ActionLoad          = "load"
	ActionClassifyType  = "classify_type"
	ActionSegment       = "segment"
	ActionScore         = "score"
	ActionAnalyze       = "analyze"
	ActionExplain       = "explain"
	ActionAnalyzeClause = "analyze_clause"
)

// Event is a single audit record
type Event struct {
	ContractID string         `json:"contract_id"`
	Action     string         `json:"action"`
	Metadata   map[string]any `json:"metadata"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Sink receives audit events
type Sink interface {
	Record(ctx context.Context, event Event) error
	Close() error
}

// HistoryReader returns all events for a contract, oldest first
type HistoryReader interface {
	History(ctx context.Context, contractID string) ([]Event, error)
}

// NopSink discards events
type NopSink struct{}

// Record discards the event
func (NopSink) Record(context.Context, Event) error { return nil }

// Close does nothing
func (NopSink) Close() error { return nil }

// Open creates the sink selected by configuration
func Open(cfg model.AuditConfig) (Sink, error) {
	switch strings.ToLower(cfg.Sink) {
	case "", "none":
		return NopSink{}, nil
	case "jsonl":
		return NewJSONLSink(util.ExpandHome(cfg.Dir)), nil
	case "sqlite":
		return NewSQLiteSink(util.ExpandHome(cfg.DBPath))
	default:
		return nil, fmt.Errorf("unknown audit sink: %s (supported: none, jsonl, sqlite)", cfg.Sink)
	}
}

func stamp(event Event) Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	return event
}
