package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// JSONLSink appends events to one audit_YYYY-MM-DD.jsonl file per day
type JSONLSink struct {
	dir string
	mu  sync.Mutex
}

// NewJSONLSink creates a sink writing under dir
func NewJSONLSink(dir string) *JSONLSink {
	return &JSONLSink{dir: dir}
}

// Record appends the event to the file for its day
func (s *JSONLSink) Record(ctx context.Context, event Event) error {
	event = stamp(event)

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("audit_%s.jsonl", event.Timestamp.Format("2006-01-02")))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// History scans every daily file for the contract's events
func (s *JSONLSink) History(ctx context.Context, contractID string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Event{}, nil
		}
		return nil, fmt.Errorf("read audit dir: %w", err)
	}

	history := []Event{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		events, err := readEvents(filepath.Join(s.dir, entry.Name()), contractID)
		if err != nil {
			slog.Warn("Failed to read audit log", "file", entry.Name(), "error", err)
			continue
		}
		history = append(history, events...)
	}

	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})
	return history, nil
}

// Close does nothing; files are closed after every write
func (s *JSONLSink) Close() error { return nil }

func readEvents(path, contractID string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			slog.Debug("Skipping malformed audit line", "file", path, "error", err)
			continue
		}
		if event.ContractID == contractID {
			events = append(events, event)
		}
	}

	return events, scanner.Err()
}
