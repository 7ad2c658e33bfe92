// Package cache stores finished reports so re-analyzing identical text with
// identical rules is free.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ppiankov/clauserisk/internal/model"
	"github.com/ppiankov/clauserisk/internal/util"
	"golang.org/x/crypto/blake2b"
)

// Cache defines the interface for byte-level caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

const keyPrefix = "clauserisk:v1:"

// Key derives a cache key from the document text and every setting that
// shapes its report: rule content, template source and explanation source
func Key(text string, settings ...string) string {
	h, _ := blake2b.New256(nil) // only fails for keys over 64 bytes
	for _, part := range append([]string{text}, settings...) {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Open builds the configured cache, or nil when caching is disabled
func Open(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}
	c := NewLayeredCache(cfg.MemoryTTL, util.ExpandHome(cfg.Dir), cfg.DiskTTL)
	if n, err := c.Prune(); err != nil {
		slog.Debug("Cache prune failed", "dir", cfg.Dir, "error", err)
	} else if n > 0 {
		slog.Debug("Pruned expired cache entries", "count", n)
	}
	return c
}

// ReportCache stores reports as JSON in a backing cache
type ReportCache struct {
	backend Cache
}

// NewReportCache wraps a byte cache
func NewReportCache(backend Cache) *ReportCache {
	return &ReportCache{backend: backend}
}

// Get returns a cached report. Corrupt entries are dropped and reported as misses.
func (c *ReportCache) Get(key string) (*model.Report, bool) {
	data, found := c.backend.Get(key)
	if !found {
		return nil, false
	}

	var report model.Report
	if err := json.Unmarshal(data, &report); err != nil {
		slog.Debug("Dropping unreadable cache entry", "key", key, "error", err)
		_ = c.backend.Delete(key)
		return nil, false
	}
	return &report, true
}

// Put stores a report with the backend's default TTL
func (c *ReportCache) Put(key string, report *model.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.backend.Set(key, data, 0)
}
