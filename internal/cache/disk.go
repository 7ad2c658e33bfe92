package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const diskSuffix = ".cache"

// DiskCache keeps one file per report. Each file starts with the expiry as
// Unix nanoseconds on its own line, followed by the raw report bytes.
type DiskCache struct {
	dir      string
	ttl      time.Duration
	now      func() time.Time
	openTemp func(dir string) (tempFile, error)
}

// tempFile is the part of *os.File that Set writes through
type tempFile interface {
	io.Writer
	Close() error
	Name() string
}

func createTemp(dir string) (tempFile, error) {
	return os.CreateTemp(dir, "entry-*.tmp")
}

// NewDiskCache creates a disk cache rooted at dir; the directory is created
// on first write
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl, now: time.Now, openTemp: createTemp}
}

// Get returns a stored report; expired or malformed files are removed
func (c *DiskCache) Get(key string) ([]byte, bool) {
	path := c.path(key)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	payload, expires, ok := splitEntry(raw)
	if !ok || !c.now().Before(expires) {
		_ = os.Remove(path)
		return nil, false
	}
	return payload, true
}

// Set writes value under key. A zero ttl uses the cache default. Writes go
// to a temporary file that is renamed into place.
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := c.openTemp(c.dir)
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	header := strconv.FormatInt(c.now().Add(ttl).UnixNano(), 10) + "\n"
	_, err = tmp.Write([]byte(header))
	if err == nil {
		_, err = tmp.Write(value)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}

	if err := os.Rename(tmp.Name(), c.path(key)); err != nil {
		return fmt.Errorf("commit cache file: %w", err)
	}
	return nil
}

// Delete removes a value; deleting a missing key is not an error
func (c *DiskCache) Delete(key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes every cache file and leaves anything else in the directory
func (c *DiskCache) Clear() error {
	_, err := c.sweep(func([]byte) bool { return true })
	return err
}

// Prune removes expired and malformed files and reports how many went
func (c *DiskCache) Prune() (int, error) {
	now := c.now()
	return c.sweep(func(raw []byte) bool {
		_, expires, ok := splitEntry(raw)
		return !ok || !now.Before(expires)
	})
}

func (c *DiskCache) sweep(drop func(raw []byte) bool) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), diskSuffix) {
			continue
		}
		path := filepath.Join(c.dir, e.Name())
		raw, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, err
		}
		if err == nil && !drop(raw) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func splitEntry(raw []byte) (payload []byte, expires time.Time, ok bool) {
	header, payload, found := bytes.Cut(raw, []byte("\n"))
	if !found {
		return nil, time.Time{}, false
	}
	nanos, err := strconv.ParseInt(string(header), 10, 64)
	if err != nil {
		return nil, time.Time{}, false
	}
	return payload, time.Unix(0, nanos), true
}

// path maps a key to a file name that is valid on every platform
func (c *DiskCache) path(key string) string {
	return filepath.Join(c.dir, strings.ReplaceAll(key, ":", "_")+diskSuffix)
}
