// Package source loads contract text from local files and URLs.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrUnsupportedFormat is returned for binary formats such as PDF and DOCX
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrDisallowedByRobots is returned when robots.txt forbids fetching a URL
	ErrDisallowedByRobots = errors.New("disallowed by robots.txt")

	// ErrEmptyDocument is returned when a document holds no text
	ErrEmptyDocument = errors.New("document is empty")
)

// Document formats
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Document is contract text plus where it came from
type Document struct {
	Source string // Path or URL as given
	Text   string
	Format string
}

// Loader resolves a file path or URL to a Document
type Loader struct {
	fetcher *Fetcher
}

// NewLoader creates a loader; a nil fetcher disables URL loading
func NewLoader(fetcher *Fetcher) *Loader {
	return &Loader{fetcher: fetcher}
}

// IsURL reports whether ref is an http(s) URL
func IsURL(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Load reads a document from a path or URL
func (l *Loader) Load(ctx context.Context, ref string) (*Document, error) {
	if IsURL(ref) {
		return l.loadURL(ctx, ref)
	}
	return LoadFile(ref)
}

func (l *Loader) loadURL(ctx context.Context, rawURL string) (*Document, error) {
	if l.fetcher == nil {
		return nil, fmt.Errorf("URL loading is not configured")
	}

	result, err := l.fetcher.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	format, err := formatFromResponse(result.ContentType, result.FinalURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rawURL, err)
	}

	text := result.Body
	if format == FormatHTML {
		text, err = HTMLToText(strings.NewReader(result.Body))
		if err != nil {
			return nil, fmt.Errorf("parse HTML: %w", err)
		}
	}

	return newDocument(rawURL, text, format)
}

// LoadFile reads a local .txt, .md or .html file
func LoadFile(filePath string) (*Document, error) {
	format, err := formatFromExtension(filepath.Ext(filePath))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	text := decodeText(data)
	if format == FormatHTML {
		text, err = HTMLToText(strings.NewReader(text))
		if err != nil {
			return nil, fmt.Errorf("parse HTML: %w", err)
		}
	}

	return newDocument(filePath, text, format)
}

func newDocument(source, text, format string) (*Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptyDocument)
	}
	return &Document{Source: source, Text: text, Format: format}, nil
}

func formatFromExtension(ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".txt", ".text", "":
		return FormatText, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".html", ".htm", ".xhtml":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func formatFromResponse(contentType, finalURL string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil {
		switch {
		case mediaType == "text/html" || mediaType == "application/xhtml+xml":
			return FormatHTML, nil
		case mediaType == "text/markdown":
			return FormatMarkdown, nil
		case strings.HasPrefix(mediaType, "text/"):
			return FormatText, nil
		case mediaType != "application/octet-stream":
			return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mediaType)
		}
	}

	// No usable content type: fall back to the URL's extension
	u, err := url.Parse(finalURL)
	if err != nil {
		return FormatText, nil
	}
	return formatFromExtension(path.Ext(u.Path))
}

// decodeText returns UTF-8 input as-is and treats anything else as Latin-1
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}
