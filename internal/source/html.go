package source

import (
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Elements whose content is never visible text
var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
	"head": true, "template": true, "svg": true,
}

// Elements that end a paragraph; their boundaries become blank lines
var paragraphElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"table": true, "ul": true, "ol": true, "pre": true, "header": true, "footer": true,
	"main": true, "aside": true, "nav": true, "dl": true, "form": true, "hr": true,
}

// Elements that end a line
var lineElements = map[string]bool{
	"br": true, "li": true, "tr": true, "dt": true, "dd": true,
	"td": true, "th": true, "caption": true, "figcaption": true,
}

var (
	inlineSpace = regexp.MustCompile(`[ \t\f\v\r\n]+`)
	extraBlank  = regexp.MustCompile(`\n{3,}`)
)

// HTMLToText extracts visible text. Block elements become line breaks so
// headings and paragraphs survive for segmentation.
func HTMLToText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	w := &textWriter{}
	w.walk(doc)

	return tidyLines(w.buf.String()), nil
}

type textWriter struct {
	buf      strings.Builder
	newlines int // Trailing newlines currently in buf
}

func (w *textWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(inlineSpace.ReplaceAllString(n.Data, " "))
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if skippedElements[n.Data] {
			return
		}
	}

	breaks := 0
	if n.Type == html.ElementNode {
		switch {
		case paragraphElements[n.Data]:
			breaks = 2
		case lineElements[n.Data]:
			breaks = 1
		}
	}

	w.lineBreak(breaks)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
	w.lineBreak(breaks)
}

func (w *textWriter) text(s string) {
	if strings.TrimSpace(s) == "" {
		// Keep a single separating space between inline runs
		if w.buf.Len() > 0 && w.newlines == 0 && !strings.HasSuffix(w.buf.String(), " ") {
			w.buf.WriteString(" ")
		}
		return
	}
	w.buf.WriteString(s)
	w.newlines = 0
}

// lineBreak ensures buf ends with at least n newlines
func (w *textWriter) lineBreak(n int) {
	if w.buf.Len() == 0 {
		return
	}
	for w.newlines < n {
		w.buf.WriteString("\n")
		w.newlines++
	}
}

// tidyLines trims every line and collapses runs of blank lines
func tidyLines(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = extraBlank.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
