package ingest

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat marks files whose format has no extraction method.
// Callers count these separately from real failures.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// unsupportedTextFormats are text formats we recognize but cannot extract.
// They are reported to the user instead of failing silently.
var unsupportedTextFormats = map[string]bool{
	".doc":      true,
	".odt":      true,
	".pages":    true,
	".org":      true,
	".adoc":     true,
	".asciidoc": true,
}

// binaryFormats are eligible for indexing but need format-specific
// extraction this build does not ship. They fail per-file, never fatally.
var binaryFormats = map[string]bool{
	".pdf":  true,
	".rtf":  true,
	".docx": true,
}

// ExtractText reads a file and returns its plain-text content based on the
// file extension. Extraction errors are per-file: the caller logs them and
// moves on.
func ExtractText(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	if unsupportedTextFormats[ext] {
		return "", fmt.Errorf("%w: text format %s", ErrUnsupportedFormat, ext)
	}
	if binaryFormats[ext] {
		return "", fmt.Errorf("%w: no extraction method for %s", ErrUnsupportedFormat, ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	switch ext {
	case ".md":
		return extractMarkdown(data)
	case ".html", ".htm":
		return extractHTML(data)
	case ".json":
		return extractJSON(data)
	case ".xml":
		return extractXML(data)
	case ".yaml", ".yml":
		return extractYAML(data)
	case ".txt", ".log", ".csv", ".tsv", ".rst", ".tex":
		return strings.TrimSpace(string(data)), nil
	default:
		return "", fmt.Errorf("%w: no extraction method for %s", ErrUnsupportedFormat, ext)
	}
}

// extractMarkdown walks the goldmark AST and collects text content,
// separating blocks with newlines so headings don't run into paragraphs.
func extractMarkdown(src []byte) (string, error) {
	doc := goldmark.New().Parser().Parse(gmtext.NewReader(src))

	var sb strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if _, isBlock := n.(*ast.Document); !isBlock && n.Type() == ast.TypeBlock {
				sb.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}
		if t, ok := n.(*ast.Text); ok {
			sb.Write(t.Segment.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				sb.WriteString("\n")
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to walk markdown: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// extractHTML collects text nodes, skipping script and style subtrees.
func extractHTML(src []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(parts, " "), nil
}

// extractJSON collects every string value in the document, depth first.
func extractJSON(src []byte) (string, error) {
	var data interface{}
	if err := json.Unmarshal(src, &data); err != nil {
		return "", fmt.Errorf("failed to parse JSON: %w", err)
	}
	return strings.Join(collectStrings(data), "\n"), nil
}

// extractYAML collects every string value in the document, depth first.
func extractYAML(src []byte) (string, error) {
	var data interface{}
	if err := yaml.Unmarshal(src, &data); err != nil {
		return "", fmt.Errorf("failed to parse YAML: %w", err)
	}
	return strings.Join(collectStrings(data), "\n"), nil
}

// extractXML collects character data between tags.
func extractXML(src []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(src))
	var parts []string
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse XML: %w", err)
		}
		if cd, ok := tok.(xml.CharData); ok {
			if text := strings.TrimSpace(string(cd)); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "\n"), nil
}

// collectStrings walks decoded JSON/YAML values and returns the non-empty
// string leaves. Map keys are visited in sorted order so output is stable.
func collectStrings(v interface{}) []string {
	var out []string
	switch val := v.(type) {
	case string:
		if s := strings.TrimSpace(val); s != "" {
			out = append(out, s)
		}
	case []interface{}:
		for _, item := range val {
			out = append(out, collectStrings(item)...)
		}
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, collectStrings(val[k])...)
		}
	}
	return out
}
