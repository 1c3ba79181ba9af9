// Package extract turns uploaded document bytes into plain text. The
// format is chosen from the filename extension: PDF goes through the
// poppler pdftotext tool, DOCX is read from its word/document.xml part,
// and plain text formats pass through as UTF-8.
package extract

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUnsupportedFormat is returned for filenames whose extension has
	// no extractor.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrExtractionFailed is returned when a supported document cannot be
	// parsed.
	ErrExtractionFailed = errors.New("extraction failed")
)

// Format identifies a supported document format.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

// formats maps lowercase extensions to formats.
var formats = map[string]Format{
	".pdf":      FormatPDF,
	".docx":     FormatDOCX,
	".txt":      FormatText,
	".text":     FormatText,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
}

// FormatOf returns the format of filename, or ErrUnsupportedFormat.
func FormatOf(filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	f, ok := formats[ext]
	if !ok {
		return "", fmt.Errorf("extract: %w: %q", ErrUnsupportedFormat, ext)
	}
	return f, nil
}

// ContentType returns the MIME type served for filename.
func ContentType(filename string) string {
	switch f, _ := FormatOf(filename); f {
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	}
	if t := mime.TypeByExtension(filepath.Ext(filename)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Extractor converts document bytes to plain text.
type Extractor struct {
	runner CommandRunner
}

// New returns an Extractor that runs pdftotext from PATH.
func New() *Extractor {
	return &Extractor{runner: ExecRunner{}}
}

// NewWithRunner returns an Extractor using runner for external tools.
func NewWithRunner(runner CommandRunner) *Extractor {
	return &Extractor{runner: runner}
}

// Extract returns the plain text of data, choosing the parser by the
// extension of filename. An empty document yields empty text.
func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	format, err := FormatOf(filename)
	if err != nil {
		return "", err
	}

	switch format {
	case FormatPDF:
		return e.extractPDF(ctx, data)
	case FormatDOCX:
		return extractDOCX(data)
	default:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("extract: %w: %s is not valid UTF-8", ErrExtractionFailed, filename)
		}
		return strings.TrimPrefix(string(data), "\ufeff"), nil
	}
}
