package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
)

// pdfMagic is the header every PDF file starts with.
var pdfMagic = []byte("%PDF-")

// extractPDF writes data to a temporary file and runs pdftotext on it,
// reading the text from stdout. Form feeds between pages become newlines.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) (string, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), pdfMagic) {
		return "", fmt.Errorf("extract: %w: missing PDF header", ErrExtractionFailed)
	}

	f, err := os.CreateTemp("", "docqa-*.pdf")
	if err != nil {
		return "", fmt.Errorf("extract: create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("extract: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("extract: close temp file: %w", err)
	}

	out, err := e.runner.Run(ctx, pdfTool, "-enc", "UTF-8", "-q", f.Name(), "-")
	if err != nil {
		if errors.Is(err, ErrPDFToolNotFound) {
			return "", err
		}
		return "", fmt.Errorf("extract: %w: %w", ErrExtractionFailed, err)
	}

	text := bytes.ReplaceAll(out, []byte("\f"), []byte("\n"))
	return string(bytes.TrimSpace(text)), nil
}
