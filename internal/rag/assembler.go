package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/54b3r/docqa-go/internal/budget"
)

// snippetLength is the number of characters of a fragment shown on the
// single-line snippet of a context block.
const snippetLength = 200

// Assembler turns a question into a formatted context block of the owner's
// most relevant fragments.
type Assembler struct {
	index Index

	// defaultTopK is used when Assemble is called with topK <= 0.
	defaultTopK int

	// maxContextTokens caps the rendered context. Zero disables the cap.
	maxContextTokens int
}

// NewAssembler constructs an Assembler over index.
func NewAssembler(index Index, defaultTopK, maxContextTokens int) (*Assembler, error) {
	if index == nil {
		return nil, fmt.Errorf("rag: index must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 6
	}
	return &Assembler{index: index, defaultTopK: defaultTopK, maxContextTokens: maxContextTokens}, nil
}

// Assemble queries the index and renders the results in rank order. Zero
// results yield an empty context and no error.
func (a *Assembler) Assemble(ctx context.Context, ownerID, question string, topK int) (string, error) {
	results, err := a.Retrieve(ctx, ownerID, question, topK)
	if err != nil {
		return "", err
	}
	return a.render(question, results), nil
}

// Retrieve returns the ranked fragments Assemble would render.
func (a *Assembler) Retrieve(ctx context.Context, ownerID, question string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = a.defaultTopK
	}
	return a.index.Query(ctx, ownerID, question, topK)
}

func (a *Assembler) render(question string, results []Result) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = FormatBlock(i, r)
	}
	n := budget.FitBlocks(question, blocks, a.maxContextTokens)
	return strings.Join(blocks[:n], "\n\n")
}

// FormatContext renders results as labeled blocks separated by a blank line.
func FormatContext(results []Result) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = FormatBlock(i, r)
	}
	return strings.Join(blocks, "\n\n")
}

// FormatBlock renders one ranked fragment. ordinal is its zero-based rank.
func FormatBlock(ordinal int, r Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[DOC %d]\n", ordinal)
	fmt.Fprintf(&b, "Filename: %s\n", r.Filename)
	fmt.Fprintf(&b, "Doc ID: %s\n", r.DocumentID)
	fmt.Fprintf(&b, "Snippet: %s\n", Snippet(r.Text))
	b.WriteString("Full Text:\n")
	b.WriteString(r.Text)
	return b.String()
}

// Snippet returns the first 200 characters of text on a single line.
func Snippet(text string) string {
	runes := []rune(text)
	if len(runes) > snippetLength {
		runes = runes[:snippetLength]
	}
	return newlines.Replace(string(runes))
}

var newlines = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")
