// Package ingestion turns an uploaded document into searchable fragments.
// A document flows extract → chunk → blob put → fragment upsert → metadata
// row, and the metadata row is written only after every fragment is indexed.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/docqa-go/internal/blob"
	"github.com/54b3r/docqa-go/internal/chunker"
	"github.com/54b3r/docqa-go/internal/extract"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/rag"
	"github.com/54b3r/docqa-go/internal/store"
)

// ErrInvalidUpload is returned for uploads missing an owner or filename.
var ErrInvalidUpload = errors.New("ingestion: invalid upload")

// Extractor converts document bytes to plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte, filename string) (string, error)
}

// Config holds the chunking window of the pipeline.
type Config struct {
	// ChunkSize is the fragment length in characters. Defaults to
	// chunker.DefaultSize if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared by consecutive
	// fragments. Negative means chunker.DefaultOverlap.
	ChunkOverlap int
}

// Upload is one document handed to the pipeline.
type Upload struct {
	OwnerID  string
	Filename string
	Data     []byte

	// DocumentID is generated when empty.
	DocumentID string
}

// Result describes an ingested document.
type Result struct {
	Document  store.Document
	Fragments int
}

// Pipeline orchestrates ingestion across the extractor, the blob store, the
// vector index and the metadata store.
type Pipeline struct {
	extractor Extractor
	index     rag.Index
	blobs     blob.Store
	docs      store.DocumentStore
	size      int
	overlap   int
	now       func() time.Time
}

// NewPipeline constructs a Pipeline. The chunk window is validated here so
// a misconfiguration fails at startup.
func NewPipeline(extractor Extractor, index rag.Index, blobs blob.Store, docs store.DocumentStore, cfg *Config) (*Pipeline, error) {
	if extractor == nil || index == nil || blobs == nil || docs == nil {
		return nil, fmt.Errorf("ingestion: extractor, index, blob store and document store are required")
	}
	if cfg == nil {
		cfg = &Config{ChunkOverlap: -1}
	}
	size, overlap := cfg.ChunkSize, cfg.ChunkOverlap
	if size == 0 {
		size = chunker.DefaultSize
	}
	if overlap < 0 {
		overlap = chunker.DefaultOverlap
	}
	if err := chunker.Validate(size, overlap); err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}
	return &Pipeline{
		extractor: extractor,
		index:     index,
		blobs:     blobs,
		docs:      docs,
		size:      size,
		overlap:   overlap,
		now:       time.Now,
	}, nil
}

// Ingest stores and indexes one document. Extraction and chunking happen
// before any store is touched, so ErrUnsupportedFormat and
// ErrExtractionFailed, including a file with no text, leave nothing behind. Later failures are returned
// as-is without rolling back earlier writes; document deletion cleans up
// any fragments or blob left over.
func (p *Pipeline) Ingest(ctx context.Context, up Upload) (Result, error) {
	log := logging.FromContext(ctx)

	if strings.TrimSpace(up.OwnerID) == "" || strings.TrimSpace(up.Filename) == "" {
		return Result{}, fmt.Errorf("%w: owner and filename are required", ErrInvalidUpload)
	}
	docID := up.DocumentID
	if docID == "" {
		docID = uuid.NewString()
	}

	text, err := p.extractor.Extract(ctx, up.Data, up.Filename)
	if err != nil {
		return Result{}, fmt.Errorf("ingestion: %s: %w", up.Filename, err)
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("ingestion: %s: %w: no text could be extracted", up.Filename, extract.ErrExtractionFailed)
	}
	fragments, err := chunker.Chunk(text, p.size, p.overlap)
	if err != nil {
		return Result{}, fmt.Errorf("ingestion: %w", err)
	}

	key := blob.Key(up.OwnerID, docID, up.Filename)
	if err := p.blobs.Put(ctx, key, up.Data, extract.ContentType(up.Filename)); err != nil {
		return Result{}, fmt.Errorf("ingestion: store blob: %w", err)
	}

	if err := p.index.Upsert(ctx, up.OwnerID, docID, up.Filename, fragments); err != nil {
		log.Warn("ingestion: indexing failed after blob write",
			slog.String("document_id", docID),
			slog.String("blob_key", key),
			slog.Any("error", err),
		)
		return Result{}, fmt.Errorf("ingestion: index fragments: %w", err)
	}

	doc := store.Document{
		ID:          docID,
		OwnerID:     up.OwnerID,
		Filename:    up.Filename,
		StoragePath: key,
		CreatedAt:   p.now().UTC(),
	}
	if err := p.docs.Create(ctx, doc); err != nil {
		log.Warn("ingestion: metadata write failed after indexing",
			slog.String("document_id", docID),
			slog.Int("fragments", len(fragments)),
			slog.Any("error", err),
		)
		return Result{}, fmt.Errorf("ingestion: save metadata: %w", err)
	}

	log.Info("ingestion: document ingested",
		slog.String("owner_id", up.OwnerID),
		slog.String("document_id", docID),
		slog.String("filename", up.Filename),
		slog.Int("bytes", len(up.Data)),
		slog.Int("fragments", len(fragments)),
	)
	return Result{Document: doc, Fragments: len(fragments)}, nil
}
