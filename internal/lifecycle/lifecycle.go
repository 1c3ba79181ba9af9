// Package lifecycle removes a document from every store it lives in.
//
// Deletion runs in a fixed order: vector index, then blob, then metadata
// row. A failure stops the run and is reported as a *StepError naming the
// step; earlier steps are not rolled back, and Resume picks up from the
// failed step. Every step is idempotent, so repeating one is always safe.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/54b3r/docqa-go/internal/blob"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/rag"
	"github.com/54b3r/docqa-go/internal/store"
)

// Step names one deletion step.
type Step string

const (
	StepIndex    Step = "index"
	StepBlob     Step = "blob"
	StepMetadata Step = "metadata"
)

// Steps lists the deletion steps in execution order.
var Steps = []Step{StepIndex, StepBlob, StepMetadata}

// StepError reports the step a deletion stopped at.
type StepError struct {
	Step       Step
	DocumentID string
	Err        error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("lifecycle: delete %s: %s step failed: %v", e.DocumentID, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// FailedStep returns the step err stopped at, if err is a StepError.
func FailedStep(err error) (Step, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step, true
	}
	return "", false
}

// Manager deletes documents across the index, blob and metadata stores.
type Manager struct {
	index rag.Index
	blobs blob.Store
	docs  store.DocumentStore
}

// NewManager constructs a Manager.
func NewManager(index rag.Index, blobs blob.Store, docs store.DocumentStore) (*Manager, error) {
	if index == nil || blobs == nil || docs == nil {
		return nil, fmt.Errorf("lifecycle: index, blob store and document store are required")
	}
	return &Manager{index: index, blobs: blobs, docs: docs}, nil
}

// Delete removes doc from all three stores. The caller must already have
// checked that doc exists and belongs to doc.OwnerID.
func (m *Manager) Delete(ctx context.Context, doc store.Document) error {
	return m.Resume(ctx, doc, StepIndex)
}

// Resume runs the deletion steps starting at from.
func (m *Manager) Resume(ctx context.Context, doc store.Document, from Step) error {
	start := -1
	for i, s := range Steps {
		if s == from {
			start = i
			break
		}
	}
	if start < 0 {
		return fmt.Errorf("lifecycle: unknown step %q", from)
	}

	log := logging.FromContext(ctx).With(
		slog.String("owner_id", doc.OwnerID),
		slog.String("document_id", doc.ID),
	)
	for _, step := range Steps[start:] {
		if err := m.Run(ctx, doc, step); err != nil {
			log.Error("lifecycle: deletion step failed",
				slog.String("step", string(step)),
				slog.Any("error", err),
			)
			return err
		}
		log.Debug("lifecycle: deletion step done", slog.String("step", string(step)))
	}
	log.Info("lifecycle: document deleted", slog.String("filename", doc.Filename))
	return nil
}

// Run executes a single deletion step.
func (m *Manager) Run(ctx context.Context, doc store.Document, step Step) error {
	var err error
	switch step {
	case StepIndex:
		err = m.index.DeleteByDocument(ctx, doc.OwnerID, doc.ID)
	case StepBlob:
		key := doc.StoragePath
		if key == "" {
			key = blob.Key(doc.OwnerID, doc.ID, doc.Filename)
		}
		err = m.blobs.Delete(ctx, key)
	case StepMetadata:
		err = m.docs.Delete(ctx, doc.OwnerID, doc.ID)
	default:
		return fmt.Errorf("lifecycle: unknown step %q", step)
	}
	if err != nil {
		return &StepError{Step: step, DocumentID: doc.ID, Err: err}
	}
	return nil
}
