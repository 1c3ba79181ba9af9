package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/54b3r/docqa-go/internal/extract"
	"github.com/54b3r/docqa-go/internal/ingestion"
	"github.com/54b3r/docqa-go/internal/lifecycle"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/store"
)

// uploadField is the multipart form field carrying the document.
const uploadField = "file"

// handleUpload handles POST /api/documents. The document is stored, chunked
// and indexed before the response is sent.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("multipart field %q is required", uploadField)})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.Ingester.Ingest(r.Context(), ingestion.Upload{
		OwnerID:  owner,
		Filename: header.Filename,
		Data:     data,
	})
	if err != nil {
		s.metrics.documentsIngestedTotal.WithLabelValues(outcomeError).Inc()
		writeError(w, r, err)
		return
	}
	s.metrics.documentsIngestedTotal.WithLabelValues(outcomeOK).Inc()
	s.metrics.fragmentsIngestedTotal.Add(float64(res.Fragments))

	writeJSON(w, r, http.StatusCreated, uploadResponse{
		OwnerID:   owner,
		DocID:     res.Document.ID,
		Filename:  res.Document.Filename,
		Fragments: res.Fragments,
	})
}

// handleList handles GET /api/documents, newest first.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	docs, err := s.deps.Documents.List(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentResponse{ID: d.ID, Filename: d.Filename, CreatedAt: d.CreatedAt})
	}
	writeJSON(w, r, http.StatusOK, out)
}

// lookup returns the caller's document named by the {id} path value.
// Documents of other owners are reported as not found.
func (s *Server) lookup(r *http.Request) (store.Document, error) {
	return s.deps.Documents.Get(r.Context(), ownerFrom(r.Context()), r.PathValue("id"))
}

// handleDownload handles GET /api/documents/{id} by streaming the stored
// original.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	doc, err := s.lookup(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := s.deps.Blobs.Get(r.Context(), doc.StoragePath)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", extract.ContentType(doc.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": doc.Filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logging.FromContext(r.Context()).Warn("download write error", slog.Any("error", err))
	}
}

// handleText handles GET /api/documents/{id}/text by re-extracting the
// stored original.
func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	doc, err := s.lookup(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := s.deps.Blobs.Get(r.Context(), doc.StoragePath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	text, err := s.deps.Extractor.Extract(r.Context(), data, doc.Filename)
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("%s: %w: no text could be extracted", doc.Filename, extract.ErrExtractionFailed)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, textResponse{ID: doc.ID, Filename: doc.Filename, Text: text})
}

// handleDelete handles DELETE /api/documents/{id}. Ownership is checked
// against the metadata record before any store is touched. A failed step
// is reported in the error body so the caller can retry.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	doc, err := s.lookup(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Deleter.Delete(r.Context(), doc); err != nil {
		if step, ok := lifecycle.FailedStep(err); ok {
			s.metrics.deletionFailuresTotal.WithLabelValues(string(step)).Inc()
		}
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
