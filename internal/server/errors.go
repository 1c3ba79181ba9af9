package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/54b3r/docqa-go/internal/blob"
	"github.com/54b3r/docqa-go/internal/chat"
	"github.com/54b3r/docqa-go/internal/citation"
	"github.com/54b3r/docqa-go/internal/extract"
	"github.com/54b3r/docqa-go/internal/ingestion"
	"github.com/54b3r/docqa-go/internal/lifecycle"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/rag"
	"github.com/54b3r/docqa-go/internal/store"
)

// errorStatus maps an error to its HTTP status and the message shown to
// the client. Server-side failures get a fixed message; the cause is only
// logged.
func errorStatus(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "document too large"
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, extract.ErrExtractionFailed):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, ingestion.ErrInvalidUpload), errors.Is(err, chat.ErrEmptyQuestion):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound, "document not found"
	case errors.Is(err, rag.ErrIndexUnavailable):
		return http.StatusServiceUnavailable, "vector index unavailable"
	case errors.Is(err, blob.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "document storage unavailable"
	case errors.Is(err, store.ErrMetadataUnavailable):
		return http.StatusServiceUnavailable, "metadata store unavailable"
	case errors.Is(err, citation.ErrModelStreamFailed):
		return http.StatusBadGateway, "model unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	}
	return http.StatusInternalServerError, "internal error"
}

// writeError logs err and writes the mapped status. A failed deletion also
// names the step to retry.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	log := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.Int("status", status), slog.Any("error", err))
	} else {
		log.Warn("request rejected", slog.Int("status", status), slog.Any("error", err))
	}

	resp := errorResponse{Error: msg}
	if step, ok := lifecycle.FailedStep(err); ok {
		resp.Step = string(step)
	}
	writeJSON(w, r, status, resp)
}
