package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/docqa-go/internal/citation"
	"github.com/54b3r/docqa-go/internal/logging"
)

// ndjsonContentType is the media type of the chat event stream.
const ndjsonContentType = "application/x-ndjson"

// handleChat handles POST /api/chat. The answer is streamed as one JSON
// event per line ({"type":"chunk"|"citations"|"error","data":...}) and
// flushed after every event. A client disconnect cancels the model stream.
// When ChatTimeout elapses the stream ends with an error event.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "question is required"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "streaming not supported"})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	if s.cfg.ChatTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ChatTimeout)
		defer cancel()
	}

	s.metrics.chatActiveStreams.Inc()
	defer s.metrics.chatActiveStreams.Dec()
	start := time.Now()
	outcome := outcomeOK
	defer func() {
		s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
		s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	events, err := s.deps.Chat.Stream(ctx, ownerFrom(r.Context()), req.Question)
	if err != nil {
		outcome = outcomeError
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", ndjsonContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	var citations int
	for ev := range events {
		switch ev.Kind {
		case citation.KindCitation:
			citations++
			s.metrics.citationsTotal.Inc()
		case citation.KindError:
			if errors.Is(ev.Err, citation.ErrMalformedCitation) {
				s.metrics.malformedCitationsTotal.Inc()
				log.Warn("chat: malformed citation", slog.Any("error", ev.Err))
			} else {
				outcome = outcomeError
				log.Error("chat: model stream failed", slog.Any("error", ev.Err))
			}
		}
		if err := enc.Encode(ev); err != nil {
			// Client went away; stop the model and let Demux close the channel.
			cancel()
			for range events {
			}
			break
		}
		flusher.Flush()
	}

	switch {
	case r.Context().Err() != nil:
		outcome = outcomeCanceled
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		outcome = outcomeTimeout
		timeout := citation.Error(fmt.Errorf("answer exceeded the %s time limit", s.cfg.ChatTimeout))
		if err := enc.Encode(timeout); err == nil {
			flusher.Flush()
		}
	}

	log.Info("chat: stream finished",
		slog.String("outcome", outcome),
		slog.Int("citations", citations),
		slog.Duration("duration", time.Since(start)),
	)
}
