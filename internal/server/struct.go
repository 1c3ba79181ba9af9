package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/docqa-go/internal/citation"
	"github.com/54b3r/docqa-go/internal/ingestion"
	"github.com/54b3r/docqa-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Must exceed ChatTimeout so streams are not cut by the server.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// ChatTimeout caps the duration of a single /api/chat stream. Zero
	// disables the cap.
	ChatTimeout time.Duration
	// MaxUploadBytes caps the size of an uploaded document (default: 32 MiB).
	MaxUploadBytes int64
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency checks run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per caller on
	// rate-limited endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per caller. Defaults to 20 if zero.
	RateBurst int
	// JWTSecret verifies HS256 bearer tokens whose subject is the owner id.
	// If empty, authentication is disabled and every request acts as
	// LocalOwner.
	JWTSecret string
	// LocalOwner is the owner used when authentication is disabled
	// (default: "local").
	LocalOwner string
	// MetricsRegistry receives the server's collectors. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// ingester stores and indexes an uploaded document.
type ingester interface {
	Ingest(ctx context.Context, up ingestion.Upload) (ingestion.Result, error)
}

// extractor re-extracts text from a stored blob.
type extractor interface {
	Extract(ctx context.Context, data []byte, filename string) (string, error)
}

// deleter removes a document from every store.
type deleter interface {
	Delete(ctx context.Context, doc store.Document) error
}

// blobReader reads stored document bytes.
type blobReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// documentReader looks up document metadata.
type documentReader interface {
	Get(ctx context.Context, ownerID, id string) (store.Document, error)
	List(ctx context.Context, ownerID string) ([]store.Document, error)
}

// answerer streams an answer as citation events.
type answerer interface {
	Stream(ctx context.Context, ownerID, question string) (<-chan citation.Event, error)
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Ingester  ingester
	Extractor extractor
	Deleter   deleter
	Blobs     blobReader
	Documents documentReader
	Chat      answerer
}

// Server is the HTTP API over the document and chat services.
type Server struct {
	deps Deps
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency checks for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors for this server instance.
	metrics *serverMetrics
	// stopRL drops the rate limiter buckets on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
}

// uploadResponse is the JSON response for POST /api/documents.
type uploadResponse struct {
	OwnerID   string `json:"owner_id"`
	DocID     string `json:"doc_id"`
	Filename  string `json:"filename"`
	Fragments int    `json:"fragments"`
}

// documentResponse is one entry of GET /api/documents.
type documentResponse struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}

// textResponse is the JSON response for GET /api/documents/{id}/text.
type textResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// errorResponse is the JSON body of every non-streaming error.
type errorResponse struct {
	Error string `json:"error"`
	// Step names the failed deletion step, if any.
	Step string `json:"step,omitempty"`
}
