package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantPinger checks a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to check.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// FuncPinger adapts a Ping method of a store (pgvector, blob, SQLite) to
// the Pinger interface.
type FuncPinger struct {
	name string
	ping func(context.Context) error
}

// NewFuncPinger returns a Pinger named name that calls ping.
func NewFuncPinger(name string, ping func(context.Context) error) *FuncPinger {
	return &FuncPinger{name: name, ping: ping}
}

// Name returns the dependency label used in readiness responses.
func (p *FuncPinger) Name() string { return p.name }

// Ping calls the wrapped function.
func (p *FuncPinger) Ping(ctx context.Context) error { return p.ping(ctx) }

// HTTPPinger checks an HTTP dependency (such as an Ollama server) with a
// GET request. Any 2xx response counts as healthy. No tokens are spent.
type HTTPPinger struct {
	name   string
	url    string
	client *http.Client
}

// NewHTTPPinger returns a Pinger that GETs url.
func NewHTTPPinger(name, url string) *HTTPPinger {
	return &HTTPPinger{name: name, url: url, client: http.DefaultClient}
}

// Name returns the dependency label used in readiness responses.
func (p *HTTPPinger) Name() string { return p.name }

// Ping performs the GET request.
func (p *HTTPPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", strings.TrimRight(p.url, "/"), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("GET %s: status %d", p.url, resp.StatusCode)
	}
	return nil
}
