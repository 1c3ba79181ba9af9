package embedder

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ── Ollama ──────────────────────────────────────────────────────────────────

func TestOllamaEmbedder_Embed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "nomic-embed-text" || len(req.Input) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = w.Write([]byte(`{"embeddings":[[1,0],[0,1]]}`))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL + "/", Model: "nomic-embed-text"})
	got, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 2 || got[1][1] != 1 {
		t.Errorf("got %v", got)
	}
}

func TestOllamaEmbedder_ErrorMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"nope\" not found"}`))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nope"})
	_, err := e.Embed(context.Background(), []string{"a"})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v, want backend message", err)
	}
}

func TestOllamaEmbedder_CountMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[1,0]]}`))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "m"})
	if _, err := e.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("expected error for missing embeddings")
	}
}

// ── OpenAI ──────────────────────────────────────────────────────────────────

func TestOpenAIEmbedder_ReordersByIndex(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[2]},{"index":0,"embedding":[1]}]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "text-embedding-3-small"})
	got, err := e.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got[0][0] != 1 || got[1][0] != 2 {
		t.Errorf("embeddings not placed by index: %v", got)
	}
}

func TestOpenAIEmbedder_Azure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/deployments/embed-small/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("api-version") != "2025-04-01-preview" {
			t.Errorf("api-version = %q", r.URL.Query().Get("api-version"))
		}
		if r.Header.Get("api-key") != "azkey" {
			t.Errorf("api-key header missing")
		}
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL:    srv.URL + "/openai",
		APIKey:     "azkey",
		Model:      "embed-small",
		Azure:      true,
		APIVersion: "2025-04-01-preview",
	})
	if _, err := e.Embed(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("Embed: %v", err)
	}
}

func TestOpenAIEmbedder_ErrorMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "bad", Model: "m"})
	_, err := e.Embed(context.Background(), []string{"x"})
	if err == nil || !strings.Contains(err.Error(), "Incorrect API key") {
		t.Errorf("err = %v", err)
	}
}

// ── Cached ──────────────────────────────────────────────────────────────────

type countingEmbedder struct{ calls atomic.Int32 }

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestCached_MemoizesQueries(t *testing.T) {
	t.Parallel()

	inner := &countingEmbedder{}
	c := NewCached(inner, time.Minute)
	ctx := context.Background()

	for range 3 {
		got, err := c.EmbedQuery(ctx, "what is in my lease?")
		if err != nil {
			t.Fatal(err)
		}
		if got[0] != float32(len("what is in my lease?")) {
			t.Errorf("unexpected vector %v", got)
		}
	}
	if n := inner.calls.Load(); n != 1 {
		t.Errorf("inner called %d times, want 1", n)
	}
}

func TestCached_FragmentsNeverCached(t *testing.T) {
	t.Parallel()

	inner := &countingEmbedder{}
	c := NewCached(inner, time.Minute)
	ctx := context.Background()

	// A single-fragment document arrives as a one-element batch.
	for _, batch := range [][]string{{"only fragment"}, {"only fragment"}, {"a", "b"}} {
		if _, err := c.Embed(ctx, batch); err != nil {
			t.Fatal(err)
		}
	}
	if n := inner.calls.Load(); n != 3 {
		t.Errorf("inner called %d times, want 3", n)
	}
	if c.Len() != 0 {
		t.Errorf("%d fragments were cached", c.Len())
	}
}

// ── Factory / validation ────────────────────────────────────────────────────

func TestDefaultDimensions(t *testing.T) {
	t.Setenv("EMBEDDING_DIMENSIONS", "")
	cases := map[string]int{"ollama": 768, "gemini": 768, "openai": 1536, "azure": 1536}
	for backend, want := range cases {
		if got := DefaultDimensions(backend); got != want {
			t.Errorf("DefaultDimensions(%s) = %d, want %d", backend, got, want)
		}
	}

	t.Setenv("EMBEDDING_DIMENSIONS", "384")
	if got := DefaultDimensions("ollama"); got != 384 {
		t.Errorf("override ignored: %d", got)
	}
}

func TestNewFromEnv_Backends(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "")
	t.Setenv("MODEL_PROVIDER", "")
	t.Setenv("EMBEDDING_CACHE_TTL", "0")

	e, err := NewFromEnv(context.Background())
	if err != nil {
		t.Fatalf("default backend: %v", err)
	}
	if _, ok := e.(*OllamaEmbedder); !ok {
		t.Errorf("default backend = %T, want *OllamaEmbedder", e)
	}

	t.Setenv("EMBEDDING_CACHE_TTL", "5m")
	e, err = NewFromEnv(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*Cached); !ok {
		t.Errorf("with cache TTL got %T, want *Cached", e)
	}

	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("EMBEDDING_API_KEY", "")
	if _, err := NewFromEnv(context.Background()); err == nil {
		t.Error("expected error for openai without key")
	}

	t.Setenv("EMBEDDING_PROVIDER", "bogus")
	if _, err := NewFromEnv(context.Background()); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "azure")
	t.Setenv("EMBEDDING_API_KEY", "k")
	t.Setenv("AZURE_OPENAI_API_KEY", "")
	t.Setenv("EMBEDDING_ENDPOINT", "")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "")
	if err := Validate(discardLogger()); err == nil || !strings.Contains(err.Error(), "endpoint") {
		t.Errorf("err = %v, want missing endpoint", err)
	}

	t.Setenv("EMBEDDING_PROVIDER", "gemini")
	t.Setenv("GOOGLE_API_KEY", "g")
	if err := Validate(discardLogger()); err != nil {
		t.Errorf("gemini with key: %v", err)
	}
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()

	for _, m := range []string{"gpt-4o", "llama3:8b", "gemini-1.5-flash"} {
		if !looksLikeChatModel(m) {
			t.Errorf("%s should look like a chat model", m)
		}
	}
	for _, m := range []string{"nomic-embed-text", "text-embedding-3-small", "text-embedding-004"} {
		if looksLikeChatModel(m) {
			t.Errorf("%s should not look like a chat model", m)
		}
	}
}
