package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/citation"
	"github.com/54b3r/docqa-go/internal/rag/ragtest"
)

// fakeOllama serves /api/embed with word-hash vectors.
func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	emb := ragtest.NewWordEmbedder()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		vecs, err := emb.Embed(r.Context(), req.Input)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vecs})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// localEnv points every backend at temporary local storage.
func localEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("DOCQA_CONFIG", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FILE", "")
	t.Setenv("MODEL_PROVIDER", "ollama")
	t.Setenv("EMBEDDING_PROVIDER", "ollama")
	t.Setenv("EMBEDDING_ENDPOINT", fakeOllama(t).URL)
	t.Setenv("EMBEDDING_DIMENSIONS", "64")
	t.Setenv("EMBEDDING_CACHE_TTL", "0")
	t.Setenv("VECTOR_BACKEND", "memory")
	t.Setenv("BLOB_BACKEND", "dir")
	t.Setenv("BLOB_DIR", filepath.Join(dir, "blobs"))
	t.Setenv("DOCQA_DB", filepath.Join(dir, "docqa.db"))
	t.Setenv("CHUNK_SIZE", "40")
	t.Setenv("CHUNK_OVERLAP", "10")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestIngestListDelete(t *testing.T) {
	localEnv(t)

	doc := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(doc, []byte("# Notes\n\nThe cat is fluffy. Invoices are due in thirty days."), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "ingest", "--owner", "alice", "--file", doc)
	if err != nil {
		t.Fatalf("ingest: %v\n%s", err, out)
	}
	fields := strings.Split(strings.TrimSpace(out), "\t")
	if len(fields) != 3 || fields[1] != "notes.md" {
		t.Fatalf("unexpected ingest output %q", out)
	}
	docID := fields[0]

	out, err = run(t, "list", "--owner", "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, docID) {
		t.Errorf("list output missing %s:\n%s", docID, out)
	}

	out, err = run(t, "list", "--owner", "bob")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(out, docID) {
		t.Errorf("bob sees alice's document:\n%s", out)
	}

	if _, err := run(t, "delete", "--owner", "bob", docID); err == nil {
		t.Error("bob deleted alice's document")
	}
	if out, err := run(t, "delete", "--owner", "alice", docID); err != nil {
		t.Fatalf("delete: %v\n%s", err, out)
	}
	out, _ = run(t, "list", "--owner", "alice")
	if strings.Contains(out, docID) {
		t.Errorf("document still listed after delete:\n%s", out)
	}
}

func TestIngest_RequiresOwnerAndFile(t *testing.T) {
	localEnv(t)

	if _, err := run(t, "ingest", "--file", "x.txt"); err == nil || !strings.Contains(err.Error(), "--owner") {
		t.Errorf("missing owner: err = %v", err)
	}
	if _, err := run(t, "ingest", "--owner", "alice"); err == nil {
		t.Error("expected error without --file")
	}
}

func TestDelete_UnknownStep(t *testing.T) {
	localEnv(t)

	_, err := run(t, "delete", "--owner", "alice", "--from", "vectors", "doc-1")
	if err == nil || !strings.Contains(err.Error(), "unknown step") {
		t.Errorf("err = %v", err)
	}
}

func TestVersion(t *testing.T) {
	localEnv(t)

	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "docqa dev") {
		t.Errorf("version output %q", out)
	}
}

func TestPrintAnswer(t *testing.T) {
	t.Parallel()

	events := make(chan citation.Event, 5)
	events <- citation.Text("The cat is fluffy.")
	events <- citation.Cite(citation.Citation{DocID: "1", Filename: "a.pdf", Snippet: "s"})
	events <- citation.Error(citation.ErrMalformedCitation)
	close(events)

	cmd := &cobra.Command{}
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	if err := printAnswer(cmd, events); err != nil {
		t.Fatalf("printAnswer: %v", err)
	}
	if !strings.Contains(out.String(), "The cat is fluffy.") || !strings.Contains(out.String(), "[1] a.pdf (doc 1): s") {
		t.Errorf("stdout = %q", out.String())
	}
	if !strings.Contains(errOut.String(), "warning:") {
		t.Errorf("malformed citation not reported: %q", errOut.String())
	}
}

func TestPrintAnswer_ModelFailure(t *testing.T) {
	t.Parallel()

	events := make(chan citation.Event, 2)
	events <- citation.Text("partial")
	events <- citation.Error(citation.ErrModelStreamFailed)
	close(events)

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	if err := printAnswer(cmd, events); !errors.Is(err, citation.ErrModelStreamFailed) {
		t.Errorf("err = %v, want ErrModelStreamFailed", err)
	}
}
