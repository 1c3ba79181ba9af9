package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// unsetEnv clears keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: ark
  max_tokens: 1024
  temperature: 0.3
  ark:
    model: doubao-pro
embedding:
  provider: ollama
  model: nomic-embed-text
  cache_ttl: 5m
vector:
  backend: qdrant
  qdrant:
    host: qdrant.internal
    port: 6334
    collection: docqa-fragments
blob:
  backend: minio
  bucket: documents
  use_ssl: true
rag:
  top_k: 8
  chunk_size: 800
server:
  chat_timeout: 2m
  rate_limit: 2.5
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":      "ark",
		"MODEL_MAX_TOKENS":    "1024",
		"MODEL_TEMPERATURE":   "0.3",
		"ARK_MODEL":           "doubao-pro",
		"EMBEDDING_PROVIDER":  "ollama",
		"EMBEDDING_MODEL":     "nomic-embed-text",
		"EMBEDDING_CACHE_TTL": "5m",
		"VECTOR_BACKEND":      "qdrant",
		"QDRANT_HOST":         "qdrant.internal",
		"QDRANT_PORT":         "6334",
		"QDRANT_COLLECTION":   "docqa-fragments",
		"BLOB_BACKEND":        "minio",
		"BLOB_BUCKET":         "documents",
		"BLOB_USE_SSL":        "true",
		"RAG_TOP_K":           "8",
		"CHUNK_SIZE":          "800",
		"CHAT_TIMEOUT":        "2m",
		"RATE_LIMIT":          "2.5",
		"LOG_LEVEL":           "debug",
		"LOG_FORMAT":          "text",
	}
	keys := make([]string, 0, len(checks))
	for k := range checks {
		keys = append(keys, k)
	}
	unsetEnv(t, keys...)

	loaded, err := Load(cfgPath, slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: ollama
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading; it must not be overwritten.
	t.Setenv("MODEL_PROVIDER", "azure")

	if _, err := Load(cfgPath, slog.Default()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("MODEL_PROVIDER"); got != "azure" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "azure", got)
	}
}

func TestLoad_ConfigEnvVar(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "elsewhere.yaml")
	if err := os.WriteFile(cfgPath, []byte("metadata:\n  db_path: /tmp/docqa-test.db\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCQA_CONFIG", cfgPath)
	unsetEnv(t, "DOCQA_DB")

	loaded, err := Load("", slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded %q, want %q", loaded, cfgPath)
	}
	if got := os.Getenv("DOCQA_DB"); got != "/tmp/docqa-test.db" {
		t.Errorf("DOCQA_DB = %q", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgPath, slog.Default()); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := []byte("DOCQA_TEST_FROM_FILE=file\nDOCQA_TEST_ALREADY_SET=file\n")
	if err := os.WriteFile(envPath, content, 0o600); err != nil {
		t.Fatal(err)
	}
	unsetEnv(t, "DOCQA_TEST_FROM_FILE")
	t.Setenv("DOCQA_TEST_ALREADY_SET", "process")

	loaded, err := LoadDotEnv(envPath)
	if err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if loaded != envPath {
		t.Errorf("loaded %q, want %q", loaded, envPath)
	}
	if got := os.Getenv("DOCQA_TEST_FROM_FILE"); got != "file" {
		t.Errorf("DOCQA_TEST_FROM_FILE = %q", got)
	}
	if got := os.Getenv("DOCQA_TEST_ALREADY_SET"); got != "process" {
		t.Errorf("process env overridden by .env: %q", got)
	}
}

func TestLoadDotEnv_Missing(t *testing.T) {
	t.Parallel()

	loaded, err := LoadDotEnv(filepath.Join(t.TempDir(), ".env"))
	if err != nil || loaded != "" {
		t.Errorf("LoadDotEnv(missing) = %q, %v", loaded, err)
	}
}

func TestTypedGetters(t *testing.T) {
	t.Setenv("DOCQA_TEST_INT", "12")
	t.Setenv("DOCQA_TEST_BAD", "twelve")
	t.Setenv("DOCQA_TEST_DUR", "90s")
	t.Setenv("DOCQA_TEST_BOOL", "true")
	t.Setenv("DOCQA_TEST_FLOAT", "0.5")
	unsetEnv(t, "DOCQA_TEST_UNSET")

	if n, err := Int("DOCQA_TEST_INT", 1); err != nil || n != 12 {
		t.Errorf("Int = %d, %v", n, err)
	}
	if n, err := Int("DOCQA_TEST_UNSET", 6); err != nil || n != 6 {
		t.Errorf("Int fallback = %d, %v", n, err)
	}
	if _, err := Int("DOCQA_TEST_BAD", 1); err == nil {
		t.Error("expected error for non-integer")
	}
	if d, err := Duration("DOCQA_TEST_DUR", 0); err != nil || d != 90*time.Second {
		t.Errorf("Duration = %v, %v", d, err)
	}
	if _, err := Duration("DOCQA_TEST_BAD", 0); err == nil {
		t.Error("expected error for bad duration")
	}
	if b, err := Bool("DOCQA_TEST_BOOL", false); err != nil || !b {
		t.Errorf("Bool = %v, %v", b, err)
	}
	if f, err := Float("DOCQA_TEST_FLOAT", 0); err != nil || f != 0.5 {
		t.Errorf("Float = %v, %v", f, err)
	}
	if s := String("DOCQA_TEST_UNSET", "fallback"); s != "fallback" {
		t.Errorf("String fallback = %q", s)
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
