// Package audit logs one structured entry per docqa command: the command,
// its config file, and the backend settings in effect. Credentials, DSNs
// and the token signing secret appear only as "set" or "unset".
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// secretEnvKeys are never logged by value.
var secretEnvKeys = map[string]bool{
	"OPENAI_API_KEY":       true,
	"AZURE_OPENAI_API_KEY": true,
	"ARK_API_KEY":          true,
	"GOOGLE_API_KEY":       true,
	"EMBEDDING_API_KEY":    true,
	"QDRANT_API_KEY":       true,
	"PGVECTOR_DSN":         true,
	"BLOB_ACCESS_KEY":      true,
	"BLOB_SECRET_KEY":      true,
	"DOCQA_JWT_SECRET":     true,
	"LANGFUSE_PUBLIC_KEY":  true,
	"LANGFUSE_SECRET_KEY":  true,
}

// LogCommandStart records which command ran, where its configuration came
// from, and the backend settings it will use, grouped by concern.
func LogCommandStart(log *slog.Logger, command string, configPath string) {
	attrs := []slog.Attr{
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	}
	for _, g := range auditGroups {
		values := make([]any, 0, len(g.keys))
		for _, k := range g.keys {
			values = append(values, slog.String(k, SanitiseKey(k, os.Getenv(k))))
		}
		attrs = append(attrs, slog.Group(g.name, values...))
	}
	log.LogAttrs(context.Background(), slog.LevelInfo, "audit: command start", attrs...)
}

// auditGroups lists the environment variables included in every audit
// entry. Whether a value is redacted is decided by secretEnvKeys alone.
var auditGroups = []struct {
	name string
	keys []string
}{
	{"model", []string{
		"MODEL_PROVIDER", "OLLAMA_HOST", "OLLAMA_MODEL", "OPENAI_API_KEY", "OPENAI_MODEL",
		"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT",
		"ARK_API_KEY", "ARK_MODEL", "GOOGLE_API_KEY", "GEMINI_MODEL",
	}},
	{"embedding", []string{"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_API_KEY"}},
	{"index", []string{
		"VECTOR_BACKEND", "QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION", "QDRANT_API_KEY", "PGVECTOR_DSN",
	}},
	{"blob", []string{"BLOB_BACKEND", "BLOB_ENDPOINT", "BLOB_BUCKET", "BLOB_ACCESS_KEY", "BLOB_SECRET_KEY"}},
	{"metadata", []string{"DOCQA_DB"}},
	{"server", []string{"DOCQA_JWT_SECRET"}},
	{"logging", []string{"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE"}},
	{"tracing", []string{"LANGFUSE_PUBLIC_KEY", "LANGFUSE_SECRET_KEY"}},
}

// SanitiseKey returns "set" or "unset" for known secret keys, or the actual
// value for non-secret keys. This is safe to use in log messages.
func SanitiseKey(key, value string) string {
	if secretEnvKeys[key] {
		return presence(value)
	}
	return valOrUnset(value)
}

// presence returns "set" if the value is non-empty, "unset" otherwise.
func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// valOrUnset returns the value if non-empty, "unset" otherwise.
func valOrUnset(v string) string {
	if v != "" {
		return v
	}
	return "unset"
}

// sanitiseConfigPath returns the config path or "none" if empty.
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	// Redact home directory for privacy in logs.
	home, err := os.UserHomeDir()
	if err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
