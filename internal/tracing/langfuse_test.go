package tracing

import (
	"log/slog"
	"testing"
)

func TestSetup_DisabledWithoutKeys(t *testing.T) {
	t.Setenv("LANGFUSE_PUBLIC_KEY", "")
	t.Setenv("LANGFUSE_SECRET_KEY", "sk-lf-test")

	handler, flush, ok := Setup()
	if ok || handler != nil || flush != nil {
		t.Errorf("Setup() = %v, %v, %v; want disabled", handler, flush != nil, ok)
	}
}

func TestEnable_NoopFlush(t *testing.T) {
	t.Setenv("LANGFUSE_PUBLIC_KEY", "")
	t.Setenv("LANGFUSE_SECRET_KEY", "")

	flush := Enable(slog.Default())
	if flush == nil {
		t.Fatal("Enable returned nil flush")
	}
	flush()
}
