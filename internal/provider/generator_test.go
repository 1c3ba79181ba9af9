package provider

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// fakeModel streams a fixed set of message chunks, optionally ending with
// an error.
type fakeModel struct {
	chunks    []string
	streamErr error
	tailErr   error

	gotInput []*schema.Message
}

func (f *fakeModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.gotInput = input
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	sr, sw := schema.Pipe[*schema.Message](len(f.chunks) + 1)
	go func() {
		defer sw.Close()
		for _, c := range f.chunks {
			sw.Send(schema.AssistantMessage(c, nil), nil)
		}
		if f.tailErr != nil {
			sw.Send(nil, f.tailErr)
		}
	}()
	return sr, nil
}

func drain(t *testing.T, s *Stream) ([]string, error) {
	t.Helper()
	defer s.Close()
	var out []string
	for {
		inc, err := s.Recv()
		if err != nil {
			return out, err
		}
		out = append(out, inc)
	}
}

func TestGenerator_StreamsIncrements(t *testing.T) {
	t.Parallel()

	m := &fakeModel{chunks: []string{"The cat ", "", "is fluffy."}}
	s, err := NewGenerator(m).Generate(context.Background(), "prompt text")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	got, err := drain(t, s)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("final error = %v, want io.EOF", err)
	}
	want := []string{"The cat ", "is fluffy."}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("increments = %q, want %q (empty chunks skipped)", got, want)
	}

	if len(m.gotInput) != 1 || m.gotInput[0].Role != schema.User || m.gotInput[0].Content != "prompt text" {
		t.Errorf("model input = %+v, want a single user message", m.gotInput)
	}
}

func TestGenerator_StartFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	_, err := NewGenerator(&fakeModel{streamErr: boom}).Generate(context.Background(), "q")
	if !errors.Is(err, boom) {
		t.Fatalf("Generate error = %v, want wrapped %v", err, boom)
	}
}

func TestGenerator_MidStreamError(t *testing.T) {
	t.Parallel()

	boom := errors.New("upstream reset")
	s, err := NewGenerator(&fakeModel{chunks: []string{"partial"}, tailErr: boom}).Generate(context.Background(), "q")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	got, err := drain(t, s)
	if !errors.Is(err, boom) {
		t.Fatalf("final error = %v, want %v", err, boom)
	}
	if len(got) != 1 || got[0] != "partial" {
		t.Errorf("increments = %q, want [partial]", got)
	}
}
