package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docqa-go/internal/citation"
	"github.com/54b3r/docqa-go/internal/provider"
	"github.com/54b3r/docqa-go/internal/rag"
	"github.com/54b3r/docqa-go/internal/rag/ragtest"
)

// scriptedModel streams chunks for every prompt and records the prompt it
// was given. With hold set it blocks after the chunks until ctx ends.
type scriptedModel struct {
	chunks   []string
	startErr error
	hold     bool

	prompt string
}

func (m *scriptedModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return nil, errors.New("not implemented")
}

func (m *scriptedModel) Stream(ctx context.Context, in []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.prompt = in[len(in)-1].Content
	sr, sw := schema.Pipe[*schema.Message](0)
	go func() {
		defer sw.Close()
		for _, c := range m.chunks {
			if sw.Send(schema.AssistantMessage(c, nil), nil) {
				return
			}
		}
		if m.hold {
			<-ctx.Done()
			sw.Send(nil, ctx.Err())
		}
	}()
	return sr, nil
}

type staticRetriever struct {
	context string
	err     error

	gotOwner string
	gotTopK  int
}

func (r *staticRetriever) Assemble(_ context.Context, ownerID, _ string, topK int) (string, error) {
	r.gotOwner, r.gotTopK = ownerID, topK
	return r.context, r.err
}

func newService(t *testing.T, r Retriever, m *scriptedModel) *Service {
	t.Helper()
	s, err := NewService(r, provider.NewGenerator(m), 4)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return s
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	p := BuildPrompt("[DOC 1]\nFilename: a.pdf", "What is a cat?")
	if !strings.HasPrefix(p, "Answer the question based on these documents:\n\n[DOC 1]\nFilename: a.pdf\n\nQuestion: What is a cat?\n") {
		t.Errorf("prompt head = %q", p[:min(len(p), 120)])
	}
	if !strings.Contains(p, citation.Marker+`{"doc_id": "...", "filename": "...", "snippet": "..."}`) {
		t.Error("prompt does not show the citation format")
	}
}

func TestBuildPrompt_LiteralPlaceholdersInInput(t *testing.T) {
	t.Parallel()

	// Placeholders inside the context are not expanded again.
	p := BuildPrompt("see {question}", "why?")
	if !strings.Contains(p, "see {question}") {
		t.Error("placeholder in context was substituted")
	}
}

func TestService_StreamsTextAndCitations(t *testing.T) {
	t.Parallel()

	r := &staticRetriever{context: "[DOC 1]\nFilename: a.pdf"}
	m := &scriptedModel{chunks: []string{
		"The cat ",
		`is fluffy. [__CITATIONS__]{"doc_id":"1"`,
		`,"filename":"a.pdf","snippet":"s"}`,
	}}

	events, err := newService(t, r, m).Answer(context.Background(), "alice", "  Is the cat fluffy?  ")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	want := []citation.Event{
		citation.Text("The cat is fluffy."),
		citation.Cite(citation.Citation{DocID: "1", Filename: "a.pdf", Snippet: "s"}),
	}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i].String() != want[i].String() {
			t.Errorf("event %d = %v, want %v", i, events[i], want[i])
		}
	}

	if r.gotOwner != "alice" || r.gotTopK != 4 {
		t.Errorf("retriever called with owner=%q topK=%d", r.gotOwner, r.gotTopK)
	}
	if !strings.Contains(m.prompt, "Question: Is the cat fluffy?\n") {
		t.Errorf("question not trimmed into prompt: %q", m.prompt)
	}
}

func TestService_EmptyQuestion(t *testing.T) {
	t.Parallel()

	_, err := newService(t, &staticRetriever{}, &scriptedModel{}).Stream(context.Background(), "alice", "   ")
	if !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("err = %v, want ErrEmptyQuestion", err)
	}
}

func TestService_RetrievalFailure(t *testing.T) {
	t.Parallel()

	r := &staticRetriever{err: errors.Join(rag.ErrIndexUnavailable, errors.New("qdrant down"))}
	m := &scriptedModel{}
	_, err := newService(t, r, m).Stream(context.Background(), "alice", "q")
	if !errors.Is(err, rag.ErrIndexUnavailable) {
		t.Fatalf("err = %v, want ErrIndexUnavailable", err)
	}
	if m.prompt != "" {
		t.Error("model was called after retrieval failed")
	}
}

func TestService_ModelStartFailure(t *testing.T) {
	t.Parallel()

	_, err := newService(t, &staticRetriever{}, &scriptedModel{startErr: errors.New("401")}).
		Stream(context.Background(), "alice", "q")
	if !errors.Is(err, citation.ErrModelStreamFailed) {
		t.Fatalf("err = %v, want ErrModelStreamFailed", err)
	}
}

func TestService_CancelStopsStream(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	m := &scriptedModel{chunks: []string{"partial answer without a marker"}, hold: true}
	events, err := newService(t, &staticRetriever{}, m).Stream(ctx, "alice", "q")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	cancel()
	select {
	case ev, ok := <-events:
		if ok {
			t.Fatalf("event after cancel: %v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after cancel")
	}
}

// The empty-context case still reaches the model.
func TestService_EmptyIndex(t *testing.T) {
	t.Parallel()

	index, err := rag.NewAdapter(ragtest.NewWordEmbedder(), rag.NewMemoryStore(), nil)
	if err != nil {
		t.Fatal(err)
	}
	asm, err := rag.NewAssembler(index, 6, 0)
	if err != nil {
		t.Fatal(err)
	}
	m := &scriptedModel{chunks: []string{"I don't know."}}
	events, err := newService(t, asm, m).Answer(context.Background(), "alice", "anything?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(events) != 1 || events[0].Text != "I don't know." {
		t.Errorf("events = %v", events)
	}
	if !strings.HasPrefix(m.prompt, "Answer the question based on these documents:\n\n\n\nQuestion: anything?") {
		t.Errorf("prompt = %q", m.prompt)
	}
}
