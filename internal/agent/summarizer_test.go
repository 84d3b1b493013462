package agent

import (
	"context"
	"testing"
)

func TestSummarizer_ReturnsAssembledText(t *testing.T) {
	client := &scriptedClient{t: t, name: "summarizer", replies: []*CompletionChunk{textReply("the gist of it")}}
	s := NewSummarizer(client, "claude-sonnet-4-20250514")

	got, err := s.Summarize(context.Background(), "summarize this", "a long conversation", 0.3, 2000)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if got != "the gist of it" {
		t.Fatalf("Summarize() = %q", got)
	}
	if client.calls != 1 {
		t.Fatalf("calls = %d, want 1", client.calls)
	}
}

type erroringClient struct{}

func (erroringClient) Name() string { return "erroring" }

func (erroringClient) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	ch := make(chan *CompletionChunk, 1)
	ch <- &CompletionChunk{Error: context.DeadlineExceeded}
	close(ch)
	return ch, nil
}

func TestSummarizer_PropagatesChunkError(t *testing.T) {
	s := NewSummarizer(erroringClient{}, "gpt-4o")
	if _, err := s.Summarize(context.Background(), "sys", "conv", 0.3, 2000); err == nil {
		t.Fatal("expected error from erroring backend")
	}
}
