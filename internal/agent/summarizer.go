package agent

import (
	"context"

	"github.com/driftlab/agentcore/pkg/models"
)

// Summarizer adapts a ChatCompletion backend to compaction.SummaryClient, so
// the Context Compressor can drive a real model call without internal/compaction
// importing this package back (see that package's SummaryClient doc comment).
type Summarizer struct {
	backend ChatCompletion
	model   string
}

// NewSummarizer wraps backend for use as the Compressor's SummaryClient,
// always calling it with model.
func NewSummarizer(backend ChatCompletion, model string) *Summarizer {
	return &Summarizer{backend: backend, model: model}
}

// Summarize issues a single non-streaming-from-the-caller's-perspective
// completion request and returns the assembled text.
func (s *Summarizer) Summarize(ctx context.Context, systemPrompt, conversation string, temperature float64, maxOutputTokens int) (string, error) {
	req := &CompletionRequest{
		Model:       s.model,
		System:      systemPrompt,
		Messages:    []*models.Message{{Role: models.RoleUser, Content: conversation}},
		Temperature: temperature,
		MaxTokens:   maxOutputTokens,
	}

	chunks, err := s.backend.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	msg, err := drainChunks(chunks, nil)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}
