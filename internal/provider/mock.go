package provider

import (
	"context"
	"fmt"
	"strings"
)

// Mock provides deterministic local replies when no model API is configured.
// It deliberately does not implement StreamingProvider, so it also exercises
// the synthesized delivery path end to end.
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

func (p *Mock) Name() string { return "mock" }

func (p *Mock) Complete(ctx context.Context, req Request) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}
	return Response{Text: buildMockReply(req)}, nil
}

func buildMockReply(req Request) string {
	question := strings.TrimSpace(req.Input)
	if question == "" {
		return "Ask me anything about the course material and we will work through it together."
	}
	reply := fmt.Sprintf(
		"Let's work through your question: %s. Start by breaking the problem into the smallest step you already understand, then build outward from there.",
		question,
	)
	if len(req.History) > 0 {
		reply += " This builds on what we discussed earlier."
	}
	return reply
}
