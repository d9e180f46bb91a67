package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	deepseek "github.com/cohesion-org/deepseek-go"
)

// DeepSeek generates teaching responses through the DeepSeek chat API.
// It supports true incremental output.
type DeepSeek struct {
	client *deepseek.Client
	model  string
}

func NewDeepSeek(apiKey, model string) *DeepSeek {
	if strings.TrimSpace(model) == "" {
		model = deepseek.DeepSeekChat
	}
	return &DeepSeek{
		client: deepseek.NewClient(apiKey),
		model:  model,
	}
}

func (p *DeepSeek) Name() string { return "deepseek" }

func (p *DeepSeek) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := p.client.CreateChatCompletion(ctx, &deepseek.ChatCompletionRequest{
		Model:    p.model,
		Messages: deepseekMessages(req),
	})
	if err != nil {
		return Response{}, fmt.Errorf("deepseek completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.New("deepseek returned no choices")
	}
	return Response{Text: resp.Choices[0].Message.Content}, nil
}

func (p *DeepSeek) StreamCompletion(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, &deepseek.StreamChatCompletionRequest{
		Model:    p.model,
		Messages: deepseekMessages(req),
		Stream:   true,
	})
	if err != nil {
		return Response{}, fmt.Errorf("deepseek stream start: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if err != nil {
			if err.Error() == "EOF" {
				break
			}
			return Response{}, fmt.Errorf("deepseek stream: %w", err)
		}
		for _, choice := range chunk.Choices {
			delta := choice.Delta.Content
			if delta == "" {
				continue
			}
			full.WriteString(delta)
			if onDelta != nil {
				if err := onDelta(delta); err != nil {
					return Response{}, err
				}
			}
		}
	}
	return Response{Text: full.String()}, nil
}

var deepseekRoles = map[string]string{
	"system":    deepseek.ChatMessageRoleSystem,
	"user":      deepseek.ChatMessageRoleUser,
	"assistant": deepseek.ChatMessageRoleAssistant,
}

func deepseekMessages(req Request) []deepseek.ChatCompletionMessage {
	msgs := conversation(req)
	out := make([]deepseek.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		role, ok := deepseekRoles[m.Role]
		if !ok {
			continue
		}
		out = append(out, deepseek.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
