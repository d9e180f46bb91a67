package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI generates teaching responses through the OpenAI Chat Completions
// API, or any compatible endpoint via a custom base URL. Streaming-capable.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	if strings.TrimSpace(model) == "" {
		model = openai.ChatModelGPT4oMini
	}
	return &OpenAI{client: &client, model: model}
}

func (p *OpenAI) Name() string { return "openai" }

func (p *OpenAI) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.params(req))
	if err != nil {
		return Response{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.New("openai returned no choices")
	}
	return Response{Text: resp.Choices[0].Message.Content}, nil
}

func (p *OpenAI) StreamCompletion(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, p.params(req))
	var full strings.Builder
	for stream.Next() {
		chunk := stream.Current()
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
	if err := stream.Err(); err != nil {
		return Response{}, fmt.Errorf("openai stream: %w", err)
	}
	return Response{Text: full.String()}, nil
}

func (p *OpenAI) params(req Request) openai.ChatCompletionNewParams {
	msgs := conversation(req)
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	return openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    p.model,
	}
}
