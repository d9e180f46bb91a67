package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Message is one prior conversational turn passed as model context.
type Message struct {
	Role    string `json:"role"` // user|assistant|system
	Content string `json:"content"`
}

// Request is the normalized completion request for one exchange.
type Request struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	RequestID string    `json:"request_id"`
	Input     string    `json:"input"`
	History   []Message `json:"history,omitempty"`
	StyleHint string    `json:"style_hint,omitempty"`
}

// Response is the final response text after generation completes.
type Response struct {
	Text string `json:"text"`
}

// DeltaHandler receives streaming text fragments.
type DeltaHandler func(delta string) error

// Provider produces a complete teaching response. Whether it can also stream
// is a capability, not part of the base contract.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}

// StreamingProvider supports incremental output: onDelta receives fragments
// in order as they arrive, and the returned Response carries the full text.
type StreamingProvider interface {
	Provider
	StreamCompletion(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error)
}

// CanStream reports whether p supports true incremental output.
func CanStream(p Provider) bool {
	if f, ok := p.(*Fallback); ok {
		return CanStream(f.primary)
	}
	_, ok := p.(StreamingProvider)
	return ok
}

// Config controls provider construction.
type Config struct {
	Mode           string
	DeepSeekAPIKey string
	DeepSeekModel  string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
}

// New builds the provider for the configured mode. In auto mode the first
// configured real provider is preferred and wrapped with a mock fallback so
// the tutor degrades rather than failing closed.
func New(cfg Config) (Provider, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.DeepSeekAPIKey) != "" {
			return NewFallback(NewDeepSeek(cfg.DeepSeekAPIKey, cfg.DeepSeekModel), NewMock()), nil
		}
		if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
			return NewFallback(NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), NewMock()), nil
		}
		return NewMock(), nil
	case "deepseek":
		if strings.TrimSpace(cfg.DeepSeekAPIKey) == "" {
			return nil, errors.New("deepseek API key is required for deepseek mode")
		}
		return NewDeepSeek(cfg.DeepSeekAPIKey, cfg.DeepSeekModel), nil
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, errors.New("openai API key is required for openai mode")
		}
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	case "mock":
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("unsupported provider mode %q", cfg.Mode)
	}
}

const tutorSystemPrompt = "You are a patient programming tutor. Explain concepts step by step, " +
	"prefer small concrete examples over abstract definitions, and ask one guiding question " +
	"when the learner seems stuck."

// conversation folds the request into an ordered message list with the tutor
// persona (and the learner's style hint) up front.
func conversation(req Request) []Message {
	system := tutorSystemPrompt
	if hint := strings.TrimSpace(req.StyleHint); hint != "" {
		system += " Learner preference: " + hint + "."
	}

	out := make([]Message, 0, len(req.History)+2)
	out = append(out, Message{Role: "system", Content: system})
	for _, m := range req.History {
		switch m.Role {
		case "user", "assistant", "system":
			out = append(out, m)
		}
	}
	out = append(out, Message{Role: "user", Content: req.Input})
	return out
}
