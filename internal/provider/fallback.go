package provider

import (
	"context"
	"errors"
	"fmt"
)

// Fallback tries a primary provider first and falls back on error. A context
// cancellation is never a reason to fall back: the learner is gone.
type Fallback struct {
	primary  Provider
	fallback Provider
}

func NewFallback(primary, fallback Provider) *Fallback {
	return &Fallback{primary: primary, fallback: fallback}
}

// Primary returns the preferred provider used before fallback.
func (f *Fallback) Primary() Provider {
	if f == nil {
		return nil
	}
	return f.primary
}

// Secondary returns the fallback provider.
func (f *Fallback) Secondary() Provider {
	if f == nil {
		return nil
	}
	return f.fallback
}

func (f *Fallback) Name() string {
	if f == nil || f.primary == nil {
		return "fallback"
	}
	return f.primary.Name() + "+fallback"
}

func (f *Fallback) Complete(ctx context.Context, req Request) (Response, error) {
	if f == nil || f.primary == nil {
		if f != nil && f.fallback != nil {
			return f.fallback.Complete(ctx, req)
		}
		return Response{}, fmt.Errorf("fallback provider misconfigured")
	}
	resp, err := f.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Response{}, err
	}
	if f.fallback == nil {
		return Response{}, err
	}
	fallbackResp, fallbackErr := f.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		return Response{}, fmt.Errorf("primary provider error: %w; fallback provider error: %v", err, fallbackErr)
	}
	return fallbackResp, nil
}

// StreamCompletion streams from the primary when it can stream. Once the
// primary has emitted a delta the exchange is committed to it; falling back
// mid-stream would duplicate text the learner already saw.
func (f *Fallback) StreamCompletion(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	if f == nil || f.primary == nil {
		return Response{}, fmt.Errorf("fallback provider misconfigured")
	}
	sp, ok := f.primary.(StreamingProvider)
	if !ok {
		return f.Complete(ctx, req)
	}

	emitted := false
	resp, err := sp.StreamCompletion(ctx, req, func(delta string) error {
		emitted = true
		if onDelta == nil {
			return nil
		}
		return onDelta(delta)
	})
	if err == nil {
		return resp, nil
	}
	if emitted || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Response{}, err
	}
	if f.fallback == nil {
		return Response{}, err
	}
	fallbackResp, fallbackErr := f.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		return Response{}, fmt.Errorf("primary provider error: %w; fallback provider error: %v", err, fallbackErr)
	}
	return fallbackResp, nil
}
