// Package tutor runs the server side of one teaching exchange: it invokes the
// configured model provider, emits the frame stream, and persists what the
// learner worked on once the exchange completes.
package tutor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/coursekit/tutorstream/internal/knowledge"
	"github.com/coursekit/tutorstream/internal/observability"
	"github.com/coursekit/tutorstream/internal/policy"
	"github.com/coursekit/tutorstream/internal/provider"
	"github.com/coursekit/tutorstream/internal/stream"
)

// Request is one learner message entering the orchestrator.
type Request struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
	ContextID string `json:"contextId,omitempty"`
}

// Policy holds the delivery knobs for the synthesized streaming path.
type Policy struct {
	ChunkWords int
	ChunkDelay time.Duration
}

const (
	defaultChunkWords = 10
	defaultChunkDelay = 50 * time.Millisecond

	// historyContextTurns bounds how many past exchanges are replayed to the
	// model as conversational context.
	historyContextTurns = 6

	newConceptConfidence  = 0.3
	masteryTargetOnReview = 0.8
	masteryReviewStep     = 0.2
)

// Orchestrator sequences Connected, content, Metadata and the terminal frame
// for each exchange, and owns the exactly-once persistence that follows a
// successful Complete.
type Orchestrator struct {
	provider provider.Provider
	store    knowledge.Store
	metrics  *observability.Metrics
	stages   *observability.StageWindow
	logger   *log.Logger
	policy   Policy
}

func NewOrchestrator(
	p provider.Provider,
	store knowledge.Store,
	metrics *observability.Metrics,
	stages *observability.StageWindow,
	logger *log.Logger,
	pol Policy,
) *Orchestrator {
	if pol.ChunkWords <= 0 {
		pol.ChunkWords = defaultChunkWords
	}
	if pol.ChunkDelay <= 0 {
		pol.ChunkDelay = defaultChunkDelay
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		provider: p,
		store:    store,
		metrics:  metrics,
		stages:   stages,
		logger:   logger,
		policy:   pol,
	}
}

// StreamingMode reports how content frames are produced: passthrough when the
// provider emits true deltas, synthesized when the full text is chunked.
func (o *Orchestrator) StreamingMode() string {
	if provider.CanStream(o.provider) {
		return "passthrough"
	}
	return "synthesized"
}

// ProviderName exposes the active provider for the health surface.
func (o *Orchestrator) ProviderName() string {
	return o.provider.Name()
}

// Run drives one exchange over enc. The error return is for the transport
// owner; by the time Run returns, the learner has already received either a
// Complete or an Error frame, unless ctx was cancelled, in which case the
// stream is abandoned silently.
func (o *Orchestrator) Run(ctx context.Context, req Request, enc *stream.Encoder) error {
	start := time.Now()
	requestID := uuid.NewString()

	if o.metrics != nil {
		o.metrics.ActiveExchanges.Inc()
		defer o.metrics.ActiveExchanges.Dec()
		o.metrics.ExchangeEvents.WithLabelValues("started").Inc()
	}

	if err := enc.Connected(requestID); err != nil {
		return err
	}
	o.countFrame("connected")

	var firstContent time.Time
	onDelta := func(delta string) error {
		if delta == "" {
			return nil
		}
		if firstContent.IsZero() {
			firstContent = time.Now()
			if o.metrics != nil {
				o.metrics.ObserveFirstContentLatency(firstContent.Sub(start))
			}
			o.stages.ObserveDuration(observability.StageFirstContent, firstContent.Sub(start))
		}
		o.countFrame("content")
		return enc.Content(delta)
	}

	resp, err := o.generate(ctx, o.providerRequest(ctx, req, requestID), onDelta)
	if err != nil {
		return o.fail(ctx, enc, requestID, err)
	}

	concepts := DetectConcepts(req.Message, resp.Text)
	followups := GenerateFollowups(concepts)
	if err := enc.Metadata(concepts, followups); err != nil {
		return err
	}
	o.countFrame("metadata")
	o.stages.ObserveDuration(observability.StageMetadataReady, time.Since(start))

	if err := enc.Complete(); err != nil {
		return err
	}
	o.countFrame("complete")
	o.stages.ObserveDuration(observability.StageExchangeTotal, time.Since(start))
	if o.metrics != nil {
		o.metrics.ExchangeEvents.WithLabelValues("completed").Inc()
	}

	// The Complete frame is the learner-visible commit point; persistence must
	// not be lost to a request context that is torn down right after it.
	o.persist(context.WithoutCancel(ctx), req, resp.Text, concepts)
	return nil
}

func (o *Orchestrator) generate(ctx context.Context, preq provider.Request, onDelta provider.DeltaHandler) (provider.Response, error) {
	if provider.CanStream(o.provider) {
		if sp, ok := o.provider.(provider.StreamingProvider); ok {
			o.stages.ObserveIndicator("passthrough_stream")
			return sp.StreamCompletion(ctx, preq, onDelta)
		}
	}

	resp, err := o.provider.Complete(ctx, preq)
	if err != nil {
		return provider.Response{}, err
	}
	o.stages.ObserveIndicator("synthesized_stream")
	if err := o.synthesize(ctx, resp.Text, onDelta); err != nil {
		return provider.Response{}, err
	}
	return resp, nil
}

// synthesize replays a fully generated response as fixed-size word groups
// with a short pause between frames, so a non-streaming provider still feels
// incremental to the learner.
func (o *Orchestrator) synthesize(ctx context.Context, text string, onDelta provider.DeltaHandler) error {
	words := strings.Fields(text)
	for i := 0; i < len(words); i += o.policy.ChunkWords {
		end := i + o.policy.ChunkWords
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.Join(words[i:end], " ")
		if end < len(words) {
			// A trailing space keeps the word boundary when the client
			// concatenates chunks; a leading one would be eaten by the
			// decoder's SSE-style space stripping.
			chunk += " "
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(o.policy.ChunkDelay):
			}
		}
		if err := onDelta(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, enc *stream.Encoder, requestID string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		if o.metrics != nil {
			o.metrics.ExchangeEvents.WithLabelValues("abandoned").Inc()
		}
		o.logger.Debug("exchange abandoned", "requestId", requestID)
		return err
	}
	if o.metrics != nil {
		o.metrics.ProviderErrors.WithLabelValues(o.provider.Name(), "completion").Inc()
		o.metrics.ExchangeEvents.WithLabelValues("failed").Inc()
	}
	o.logger.Error("exchange failed", "requestId", requestID, "provider", o.provider.Name(), "err", err)
	if encErr := enc.Error(userFacingMessage(err)); encErr != nil {
		o.logger.Error("emit error frame", "requestId", requestID, "err", encErr)
	} else {
		o.countFrame("error")
	}
	return err
}

// userFacingMessage keeps provider internals out of the learner's view.
func userFacingMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "The tutor took too long to respond. Please try again."
	}
	return "The tutor could not generate a response right now. Please try again."
}

func (o *Orchestrator) providerRequest(ctx context.Context, req Request, requestID string) provider.Request {
	preq := provider.Request{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		RequestID: requestID,
		Input:     req.Message,
	}

	mem, err := o.store.UserMemory(ctx, req.UserID)
	if err != nil {
		o.logger.Warn("load user memory", "userId", req.UserID, "err", err)
		return preq
	}
	if mem == nil {
		return preq
	}

	history := mem.History
	if len(history) > historyContextTurns {
		history = history[len(history)-historyContextTurns:]
	}
	for _, h := range history {
		preq.History = append(preq.History,
			provider.Message{Role: "user", Content: h.Question},
			provider.Message{Role: "assistant", Content: h.Answer},
		)
	}
	preq.StyleHint = styleHint(mem.LearningStyle)
	return preq
}

func styleHint(style knowledge.LearningStyle) string {
	var parts []string
	if style.Preference != "" && style.Preference != "unspecified" {
		parts = append(parts, "prefers "+style.Preference+" explanations")
	}
	if style.Pace != "" {
		parts = append(parts, "pace "+style.Pace)
	}
	if style.Depth != "" {
		parts = append(parts, "depth "+style.Depth)
	}
	return strings.Join(parts, ", ")
}

// persist records the completed exchange and nudges concept mastery. Runs
// once per successful exchange; abandoned or failed exchanges never reach it.
func (o *Orchestrator) persist(ctx context.Context, req Request, responseText string, concepts []string) {
	now := time.Now().UTC()
	question, answer, redacted := policy.RedactExchange(req.Message, responseText)
	if redacted {
		o.logger.Info("redacted PII before persistence", "userId", req.UserID)
	}

	if _, err := o.store.RecordInteraction(ctx, knowledge.Interaction{
		UserID:      req.UserID,
		UserMessage: question,
		AIResponse:  answer,
		Concepts:    concepts,
		Timestamp:   now,
		ContextID:   req.ContextID,
	}); err != nil {
		o.logger.Error("record interaction", "userId", req.UserID, "err", err)
	}

	for _, concept := range concepts {
		confidence := newConceptConfidence
		view, err := o.store.ConceptMastery(ctx, req.UserID, concept)
		if err != nil {
			o.logger.Error("load concept mastery", "userId", req.UserID, "concept", concept, "err", err)
			continue
		}
		if view != nil {
			confidence = view.ConfidenceLevel + masteryReviewStep*(masteryTargetOnReview-view.ConfidenceLevel)
		}
		if err := o.store.UpdateConceptMastery(ctx, req.UserID, concept, confidence, now); err != nil {
			o.logger.Error("update concept mastery", "userId", req.UserID, "concept", concept, "err", err)
		}
	}
}

func (o *Orchestrator) countFrame(frameType string) {
	if o.metrics != nil {
		o.metrics.FramesEmitted.WithLabelValues(frameType).Inc()
	}
}
