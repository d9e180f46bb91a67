// Package httpapi exposes the tutoring protocol and the knowledge analytics
// surface over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/coursekit/tutorstream/internal/config"
	"github.com/coursekit/tutorstream/internal/knowledge"
	"github.com/coursekit/tutorstream/internal/observability"
	"github.com/coursekit/tutorstream/internal/stream"
	"github.com/coursekit/tutorstream/internal/tutor"
)

// Orchestrator runs one exchange against the model provider and emits frames
// on the encoder.
type Orchestrator interface {
	Run(ctx context.Context, req tutor.Request, enc *stream.Encoder) error
	StreamingMode() string
	ProviderName() string
}

type Server struct {
	cfg          *config.Config
	store        knowledge.Store
	orchestrator Orchestrator
	metrics      *observability.Metrics
	stages       *observability.StageWindow
	logger       *log.Logger
	storeMode    string
	upgrader     websocket.Upgrader
}

func New(
	cfg *config.Config,
	store knowledge.Store,
	orchestrator Orchestrator,
	metrics *observability.Metrics,
	stages *observability.StageWindow,
	storeMode string,
	logger *log.Logger,
) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		cfg:          cfg,
		store:        store,
		orchestrator: orchestrator,
		metrics:      metrics,
		stages:       stages,
		logger:       logger,
		storeMode:    storeMode,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up. Non-browser clients
				// often omit Origin; allow them.
				if cfg.Server.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/health", s.handleHealth)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Post("/v1/tutor/message", s.handleMessage)
	r.Get("/v1/tutor/ws", s.handleMessageWS)
	r.Get("/v1/tutor/strategies", s.handleStrategies)
	r.Post("/v1/tutor/feedback", s.handleFeedback)
	r.Get("/v1/tutor/users/{userID}/memory", s.handleUserMemory)
	r.Get("/v1/tutor/users/{userID}/mastery/{concept}", s.handleConceptMastery)
	r.Get("/v1/tutor/users/{userID}/interactions", s.handleInteractions)
	r.Put("/v1/tutor/users/{userID}/learning-style", s.handleUpdateLearningStyle)

	return r
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req tutor.Request
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "userId is required")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "missing_message", "message is required")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	enc := stream.NewEncoder(w)
	if err := s.orchestrator.Run(r.Context(), req, enc); err != nil {
		// The terminal frame already went out (or the learner left); nothing
		// more to send on this response.
		s.logger.Debug("exchange ended with error", "userId", req.UserID, "err", err)
	}
}

// handleMessageWS is the WebSocket transport variant: the client sends one
// exchange request as a text message and receives the identical frame
// payloads back, one frame per message.
func (s *Server) handleMessageWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

	msgType, data, err := conn.ReadMessage()
	if err != nil || msgType != websocket.TextMessage {
		return
	}

	var req tutor.Request
	if err := json.Unmarshal(data, &req); err != nil ||
		strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Message) == "" {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid exchange request"),
			time.Now().Add(time.Second),
		)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// A client that goes away mid-exchange counts as an abort.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	enc := stream.NewEncoder(&wsFrameWriter{conn: conn})
	if err := s.orchestrator.Run(ctx, req, enc); err != nil {
		s.logger.Debug("ws exchange ended with error", "userId", req.UserID, "err", err)
	}
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
}

// wsFrameWriter maps each encoder write, which is exactly one frame, onto one
// websocket text message.
type wsFrameWriter struct {
	conn *websocket.Conn
}

func (w *wsFrameWriter) Write(p []byte) (int, error) {
	_ = w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
