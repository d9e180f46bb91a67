// Package tutorclient is the consuming side of the tutoring protocol: it
// drives the frame decoder over an HTTP response body and owns the exchange
// timers and abort semantics on behalf of a UI layer.
package tutorclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/coursekit/tutorstream/internal/reliability"
	"github.com/coursekit/tutorstream/internal/stream"
)

const (
	defaultConnectTimeout   = 15 * time.Second
	defaultMetadataWait     = 10 * time.Second
	defaultHealthTTL        = 5 * time.Second
	defaultHealthRetries    = 2
	defaultHealthRetryDelay = 300 * time.Millisecond
)

// Config controls client construction; zero values take the defaults above.
type Config struct {
	BaseURL          string
	HTTPClient       *http.Client
	ConnectTimeout   time.Duration
	MetadataWait     time.Duration
	HealthTTL        time.Duration
	HealthRetries    int
	HealthRetryDelay time.Duration
	Logger           *log.Logger
}

// Client talks to one tutord instance.
type Client struct {
	baseURL          string
	http             *http.Client
	connectTimeout   time.Duration
	metadataWait     time.Duration
	healthTTL        time.Duration
	healthRetries    int
	healthRetryDelay time.Duration
	logger           *log.Logger

	healthMu     sync.Mutex
	cachedHealth *HealthStatus
	cachedAt     time.Time
}

func New(cfg Config) *Client {
	c := &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		http:             cfg.HTTPClient,
		connectTimeout:   cfg.ConnectTimeout,
		metadataWait:     cfg.MetadataWait,
		healthTTL:        cfg.HealthTTL,
		healthRetries:    cfg.HealthRetries,
		healthRetryDelay: cfg.HealthRetryDelay,
		logger:           cfg.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.connectTimeout <= 0 {
		c.connectTimeout = defaultConnectTimeout
	}
	if c.metadataWait <= 0 {
		c.metadataWait = defaultMetadataWait
	}
	if c.healthTTL <= 0 {
		c.healthTTL = defaultHealthTTL
	}
	if c.healthRetries < 0 {
		c.healthRetries = defaultHealthRetries
	}
	if c.healthRetryDelay <= 0 {
		c.healthRetryDelay = defaultHealthRetryDelay
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	return c
}

// MessageRequest is one learner message to stream through the server.
type MessageRequest struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
	ContextID string `json:"contextId,omitempty"`
}

// StreamHandle controls one in-flight exchange.
type StreamHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
	guard  *callbackGuard
}

// Abort tears down the transport. No callbacks fire after Abort returns, not
// even a completion or error for the torn-down exchange.
func (h *StreamHandle) Abort() {
	h.guard.silence()
	h.cancel()
}

// Done is closed when the read loop has exited.
func (h *StreamHandle) Done() <-chan struct{} {
	return h.done
}

// callbackGuard serializes handler delivery and enforces terminal-once and
// abort-silence semantics across the read loop and the timer goroutines.
type callbackGuard struct {
	mu     sync.Mutex
	silent bool
}

// claim marks the stream silent and reports whether this caller won the right
// to deliver the terminal callback.
func (g *callbackGuard) claim() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.silent {
		return false
	}
	g.silent = true
	return true
}

func (g *callbackGuard) silence() {
	g.mu.Lock()
	g.silent = true
	g.mu.Unlock()
}

func (g *callbackGuard) active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.silent
}

// StreamMessage starts one exchange and feeds decoded frames to h. The
// returned handle aborts the exchange; the call itself only fails when the
// request cannot even be constructed.
func (c *Client) StreamMessage(ctx context.Context, req MessageRequest, h stream.Handlers) (*StreamHandle, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode message request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	guard := &callbackGuard{}
	handle := &StreamHandle{cancel: cancel, done: make(chan struct{}), guard: guard}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tutor/message", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build message request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	dec := stream.NewDecoder(c.guardedHandlers(guard, cancel, h))

	connected := make(chan struct{})
	go c.watchTimers(ctx, dec, guard, cancel, h, connected)
	go c.readLoop(httpReq, dec, guard, cancel, h, handle, connected)

	return handle, nil
}

func (c *Client) guardedHandlers(guard *callbackGuard, cancel context.CancelFunc, h stream.Handlers) stream.Handlers {
	return stream.Handlers{
		OnChunk: func(text string) {
			if guard.active() && h.OnChunk != nil {
				h.OnChunk(text)
			}
		},
		OnMetadata: func(concepts, followups []string) {
			if guard.active() && h.OnMetadata != nil {
				h.OnMetadata(concepts, followups)
			}
		},
		OnComplete: func() {
			if guard.claim() {
				cancel()
				if h.OnComplete != nil {
					h.OnComplete()
				}
			}
		},
		OnError: func(err error) {
			if guard.claim() {
				cancel()
				if h.OnError != nil {
					h.OnError(err)
				}
			}
		},
	}
}

func (c *Client) readLoop(
	httpReq *http.Request,
	dec *stream.Decoder,
	guard *callbackGuard,
	cancel context.CancelFunc,
	h stream.Handlers,
	handle *StreamHandle,
	connected chan<- struct{},
) {
	defer close(handle.done)
	defer cancel()

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.failTransport(guard, h, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if guard.claim() {
			if h.OnError != nil {
				h.OnError(fmt.Errorf("the tutor service returned status %d", resp.StatusCode))
			}
		}
		return
	}
	close(connected)

	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, io.EOF) {
				dec.Finish()
				return
			}
			c.failTransport(guard, h, err)
			return
		}
	}
}

func (c *Client) failTransport(guard *callbackGuard, h stream.Handlers, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if !guard.claim() {
		return
	}
	c.logger.Error("exchange transport failed", "err", err)
	if h.OnError != nil {
		h.OnError(errors.New(translateTransportError(err)))
	}
}

// watchTimers owns the two exchange timers: the fatal connection timer and
// the diagnostic metadata-wait timer, which only ever logs.
func (c *Client) watchTimers(
	ctx context.Context,
	dec *stream.Decoder,
	guard *callbackGuard,
	cancel context.CancelFunc,
	h stream.Handlers,
	connected <-chan struct{},
) {
	connectTimer := time.NewTimer(c.connectTimeout)
	defer connectTimer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-connectTimer.C:
		if guard.claim() {
			c.logger.Error("connection to tutor timed out", "timeout", c.connectTimeout)
			cancel()
			if h.OnError != nil {
				h.OnError(errors.New("connection to the tutor timed out"))
			}
		}
		return
	case <-connected:
	}

	metadataTimer := time.NewTimer(c.metadataWait)
	defer metadataTimer.Stop()
	select {
	case <-ctx.Done():
	case <-metadataTimer.C:
		if guard.active() && !dec.MetadataSeen() {
			c.logger.Warn("no metadata received yet", "waited", c.metadataWait)
		}
	}
}

func translateTransportError(err error) string {
	if reliability.IsTimeout(err) {
		return "connection to the tutor timed out"
	}
	return "could not reach the tutor service"
}
