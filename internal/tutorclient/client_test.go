package tutorclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coursekit/tutorstream/internal/stream"
)

type callbackLog struct {
	mu        sync.Mutex
	chunks    []string
	metadata  int
	followups []string
	completes int
	errs      []string
}

func (l *callbackLog) handlers() stream.Handlers {
	return stream.Handlers{
		OnChunk: func(text string) {
			l.mu.Lock()
			l.chunks = append(l.chunks, text)
			l.mu.Unlock()
		},
		OnMetadata: func(_, followups []string) {
			l.mu.Lock()
			l.metadata++
			l.followups = followups
			l.mu.Unlock()
		},
		OnComplete: func() {
			l.mu.Lock()
			l.completes++
			l.mu.Unlock()
		},
		OnError: func(err error) {
			l.mu.Lock()
			l.errs = append(l.errs, err.Error())
			l.mu.Unlock()
		},
	}
}

func (l *callbackLog) snapshot() (chunks []string, metadata, completes int, errs []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.chunks...), l.metadata, l.completes, append([]string(nil), l.errs...)
}

func waitDone(t *testing.T, h *StreamHandle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not finish in time")
	}
}

func TestStreamMessageDeliversFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/tutor/message" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		enc := stream.NewEncoder(w)
		_ = enc.Connected("r1")
		_ = enc.Content("Hello ")
		_ = enc.Content("world")
		_ = enc.Metadata([]string{"loops"}, []string{"Q1?", "Q2?", "Q3?"})
		_ = enc.Complete()
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	logged := &callbackLog{}
	h, err := c.StreamMessage(context.Background(), MessageRequest{UserID: "u1", Message: "hi"}, logged.handlers())
	if err != nil {
		t.Fatalf("StreamMessage() error = %v", err)
	}
	waitDone(t, h)

	chunks, metadata, completes, errs := logged.snapshot()
	if got := chunks; len(got) != 2 || got[0]+got[1] != "Hello world" {
		t.Fatalf("chunks = %v", got)
	}
	if metadata != 1 {
		t.Fatalf("metadata callbacks = %d, want 1", metadata)
	}
	if completes != 1 {
		t.Fatalf("completes = %d, want 1", completes)
	}
	if len(errs) != 0 {
		t.Fatalf("errs = %v", errs)
	}
}

func TestStreamMessageFallbackMetadataOnSilentEOF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		enc := stream.NewEncoder(w)
		_ = enc.Connected("r1")
		_ = enc.Content("partial answer")
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	logged := &callbackLog{}
	h, err := c.StreamMessage(context.Background(), MessageRequest{UserID: "u1", Message: "hi"}, logged.handlers())
	if err != nil {
		t.Fatalf("StreamMessage() error = %v", err)
	}
	waitDone(t, h)

	_, metadata, completes, errs := logged.snapshot()
	if metadata != 1 {
		t.Fatalf("metadata callbacks = %d, want fallback metadata", metadata)
	}
	logged.mu.Lock()
	followups := len(logged.followups)
	logged.mu.Unlock()
	if followups != 3 {
		t.Fatalf("fallback followups = %d, want 3", followups)
	}
	if completes != 1 {
		t.Fatalf("completes = %d, want 1", completes)
	}
	if len(errs) != 0 {
		t.Fatalf("errs = %v", errs)
	}
}

func TestStreamMessageAbortIsSilent(t *testing.T) {
	firstChunkSent := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := stream.NewEncoder(w)
		_ = enc.Connected("r1")
		_ = enc.Content("first")
		close(firstChunkSent)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	logged := &callbackLog{}
	h, err := c.StreamMessage(context.Background(), MessageRequest{UserID: "u1", Message: "hi"}, logged.handlers())
	if err != nil {
		t.Fatalf("StreamMessage() error = %v", err)
	}

	select {
	case <-firstChunkSent:
	case <-time.After(3 * time.Second):
		t.Fatal("server never sent the first chunk")
	}
	h.Abort()
	waitDone(t, h)

	_, _, completes, errs := logged.snapshot()
	if completes != 0 {
		t.Fatalf("completes = %d, want 0 after abort", completes)
	}
	if len(errs) != 0 {
		t.Fatalf("errs = %v, want silence after abort", errs)
	}
}

func TestStreamMessageConnectTimeoutIsFatal(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(Config{BaseURL: srv.URL, ConnectTimeout: 50 * time.Millisecond})
	logged := &callbackLog{}
	h, err := c.StreamMessage(context.Background(), MessageRequest{UserID: "u1", Message: "hi"}, logged.handlers())
	if err != nil {
		t.Fatalf("StreamMessage() error = %v", err)
	}
	waitDone(t, h)

	_, _, completes, errs := logged.snapshot()
	if len(errs) != 1 {
		t.Fatalf("errs = %v, want exactly one timeout error", errs)
	}
	if completes != 0 {
		t.Fatalf("completes = %d, want 0", completes)
	}
}

func TestStreamMessageServerStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	logged := &callbackLog{}
	h, err := c.StreamMessage(context.Background(), MessageRequest{UserID: "u1", Message: "hi"}, logged.handlers())
	if err != nil {
		t.Fatalf("StreamMessage() error = %v", err)
	}
	waitDone(t, h)

	_, _, completes, errs := logged.snapshot()
	if len(errs) != 1 {
		t.Fatalf("errs = %v, want one error", errs)
	}
	if completes != 0 {
		t.Fatalf("completes = %d, want 0", completes)
	}
}

func healthPayload() []byte {
	b, _ := json.Marshal(HealthStatus{
		Status:             "healthy",
		Available:          true,
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
		Env:                "test",
		DeepSeekConfigured: true,
		Services:           HealthServices{Database: "ok", AI: "ok"},
	})
	return b
}

func TestHealthCachesWithinTTL(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		_, _ = w.Write(healthPayload())
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, HealthTTL: time.Minute})
	first := c.Health(context.Background(), false)
	second := c.Health(context.Background(), false)
	if first.Status != "healthy" || second.Status != "healthy" {
		t.Fatalf("statuses = %q, %q", first.Status, second.Status)
	}

	mu.Lock()
	got := requests
	mu.Unlock()
	if got != 1 {
		t.Fatalf("requests = %d, want 1 (second call cached)", got)
	}

	c.Health(context.Background(), true)
	mu.Lock()
	got = requests
	mu.Unlock()
	if got != 2 {
		t.Fatalf("requests = %d, want 2 after forceRefresh", got)
	}
}

func TestHealthRetriesRetryableStatus(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		requests++
		n := requests
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(healthPayload())
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, HealthRetries: 2, HealthRetryDelay: 10 * time.Millisecond})
	status := c.Health(context.Background(), true)
	if status.Status != "healthy" {
		t.Fatalf("Status = %q, want healthy after retry", status.Status)
	}

	mu.Lock()
	got := requests
	mu.Unlock()
	if got != 2 {
		t.Fatalf("requests = %d, want 2", got)
	}
}

func TestHealthDoesNotRetryNonRetryableStatus(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, HealthRetries: 3, HealthRetryDelay: 10 * time.Millisecond})
	status := c.Health(context.Background(), true)
	if status.Status != "error_403" {
		t.Fatalf("Status = %q, want error_403", status.Status)
	}

	mu.Lock()
	got := requests
	mu.Unlock()
	if got != 1 {
		t.Fatalf("requests = %d, want 1", got)
	}
}

func TestHealthUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	srv.Close()

	c := New(Config{BaseURL: srv.URL, HealthRetries: 0, HealthRetryDelay: time.Millisecond})
	status := c.Health(context.Background(), true)
	if status.Status != "unreachable" {
		t.Fatalf("Status = %q, want unreachable", status.Status)
	}
	if status.Available {
		t.Fatal("Available = true for unreachable server")
	}
}
