package stream

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrStreamClosed is returned for writes attempted after a terminal frame.
var ErrStreamClosed = errors.New("stream already terminated")

// Encoder turns a teaching-response lifecycle into wire frames. It enforces
// the frame ordering invariants: at most one Connected frame and only first,
// at most one Metadata frame and only before the terminal frame, exactly one
// terminal frame after which every write fails with ErrStreamClosed.
type Encoder struct {
	mu           sync.Mutex
	w            io.Writer
	flush        func()
	started      bool
	metadataSent bool
	closed       bool
}

// NewEncoder wraps a transport writer. When the writer can flush (an
// http.ResponseWriter behind chunked encoding), each frame is flushed
// immediately so the client sees deltas as they happen.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w}
	if f, ok := w.(interface{ Flush() }); ok {
		e.flush = f.Flush
	}
	return e
}

// Connected emits the handshake frame. It must be the first frame emitted.
func (e *Encoder) Connected(requestID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrStreamClosed
	}
	if e.started {
		return errors.New("connected frame must be first")
	}
	return e.writeFrame(encodeConnected(requestID))
}

// Content emits one content chunk verbatim.
func (e *Encoder) Content(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrStreamClosed
	}
	return e.writeFrame(text)
}

// Metadata emits the single metadata frame with detected concepts and
// suggested follow-up questions.
func (e *Encoder) Metadata(concepts, followups []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrStreamClosed
	}
	if e.metadataSent {
		return errors.New("metadata frame already sent")
	}
	if err := e.writeFrame(encodeMetadata(concepts, followups)); err != nil {
		return err
	}
	e.metadataSent = true
	return nil
}

// Complete emits the terminal success frame and closes the encoder.
func (e *Encoder) Complete() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrStreamClosed
	}
	if err := e.writeFrame(encodeComplete()); err != nil {
		return err
	}
	e.closed = true
	return nil
}

// Error emits the terminal failure frame and closes the encoder.
func (e *Encoder) Error(message string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrStreamClosed
	}
	if err := e.writeFrame(encodeError(message)); err != nil {
		return err
	}
	e.closed = true
	return nil
}

// Closed reports whether a terminal frame has been emitted.
func (e *Encoder) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Encoder) writeFrame(payload string) error {
	if _, err := io.WriteString(e.w, framePrefix+payload+frameDelimiter); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	e.started = true
	if e.flush != nil {
		e.flush()
	}
	return nil
}
