package stream

import (
	"errors"
	"strings"
)

// FallbackFollowups is delivered when a stream ends without a metadata frame,
// so the UI layer always receives exactly one metadata callback per exchange.
var FallbackFollowups = []string{
	"Can you walk me through an example?",
	"How does this connect to what I already know?",
	"What should I practice next?",
}

// Handlers receives decoded frames. Nil callbacks are skipped.
type Handlers struct {
	OnChunk    func(text string)
	OnMetadata func(concepts, followups []string)
	OnComplete func()
	OnError    func(err error)
}

// Decoder reassembles an unbounded sequence of raw byte reads into frames.
// Reads are not aligned to frame boundaries: one frame may span several reads
// and one read may carry several frames. The decoder buffers text, splits on
// the blank-line delimiter, and dispatches every complete segment; the
// trailing (possibly incomplete) segment stays buffered for the next read.
type Decoder struct {
	handlers     Handlers
	buf          string
	metadataSeen bool
	terminated   bool
}

func NewDecoder(h Handlers) *Decoder {
	return &Decoder{handlers: h}
}

// Feed appends one transport read and dispatches any frames it completes.
// After a terminal frame all further input is ignored.
func (d *Decoder) Feed(p []byte) {
	if d.terminated || len(p) == 0 {
		return
	}
	d.buf += string(p)

	segments := strings.Split(d.buf, frameDelimiter)
	d.buf = segments[len(segments)-1]
	for _, segment := range segments[:len(segments)-1] {
		d.dispatch(segment)
		if d.terminated {
			d.buf = ""
			return
		}
	}
}

// Finish signals natural end-of-stream. The trailing buffered segment, if
// any, runs through the same classification; when no explicit terminal frame
// was ever seen the decoder backfills metadata and reports completion, so
// OnComplete fires exactly once whether or not the server said goodbye.
func (d *Decoder) Finish() {
	if d.terminated {
		return
	}
	if rest := d.buf; rest != "" {
		d.buf = ""
		d.dispatch(rest)
		if d.terminated {
			return
		}
	}
	d.complete()
}

// MetadataSeen reports whether a metadata frame has arrived. Used by the
// client's diagnostic metadata-wait timer.
func (d *Decoder) MetadataSeen() bool {
	return d.metadataSeen
}

func (d *Decoder) dispatch(segment string) {
	// Only line endings are framing noise; interior and trailing spaces are
	// content and must survive reassembly.
	trimmed := strings.Trim(segment, "\r\n")
	if strings.TrimSpace(trimmed) == "" || strings.TrimSpace(trimmed) == framePrefix {
		return
	}

	payload := strings.TrimPrefix(trimmed, framePrefix)
	// SSE convention: a single space after the prefix is framing, not content.
	payload = strings.TrimPrefix(payload, " ")

	frame := classifyPayload(payload)
	switch frame.Type {
	case FrameConnected:
		// Handshake only; never delivered as a chunk.
	case FrameMetadata:
		d.metadataSeen = true
		if d.handlers.OnMetadata != nil {
			d.handlers.OnMetadata(frame.Concepts, frame.Followups)
		}
	case FrameComplete:
		d.complete()
	case FrameError:
		d.terminated = true
		if d.handlers.OnError != nil {
			d.handlers.OnError(errors.New(frame.Message))
		}
	default:
		if d.handlers.OnChunk != nil {
			d.handlers.OnChunk(frame.Text)
		}
	}
}

func (d *Decoder) complete() {
	if d.terminated {
		return
	}
	d.terminated = true
	if !d.metadataSeen {
		d.metadataSeen = true
		if d.handlers.OnMetadata != nil {
			d.handlers.OnMetadata([]string{}, append([]string(nil), FallbackFollowups...))
		}
	}
	if d.handlers.OnComplete != nil {
		d.handlers.OnComplete()
	}
}
