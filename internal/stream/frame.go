package stream

import (
	"encoding/json"
	"strings"
)

// Wire format: each frame is a "data:<payload>" line, frames separated by a
// blank line. Control payloads are JSON objects carrying a "type" field;
// metadata rides behind a METADATA: tag; everything else is content.
const (
	framePrefix    = "data:"
	frameDelimiter = "\n\n"
	metadataTag    = "METADATA:"
)

// FrameType identifies streaming frame variants.
type FrameType string

const (
	FrameConnected FrameType = "connected"
	FrameContent   FrameType = "content"
	FrameMetadata  FrameType = "metadata"
	FrameComplete  FrameType = "complete"
	FrameError     FrameType = "error"
)

// Frame is one decoded unit of the streaming wire format.
type Frame struct {
	Type      FrameType
	RequestID string   // connected
	Text      string   // content
	Concepts  []string // metadata
	Followups []string // metadata
	Message   string   // error
}

type controlPayload struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	Message   string `json:"message,omitempty"`
}

type metadataPayload struct {
	Concepts          []string `json:"concepts"`
	FollowupQuestions []string `json:"followupQuestions"`
}

// classifyPayload parses one complete frame payload (transport prefix already
// stripped) with strict tagging: a payload is a control frame only when it is
// a whole JSON object with a recognized type, and metadata only behind its
// exact tag. Anything else is content, delivered verbatim.
func classifyPayload(payload string) Frame {
	if strings.HasPrefix(payload, metadataTag) {
		var meta metadataPayload
		raw := payload[len(metadataTag):]
		if err := json.Unmarshal([]byte(raw), &meta); err == nil {
			return Frame{
				Type:      FrameMetadata,
				Concepts:  meta.Concepts,
				Followups: meta.FollowupQuestions,
			}
		}
		// Malformed metadata is not silently dropped; the UI sees what was sent.
		return Frame{Type: FrameContent, Text: payload}
	}

	if strings.HasPrefix(payload, "{") {
		var ctl controlPayload
		if err := json.Unmarshal([]byte(payload), &ctl); err == nil {
			switch ctl.Type {
			case string(FrameConnected):
				return Frame{Type: FrameConnected, RequestID: ctl.RequestID}
			case string(FrameComplete):
				return Frame{Type: FrameComplete}
			case string(FrameError):
				return Frame{Type: FrameError, Message: ctl.Message}
			}
		}
	}

	return Frame{Type: FrameContent, Text: payload}
}

func encodeConnected(requestID string) string {
	raw, _ := json.Marshal(controlPayload{Type: string(FrameConnected), RequestID: requestID})
	return string(raw)
}

func encodeMetadata(concepts, followups []string) string {
	if concepts == nil {
		concepts = []string{}
	}
	if followups == nil {
		followups = []string{}
	}
	raw, _ := json.Marshal(metadataPayload{Concepts: concepts, FollowupQuestions: followups})
	return metadataTag + string(raw)
}

func encodeComplete() string {
	raw, _ := json.Marshal(controlPayload{Type: string(FrameComplete)})
	return string(raw)
}

func encodeError(message string) string {
	raw, _ := json.Marshal(controlPayload{Type: string(FrameError), Message: message})
	return string(raw)
}
