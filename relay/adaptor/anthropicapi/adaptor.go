// Package anthropicapi maps the Anthropic messages schema to the neutral
// request form and back, including the event-typed streaming framing.
package anthropicapi

import (
	"encoding/json"
	"fmt"

	"github.com/xjp-ai/xjp-gateway/common/random"
	"github.com/xjp-ai/xjp-gateway/relay/model"
)

// Stream event names, in emission order.
const (
	EventMessageStart      = "message_start"
	EventContentBlockDelta = "content_block_delta"
	EventMessageStop       = "message_stop"
	EventPing              = "ping"
	EventError             = "error"
)

var knownKeys = map[string]struct{}{
	"model":       {},
	"messages":    {},
	"system":      {},
	"stream":      {},
	"max_tokens":  {},
	"temperature": {},
	"top_p":       {},
}

type inboundMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type inboundPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// parseContent accepts a bare string or an array of parts; only text parts
// are carried through.
func parseContent(raw json.RawMessage) []model.ContentPart {
	if len(raw) == 0 {
		return nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return []model.ContentPart{model.TextPart(text)}
	}

	var inParts []inboundPart
	if err := json.Unmarshal(raw, &inParts); err != nil {
		return nil
	}
	parts := make([]model.ContentPart, 0, len(inParts))
	for _, p := range inParts {
		if p.Type == "text" || p.Type == "" {
			parts = append(parts, model.TextPart(p.Text))
		}
	}
	return parts
}

// ToUnified parses an Anthropic messages body into the neutral form. A
// system string is prepended as a system-role message.
func ToUnified(raw []byte) (*model.UnifiedRequest, *model.ErrorWithStatusCode) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, model.InvalidError("request body is not a JSON object")
	}

	req := &model.UnifiedRequest{}
	if rawModel, ok := fields["model"]; ok {
		_ = json.Unmarshal(rawModel, &req.LogicalModel)
	}
	if req.LogicalModel == "" {
		return nil, model.InvalidError("model is required")
	}

	if rawSystem, ok := fields["system"]; ok {
		var system string
		if err := json.Unmarshal(rawSystem, &system); err == nil && system != "" {
			req.Messages = append(req.Messages, model.UnifiedMessage{
				Role:    "system",
				Content: []model.ContentPart{model.TextPart(system)},
			})
		}
	}

	var inMessages []inboundMessage
	if rawMessages, ok := fields["messages"]; ok {
		if err := json.Unmarshal(rawMessages, &inMessages); err != nil {
			return nil, model.InvalidError("messages must be an array of message objects")
		}
	}
	if len(inMessages) == 0 {
		return nil, model.InvalidError("messages is required")
	}
	for _, m := range inMessages {
		role := m.Role
		if role == "" {
			role = "user"
		}
		req.Messages = append(req.Messages, model.UnifiedMessage{
			Role:    role,
			Content: parseContent(m.Content),
		})
	}

	if rawStream, ok := fields["stream"]; ok {
		_ = json.Unmarshal(rawStream, &req.Stream)
	}
	if rawMax, ok := fields["max_tokens"]; ok {
		_ = json.Unmarshal(rawMax, &req.MaxOutputTokens)
	}
	if rawTemp, ok := fields["temperature"]; ok {
		var temp float64
		if err := json.Unmarshal(rawTemp, &temp); err == nil {
			req.Temperature = &temp
		}
	}
	if rawTopP, ok := fields["top_p"]; ok {
		var topP float64
		if err := json.Unmarshal(rawTopP, &topP); err == nil {
			req.TopP = &topP
		}
	}

	for key, value := range fields {
		if _, known := knownKeys[key]; known {
			continue
		}
		if req.Extra == nil {
			req.Extra = map[string]json.RawMessage{}
		}
		req.Extra[key] = value
	}
	return req, nil
}

// StreamEvent is one outbound SSE event: a name plus its data payload.
type StreamEvent struct {
	Event string
	Data  any
}

type deltaPayload struct {
	Type  string     `json:"type"`
	Index int        `json:"index"`
	Delta deltaInner `json:"delta"`
}

type deltaInner struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// StreamTranscoder frames neutral chunks as Anthropic stream events:
// message_start once at the first chunk, content_block_delta per text
// fragment, message_stop at the terminal chunk, ping for chunks with
// nothing to say.
type StreamTranscoder struct {
	started bool
}

func NewStreamTranscoder() *StreamTranscoder {
	return &StreamTranscoder{}
}

// Frame converts one chunk into the events to emit, in order.
func (t *StreamTranscoder) Frame(chunk model.UnifiedChunk) []StreamEvent {
	var events []StreamEvent
	if !t.started {
		t.started = true
		events = append(events, StreamEvent{Event: EventMessageStart, Data: "{}"})
	}

	switch {
	case chunk.TextDelta != "":
		events = append(events, StreamEvent{
			Event: EventContentBlockDelta,
			Data: deltaPayload{
				Type:  EventContentBlockDelta,
				Index: 0,
				Delta: deltaInner{Type: "text_delta", Text: chunk.TextDelta},
			},
		})
		if chunk.Done {
			events = append(events, StreamEvent{Event: EventMessageStop, Data: "{}"})
		}
	case chunk.Done:
		events = append(events, StreamEvent{Event: EventMessageStop, Data: "{}"})
	default:
		events = append(events, StreamEvent{Event: EventPing, Data: "{}"})
	}
	return events
}

type ResponseContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ResponseUsage struct {
	InputTokens  *int64 `json:"input_tokens"`
	OutputTokens *int64 `json:"output_tokens"`
}

type Response struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	Role         string            `json:"role"`
	Model        string            `json:"model"`
	Content      []ResponseContent `json:"content"`
	StopReason   string            `json:"stop_reason"`
	StopSequence *string           `json:"stop_sequence"`
	Usage        ResponseUsage     `json:"usage"`
}

// FinalResponse builds the non-streaming message body from the terminal
// chunk.
func FinalResponse(logicalModel string, chunk *model.UnifiedChunk) *Response {
	return &Response{
		ID:         fmt.Sprintf("msg_%s", random.GetUUID()),
		Type:       "message",
		Role:       "assistant",
		Model:      logicalModel,
		Content:    []ResponseContent{{Type: "text", Text: chunk.TextDelta}},
		StopReason: "end_turn",
	}
}
