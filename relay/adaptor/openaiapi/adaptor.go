// Package openaiapi maps the OpenAI chat-completions schema to the neutral
// request form and back, including the streaming chunk framing.
package openaiapi

import (
	"encoding/json"
	"fmt"

	"github.com/xjp-ai/xjp-gateway/common/helper"
	"github.com/xjp-ai/xjp-gateway/common/random"
	"github.com/xjp-ai/xjp-gateway/relay/model"
)

// knownKeys are consumed by the translation; everything else lands in
// the request's extra passthrough.
var knownKeys = map[string]struct{}{
	"model":       {},
	"messages":    {},
	"tools":       {},
	"tool_choice": {},
	"stream":      {},
	"temperature": {},
	"top_p":       {},
	"max_tokens":  {},
}

type inboundMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Name    string          `json:"name"`
}

type inboundTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type inboundPart struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

// parseContent accepts either a bare string or an array of typed parts.
// Unknown part types are skipped.
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
		switch p.Type {
		case "text":
			parts = append(parts, model.TextPart(p.Text))
		case "image_url":
			if p.ImageURL.URL != "" {
				parts = append(parts, model.ImageURLPart(p.ImageURL.URL))
			}
		}
	}
	return parts
}

// ToUnified parses an OpenAI chat-completions body into the neutral form.
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
			Name:    m.Name,
		})
	}

	if rawTools, ok := fields["tools"]; ok {
		var inTools []inboundTool
		if err := json.Unmarshal(rawTools, &inTools); err != nil {
			return nil, model.InvalidError("tools must be an array of tool objects")
		}
		for _, t := range inTools {
			if t.Function.Name == "" {
				continue
			}
			req.Tools = append(req.Tools, model.ToolSpec{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				JSONSchema:  t.Function.Parameters,
			})
		}
	}
	if rawChoice, ok := fields["tool_choice"]; ok {
		_ = json.Unmarshal(rawChoice, &req.ToolChoice)
	}
	if rawStream, ok := fields["stream"]; ok {
		_ = json.Unmarshal(rawStream, &req.Stream)
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
	if rawMax, ok := fields["max_tokens"]; ok {
		_ = json.Unmarshal(rawMax, &req.MaxOutputTokens)
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

type StreamDelta struct {
	Role      string          `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolCalls json.RawMessage `json:"tool_calls,omitempty"`
}

type StreamChoice struct {
	Index        int         `json:"index"`
	Delta        StreamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason,omitempty"`
}

type StreamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
}

// StreamTranscoder frames neutral chunks as chat.completion.chunk objects.
// The id and created timestamp are minted once and shared by every frame
// of one stream.
type StreamTranscoder struct {
	id      string
	created int64
	model   string
}

func NewStreamTranscoder(logicalModel string) *StreamTranscoder {
	return &StreamTranscoder{
		id:      fmt.Sprintf("chatcmpl-%s", random.GetUUID()),
		created: helper.GetTimestamp(),
		model:   logicalModel,
	}
}

// Frame converts one chunk; emit is false for chunks with nothing to say
// (no text, no tool delta, not terminal).
func (t *StreamTranscoder) Frame(chunk model.UnifiedChunk) (*StreamChunk, bool) {
	if chunk.TextDelta == "" && len(chunk.ToolCallDelta) == 0 && !chunk.Done {
		return nil, false
	}

	choice := StreamChoice{
		Delta: StreamDelta{
			Content:   chunk.TextDelta,
			ToolCalls: chunk.ToolCallDelta,
		},
	}
	if chunk.Done {
		reason := "stop"
		choice.FinishReason = &reason
	}
	return &StreamChunk{
		ID:      t.id,
		Object:  "chat.completion.chunk",
		Created: t.created,
		Model:   t.model,
		Choices: []StreamChoice{choice},
	}, true
}

type ResponseMessage struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	ToolCalls json.RawMessage `json:"tool_calls,omitempty"`
}

type ResponseChoice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type Response struct {
	ID      string           `json:"id"`
	Object  string           `json:"object"`
	Created int64            `json:"created"`
	Model   string           `json:"model"`
	Choices []ResponseChoice `json:"choices"`
}

// FinalResponse builds the non-streaming chat.completion body from the
// terminal chunk.
func FinalResponse(logicalModel string, chunk *model.UnifiedChunk) *Response {
	return &Response{
		ID:      fmt.Sprintf("chatcmpl-%s", random.GetUUID()),
		Object:  "chat.completion",
		Created: helper.GetTimestamp(),
		Model:   logicalModel,
		Choices: []ResponseChoice{{
			Message: ResponseMessage{
				Role:      "assistant",
				Content:   chunk.TextDelta,
				ToolCalls: chunk.ToolCallDelta,
			},
			FinishReason: "stop",
		}},
	}
}
