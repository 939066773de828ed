// Package openrouter relays chat completions through OpenRouter's
// OpenAI-compatible API.
package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Laisky/zap"

	"github.com/xjp-ai/xjp-gateway/common/config"
	"github.com/xjp-ai/xjp-gateway/common/logger"
	"github.com/xjp-ai/xjp-gateway/relay/connector"
	"github.com/xjp-ai/xjp-gateway/relay/model"
	"github.com/xjp-ai/xjp-gateway/relay/registry"
)

const doneSentinel = "[DONE]"

type Connector struct {
	apiKey  string
	baseURL string
}

func New() *Connector {
	if config.OpenRouterAPIKey == "" {
		logger.Logger.Warn("openrouter api key not configured")
	}
	return &Connector{
		apiKey:  config.OpenRouterAPIKey,
		baseURL: config.OpenRouterBaseURL,
	}
}

func (c *Connector) Name() string { return "openrouter" }

func (c *Connector) Capabilities() connector.Capabilities {
	return connector.Capabilities{Text: true, Vision: true, Video: true, Tools: true, Stream: true}
}

// mapContent encodes a message's content as either a bare string (single
// text part) or an array of typed parts. Video inputs degrade to a text
// marker since the upstream takes no video.
func mapContent(parts []model.ContentPart) any {
	if len(parts) == 1 && parts[0].Type == model.ContentTypeText {
		return parts[0].Text
	}
	out := make([]map[string]any, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case model.ContentTypeText:
			out = append(out, map[string]any{"type": "text", "text": p.Text})
		case model.ContentTypeImageURL:
			out = append(out, map[string]any{"type": "image_url", "image_url": map[string]any{"url": p.URL}})
		case model.ContentTypeImageB64:
			out = append(out, map[string]any{"type": "image_url", "image_url": map[string]any{
				"url": fmt.Sprintf("data:%s;base64,%s", p.Mime, p.B64),
			}})
		case model.ContentTypeVideoURL:
			out = append(out, map[string]any{"type": "text", "text": fmt.Sprintf("[Video: %s]", p.URL)})
		}
	}
	return out
}

func buildBody(route registry.Route, req *model.UnifiedRequest) map[string]any {
	messages := make([]map[string]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, map[string]any{
			"role":    m.Role,
			"content": mapContent(m.Content),
		})
	}

	body := map[string]any{
		"model":    route.ProviderModelID,
		"messages": messages,
		"stream":   req.Stream,
	}
	if req.MaxOutputTokens > 0 {
		body["max_tokens"] = req.MaxOutputTokens
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		body["top_p"] = *req.TopP
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]any, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.JSONSchema,
				},
			})
		}
		body["tools"] = tools
	}
	if req.ToolChoice != "" {
		body["tool_choice"] = req.ToolChoice
	}
	// Passthrough keys never override what the translation produced, and
	// request passthrough wins over route-pinned parameters.
	for k, v := range req.Extra {
		if _, exists := body[k]; !exists {
			body[k] = v
		}
	}
	connector.MergeRouteExtra(body, route)
	return body
}

type chatMessage struct {
	Content   string          `json:"content"`
	ToolCalls json.RawMessage `json:"tool_calls"`
}

type chatChoice struct {
	Delta   chatMessage `json:"delta"`
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

func (c *Connector) Invoke(ctx context.Context, route registry.Route, req *model.UnifiedRequest) (*connector.Response, *model.ErrorWithStatusCode) {
	if c.apiKey == "" {
		return nil, model.NewError(model.ErrTypeAuth, "openrouter: api key not configured", nil)
	}

	url := c.baseURL + "/chat/completions"
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)

	logger.Logger.Debug("invoking openrouter",
		zap.String("model", route.ProviderModelID),
		zap.Bool("stream", req.Stream))

	resp, err := connector.PostJSON(ctx, url, header, buildBody(route, req))
	if err != nil {
		return nil, connector.ClassifyTransportError(c.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, connector.DrainStatusError(c.Name(), resp)
	}

	if req.Stream {
		events := connector.StreamSSE(ctx, c.Name(), resp.Body, parseStreamFrame)
		return &connector.Response{Stream: events}, nil
	}

	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, connector.ClassifyTransportError(c.Name(), err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, model.NewError(model.ErrTypeUpstream, "openrouter: malformed response body", err)
	}

	chunk := model.UnifiedChunk{Done: true, ProviderEvents: raw}
	if len(parsed.Choices) > 0 {
		chunk.TextDelta = parsed.Choices[0].Message.Content
		chunk.ToolCallDelta = parsed.Choices[0].Message.ToolCalls
	}
	return &connector.Response{Chunk: &chunk}, nil
}

// parseStreamFrame maps one SSE data payload to a chunk. The stream ends at
// the literal [DONE] sentinel.
func parseStreamFrame(data string) (model.UnifiedChunk, bool, bool) {
	if data == doneSentinel {
		return model.UnifiedChunk{Done: true}, true, true
	}

	var parsed chatResponse
	if err := json.Unmarshal([]byte(data), &parsed); err != nil {
		return model.UnifiedChunk{}, false, false
	}

	chunk := model.UnifiedChunk{ProviderEvents: json.RawMessage(data)}
	if len(parsed.Choices) > 0 {
		chunk.TextDelta = parsed.Choices[0].Delta.Content
		chunk.ToolCallDelta = parsed.Choices[0].Delta.ToolCalls
	}
	return chunk, true, false
}
